package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/born-ml/instruct/internal/api"
	"github.com/born-ml/instruct/internal/config"
	"github.com/born-ml/instruct/internal/parallel"
)

const serveLongDesc string = `Run the instruct HTTP API.

Endpoints:
  GET  /ping               Health check
  GET  /v1/info            Vocabulary and template version
  POST /v1/render          Render one conversation
  POST /v1/render/batch    Render many conversations
  POST /v1/decode          Decode token ids
  POST /v1/encode          Encode raw text`

const serveShortDesc string = "Run the HTTP API"

type serveCommander struct{}

func newServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	config.AddStringFlag(cmd, config.FlagListen, false)
	config.AddIntFlag(cmd, config.FlagWorkers, false)

	return cmd
}

func (c *serveCommander) run(cmd *cobra.Command) error {
	sess, err := openSession(cmd, config.FlagListen, config.FlagWorkers)
	if err != nil {
		return err
	}
	defer sess.Close()

	server := api.NewServer(api.Config{
		ListenAddr: sess.cfg.Server.Listen,
		Batch:      batchConfig(sess.cfg.Batch.Workers),
	}, sess.templater, sess.log)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		sess.log.Info("received signal, shutting down", "signal", sig.String())
	}

	return server.Shutdown()
}

// batchConfig maps batch.workers to a fan-out config. Zero means one worker per CPU.
func batchConfig(workers int) parallel.Config {
	cfg := parallel.DefaultConfig()
	if workers > 0 {
		cfg.NumWorkers = workers
		cfg.Enabled = workers > 1
	}
	return cfg
}
