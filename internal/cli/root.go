// Package cli provides the instruct cobra commands.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/born-ml/instruct/internal/config"
	"github.com/born-ml/instruct/internal/instruct"
	"github.com/born-ml/instruct/internal/logger"
	"github.com/born-ml/instruct/internal/tokenizer"
)

const rootLongDesc string = `instruct renders chat conversations into the Mistral instruct format.

Conversations become both the exact prompt text and the token ids a model sees:
  instruct render "Hello" "Hi!" "How are you?"
  instruct render --file chat.toml --json
  instruct decode --from-eos 1 733 16289 28793 ...
  instruct serve --listen :8083`

const rootShortDesc string = "instruct - Mistral instruct templating"

const flagConfig = "config"

// NewRootCmd returns the instruct command tree.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "instruct",
		Short:         rootShortDesc,
		Long:          rootLongDesc,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	cmd.PersistentFlags().StringP(flagConfig, "c", "", "Path to instruct.toml (default: ./instruct.toml if present)")
	config.AddStringFlag(cmd, config.FlagTokenizer, true)
	config.AddStringFlag(cmd, config.FlagTemplate, true)
	config.AddBoolFlag(cmd, config.FlagDebug, true)

	cmd.AddCommand(
		newRenderCmd(),
		newDecodeCmd(),
		newEncodeCmd(),
		newServeCmd(),
		newVocabCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)

	return cmd
}

// Execute runs the command tree with os.Args and reports any error on stderr.
func Execute() int {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

// loadConfig resolves the configuration for cmd. keys names the registry flags cmd
// itself carries on top of the global ones.
func loadConfig(cmd *cobra.Command, keys ...string) (*config.Config, *viper.Viper, error) {
	path, err := cmd.Flags().GetString(flagConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("could not get config flag: %w", err)
	}

	v, err := config.InitViper(path)
	if err != nil {
		return nil, nil, err
	}

	keys = append([]string{config.FlagTokenizer, config.FlagTemplate, config.FlagDebug}, keys...)
	if err := config.BindRegisteredFlags(v, cmd, keys...); err != nil {
		return nil, nil, err
	}

	cfg, err := config.Load(v)
	if err != nil {
		return nil, nil, err
	}
	return cfg, v, nil
}

// newLogger builds the command logger. Logs go to w so they never mix with command output.
func newLogger(cfg *config.Config, w io.Writer) (*slog.Logger, func() error, error) {
	console := logger.New(
		logger.WithWriter(w),
		logger.WithDebug(cfg.Log.Debug),
		logger.WithPretty(cfg.Log.Pretty),
		logger.WithJSON(cfg.Log.JSON),
	)
	if cfg.Log.File == "" {
		return console, func() error { return nil }, nil
	}

	f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	file := logger.New(
		logger.WithWriter(f),
		logger.WithDebug(cfg.Log.Debug),
		logger.WithJSON(true),
	)
	return logger.Multi(console, file), f.Close, nil
}

// openTemplater loads the configured vocabulary and builds a templater over it.
func openTemplater(cfg *config.Config, log *slog.Logger) (tokenizer.Tokenizer, *instruct.Templater, error) {
	version, err := cfg.TemplateVersion()
	if err != nil {
		return nil, nil, err
	}

	tok, err := tokenizer.AutoLoadTokenizer(cfg.Tokenizer.Source)
	if err != nil {
		return nil, nil, fmt.Errorf("loading tokenizer: %w", err)
	}
	log.Debug("loaded tokenizer",
		"source", cfg.Tokenizer.Source,
		"vocab_size", tok.VocabSize(),
	)

	tmpl, err := instruct.New(tok, version)
	if err != nil {
		return nil, nil, fmt.Errorf("creating templater: %w", err)
	}
	return tok, tmpl, nil
}

// session is what the data commands share: resolved config, logger and templater.
type session struct {
	cfg       *config.Config
	log       *slog.Logger
	tokenizer tokenizer.Tokenizer
	templater *instruct.Templater
	closeLog  func() error
}

func openSession(cmd *cobra.Command, keys ...string) (*session, error) {
	cfg, _, err := loadConfig(cmd, keys...)
	if err != nil {
		return nil, err
	}
	log, closeLog, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	tok, tmpl, err := openTemplater(cfg, log)
	if err != nil {
		_ = closeLog()
		return nil, err
	}
	return &session{cfg: cfg, log: log, tokenizer: tok, templater: tmpl, closeLog: closeLog}, nil
}

func (s *session) Close() error {
	return s.closeLog()
}
