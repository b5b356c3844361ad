package api

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/born-ml/instruct/internal/instruct"
)

// Server serves one templater over HTTP.
type Server struct {
	config    Config
	templater *instruct.Templater
	codec     instruct.Codec
	logger    *slog.Logger
	app       *fiber.App
}

// NewServer creates an API server rendering with templater.
func NewServer(config Config, templater *instruct.Templater, logger *slog.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:    config,
		templater: templater,
		codec:     templater.Codec(),
		logger:    logger,
		app:       app,
	}

	app.Get("/ping", s.handlePing)
	app.Get("/v1/info", s.handleInfo)
	app.Post("/v1/render", s.handleRender)
	app.Post("/v1/render/batch", s.handleRenderBatch)
	app.Post("/v1/decode", s.handleDecode)
	app.Post("/v1/encode", s.handleEncode)

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		"listen", s.config.ListenAddr,
		"template", s.templater.Version().String(),
		"vocab_size", s.codec.VocabSize(),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
