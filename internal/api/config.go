// Package api provides the HTTP API for rendering and decoding instruct prompts.
package api

import "github.com/born-ml/instruct/internal/parallel"

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8083")
	ListenAddr string

	// Batch controls the fan-out of /v1/render/batch.
	Batch parallel.Config
}
