// Package config holds the instruct configuration: which vocabulary to load, which template
// version to render with, and how the server and logger behave.
//
// A Config is resolved once at startup and passed explicitly to the code that needs it.
package config

import (
	"errors"
	"fmt"

	"github.com/born-ml/instruct/internal/instruct"
)

// Config is the layout of instruct.toml.
type Config struct {
	Tokenizer TokenizerConfig `toml:"tokenizer" mapstructure:"tokenizer"`
	Template  TemplateConfig  `toml:"template" mapstructure:"template"`
	Server    ServerConfig    `toml:"server" mapstructure:"server"`
	Batch     BatchConfig     `toml:"batch" mapstructure:"batch"`
	Log       LogConfig       `toml:"log" mapstructure:"log"`
}

// TokenizerConfig selects the vocabulary.
type TokenizerConfig struct {
	// Source is a .gguf file, a tokenizer.json or HuggingFace directory, a tiktoken
	// model or encoding name, or "example:mistral-v1".
	Source string `toml:"source" mapstructure:"source"`
}

// TemplateConfig selects the template version.
type TemplateConfig struct {
	Version string `toml:"version" mapstructure:"version"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Listen string `toml:"listen" mapstructure:"listen"`
}

// BatchConfig controls batch rendering fan-out. Zero workers means one per CPU.
type BatchConfig struct {
	Workers int `toml:"workers" mapstructure:"workers"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Debug  bool   `toml:"debug" mapstructure:"debug"`
	JSON   bool   `toml:"json" mapstructure:"json"`
	Pretty bool   `toml:"pretty" mapstructure:"pretty"`
	File   string `toml:"file,omitempty" mapstructure:"file"` // extra JSON log file, optional
}

// Validation errors.
var (
	ErrNoTokenizer = errors.New("tokenizer.source is empty")
	ErrNoListen    = errors.New("server.listen is empty")
	ErrBadWorkers  = errors.New("batch.workers must not be negative")
)

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Tokenizer.Source == "" {
		return ErrNoTokenizer
	}
	if _, err := c.TemplateVersion(); err != nil {
		return fmt.Errorf("template.version: %w", err)
	}
	if c.Server.Listen == "" {
		return ErrNoListen
	}
	if c.Batch.Workers < 0 {
		return fmt.Errorf("%w: %d", ErrBadWorkers, c.Batch.Workers)
	}
	return nil
}

// TemplateVersion parses Template.Version.
func (c *Config) TemplateVersion() (instruct.Version, error) {
	return instruct.ParseVersion(c.Template.Version)
}
