package config

import (
	"bytes"
	"fmt"

	"github.com/BurntSushi/toml"
)

// ParseTOML parses an instruct.toml document. Missing fields keep their defaults.
func ParseTOML(data []byte) (*Config, error) {
	cfg := NewDefaultConfig()
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parsing config TOML: %w", err)
	}
	return cfg, nil
}

// TOML encodes the configuration as an instruct.toml document.
func (c *Config) TOML() ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return nil, fmt.Errorf("encoding config TOML: %w", err)
	}
	return buf.Bytes(), nil
}
