package config

import "github.com/born-ml/instruct/internal/tokenizer"

const (
	defaultTemplateVersion = "v1"
	defaultListen          = ":8083"
)

// NewDefaultConfig returns the configuration used when nothing else is set.
func NewDefaultConfig() *Config {
	return &Config{
		Tokenizer: TokenizerConfig{
			Source: tokenizer.ExampleSource,
		},
		Template: TemplateConfig{
			Version: defaultTemplateVersion,
		},
		Server: ServerConfig{
			Listen: defaultListen,
		},
		Log: LogConfig{
			Pretty: true,
		},
	}
}
