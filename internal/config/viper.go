package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix      = "INSTRUCT"
	configName     = "instruct"
	configFileType = "toml"
)

// InitViper creates a *viper.Viper holding the instruct configuration.
//
// Precedence, highest first:
//  1. CLI flags bound with BindRegisteredFlags
//  2. INSTRUCT_* environment variables (INSTRUCT_TOKENIZER_SOURCE, INSTRUCT_SERVER_LISTEN, ...)
//  3. The config file: path when non-empty, else ./instruct.toml if present
//  4. NewDefaultConfig
func InitViper(path string) (*viper.Viper, error) {
	v := viper.New()
	setViperDefaults(v)

	v.SetConfigType(configFileType)
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		// A missing default file is fine; an explicitly named one is not.
		if path != "" || !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("tokenizer.source", d.Tokenizer.Source)
	v.SetDefault("template.version", d.Template.Version)
	v.SetDefault("server.listen", d.Server.Listen)
	v.SetDefault("batch.workers", d.Batch.Workers)
	v.SetDefault("log.debug", d.Log.Debug)
	v.SetDefault("log.json", d.Log.JSON)
	v.SetDefault("log.pretty", d.Log.Pretty)
	v.SetDefault("log.file", d.Log.File)
}

// Load resolves and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
