package config

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag describes a CLI flag backed by a config key.
type Flag struct {
	Name        string
	Shorthand   string
	ViperKey    string
	Description string
}

// Flag registry keys.
const (
	FlagTokenizer = "tokenizer"
	FlagTemplate  = "template"
	FlagListen    = "listen"
	FlagDebug     = "debug"
	FlagWorkers   = "workers"
)

// Flags is the registry of config-backed flags shared by all commands.
var Flags = map[string]Flag{
	FlagTokenizer: {
		Name:        "tokenizer",
		Shorthand:   "t",
		ViperKey:    "tokenizer.source",
		Description: "Vocabulary: .gguf file, tokenizer.json, HuggingFace dir, tiktoken name or example:mistral-v1",
	},
	FlagTemplate: {
		Name:        "template",
		ViperKey:    "template.version",
		Description: "Template version (v1, v2)",
	},
	FlagListen: {
		Name:        "listen",
		Shorthand:   "l",
		ViperKey:    "server.listen",
		Description: "Address for the HTTP server to listen on",
	},
	FlagDebug: {
		Name:        "debug",
		ViperKey:    "log.debug",
		Description: "Enable debug logging",
	},
	FlagWorkers: {
		Name:        "workers",
		ViperKey:    "batch.workers",
		Description: "Batch render workers (0 = one per CPU)",
	},
}

// AddStringFlag registers the string flag key on flags, defaulting to the config default.
func AddStringFlag(cmd *cobra.Command, key string, persistent bool) {
	def, ok := Flags[key]
	if !ok {
		return
	}
	fs := cmd.Flags()
	if persistent {
		fs = cmd.PersistentFlags()
	}
	fs.StringP(def.Name, def.Shorthand, defaults().GetString(def.ViperKey), def.Description)
}

// AddBoolFlag registers the bool flag key.
func AddBoolFlag(cmd *cobra.Command, key string, persistent bool) {
	def, ok := Flags[key]
	if !ok {
		return
	}
	fs := cmd.Flags()
	if persistent {
		fs = cmd.PersistentFlags()
	}
	fs.BoolP(def.Name, def.Shorthand, defaults().GetBool(def.ViperKey), def.Description)
}

// AddIntFlag registers the int flag key.
func AddIntFlag(cmd *cobra.Command, key string, persistent bool) {
	def, ok := Flags[key]
	if !ok {
		return
	}
	fs := cmd.Flags()
	if persistent {
		fs = cmd.PersistentFlags()
	}
	fs.IntP(def.Name, def.Shorthand, defaults().GetInt(def.ViperKey), def.Description)
}

// BindRegisteredFlags binds the named flags of cmd to v so that flag > env > file > default.
// Only flags the user actually set override lower layers.
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, keys ...string) error {
	for _, key := range keys {
		def, ok := Flags[key]
		if !ok {
			continue
		}
		if f := cmd.Flags().Lookup(def.Name); f != nil {
			if err := v.BindPFlag(def.ViperKey, f); err != nil {
				return fmt.Errorf("binding flag %q: %w", def.Name, err)
			}
		}
	}
	return nil
}

func defaults() *viper.Viper {
	v := viper.New()
	setViperDefaults(v)
	return v
}
