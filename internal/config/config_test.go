package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/born-ml/instruct/internal/config"
	"github.com/born-ml/instruct/internal/instruct"
	"github.com/born-ml/instruct/internal/tokenizer"
)

var _ = Describe("Config", func() {
	var tmpDir string

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
	})

	writeConfig := func(data string) string {
		path := filepath.Join(tmpDir, "instruct.toml")
		Expect(os.WriteFile(path, []byte(data), 0o600)).To(Succeed())
		return path
	}

	Describe("NewDefaultConfig", func() {
		It("uses the built-in vocabulary and v1 template", func() {
			cfg := config.NewDefaultConfig()
			Expect(cfg.Tokenizer.Source).To(Equal(tokenizer.ExampleSource))
			Expect(cfg.Validate()).To(Succeed())

			version, err := cfg.TemplateVersion()
			Expect(err).NotTo(HaveOccurred())
			Expect(version).To(Equal(instruct.V1))
		})
	})

	Describe("InitViper and Load", func() {
		It("returns defaults when no file is given", func() {
			v, err := config.InitViper("")
			Expect(err).NotTo(HaveOccurred())

			cfg, err := config.Load(v)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg).To(Equal(config.NewDefaultConfig()))
		})

		It("reads an explicit config file", func() {
			path := writeConfig(`
[tokenizer]
source = "/models/mistral.gguf"

[template]
version = "v2"

[server]
listen = "127.0.0.1:9000"

[log]
json = true
`)
			v, err := config.InitViper(path)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := config.Load(v)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Tokenizer.Source).To(Equal("/models/mistral.gguf"))
			Expect(cfg.Template.Version).To(Equal("v2"))
			Expect(cfg.Server.Listen).To(Equal("127.0.0.1:9000"))
			Expect(cfg.Log.JSON).To(BeTrue())
			Expect(cfg.Log.Pretty).To(BeTrue(), "unset keys keep their defaults")
		})

		It("fails when an explicit file is missing", func() {
			_, err := config.InitViper(filepath.Join(tmpDir, "missing.toml"))
			Expect(err).To(HaveOccurred())
		})

		It("lets environment variables override the file", func() {
			path := writeConfig("[server]\nlisten = \":1\"\n")
			GinkgoT().Setenv("INSTRUCT_SERVER_LISTEN", ":2")
			GinkgoT().Setenv("INSTRUCT_TEMPLATE_VERSION", "v2")

			v, err := config.InitViper(path)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := config.Load(v)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Server.Listen).To(Equal(":2"))
			Expect(cfg.Template.Version).To(Equal("v2"))
		})

		It("lets changed flags override everything", func() {
			GinkgoT().Setenv("INSTRUCT_TEMPLATE_VERSION", "v2")

			cmd := &cobra.Command{Use: "test"}
			config.AddStringFlag(cmd, config.FlagTemplate, false)
			config.AddStringFlag(cmd, config.FlagListen, false)
			Expect(cmd.Flags().Parse([]string{"--template", "v1"})).To(Succeed())

			v, err := config.InitViper("")
			Expect(err).NotTo(HaveOccurred())
			Expect(config.BindRegisteredFlags(v, cmd, config.FlagTemplate, config.FlagListen)).To(Succeed())

			cfg, err := config.Load(v)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Template.Version).To(Equal("v1"))
			Expect(cfg.Server.Listen).To(Equal(":8083"), "unchanged flags fall through to defaults")
		})

		It("rejects an unknown template version", func() {
			path := writeConfig("[template]\nversion = \"v9\"\n")
			v, err := config.InitViper(path)
			Expect(err).NotTo(HaveOccurred())

			_, err = config.Load(v)
			Expect(err).To(MatchError(instruct.ErrUnknownVersion))
		})
	})

	Describe("Validate", func() {
		It("reports each broken field", func() {
			cfg := config.NewDefaultConfig()
			cfg.Tokenizer.Source = ""
			Expect(cfg.Validate()).To(MatchError(config.ErrNoTokenizer))

			cfg = config.NewDefaultConfig()
			cfg.Server.Listen = ""
			Expect(cfg.Validate()).To(MatchError(config.ErrNoListen))

			cfg = config.NewDefaultConfig()
			cfg.Batch.Workers = -1
			Expect(cfg.Validate()).To(MatchError(config.ErrBadWorkers))
		})
	})

	Describe("TOML", func() {
		It("round-trips through BurntSushi/toml", func() {
			cfg := config.NewDefaultConfig()
			cfg.Template.Version = "v2"
			cfg.Batch.Workers = 3

			data, err := cfg.TOML()
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring("[template]"))

			parsed, err := config.ParseTOML(data)
			Expect(err).NotTo(HaveOccurred())
			Expect(parsed).To(Equal(cfg))
		})

		It("fills missing fields with defaults", func() {
			parsed, err := config.ParseTOML([]byte("[server]\nlisten = \":9\"\n"))
			Expect(err).NotTo(HaveOccurred())
			Expect(parsed.Server.Listen).To(Equal(":9"))
			Expect(parsed.Tokenizer.Source).To(Equal(tokenizer.ExampleSource))
		})

		It("rejects malformed documents", func() {
			_, err := config.ParseTOML([]byte("[server\n"))
			Expect(err).To(HaveOccurred())
		})
	})
})
