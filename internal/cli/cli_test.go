package cli_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/born-ml/instruct/internal/cli"
	"github.com/born-ml/instruct/internal/config"
	"github.com/born-ml/instruct/internal/instruct"
	"github.com/born-ml/instruct/internal/tokenizer"
)

// execute runs the root command and returns stdout.
func execute(args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := cli.NewRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

var _ = Describe("NewRootCmd", func() {
	It("has every subcommand", func() {
		cmd := cli.NewRootCmd()
		names := make([]string, 0, len(cmd.Commands()))
		for _, sub := range cmd.Commands() {
			names = append(names, sub.Name())
		}
		Expect(names).To(ContainElements("render", "decode", "encode", "serve", "vocab", "config", "version"))
	})

	It("carries the global flags", func() {
		cmd := cli.NewRootCmd()
		for _, name := range []string{"config", "tokenizer", "template", "debug"} {
			Expect(cmd.PersistentFlags().Lookup(name)).NotTo(BeNil(), name)
		}
	})
})

var _ = Describe("render", func() {
	It("renders alternating turns", func() {
		out, err := execute("render", "a", "b", "c", "d")
		Expect(err).NotTo(HaveOccurred())

		lines := strings.Split(strings.TrimSpace(out), "\n")
		Expect(lines).To(HaveLen(2))
		Expect(lines[0]).To(Equal("<s>▁[INST]▁a▁[/INST]▁b</s>▁[INST]▁c▁[/INST]▁d</s>"))
		Expect(lines[1]).To(Equal("1 733 16289 28793 264 733 28748 16289 28793 287 2 733 16289 28793 277 733 28748 16289 28793 281 2"))
	})

	It("merges the system prompt into the first user turn", func() {
		out, err := execute("render", "--system", "SYSTEM", "a")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("1 733 16289 28793 17121 22526 13 13 28708 733 28748 16289 28793\n"))
	})

	It("prints JSON", func() {
		out, err := execute("render", "--json", "a", "b")
		Expect(err).NotTo(HaveOccurred())

		var rendered struct {
			Version  string  `json:"version"`
			Tokens   []int32 `json:"tokens"`
			Segments []any   `json:"segments"`
		}
		Expect(json.Unmarshal([]byte(out), &rendered)).To(Succeed())
		Expect(rendered.Version).To(Equal("v1"))
		Expect(rendered.Tokens).To(Equal([]int32{1, 733, 16289, 28793, 264, 733, 28748, 16289, 28793, 287, 2}))
		Expect(rendered.Segments).To(HaveLen(4))
	})

	It("prints segments", func() {
		out, err := execute("render", "--segments", "a", "b")
		Expect(err).NotTo(HaveOccurred())
		Expect(strings.Split(strings.TrimSpace(out), "\n")).To(HaveLen(4))
		Expect(out).To(ContainSubstring("-1\tbegin_sequence\tcontrol\t\"<s>\"\t[1]\n"))
		Expect(out).To(ContainSubstring("1\tassistant_content\ttext\t\"▁b\"\t[287]\n"))
		Expect(out).To(ContainSubstring("1\tend_sequence\tcontrol\t\"</s>\"\t[2]"))
	})

	It("reads a TOML conversation file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "chat.toml")
		doc := `system_prompt = "SYSTEM"

[[messages]]
role = "user"
content = "a"
`
		Expect(os.WriteFile(path, []byte(doc), 0o644)).To(Succeed())

		out, err := execute("render", "--file", path)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(HavePrefix("<s>▁[INST]▁SYSTEM<0x0A><0x0A>a▁[/INST]\n"))
	})

	It("reads a JSON conversation file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "chat.json")
		doc := `{"messages":[{"role":"user","content":"a"},{"role":"assistant","content":"b"}]}`
		Expect(os.WriteFile(path, []byte(doc), 0o644)).To(Succeed())

		out, err := execute("render", "--file", path)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(HavePrefix("<s>▁[INST]▁a▁[/INST]▁b</s>\n"))
	})

	It("rejects a file together with turn arguments", func() {
		_, err := execute("render", "--file", "chat.json", "a")
		Expect(err).To(MatchError(ContainSubstring("mutually exclusive")))
	})

	It("reports validation errors", func() {
		_, err := execute("render")
		Expect(err).To(MatchError(instruct.ErrEmptyConversation))
		Expect(instruct.StageOf(err)).To(Equal(instruct.StageValidation))
	})

	It("fails on a V2 template without control pieces", func() {
		_, err := execute("render", "--template", "v2", "a")
		Expect(err).To(MatchError(instruct.ErrMissingControlToken))
	})
})

var _ = Describe("decode", func() {
	scenario := []string{
		"1", "733", "16289", "28793", "264", "733", "28748", "16289", "28793", "287", "2",
		"733", "16289", "28793", "277", "733", "28748", "16289", "28793", "281", "2",
	}

	It("decodes a whole sequence", func() {
		out, err := execute(append([]string{"decode"}, scenario...)...)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("[INST] a [/INST] b [INST] c [/INST] d\n"))
	})

	It("decodes from the first end of sequence", func() {
		out, err := execute(append([]string{"decode", "--from-eos"}, scenario...)...)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("[INST] c [/INST] d\n"))
	})

	It("fails from the first end of sequence when there is none", func() {
		_, err := execute(append([]string{"decode", "--from-eos"}, scenario[:9]...)...)
		Expect(err).To(MatchError(instruct.ErrNoEndOfSequence))
	})

	It("rejects non-numeric ids", func() {
		_, err := execute("decode", "1", "x")
		Expect(err).To(MatchError(ContainSubstring(`invalid token id "x"`)))
	})

	It("reports out-of-range ids as codec errors", func() {
		_, err := execute("decode", "32000")
		Expect(err).To(MatchError(tokenizer.ErrTokenOutOfRange))
		Expect(instruct.StageOf(err)).To(Equal(instruct.StageCodec))
	})
})

var _ = Describe("encode", func() {
	It("lists ids with their pieces", func() {
		out, err := execute("encode", "[INST]")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("733\t\"▁[\"\n16289\t\"INST\"\n28793\t\"]\"\n"))
	})

	It("prints JSON", func() {
		out, err := execute("encode", "--json", "a")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(MatchJSON(`{"tokens":[264],"pieces":["▁a"]}`))
	})
})

var _ = Describe("config", func() {
	It("prints the effective configuration", func() {
		out, err := execute("config", "--template", "v2")
		Expect(err).NotTo(HaveOccurred())

		cfg, err := config.ParseTOML([]byte(out))
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Template.Version).To(Equal("v2"))
		Expect(cfg.Tokenizer.Source).To(Equal(tokenizer.ExampleSource))
	})

	It("reads an explicit config file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "instruct.toml")
		Expect(os.WriteFile(path, []byte("[server]\nlisten = \":9999\"\n"), 0o644)).To(Succeed())

		out, err := execute("config", "--config", path)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring(`listen = ":9999"`))
	})

	It("writes a default file with init", func() {
		path := filepath.Join(GinkgoT().TempDir(), "instruct.toml")

		_, err := execute("config", "init", path)
		Expect(err).NotTo(HaveOccurred())

		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		cfg, err := config.ParseTOML(data)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg).To(Equal(config.NewDefaultConfig()))

		_, err = execute("config", "init", path)
		Expect(err).To(MatchError(ContainSubstring("already exists")))

		out, err := execute("config", "validate", path)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(path + " is valid\n"))
	})

	It("rejects an invalid file with validate", func() {
		path := filepath.Join(GinkgoT().TempDir(), "instruct.toml")
		Expect(os.WriteFile(path, []byte("[batch]\nworkers = -1\n"), 0o644)).To(Succeed())

		_, err := execute("config", "validate", path)
		Expect(err).To(MatchError(config.ErrBadWorkers))
	})
})

var _ = Describe("vocab", func() {
	It("prints vocabulary info", func() {
		out, err := execute("vocab", "info")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("vocab size: 32000"))
		Expect(out).To(ContainSubstring("bos:        1"))
		Expect(out).To(ContainSubstring("sha256:     " + tokenizer.ExampleMistralV1Vocab().Fingerprint()))
	})

	It("exports a vocabulary that loads back", func() {
		path := filepath.Join(GinkgoT().TempDir(), "vocab.gguf")

		_, err := execute("vocab", "export", path)
		Expect(err).NotTo(HaveOccurred())

		out, err := execute("render", "--tokenizer", path, "a")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("1 733 16289 28793 264 733 28748 16289 28793\n"))
	})
})

var _ = Describe("version", func() {
	It("prints build information", func() {
		out, err := execute("version")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(HavePrefix("Version: " + cli.Version))
	})
})
