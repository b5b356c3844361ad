package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/born-ml/instruct/internal/gguf"
	"github.com/born-ml/instruct/internal/tokenizer"
)

func newVocabCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vocab",
		Short: "Inspect or export the configured vocabulary",
	}

	cmd.AddCommand(newVocabInfoCmd(), newVocabExportCmd())

	return cmd
}

func newVocabInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Print vocabulary size and special token ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer sess.Close()

			tok := sess.tokenizer
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "source:     %s\n", sess.cfg.Tokenizer.Source)
			fmt.Fprintf(w, "template:   %s\n", sess.templater.Version())
			fmt.Fprintf(w, "vocab size: %d\n", tok.VocabSize())
			fmt.Fprintf(w, "bos:        %d\n", tok.BosToken())
			fmt.Fprintf(w, "eos:        %d\n", tok.EosToken())
			fmt.Fprintf(w, "unk:        %d\n", tok.UnkToken())
			fmt.Fprintf(w, "pad:        %d\n", tok.PadToken())
			if sp, ok := tok.(*tokenizer.SentencePiece); ok {
				fmt.Fprintf(w, "sha256:     %s\n", sp.Vocabulary().Fingerprint())
			}
			return nil
		},
	}
}

func newVocabExportCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "export <out.gguf>",
		Short: "Write the vocabulary as GGUF tokenizer metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer sess.Close()

			sp, ok := sess.tokenizer.(*tokenizer.SentencePiece)
			if !ok {
				return fmt.Errorf("%w: only SentencePiece vocabularies can be exported", tokenizer.ErrUnsupportedModel)
			}
			if name == "" {
				name = strings.TrimPrefix(sess.cfg.Tokenizer.Source, "example:")
			}

			if err := gguf.WriteFile(args[0], tokenizer.GGUFMetadata(sp.Vocabulary(), name)); err != nil {
				return fmt.Errorf("writing gguf: %w", err)
			}
			sess.log.Info("exported vocabulary", "path", args[0], "vocab_size", sp.VocabSize())
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "general.name to record (default: derived from the source)")

	return cmd
}
