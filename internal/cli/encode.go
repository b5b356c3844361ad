package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

const encodeShortDesc string = "Encode raw text without any template"

type encodeCommander struct {
	json bool
}

func newEncodeCmd() *cobra.Command {
	cmder := &encodeCommander{}

	cmd := &cobra.Command{
		Use:   "encode <text>...",
		Short: encodeShortDesc,
		Long:  "Encode raw text with the configured vocabulary. Arguments are joined with spaces; no bos or eos is added.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd, strings.Join(args, " "))
		},
	}

	cmd.Flags().BoolVar(&cmder.json, "json", false, "Print ids and pieces as JSON")

	return cmd
}

func (c *encodeCommander) run(cmd *cobra.Command, text string) error {
	sess, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	ids, err := sess.tokenizer.Encode(text)
	if err != nil {
		return fmt.Errorf("encoding: %w", err)
	}

	pieces := make([]string, len(ids))
	for i, id := range ids {
		if pieces[i], err = sess.tokenizer.IDToPiece(id); err != nil {
			return err
		}
	}

	w := cmd.OutOrStdout()
	if c.json {
		return json.NewEncoder(w).Encode(struct {
			Tokens []int32  `json:"tokens"`
			Pieces []string `json:"pieces"`
		}{ids, pieces})
	}

	for i, id := range ids {
		fmt.Fprintf(w, "%d\t%q\n", id, pieces[i])
	}
	return nil
}
