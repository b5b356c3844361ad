package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

const decodeLongDesc string = `Decode token ids back to text.

Ids may be any slice of a rendered sequence. With --from-eos decoding starts at
the first end-of-sequence id, which shows every turn after the first exchange.

Examples:
  instruct decode 1 733 16289 28793 264 733 28748 16289 28793
  instruct decode --from-eos 1 733 16289 28793 264 733 28748 16289 28793 287 2`

const decodeShortDesc string = "Decode token ids to text"

type decodeCommander struct {
	fromEOS bool
}

func newDecodeCmd() *cobra.Command {
	cmder := &decodeCommander{}

	cmd := &cobra.Command{
		Use:   "decode <id>...",
		Short: decodeShortDesc,
		Long:  decodeLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd, args)
		},
	}

	cmd.Flags().BoolVar(&cmder.fromEOS, "from-eos", false, "Decode from the first end-of-sequence id (fails when there is none)")

	return cmd
}

func (c *decodeCommander) run(cmd *cobra.Command, args []string) error {
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}

	sess, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	decode := sess.templater.DecodeToText
	if c.fromEOS {
		decode = sess.templater.DecodeFromFirstEOS
	}

	text, err := decode(ids)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), text)
	return nil
}

func parseIDs(args []string) ([]int32, error) {
	ids := make([]int32, len(args))
	for i, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid token id %q: %w", arg, err)
		}
		ids[i] = int32(id)
	}
	return ids, nil
}
