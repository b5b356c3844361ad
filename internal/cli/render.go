package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/born-ml/instruct/internal/instruct"
)

const renderLongDesc string = `Render a conversation into Mistral instruct text and token ids.

Turns are given as arguments and alternate user, assistant, user, ...
or read from a JSON or TOML file with --file ("-" reads JSON from stdin):

  system_prompt = "You are terse."

  [[messages]]
  role = "user"
  content = "Hello"

Examples:
  instruct render "Hello"
  instruct render --system "You are terse." "Hello" "Hi!" "Bye"
  instruct render --file chat.toml --json`

const renderShortDesc string = "Render a conversation"

// conversationFile is the --file document layout.
type conversationFile struct {
	SystemPrompt string             `json:"system_prompt,omitempty" toml:"system_prompt"`
	Messages     []instruct.Message `json:"messages" toml:"messages"`
}

type renderCommander struct {
	file     string
	system   string
	json     bool
	segments bool
}

func newRenderCmd() *cobra.Command {
	cmder := &renderCommander{}

	cmd := &cobra.Command{
		Use:   "render [turn...]",
		Short: renderShortDesc,
		Long:  renderLongDesc,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd, args)
		},
	}

	cmd.Flags().StringVarP(&cmder.file, "file", "f", "", "Read the conversation from a JSON or TOML file")
	cmd.Flags().StringVarP(&cmder.system, "system", "s", "", "System prompt merged into the first user turn")
	cmd.Flags().BoolVar(&cmder.json, "json", false, "Print the full rendering as JSON")
	cmd.Flags().BoolVar(&cmder.segments, "segments", false, "Print one line per segment")

	return cmd
}

func (c *renderCommander) run(cmd *cobra.Command, args []string) error {
	conv, err := c.conversation(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	sess, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	out, err := sess.templater.Render(conv)
	if err != nil {
		return err
	}
	sess.log.Debug("rendered conversation",
		"turns", len(conv.Turns),
		"tokens", len(out.Tokens),
	)

	w := cmd.OutOrStdout()
	switch {
	case c.json:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case c.segments:
		for _, seg := range out.Segments {
			class := "text"
			if seg.Kind.IsControl() {
				class = "control"
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%q\t%v\n", seg.Turn, seg.Kind, class, seg.Text, seg.Tokens)
		}
		return nil
	default:
		fmt.Fprintln(w, out.Text)
		fmt.Fprintln(w, formatIDs(out.Tokens))
		return nil
	}
}

// conversation builds the conversation from --file or from alternating arguments.
func (c *renderCommander) conversation(stdin io.Reader, args []string) (instruct.Conversation, error) {
	if c.file != "" && len(args) > 0 {
		return instruct.Conversation{}, fmt.Errorf("--file and turn arguments are mutually exclusive")
	}

	var doc conversationFile
	if c.file != "" {
		var err error
		if doc, err = readConversationFile(c.file, stdin); err != nil {
			return instruct.Conversation{}, err
		}
	} else {
		for i, text := range args {
			role := string(instruct.RoleUser)
			if i%2 == 1 {
				role = string(instruct.RoleAssistant)
			}
			doc.Messages = append(doc.Messages, instruct.Message{Role: role, Content: text})
		}
	}

	if c.system != "" {
		doc.SystemPrompt = c.system
	}
	if doc.SystemPrompt != "" {
		doc.Messages = append([]instruct.Message{{Role: "system", Content: doc.SystemPrompt}}, doc.Messages...)
	}
	return instruct.FromMessages(doc.Messages)
}

func readConversationFile(path string, stdin io.Reader) (conversationFile, error) {
	var doc conversationFile

	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return doc, fmt.Errorf("reading conversation: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), &doc); err != nil {
			return doc, fmt.Errorf("parsing conversation TOML: %w", err)
		}
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("parsing conversation JSON: %w", err)
	}
	return doc, nil
}

func formatIDs(ids []int32) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, " ")
}
