// Package template renders chat conversations into the Mistral instruct format.
//
// A Templater turns a Conversation into the exact prompt text and token ids a model
// sees, keeping the two in lock-step through per-segment bookkeeping.
//
// Example usage:
//
//	import (
//	    "github.com/born-ml/instruct/template"
//	    "github.com/born-ml/instruct/tokenizer"
//	)
//
//	tok, err := tokenizer.AutoLoad("mistral-7b-instruct-v0.1.Q4_K_M.gguf")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	tmpl, err := template.New(tok, template.V1)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	conv, err := template.NewConversation("You are terse.",
//	    template.User("Hello"),
//	    template.Assistant("Hi!"),
//	    template.User("How are you?"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	out, err := tmpl.Render(conv)
//	// out.Text:   "<s>▁[INST]▁You▁are▁terse.<0x0A><0x0A>Hello▁[/INST]▁Hi!</s>▁[INST]▁How▁are▁you?▁[/INST]"
//	// out.Tokens: [1 733 16289 28793 ...]
package template

import (
	"github.com/born-ml/instruct/internal/instruct"
	"github.com/born-ml/instruct/internal/parallel"
)

// Templater renders conversations with a fixed codec and template version.
type Templater = instruct.Templater

// Codec is the subword codec a Templater renders with. tokenizer.Tokenizer satisfies it.
type Codec = instruct.Codec

// Version selects the instruct template revision.
type Version = instruct.Version

// Template versions.
const (
	// V1 encodes "[INST] ... [/INST]" as ordinary text.
	V1 = instruct.V1
	// V2 uses dedicated [INST] and [/INST] control ids.
	V2 = instruct.V2
)

// Conversation is an optional system prompt plus alternating user and assistant turns.
type Conversation = instruct.Conversation

// Turn is one message of a conversation.
type Turn = instruct.Turn

// Role identifies the author of a turn.
type Role = instruct.Role

// Roles.
const (
	RoleUser      = instruct.RoleUser
	RoleAssistant = instruct.RoleAssistant
)

// Message is a chat-API style message; Role may also be "system".
type Message = instruct.Message

// Rendered is the result of rendering one conversation.
type Rendered = instruct.Rendered

// Segment is one contiguous part of a rendering.
type Segment = instruct.Segment

// SegmentKind classifies a segment.
type SegmentKind = instruct.SegmentKind

// Stage identifies where a render failed.
type Stage = instruct.Stage

// Failure stages.
const (
	StageValidation = instruct.StageValidation
	StageCodec      = instruct.StageCodec
)

// TemplateError records the stage and turn of a failure.
type TemplateError = instruct.TemplateError

// Errors.
var (
	ErrEmptyConversation   = instruct.ErrEmptyConversation
	ErrFirstTurnNotUser    = instruct.ErrFirstTurnNotUser
	ErrSameRoleAdjacent    = instruct.ErrSameRoleAdjacent
	ErrUnknownRole         = instruct.ErrUnknownRole
	ErrUnknownVersion      = instruct.ErrUnknownVersion
	ErrMissingControlToken = instruct.ErrMissingControlToken
	ErrNilCodec            = instruct.ErrNilCodec
	ErrNoEndOfSequence     = instruct.ErrNoEndOfSequence
)

// New creates a Templater. For V2 the codec must carry [INST] and [/INST] pieces.
func New(codec Codec, version Version) (*Templater, error) {
	return instruct.New(codec, version)
}

// ParseVersion parses "v1", "v2", "1" or "2".
func ParseVersion(s string) (Version, error) {
	return instruct.ParseVersion(s)
}

// User returns a user turn.
func User(text string) Turn {
	return instruct.User(text)
}

// Assistant returns an assistant turn.
func Assistant(text string) Turn {
	return instruct.Assistant(text)
}

// NewConversation builds and validates a conversation.
func NewConversation(systemPrompt string, turns ...Turn) (Conversation, error) {
	return instruct.NewConversation(systemPrompt, turns...)
}

// FromMessages builds a conversation from chat-API messages. System messages become the system prompt.
func FromMessages(messages []Message) (Conversation, error) {
	return instruct.FromMessages(messages)
}

// StageOf returns the stage of a render error, or zero for other errors.
func StageOf(err error) Stage {
	return instruct.StageOf(err)
}

// RenderBatch renders conversations on up to workers goroutines. Results keep the
// input order; workers <= 0 uses one per CPU.
func RenderBatch(t *Templater, convs []Conversation, workers int) ([]*Rendered, error) {
	cfg := parallel.DefaultConfig()
	if workers > 0 {
		cfg.NumWorkers = workers
		cfg.Enabled = workers > 1
	}
	return t.RenderBatch(convs, cfg)
}
