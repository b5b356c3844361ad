package instruct

import (
	"fmt"
	"strings"
)

// Role tags a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"

	// roleSystem is only accepted in message lists; it is folded into the system prompt.
	roleSystem = "system"
)

// systemSeparator joins the system prompt to the first user message.
const systemSeparator = "\n\n"

// Turn is one message of a conversation.
type Turn struct {
	Role Role
	Text string
}

// User creates a user turn.
func User(text string) Turn {
	return Turn{Role: RoleUser, Text: text}
}

// Assistant creates an assistant turn.
func Assistant(text string) Turn {
	return Turn{Role: RoleAssistant, Text: text}
}

// Conversation is an optional system prompt plus turns that alternate starting with the user.
//
// An empty SystemPrompt means there is none.
type Conversation struct {
	SystemPrompt string
	Turns        []Turn
}

// NewConversation builds and validates a conversation.
func NewConversation(systemPrompt string, turns ...Turn) (Conversation, error) {
	conv := Conversation{
		SystemPrompt: systemPrompt,
		Turns:        append([]Turn(nil), turns...),
	}
	if err := conv.Validate(); err != nil {
		return Conversation{}, err
	}
	return conv, nil
}

// Validate checks the turn order. Errors are *TemplateError at StageValidation.
func (c Conversation) Validate() error {
	if len(c.Turns) == 0 {
		return validationError(-1, ErrEmptyConversation)
	}

	for i, turn := range c.Turns {
		if turn.Role != RoleUser && turn.Role != RoleAssistant {
			return validationError(i, fmt.Errorf("%w: %q", ErrUnknownRole, turn.Role))
		}
		if i == 0 && turn.Role != RoleUser {
			return validationError(i, ErrFirstTurnNotUser)
		}
		if i > 0 && c.Turns[i-1].Role == turn.Role {
			return validationError(i, ErrSameRoleAdjacent)
		}
	}

	return nil
}

// EndsWithUser reports whether the last turn is an open instruction.
func (c Conversation) EndsWithUser() bool {
	return len(c.Turns) > 0 && c.Turns[len(c.Turns)-1].Role == RoleUser
}

// Message is a role-tagged message as found in chat APIs and conversation files.
type Message struct {
	Role    string `json:"role" toml:"role"`
	Content string `json:"content" toml:"content"`
}

// FromMessages converts a message list into a validated conversation.
//
// Messages with role "system" are joined with "\n\n" into the system prompt.
func FromMessages(messages []Message) (Conversation, error) {
	var system []string
	turns := make([]Turn, 0, len(messages))

	for i, msg := range messages {
		switch strings.ToLower(msg.Role) {
		case roleSystem:
			system = append(system, msg.Content)
		case string(RoleUser):
			turns = append(turns, User(msg.Content))
		case string(RoleAssistant):
			turns = append(turns, Assistant(msg.Content))
		default:
			return Conversation{}, validationError(i, fmt.Errorf("%w: %q", ErrUnknownRole, msg.Role))
		}
	}

	return NewConversation(strings.Join(system, systemSeparator), turns...)
}
