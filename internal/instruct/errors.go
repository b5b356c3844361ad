package instruct

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrEmptyConversation   = errors.New("conversation has no turns")
	ErrFirstTurnNotUser    = errors.New("first turn must be a user turn")
	ErrSameRoleAdjacent    = errors.New("consecutive turns have the same role")
	ErrUnknownRole         = errors.New("unknown role")
	ErrUnknownVersion      = errors.New("unknown template version")
	ErrMissingControlToken = errors.New("vocabulary lacks a required control token")
	ErrNilCodec            = errors.New("codec is nil")
	ErrNoEndOfSequence     = errors.New("tokens contain no end-of-sequence id")
)

// Stage identifies which part of a render or decode failed.
type Stage int

const (
	// StageValidation covers malformed input: conversations, or decode requests with no
	// end-of-sequence id. Nothing is rendered.
	StageValidation Stage = iota + 1
	// StageCodec covers failures surfaced by the codec, e.g. an id out of range.
	StageCodec
)

// String returns the string representation of the stage.
func (s Stage) String() string {
	switch s {
	case StageValidation:
		return "validation"
	case StageCodec:
		return "codec"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// TemplateError reports a failed render or decode.
type TemplateError struct {
	Stage Stage
	Turn  int // Index of the offending turn, -1 when not tied to one.
	Err   error
}

// Error implements the error interface.
func (e *TemplateError) Error() string {
	if e.Turn >= 0 {
		return fmt.Sprintf("%s error at turn %d: %v", e.Stage, e.Turn, e.Err)
	}
	return fmt.Sprintf("%s error: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *TemplateError) Unwrap() error {
	return e.Err
}

func validationError(turn int, err error) *TemplateError {
	return &TemplateError{Stage: StageValidation, Turn: turn, Err: err}
}

func codecError(turn int, err error) *TemplateError {
	return &TemplateError{Stage: StageCodec, Turn: turn, Err: err}
}

// StageOf returns the stage of a *TemplateError in err's chain, or 0 if there is none.
func StageOf(err error) Stage {
	var te *TemplateError
	if errors.As(err, &te) {
		return te.Stage
	}
	return 0
}
