package instruct

import (
	"fmt"
	"strings"

	"github.com/born-ml/instruct/internal/parallel"
)

// Codec is the subword codec a Templater renders with.
//
// tokenizer.Tokenizer implementations satisfy it. Encode must not add bos/eos ids.
type Codec interface {
	Encode(text string) ([]int32, error)
	Decode(tokens []int32) (string, error)
	IDToPiece(id int32) (string, error)
	PieceToID(piece string) (int32, bool)
	VocabSize() int
	BosToken() int32
	EosToken() int32
}

// Templater renders conversations with a fixed codec and template version.
type Templater struct {
	codec   Codec
	version Version

	bos, eos int32
	// V2 only.
	beginInst, endInst int32
}

// New creates a Templater. Control token ids are resolved once here.
func New(codec Codec, version Version) (*Templater, error) {
	if codec == nil {
		return nil, ErrNilCodec
	}
	if !version.valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownVersion, int(version))
	}

	t := &Templater{
		codec:     codec,
		version:   version,
		bos:       codec.BosToken(),
		eos:       codec.EosToken(),
		beginInst: -1,
		endInst:   -1,
	}
	if t.bos < 0 {
		return nil, fmt.Errorf("%w: beginning of sequence", ErrMissingControlToken)
	}
	if t.eos < 0 {
		return nil, fmt.Errorf("%w: end of sequence", ErrMissingControlToken)
	}

	if version.controlInstructions() {
		var ok bool
		if t.beginInst, ok = codec.PieceToID(MarkerBeginInstruction); !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingControlToken, MarkerBeginInstruction)
		}
		if t.endInst, ok = codec.PieceToID(MarkerEndInstruction); !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingControlToken, MarkerEndInstruction)
		}
	}

	return t, nil
}

// Version returns the template version.
func (t *Templater) Version() Version {
	return t.version
}

// Codec returns the codec the templater renders with.
func (t *Templater) Codec() Codec {
	return t.codec
}

// renderState is a state of the render loop.
type renderState int

const (
	stateStart renderState = iota
	stateExpectUser
	stateExpectAssistant
	stateDone
)

// trace accumulates segments for one render call.
type trace struct {
	t        *Templater
	segments []Segment
}

// Render renders a conversation into its text and token forms.
//
// The conversation is validated first; on any error nothing is returned.
func (t *Templater) Render(conv Conversation) (*Rendered, error) {
	if err := conv.Validate(); err != nil {
		return nil, err
	}

	tr := &trace{t: t, segments: make([]Segment, 0, 2*len(conv.Turns)+1)}
	next := 0

	for state := stateStart; state != stateDone; {
		switch state {
		case stateStart:
			if err := tr.control(KindBeginSequence, -1, t.bos); err != nil {
				return nil, err
			}
			state = stateExpectUser

		case stateExpectUser:
			if next == len(conv.Turns) {
				state = stateDone
				continue
			}
			content := conv.Turns[next].Text
			if next == 0 && conv.SystemPrompt != "" {
				content = conv.SystemPrompt + systemSeparator + content
			}
			if err := t.renderUser(tr, next, content); err != nil {
				return nil, err
			}
			next++
			state = stateExpectAssistant

		case stateExpectAssistant:
			if next == len(conv.Turns) {
				state = stateDone
				continue
			}
			if err := t.renderAssistant(tr, next, conv.Turns[next].Text); err != nil {
				return nil, err
			}
			next++
			state = stateExpectUser
		}
	}

	return tr.result(t.version), nil
}

func (t *Templater) renderUser(tr *trace, turn int, content string) error {
	if !t.version.controlInstructions() {
		return tr.span(KindInstruction, turn, MarkerBeginInstruction+" "+content+" "+MarkerEndInstruction)
	}

	if err := tr.control(KindBeginInstruction, turn, t.beginInst); err != nil {
		return err
	}
	if err := tr.span(KindUserContent, turn, content); err != nil {
		return err
	}
	return tr.control(KindEndInstruction, turn, t.endInst)
}

func (t *Templater) renderAssistant(tr *trace, turn int, content string) error {
	if err := tr.span(KindAssistantContent, turn, content); err != nil {
		return err
	}
	return tr.control(KindEndSequence, turn, t.eos)
}

func (tr *trace) control(kind SegmentKind, turn int, id int32) error {
	return tr.emit(kind, turn, []int32{id})
}

func (tr *trace) span(kind SegmentKind, turn int, text string) error {
	ids, err := tr.t.codec.Encode(text)
	if err != nil {
		return codecError(turn, err)
	}
	return tr.emit(kind, turn, ids)
}

func (tr *trace) emit(kind SegmentKind, turn int, ids []int32) error {
	var sb strings.Builder
	for _, id := range ids {
		piece, err := tr.t.codec.IDToPiece(id)
		if err != nil {
			return codecError(turn, err)
		}
		sb.WriteString(piece)
	}

	tr.segments = append(tr.segments, Segment{
		Kind:   kind,
		Turn:   turn,
		Text:   sb.String(),
		Tokens: ids,
	})
	return nil
}

func (tr *trace) result(version Version) *Rendered {
	n := 0
	for _, seg := range tr.segments {
		n += len(seg.Tokens)
	}

	out := &Rendered{
		Version:  version,
		Tokens:   make([]int32, 0, n),
		Segments: tr.segments,
	}

	var sb strings.Builder
	for _, seg := range tr.segments {
		out.Tokens = append(out.Tokens, seg.Tokens...)
		sb.WriteString(seg.Text)
	}
	out.Text = sb.String()

	return out
}

// DecodeToText decodes tokens with the codec. It may be any sub-slice of a rendered sequence.
func (t *Templater) DecodeToText(tokens []int32) (string, error) {
	text, err := t.codec.Decode(tokens)
	if err != nil {
		return "", codecError(-1, err)
	}
	return text, nil
}

// FromFirstEOS returns the suffix of tokens starting at the first end-of-sequence id,
// or nil when there is none.
func (t *Templater) FromFirstEOS(tokens []int32) []int32 {
	for i, id := range tokens {
		if id == t.eos {
			return tokens[i:]
		}
	}
	return nil
}

// DecodeFromFirstEOS decodes the suffix of tokens starting at the first end-of-sequence id.
// Tokens without one fail with ErrNoEndOfSequence.
func (t *Templater) DecodeFromFirstEOS(tokens []int32) (string, error) {
	tail := t.FromFirstEOS(tokens)
	if tail == nil {
		return "", validationError(-1, ErrNoEndOfSequence)
	}
	return t.DecodeToText(tail)
}

// RenderBatch renders conversations concurrently. Results keep the input order.
//
// If any conversation fails, the error of the lowest failing index is returned.
func (t *Templater) RenderBatch(convs []Conversation, cfg parallel.Config) ([]*Rendered, error) {
	results, errs := parallel.Map(convs, t.Render, cfg)
	if i, err := parallel.FirstError(errs); err != nil {
		return nil, fmt.Errorf("conversation %d: %w", i, err)
	}
	return results, nil
}
