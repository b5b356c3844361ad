package instruct

import "fmt"

// SegmentKind classifies a segment of the render trace.
type SegmentKind int

const (
	KindBeginSequence SegmentKind = iota + 1
	KindEndSequence
	KindBeginInstruction
	KindEndInstruction
	// KindInstruction is a V1 user turn: markers and content encoded as one span.
	KindInstruction
	KindUserContent
	KindAssistantContent
)

var segmentKindNames = map[SegmentKind]string{
	KindBeginSequence:    "begin_sequence",
	KindEndSequence:      "end_sequence",
	KindBeginInstruction: "begin_instruction",
	KindEndInstruction:   "end_instruction",
	KindInstruction:      "instruction",
	KindUserContent:      "user_content",
	KindAssistantContent: "assistant_content",
}

// String returns the string representation of the segment kind.
func (k SegmentKind) String() string {
	if name, ok := segmentKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("SegmentKind(%d)", int(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k SegmentKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// IsControl reports whether the segment is a single control token.
func (k SegmentKind) IsControl() bool {
	switch k {
	case KindBeginSequence, KindEndSequence, KindBeginInstruction, KindEndInstruction:
		return true
	default:
		return false
	}
}

// Segment is one step of the render trace.
//
// Text is the concatenation of the vocabulary pieces of Tokens.
type Segment struct {
	Kind   SegmentKind `json:"kind"`
	Turn   int         `json:"turn"` // -1 for sequence-level segments
	Text   string      `json:"text"`
	Tokens []int32     `json:"tokens"`
}

// Rendered is the output of one render pass.
//
// Text and Tokens are the concatenations of the segment texts and tokens, in order.
type Rendered struct {
	Version  Version   `json:"version"`
	Text     string    `json:"text"`
	Tokens   []int32   `json:"tokens"`
	Segments []Segment `json:"segments"`
}
