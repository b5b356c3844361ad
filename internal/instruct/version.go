package instruct

import (
	"fmt"
	"strings"
)

// Instruction markers.
const (
	MarkerBeginInstruction = "[INST]"
	MarkerEndInstruction   = "[/INST]"
)

// Version selects the instruction-marker encoding of a template.
type Version int

const (
	// V1 encodes "[INST] content [/INST]" as one text span (Mistral v1 vocabularies).
	V1 Version = iota + 1
	// V2 emits [INST] and [/INST] as dedicated control tokens (Mistral v2 and later vocabularies).
	//
	// The system prompt is still merged into the first user turn, as in V1. Upstream v2 and
	// later chat templates attach it to the last user message instead, so V2 token ids match
	// upstream only for conversations without a system prompt or with a single user turn.
	V2
)

// Versions lists the supported template versions.
func Versions() []Version {
	return []Version{V1, V2}
}

// ParseVersion parses "v1", "V2", "2" and similar.
func ParseVersion(s string) (Version, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "v1", "1":
		return V1, nil
	case "v2", "2":
		return V2, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownVersion, s)
	}
}

// String returns the string representation of the version.
func (v Version) String() string {
	switch v {
	case V1:
		return "v1"
	case V2:
		return "v2"
	default:
		return fmt.Sprintf("Version(%d)", int(v))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (v Version) MarshalText() ([]byte, error) {
	if !v.valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownVersion, int(v))
	}
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Version) UnmarshalText(text []byte) error {
	parsed, err := ParseVersion(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func (v Version) valid() bool {
	return v == V1 || v == V2
}

// controlInstructions reports whether the instruction markers are control tokens.
func (v Version) controlInstructions() bool {
	return v == V2
}
