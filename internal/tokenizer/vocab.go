package tokenizer

import (
	"errors"
	"fmt"
	"strconv"
)

// PieceType classifies a vocabulary entry.
//
// Values follow the SentencePiece model proto, which GGUF reuses for tokenizer.ggml.token_type.
type PieceType int32

const (
	PieceNormal      PieceType = 1
	PieceUnknown     PieceType = 2
	PieceControl     PieceType = 3
	PieceUserDefined PieceType = 4
	PieceUnused      PieceType = 5
	PieceByte        PieceType = 6
)

// String returns the string representation of the piece type.
func (t PieceType) String() string {
	switch t {
	case PieceNormal:
		return "normal"
	case PieceUnknown:
		return "unknown"
	case PieceControl:
		return "control"
	case PieceUserDefined:
		return "user_defined"
	case PieceUnused:
		return "unused"
	case PieceByte:
		return "byte"
	default:
		return fmt.Sprintf("unknown(%d)", int32(t))
	}
}

// Vocabulary errors.
var (
	ErrEmptyVocabulary   = errors.New("vocabulary is empty")
	ErrVocabLengths      = errors.New("vocabulary arrays have mismatched lengths")
	ErrDuplicatePiece    = errors.New("duplicate vocabulary piece")
	ErrSpecialOutOfRange = errors.New("special token id outside vocabulary")
)

// Vocabulary is the data behind a SentencePiece BPE model.
//
// Pieces, Scores and Types are indexed by token ID. Special IDs are -1 when absent.
type Vocabulary struct {
	Pieces []string
	Scores []float32
	Types  []PieceType

	BOS int32
	EOS int32
	UNK int32
	PAD int32

	// AddDummyPrefix prepends the word-boundary marker to non-empty input
	// and strips the leading space from decoded output.
	AddDummyPrefix bool
}

// Validate checks the structural invariants of the vocabulary.
func (v *Vocabulary) Validate() error {
	n := len(v.Pieces)
	if n == 0 {
		return ErrEmptyVocabulary
	}
	if len(v.Scores) != n || len(v.Types) != n {
		return fmt.Errorf("%w: pieces=%d scores=%d types=%d", ErrVocabLengths, n, len(v.Scores), len(v.Types))
	}

	seen := make(map[string]int, n)
	for i, p := range v.Pieces {
		if j, ok := seen[p]; ok {
			return fmt.Errorf("%w: %q at ids %d and %d", ErrDuplicatePiece, p, j, i)
		}
		seen[p] = i
	}

	specials := []struct {
		name string
		id   int32
	}{
		{"bos", v.BOS},
		{"eos", v.EOS},
		{"unk", v.UNK},
		{"pad", v.PAD},
	}
	for _, s := range specials {
		if s.id < -1 || int(s.id) >= n {
			return fmt.Errorf("%w: %s=%d (vocab size %d)", ErrSpecialOutOfRange, s.name, s.id, n)
		}
	}

	return nil
}

// bytePiece returns the byte-fallback piece for b, e.g. "<0x0A>".
func bytePiece(b byte) string {
	return fmt.Sprintf("<0x%02X>", b)
}

// parseBytePiece extracts the byte value from a "<0xHH>" piece.
func parseBytePiece(piece string) (byte, bool) {
	if len(piece) != 6 || piece[:3] != "<0x" || piece[5] != '>' {
		return 0, false
	}
	b, err := strconv.ParseUint(piece[3:5], 16, 8)
	if err != nil {
		return 0, false
	}
	return byte(b), true
}
