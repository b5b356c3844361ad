package tokenizer

import "errors"

// ErrTokenOutOfRange is returned when a token ID falls outside [0, VocabSize).
var ErrTokenOutOfRange = errors.New("token id out of range")

// Tokenizer is the core interface for text tokenization.
//
// All tokenizer implementations (SentencePiece, tiktoken) must implement this interface.
// Implementations are immutable after construction and safe for concurrent use.
type Tokenizer interface {
	// Encode converts text to token IDs.
	Encode(text string) ([]int32, error)

	// Decode converts token IDs back to text.
	Decode(tokens []int32) (string, error)

	// IDToPiece returns the raw vocabulary piece for a token ID.
	IDToPiece(id int32) (string, error)

	// PieceToID looks up the token ID of a raw vocabulary piece.
	PieceToID(piece string) (int32, bool)

	// VocabSize returns the total vocabulary size.
	VocabSize() int

	// BosToken returns the beginning-of-sequence token ID.
	// Returns -1 if not applicable.
	BosToken() int32

	// EosToken returns the end-of-sequence token ID.
	// Returns -1 if not applicable.
	EosToken() int32

	// PadToken returns the padding token ID.
	// Returns -1 if not applicable.
	PadToken() int32

	// UnkToken returns the unknown token ID.
	// Returns -1 if not applicable.
	UnkToken() int32

	// IsSpecialToken checks if a token ID is a special token.
	IsSpecialToken(token int32) bool
}
