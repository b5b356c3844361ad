package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

const (
	// encodingCL100kBase is the encoding name for GPT-4 and GPT-3.5-turbo.
	encodingCL100kBase = "cl100k_base"
	// encodingP50kBase is the encoding name for GPT-3.
	encodingP50kBase = "p50k_base"
	// encodingR50kBase is the encoding name for older GPT-3 models.
	encodingR50kBase = "r50k_base"
)

// allSpecial lets special-token text such as <|endoftext|> encode to its own id.
var allSpecial = []string{"all"}

// TikToken wraps the pkoukk/tiktoken-go library for OpenAI tokenizers.
//
// TikToken has no beginning-of-sequence token, so it serves plain encode/decode
// tooling; instruction templates need a SentencePiece vocabulary.
type TikToken struct {
	encoding *tiktoken.Tiktoken
	name     string
}

// NewTikToken creates a new TikToken tokenizer with the specified encoding.
//
// Supported encodings: "cl100k_base" (GPT-4), "p50k_base" (GPT-3), "r50k_base".
func NewTikToken(encodingName string) (*TikToken, error) {
	encoding, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("failed to load tiktoken encoding %q: %w", encodingName, err)
	}

	return &TikToken{
		encoding: encoding,
		name:     encodingName,
	}, nil
}

// NewTikTokenForModel creates a TikToken tokenizer for a specific model.
//
// Example models: "gpt-4", "gpt-3.5-turbo", "text-embedding-ada-002".
func NewTikTokenForModel(modelName string) (*TikToken, error) {
	encoding, err := tiktoken.EncodingForModel(modelName)
	if err != nil {
		return nil, fmt.Errorf("failed to load tiktoken for model %q: %w", modelName, err)
	}

	return &TikToken{
		encoding: encoding,
		name:     modelName,
	}, nil
}

// Encode converts text to token IDs. Special-token text is encoded as ordinary text.
func (t *TikToken) Encode(text string) ([]int32, error) {
	return toInt32(t.encoding.Encode(text, nil, nil)), nil
}

// Decode converts token IDs back to text.
func (t *TikToken) Decode(tokens []int32) (string, error) {
	ids := make([]int, len(tokens))
	for i, tok := range tokens {
		if tok < 0 || int(tok) >= t.VocabSize() {
			return "", fmt.Errorf("%w: %d (vocab size %d)", ErrTokenOutOfRange, tok, t.VocabSize())
		}
		ids[i] = int(tok)
	}

	return t.encoding.Decode(ids), nil
}

// IDToPiece returns the raw bytes of a single token as a string.
func (t *TikToken) IDToPiece(id int32) (string, error) {
	return t.Decode([]int32{id})
}

// PieceToID returns the id of text that encodes to exactly one token.
func (t *TikToken) PieceToID(piece string) (int32, bool) {
	ids := t.encoding.Encode(piece, allSpecial, nil)
	if len(ids) != 1 {
		return 0, false
	}
	return int32(ids[0]), true //nolint:gosec // G115: Token ID fits in int32 - vocab size < 2^31.
}

func toInt32(tokens []int) []int32 {
	result := make([]int32, len(tokens))
	for i, tok := range tokens {
		result[i] = int32(tok) //nolint:gosec // G115: Token ID fits in int32 - vocab size < 2^31.
	}
	return result
}

// VocabSize returns the vocabulary size including special tokens.
func (t *TikToken) VocabSize() int {
	switch t.encodingName() {
	case encodingCL100kBase:
		return 100277
	case encodingP50kBase:
		return 50281
	case encodingR50kBase:
		return 50257
	default:
		return 100277
	}
}

func (t *TikToken) encodingName() string {
	switch t.name {
	case "gpt-4", "gpt-3.5-turbo", "text-embedding-ada-002":
		return encodingCL100kBase
	case "gpt-3", "text-davinci-003":
		return encodingP50kBase
	default:
		return t.name
	}
}

// BosToken returns -1: tiktoken encodings have no beginning-of-sequence token.
func (t *TikToken) BosToken() int32 {
	return -1
}

// EosToken returns the <|endoftext|> token ID.
func (t *TikToken) EosToken() int32 {
	switch t.encodingName() {
	case encodingCL100kBase:
		return 100257
	case encodingP50kBase, encodingR50kBase:
		return 50256
	default:
		return -1
	}
}

// PadToken returns -1: tiktoken doesn't define a padding token.
func (t *TikToken) PadToken() int32 {
	return -1
}

// UnkToken returns -1: byte-level BPE never produces unknown tokens.
func (t *TikToken) UnkToken() int32 {
	return -1
}

// IsSpecialToken checks if a token ID is a special token.
func (t *TikToken) IsSpecialToken(token int32) bool {
	if token == t.EosToken() {
		return true
	}

	// cl100k_base special tokens: 100257-100276.
	return t.encodingName() == encodingCL100kBase && token >= 100257 && token <= 100276
}

// Name returns the tokenizer name.
func (t *TikToken) Name() string {
	return t.name
}
