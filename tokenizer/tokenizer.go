// Package tokenizer provides the subword codecs the instruct templater renders with.
//
// This package wraps the internal tokenizer implementations and provides
// a clean public API for tokenization tasks.
//
// Supported vocabularies:
//   - SentencePiece BPE: Mistral and LLaMA vocabularies from GGUF files or tokenizer.json
//   - TikToken: OpenAI BPE encodings (GPT-3, GPT-4), for raw encoding only
//
// Example usage:
//
//	import "github.com/born-ml/instruct/tokenizer"
//
//	// Load a vocabulary
//	tok, err := tokenizer.AutoLoad("mistral-7b-instruct-v0.1.Q4_K_M.gguf")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Encode text
//	tokens, err := tok.Encode("Hello, world!")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Decode tokens
//	text, err := tok.Decode(tokens)
//	if err != nil {
//	    log.Fatal(err)
//	}
package tokenizer

import (
	"github.com/born-ml/instruct/internal/tokenizer"
)

// Tokenizer is the core interface for text tokenization.
//
// All tokenizer implementations must implement this interface.
type Tokenizer = tokenizer.Tokenizer

// SentencePiece is a SentencePiece BPE codec.
type SentencePiece = tokenizer.SentencePiece

// Vocabulary is a SentencePiece vocabulary: pieces, scores, piece types and special ids.
type Vocabulary = tokenizer.Vocabulary

// PieceType classifies a vocabulary piece.
type PieceType = tokenizer.PieceType

// Piece types.
const (
	PieceNormal      = tokenizer.PieceNormal
	PieceUnknown     = tokenizer.PieceUnknown
	PieceControl     = tokenizer.PieceControl
	PieceUserDefined = tokenizer.PieceUserDefined
	PieceUnused      = tokenizer.PieceUnused
	PieceByte        = tokenizer.PieceByte
)

// ExampleSource is the AutoLoad name of the built-in Mistral v1 vocabulary.
const ExampleSource = tokenizer.ExampleSource

// ErrTokenOutOfRange is returned when a token ID falls outside [0, VocabSize).
var ErrTokenOutOfRange = tokenizer.ErrTokenOutOfRange

// NewSentencePiece creates a codec over a validated vocabulary.
func NewSentencePiece(vocab *Vocabulary) (*SentencePiece, error) {
	return tokenizer.NewSentencePiece(vocab)
}

// NewTikToken creates a new TikToken tokenizer with the specified encoding.
//
// Supported encodings: "cl100k_base" (GPT-4), "p50k_base" (GPT-3).
func NewTikToken(encodingName string) (Tokenizer, error) {
	return tokenizer.NewTikToken(encodingName)
}

// NewTikTokenForModel creates a TikToken tokenizer for a specific model.
//
// Example models: "gpt-4", "gpt-3.5-turbo", "text-embedding-ada-002".
func NewTikTokenForModel(modelName string) (Tokenizer, error) {
	return tokenizer.NewTikTokenForModel(modelName)
}

// LoadFromHuggingFace loads a tokenizer from a HuggingFace model directory.
//
// The directory should contain tokenizer.json.
func LoadFromHuggingFace(modelPath string) (Tokenizer, error) {
	return tokenizer.LoadFromHuggingFace(modelPath)
}

// LoadFromGGUF loads the SentencePiece vocabulary embedded in a GGUF file.
func LoadFromGGUF(path string) (*SentencePiece, error) {
	return tokenizer.LoadFromGGUF(path)
}

// AutoLoad attempts to automatically load the correct tokenizer.
//
// It tries multiple strategies:
//  1. The built-in example vocabulary (ExampleSource)
//  2. A GGUF file
//  3. A tokenizer.json file or HuggingFace model directory
//  4. tiktoken by model name, then by encoding name
func AutoLoad(pathOrName string) (Tokenizer, error) {
	return tokenizer.AutoLoadTokenizer(pathOrName)
}

// ExampleMistralV1 returns the built-in Mistral v1 fixture vocabulary.
//
// It holds the 32000-entry id space with only the pieces needed for tests and examples.
func ExampleMistralV1() *SentencePiece {
	return tokenizer.ExampleMistralV1()
}
