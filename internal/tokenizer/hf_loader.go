package tokenizer

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// HFTokenizerType identifies the tokenizer implementation type.
type HFTokenizerType string

const (
	// HFTypeBPE indicates Byte-Pair Encoding tokenizer.
	HFTypeBPE HFTokenizerType = "BPE"

	// HFTypeWordPiece indicates WordPiece tokenizer (BERT-style).
	HFTypeWordPiece HFTokenizerType = "WordPiece"

	// HFTypeUnigram indicates Unigram tokenizer (SentencePiece-style).
	HFTypeUnigram HFTokenizerType = "Unigram"

	// HFTypeUnknown indicates an unknown or unsupported tokenizer type.
	HFTypeUnknown HFTokenizerType = "Unknown"
)

// HFTokenizerMetadata contains metadata from tokenizer.json.
type HFTokenizerMetadata struct {
	Type          HFTokenizerType
	VocabSize     int
	HasBOS        bool
	HasEOS        bool
	HasPAD        bool
	HasUNK        bool
	ByteFallback  bool
	TokenizerType string
}

// hfTokenizerJSON is the subset of tokenizer.json this package understands.
type hfTokenizerJSON struct {
	Model struct {
		Type         string            `json:"type"`
		Vocab        map[string]int    `json:"vocab"`
		Merges       []json.RawMessage `json:"merges"`
		ByteFallback bool              `json:"byte_fallback"`
		UnkToken     string            `json:"unk_token"`
	} `json:"model"`
	AddedTokens []struct {
		ID      int    `json:"id"`
		Content string `json:"content"`
		Special bool   `json:"special"`
	} `json:"added_tokens"`
	Normalizer   *hfComponent `json:"normalizer"`
	PreTokenizer *hfComponent `json:"pre_tokenizer"`
}

// hfComponent covers normalizers and pre-tokenizers, including Sequence nesting.
type hfComponent struct {
	Type           string        `json:"type"`
	Prepend        string        `json:"prepend"`
	PrependScheme  string        `json:"prepend_scheme"`
	AddPrefixSpace *bool         `json:"add_prefix_space"`
	Normalizers    []hfComponent `json:"normalizers"`
	Pretokenizers  []hfComponent `json:"pretokenizers"`
}

func (c *hfComponent) walk(fn func(*hfComponent)) {
	if c == nil {
		return
	}
	fn(c)
	for i := range c.Normalizers {
		c.Normalizers[i].walk(fn)
	}
	for i := range c.Pretokenizers {
		c.Pretokenizers[i].walk(fn)
	}
}

func readHFTokenizerJSON(path string) (*hfTokenizerJSON, error) {
	//nolint:gosec // Loading tokenizer from user-specified path is intentional.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tokenizer.json: %w", err)
	}

	var raw hfTokenizerJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse tokenizer.json: %w", err)
	}

	return &raw, nil
}

// DetectHFTokenizerType determines the tokenizer type from tokenizer.json.
func DetectHFTokenizerType(path string) (*HFTokenizerMetadata, error) {
	raw, err := readHFTokenizerJSON(path)
	if err != nil {
		return nil, err
	}

	metadata := &HFTokenizerMetadata{
		Type:          HFTypeUnknown,
		TokenizerType: raw.Model.Type,
		VocabSize:     len(raw.Model.Vocab),
		ByteFallback:  raw.Model.ByteFallback,
	}

	switch raw.Model.Type {
	case "BPE":
		metadata.Type = HFTypeBPE
	case "WordPiece":
		metadata.Type = HFTypeWordPiece
	case "Unigram":
		metadata.Type = HFTypeUnigram
	}

	for _, token := range raw.AddedTokens {
		switch token.Content {
		case "<s>", "<bos>", "[CLS]":
			metadata.HasBOS = true
		case "</s>", "<eos>", "[SEP]":
			metadata.HasEOS = true
		case "<pad>", "[PAD]":
			metadata.HasPAD = true
		case "<unk>", "[UNK]":
			metadata.HasUNK = true
		}
	}

	return metadata, nil
}

// LoadSentencePieceFromHuggingFace loads a SentencePiece-style BPE tokenizer from tokenizer.json.
//
// The i-th merge rule gives its merged piece the score -i, which reproduces HuggingFace merge
// priority under the SentencePiece score-driven merge loop. Byte-level (GPT-2 style) models are
// rejected; use tiktoken for those.
func LoadSentencePieceFromHuggingFace(path string) (*SentencePiece, error) {
	raw, err := readHFTokenizerJSON(path)
	if err != nil {
		return nil, err
	}

	if raw.Model.Type != string(HFTypeBPE) {
		return nil, fmt.Errorf("%w: model type %q", ErrUnsupportedModel, raw.Model.Type)
	}

	byteLevel := false
	raw.PreTokenizer.walk(func(c *hfComponent) {
		if c.Type == "ByteLevel" {
			byteLevel = true
		}
	})
	if byteLevel {
		return nil, fmt.Errorf("%w: byte-level BPE", ErrUnsupportedModel)
	}

	vocab, err := hfVocabulary(raw)
	if err != nil {
		return nil, err
	}

	return NewSentencePiece(vocab)
}

// ErrNegativeTokenID is returned for tokenizer.json entries with an id below zero.
var ErrNegativeTokenID = errors.New("negative token id")

//nolint:gocognit // Vocabulary assembly walks vocab, added tokens and merges in turn.
func hfVocabulary(raw *hfTokenizerJSON) (*Vocabulary, error) {
	size := 0
	for piece, id := range raw.Model.Vocab {
		if id < 0 {
			return nil, fmt.Errorf("%w: %d for piece %q", ErrNegativeTokenID, id, piece)
		}
		size = max(size, id+1)
	}
	for _, token := range raw.AddedTokens {
		if token.ID < 0 {
			return nil, fmt.Errorf("%w: %d for added token %q", ErrNegativeTokenID, token.ID, token.Content)
		}
		size = max(size, token.ID+1)
	}
	if size == 0 {
		return nil, ErrEmptyVocabulary
	}

	vocab := &Vocabulary{
		Pieces:         make([]string, size),
		Scores:         make([]float32, size),
		Types:          make([]PieceType, size),
		BOS:            -1,
		EOS:            -1,
		UNK:            -1,
		PAD:            -1,
		AddDummyPrefix: hfAddsDummyPrefix(raw),
	}

	filled := make([]bool, size)
	for piece, id := range raw.Model.Vocab {
		vocab.Pieces[id] = piece
		vocab.Types[id] = PieceNormal
		if _, ok := parseBytePiece(piece); ok {
			vocab.Types[id] = PieceByte
		}
		filled[id] = true
	}

	for _, token := range raw.AddedTokens {
		vocab.Pieces[token.ID] = token.Content
		vocab.Types[token.ID] = PieceUserDefined
		if token.Special {
			vocab.Types[token.ID] = PieceControl
		}
		filled[token.ID] = true

		id := int32(token.ID) //nolint:gosec // G115: token ids fit in int32.
		switch strings.ToLower(token.Content) {
		case "<s>", "<bos>":
			vocab.BOS = id
		case "</s>", "<eos>":
			vocab.EOS = id
		case "<pad>":
			vocab.PAD = id
		case "<unk>":
			vocab.UNK = id
		}
	}

	if id, ok := raw.Model.Vocab[raw.Model.UnkToken]; ok && raw.Model.UnkToken != "" {
		vocab.UNK = int32(id) //nolint:gosec // G115: token ids fit in int32.
	}
	if vocab.UNK >= 0 {
		vocab.Types[vocab.UNK] = PieceUnknown
	}

	// Unmerged pieces rank below every merge.
	for i := range vocab.Scores {
		vocab.Scores[i] = -float32(len(raw.Model.Merges) + i)
		if !filled[i] {
			vocab.Pieces[i] = fmt.Sprintf("<unused%d>", i)
			vocab.Types[i] = PieceUnused
		}
	}

	scored := make(map[string]bool, len(raw.Model.Merges))
	for rank, m := range raw.Model.Merges {
		left, right, err := parseHFMerge(m)
		if err != nil {
			return nil, fmt.Errorf("merge %d: %w", rank, err)
		}
		merged := left + right
		if scored[merged] {
			continue
		}
		if id, ok := raw.Model.Vocab[merged]; ok {
			vocab.Scores[id] = -float32(rank)
			scored[merged] = true
		}
	}

	return vocab, nil
}

// parseHFMerge accepts both the "a b" and ["a", "b"] merge encodings.
func parseHFMerge(m json.RawMessage) (string, string, error) {
	var s string
	if err := json.Unmarshal(m, &s); err == nil {
		parts := strings.Split(s, " ")
		if len(parts) != 2 {
			return "", "", fmt.Errorf("malformed merge %q", s)
		}
		return parts[0], parts[1], nil
	}

	var pair []string
	if err := json.Unmarshal(m, &pair); err != nil || len(pair) != 2 {
		return "", "", fmt.Errorf("malformed merge %s", string(m))
	}
	return pair[0], pair[1], nil
}

func hfAddsDummyPrefix(raw *hfTokenizerJSON) bool {
	prefix := false
	raw.Normalizer.walk(func(c *hfComponent) {
		if c.Type == "Prepend" && c.Prepend == WordBoundary {
			prefix = true
		}
	})
	raw.PreTokenizer.walk(func(c *hfComponent) {
		if c.Type != "Metaspace" {
			return
		}
		switch {
		case c.PrependScheme != "":
			prefix = c.PrependScheme != "never"
		case c.AddPrefixSpace != nil:
			prefix = *c.AddPrefixSpace
		default:
			prefix = true
		}
	})
	return prefix
}

// LoadFromHuggingFace loads a tokenizer from a HuggingFace model directory.
//
// The directory should contain tokenizer.json.
func LoadFromHuggingFace(modelPath string) (Tokenizer, error) {
	tokenizerPath := filepath.Join(modelPath, "tokenizer.json")

	metadata, err := DetectHFTokenizerType(tokenizerPath)
	if err != nil {
		return nil, err
	}

	switch metadata.Type {
	case HFTypeBPE:
		return LoadSentencePieceFromHuggingFace(tokenizerPath)
	case HFTypeWordPiece:
		return nil, fmt.Errorf("%w: WordPiece", ErrUnsupportedModel)
	case HFTypeUnigram:
		return nil, fmt.Errorf("%w: Unigram", ErrUnsupportedModel)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedModel, metadata.TokenizerType)
	}
}

// TryLoadTikToken attempts to load a tiktoken-compatible tokenizer.
//
// This is a fallback for models that use OpenAI-style tokenizers.
func TryLoadTikToken(modelName string) (Tokenizer, error) {
	encodingMap := map[string]string{
		"gpt-4":                  "cl100k_base",
		"gpt-3.5-turbo":          "cl100k_base",
		"gpt-3":                  "p50k_base",
		"text-davinci-003":       "p50k_base",
		"text-embedding-ada-002": "cl100k_base",
	}

	if encoding, ok := encodingMap[modelName]; ok {
		return NewTikToken(encoding)
	}

	return NewTikTokenForModel(modelName)
}

// AutoLoadTokenizer attempts to automatically load the correct tokenizer.
//
// It tries multiple strategies:
//  1. The built-in example vocabulary (ExampleSource)
//  2. A GGUF file carrying tokenizer.ggml.* metadata
//  3. A tokenizer.json file or a HuggingFace model directory containing one
//  4. tiktoken by model name, then by encoding name
func AutoLoadTokenizer(pathOrName string) (Tokenizer, error) {
	if pathOrName == ExampleSource {
		return ExampleMistralV1(), nil
	}

	if info, err := os.Stat(pathOrName); err == nil {
		switch {
		case info.IsDir():
			return LoadFromHuggingFace(pathOrName)
		case strings.EqualFold(filepath.Ext(pathOrName), ".gguf"):
			return LoadFromGGUF(pathOrName)
		case filepath.Base(pathOrName) == "tokenizer.json":
			return LoadSentencePieceFromHuggingFace(pathOrName)
		default:
			return nil, fmt.Errorf("unrecognized tokenizer file %q", pathOrName)
		}
	}

	if tokenizer, err := TryLoadTikToken(pathOrName); err == nil {
		return tokenizer, nil
	}

	if tokenizer, err := NewTikToken(pathOrName); err == nil {
		return tokenizer, nil
	}

	return nil, fmt.Errorf("failed to auto-load tokenizer from %q", pathOrName)
}
