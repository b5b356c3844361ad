package tokenizer

import (
	"errors"
	"fmt"

	"github.com/born-ml/instruct/internal/gguf"
)

// ggufSentencePieceModel is the tokenizer.ggml.model value for SentencePiece vocabularies.
const ggufSentencePieceModel = "llama"

// ErrUnsupportedModel is returned for vocabularies this package cannot run.
var ErrUnsupportedModel = errors.New("unsupported tokenizer model")

// VocabularyFromGGUF builds a SentencePiece vocabulary from tokenizer.ggml.* metadata.
func VocabularyFromGGUF(file *gguf.File) (*Vocabulary, error) {
	model, ok := file.String(gguf.KeyTokenizerModel)
	if !ok {
		return nil, fmt.Errorf("missing %s", gguf.KeyTokenizerModel)
	}
	if model != ggufSentencePieceModel {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedModel, model)
	}

	pieces, ok := file.Strings(gguf.KeyTokens)
	if !ok {
		return nil, fmt.Errorf("missing %s", gguf.KeyTokens)
	}

	scores, ok := file.Float32s(gguf.KeyScores)
	if !ok {
		scores = make([]float32, len(pieces))
	}

	vocab := &Vocabulary{
		Pieces:         pieces,
		Scores:         scores,
		Types:          make([]PieceType, len(pieces)),
		BOS:            ggufTokenID(file, gguf.KeyBOSID),
		EOS:            ggufTokenID(file, gguf.KeyEOSID),
		UNK:            ggufTokenID(file, gguf.KeyUNKID),
		PAD:            ggufTokenID(file, gguf.KeyPADID),
		AddDummyPrefix: true,
	}

	if types, ok := file.Int32s(gguf.KeyTokenType); ok {
		if len(types) != len(pieces) {
			return nil, fmt.Errorf("%w: %s has %d entries, want %d", ErrVocabLengths, gguf.KeyTokenType, len(types), len(pieces))
		}
		for i, t := range types {
			vocab.Types[i] = PieceType(t)
		}
	} else {
		for i := range vocab.Types {
			vocab.Types[i] = PieceNormal
		}
	}

	if prefix, ok := file.Bool(gguf.KeyAddSpacePrefix); ok {
		vocab.AddDummyPrefix = prefix
	}

	return vocab, nil
}

func ggufTokenID(file *gguf.File, key string) int32 {
	id, ok := file.Uint32(key)
	if !ok {
		return -1
	}
	return int32(id) //nolint:gosec // G115: token ids fit in int32.
}

// LoadFromGGUF loads a SentencePiece tokenizer from the vocabulary embedded in a GGUF file.
func LoadFromGGUF(path string) (*SentencePiece, error) {
	file, err := gguf.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read gguf: %w", err)
	}

	vocab, err := VocabularyFromGGUF(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read gguf vocabulary: %w", err)
	}

	return NewSentencePiece(vocab)
}

// GGUFMetadata encodes a vocabulary as GGUF tokenizer metadata.
func GGUFMetadata(vocab *Vocabulary, name string) []gguf.MetadataKV {
	types := make([]int32, len(vocab.Types))
	for i, t := range vocab.Types {
		types[i] = int32(t)
	}

	metadata := []gguf.MetadataKV{
		{Key: gguf.KeyArchitecture, Value: ggufSentencePieceModel},
		{Key: gguf.KeyName, Value: name},
		{Key: gguf.KeyTokenizerModel, Value: ggufSentencePieceModel},
		{Key: gguf.KeyTokens, Value: vocab.Pieces},
		{Key: gguf.KeyScores, Value: vocab.Scores},
		{Key: gguf.KeyTokenType, Value: types},
		{Key: gguf.KeyAddSpacePrefix, Value: vocab.AddDummyPrefix},
	}

	ids := []struct {
		key string
		id  int32
	}{
		{gguf.KeyBOSID, vocab.BOS},
		{gguf.KeyEOSID, vocab.EOS},
		{gguf.KeyUNKID, vocab.UNK},
		{gguf.KeyPADID, vocab.PAD},
	}
	for _, s := range ids {
		if s.id >= 0 {
			metadata = append(metadata, gguf.MetadataKV{Key: s.key, Value: uint32(s.id)})
		}
	}

	return metadata
}

// Vocabulary returns a copy of the codec's vocabulary.
func (s *SentencePiece) Vocabulary() *Vocabulary {
	v := s.vocab
	v.Pieces = append([]string(nil), s.vocab.Pieces...)
	v.Scores = append([]float32(nil), s.vocab.Scores...)
	v.Types = append([]PieceType(nil), s.vocab.Types...)
	return &v
}
