// Package gguf reads and writes GGUF metadata.
//
// GGUF (GGML Universal Format) is the file format used by llama.cpp. Besides tensors, a GGUF
// file carries the model's tokenizer under the tokenizer.ggml.* metadata keys, which is what
// this package is used for: shipping a SentencePiece vocabulary in a single self-describing file.
//
// Specification: https://github.com/ggerganov/ggml/blob/master/docs/gguf.md
package gguf

import "fmt"

// Magic bytes for GGUF format.
const (
	MagicGGUFLE uint32 = 0x46554747 // "GGUF" little-endian.
	MagicGGUFBE uint32 = 0x47475546 // "GGUF" big-endian (reversed).
)

// Version constants.
const (
	Version1 uint32 = 1
	Version2 uint32 = 2
	Version3 uint32 = 3 // Current version.
)

// Tokenizer metadata keys written by llama.cpp converters.
const (
	KeyArchitecture   = "general.architecture"
	KeyName           = "general.name"
	KeyTokenizerModel = "tokenizer.ggml.model"
	KeyTokens         = "tokenizer.ggml.tokens"
	KeyScores         = "tokenizer.ggml.scores"
	KeyTokenType      = "tokenizer.ggml.token_type"
	KeyBOSID          = "tokenizer.ggml.bos_token_id"
	KeyEOSID          = "tokenizer.ggml.eos_token_id"
	KeyUNKID          = "tokenizer.ggml.unknown_token_id"
	KeyPADID          = "tokenizer.ggml.padding_token_id"
	KeyAddSpacePrefix = "tokenizer.ggml.add_space_prefix"
)

// ValueType represents the type of a metadata value.
type ValueType uint32

// Metadata value types as defined in GGUF specification.
const (
	ValueTypeUint8   ValueType = 0
	ValueTypeInt8    ValueType = 1
	ValueTypeUint16  ValueType = 2
	ValueTypeInt16   ValueType = 3
	ValueTypeUint32  ValueType = 4
	ValueTypeInt32   ValueType = 5
	ValueTypeFloat32 ValueType = 6
	ValueTypeBool    ValueType = 7
	ValueTypeString  ValueType = 8
	ValueTypeArray   ValueType = 9
	ValueTypeUint64  ValueType = 10
	ValueTypeInt64   ValueType = 11
	ValueTypeFloat64 ValueType = 12
)

var valueTypeNames = map[ValueType]string{
	ValueTypeUint8:   "uint8",
	ValueTypeInt8:    "int8",
	ValueTypeUint16:  "uint16",
	ValueTypeInt16:   "int16",
	ValueTypeUint32:  "uint32",
	ValueTypeInt32:   "int32",
	ValueTypeFloat32: "float32",
	ValueTypeBool:    "bool",
	ValueTypeString:  "string",
	ValueTypeArray:   "array",
	ValueTypeUint64:  "uint64",
	ValueTypeInt64:   "int64",
	ValueTypeFloat64: "float64",
}

// String returns the string representation of the value type.
func (t ValueType) String() string {
	if name, ok := valueTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", t)
}

// Header represents the GGUF file header.
type Header struct {
	Magic           uint32
	Version         uint32
	TensorCount     uint64
	MetadataKVCount uint64
}

// TensorInfo describes a tensor entry. Tensor data itself is never read.
type TensorInfo struct {
	Name       string
	Dimensions []uint64
	Type       uint32
	Offset     uint64
}

// MetadataKV represents a key-value pair in the metadata.
type MetadataKV struct {
	Key   string
	Value any
}

// File represents a parsed GGUF file.
type File struct {
	Header     Header
	Metadata   map[string]any
	TensorInfo []TensorInfo

	// Source info.
	FilePath string
}

// Architecture returns the model architecture (e.g., "llama").
func (f *File) Architecture() string {
	s, _ := f.String(KeyArchitecture)
	return s
}

// Name returns the model name.
func (f *File) Name() string {
	s, _ := f.String(KeyName)
	return s
}

// VocabSize returns the number of tokenizer tokens, or 0 without a vocabulary.
func (f *File) VocabSize() int {
	tokens, _ := f.Strings(KeyTokens)
	return len(tokens)
}

// String returns a string metadata value.
func (f *File) String(key string) (string, bool) {
	v, ok := f.Metadata[key].(string)
	return v, ok
}

// Bool returns a bool metadata value.
func (f *File) Bool(key string) (bool, bool) {
	v, ok := f.Metadata[key].(bool)
	return v, ok
}

// Uint32 returns an unsigned integer metadata value stored with any integer width.
func (f *File) Uint32(key string) (uint32, bool) {
	switch v := f.Metadata[key].(type) {
	case uint8:
		return uint32(v), true
	case uint16:
		return uint32(v), true
	case uint32:
		return v, true
	case uint64:
		return uint32(v), v <= 1<<32-1 //nolint:gosec // G115: bounds checked.
	case int32:
		return uint32(v), v >= 0 //nolint:gosec // G115: sign checked.
	case int64:
		return uint32(v), v >= 0 && v <= 1<<32-1 //nolint:gosec // G115: bounds checked.
	default:
		return 0, false
	}
}

// Strings returns a string array metadata value.
func (f *File) Strings(key string) ([]string, bool) {
	v, ok := f.Metadata[key].([]string)
	return v, ok
}

// Float32s returns a float32 array metadata value.
func (f *File) Float32s(key string) ([]float32, bool) {
	v, ok := f.Metadata[key].([]float32)
	return v, ok
}

// Int32s returns an int32 array metadata value; uint32 arrays are converted.
func (f *File) Int32s(key string) ([]int32, bool) {
	switch v := f.Metadata[key].(type) {
	case []int32:
		return v, true
	case []uint32:
		out := make([]int32, len(v))
		for i, x := range v {
			out[i] = int32(x) //nolint:gosec // G115: token types are small.
		}
		return out, true
	default:
		return nil, false
	}
}
