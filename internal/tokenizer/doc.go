// Package tokenizer provides the subword codecs used to render instruction prompts.
//
// The tokenizer package implements:
//   - SentencePiece: the BPE model with byte fallback used by LLaMA and Mistral
//   - tiktoken: BPE tokenizer used by GPT-3/GPT-4 (cl100k_base, p50k_base)
//   - Loaders: GGUF tokenizer.ggml.* metadata and HuggingFace tokenizer.json
//
// SentencePiece text forms:
//   - "▁" marks a word boundary ("▁a" is " a")
//   - "<0xHH>" is a byte-fallback piece for a byte with no vocabulary entry
//   - "<s>" and "</s>" are control pieces; they decode to nothing
//
// Example usage:
//
//	// Load the vocabulary shipped in a GGUF file
//	tok, err := tokenizer.LoadFromGGUF("mistral-7b-v0.1.Q4_K_M.gguf")
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
