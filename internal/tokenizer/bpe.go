package tokenizer

import (
	"container/heap"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	// WordBoundary is the SentencePiece whitespace marker (U+2581).
	WordBoundary = "▁"

	// unknownSurface is what SentencePiece prints for the unknown piece.
	unknownSurface = " ⁇ "
)

// ErrUnencodable is returned when a symbol has no piece, no byte fallback and no unknown token.
var ErrUnencodable = errors.New("text cannot be encoded by vocabulary")

// SentencePiece implements the SentencePiece BPE model with byte fallback.
//
// This is the codec used by LLaMA and Mistral models: spaces become "▁", a dummy "▁" prefix
// marks the start of the text, adjacent symbols are merged greedily by piece score, and any
// symbol left without a piece is emitted as <0xHH> byte pieces.
//
// A SentencePiece is immutable after construction and safe for concurrent use.
type SentencePiece struct {
	vocab       Vocabulary
	pieceIDs    map[string]int32
	userDefined []string // longest first
	byteTokens  [256]int32
	hasBytes    bool
}

type symbol struct {
	text   string
	frozen bool // user-defined pieces are never merged further
}

// NewSentencePiece creates a SentencePiece codec from a validated vocabulary.
func NewSentencePiece(vocab *Vocabulary) (*SentencePiece, error) {
	if vocab == nil {
		return nil, ErrEmptyVocabulary
	}
	if err := vocab.Validate(); err != nil {
		return nil, fmt.Errorf("invalid vocabulary: %w", err)
	}

	sp := &SentencePiece{
		vocab: Vocabulary{
			Pieces:         slices.Clone(vocab.Pieces),
			Scores:         slices.Clone(vocab.Scores),
			Types:          slices.Clone(vocab.Types),
			BOS:            vocab.BOS,
			EOS:            vocab.EOS,
			UNK:            vocab.UNK,
			PAD:            vocab.PAD,
			AddDummyPrefix: vocab.AddDummyPrefix,
		},
		pieceIDs: make(map[string]int32, len(vocab.Pieces)),
	}
	for i := range sp.byteTokens {
		sp.byteTokens[i] = -1
	}

	bytesFound := 0
	for i, piece := range sp.vocab.Pieces {
		id := int32(i) //nolint:gosec // G115: vocabulary size fits in int32.
		sp.pieceIDs[piece] = id

		switch sp.vocab.Types[i] {
		case PieceByte:
			if b, ok := parseBytePiece(piece); ok && sp.byteTokens[b] < 0 {
				sp.byteTokens[b] = id
				bytesFound++
			}
		case PieceUserDefined:
			sp.userDefined = append(sp.userDefined, piece)
		}
	}
	sp.hasBytes = bytesFound == len(sp.byteTokens)

	sort.SliceStable(sp.userDefined, func(i, j int) bool {
		return len(sp.userDefined[i]) > len(sp.userDefined[j])
	})

	return sp, nil
}

// Encode converts text to token IDs.
//
// Empty text encodes to an empty slice; no bos/eos ids are added.
func (s *SentencePiece) Encode(text string) ([]int32, error) {
	if text == "" {
		return []int32{}, nil
	}

	symbols := s.merge(s.split(s.normalize(text)))

	tokens := make([]int32, 0, len(symbols))
	for _, sym := range symbols {
		var err error
		tokens, err = s.appendSymbol(tokens, sym.text)
		if err != nil {
			return nil, err
		}
	}

	return tokens, nil
}

func (s *SentencePiece) normalize(text string) string {
	text = strings.ReplaceAll(text, " ", WordBoundary)
	if s.vocab.AddDummyPrefix {
		text = WordBoundary + text
	}
	return text
}

// split breaks normalized text into initial symbols: user-defined pieces first, then runes.
func (s *SentencePiece) split(text string) []symbol {
	symbols := make([]symbol, 0, len(text))

	for len(text) > 0 {
		if ud := s.matchUserDefined(text); ud != "" {
			symbols = append(symbols, symbol{text: ud, frozen: true})
			text = text[len(ud):]
			continue
		}

		_, size := utf8.DecodeRuneInString(text)
		symbols = append(symbols, symbol{text: text[:size]})
		text = text[size:]
	}

	return symbols
}

func (s *SentencePiece) matchUserDefined(text string) string {
	for _, ud := range s.userDefined {
		if strings.HasPrefix(text, ud) {
			return ud
		}
	}
	return ""
}

// mergeCandidate is a heap entry for the pair starting at symbol pos.
type mergeCandidate struct {
	score      float32
	pos        int
	verL, verR int
}

// mergeHeap orders candidates by score, then by position (leftmost first).
type mergeHeap []mergeCandidate

func (h mergeHeap) Len() int { return len(h) }
func (h mergeHeap) Less(i, j int) bool {
	if h[i].score != h[j].score {
		return h[i].score > h[j].score
	}
	return h[i].pos < h[j].pos
}
func (h mergeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *mergeHeap) Push(x any)   { *h = append(*h, x.(mergeCandidate)) }
func (h *mergeHeap) Pop() any {
	old := *h
	c := old[len(old)-1]
	*h = old[:len(old)-1]
	return c
}

// merge repeatedly joins the adjacent pair forming the highest-scoring piece.
// Ties go to the leftmost pair.
//
// Symbols form a doubly linked list; a merge collapses into the left slot and bumps the
// version of both slots so heap entries naming either become stale.
func (s *SentencePiece) merge(symbols []symbol) []symbol {
	n := len(symbols)
	if n < 2 {
		return symbols
	}

	prev := make([]int, n)
	next := make([]int, n)
	for i := range symbols {
		prev[i] = i - 1
		next[i] = i + 1
	}
	next[n-1] = -1

	version := make([]int, n)
	h := make(mergeHeap, 0, n)

	push := func(i int) {
		if i == -1 {
			return
		}
		j := next[i]
		if j == -1 || symbols[i].frozen || symbols[j].frozen {
			return
		}
		id, ok := s.mergeable(symbols[i].text + symbols[j].text)
		if !ok {
			return
		}
		heap.Push(&h, mergeCandidate{
			score: s.vocab.Scores[id],
			pos:   i,
			verL:  version[i],
			verR:  version[j],
		})
	}

	for i := 0; i != -1; i = next[i] {
		push(i)
	}
	heap.Init(&h)

	for h.Len() > 0 {
		c := heap.Pop(&h).(mergeCandidate)
		i := c.pos
		j := next[i]
		if j == -1 || version[i] != c.verL || version[j] != c.verR {
			continue
		}

		symbols[i].text += symbols[j].text
		symbols[j].text = ""

		next[i] = next[j]
		if next[j] != -1 {
			prev[next[j]] = i
		}
		version[i]++
		version[j]++

		push(prev[i])
		push(i)
	}

	out := make([]symbol, 0, n)
	for i := 0; i != -1; i = next[i] {
		out = append(out, symbols[i])
	}
	return out
}

func (s *SentencePiece) mergeable(piece string) (int32, bool) {
	id, ok := s.pieceIDs[piece]
	if !ok {
		return 0, false
	}
	switch s.vocab.Types[id] {
	case PieceNormal, PieceUserDefined:
		return id, true
	default:
		return 0, false
	}
}

func (s *SentencePiece) appendSymbol(tokens []int32, text string) ([]int32, error) {
	if id, ok := s.pieceIDs[text]; ok {
		switch s.vocab.Types[id] {
		case PieceNormal, PieceUserDefined:
			return append(tokens, id), nil
		}
	}

	if s.hasBytes {
		for i := 0; i < len(text); i++ {
			tokens = append(tokens, s.byteTokens[text[i]])
		}
		return tokens, nil
	}

	if s.vocab.UNK >= 0 {
		return append(tokens, s.vocab.UNK), nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnencodable, text)
}

// Decode converts token IDs back to text.
//
// Control and unused pieces produce no output, byte pieces are reassembled into UTF-8 and the
// word-boundary marker becomes a space. The dummy prefix space is dropped from the first piece.
func (s *SentencePiece) Decode(tokens []int32) (string, error) {
	var sb strings.Builder
	var pending []byte
	atStart := s.vocab.AddDummyPrefix

	for _, id := range tokens {
		if err := s.checkRange(id); err != nil {
			return "", err
		}

		piece := s.vocab.Pieces[id]
		switch s.vocab.Types[id] {
		case PieceControl, PieceUnused:
			continue
		case PieceByte:
			if b, ok := parseBytePiece(piece); ok {
				pending = append(pending, b)
				atStart = false
				continue
			}
		}

		writeBytes(&sb, pending)
		pending = pending[:0]

		surface := unknownSurface
		if s.vocab.Types[id] != PieceUnknown {
			surface = strings.ReplaceAll(piece, WordBoundary, " ")
		}
		if atStart {
			surface = strings.TrimPrefix(surface, " ")
			atStart = false
		}
		sb.WriteString(surface)
	}
	writeBytes(&sb, pending)

	return sb.String(), nil
}

// writeBytes appends raw fallback bytes, replacing each invalid UTF-8 byte with U+FFFD.
func writeBytes(sb *strings.Builder, data []byte) {
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			sb.WriteRune(utf8.RuneError)
		} else {
			sb.Write(data[:size])
		}
		data = data[size:]
	}
}

func (s *SentencePiece) checkRange(id int32) error {
	if id < 0 || int(id) >= len(s.vocab.Pieces) {
		return fmt.Errorf("%w: %d (vocab size %d)", ErrTokenOutOfRange, id, len(s.vocab.Pieces))
	}
	return nil
}

// IDToPiece returns the raw vocabulary piece for a token ID.
func (s *SentencePiece) IDToPiece(id int32) (string, error) {
	if err := s.checkRange(id); err != nil {
		return "", err
	}
	return s.vocab.Pieces[id], nil
}

// PieceToID looks up the token ID of a raw vocabulary piece.
func (s *SentencePiece) PieceToID(piece string) (int32, bool) {
	id, ok := s.pieceIDs[piece]
	return id, ok
}

// Type returns the piece type of a token ID.
func (s *SentencePiece) Type(id int32) (PieceType, error) {
	if err := s.checkRange(id); err != nil {
		return 0, err
	}
	return s.vocab.Types[id], nil
}

// VocabSize returns the total vocabulary size.
func (s *SentencePiece) VocabSize() int {
	return len(s.vocab.Pieces)
}

// BosToken returns the beginning-of-sequence token ID.
func (s *SentencePiece) BosToken() int32 {
	return s.vocab.BOS
}

// EosToken returns the end-of-sequence token ID.
func (s *SentencePiece) EosToken() int32 {
	return s.vocab.EOS
}

// PadToken returns the padding token ID.
func (s *SentencePiece) PadToken() int32 {
	return s.vocab.PAD
}

// UnkToken returns the unknown token ID.
func (s *SentencePiece) UnkToken() int32 {
	return s.vocab.UNK
}

// IsSpecialToken reports whether the token is a control or unknown piece.
func (s *SentencePiece) IsSpecialToken(token int32) bool {
	if token < 0 || int(token) >= len(s.vocab.Types) {
		return false
	}
	switch s.vocab.Types[token] {
	case PieceControl, PieceUnknown:
		return true
	default:
		return false
	}
}
