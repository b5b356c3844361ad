package tokenizer

import "fmt"

// ExampleSource is the AutoLoadTokenizer source name of the built-in Mistral v1 fixture.
const ExampleSource = "example:mistral-v1"

const mistralV1VocabSize = 32000

// mistralV1Pieces lists the Mistral v1 pieces needed to tokenize instruction markers,
// short single-letter turns and "SYSTEM", keyed by their real token IDs.
//
// Merged pieces score -id, as in the released model, so lower ids merge first.
var mistralV1Pieces = map[int32]string{
	264:   "▁a",
	277:   "▁c",
	281:   "▁d",
	287:   "▁b",
	318:   "▁S",
	733:   "▁[",
	775:   "IN",
	920:   "ST",
	1433:  "EM",
	16289: "INST",
	17121: "▁SY",
	22526: "STEM",
	28705: "▁",
	28708: "a",
	28715: "d",
	28717: "c",
	28726: "b",
	28735: "S",
	28737: "I",
	28738: "T",
	28748: "/",
	28749: "E",
	28755: "M",
	28759: "N",
	28792: "[",
	28793: "]",
	28802: "Y",
}

// ExampleMistralV1Vocab returns a 32000-entry vocabulary laid out like Mistral v1:
// 0 <unk>, 1 <s>, 2 </s>, 3..258 byte pieces, then normal pieces. Slots the fixture does not
// need are unused pieces, so every ID in range decodes.
func ExampleMistralV1Vocab() *Vocabulary {
	vocab := &Vocabulary{
		Pieces:         make([]string, mistralV1VocabSize),
		Scores:         make([]float32, mistralV1VocabSize),
		Types:          make([]PieceType, mistralV1VocabSize),
		BOS:            1,
		EOS:            2,
		UNK:            0,
		PAD:            -1,
		AddDummyPrefix: true,
	}

	for i := range vocab.Pieces {
		vocab.Pieces[i] = fmt.Sprintf("<unused%d>", i)
		vocab.Types[i] = PieceUnused
	}

	vocab.Pieces[0], vocab.Types[0] = "<unk>", PieceUnknown
	vocab.Pieces[1], vocab.Types[1] = "<s>", PieceControl
	vocab.Pieces[2], vocab.Types[2] = "</s>", PieceControl
	for b := 0; b < 256; b++ {
		vocab.Pieces[3+b] = bytePiece(byte(b))
		vocab.Types[3+b] = PieceByte
	}

	for id, piece := range mistralV1Pieces {
		vocab.Pieces[id] = piece
		vocab.Scores[id] = -float32(id)
		vocab.Types[id] = PieceNormal
	}

	return vocab
}

// ExampleMistralV1 creates a SentencePiece codec over ExampleMistralV1Vocab.
func ExampleMistralV1() *SentencePiece {
	sp, err := NewSentencePiece(ExampleMistralV1Vocab())
	if err != nil {
		panic(fmt.Sprintf("example vocabulary is invalid: %v", err))
	}
	return sp
}
