package tokenizer

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
)

// Fingerprint returns the hex SHA-256 of the vocabulary's pieces, scores, types and special ids.
//
// Two vocabularies with equal fingerprints encode every input identically.
func (v *Vocabulary) Fingerprint() string {
	h := sha256.New()
	var buf [8]byte

	writeUint := func(x uint32) {
		binary.LittleEndian.PutUint32(buf[:4], x)
		h.Write(buf[:4])
	}

	writeUint(uint32(len(v.Pieces)))
	for i, p := range v.Pieces {
		writeUint(uint32(len(p)))
		h.Write([]byte(p))
		writeUint(math.Float32bits(v.Scores[i]))
		writeUint(uint32(v.Types[i]))
	}
	for _, id := range []int32{v.BOS, v.EOS, v.UNK, v.PAD} {
		writeUint(uint32(id))
	}
	if v.AddDummyPrefix {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}

	return hex.EncodeToString(h.Sum(nil))
}
