package rlwe

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// ParmsID is the 256-bit fingerprint of a parameter set. It is the only value
// used to compare or look up parameter sets.
type ParmsID [4]uint64

// ParmsIDZero is the reserved fingerprint: it never identifies a parameter set
// and marks plaintexts that are not in NTT form.
var ParmsIDZero = ParmsID{}

// IsZero returns true if id is [ParmsIDZero].
func (id ParmsID) IsZero() bool {
	return id == ParmsIDZero
}

func (id ParmsID) String() string {
	return fmt.Sprintf("%016x %016x %016x %016x", id[0], id[1], id[2], id[3])
}

// computeParmsID hashes the words (scheme, degree, q_0, ..., q_{L-1}, t) with BLAKE2b-256.
func computeParmsID(parms *EncryptionParameters) (id ParmsID) {

	words := make([]uint64, 0, 3+len(parms.coeffModulus))
	words = append(words, uint64(parms.scheme), uint64(parms.polyModulusDegree))
	for _, q := range parms.coeffModulus {
		words = append(words, q.Value())
	}
	words = append(words, parms.plainModulus.Value())

	p := make([]byte, 8*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint64(p[8*i:], w)
	}

	sum := blake2b.Sum256(p)
	for i := range id {
		id[i] = binary.LittleEndian.Uint64(sum[8*i:])
	}

	// Sanity check
	if id.IsZero() {
		panic(fmt.Errorf("parms_id cannot be zero"))
	}

	return
}
