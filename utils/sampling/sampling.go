// Package sampling implements secure sampling of bytes and integers.
package sampling

import (
	"crypto/rand"
	"encoding/binary"
	"io"
)

// RandUint64 return a random value between 0 and 0xFFFFFFFFFFFFFFFF.
func RandUint64() uint64 {
	b := []byte{0, 0, 0, 0, 0, 0, 0, 0}
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return binary.LittleEndian.Uint64(b)
}

// RandFloat64 returns a random float between min and max.
func RandFloat64(min, max float64) float64 {
	f := float64(RandUint64()) / 1.8446744073709552e+19
	return min + f*(max-min)
}

// RandComplex128 returns a random complex with the real and imaginary part between min and max.
func RandComplex128(min, max float64) complex128 {
	return complex(RandFloat64(min, max), RandFloat64(min, max))
}

// ReadUint64 reads a little-endian uint64 from prng.
func ReadUint64(prng io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(prng, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

// ReadUint64Slice fills c with little-endian uint64 read from prng.
func ReadUint64Slice(prng io.Reader, c []uint64) error {
	b := make([]byte, 8*len(c))
	if _, err := io.ReadFull(prng, b); err != nil {
		return err
	}
	for i := range c {
		c[i] = binary.LittleEndian.Uint64(b[i<<3:])
	}
	return nil
}
