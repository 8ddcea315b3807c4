package sampling

import (
	"bufio"
	"crypto/rand"
	"fmt"
	"io"
	"sync"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/blake2b"

	"github.com/levelhe/levelhe/utils/buffer"
)

// SeedSize is the size in bytes of the seed of a [SeededPRNG].
const SeedSize = 64

// Seed is the key from which a [SeededPRNG] deterministically expands its stream.
type Seed [SeedSize]byte

// PRNGType identifies the extendable-output function backing a [SeededPRNG].
type PRNGType uint8

const (
	PRNGTypeUnknown PRNGType = iota
	PRNGTypeBlake2xb
	PRNGTypeBlake3
)

// DefaultPRNGType is the PRNG type used when none is specified.
const DefaultPRNGType = PRNGTypeBlake2xb

func (t PRNGType) String() string {
	switch t {
	case PRNGTypeBlake2xb:
		return "Blake2xb"
	case PRNGTypeBlake3:
		return "Blake3"
	default:
		return "Unknown"
	}
}

// PRNG is an interface for secure generation of random bytes.
type PRNG interface {
	io.Reader
}

// SeededPRNG is a [PRNG] whose stream is entirely determined by its [PRNGInfo].
type SeededPRNG interface {
	PRNG
	Info() PRNGInfo
	Reset()
}

// PRNGInfo is the compact description of a [SeededPRNG]: its type and seed.
// Objects whose pseudo-random half is stored as a seed serialize this structure
// in place of the expanded data.
type PRNGInfo struct {
	Type PRNGType
	Seed Seed
}

// BinarySize returns the serialized size of the object in bytes.
func (info PRNGInfo) BinarySize() int {
	return 1 + SeedSize
}

// WriteTo writes the object on an [io.Writer].
func (info PRNGInfo) WriteTo(w io.Writer) (n int64, err error) {
	switch w := w.(type) {
	case buffer.Writer:
		var inc int64
		if inc, err = buffer.WriteUint8(w, uint8(info.Type)); err != nil {
			return n + inc, err
		}
		n += inc
		if inc, err = buffer.Write(w, info.Seed[:]); err != nil {
			return n + inc, err
		}
		return n + inc, nil
	default:
		bw := bufio.NewWriter(w)
		if n, err = info.WriteTo(bw); err != nil {
			return
		}
		return n, bw.Flush()
	}
}

// ReadFrom reads on the object from an [io.Reader].
func (info *PRNGInfo) ReadFrom(r io.Reader) (n int64, err error) {
	switch r := r.(type) {
	case buffer.Reader:
		var inc int64
		var t uint8
		if inc, err = buffer.ReadUint8(r, &t); err != nil {
			return n + inc, err
		}
		n += inc
		info.Type = PRNGType(t)
		if info.Type != PRNGTypeBlake2xb && info.Type != PRNGTypeBlake3 {
			return n, fmt.Errorf("cannot ReadFrom: unsupported prng type %d", t)
		}
		if inc, err = buffer.Read(r, info.Seed[:]); err != nil {
			return n + inc, err
		}
		return n + inc, nil
	default:
		return info.ReadFrom(bufio.NewReader(r))
	}
}

// NewRandomSeed samples a fresh seed from the operating system randomness.
func NewRandomSeed() (seed Seed, err error) {
	if _, err = rand.Read(seed[:]); err != nil {
		return seed, fmt.Errorf("cannot NewRandomSeed: %w", err)
	}
	return
}

// NewSeededPRNG instantiates the [SeededPRNG] described by info.
func NewSeededPRNG(info PRNGInfo) (SeededPRNG, error) {
	switch info.Type {
	case PRNGTypeBlake2xb:
		prng, err := NewKeyedPRNG(info.Seed[:])
		if err != nil {
			return nil, err
		}
		return prng, nil
	case PRNGTypeBlake3:
		prng, err := NewBlake3PRNG(info.Seed[:])
		if err != nil {
			return nil, err
		}
		return prng, nil
	default:
		return nil, fmt.Errorf("cannot NewSeededPRNG: unsupported prng type %s", info.Type)
	}
}

// NewRandomSeededPRNG returns a [SeededPRNG] of the given type keyed with a fresh random seed.
func NewRandomSeededPRNG(t PRNGType) (SeededPRNG, error) {
	seed, err := NewRandomSeed()
	if err != nil {
		return nil, err
	}
	return NewSeededPRNG(PRNGInfo{Type: t, Seed: seed})
}

// ThreadSafePRNG reads from the operating system randomness and can be shared between goroutines.
type ThreadSafePRNG struct {
}

// NewPRNG returns a new PRNG that is thread-safe.
func NewPRNG() *ThreadSafePRNG {
	return &ThreadSafePRNG{}
}

// Read reads bytes from the operating system randomness on sum.
func (prng *ThreadSafePRNG) Read(sum []byte) (n int, err error) {
	return rand.Read(sum)
}

// KeyedPRNG is a structure storing the parameters used to securely and *deterministically* generate shared
// sequences of random bytes using the hash function blake2b in XOF mode.
// WARNING: KeyedPRNG should NOT be called by multiple threads. It does not make sense to do so as the resulting
// sequence will not be deterministic for a given key.
type KeyedPRNG struct {
	mutex sync.Mutex
	key   []byte
	xof   blake2b.XOF
}

// NewKeyedPRNG creates a new instance of KeyedPRNG.
// The key must be at most 64 bytes long.
func NewKeyedPRNG(key []byte) (*KeyedPRNG, error) {
	var err error
	prng := &KeyedPRNG{key: append([]byte{}, key...)}
	if prng.xof, err = blake2b.NewXOF(blake2b.OutputLengthUnknown, prng.key); err != nil {
		return nil, fmt.Errorf("cannot NewKeyedPRNG: %w", err)
	}
	return prng, nil
}

// Key returns a copy of the key used to seed the PRNG.
func (prng *KeyedPRNG) Key() (key []byte) {
	return append([]byte{}, prng.key...)
}

// Info returns the type and seed of the PRNG.
// Keys shorter than [SeedSize] are zero padded.
func (prng *KeyedPRNG) Info() (info PRNGInfo) {
	info.Type = PRNGTypeBlake2xb
	copy(info.Seed[:], prng.key)
	return
}

// Read reads bytes from the KeyedPRNG on sum.
func (prng *KeyedPRNG) Read(sum []byte) (n int, err error) {
	prng.mutex.Lock()
	defer prng.mutex.Unlock()
	return prng.xof.Read(sum)
}

// Reset resets the PRNG to its initial state.
func (prng *KeyedPRNG) Reset() {
	prng.mutex.Lock()
	defer prng.mutex.Unlock()
	prng.xof.Reset()
}

// Blake3PRNG deterministically expands a key into a stream of bytes using the
// extendable output of blake3.
type Blake3PRNG struct {
	mutex  sync.Mutex
	key    []byte
	digest *blake3.Digest
}

// NewBlake3PRNG creates a new instance of Blake3PRNG.
func NewBlake3PRNG(key []byte) (*Blake3PRNG, error) {
	prng := &Blake3PRNG{key: append([]byte{}, key...)}
	prng.Reset()
	return prng, nil
}

// Info returns the type and seed of the PRNG.
func (prng *Blake3PRNG) Info() (info PRNGInfo) {
	info.Type = PRNGTypeBlake3
	copy(info.Seed[:], prng.key)
	return
}

// Read reads bytes from the Blake3PRNG on sum.
func (prng *Blake3PRNG) Read(sum []byte) (n int, err error) {
	prng.mutex.Lock()
	defer prng.mutex.Unlock()
	return prng.digest.Read(sum)
}

// Reset resets the PRNG to its initial state.
func (prng *Blake3PRNG) Reset() {
	prng.mutex.Lock()
	defer prng.mutex.Unlock()
	h := blake3.New()
	// Hasher.Write never returns an error.
	_, _ = h.Write(prng.key)
	prng.digest = h.Digest()
}
