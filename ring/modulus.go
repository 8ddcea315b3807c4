package ring

import (
	"bufio"
	"fmt"
	"io"
	"math/bits"

	"github.com/levelhe/levelhe/utils/buffer"
	"github.com/levelhe/levelhe/utils/serialization"
)

const (
	// ModulusBitCountMax is the largest bit-size of a [Modulus].
	ModulusBitCountMax = 61
	// ModulusBitCountMin is the smallest bit-size of a non-zero [Modulus].
	ModulusBitCountMin = 2
	// UserModulusBitCountMax is the largest bit-size of a coefficient or plaintext modulus.
	UserModulusBitCountMax = 60
	// UserModulusBitCountMin is the smallest bit-size of a coefficient or plaintext modulus.
	UserModulusBitCountMin = 2
)

// Modulus is an unsigned integer of at most 61 bits together with the
// constants needed to reduce 64- and 128-bit integers by it.
// A Modulus is immutable. The zero value is the zero modulus, which
// denotes an unset modulus. Two moduli are equal iff their values are equal.
type Modulus struct {
	value      uint64
	constRatio [3]uint64
	bitCount   int
	isPrime    bool
}

// NewModulus returns the [Modulus] of the given value.
// The value must be zero or between 2 and 2^61-1.
func NewModulus(value uint64) (m Modulus, err error) {

	if value == 0 {
		return
	}

	if value == 1 || bits.Len64(value) > ModulusBitCountMax {
		return m, fmt.Errorf("%w: value can be at most %d-bit and cannot be 1", ErrInvalidArgument, ModulusBitCountMax)
	}

	m.value = value
	m.bitCount = bits.Len64(value)
	m.constRatio = BRedParams(value)
	m.isPrime = IsPrime(value)

	return
}

// MustNewModulus is identical to [NewModulus] but panics on invalid values.
func MustNewModulus(value uint64) Modulus {
	m, err := NewModulus(value)
	if err != nil {
		panic(err)
	}
	return m
}

// NewModuli returns the moduli of the given values.
func NewModuli(values ...uint64) (moduli []Modulus, err error) {
	moduli = make([]Modulus, len(values))
	for i, v := range values {
		if moduli[i], err = NewModulus(v); err != nil {
			return nil, err
		}
	}
	return
}

// ModuliValues returns the values of the given moduli.
func ModuliValues(moduli []Modulus) (values []uint64) {
	values = make([]uint64, len(moduli))
	for i := range moduli {
		values[i] = moduli[i].value
	}
	return
}

// Value returns the value of the modulus.
func (m Modulus) Value() uint64 {
	return m.value
}

// BitCount returns the number of significant bits of the modulus.
func (m Modulus) BitCount() int {
	return m.bitCount
}

// UInt64Count returns the number of 64-bit words of the modulus.
func (m Modulus) UInt64Count() int {
	if m.value == 0 {
		return 0
	}
	return 1
}

// ConstRatio returns floor(2^128/value) as (low, high) words followed by the remainder 2^128 mod value.
func (m Modulus) ConstRatio() [3]uint64 {
	return m.constRatio
}

// IsZero returns true if the modulus is unset.
func (m Modulus) IsZero() bool {
	return m.value == 0
}

// IsPrime returns true if the value of the modulus is prime.
func (m Modulus) IsPrime() bool {
	return m.isPrime
}

// Reduce returns x mod m. It panics if the modulus is zero.
func (m Modulus) Reduce(x uint64) uint64 {
	if m.value == 0 {
		panic(fmt.Errorf("%w: cannot reduce modulo zero", ErrInvalidArgument))
	}
	return BRedAdd(x, m)
}

func (m Modulus) String() string {
	return fmt.Sprintf("Modulus(%d)", m.value)
}

// BinarySize returns the serialized size of the object in bytes.
func (m Modulus) BinarySize() int {
	return 8
}

// WriteTo writes the object on an [io.Writer].
func (m Modulus) WriteTo(w io.Writer) (n int64, err error) {
	switch w := w.(type) {
	case buffer.Writer:
		return buffer.WriteUint64(w, m.value)
	default:
		bw := bufio.NewWriter(w)
		if n, err = m.WriteTo(bw); err != nil {
			return
		}
		return n, bw.Flush()
	}
}

// ReadFrom reads on the object from an [io.Reader].
func (m *Modulus) ReadFrom(r io.Reader) (n int64, err error) {
	switch r := r.(type) {
	case buffer.Reader:
		var value uint64
		if n, err = buffer.ReadUint64(r, &value); err != nil {
			return
		}
		var mod Modulus
		if mod, err = NewModulus(value); err != nil {
			return n, err
		}
		*m = mod
		return
	default:
		return m.ReadFrom(bufio.NewReader(r))
	}
}

// SaveSize returns an upper bound on the number of bytes written by [Modulus.Save].
func (m Modulus) SaveSize(compr serialization.ComprModeType) (int, error) {
	return compr.SaveSize(m.BinarySize())
}

// Save writes the modulus preceded by a serialization header on w.
func (m Modulus) Save(w io.Writer, compr serialization.ComprModeType) (int64, error) {
	return serialization.Save(w, compr, m)
}

// Load reads a modulus written by [Modulus.Save] from r.
func (m *Modulus) Load(r io.Reader) (int64, error) {
	return serialization.Load(r, m)
}
