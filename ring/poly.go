package ring

import (
	"bufio"
	"fmt"
	"io"

	"github.com/levelhe/levelhe/utils/buffer"
)

// Poly is the structure that contains the coefficients of a polynomial in RNS
// form: Coeffs[i] holds the N residues modulo the i-th prime.
type Poly struct {
	Coeffs [][]uint64 // Dimension-2 slice of coefficients (re-slice of Buff)
	Buff   []uint64   // Dimension-1 slice of coefficient
}

// NewPoly creates a new polynomial with N coefficients set to zero and Level+1 moduli.
func NewPoly(N, Level int) (pol Poly) {
	return NewPolyFromBuffer(make([]uint64, N*(Level+1)), N)
}

// NewPolyFromBuffer returns a polynomial of degree N whose limbs are
// consecutive windows of buff. len(buff) must be a multiple of N.
func NewPolyFromBuffer(buff []uint64, N int) (pol Poly) {
	if N == 0 || len(buff)%N != 0 {
		panic(fmt.Errorf("invalid buffer: len(buff)=%d is not a multiple of N=%d", len(buff), N))
	}
	pol.Buff = buff
	pol.Coeffs = make([][]uint64, len(buff)/N)
	for i := range pol.Coeffs {
		pol.Coeffs[i] = buff[i*N : (i+1)*N]
	}
	return
}

// Resize resizes the level of the target polynomial to the provided level.
// If the provided level is larger than the current level, then allocates zero
// coefficients, otherwise dereferences the coefficients above the provided level.
func (pol *Poly) Resize(level int) {
	N := pol.N()
	if pol.Level() > level {
		pol.Buff = pol.Buff[:N*(level+1)]
		pol.Coeffs = pol.Coeffs[:level+1]
	} else if level > pol.Level() {
		*pol = NewPolyFromBuffer(append(pol.Buff, make([]uint64, N*(level-pol.Level()))...), N)
	}
}

// N returns the number of coefficients of the polynomial, which equals the degree of the Ring cyclotomic polynomial.
func (pol Poly) N() int {
	if len(pol.Coeffs) == 0 {
		return 0
	}
	return len(pol.Coeffs[0])
}

// Level returns the current number of moduli minus 1.
func (pol Poly) Level() int {
	return len(pol.Coeffs) - 1
}

// Zero sets all coefficients of the target polynomial to 0.
func (pol Poly) Zero() {
	clear(pol.Buff)
}

// CopyNew creates an exact copy of the target polynomial.
func (pol Poly) CopyNew() (p1 Poly) {
	return NewPolyFromBuffer(append([]uint64(nil), pol.Buff...), pol.N())
}

// Copy copies the coefficients of p1 on the target polynomial.
// Only copies minLevel(pol, p1) levels.
func (pol Poly) Copy(p1 Poly) {
	for i := 0; i < len(pol.Coeffs) && i < len(p1.Coeffs); i++ {
		copy(pol.Coeffs[i], p1.Coeffs[i])
	}
}

// Equal returns true if the receiver Poly is equal to the provided other Poly.
// This function checks for strict equality between the polynomial coefficients.
func (pol Poly) Equal(other *Poly) bool {
	if other == nil || len(pol.Buff) != len(other.Buff) || pol.N() != other.N() {
		return false
	}
	for i := range pol.Buff {
		if other.Buff[i] != pol.Buff[i] {
			return false
		}
	}
	return true
}

// BinarySize returns the serialized size of the object in bytes.
func (pol Poly) BinarySize() (size int) {
	return 16 + 8*len(pol.Buff)
}

// WriteTo writes the object on an [io.Writer].
func (pol Poly) WriteTo(w io.Writer) (n int64, err error) {

	switch w := w.(type) {
	case buffer.Writer:

		var inc int64

		if inc, err = buffer.WriteUint64(w, uint64(pol.N())); err != nil {
			return n + inc, err
		}
		n += inc

		if inc, err = buffer.WriteUint64(w, uint64(len(pol.Coeffs))); err != nil {
			return n + inc, err
		}
		n += inc

		if inc, err = buffer.WriteUint64Slice(w, pol.Buff); err != nil {
			return n + inc, err
		}

		return n + inc, nil

	default:
		bw := bufio.NewWriter(w)
		if n, err = pol.WriteTo(bw); err != nil {
			return
		}
		return n, bw.Flush()
	}
}

// ReadFrom reads on the object from an [io.Reader].
// The backing array is reused if it has the correct size.
func (pol *Poly) ReadFrom(r io.Reader) (n int64, err error) {

	switch r := r.(type) {
	case buffer.Reader:

		var inc int64
		var N, limbs uint64

		if inc, err = buffer.ReadUint64(r, &N); err != nil {
			return n + inc, err
		}
		n += inc

		if inc, err = buffer.ReadUint64(r, &limbs); err != nil {
			return n + inc, err
		}
		n += inc

		if N == 0 || N > PolyModulusDegreeMax || limbs == 0 || limbs > CoeffModulusCountMax+1 {
			return n, fmt.Errorf("%w: invalid polynomial dimensions N=%d, limbs=%d", ErrInvalidArgument, N, limbs)
		}

		if pol.N() != int(N) || len(pol.Coeffs) != int(limbs) {
			*pol = NewPoly(int(N), int(limbs)-1)
		}

		if inc, err = buffer.ReadUint64Slice(r, pol.Buff); err != nil {
			return n + inc, err
		}

		return n + inc, nil

	default:
		return pol.ReadFrom(bufio.NewReader(r))
	}
}

// MarshalBinary encodes the object into a binary form on a newly allocated slice of bytes.
func (pol Poly) MarshalBinary() (p []byte, err error) {
	buf := buffer.NewBufferSize(pol.BinarySize())
	_, err = pol.WriteTo(buf)
	return buf.Bytes(), err
}

// UnmarshalBinary decodes a slice of bytes generated by [Poly.MarshalBinary] on the object.
func (pol *Poly) UnmarshalBinary(p []byte) (err error) {
	_, err = pol.ReadFrom(buffer.NewBuffer(p))
	return
}
