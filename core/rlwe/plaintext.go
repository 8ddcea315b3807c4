package rlwe

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/levelhe/levelhe/ring"
	"github.com/levelhe/levelhe/utils/buffer"
	"github.com/levelhe/levelhe/utils/serialization"
)

// Plaintext is a polynomial with word-sized coefficients.
//
// A Plaintext with a zero [ParmsID] holds coefficients modulo the plaintext
// modulus, the lowest degree first. A Plaintext with a non-zero [ParmsID] is
// in NTT form and holds, for each prime of that level, the N residues of the
// polynomial. CKKS plaintexts are always in NTT form and carry a Scale.
type Plaintext struct {
	coeffs  []uint64
	parmsID ParmsID
	Scale   float64
}

// NewPlaintext allocates a zero plaintext with coeffCount coefficients.
func NewPlaintext(coeffCount int) *Plaintext {
	return &Plaintext{coeffs: make([]uint64, coeffCount), Scale: 1}
}

// NewPlaintextFromString parses a polynomial written in hexadecimal as
// "7FFx^3 + 1x^1 + 3": terms are separated by '+', each term is a hexadecimal
// coefficient optionally followed by x^k with k in decimal.
func NewPlaintextFromString(s string) (pt *Plaintext, err error) {

	type term struct {
		coeff  uint64
		degree int
	}

	var terms []term
	maxDegree := -1

	for _, t := range strings.Split(s, "+") {

		t = strings.TrimSpace(t)
		if t == "" {
			return nil, fmt.Errorf("%w: invalid polynomial %q: empty term", ErrInvalidArgument, s)
		}

		coeffStr, degree := t, 0
		if i := strings.IndexAny(t, "xX"); i >= 0 {
			coeffStr = strings.TrimSpace(t[:i])
			rest := strings.TrimSpace(t[i+1:])
			if !strings.HasPrefix(rest, "^") {
				return nil, fmt.Errorf("%w: invalid polynomial %q: term %q has no exponent", ErrInvalidArgument, s, t)
			}
			if degree, err = strconv.Atoi(strings.TrimSpace(rest[1:])); err != nil || degree < 0 || degree >= ring.PolyModulusDegreeMax {
				return nil, fmt.Errorf("%w: invalid polynomial %q: bad exponent in term %q", ErrInvalidArgument, s, t)
			}
		}

		var coeff uint64
		if coeff, err = strconv.ParseUint(coeffStr, 16, 64); err != nil {
			return nil, fmt.Errorf("%w: invalid polynomial %q: bad coefficient in term %q", ErrInvalidArgument, s, t)
		}

		terms = append(terms, term{coeff, degree})
		if degree > maxDegree {
			maxDegree = degree
		}
	}

	pt = NewPlaintext(maxDegree + 1)
	for _, t := range terms {
		pt.coeffs[t.degree] = t.coeff
	}

	return
}

// String returns the polynomial in the format read by [NewPlaintextFromString].
// It is only meaningful for plaintexts that are not in NTT form.
func (pt Plaintext) String() string {

	var sb strings.Builder

	for i := pt.SignificantCoeffCount() - 1; i >= 0; i-- {

		if pt.coeffs[i] == 0 {
			continue
		}

		if sb.Len() > 0 {
			sb.WriteString(" + ")
		}

		sb.WriteString(strings.ToUpper(strconv.FormatUint(pt.coeffs[i], 16)))

		if i > 0 {
			sb.WriteString("x^")
			sb.WriteString(strconv.Itoa(i))
		}
	}

	if sb.Len() == 0 {
		return "0"
	}

	return sb.String()
}

// Coeffs returns the coefficients of the plaintext. The slice aliases the plaintext.
func (pt *Plaintext) Coeffs() []uint64 {
	return pt.coeffs
}

// CoeffCount returns the number of coefficients of the plaintext.
func (pt Plaintext) CoeffCount() int {
	return len(pt.coeffs)
}

// Capacity returns the number of coefficients the plaintext can hold without reallocating.
func (pt Plaintext) Capacity() int {
	return cap(pt.coeffs)
}

// Reserve reallocates the plaintext to hold capacity coefficients.
// The coefficient count is truncated if it exceeds the capacity.
func (pt *Plaintext) Reserve(capacity int) {
	if capacity < 0 {
		capacity = 0
	}
	n := min(len(pt.coeffs), capacity)
	coeffs := make([]uint64, n, capacity)
	copy(coeffs, pt.coeffs)
	pt.coeffs = coeffs
}

// Resize sets the number of coefficients of the plaintext. New coefficients are zero.
func (pt *Plaintext) Resize(coeffCount int) {
	if coeffCount < 0 {
		coeffCount = 0
	}
	switch {
	case coeffCount <= len(pt.coeffs):
		pt.coeffs = pt.coeffs[:coeffCount]
	case coeffCount <= cap(pt.coeffs):
		old := len(pt.coeffs)
		pt.coeffs = pt.coeffs[:coeffCount]
		clear(pt.coeffs[old:])
	default:
		pt.coeffs = append(pt.coeffs, make([]uint64, coeffCount-len(pt.coeffs))...)
	}
}

// SetZero sets all the coefficients to zero.
func (pt *Plaintext) SetZero() {
	clear(pt.coeffs)
}

// IsZero returns true if all the coefficients are zero.
func (pt Plaintext) IsZero() bool {
	for _, c := range pt.coeffs {
		if c != 0 {
			return false
		}
	}
	return true
}

// SignificantCoeffCount returns one plus the index of the last non-zero coefficient.
func (pt Plaintext) SignificantCoeffCount() int {
	for i := len(pt.coeffs) - 1; i >= 0; i-- {
		if pt.coeffs[i] != 0 {
			return i + 1
		}
	}
	return 0
}

// NonzeroCoeffCount returns the number of non-zero coefficients.
func (pt Plaintext) NonzeroCoeffCount() (count int) {
	for _, c := range pt.coeffs {
		if c != 0 {
			count++
		}
	}
	return
}

// IsNTTForm returns true if the plaintext is in NTT form, i.e. has a non-zero [ParmsID].
func (pt Plaintext) IsNTTForm() bool {
	return !pt.parmsID.IsZero()
}

// ParmsID returns the fingerprint of the level of the plaintext.
func (pt Plaintext) ParmsID() ParmsID {
	return pt.parmsID
}

// SetParmsID sets the fingerprint of the level of the plaintext.
// Setting a non-zero fingerprint marks the plaintext as being in NTT form.
func (pt *Plaintext) SetParmsID(id ParmsID) {
	pt.parmsID = id
}

// Poly returns a view of the coefficients of an NTT-form plaintext as a
// polynomial of degree N.
func (pt *Plaintext) Poly(N int) ring.Poly {
	return ring.NewPolyFromBuffer(pt.coeffs, N)
}

// CopyNew returns a deep copy of the plaintext.
func (pt Plaintext) CopyNew() *Plaintext {
	return &Plaintext{coeffs: append([]uint64(nil), pt.coeffs...), parmsID: pt.parmsID, Scale: pt.Scale}
}

// Copy copies other on the target plaintext.
func (pt *Plaintext) Copy(other *Plaintext) {
	if pt == other {
		return
	}
	pt.Resize(len(other.coeffs))
	copy(pt.coeffs, other.coeffs)
	pt.parmsID = other.parmsID
	pt.Scale = other.Scale
}

// Equal returns true if the two plaintexts have the same coefficients and metadata.
func (pt Plaintext) Equal(other *Plaintext) bool {
	if other == nil || pt.parmsID != other.parmsID || pt.Scale != other.Scale || len(pt.coeffs) != len(other.coeffs) {
		return false
	}
	for i := range pt.coeffs {
		if pt.coeffs[i] != other.coeffs[i] {
			return false
		}
	}
	return true
}

// BinarySize returns the serialized size of the object in bytes.
func (pt Plaintext) BinarySize() int {
	return 32 + 8 + 8 + 8*len(pt.coeffs)
}

// WriteTo writes the object on an [io.Writer].
func (pt Plaintext) WriteTo(w io.Writer) (n int64, err error) {
	switch w := w.(type) {
	case buffer.Writer:

		var inc int64

		if inc, err = buffer.WriteUint64Slice(w, pt.parmsID[:]); err != nil {
			return n + inc, err
		}
		n += inc

		if inc, err = buffer.WriteUint64(w, uint64(len(pt.coeffs))); err != nil {
			return n + inc, err
		}
		n += inc

		if inc, err = buffer.WriteFloat64(w, pt.Scale); err != nil {
			return n + inc, err
		}
		n += inc

		if inc, err = buffer.WriteUint64Slice(w, pt.coeffs); err != nil {
			return n + inc, err
		}

		return n + inc, nil

	default:
		bw := bufio.NewWriter(w)
		if n, err = pt.WriteTo(bw); err != nil {
			return
		}
		return n, bw.Flush()
	}
}

// ReadFrom reads on the object from an [io.Reader].
func (pt *Plaintext) ReadFrom(r io.Reader) (n int64, err error) {
	switch r := r.(type) {
	case buffer.Reader:

		var inc int64

		var id ParmsID
		if inc, err = buffer.ReadUint64Slice(r, id[:]); err != nil {
			return n + inc, err
		}
		n += inc

		var count uint64
		if inc, err = buffer.ReadUint64(r, &count); err != nil {
			return n + inc, err
		}
		n += inc

		if count > ring.PolyModulusDegreeMax*ring.CoeffModulusCountMax {
			return n, fmt.Errorf("%w: coefficient count %d is out of range", ErrInvalidArgument, count)
		}

		var scale float64
		if inc, err = buffer.ReadFloat64(r, &scale); err != nil {
			return n + inc, err
		}
		n += inc

		coeffs := make([]uint64, count)
		if inc, err = buffer.ReadUint64Slice(r, coeffs); err != nil {
			return n + inc, err
		}
		n += inc

		pt.parmsID = id
		pt.Scale = scale
		pt.coeffs = coeffs

		return n, nil

	default:
		return pt.ReadFrom(bufio.NewReader(r))
	}
}

// SaveSize returns an upper bound on the number of bytes written by [Plaintext.Save].
func (pt Plaintext) SaveSize(compr serialization.ComprModeType) (int, error) {
	return compr.SaveSize(pt.BinarySize())
}

// Save writes the plaintext preceded by a serialization header on w.
func (pt Plaintext) Save(w io.Writer, compr serialization.ComprModeType) (int64, error) {
	return serialization.Save(w, compr, pt)
}

// Load reads a plaintext written by [Plaintext.Save] from r and checks that
// it is valid for ctx.
func (pt *Plaintext) Load(ctx *Context, r io.Reader) (n int64, err error) {
	var tmp Plaintext
	if n, err = tmp.UnsafeLoad(ctx, r); err != nil {
		return
	}
	if !tmp.IsValidFor(ctx) {
		return n, fmt.Errorf("%w: plaintext data is invalid for the encryption parameters", ErrInvalidArgument)
	}
	*pt = tmp
	return
}

// UnsafeLoad is identical to [Plaintext.Load] but skips the validity check.
func (pt *Plaintext) UnsafeLoad(ctx *Context, r io.Reader) (n int64, err error) {
	if err = ctx.checkParametersSet(); err != nil {
		return
	}
	return serialization.Load(r, pt)
}
