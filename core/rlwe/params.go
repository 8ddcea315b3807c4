package rlwe

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/levelhe/levelhe/ring"
	"github.com/levelhe/levelhe/utils"
	"github.com/levelhe/levelhe/utils/buffer"
	"github.com/levelhe/levelhe/utils/serialization"
)

// EncryptionParameters stores the scheme, the ring degree, the coefficient
// modulus and the plaintext modulus of a parameter set, together with its
// [ParmsID]. Every setter recomputes the fingerprint. The parameters are
// not validated until a [Context] is created from them.
type EncryptionParameters struct {
	scheme            SchemeType
	polyModulusDegree int
	coeffModulus      []ring.Modulus
	plainModulus      ring.Modulus
	parmsID           ParmsID
}

// NewEncryptionParameters creates an empty parameter set for the given scheme.
func NewEncryptionParameters(scheme SchemeType) (parms EncryptionParameters, err error) {
	if !scheme.IsValid() {
		return parms, fmt.Errorf("%w: unsupported scheme %s", ErrInvalidArgument, scheme)
	}
	parms.scheme = scheme
	parms.parmsID = computeParmsID(&parms)
	return
}

// Scheme returns the scheme of the parameters.
func (parms EncryptionParameters) Scheme() SchemeType {
	return parms.scheme
}

// PolyModulusDegree returns the degree N of the cyclotomic polynomial X^N+1.
func (parms EncryptionParameters) PolyModulusDegree() int {
	return parms.polyModulusDegree
}

// CoeffModulus returns a copy of the primes of the coefficient modulus.
func (parms EncryptionParameters) CoeffModulus() []ring.Modulus {
	return append([]ring.Modulus(nil), parms.coeffModulus...)
}

// CoeffModulusCount returns the number of primes of the coefficient modulus.
func (parms EncryptionParameters) CoeffModulusCount() int {
	return len(parms.coeffModulus)
}

// PlainModulus returns the plaintext modulus, the zero modulus for CKKS.
func (parms EncryptionParameters) PlainModulus() ring.Modulus {
	return parms.plainModulus
}

// ParmsID returns the fingerprint of the parameters.
func (parms EncryptionParameters) ParmsID() ParmsID {
	return parms.parmsID
}

// SetPolyModulusDegree sets the ring degree. The value is validated by [NewContext].
func (parms *EncryptionParameters) SetPolyModulusDegree(n int) (err error) {
	if parms.scheme == SchemeNone && n != 0 {
		return fmt.Errorf("%w: poly modulus degree is not supported for scheme %s", ErrLogic, parms.scheme)
	}
	if n < 0 {
		return fmt.Errorf("%w: poly modulus degree cannot be negative", ErrInvalidArgument)
	}
	parms.polyModulusDegree = n
	parms.parmsID = computeParmsID(parms)
	return
}

// SetCoeffModulus sets the primes of the coefficient modulus.
// The number of primes must be in [ring.CoeffModulusCountMin, ring.CoeffModulusCountMax].
func (parms *EncryptionParameters) SetCoeffModulus(moduli []ring.Modulus) (err error) {
	if parms.scheme == SchemeNone && len(moduli) != 0 {
		return fmt.Errorf("%w: coeff modulus is not supported for scheme %s", ErrLogic, parms.scheme)
	}
	if len(moduli) > ring.CoeffModulusCountMax || len(moduli) < ring.CoeffModulusCountMin {
		return fmt.Errorf("%w: coeff modulus is invalid: count must be in [%d, %d] but is %d", ErrInvalidArgument, ring.CoeffModulusCountMin, ring.CoeffModulusCountMax, len(moduli))
	}
	parms.coeffModulus = append([]ring.Modulus(nil), moduli...)
	parms.parmsID = computeParmsID(parms)
	return
}

// SetPlainModulus sets the plaintext modulus.
// Only BFV and BGV accept a non-zero plaintext modulus.
func (parms *EncryptionParameters) SetPlainModulus(t ring.Modulus) (err error) {
	if !parms.scheme.HasPlainModulus() && !t.IsZero() {
		return fmt.Errorf("%w: plain modulus is not supported for scheme %s", ErrLogic, parms.scheme)
	}
	parms.plainModulus = t
	parms.parmsID = computeParmsID(parms)
	return
}

// SetPlainModulusUint64 sets the plaintext modulus from its value.
func (parms *EncryptionParameters) SetPlainModulusUint64(t uint64) (err error) {
	m, err := ring.NewModulus(t)
	if err != nil {
		return err
	}
	return parms.SetPlainModulus(m)
}

// Equal compares the fingerprints of the two parameter sets.
func (parms EncryptionParameters) Equal(other *EncryptionParameters) bool {
	return other != nil && parms.parmsID == other.parmsID
}

// BinarySize returns the serialized size of the object in bytes.
func (parms EncryptionParameters) BinarySize() (size int) {
	size = 1 + 8 + 8 + 8*len(parms.coeffModulus)
	if parms.scheme.HasPlainModulus() {
		size += parms.plainModulus.BinarySize()
	}
	return
}

// WriteTo writes the object on an [io.Writer]: the scheme byte, the ring
// degree, the number of primes, the primes and, for BFV and BGV, the
// plaintext modulus.
func (parms EncryptionParameters) WriteTo(w io.Writer) (n int64, err error) {
	switch w := w.(type) {
	case buffer.Writer:

		var inc int64

		if inc, err = buffer.WriteUint8(w, uint8(parms.scheme)); err != nil {
			return n + inc, err
		}
		n += inc

		if inc, err = buffer.WriteUint64(w, uint64(parms.polyModulusDegree)); err != nil {
			return n + inc, err
		}
		n += inc

		if inc, err = buffer.WriteUint64(w, uint64(len(parms.coeffModulus))); err != nil {
			return n + inc, err
		}
		n += inc

		for _, q := range parms.coeffModulus {
			if inc, err = q.WriteTo(w); err != nil {
				return n + inc, err
			}
			n += inc
		}

		if parms.scheme.HasPlainModulus() {
			if inc, err = parms.plainModulus.WriteTo(w); err != nil {
				return n + inc, err
			}
			n += inc
		}

		return n, nil

	default:
		bw := bufio.NewWriter(w)
		if n, err = parms.WriteTo(bw); err != nil {
			return
		}
		return n, bw.Flush()
	}
}

// ReadFrom reads on the object from an [io.Reader].
func (parms *EncryptionParameters) ReadFrom(r io.Reader) (n int64, err error) {
	switch r := r.(type) {
	case buffer.Reader:

		var inc int64

		var scheme uint8
		if inc, err = buffer.ReadUint8(r, &scheme); err != nil {
			return n + inc, err
		}
		n += inc

		if !SchemeType(scheme).IsValid() {
			return n, fmt.Errorf("%w: unsupported scheme %d", ErrInvalidArgument, scheme)
		}

		var degree, count uint64
		if inc, err = buffer.ReadUint64(r, &degree); err != nil {
			return n + inc, err
		}
		n += inc

		// zero is the degree of parameters not set yet
		if degree != 0 && (degree < ring.PolyModulusDegreeMin || degree > ring.PolyModulusDegreeMax) {
			return n, fmt.Errorf("%w: poly modulus degree %d is out of range", ErrInvalidArgument, degree)
		}

		if inc, err = buffer.ReadUint64(r, &count); err != nil {
			return n + inc, err
		}
		n += inc

		if count > ring.CoeffModulusCountMax {
			return n, fmt.Errorf("%w: coeff modulus count %d is out of range", ErrInvalidArgument, count)
		}

		moduli := make([]ring.Modulus, count)
		for i := range moduli {
			if inc, err = moduli[i].ReadFrom(r); err != nil {
				return n + inc, err
			}
			n += inc
		}

		var t ring.Modulus
		if SchemeType(scheme).HasPlainModulus() {
			if inc, err = t.ReadFrom(r); err != nil {
				return n + inc, err
			}
			n += inc
		}

		parms.scheme = SchemeType(scheme)
		parms.polyModulusDegree = int(degree)
		parms.coeffModulus = moduli
		parms.plainModulus = t
		parms.parmsID = computeParmsID(parms)

		return n, nil

	default:
		return parms.ReadFrom(bufio.NewReader(r))
	}
}

// SaveSize returns an upper bound on the number of bytes written by [EncryptionParameters.Save].
func (parms EncryptionParameters) SaveSize(compr serialization.ComprModeType) (int, error) {
	return compr.SaveSize(parms.BinarySize())
}

// Save writes the parameters preceded by a serialization header on w.
func (parms EncryptionParameters) Save(w io.Writer, compr serialization.ComprModeType) (int64, error) {
	return serialization.Save(w, compr, parms)
}

// Load reads parameters written by [EncryptionParameters.Save] from r.
func (parms *EncryptionParameters) Load(r io.Reader) (int64, error) {
	return serialization.Load(r, parms)
}

// ParametersLiteral is a literal representation of [EncryptionParameters].
// Primes can be given by value (Q, T) or by bit size (LogQ, LogT), in which
// case NTT-friendly primes are generated.
type ParametersLiteral struct {
	Scheme SchemeType
	LogN   int
	Q      []uint64 `json:",omitempty"`
	LogQ   []int    `json:",omitempty"`
	T      uint64   `json:",omitempty"`
	LogT   int      `json:",omitempty"`
}

// NewEncryptionParametersFromLiteral instantiates [EncryptionParameters] from a [ParametersLiteral].
func NewEncryptionParametersFromLiteral(pl ParametersLiteral) (parms EncryptionParameters, err error) {

	if parms, err = NewEncryptionParameters(pl.Scheme); err != nil {
		return
	}

	if pl.Scheme == SchemeNone {
		return
	}

	if pl.LogN < 1 || pl.LogN > 17 {
		return parms, fmt.Errorf("%w: LogN must be in [1, 17] but is %d", ErrInvalidArgument, pl.LogN)
	}

	N := 1 << pl.LogN

	if err = parms.SetPolyModulusDegree(N); err != nil {
		return
	}

	var moduli []ring.Modulus
	switch {
	case pl.Q != nil && pl.LogQ != nil:
		return parms, fmt.Errorf("%w: both Q and LogQ are set", ErrInvalidArgument)
	case pl.Q != nil:
		if moduli, err = ring.NewModuli(pl.Q...); err != nil {
			return
		}
	case pl.LogQ != nil:
		if moduli, err = ring.CoeffModulusCreate(N, pl.LogQ); err != nil {
			return
		}
	default:
		return parms, fmt.Errorf("%w: Q or LogQ must be set", ErrInvalidArgument)
	}

	if err = parms.SetCoeffModulus(moduli); err != nil {
		return
	}

	if !pl.Scheme.HasPlainModulus() {
		if pl.T != 0 || pl.LogT != 0 {
			return parms, fmt.Errorf("%w: scheme %s has no plain modulus", ErrLogic, pl.Scheme)
		}
		return
	}

	var t ring.Modulus
	switch {
	case pl.T != 0 && pl.LogT != 0:
		return parms, fmt.Errorf("%w: both T and LogT are set", ErrInvalidArgument)
	case pl.T != 0:
		if t, err = ring.NewModulus(pl.T); err != nil {
			return
		}
	case pl.LogT != 0:
		if t, err = ring.PlainModulusBatching(N, pl.LogT); err != nil {
			return
		}
	default:
		return parms, fmt.Errorf("%w: T or LogT must be set", ErrInvalidArgument)
	}

	err = parms.SetPlainModulus(t)

	return
}

// ParametersLiteral returns the [ParametersLiteral] of the target parameters,
// with the primes given by value.
func (parms EncryptionParameters) ParametersLiteral() ParametersLiteral {
	pl := ParametersLiteral{Scheme: parms.scheme}
	if parms.polyModulusDegree > 0 {
		pl.LogN = utils.PowerOfTwo(uint64(parms.polyModulusDegree))
	}
	if len(parms.coeffModulus) > 0 {
		pl.Q = ring.ModuliValues(parms.coeffModulus)
	}
	pl.T = parms.plainModulus.Value()
	return pl
}

// MarshalJSON returns a JSON representation of the parameters.
func (parms EncryptionParameters) MarshalJSON() ([]byte, error) {
	return json.Marshal(parms.ParametersLiteral())
}

// UnmarshalJSON reads a JSON representation of [ParametersLiteral] on the parameters.
func (parms *EncryptionParameters) UnmarshalJSON(p []byte) (err error) {
	var pl ParametersLiteral
	if err = json.Unmarshal(p, &pl); err != nil {
		return
	}
	*parms, err = NewEncryptionParametersFromLiteral(pl)
	return
}
