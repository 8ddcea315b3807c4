// Package bgv implements the batch encoding of integer vectors shared by the
// BFV and BGV schemes.
package bgv

import (
	"fmt"

	"github.com/levelhe/levelhe/core/rlwe"
	"github.com/levelhe/levelhe/ring"
	"github.com/levelhe/levelhe/utils"
)

// Integer is the type constraint of the values accepted by the [BatchEncoder].
type Integer interface {
	int64 | uint64
}

// IntegerSlice is an empty interface whose goal is to
// indicate that the expected input should be []Integer.
// See Integer for information on the type constraint.
type IntegerSlice interface {
}

// GaloisGen is an integer of order N/2 modulo M=2N and that spans Z_M with the integer -1.
// The j-th ring automorphism takes the root zeta to zeta^(5j).
const GaloisGen uint64 = ring.GaloisGen

// BatchEncoder encodes vectors of integers modulo the plaintext modulus t in
// the N slots of a plaintext, seen as a 2 x N/2 matrix. Slot-wise addition
// and multiplication of the vectors correspond to the addition and the
// multiplication of the plaintexts. It requires t prime and t = 1 mod 2N.
type BatchEncoder struct {
	ctx *rlwe.Context

	slots int
	t     ring.Modulus
	ntt   *ring.NTTTable

	indexMatrix []uint64
}

// NewBatchEncoder creates a new [BatchEncoder] for the BFV or BGV context ctx.
// It returns an error wrapping [rlwe.ErrLogic] if the encryption parameters
// do not support batching.
func NewBatchEncoder(ctx *rlwe.Context) (*BatchEncoder, error) {

	if ctx == nil || !ctx.ParametersSet() {
		return nil, fmt.Errorf("cannot NewBatchEncoder: %w: encryption parameters are not set correctly", rlwe.ErrInvalidArgument)
	}

	cd := ctx.FirstContextData()

	if scheme := cd.Parms().Scheme(); scheme != rlwe.SchemeBFV && scheme != rlwe.SchemeBGV {
		return nil, fmt.Errorf("cannot NewBatchEncoder: %w: unsupported scheme %s", rlwe.ErrInvalidArgument, scheme)
	}

	if !cd.Qualifiers().UsingBatching {
		return nil, fmt.Errorf("cannot NewBatchEncoder: %w: encryption parameters are not valid for batching", rlwe.ErrLogic)
	}

	slots := cd.N()

	return &BatchEncoder{
		ctx:         ctx,
		slots:       slots,
		t:           cd.Parms().PlainModulus(),
		ntt:         cd.PlainNTTTable(),
		indexMatrix: permuteMatrix(utils.PowerOfTwo(uint64(slots))),
	}, nil
}

// permuteMatrix returns the map from the slots of the 2 x N/2 matrix to the
// bit-reversed NTT positions: row 0 holds the evaluations at the roots
// zeta^(5^j), row 1 at their conjugates zeta^(-5^j).
func permuteMatrix(logN int) (perm []uint64) {

	var N, pow, pos uint64 = uint64(1 << logN), 1, 0

	mask := 2*N - 1

	perm = make([]uint64, N)

	halfN := int(N >> 1)

	for i, j := 0, halfN; i < halfN; i, j = i+1, j+1 {

		pos = utils.BitReverse64(pow>>1, logN) // = (pow-1)/2

		perm[i] = pos
		perm[j] = utils.BitReverse64((mask-pow)>>1, logN)

		pow *= GaloisGen
		pow &= mask
	}

	return perm
}

// SlotCount returns the number of slots of a plaintext, that is the ring degree N.
func (ecd BatchEncoder) SlotCount() int {
	return ecd.slots
}

// Encode encodes an [IntegerSlice] of size at most N on pt, which is resized
// to N coefficients and left in coefficient form. Values of type []uint64
// must be smaller than t, values of type []int64 must be in [-t/2, t/2].
// Missing values are set to zero.
func (ecd BatchEncoder) Encode(values interface{}, pt *rlwe.Plaintext) (err error) {

	if pt == nil {
		return fmt.Errorf("cannot Encode: %w: destination is nil", rlwe.ErrInvalidArgument)
	}

	T := ecd.t.Value()

	// buffered so that pt is untouched if the values are invalid
	buff := make([]uint64, ecd.slots)

	switch values := values.(type) {
	case []uint64:

		if len(values) > ecd.slots {
			return fmt.Errorf("cannot Encode: %w: len(values)=%d > slots=%d", rlwe.ErrInvalidArgument, len(values), ecd.slots)
		}

		for i, c := range values {
			if c >= T {
				return fmt.Errorf("cannot Encode: %w: values[%d]=%d is not smaller than the plain modulus", rlwe.ErrInvalidArgument, i, c)
			}
			buff[ecd.indexMatrix[i]] = c
		}

	case []int64:

		if len(values) > ecd.slots {
			return fmt.Errorf("cannot Encode: %w: len(values)=%d > slots=%d", rlwe.ErrInvalidArgument, len(values), ecd.slots)
		}

		half := int64(T >> 1)

		for i, c := range values {
			if c > half || c < -half {
				return fmt.Errorf("cannot Encode: %w: values[%d]=%d is not in [-t/2, t/2]", rlwe.ErrInvalidArgument, i, c)
			}
			if c < 0 {
				buff[ecd.indexMatrix[i]] = T - uint64(-c)
			} else {
				buff[ecd.indexMatrix[i]] = uint64(c)
			}
		}

	default:
		return fmt.Errorf("cannot Encode: %w: values.(type) must be []uint64 or []int64 but is %T", rlwe.ErrInvalidArgument, values)
	}

	ecd.ntt.Backward(buff)

	pt.Resize(ecd.slots)
	pt.SetParmsID(rlwe.ParmsIDZero)
	copy(pt.Coeffs(), buff)

	return
}

// EncodeNew encodes an [IntegerSlice] on a new plaintext.
func (ecd BatchEncoder) EncodeNew(values interface{}) (pt *rlwe.Plaintext, err error) {
	pt = rlwe.NewPlaintext(ecd.slots)
	if err = ecd.Encode(values, pt); err != nil {
		return nil, err
	}
	return
}

// Decode decodes pt, a plaintext in coefficient form, on values, which
// must be of type []uint64 or []int64. At most min(len(values), N) values
// are decoded. Decoded []int64 values are centered modulo t.
func (ecd BatchEncoder) Decode(pt *rlwe.Plaintext, values interface{}) (err error) {

	if pt == nil {
		return fmt.Errorf("cannot Decode: %w: plaintext is nil", rlwe.ErrInvalidArgument)
	}

	if pt.IsNTTForm() {
		return fmt.Errorf("cannot Decode: %w: plaintext cannot be in NTT form", rlwe.ErrInvalidArgument)
	}

	if !pt.IsValidFor(ecd.ctx) {
		return fmt.Errorf("cannot Decode: %w: plaintext is not valid for encryption parameters", rlwe.ErrInvalidArgument)
	}

	buff := make([]uint64, ecd.slots)
	copy(buff, pt.Coeffs()[:utils.Min(pt.SignificantCoeffCount(), ecd.slots)])

	ecd.ntt.Forward(buff)

	switch values := values.(type) {
	case []uint64:
		for i := range values[:utils.Min(len(values), ecd.slots)] {
			values[i] = buff[ecd.indexMatrix[i]]
		}
	case []int64:
		T := ecd.t.Value()
		threshold := (T + 1) >> 1
		for i := range values[:utils.Min(len(values), ecd.slots)] {
			if c := buff[ecd.indexMatrix[i]]; c >= threshold {
				values[i] = -int64(T - c)
			} else {
				values[i] = int64(c)
			}
		}
	default:
		return fmt.Errorf("cannot Decode: %w: values.(type) must be []uint64 or []int64 but is %T", rlwe.ErrInvalidArgument, values)
	}

	return
}

// DecodeUint64New decodes pt on a new []uint64 of size N.
func (ecd BatchEncoder) DecodeUint64New(pt *rlwe.Plaintext) (values []uint64, err error) {
	values = make([]uint64, ecd.slots)
	return values, ecd.Decode(pt, values)
}

// DecodeInt64New decodes pt on a new []int64 of size N.
func (ecd BatchEncoder) DecodeInt64New(pt *rlwe.Plaintext) (values []int64, err error) {
	values = make([]int64, ecd.slots)
	return values, ecd.Decode(pt, values)
}
