package ckks

import (
	"fmt"
	"math"
	"math/big"
	"math/bits"

	"github.com/levelhe/levelhe/core/rlwe"
	"github.com/levelhe/levelhe/ring"
	"github.com/levelhe/levelhe/utils"
	"github.com/levelhe/levelhe/utils/bignum"
	"github.com/levelhe/levelhe/utils/structs"
)

// GaloisGen is an integer of order N/2 modulo M and that spans Z_M with the integer -1.
// The j-th ring automorphism takes the root zeta to zeta^(5j).
const GaloisGen uint64 = ring.GaloisGen

// Encoder encodes vectors of at most N/2 complex or real numbers on CKKS
// plaintexts. The values are first subjected to a special inverse Fourier
// transform, scaled by the scale of the plaintext and rounded, and the
// resulting integer polynomial is stored in NTT form at the level of the
// plaintext.
//
// Slot j holds the evaluation of the plaintext polynomial at the root
// zeta^(5^j), so that the Galois element 5^k rotates the slots by k
// positions to the left and the element 2N-1 conjugates them.
//
// An Encoder can be used concurrently.
type Encoder struct {
	ctx *rlwe.Context

	n     int
	slots int
	m     int

	rotGroup []int
	roots    []complex128

	buffPool structs.BufferPool[*[]complex128]
}

// NewEncoder creates a new [Encoder] for the CKKS context ctx.
func NewEncoder(ctx *rlwe.Context) (*Encoder, error) {

	if ctx == nil || !ctx.ParametersSet() {
		return nil, fmt.Errorf("cannot NewEncoder: %w: encryption parameters are not set correctly", rlwe.ErrInvalidArgument)
	}

	cd := ctx.FirstContextData()

	if scheme := cd.Parms().Scheme(); scheme != rlwe.SchemeCKKS {
		return nil, fmt.Errorf("cannot NewEncoder: %w: unsupported scheme %s", rlwe.ErrInvalidArgument, scheme)
	}

	n := cd.N()
	m := n << 1
	slots := n >> 1

	rotGroup := make([]int, slots)
	fivePows := 1
	for i := 0; i < slots; i++ {
		rotGroup[i] = fivePows
		fivePows *= int(GaloisGen)
		fivePows &= (m - 1)
	}

	return &Encoder{
		ctx:      ctx,
		n:        n,
		slots:    slots,
		m:        m,
		rotGroup: rotGroup,
		roots:    GetRootsComplex128(m),
		buffPool: structs.NewSyncPool[*[]complex128](),
	}, nil
}

// SlotCount returns the number of complex slots of a plaintext, that is N/2.
func (ecd Encoder) SlotCount() int {
	return ecd.slots
}

func (ecd Encoder) getBuff() []complex128 {
	if buff, ok := ecd.buffPool.Get(); ok {
		clear(*buff)
		return *buff
	}
	return make([]complex128, ecd.slots)
}

func (ecd Encoder) putBuff(buff []complex128) {
	ecd.buffPool.Put(&buff)
}

// IFFT evaluates the special inverse DFT of size N/2 on values in place.
func (ecd Encoder) IFFT(values []complex128) {
	SpecialIFFTDouble(values, ecd.slots, ecd.m, ecd.rotGroup, ecd.roots)
}

// FFT evaluates the special DFT of size N/2 on values in place.
func (ecd Encoder) FFT(values []complex128) {
	SpecialFFTDouble(values, ecd.slots, ecd.m, ecd.rotGroup, ecd.roots)
}

// target returns the level on which pt is encoded: its parmsID, or the first
// data level if it is zero.
func (ecd Encoder) target(pt *rlwe.Plaintext) (cd *rlwe.ContextData, err error) {

	if pt == nil {
		return nil, fmt.Errorf("%w: destination is nil", rlwe.ErrInvalidArgument)
	}

	parmsID := pt.ParmsID()
	if parmsID.IsZero() {
		parmsID = ecd.ctx.FirstParmsID()
	}

	if cd = ecd.ctx.GetContextData(parmsID); cd == nil {
		return nil, fmt.Errorf("%w: parmsID is not valid for encryption parameters", rlwe.ErrInvalidArgument)
	}

	return
}

// checkScale returns an error if scale does not fit at the level cd.
func checkScale(scale float64, cd *rlwe.ContextData) error {
	if scale <= 0 || math.IsNaN(scale) || math.IsInf(scale, 0) || int(math.Log2(scale)) >= cd.TotalCoeffModulusBitCount() {
		return fmt.Errorf("%w: scale out of bounds", rlwe.ErrInvalidArgument)
	}
	return nil
}

// Encode encodes values, of type []complex128 or []float64 and of size at
// most N/2, on pt. The level and the scale of the encoding are read from pt:
// a plaintext with a zero parmsID is encoded at the first data level.
// Missing values are set to zero.
func (ecd Encoder) Encode(values interface{}, pt *rlwe.Plaintext) (err error) {

	var cd *rlwe.ContextData
	if cd, err = ecd.target(pt); err != nil {
		return fmt.Errorf("cannot Encode: %w", err)
	}

	if err = checkScale(pt.Scale, cd); err != nil {
		return fmt.Errorf("cannot Encode: %w", err)
	}

	buff := ecd.getBuff()
	defer ecd.putBuff(buff)

	switch values := values.(type) {
	case []complex128:
		if len(values) > ecd.slots {
			return fmt.Errorf("cannot Encode: %w: len(values)=%d > slots=%d", rlwe.ErrInvalidArgument, len(values), ecd.slots)
		}
		copy(buff, values)
	case []float64:
		if len(values) > ecd.slots {
			return fmt.Errorf("cannot Encode: %w: len(values)=%d > slots=%d", rlwe.ErrInvalidArgument, len(values), ecd.slots)
		}
		for i, v := range values {
			buff[i] = complex(v, 0)
		}
	default:
		return fmt.Errorf("cannot Encode: %w: values.(type) must be []complex128 or []float64 but is %T", rlwe.ErrInvalidArgument, values)
	}

	ecd.IFFT(buff)

	coeffs := make([]float64, ecd.n)
	for i, c := range buff {
		coeffs[i] = real(c) * pt.Scale
		coeffs[i+ecd.slots] = imag(c) * pt.Scale
	}

	if err = ecd.encodeCoefficients(coeffs, cd, pt); err != nil {
		return fmt.Errorf("cannot Encode: %w", err)
	}

	return
}

// EncodeNew encodes values on a new plaintext at the level parmsID with the given scale.
func (ecd Encoder) EncodeNew(values interface{}, parmsID rlwe.ParmsID, scale float64) (pt *rlwe.Plaintext, err error) {
	pt = rlwe.NewPlaintext(0)
	pt.SetParmsID(parmsID)
	pt.Scale = scale
	if err = ecd.Encode(values, pt); err != nil {
		return nil, err
	}
	return
}

// EncodeConstant encodes value, of type float64 or complex128, in all the
// slots of pt. The level and the scale are read from pt as in [Encoder.Encode].
//
// A complex constant a+bi is the polynomial a + bX^(N/2), as X^(N/2)
// evaluates to i at every root zeta^(5^j).
func (ecd Encoder) EncodeConstant(value interface{}, pt *rlwe.Plaintext) (err error) {

	var cd *rlwe.ContextData
	if cd, err = ecd.target(pt); err != nil {
		return fmt.Errorf("cannot EncodeConstant: %w", err)
	}

	if err = checkScale(pt.Scale, cd); err != nil {
		return fmt.Errorf("cannot EncodeConstant: %w", err)
	}

	var c complex128
	switch value := value.(type) {
	case float64:
		c = complex(value, 0)
	case complex128:
		c = value
	default:
		return fmt.Errorf("cannot EncodeConstant: %w: value.(type) must be float64 or complex128 but is %T", rlwe.ErrInvalidArgument, value)
	}

	coeffs := make([]float64, ecd.n)
	coeffs[0] = real(c) * pt.Scale
	coeffs[ecd.slots] = imag(c) * pt.Scale

	if err = ecd.encodeCoefficients(coeffs, cd, pt); err != nil {
		return fmt.Errorf("cannot EncodeConstant: %w", err)
	}

	return
}

// EncodeInt encodes the integer value in all the slots of pt, at the level
// of pt and without scaling: the scale of pt is set to 1.
func (ecd Encoder) EncodeInt(value int64, pt *rlwe.Plaintext) (err error) {

	var cd *rlwe.ContextData
	if cd, err = ecd.target(pt); err != nil {
		return fmt.Errorf("cannot EncodeInt: %w", err)
	}

	abs := uint64(value)
	if value < 0 {
		abs = uint64(-value)
	}

	if bits.Len64(abs)+2 >= cd.TotalCoeffModulusBitCount() {
		return fmt.Errorf("cannot EncodeInt: %w: encoded value is too large", rlwe.ErrInvalidArgument)
	}

	pt.Resize(ecd.n * cd.Parms().CoeffModulusCount())
	pt.SetZero()

	for i, qi := range cd.Parms().CoeffModulus() {
		c := reduceInt64(value, qi)
		limb := pt.Coeffs()[i*ecd.n : (i+1)*ecd.n]
		for j := range limb {
			limb[j] = c
		}
	}

	pt.SetParmsID(cd.ParmsID())
	pt.Scale = 1

	return
}

// encodeCoefficients rounds the scaled coefficients, writes them on pt at
// the level cd in NTT form and sets the parmsID of pt.
func (ecd Encoder) encodeCoefficients(coeffs []float64, cd *rlwe.ContextData, pt *rlwe.Plaintext) (err error) {

	var maxCoeff float64
	for _, c := range coeffs {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return fmt.Errorf("%w: encoded values are not finite", rlwe.ErrInvalidArgument)
		}
		maxCoeff = math.Max(maxCoeff, math.Abs(c))
	}

	maxCoeffBitCount := int(math.Ceil(math.Log2(math.Max(maxCoeff, 1))))
	if maxCoeffBitCount >= cd.TotalCoeffModulusBitCount() {
		return fmt.Errorf("%w: encoded values are too large", rlwe.ErrInvalidArgument)
	}

	moduli := cd.Parms().CoeffModulus()

	pt.Resize(ecd.n * len(moduli))
	p := pt.Poly(ecd.n)

	if maxCoeffBitCount < 63 {
		for i, qi := range moduli {
			limb := p.Coeffs[i]
			for j, c := range coeffs {
				limb[j] = reduceInt64(int64(math.Round(c)), qi)
			}
		}
	} else {
		bigCoeffs := make([]*big.Int, ecd.n)
		for j, c := range coeffs {
			bigCoeffs[j] = bignum.Round(new(big.Float).SetFloat64(c))
		}
		cd.RingQ().SetCoefficientsBigint(bigCoeffs, p)
	}

	cd.RingQ().NTT(p, p)

	pt.SetParmsID(cd.ParmsID())

	return
}

// reduceInt64 returns x mod q in [0, q).
func reduceInt64(x int64, q ring.Modulus) uint64 {
	if x < 0 {
		if r := uint64(-x) % q.Value(); r != 0 {
			return q.Value() - r
		}
		return 0
	}
	return uint64(x) % q.Value()
}

// Decode decodes pt, a CKKS plaintext in NTT form, on values, which must be
// of type []complex128 or []float64. At most min(len(values), N/2) values
// are decoded. Decoded []float64 values are the real parts of the slots.
func (ecd Encoder) Decode(pt *rlwe.Plaintext, values interface{}) (err error) {

	if pt == nil {
		return fmt.Errorf("cannot Decode: %w: plaintext is nil", rlwe.ErrInvalidArgument)
	}

	if !pt.IsNTTForm() {
		return fmt.Errorf("cannot Decode: %w: plaintext is not in NTT form", rlwe.ErrInvalidArgument)
	}

	if !pt.IsValidFor(ecd.ctx) {
		return fmt.Errorf("cannot Decode: %w: plaintext is not valid for encryption parameters", rlwe.ErrInvalidArgument)
	}

	if pt.Scale <= 0 {
		return fmt.Errorf("cannot Decode: %w: scale out of bounds", rlwe.ErrInvalidArgument)
	}

	switch values.(type) {
	case []complex128, []float64:
	default:
		return fmt.Errorf("cannot Decode: %w: values.(type) must be []complex128 or []float64 but is %T", rlwe.ErrInvalidArgument, values)
	}

	cd := ecd.ctx.GetContextData(pt.ParmsID())
	rQ := cd.RingQ()

	p := pt.Poly(ecd.n).CopyNew()
	rQ.INTT(p, p)

	bigCoeffs := make([]*big.Int, ecd.n)
	rQ.PolyToBigintCentered(p, 1, bigCoeffs)

	buff := ecd.getBuff()
	defer ecd.putBuff(buff)

	for i := range buff {
		buff[i] = complex(bignum.DivRound(bigCoeffs[i], pt.Scale), bignum.DivRound(bigCoeffs[i+ecd.slots], pt.Scale))
	}

	ecd.FFT(buff)

	switch values := values.(type) {
	case []complex128:
		copy(values, buff)
	case []float64:
		for i := range values[:utils.Min(len(values), ecd.slots)] {
			values[i] = real(buff[i])
		}
	}

	return
}

// DecodeNew decodes pt on a new []complex128 of size N/2.
func (ecd Encoder) DecodeNew(pt *rlwe.Plaintext) (values []complex128, err error) {
	values = make([]complex128, ecd.slots)
	return values, ecd.Decode(pt, values)
}
