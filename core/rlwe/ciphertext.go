package rlwe

import (
	"bufio"
	"fmt"
	"io"

	"github.com/levelhe/levelhe/ring"
	"github.com/levelhe/levelhe/utils/buffer"
	"github.com/levelhe/levelhe/utils/sampling"
	"github.com/levelhe/levelhe/utils/serialization"
)

const (
	// CiphertextSizeMin is the smallest number of polynomials of a non-empty ciphertext.
	CiphertextSizeMin = 2
	// CiphertextSizeMax is the largest number of polynomials of a ciphertext.
	CiphertextSizeMax = 16
)

// Ciphertext is a vector of polynomials (c_0, ..., c_{k-1}) decrypting to
// c_0 + c_1*s + ... + c_{k-1}*s^{k-1}, at the level identified by its [ParmsID].
type Ciphertext struct {
	Value []ring.Poly

	parmsID ParmsID

	// IsNTTForm is false for BFV and true for CKKS and BGV by default.
	IsNTTForm bool

	// Scale is the scaling factor of CKKS ciphertexts; it is 1 otherwise.
	Scale float64

	// CorrectionFactor is the factor f such that a BGV ciphertext decrypts
	// to f*m; it is 1 otherwise.
	CorrectionFactor uint64

	// seed, if not nil, replaces Value[1] in the serialized form.
	seed *sampling.PRNGInfo
}

// NewCiphertext allocates a zero ciphertext of the given size at the level
// parmsID, with the default representation of the scheme.
func NewCiphertext(ctx *Context, parmsID ParmsID, size int) (ct *Ciphertext, err error) {

	if err = ctx.checkParametersSet(); err != nil {
		return
	}

	cd := ctx.GetContextData(parmsID)
	if cd == nil {
		return nil, fmt.Errorf("%w: parmsID is not valid for the encryption parameters", ErrInvalidArgument)
	}

	if size != 0 && (size < CiphertextSizeMin || size > CiphertextSizeMax) {
		return nil, fmt.Errorf("%w: ciphertext size must be in [%d, %d] but is %d", ErrInvalidArgument, CiphertextSizeMin, CiphertextSizeMax, size)
	}

	ct = &Ciphertext{
		parmsID:          parmsID,
		IsNTTForm:        cd.parms.scheme != SchemeBFV,
		Scale:            1,
		CorrectionFactor: 1,
	}

	ct.Value = make([]ring.Poly, size)
	for i := range ct.Value {
		ct.Value[i] = cd.ringQ.NewPoly()
	}

	return
}

// NewCiphertextAtFirst is [NewCiphertext] at the first data level.
func NewCiphertextAtFirst(ctx *Context, size int) (*Ciphertext, error) {
	if err := ctx.checkParametersSet(); err != nil {
		return nil, err
	}
	return NewCiphertext(ctx, ctx.FirstParmsID(), size)
}

// Size returns the number of polynomials of the ciphertext.
func (ct Ciphertext) Size() int {
	return len(ct.Value)
}

// PolyModulusDegree returns the ring degree of the polynomials.
func (ct Ciphertext) PolyModulusDegree() int {
	if len(ct.Value) == 0 {
		return 0
	}
	return ct.Value[0].N()
}

// CoeffModulusSize returns the number of primes of the level of the ciphertext.
func (ct Ciphertext) CoeffModulusSize() int {
	if len(ct.Value) == 0 {
		return 0
	}
	return ct.Value[0].Level() + 1
}

// Level returns the number of primes minus one.
func (ct Ciphertext) Level() int {
	return ct.CoeffModulusSize() - 1
}

// ParmsID returns the fingerprint of the level of the ciphertext.
func (ct Ciphertext) ParmsID() ParmsID {
	return ct.parmsID
}

// IsTransparent returns true if c_1, ..., c_{k-1} are all zero, in which
// case the ciphertext reveals its message without the secret key.
func (ct Ciphertext) IsTransparent() bool {
	if len(ct.Value) < CiphertextSizeMin {
		return true
	}
	for _, p := range ct.Value[1:] {
		for _, c := range p.Buff {
			if c != 0 {
				return false
			}
		}
	}
	return true
}

// Resize sets the number of polynomials of the ciphertext, keeping the
// existing ones. New polynomials are zero.
func (ct *Ciphertext) Resize(ctx *Context, size int) (err error) {

	if size < CiphertextSizeMin || size > CiphertextSizeMax {
		return fmt.Errorf("%w: ciphertext size must be in [%d, %d] but is %d", ErrInvalidArgument, CiphertextSizeMin, CiphertextSizeMax, size)
	}

	cd := ctx.GetContextData(ct.parmsID)
	if cd == nil {
		return fmt.Errorf("%w: parmsID is not valid for the encryption parameters", ErrInvalidArgument)
	}

	ct.resize(cd, size)
	return
}

func (ct *Ciphertext) resize(cd *ContextData, size int) {
	switch {
	case size < len(ct.Value):
		ct.Value = ct.Value[:size]
	case size <= cap(ct.Value):
		old := len(ct.Value)
		ct.Value = ct.Value[:size]
		for i := old; i < size; i++ {
			if ct.Value[i].N() != cd.N() || ct.Value[i].Level() != cd.ringQ.Level() {
				ct.Value[i] = cd.ringQ.NewPoly()
			} else {
				ct.Value[i].Zero()
			}
		}
	default:
		for len(ct.Value) < size {
			ct.Value = append(ct.Value, cd.ringQ.NewPoly())
		}
	}
}

// Reserve grows the capacity of the ciphertext to size polynomials.
func (ct *Ciphertext) Reserve(size int) {
	if size > cap(ct.Value) {
		v := make([]ring.Poly, len(ct.Value), size)
		copy(v, ct.Value)
		ct.Value = v
	}
}

// Capacity returns the number of polynomials the ciphertext can hold without reallocating.
func (ct Ciphertext) Capacity() int {
	return cap(ct.Value)
}

// setLevel reallocates ct, if needed, as a ciphertext of the given size at the level cd.
func (ct *Ciphertext) setLevel(cd *ContextData, size int) {
	ct.parmsID = cd.ParmsID()
	if len(ct.Value) > 0 && (ct.Value[0].N() != cd.N() || ct.Value[0].Level() != cd.ringQ.Level()) {
		for i := range ct.Value {
			ct.Value[i].Resize(cd.ringQ.Level())
		}
	}
	ct.resize(cd, size)
	ct.seed = nil
}

// CopyNew returns a deep copy of the ciphertext.
func (ct Ciphertext) CopyNew() *Ciphertext {
	ctCopy := ct
	ctCopy.Value = make([]ring.Poly, len(ct.Value))
	for i := range ct.Value {
		ctCopy.Value[i] = ct.Value[i].CopyNew()
	}
	if ct.seed != nil {
		seed := *ct.seed
		ctCopy.seed = &seed
	}
	return &ctCopy
}

// Copy copies other on the target ciphertext.
func (ct *Ciphertext) Copy(other *Ciphertext) {
	if ct == other {
		return
	}
	*ct = *other.CopyNew()
}

// Equal returns true if the two ciphertexts have the same polynomials and metadata.
func (ct Ciphertext) Equal(other *Ciphertext) bool {
	if other == nil || ct.parmsID != other.parmsID || ct.IsNTTForm != other.IsNTTForm ||
		ct.Scale != other.Scale || ct.CorrectionFactor != other.CorrectionFactor || len(ct.Value) != len(other.Value) {
		return false
	}
	for i := range ct.Value {
		if !ct.Value[i].Equal(&other.Value[i]) {
			return false
		}
	}
	return true
}

// BinarySize returns the serialized size of the object in bytes.
func (ct Ciphertext) BinarySize() int {
	size := 32 + 1 + 8 + 8 + 8 + 8 + 8 + 1
	limbs := ct.CoeffModulusSize() * ct.PolyModulusDegree()
	if ct.seed != nil {
		return size + 8*limbs*(len(ct.Value)-1) + ct.seed.BinarySize()
	}
	return size + 8*limbs*len(ct.Value)
}

// WriteTo writes the object on an [io.Writer]. If the ciphertext was produced
// in seeded form, its second polynomial is replaced by the seed it was sampled from.
func (ct Ciphertext) WriteTo(w io.Writer) (n int64, err error) {
	switch w := w.(type) {
	case buffer.Writer:

		var inc int64

		if inc, err = buffer.WriteUint64Slice(w, ct.parmsID[:]); err != nil {
			return n + inc, err
		}
		n += inc

		var ntt uint8
		if ct.IsNTTForm {
			ntt = 1
		}

		if inc, err = buffer.WriteUint8(w, ntt); err != nil {
			return n + inc, err
		}
		n += inc

		for _, v := range []uint64{uint64(len(ct.Value)), uint64(ct.PolyModulusDegree()), uint64(ct.CoeffModulusSize())} {
			if inc, err = buffer.WriteUint64(w, v); err != nil {
				return n + inc, err
			}
			n += inc
		}

		if inc, err = buffer.WriteFloat64(w, ct.Scale); err != nil {
			return n + inc, err
		}
		n += inc

		if inc, err = buffer.WriteUint64(w, ct.CorrectionFactor); err != nil {
			return n + inc, err
		}
		n += inc

		var seeded uint8
		if ct.seed != nil {
			seeded = 1
		}

		if inc, err = buffer.WriteUint8(w, seeded); err != nil {
			return n + inc, err
		}
		n += inc

		for i, p := range ct.Value {

			if i == 1 && ct.seed != nil {
				if inc, err = ct.seed.WriteTo(w); err != nil {
					return n + inc, err
				}
				n += inc
				continue
			}

			if inc, err = buffer.WriteUint64Slice(w, p.Buff); err != nil {
				return n + inc, err
			}
			n += inc
		}

		return n, nil

	default:
		bw := bufio.NewWriter(w)
		if n, err = ct.WriteTo(bw); err != nil {
			return
		}
		return n, bw.Flush()
	}
}

// ReadFrom reads on the object from an [io.Reader].
// A seeded ciphertext is left with its seed pending and must be expanded
// against a [Context], as done by [Ciphertext.Load].
func (ct *Ciphertext) ReadFrom(r io.Reader) (n int64, err error) {
	switch r := r.(type) {
	case buffer.Reader:

		var inc int64

		var id ParmsID
		if inc, err = buffer.ReadUint64Slice(r, id[:]); err != nil {
			return n + inc, err
		}
		n += inc

		var ntt uint8
		if inc, err = buffer.ReadUint8(r, &ntt); err != nil {
			return n + inc, err
		}
		n += inc

		var size, N, limbs uint64
		for _, v := range []*uint64{&size, &N, &limbs} {
			if inc, err = buffer.ReadUint64(r, v); err != nil {
				return n + inc, err
			}
			n += inc
		}

		if size > CiphertextSizeMax || N > ring.PolyModulusDegreeMax || limbs > ring.CoeffModulusCountMax {
			return n, fmt.Errorf("%w: ciphertext dimensions are out of range", ErrInvalidArgument)
		}

		if size != 0 && (N == 0 || limbs == 0) {
			return n, fmt.Errorf("%w: ciphertext dimensions are out of range", ErrInvalidArgument)
		}

		var scale float64
		if inc, err = buffer.ReadFloat64(r, &scale); err != nil {
			return n + inc, err
		}
		n += inc

		var cf uint64
		if inc, err = buffer.ReadUint64(r, &cf); err != nil {
			return n + inc, err
		}
		n += inc

		var seeded uint8
		if inc, err = buffer.ReadUint8(r, &seeded); err != nil {
			return n + inc, err
		}
		n += inc

		if seeded > 1 || (seeded == 1 && size < CiphertextSizeMin) {
			return n, fmt.Errorf("%w: invalid seed flag", ErrInvalidArgument)
		}

		value := make([]ring.Poly, size)
		var seed *sampling.PRNGInfo

		for i := range value {

			value[i] = ring.NewPoly(int(N), int(limbs)-1)

			if i == 1 && seeded == 1 {
				seed = new(sampling.PRNGInfo)
				if inc, err = seed.ReadFrom(r); err != nil {
					return n + inc, err
				}
				n += inc
				continue
			}

			if inc, err = buffer.ReadUint64Slice(r, value[i].Buff); err != nil {
				return n + inc, err
			}
			n += inc
		}

		ct.Value = value
		ct.parmsID = id
		ct.IsNTTForm = ntt == 1
		ct.Scale = scale
		ct.CorrectionFactor = cf
		ct.seed = seed

		return n, nil

	default:
		return ct.ReadFrom(bufio.NewReader(r))
	}
}

// expandSeed regenerates the second polynomial of a seeded ciphertext.
func (ct *Ciphertext) expandSeed(ctx *Context) (err error) {

	if ct.seed == nil {
		return
	}

	cd := ctx.GetContextData(ct.parmsID)
	if cd == nil || ct.CoeffModulusSize() != len(cd.ringQ.SubRings) || ct.PolyModulusDegree() != cd.N() {
		return fmt.Errorf("%w: seeded ciphertext is not valid for the encryption parameters", ErrInvalidArgument)
	}

	prng, err := sampling.NewSeededPRNG(*ct.seed)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	ring.NewUniformSampler(prng, cd.ringQ).Read(ct.Value[1])
	ct.seed = nil

	return
}

// SaveSize returns an upper bound on the number of bytes written by [Ciphertext.Save].
func (ct Ciphertext) SaveSize(compr serialization.ComprModeType) (int, error) {
	return compr.SaveSize(ct.BinarySize())
}

// Save writes the ciphertext preceded by a serialization header on w.
func (ct Ciphertext) Save(w io.Writer, compr serialization.ComprModeType) (int64, error) {
	return serialization.Save(w, compr, ct)
}

// Load reads a ciphertext written by [Ciphertext.Save] from r, expands its
// seed if any, and checks that it is valid for ctx.
func (ct *Ciphertext) Load(ctx *Context, r io.Reader) (n int64, err error) {
	var tmp Ciphertext
	if n, err = tmp.UnsafeLoad(ctx, r); err != nil {
		return
	}
	if !tmp.IsValidFor(ctx) {
		return n, fmt.Errorf("%w: ciphertext data is invalid for the encryption parameters", ErrInvalidArgument)
	}
	*ct = tmp
	return
}

// UnsafeLoad is identical to [Ciphertext.Load] but skips the validity check.
func (ct *Ciphertext) UnsafeLoad(ctx *Context, r io.Reader) (n int64, err error) {

	if err = ctx.checkParametersSet(); err != nil {
		return
	}

	var tmp Ciphertext
	if n, err = serialization.Load(r, &tmp); err != nil {
		return
	}

	if err = tmp.expandSeed(ctx); err != nil {
		return
	}

	*ct = tmp
	return
}
