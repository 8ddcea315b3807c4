package rlwe

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/levelhe/levelhe/ring"
)

// skPowers caches s, s^2, ..., s^k in NTT form at the key level. The cache
// only grows; reads run concurrently and extensions are serialized.
type skPowers struct {
	mu     sync.RWMutex
	rQ     *ring.Ring
	powers []ring.Poly
}

// get returns at least count powers of the secret key.
func (c *skPowers) get(count int) ([]ring.Poly, error) {

	c.mu.RLock()
	if len(c.powers) >= count {
		powers := c.powers
		c.mu.RUnlock()
		return powers, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.powers) == 0 {
		return nil, fmt.Errorf("%w: secret key has been erased", ErrLogic)
	}

	for len(c.powers) < count {
		p := c.rQ.NewPoly()
		c.rQ.MulCoeffs(c.powers[len(c.powers)-1], c.powers[0], p)
		c.powers = append(c.powers, p)
	}

	return c.powers, nil
}

// zeroize erases every cached power.
func (c *skPowers) zeroize() {

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range c.powers {
		zeroize(p.Buff)
	}

	c.powers = nil
}

// Decryptor decrypts ciphertexts of any size with a secret key and
// measures the invariant noise budget of BFV ciphertexts.
// A Decryptor is safe for concurrent use.
type Decryptor struct {
	ctx    *Context
	powers *skPowers
	pool   *ring.MemoryPool
}

// NewDecryptor creates a [Decryptor] with the secret key sk.
func NewDecryptor(ctx *Context, sk *SecretKey) (*Decryptor, error) {

	if err := ctx.checkParametersSet(); err != nil {
		return nil, fmt.Errorf("cannot NewDecryptor: %w", err)
	}

	if sk == nil || !sk.IsValidFor(ctx) {
		return nil, fmt.Errorf("%w: secret key is not valid for encryption parameters", ErrInvalidArgument)
	}

	cd := ctx.KeyContextData()

	return &Decryptor{
		ctx: ctx,
		powers: &skPowers{
			rQ:     cd.ringQ,
			powers: []ring.Poly{sk.Poly(cd.N()).CopyNew()},
		},
		pool: ring.DefaultPool(),
	}, nil
}

// WithPool returns a copy of the decryptor drawing its temporary buffers
// from pool. The copy shares the cache of secret key powers.
func (dec Decryptor) WithPool(pool *ring.MemoryPool) *Decryptor {
	dec.pool = pool
	return &dec
}

// Zeroize erases the secret key and its powers held by the decryptor, which
// are shared with the copies made by [Decryptor.WithPool]. Decryption fails
// with [ErrLogic] afterward.
func (dec *Decryptor) Zeroize() {
	dec.powers.zeroize()
}

// Decrypt decrypts ct and writes the result on pt.
// BFV and BGV plaintexts are polynomials modulo t in coefficient form, and
// BFV plaintexts hold only their significant coefficients, at least one.
// CKKS plaintexts are in NTT form at the level of ct and inherit its scale.
func (dec Decryptor) Decrypt(ct *Ciphertext, pt *Plaintext) (err error) {

	if ct == nil || !ct.IsMetadataValidFor(dec.ctx, false) || !ct.IsBufferValid() {
		return fmt.Errorf("%w: ciphertext is not valid for encryption parameters", ErrInvalidArgument)
	}

	if ct.Size() < CiphertextSizeMin {
		return fmt.Errorf("%w: ciphertext is empty", ErrInvalidArgument)
	}

	if pt == nil {
		return fmt.Errorf("%w: destination is nil", ErrInvalidArgument)
	}

	cd := dec.ctx.GetContextData(ct.parmsID)
	N := cd.N()

	switch cd.parms.scheme {
	case SchemeBFV:

		if ct.IsNTTForm {
			return fmt.Errorf("%w: BFV ciphertext cannot be in NTT form", ErrInvalidArgument)
		}

		var tmp ring.Poly
		if tmp, err = dec.pool.GetPoly(N, cd.level()); err != nil {
			return
		}
		defer dec.pool.RecyclePoly(tmp)

		if err = dec.dotProductCtSk(ct, cd, tmp); err != nil {
			return
		}

		pt.SetParmsID(ParmsIDZero)
		pt.Resize(N)
		pt.Scale = 1
		cd.rnsTool.DecryptScaleAndRound(tmp.Coeffs, pt.coeffs)

		// trailing zero coefficients are dropped
		pt.Resize(max(pt.SignificantCoeffCount(), 1))

	case SchemeCKKS:

		if !ct.IsNTTForm {
			return fmt.Errorf("%w: CKKS ciphertext must be in NTT form", ErrInvalidArgument)
		}

		pt.SetParmsID(ParmsIDZero)
		pt.Resize(N * (cd.level() + 1))

		if err = dec.dotProductCtSk(ct, cd, pt.Poly(N)); err != nil {
			return
		}

		pt.SetParmsID(ct.parmsID)
		pt.Scale = ct.Scale

	case SchemeBGV:

		if !ct.IsNTTForm {
			return fmt.Errorf("%w: BGV ciphertext must be in NTT form", ErrInvalidArgument)
		}

		var tmp ring.Poly
		if tmp, err = dec.pool.GetPoly(N, cd.level()); err != nil {
			return
		}
		defer dec.pool.RecyclePoly(tmp)

		if err = dec.dotProductCtSk(ct, cd, tmp); err != nil {
			return
		}

		cd.ringQ.INTT(tmp, tmp)

		pt.SetParmsID(ParmsIDZero)
		pt.Resize(N)
		pt.Scale = 1
		cd.rnsTool.DecryptModT(tmp.Coeffs, pt.coeffs)

		if ct.CorrectionFactor != 1 {
			t := cd.parms.plainModulus
			inv, ok := ring.ModInverse(ct.CorrectionFactor, t.Value())
			if !ok {
				return fmt.Errorf("%w: correction factor is not invertible modulo the plaintext modulus", ErrInvalidArgument)
			}
			op := ring.NewMulOperand(inv, t)
			for i, c := range pt.coeffs {
				pt.coeffs[i] = ring.MulShoup(c, op, t.Value())
			}
		}
	}

	return
}

// DecryptNew decrypts ct and returns the result on a new plaintext.
func (dec Decryptor) DecryptNew(ct *Ciphertext) (pt *Plaintext, err error) {
	pt = NewPlaintext(0)
	return pt, dec.Decrypt(ct, pt)
}

// dotProductCtSk writes c_0 + c_1*s + ... + c_{k-1}*s^{k-1} on out, in the
// representation of ct.
func (dec Decryptor) dotProductCtSk(ct *Ciphertext, cd *ContextData, out ring.Poly) (err error) {

	rQ := cd.ringQ

	powers, err := dec.powers.get(ct.Size() - 1)
	if err != nil {
		return
	}

	if ct.IsNTTForm {
		out.Copy(ct.Value[0])
		for i, c := range ct.Value[1:] {
			rQ.MulCoeffsThenAdd(c, powers[i], out)
		}
		return
	}

	tmp, err := dec.pool.GetPoly(cd.N(), cd.level())
	if err != nil {
		return
	}
	defer dec.pool.RecyclePoly(tmp)

	out.Zero()
	for i, c := range ct.Value[1:] {
		rQ.NTT(c, tmp)
		rQ.MulCoeffsThenAdd(tmp, powers[i], out)
	}

	rQ.INTT(out, out)
	rQ.Add(out, ct.Value[0], out)

	return
}

// InvariantNoiseBudget returns the number of bits of noise that the BFV
// ciphertext ct can still absorb before its decryption fails. A budget of 0
// means that the decryption is likely incorrect.
func (dec Decryptor) InvariantNoiseBudget(ct *Ciphertext) (budget int, err error) {

	if dec.ctx.KeyContextData().parms.scheme != SchemeBFV {
		return 0, fmt.Errorf("%w: unsupported scheme", ErrLogic)
	}

	if ct == nil || !ct.IsMetadataValidFor(dec.ctx, false) || !ct.IsBufferValid() {
		return 0, fmt.Errorf("%w: ciphertext is not valid for encryption parameters", ErrInvalidArgument)
	}

	if ct.Size() < CiphertextSizeMin {
		return 0, fmt.Errorf("%w: ciphertext is empty", ErrInvalidArgument)
	}

	if ct.IsNTTForm {
		return 0, fmt.Errorf("%w: ciphertext cannot be in NTT form", ErrInvalidArgument)
	}

	cd := dec.ctx.GetContextData(ct.parmsID)
	N := cd.N()

	noise, err := dec.pool.GetPoly(N, cd.level())
	if err != nil {
		return
	}
	defer dec.pool.RecyclePoly(noise)

	if err = dec.dotProductCtSk(ct, cd, noise); err != nil {
		return
	}

	// t * (c_0 + c_1*s + ...) = q*m + t*v mod q, whose norm is the invariant noise scaled by q.
	cd.ringQ.MulScalar(noise, cd.parms.plainModulus.Value(), noise)

	coeffs := make([]*big.Int, N)
	cd.ringQ.PolyToBigintCentered(noise, 1, coeffs)

	norm := new(big.Int)
	for _, c := range coeffs {
		if c.CmpAbs(norm) > 0 {
			norm.Abs(c)
		}
	}

	return max(0, cd.totalCoeffModulusBitCount-norm.BitLen()-1), nil
}
