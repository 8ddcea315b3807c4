// Package rlwe implements the parameters, the modulus switching chain, the
// keys and the encryption, decryption and evaluation of the BFV, BGV and
// CKKS schemes over the ring Z_Q[X]/(X^N+1) in RNS representation.
package rlwe

import (
	"fmt"

	"github.com/levelhe/levelhe/ring"
	"github.com/levelhe/levelhe/utils/sampling"
)

// nttTables returns the NTT tables of the moduli of r.
func nttTables(r *ring.Ring) (tables []*ring.NTTTable) {
	tables = make([]*ring.NTTTable, len(r.SubRings))
	for i, s := range r.SubRings {
		tables[i] = s.NTTTable
	}
	return
}

// level returns the number of primes of the level minus one.
func (cd *ContextData) level() int {
	return len(cd.parms.coeffModulus) - 1
}

// encryptZeroSymmetric writes on ct a fresh encryption of zero at the level
// cd under the secret key sk: (c0, c1) = (-(a*s + e), a) with a uniform and
// e small, e being multiplied by t for BGV. a is sampled in the
// representation of ct from a seeded PRNG whose seed is kept in ct if seeded
// is true.
func encryptZeroSymmetric(cd *ContextData, sk *SecretKey, isNTTForm, seeded bool, prngType sampling.PRNGType, noise ring.DistributionParameters, pool *ring.MemoryPool, ct *Ciphertext) (err error) {

	rQ := cd.ringQ
	N, level := cd.N(), cd.level()

	ct.setLevel(cd, 2)
	ct.IsNTTForm = isNTTForm
	ct.Scale = 1
	ct.CorrectionFactor = 1

	seededPRNG, err := sampling.NewRandomSeededPRNG(prngType)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRuntime, err)
	}

	c0, c1 := ct.Value[0], ct.Value[1]

	ring.NewUniformSampler(seededPRNG, rQ).Read(c1)

	a := c1
	if !isNTTForm {
		if a, err = pool.GetPoly(N, level); err != nil {
			return
		}
		defer pool.RecyclePoly(a)
		rQ.NTT(c1, a)
	}

	rQ.MulCoeffs(a, sk.Poly(N), c0)

	e, err := pool.GetPoly(N, level)
	if err != nil {
		return
	}
	defer pool.RecyclePoly(e)

	sampler, err := ring.NewSampler(sampling.NewPRNG(), rQ, noise)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	sampler.Read(e)

	if isNTTForm {
		rQ.NTT(e, e)
	} else {
		rQ.INTT(c0, c0)
	}

	if cd.parms.scheme == SchemeBGV {
		rQ.MulScalar(e, cd.parms.plainModulus.Value(), e)
	}

	rQ.Add(c0, e, c0)
	rQ.Neg(c0, c0)

	if info := seededPRNG.Info(); seeded && info.BinarySize() < 8*N*(level+1) {
		ct.seed = &info
	}

	return
}

// encryptZeroAsymmetric writes on ct a fresh encryption of zero at the level
// cd under the public key pk: (c0, c1) = (u*pk0 + e0, u*pk1 + e1) with u
// ternary and e0, e1 small, e0 and e1 being multiplied by t for BGV.
func encryptZeroAsymmetric(cd *ContextData, pk *PublicKey, isNTTForm bool, noise ring.DistributionParameters, pool *ring.MemoryPool, ct *Ciphertext) (err error) {

	rQ := cd.ringQ
	N, level := cd.N(), cd.level()

	ct.setLevel(cd, 2)
	ct.IsNTTForm = isNTTForm
	ct.Scale = 1
	ct.CorrectionFactor = 1

	prng := sampling.NewPRNG()

	u, err := pool.GetPoly(N, level)
	if err != nil {
		return
	}
	defer pool.RecyclePoly(u)

	ring.NewTernarySampler(prng, rQ).Read(u)
	rQ.NTT(u, u)

	for j := range ct.Value {
		rQ.MulCoeffs(u, pk.Value[j], ct.Value[j])
		if !isNTTForm {
			rQ.INTT(ct.Value[j], ct.Value[j])
		}
	}

	sampler, err := ring.NewSampler(prng, rQ, noise)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	for j := range ct.Value {
		sampler.Read(u)
		if isNTTForm {
			rQ.NTT(u, u)
		}
		if cd.parms.scheme == SchemeBGV {
			rQ.MulScalar(u, cd.parms.plainModulus.Value(), u)
		}
		rQ.Add(ct.Value[j], u, ct.Value[j])
	}

	return
}

// divideByLastPrime divides the polynomials of ct, at the level cd, by the
// last prime of cd the way modulus switching does for the scheme, and moves
// ct to the next level. It returns the multiplier applied to the message
// modulo t, which is 1 except for BGV.
func divideByLastPrime(cd *ContextData, ct *Ciphertext) (factor uint64) {

	next := cd.NextContextData()
	tables := nttTables(cd.ringQ)

	for i := range ct.Value {
		switch {
		case cd.parms.scheme == SchemeBGV:
			cd.rnsTool.ModTAndDivideQLastNTTInplace(ct.Value[i].Coeffs, tables)
		case ct.IsNTTForm:
			cd.rnsTool.DivideAndRoundQLastNTTInplace(ct.Value[i].Coeffs, tables)
		default:
			cd.rnsTool.DivideAndRoundQLastInplace(ct.Value[i].Coeffs)
		}
		ct.Value[i].Resize(next.level())
	}

	ct.parmsID = next.ParmsID()

	if cd.parms.scheme == SchemeBGV {
		return cd.rnsTool.InvQLastModT()
	}

	return 1
}
