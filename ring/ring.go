// Package ring implements RNS-accelerated modular arithmetic operations for polynomials,
// including: RNS basis extension; RNS rescaling; number theoretic transform (NTT); uniform,
// ternary and Gaussian sampling.
package ring

import (
	"fmt"
	"math/big"

	"github.com/levelhe/levelhe/utils"
)

// Ring is a structure that keeps all the variables required to operate on a polynomial represented in this ring.
// Operations act on the first len(SubRings) limbs of their operands.
type Ring struct {
	SubRings []*SubRing
}

// NewRing creates a new RNS Ring with degree N and coefficient moduli moduli.
// N must be a power of two in [2, 131072] and the moduli must be pairwise distinct.
func NewRing(N int, moduli []Modulus) (r *Ring, err error) {

	if len(moduli) == 0 {
		return nil, fmt.Errorf("%w: moduli list is empty", ErrInvalidArgument)
	}

	values := ModuliValues(moduli)
	if !utils.AllDistinct(values) {
		return nil, fmt.Errorf("%w: moduli are not pairwise distinct", ErrInvalidArgument)
	}

	r = &Ring{SubRings: make([]*SubRing, len(moduli))}
	for i := range moduli {
		if r.SubRings[i], err = NewSubRing(N, moduli[i]); err != nil {
			return nil, err
		}
	}

	return
}

// N returns the ring degree.
func (r *Ring) N() int {
	return r.SubRings[0].N
}

// LogN returns log2(N).
func (r *Ring) LogN() int {
	return utils.PowerOfTwo(uint64(r.N()))
}

// Level returns the level of the current ring.
func (r *Ring) Level() int {
	return len(r.SubRings) - 1
}

// AtLevel returns an instance of the target ring that operates at the target level.
// This instance is thread safe and can be used concurrently with the base ring.
func (r *Ring) AtLevel(level int) *Ring {
	if level < 0 || level > r.Level() {
		panic(fmt.Errorf("level must be in [0, %d] but is %d", r.Level(), level))
	}
	return &Ring{SubRings: r.SubRings[:level+1]}
}

// Moduli returns the moduli of the ring.
func (r *Ring) Moduli() (moduli []Modulus) {
	moduli = make([]Modulus, len(r.SubRings))
	for i, s := range r.SubRings {
		moduli[i] = s.Modulus
	}
	return
}

// ModuliProduct returns the product of the moduli of the ring.
func (r *Ring) ModuliProduct() (p *big.Int) {
	p = big.NewInt(1)
	for _, s := range r.SubRings {
		p.Mul(p, new(big.Int).SetUint64(s.Modulus.value))
	}
	return
}

// SupportsNTT returns true if every modulus of the ring supports the NTT.
func (r *Ring) SupportsNTT() bool {
	for _, s := range r.SubRings {
		if !s.SupportsNTT() {
			return false
		}
	}
	return true
}

// NewPoly creates a new polynomial with all coefficients set to 0.
func (r *Ring) NewPoly() Poly {
	return NewPoly(r.N(), r.Level())
}

// NTT evaluates p2 = NTT(p1).
func (r *Ring) NTT(p1, p2 Poly) {
	for i, s := range r.SubRings {
		s.NTT(p1.Coeffs[i], p2.Coeffs[i])
	}
}

// NTTLazy evaluates p2 = NTT(p1) with p2 in [0, 4*modulus-1].
func (r *Ring) NTTLazy(p1, p2 Poly) {
	for i, s := range r.SubRings {
		s.NTTLazy(p1.Coeffs[i], p2.Coeffs[i])
	}
}

// INTT evaluates p2 = INTT(p1).
func (r *Ring) INTT(p1, p2 Poly) {
	for i, s := range r.SubRings {
		s.INTT(p1.Coeffs[i], p2.Coeffs[i])
	}
}

// Add evaluates p3 = p1 + p2 coefficient-wise in the ring.
func (r *Ring) Add(p1, p2, p3 Poly) {
	for i, s := range r.SubRings {
		s.Add(p1.Coeffs[i], p2.Coeffs[i], p3.Coeffs[i])
	}
}

// Sub evaluates p3 = p1 - p2 coefficient-wise in the ring.
func (r *Ring) Sub(p1, p2, p3 Poly) {
	for i, s := range r.SubRings {
		s.Sub(p1.Coeffs[i], p2.Coeffs[i], p3.Coeffs[i])
	}
}

// Neg evaluates p2 = -p1 coefficient-wise in the ring.
func (r *Ring) Neg(p1, p2 Poly) {
	for i, s := range r.SubRings {
		s.Neg(p1.Coeffs[i], p2.Coeffs[i])
	}
}

// Reduce evaluates p2 = p1 coefficient-wise mod modulus in the ring.
func (r *Ring) Reduce(p1, p2 Poly) {
	for i, s := range r.SubRings {
		s.Reduce(p1.Coeffs[i], p2.Coeffs[i])
	}
}

// MulCoeffs evaluates p3 = p1 * p2 coefficient-wise in the ring.
func (r *Ring) MulCoeffs(p1, p2, p3 Poly) {
	for i, s := range r.SubRings {
		s.MulCoeffs(p1.Coeffs[i], p2.Coeffs[i], p3.Coeffs[i])
	}
}

// MulCoeffsThenAdd evaluates p3 = p3 + p1 * p2 coefficient-wise in the ring.
func (r *Ring) MulCoeffsThenAdd(p1, p2, p3 Poly) {
	for i, s := range r.SubRings {
		s.MulCoeffsThenAdd(p1.Coeffs[i], p2.Coeffs[i], p3.Coeffs[i])
	}
}

// MulScalar evaluates p2 = p1 * scalar coefficient-wise in the ring.
func (r *Ring) MulScalar(p1 Poly, scalar uint64, p2 Poly) {
	for i, s := range r.SubRings {
		s.MulScalar(p1.Coeffs[i], BRedAdd(scalar, s.Modulus), p2.Coeffs[i])
	}
}

// MulRNSScalar evaluates p2 = p1 * scalar coefficient-wise in the ring,
// where scalar[i] is the residue of the scalar modulo the i-th modulus.
func (r *Ring) MulRNSScalar(p1 Poly, scalar []uint64, p2 Poly) {
	for i, s := range r.SubRings {
		s.MulScalar(p1.Coeffs[i], scalar[i], p2.Coeffs[i])
	}
}

// MulScalarBigint evaluates p2 = p1 * scalar coefficient-wise in the ring.
func (r *Ring) MulScalarBigint(p1 Poly, scalar *big.Int, p2 Poly) {
	tmp := new(big.Int)
	for i, s := range r.SubRings {
		tmp.Mod(scalar, new(big.Int).SetUint64(s.Modulus.value))
		s.MulScalar(p1.Coeffs[i], tmp.Uint64(), p2.Coeffs[i])
	}
}

// AddScalar evaluates p2 = p1 + scalar coefficient-wise in the ring.
func (r *Ring) AddScalar(p1 Poly, scalar uint64, p2 Poly) {
	for i, s := range r.SubRings {
		s.AddScalar(p1.Coeffs[i], scalar, p2.Coeffs[i])
	}
}

// MulByMonomial evaluates p2 = p1 * X^k for p1 in coefficient form.
// p1 and p2 must not overlap.
func (r *Ring) MulByMonomial(p1 Poly, k int, p2 Poly) {
	for i, s := range r.SubRings {
		s.MulByMonomial(p1.Coeffs[i], k, p2.Coeffs[i])
	}
}

// Equal checks if p1 = p2 in the given Ring.
func (r *Ring) Equal(p1, p2 Poly) bool {
	for i := range r.SubRings {
		if len(p1.Coeffs) <= i || len(p2.Coeffs) <= i {
			return false
		}
		for j := range p1.Coeffs[i] {
			if p1.Coeffs[i][j] != p2.Coeffs[i][j] {
				return false
			}
		}
	}
	return true
}

// SetCoefficientsBigint sets the coefficients of p1 from an array of Int variables.
func (r *Ring) SetCoefficientsBigint(coeffs []*big.Int, p1 Poly) {
	QiBigint := new(big.Int)
	coeffTmp := new(big.Int)
	for i, s := range r.SubRings {
		QiBigint.SetUint64(s.Modulus.value)
		for j, c := range coeffs {
			p1.Coeffs[i][j] = coeffTmp.Mod(c, QiBigint).Uint64()
		}
	}
}

// PolyToBigint reconstructs p1 and returns the result in an array of Int.
// gap defines coefficients X^{i*gap} that will be reconstructed.
func (r *Ring) PolyToBigint(p1 Poly, gap int, coeffsBigint []*big.Int) {

	crtReconstruction := make([]*big.Int, len(r.SubRings))

	QiB := new(big.Int)
	tmp := new(big.Int)
	modulusBigint := r.ModuliProduct()

	for i, s := range r.SubRings {
		QiB.SetUint64(s.Modulus.value)
		crtReconstruction[i] = new(big.Int).Quo(modulusBigint, QiB)
		tmp.ModInverse(crtReconstruction[i], QiB)
		tmp.Mod(tmp, QiB)
		crtReconstruction[i].Mul(crtReconstruction[i], tmp)
	}

	for i, j := 0, 0; j < r.N(); i, j = i+1, j+gap {

		tmp.SetUint64(0)
		coeffsBigint[i] = new(big.Int)

		for k := range r.SubRings {
			coeffsBigint[i].Add(coeffsBigint[i], tmp.Mul(new(big.Int).SetUint64(p1.Coeffs[k][j]), crtReconstruction[k]))
		}

		coeffsBigint[i].Mod(coeffsBigint[i], modulusBigint)
	}
}

// PolyToBigintCentered reconstructs p1 and returns the result in an array of Int.
// Coefficients are centered around Q/2.
// gap defines coefficients X^{i*gap} that will be reconstructed.
func (r *Ring) PolyToBigintCentered(p1 Poly, gap int, coeffsBigint []*big.Int) {

	r.PolyToBigint(p1, gap, coeffsBigint)

	Q := r.ModuliProduct()
	qHalf := new(big.Int).Rsh(Q, 1)

	for i := range coeffsBigint[:r.N()/gap] {
		if coeffsBigint[i].Cmp(qHalf) > 0 {
			coeffsBigint[i].Sub(coeffsBigint[i], Q)
		}
	}
}
