package ring

import (
	"fmt"

	"github.com/levelhe/levelhe/utils"
)

// SubRing is a struct storing precomputation
// for fast modular reduction and NTT for
// a given modulus.
type SubRing struct {
	// Polynomial nb.Coefficients
	N int

	// Modulus
	Modulus Modulus

	// NTT related constants, nil if the modulus does not support the NTT of degree N.
	*NTTTable
}

// NewSubRing creates a new SubRing of degree N and modulus q.
// The NTT table is generated if q is a prime congruent to 1 mod 2N.
func NewSubRing(N int, q Modulus) (s *SubRing, err error) {

	if N < PolyModulusDegreeMin || N > PolyModulusDegreeMax || !utils.IsPowerOfTwo(uint64(N)) {
		return nil, fmt.Errorf("%w: invalid ring degree %d: must be a power of two in [%d, %d]", ErrInvalidArgument, N, PolyModulusDegreeMin, PolyModulusDegreeMax)
	}

	if q.IsZero() {
		return nil, fmt.Errorf("%w: modulus is zero", ErrInvalidArgument)
	}

	s = &SubRing{N: N, Modulus: q}

	if q.IsPrime() && q.Value()&uint64(2*N-1) == 1 {
		if s.NTTTable, err = NewNTTTable(utils.PowerOfTwo(uint64(N)), q); err != nil {
			return nil, err
		}
	}

	return
}

// SupportsNTT returns true if the modulus of the SubRing allows the NTT of degree N.
func (s *SubRing) SupportsNTT() bool {
	return s.NTTTable != nil
}

// NTT evaluates p2 = NTT(p1).
func (s *SubRing) NTT(p1, p2 []uint64) {
	copy(p2, p1)
	s.NTTTable.Forward(p2)
}

// NTTLazy evaluates p2 = NTT(p1) with p2 in [0, 4*modulus-1].
func (s *SubRing) NTTLazy(p1, p2 []uint64) {
	copy(p2, p1)
	s.NTTTable.ForwardLazy(p2)
}

// INTT evaluates p2 = INTT(p1).
func (s *SubRing) INTT(p1, p2 []uint64) {
	copy(p2, p1)
	s.NTTTable.Backward(p2)
}

// INTTLazy evaluates p2 = INTT(p1) with p2 in [0, 2*modulus-1].
func (s *SubRing) INTTLazy(p1, p2 []uint64) {
	copy(p2, p1)
	s.NTTTable.BackwardLazy(p2)
}

// Add evaluates p3 = p1 + p2 (mod modulus).
func (s *SubRing) Add(p1, p2, p3 []uint64) {
	q := s.Modulus.value
	for i := range p3[:s.N] {
		p3[i] = AddMod(p1[i], p2[i], q)
	}
}

// Sub evaluates p3 = p1 - p2 (mod modulus).
func (s *SubRing) Sub(p1, p2, p3 []uint64) {
	q := s.Modulus.value
	for i := range p3[:s.N] {
		p3[i] = SubMod(p1[i], p2[i], q)
	}
}

// Neg evaluates p2 = -p1 (mod modulus).
func (s *SubRing) Neg(p1, p2 []uint64) {
	q := s.Modulus.value
	for i := range p2[:s.N] {
		p2[i] = NegMod(p1[i], q)
	}
}

// Reduce evaluates p2 = p1 (mod modulus) for arbitrary 64-bit inputs.
func (s *SubRing) Reduce(p1, p2 []uint64) {
	for i := range p2[:s.N] {
		p2[i] = BRedAdd(p1[i], s.Modulus)
	}
}

// MulCoeffs evaluates p3 = p1 * p2 coefficient-wise (mod modulus).
func (s *SubRing) MulCoeffs(p1, p2, p3 []uint64) {
	for i := range p3[:s.N] {
		p3[i] = BRed(p1[i], p2[i], s.Modulus)
	}
}

// MulCoeffsThenAdd evaluates p3 = p3 + p1 * p2 coefficient-wise (mod modulus).
func (s *SubRing) MulCoeffsThenAdd(p1, p2, p3 []uint64) {
	for i := range p3[:s.N] {
		p3[i] = MulAddMod(p1[i], p2[i], p3[i], s.Modulus)
	}
}

// MulScalar evaluates p2 = p1 * scalar (mod modulus).
func (s *SubRing) MulScalar(p1 []uint64, scalar uint64, p2 []uint64) {
	op := NewMulOperand(scalar, s.Modulus)
	q := s.Modulus.value
	for i := range p2[:s.N] {
		p2[i] = MulShoup(p1[i], op, q)
	}
}

// MulScalarThenAdd evaluates p2 = p2 + p1 * scalar (mod modulus).
func (s *SubRing) MulScalarThenAdd(p1 []uint64, scalar uint64, p2 []uint64) {
	op := NewMulOperand(scalar, s.Modulus)
	q := s.Modulus.value
	for i := range p2[:s.N] {
		p2[i] = AddMod(p2[i], MulShoup(p1[i], op, q), q)
	}
}

// AddScalar evaluates p2 = p1 + scalar (mod modulus) on every coefficient.
func (s *SubRing) AddScalar(p1 []uint64, scalar uint64, p2 []uint64) {
	q := s.Modulus.value
	scalar = BRedAdd(scalar, s.Modulus)
	for i := range p2[:s.N] {
		p2[i] = AddMod(p1[i], scalar, q)
	}
}

// MulByMonomial evaluates p2 = p1 * X^k in Z_q[X]/(X^N+1) for p1 in
// coefficient form. p1 and p2 must not overlap.
func (s *SubRing) MulByMonomial(p1 []uint64, k int, p2 []uint64) {
	N := s.N
	q := s.Modulus.value
	k &= 2*N - 1
	for i := 0; i < N; i++ {
		j := i + k
		v := p1[i]
		if j >= N {
			j -= N
			v = NegMod(v, q)
			if j >= N {
				j -= N
				v = NegMod(v, q)
			}
		}
		p2[j] = v
	}
}
