package ring

import (
	"fmt"

	"github.com/levelhe/levelhe/utils"
)

// NTTTable stores the precomputed constants of the negacyclic number
// theoretic transform of degree N modulo a prime q = 1 mod 2N.
// Forward transforms are Cooley-Tukey with Harvey butterflies and leave the
// coefficients in bit-reversed order; backward transforms are Gentleman-Sande
// and take bit-reversed input.
type NTTTable struct {
	n       int
	logN    int
	modulus Modulus

	// minimal primitive 2N-th root of unity
	root uint64

	// RootPowers[i] = root^bitrev(i), InvRootPowers[i] = root^-bitrev(i)
	rootPowers    []MulOperand
	invRootPowers []MulOperand

	invDegree MulOperand
}

// NewNTTTable generates the [NTTTable] of degree 2^logN for the prime modulus q.
func NewNTTTable(logN int, q Modulus) (table *NTTTable, err error) {

	if logN < 1 || logN > 17 {
		return nil, fmt.Errorf("%w: logN must be in [1, 17] but is %d", ErrInvalidArgument, logN)
	}

	n := 1 << logN

	if !q.IsPrime() || q.value&uint64(2*n-1) != 1 {
		return nil, fmt.Errorf("%w: modulus %d is not a prime congruent to 1 mod 2N", ErrInvalidArgument, q.value)
	}

	table = &NTTTable{
		n:       n,
		logN:    logN,
		modulus: q,
	}

	if table.root, err = MinimalPrimitiveRoot(uint64(2*n), q); err != nil {
		return nil, fmt.Errorf("cannot NewNTTTable: %w", err)
	}

	invRoot, ok := ModInverse(table.root, q.value)
	if !ok {
		return nil, fmt.Errorf("%w: root %d is not invertible modulo %d", ErrInvalidArgument, table.root, q.value)
	}

	table.rootPowers = make([]MulOperand, n)
	table.invRootPowers = make([]MulOperand, n)

	power, invPower := uint64(1), uint64(1)
	for i := 0; i < n; i++ {
		j := utils.BitReverse64(uint64(i), logN)
		table.rootPowers[j] = NewMulOperand(power, q)
		table.invRootPowers[j] = NewMulOperand(invPower, q)
		power = BRed(power, table.root, q)
		invPower = BRed(invPower, invRoot, q)
	}

	nInv, ok := ModInverse(uint64(n), q.value)
	if !ok {
		return nil, fmt.Errorf("%w: degree %d is not invertible modulo %d", ErrInvalidArgument, n, q.value)
	}
	table.invDegree = NewMulOperand(nInv, q)

	return
}

// N returns the degree of the transform.
func (t *NTTTable) N() int {
	return t.n
}

// LogN returns log2 of the degree of the transform.
func (t *NTTTable) LogN() int {
	return t.logN
}

// Modulus returns the modulus of the transform.
func (t *NTTTable) Modulus() Modulus {
	return t.modulus
}

// Root returns the minimal primitive 2N-th root of unity used by the transform.
func (t *NTTTable) Root() uint64 {
	return t.root
}

// RootPower returns root^bitrev(i).
func (t *NTTTable) RootPower(i int) uint64 {
	return t.rootPowers[i].Operand
}

// InvRootPower returns root^-bitrev(i).
func (t *NTTTable) InvRootPower(i int) uint64 {
	return t.invRootPowers[i].Operand
}

// butterfly computes X, Y = U + V*Psi, U - V*Psi mod Q in [0, 4q-1]
// for U, V in [0, 4q-1].
func butterfly(U, V uint64, Psi MulOperand, twoQ, Q uint64) (uint64, uint64) {
	if U >= twoQ {
		U -= twoQ
	}
	V = MulShoupLazy(V, Psi, Q)
	return U + V, U + twoQ - V
}

// invbutterfly computes X, Y = U + V, (U - V) * Psi mod Q in [0, 2q-1]
// for U, V in [0, 2q-1].
func invbutterfly(U, V uint64, Psi MulOperand, twoQ, Q uint64) (X, Y uint64) {
	X = U + V
	if X >= twoQ {
		X -= twoQ
	}
	Y = MulShoupLazy(U+twoQ-V, Psi, Q)
	return
}

// ForwardLazy evaluates the NTT of p in place.
// The input must be in [0, 4q-1] and the output is in [0, 4q-1].
func (t *NTTTable) ForwardLazy(p []uint64) {

	if len(p) < t.n {
		panic(fmt.Errorf("invalid input: len(p)=%d < N=%d", len(p), t.n))
	}

	Q := t.modulus.value
	twoQ := Q << 1

	gap := t.n >> 1
	for m := 1; m < t.n; m <<= 1 {
		for i := 0; i < m; i++ {
			psi := t.rootPowers[m+i]
			j1 := 2 * i * gap
			x, y := p[j1:j1+gap], p[j1+gap:j1+2*gap]
			for j := range x {
				x[j], y[j] = butterfly(x[j], y[j], psi, twoQ, Q)
			}
		}
		gap >>= 1
	}
}

// Forward evaluates the NTT of p in place.
// The input must be in [0, 4q-1] and the output is in [0, q-1].
func (t *NTTTable) Forward(p []uint64) {

	t.ForwardLazy(p)

	Q := t.modulus.value
	twoQ := Q << 1
	for i, c := range p[:t.n] {
		if c >= twoQ {
			c -= twoQ
		}
		p[i] = CRed(c, Q)
	}
}

// BackwardLazy evaluates the inverse NTT of p in place, scaling by N^-1.
// The input must be in [0, 2q-1] and the output is in [0, 2q-1].
func (t *NTTTable) BackwardLazy(p []uint64) {

	if len(p) < t.n {
		panic(fmt.Errorf("invalid input: len(p)=%d < N=%d", len(p), t.n))
	}

	Q := t.modulus.value
	twoQ := Q << 1

	gap := 1
	for m := t.n >> 1; m >= 1; m >>= 1 {
		for i := 0; i < m; i++ {
			psi := t.invRootPowers[m+i]
			j1 := 2 * i * gap
			x, y := p[j1:j1+gap], p[j1+gap:j1+2*gap]
			for j := range x {
				x[j], y[j] = invbutterfly(x[j], y[j], psi, twoQ, Q)
			}
		}
		gap <<= 1
	}

	for i := range p[:t.n] {
		p[i] = MulShoupLazy(p[i], t.invDegree, Q)
	}
}

// Backward evaluates the inverse NTT of p in place, scaling by N^-1.
// The input must be in [0, 2q-1] and the output is in [0, q-1].
func (t *NTTTable) Backward(p []uint64) {
	t.BackwardLazy(p)
	Q := t.modulus.value
	for i := range p[:t.n] {
		p[i] = CRed(p[i], Q)
	}
}
