package ring

import (
	"math/bits"
)

//==========================
//=== BARRETT REDUCTION  ===
//==========================

// BRedParams computes floor(2^128/q) as two 64-bit words (low, high) and the
// remainder 2^128 mod q, which are the constants of the Barrett reduction with
// a radix of 2^128.
func BRedParams(q uint64) (params [3]uint64) {
	// 2^128 = 1 * 2^128 + 0 * 2^64 + 0, long division by q word by word.
	hi, rem := bits.Div64(1, 0, q)
	lo, rem := bits.Div64(rem, 0, q)
	return [3]uint64{lo, hi, rem}
}

// BRedAdd reduces a 64-bit integer x by q.
func BRedAdd(x uint64, q Modulus) (r uint64) {
	s0, _ := bits.Mul64(x, q.constRatio[1])
	r = x - s0*q.value
	if r >= q.value {
		r -= q.value
	}
	return
}

// BRed128 reduces the 128-bit integer hi*2^64 + lo by q.
func BRed128(hi, lo uint64, q Modulus) (r uint64) {

	u0, u1 := q.constRatio[0], q.constRatio[1]

	// Round 1
	carry, _ := bits.Mul64(lo, u0)
	mhi, mlo := bits.Mul64(lo, u1)
	s0, c := bits.Add64(mlo, carry, 0)
	s1 := mhi + c

	// Round 2
	mhi, mlo = bits.Mul64(hi, u0)
	_, c = bits.Add64(s0, mlo, 0)
	carry = mhi + c

	s0 = hi*u1 + s1 + carry

	// Barrett subtraction
	r = lo - s0*q.value
	if r >= q.value {
		r -= q.value
	}

	return
}

// BRed returns x*y mod q.
func BRed(x, y uint64, q Modulus) uint64 {
	hi, lo := bits.Mul64(x, y)
	return BRed128(hi, lo, q)
}

//===============================
//==== CONDITIONAL REDUCTION ====
//===============================

// CRed reduce returns a mod q, where,
// a is required to be in the range [0, 2q-1].
func CRed(a, q uint64) uint64 {
	if a >= q {
		return a - q
	}
	return a
}

//===============================
//==== SHOUP MULTIPLICATION ====
//===============================

// MulOperand is a multiplicand w < q together with its Shoup quotient
// floor(w*2^64/q), which speeds up repeated multiplications by w.
type MulOperand struct {
	Operand  uint64
	Quotient uint64
}

// NewMulOperand returns the [MulOperand] of w mod q.
func NewMulOperand(w uint64, q Modulus) (op MulOperand) {
	op.Operand = BRedAdd(w, q)
	op.Quotient, _ = bits.Div64(op.Operand, 0, q.value)
	return
}

// MulShoup returns x*w mod q.
func MulShoup(x uint64, w MulOperand, q uint64) (r uint64) {
	r = MulShoupLazy(x, w, q)
	if r >= q {
		r -= q
	}
	return
}

// MulShoupLazy returns x*w mod q in the range [0, 2q-1].
func MulShoupLazy(x uint64, w MulOperand, q uint64) uint64 {
	hi, _ := bits.Mul64(x, w.Quotient)
	return w.Operand*x - hi*q
}

//===============================
//==== MODULAR ARITHMETIC ======
//===============================

// AddMod returns a+b mod q for a, b in [0, q-1].
func AddMod(a, b, q uint64) uint64 {
	return CRed(a+b, q)
}

// SubMod returns a-b mod q for a, b in [0, q-1].
func SubMod(a, b, q uint64) uint64 {
	if a >= b {
		return a - b
	}
	return a + q - b
}

// NegMod returns -a mod q for a in [0, q-1].
func NegMod(a, q uint64) uint64 {
	if a == 0 {
		return 0
	}
	return q - a
}

// MulAddMod returns a*b+c mod q.
func MulAddMod(a, b, c uint64, q Modulus) uint64 {
	hi, lo := bits.Mul64(a, b)
	var carry uint64
	lo, carry = bits.Add64(lo, c, 0)
	return BRed128(hi+carry, lo, q)
}

// ModExp performs the modular exponentiation x^e mod q.
func ModExp(x, e uint64, q Modulus) (result uint64) {
	result = 1
	x = BRedAdd(x, q)
	for i := e; i > 0; i >>= 1 {
		if i&1 == 1 {
			result = BRed(result, x, q)
		}
		x = BRed(x, x, q)
	}
	return
}

// ModInverse returns the inverse of x mod q and true, or 0 and false if x is not invertible.
func ModInverse(x, q uint64) (uint64, bool) {

	if q <= 1 {
		return 0, false
	}

	x %= q
	if x == 0 {
		return 0, false
	}

	// extended Euclid on (q, x) tracking only the coefficient of x, kept mod q
	var (
		r0, r1 = q, x
		t0, t1 = uint64(0), uint64(1)
	)

	for r1 != 0 {
		quo := r0 / r1
		r0, r1 = r1, r0-quo*r1
		hi, lo := bits.Mul64(quo, t1)
		_, m := bits.Div64(hi%q, lo, q)
		t0, t1 = t1, SubMod(t0, m, q)
	}

	if r0 != 1 {
		return 0, false
	}

	return t0, true
}

// DotProductMod returns sum a[i]*b[i] mod q for b[i] in [0, q-1].
func DotProductMod(a, b []uint64, q Modulus) uint64 {
	var accHi, accLo, c uint64
	for i := range a {
		hi, lo := bits.Mul64(a[i], b[i])
		accLo, c = bits.Add64(accLo, lo, 0)
		// accHi*2^64 only matters mod q
		accHi += hi + c
		if accHi >= q.value {
			accHi %= q.value
		}
	}
	return BRed128(accHi, accLo, q)
}
