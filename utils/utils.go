// Package utils implements various helper functions shared by the other packages.
package utils

import (
	"math/bits"

	"golang.org/x/exp/constraints"
)

// BitReverse64 returns the bit-reverse value of the input value, within a context of 2^bitLen.
func BitReverse64(index uint64, bitLen int) uint64 {
	if bitLen == 0 {
		return 0
	}
	return bits.Reverse64(index) >> (64 - bitLen)
}

// BitReverse32 returns the bit-reverse value of the input value, within a context of 2^bitLen.
func BitReverse32(index uint32, bitLen int) uint32 {
	if bitLen == 0 {
		return 0
	}
	return bits.Reverse32(index) >> (32 - bitLen)
}

// PowerOfTwo returns k such that value = 2^k, or -1 if value is not a power of two.
func PowerOfTwo(value uint64) int {
	if value == 0 || value&(value-1) != 0 {
		return -1
	}
	return bits.TrailingZeros64(value)
}

// IsPowerOfTwo returns true if value is a non-zero power of two.
func IsPowerOfTwo(value uint64) bool {
	return PowerOfTwo(value) >= 0
}

// SignificantBitCount returns the number of significant bits of value.
func SignificantBitCount(value uint64) int {
	return bits.Len64(value)
}

// Min returns the minimum value of the two inputs.
func Min[V constraints.Ordered](a, b V) V {
	if a <= b {
		return a
	}
	return b
}

// Max returns the maximum value of the two inputs.
func Max[V constraints.Ordered](a, b V) V {
	if a >= b {
		return a
	}
	return b
}

// GCD computes the greatest common divisor of a and b.
func GCD[V constraints.Integer](a, b V) V {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// AllDistinct returns true if all elements in s are distinct, and false otherwise.
func AllDistinct[V comparable](s []V) bool {
	m := make(map[V]struct{}, len(s))
	for _, si := range s {
		if _, exists := m[si]; exists {
			return false
		}
		m[si] = struct{}{}
	}
	return true
}

// MulOverflows returns true if the product of the inputs cannot be represented on an int.
func MulOverflows(a, b int) bool {
	if a < 0 || b < 0 {
		return true
	}
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	return hi != 0 || lo > uint64(^uint(0)>>1)
}

// NAF returns the non-zero terms of the non-adjacent form of value: signed
// powers of two, no two of them consecutive, summing to value.
func NAF(value int) (terms []int) {

	sign := 1
	if value < 0 {
		sign, value = -1, -value
	}

	for i := 0; value != 0; i++ {
		var z int
		if value&1 == 1 {
			z = 2 - value&3
		}
		value = (value - z) >> 1
		if z != 0 {
			terms = append(terms, sign*z<<i)
		}
	}

	return
}
