package ring

import (
	"fmt"
	"math"

	"github.com/levelhe/levelhe/utils"
)

const (
	// PolyModulusDegreeMax is the largest supported ring degree.
	PolyModulusDegreeMax = 131072
	// PolyModulusDegreeMin is the smallest supported ring degree.
	PolyModulusDegreeMin = 2
	// CoeffModulusCountMax is the largest supported number of primes in a coefficient modulus.
	CoeffModulusCountMax = 64
	// CoeffModulusCountMin is the smallest supported number of primes in a coefficient modulus.
	CoeffModulusCountMin = 1
)

// CoeffModulusMaxBitCount returns the largest total bit count of a coefficient
// modulus that achieves the given security level with ring degree n.
// It returns 0 if the ring degree is not covered by the security standard,
// and math.MaxInt for [SecLevelNone].
func CoeffModulusMaxBitCount(n int, sec SecLevel) int {
	if sec == SecLevelNone {
		return math.MaxInt
	}
	if table, ok := maxBitCount[sec]; ok {
		return table[n]
	}
	return 0
}

// CoeffModulusBFVDefault returns a default coefficient modulus for the BFV
// scheme achieving the given security level with ring degree n.
// The moduli are NTT-friendly primes whose bit sizes sum to [CoeffModulusMaxBitCount].
func CoeffModulusBFVDefault(n int, sec SecLevel) ([]Modulus, error) {

	if CoeffModulusMaxBitCount(n, sec) == 0 {
		return nil, fmt.Errorf("%w: non-standard poly modulus degree %d", ErrInvalidArgument, n)
	}

	if sec == SecLevelNone {
		return nil, fmt.Errorf("%w: invalid security level %s", ErrInvalidArgument, sec)
	}

	return CoeffModulusCreate(n, defaultCoeffModulusBitSizes[sec][n])
}

// CoeffModulusCreate returns distinct primes congruent to 1 mod 2n whose bit
// sizes are given by bitSizes. Primes of equal bit size are taken from the
// largest downward and assigned from the last occurrence to the first.
func CoeffModulusCreate(n int, bitSizes []int) (moduli []Modulus, err error) {

	if n > PolyModulusDegreeMax || n < PolyModulusDegreeMin || !utils.IsPowerOfTwo(uint64(n)) {
		return nil, fmt.Errorf("%w: poly modulus degree %d is invalid", ErrInvalidArgument, n)
	}

	if len(bitSizes) > CoeffModulusCountMax {
		return nil, fmt.Errorf("%w: bit sizes are invalid: at most %d moduli are supported", ErrInvalidArgument, CoeffModulusCountMax)
	}

	countTable := map[int]int{}
	for _, size := range bitSizes {
		if size > UserModulusBitCountMax || size < UserModulusBitCountMin {
			return nil, fmt.Errorf("%w: bit size %d is invalid", ErrInvalidArgument, size)
		}
		countTable[size]++
	}

	primeTable := map[int][]Modulus{}
	for _, size := range utils.GetSortedKeys(countTable) {
		if primeTable[size], err = GetPrimes(uint64(n), size, countTable[size]); err != nil {
			return nil, err
		}
	}

	moduli = make([]Modulus, len(bitSizes))
	for i, size := range bitSizes {
		primes := primeTable[size]
		moduli[i] = primes[len(primes)-1]
		primeTable[size] = primes[:len(primes)-1]
	}

	return
}

// PlainModulusBatching returns a prime plaintext modulus of bitSize bits that
// supports batching with ring degree n.
func PlainModulusBatching(n, bitSize int) (Modulus, error) {
	moduli, err := CoeffModulusCreate(n, []int{bitSize})
	if err != nil {
		return Modulus{}, err
	}
	return moduli[0], nil
}

// PlainModulusBatchingMany returns distinct prime plaintext moduli of the
// given bit sizes that support batching with ring degree n.
func PlainModulusBatchingMany(n int, bitSizes []int) ([]Modulus, error) {
	return CoeffModulusCreate(n, bitSizes)
}
