package ring

import (
	"fmt"
	"math/big"
)

// IsPrime applies the Baillie-PSW, which is 100% accurate for numbers bellow 2^64.
func IsPrime(x uint64) bool {
	return new(big.Int).SetUint64(x).ProbablyPrime(0)
}

// GetPrimes returns count distinct primes of exactly bitSize bits that are
// congruent to 1 modulo 2n, in decreasing order starting from 2^bitSize.
func GetPrimes(n uint64, bitSize, count int) (primes []Modulus, err error) {

	if count <= 0 {
		return nil, fmt.Errorf("%w: count must be positive", ErrInvalidArgument)
	}

	if n == 0 {
		return nil, fmt.Errorf("%w: n must be positive", ErrInvalidArgument)
	}

	if bitSize >= 63 || bitSize <= 1 {
		return nil, fmt.Errorf("%w: bitSize is invalid", ErrInvalidArgument)
	}

	factor := 2 * n
	value := uint64(1) << bitSize
	if value < factor {
		return nil, fmt.Errorf("%w: failed to find enough qualifying primes", ErrLogic)
	}
	value = value - factor + 1

	lowerBound := uint64(1) << (bitSize - 1)
	for count > 0 && value > lowerBound {
		if IsPrime(value) {
			var m Modulus
			if m, err = NewModulus(value); err != nil {
				return nil, err
			}
			primes = append(primes, m)
			count--
		}
		value -= factor
	}

	if count > 0 {
		return nil, fmt.Errorf("%w: failed to find enough qualifying primes", ErrLogic)
	}

	return
}

// IsPrimitiveRoot returns true if root is a primitive degree-th root of unity
// modulo q, where degree is a power of two.
func IsPrimitiveRoot(root, degree uint64, q Modulus) bool {
	if root == 0 {
		return false
	}
	// root is primitive iff root^(degree/2) = -1 mod q
	return ModExp(root, degree>>1, q) == q.value-1
}

// PrimitiveRoot returns a primitive degree-th root of unity modulo the prime q,
// where degree is a power of two dividing q-1.
func PrimitiveRoot(degree uint64, q Modulus) (root uint64, err error) {

	if degree < 2 || degree&(degree-1) != 0 {
		return 0, fmt.Errorf("%w: degree must be a power of two larger than one", ErrInvalidArgument)
	}

	sizeQuotientGroup := (q.value - 1) / degree
	if (q.value-1)%degree != 0 {
		return 0, fmt.Errorf("%w: %d does not divide %d-1", ErrInvalidArgument, degree, q.value)
	}

	for x := uint64(2); x < q.value; x++ {
		root = ModExp(x, sizeQuotientGroup, q)
		if IsPrimitiveRoot(root, degree, q) {
			return root, nil
		}
	}

	return 0, fmt.Errorf("%w: no primitive %d-th root of unity modulo %d", ErrInvalidArgument, degree, q.value)
}

// MinimalPrimitiveRoot returns the smallest primitive degree-th root of unity modulo the prime q.
func MinimalPrimitiveRoot(degree uint64, q Modulus) (uint64, error) {

	root, err := PrimitiveRoot(degree, q)
	if err != nil {
		return 0, err
	}

	// the primitive roots are the odd powers of root
	generatorSq := BRed(root, root, q)
	current := root
	minimal := root

	for i := uint64(0); i < degree>>1; i++ {
		if current < minimal {
			minimal = current
		}
		current = BRed(current, generatorSq, q)
	}

	return minimal, nil
}
