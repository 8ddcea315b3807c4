package utils

import (
	"golang.org/x/exp/constraints"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// GetSortedKeys returns the sorted keys of a map.
func GetSortedKeys[K constraints.Ordered, V any](m map[K]V) (keys []K) {
	keys = maps.Keys(m)
	slices.Sort(keys)
	return
}

// RotateSlice returns a new slice corresponding to s rotated by k positions to the left.
func RotateSlice[V any](s []V, k int) []V {
	ret := slices.Clone(s)
	RotateSliceInPlace(ret, k)
	return ret
}

// RotateSliceInPlace rotates slice s in place by k positions to the left.
func RotateSliceInPlace[V any](s []V, k int) {
	n := len(s)
	if n == 0 {
		return
	}
	k = k % n
	if k < 0 {
		k = k + n
	}
	if k == 0 {
		return
	}
	gcd := GCD(k, n)
	for i := 0; i < gcd; i++ {
		tmp := s[i]
		j := i
		for {
			x := j + k
			if x >= n {
				x = x - n
			}
			if x == i {
				break
			}
			s[j] = s[x]
			j = x
		}
		s[j] = tmp
	}
}

// RotateRows returns a new slice where the two halves of s are each
// rotated by k positions to the left independently.
func RotateRows[V any](s []V, k int) (r []V) {
	r = slices.Clone(s)
	rows := len(s) >> 1
	RotateSliceInPlace(r[:rows], k)
	RotateSliceInPlace(r[rows:], k)
	return
}

// SwapRows returns a new slice where the two halves of s are exchanged.
func SwapRows[V any](s []V) (r []V) {
	rows := len(s) >> 1
	r = make([]V, len(s))
	copy(r[:rows], s[rows:])
	copy(r[rows:], s[:rows])
	return
}

// BitReverseInPlaceSlice applies an in-place bit-reverse permutation on the first N elements of the input slice.
func BitReverseInPlaceSlice[V any](slice []V, N int) {

	var bit, j int

	for i := 1; i < N; i++ {

		bit = N >> 1

		for j >= bit {
			j -= bit
			bit >>= 1
		}

		j += bit

		if i < j {
			slice[i], slice[j] = slice[j], slice[i]
		}
	}
}
