package ring

import (
	"encoding/binary"
	"math/bits"

	"github.com/levelhe/levelhe/utils/sampling"
)

// UniformSampler wraps a util.PRNG and represents the state of a sampler of uniform polynomials.
type UniformSampler struct {
	*baseSampler
	*randomBuffer
}

// NewUniformSampler creates a new instance of UniformSampler from a PRNG and ring definition.
func NewUniformSampler(prng sampling.PRNG, baseRing *Ring) (u *UniformSampler) {
	u = new(UniformSampler)
	u.baseSampler = &baseSampler{}
	u.baseRing = baseRing
	u.prng = prng
	u.randomBuffer = newRandomBuffer()
	return
}

// AtLevel returns an instance of the target UniformSampler to sample at the given level.
// The returned sampler cannot be used concurrently to the original sampler.
func (u *UniformSampler) AtLevel(level int) Sampler {
	return &UniformSampler{
		baseSampler:  u.baseSampler.AtLevel(level),
		randomBuffer: u.randomBuffer,
	}
}

// Read samples a uniform polynomial on pol.
func (u *UniformSampler) Read(pol Poly) {
	u.read(pol, func(a, b, c uint64) uint64 {
		return b
	})
}

// ReadAndAdd adds a uniform polynomial on pol.
func (u *UniformSampler) ReadAndAdd(pol Poly) {
	u.read(pol, func(a, b, c uint64) uint64 {
		return CRed(a+b, c)
	})
}

// ReadNew generates a new polynomial with coefficients following a uniform distribution over [0, Qi-1].
// Polynomial is created at the max level.
func (u *UniformSampler) ReadNew() (pol Poly) {
	pol = u.baseRing.NewPoly()
	u.Read(pol)
	return
}

func (u *UniformSampler) read(pol Poly, f func(a, b, c uint64) uint64) {

	N := u.baseRing.N()

	for j, s := range u.baseRing.SubRings {

		qi := s.Modulus.value

		// Starts by computing the mask
		mask := uint64(1)<<uint64(bits.Len64(qi-1)) - 1

		coeffs := pol.Coeffs[j]

		for i := 0; i < N; i++ {
			// Rejection sampling of a value in [0, qi-1]
			var randomUint uint64
			for {
				if randomUint = binary.LittleEndian.Uint64(u.next(u.prng, 8)) & mask; randomUint < qi {
					break
				}
			}
			coeffs[i] = f(coeffs[i], randomUint, qi)
		}
	}
}
