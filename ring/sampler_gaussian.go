package ring

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/rand"

	"github.com/levelhe/levelhe/utils/sampling"
)

// GaussianSampler keeps the state of a sampler of rounded gaussian
// polynomials clipped to [-Bound, Bound].
type GaussianSampler struct {
	*baseSampler
	xe     DiscreteGaussian
	normal *rand.Rand
}

// prngSource adapts a [sampling.PRNG] to a [rand.Source64], so that the
// Ziggurat normal sampler of math/rand draws its randomness from it.
type prngSource struct {
	prng sampling.PRNG
	buff *randomBuffer
}

func (s prngSource) Uint64() uint64 {
	return binary.LittleEndian.Uint64(s.buff.next(s.prng, 8))
}

func (s prngSource) Int63() int64 {
	return int64(s.Uint64() >> 1)
}

func (s prngSource) Seed(int64) {
	panic("prngSource cannot be seeded")
}

// NewGaussianSampler creates a new instance of [GaussianSampler] from a PRNG,
// a ring definition and the distribution parameters.
func NewGaussianSampler(prng sampling.PRNG, baseRing *Ring, X DiscreteGaussian) (g *GaussianSampler, err error) {

	if X.Sigma <= 0 || X.Bound < 0 || math.IsNaN(X.Sigma) || math.IsNaN(X.Bound) {
		return nil, fmt.Errorf("%w: invalid gaussian parameters sigma=%f bound=%f", ErrInvalidArgument, X.Sigma, X.Bound)
	}

	return &GaussianSampler{
		baseSampler: &baseSampler{prng: prng, baseRing: baseRing},
		xe:          X,
		normal:      rand.New(prngSource{prng: prng, buff: newRandomBuffer()}),
	}, nil
}

// AtLevel returns an instance of the target GaussianSampler to sample at the given level.
// The returned sampler cannot be used concurrently to the original sampler.
func (g *GaussianSampler) AtLevel(level int) Sampler {
	return &GaussianSampler{
		baseSampler: g.baseSampler.AtLevel(level),
		xe:          g.xe,
		normal:      g.normal,
	}
}

// Read samples a clipped rounded gaussian polynomial on pol.
func (g *GaussianSampler) Read(pol Poly) {
	g.read(pol, func(a, b, c uint64) uint64 {
		return b
	})
}

// ReadNew samples a new clipped rounded gaussian polynomial.
func (g *GaussianSampler) ReadNew() (pol Poly) {
	pol = g.baseRing.NewPoly()
	g.Read(pol)
	return
}

// ReadAndAdd adds a clipped rounded gaussian polynomial on pol.
func (g *GaussianSampler) ReadAndAdd(pol Poly) {
	g.read(pol, func(a, b, c uint64) uint64 {
		return CRed(a+b, c)
	})
}

func (g *GaussianSampler) read(pol Poly, f func(a, b, c uint64) uint64) {
	sigma, bound := g.xe.Sigma, g.xe.Bound
	for i := 0; i < g.baseRing.N(); i++ {
		var x float64
		for {
			if x = math.Round(g.normal.NormFloat64() * sigma); math.Abs(x) <= bound {
				break
			}
		}
		g.setSmall(pol, i, int64(x), f)
	}
}
