package ring

import (
	"math/bits"

	"github.com/levelhe/levelhe/utils/sampling"
)

// TernarySampler keeps the state of a sampler of polynomials with
// coefficients uniformly distributed in [-1, 0, 1].
type TernarySampler struct {
	*baseSampler
	*randomBuffer
}

// NewTernarySampler creates a new instance of [TernarySampler] from a PRNG and ring definition.
func NewTernarySampler(prng sampling.PRNG, baseRing *Ring) *TernarySampler {
	return &TernarySampler{
		baseSampler:  &baseSampler{prng: prng, baseRing: baseRing},
		randomBuffer: newRandomBuffer(),
	}
}

// AtLevel returns an instance of the target TernarySampler to sample at the given level.
// The returned sampler cannot be used concurrently to the original sampler.
func (ts *TernarySampler) AtLevel(level int) Sampler {
	return &TernarySampler{
		baseSampler:  ts.baseSampler.AtLevel(level),
		randomBuffer: ts.randomBuffer,
	}
}

// Read samples a ternary polynomial on pol.
func (ts *TernarySampler) Read(pol Poly) {
	ts.read(pol, func(a, b, c uint64) uint64 {
		return b
	})
}

// ReadNew samples a new ternary polynomial.
func (ts *TernarySampler) ReadNew() (pol Poly) {
	pol = ts.baseRing.NewPoly()
	ts.Read(pol)
	return
}

// ReadAndAdd adds a ternary polynomial on pol.
func (ts *TernarySampler) ReadAndAdd(pol Poly) {
	ts.read(pol, func(a, b, c uint64) uint64 {
		return CRed(a+b, c)
	})
}

func (ts *TernarySampler) read(pol Poly, f func(a, b, c uint64) uint64) {
	for i := 0; i < ts.baseRing.N(); i++ {
		// rejection sampling of a byte uniform in [0, 3*85)
		var r byte
		for {
			if r = ts.next(ts.prng, 1)[0]; r < 255 {
				break
			}
		}
		ts.setSmall(pol, i, int64(r%3)-1, f)
	}
}

// CenteredBinomialSampler keeps the state of a sampler of polynomials with
// coefficients following the centered binomial distribution of parameter 21.
type CenteredBinomialSampler struct {
	*baseSampler
	*randomBuffer
}

// NewCenteredBinomialSampler creates a new instance of [CenteredBinomialSampler] from a PRNG and ring definition.
func NewCenteredBinomialSampler(prng sampling.PRNG, baseRing *Ring) *CenteredBinomialSampler {
	return &CenteredBinomialSampler{
		baseSampler:  &baseSampler{prng: prng, baseRing: baseRing},
		randomBuffer: newRandomBuffer(),
	}
}

// AtLevel returns an instance of the target CenteredBinomialSampler to sample at the given level.
// The returned sampler cannot be used concurrently to the original sampler.
func (cs *CenteredBinomialSampler) AtLevel(level int) Sampler {
	return &CenteredBinomialSampler{
		baseSampler:  cs.baseSampler.AtLevel(level),
		randomBuffer: cs.randomBuffer,
	}
}

// Read samples a centered binomial polynomial on pol.
func (cs *CenteredBinomialSampler) Read(pol Poly) {
	cs.read(pol, func(a, b, c uint64) uint64 {
		return b
	})
}

// ReadNew samples a new centered binomial polynomial.
func (cs *CenteredBinomialSampler) ReadNew() (pol Poly) {
	pol = cs.baseRing.NewPoly()
	cs.Read(pol)
	return
}

// ReadAndAdd adds a centered binomial polynomial on pol.
func (cs *CenteredBinomialSampler) ReadAndAdd(pol Poly) {
	cs.read(pol, func(a, b, c uint64) uint64 {
		return CRed(a+b, c)
	})
}

func (cs *CenteredBinomialSampler) read(pol Poly, f func(a, b, c uint64) uint64) {
	for i := 0; i < cs.baseRing.N(); i++ {
		b := cs.next(cs.prng, 6)
		x := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2]&0x1f)<<16
		y := uint32(b[3]) | uint32(b[4])<<8 | uint32(b[5]&0x1f)<<16
		cs.setSmall(pol, i, int64(bits.OnesCount32(x))-int64(bits.OnesCount32(y)), f)
	}
}
