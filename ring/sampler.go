package ring

import (
	"encoding/json"
	"fmt"

	"github.com/levelhe/levelhe/utils/sampling"
)

const (
	discreteGaussianName = "DiscreteGaussian"
	centeredBinomialName = "CenteredBinomial"
	ternaryDistName      = "Ternary"
	uniformDistName      = "Uniform"
)

// Sampler is an interface for random polynomial samplers.
// It has a single Read method which takes as argument the polynomial to be
// populated according to the Sampler's distribution.
type Sampler interface {
	Read(pol Poly)
	ReadNew() (pol Poly)
	ReadAndAdd(pol Poly)
	AtLevel(level int) Sampler
}

// DistributionParameters is an interface for distribution
// parameters in the ring.
// There are four implementation of this interface:
//   - DiscreteGaussian for sampling polynomials with rounded
//     gaussian coefficient of given standard deviation and bound.
//   - CenteredBinomial for sampling polynomials with coefficients
//     following a centered binomial distribution of variance 10.5.
//   - Ternary for sampling polynomials with coefficients uniform in [-1, 1].
//   - Uniform for sampling polynomial with uniformly random
//     coefficients in the ring.
type DistributionParameters interface {
	// Type returns a string representation of the distribution name.
	Type() string
	mustBeDist()
}

// DiscreteGaussian represents the parameters of a
// discrete Gaussian distribution with standard
// deviation Sigma and bounds [-Bound, Bound].
type DiscreteGaussian struct {
	Sigma float64
	Bound float64
}

// CenteredBinomial represents the centered binomial distribution obtained
// as the difference of the Hamming weights of two 21-bit random words.
// Its standard deviation is sqrt(10.5), close to [StandardErrorStdDev].
type CenteredBinomial struct{}

// Ternary represent the parameters of the uniform distribution over [-1, 0, 1].
type Ternary struct{}

// Uniform represents the parameters of a uniform distribution
// i.e., with coefficients uniformly distributed in the given ring.
type Uniform struct{}

// DefaultNoiseDistribution is the error distribution used by the encryptor
// and the key generator when none is specified.
var DefaultNoiseDistribution = DiscreteGaussian{Sigma: StandardErrorStdDev, Bound: StandardErrorMaxDev}

// NewSampler instantiates the [Sampler] of the distribution X over baseRing
// with randomness read from prng.
func NewSampler(prng sampling.PRNG, baseRing *Ring, X DistributionParameters) (Sampler, error) {
	switch X := X.(type) {
	case DiscreteGaussian:
		return NewGaussianSampler(prng, baseRing, X)
	case CenteredBinomial:
		return NewCenteredBinomialSampler(prng, baseRing), nil
	case Ternary:
		return NewTernarySampler(prng, baseRing), nil
	case Uniform:
		return NewUniformSampler(prng, baseRing), nil
	default:
		return nil, fmt.Errorf("%w: invalid distribution: want ring.DiscreteGaussian, ring.CenteredBinomial, ring.Ternary or ring.Uniform but have %T", ErrInvalidArgument, X)
	}
}

type baseSampler struct {
	prng     sampling.PRNG
	baseRing *Ring
}

// AtLevel returns an instance of the target base sampler that operates at the target level.
// This instance is not thread safe and cannot be used concurrently to the base instance.
func (b baseSampler) AtLevel(level int) *baseSampler {
	return &baseSampler{
		prng:     b.prng,
		baseRing: b.baseRing.AtLevel(level),
	}
}

// setSmall writes the small signed value x on the coefficient i of every limb of pol.
func (b baseSampler) setSmall(pol Poly, i int, x int64, f func(a, b, c uint64) uint64) {
	for j, s := range b.baseRing.SubRings {
		q := s.Modulus.value
		var v uint64
		if x < 0 {
			v = q - uint64(-x)
		} else {
			v = uint64(x)
		}
		pol.Coeffs[j][i] = f(pol.Coeffs[j][i], v, q)
	}
}

type randomBuffer struct {
	randomBufferN []byte
	ptr           int
}

func newRandomBuffer() *randomBuffer {
	return &randomBuffer{
		randomBufferN: make([]byte, 1024),
	}
}

// next returns the next n <= 8 random bytes of the buffer, refilling it from prng when exhausted.
func (rb *randomBuffer) next(prng sampling.PRNG, n int) []byte {
	if rb.ptr == 0 || rb.ptr+n > len(rb.randomBufferN) {
		if _, err := prng.Read(rb.randomBufferN); err != nil {
			// Sanity check, this error should not happen.
			panic(err)
		}
		rb.ptr = 0
	}
	b := rb.randomBufferN[rb.ptr : rb.ptr+n]
	rb.ptr += n
	return b
}

func (d DiscreteGaussian) Type() string {
	return discreteGaussianName
}

func (d DiscreteGaussian) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type         string
		Sigma, Bound float64 `json:",omitempty"`
	}{d.Type(), d.Sigma, d.Bound})
}

func (d DiscreteGaussian) mustBeDist() {}

func (d CenteredBinomial) Type() string {
	return centeredBinomialName
}

func (d CenteredBinomial) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string
	}{Type: d.Type()})
}

func (d CenteredBinomial) mustBeDist() {}

func (d Ternary) Type() string {
	return ternaryDistName
}

func (d Ternary) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string
	}{Type: d.Type()})
}

func (d Ternary) mustBeDist() {}

func (d Uniform) Type() string {
	return uniformDistName
}

func (d Uniform) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string
	}{Type: d.Type()})
}

func (d Uniform) mustBeDist() {}

func getFloatFromMap(distDef map[string]interface{}, key string) (float64, error) {
	val, hasVal := distDef[key]
	if !hasVal {
		return 0, fmt.Errorf("map specifies no value for %s", key)
	}
	f, isFloat := val.(float64)
	if !isFloat {
		return 0, fmt.Errorf("value for key %s in map should be of type float", key)
	}
	return f, nil
}

// ParametersFromMap decodes the JSON map representation of a [DistributionParameters].
func ParametersFromMap(distDef map[string]interface{}) (DistributionParameters, error) {
	distTypeVal, specified := distDef["Type"]
	if !specified {
		return nil, fmt.Errorf("%w: map specifies no distribution type", ErrInvalidArgument)
	}
	distTypeStr, isString := distTypeVal.(string)
	if !isString {
		return nil, fmt.Errorf("%w: value for key Type of map should be of type string", ErrInvalidArgument)
	}
	switch distTypeStr {
	case uniformDistName:
		return Uniform{}, nil
	case ternaryDistName:
		return Ternary{}, nil
	case centeredBinomialName:
		return CenteredBinomial{}, nil
	case discreteGaussianName:
		sigma, errSigma := getFloatFromMap(distDef, "Sigma")
		if errSigma != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, errSigma)
		}
		bound, errBound := getFloatFromMap(distDef, "Bound")
		if errBound != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, errBound)
		}
		return DiscreteGaussian{Sigma: sigma, Bound: bound}, nil
	default:
		return nil, fmt.Errorf("%w: distribution type %s does not exist", ErrInvalidArgument, distTypeStr)
	}
}
