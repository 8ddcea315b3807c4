package ckks

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/montanaflynn/stats"
)

// maxLog2Prec caps the precision of exact values.
const maxLog2Prec = 53

// PrecisionStats is a struct storing statistic about the precision of a CKKS plaintext
type PrecisionStats struct {
	MINLog2Prec Stats
	MAXLog2Prec Stats
	AVGLog2Prec Stats
	MEDLog2Prec Stats
	STDLog2Prec Stats

	MINLog2Err Stats
	MAXLog2Err Stats
	AVGLog2Err Stats
	MEDLog2Err Stats
	STDLog2Err Stats

	Log2Scale float64
}

// Stats is a struct storing the real, imaginary and L2 norm (modulus)
// about the precision of a complex value.
type Stats struct {
	Real, Imag, L2 float64
}

func (prec PrecisionStats) String() string {
	return fmt.Sprintf(`
┌─────────┬───────┬───────┬───────┐
│    Log2 │ REAL  │ IMAG  │ L2    │
├─────────┼───────┼───────┼───────┤
│MIN Prec │ %5.2f │ %5.2f │ %5.2f │
│MAX Prec │ %5.2f │ %5.2f │ %5.2f │
│AVG Prec │ %5.2f │ %5.2f │ %5.2f │
│MED Prec │ %5.2f │ %5.2f │ %5.2f │
│STD Prec │ %5.2f │ %5.2f │ %5.2f │
├─────────┼───────┼───────┼───────┤
│MIN Err  │ %5.2f │ %5.2f │ %5.2f │
│MAX Err  │ %5.2f │ %5.2f │ %5.2f │
│AVG Err  │ %5.2f │ %5.2f │ %5.2f │
│MED Err  │ %5.2f │ %5.2f │ %5.2f │
│STD Err  │ %5.2f │ %5.2f │ %5.2f │
└─────────┴───────┴───────┴───────┘
`,
		prec.MINLog2Prec.Real, prec.MINLog2Prec.Imag, prec.MINLog2Prec.L2,
		prec.MAXLog2Prec.Real, prec.MAXLog2Prec.Imag, prec.MAXLog2Prec.L2,
		prec.AVGLog2Prec.Real, prec.AVGLog2Prec.Imag, prec.AVGLog2Prec.L2,
		prec.MEDLog2Prec.Real, prec.MEDLog2Prec.Imag, prec.MEDLog2Prec.L2,
		prec.STDLog2Prec.Real, prec.STDLog2Prec.Imag, prec.STDLog2Prec.L2,
		prec.MINLog2Err.Real, prec.MINLog2Err.Imag, prec.MINLog2Err.L2,
		prec.MAXLog2Err.Real, prec.MAXLog2Err.Imag, prec.MAXLog2Err.L2,
		prec.AVGLog2Err.Real, prec.AVGLog2Err.Imag, prec.AVGLog2Err.L2,
		prec.MEDLog2Err.Real, prec.MEDLog2Err.Imag, prec.MEDLog2Err.L2,
		prec.STDLog2Err.Real, prec.STDLog2Err.Imag, prec.STDLog2Err.L2)
}

// GetPrecisionStats generates a [PrecisionStats] struct from the reference
// values want and the approximated values have, compared over the first
// min(len(want), len(have)) slots. log2Scale is recorded as is.
func GetPrecisionStats(want, have []complex128, log2Scale float64) (prec PrecisionStats, err error) {

	n := len(want)
	if len(have) < n {
		n = len(have)
	}

	if n == 0 {
		return prec, fmt.Errorf("cannot GetPrecisionStats: no values to compare")
	}

	errReal := make([]float64, n)
	errImag := make([]float64, n)
	errL2 := make([]float64, n)

	for i := 0; i < n; i++ {
		diff := want[i] - have[i]
		errReal[i] = log2Err(math.Abs(real(diff)))
		errImag[i] = log2Err(math.Abs(imag(diff)))
		errL2[i] = log2Err(cmplx.Abs(diff))
	}

	prec.Log2Scale = log2Scale

	if prec.MINLog2Err, prec.MAXLog2Err, prec.AVGLog2Err, prec.MEDLog2Err, prec.STDLog2Err, err = summarize(errReal, errImag, errL2); err != nil {
		return prec, fmt.Errorf("cannot GetPrecisionStats: %w", err)
	}

	// the precision is the opposite of the log2 error
	negate := func(s Stats) Stats { return Stats{-s.Real, -s.Imag, -s.L2} }

	prec.MINLog2Prec = negate(prec.MAXLog2Err)
	prec.MAXLog2Prec = negate(prec.MINLog2Err)
	prec.AVGLog2Prec = negate(prec.AVGLog2Err)
	prec.MEDLog2Prec = negate(prec.MEDLog2Err)
	prec.STDLog2Prec = prec.STDLog2Err

	return
}

func log2Err(x float64) float64 {
	return math.Log2(math.Max(x, math.Exp2(-maxLog2Prec)))
}

// summarize computes, for each of the three series, the min, max, mean,
// median and standard deviation.
func summarize(re, im, l2 []float64) (lo, hi, avg, med, std Stats, err error) {

	type statFunc func(stats.Float64Data) (float64, error)

	eval := func(f statFunc) (s Stats, err error) {
		if s.Real, err = f(re); err != nil {
			return
		}
		if s.Imag, err = f(im); err != nil {
			return
		}
		s.L2, err = f(l2)
		return
	}

	if lo, err = eval(stats.Min); err != nil {
		return
	}
	if hi, err = eval(stats.Max); err != nil {
		return
	}
	if avg, err = eval(stats.Mean); err != nil {
		return
	}
	if med, err = eval(stats.Median); err != nil {
		return
	}
	std, err = eval(stats.StandardDeviation)
	return
}
