// Package ckks implements a RNS-accelerated version of the Homomorphic Encryption for Arithmetic for Approximate Numbers
// (HEAAN, a.k.a. CKKS) scheme. It provides approximate arithmetic over the complex numbers.
// Its homomorphic operations are implemented by [rlwe.Evaluator], including
// the rescaling, the slot rotations and the complex conjugation.
package ckks

import (
	"fmt"

	"github.com/levelhe/levelhe/core/rlwe"
	"github.com/levelhe/levelhe/ring"
)

// NewParameters returns CKKS parameters of degree n whose coefficient modulus
// is made of NTT-friendly primes of the given bit sizes. The last prime is
// the special prime of the key switching.
func NewParameters(n int, bitSizes []int) (parms rlwe.EncryptionParameters, err error) {

	if parms, err = rlwe.NewEncryptionParameters(rlwe.SchemeCKKS); err != nil {
		return
	}

	if err = parms.SetPolyModulusDegree(n); err != nil {
		return
	}

	var moduli []ring.Modulus
	if moduli, err = ring.CoeffModulusCreate(n, bitSizes); err != nil {
		return parms, fmt.Errorf("cannot NewParameters: %w", err)
	}

	return parms, parms.SetCoeffModulus(moduli)
}

// NewContext creates the context of the CKKS parameters parms with the full
// rescaling chain.
func NewContext(parms rlwe.EncryptionParameters, sec ring.SecLevel) (ctx *rlwe.Context, err error) {

	if parms.Scheme() != rlwe.SchemeCKKS {
		return nil, fmt.Errorf("cannot NewContext: %w: scheme must be %s but is %s", rlwe.ErrInvalidArgument, rlwe.SchemeCKKS, parms.Scheme())
	}

	if ctx, err = rlwe.NewContext(parms, true, sec); err != nil {
		return
	}

	if !ctx.ParametersSet() {
		return nil, fmt.Errorf("cannot NewContext: %w: %s", rlwe.ErrInvalidArgument, ctx.ParameterErrorMessage())
	}

	return
}

// NewEvaluator instantiates a new [rlwe.Evaluator] from the CKKS context.
func NewEvaluator(ctx *rlwe.Context) (*rlwe.Evaluator, error) {
	if ctx == nil || ctx.KeyContextData().Parms().Scheme() != rlwe.SchemeCKKS {
		return nil, fmt.Errorf("cannot NewEvaluator: %w: context is not a CKKS context", rlwe.ErrInvalidArgument)
	}
	return rlwe.NewEvaluator(ctx)
}
