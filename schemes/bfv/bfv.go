// Package bfv provides the helpers of the Fan-Vercauteren version of
// Brakerski's (BFV) scale-invariant homomorphic encryption scheme.
// The BFV scheme enables SIMD modular arithmetic over encrypted vectors or integers.
// Its homomorphic operations are implemented by [rlwe.Evaluator] and its
// batch encoding is shared with the BGV scheme.
package bfv

import (
	"fmt"

	"github.com/levelhe/levelhe/core/rlwe"
	"github.com/levelhe/levelhe/ring"
	"github.com/levelhe/levelhe/schemes/bgv"
)

// BatchEncoder is a structure that encodes values on a plaintext in a SIMD (Single-Instruction Multiple-Data) fashion.
type BatchEncoder = bgv.BatchEncoder

// NewParameters returns BFV parameters of degree n with the default
// coefficient modulus of the security level sec and a batching plaintext
// modulus of plainBitSize bits.
func NewParameters(n int, sec ring.SecLevel, plainBitSize int) (rlwe.EncryptionParameters, error) {
	return bgv.NewBatchingParameters(rlwe.SchemeBFV, n, sec, plainBitSize)
}

// NewContext creates the context of the BFV parameters parms with the full
// modulus switching chain.
func NewContext(parms rlwe.EncryptionParameters, sec ring.SecLevel) (ctx *rlwe.Context, err error) {

	if parms.Scheme() != rlwe.SchemeBFV {
		return nil, fmt.Errorf("cannot NewContext: %w: scheme must be %s but is %s", rlwe.ErrInvalidArgument, rlwe.SchemeBFV, parms.Scheme())
	}

	if ctx, err = rlwe.NewContext(parms, true, sec); err != nil {
		return
	}

	if !ctx.ParametersSet() {
		return nil, fmt.Errorf("cannot NewContext: %w: %s", rlwe.ErrInvalidArgument, ctx.ParameterErrorMessage())
	}

	return
}

// NewBatchEncoder creates a new [BatchEncoder] from the BFV context.
func NewBatchEncoder(ctx *rlwe.Context) (*BatchEncoder, error) {
	return bgv.NewBatchEncoder(ctx)
}

// NewEvaluator instantiates a new [rlwe.Evaluator] from the BFV context.
func NewEvaluator(ctx *rlwe.Context) (*rlwe.Evaluator, error) {
	if ctx == nil || ctx.KeyContextData().Parms().Scheme() != rlwe.SchemeBFV {
		return nil, fmt.Errorf("cannot NewEvaluator: %w: context is not a BFV context", rlwe.ErrInvalidArgument)
	}
	return rlwe.NewEvaluator(ctx)
}
