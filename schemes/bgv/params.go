package bgv

import (
	"fmt"

	"github.com/levelhe/levelhe/core/rlwe"
	"github.com/levelhe/levelhe/ring"
)

var (
	// ExampleParameters128BitLogN14 is an example parameters set with logN=14,
	// the default coefficient modulus for 128-bit security and a 20-bit
	// batching plaintext modulus.
	ExampleParameters128BitLogN14 = rlwe.ParametersLiteral{
		Scheme: rlwe.SchemeBGV,
		LogN:   14,
		LogQ:   []int{48, 48, 48, 49, 49, 49, 49, 49, 49},
		LogT:   20,
	}
)

// NewParameters returns BGV parameters of degree n with the default
// coefficient modulus of the security level sec and a batching plaintext
// modulus of plainBitSize bits.
func NewParameters(n int, sec ring.SecLevel, plainBitSize int) (rlwe.EncryptionParameters, error) {
	return NewBatchingParameters(rlwe.SchemeBGV, n, sec, plainBitSize)
}

// NewBatchingParameters returns parameters of the integer scheme of degree n
// with the default coefficient modulus of the security level sec and a
// batching plaintext modulus of plainBitSize bits.
func NewBatchingParameters(scheme rlwe.SchemeType, n int, sec ring.SecLevel, plainBitSize int) (parms rlwe.EncryptionParameters, err error) {

	if !scheme.HasPlainModulus() {
		return parms, fmt.Errorf("cannot NewBatchingParameters: %w: scheme %s has no plain modulus", rlwe.ErrInvalidArgument, scheme)
	}

	if parms, err = rlwe.NewEncryptionParameters(scheme); err != nil {
		return
	}

	if err = parms.SetPolyModulusDegree(n); err != nil {
		return
	}

	var moduli []ring.Modulus
	if moduli, err = ring.CoeffModulusBFVDefault(n, sec); err != nil {
		return parms, fmt.Errorf("cannot NewBatchingParameters: %w", err)
	}

	if err = parms.SetCoeffModulus(moduli); err != nil {
		return
	}

	var t ring.Modulus
	if t, err = ring.PlainModulusBatching(n, plainBitSize); err != nil {
		return parms, fmt.Errorf("cannot NewBatchingParameters: %w", err)
	}

	err = parms.SetPlainModulus(t)

	return
}
