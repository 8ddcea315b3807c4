package bgv

import (
	"fmt"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/levelhe/levelhe/core/rlwe"
	"github.com/levelhe/levelhe/ring"
	"github.com/levelhe/levelhe/utils/sampling"
)

// TestContext bundles the objects used to test an integer scheme.
type TestContext struct {
	Parms rlwe.EncryptionParameters
	Ctx   *rlwe.Context
	Ecd   *BatchEncoder

	Kgen *rlwe.KeyGenerator
	Sk   *rlwe.SecretKey
	Pk   *rlwe.PublicKey
	Rlk  *rlwe.RelinKeys
	Gk   *rlwe.GaloisKeys

	Enc *rlwe.Encryptor
	Dec *rlwe.Decryptor

	Evl *rlwe.Evaluator
}

// NewTestContext creates the context, the keys and the operators of the
// parameters literal. It panics on invalid parameters.
func NewTestContext(pl rlwe.ParametersLiteral) *TestContext {
	tc := new(TestContext)

	var err error

	if tc.Parms, err = rlwe.NewEncryptionParametersFromLiteral(pl); err != nil {
		panic(err)
	}

	if tc.Ctx, err = rlwe.NewContext(tc.Parms, true, ring.SecLevelNone); err != nil {
		panic(err)
	}

	if tc.Ecd, err = NewBatchEncoder(tc.Ctx); err != nil {
		panic(err)
	}

	if tc.Kgen, err = rlwe.NewKeyGenerator(tc.Ctx); err != nil {
		panic(err)
	}

	if tc.Sk, err = tc.Kgen.SecretKey(); err != nil {
		panic(err)
	}

	if tc.Pk, err = tc.Kgen.CreatePublicKey(); err != nil {
		panic(err)
	}

	if tc.Rlk, err = tc.Kgen.CreateRelinKeys(); err != nil {
		panic(err)
	}

	if tc.Gk, err = tc.Kgen.CreateGaloisKeys(); err != nil {
		panic(err)
	}

	if tc.Enc, err = rlwe.NewEncryptor(tc.Ctx, tc.Pk); err != nil {
		panic(err)
	}

	if tc.Dec, err = rlwe.NewDecryptor(tc.Ctx, tc.Sk); err != nil {
		panic(err)
	}

	if tc.Evl, err = rlwe.NewEvaluator(tc.Ctx); err != nil {
		panic(err)
	}

	return tc
}

// T returns the plaintext modulus.
func (tc TestContext) T() uint64 {
	return tc.Parms.PlainModulus().Value()
}

func (tc TestContext) String() string {
	first := tc.Ctx.FirstContextData()
	return fmt.Sprintf("%s/LogN=%d/logQ=%d/logT=%d/Qi=%d",
		tc.Parms.Scheme(),
		first.RingQ().LogN(),
		first.TotalCoeffModulusBitCount(),
		tc.Parms.PlainModulus().BitCount(),
		tc.Parms.CoeffModulusCount())
}

// VerifyTestVectors decodes have, a plaintext or a ciphertext, and checks that it is equal to want.
func VerifyTestVectors(tc *TestContext, have interface{}, want []uint64, t *testing.T) {

	values := make([]uint64, tc.Ecd.SlotCount())

	switch have := have.(type) {
	case *rlwe.Plaintext:
		require.NoError(t, tc.Ecd.Decode(have, values))
	case *rlwe.Ciphertext:
		pt, err := tc.Dec.DecryptNew(have)
		require.NoError(t, err)
		require.NoError(t, tc.Ecd.Decode(pt, values))
	default:
		t.Error("invalid unsupported test object type")
	}

	require.True(t, slices.Equal(values, want))
}

// NewTestVector returns random values modulo t, their plaintext and, if
// encryptor is not nil, their encryption.
func NewTestVector(tc *TestContext, encryptor *rlwe.Encryptor) (values []uint64, pt *rlwe.Plaintext, ct *rlwe.Ciphertext) {

	values = make([]uint64, tc.Ecd.SlotCount())
	for i := range values {
		values[i] = sampling.RandUint64() % tc.T()
	}

	var err error
	if pt, err = tc.Ecd.EncodeNew(values); err != nil {
		panic(err)
	}

	if encryptor != nil {
		if ct, err = encryptor.EncryptNew(pt); err != nil {
			panic(err)
		}
	}

	return
}
