package ckks

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"math/cmplx"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/levelhe/levelhe/core/rlwe"
	"github.com/levelhe/levelhe/ring"
	"github.com/levelhe/levelhe/schemes"
	"github.com/levelhe/levelhe/utils"
	"github.com/levelhe/levelhe/utils/sampling"
)

var flagParamString = flag.String("params", "", "specify the test cryptographic parameters as a JSON string. Overrides the default test parameters.")
var printPrecisionStats = flag.Bool("print-precision", false, "print precision stats")

func name(opname string, tc *testContext) string {
	first := tc.ctx.FirstContextData()
	return fmt.Sprintf("%s/logN=%d/logQ=%d/Qi=%d/LogScale=%d",
		opname,
		first.RingQ().LogN(),
		first.TotalCoeffModulusBitCount(),
		tc.parms.CoeffModulusCount(),
		int(math.Log2(tc.scale)))
}

type testContext struct {
	parms       rlwe.EncryptionParameters
	ctx         *rlwe.Context
	encoder     *Encoder
	kgen        *rlwe.KeyGenerator
	sk          *rlwe.SecretKey
	pk          *rlwe.PublicKey
	rlk         *rlwe.RelinKeys
	gk          *rlwe.GaloisKeys
	encryptorPk *rlwe.Encryptor
	encryptorSk *rlwe.Encryptor
	decryptor   *rlwe.Decryptor
	evaluator   *rlwe.Evaluator

	// scale is the size of the second prime, so that a product rescales
	// back to about the same scale.
	scale float64
}

func TestCKKS(t *testing.T) {

	var err error

	testParams := schemes.CkksTestParametersLiteral

	if *flagParamString != "" {
		var jsonParams rlwe.ParametersLiteral
		if err = json.Unmarshal([]byte(*flagParamString), &jsonParams); err != nil {
			t.Fatal(err)
		}
		testParams = []rlwe.ParametersLiteral{jsonParams} // the custom test suite reads the parameters from the -params flag
	}

	for _, paramsLiteral := range testParams {

		var tc *testContext
		if tc, err = genTestParams(paramsLiteral); err != nil {
			t.Fatal(err)
		}

		for _, testSet := range []func(tc *testContext, t *testing.T){
			testParameters,
			testEncoder,
			testEvaluatorAdd,
			testEvaluatorMul,
			testEvaluatorRotate,
		} {
			testSet(tc, t)
			runtime.GC()
		}
	}
}

func genTestParams(pl rlwe.ParametersLiteral) (tc *testContext, err error) {

	tc = new(testContext)

	if tc.parms, err = rlwe.NewEncryptionParametersFromLiteral(pl); err != nil {
		return nil, err
	}

	if tc.ctx, err = rlwe.NewContext(tc.parms, true, ring.SecLevelNone); err != nil {
		return nil, err
	}

	if tc.encoder, err = NewEncoder(tc.ctx); err != nil {
		return nil, err
	}

	if tc.kgen, err = rlwe.NewKeyGenerator(tc.ctx); err != nil {
		return nil, err
	}

	if tc.sk, err = tc.kgen.SecretKey(); err != nil {
		return nil, err
	}

	if tc.pk, err = tc.kgen.CreatePublicKey(); err != nil {
		return nil, err
	}

	if tc.rlk, err = tc.kgen.CreateRelinKeys(); err != nil {
		return nil, err
	}

	if tc.gk, err = tc.kgen.CreateGaloisKeys(); err != nil {
		return nil, err
	}

	if tc.encryptorPk, err = rlwe.NewEncryptor(tc.ctx, tc.pk); err != nil {
		return nil, err
	}

	if tc.encryptorSk, err = rlwe.NewEncryptor(tc.ctx, tc.sk); err != nil {
		return nil, err
	}

	if tc.decryptor, err = rlwe.NewDecryptor(tc.ctx, tc.sk); err != nil {
		return nil, err
	}

	if tc.evaluator, err = NewEvaluator(tc.ctx); err != nil {
		return nil, err
	}

	tc.scale = math.Exp2(float64(tc.parms.CoeffModulus()[1].BitCount()))

	return
}

// minPrec is the average log2 precision expected from a fresh or a
// rescaled ciphertext.
func (tc *testContext) minPrec() float64 {
	return math.Log2(tc.scale) - float64(tc.ctx.FirstContextData().RingQ().LogN()) - 12
}

// newTestVectors returns random values with real and imaginary parts in
// [a, b], their plaintext and, if encryptor is not nil, their encryption,
// symmetric if encryptor is tc.encryptorSk.
func newTestVectors(tc *testContext, encryptor *rlwe.Encryptor, a, b complex128) (values []complex128, pt *rlwe.Plaintext, ct *rlwe.Ciphertext) {

	values = make([]complex128, tc.encoder.SlotCount())
	for i := range values {
		values[i] = complex(sampling.RandFloat64(real(a), real(b)), sampling.RandFloat64(imag(a), imag(b)))
	}

	var err error
	if pt, err = tc.encoder.EncodeNew(values, tc.ctx.FirstParmsID(), tc.scale); err != nil {
		panic(err)
	}

	switch encryptor {
	case nil:
	case tc.encryptorSk:
		if ct, err = encryptor.EncryptSymmetricNew(pt); err != nil {
			panic(err)
		}
	default:
		if ct, err = encryptor.EncryptNew(pt); err != nil {
			panic(err)
		}
	}

	return
}

// verifyTestVectors decodes have, a plaintext, a ciphertext or a slice of
// values, and checks that its average precision is at least log2MinPrec.
func verifyTestVectors(tc *testContext, want []complex128, have interface{}, log2MinPrec float64, t *testing.T) {

	var values []complex128

	switch have := have.(type) {
	case *rlwe.Plaintext:
		var err error
		values, err = tc.encoder.DecodeNew(have)
		require.NoError(t, err)
	case *rlwe.Ciphertext:
		pt, err := tc.decryptor.DecryptNew(have)
		require.NoError(t, err)
		values, err = tc.encoder.DecodeNew(pt)
		require.NoError(t, err)
	case []complex128:
		values = have
	default:
		t.Fatalf("invalid test object type %T", have)
	}

	prec, err := GetPrecisionStats(want, values, math.Log2(tc.scale))
	require.NoError(t, err)

	if *printPrecisionStats {
		t.Log(prec.String())
	}

	require.GreaterOrEqual(t, prec.AVGLog2Prec.Real, log2MinPrec)
	require.GreaterOrEqual(t, prec.AVGLog2Prec.Imag, log2MinPrec)
}

func testParameters(tc *testContext, t *testing.T) {

	t.Run(name("Parameters/NewParameters", tc), func(t *testing.T) {
		parms, err := NewParameters(4096, []int{40, 20, 40})
		require.NoError(t, err)
		require.Equal(t, rlwe.SchemeCKKS, parms.Scheme())
		require.Equal(t, 3, parms.CoeffModulusCount())
		require.True(t, parms.PlainModulus().IsZero())

		ctx, err := NewContext(parms, ring.SecLevelTC128)
		require.NoError(t, err)
		require.Equal(t, 2, ctx.FirstContextData().Parms().CoeffModulusCount())

		_, err = NewParameters(4096, []int{40, 70})
		require.ErrorIs(t, err, rlwe.ErrInvalidArgument)
	})

	t.Run(name("Parameters/WrongScheme", tc), func(t *testing.T) {
		parms, err := rlwe.NewEncryptionParametersFromLiteral(schemes.BfvTestInsecure)
		require.NoError(t, err)

		_, err = NewContext(parms, ring.SecLevelNone)
		require.ErrorIs(t, err, rlwe.ErrInvalidArgument)

		ctx, err := rlwe.NewContext(parms, true, ring.SecLevelNone)
		require.NoError(t, err)

		_, err = NewEncoder(ctx)
		require.ErrorIs(t, err, rlwe.ErrInvalidArgument)

		_, err = NewEvaluator(ctx)
		require.ErrorIs(t, err, rlwe.ErrInvalidArgument)
	})

	t.Run(name("Parameters/TooLarge", tc), func(t *testing.T) {
		parms, err := NewParameters(4096, []int{60, 60, 60})
		require.NoError(t, err)

		_, err = NewContext(parms, ring.SecLevelTC256)
		require.ErrorIs(t, err, rlwe.ErrInvalidArgument)
	})
}

func testEncoder(tc *testContext, t *testing.T) {

	t.Run(name("Encoder/FFT", tc), func(t *testing.T) {
		values := make([]complex128, tc.encoder.SlotCount())
		for i := range values {
			values[i] = sampling.RandComplex128(-1, 1)
		}
		have := append([]complex128(nil), values...)
		tc.encoder.IFFT(have)
		tc.encoder.FFT(have)
		verifyTestVectors(tc, values, have, 40, t)
	})

	t.Run(name("Encoder/Complex", tc), func(t *testing.T) {
		values, pt, _ := newTestVectors(tc, nil, -1-1i, 1+1i)
		require.True(t, pt.IsNTTForm())
		require.Equal(t, tc.ctx.FirstParmsID(), pt.ParmsID())
		require.Equal(t, tc.scale, pt.Scale)
		verifyTestVectors(tc, values, pt, math.Log2(tc.scale)-float64(tc.ctx.FirstContextData().RingQ().LogN())-2, t)
	})

	t.Run(name("Encoder/Float64", tc), func(t *testing.T) {

		slots := tc.encoder.SlotCount()

		values := make([]float64, slots/2)
		want := make([]complex128, slots)
		for i := range values {
			values[i] = sampling.RandFloat64(-1, 1)
			want[i] = complex(values[i], 0)
		}

		pt := rlwe.NewPlaintext(0)
		pt.Scale = tc.scale
		require.NoError(t, tc.encoder.Encode(values, pt))

		have := make([]float64, slots)
		require.NoError(t, tc.encoder.Decode(pt, have))

		haveComplex := make([]complex128, slots)
		for i := range have {
			haveComplex[i] = complex(have[i], 0)
		}

		verifyTestVectors(tc, want, haveComplex, tc.minPrec(), t)
	})

	t.Run(name("Encoder/LowerLevel", tc), func(t *testing.T) {
		values := []complex128{1, 2i, -3}
		parmsID := tc.ctx.LastParmsID()
		pt, err := tc.encoder.EncodeNew(values, parmsID, tc.scale)
		require.NoError(t, err)
		require.Equal(t, parmsID, pt.ParmsID())
		require.Equal(t, tc.ctx.FirstContextData().N()*tc.ctx.LastContextData().Parms().CoeffModulusCount(), pt.CoeffCount())

		want := make([]complex128, tc.encoder.SlotCount())
		copy(want, values)
		verifyTestVectors(tc, want, pt, tc.minPrec(), t)
	})

	t.Run(name("Encoder/Constant", tc), func(t *testing.T) {
		for _, c := range []interface{}{0.5, complex(-0.25, 0.75)} {

			pt := rlwe.NewPlaintext(0)
			pt.Scale = tc.scale
			require.NoError(t, tc.encoder.EncodeConstant(c, pt))

			want := make([]complex128, tc.encoder.SlotCount())
			for i := range want {
				switch c := c.(type) {
				case float64:
					want[i] = complex(c, 0)
				case complex128:
					want[i] = c
				}
			}

			verifyTestVectors(tc, want, pt, tc.minPrec(), t)
		}
	})

	t.Run(name("Encoder/Int", tc), func(t *testing.T) {
		pt := rlwe.NewPlaintext(0)
		require.NoError(t, tc.encoder.EncodeInt(-7, pt))
		require.Equal(t, 1.0, pt.Scale)

		values, err := tc.encoder.DecodeNew(pt)
		require.NoError(t, err)
		for _, v := range values {
			require.InDelta(t, -7, real(v), 1e-6)
			require.InDelta(t, 0, imag(v), 1e-6)
		}
	})

	t.Run(name("Encoder/InvalidInputs", tc), func(t *testing.T) {

		slots := tc.encoder.SlotCount()
		bits := tc.ctx.FirstContextData().TotalCoeffModulusBitCount()

		pt := rlwe.NewPlaintext(0)
		pt.Scale = tc.scale

		require.ErrorIs(t, tc.encoder.Encode(make([]complex128, slots+1), pt), rlwe.ErrInvalidArgument)
		require.ErrorIs(t, tc.encoder.Encode([]uint64{1}, pt), rlwe.ErrInvalidArgument)
		require.ErrorIs(t, tc.encoder.Encode([]float64{math.Exp2(float64(bits))}, pt), rlwe.ErrInvalidArgument)
		require.ErrorIs(t, tc.encoder.Encode([]float64{math.NaN()}, pt), rlwe.ErrInvalidArgument)
		require.ErrorIs(t, tc.encoder.EncodeConstant(1, pt), rlwe.ErrInvalidArgument)

		for _, scale := range []float64{0, -1, math.Exp2(float64(bits))} {
			pt.Scale = scale
			require.ErrorIs(t, tc.encoder.Encode([]float64{1}, pt), rlwe.ErrInvalidArgument)
		}

		pt.Scale = tc.scale
		pt.SetParmsID(rlwe.ParmsID{1, 2, 3, 4})
		require.ErrorIs(t, tc.encoder.Encode([]float64{1}, pt), rlwe.ErrInvalidArgument)

		require.ErrorIs(t, tc.encoder.Decode(rlwe.NewPlaintext(tc.ctx.FirstContextData().N()), make([]complex128, slots)), rlwe.ErrInvalidArgument)

		_, pt, _ = newTestVectors(tc, nil, -1, 1)
		require.ErrorIs(t, tc.encoder.Decode(pt, make([]int64, slots)), rlwe.ErrInvalidArgument)
	})
}

func testEvaluatorAdd(tc *testContext, t *testing.T) {

	t.Run(name("Evaluator/Encrypt", tc), func(t *testing.T) {
		for _, enc := range []*rlwe.Encryptor{tc.encryptorPk, tc.encryptorSk} {
			values, _, ct := newTestVectors(tc, enc, -1-1i, 1+1i)
			require.Equal(t, tc.scale, ct.Scale)
			verifyTestVectors(tc, values, ct, tc.minPrec(), t)
		}
	})

	t.Run(name("Evaluator/Add", tc), func(t *testing.T) {

		values0, _, ct0 := newTestVectors(tc, tc.encryptorSk, -1-1i, 1+1i)
		values1, pt1, ct1 := newTestVectors(tc, tc.encryptorSk, -1-1i, 1+1i)

		want := make([]complex128, len(values0))
		for i := range want {
			want[i] = values0[i] + values1[i]
		}

		out, err := tc.evaluator.AddNew(ct0, ct1)
		require.NoError(t, err)
		verifyTestVectors(tc, want, out, tc.minPrec(), t)

		require.NoError(t, tc.evaluator.AddPlain(ct0, pt1, out))
		verifyTestVectors(tc, want, out, tc.minPrec(), t)
	})

	t.Run(name("Evaluator/Sub", tc), func(t *testing.T) {

		values0, _, ct0 := newTestVectors(tc, tc.encryptorSk, -1-1i, 1+1i)
		values1, pt1, ct1 := newTestVectors(tc, tc.encryptorSk, -1-1i, 1+1i)

		want := make([]complex128, len(values0))
		for i := range want {
			want[i] = values0[i] - values1[i]
		}

		out, err := tc.evaluator.SubNew(ct0, ct1)
		require.NoError(t, err)
		verifyTestVectors(tc, want, out, tc.minPrec(), t)

		require.NoError(t, tc.evaluator.SubPlain(ct0, pt1, out))
		verifyTestVectors(tc, want, out, tc.minPrec(), t)
	})

	t.Run(name("Evaluator/Negate", tc), func(t *testing.T) {

		values, _, ct := newTestVectors(tc, tc.encryptorSk, -1-1i, 1+1i)

		for i := range values {
			values[i] = -values[i]
		}

		out, err := tc.evaluator.NegateNew(ct)
		require.NoError(t, err)
		verifyTestVectors(tc, values, out, tc.minPrec(), t)
	})

	t.Run(name("Evaluator/ScaleMismatch", tc), func(t *testing.T) {

		_, _, ct0 := newTestVectors(tc, tc.encryptorSk, -1, 1)
		_, _, ct1 := newTestVectors(tc, tc.encryptorSk, -1, 1)

		ct1.Scale *= 2

		_, err := tc.evaluator.AddNew(ct0, ct1)
		require.ErrorIs(t, err, rlwe.ErrInvalidArgument)
	})
}

func testEvaluatorMul(tc *testContext, t *testing.T) {

	t.Run(name("Evaluator/MulRelinRescale", tc), func(t *testing.T) {

		values0, _, ct0 := newTestVectors(tc, tc.encryptorSk, -1-1i, 1+1i)
		values1, _, ct1 := newTestVectors(tc, tc.encryptorSk, -1-1i, 1+1i)

		want := make([]complex128, len(values0))
		for i := range want {
			want[i] = values0[i] * values1[i]
		}

		out, err := tc.evaluator.MultiplyNew(ct0, ct1)
		require.NoError(t, err)
		require.Equal(t, 3, out.Size())

		require.NoError(t, tc.evaluator.Relinearize(out, tc.rlk, out))
		require.Equal(t, 2, out.Size())

		first := tc.ctx.FirstContextData()
		prime := first.Parms().CoeffModulus()[first.Parms().CoeffModulusCount()-1]

		require.NoError(t, tc.evaluator.RescaleToNext(out, out))
		require.Equal(t, first.NextContextData().ParmsID(), out.ParmsID())
		require.InDelta(t, tc.scale*tc.scale/float64(prime.Value()), out.Scale, 1e-6*out.Scale)

		verifyTestVectors(tc, want, out, tc.minPrec(), t)
	})

	t.Run(name("Evaluator/Square", tc), func(t *testing.T) {

		values, _, ct := newTestVectors(tc, tc.encryptorSk, -1-1i, 1+1i)

		for i := range values {
			values[i] *= values[i]
		}

		out, err := tc.evaluator.SquareNew(ct)
		require.NoError(t, err)
		require.NoError(t, tc.evaluator.Relinearize(out, tc.rlk, out))
		require.NoError(t, tc.evaluator.RescaleToNext(out, out))

		verifyTestVectors(tc, values, out, tc.minPrec(), t)
	})

	t.Run(name("Evaluator/MulPlain", tc), func(t *testing.T) {

		values0, _, ct0 := newTestVectors(tc, tc.encryptorSk, -1-1i, 1+1i)
		values1, pt1, _ := newTestVectors(tc, nil, -1-1i, 1+1i)

		want := make([]complex128, len(values0))
		for i := range want {
			want[i] = values0[i] * values1[i]
		}

		out := new(rlwe.Ciphertext)
		require.NoError(t, tc.evaluator.MultiplyPlain(ct0, pt1, out))
		require.NoError(t, tc.evaluator.RescaleToNext(out, out))

		verifyTestVectors(tc, want, out, tc.minPrec(), t)
	})

	t.Run(name("Evaluator/MulInt", tc), func(t *testing.T) {

		values, _, ct := newTestVectors(tc, tc.encryptorSk, -1-1i, 1+1i)

		for i := range values {
			values[i] *= 3
		}

		pt := rlwe.NewPlaintext(0)
		require.NoError(t, tc.encoder.EncodeInt(3, pt))

		out := new(rlwe.Ciphertext)
		require.NoError(t, tc.evaluator.MultiplyPlain(ct, pt, out))
		require.Equal(t, tc.scale, out.Scale)

		verifyTestVectors(tc, values, out, tc.minPrec()-2, t)
	})

	t.Run(name("Evaluator/RescaleThenAdd", tc), func(t *testing.T) {

		values0, _, ct0 := newTestVectors(tc, tc.encryptorSk, -1, 1)
		values1, _, ct1 := newTestVectors(tc, tc.encryptorSk, -1, 1)

		// a product rescaled to the next level is added to a fresh ciphertext
		// brought to the same level with a modulus switch
		prod, err := tc.evaluator.MultiplyNew(ct0, ct1)
		require.NoError(t, err)
		require.NoError(t, tc.evaluator.Relinearize(prod, tc.rlk, prod))
		require.NoError(t, tc.evaluator.RescaleToNext(prod, prod))

		lower, err := tc.evaluator.ModSwitchToNew(ct0, prod.ParmsID())
		require.NoError(t, err)

		lower.Scale = prod.Scale
		want := make([]complex128, len(values0))
		for i := range want {
			// the scale of lower is changed, which rescales its values
			want[i] = values0[i]*values1[i] + values0[i]*complex(tc.scale/prod.Scale, 0)
		}

		out, err := tc.evaluator.AddNew(prod, lower)
		require.NoError(t, err)
		verifyTestVectors(tc, want, out, tc.minPrec()-2, t)
	})
}

func testEvaluatorRotate(tc *testContext, t *testing.T) {

	slots := tc.encoder.SlotCount()

	t.Run(name("Evaluator/RotateVector", tc), func(t *testing.T) {

		values, _, ct := newTestVectors(tc, tc.encryptorSk, -1-1i, 1+1i)

		for _, k := range []int{1, -1, 3, slots/2 + 1} {
			out, err := tc.evaluator.RotateVectorNew(ct, k, tc.gk)
			require.NoError(t, err)
			verifyTestVectors(tc, utils.RotateSlice(values, k), out, tc.minPrec(), t)
		}
	})

	t.Run(name("Evaluator/ComplexConjugate", tc), func(t *testing.T) {

		values, _, ct := newTestVectors(tc, tc.encryptorSk, -1-1i, 1+1i)

		for i := range values {
			values[i] = cmplx.Conj(values[i])
		}

		out, err := tc.evaluator.ComplexConjugateNew(ct, tc.gk)
		require.NoError(t, err)
		verifyTestVectors(tc, values, out, tc.minPrec(), t)
	})

	t.Run(name("Evaluator/RotateRowsUnsupported", tc), func(t *testing.T) {
		_, _, ct := newTestVectors(tc, tc.encryptorSk, -1, 1)
		_, err := tc.evaluator.RotateRowsNew(ct, 1, tc.gk)
		require.ErrorIs(t, err, rlwe.ErrLogic)
	})
}
