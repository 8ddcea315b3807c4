package rlwe

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math"
	"math/big"
	"runtime"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/levelhe/levelhe/ring"
	"github.com/levelhe/levelhe/utils/bignum"
	"github.com/levelhe/levelhe/utils/sampling"
	"github.com/levelhe/levelhe/utils/serialization"
)

var flagParamString = flag.String("params", "", "specify the test cryptographic parameters as a JSON string. Overrides the default test parameters.")

func testString(tc *TestContext, opname string) string {
	first := tc.ctx.FirstContextData()
	return fmt.Sprintf("%s/scheme=%s/logN=%d/Qi=%d/logQ=%d",
		opname,
		tc.parms.Scheme(),
		first.RingQ().LogN(),
		tc.parms.CoeffModulusCount(),
		first.TotalCoeffModulusBitCount())
}

func TestRLWE(t *testing.T) {

	var err error

	paramsLiterals := testInsecure

	if *flagParamString != "" {
		var jsonParams ParametersLiteral
		if err = json.Unmarshal([]byte(*flagParamString), &jsonParams); err != nil {
			t.Fatal(err)
		}
		paramsLiterals = []ParametersLiteral{jsonParams} // the custom test suite reads the parameters from the -params flag
	}

	for _, paramsLit := range paramsLiterals {

		var parms EncryptionParameters
		if parms, err = NewEncryptionParametersFromLiteral(paramsLit); err != nil {
			t.Fatal(err)
		}

		tc, err := NewTestContext(parms)
		require.NoError(t, err)

		for _, testSet := range []func(tc *TestContext, t *testing.T){
			testContext,
			testKeyGenerator,
			testEncryptor,
			testEvaluatorArithmetic,
			testEvaluatorMultiply,
			testEvaluatorModSwitch,
			testEvaluatorAutomorphism,
			testEvaluatorKeySwitch,
			testSerialization,
		} {
			testSet(tc, t)
			runtime.GC()
		}
	}
}

// TestContext bundles the objects shared by the tests of one parameter set.
type TestContext struct {
	parms EncryptionParameters
	ctx   *Context
	kgen  *KeyGenerator
	sk    *SecretKey
	pk    *PublicKey
	rlk   *RelinKeys
	gk    *GaloisKeys
	enc   *Encryptor
	encSk *Encryptor
	dec   *Decryptor
	eval  *Evaluator
}

// NewTestContext creates the context, the keys and the operators of parms.
func NewTestContext(parms EncryptionParameters) (tc *TestContext, err error) {

	tc = &TestContext{parms: parms}

	if tc.ctx, err = NewContext(parms, true, ring.SecLevelNone); err != nil {
		return
	}

	if tc.kgen, err = NewKeyGenerator(tc.ctx); err != nil {
		return
	}

	if tc.sk, err = tc.kgen.SecretKey(); err != nil {
		return
	}

	if tc.pk, err = tc.kgen.CreatePublicKey(); err != nil {
		return
	}

	if tc.rlk, err = tc.kgen.CreateRelinKeys(); err != nil {
		return
	}

	if tc.gk, err = tc.kgen.CreateGaloisKeys(); err != nil {
		return
	}

	if tc.enc, err = NewEncryptor(tc.ctx, tc.pk); err != nil {
		return
	}

	if tc.encSk, err = NewEncryptor(tc.ctx, tc.sk); err != nil {
		return
	}

	if tc.dec, err = NewDecryptor(tc.ctx, tc.sk); err != nil {
		return
	}

	tc.eval, err = NewEvaluator(tc.ctx)

	return
}

// message is a polynomial with small signed integer coefficients, encoded
// as a polynomial modulo t for BFV and BGV, and scaled by the scale for CKKS.
type message []int64

func newRandomMessage(N, nonZero int, bound int64) (m message) {
	m = make(message, N)
	for i := 0; i < nonZero; i++ {
		j := int(sampling.RandUint64() % uint64(N))
		m[j] = int64(sampling.RandUint64()%uint64(2*bound+1)) - bound
	}
	return
}

func (m message) add(other message) (r message) {
	r = make(message, len(m))
	for i := range r {
		r[i] = m[i] + other[i]
	}
	return
}

func (m message) sub(other message) (r message) {
	r = make(message, len(m))
	for i := range r {
		r[i] = m[i] - other[i]
	}
	return
}

func (m message) neg() (r message) {
	r = make(message, len(m))
	for i := range r {
		r[i] = -m[i]
	}
	return
}

// mul returns the negacyclic product of m and other.
func (m message) mul(other message) (r message) {
	N := len(m)
	r = make(message, N)
	for i, a := range m {
		if a == 0 {
			continue
		}
		for j, b := range other {
			if b == 0 {
				continue
			}
			if k := i + j; k < N {
				r[k] += a * b
			} else {
				r[k-N] -= a * b
			}
		}
	}
	return
}

// automorphism returns m(X^galEl).
func (m message) automorphism(galEl uint64) (r message) {
	N := uint64(len(m))
	r = make(message, N)
	for i, a := range m {
		k := uint64(i) * galEl % (2 * N)
		if k < N {
			r[k] += a
		} else {
			r[k-N] -= a
		}
	}
	return
}

// encode returns the plaintext of m. CKKS plaintexts are at the level
// parmsID with the given scale, the other arguments are ignored otherwise.
func (tc *TestContext) encode(m message, parmsID ParmsID, scale float64) *Plaintext {

	switch tc.parms.Scheme() {
	case SchemeCKKS:
		cd := tc.ctx.GetContextData(parmsID)
		N := cd.N()
		pt := NewPlaintext(N * len(cd.Parms().CoeffModulus()))
		coeffs := make([]*big.Int, N)
		for i, c := range m {
			coeffs[i] = bignum.Round(new(big.Float).Mul(big.NewFloat(float64(c)), big.NewFloat(scale)))
		}
		p := pt.Poly(N)
		cd.RingQ().SetCoefficientsBigint(coeffs, p)
		cd.RingQ().NTT(p, p)
		pt.SetParmsID(parmsID)
		pt.Scale = scale
		return pt
	default:
		t := tc.parms.PlainModulus().Value()
		pt := NewPlaintext(len(m))
		for i, c := range m {
			if c < 0 {
				pt.Coeffs()[i] = t - uint64(-c)%t
			} else {
				pt.Coeffs()[i] = uint64(c) % t
			}
		}
		return pt
	}
}

// decode returns the message of pt, rounded to the nearest integers for CKKS.
func (tc *TestContext) decode(pt *Plaintext) (m message) {

	N := tc.ctx.FirstContextData().N()
	m = make(message, N)

	switch tc.parms.Scheme() {
	case SchemeCKKS:
		cd := tc.ctx.GetContextData(pt.ParmsID())
		p := pt.Poly(N).CopyNew()
		cd.RingQ().INTT(p, p)
		coeffs := make([]*big.Int, N)
		cd.RingQ().PolyToBigintCentered(p, 1, coeffs)
		for i, c := range coeffs {
			m[i] = int64(math.Round(bignum.DivRound(c, pt.Scale)))
		}
	default:
		t := tc.parms.PlainModulus().Value()
		for i, c := range pt.Coeffs() {
			if c > t>>1 {
				m[i] = -int64(t - c)
			} else {
				m[i] = int64(c)
			}
		}
	}

	return
}

// reduce returns m with its coefficients centered modulo t for BFV and BGV.
func (tc *TestContext) reduce(m message) message {
	if tc.parms.Scheme() == SchemeCKKS {
		return m
	}
	return tc.decode(tc.encode(m, ParmsIDZero, 1))
}

func (tc *TestContext) encrypt(t *testing.T, m message) *Ciphertext {
	return tc.encryptAtScale(t, m, tc.defaultScale())
}

func (tc *TestContext) encryptAtScale(t *testing.T, m message, scale float64) *Ciphertext {
	ct, err := tc.enc.EncryptNew(tc.encode(m, tc.ctx.FirstParmsID(), scale))
	require.NoError(t, err)
	return ct
}

func (tc *TestContext) defaultScale() float64 {
	if tc.parms.Scheme() == SchemeCKKS {
		return math.Exp2(40)
	}
	return 1
}

func (tc *TestContext) requireDecrypts(t *testing.T, ct *Ciphertext, want message) {
	pt, err := tc.dec.DecryptNew(ct)
	require.NoError(t, err)
	require.Equal(t, tc.reduce(want), tc.decode(pt))
}

func testContext(tc *TestContext, t *testing.T) {

	t.Run(testString(tc, "Context/Chain"), func(t *testing.T) {

		key := tc.ctx.KeyContextData()
		require.Equal(t, tc.ctx.KeyParmsID(), tc.parms.ParmsID())
		require.True(t, tc.ctx.UsingKeyswitching())
		require.Equal(t, tc.ctx.FirstContextData(), key.NextContextData())

		count := tc.parms.CoeffModulusCount()
		for cd := key; cd != nil; cd = cd.NextContextData() {
			require.Equal(t, count, len(cd.Parms().CoeffModulus()))
			require.Equal(t, count-1, cd.ChainIndex())
			if next := cd.NextContextData(); next != nil {
				require.Equal(t, cd, next.PrevContextData())
				require.Less(t, next.TotalCoeffModulusBitCount(), cd.TotalCoeffModulusBitCount())
			}
			count--
		}

		require.Equal(t, 0, tc.ctx.LastContextData().ChainIndex())
		require.Equal(t, tc.parms.CoeffModulusCount(), tc.ctx.ChainLength())
	})

	t.Run(testString(tc, "Context/ParmsIDIsDeterministic"), func(t *testing.T) {

		ctx, err := NewContext(tc.parms, true, ring.SecLevelNone)
		require.NoError(t, err)

		for cd0, cd1 := tc.ctx.KeyContextData(), ctx.KeyContextData(); cd0 != nil; cd0, cd1 = cd0.NextContextData(), cd1.NextContextData() {
			require.Equal(t, cd0.ParmsID(), cd1.ParmsID())
		}

		other := tc.parms
		require.NoError(t, other.SetCoeffModulus(tc.parms.CoeffModulus()[:tc.parms.CoeffModulusCount()-1]))
		require.NotEqual(t, tc.parms.ParmsID(), other.ParmsID())
	})

	t.Run(testString(tc, "Context/NoExpansion"), func(t *testing.T) {
		ctx, err := NewContext(tc.parms, false, ring.SecLevelNone)
		require.NoError(t, err)
		require.Equal(t, 2, ctx.ChainLength())
		require.Equal(t, tc.ctx.FirstParmsID(), ctx.LastParmsID())
	})

	t.Run(testString(tc, "Context/InvalidParameters"), func(t *testing.T) {

		parms := tc.parms
		moduli := append([]ring.Modulus{}, tc.parms.CoeffModulus()...)
		moduli[0] = ring.MustNewModulus(1 << 40)
		require.NoError(t, parms.SetCoeffModulus(moduli))

		ctx, err := NewContext(parms, true, ring.SecLevelNone)
		require.NoError(t, err)
		require.False(t, ctx.ParametersSet())
		require.NotEmpty(t, ctx.ParameterErrorMessage())

		_, err = NewKeyGenerator(ctx)
		require.ErrorIs(t, err, ErrInvalidArgument)
	})
}

func testKeyGenerator(tc *TestContext, t *testing.T) {

	t.Run(testString(tc, "KeyGenerator/Keys"), func(t *testing.T) {

		require.True(t, tc.sk.IsValidFor(tc.ctx))
		require.True(t, tc.pk.IsValidFor(tc.ctx))
		require.True(t, tc.rlk.IsValidFor(tc.ctx))
		require.True(t, tc.gk.IsValidFor(tc.ctx))

		require.True(t, tc.rlk.HasKey(2))
		require.False(t, tc.rlk.HasKey(3))

		galois := tc.ctx.KeyContextData().GaloisTool()
		require.ElementsMatch(t, galois.GetEltsAll(), tc.gk.GaloisElements())
	})

	t.Run(testString(tc, "KeyGenerator/PublicKeyEncryptsZero"), func(t *testing.T) {

		// the public key is an encryption of zero at the key level
		cd := tc.ctx.KeyContextData()
		N := cd.N()
		rQ := cd.RingQ()

		e := rQ.NewPoly()
		rQ.MulCoeffs(tc.pk.Value[1], tc.sk.Poly(N), e)
		rQ.Add(e, tc.pk.Value[0], e)
		rQ.INTT(e, e)

		coeffs := make([]*big.Int, N)
		rQ.PolyToBigintCentered(e, 1, coeffs)

		bound := big.NewInt(int64(math.Ceil(ring.StandardErrorMaxDev)) * int64(tc.noiseFactor()))
		for _, c := range coeffs {
			require.LessOrEqual(t, new(big.Int).Abs(c).Cmp(bound), 0)
		}
	})

	t.Run(testString(tc, "KeyGenerator/RelinKeysForPowers"), func(t *testing.T) {

		rlk, err := tc.kgen.CreateRelinKeysForPowers(3)
		require.NoError(t, err)
		for power := 2; power < 5; power++ {
			require.True(t, rlk.HasKey(power))
		}

		_, err = tc.kgen.CreateRelinKeysForPowers(0)
		require.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run(testString(tc, "KeyGenerator/GaloisKeysFromSteps"), func(t *testing.T) {

		gk, err := tc.kgen.CreateGaloisKeysFromSteps([]int{0, 3, -7})
		require.NoError(t, err)
		require.Equal(t, 3, gk.Size())

		galois := tc.ctx.KeyContextData().GaloisTool()
		for _, step := range []int{0, 3, -7} {
			galEl, err := galois.GetEltFromStep(step)
			require.NoError(t, err)
			require.True(t, gk.HasKey(galEl))
		}

		_, err = tc.kgen.CreateGaloisKeysFromElts([]uint64{2})
		require.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run(testString(tc, "KeyGenerator/WithSecretKey"), func(t *testing.T) {

		kgen, err := NewKeyGeneratorWithSecretKey(tc.ctx, tc.sk)
		require.NoError(t, err)

		sk, err := kgen.SecretKey()
		require.NoError(t, err)
		require.True(t, cmp.Equal(tc.sk, sk))

		pk, err := kgen.CreatePublicKey()
		require.NoError(t, err)

		enc, err := NewEncryptor(tc.ctx, pk)
		require.NoError(t, err)

		m := newRandomMessage(tc.ctx.FirstContextData().N(), 64, 8)
		ct, err := enc.EncryptNew(tc.encode(m, tc.ctx.FirstParmsID(), tc.defaultScale()))
		require.NoError(t, err)
		tc.requireDecrypts(t, ct, m)
	})

	t.Run(testString(tc, "KeyGenerator/Zeroize"), func(t *testing.T) {

		kgen, err := NewKeyGenerator(tc.ctx)
		require.NoError(t, err)

		sk, err := kgen.SecretKey()
		require.NoError(t, err)

		enc, err := NewEncryptor(tc.ctx, sk)
		require.NoError(t, err)

		dec, err := NewDecryptor(tc.ctx, sk)
		require.NoError(t, err)

		m := newRandomMessage(tc.ctx.FirstContextData().N(), 16, 4)
		pt := tc.encode(m, tc.ctx.FirstParmsID(), tc.defaultScale())

		ct, err := enc.EncryptSymmetricNew(pt)
		require.NoError(t, err)

		// fills the cache of the decryptor with s^2
		ct3, err := tc.eval.SquareNew(ct)
		require.NoError(t, err)
		_, err = dec.DecryptNew(ct3)
		require.NoError(t, err)

		key := sk.Coeffs()
		want := sk.CopyNew()

		sk.Zeroize()
		require.Zero(t, sk.CoeffCount())
		require.NotEqual(t, want.Coeffs(), key)
		require.Greater(t, countNonZero(key), len(key)/2)

		// the copies held by the operators are still usable
		ct, err = enc.EncryptSymmetricNew(pt)
		require.NoError(t, err)

		powers := dec.powers.powers
		require.Len(t, powers, 2)
		square := powers[1].CopyNew()

		enc.Zeroize()
		_, err = enc.EncryptSymmetricNew(pt)
		require.ErrorIs(t, err, ErrLogic)

		dec.Zeroize()
		require.False(t, square.Equal(&powers[1]))
		require.Greater(t, countNonZero(powers[1].Buff), len(powers[1].Buff)/2)
		_, err = dec.DecryptNew(ct)
		require.ErrorIs(t, err, ErrLogic)

		kgen.Zeroize()
		_, err = kgen.SecretKey()
		require.ErrorIs(t, err, ErrLogic)
		_, err = kgen.CreatePublicKey()
		require.ErrorIs(t, err, ErrLogic)
	})
}

func countNonZero(buff []uint64) (count int) {
	for _, c := range buff {
		if c != 0 {
			count++
		}
	}
	return
}

// noiseFactor is the factor applied to the fresh noise: t for BGV, 1 otherwise.
func (tc *TestContext) noiseFactor() uint64 {
	if tc.parms.Scheme() == SchemeBGV {
		return tc.parms.PlainModulus().Value()
	}
	return 1
}

func testEncryptor(tc *TestContext, t *testing.T) {

	N := tc.ctx.FirstContextData().N()
	scale := tc.defaultScale()

	t.Run(testString(tc, "Encryptor/Asymmetric"), func(t *testing.T) {
		m := newRandomMessage(N, N, 8)
		ct := tc.encrypt(t, m)
		require.Equal(t, 2, ct.Size())
		require.Equal(t, tc.ctx.FirstParmsID(), ct.ParmsID())
		require.Equal(t, tc.parms.Scheme() != SchemeBFV, ct.IsNTTForm)
		require.Equal(t, uint64(1), ct.CorrectionFactor)
		tc.requireDecrypts(t, ct, m)
	})

	t.Run(testString(tc, "Encryptor/Symmetric"), func(t *testing.T) {
		m := newRandomMessage(N, N, 8)
		ct, err := tc.encSk.EncryptSymmetricNew(tc.encode(m, tc.ctx.FirstParmsID(), scale))
		require.NoError(t, err)
		tc.requireDecrypts(t, ct, m)
	})

	t.Run(testString(tc, "Encryptor/ZeroAtEveryLevel"), func(t *testing.T) {
		for cd := tc.ctx.FirstContextData(); cd != nil; cd = cd.NextContextData() {

			ct := new(Ciphertext)
			require.NoError(t, tc.enc.EncryptZeroAt(cd.ParmsID(), ct))
			require.Equal(t, cd.ParmsID(), ct.ParmsID())
			require.True(t, ct.IsValidFor(tc.ctx))

			ctSk := new(Ciphertext)
			require.NoError(t, tc.encSk.EncryptZeroSymmetricAt(cd.ParmsID(), ctSk))

			if tc.parms.Scheme() == SchemeCKKS {
				ct.Scale, ctSk.Scale = scale, scale
			}

			for _, c := range []*Ciphertext{ct, ctSk} {
				pt, err := tc.dec.DecryptNew(c)
				require.NoError(t, err)
				if tc.parms.Scheme() == SchemeCKKS {
					require.Equal(t, make(message, N), tc.decode(pt))
				} else {
					require.True(t, pt.IsZero())
				}
			}
		}
	})

	t.Run(testString(tc, "Encryptor/MissingKey"), func(t *testing.T) {

		enc, err := NewEncryptor(tc.ctx, nil)
		require.NoError(t, err)

		pt := tc.encode(make(message, N), tc.ctx.FirstParmsID(), scale)

		_, err = enc.EncryptNew(pt)
		require.ErrorIs(t, err, ErrLogic)

		_, err = enc.EncryptSymmetricNew(pt)
		require.ErrorIs(t, err, ErrLogic)
	})

	t.Run(testString(tc, "Decryptor/Concurrent"), func(t *testing.T) {

		// a fresh decryptor extends its cache of secret key powers concurrently
		dec, err := NewDecryptor(tc.ctx, tc.sk)
		require.NoError(t, err)

		m := newRandomMessage(N, 4, 2)
		ct := tc.encrypt(t, m)

		ct3, err := tc.eval.MultiplyNew(ct, ct)
		require.NoError(t, err)

		ct4, err := tc.eval.MultiplyNew(ct3, ct)
		require.NoError(t, err)
		require.Equal(t, 4, ct4.Size())

		cts := []*Ciphertext{ct4, ct3, ct}
		wants := []message{m.mul(m).mul(m), m.mul(m), m}

		const goroutines = 32
		pts := make([]*Plaintext, goroutines)
		errs := make([]error, goroutines)

		var wg sync.WaitGroup
		for i := 0; i < goroutines; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				pts[i], errs[i] = dec.DecryptNew(cts[i%len(cts)])
			}(i)
		}
		wg.Wait()

		for i, pt := range pts {
			require.NoError(t, errs[i])
			require.Equal(t, tc.reduce(wants[i%len(cts)]), tc.decode(pt))
		}
	})

	if tc.parms.Scheme() != SchemeBFV {
		return
	}

	t.Run(testString(tc, "Decryptor/SignificantCoeffCount"), func(t *testing.T) {

		m := make(message, N)
		m[5] = 3

		pt, err := tc.dec.DecryptNew(tc.encrypt(t, m))
		require.NoError(t, err)
		require.Equal(t, 6, pt.CoeffCount())
		require.Equal(t, m, tc.decode(pt))

		pt, err = tc.dec.DecryptNew(tc.encrypt(t, make(message, N)))
		require.NoError(t, err)
		require.Equal(t, 1, pt.CoeffCount())
		require.True(t, pt.IsZero())
	})

	t.Run(testString(tc, "Decryptor/InvariantNoiseBudgetExhausted"), func(t *testing.T) {

		ct := tc.encrypt(t, newRandomMessage(N, N, 8))

		budget, err := tc.dec.InvariantNoiseBudget(ct)
		require.NoError(t, err)

		for i := 0; i < 16 && budget > 0; i++ {

			require.NoError(t, tc.eval.Square(ct, ct))
			require.NoError(t, tc.eval.Relinearize(ct, tc.rlk, ct))

			next, err := tc.dec.InvariantNoiseBudget(ct)
			require.NoError(t, err)
			require.LessOrEqual(t, next, budget)
			budget = next
		}

		require.Zero(t, budget)
	})

	t.Run(testString(tc, "Decryptor/InvariantNoiseBudget"), func(t *testing.T) {

		ct := tc.encrypt(t, newRandomMessage(N, N, 8))

		fresh, err := tc.dec.InvariantNoiseBudget(ct)
		require.NoError(t, err)
		require.Greater(t, fresh, 0)
		t.Logf("fresh noise budget: %d bits", fresh)

		sq, err := tc.eval.SquareNew(ct)
		require.NoError(t, err)

		budget, err := tc.dec.InvariantNoiseBudget(sq)
		require.NoError(t, err)
		require.Less(t, budget, fresh)

		require.NoError(t, tc.eval.Relinearize(sq, tc.rlk, sq))
		relin, err := tc.dec.InvariantNoiseBudget(sq)
		require.NoError(t, err)
		require.LessOrEqual(t, relin, budget)
	})
}

func testEvaluatorArithmetic(tc *TestContext, t *testing.T) {

	N := tc.ctx.FirstContextData().N()
	scale := tc.defaultScale()
	firstID := tc.ctx.FirstParmsID()

	t.Run(testString(tc, "Evaluator/AddSubNegate"), func(t *testing.T) {

		m0, m1 := newRandomMessage(N, N, 8), newRandomMessage(N, N, 8)
		ct0, ct1 := tc.encrypt(t, m0), tc.encrypt(t, m1)

		sum, err := tc.eval.AddNew(ct0, ct1)
		require.NoError(t, err)
		tc.requireDecrypts(t, sum, m0.add(m1))

		diff, err := tc.eval.SubNew(ct0, ct1)
		require.NoError(t, err)
		tc.requireDecrypts(t, diff, m0.sub(m1))

		neg, err := tc.eval.NegateNew(ct0)
		require.NoError(t, err)
		tc.requireDecrypts(t, neg, m0.neg())

		// in place
		require.NoError(t, tc.eval.Add(ct0, ct1, ct1))
		tc.requireDecrypts(t, ct1, m0.add(m1))

		require.NoError(t, tc.eval.AddMany([]*Ciphertext{ct0, neg, sum}, ct1))
		tc.requireDecrypts(t, ct1, m0.add(m1))
	})

	t.Run(testString(tc, "Evaluator/AddPlainSubPlain"), func(t *testing.T) {

		m0, m1 := newRandomMessage(N, N, 8), newRandomMessage(N, N, 8)
		ct := tc.encrypt(t, m0)
		pt := tc.encode(m1, firstID, scale)

		out := new(Ciphertext)
		require.NoError(t, tc.eval.AddPlain(ct, pt, out))
		tc.requireDecrypts(t, out, m0.add(m1))

		require.NoError(t, tc.eval.SubPlain(ct, pt, out))
		tc.requireDecrypts(t, out, m0.sub(m1))
	})

	t.Run(testString(tc, "Evaluator/MultiplyPlain"), func(t *testing.T) {

		m0, m1 := newRandomMessage(N, 16, 4), newRandomMessage(N, 16, 4)
		m1[0] = 1

		ct := tc.encrypt(t, m0)
		pt := tc.encode(m1, firstID, scale)

		out := new(Ciphertext)
		require.NoError(t, tc.eval.MultiplyPlain(ct, pt, out))
		if tc.parms.Scheme() == SchemeCKKS {
			require.Equal(t, scale*scale, out.Scale)
		}
		tc.requireDecrypts(t, out, m0.mul(m1))

		zero := tc.encode(make(message, N), firstID, scale)
		zero.SetZero()
		require.ErrorIs(t, tc.eval.MultiplyPlain(ct, zero, out), ErrInvalidArgument)
	})

	t.Run(testString(tc, "Evaluator/NTTForm"), func(t *testing.T) {

		m := newRandomMessage(N, N, 8)
		ct := tc.encrypt(t, m)

		if ct.IsNTTForm {
			require.NoError(t, tc.eval.TransformFromNTT(ct))
			require.False(t, ct.IsNTTForm)
			require.ErrorIs(t, tc.eval.TransformFromNTT(ct), ErrInvalidArgument)
			require.NoError(t, tc.eval.TransformToNTT(ct))
		} else {
			require.NoError(t, tc.eval.TransformToNTT(ct))
			require.True(t, ct.IsNTTForm)
			require.ErrorIs(t, tc.eval.TransformToNTT(ct), ErrInvalidArgument)
			require.NoError(t, tc.eval.TransformFromNTT(ct))
		}

		tc.requireDecrypts(t, ct, m)
	})

	if tc.parms.Scheme() == SchemeCKKS {
		return
	}

	t.Run(testString(tc, "Evaluator/TransformPlainToNTT"), func(t *testing.T) {

		m0, m1 := newRandomMessage(N, 16, 4), newRandomMessage(N, 16, 4)
		m1[1] = -1

		ct := tc.encrypt(t, m0)
		if !ct.IsNTTForm {
			require.NoError(t, tc.eval.TransformToNTT(ct))
		}

		pt := tc.encode(m1, firstID, scale)
		require.NoError(t, tc.eval.TransformPlainToNTT(pt, ct.ParmsID()))
		require.True(t, pt.IsNTTForm())

		require.NoError(t, tc.eval.MultiplyPlain(ct, pt, ct))

		if tc.parms.Scheme() == SchemeBFV {
			require.NoError(t, tc.eval.TransformFromNTT(ct))
		}

		tc.requireDecrypts(t, ct, m0.mul(m1))
	})
}

func testEvaluatorMultiply(tc *TestContext, t *testing.T) {

	N := tc.ctx.FirstContextData().N()

	t.Run(testString(tc, "Evaluator/MultiplyRelinearize"), func(t *testing.T) {

		m0, m1 := newRandomMessage(N, 16, 4), newRandomMessage(N, 16, 4)
		ct0, ct1 := tc.encrypt(t, m0), tc.encrypt(t, m1)

		prod, err := tc.eval.MultiplyNew(ct0, ct1)
		require.NoError(t, err)
		require.Equal(t, 3, prod.Size())
		tc.requireDecrypts(t, prod, m0.mul(m1))

		// size law: 3 + 2 - 1
		prod2, err := tc.eval.MultiplyNew(prod, ct1)
		require.NoError(t, err)
		require.Equal(t, 4, prod2.Size())

		// addition of different sizes, at the scale of the product for CKKS
		sum, err := tc.eval.AddNew(tc.encryptAtScale(t, m0, prod.Scale), prod)
		require.NoError(t, err)
		require.Equal(t, 3, sum.Size())
		tc.requireDecrypts(t, sum, m0.add(m0.mul(m1)))

		relin, err := tc.eval.RelinearizeNew(prod, tc.rlk)
		require.NoError(t, err)
		require.Equal(t, 2, relin.Size())
		tc.requireDecrypts(t, relin, m0.mul(m1))

		// s^3 is missing
		require.ErrorIs(t, tc.eval.Relinearize(prod2, tc.rlk, new(Ciphertext)), ErrInvalidArgument)
	})

	t.Run(testString(tc, "Evaluator/Relinearize/InvalidKeyLeavesOutput"), func(t *testing.T) {

		rlk, err := tc.kgen.CreateRelinKeysForPowers(2)
		require.NoError(t, err)

		m := newRandomMessage(N, 4, 2)
		ct := tc.encrypt(t, m)

		prod, err := tc.eval.MultiplyNew(ct, ct)
		require.NoError(t, err)
		require.NoError(t, tc.eval.Multiply(prod, ct, prod))
		require.Equal(t, 4, prod.Size())

		// the key of s^2 is truncated, the key of s^3 is valid
		rlk.Keys[RelinKeyIndex(2)] = rlk.Keys[RelinKeyIndex(2)][:1]

		out := tc.encrypt(t, m)
		want := out.CopyNew()

		require.ErrorIs(t, tc.eval.Relinearize(prod, rlk, out), ErrInvalidArgument)
		require.True(t, want.Equal(out))

		require.ErrorIs(t, tc.eval.Relinearize(prod, rlk, prod), ErrInvalidArgument)
		require.Equal(t, 4, prod.Size())
	})

	t.Run(testString(tc, "Evaluator/MemoryPool"), func(t *testing.T) {

		m0, m1 := newRandomMessage(N, 16, 4), newRandomMessage(N, 16, 4)
		ct0, ct1 := tc.encrypt(t, m0), tc.encrypt(t, m1)

		prod, err := tc.eval.MultiplyNew(ct0, ct1)
		require.NoError(t, err)

		tiny := tc.eval.WithPool(ring.NewMemoryPool(8))

		_, err = tiny.MultiplyNew(ct0, ct1)
		require.ErrorIs(t, err, ErrOutOfMemory)

		_, err = tiny.SquareNew(ct0)
		require.ErrorIs(t, err, ErrOutOfMemory)

		_, err = tiny.RelinearizeNew(prod, tc.rlk)
		require.ErrorIs(t, err, ErrOutOfMemory)

		_, err = tiny.ApplyGaloisNew(ct0, tc.gk.GaloisElements()[0], tc.gk)
		require.ErrorIs(t, err, ErrOutOfMemory)

		pool := ring.NewMemoryPool(0)
		eval := tc.eval.WithPool(pool)

		out, err := eval.MultiplyNew(ct0, ct1)
		require.NoError(t, err)
		require.NoError(t, eval.Relinearize(out, tc.rlk, out))
		tc.requireDecrypts(t, out, m0.mul(m1))

		require.Positive(t, pool.AllocByteCount())
		require.Zero(t, pool.InUseByteCount())

		require.NoError(t, eval.ApplyGalois(out, tc.gk.GaloisElements()[0], tc.gk, out))
		require.Zero(t, pool.InUseByteCount())
	})

	t.Run(testString(tc, "Evaluator/RelinearizeManyPowers"), func(t *testing.T) {

		rlk, err := tc.kgen.CreateRelinKeysForPowers(2)
		require.NoError(t, err)

		m0, m1, m2 := newRandomMessage(N, 4, 2), newRandomMessage(N, 4, 2), newRandomMessage(N, 4, 2)
		ct0, ct1, ct2 := tc.encrypt(t, m0), tc.encrypt(t, m1), tc.encrypt(t, m2)

		if tc.parms.Scheme() == SchemeCKKS {
			// keeps the scale below the modulus
			pt := tc.encode(m2, tc.ctx.FirstParmsID(), 1<<10)
			var err error
			ct2, err = tc.enc.EncryptNew(pt)
			require.NoError(t, err)
		}

		prod, err := tc.eval.MultiplyNew(ct0, ct1)
		require.NoError(t, err)
		require.NoError(t, tc.eval.Multiply(prod, ct2, prod))
		require.Equal(t, 4, prod.Size())

		require.NoError(t, tc.eval.Relinearize(prod, rlk, prod))
		require.Equal(t, 2, prod.Size())
		tc.requireDecrypts(t, prod, m0.mul(m1).mul(m2))
	})

	t.Run(testString(tc, "Evaluator/Square"), func(t *testing.T) {

		m := newRandomMessage(N, 16, 4)
		ct := tc.encrypt(t, m)

		require.NoError(t, tc.eval.Square(ct, ct))
		require.NoError(t, tc.eval.Relinearize(ct, tc.rlk, ct))
		tc.requireDecrypts(t, ct, m.mul(m))
	})

	if tc.parms.Scheme() == SchemeCKKS {

		t.Run(testString(tc, "Evaluator/MultiplyMany/UnsupportedScheme"), func(t *testing.T) {
			ct := tc.encrypt(t, make(message, N))
			require.ErrorIs(t, tc.eval.MultiplyMany([]*Ciphertext{ct, ct}, tc.rlk, new(Ciphertext)), ErrLogic)
			require.ErrorIs(t, tc.eval.Exponentiate(ct, 2, tc.rlk, new(Ciphertext)), ErrLogic)
		})

		return
	}

	t.Run(testString(tc, "Evaluator/MultiplyMany"), func(t *testing.T) {

		ms := make([]message, 4)
		cts := make([]*Ciphertext, 4)
		want := make(message, N)
		want[0] = 1
		for i := range ms {
			ms[i] = newRandomMessage(N, 2, 2)
			cts[i] = tc.encrypt(t, ms[i])
			want = want.mul(ms[i])
		}

		out := new(Ciphertext)
		require.NoError(t, tc.eval.MultiplyMany(cts, tc.rlk, out))
		require.Equal(t, 2, out.Size())
		tc.requireDecrypts(t, out, want)
	})

	t.Run(testString(tc, "Evaluator/Exponentiate"), func(t *testing.T) {

		m := newRandomMessage(N, 2, 2)
		ct := tc.encrypt(t, m)

		want := make(message, N)
		want[0] = 1
		for exponent := uint64(1); exponent <= 3; exponent++ {
			want = want.mul(m)
			out, err := tc.eval.ExponentiateNew(ct, exponent, tc.rlk)
			require.NoError(t, err)
			require.Equal(t, 2, out.Size())
			tc.requireDecrypts(t, out, want)
		}

		// in place
		require.NoError(t, tc.eval.Exponentiate(ct, 3, tc.rlk, ct))
		tc.requireDecrypts(t, ct, want)

		require.ErrorIs(t, tc.eval.Exponentiate(ct, 0, tc.rlk, ct), ErrInvalidArgument)
	})
}

func testEvaluatorModSwitch(tc *TestContext, t *testing.T) {

	N := tc.ctx.FirstContextData().N()

	t.Run(testString(tc, "Evaluator/ModSwitchChainWalk"), func(t *testing.T) {

		m := newRandomMessage(N, N, 8)
		ct := tc.encrypt(t, m)

		for cd := tc.ctx.FirstContextData().NextContextData(); cd != nil; cd = cd.NextContextData() {
			require.NoError(t, tc.eval.ModSwitchToNext(ct, ct))
			require.Equal(t, cd.ParmsID(), ct.ParmsID())
			require.Equal(t, len(cd.Parms().CoeffModulus()), ct.CoeffModulusSize())
			tc.requireDecrypts(t, ct, m)
		}

		err := tc.eval.ModSwitchToNext(ct, ct)
		require.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run(testString(tc, "Evaluator/ModSwitchTo"), func(t *testing.T) {

		m := newRandomMessage(N, N, 8)
		ct := tc.encrypt(t, m)

		last := tc.ctx.LastParmsID()
		out, err := tc.eval.ModSwitchToNew(ct, last)
		require.NoError(t, err)
		require.Equal(t, last, out.ParmsID())
		tc.requireDecrypts(t, out, m)

		// input is untouched
		require.Equal(t, tc.ctx.FirstParmsID(), ct.ParmsID())

		require.ErrorIs(t, tc.eval.ModSwitchTo(out, tc.ctx.FirstParmsID(), out), ErrInvalidArgument)
	})

	t.Run(testString(tc, "Evaluator/ModSwitchPlain"), func(t *testing.T) {

		pt := tc.encode(newRandomMessage(N, N, 8), tc.ctx.FirstParmsID(), tc.defaultScale())
		if !pt.IsNTTForm() {
			require.NoError(t, tc.eval.TransformPlainToNTT(pt, tc.ctx.FirstParmsID()))
		}

		next := tc.ctx.FirstContextData().NextContextData()
		require.NoError(t, tc.eval.ModSwitchPlainToNext(pt))
		require.Equal(t, next.ParmsID(), pt.ParmsID())
		require.Equal(t, N*len(next.Parms().CoeffModulus()), pt.CoeffCount())

		require.NoError(t, tc.eval.ModSwitchPlainTo(pt, tc.ctx.LastParmsID()))
		require.Equal(t, N, pt.CoeffCount())
	})

	switch tc.parms.Scheme() {
	case SchemeCKKS:

		t.Run(testString(tc, "Evaluator/RescaleChain"), func(t *testing.T) {

			// the last level leaves few bits above the scale
			m := newRandomMessage(N, 1, 1)
			m[0] = 1
			ct := tc.encrypt(t, m)
			want := m

			for i := 0; i < 2; i++ {

				cd := tc.ctx.GetContextData(ct.ParmsID())
				qLast := float64(cd.Parms().CoeffModulus()[cd.ChainIndex()].Value())
				scale := ct.Scale * ct.Scale / qLast

				require.NoError(t, tc.eval.Square(ct, ct))
				require.NoError(t, tc.eval.Relinearize(ct, tc.rlk, ct))
				require.NoError(t, tc.eval.RescaleToNext(ct, ct))

				require.Equal(t, cd.NextContextData().ParmsID(), ct.ParmsID())
				require.InDelta(t, scale, ct.Scale, scale*1e-12)

				want = want.mul(want)
			}

			tc.requireDecrypts(t, ct, want)
		})

	case SchemeBGV:

		t.Run(testString(tc, "Evaluator/CorrectionFactors"), func(t *testing.T) {

			m0, m1, m2 := newRandomMessage(N, 8, 3), newRandomMessage(N, 8, 3), newRandomMessage(N, 8, 3)
			ct0, ct1, ct2 := tc.encrypt(t, m0), tc.encrypt(t, m1), tc.encrypt(t, m2)

			require.NoError(t, tc.eval.ModSwitchToNext(ct0, ct0))
			require.NoError(t, tc.eval.ModSwitchToNext(ct1, ct1))
			require.NoError(t, tc.eval.ModSwitchToNext(ct2, ct2))

			prod, err := tc.eval.MultiplyNew(ct0, ct1)
			require.NoError(t, err)
			require.NoError(t, tc.eval.Relinearize(prod, tc.rlk, prod))
			require.NotEqual(t, prod.CorrectionFactor, ct2.CorrectionFactor)

			sum, err := tc.eval.AddNew(prod, ct2)
			require.NoError(t, err)
			tc.requireDecrypts(t, sum, m0.mul(m1).add(m2))

			diff, err := tc.eval.SubNew(ct2, prod)
			require.NoError(t, err)
			tc.requireDecrypts(t, diff, m2.sub(m0.mul(m1)))

			pt := tc.encode(m1, ParmsIDZero, 1)
			require.NoError(t, tc.eval.AddPlain(prod, pt, prod))
			tc.requireDecrypts(t, prod, m0.mul(m1).add(m1))
		})

		fallthrough

	default:

		t.Run(testString(tc, "Evaluator/RescaleToNext/UnsupportedScheme"), func(t *testing.T) {
			ct := tc.encrypt(t, make(message, N))
			require.ErrorIs(t, tc.eval.RescaleToNext(ct, ct), ErrLogic)
		})
	}
}

func testEvaluatorAutomorphism(tc *TestContext, t *testing.T) {

	N := tc.ctx.FirstContextData().N()
	galois := tc.ctx.KeyContextData().GaloisTool()

	rotate := tc.eval.RotateRows
	conjugate := tc.eval.RotateColumns
	if tc.parms.Scheme() == SchemeCKKS {
		rotate = tc.eval.RotateVector
		conjugate = tc.eval.ComplexConjugate
	}

	t.Run(testString(tc, "Evaluator/ApplyGalois"), func(t *testing.T) {

		m := newRandomMessage(N, N, 8)
		ct := tc.encrypt(t, m)

		for _, galEl := range tc.gk.GaloisElements() {
			out, err := tc.eval.ApplyGaloisNew(ct, galEl, tc.gk)
			require.NoError(t, err)
			tc.requireDecrypts(t, out, m.automorphism(galEl))
		}

		require.ErrorIs(t, tc.eval.ApplyGalois(ct, 2, tc.gk, ct), ErrInvalidArgument)
	})

	t.Run(testString(tc, "Evaluator/Rotate"), func(t *testing.T) {

		m := newRandomMessage(N, N, 8)
		ct := tc.encrypt(t, m)

		// 3 and -5 are not powers of two and use several keys
		for _, step := range []int{1, -1, 3, -5, N/2 - 1} {

			galEl, err := galois.GetEltFromStep(step)
			require.NoError(t, err)

			out := new(Ciphertext)
			require.NoError(t, rotate(ct, step, tc.gk, out))
			tc.requireDecrypts(t, out, m.automorphism(galEl))
		}

		out := new(Ciphertext)
		require.NoError(t, conjugate(ct, tc.gk, out))
		tc.requireDecrypts(t, out, m.automorphism(uint64(2*N-1)))
	})

	t.Run(testString(tc, "Evaluator/Rotate/MissingKey"), func(t *testing.T) {

		gk, err := tc.kgen.CreateGaloisKeysFromSteps([]int{1})
		require.NoError(t, err)

		ct := tc.encrypt(t, make(message, N))
		require.ErrorIs(t, rotate(ct, 2, gk, ct), ErrInvalidArgument)
		require.ErrorIs(t, conjugate(ct, gk, ct), ErrInvalidArgument)
	})

	t.Run(testString(tc, "Evaluator/Rotate/UnsupportedScheme"), func(t *testing.T) {

		ct := tc.encrypt(t, make(message, N))

		if tc.parms.Scheme() == SchemeCKKS {
			require.ErrorIs(t, tc.eval.RotateRows(ct, 1, tc.gk, ct), ErrLogic)
			require.ErrorIs(t, tc.eval.RotateColumns(ct, tc.gk, ct), ErrLogic)
		} else {
			require.ErrorIs(t, tc.eval.RotateVector(ct, 1, tc.gk, ct), ErrLogic)
			require.ErrorIs(t, tc.eval.ComplexConjugate(ct, tc.gk, ct), ErrLogic)
		}
	})
}

func testEvaluatorKeySwitch(tc *TestContext, t *testing.T) {

	N := tc.ctx.FirstContextData().N()

	t.Run(testString(tc, "Evaluator/SwitchKey"), func(t *testing.T) {

		kgen, err := NewKeyGenerator(tc.ctx)
		require.NoError(t, err)

		sk, err := kgen.SecretKey()
		require.NoError(t, err)

		ksk, err := tc.kgen.CreateKeySwitchingKey(sk)
		require.NoError(t, err)
		require.True(t, ksk.IsValidFor(tc.ctx))

		enc, err := NewEncryptor(tc.ctx, sk)
		require.NoError(t, err)

		m := newRandomMessage(N, N, 8)
		ct, err := enc.EncryptSymmetricNew(tc.encode(m, tc.ctx.FirstParmsID(), tc.defaultScale()))
		require.NoError(t, err)

		out, err := tc.eval.SwitchKeyNew(ct, ksk)
		require.NoError(t, err)
		tc.requireDecrypts(t, out, m)

		// at a lower level
		require.NoError(t, tc.eval.ModSwitchToNext(ct, ct))
		require.NoError(t, tc.eval.SwitchKey(ct, ksk, out))
		tc.requireDecrypts(t, out, m)
	})
}

func testSerialization(tc *TestContext, t *testing.T) {

	N := tc.ctx.FirstContextData().N()
	scale := tc.defaultScale()

	for _, compr := range []serialization.ComprModeType{serialization.ComprModeNone, serialization.ComprModeZlib, serialization.ComprModeZstd} {

		t.Run(testString(tc, "Serialization/Parameters/"+compr.String()), func(t *testing.T) {
			var buf bytes.Buffer
			_, err := tc.parms.Save(&buf, compr)
			require.NoError(t, err)

			var parms EncryptionParameters
			_, err = parms.Load(&buf)
			require.NoError(t, err)
			require.True(t, tc.parms.Equal(&parms))
			require.Equal(t, tc.parms.ParmsID(), parms.ParmsID())
		})

		t.Run(testString(tc, "Serialization/Ciphertext/"+compr.String()), func(t *testing.T) {

			m := newRandomMessage(N, N, 8)
			ct := tc.encrypt(t, m)

			var buf bytes.Buffer
			n, err := ct.Save(&buf, compr)
			require.NoError(t, err)
			require.Equal(t, int64(buf.Len()), n)

			size, err := ct.SaveSize(compr)
			require.NoError(t, err)
			require.LessOrEqual(t, n, int64(size))

			ctLoaded := new(Ciphertext)
			_, err = ctLoaded.Load(tc.ctx, &buf)
			require.NoError(t, err)
			require.True(t, cmp.Equal(ct, ctLoaded))
		})

		t.Run(testString(tc, "Serialization/Keys/"+compr.String()), func(t *testing.T) {

			var buf bytes.Buffer

			_, err := tc.sk.Save(&buf, compr)
			require.NoError(t, err)
			sk := new(SecretKey)
			_, err = sk.Load(tc.ctx, &buf)
			require.NoError(t, err)
			require.True(t, cmp.Equal(tc.sk, sk))

			_, err = tc.pk.Save(&buf, compr)
			require.NoError(t, err)
			pk := new(PublicKey)
			_, err = pk.Load(tc.ctx, &buf)
			require.NoError(t, err)
			require.True(t, cmp.Equal(tc.pk, pk))

			_, err = tc.rlk.Save(&buf, compr)
			require.NoError(t, err)
			rlk := new(RelinKeys)
			_, err = rlk.Load(tc.ctx, &buf)
			require.NoError(t, err)
			require.True(t, cmp.Equal(&tc.rlk.KSwitchKeys, &rlk.KSwitchKeys))
		})
	}

	t.Run(testString(tc, "Serialization/Seeded"), func(t *testing.T) {

		m := newRandomMessage(N, N, 8)
		pt := tc.encode(m, tc.ctx.FirstParmsID(), scale)

		ct, err := tc.encSk.EncryptSymmetricNew(pt)
		require.NoError(t, err)

		seeded, err := tc.encSk.EncryptSymmetricSerializable(pt)
		require.NoError(t, err)

		full, err := ct.SaveSize(serialization.ComprModeNone)
		require.NoError(t, err)

		var buf bytes.Buffer
		n, err := seeded.Save(&buf, serialization.ComprModeNone)
		require.NoError(t, err)
		require.Less(t, n, int64(full)*3/4)

		ctLoaded := new(Ciphertext)
		_, err = ctLoaded.Load(tc.ctx, &buf)
		require.NoError(t, err)
		require.True(t, ctLoaded.IsValidFor(tc.ctx))
		tc.requireDecrypts(t, ctLoaded, m)
	})

	t.Run(testString(tc, "Serialization/SeededKeys"), func(t *testing.T) {

		pkSeeded, err := tc.kgen.CreatePublicKeySerializable()
		require.NoError(t, err)

		rlkSeeded, err := tc.kgen.CreateRelinKeysSerializable()
		require.NoError(t, err)

		var buf bytes.Buffer
		_, err = pkSeeded.Save(&buf, serialization.ComprModeZstd)
		require.NoError(t, err)
		_, err = rlkSeeded.Save(&buf, serialization.ComprModeZstd)
		require.NoError(t, err)

		pk := new(PublicKey)
		_, err = pk.Load(tc.ctx, &buf)
		require.NoError(t, err)

		rlk := new(RelinKeys)
		_, err = rlk.Load(tc.ctx, &buf)
		require.NoError(t, err)

		enc, err := NewEncryptor(tc.ctx, pk)
		require.NoError(t, err)

		m0, m1 := newRandomMessage(N, 16, 4), newRandomMessage(N, 16, 4)
		ct0, err := enc.EncryptNew(tc.encode(m0, tc.ctx.FirstParmsID(), scale))
		require.NoError(t, err)
		ct1, err := enc.EncryptNew(tc.encode(m1, tc.ctx.FirstParmsID(), scale))
		require.NoError(t, err)

		require.NoError(t, tc.eval.Multiply(ct0, ct1, ct0))
		require.NoError(t, tc.eval.Relinearize(ct0, rlk, ct0))
		tc.requireDecrypts(t, ct0, m0.mul(m1))
	})

	t.Run(testString(tc, "Serialization/Parameters/DegreeOutOfRange"), func(t *testing.T) {

		for _, degree := range []int{1, 2 * ring.PolyModulusDegreeMax} {

			parms := tc.parms
			require.NoError(t, parms.SetPolyModulusDegree(degree))

			var buf bytes.Buffer
			_, err := parms.WriteTo(&buf)
			require.NoError(t, err)

			_, err = new(EncryptionParameters).ReadFrom(&buf)
			require.ErrorIs(t, err, ErrInvalidArgument)
		}

		// parameters without degree
		parms := tc.parms
		require.NoError(t, parms.SetPolyModulusDegree(0))

		var buf bytes.Buffer
		_, err := parms.WriteTo(&buf)
		require.NoError(t, err)

		var have EncryptionParameters
		_, err = have.ReadFrom(&buf)
		require.NoError(t, err)
		require.Equal(t, parms.ParmsID(), have.ParmsID())
	})

	t.Run(testString(tc, "Serialization/InvalidData"), func(t *testing.T) {

		ct := tc.encrypt(t, newRandomMessage(N, N, 8))
		ct.Value[0].Coeffs[0][0] = tc.parms.CoeffModulus()[0].Value()

		var buf bytes.Buffer
		_, err := ct.Save(&buf, serialization.ComprModeNone)
		require.NoError(t, err)

		err = func() error {
			_, err := new(Ciphertext).Load(tc.ctx, bytes.NewReader(buf.Bytes()))
			return err
		}()
		require.True(t, errors.Is(err, ErrInvalidArgument))

		// UnsafeLoad skips the data check
		_, err = new(Ciphertext).UnsafeLoad(tc.ctx, bytes.NewReader(buf.Bytes()))
		require.NoError(t, err)
	})
}
