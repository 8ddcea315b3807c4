package ring

import (
	"bytes"
	"fmt"
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/levelhe/levelhe/utils"
	"github.com/levelhe/levelhe/utils/sampling"
	"github.com/levelhe/levelhe/utils/serialization"
)

func testString(opname string, r *Ring) string {
	return fmt.Sprintf("%s/N=%d/limbs=%d", opname, r.N(), r.Level()+1)
}

type testParams struct {
	ringQ           *Ring
	prng            sampling.PRNG
	uniformSamplerQ *UniformSampler
}

var testParameters = []struct {
	logN     int
	bitSizes []int
}{
	{4, []int{50, 50, 40}},
	{10, []int{60, 55, 50, 45}},
}

func genTestParams(logN int, bitSizes []int) (tc *testParams, err error) {

	tc = new(testParams)

	var moduli []Modulus
	if moduli, err = CoeffModulusCreate(1<<logN, bitSizes); err != nil {
		return nil, err
	}

	if tc.ringQ, err = NewRing(1<<logN, moduli); err != nil {
		return nil, err
	}

	tc.prng = sampling.NewPRNG()
	tc.uniformSamplerQ = NewUniformSampler(tc.prng, tc.ringQ)
	return
}

func TestRing(t *testing.T) {

	testNewRing(t)
	testModulus(t)
	testPrimes(t)

	for _, p := range testParameters {

		tc, err := genTestParams(p.logN, p.bitSizes)
		require.NoError(t, err)

		testModularReduction(tc, t)
		testNTT(tc, t)
		testMulByMonomial(tc, t)
		testPRNG(tc, t)
		testSampler(tc, t)
		testRNSBase(tc, t)
		testDivRoundByLastModulus(tc, t)
		testModTAndDivideByLastModulus(tc, t)
		testBEHZ(tc, t)
		testDecryptScaleAndRound(tc, t)
		testGalois(tc, t)
		testWriterAndReader(tc, t)
	}
}

func testNewRing(t *testing.T) {
	t.Run("NewRing", func(t *testing.T) {

		r, err := NewRing(16, nil)
		require.Nil(t, r)
		require.ErrorIs(t, err, ErrInvalidArgument)

		m97 := MustNewModulus(97)
		m7 := MustNewModulus(7)

		r, err = NewRing(12, []Modulus{m97}) // Passing a degree that is not a power of two
		require.Nil(t, r)
		require.ErrorIs(t, err, ErrInvalidArgument)

		r, err = NewRing(16, []Modulus{m97, m97}) // Passing non CRT-enabling coeff modulus
		require.Nil(t, r)
		require.ErrorIs(t, err, ErrInvalidArgument)

		r, err = NewRing(16, []Modulus{m97, m7}) // Passing a NTT-enabling and a non NTT-enabling coeff modulus
		require.NoError(t, err)
		require.False(t, r.SupportsNTT())

		r, err = NewRing(16, []Modulus{m97}) // Passing NTT-enabling coeff modulus
		require.NoError(t, err)
		require.True(t, r.SupportsNTT())
	})
}

func testModulus(t *testing.T) {
	t.Run("Modulus", func(t *testing.T) {

		m, err := NewModulus(0)
		require.NoError(t, err)
		require.True(t, m.IsZero())
		require.Equal(t, 0, m.BitCount())

		_, err = NewModulus(1)
		require.ErrorIs(t, err, ErrInvalidArgument)

		_, err = NewModulus(1 << 61)
		require.ErrorIs(t, err, ErrInvalidArgument)

		primes, err := GetPrimes(2, 60, 1)
		require.NoError(t, err)
		m = primes[0]
		require.Equal(t, 60, m.BitCount())
		require.True(t, m.IsPrime())
		require.Equal(t, 1, m.UInt64Count())
		require.Equal(t, m, MustNewModulus(m.Value()))

		m = MustNewModulus(1 << 32)
		require.False(t, m.IsPrime())
		require.Equal(t, 33, m.BitCount())
		require.Equal(t, uint64(3), m.Reduce(1<<33+3))

		for _, compr := range []serialization.ComprModeType{serialization.ComprModeNone, serialization.ComprModeZlib, serialization.ComprModeZstd} {
			t.Run(compr.String(), func(t *testing.T) {
				var b bytes.Buffer
				n, err := m.Save(&b, compr)
				require.NoError(t, err)
				require.Equal(t, int64(b.Len()), n)

				size, err := m.SaveSize(compr)
				require.NoError(t, err)
				require.LessOrEqual(t, int(n), size)

				var mNew Modulus
				_, err = mNew.Load(&b)
				require.NoError(t, err)
				require.Equal(t, m, mNew)
			})
		}
	})
}

func testPrimes(t *testing.T) {
	t.Run("Primes", func(t *testing.T) {

		primes, err := GetPrimes(1024, 50, 5)
		require.NoError(t, err)
		require.Len(t, primes, 5)
		for i, q := range primes {
			require.True(t, q.IsPrime())
			require.Equal(t, 50, q.BitCount())
			require.Equal(t, uint64(1), q.Value()%2048)
			if i > 0 {
				require.Greater(t, primes[i-1].Value(), q.Value())
			}
		}

		moduli, err := CoeffModulusCreate(4096, []int{40, 50, 40})
		require.NoError(t, err)
		require.Equal(t, 40, moduli[0].BitCount())
		require.Equal(t, 40, moduli[2].BitCount())
		require.NotEqual(t, moduli[0], moduli[2])

		_, err = CoeffModulusCreate(4096, []int{61})
		require.ErrorIs(t, err, ErrInvalidArgument)

		// not enough 5-bit primes congruent to 1 mod 2^13
		_, err = CoeffModulusCreate(4096, []int{5})
		require.ErrorIs(t, err, ErrLogic)

		t0, err := PlainModulusBatching(8192, 20)
		require.NoError(t, err)
		require.Equal(t, 20, t0.BitCount())
		require.Equal(t, uint64(1), t0.Value()%16384)

		def, err := CoeffModulusBFVDefault(4096, SecLevelTC128)
		require.NoError(t, err)
		total := 0
		for _, q := range def {
			total += q.BitCount()
		}
		require.Equal(t, CoeffModulusMaxBitCount(4096, SecLevelTC128), total)

		_, err = CoeffModulusBFVDefault(3000, SecLevelTC128)
		require.ErrorIs(t, err, ErrInvalidArgument)

		root, err := MinimalPrimitiveRoot(2048, primes[0])
		require.NoError(t, err)
		require.True(t, IsPrimitiveRoot(root, 2048, primes[0]))
	})
}

func testModularReduction(tc *testParams, t *testing.T) {

	t.Run(testString("ModularReduction", tc.ringQ), func(t *testing.T) {

		bigQ := new(big.Int)
		for _, q := range tc.ringQ.Moduli() {

			bigQ.SetUint64(q.Value())

			for i := 0; i < 64; i++ {

				x := sampling.RandUint64()
				y := sampling.RandUint64() % q.Value()

				want := new(big.Int).Mul(new(big.Int).SetUint64(x), new(big.Int).SetUint64(y))
				want.Mod(want, bigQ)
				require.Equal(t, want.Uint64(), BRed(x, y, q))

				require.Equal(t, x%q.Value(), BRedAdd(x, q))

				op := NewMulOperand(y, q)
				require.Equal(t, want.Uint64(), MulShoup(x, op, q.Value()))
				require.Less(t, MulShoupLazy(x, op, q.Value()), 2*q.Value())

				if y != 0 {
					inv, ok := ModInverse(y, q.Value())
					require.True(t, ok)
					require.Equal(t, uint64(1), BRed(inv, y, q))
					require.Equal(t, inv, ModExp(y, q.Value()-2, q))
				}
			}

			_, ok := ModInverse(0, q.Value())
			require.False(t, ok)

			a := make([]uint64, 16)
			b := make([]uint64, 16)
			want := new(big.Int)
			for i := range a {
				a[i] = sampling.RandUint64()
				b[i] = sampling.RandUint64() % q.Value()
				want.Add(want, new(big.Int).Mul(new(big.Int).SetUint64(a[i]), new(big.Int).SetUint64(b[i])))
			}
			require.Equal(t, want.Mod(want, bigQ).Uint64(), DotProductMod(a, b, q))
		}
	})
}

// naiveNegacyclic returns a*b mod (X^N+1, q).
func naiveNegacyclic(a, b []uint64, q Modulus) (c []uint64) {
	N := len(a)
	c = make([]uint64, N)
	for i := 0; i < N; i++ {
		for j := 0; j < N; j++ {
			prod := BRed(a[i], b[j], q)
			if k := i + j; k < N {
				c[k] = AddMod(c[k], prod, q.Value())
			} else {
				c[k-N] = SubMod(c[k-N], prod, q.Value())
			}
		}
	}
	return
}

func testNTT(tc *testParams, t *testing.T) {

	t.Run(testString("NTT/RoundTrip", tc.ringQ), func(t *testing.T) {
		ringQ := tc.ringQ
		p0 := tc.uniformSamplerQ.ReadNew()
		p1 := ringQ.NewPoly()
		ringQ.NTT(p0, p1)
		for i, s := range ringQ.SubRings {
			for _, c := range p1.Coeffs[i] {
				require.Less(t, c, s.Modulus.Value())
			}
		}
		ringQ.INTT(p1, p1)
		require.True(t, ringQ.Equal(p0, p1))
	})

	t.Run(testString("NTT/Lazy", tc.ringQ), func(t *testing.T) {
		ringQ := tc.ringQ
		p0 := tc.uniformSamplerQ.ReadNew()
		p1 := ringQ.NewPoly()
		ringQ.NTTLazy(p0, p1)
		for i, s := range ringQ.SubRings {
			q := s.Modulus.Value()
			for _, c := range p1.Coeffs[i] {
				require.Less(t, c, 4*q)
			}
			s.Reduce(p1.Coeffs[i], p1.Coeffs[i])
			s.BackwardLazy(p1.Coeffs[i])
			for _, c := range p1.Coeffs[i] {
				require.Less(t, c, 2*q)
			}
			s.Reduce(p1.Coeffs[i], p1.Coeffs[i])
		}
		require.True(t, ringQ.Equal(p0, p1))
	})

	if tc.ringQ.N() > 256 {
		return
	}

	t.Run(testString("NTT/NegacyclicConvolution", tc.ringQ), func(t *testing.T) {
		ringQ := tc.ringQ
		a := tc.uniformSamplerQ.ReadNew()
		b := tc.uniformSamplerQ.ReadNew()
		c := ringQ.NewPoly()

		ringQ.NTT(a, c)
		tmp := ringQ.NewPoly()
		ringQ.NTT(b, tmp)
		ringQ.MulCoeffs(c, tmp, c)
		ringQ.INTT(c, c)

		for i, s := range ringQ.SubRings {
			require.Equal(t, naiveNegacyclic(a.Coeffs[i], b.Coeffs[i], s.Modulus), c.Coeffs[i])
		}
	})
}

func testMulByMonomial(tc *testParams, t *testing.T) {

	t.Run(testString("MulByMonomial", tc.ringQ), func(t *testing.T) {

		ringQ := tc.ringQ
		N := ringQ.N()

		a := tc.uniformSamplerQ.ReadNew()
		b := ringQ.NewPoly()
		c := ringQ.NewPoly()

		ringQ.MulByMonomial(a, 1, b)
		ringQ.MulByMonomial(b, 2*N-1, c)
		require.True(t, ringQ.Equal(a, c))

		// X^N = -1
		ringQ.MulByMonomial(a, N, b)
		ringQ.Neg(a, c)
		require.True(t, ringQ.Equal(b, c))
	})
}

func testPRNG(tc *testParams, t *testing.T) {

	t.Run(testString("PRNG", tc.ringQ), func(t *testing.T) {

		prng1, err := sampling.NewKeyedPRNG(nil)
		require.NoError(t, err)
		prng2, err := sampling.NewKeyedPRNG(nil)
		require.NoError(t, err)

		p0 := NewUniformSampler(prng1, tc.ringQ).ReadNew()
		p1 := NewUniformSampler(prng2, tc.ringQ).ReadNew()

		require.True(t, tc.ringQ.Equal(p0, p1))
	})
}

func testSampler(tc *testParams, t *testing.T) {

	centered := func(x, q uint64) int64 {
		if x > q>>1 {
			return -int64(q - x)
		}
		return int64(x)
	}

	checkBounded := func(t *testing.T, pol Poly, bound int64) {
		for j := range pol.Coeffs[0] {
			x := centered(pol.Coeffs[0][j], tc.ringQ.SubRings[0].Modulus.Value())
			require.LessOrEqual(t, x, bound)
			require.GreaterOrEqual(t, x, -bound)
			for i, s := range tc.ringQ.SubRings[1:] {
				require.Equal(t, x, centered(pol.Coeffs[i+1][j], s.Modulus.Value()))
			}
		}
	}

	t.Run(testString("Sampler/Uniform", tc.ringQ), func(t *testing.T) {
		pol := tc.uniformSamplerQ.ReadNew()
		for i, s := range tc.ringQ.SubRings {
			for _, c := range pol.Coeffs[i] {
				require.Less(t, c, s.Modulus.Value())
			}
		}
	})

	t.Run(testString("Sampler/Ternary", tc.ringQ), func(t *testing.T) {
		sampler, err := NewSampler(tc.prng, tc.ringQ, Ternary{})
		require.NoError(t, err)
		checkBounded(t, sampler.ReadNew(), 1)
	})

	t.Run(testString("Sampler/DiscreteGaussian", tc.ringQ), func(t *testing.T) {
		sampler, err := NewSampler(tc.prng, tc.ringQ, DefaultNoiseDistribution)
		require.NoError(t, err)
		checkBounded(t, sampler.ReadNew(), int64(math.Floor(StandardErrorMaxDev)))

		_, err = NewSampler(tc.prng, tc.ringQ, DiscreteGaussian{Sigma: -1})
		require.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run(testString("Sampler/CenteredBinomial", tc.ringQ), func(t *testing.T) {
		sampler, err := NewSampler(tc.prng, tc.ringQ, CenteredBinomial{})
		require.NoError(t, err)
		checkBounded(t, sampler.ReadNew(), 21)
	})

	t.Run(testString("Sampler/AtLevel", tc.ringQ), func(t *testing.T) {
		sampler, err := NewSampler(tc.prng, tc.ringQ, Ternary{})
		require.NoError(t, err)
		pol := sampler.AtLevel(0).ReadNew()
		require.Equal(t, 0, pol.Level())
	})

	t.Run("Sampler/ParametersFromMap", func(t *testing.T) {
		X, err := ParametersFromMap(map[string]interface{}{"Type": "DiscreteGaussian", "Sigma": 3.2, "Bound": 19.2})
		require.NoError(t, err)
		require.Equal(t, DiscreteGaussian{Sigma: 3.2, Bound: 19.2}, X)

		X, err = ParametersFromMap(map[string]interface{}{"Type": "CenteredBinomial"})
		require.NoError(t, err)
		require.Equal(t, CenteredBinomial{}, X)

		_, err = ParametersFromMap(map[string]interface{}{"Type": "Poisson"})
		require.ErrorIs(t, err, ErrInvalidArgument)
	})
}

func testRNSBase(tc *testParams, t *testing.T) {

	t.Run(testString("RNSBase", tc.ringQ), func(t *testing.T) {

		base, err := NewRNSBase(tc.ringQ.Moduli())
		require.NoError(t, err)
		require.Equal(t, 0, base.Prod().Cmp(tc.ringQ.ModuliProduct()))

		_, err = NewRNSBase([]Modulus{MustNewModulus(6), MustNewModulus(9)})
		require.ErrorIs(t, err, ErrInvalidArgument)

		x, _ := new(big.Int).SetString("123456789123456789123456789", 10)
		x.Mod(x, base.Prod())
		require.Equal(t, 0, x.Cmp(base.Compose(base.Decompose(x))))

		sub, err := base.Drop()
		require.NoError(t, err)
		require.True(t, sub.IsSubbaseOf(base))
		require.True(t, base.IsSuperbaseOf(sub))
		require.False(t, base.IsSubbaseOf(sub))
	})

	t.Run(testString("BaseConverter", tc.ringQ), func(t *testing.T) {

		moduli := tc.ringQ.Moduli()
		ibase, err := NewRNSBase(moduli[:len(moduli)-1])
		require.NoError(t, err)
		obase, err := NewRNSBase(moduli[len(moduli)-1:])
		require.NoError(t, err)

		conv := NewBaseConverter(ibase, obase)

		N := tc.ringQ.N()
		in := make([][]uint64, ibase.Size())
		for i := range in {
			in[i] = make([]uint64, N)
		}

		values := make([]*big.Int, N)
		qHalf := new(big.Int).Rsh(ibase.Prod(), 1)
		for j := range values {
			values[j] = new(big.Int).SetUint64(sampling.RandUint64())
			values[j].Mul(values[j], values[j])
			values[j].Mod(values[j], ibase.Prod())
		}
		ibase.DecomposeArray(values, in)

		fast := [][]uint64{make([]uint64, N)}
		conv.FastConvertArray(in, fast)

		exact := make([]uint64, N)
		conv.ExactConvertArray(in, exact)

		p := obase.At(0).Value()
		bigP := new(big.Int).SetUint64(p)
		for j := range values {

			// fast conversion is off by at most (len(ibase)-1) multiples of the input product
			found := false
			for k := 0; k < ibase.Size(); k++ {
				v := new(big.Int).Add(values[j], new(big.Int).Mul(big.NewInt(int64(k)), ibase.Prod()))
				if v.Mod(v, bigP).Uint64() == fast[0][j] {
					found = true
				}
			}
			require.True(t, found)

			// exact conversion is centered
			v := new(big.Int).Set(values[j])
			if v.Cmp(qHalf) > 0 {
				v.Sub(v, ibase.Prod())
			}
			require.Equal(t, v.Mod(v, bigP).Uint64(), exact[j])
		}
	})
}

func testDivRoundByLastModulus(tc *testParams, t *testing.T) {

	t.Run(testString("DivRoundByLastModulus", tc.ringQ), func(t *testing.T) {

		ringQ := tc.ringQ
		level := ringQ.Level()
		N := ringQ.N()

		base, err := NewRNSBase(ringQ.Moduli())
		require.NoError(t, err)
		rt, err := NewRNSTool(N, base, Modulus{})
		require.NoError(t, err)

		qLast := new(big.Int).SetUint64(ringQ.SubRings[level].Modulus.Value())
		half := new(big.Int).Rsh(qLast, 1)
		Q := ringQ.AtLevel(level - 1).ModuliProduct()

		p := tc.uniformSamplerQ.ReadNew()
		values := make([]*big.Int, N)
		ringQ.PolyToBigint(p, 1, values)

		want := make([]*big.Int, N)
		for j := range values {
			want[j] = new(big.Int).Add(values[j], half)
			want[j].Quo(want[j], qLast)
			want[j].Mod(want[j], Q)
		}

		pCoeff := p.CopyNew()
		rt.DivideAndRoundQLastInplace(pCoeff.Coeffs)

		have := make([]*big.Int, N)
		ringQ.AtLevel(level-1).PolyToBigint(pCoeff, 1, have)
		for j := range want {
			require.Equal(t, 0, want[j].Cmp(have[j]))
		}

		tables := make([]*NTTTable, level+1)
		for i, s := range ringQ.SubRings {
			tables[i] = s.NTTTable
		}

		pNTT := ringQ.NewPoly()
		ringQ.NTT(p, pNTT)
		rt.DivideAndRoundQLastNTTInplace(pNTT.Coeffs, tables)
		pNTT.Resize(level - 1)
		ringQ.AtLevel(level-1).INTT(pNTT, pNTT)
		require.True(t, ringQ.AtLevel(level-1).Equal(pCoeff, pNTT))
	})
}

func testModTAndDivideByLastModulus(tc *testParams, t *testing.T) {

	t.Run(testString("ModTAndDivideByLastModulus", tc.ringQ), func(t *testing.T) {

		ringQ := tc.ringQ
		level := ringQ.Level()
		N := ringQ.N()

		tMod, err := PlainModulusBatching(N, 17)
		require.NoError(t, err)

		base, err := NewRNSBase(ringQ.Moduli())
		require.NoError(t, err)
		rt, err := NewRNSTool(N, base, tMod)
		require.NoError(t, err)

		qLastU := ringQ.SubRings[level].Modulus.Value()
		qLast := new(big.Int).SetUint64(qLastU)
		bigT := new(big.Int).SetUint64(tMod.Value())
		Q := ringQ.AtLevel(level - 1).ModuliProduct()

		p := tc.uniformSamplerQ.ReadNew()
		values := make([]*big.Int, N)
		ringQ.PolyToBigint(p, 1, values)

		invQLastModT := new(big.Int).ModInverse(new(big.Int).Mod(qLast, bigT), bigT)
		require.Equal(t, invQLastModT.Uint64(), rt.InvQLastModT())

		tables := make([]*NTTTable, level+1)
		for i, s := range ringQ.SubRings {
			tables[i] = s.NTTTable
		}

		pNTT := ringQ.NewPoly()
		ringQ.NTT(p, pNTT)
		rt.ModTAndDivideQLastNTTInplace(pNTT.Coeffs, tables)
		pNTT.Resize(level - 1)
		ringQ.AtLevel(level-1).INTT(pNTT, pNTT)

		have := make([]*big.Int, N)
		ringQ.AtLevel(level-1).PolyToBigint(pNTT, 1, have)

		for j := range values {

			// delta = X mod q_last (centered) + q_last * k, with delta = 0 mod t
			c := new(big.Int).Mod(values[j], qLast)
			if c.Cmp(new(big.Int).Rsh(qLast, 1)) > 0 {
				c.Sub(c, qLast)
			}
			k := new(big.Int).Neg(c)
			k.Mul(k, invQLastModT)
			k.Mod(k, bigT)
			if k.Cmp(new(big.Int).Rsh(bigT, 1)) > 0 {
				k.Sub(k, bigT)
			}
			delta := new(big.Int).Add(c, new(big.Int).Mul(qLast, k))
			require.Equal(t, int64(0), new(big.Int).Mod(delta, bigT).Int64())

			want := new(big.Int).Sub(values[j], delta)
			require.Equal(t, int64(0), new(big.Int).Mod(want, qLast).Int64())
			want.Quo(want, qLast)
			want.Mod(want, Q)

			require.Equal(t, 0, want.Cmp(have[j]))
		}
	})
}

func testBEHZ(tc *testParams, t *testing.T) {

	t.Run(testString("BEHZ", tc.ringQ), func(t *testing.T) {

		ringQ := tc.ringQ
		N := ringQ.N()

		base, err := NewRNSBase(ringQ.Moduli())
		require.NoError(t, err)
		rt, err := NewRNSTool(N, base, MustNewModulus(65537))
		require.NoError(t, err)

		bsk := rt.BaseBsk()
		bSize := rt.BaseB().Size()
		require.Equal(t, bSize+1, bsk.Size())
		require.True(t, bsk.Contains(rt.MSk()))
		require.Equal(t, uint64(1<<32), rt.MTilde().Value())

		newLimbs := func(n int) [][]uint64 {
			limbs := make([][]uint64, n)
			for i := range limbs {
				limbs[i] = make([]uint64, N)
			}
			return limbs
		}

		// FastBConvSk is exact for |x| < prod(B)/2
		bound := new(big.Int).Rsh(rt.BaseB().Prod(), 2)
		values := make([]*big.Int, N)
		for j := range values {
			values[j] = new(big.Int).SetUint64(sampling.RandUint64())
			values[j].Mod(values[j], bound)
		}
		in := newLimbs(bsk.Size())
		bsk.DecomposeArray(values, in)
		out := newLimbs(base.Size())
		rt.FastBConvSk(in, out)
		for i := 0; i < base.Size(); i++ {
			qi := new(big.Int).SetUint64(base.At(i).Value())
			for j := range values {
				require.Equal(t, new(big.Int).Mod(values[j], qi).Uint64(), out[i][j])
			}
		}

		// FastFloor returns floor(x/q) up to a small negative error
		qBsk := new(big.Int).Mul(base.Prod(), bsk.Prod())
		qBsk.Rsh(qBsk, 4)
		for j := range values {
			values[j].SetUint64(sampling.RandUint64())
			values[j].Mul(values[j], values[j])
			values[j].Mul(values[j], values[j])
			values[j].Mod(values[j], qBsk)
		}
		inQBsk := newLimbs(base.Size() + bsk.Size())
		base.DecomposeArray(values, inQBsk[:base.Size()])
		bsk.DecomposeArray(values, inQBsk[base.Size():])
		floor := newLimbs(bsk.Size())
		rt.FastFloor(inQBsk, floor)
		have := make([]*big.Int, N)
		bsk.ComposeArray(floor, have)
		for j := range values {
			want := new(big.Int).Quo(values[j], base.Prod())
			diff := new(big.Int).Sub(want, have[j])
			require.True(t, diff.Sign() >= 0 && diff.Cmp(big.NewInt(int64(base.Size()))) < 0)
		}

		// FastBConvMTilde followed by SmMrq is a representation of x + q*e in Bsk with small e
		for j := range values {
			values[j].SetUint64(sampling.RandUint64())
			values[j].Mod(values[j], base.Prod())
		}
		inQ := newLimbs(base.Size())
		base.DecomposeArray(values, inQ)
		extended := newLimbs(bsk.Size() + 1)
		rt.FastBConvMTilde(inQ, extended)
		reduced := newLimbs(bsk.Size())
		rt.SmMrq(extended, reduced)
		bsk.ComposeArray(reduced, have)
		bskHalf := new(big.Int).Rsh(bsk.Prod(), 1)
		for j := range values {
			if have[j].Cmp(bskHalf) > 0 {
				have[j].Sub(have[j], bsk.Prod())
			}
			diff := new(big.Int).Sub(have[j], values[j])
			e, r := new(big.Int).QuoRem(diff, base.Prod(), new(big.Int))
			require.Equal(t, 0, r.Sign())
			require.LessOrEqual(t, e.CmpAbs(big.NewInt(1)), 0)
		}
	})
}

func testDecryptScaleAndRound(tc *testParams, t *testing.T) {

	t.Run(testString("DecryptScaleAndRound", tc.ringQ), func(t *testing.T) {

		ringQ := tc.ringQ
		N := ringQ.N()

		tMod := MustNewModulus(65537)
		base, err := NewRNSBase(ringQ.Moduli())
		require.NoError(t, err)
		rt, err := NewRNSTool(N, base, tMod)
		require.NoError(t, err)

		p := tc.uniformSamplerQ.ReadNew()
		values := make([]*big.Int, N)
		ringQ.PolyToBigint(p, 1, values)

		out := make([]uint64, N)
		rt.DecryptScaleAndRound(p.Coeffs, out)

		Q := ringQ.ModuliProduct()
		bigT := new(big.Int).SetUint64(tMod.Value())
		for j := range values {
			// round(t*x/Q) mod t
			want := new(big.Int).Mul(values[j], bigT)
			want.Lsh(want, 1)
			want.Add(want, Q)
			want.Quo(want, new(big.Int).Lsh(Q, 1))
			want.Mod(want, bigT)
			require.Equal(t, want.Uint64(), out[j])
		}

		exact := make([]uint64, N)
		rt.DecryptModT(p.Coeffs, exact)
		qHalf := new(big.Int).Rsh(Q, 1)
		for j := range values {
			v := new(big.Int).Set(values[j])
			if v.Cmp(qHalf) > 0 {
				v.Sub(v, Q)
			}
			require.Equal(t, v.Mod(v, bigT).Uint64(), exact[j])
		}
	})
}

func testGalois(tc *testParams, t *testing.T) {

	t.Run(testString("Galois", tc.ringQ), func(t *testing.T) {

		ringQ := tc.ringQ
		N := uint64(ringQ.N())

		g, err := NewGaloisTool(ringQ.LogN())
		require.NoError(t, err)

		galEl, err := g.GetEltFromStep(0)
		require.NoError(t, err)
		require.Equal(t, 2*N-1, galEl)

		galEl, err = g.GetEltFromStep(1)
		require.NoError(t, err)
		require.Equal(t, GaloisGen, galEl)

		galElInv, err := g.GetEltFromStep(-1)
		require.NoError(t, err)
		require.Equal(t, uint64(1), galEl*galElInv%(2*N))

		_, err = g.GetEltFromStep(int(N / 2))
		require.ErrorIs(t, err, ErrInvalidArgument)

		all := g.GetEltsAll()
		require.Len(t, all, 2*(ringQ.LogN()-1))
		require.True(t, utils.AllDistinct(all))
		require.Equal(t, 2*N-1, all[len(all)-1])
		for _, el := range all {
			require.True(t, g.IsValidGaloisElt(el))
		}

		p := tc.uniformSamplerQ.ReadNew()

		for _, el := range []uint64{GaloisGen, galElInv, 2*N - 1} {

			// coefficient then NTT == NTT then permutation
			want := ringQ.NewPoly()
			for i, s := range ringQ.SubRings {
				g.ApplyGalois(p.Coeffs[i], el, s.Modulus, want.Coeffs[i])
			}
			ringQ.NTT(want, want)

			pNTT := ringQ.NewPoly()
			ringQ.NTT(p, pNTT)
			have := ringQ.NewPoly()
			for i := range ringQ.SubRings {
				g.ApplyGaloisNTT(pNTT.Coeffs[i], el, have.Coeffs[i])
			}

			require.True(t, ringQ.Equal(want, have))
		}
	})
}

func testWriterAndReader(tc *testParams, t *testing.T) {

	t.Run(testString("WriterAndReader", tc.ringQ), func(t *testing.T) {

		p := tc.uniformSamplerQ.ReadNew()

		data, err := p.MarshalBinary()
		require.NoError(t, err)
		require.Len(t, data, p.BinarySize())

		var pTest Poly
		require.NoError(t, pTest.UnmarshalBinary(data))
		require.True(t, p.Equal(&pTest))

		var b bytes.Buffer
		_, err = p.WriteTo(&b)
		require.NoError(t, err)
		var pRead Poly
		_, err = pRead.ReadFrom(&b)
		require.NoError(t, err)
		require.True(t, p.Equal(&pRead))
	})
}

func TestMemoryPool(t *testing.T) {

	t.Run("GetPut", func(t *testing.T) {
		pool := NewMemoryPool(0)
		buff, err := pool.Get(64)
		require.NoError(t, err)
		require.Len(t, *buff, 64)
		require.Equal(t, int64(512), pool.AllocByteCount())
		require.Equal(t, int64(512), pool.InUseByteCount())

		(*buff)[3] = 7
		pool.Put(buff)
		require.Equal(t, int64(0), pool.InUseByteCount())

		buff, err = pool.Get(64)
		require.NoError(t, err)
		for _, c := range *buff {
			require.Zero(t, c)
		}

		_, err = pool.Get(0)
		require.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("Limit", func(t *testing.T) {
		pool := NewMemoryPool(1024)
		b0, err := pool.Get(100)
		require.NoError(t, err)
		_, err = pool.Get(100)
		require.ErrorIs(t, err, ErrOutOfMemory)
		pool.Put(b0)
		_, err = pool.Get(100)
		require.NoError(t, err)
	})

	t.Run("Poly", func(t *testing.T) {
		pool := NewMemoryPool(0)
		pol, err := pool.GetPoly(16, 2)
		require.NoError(t, err)
		require.Equal(t, 16, pol.N())
		require.Equal(t, 2, pol.Level())
		pool.RecyclePoly(pol)
		require.Equal(t, int64(0), pool.InUseByteCount())
	})

	t.Run("Default", func(t *testing.T) {
		require.True(t, DefaultPool() == DefaultPool())
	})
}
