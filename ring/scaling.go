package ring

import (
	"fmt"
	"math/big"

	"github.com/levelhe/levelhe/utils"
)

// RNSTool holds the bases and constants of the full-RNS algorithms used by
// the BFV and BGV schemes: BEHZ multiplication (base extension to an
// auxiliary base Bsk, Montgomery correction with m~, flooring by q and
// Shenoy-Kumaresan conversion back to q), the scale-and-round of BFV
// decryption through the base {t, gamma}, and the division by the last
// prime used by modulus switching.
type RNSTool struct {
	N int

	t Modulus

	baseQ, baseB, baseBsk, baseBskMTilde, baseTGamma *RNSBase

	mSk, gamma, mTilde Modulus

	baseBskNTTTables []*NTTTable

	baseQToBskConv     *BaseConverter
	baseQToMTildeConv  *BaseConverter
	baseBToQConv       *BaseConverter
	baseBToMSkConv     *BaseConverter
	baseQToTGammaConv  *BaseConverter
	baseQToTConv       *BaseConverter
	prodBModQ          []uint64
	invProdQModBsk     []MulOperand
	invProdBModMSk     MulOperand
	invMTildeModBsk    []MulOperand
	invProdQModMTilde  MulOperand
	prodQModBsk        []uint64
	invGammaModT       MulOperand
	prodTGammaModQ     []MulOperand
	negInvQModTGamma   []MulOperand
	invQLastModQ       []MulOperand
	qLastModQ          []uint64
	invQLastModT       uint64
	qLastModT          uint64
	tModQ              []MulOperand
	mTildeModQ         []MulOperand
	coeffModulusModT   uint64
	totalCoeffBitCount int
}

// NewRNSTool creates the [RNSTool] of degree N for the coefficient base q and
// the plaintext modulus t. t is the zero modulus for schemes without plaintext modulus.
func NewRNSTool(N int, q *RNSBase, t Modulus) (rt *RNSTool, err error) {

	if q.Size() < CoeffModulusCountMin || q.Size() > CoeffModulusCountMax {
		return nil, fmt.Errorf("%w: rns base is invalid", ErrInvalidArgument)
	}

	logN := utils.PowerOfTwo(uint64(N))
	if logN < 0 || N > PolyModulusDegreeMax || N < PolyModulusDegreeMin {
		return nil, fmt.Errorf("%w: poly modulus degree is invalid", ErrInvalidArgument)
	}

	rt = &RNSTool{N: N, t: t, baseQ: q}

	baseQSize := q.Size()

	// K * n * t * q^2 < q * prod(B) * m_sk, with 32 bits reserved for K * n
	rt.totalCoeffBitCount = q.prod.BitLen()
	baseBSize := baseQSize
	if 32+t.BitCount()+rt.totalCoeffBitCount >= ModulusBitCountMax*baseQSize+ModulusBitCountMax {
		baseBSize++
	}

	baseBskSize := baseBSize + 1
	baseBskMTildeSize := baseBskSize + 1

	// m_sk, gamma and the primes of B
	primes, err := GetPrimes(uint64(N), UserModulusBitCountMax+1, baseBskMTildeSize)
	if err != nil {
		return nil, fmt.Errorf("cannot NewRNSTool: %w", err)
	}

	rt.mSk = primes[0]
	rt.gamma = primes[1]

	// m_tilde is not prime
	if rt.mTilde, err = NewModulus(1 << 32); err != nil {
		return nil, err
	}

	if rt.baseB, err = NewRNSBase(primes[2 : 2+baseBSize]); err != nil {
		return nil, fmt.Errorf("%w: invalid rns bases", ErrLogic)
	}

	if rt.baseBsk, err = rt.baseB.Extend(rt.mSk); err != nil {
		return nil, fmt.Errorf("%w: invalid rns bases", ErrLogic)
	}

	if rt.baseBskMTilde, err = rt.baseBsk.Extend(rt.mTilde); err != nil {
		return nil, fmt.Errorf("%w: invalid rns bases", ErrLogic)
	}

	if !t.IsZero() {
		if rt.baseTGamma, err = NewRNSBase([]Modulus{t, rt.gamma}); err != nil {
			return nil, fmt.Errorf("%w: invalid rns bases", ErrLogic)
		}
	}

	rt.baseBskNTTTables = make([]*NTTTable, baseBskSize)
	for i, m := range rt.baseBsk.moduli {
		if rt.baseBskNTTTables[i], err = NewNTTTable(logN, m); err != nil {
			return nil, fmt.Errorf("%w: invalid rns bases", ErrLogic)
		}
	}

	mTildeBase, _ := NewRNSBase([]Modulus{rt.mTilde})
	mSkBase, _ := NewRNSBase([]Modulus{rt.mSk})

	rt.baseQToBskConv = NewBaseConverter(q, rt.baseBsk)
	rt.baseQToMTildeConv = NewBaseConverter(q, mTildeBase)
	rt.baseBToQConv = NewBaseConverter(rt.baseB, q)
	rt.baseBToMSkConv = NewBaseConverter(rt.baseB, mSkBase)

	if rt.baseTGamma != nil {
		rt.baseQToTGammaConv = NewBaseConverter(q, rt.baseTGamma)
		tBase, _ := NewRNSBase([]Modulus{t})
		rt.baseQToTConv = NewBaseConverter(q, tBase)
	}

	modBig := func(x *big.Int, m Modulus) uint64 {
		return new(big.Int).Mod(x, new(big.Int).SetUint64(m.value)).Uint64()
	}

	invert := func(x uint64, m Modulus) (op MulOperand, err error) {
		inv, ok := ModInverse(x, m.value)
		if !ok {
			return op, fmt.Errorf("%w: invalid rns bases", ErrLogic)
		}
		return NewMulOperand(inv, m), nil
	}

	rt.prodBModQ = make([]uint64, baseQSize)
	for i, qi := range q.moduli {
		rt.prodBModQ[i] = modBig(rt.baseB.prod, qi)
	}

	rt.invProdQModBsk = make([]MulOperand, baseBskSize)
	rt.invMTildeModBsk = make([]MulOperand, baseBskSize)
	rt.prodQModBsk = make([]uint64, baseBskSize)
	for i, bi := range rt.baseBsk.moduli {
		if rt.invProdQModBsk[i], err = invert(modBig(q.prod, bi), bi); err != nil {
			return nil, err
		}
		if rt.invMTildeModBsk[i], err = invert(rt.mTilde.value%bi.value, bi); err != nil {
			return nil, err
		}
		rt.prodQModBsk[i] = modBig(q.prod, bi)
	}

	if rt.invProdBModMSk, err = invert(modBig(rt.baseB.prod, rt.mSk), rt.mSk); err != nil {
		return nil, err
	}

	if rt.invProdQModMTilde, err = invert(modBig(q.prod, rt.mTilde), rt.mTilde); err != nil {
		return nil, err
	}

	rt.mTildeModQ = make([]MulOperand, baseQSize)
	for i, qi := range q.moduli {
		rt.mTildeModQ[i] = NewMulOperand(rt.mTilde.value, qi)
	}

	if rt.baseTGamma != nil {

		if rt.invGammaModT, err = invert(rt.gamma.value%t.value, t); err != nil {
			return nil, err
		}

		rt.prodTGammaModQ = make([]MulOperand, baseQSize)
		rt.tModQ = make([]MulOperand, baseQSize)
		for i, qi := range q.moduli {
			rt.prodTGammaModQ[i] = NewMulOperand(BRed(BRedAdd(t.value, qi), BRedAdd(rt.gamma.value, qi), qi), qi)
			rt.tModQ[i] = NewMulOperand(t.value, qi)
		}

		rt.negInvQModTGamma = make([]MulOperand, 2)
		for i, m := range rt.baseTGamma.moduli {
			inv, ok := ModInverse(modBig(q.prod, m), m.value)
			if !ok {
				return nil, fmt.Errorf("%w: invalid rns bases", ErrLogic)
			}
			rt.negInvQModTGamma[i] = NewMulOperand(NegMod(inv, m.value), m)
		}

		rt.coeffModulusModT = modBig(q.prod, t)
	}

	qLast := q.moduli[baseQSize-1]

	rt.invQLastModQ = make([]MulOperand, baseQSize-1)
	rt.qLastModQ = make([]uint64, baseQSize-1)
	for i, qi := range q.moduli[:baseQSize-1] {
		if rt.invQLastModQ[i], err = invert(qLast.value%qi.value, qi); err != nil {
			return nil, err
		}
		rt.qLastModQ[i] = BRedAdd(qLast.value, qi)
	}

	if !t.IsZero() {
		rt.qLastModT = BRedAdd(qLast.value, t)
		inv, ok := ModInverse(rt.qLastModT, t.value)
		if ok {
			rt.invQLastModT = inv
		}
	}

	return
}

// BaseQ returns the coefficient base q.
func (rt *RNSTool) BaseQ() *RNSBase {
	return rt.baseQ
}

// BaseB returns the auxiliary base B.
func (rt *RNSTool) BaseB() *RNSBase {
	return rt.baseB
}

// BaseBsk returns the auxiliary base B U {m_sk}.
func (rt *RNSTool) BaseBsk() *RNSBase {
	return rt.baseBsk
}

// BaseBskMTilde returns the auxiliary base B U {m_sk, m~}.
func (rt *RNSTool) BaseBskMTilde() *RNSBase {
	return rt.baseBskMTilde
}

// BaseTGamma returns the base {t, gamma}, or nil if there is no plaintext modulus.
func (rt *RNSTool) BaseTGamma() *RNSBase {
	return rt.baseTGamma
}

// BaseBskNTTTables returns the NTT tables of the base Bsk.
func (rt *RNSTool) BaseBskNTTTables() []*NTTTable {
	return rt.baseBskNTTTables
}

// MSk returns the extra modulus m_sk of the Shenoy-Kumaresan conversion.
func (rt *RNSTool) MSk() Modulus {
	return rt.mSk
}

// MTilde returns the Montgomery modulus m~ = 2^32.
func (rt *RNSTool) MTilde() Modulus {
	return rt.mTilde
}

// Gamma returns the auxiliary modulus gamma of the BFV decryption.
func (rt *RNSTool) Gamma() Modulus {
	return rt.gamma
}

// PlainModulus returns the plaintext modulus t.
func (rt *RNSTool) PlainModulus() Modulus {
	return rt.t
}

// InvQLastModQ returns q_last^-1 mod q_i for i < len(q)-1.
func (rt *RNSTool) InvQLastModQ(i int) uint64 {
	return rt.invQLastModQ[i].Operand
}

// InvQLastModT returns q_last^-1 mod t, or 0 if it does not exist.
func (rt *RNSTool) InvQLastModT() uint64 {
	return rt.invQLastModT
}

// DivideAndRoundQLastInplace divides the polynomial p in base q and in
// coefficient form by the last prime of q, rounding to the nearest integer.
// The result is written on the first len(q)-1 limbs of p.
func (rt *RNSTool) DivideAndRoundQLastInplace(p [][]uint64) {

	level := rt.baseQ.Size() - 1
	last := p[level]
	qLast := rt.baseQ.moduli[level]

	// add (q_last - 1)/2 to change from flooring to rounding
	half := qLast.value >> 1
	for j := range last {
		last[j] = BRedAdd(last[j]+half, qLast)
	}

	temp := make([]uint64, rt.N)
	for i, qi := range rt.baseQ.moduli[:level] {
		halfMod := BRedAdd(half, qi)
		for j := range temp {
			temp[j] = SubMod(BRedAdd(last[j], qi), halfMod, qi.value)
		}
		pi := p[i]
		op := rt.invQLastModQ[i]
		for j := range pi {
			pi[j] = MulShoup(SubMod(pi[j], temp[j], qi.value), op, qi.value)
		}
	}
}

// DivideAndRoundQLastNTTInplace is identical to [RNSTool.DivideAndRoundQLastInplace]
// for p in NTT form, ntt being the NTT tables of q.
func (rt *RNSTool) DivideAndRoundQLastNTTInplace(p [][]uint64, ntt []*NTTTable) {

	level := rt.baseQ.Size() - 1
	last := p[level]
	qLast := rt.baseQ.moduli[level]

	ntt[level].Backward(last)

	half := qLast.value >> 1
	for j := range last {
		last[j] = BRedAdd(last[j]+half, qLast)
	}

	temp := make([]uint64, rt.N)
	for i, qi := range rt.baseQ.moduli[:level] {

		// (ct mod q_last) mod qi - half, lazily in [0, 2qi)
		negHalfMod := qi.value - BRedAdd(half, qi)
		for j := range temp {
			temp[j] = BRedAdd(last[j], qi) + negHalfMod
		}

		// [0, 4qi)
		ntt[i].ForwardLazy(temp)

		qiLazy := qi.value << 2
		pi := p[i]
		op := rt.invQLastModQ[i]
		for j := range pi {
			pi[j] = MulShoup(pi[j]+qiLazy-temp[j], op, qi.value)
		}
	}
}

// ModTAndDivideQLastNTTInplace divides the polynomial p in base q and in NTT
// form by the last prime q_last of q after subtracting the unique small
// correction delta = p mod q_last with delta = 0 mod t. The plaintext
// encoded in p is thus multiplied by q_last^-1 mod t.
// The result is written on the first len(q)-1 limbs of p.
func (rt *RNSTool) ModTAndDivideQLastNTTInplace(p [][]uint64, ntt []*NTTTable) {

	level := rt.baseQ.Size() - 1
	last := p[level]
	qLast := rt.baseQ.moduli[level]
	t := rt.t

	ntt[level].Backward(last)

	// k = -c_last * q_last^-1 mod t, both centered, so that c_last + q_last * k = 0 mod t
	k := make([]int64, rt.N)
	cLast := make([]int64, rt.N)
	for j := range last {
		c := centered(last[j], qLast.value)
		cLast[j] = c
		ct := reduceSigned(-c, t)
		k[j] = centered(BRed(ct, rt.invQLastModT, t), t.value)
	}

	temp := make([]uint64, rt.N)
	for i, qi := range rt.baseQ.moduli[:level] {

		qLastModQi := rt.qLastModQ[i]
		for j := range temp {
			delta := AddMod(reduceSigned(cLast[j], qi), BRed(reduceSigned(k[j], qi), qLastModQi, qi), qi.value)
			temp[j] = delta
		}

		ntt[i].Forward(temp)

		pi := p[i]
		op := rt.invQLastModQ[i]
		for j := range pi {
			pi[j] = MulShoup(SubMod(pi[j], temp[j], qi.value), op, qi.value)
		}
	}
}

// centered returns x mod q in (-q/2, q/2].
func centered(x, q uint64) int64 {
	if x > q>>1 {
		return -int64(q - x)
	}
	return int64(x)
}

// reduceSigned returns x mod q in [0, q-1].
func reduceSigned(x int64, q Modulus) uint64 {
	if x < 0 {
		return NegMod(BRedAdd(uint64(-x), q), q.value)
	}
	return BRedAdd(uint64(x), q)
}

// FastBConvMTilde converts the input in base q to base Bsk U {m~}, after
// multiplication by m~. in has len(q) limbs and out has len(Bsk)+1 limbs.
func (rt *RNSTool) FastBConvMTilde(in, out [][]uint64) {

	temp := make([][]uint64, rt.baseQ.Size())
	for i, qi := range rt.baseQ.moduli {
		temp[i] = make([]uint64, rt.N)
		op := rt.mTildeModQ[i]
		for j := range temp[i] {
			temp[i][j] = MulShoup(in[i][j], op, qi.value)
		}
	}

	bskSize := rt.baseBsk.Size()
	rt.baseQToBskConv.FastConvertArray(temp, out[:bskSize])
	rt.baseQToMTildeConv.FastConvertArray(temp, out[bskSize:bskSize+1])
}

// SmMrq removes the multiples of q from the input in base Bsk U {m~} with a
// Montgomery reduction by m~, and writes the result in base Bsk on out.
func (rt *RNSTool) SmMrq(in, out [][]uint64) {

	bskSize := rt.baseBsk.Size()
	inMTilde := in[bskSize]
	mTilde := rt.mTilde.value
	mTildeDiv2 := mTilde >> 1

	rMTilde := make([]uint64, rt.N)
	for j := range rMTilde {
		rMTilde[j] = NegMod(MulShoup(inMTilde[j], rt.invProdQModMTilde, mTilde), mTilde)
	}

	for k, bk := range rt.baseBsk.moduli {
		invMTilde := rt.invMTildeModBsk[k]
		prodQ := rt.prodQModBsk[k]
		for j := range out[k] {
			// centered reduction of r_m~ mod Bsk; m~ is a power of two
			temp := rMTilde[j]
			if temp >= mTildeDiv2 {
				temp += bk.value - mTilde
			}
			out[k][j] = MulShoup(MulAddMod(prodQ, temp, in[k][j], bk), invMTilde, bk.value)
		}
	}
}

// FastFloor computes floor(x / q) in base Bsk for x given in base q U Bsk.
// in has len(q)+len(Bsk) limbs and out has len(Bsk) limbs.
func (rt *RNSTool) FastFloor(in, out [][]uint64) {

	qSize := rt.baseQ.Size()

	rt.baseQToBskConv.FastConvertArray(in[:qSize], out)

	for i, bi := range rt.baseBsk.moduli {
		op := rt.invProdQModBsk[i]
		inBsk := in[qSize+i]
		for j := range out[i] {
			// the negation does not need to be reduced
			out[i][j] = MulShoup(inBsk[j]+(bi.value-out[i][j]), op, bi.value)
		}
	}
}

// FastBConvSk converts the input in base Bsk to base q with the
// Shenoy-Kumaresan method. in has len(Bsk) limbs and out has len(q) limbs.
func (rt *RNSTool) FastBConvSk(in, out [][]uint64) {

	bSize := rt.baseB.Size()

	rt.baseBToQConv.FastConvertArray(in[:bSize], out)

	temp := make([]uint64, rt.N)
	rt.baseBToMSkConv.FastConvertArray(in[:bSize], [][]uint64{temp})

	mSk := rt.mSk.value
	inSk := in[bSize]
	alphaSk := make([]uint64, rt.N)
	for j := range alphaSk {
		alphaSk[j] = MulShoup(temp[j]+(mSk-inSk[j]), rt.invProdBModMSk, mSk)
	}

	mSkDiv2 := mSk >> 1
	for i, qi := range rt.baseQ.moduli {
		prodBModQi := rt.prodBModQ[i]
		for j := range out[i] {
			if alphaSk[j] > mSkDiv2 {
				// alpha_sk represents a negative value
				out[i][j] = MulAddMod(prodBModQi, mSk-alphaSk[j], out[i][j], qi)
			} else {
				out[i][j] = MulAddMod(qi.value-prodBModQi, alphaSk[j], out[i][j], qi)
			}
		}
	}
}

// DecryptScaleAndRound computes round(t/q * x) mod t for x given in base q
// and coefficient form, writing the N coefficients on out.
func (rt *RNSTool) DecryptScaleAndRound(in [][]uint64, out []uint64) {

	qSize := rt.baseQ.Size()

	// |gamma * t|_qi * ct(s)
	temp := make([][]uint64, qSize)
	for i, qi := range rt.baseQ.moduli {
		temp[i] = make([]uint64, rt.N)
		op := rt.prodTGammaModQ[i]
		for j := range temp[i] {
			temp[i][j] = MulShoup(in[i][j], op, qi.value)
		}
	}

	tGamma := [][]uint64{make([]uint64, rt.N), make([]uint64, rt.N)}
	rt.baseQToTGammaConv.FastConvertArray(temp, tGamma)

	// -prod(q)^-1 mod {t, gamma}
	for i, m := range rt.baseTGamma.moduli {
		op := rt.negInvQModTGamma[i]
		for j := range tGamma[i] {
			tGamma[i][j] = MulShoup(tGamma[i][j], op, m.value)
		}
	}

	t := rt.t.value
	gamma := rt.gamma.value
	gammaDiv2 := gamma >> 1

	for j := range out[:rt.N] {

		// centered correction of the gamma component
		if tGamma[1][j] > gammaDiv2 {
			out[j] = AddMod(tGamma[0][j], (gamma-tGamma[1][j])%t, t)
		} else {
			out[j] = SubMod(tGamma[0][j], tGamma[1][j]%t, t)
		}

		if out[j] != 0 {
			out[j] = MulShoup(out[j], rt.invGammaModT, t)
		}
	}
}

// DecryptModT reduces the input in base q and coefficient form modulo t,
// interpreting its coefficients in the centered range of q.
func (rt *RNSTool) DecryptModT(in [][]uint64, out []uint64) {
	rt.baseQToTConv.ExactConvertArray(in, out)
}

// MulByTModQ multiplies the polynomial p in base q by t.
func (rt *RNSTool) MulByTModQ(p [][]uint64) {
	for i, qi := range rt.baseQ.moduli {
		op := rt.tModQ[i]
		for j := range p[i] {
			p[i][j] = MulShoup(p[i][j], op, qi.value)
		}
	}
}
