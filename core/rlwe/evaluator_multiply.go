package rlwe

import (
	"fmt"
	"math/bits"

	"github.com/levelhe/levelhe/ring"
)

// Multiply writes ct0 * ct1 on out. The size of out is the sum of the sizes
// minus one. For CKKS, the scale of out is the product of the scales. For
// BGV, the correction factor of out is the product of the correction factors.
func (eval Evaluator) Multiply(ct0, ct1, out *Ciphertext) (err error) {

	var cd *ContextData
	if cd, err = eval.checkMulOperands(ct0, ct1); err != nil {
		return
	}

	if out == nil {
		return fmt.Errorf("%w: destination is nil", ErrInvalidArgument)
	}

	switch cd.parms.scheme {
	case SchemeBFV:
		return eval.multiplyBFV(cd, ct0, ct1, out)
	default:
		return eval.multiplyNTT(cd, ct0, ct1, out)
	}
}

// MultiplyNew returns ct0 * ct1 on a new ciphertext.
func (eval Evaluator) MultiplyNew(ct0, ct1 *Ciphertext) (out *Ciphertext, err error) {
	out = new(Ciphertext)
	return out, eval.Multiply(ct0, ct1, out)
}

// Square writes ct * ct on out.
func (eval Evaluator) Square(ct, out *Ciphertext) error {
	return eval.Multiply(ct, ct, out)
}

// SquareNew returns ct * ct on a new ciphertext.
func (eval Evaluator) SquareNew(ct *Ciphertext) (out *Ciphertext, err error) {
	out = new(Ciphertext)
	return out, eval.Square(ct, out)
}

func (eval Evaluator) checkMulOperands(ct0, ct1 *Ciphertext) (cd *ContextData, err error) {

	if cd, err = eval.checkCiphertext(ct0, "ct0"); err != nil {
		return
	}

	if _, err = eval.checkCiphertext(ct1, "ct1"); err != nil {
		return
	}

	if ct0.parmsID != ct1.parmsID {
		return nil, fmt.Errorf("%w: ct0 and ct1 parameter mismatch", ErrInvalidArgument)
	}

	if ct0.IsNTTForm != ct1.IsNTTForm {
		return nil, fmt.Errorf("%w: NTT form mismatch", ErrInvalidArgument)
	}

	if size := ct0.Size() + ct1.Size() - 1; size > CiphertextSizeMax {
		return nil, fmt.Errorf("%w: result ciphertext size %d exceeds %d", ErrInvalidArgument, size, CiphertextSizeMax)
	}

	switch cd.parms.scheme {
	case SchemeBFV:
		if ct0.IsNTTForm {
			return nil, fmt.Errorf("%w: BFV ciphertexts cannot be in NTT form", ErrInvalidArgument)
		}
	case SchemeCKKS, SchemeBGV:
		if !ct0.IsNTTForm {
			return nil, fmt.Errorf("%w: ciphertexts must be in NTT form", ErrInvalidArgument)
		}
	}

	if cd.parms.scheme == SchemeCKKS && !isScaleWithinBounds(ct0.Scale*ct1.Scale, cd) {
		return nil, fmt.Errorf("%w: scale out of bounds", ErrInvalidArgument)
	}

	return
}

// copyMetadata copies the metadata of other on ct and drops its seed.
func (ct *Ciphertext) copyMetadata(other *Ciphertext) {
	ct.parmsID = other.parmsID
	ct.IsNTTForm = other.IsNTTForm
	ct.Scale = other.Scale
	ct.CorrectionFactor = other.CorrectionFactor
	ct.seed = nil
}

// dyadicProduct writes on res the coefficient-wise convolution of the
// ciphertexts a and b, whose polynomials are in NTT form for r:
// res[k] = sum_{i+j=k} a[i] * b[j].
func dyadicProduct(r *ring.Ring, a, b, res []ring.Poly) {

	for k := range res {
		res[k].Zero()
	}

	for i := range a {
		for j := range b {
			r.MulCoeffsThenAdd(a[i], b[j], res[i+j])
		}
	}
}

// multiplyNTT is the multiplication of CKKS and BGV ciphertexts in NTT form.
func (eval Evaluator) multiplyNTT(cd *ContextData, ct0, ct1, out *Ciphertext) (err error) {

	res, err := eval.getPolys(ct0.Size()+ct1.Size()-1, cd.N(), cd.ringQ.Level())
	if err != nil {
		return
	}
	defer eval.recyclePolys(res)

	dyadicProduct(cd.ringQ, ct0.Value, ct1.Value, res)

	scale := ct0.Scale * ct1.Scale
	factor := ct0.CorrectionFactor
	if cd.parms.scheme == SchemeBGV {
		factor = ring.BRed(ct0.CorrectionFactor, ct1.CorrectionFactor, cd.parms.plainModulus)
	}

	out.copyMetadata(ct0)
	out.setValue(cd, res)
	out.Scale = scale
	out.CorrectionFactor = factor

	return
}

// multiplyBFV is the multiplication of BFV ciphertexts in coefficient form,
// which computes round(t/q * ct0 * ct1) with the full-RNS algorithm of
// Bajard, Eynard, Hasan and Zucca: the operands are extended to the
// auxiliary base Bsk, their product is computed in q and Bsk, scaled by t,
// divided by q in Bsk and converted back to q.
func (eval Evaluator) multiplyBFV(cd *ContextData, ct0, ct1, out *Ciphertext) (err error) {

	rQ := cd.ringQ
	rBsk := eval.ringBsk[cd.ParmsID()]
	rt := cd.rnsTool
	N := cd.N()
	t := cd.parms.plainModulus.Value()

	qSize := len(rQ.SubRings)
	bskSize := len(rBsk.SubRings)
	size := ct0.Size() + ct1.Size() - 1

	var scratch []ring.Poly
	defer func() {
		eval.recyclePolys(scratch)
	}()

	get := func(count, level int) (polys []ring.Poly, err error) {
		if polys, err = eval.getPolys(count, N, level); err == nil {
			scratch = append(scratch, polys...)
		}
		return
	}

	// Bsk U {m~}
	bskMTilde, err := get(1, bskSize)
	if err != nil {
		return
	}

	extend := func(ct *Ciphertext) (inQ, inBsk []ring.Poly, err error) {

		if inQ, err = get(ct.Size(), rQ.Level()); err != nil {
			return
		}

		if inBsk, err = get(ct.Size(), bskSize-1); err != nil {
			return
		}

		for i, c := range ct.Value {

			rQ.NTT(c, inQ[i])

			// c * m~ in Bsk U {m~}, then Montgomery reduction of the multiples of q
			rt.FastBConvMTilde(c.Coeffs, bskMTilde[0].Coeffs)
			rt.SmMrq(bskMTilde[0].Coeffs, inBsk[i].Coeffs)

			rBsk.NTT(inBsk[i], inBsk[i])
		}

		return
	}

	ct0Q, ct0Bsk, err := extend(ct0)
	if err != nil {
		return
	}

	ct1Q, ct1Bsk := ct0Q, ct0Bsk
	if ct1 != ct0 {
		if ct1Q, ct1Bsk, err = extend(ct1); err != nil {
			return
		}
	}

	resQ, err := get(size, rQ.Level())
	if err != nil {
		return
	}

	resBsk, err := get(size, bskSize-1)
	if err != nil {
		return
	}

	floor, err := get(1, bskSize-1)
	if err != nil {
		return
	}

	dyadicProduct(rQ, ct0Q, ct1Q, resQ)
	dyadicProduct(rBsk, ct0Bsk, ct1Bsk, resBsk)

	// the operands are not read past this point
	out.copyMetadata(ct0)
	out.setLevel(cd, size)

	qBsk := make([][]uint64, qSize+bskSize)

	for i := 0; i < size; i++ {

		rQ.INTT(resQ[i], resQ[i])
		rBsk.INTT(resBsk[i], resBsk[i])

		rQ.MulScalar(resQ[i], t, resQ[i])
		rBsk.MulScalar(resBsk[i], t, resBsk[i])

		copy(qBsk, resQ[i].Coeffs)
		copy(qBsk[qSize:], resBsk[i].Coeffs)

		// floor(t * x / q) in Bsk, then back to q
		rt.FastFloor(qBsk, floor[0].Coeffs)
		rt.FastBConvSk(floor[0].Coeffs, out.Value[i].Coeffs)
	}

	return
}

// Relinearize reduces ct to a ciphertext of size 2 with the relinearization
// keys rlk, and writes the result on out. rlk must hold the keys of the
// powers s^2, ..., s^{size-1} of the secret.
func (eval Evaluator) Relinearize(ct *Ciphertext, rlk *RelinKeys, out *Ciphertext) (err error) {
	return eval.relinearize(ct, rlk, out, 2)
}

// RelinearizeNew returns the relinearization of ct on a new ciphertext.
func (eval Evaluator) RelinearizeNew(ct *Ciphertext, rlk *RelinKeys) (out *Ciphertext, err error) {
	out = new(Ciphertext)
	return out, eval.Relinearize(ct, rlk, out)
}

func (eval Evaluator) relinearize(ct *Ciphertext, rlk *RelinKeys, out *Ciphertext, destSize int) (err error) {

	if _, err = eval.checkCiphertext(ct, "ct"); err != nil {
		return
	}

	if !eval.ctx.UsingKeyswitching() {
		return fmt.Errorf("%w: keyswitching is not supported by the context", ErrLogic)
	}

	if rlk == nil || rlk.parmsID != eval.ctx.KeyParmsID() {
		return fmt.Errorf("%w: relinearization keys are not valid for encryption parameters", ErrInvalidArgument)
	}

	if out == nil {
		return fmt.Errorf("%w: destination is nil", ErrInvalidArgument)
	}

	size := ct.Size()
	if size < destSize {
		return fmt.Errorf("%w: ciphertext size is smaller than the destination size", ErrInvalidArgument)
	}

	if size == destSize {
		copyTo(ct, out)
		return
	}

	// every key is checked before out is touched
	keys := make([][]PublicKey, size)
	for power := size - 1; power >= destSize; power-- {
		if keys[power], err = rlk.Key(power); err != nil {
			return fmt.Errorf("%w: not enough relinearization keys", ErrInvalidArgument)
		}
		if err = eval.checkKeySwitchingKey(ct, keys[power]); err != nil {
			return
		}
	}

	copyTo(ct, out)

	for ; size > destSize; size-- {

		if err = eval.switchKeyInplace(out, out.Value[size-1], keys[size-1]); err != nil {
			return
		}

		out.Value = out.Value[:size-1]
	}

	return
}

// MultiplyMany writes the product of the ciphertexts cts on out, relinearizing
// after each multiplication. The multiplications are arranged in a balanced
// tree to minimize the multiplicative depth. Only BFV and BGV are supported.
func (eval Evaluator) MultiplyMany(cts []*Ciphertext, rlk *RelinKeys, out *Ciphertext) (err error) {

	if len(cts) == 0 {
		return fmt.Errorf("%w: cts cannot be empty", ErrInvalidArgument)
	}

	if out == nil {
		return fmt.Errorf("%w: destination is nil", ErrInvalidArgument)
	}

	if scheme := eval.scheme(); scheme != SchemeBFV && scheme != SchemeBGV {
		return fmt.Errorf("%w: unsupported scheme %s", ErrLogic, scheme)
	}

	parmsID := cts[0].parmsID
	for i, ct := range cts {
		if ct == out {
			return fmt.Errorf("%w: cts must be different from destination", ErrInvalidArgument)
		}
		if _, err = eval.checkCiphertext(ct, fmt.Sprintf("cts[%d]", i)); err != nil {
			return
		}
		if ct.parmsID != parmsID {
			return fmt.Errorf("%w: cts parameter mismatch", ErrInvalidArgument)
		}
	}

	if len(cts) == 1 {
		out.Copy(cts[0])
		return
	}

	// the queue grows with the products of its successive pairs
	queue := make([]*Ciphertext, len(cts), 2*len(cts)-1)
	copy(queue, cts)

	for i := 0; i+1 < len(queue); i += 2 {

		prod := new(Ciphertext)
		if queue[i] == queue[i+1] {
			err = eval.Square(queue[i], prod)
		} else {
			err = eval.Multiply(queue[i], queue[i+1], prod)
		}
		if err != nil {
			return
		}

		if err = eval.Relinearize(prod, rlk, prod); err != nil {
			return
		}

		queue = append(queue, prod)
	}

	out.Copy(queue[len(queue)-1])

	return
}

// Exponentiate writes ct^exponent on out, relinearizing after each
// multiplication. Only BFV and BGV are supported.
func (eval Evaluator) Exponentiate(ct *Ciphertext, exponent uint64, rlk *RelinKeys, out *Ciphertext) (err error) {

	if scheme := eval.scheme(); scheme != SchemeBFV && scheme != SchemeBGV {
		return fmt.Errorf("%w: unsupported scheme %s", ErrLogic, scheme)
	}

	if _, err = eval.checkCiphertext(ct, "ct"); err != nil {
		return
	}

	if exponent == 0 {
		return fmt.Errorf("%w: exponent cannot be 0", ErrInvalidArgument)
	}

	if out == nil {
		return fmt.Errorf("%w: destination is nil", ErrInvalidArgument)
	}

	if ct == out {
		ct = ct.CopyNew()
	}

	// ct^(2^i) for the bits i set in exponent, by repeated squaring
	powers := make([]*Ciphertext, 0, bits.OnesCount64(exponent))

	for pow, e := ct, exponent; ; e >>= 1 {

		if e&1 == 1 {
			powers = append(powers, pow)
		}

		if e == 1 {
			break
		}

		next := new(Ciphertext)
		if err = eval.Square(pow, next); err != nil {
			return
		}

		if err = eval.Relinearize(next, rlk, next); err != nil {
			return
		}

		pow = next
	}

	return eval.MultiplyMany(powers, rlk, out)
}

// ExponentiateNew returns ct^exponent on a new ciphertext.
func (eval Evaluator) ExponentiateNew(ct *Ciphertext, exponent uint64, rlk *RelinKeys) (out *Ciphertext, err error) {
	out = new(Ciphertext)
	return out, eval.Exponentiate(ct, exponent, rlk, out)
}
