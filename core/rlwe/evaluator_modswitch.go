package rlwe

import (
	"fmt"

	"github.com/levelhe/levelhe/ring"
)

// ModSwitchToNext switches ct to the next level of the modulus switching
// chain and writes the result on out.
//
// BFV and BGV ciphertexts are divided and rounded by the dropped prime, which
// preserves the plaintext and reduces the noise proportionally. A BGV
// ciphertext absorbs the division in its correction factor. CKKS ciphertexts
// are only truncated to the primes of the next level: use [Evaluator.RescaleToNext]
// to divide them and their scale by the dropped prime.
func (eval Evaluator) ModSwitchToNext(ct, out *Ciphertext) (err error) {

	var cd *ContextData
	if cd, err = eval.checkModSwitch(ct, out); err != nil {
		return
	}

	next := cd.NextContextData()

	switch cd.parms.scheme {
	case SchemeBFV:

		if ct.IsNTTForm {
			return fmt.Errorf("%w: BFV ciphertext cannot be in NTT form", ErrInvalidArgument)
		}

	case SchemeCKKS:

		if !ct.IsNTTForm {
			return fmt.Errorf("%w: CKKS ciphertext must be in NTT form", ErrInvalidArgument)
		}

		if !isScaleWithinBounds(ct.Scale, next) {
			return fmt.Errorf("%w: scale out of bounds", ErrInvalidArgument)
		}

		copyTo(ct, out)
		for i := range out.Value {
			out.Value[i].Resize(next.level())
		}
		out.parmsID = next.ParmsID()

		return

	case SchemeBGV:

		if !ct.IsNTTForm {
			return fmt.Errorf("%w: BGV ciphertext must be in NTT form", ErrInvalidArgument)
		}
	}

	copyTo(ct, out)

	if factor := divideByLastPrime(cd, out); cd.parms.scheme == SchemeBGV {
		out.CorrectionFactor = ring.BRed(out.CorrectionFactor, factor, cd.parms.plainModulus)
	}

	return
}

// ModSwitchToNextNew returns the switching of ct to the next level on a new ciphertext.
func (eval Evaluator) ModSwitchToNextNew(ct *Ciphertext) (out *Ciphertext, err error) {
	out = new(Ciphertext)
	return out, eval.ModSwitchToNext(ct, out)
}

// ModSwitchTo switches ct down the chain to the level parmsID and writes the result on out.
func (eval Evaluator) ModSwitchTo(ct *Ciphertext, parmsID ParmsID, out *Ciphertext) (err error) {
	return eval.walkTo(ct, parmsID, out, eval.ModSwitchToNext)
}

// ModSwitchToNew returns the switching of ct to the level parmsID on a new ciphertext.
func (eval Evaluator) ModSwitchToNew(ct *Ciphertext, parmsID ParmsID) (out *Ciphertext, err error) {
	out = new(Ciphertext)
	return out, eval.ModSwitchTo(ct, parmsID, out)
}

// RescaleToNext divides the CKKS ciphertext ct and its scale by the last
// prime of its level, and writes the result at the next level on out.
func (eval Evaluator) RescaleToNext(ct, out *Ciphertext) (err error) {

	if scheme := eval.scheme(); scheme != SchemeCKKS {
		return fmt.Errorf("%w: unsupported scheme %s", ErrLogic, scheme)
	}

	var cd *ContextData
	if cd, err = eval.checkModSwitch(ct, out); err != nil {
		return
	}

	if !ct.IsNTTForm {
		return fmt.Errorf("%w: CKKS ciphertext must be in NTT form", ErrInvalidArgument)
	}

	next := cd.NextContextData()
	scale := ct.Scale / float64(cd.parms.coeffModulus[cd.level()].Value())

	if !isScaleWithinBounds(scale, next) {
		return fmt.Errorf("%w: scale out of bounds", ErrInvalidArgument)
	}

	copyTo(ct, out)
	divideByLastPrime(cd, out)
	out.Scale = scale

	return
}

// RescaleToNextNew returns the rescaling of ct on a new ciphertext.
func (eval Evaluator) RescaleToNextNew(ct *Ciphertext) (out *Ciphertext, err error) {
	out = new(Ciphertext)
	return out, eval.RescaleToNext(ct, out)
}

// RescaleTo rescales ct down the chain to the level parmsID and writes the result on out.
func (eval Evaluator) RescaleTo(ct *Ciphertext, parmsID ParmsID, out *Ciphertext) (err error) {
	if scheme := eval.scheme(); scheme != SchemeCKKS {
		return fmt.Errorf("%w: unsupported scheme %s", ErrLogic, scheme)
	}
	return eval.walkTo(ct, parmsID, out, eval.RescaleToNext)
}

// RescaleToNew returns the rescaling of ct to the level parmsID on a new ciphertext.
func (eval Evaluator) RescaleToNew(ct *Ciphertext, parmsID ParmsID) (out *Ciphertext, err error) {
	out = new(Ciphertext)
	return out, eval.RescaleTo(ct, parmsID, out)
}

func (eval Evaluator) checkModSwitch(ct, out *Ciphertext) (cd *ContextData, err error) {

	if cd, err = eval.checkCiphertext(ct, "ct"); err != nil {
		return
	}

	if out == nil {
		return nil, fmt.Errorf("%w: destination is nil", ErrInvalidArgument)
	}

	if cd.NextContextData() == nil {
		return nil, fmt.Errorf("%w: end of modulus switching chain reached", ErrInvalidArgument)
	}

	return
}

// walkTo applies step to ct until it reaches the level parmsID.
func (eval Evaluator) walkTo(ct *Ciphertext, parmsID ParmsID, out *Ciphertext, step func(ct, out *Ciphertext) error) (err error) {

	var cd *ContextData
	if cd, err = eval.checkCiphertext(ct, "ct"); err != nil {
		return
	}

	target := eval.ctx.GetContextData(parmsID)
	if target == nil || target.ParmsID() == eval.ctx.KeyParmsID() {
		return fmt.Errorf("%w: parmsID is not valid for encryption parameters", ErrInvalidArgument)
	}

	if out == nil {
		return fmt.Errorf("%w: destination is nil", ErrInvalidArgument)
	}

	if cd.chainIndex < target.chainIndex {
		return fmt.Errorf("%w: cannot switch to higher level modulus", ErrInvalidArgument)
	}

	if cd.chainIndex == target.chainIndex {
		copyTo(ct, out)
		return
	}

	// the first step leaves ct untouched
	if err = step(ct, out); err != nil {
		return
	}

	for out.parmsID != parmsID {
		if err = step(out, out); err != nil {
			return
		}
	}

	return
}

// ModSwitchPlainToNext truncates pt, a plaintext in NTT form, to the primes
// of the next level of the chain, in place.
func (eval Evaluator) ModSwitchPlainToNext(pt *Plaintext) (err error) {

	if err = eval.checkPlaintext(pt); err != nil {
		return
	}

	if !pt.IsNTTForm() {
		return fmt.Errorf("%w: plaintext is not in NTT form", ErrInvalidArgument)
	}

	next := eval.ctx.GetContextData(pt.parmsID).NextContextData()
	if next == nil {
		return fmt.Errorf("%w: end of modulus switching chain reached", ErrInvalidArgument)
	}

	if eval.scheme() == SchemeCKKS && !isScaleWithinBounds(pt.Scale, next) {
		return fmt.Errorf("%w: scale out of bounds", ErrInvalidArgument)
	}

	pt.Resize(next.N() * len(next.parms.coeffModulus))
	pt.parmsID = next.ParmsID()

	return
}

// ModSwitchPlainTo truncates pt, a plaintext in NTT form, to the primes of
// the level parmsID, in place.
func (eval Evaluator) ModSwitchPlainTo(pt *Plaintext, parmsID ParmsID) (err error) {

	if err = eval.checkPlaintext(pt); err != nil {
		return
	}

	if !pt.IsNTTForm() {
		return fmt.Errorf("%w: plaintext is not in NTT form", ErrInvalidArgument)
	}

	cd := eval.ctx.GetContextData(pt.parmsID)
	target := eval.ctx.GetContextData(parmsID)
	if target == nil {
		return fmt.Errorf("%w: parmsID is not valid for encryption parameters", ErrInvalidArgument)
	}

	if cd.chainIndex < target.chainIndex {
		return fmt.Errorf("%w: cannot switch to higher level modulus", ErrInvalidArgument)
	}

	if eval.scheme() == SchemeCKKS && !isScaleWithinBounds(pt.Scale, target) {
		return fmt.Errorf("%w: scale out of bounds", ErrInvalidArgument)
	}

	pt.Resize(target.N() * len(target.parms.coeffModulus))
	pt.parmsID = parmsID

	return
}
