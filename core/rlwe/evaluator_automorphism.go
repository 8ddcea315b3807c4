package rlwe

import (
	"fmt"

	"github.com/levelhe/levelhe/utils"
)

// ApplyGalois applies the automorphism X -> X^galEl to ct, a ciphertext of
// size 2, and switches the result back to the secret key with the Galois
// keys gk. The result is written on out.
func (eval Evaluator) ApplyGalois(ct *Ciphertext, galEl uint64, gk *GaloisKeys, out *Ciphertext) (err error) {

	var cd *ContextData
	if cd, err = eval.checkCiphertext(ct, "ct"); err != nil {
		return
	}

	if !eval.ctx.UsingKeyswitching() {
		return fmt.Errorf("%w: keyswitching is not supported by the context", ErrLogic)
	}

	if gk == nil || gk.parmsID != eval.ctx.KeyParmsID() {
		return fmt.Errorf("%w: galois keys are not valid for encryption parameters", ErrInvalidArgument)
	}

	if out == nil {
		return fmt.Errorf("%w: destination is nil", ErrInvalidArgument)
	}

	if ct.Size() != 2 {
		return fmt.Errorf("%w: ciphertext size must be 2", ErrInvalidArgument)
	}

	galois := cd.GaloisTool()
	if !galois.IsValidGaloisElt(galEl) {
		return fmt.Errorf("%w: galois element %d is not valid", ErrInvalidArgument, galEl)
	}

	key, err := gk.Key(galEl)
	if err != nil {
		return
	}

	if err = eval.checkKeySwitchingKey(ct, key); err != nil {
		return
	}

	rQ := cd.ringQ

	c, err := eval.getPolys(2, cd.N(), rQ.Level())
	if err != nil {
		return
	}
	defer eval.recyclePolys(c)

	c0, c1 := c[0], c[1]

	copyTo(ct, out)

	for i, s := range rQ.SubRings {
		if out.IsNTTForm {
			galois.ApplyGaloisNTT(out.Value[0].Coeffs[i], galEl, c0.Coeffs[i])
			galois.ApplyGaloisNTT(out.Value[1].Coeffs[i], galEl, c1.Coeffs[i])
		} else {
			galois.ApplyGalois(out.Value[0].Coeffs[i], galEl, s.Modulus, c0.Coeffs[i])
			galois.ApplyGalois(out.Value[1].Coeffs[i], galEl, s.Modulus, c1.Coeffs[i])
		}
	}

	// (c0', c1') decrypts under s(X^galEl); switch c1' to s
	out.Value[0].Copy(c0)
	out.Value[1].Zero()

	return eval.switchKeyInplace(out, c1, key)
}

// ApplyGaloisNew returns the automorphism X -> X^galEl of ct on a new ciphertext.
func (eval Evaluator) ApplyGaloisNew(ct *Ciphertext, galEl uint64, gk *GaloisKeys) (out *Ciphertext, err error) {
	out = new(Ciphertext)
	return out, eval.ApplyGalois(ct, galEl, gk, out)
}

// RotateRows cyclically rotates the two rows of the batched BFV or BGV
// ciphertext ct by steps slots to the left, to the right if steps is
// negative, and writes the result on out.
func (eval Evaluator) RotateRows(ct *Ciphertext, steps int, gk *GaloisKeys, out *Ciphertext) error {
	if scheme := eval.scheme(); scheme != SchemeBFV && scheme != SchemeBGV {
		return fmt.Errorf("%w: unsupported scheme %s", ErrLogic, scheme)
	}
	return eval.rotate(ct, steps, gk, out)
}

// RotateRowsNew returns the row rotation of ct on a new ciphertext.
func (eval Evaluator) RotateRowsNew(ct *Ciphertext, steps int, gk *GaloisKeys) (out *Ciphertext, err error) {
	out = new(Ciphertext)
	return out, eval.RotateRows(ct, steps, gk, out)
}

// RotateColumns swaps the two rows of the batched BFV or BGV ciphertext ct
// and writes the result on out.
func (eval Evaluator) RotateColumns(ct *Ciphertext, gk *GaloisKeys, out *Ciphertext) error {
	if scheme := eval.scheme(); scheme != SchemeBFV && scheme != SchemeBGV {
		return fmt.Errorf("%w: unsupported scheme %s", ErrLogic, scheme)
	}
	return eval.conjugate(ct, gk, out)
}

// RotateColumnsNew returns the column rotation of ct on a new ciphertext.
func (eval Evaluator) RotateColumnsNew(ct *Ciphertext, gk *GaloisKeys) (out *Ciphertext, err error) {
	out = new(Ciphertext)
	return out, eval.RotateColumns(ct, gk, out)
}

// RotateVector cyclically rotates the slots of the CKKS ciphertext ct by
// steps to the left, to the right if steps is negative, and writes the
// result on out.
func (eval Evaluator) RotateVector(ct *Ciphertext, steps int, gk *GaloisKeys, out *Ciphertext) error {
	if scheme := eval.scheme(); scheme != SchemeCKKS {
		return fmt.Errorf("%w: unsupported scheme %s", ErrLogic, scheme)
	}
	return eval.rotate(ct, steps, gk, out)
}

// RotateVectorNew returns the rotation of ct on a new ciphertext.
func (eval Evaluator) RotateVectorNew(ct *Ciphertext, steps int, gk *GaloisKeys) (out *Ciphertext, err error) {
	out = new(Ciphertext)
	return out, eval.RotateVector(ct, steps, gk, out)
}

// ComplexConjugate conjugates the slots of the CKKS ciphertext ct and writes
// the result on out.
func (eval Evaluator) ComplexConjugate(ct *Ciphertext, gk *GaloisKeys, out *Ciphertext) error {
	if scheme := eval.scheme(); scheme != SchemeCKKS {
		return fmt.Errorf("%w: unsupported scheme %s", ErrLogic, scheme)
	}
	return eval.conjugate(ct, gk, out)
}

// ComplexConjugateNew returns the conjugation of ct on a new ciphertext.
func (eval Evaluator) ComplexConjugateNew(ct *Ciphertext, gk *GaloisKeys) (out *Ciphertext, err error) {
	out = new(Ciphertext)
	return out, eval.ComplexConjugate(ct, gk, out)
}

func (eval Evaluator) checkBatching() error {
	if !eval.ctx.FirstContextData().qualifiers.UsingBatching {
		return fmt.Errorf("%w: encryption parameters do not support batching", ErrLogic)
	}
	return nil
}

func (eval Evaluator) conjugate(ct *Ciphertext, gk *GaloisKeys, out *Ciphertext) (err error) {

	if err = eval.checkBatching(); err != nil {
		return
	}

	galEl, _ := eval.ctx.galoisTool.GetEltFromStep(0)

	return eval.ApplyGalois(ct, galEl, gk, out)
}

// rotate applies the rotation by steps with the key of steps if it exists,
// or as a sequence of rotations by the signed powers of two of the
// non-adjacent form of steps otherwise.
func (eval Evaluator) rotate(ct *Ciphertext, steps int, gk *GaloisKeys, out *Ciphertext) (err error) {

	if err = eval.checkBatching(); err != nil {
		return
	}

	if gk == nil || gk.parmsID != eval.ctx.KeyParmsID() {
		return fmt.Errorf("%w: galois keys are not valid for encryption parameters", ErrInvalidArgument)
	}

	if steps == 0 {
		if _, err = eval.checkCiphertext(ct, "ct"); err != nil {
			return
		}
		if out == nil {
			return fmt.Errorf("%w: destination is nil", ErrInvalidArgument)
		}
		copyTo(ct, out)
		return
	}

	galois := eval.ctx.galoisTool

	galEl, err := galois.GetEltFromStep(steps)
	if err != nil {
		return
	}

	if gk.HasKey(galEl) {
		return eval.ApplyGalois(ct, galEl, gk, out)
	}

	terms := utils.NAF(steps)
	if len(terms) == 1 {
		return fmt.Errorf("%w: galois key for step %d does not exist", ErrInvalidArgument, steps)
	}

	rowSize := galois.N() >> 1

	// every key must be present before out is touched
	var galEls []uint64
	for _, term := range terms {
		if term == rowSize || term == -rowSize {
			continue
		}
		if galEl, err = galois.GetEltFromStep(term); err != nil {
			return
		}
		if !gk.HasKey(galEl) {
			return fmt.Errorf("%w: galois key for step %d does not exist", ErrInvalidArgument, term)
		}
		galEls = append(galEls, galEl)
	}

	copyTo(ct, out)
	for _, galEl := range galEls {
		if err = eval.ApplyGalois(out, galEl, gk, out); err != nil {
			return
		}
	}

	return
}
