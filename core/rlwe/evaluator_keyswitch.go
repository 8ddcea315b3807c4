package rlwe

import (
	"fmt"

	"github.com/levelhe/levelhe/ring"
)

// checkKeySwitchingKey checks that key is a key switching key usable at the level of ct.
func (eval Evaluator) checkKeySwitchingKey(ct *Ciphertext, key []PublicKey) error {

	if !eval.ctx.UsingKeyswitching() {
		return fmt.Errorf("%w: keyswitching is not supported by the context", ErrLogic)
	}

	if len(key) < ct.CoeffModulusSize() {
		return fmt.Errorf("%w: key switching key has too few components", ErrInvalidArgument)
	}

	keyID := eval.ctx.KeyParmsID()
	for i := range key {
		if key[i].parmsID != keyID || key[i].Size() != 2 || !key[i].IsNTTForm {
			return fmt.Errorf("%w: key switching key is not valid for encryption parameters", ErrInvalidArgument)
		}
	}

	return nil
}

// switchKeyInplace adds to (ct[0], ct[1]) the key switching of target, a
// polynomial at the level of ct in the representation of ct, with the key
// switching key key. The result decrypts under the secret key s to target*s'
// with s' the secret encrypted by key.
//
// target is decomposed in its RNS digits. Each digit is extended to the
// primes of the level plus the special prime P and multiplied by the
// matching component of key. The accumulated products are then divided by P.
func (eval Evaluator) switchKeyInplace(ct *Ciphertext, target ring.Poly, key []PublicKey) (err error) {

	if err = eval.checkKeySwitchingKey(ct, key); err != nil {
		return
	}

	cd := eval.ctx.GetContextData(ct.parmsID)
	keyCD := eval.ctx.KeyContextData()

	scheme := cd.parms.scheme
	N := cd.N()
	decompCount := ct.CoeffModulusSize()
	keyCount := len(keyCD.parms.coeffModulus)
	rQ := cd.ringQ
	rKey := keyCD.ringQ

	// digits, the two components of acc at each prime, temp and kModT
	buff, err := eval.pool.Get(N * (3*decompCount + 4))
	if err != nil {
		return
	}
	defer eval.pool.Put(buff)

	window := *buff
	next := func() (w []uint64) {
		w, window = window[:N], window[N:]
		return
	}

	// digits of target in coefficient form
	digits := make([][]uint64, decompCount)
	for i := range digits {
		digits[i] = next()
		if ct.IsNTTForm {
			rQ.SubRings[i].INTT(target.Coeffs[i], digits[i])
		} else {
			copy(digits[i], target.Coeffs[i])
		}
	}

	// acc[j][k] holds the k-th component of the inner product at the j-th
	// prime, the last one being the special prime, in NTT form.
	acc := make([][2][]uint64, decompCount+1)
	for j := range acc {
		acc[j] = [2][]uint64{next(), next()}
	}

	temp := next()
	kModT := next()

	for j := range acc {

		keyIndex := j
		if j == decompCount {
			keyIndex = keyCount - 1
		}

		s := rKey.SubRings[keyIndex]

		for i := 0; i < decompCount; i++ {

			if ct.IsNTTForm && i == j {
				copy(temp, target.Coeffs[i])
			} else {
				for c, x := range digits[i] {
					temp[c] = ring.BRedAdd(x, s.Modulus)
				}
				s.NTT(temp, temp)
			}

			for k := 0; k < 2; k++ {
				s.MulCoeffsThenAdd(temp, key[i].Value[k].Coeffs[keyIndex], acc[j][k])
			}
		}
	}

	special := rKey.SubRings[keyCount-1]
	p := special.Modulus.Value()
	half := p >> 1

	var t ring.Modulus
	var invPModT uint64
	if scheme == SchemeBGV {
		t = cd.parms.plainModulus
		invPModT = keyCD.rnsTool.InvQLastModT()
	}

	for k := 0; k < 2; k++ {

		last := acc[decompCount][k]
		special.INTT(last, last)

		if scheme == SchemeBGV {
			// k = -last * P^-1 mod t so that last + k*P = 0 mod t
			for c, x := range last {
				kModT[c] = ring.BRed(ring.NegMod(t.Reduce(x), t.Value()), invPModT, t)
			}
		} else {
			// rounding instead of flooring
			for c := range last {
				last[c] = ring.BRedAdd(last[c]+half, special.Modulus)
			}
		}

		for j := 0; j < decompCount; j++ {

			s := rQ.SubRings[j]
			qj := s.Modulus
			accj := acc[j][k]

			switch scheme {
			case SchemeBGV:
				pModQj := ring.BRedAdd(p, qj)
				for c, x := range last {
					temp[c] = ring.MulAddMod(ring.BRedAdd(kModT[c], qj), pModQj, ring.BRedAdd(x, qj), qj)
				}
			default:
				halfModQj := ring.BRedAdd(half, qj)
				for c, x := range last {
					temp[c] = ring.SubMod(ring.BRedAdd(x, qj), halfModQj, qj.Value())
				}
			}

			if ct.IsNTTForm {
				s.NTT(temp, temp)
			} else {
				s.INTT(accj, accj)
			}

			invP := ring.NewMulOperand(keyCD.rnsTool.InvQLastModQ(j), qj)
			out := ct.Value[k].Coeffs[j]
			for c := range accj {
				out[c] = ring.AddMod(out[c], ring.MulShoup(ring.SubMod(accj[c], temp[c], qj.Value()), invP, qj.Value()), qj.Value())
			}
		}
	}

	return
}

// SwitchKey re-encrypts ct, a ciphertext of size 2 under the secret s', to a
// ciphertext under s, given the key switching key ksk from s' to s created
// by [KeyGenerator.CreateKeySwitchingKey]. The result is written on out.
func (eval Evaluator) SwitchKey(ct *Ciphertext, ksk *KSwitchKeys, out *Ciphertext) (err error) {

	var cd *ContextData
	if cd, err = eval.checkCiphertext(ct, "ct"); err != nil {
		return
	}

	if ct.Size() != 2 {
		return fmt.Errorf("%w: ciphertext size must be 2", ErrInvalidArgument)
	}

	if ksk == nil || ksk.parmsID != eval.ctx.KeyParmsID() || !ksk.hasKeyAt(0) {
		return fmt.Errorf("%w: key switching key is not valid for encryption parameters", ErrInvalidArgument)
	}

	if out == nil {
		return fmt.Errorf("%w: destination is nil", ErrInvalidArgument)
	}

	target, err := eval.pool.GetPoly(cd.N(), cd.ringQ.Level())
	if err != nil {
		return
	}
	defer eval.pool.RecyclePoly(target)

	copyTo(ct, out)

	target.Copy(out.Value[1])
	out.Value[1].Zero()

	return eval.switchKeyInplace(out, target, ksk.Keys[0])
}

// SwitchKeyNew returns the key switching of ct on a new ciphertext.
func (eval Evaluator) SwitchKeyNew(ct *Ciphertext, ksk *KSwitchKeys) (out *Ciphertext, err error) {
	out = new(Ciphertext)
	return out, eval.SwitchKey(ct, ksk, out)
}
