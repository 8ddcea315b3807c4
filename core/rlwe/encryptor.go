package rlwe

import (
	"fmt"
	"math/bits"

	"github.com/levelhe/levelhe/ring"
	"github.com/levelhe/levelhe/utils/sampling"
)

// EncryptionKey is an interface for encryption keys. Valid encryption
// keys are the [SecretKey] and [PublicKey] types.
type EncryptionKey interface {
	isEncryptionKey()
}

func (sk *SecretKey) isEncryptionKey() {}

func (pk *PublicKey) isEncryptionKey() {}

// Encryptor encrypts plaintexts with a public key, asymmetric encryption,
// or with a secret key, symmetric encryption. Both keys can be set, the
// method called selecting which one is used.
// An Encryptor is safe for concurrent use as long as its keys are not changed.
type Encryptor struct {
	ctx *Context
	pk  *PublicKey
	sk  *SecretKey

	noise    ring.DistributionParameters
	prngType sampling.PRNGType
	pool     *ring.MemoryPool
}

// NewEncryptor creates an [Encryptor] with the given key, which can be a
// *[PublicKey], a *[SecretKey] or nil.
func NewEncryptor(ctx *Context, key EncryptionKey) (enc *Encryptor, err error) {

	if err = ctx.checkParametersSet(); err != nil {
		return nil, fmt.Errorf("cannot NewEncryptor: %w", err)
	}

	enc = &Encryptor{
		ctx:      ctx,
		noise:    ring.DefaultNoiseDistribution,
		prngType: sampling.DefaultPRNGType,
		pool:     ring.DefaultPool(),
	}

	switch key := key.(type) {
	case *PublicKey:
		err = enc.SetPublicKey(key)
	case *SecretKey:
		err = enc.SetSecretKey(key)
	case nil:
	default:
		err = fmt.Errorf("%w: key must be either *rlwe.PublicKey, *rlwe.SecretKey or nil but is %T", ErrInvalidArgument, key)
	}

	if err != nil {
		return nil, err
	}

	return
}

// SetPublicKey sets the key used by the asymmetric encryption.
func (enc *Encryptor) SetPublicKey(pk *PublicKey) error {
	if pk == nil || !pk.IsValidFor(enc.ctx) {
		return fmt.Errorf("%w: public key is not valid for encryption parameters", ErrInvalidArgument)
	}
	enc.pk = pk.CopyNew()
	return nil
}

// SetSecretKey sets the key used by the symmetric encryption.
func (enc *Encryptor) SetSecretKey(sk *SecretKey) error {
	if sk == nil || !sk.IsValidFor(enc.ctx) {
		return fmt.Errorf("%w: secret key is not valid for encryption parameters", ErrInvalidArgument)
	}
	enc.sk = sk.CopyNew()
	return nil
}

// Zeroize erases the copy of the secret key held by the encryptor, which
// is shared with the copies made by the With methods. The symmetric
// encryption is no longer available afterward.
func (enc *Encryptor) Zeroize() {
	if enc.sk != nil {
		enc.sk.Zeroize()
		enc.sk = nil
	}
}

// WithPool returns a copy of the encryptor drawing its temporary buffers from pool.
func (enc Encryptor) WithPool(pool *ring.MemoryPool) *Encryptor {
	enc.pool = pool
	return &enc
}

// WithNoiseDistribution returns a copy of the encryptor sampling the errors from X.
func (enc Encryptor) WithNoiseDistribution(X ring.DistributionParameters) *Encryptor {
	enc.noise = X
	return &enc
}

// WithPRNGType returns a copy of the encryptor expanding the seeds of
// symmetric ciphertexts with the given PRNG type.
func (enc Encryptor) WithPRNGType(t sampling.PRNGType) *Encryptor {
	enc.prngType = t
	return &enc
}

// Encrypt encrypts pt with the public key and writes the result on ct.
// BFV and BGV ciphertexts are at the first data level; CKKS ciphertexts are
// at the level of pt and inherit its scale.
func (enc Encryptor) Encrypt(pt *Plaintext, ct *Ciphertext) error {
	return enc.encrypt(pt, true, false, ct)
}

// EncryptNew encrypts pt with the public key and returns the result on a new ciphertext.
func (enc Encryptor) EncryptNew(pt *Plaintext) (ct *Ciphertext, err error) {
	ct = new(Ciphertext)
	return ct, enc.Encrypt(pt, ct)
}

// EncryptSymmetric encrypts pt with the secret key and writes the result on ct.
func (enc Encryptor) EncryptSymmetric(pt *Plaintext, ct *Ciphertext) error {
	return enc.encrypt(pt, false, false, ct)
}

// EncryptSymmetricNew encrypts pt with the secret key and returns the result on a new ciphertext.
func (enc Encryptor) EncryptSymmetricNew(pt *Plaintext) (ct *Ciphertext, err error) {
	ct = new(Ciphertext)
	return ct, enc.EncryptSymmetric(pt, ct)
}

// EncryptSymmetricSerializable encrypts pt with the secret key, the second
// polynomial of the result being stored as a seed.
func (enc Encryptor) EncryptSymmetricSerializable(pt *Plaintext) (*Serializable[Ciphertext], error) {
	ct := new(Ciphertext)
	if err := enc.encrypt(pt, false, true, ct); err != nil {
		return nil, err
	}
	return newSerializable(*ct), nil
}

// EncryptZero writes on ct an encryption of zero at the first data level
// with the public key.
func (enc Encryptor) EncryptZero(ct *Ciphertext) error {
	return enc.encryptZero(enc.ctx.FirstParmsID(), true, false, ct)
}

// EncryptZeroAt writes on ct an encryption of zero at the level parmsID
// with the public key.
func (enc Encryptor) EncryptZeroAt(parmsID ParmsID, ct *Ciphertext) error {
	return enc.encryptZero(parmsID, true, false, ct)
}

// EncryptZeroSymmetric writes on ct an encryption of zero at the first data
// level with the secret key.
func (enc Encryptor) EncryptZeroSymmetric(ct *Ciphertext) error {
	return enc.encryptZero(enc.ctx.FirstParmsID(), false, false, ct)
}

// EncryptZeroSymmetricAt writes on ct an encryption of zero at the level
// parmsID with the secret key.
func (enc Encryptor) EncryptZeroSymmetricAt(parmsID ParmsID, ct *Ciphertext) error {
	return enc.encryptZero(parmsID, false, false, ct)
}

// EncryptZeroSymmetricSerializable returns an encryption of zero at the level
// parmsID with the secret key, the second polynomial being stored as a seed.
func (enc Encryptor) EncryptZeroSymmetricSerializable(parmsID ParmsID) (*Serializable[Ciphertext], error) {
	ct := new(Ciphertext)
	if err := enc.encryptZero(parmsID, false, true, ct); err != nil {
		return nil, err
	}
	return newSerializable(*ct), nil
}

func (enc Encryptor) checkKey(asymmetric bool) error {
	if asymmetric && enc.pk == nil {
		return fmt.Errorf("%w: public key is not set", ErrLogic)
	}
	if !asymmetric && enc.sk == nil {
		return fmt.Errorf("%w: secret key is not set", ErrLogic)
	}
	return nil
}

func (enc Encryptor) encryptZero(parmsID ParmsID, asymmetric, seeded bool, ct *Ciphertext) (err error) {

	if err = enc.checkKey(asymmetric); err != nil {
		return
	}

	cd := enc.ctx.GetContextData(parmsID)
	if cd == nil {
		return fmt.Errorf("%w: parmsID is not valid for encryption parameters", ErrInvalidArgument)
	}

	if ct == nil {
		return fmt.Errorf("%w: destination is nil", ErrInvalidArgument)
	}

	isNTTForm := cd.parms.scheme != SchemeBFV

	if !asymmetric {
		return encryptZeroSymmetric(cd, enc.sk, isNTTForm, seeded, enc.prngType, enc.noise, enc.pool, ct)
	}

	prev := cd.PrevContextData()
	if prev == nil {
		return encryptZeroAsymmetric(cd, enc.pk, isNTTForm, enc.noise, enc.pool, ct)
	}

	// Encrypting one level higher and switching down divides the fresh noise by the dropped prime.
	N := cd.N()
	tmp := Ciphertext{Value: make([]ring.Poly, 2)}
	for i := range tmp.Value {
		if tmp.Value[i], err = enc.pool.GetPoly(N, prev.level()); err != nil {
			return
		}
		defer enc.pool.RecyclePoly(tmp.Value[i])
	}

	if err = encryptZeroAsymmetric(prev, enc.pk, isNTTForm, enc.noise, enc.pool, &tmp); err != nil {
		return
	}

	divideByLastPrime(prev, &tmp)

	ct.setLevel(cd, 2)
	for i := range ct.Value {
		ct.Value[i].Copy(tmp.Value[i])
	}
	ct.IsNTTForm = isNTTForm
	ct.Scale = 1
	ct.CorrectionFactor = 1

	return
}

func (enc Encryptor) encrypt(pt *Plaintext, asymmetric, seeded bool, ct *Ciphertext) (err error) {

	if err = enc.checkKey(asymmetric); err != nil {
		return
	}

	if pt == nil || !pt.IsMetadataValidFor(enc.ctx, false) || !pt.IsBufferValid() {
		return fmt.Errorf("%w: plaintext is not valid for encryption parameters", ErrInvalidArgument)
	}

	switch enc.ctx.KeyContextData().parms.scheme {
	case SchemeBFV:

		if pt.IsNTTForm() {
			return fmt.Errorf("%w: plaintext cannot be in NTT form", ErrInvalidArgument)
		}

		if err = enc.encryptZero(enc.ctx.FirstParmsID(), asymmetric, seeded, ct); err != nil {
			return
		}

		cd := enc.ctx.FirstContextData()

		var m ring.Poly
		if m, err = enc.pool.GetPoly(cd.N(), cd.level()); err != nil {
			return
		}
		defer enc.pool.RecyclePoly(m)

		scalePlain(pt, cd, m)
		cd.ringQ.Add(ct.Value[0], m, ct.Value[0])

	case SchemeCKKS:

		if !pt.IsNTTForm() {
			return fmt.Errorf("%w: plaintext must be in NTT form", ErrInvalidArgument)
		}

		if err = enc.encryptZero(pt.parmsID, asymmetric, seeded, ct); err != nil {
			return
		}

		cd := enc.ctx.GetContextData(pt.parmsID)
		cd.ringQ.Add(ct.Value[0], pt.Poly(cd.N()), ct.Value[0])
		ct.Scale = pt.Scale

	case SchemeBGV:

		if pt.IsNTTForm() {
			return fmt.Errorf("%w: plaintext cannot be in NTT form", ErrInvalidArgument)
		}

		if err = enc.encryptZero(enc.ctx.FirstParmsID(), asymmetric, seeded, ct); err != nil {
			return
		}

		cd := enc.ctx.FirstContextData()

		var m ring.Poly
		if m, err = enc.pool.GetPoly(cd.N(), cd.level()); err != nil {
			return
		}
		defer enc.pool.RecyclePoly(m)

		liftPlain(pt, cd, m)
		cd.ringQ.NTT(m, m)
		cd.ringQ.Add(ct.Value[0], m, ct.Value[0])
	}

	return
}

// scalePlain writes on p, in coefficient form at the level cd, round(q*m/t)
// computed as floor(q/t)*m + floor(((q mod t)*m + (t+1)/2)/t).
func scalePlain(pt *Plaintext, cd *ContextData, p ring.Poly) {

	t := cd.parms.plainModulus.Value()
	qModT := cd.coeffModulusModPlainModulus
	delta := cd.coeffDivPlainModulus

	for i, m := range pt.coeffs {

		hi, lo := bits.Mul64(qModT, m)
		var carry uint64
		lo, carry = bits.Add64(lo, cd.plainUpperHalfThreshold, 0)
		fix, _ := bits.Div64(hi+carry, lo, t)

		for j, s := range cd.ringQ.SubRings {
			q := s.Modulus
			p.Coeffs[j][i] = ring.BRedAdd(ring.BRed(delta[j], q.Reduce(m), q)+q.Reduce(fix), q)
		}
	}

	for j := range cd.ringQ.SubRings {
		clear(p.Coeffs[j][len(pt.coeffs):])
	}
}

// liftPlain writes on p, in coefficient form at the level cd, the
// plaintext coefficients mod t lifted to their centered representative mod q.
func liftPlain(pt *Plaintext, cd *ContextData, p ring.Poly) {

	threshold := cd.plainUpperHalfThreshold
	increment := cd.plainUpperHalfIncrement

	for j, s := range cd.ringQ.SubRings {
		q := s.Modulus
		coeffs := p.Coeffs[j]
		for i, m := range pt.coeffs {
			if m >= threshold {
				coeffs[i] = ring.BRedAdd(m, q)
				coeffs[i] = ring.AddMod(coeffs[i], increment[j], q.Value())
			} else {
				coeffs[i] = ring.BRedAdd(m, q)
			}
		}
		clear(coeffs[len(pt.coeffs):])
	}
}
