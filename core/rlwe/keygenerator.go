package rlwe

import (
	"fmt"

	"github.com/levelhe/levelhe/ring"
	"github.com/levelhe/levelhe/utils/sampling"
)

// KeyGenerator holds a secret key and generates from it the public key and
// the key switching keys: relinearization keys and Galois keys.
// A KeyGenerator is not safe for concurrent use; use [KeyGenerator.ShallowCopy]
// to obtain one per goroutine.
type KeyGenerator struct {
	ctx *Context
	sk  *SecretKey

	noise    ring.DistributionParameters
	prngType sampling.PRNGType
	pool     *ring.MemoryPool
}

// NewKeyGenerator creates a [KeyGenerator] with a freshly sampled ternary secret key.
func NewKeyGenerator(ctx *Context) (kgen *KeyGenerator, err error) {

	if err = ctx.checkParametersSet(); err != nil {
		return nil, fmt.Errorf("cannot NewKeyGenerator: %w", err)
	}

	kgen = newKeyGenerator(ctx)

	cd := ctx.KeyContextData()
	N := cd.N()

	sk := &SecretKey{Plaintext: *NewPlaintext(N * len(cd.parms.coeffModulus))}
	sk.parmsID = cd.ParmsID()

	p := sk.Poly(N)
	ring.NewTernarySampler(sampling.NewPRNG(), cd.ringQ).Read(p)
	cd.ringQ.NTT(p, p)

	kgen.sk = sk

	return
}

// NewKeyGeneratorWithSecretKey creates a [KeyGenerator] from an existing secret key.
func NewKeyGeneratorWithSecretKey(ctx *Context, sk *SecretKey) (kgen *KeyGenerator, err error) {

	if err = ctx.checkParametersSet(); err != nil {
		return nil, fmt.Errorf("cannot NewKeyGeneratorWithSecretKey: %w", err)
	}

	if sk == nil || !sk.IsValidFor(ctx) {
		return nil, fmt.Errorf("%w: secret key is not valid for encryption parameters", ErrInvalidArgument)
	}

	kgen = newKeyGenerator(ctx)
	kgen.sk = sk.CopyNew()

	return
}

func newKeyGenerator(ctx *Context) *KeyGenerator {
	return &KeyGenerator{
		ctx:      ctx,
		noise:    ring.DefaultNoiseDistribution,
		prngType: sampling.DefaultPRNGType,
		pool:     ring.DefaultPool(),
	}
}

// ShallowCopy returns a copy of the key generator sharing its secret key.
func (kgen KeyGenerator) ShallowCopy() *KeyGenerator {
	return &kgen
}

// Zeroize erases the secret key of the key generator, which is shared with
// its shallow copies. No key can be generated afterward.
func (kgen *KeyGenerator) Zeroize() {
	if kgen.sk != nil {
		kgen.sk.Zeroize()
		kgen.sk = nil
	}
}

// WithPool returns a copy of the key generator drawing its temporary buffers from pool.
func (kgen KeyGenerator) WithPool(pool *ring.MemoryPool) *KeyGenerator {
	kgen.pool = pool
	return &kgen
}

// WithNoiseDistribution returns a copy of the key generator sampling the errors from X.
func (kgen KeyGenerator) WithNoiseDistribution(X ring.DistributionParameters) *KeyGenerator {
	kgen.noise = X
	return &kgen
}

// WithPRNGType returns a copy of the key generator expanding the seeds of
// the keys with the given PRNG type.
func (kgen KeyGenerator) WithPRNGType(t sampling.PRNGType) *KeyGenerator {
	kgen.prngType = t
	return &kgen
}

func (kgen *KeyGenerator) checkSecretKey() error {
	if kgen.ctx == nil || kgen.sk == nil {
		return fmt.Errorf("%w: secret key has not been generated", ErrLogic)
	}
	return nil
}

// SecretKey returns a copy of the secret key.
func (kgen *KeyGenerator) SecretKey() (*SecretKey, error) {
	if err := kgen.checkSecretKey(); err != nil {
		return nil, err
	}
	return kgen.sk.CopyNew(), nil
}

// CreatePublicKey generates a public key.
func (kgen *KeyGenerator) CreatePublicKey() (*PublicKey, error) {
	return kgen.createPublicKey(false)
}

// CreatePublicKeySerializable generates a public key whose second
// polynomial is stored as a seed.
func (kgen *KeyGenerator) CreatePublicKeySerializable() (*Serializable[PublicKey], error) {
	pk, err := kgen.createPublicKey(true)
	if err != nil {
		return nil, err
	}
	return newSerializable(*pk), nil
}

func (kgen *KeyGenerator) createPublicKey(seeded bool) (pk *PublicKey, err error) {

	if err = kgen.checkSecretKey(); err != nil {
		return
	}

	pk = new(PublicKey)
	if err = encryptZeroSymmetric(kgen.ctx.KeyContextData(), kgen.sk, true, seeded, kgen.prngType, kgen.noise, kgen.pool, &pk.Ciphertext); err != nil {
		return nil, fmt.Errorf("cannot CreatePublicKey: %w", err)
	}

	return
}

// CreateRelinKeys generates the relinearization key of s^2, which is the only
// one needed to relinearize the product of two ciphertexts of size 2.
func (kgen *KeyGenerator) CreateRelinKeys() (*RelinKeys, error) {
	return kgen.createRelinKeys(1, false)
}

// CreateRelinKeysSerializable is [KeyGenerator.CreateRelinKeys] with the keys stored as seeds.
func (kgen *KeyGenerator) CreateRelinKeysSerializable() (*Serializable[RelinKeys], error) {
	rlk, err := kgen.createRelinKeys(1, true)
	if err != nil {
		return nil, err
	}
	return newSerializable(*rlk), nil
}

// CreateRelinKeysForPowers generates the relinearization keys of s^2, ..., s^{count+1},
// which relinearize ciphertexts of size up to count+2 in one call.
func (kgen *KeyGenerator) CreateRelinKeysForPowers(count int) (*RelinKeys, error) {
	return kgen.createRelinKeys(count, false)
}

func (kgen *KeyGenerator) createRelinKeys(count int, seeded bool) (rlk *RelinKeys, err error) {

	if err = kgen.checkSecretKey(); err != nil {
		return
	}

	if !kgen.ctx.UsingKeyswitching() {
		return nil, fmt.Errorf("%w: keyswitching is not supported by the context", ErrLogic)
	}

	if count < 1 || count > CiphertextSizeMax-2 {
		return nil, fmt.Errorf("%w: invalid count %d: must be in [1, %d]", ErrInvalidArgument, count, CiphertextSizeMax-2)
	}

	cd := kgen.ctx.KeyContextData()
	rQ := cd.ringQ
	N := cd.N()

	s := kgen.sk.Poly(N)
	power, err := kgen.pool.GetPoly(N, cd.level())
	if err != nil {
		return
	}
	defer kgen.pool.RecyclePoly(power)

	power.Copy(s)

	rlk = &RelinKeys{KSwitchKeys{parmsID: cd.ParmsID(), Keys: make([][]PublicKey, count)}}
	for i := range rlk.Keys {
		rQ.MulCoeffs(power, s, power)
		if rlk.Keys[i], err = kgen.genKSwitchKey(power, seeded); err != nil {
			return nil, fmt.Errorf("cannot CreateRelinKeys: %w", err)
		}
	}

	return
}

// CreateGaloisKeysFromElts generates the Galois keys of the given Galois elements.
func (kgen *KeyGenerator) CreateGaloisKeysFromElts(galEls []uint64) (*GaloisKeys, error) {
	return kgen.createGaloisKeys(galEls, false)
}

// CreateGaloisKeysFromEltsSerializable is [KeyGenerator.CreateGaloisKeysFromElts] with the keys stored as seeds.
func (kgen *KeyGenerator) CreateGaloisKeysFromEltsSerializable(galEls []uint64) (*Serializable[GaloisKeys], error) {
	gk, err := kgen.createGaloisKeys(galEls, true)
	if err != nil {
		return nil, err
	}
	return newSerializable(*gk), nil
}

// CreateGaloisKeysFromSteps generates the Galois keys rotating the rows of a
// batched plaintext, or the slots of a CKKS plaintext, by the given steps.
// A step of 0 generates the key swapping the rows, or conjugating the slots.
func (kgen *KeyGenerator) CreateGaloisKeysFromSteps(steps []int) (*GaloisKeys, error) {

	if err := kgen.checkSecretKey(); err != nil {
		return nil, err
	}

	if !kgen.ctx.FirstContextData().qualifiers.UsingBatching {
		return nil, fmt.Errorf("%w: encryption parameters do not support batching", ErrInvalidArgument)
	}

	galEls, err := kgen.ctx.galoisTool.GetEltsFromSteps(steps)
	if err != nil {
		return nil, fmt.Errorf("cannot CreateGaloisKeysFromSteps: %w", err)
	}

	return kgen.createGaloisKeys(galEls, false)
}

// CreateGaloisKeys generates the Galois keys of every power-of-two rotation,
// in both directions, and of the row swap. Any rotation can be evaluated with
// these keys.
func (kgen *KeyGenerator) CreateGaloisKeys() (*GaloisKeys, error) {

	if err := kgen.checkSecretKey(); err != nil {
		return nil, err
	}

	return kgen.createGaloisKeys(kgen.ctx.galoisTool.GetEltsAll(), false)
}

func (kgen *KeyGenerator) createGaloisKeys(galEls []uint64, seeded bool) (gk *GaloisKeys, err error) {

	if err = kgen.checkSecretKey(); err != nil {
		return
	}

	if !kgen.ctx.UsingKeyswitching() {
		return nil, fmt.Errorf("%w: keyswitching is not supported by the context", ErrLogic)
	}

	gt := kgen.ctx.galoisTool

	size := 0
	for _, galEl := range galEls {
		if !gt.IsValidGaloisElt(galEl) {
			return nil, fmt.Errorf("%w: galois element %d is not valid", ErrInvalidArgument, galEl)
		}
		size = max(size, GaloisKeyIndex(galEl)+1)
	}

	cd := kgen.ctx.KeyContextData()
	N := cd.N()

	rotated, err := kgen.pool.GetPoly(N, cd.level())
	if err != nil {
		return
	}
	defer kgen.pool.RecyclePoly(rotated)

	s := kgen.sk.Poly(N)

	gk = &GaloisKeys{KSwitchKeys{parmsID: cd.ParmsID(), Keys: make([][]PublicKey, size)}}
	for _, galEl := range galEls {

		index := GaloisKeyIndex(galEl)
		if len(gk.Keys[index]) != 0 {
			continue
		}

		for i := range rotated.Coeffs {
			gt.ApplyGaloisNTT(s.Coeffs[i], galEl, rotated.Coeffs[i])
		}

		if gk.Keys[index], err = kgen.genKSwitchKey(rotated, seeded); err != nil {
			return nil, fmt.Errorf("cannot CreateGaloisKeys: %w", err)
		}
	}

	return
}

// CreateKeySwitchingKey generates the key switching key from newKey to the
// secret key of the key generator.
func (kgen *KeyGenerator) CreateKeySwitchingKey(newKey *SecretKey) (ksk *KSwitchKeys, err error) {

	if err = kgen.checkSecretKey(); err != nil {
		return
	}

	if !kgen.ctx.UsingKeyswitching() {
		return nil, fmt.Errorf("%w: keyswitching is not supported by the context", ErrLogic)
	}

	if newKey == nil || !newKey.IsValidFor(kgen.ctx) {
		return nil, fmt.Errorf("%w: new key is not valid for encryption parameters", ErrInvalidArgument)
	}

	cd := kgen.ctx.KeyContextData()

	key, err := kgen.genKSwitchKey(newKey.Poly(cd.N()), false)
	if err != nil {
		return nil, fmt.Errorf("cannot CreateKeySwitchingKey: %w", err)
	}

	return &KSwitchKeys{parmsID: cd.ParmsID(), Keys: [][]PublicKey{key}}, nil
}

// genKSwitchKey encrypts newKey, given in NTT form at the key level, under
// the secret key. The i-th component is an encryption of zero at the key
// level whose first polynomial is increased, on its i-th prime q_i only, by
// newKey * (P mod q_i), P being the special prime.
func (kgen *KeyGenerator) genKSwitchKey(newKey ring.Poly, seeded bool) (ksk []PublicKey, err error) {

	key := kgen.ctx.KeyContextData()
	special := key.parms.coeffModulus[key.level()].Value()
	decompCount := len(kgen.ctx.FirstContextData().parms.coeffModulus)

	ksk = make([]PublicKey, decompCount)
	for i := range ksk {

		if err = encryptZeroSymmetric(key, kgen.sk, true, seeded, kgen.prngType, kgen.noise, kgen.pool, &ksk[i].Ciphertext); err != nil {
			return nil, err
		}

		s := key.ringQ.SubRings[i]
		s.MulScalarThenAdd(newKey.Coeffs[i], s.Modulus.Reduce(special), ksk[i].Value[0].Coeffs[i])
	}

	return
}
