package rlwe

import (
	"fmt"
	"math/big"

	"github.com/levelhe/levelhe/ring"
	"github.com/levelhe/levelhe/utils"
	"github.com/levelhe/levelhe/utils/bignum"
)

// ErrorType describes the outcome of the validation of [EncryptionParameters].
type ErrorType int

const (
	ErrorTypeNone ErrorType = iota - 1
	ErrorTypeSuccess
	ErrorTypeInvalidScheme
	ErrorTypeInvalidCoeffModulusSize
	ErrorTypeInvalidCoeffModulusBitCount
	ErrorTypeInvalidCoeffModulusNoNTT
	ErrorTypeInvalidPolyModulusDegree
	ErrorTypeInvalidPolyModulusDegreeNonPowerOfTwo
	ErrorTypeInvalidParametersTooLarge
	ErrorTypeInvalidParametersInsecure
	ErrorTypeFailedCreatingRNSBase
	ErrorTypeInvalidPlainModulusBitCount
	ErrorTypeInvalidPlainModulusCoprimality
	ErrorTypeInvalidPlainModulusTooLarge
	ErrorTypeInvalidPlainModulusNonzero
	ErrorTypeFailedCreatingRNSTool
)

var errorTypeNames = map[ErrorType][2]string{
	ErrorTypeNone:                                  {"none", "constructed but not yet validated"},
	ErrorTypeSuccess:                               {"success", "valid"},
	ErrorTypeInvalidScheme:                         {"invalid_scheme", "scheme must be BFV, CKKS or BGV"},
	ErrorTypeInvalidCoeffModulusSize:               {"invalid_coeff_modulus_size", fmt.Sprintf("coeff modulus count must be in [%d, %d]", ring.CoeffModulusCountMin, ring.CoeffModulusCountMax)},
	ErrorTypeInvalidCoeffModulusBitCount:           {"invalid_coeff_modulus_bit_count", fmt.Sprintf("coeff modulus primes must have between %d and %d bits", ring.UserModulusBitCountMin, ring.UserModulusBitCountMax)},
	ErrorTypeInvalidCoeffModulusNoNTT:              {"invalid_coeff_modulus_no_ntt", "coeff modulus primes must be congruent to 1 modulo 2 * poly modulus degree"},
	ErrorTypeInvalidPolyModulusDegree:              {"invalid_poly_modulus_degree", fmt.Sprintf("poly modulus degree must be in [%d, %d]", ring.PolyModulusDegreeMin, ring.PolyModulusDegreeMax)},
	ErrorTypeInvalidPolyModulusDegreeNonPowerOfTwo: {"invalid_poly_modulus_degree_non_power_of_two", "poly modulus degree must be a power of two"},
	ErrorTypeInvalidParametersTooLarge:             {"invalid_parameters_too_large", "parameters are too large"},
	ErrorTypeInvalidParametersInsecure:             {"invalid_parameters_insecure", "parameters do not meet the HomomorphicEncryption.org security standard"},
	ErrorTypeFailedCreatingRNSBase:                 {"failed_creating_rns_base", "coeff modulus primes are not pairwise coprime"},
	ErrorTypeInvalidPlainModulusBitCount:           {"invalid_plain_modulus_bit_count", fmt.Sprintf("plain modulus must have between %d and %d bits", ring.UserModulusBitCountMin, ring.UserModulusBitCountMax)},
	ErrorTypeInvalidPlainModulusCoprimality:        {"invalid_plain_modulus_coprimality", "plain modulus must be coprime to the coeff modulus"},
	ErrorTypeInvalidPlainModulusTooLarge:           {"invalid_plain_modulus_too_large", "plain modulus must be smaller than the coeff modulus"},
	ErrorTypeInvalidPlainModulusNonzero:            {"invalid_plain_modulus_nonzero", "plain modulus must be zero"},
	ErrorTypeFailedCreatingRNSTool:                 {"failed_creating_rns_tool", "auxiliary RNS bases cannot be created"},
}

// Name returns the identifier of the error type.
func (e ErrorType) Name() string {
	if s, ok := errorTypeNames[e]; ok {
		return s[0]
	}
	return "invalid_parameter_error"
}

// Message returns a human readable description of the error type.
func (e ErrorType) Message() string {
	if s, ok := errorTypeNames[e]; ok {
		return s[1]
	}
	return "invalid parameter error"
}

func (e ErrorType) String() string {
	return e.Name()
}

// EncryptionParameterQualifiers stores the result of the validation of a
// parameter set and the features it supports.
type EncryptionParameterQualifiers struct {
	ParameterError ErrorType

	// UsingFFT is true if X^N+1 is a power-of-two cyclotomic polynomial.
	UsingFFT bool

	// UsingNTT is true if every coeff modulus prime supports the negacyclic NTT of degree N.
	UsingNTT bool

	// UsingBatching is true if the plaintext space can be seen as a vector of slots.
	UsingBatching bool

	// UsingFastPlainLift is true if every coeff modulus prime is larger than the plain modulus.
	UsingFastPlainLift bool

	// UsingDescendingModulusChain is true if the coeff modulus primes are strictly decreasing.
	UsingDescendingModulusChain bool

	// SecLevel is the security level achieved by the parameters.
	SecLevel ring.SecLevel
}

// ParametersSet returns true if the parameters are valid.
func (q EncryptionParameterQualifiers) ParametersSet() bool {
	return q.ParameterError == ErrorTypeSuccess
}

// ContextData is one level of the modulus switching chain of a [Context]:
// a parameter set and all the tables precomputed for it. It is immutable.
type ContextData struct {
	ctx   *Context
	index int

	parms      EncryptionParameters
	qualifiers EncryptionParameterQualifiers

	ringQ    *ring.Ring
	rnsTool  *ring.RNSTool
	plainNTT *ring.NTTTable

	totalCoeffModulus         *big.Int
	totalCoeffModulusBitCount int

	coeffDivPlainModulus        []uint64
	coeffModulusModPlainModulus uint64
	plainUpperHalfThreshold     uint64
	plainUpperHalfIncrement     []uint64
	upperHalfThreshold          *big.Int
	upperHalfIncrement          []uint64

	chainIndex int
	prev, next int
}

// Parms returns the parameters of the level.
func (cd *ContextData) Parms() EncryptionParameters {
	return cd.parms
}

// ParmsID returns the fingerprint of the parameters of the level.
func (cd *ContextData) ParmsID() ParmsID {
	return cd.parms.parmsID
}

// Qualifiers returns the validation result of the parameters of the level.
func (cd *ContextData) Qualifiers() EncryptionParameterQualifiers {
	return cd.qualifiers
}

// ChainIndex returns the position of the level in the chain, 0 being the last level.
func (cd *ContextData) ChainIndex() int {
	return cd.chainIndex
}

// PrevContextData returns the level above, or nil for the key level.
func (cd *ContextData) PrevContextData() *ContextData {
	if cd.prev < 0 {
		return nil
	}
	return cd.ctx.data[cd.prev]
}

// NextContextData returns the level below, or nil for the last level.
func (cd *ContextData) NextContextData() *ContextData {
	if cd.next < 0 {
		return nil
	}
	return cd.ctx.data[cd.next]
}

// N returns the ring degree.
func (cd *ContextData) N() int {
	return cd.parms.polyModulusDegree
}

// RingQ returns the polynomial ring of the coefficient modulus.
func (cd *ContextData) RingQ() *ring.Ring {
	return cd.ringQ
}

// RNSTool returns the full-RNS tables of the level.
func (cd *ContextData) RNSTool() *ring.RNSTool {
	return cd.rnsTool
}

// GaloisTool returns the Galois tool shared by all the levels of the context.
func (cd *ContextData) GaloisTool() *ring.GaloisTool {
	return cd.ctx.galoisTool
}

// PlainNTTTable returns the NTT table of the plain modulus, or nil if batching is not supported.
func (cd *ContextData) PlainNTTTable() *ring.NTTTable {
	return cd.plainNTT
}

// TotalCoeffModulus returns the product of the coeff modulus primes.
func (cd *ContextData) TotalCoeffModulus() *big.Int {
	return new(big.Int).Set(cd.totalCoeffModulus)
}

// TotalCoeffModulusBitCount returns the bit count of the product of the coeff modulus primes.
func (cd *ContextData) TotalCoeffModulusBitCount() int {
	return cd.totalCoeffModulusBitCount
}

// TotalCoeffModulusLog2 returns log2 of the product of the coeff modulus primes.
func (cd *ContextData) TotalCoeffModulusLog2() float64 {
	return bignum.Log2(cd.totalCoeffModulus)
}

// CoeffDivPlainModulus returns floor(q/t) in RNS form.
func (cd *ContextData) CoeffDivPlainModulus() []uint64 {
	return cd.coeffDivPlainModulus
}

// CoeffModulusModPlainModulus returns q mod t.
func (cd *ContextData) CoeffModulusModPlainModulus() uint64 {
	return cd.coeffModulusModPlainModulus
}

// PlainUpperHalfThreshold returns the smallest plaintext coefficient interpreted as negative.
func (cd *ContextData) PlainUpperHalfThreshold() uint64 {
	return cd.plainUpperHalfThreshold
}

// PlainUpperHalfIncrement returns, for each prime q_i, the value added to a
// negative plaintext coefficient to lift it modulo q_i: -t mod q_i for BFV and
// BGV, 2^64 mod q_i for CKKS.
func (cd *ContextData) PlainUpperHalfIncrement() []uint64 {
	return cd.plainUpperHalfIncrement
}

// UpperHalfThreshold returns (q+1)/2 (CKKS only).
func (cd *ContextData) UpperHalfThreshold() *big.Int {
	if cd.upperHalfThreshold == nil {
		return nil
	}
	return new(big.Int).Set(cd.upperHalfThreshold)
}

// UpperHalfIncrement returns q mod t in RNS form (BFV and BGV only).
func (cd *ContextData) UpperHalfIncrement() []uint64 {
	return cd.upperHalfIncrement
}

// Context validates a parameter set and precomputes the chain of parameter
// sets obtained by dropping the last prime of the coefficient modulus, down
// to a single prime. The first level, the key level, is only used for keys;
// data lives at the first data level and below. A Context is immutable and
// safe for concurrent use.
type Context struct {
	data  []*ContextData
	index map[ParmsID]int

	keyParmsID   ParmsID
	firstParmsID ParmsID
	lastParmsID  ParmsID

	usingKeyswitching bool
	secLevel          ring.SecLevel

	galoisTool *ring.GaloisTool
}

// NewContext validates parms and builds the modulus switching chain. If
// expandModChain is false, the chain holds at most the key level and the
// first data level. Parameters that fail the validation do not return an
// error: [Context.ParametersSet] reports false and
// [Context.ParameterErrorMessage] describes why. An error is returned only
// for an unknown security level.
func NewContext(parms EncryptionParameters, expandModChain bool, sec ring.SecLevel) (ctx *Context, err error) {

	if sec < ring.SecLevelNone || sec > ring.SecLevelTC256 {
		return nil, fmt.Errorf("%w: unsupported security level %s", ErrInvalidArgument, sec)
	}

	ctx = &Context{
		index:    map[ParmsID]int{},
		secLevel: sec,
	}

	key := ctx.insert(ctx.validate(parms))
	ctx.keyParmsID = key.ParmsID()
	ctx.firstParmsID = ctx.keyParmsID
	ctx.lastParmsID = ctx.keyParmsID

	if !key.qualifiers.ParametersSet() {
		return
	}

	if logN := utils.PowerOfTwo(uint64(key.N())); logN > 0 {
		if ctx.galoisTool, err = ring.NewGaloisTool(logN); err != nil {
			return nil, fmt.Errorf("cannot NewContext: %w", err)
		}
	}

	// The first data level drops the last prime, which becomes the special
	// prime of the key switching keys.
	if parms.CoeffModulusCount() > 1 {
		if first := ctx.createNext(key); first != nil {
			ctx.firstParmsID = first.ParmsID()
			ctx.lastParmsID = first.ParmsID()
			ctx.usingKeyswitching = true
			if expandModChain {
				for cd := ctx.createNext(first); cd != nil; cd = ctx.createNext(cd) {
					ctx.lastParmsID = cd.ParmsID()
				}
			}
		}
	}

	for i, cd := range ctx.data {
		cd.chainIndex = len(ctx.data) - 1 - i
	}

	return
}

func (ctx *Context) insert(cd *ContextData) *ContextData {
	cd.ctx = ctx
	cd.index = len(ctx.data)
	cd.prev, cd.next = -1, -1
	ctx.data = append(ctx.data, cd)
	ctx.index[cd.ParmsID()] = cd.index
	return cd
}

// createNext validates the parameters of prev without their last prime and
// appends them to the chain. It returns nil if they are not valid.
func (ctx *Context) createNext(prev *ContextData) *ContextData {

	moduli := prev.parms.coeffModulus
	if len(moduli) < 2 {
		return nil
	}

	parms := prev.parms
	if err := parms.SetCoeffModulus(moduli[:len(moduli)-1]); err != nil {
		return nil
	}

	cd := ctx.validate(parms)
	if !cd.qualifiers.ParametersSet() {
		return nil
	}

	// Security can only improve when primes are dropped.
	cd.qualifiers.SecLevel = prev.qualifiers.SecLevel

	ctx.insert(cd)
	cd.prev = prev.index
	prev.next = cd.index

	return cd
}

func (ctx *Context) validate(parms EncryptionParameters) (cd *ContextData) {

	cd = &ContextData{parms: parms}
	cd.qualifiers.ParameterError = ErrorTypeSuccess

	fail := func(e ErrorType) *ContextData {
		cd.qualifiers.ParameterError = e
		return cd
	}

	if parms.scheme == SchemeNone || !parms.scheme.IsValid() {
		return fail(ErrorTypeInvalidScheme)
	}

	moduli := parms.coeffModulus
	t := parms.plainModulus

	if len(moduli) > ring.CoeffModulusCountMax || len(moduli) < ring.CoeffModulusCountMin {
		return fail(ErrorTypeInvalidCoeffModulusSize)
	}

	for _, q := range moduli {
		if q.BitCount() > ring.UserModulusBitCountMax || q.BitCount() < ring.UserModulusBitCountMin {
			return fail(ErrorTypeInvalidCoeffModulusBitCount)
		}
	}

	cd.totalCoeffModulus = big.NewInt(1)
	for _, q := range moduli {
		cd.totalCoeffModulus.Mul(cd.totalCoeffModulus, new(big.Int).SetUint64(q.Value()))
	}
	cd.totalCoeffModulusBitCount = cd.totalCoeffModulus.BitLen()

	N := parms.polyModulusDegree
	if N < ring.PolyModulusDegreeMin || N > ring.PolyModulusDegreeMax {
		return fail(ErrorTypeInvalidPolyModulusDegree)
	}

	if !utils.IsPowerOfTwo(uint64(N)) {
		return fail(ErrorTypeInvalidPolyModulusDegreeNonPowerOfTwo)
	}

	if utils.MulOverflows(N, len(moduli)) {
		return fail(ErrorTypeInvalidParametersTooLarge)
	}

	cd.qualifiers.UsingFFT = true

	cd.qualifiers.SecLevel = ctx.secLevel
	if cd.totalCoeffModulusBitCount > ring.CoeffModulusMaxBitCount(N, ctx.secLevel) {
		cd.qualifiers.SecLevel = ring.SecLevelNone
		if ctx.secLevel != ring.SecLevelNone {
			return fail(ErrorTypeInvalidParametersInsecure)
		}
	}

	baseQ, err := ring.NewRNSBase(moduli)
	if err != nil {
		return fail(ErrorTypeFailedCreatingRNSBase)
	}

	if cd.ringQ, err = ring.NewRing(N, moduli); err != nil || !cd.ringQ.SupportsNTT() {
		cd.ringQ = nil
		return fail(ErrorTypeInvalidCoeffModulusNoNTT)
	}
	cd.qualifiers.UsingNTT = true

	switch parms.scheme {
	case SchemeBFV, SchemeBGV:

		if t.BitCount() > ring.UserModulusBitCountMax || t.BitCount() < ring.UserModulusBitCountMin {
			return fail(ErrorTypeInvalidPlainModulusBitCount)
		}

		for _, q := range moduli {
			if utils.GCD(q.Value(), t.Value()) != 1 {
				return fail(ErrorTypeInvalidPlainModulusCoprimality)
			}
		}

		tBig := new(big.Int).SetUint64(t.Value())
		if tBig.Cmp(cd.totalCoeffModulus) >= 0 {
			return fail(ErrorTypeInvalidPlainModulusTooLarge)
		}

		if t.IsPrime() && t.Value()&uint64(2*N-1) == 1 {
			if cd.plainNTT, err = ring.NewNTTTable(utils.PowerOfTwo(uint64(N)), t); err == nil {
				cd.qualifiers.UsingBatching = true
			}
		}

		cd.qualifiers.UsingFastPlainLift = true
		for _, q := range moduli {
			cd.qualifiers.UsingFastPlainLift = cd.qualifiers.UsingFastPlainLift && q.Value() > t.Value()
		}

		delta, rem := new(big.Int).QuoRem(cd.totalCoeffModulus, tBig, new(big.Int))
		cd.coeffDivPlainModulus = baseQ.Decompose(delta)
		cd.coeffModulusModPlainModulus = rem.Uint64()
		cd.upperHalfIncrement = baseQ.Decompose(rem)

		cd.plainUpperHalfThreshold = (t.Value() + 1) >> 1
		cd.plainUpperHalfIncrement = make([]uint64, len(moduli))
		for i, q := range moduli {
			cd.plainUpperHalfIncrement[i] = ring.NegMod(q.Reduce(t.Value()), q.Value())
		}

	case SchemeCKKS:

		if !t.IsZero() {
			return fail(ErrorTypeInvalidPlainModulusNonzero)
		}

		cd.qualifiers.UsingBatching = true
		cd.qualifiers.UsingFastPlainLift = false

		cd.plainUpperHalfThreshold = 1 << 63
		cd.plainUpperHalfIncrement = make([]uint64, len(moduli))
		for i, q := range moduli {
			// 2^64 mod q
			cd.plainUpperHalfIncrement[i] = ring.BRed(q.Reduce(1<<63), 2, q)
		}

		cd.upperHalfThreshold = new(big.Int).Add(cd.totalCoeffModulus, big.NewInt(1))
		cd.upperHalfThreshold.Rsh(cd.upperHalfThreshold, 1)
	}

	if cd.rnsTool, err = ring.NewRNSTool(N, baseQ, t); err != nil {
		return fail(ErrorTypeFailedCreatingRNSTool)
	}

	cd.qualifiers.UsingDescendingModulusChain = true
	for i := 0; i < len(moduli)-1; i++ {
		cd.qualifiers.UsingDescendingModulusChain = cd.qualifiers.UsingDescendingModulusChain && moduli[i].Value() > moduli[i+1].Value()
	}

	return
}

// GetContextData returns the level of the chain with the given fingerprint,
// or nil if the fingerprint is not part of the chain.
func (ctx *Context) GetContextData(id ParmsID) *ContextData {
	if i, ok := ctx.index[id]; ok {
		return ctx.data[i]
	}
	return nil
}

// KeyContextData returns the key level.
func (ctx *Context) KeyContextData() *ContextData {
	return ctx.GetContextData(ctx.keyParmsID)
}

// FirstContextData returns the first data level.
func (ctx *Context) FirstContextData() *ContextData {
	return ctx.GetContextData(ctx.firstParmsID)
}

// LastContextData returns the last level of the chain.
func (ctx *Context) LastContextData() *ContextData {
	return ctx.GetContextData(ctx.lastParmsID)
}

// KeyParmsID returns the fingerprint of the key level.
func (ctx *Context) KeyParmsID() ParmsID {
	return ctx.keyParmsID
}

// FirstParmsID returns the fingerprint of the first data level.
func (ctx *Context) FirstParmsID() ParmsID {
	return ctx.firstParmsID
}

// LastParmsID returns the fingerprint of the last level.
func (ctx *Context) LastParmsID() ParmsID {
	return ctx.lastParmsID
}

// ParametersSet returns true if the parameters given to [NewContext] are valid.
func (ctx *Context) ParametersSet() bool {
	if cd := ctx.FirstContextData(); cd != nil {
		return cd.qualifiers.ParametersSet()
	}
	return false
}

// ParameterErrorName returns the identifier of the validation result.
func (ctx *Context) ParameterErrorName() string {
	if cd := ctx.FirstContextData(); cd != nil {
		return cd.qualifiers.ParameterError.Name()
	}
	return "context is empty"
}

// ParameterErrorMessage returns a description of the validation result.
func (ctx *Context) ParameterErrorMessage() string {
	if cd := ctx.FirstContextData(); cd != nil {
		return cd.qualifiers.ParameterError.Message()
	}
	return "context is empty"
}

// UsingKeyswitching returns true if the key level holds a special prime
// that the data levels do not have.
func (ctx *Context) UsingKeyswitching() bool {
	return ctx.usingKeyswitching
}

// SecLevel returns the security level requested at construction.
func (ctx *Context) SecLevel() ring.SecLevel {
	return ctx.secLevel
}

// ChainLength returns the number of levels of the chain, key level included.
func (ctx *Context) ChainLength() int {
	return len(ctx.data)
}

// checkParametersSet returns an error wrapping [ErrInvalidArgument] if the parameters are not valid.
func (ctx *Context) checkParametersSet() error {
	if ctx == nil {
		return fmt.Errorf("%w: context is nil", ErrInvalidArgument)
	}
	if !ctx.ParametersSet() {
		return fmt.Errorf("%w: encryption parameters are not set correctly: %s", ErrInvalidArgument, ctx.ParameterErrorMessage())
	}
	return nil
}
