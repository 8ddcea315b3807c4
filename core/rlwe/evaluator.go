package rlwe

import (
	"fmt"
	"math"

	"github.com/levelhe/levelhe/ring"
)

// Evaluator performs the homomorphic operations on ciphertexts. The keys
// needed by an operation are given with the call. An Evaluator is safe for
// concurrent use.
//
// Every operation writing on an output ciphertext accepts an output
// aliasing one of its inputs.
type Evaluator struct {
	ctx *Context

	// ringBsk is the ring of the auxiliary base B_sk of the BFV
	// multiplication at each level.
	ringBsk map[ParmsID]*ring.Ring

	pool *ring.MemoryPool
}

// NewEvaluator creates an [Evaluator] for the parameters of ctx.
func NewEvaluator(ctx *Context) (*Evaluator, error) {

	if err := ctx.checkParametersSet(); err != nil {
		return nil, fmt.Errorf("cannot NewEvaluator: %w", err)
	}

	eval := &Evaluator{
		ctx:     ctx,
		ringBsk: map[ParmsID]*ring.Ring{},
		pool:    ring.DefaultPool(),
	}

	if ctx.KeyContextData().parms.scheme == SchemeBFV {
		for cd := ctx.FirstContextData(); cd != nil; cd = cd.NextContextData() {
			tables := cd.rnsTool.BaseBskNTTTables()
			r := &ring.Ring{SubRings: make([]*ring.SubRing, len(tables))}
			for i, table := range tables {
				r.SubRings[i] = &ring.SubRing{N: cd.N(), Modulus: table.Modulus(), NTTTable: table}
			}
			eval.ringBsk[cd.ParmsID()] = r
		}
	}

	return eval, nil
}

// WithPool returns a copy of the evaluator drawing its temporary buffers from pool.
func (eval Evaluator) WithPool(pool *ring.MemoryPool) *Evaluator {
	eval.pool = pool
	return &eval
}

func (eval Evaluator) scheme() SchemeType {
	return eval.ctx.KeyContextData().parms.scheme
}

// checkCiphertext returns the level of ct if ct is a valid non-empty ciphertext.
func (eval Evaluator) checkCiphertext(ct *Ciphertext, name string) (*ContextData, error) {
	if ct == nil || !ct.IsMetadataValidFor(eval.ctx, false) || !ct.IsBufferValid() {
		return nil, fmt.Errorf("%w: %s is not valid for encryption parameters", ErrInvalidArgument, name)
	}
	if ct.Size() < CiphertextSizeMin {
		return nil, fmt.Errorf("%w: %s is empty", ErrInvalidArgument, name)
	}
	return eval.ctx.GetContextData(ct.parmsID), nil
}

// checkBinary checks that ct0 and ct1 are valid and can be combined.
func (eval Evaluator) checkBinary(ct0, ct1 *Ciphertext) (cd *ContextData, err error) {

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

	if !areSameScale(ct0.Scale, ct1.Scale) {
		return nil, fmt.Errorf("%w: scale mismatch", ErrInvalidArgument)
	}

	return
}

// checkPlaintext checks that pt is a valid plaintext.
func (eval Evaluator) checkPlaintext(pt *Plaintext) error {
	if pt == nil || !pt.IsMetadataValidFor(eval.ctx, false) || !pt.IsBufferValid() {
		return fmt.Errorf("%w: plaintext is not valid for encryption parameters", ErrInvalidArgument)
	}
	return nil
}

// areSameScale returns true if the two scales are equal up to rounding errors.
func areSameScale(a, b float64) bool {
	return math.Abs(a-b) < 0x1p-52*math.Max(math.Max(math.Abs(a), math.Abs(b)), 1)
}

// isScaleWithinBounds checks that a ciphertext of the given scale fits at the level cd.
func isScaleWithinBounds(scale float64, cd *ContextData) bool {
	switch cd.parms.scheme {
	case SchemeCKKS:
		return scale > 0 && int(math.Log2(scale)) < cd.totalCoeffModulusBitCount
	default:
		return scale == 1
	}
}

// copyTo copies ct on out unless they are the same ciphertext.
func copyTo(ct, out *Ciphertext) {
	if ct != out {
		out.Copy(ct)
	}
}

// getPolys draws count temporary polynomials of degree N with level+1 limbs
// from the pool. They must be given back with recyclePolys.
func (eval Evaluator) getPolys(count, N, level int) (polys []ring.Poly, err error) {
	polys = make([]ring.Poly, count)
	for i := range polys {
		if polys[i], err = eval.pool.GetPoly(N, level); err != nil {
			eval.recyclePolys(polys[:i])
			return nil, err
		}
	}
	return
}

func (eval Evaluator) recyclePolys(polys []ring.Poly) {
	for _, p := range polys {
		eval.pool.RecyclePoly(p)
	}
}

// setValue resizes ct to the level cd and copies the polynomials res on it.
func (ct *Ciphertext) setValue(cd *ContextData, res []ring.Poly) {
	ct.setLevel(cd, len(res))
	for i := range res {
		ct.Value[i].Copy(res[i])
	}
}

// Negate writes -ct on out.
func (eval Evaluator) Negate(ct, out *Ciphertext) (err error) {

	var cd *ContextData
	if cd, err = eval.checkCiphertext(ct, "ct"); err != nil {
		return
	}

	if out == nil {
		return fmt.Errorf("%w: destination is nil", ErrInvalidArgument)
	}

	copyTo(ct, out)
	for i := range out.Value {
		cd.ringQ.Neg(out.Value[i], out.Value[i])
	}

	return
}

// NegateNew returns -ct on a new ciphertext.
func (eval Evaluator) NegateNew(ct *Ciphertext) (out *Ciphertext, err error) {
	out = new(Ciphertext)
	return out, eval.Negate(ct, out)
}

// Add writes ct0 + ct1 on out. The size of out is the largest of the two sizes.
func (eval Evaluator) Add(ct0, ct1, out *Ciphertext) error {
	return eval.addSub(ct0, ct1, out, false)
}

// AddNew returns ct0 + ct1 on a new ciphertext.
func (eval Evaluator) AddNew(ct0, ct1 *Ciphertext) (out *Ciphertext, err error) {
	out = new(Ciphertext)
	return out, eval.Add(ct0, ct1, out)
}

// Sub writes ct0 - ct1 on out. The size of out is the largest of the two sizes.
func (eval Evaluator) Sub(ct0, ct1, out *Ciphertext) error {
	return eval.addSub(ct0, ct1, out, true)
}

// SubNew returns ct0 - ct1 on a new ciphertext.
func (eval Evaluator) SubNew(ct0, ct1 *Ciphertext) (out *Ciphertext, err error) {
	out = new(Ciphertext)
	return out, eval.Sub(ct0, ct1, out)
}

func (eval Evaluator) addSub(ct0, ct1, out *Ciphertext, sub bool) (err error) {

	var cd *ContextData
	if cd, err = eval.checkBinary(ct0, ct1); err != nil {
		return
	}

	if out == nil {
		return fmt.Errorf("%w: destination is nil", ErrInvalidArgument)
	}

	rQ := cd.ringQ

	if out == ct1 && out != ct0 {
		ct1 = ct1.CopyNew()
	}

	if cd.parms.scheme == SchemeBGV && ct0.CorrectionFactor != ct1.CorrectionFactor {

		t := cd.parms.plainModulus.Value()
		f, e0, e1 := balanceCorrectionFactors(ct0.CorrectionFactor, ct1.CorrectionFactor, t)

		scaled := ct1.CopyNew()
		for i := range scaled.Value {
			mulBySignedScalar(rQ, scaled.Value[i], e1, t)
		}
		ct1 = scaled

		copyTo(ct0, out)
		for i := range out.Value {
			mulBySignedScalar(rQ, out.Value[i], e0, t)
		}

		out.CorrectionFactor = f
	} else {
		copyTo(ct0, out)
	}

	size0, size1 := ct0.Size(), ct1.Size()
	if size1 > size0 {
		out.resize(cd, size1)
	}

	for i := 0; i < size1; i++ {
		if sub {
			rQ.Sub(out.Value[i], ct1.Value[i], out.Value[i])
		} else {
			rQ.Add(out.Value[i], ct1.Value[i], out.Value[i])
		}
	}

	return
}

// AddMany writes the sum of the ciphertexts cts on out.
func (eval Evaluator) AddMany(cts []*Ciphertext, out *Ciphertext) (err error) {

	if len(cts) == 0 {
		return fmt.Errorf("%w: cts cannot be empty", ErrInvalidArgument)
	}

	for _, ct := range cts {
		if ct == out {
			return fmt.Errorf("%w: cts must be different from destination", ErrInvalidArgument)
		}
	}

	if _, err = eval.checkCiphertext(cts[0], "cts[0]"); err != nil {
		return
	}

	if out == nil {
		return fmt.Errorf("%w: destination is nil", ErrInvalidArgument)
	}

	out.Copy(cts[0])
	for _, ct := range cts[1:] {
		if err = eval.Add(out, ct, out); err != nil {
			return
		}
	}

	return
}

// balanceCorrectionFactors returns f and two small e0 and e1 in [0, t) such
// that e0*f0 = e1*f1 = f mod t.
func balanceCorrectionFactors(f0, f1, t uint64) (f, e0, e1 uint64) {

	tm, _ := ring.NewModulus(t)

	balanced := func(x uint64) uint64 {
		if x > t>>1 {
			return t - x
		}
		return x
	}

	sumAbs := func(x, y uint64) uint64 {
		return balanced(x) + balanced(y)
	}

	// ratio = f1/f0, then a = ratio*b for every pair (a, b) of the extended Euclid sequence
	ratio, _ := ring.ModInverse(f0, t)
	ratio = ring.BRed(ratio, f1, tm)

	e0, e1 = ratio, 1
	sum := sumAbs(e0, e1)

	prevA, prevB := t, uint64(0)
	a, b := ratio, uint64(1)

	for a != 0 {
		q := prevA / a
		prevA, a = a, prevA%a
		prevB, b = b, ring.SubMod(prevB, ring.BRed(b, tm.Reduce(q), tm), t)
		if s := sumAbs(a, b); a != 0 && s < sum {
			sum = s
			e0, e1 = a, b
		}
	}

	return ring.BRed(e0, f0, tm), e0, e1
}

// mulBySignedScalar multiplies p by the centered representative of e mod t.
func mulBySignedScalar(rQ *ring.Ring, p ring.Poly, e, t uint64) {
	if e > t>>1 {
		rQ.MulScalar(p, t-e, p)
		rQ.Neg(p, p)
	} else {
		rQ.MulScalar(p, e, p)
	}
}

// AddPlain writes ct + pt on out.
func (eval Evaluator) AddPlain(ct *Ciphertext, pt *Plaintext, out *Ciphertext) error {
	return eval.addSubPlain(ct, pt, out, false)
}

// SubPlain writes ct - pt on out.
func (eval Evaluator) SubPlain(ct *Ciphertext, pt *Plaintext, out *Ciphertext) error {
	return eval.addSubPlain(ct, pt, out, true)
}

func (eval Evaluator) addSubPlain(ct *Ciphertext, pt *Plaintext, out *Ciphertext, sub bool) (err error) {

	var cd *ContextData
	if cd, err = eval.checkCiphertext(ct, "ct"); err != nil {
		return
	}

	if err = eval.checkPlaintext(pt); err != nil {
		return
	}

	if out == nil {
		return fmt.Errorf("%w: destination is nil", ErrInvalidArgument)
	}

	rQ := cd.ringQ
	N := cd.N()

	m, err := eval.pool.GetPoly(N, cd.level())
	if err != nil {
		return
	}
	defer eval.pool.RecyclePoly(m)

	switch cd.parms.scheme {
	case SchemeBFV:

		if ct.IsNTTForm {
			return fmt.Errorf("%w: BFV ciphertext cannot be in NTT form", ErrInvalidArgument)
		}

		if pt.IsNTTForm() {
			return fmt.Errorf("%w: BFV plaintext cannot be in NTT form", ErrInvalidArgument)
		}

		scalePlain(pt, cd, m)

	case SchemeCKKS:

		if !ct.IsNTTForm || !pt.IsNTTForm() {
			return fmt.Errorf("%w: CKKS ciphertext and plaintext must be in NTT form", ErrInvalidArgument)
		}

		if pt.parmsID != ct.parmsID {
			return fmt.Errorf("%w: ct and pt parameter mismatch", ErrInvalidArgument)
		}

		if !areSameScale(ct.Scale, pt.Scale) {
			return fmt.Errorf("%w: scale mismatch", ErrInvalidArgument)
		}

		m.Copy(pt.Poly(N))

	case SchemeBGV:

		if !ct.IsNTTForm {
			return fmt.Errorf("%w: BGV ciphertext must be in NTT form", ErrInvalidArgument)
		}

		if pt.IsNTTForm() {
			return fmt.Errorf("%w: BGV plaintext cannot be in NTT form", ErrInvalidArgument)
		}

		scaled := pt.CopyNew()
		if ct.CorrectionFactor != 1 {
			t := cd.parms.plainModulus
			op := ring.NewMulOperand(ct.CorrectionFactor, t)
			for i, c := range scaled.coeffs {
				scaled.coeffs[i] = ring.MulShoup(c, op, t.Value())
			}
		}

		liftPlain(scaled, cd, m)
		rQ.NTT(m, m)
	}

	copyTo(ct, out)

	if sub {
		rQ.Sub(out.Value[0], m, out.Value[0])
	} else {
		rQ.Add(out.Value[0], m, out.Value[0])
	}

	return
}

// MultiplyPlain writes ct * pt on out. For CKKS, the scale of out is the
// product of the scales.
func (eval Evaluator) MultiplyPlain(ct *Ciphertext, pt *Plaintext, out *Ciphertext) (err error) {

	var cd *ContextData
	if cd, err = eval.checkCiphertext(ct, "ct"); err != nil {
		return
	}

	if err = eval.checkPlaintext(pt); err != nil {
		return
	}

	if out == nil {
		return fmt.Errorf("%w: destination is nil", ErrInvalidArgument)
	}

	if pt.IsZero() {
		return fmt.Errorf("%w: plaintext cannot be zero", ErrInvalidArgument)
	}

	if ct.IsNTTForm != pt.IsNTTForm() && (cd.parms.scheme != SchemeBGV || !ct.IsNTTForm) {
		return fmt.Errorf("%w: NTT form mismatch", ErrInvalidArgument)
	}

	if pt.IsNTTForm() && pt.parmsID != ct.parmsID {
		return fmt.Errorf("%w: ct and pt parameter mismatch", ErrInvalidArgument)
	}

	scale := ct.Scale
	if cd.parms.scheme == SchemeCKKS {
		if scale *= pt.Scale; !isScaleWithinBounds(scale, cd) {
			return fmt.Errorf("%w: scale out of bounds", ErrInvalidArgument)
		}
	}

	rQ := cd.ringQ
	N := cd.N()

	m, err := eval.pool.GetPoly(N, cd.level())
	if err != nil {
		return
	}
	defer eval.pool.RecyclePoly(m)

	if pt.IsNTTForm() {
		m.Copy(pt.Poly(N))
	} else {
		liftPlain(pt, cd, m)
		rQ.NTT(m, m)
	}

	copyTo(ct, out)

	tmp, err := eval.pool.GetPoly(N, cd.level())
	if err != nil {
		return
	}
	defer eval.pool.RecyclePoly(tmp)

	for i := range out.Value {
		if out.IsNTTForm {
			rQ.MulCoeffs(out.Value[i], m, out.Value[i])
		} else {
			rQ.NTT(out.Value[i], tmp)
			rQ.MulCoeffs(tmp, m, tmp)
			rQ.INTT(tmp, out.Value[i])
		}
	}

	out.Scale = scale

	return
}

// TransformToNTT converts ct to the NTT form in place.
func (eval Evaluator) TransformToNTT(ct *Ciphertext) (err error) {

	var cd *ContextData
	if cd, err = eval.checkCiphertext(ct, "ct"); err != nil {
		return
	}

	if ct.IsNTTForm {
		return fmt.Errorf("%w: ciphertext is already in NTT form", ErrInvalidArgument)
	}

	for i := range ct.Value {
		cd.ringQ.NTT(ct.Value[i], ct.Value[i])
	}

	ct.IsNTTForm = true

	return
}

// TransformFromNTT converts ct to the coefficient form in place.
func (eval Evaluator) TransformFromNTT(ct *Ciphertext) (err error) {

	var cd *ContextData
	if cd, err = eval.checkCiphertext(ct, "ct"); err != nil {
		return
	}

	if !ct.IsNTTForm {
		return fmt.Errorf("%w: ciphertext is not in NTT form", ErrInvalidArgument)
	}

	for i := range ct.Value {
		cd.ringQ.INTT(ct.Value[i], ct.Value[i])
	}

	ct.IsNTTForm = false

	return
}

// TransformPlainToNTT converts pt, a polynomial in coefficient form, to the
// NTT form at the level parmsID in place. Coefficients in the upper half of
// the plaintext modulus are lifted to negative values.
func (eval Evaluator) TransformPlainToNTT(pt *Plaintext, parmsID ParmsID) (err error) {

	if err = eval.checkPlaintext(pt); err != nil {
		return
	}

	if pt.IsNTTForm() {
		return fmt.Errorf("%w: plaintext is already in NTT form", ErrInvalidArgument)
	}

	cd := eval.ctx.GetContextData(parmsID)
	if cd == nil {
		return fmt.Errorf("%w: parmsID is not valid for encryption parameters", ErrInvalidArgument)
	}

	p, err := eval.pool.GetPoly(cd.N(), cd.level())
	if err != nil {
		return
	}
	defer eval.pool.RecyclePoly(p)

	liftPlain(pt, cd, p)
	cd.ringQ.NTT(p, p)

	pt.Resize(len(p.Buff))
	copy(pt.coeffs, p.Buff)
	pt.parmsID = parmsID

	return
}
