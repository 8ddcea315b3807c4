package rlwe

// Validity checks of the objects against a [Context]. The metadata check
// verifies the level and dimensions, the buffer check verifies the backing
// storage, and the data check verifies that every coefficient is reduced.

// IsMetadataValidFor checks the level and dimensions of the plaintext.
// Plaintexts at the key level are rejected unless allowKeyLevel is true.
func (pt Plaintext) IsMetadataValidFor(ctx *Context, allowKeyLevel bool) bool {

	if ctx == nil || !ctx.ParametersSet() {
		return false
	}

	if pt.IsNTTForm() {
		cd := ctx.GetContextData(pt.parmsID)
		if cd == nil {
			return false
		}
		if !allowKeyLevel && cd.chainIndex > ctx.FirstContextData().chainIndex {
			return false
		}
		return len(pt.coeffs) == cd.N()*len(cd.parms.coeffModulus)
	}

	return len(pt.coeffs) <= ctx.FirstContextData().N()
}

// IsBufferValid checks the backing storage of the plaintext.
func (pt Plaintext) IsBufferValid() bool {
	return len(pt.coeffs) <= cap(pt.coeffs)
}

// IsDataValidFor checks the metadata and that every coefficient is reduced
// modulo its prime, or modulo the plaintext modulus when not in NTT form.
func (pt Plaintext) IsDataValidFor(ctx *Context) bool {

	if !pt.IsMetadataValidFor(ctx, false) {
		return false
	}

	if pt.IsNTTForm() {
		cd := ctx.GetContextData(pt.parmsID)
		N := cd.N()
		for i, q := range cd.parms.coeffModulus {
			for _, c := range pt.coeffs[i*N : (i+1)*N] {
				if c >= q.Value() {
					return false
				}
			}
		}
		return true
	}

	t := ctx.FirstContextData().parms.plainModulus.Value()
	for _, c := range pt.coeffs {
		if c >= t {
			return false
		}
	}

	return true
}

// IsValidFor checks the buffer and the data of the plaintext.
func (pt Plaintext) IsValidFor(ctx *Context) bool {
	return pt.IsBufferValid() && pt.IsDataValidFor(ctx)
}

// IsMetadataValidFor checks the level, the dimensions, the size, the scale
// and the correction factor of the ciphertext.
// Ciphertexts at the key level are rejected unless allowKeyLevel is true.
func (ct Ciphertext) IsMetadataValidFor(ctx *Context, allowKeyLevel bool) bool {

	if ctx == nil || !ctx.ParametersSet() {
		return false
	}

	cd := ctx.GetContextData(ct.parmsID)
	if cd == nil {
		return false
	}

	if !allowKeyLevel && cd.chainIndex > ctx.FirstContextData().chainIndex {
		return false
	}

	size := len(ct.Value)
	if size != 0 && (ct.CoeffModulusSize() != len(cd.parms.coeffModulus) || ct.PolyModulusDegree() != cd.N()) {
		return false
	}

	if (size < CiphertextSizeMin && size != 0) || size > CiphertextSizeMax {
		return false
	}

	switch cd.parms.scheme {
	case SchemeBFV:
		return ct.Scale == 1 && ct.CorrectionFactor == 1
	case SchemeCKKS:
		return ct.Scale != 0 && ct.CorrectionFactor == 1
	case SchemeBGV:
		return ct.Scale == 1 && ct.CorrectionFactor != 0 && ct.CorrectionFactor < cd.parms.plainModulus.Value()
	}

	return false
}

// IsBufferValid checks that every polynomial has the same dimensions.
func (ct Ciphertext) IsBufferValid() bool {
	N, limbs := ct.PolyModulusDegree(), ct.CoeffModulusSize()
	for _, p := range ct.Value {
		if p.N() != N || len(p.Coeffs) != limbs || len(p.Buff) != N*limbs {
			return false
		}
	}
	return ct.seed == nil
}

// IsDataValidFor checks the metadata and that every coefficient is reduced modulo its prime.
func (ct Ciphertext) IsDataValidFor(ctx *Context) bool {
	return ct.isDataValidFor(ctx, false)
}

func (ct Ciphertext) isDataValidFor(ctx *Context, allowKeyLevel bool) bool {

	if !ct.IsMetadataValidFor(ctx, allowKeyLevel) {
		return false
	}

	cd := ctx.GetContextData(ct.parmsID)
	for _, p := range ct.Value {
		for i, q := range cd.parms.coeffModulus {
			for _, c := range p.Coeffs[i] {
				if c >= q.Value() {
					return false
				}
			}
		}
	}

	return true
}

// IsValidFor checks the buffer and the data of the ciphertext.
func (ct Ciphertext) IsValidFor(ctx *Context) bool {
	return ct.IsBufferValid() && ct.IsDataValidFor(ctx)
}

// IsMetadataValidFor checks that the secret key is an NTT-form plaintext at the key level.
func (sk SecretKey) IsMetadataValidFor(ctx *Context) bool {
	return sk.Plaintext.IsMetadataValidFor(ctx, true) && sk.parmsID == ctx.KeyParmsID()
}

// IsDataValidFor checks the metadata and that every coefficient is reduced modulo its prime.
func (sk SecretKey) IsDataValidFor(ctx *Context) bool {

	if !sk.IsMetadataValidFor(ctx) {
		return false
	}

	cd := ctx.KeyContextData()
	N := cd.N()
	for i, q := range cd.parms.coeffModulus {
		for _, c := range sk.coeffs[i*N : (i+1)*N] {
			if c >= q.Value() {
				return false
			}
		}
	}

	return true
}

// IsValidFor checks the buffer and the data of the secret key.
func (sk SecretKey) IsValidFor(ctx *Context) bool {
	return sk.IsBufferValid() && sk.IsDataValidFor(ctx)
}

// IsMetadataValidFor checks that the public key is a ciphertext of size 2 in
// NTT form at the key level.
func (pk PublicKey) IsMetadataValidFor(ctx *Context) bool {
	return pk.Ciphertext.IsMetadataValidFor(ctx, true) && pk.IsNTTForm &&
		pk.parmsID == ctx.KeyParmsID() && len(pk.Value) == CiphertextSizeMin
}

// IsDataValidFor checks the metadata and that every coefficient is reduced modulo its prime.
func (pk PublicKey) IsDataValidFor(ctx *Context) bool {
	return pk.IsMetadataValidFor(ctx) && pk.Ciphertext.isDataValidFor(ctx, true)
}

// IsValidFor checks the buffer and the data of the public key.
func (pk PublicKey) IsValidFor(ctx *Context) bool {
	return pk.IsBufferValid() && pk.IsDataValidFor(ctx)
}

// IsMetadataValidFor checks that the keys are at the key level and that
// every non-empty key has one component per prime of the first data level.
func (ksk KSwitchKeys) IsMetadataValidFor(ctx *Context) bool {

	if ctx == nil || !ctx.ParametersSet() || ksk.parmsID != ctx.KeyParmsID() {
		return false
	}

	decompCount := len(ctx.FirstContextData().parms.coeffModulus)
	for _, k := range ksk.Keys {
		if len(k) != 0 && len(k) != decompCount {
			return false
		}
		for _, c := range k {
			if !c.IsMetadataValidFor(ctx) {
				return false
			}
		}
	}

	return true
}

// IsBufferValid checks the backing storage of every key.
func (ksk KSwitchKeys) IsBufferValid() bool {
	for _, k := range ksk.Keys {
		for _, c := range k {
			if !c.IsBufferValid() {
				return false
			}
		}
	}
	return true
}

// IsDataValidFor checks the metadata and the data of every key.
func (ksk KSwitchKeys) IsDataValidFor(ctx *Context) bool {

	if !ksk.IsMetadataValidFor(ctx) {
		return false
	}

	for _, k := range ksk.Keys {
		for _, c := range k {
			if !c.IsDataValidFor(ctx) {
				return false
			}
		}
	}

	return true
}

// IsValidFor checks the buffer and the data of the keys.
func (ksk KSwitchKeys) IsValidFor(ctx *Context) bool {
	return ksk.IsBufferValid() && ksk.IsDataValidFor(ctx)
}

// IsValidFor checks the keys and that their number is at most [CiphertextSizeMax]-2.
func (rlk RelinKeys) IsValidFor(ctx *Context) bool {
	return len(rlk.Keys) <= CiphertextSizeMax-2 && rlk.KSwitchKeys.IsValidFor(ctx)
}

// IsValidFor checks the keys and that their number is at most N.
func (gk GaloisKeys) IsValidFor(ctx *Context) bool {
	return gk.KSwitchKeys.IsValidFor(ctx) && len(gk.Keys) <= ctx.KeyContextData().N()
}
