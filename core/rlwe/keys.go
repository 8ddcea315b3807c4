package rlwe

import (
	"bufio"
	"fmt"
	"io"

	"github.com/levelhe/levelhe/ring"
	"github.com/levelhe/levelhe/utils/buffer"
	"github.com/levelhe/levelhe/utils/sampling"
	"github.com/levelhe/levelhe/utils/serialization"
)

// SecretKey is a ternary polynomial in NTT form at the key level.
// Its coefficients must be erased with [SecretKey.Zeroize] once the key is
// no longer needed.
type SecretKey struct {
	Plaintext
}

// Zeroize overwrites the coefficients of the secret key with random words
// and empties it. The key is no longer valid afterward.
func (sk *SecretKey) Zeroize() {
	zeroize(sk.coeffs[:cap(sk.coeffs)])
	sk.coeffs = sk.coeffs[:0]
}

// zeroize overwrites buff with random words, or with zeros if the
// randomness of the system cannot be read.
func zeroize(buff []uint64) {
	if err := sampling.ReadUint64Slice(sampling.NewPRNG(), buff); err != nil {
		clear(buff)
	}
}

// CopyNew returns a deep copy of the secret key.
func (sk SecretKey) CopyNew() *SecretKey {
	return &SecretKey{Plaintext: *sk.Plaintext.CopyNew()}
}

// Equal returns true if the two keys are equal.
func (sk SecretKey) Equal(other *SecretKey) bool {
	return other != nil && sk.Plaintext.Equal(&other.Plaintext)
}

// Load reads a secret key written by [SecretKey.Save] from r and checks that
// it is valid for ctx.
func (sk *SecretKey) Load(ctx *Context, r io.Reader) (n int64, err error) {
	var tmp SecretKey
	if n, err = tmp.Plaintext.UnsafeLoad(ctx, r); err != nil {
		return
	}
	if !tmp.IsValidFor(ctx) {
		return n, fmt.Errorf("%w: secret key data is invalid for the encryption parameters", ErrInvalidArgument)
	}
	*sk = tmp
	return
}

// PublicKey is an encryption of zero of size 2 in NTT form at the key level.
type PublicKey struct {
	Ciphertext
}

// CopyNew returns a deep copy of the public key.
func (pk PublicKey) CopyNew() *PublicKey {
	return &PublicKey{Ciphertext: *pk.Ciphertext.CopyNew()}
}

// Equal returns true if the two keys are equal.
func (pk PublicKey) Equal(other *PublicKey) bool {
	return other != nil && pk.Ciphertext.Equal(&other.Ciphertext)
}

// Load reads a public key written by [PublicKey.Save] from r and checks that
// it is valid for ctx.
func (pk *PublicKey) Load(ctx *Context, r io.Reader) (n int64, err error) {
	var tmp PublicKey
	if n, err = tmp.Ciphertext.UnsafeLoad(ctx, r); err != nil {
		return
	}
	if !tmp.IsValidFor(ctx) {
		return n, fmt.Errorf("%w: public key data is invalid for the encryption parameters", ErrInvalidArgument)
	}
	*pk = tmp
	return
}

// KSwitchKeys is a collection of key switching keys. A key switching key is
// a vector of encryptions of zero at the key level, one per prime of the
// first data level, the j-th one also encrypting the j-th RNS digit of the
// new secret scaled by the special prime. Empty entries are allowed.
type KSwitchKeys struct {
	parmsID ParmsID
	Keys    [][]PublicKey
}

// ParmsID returns the fingerprint of the key level.
func (ksk KSwitchKeys) ParmsID() ParmsID {
	return ksk.parmsID
}

// Size returns the number of non-empty key switching keys.
func (ksk KSwitchKeys) Size() (size int) {
	for _, k := range ksk.Keys {
		if len(k) > 0 {
			size++
		}
	}
	return
}

// hasKeyAt returns true if the entry at index is not empty.
func (ksk KSwitchKeys) hasKeyAt(index int) bool {
	return index >= 0 && index < len(ksk.Keys) && len(ksk.Keys[index]) > 0
}

// Equal returns true if the two collections are equal.
func (ksk KSwitchKeys) Equal(other *KSwitchKeys) bool {
	if other == nil || ksk.parmsID != other.parmsID || len(ksk.Keys) != len(other.Keys) {
		return false
	}
	for i := range ksk.Keys {
		if len(ksk.Keys[i]) != len(other.Keys[i]) {
			return false
		}
		for j := range ksk.Keys[i] {
			if !ksk.Keys[i][j].Equal(&other.Keys[i][j]) {
				return false
			}
		}
	}
	return true
}

// BinarySize returns the serialized size of the object in bytes.
func (ksk KSwitchKeys) BinarySize() (size int) {
	size = 32 + 8
	for _, k := range ksk.Keys {
		size += 8
		for _, c := range k {
			size += c.BinarySize()
		}
	}
	return
}

// WriteTo writes the object on an [io.Writer].
func (ksk KSwitchKeys) WriteTo(w io.Writer) (n int64, err error) {
	switch w := w.(type) {
	case buffer.Writer:

		var inc int64

		if inc, err = buffer.WriteUint64Slice(w, ksk.parmsID[:]); err != nil {
			return n + inc, err
		}
		n += inc

		if inc, err = buffer.WriteUint64(w, uint64(len(ksk.Keys))); err != nil {
			return n + inc, err
		}
		n += inc

		for _, k := range ksk.Keys {

			if inc, err = buffer.WriteUint64(w, uint64(len(k))); err != nil {
				return n + inc, err
			}
			n += inc

			for _, c := range k {
				if inc, err = c.WriteTo(w); err != nil {
					return n + inc, err
				}
				n += inc
			}
		}

		return n, nil

	default:
		bw := bufio.NewWriter(w)
		if n, err = ksk.WriteTo(bw); err != nil {
			return
		}
		return n, bw.Flush()
	}
}

// ReadFrom reads on the object from an [io.Reader].
func (ksk *KSwitchKeys) ReadFrom(r io.Reader) (n int64, err error) {
	switch r := r.(type) {
	case buffer.Reader:

		var inc int64

		var id ParmsID
		if inc, err = buffer.ReadUint64Slice(r, id[:]); err != nil {
			return n + inc, err
		}
		n += inc

		var count uint64
		if inc, err = buffer.ReadUint64(r, &count); err != nil {
			return n + inc, err
		}
		n += inc

		// Galois keys are indexed by (galEl-1)/2 < N.
		if count > ring.PolyModulusDegreeMax {
			return n, fmt.Errorf("%w: key switching key count %d is out of range", ErrInvalidArgument, count)
		}

		keys := make([][]PublicKey, count)
		for i := range keys {

			var size uint64
			if inc, err = buffer.ReadUint64(r, &size); err != nil {
				return n + inc, err
			}
			n += inc

			if size > ring.CoeffModulusCountMax {
				return n, fmt.Errorf("%w: key switching key size %d is out of range", ErrInvalidArgument, size)
			}

			keys[i] = make([]PublicKey, size)
			for j := range keys[i] {
				if inc, err = keys[i][j].ReadFrom(r); err != nil {
					return n + inc, err
				}
				n += inc
			}
		}

		ksk.parmsID = id
		ksk.Keys = keys

		return n, nil

	default:
		return ksk.ReadFrom(bufio.NewReader(r))
	}
}

// SaveSize returns an upper bound on the number of bytes written by [KSwitchKeys.Save].
func (ksk KSwitchKeys) SaveSize(compr serialization.ComprModeType) (int, error) {
	return compr.SaveSize(ksk.BinarySize())
}

// Save writes the keys preceded by a serialization header on w.
func (ksk KSwitchKeys) Save(w io.Writer, compr serialization.ComprModeType) (int64, error) {
	return serialization.Save(w, compr, ksk)
}

// Load reads keys written by [KSwitchKeys.Save] from r, expands their seeds
// and checks that they are valid for ctx.
func (ksk *KSwitchKeys) Load(ctx *Context, r io.Reader) (n int64, err error) {
	var tmp KSwitchKeys
	if n, err = tmp.UnsafeLoad(ctx, r); err != nil {
		return
	}
	if !tmp.IsValidFor(ctx) {
		return n, fmt.Errorf("%w: key switching key data is invalid for the encryption parameters", ErrInvalidArgument)
	}
	*ksk = tmp
	return
}

// UnsafeLoad is identical to [KSwitchKeys.Load] but skips the validity check.
func (ksk *KSwitchKeys) UnsafeLoad(ctx *Context, r io.Reader) (n int64, err error) {

	if err = ctx.checkParametersSet(); err != nil {
		return
	}

	var tmp KSwitchKeys
	if n, err = serialization.Load(r, &tmp); err != nil {
		return
	}

	for i := range tmp.Keys {
		for j := range tmp.Keys[i] {
			if err = tmp.Keys[i][j].expandSeed(ctx); err != nil {
				return
			}
		}
	}

	*ksk = tmp
	return
}

// RelinKeys are the key switching keys from s^k to s, for k >= 2, stored at index k-2.
type RelinKeys struct {
	KSwitchKeys
}

// RelinKeyIndex returns the index of the key of s^power.
func RelinKeyIndex(power int) int {
	return power - 2
}

// HasKey returns true if the key of s^power is present.
func (rlk RelinKeys) HasKey(power int) bool {
	return rlk.hasKeyAt(RelinKeyIndex(power))
}

// Key returns the key of s^power.
func (rlk RelinKeys) Key(power int) ([]PublicKey, error) {
	if !rlk.HasKey(power) {
		return nil, fmt.Errorf("%w: relinearization key for power %d does not exist", ErrInvalidArgument, power)
	}
	return rlk.Keys[RelinKeyIndex(power)], nil
}

// Load reads keys written by [KSwitchKeys.Save] from r and checks that they
// are valid relinearization keys for ctx.
func (rlk *RelinKeys) Load(ctx *Context, r io.Reader) (n int64, err error) {
	var tmp RelinKeys
	if n, err = tmp.KSwitchKeys.UnsafeLoad(ctx, r); err != nil {
		return
	}
	if !tmp.IsValidFor(ctx) {
		return n, fmt.Errorf("%w: relinearization key data is invalid for the encryption parameters", ErrInvalidArgument)
	}
	*rlk = tmp
	return
}

// GaloisKeys are the key switching keys from s(X^galEl) to s, stored at index (galEl-1)/2.
type GaloisKeys struct {
	KSwitchKeys
}

// GaloisKeyIndex returns the index of the key of the Galois element galEl.
func GaloisKeyIndex(galEl uint64) int {
	return int((galEl - 1) >> 1)
}

// HasKey returns true if the key of the Galois element galEl is present.
func (gk GaloisKeys) HasKey(galEl uint64) bool {
	return galEl&1 == 1 && gk.hasKeyAt(GaloisKeyIndex(galEl))
}

// Key returns the key of the Galois element galEl.
func (gk GaloisKeys) Key(galEl uint64) ([]PublicKey, error) {
	if !gk.HasKey(galEl) {
		return nil, fmt.Errorf("%w: galois key for element %d does not exist", ErrInvalidArgument, galEl)
	}
	return gk.Keys[GaloisKeyIndex(galEl)], nil
}

// GaloisElements returns the Galois elements of the keys present, in increasing order.
func (gk GaloisKeys) GaloisElements() (galEls []uint64) {
	for i, k := range gk.Keys {
		if len(k) > 0 {
			galEls = append(galEls, uint64(2*i+1))
		}
	}
	return
}

// Load reads keys written by [KSwitchKeys.Save] from r and checks that they
// are valid Galois keys for ctx.
func (gk *GaloisKeys) Load(ctx *Context, r io.Reader) (n int64, err error) {
	var tmp GaloisKeys
	if n, err = tmp.KSwitchKeys.UnsafeLoad(ctx, r); err != nil {
		return
	}
	if !tmp.IsValidFor(ctx) {
		return n, fmt.Errorf("%w: galois key data is invalid for the encryption parameters", ErrInvalidArgument)
	}
	*gk = tmp
	return
}
