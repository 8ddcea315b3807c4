// Package schemes contains the encoders of the implemented cryptosystems.
// The homomorphic operations of the three schemes are implemented by
// [rlwe.Evaluator].
package schemes

import "github.com/levelhe/levelhe/core/rlwe"

// Encoder is a scheme-agnostic encoding interface.
// The type of values depends on the encoder.
type Encoder interface {
	SlotCount() int
	Encode(values interface{}, pt *rlwe.Plaintext) error
	Decode(pt *rlwe.Plaintext, values interface{}) error
}
