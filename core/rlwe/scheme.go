package rlwe

import (
	"fmt"
	"strings"
)

// SchemeType identifies the homomorphic encryption scheme of a parameter set.
type SchemeType uint8

const (
	SchemeNone SchemeType = 0x0
	SchemeBFV  SchemeType = 0x1
	SchemeCKKS SchemeType = 0x2
	SchemeBGV  SchemeType = 0x3
)

// IsValid returns true if the scheme is one of the supported schemes or [SchemeNone].
func (s SchemeType) IsValid() bool {
	return s <= SchemeBGV
}

// HasPlainModulus returns true if the scheme encodes messages modulo a plaintext modulus.
func (s SchemeType) HasPlainModulus() bool {
	return s == SchemeBFV || s == SchemeBGV
}

func (s SchemeType) String() string {
	switch s {
	case SchemeNone:
		return "none"
	case SchemeBFV:
		return "bfv"
	case SchemeCKKS:
		return "ckks"
	case SchemeBGV:
		return "bgv"
	default:
		return fmt.Sprintf("SchemeType(%d)", uint8(s))
	}
}

// MarshalText encodes the scheme by its name.
func (s SchemeType) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("%w: unsupported scheme %d", ErrInvalidArgument, uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes a scheme name.
func (s *SchemeType) UnmarshalText(p []byte) error {
	switch strings.ToLower(string(p)) {
	case "none", "":
		*s = SchemeNone
	case "bfv":
		*s = SchemeBFV
	case "ckks":
		*s = SchemeCKKS
	case "bgv":
		*s = SchemeBGV
	default:
		return fmt.Errorf("%w: unknown scheme %q", ErrInvalidArgument, p)
	}
	return nil
}
