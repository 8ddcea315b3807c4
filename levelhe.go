/*
Package levelhe is a pure Go implementation of leveled Homomorphic Encryption over
the Residue Number System. It provides the BFV and BGV schemes for exact modular
arithmetic on encrypted integer vectors and the CKKS scheme for approximate
arithmetic on encrypted real or complex vectors.

The engine lives in core/rlwe: encryption parameters and their modulus switching
chain, key generation, encryption, decryption and homomorphic evaluation. The
encoders of each scheme live under schemes/. Every object can be saved to and
loaded from a stream in a versioned, optionally compressed, binary format.
*/
package levelhe

import "github.com/levelhe/levelhe/utils/serialization"

// Version of the binary format written by the Save methods of the library.
const (
	VersionMajor = serialization.VersionMajor
	VersionMinor = serialization.VersionMinor
)
