package rlwe

import (
	"io"

	"github.com/levelhe/levelhe/utils/serialization"
)

// Serializable wraps an object whose pseudo-random half is stored as a seed.
// It can only be saved: once loaded back with the Load method of the wrapped
// type, the seed is expanded and the object can be used for computation.
type Serializable[T serialization.Payload] struct {
	obj T
}

func newSerializable[T serialization.Payload](obj T) *Serializable[T] {
	return &Serializable[T]{obj: obj}
}

// SaveSize returns an upper bound on the number of bytes written by [Serializable.Save].
func (s Serializable[T]) SaveSize(compr serialization.ComprModeType) (int, error) {
	return compr.SaveSize(s.obj.BinarySize())
}

// Save writes the wrapped object preceded by a serialization header on w.
func (s Serializable[T]) Save(w io.Writer, compr serialization.ComprModeType) (int64, error) {
	return serialization.Save(w, compr, s.obj)
}
