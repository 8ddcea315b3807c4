// Package structs implements generic containers shared by the other packages.
package structs

import "sync"

// BufferPool is an interface for all pools of buffers.
type BufferPool[T any] interface {
	Get() (T, bool)
	Put(T)
}

// SyncPool is a wrapper around [sync.Pool] (it avoids doing type conversion after Get()).
// Unlike [sync.Pool], it does not create objects: an empty pool reports a miss
// so that the caller can account for the allocation.
type SyncPool[T any] struct {
	pool *sync.Pool
}

// NewSyncPool creates a new SyncPool.
func NewSyncPool[T any]() *SyncPool[T] {
	return &SyncPool[T]{pool: &sync.Pool{}}
}

// Get returns an object of type T from the pool.
// The second return value is false if the pool was empty.
func (spool *SyncPool[T]) Get() (t T, ok bool) {
	v := spool.pool.Get()
	if v == nil {
		return
	}
	return v.(T), true
}

// Put returns the buff to the pool.
func (spool *SyncPool[T]) Put(buff T) {
	spool.pool.Put(buff)
}
