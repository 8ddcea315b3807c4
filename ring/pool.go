package ring

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/levelhe/levelhe/utils/structs"
)

// MemoryPool is a thread-safe pool of []uint64 buffers, indexed by buffer
// length, from which the temporary polynomials of the heavy operations are
// drawn. A pool can be given a limit on the number of bytes it hands out
// at any time, beyond which requests fail with [ErrOutOfMemory].
type MemoryPool struct {
	mu    sync.RWMutex
	pools map[int]*structs.SyncPool[*[]uint64]

	allocated atomic.Int64
	inUse     atomic.Int64
	limit     int64
}

var (
	defaultPool     *MemoryPool
	defaultPoolOnce sync.Once
)

// DefaultPool returns the process-wide [MemoryPool], created without limit on first use.
func DefaultPool() *MemoryPool {
	defaultPoolOnce.Do(func() {
		defaultPool = NewMemoryPool(0)
	})
	return defaultPool
}

// NewMemoryPool returns a new [MemoryPool]. A limit of zero means no limit.
func NewMemoryPool(limit int64) *MemoryPool {
	return &MemoryPool{
		pools: map[int]*structs.SyncPool[*[]uint64]{},
		limit: limit,
	}
}

// AllocByteCount returns the number of bytes allocated by the pool so far.
func (p *MemoryPool) AllocByteCount() int64 {
	return p.allocated.Load()
}

// InUseByteCount returns the number of bytes currently handed out by the pool.
func (p *MemoryPool) InUseByteCount() int64 {
	return p.inUse.Load()
}

func (p *MemoryPool) sizedPool(n int) *structs.SyncPool[*[]uint64] {

	p.mu.RLock()
	pool, ok := p.pools[n]
	p.mu.RUnlock()

	if ok {
		return pool
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if pool, ok = p.pools[n]; !ok {
		pool = structs.NewSyncPool[*[]uint64]()
		p.pools[n] = pool
	}

	return pool
}

// Get returns a zeroed buffer of length n.
// After use, the buffer should be given back with [MemoryPool.Put].
func (p *MemoryPool) Get(n int) (*[]uint64, error) {

	if n <= 0 {
		return nil, fmt.Errorf("%w: buffer length must be positive", ErrInvalidArgument)
	}

	size := int64(n) << 3

	if inUse := p.inUse.Add(size); p.limit > 0 && inUse > p.limit {
		p.inUse.Add(-size)
		return nil, fmt.Errorf("%w: pool limit of %d bytes exceeded", ErrOutOfMemory, p.limit)
	}

	if buff, ok := p.sizedPool(n).Get(); ok {
		clear(*buff)
		return buff, nil
	}

	p.allocated.Add(size)
	buff := make([]uint64, n)
	return &buff, nil
}

// Put gives the buffer back to the pool. The buffer must not be used afterward.
func (p *MemoryPool) Put(buff *[]uint64) {
	if buff == nil || len(*buff) == 0 {
		return
	}
	p.inUse.Add(-int64(len(*buff)) << 3)
	p.sizedPool(len(*buff)).Put(buff)
}

// GetPoly returns a zero polynomial of degree N with level+1 limbs backed by
// a single pooled buffer. After use, the polynomial should be given back
// with [MemoryPool.RecyclePoly].
func (p *MemoryPool) GetPoly(N, level int) (Poly, error) {
	buff, err := p.Get(N * (level + 1))
	if err != nil {
		return Poly{}, err
	}
	return NewPolyFromBuffer(*buff, N), nil
}

// RecyclePoly gives the backing buffer of pol back to the pool.
// pol must have been obtained from [MemoryPool.GetPoly] and not resized.
func (p *MemoryPool) RecyclePoly(pol Poly) {
	buff := pol.Buff
	p.Put(&buff)
}
