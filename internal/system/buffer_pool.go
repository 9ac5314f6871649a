package system

import (
	"sync"
)

// BufferPool reuses byte slices of a fixed size, one sync.Pool per size,
// to keep per-frame readback buffers off the garbage collector.
type BufferPool struct {
	pools map[int]*sync.Pool
	mu    sync.RWMutex
}

func NewBufferPool() *BufferPool {
	return &BufferPool{pools: make(map[int]*sync.Pool)}
}

var globalPool = NewBufferPool()

// GetBuffer returns a slice of exactly size bytes from the shared pool.
func GetBuffer(size int) []byte {
	return globalPool.Get(size)
}

// PutBuffer hands a slice from GetBuffer back to the shared pool.
func PutBuffer(buf []byte) {
	globalPool.Put(buf)
}

// Get returns a slice of len size. Its contents are unspecified.
func (p *BufferPool) Get(size int) []byte {
	p.mu.RLock()
	pool, exists := p.pools[size]
	p.mu.RUnlock()

	if !exists {
		p.mu.Lock()
		pool, exists = p.pools[size]
		if !exists {
			pool = &sync.Pool{
				New: func() any {
					b := make([]byte, size)
					return &b
				},
			}
			p.pools[size] = pool
		}
		p.mu.Unlock()
	}
	return *pool.Get().(*[]byte)
}

// Put returns buf to the pool for its length. Unknown sizes are dropped.
func (p *BufferPool) Put(buf []byte) {
	if len(buf) == 0 {
		return
	}
	p.mu.RLock()
	pool, exists := p.pools[len(buf)]
	p.mu.RUnlock()

	if exists {
		pool.Put(&buf)
	}
}
