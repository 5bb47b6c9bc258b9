package optimize

import (
	"sync"
)

// BytePool is a pool of fixed-size byte slices, used for RTP read buffers.
type BytePool struct {
	pool sync.Pool
	size int
}

// NewBytePool creates a new byte pool with specified size
func NewBytePool(size int) *BytePool {
	return &BytePool{
		size: size,
		pool: sync.Pool{
			New: func() interface{} {
				b := make([]byte, size)
				return &b
			},
		},
	}
}

// Get gets a byte slice from the pool
func (p *BytePool) Get() []byte {
	return *(p.pool.Get().(*[]byte))
}

// Put returns a byte slice to the pool
func (p *BytePool) Put(b []byte) {
	// Only put back if it's the right size
	if cap(b) >= p.size {
		b = b[:p.size]
		p.pool.Put(&b)
	}
}

// Float32Pool recycles scratch planes for image filters. Contents of a
// returned slice are undefined.
type Float32Pool struct {
	pool sync.Pool
}

// Get returns a slice of length n.
func (p *Float32Pool) Get(n int) []float32 {
	if v, ok := p.pool.Get().(*[]float32); ok && cap(*v) >= n {
		return (*v)[:n]
	}
	return make([]float32, n)
}

// Put returns a plane to the pool.
func (p *Float32Pool) Put(s []float32) {
	if cap(s) == 0 {
		return
	}
	p.pool.Put(&s)
}
