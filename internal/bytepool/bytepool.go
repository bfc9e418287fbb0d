// Package bytepool provides the fixed-size buffer reuse component named in
// the system overview as the "ByteArray pool": heap buffers handed out with
// an explicit, caller-requested size and returned for reuse once the caller
// is done with them.
//
// It is a thin wrapper around github.com/libp2p/go-buffer-pool's size-classed
// free lists rather than a hand-rolled allocator.
package bytepool

import (
	pool "github.com/libp2p/go-buffer-pool"
)

// Pool hands out byte slices of a requested length, reusing previously
// returned buffers of a matching size class where possible.
//
// The zero value is ready to use; Pool is safe for concurrent use.
type Pool struct {
	bp pool.BufferPool
}

// Get returns a buffer of exactly the requested length. The contents are not
// guaranteed to be zeroed.
func (p *Pool) Get(size int) []byte {
	return p.bp.Get(size)
}

// Put returns a buffer to the pool. The caller must not use buf after this
// call; the engine never retains a pointer into a pooled buffer past the
// point it returns it.
func (p *Pool) Put(buf []byte) {
	p.bp.Put(buf)
}
