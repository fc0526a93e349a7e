// File: pool/bytepool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import "sync/atomic"

// BytePool hands out byte slices of one fixed length.
type BytePool struct {
	objs  *Typed[*[]byte]
	size  int
	inUse atomic.Int64
}

// NewBytePool creates a pool of size-byte buffers.
func NewBytePool(size int) *BytePool {
	if size <= 0 {
		panic("pool: buffer size must be positive")
	}
	return &BytePool{
		objs: NewTyped(func() *[]byte {
			b := make([]byte, size)
			return &b
		}),
		size: size,
	}
}

// Size returns the length of every buffer handed out.
func (b *BytePool) Size() int { return b.size }

// GetBuffer returns a buffer from the pool.
func (b *BytePool) GetBuffer() []byte {
	b.inUse.Add(1)
	p := b.objs.Get()
	return (*p)[:b.size]
}

// PutBuffer returns a buffer to the pool. Foreign-sized slices are dropped.
func (b *BytePool) PutBuffer(buf []byte) {
	if buf == nil {
		return
	}
	b.inUse.Add(-1)
	if cap(buf) < b.size {
		return
	}
	buf = buf[:b.size]
	b.objs.Put(&buf)
}

// InUse reports how many buffers are currently checked out.
func (b *BytePool) InUse() int64 { return b.inUse.Load() }
