// File: pool/objpool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import "sync"

// Typed is a sync.Pool restricted to one element type.
type Typed[T any] struct {
	p sync.Pool
}

// NewTyped returns a pool that calls alloc when empty.
func NewTyped[T any](alloc func() T) *Typed[T] {
	t := &Typed[T]{}
	t.p.New = func() any { return alloc() }
	return t
}

func (t *Typed[T]) Get() T  { return t.p.Get().(T) }
func (t *Typed[T]) Put(v T) { t.p.Put(v) }
