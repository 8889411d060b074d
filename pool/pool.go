// Package pool implements the bounded object pool the connection state
// machine borrows Request/Response/Connection objects from (spec L6).
//
// The spec's pool is deliberately not rendered as sync.Pool: sync.Pool may
// evict idle items at any GC cycle, objects it returns are not guaranteed
// to have been the least-recently-released, and it offers no way to learn
// how many objects exist in total. The spec's pool tracks exactly that: a
// FIFO of free objects and the full set of objects it ever allocated, so a
// caller can size pools deterministically and reason about peak usage.
// Grounded on the Acquire/Release/Warmup API shape of
// bolt/core/context_pool.go, reimplemented over two plain slices guarded by
// a mutex instead of sync.Pool.
package pool

import "sync"

// Pool is a bounded, FIFO object pool for *T. New objects are constructed
// with the factory given to New only when the free list is empty and the
// pool has not yet reached its configured maximum.
type Pool[T any] struct {
	mu sync.Mutex

	factory func() *T
	reset   func(*T)

	allObjects  []*T
	freeObjects []*T

	max int
}

// New creates a pool that constructs new objects with factory and, on
// Put, resets them with reset (which may be nil if objects need no
// clearing). max bounds the total number of objects the pool will ever
// hold; Get blocks callers are expected to handle via their own
// backpressure (the pool itself never blocks — Get beyond max simply
// allocates an object that bypasses the pool, matching the spec's
// "never refuse service, degrade instead" stance).
func New[T any](factory func() *T, reset func(*T), max int) *Pool[T] {
	return &Pool[T]{
		factory:     factory,
		reset:       reset,
		allObjects:  make([]*T, 0, max),
		freeObjects: make([]*T, 0, max),
		max:         max,
	}
}

// Get removes and returns the oldest free object (FIFO), constructing a new
// one if the free list is empty and the pool has not reached max; beyond
// max it still constructs a new object, but that object is never tracked
// in allObjects and is not returned by Put (so pool growth stays bounded by
// `max`, at the cost of passing unpooled objects straight through under
// load spikes).
func (p *Pool[T]) Get() *T {
	p.mu.Lock()
	if n := len(p.freeObjects); n > 0 {
		obj := p.freeObjects[0]
		p.freeObjects = p.freeObjects[1:]
		p.mu.Unlock()
		return obj
	}
	tracked := len(p.allObjects) < p.max
	p.mu.Unlock()

	obj := p.factory()
	if tracked {
		p.mu.Lock()
		if len(p.allObjects) < p.max {
			p.allObjects = append(p.allObjects, obj)
		}
		p.mu.Unlock()
	}
	return obj
}

// Put returns obj to the free list, resetting it first. Objects that were
// never tracked in allObjects (constructed past max) are reset and
// discarded — the pool intentionally does not grow its retained set past
// max just because Put was called more often than Get.
func (p *Pool[T]) Put(obj *T) {
	if p.reset != nil {
		p.reset(obj)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, tracked := range p.allObjects {
		if tracked == obj {
			p.freeObjects = append(p.freeObjects, obj)
			return
		}
	}
}

// Warmup pre-allocates count objects (bounded by max) so steady-state
// traffic never pays a cold construction cost.
func (p *Pool[T]) Warmup(count int) {
	if count > p.max {
		count = p.max
	}
	objs := make([]*T, 0, count)
	for i := 0; i < count; i++ {
		objs = append(objs, p.Get())
	}
	for _, obj := range objs {
		p.Put(obj)
	}
}

// Len returns the number of objects currently on the free list.
func (p *Pool[T]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.freeObjects)
}

// Allocated returns the total number of objects this pool has ever
// constructed and tracked (bounded by max).
func (p *Pool[T]) Allocated() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.allObjects)
}
