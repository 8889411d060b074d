// Package arena implements a fixed-capacity bump allocator used for
// per-request scratch allocations (spec §5's arena allocator requirement).
//
// This is a plain []byte-backed bump allocator, not Go's experimental
// "arena" standard-library package — that package requires building with
// GOEXPERIMENT=arenas, which is unsuitable for code meant to be imported by
// an embedder's ordinary `go build`. The tradeoff is that Arena.Alloc
// returns normal Go-GC-managed slices rather than a hand-managed address
// space; the allocator still gets the thing the spec actually cares about,
// bump-pointer allocation with O(1) bulk reset, at the cost of not
// returning memory to the OS until the Arena itself is garbage collected.
package arena

import "github.com/miraimindz/embercore/errs"

// Arena is a single fixed-size buffer handed out in bump-pointer slices.
// Not safe for concurrent use; a connection's per-request Arena is only
// ever touched by that connection's goroutine.
type Arena struct {
	buf    []byte
	offset int
}

// New creates an Arena backed by a buffer of the given size.
func New(size int) *Arena {
	return &Arena{buf: make([]byte, size)}
}

// Alloc returns a slice of length n backed by the arena's buffer, advancing
// the bump pointer. Returns errs.KindOutOfMemory if the arena is
// exhausted — callers fall back to a heap allocation in that case, which is
// the safety valve the spec requires for the allocator to never wedge a
// connection.
func (a *Arena) Alloc(n int) ([]byte, error) {
	if a.offset+n > len(a.buf) {
		return nil, errs.New(errs.KindOutOfMemory, "arena exhausted")
	}
	b := a.buf[a.offset : a.offset+n : a.offset+n]
	a.offset += n
	return b, nil
}

// AllocOrFallback behaves like Alloc but returns a freshly heap-allocated
// slice instead of an error when the arena is exhausted.
func (a *Arena) AllocOrFallback(n int) []byte {
	if b, err := a.Alloc(n); err == nil {
		return b
	}
	return make([]byte, n)
}

// Reset rewinds the bump pointer to the start, making the whole buffer
// available again. Any slices previously returned by Alloc must not be used
// after Reset — their backing bytes will be overwritten by subsequent
// allocations.
func (a *Arena) Reset() {
	a.offset = 0
}

// Used returns the number of bytes currently allocated from the arena.
func (a *Arena) Used() int { return a.offset }

// Cap returns the arena's total capacity.
func (a *Arena) Cap() int { return len(a.buf) }

// Remaining returns the number of bytes still available before the arena
// is exhausted.
func (a *Arena) Remaining() int { return len(a.buf) - a.offset }
