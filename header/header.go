// Package header implements the order-preserving, case-insensitive header
// list (spec L2) and the Cookie: header parser (spec L3).
//
// Grounded on shockwave/pkg/shockwave/http11/header.go's case-insensitive
// comparison, generalized from that file's fixed-array-plus-overflow-map
// storage to a plain ordered slice of (key, value) pairs bounded by
// capacity, since the spec models Headers as an ordered sequence with
// distinct append/put semantics rather than a lookup table. Keys and values
// are stored as given: Append and Put do not check them for CR or LF.
package header

import (
	"bytes"

	"github.com/miraimindz/embercore/errs"
)

// Pair is one (key, value) header entry. Key and Value are typically
// sub-slices of the request's scratch buffer and must not be retained past
// a Reset.
type Pair struct {
	Key   []byte
	Value []byte
}

// Headers is an ordered, bounded-capacity list of header pairs.
type Headers struct {
	pairs []Pair
	cap   int
}

// New creates a Headers list with room for at most capacity entries.
// Appending beyond capacity returns RequestHeaderFieldsTooLarge.
func New(capacity int) *Headers {
	return &Headers{pairs: make([]Pair, 0, capacity), cap: capacity}
}

// Len returns the number of stored header pairs.
func (h *Headers) Len() int { return len(h.pairs) }

// Cap returns the configured capacity.
func (h *Headers) Cap() int { return h.cap }

func eqFold(a, b []byte) bool { return bytes.EqualFold(a, b) }

// Append always adds a new pair, even if a header with the same key
// already exists (used for headers that are legitimately repeatable, e.g.
// Set-Cookie).
func (h *Headers) Append(key, value []byte) error {
	if len(h.pairs) >= h.cap {
		return errs.New(errs.KindRequestHeaderFieldsTooLarge, "header capacity exceeded")
	}
	h.pairs = append(h.pairs, Pair{Key: key, Value: value})
	return nil
}

// Put replaces the first case-insensitively matching entry, or appends if
// none exists.
func (h *Headers) Put(key, value []byte) error {
	for i := range h.pairs {
		if eqFold(h.pairs[i].Key, key) {
			h.pairs[i].Value = value
			return nil
		}
	}
	return h.Append(key, value)
}

// Get returns the value of the first case-insensitive match, or
// errs.ErrKeyNotFound.
func (h *Headers) Get(key []byte) ([]byte, error) {
	for _, p := range h.pairs {
		if eqFold(p.Key, key) {
			return p.Value, nil
		}
	}
	return nil, errs.ErrKeyNotFound
}

// GetOr returns the value of the first case-insensitive match, or def if
// absent.
func (h *Headers) GetOr(key []byte, def []byte) []byte {
	if v, err := h.Get(key); err == nil {
		return v
	}
	return def
}

// GetString is a convenience allocating wrapper around Get.
func (h *Headers) GetString(key string) (string, bool) {
	v, err := h.Get([]byte(key))
	if err != nil {
		return "", false
	}
	return string(v), true
}

// Contains reports whether key is present (case-insensitive).
func (h *Headers) Contains(key []byte) bool {
	_, err := h.Get(key)
	return err == nil
}

// Remove deletes all entries matching key (case-insensitive), returning how
// many were removed.
func (h *Headers) Remove(key []byte) int {
	n := 0
	out := h.pairs[:0]
	for _, p := range h.pairs {
		if eqFold(p.Key, key) {
			n++
			continue
		}
		out = append(out, p)
	}
	h.pairs = out
	return n
}

// Pop removes and returns the first entry matching key, if any.
func (h *Headers) Pop(key []byte) (Pair, bool) {
	for i, p := range h.pairs {
		if eqFold(p.Key, key) {
			h.pairs = append(h.pairs[:i], h.pairs[i+1:]...)
			return p, true
		}
	}
	return Pair{}, false
}

// Eql reports whether key's value equals want (byte-exact).
func (h *Headers) Eql(key, want []byte) bool {
	v, err := h.Get(key)
	return err == nil && bytes.Equal(v, want)
}

// EqlIgnoreCase reports whether key's value equals want, ignoring case.
func (h *Headers) EqlIgnoreCase(key, want []byte) bool {
	v, err := h.Get(key)
	return err == nil && bytes.EqualFold(v, want)
}

// Reset empties the list for reuse, retaining the backing array.
func (h *Headers) Reset() {
	h.pairs = h.pairs[:0]
}

// VisitAll calls fn for each header pair in insertion order; iteration
// stops early if fn returns false.
func (h *Headers) VisitAll(fn func(key, value []byte) bool) {
	for _, p := range h.pairs {
		if !fn(p.Key, p.Value) {
			return
		}
	}
}

// CountOf returns how many stored entries match key case-insensitively
// (used by the parser to detect duplicate Host/Content-Length headers).
func (h *Headers) CountOf(key []byte) int {
	n := 0
	for _, p := range h.pairs {
		if eqFold(p.Key, key) {
			n++
		}
	}
	return n
}
