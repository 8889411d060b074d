package header

import "github.com/miraimindz/embercore/errs"

// Cookies is the capacity-bounded, deferred-parse Cookie: header model
// (spec L3). It parses "k=v; k=v; ..." lazily: Parse must be called
// explicitly (typically by the request parser, once, per request) and is
// idempotent. Entries without '=' are skipped. Key comparison is
// deliberately case-sensitive, matching browser semantics (see
// SPEC_FULL.md Open Questions).
type Cookies struct {
	pairs  []Pair
	cap    int
	parsed bool
}

// NewCookies creates a Cookies list bounded to capacity entries.
func NewCookies(capacity int) *Cookies {
	return &Cookies{pairs: make([]Pair, 0, capacity), cap: capacity}
}

// Parse populates the list from a raw Cookie header value. Calling it
// again with the same input leaves the list unchanged (idempotent); a
// second Parse with different input re-derives the list from scratch,
// since the spec's idempotency guarantee only promises stability for
// repeated calls on the *same* header value, not across distinct ones.
func (c *Cookies) Parse(value []byte) error {
	c.pairs = c.pairs[:0]
	c.parsed = true

	i := 0
	for i < len(value) {
		// Skip leading separators/whitespace.
		for i < len(value) && (value[i] == ' ' || value[i] == ';') {
			i++
		}
		if i >= len(value) {
			break
		}
		start := i
		eq := -1
		for i < len(value) && value[i] != ';' {
			if value[i] == '=' && eq == -1 {
				eq = i
			}
			i++
		}
		segment := value[start:i]
		if eq == -1 {
			continue // entries without '=' are skipped
		}
		key := segment[:eq-start]
		val := segment[eq-start+1:]
		if len(c.pairs) >= c.cap {
			return errs.New(errs.KindRequestHeaderFieldsTooLarge, "cookie capacity exceeded")
		}
		c.pairs = append(c.pairs, Pair{Key: key, Value: val})
	}
	return nil
}

// Get returns the value for key (case-sensitive), or errs.ErrKeyNotFound.
// Queries before Parse has been called return absent, per spec.
func (c *Cookies) Get(key []byte) ([]byte, error) {
	if !c.parsed {
		return nil, errs.ErrKeyNotFound
	}
	for _, p := range c.pairs {
		if string(p.Key) == string(key) {
			return p.Value, nil
		}
	}
	return nil, errs.ErrKeyNotFound
}

// Len returns the number of parsed cookie pairs.
func (c *Cookies) Len() int { return len(c.pairs) }

// VisitAll calls fn for each cookie pair in parse order.
func (c *Cookies) VisitAll(fn func(key, value []byte) bool) {
	for _, p := range c.pairs {
		if !fn(p.Key, p.Value) {
			return
		}
	}
}

// Reset clears parsed state for reuse across requests.
func (c *Cookies) Reset() {
	c.pairs = c.pairs[:0]
	c.parsed = false
}
