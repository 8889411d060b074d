// Package router implements the route table (spec L7): a static hash map
// for literal paths and a small radix tree per method for paths carrying
// :param or *wildcard segments. Routes are matched by specificity, not by
// registration order: an exact literal path wins, then at each segment a
// literal child, then a :param child, then a *wildcard child. Registering
// the same method and path again replaces the earlier handler.
//
// Grounded on bolt/core/router.go's static-map-plus-radix-tree hybrid,
// simplified from its unsafe zero-copy / cache-line-packed node layout to
// a plain map[byte]*node child index — this core routes at connection
// rate, not at bolt's in-process benchmark rate, so the simpler node shape
// trades a few nanoseconds of lookup time for a much smaller, easier to
// reason about implementation.
package router

import (
	"strings"
	"sync"

	"github.com/miraimindz/embercore/httpcore"
)

// Handler processes one request/response pair. Handlers never return an
// error directly; failures are reported by writing an appropriate status
// to resp, matching the spec's "errors become responses" design (see
// SPEC_FULL.md's error handling section).
type Handler func(req *httpcore.Request, resp *httpcore.Response, params *Params)

// Params holds path parameters extracted during a Lookup; each value is a
// copy of the matched path segment(s), not a slice of the request path.
// Reused across lookups on the same connection (Lookup resets it).
type Params struct {
	keys   [][]byte
	values [][]byte
}

// Get returns the value bound to name, or nil, false if name was not
// matched by the route.
func (p *Params) Get(name string) ([]byte, bool) {
	for i, k := range p.keys {
		if string(k) == name {
			return p.values[i], true
		}
	}
	return nil, false
}

func (p *Params) reset() {
	p.keys = p.keys[:0]
	p.values = p.values[:0]
}

func (p *Params) add(key, value []byte) {
	p.keys = append(p.keys, key)
	p.values = append(p.values, value)
}

type node struct {
	segment  string // static text, or ":name" / "*name"
	isParam  bool
	isWild   bool
	paramKey []byte

	children map[byte]*node
	handler  Handler
}

// Router is a per-application route table, one radix tree per method plus
// a shared static map for literal paths.
type Router struct {
	mu     sync.RWMutex
	static map[string]Handler // key: "METHOD PATH"
	trees  map[httpcore.Method]*node
}

// New creates an empty Router.
func New() *Router {
	return &Router{
		static: make(map[string]Handler),
		trees:  make(map[httpcore.Method]*node),
	}
}

// Handle registers handler for method and path. Paths containing a ":name"
// or "*name" segment are routed through the radix tree; all other paths
// use the O(1) static map.
func (r *Router) Handle(method httpcore.Method, path string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !strings.ContainsAny(path, ":*") {
		r.static[staticKey(method, path)] = handler
		return
	}

	root := r.trees[method]
	if root == nil {
		root = &node{children: make(map[byte]*node)}
		r.trees[method] = root
	}
	addRoute(root, splitSegments(path), handler)
}

// Static registers handler for an exact literal path (convenience wrapper
// that documents intent at call sites; behaves identically to Handle for
// a path with no ":"/"*").
func (r *Router) Static(method httpcore.Method, path string, handler Handler) {
	r.Handle(method, path, handler)
}

// Websocket registers a handler for a path that expects an Upgrade:
// websocket request; it is stored exactly like any other route — the
// distinction between a regular and a WebSocket handler lives in how the
// handler itself reacts to Request.WantsWebsocketUpgrade, not in routing.
func (r *Router) Websocket(path string, handler Handler) {
	r.Handle(httpcore.MethodGET, path, handler)
}

func staticKey(method httpcore.Method, path string) string {
	return method.String() + " " + path
}

func splitSegments(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func addRoute(root *node, segments []string, handler Handler) {
	current := root
	for i, seg := range segments {
		isLast := i == len(segments)-1
		isParam := len(seg) > 0 && seg[0] == ':'
		isWild := len(seg) > 0 && seg[0] == '*'

		child := findOrCreateChild(current, seg, isParam, isWild)
		current = child
		if isWild {
			child.handler = handler
			return
		}
		if isLast {
			child.handler = handler
		}
	}
}

func findOrCreateChild(parent *node, segment string, isParam, isWild bool) *node {
	label := childLabel(segment, isParam, isWild)
	if existing, ok := parent.children[label]; ok && existing.segment == segment {
		return existing
	}
	child := &node{segment: segment, isParam: isParam, isWild: isWild, children: make(map[byte]*node)}
	if isParam {
		child.paramKey = []byte(segment[1:])
	} else if isWild {
		child.paramKey = []byte(segment[1:])
	}
	parent.children[label] = child
	return child
}

// childLabel buckets param/wildcard nodes under a sentinel label distinct
// from any valid path byte, so a literal child segment never collides with
// a param child at the same position (mirrors bolt's isParam/isWild node
// flags gating the match, just keyed instead of scanned).
func childLabel(segment string, isParam, isWild bool) byte {
	switch {
	case isParam:
		return 0x00
	case isWild:
		return 0x01
	case len(segment) == 0:
		return 0x02
	default:
		return segment[0]
	}
}

// Lookup finds the handler registered for method and path, populating
// params with any :name/*name bindings. params must be reset by the
// caller (via Params.reset, invoked here) before each lookup; the returned
// bool reports whether a route matched at all.
func (r *Router) Lookup(method httpcore.Method, path string, params *Params) (Handler, bool) {
	params.reset()

	r.mu.RLock()
	defer r.mu.RUnlock()

	if h, ok := r.static[staticKey(method, path)]; ok {
		return h, true
	}

	root := r.trees[method]
	if root == nil {
		return nil, false
	}
	segments := splitSegments(path)
	h := searchNode(root, segments, 0, params)
	return h, h != nil
}

func searchNode(n *node, segments []string, idx int, params *Params) Handler {
	if n == nil {
		return nil
	}
	if idx >= len(segments) {
		return n.handler
	}
	seg := segments[idx]

	// Literal child match, tried first (most specific).
	if child, ok := n.children[segWithLabel(seg)]; ok && !child.isParam && !child.isWild {
		if h := searchNode(child, segments, idx+1, params); h != nil {
			return h
		}
	}
	// Param child: binds this segment and continues.
	if child, ok := n.children[0x00]; ok {
		params.add(child.paramKey, []byte(seg))
		if h := searchNode(child, segments, idx+1, params); h != nil {
			return h
		}
		// Undo speculative binding on backtrack.
		params.keys = params.keys[:len(params.keys)-1]
		params.values = params.values[:len(params.values)-1]
	}
	// Wildcard child: binds the remainder of the path and terminates.
	if child, ok := n.children[0x01]; ok {
		rest := strings.Join(segments[idx:], "/")
		params.add(child.paramKey, []byte(rest))
		return child.handler
	}
	return nil
}

func segWithLabel(seg string) byte {
	if len(seg) == 0 {
		return 0x02
	}
	return seg[0]
}

// NewParams allocates an empty Params with room for typical path depths.
func NewParams() *Params {
	return &Params{keys: make([][]byte, 0, 8), values: make([][]byte, 0, 8)}
}
