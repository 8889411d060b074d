package httpcore

import (
	"github.com/miraimindz/embercore/header"
)

// HTTPVersion is the negotiated protocol version token (spec §3, Open
// Question resolved "later": the version stored is whichever the client
// sent, and keep-alive defaulting is derived from it at response time
// rather than normalized away during parsing).
type HTTPVersion uint8

const (
	HTTPVersionUnknown HTTPVersion = iota
	HTTPVersion10
	HTTPVersion11
)

func (v HTTPVersion) String() string {
	switch v {
	case HTTPVersion10:
		return "HTTP/1.0"
	case HTTPVersion11:
		return "HTTP/1.1"
	default:
		return "HTTP/?.?"
	}
}

// BodyMode records how the request body was framed on the wire, since the
// connection state machine needs this after headers are parsed but before
// the body is read (spec §4.4 read_body dispatch).
type BodyMode uint8

const (
	BodyModeNone BodyMode = iota
	BodyModeFixedLength
	BodyModeChunked
)

// Request is the pooled, zero-copy-where-possible request object (spec L4 /
// §3 DATA MODEL). Every []byte field aliases either the connection's
// negotiated scratch buffer (after IOStream.SwapBuffer hands ownership to
// this Request) or, for header continuation lines, a small heap copy
// produced by header.ParseBulk. Fields are only valid until Reset is
// called for the next request on this connection.
//
// Grounded on shockwave/pkg/shockwave/http11/request.go's field set,
// restructured to the spec's explicit attribute list.
type Request struct {
	Method  Method
	Version HTTPVersion
	Scheme  Scheme

	// RequestTarget is the raw request-target as sent (origin-form path+query,
	// absolute-form full URI, or "*" for asterisk-form).
	RequestTarget []byte

	// Path is the raw path component as sent (no percent-decoding is
	// applied), Query is the raw query string (undecoded; callers decode individual params
	// on demand to avoid allocating for requests that never read them).
	Path  []byte
	Query []byte

	Host []byte

	ContentLength int64 // -1 before parsing and for chunked bodies; 0 if the header is absent
	BodyMode      BodyMode

	Headers *header.Headers
	Cookies *header.Cookies

	// Body holds the request body once ReadBodyInMemory has read it in
	// full; both fixed-length and chunked bodies are buffered here. It is
	// nil until then.
	Body []byte

	// HeadSlice is the raw bytes of the request line + headers, as consumed
	// from the wire, kept for access-log style consumers that want the
	// original bytes rather than the parsed structure.
	HeadSlice []byte

	// ReadFinished is set once the full body (if any) has been consumed,
	// so the connection state machine knows the wire is positioned at the
	// start of the next request.
	ReadFinished bool

	// ClientAddress is the peer address string, copied once per connection
	// rather than per request.
	ClientAddress string

	// scratch is the buffer this Request's slices are swapped into; owned by
	// the Request so it survives IOStream buffer reuse. Sized generously and
	// reused across requests on keep-alive connections.
	scratch []byte
}

// NewRequest allocates a Request with its own scratch buffer of the given
// size and header/cookie tables sized to the given limits.
func NewRequest(scratchSize, maxHeaders, maxCookies int) *Request {
	return &Request{
		Headers:       header.New(maxHeaders),
		Cookies:       header.NewCookies(maxCookies),
		scratch:       make([]byte, scratchSize),
		ContentLength: -1,
	}
}

// Scratch returns the Request's owned scratch buffer, for IOStream.SwapBuffer
// to copy into.
func (r *Request) Scratch() []byte { return r.scratch }

// Reset clears all fields for reuse by the next request on this connection
// (or by the next borrower from the request pool), retaining the scratch
// buffer and header/cookie table allocations.
func (r *Request) Reset() {
	r.Method = MethodUnknown
	r.Version = HTTPVersionUnknown
	r.Scheme = SchemeNone
	r.RequestTarget = nil
	r.Path = nil
	r.Query = nil
	r.Host = nil
	r.ContentLength = -1
	r.BodyMode = BodyModeNone
	r.Headers.Reset()
	r.Cookies.Reset()
	r.Body = nil
	r.HeadSlice = nil
	r.ReadFinished = false
}

// HeaderValue is a convenience wrapper used by handlers to fetch a header by
// string key without the caller needing to allocate a []byte every call
// site; the underlying []byte key literal is only ever evaluated once since
// Go interns string-to-[]byte conversions of constant strings in some
// compilers, but correctness does not depend on that optimization.
func (r *Request) HeaderValue(key string) (string, bool) {
	return r.Headers.GetString(key)
}

// IsKeepAlive reports whether this request's Connection semantics (combined
// with its HTTP version) keep the connection open after the response is
// sent. HTTP/1.1 defaults to keep-alive unless "Connection: close" is
// present. HTTP/1.0 defaults to close: keep-alive requires an explicit
// "Connection: keep-alive" *and* a response body the client can delimit
// without a defined-length framing gap — i.e. the request already carries
// Content-Length/chunked framing, or the method is HEAD/GET, whose
// responses a client can bound without either (spec §4.4 / §9 Open
// Question, resolved in favor of the later, version-aware semantics rather
// than always-close).
func (r *Request) IsKeepAlive() bool {
	conn, ok := r.Headers.Get(headerConnection)
	switch r.Version {
	case HTTPVersion11:
		if ok == nil && eqFoldBytes(conn, tokenClose) {
			return false
		}
		return true
	case HTTPVersion10:
		if ok != nil || !eqFoldBytes(conn, tokenKeepAlive) {
			return false
		}
		if _, err := r.Headers.Get(headerContentLength); err == nil || r.BodyMode == BodyModeChunked {
			return true
		}
		return r.Method == MethodHEAD || r.Method == MethodGET
	default:
		return false
	}
}

// WantsWebsocketUpgrade reports whether this request carries a well-formed
// WebSocket upgrade request (Upgrade: websocket, Connection containing
// Upgrade). Full handshake validation happens in the wsocket package.
func (r *Request) WantsWebsocketUpgrade() bool {
	up, err := r.Headers.Get(headerUpgrade)
	if err != nil || !eqFoldBytes(up, tokenWebsocket) {
		return false
	}
	conn, err := r.Headers.Get(headerConnection)
	if err != nil {
		return false
	}
	return containsTokenFold(conn, []byte("upgrade"))
}

// ExpectsContinue reports an "Expect: 100-continue" request.
func (r *Request) ExpectsContinue() bool {
	v, err := r.Headers.Get(headerExpect)
	return err == nil && eqFoldBytes(v, token100Continue)
}
