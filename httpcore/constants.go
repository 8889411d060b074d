package httpcore

// Size limits bound every parsing loop so a malicious or broken peer cannot
// force unbounded memory growth. Grounded on the limit set in
// shockwave/pkg/shockwave/http11/parser.go (MaxRequestLineSize et al.),
// renamed to this package's conventions.
const (
	DefaultMaxRequestLineSize = 8 * 1024
	DefaultMaxHeaderSize      = 64 * 1024
	DefaultMaxHeaderCount     = 128
	DefaultMaxCookieCount     = 64
	DefaultMaxBodySize        = 32 * 1024 * 1024
	DefaultReadBufferSize     = 16 * 1024
	DefaultMaxChunkSize       = 16 * 1024 * 1024
)

// Well-known header names, as byte slices to avoid per-request allocation
// when matching against Headers entries.
var (
	headerHost              = []byte("Host")
	headerContentLength      = []byte("Content-Length")
	headerTransferEncoding   = []byte("Transfer-Encoding")
	headerConnection         = []byte("Connection")
	headerCookie             = []byte("Cookie")
	headerUpgrade            = []byte("Upgrade")
	headerExpect             = []byte("Expect")

	tokenChunked  = []byte("chunked")
	tokenClose    = []byte("close")
	tokenKeepAlive = []byte("keep-alive")
	tokenWebsocket = []byte("websocket")
	token100Continue = []byte("100-continue")
)

// Scheme is the parsed URI scheme from an absolute-form request target; the
// vast majority of requests use origin-form and leave this empty (spec
// §3: scheme is only populated for proxy-style absolute URIs).
type Scheme uint8

const (
	SchemeNone Scheme = iota
	SchemeHTTP
	SchemeHTTPS
)
