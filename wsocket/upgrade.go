package wsocket

import (
	"strings"

	"github.com/miraimindz/embercore/httpcore"
	"github.com/miraimindz/embercore/iostream"
)

// MessageHandler processes one upgraded WebSocket connection until it
// closes or errors.
type MessageHandler func(c *Conn)

// Upgrader validates and completes the RFC 6455 opening handshake.
//
// Grounded on shockwave/pkg/shockwave/websocket/upgrade.go's Upgrader,
// with its http.ResponseWriter/http.Hijacker-based completion replaced by
// a direct write to this core's iostream.IOStream (the connection state
// machine already holds the live stream at the point it detects an
// upgrade request, so there is nothing to hijack away from — it simply
// stops treating the stream as HTTP after the handshake).
type Upgrader struct {
	// CheckOrigin reports whether an Origin header is acceptable; nil
	// skips the check (development only).
	CheckOrigin func(origin string) bool

	// Subprotocols lists supported subprotocols in preference order.
	Subprotocols []string
}

// Handle runs the handshake against req/resp and, on success, takes over
// s for the lifetime of the connection by invoking handler with a Conn.
// The handshake response is written directly to s rather than through
// resp.WriteTo, since a 101 response has no body-framing headers to
// negotiate.
func (u *Upgrader) Handle(s *iostream.IOStream, req *httpcore.Request, resp *httpcore.Response, handler MessageHandler) {
	key, ok := req.HeaderValue("Sec-WebSocket-Key")
	if !ok || key == "" {
		writeHandshakeError(s, 400, "missing Sec-WebSocket-Key")
		return
	}
	if v, ok := req.HeaderValue("Sec-WebSocket-Version"); !ok || (v != "13" && v != "8" && v != "7") {
		writeHandshakeError(s, 400, "unsupported Sec-WebSocket-Version")
		return
	}
	if u.CheckOrigin != nil {
		origin, _ := req.HeaderValue("Origin")
		if !u.CheckOrigin(origin) {
			writeHandshakeError(s, 403, "origin not allowed")
			return
		}
	}

	var subprotocol string
	if len(u.Subprotocols) > 0 {
		if raw, ok := req.HeaderValue("Sec-WebSocket-Protocol"); ok {
			clientProtos := splitCommaList(raw)
			subprotocol = selectSubprotocol(clientProtos, u.Subprotocols)
		}
	}

	accept := ComputeAcceptKey(key)

	_, _ = s.WriteString("HTTP/1.1 101 Switching Protocols\r\n")
	_, _ = s.WriteString("Upgrade: websocket\r\n")
	_, _ = s.WriteString("Connection: Upgrade\r\n")
	_, _ = s.WriteString("Sec-WebSocket-Accept: " + accept + "\r\n")
	if subprotocol != "" {
		_, _ = s.WriteString("Sec-WebSocket-Protocol: " + subprotocol + "\r\n")
	}
	_, _ = s.WriteString("\r\n")
	if err := s.Flush(); err != nil {
		return
	}

	conn := newConn(s, subprotocol)
	handler(conn)
}

func writeHandshakeError(s *iostream.IOStream, status int, reason string) {
	line := httpcore.StatusText(status)
	_, _ = s.WriteString("HTTP/1.1 " + itoa(status) + " " + line + "\r\n")
	_, _ = s.WriteString("Connection: close\r\n")
	_, _ = s.WriteString("Content-Length: " + itoa(len(reason)) + "\r\n\r\n")
	_, _ = s.WriteString(reason)
	_ = s.Flush()
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [8]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

func splitCommaList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}
