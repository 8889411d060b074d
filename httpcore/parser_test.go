package httpcore

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/miraimindz/embercore/iostream"
)

// pipeStream writes raw bytes on one end of a net.Pipe and returns an
// IOStream wrapping the other end, ready for ParseHead.
func pipeStream(t *testing.T, raw string) *iostream.IOStream {
	t.Helper()
	client, server := net.Pipe()
	go func() {
		_, _ = io.WriteString(client, raw)
		client.Close()
	}()
	t.Cleanup(func() { server.Close() })
	return iostream.New(server, 4096)
}

func newTestRequest() *Request {
	return NewRequest(8192, 32, 16)
}

func TestParseHeadSimpleGET(t *testing.T) {
	s := pipeStream(t, "GET /foo HTTP/1.1\r\nHost: example.com\r\n\r\n")
	req := newTestRequest()
	if err := ParseHead(s, req, Limits{}); err != nil {
		t.Fatalf("ParseHead failed: %v", err)
	}
	if req.Method != MethodGET {
		t.Errorf("Method = %v, want GET", req.Method)
	}
	if string(req.Path) != "/foo" {
		t.Errorf("Path = %q, want /foo", req.Path)
	}
	if req.Version != HTTPVersion11 {
		t.Errorf("Version = %v, want HTTP/1.1", req.Version)
	}
	if string(req.Host) != "example.com" {
		t.Errorf("Host = %q, want example.com", req.Host)
	}
}

func TestParseHeadPopulatesHeadSlice(t *testing.T) {
	raw := "GET /foo HTTP/1.1\r\nHost: example.com\r\nAccept: */*\r\n\r\n"
	s := pipeStream(t, raw)
	req := newTestRequest()
	if err := ParseHead(s, req, Limits{}); err != nil {
		t.Fatalf("ParseHead failed: %v", err)
	}
	if string(req.HeadSlice) != raw {
		t.Errorf("HeadSlice = %q, want %q", req.HeadSlice, raw)
	}
}

func TestParseHeadPopulatesHeadSliceAcrossSlowTrickle(t *testing.T) {
	raw := "GET /foo HTTP/1.1\r\nHost: example.com\r\nX-Custom: a-fairly-long-header-value-here\r\n\r\n"
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close(); server.Close() })
	go func() {
		for i := 0; i < len(raw); i++ {
			if _, err := io.WriteString(client, raw[i:i+1]); err != nil {
				return
			}
		}
	}()
	s := iostream.New(server, 4096)
	req := newTestRequest()
	if err := ParseHead(s, req, Limits{}); err != nil {
		t.Fatalf("ParseHead failed: %v", err)
	}
	if string(req.HeadSlice) != raw {
		t.Errorf("HeadSlice = %q, want %q (byte-at-a-time delivery must not corrupt it)", req.HeadSlice, raw)
	}
}

func TestParseHeadWithQuery(t *testing.T) {
	s := pipeStream(t, "GET /search?q=go&limit=10 HTTP/1.1\r\nHost: example.com\r\n\r\n")
	req := newTestRequest()
	if err := ParseHead(s, req, Limits{}); err != nil {
		t.Fatalf("ParseHead failed: %v", err)
	}
	if string(req.Path) != "/search" {
		t.Errorf("Path = %q, want /search", req.Path)
	}
	if string(req.Query) != "q=go&limit=10" {
		t.Errorf("Query = %q, want q=go&limit=10", req.Query)
	}
}

func TestParseHeadMissingHostRejected(t *testing.T) {
	s := pipeStream(t, "GET / HTTP/1.1\r\n\r\n")
	req := newTestRequest()
	if err := ParseHead(s, req, Limits{}); err == nil {
		t.Fatal("expected error for missing Host header, got nil")
	}
}

func TestParseHeadDuplicateHostRejected(t *testing.T) {
	s := pipeStream(t, "GET / HTTP/1.1\r\nHost: a.com\r\nHost: b.com\r\n\r\n")
	req := newTestRequest()
	if err := ParseHead(s, req, Limits{}); err == nil {
		t.Fatal("expected error for duplicate Host header, got nil")
	}
}

func TestParseHeadContentLengthAndTransferEncodingRejected(t *testing.T) {
	s := pipeStream(t, "POST / HTTP/1.1\r\nHost: a.com\r\nContent-Length: 5\r\nTransfer-Encoding: chunked\r\n\r\nhello")
	req := newTestRequest()
	if err := ParseHead(s, req, Limits{}); err == nil {
		t.Fatal("expected error for CL+TE smuggling vector, got nil")
	}
}

func TestParseHeadDuplicateContentLengthCollapsesToFirst(t *testing.T) {
	s := pipeStream(t, "POST / HTTP/1.1\r\nHost: a.com\r\nContent-Length: 5\r\nContent-Length: 6\r\n\r\nhello")
	req := newTestRequest()
	if err := ParseHead(s, req, Limits{}); err != nil {
		t.Fatalf("ParseHead failed: %v", err)
	}
	if req.ContentLength != 5 {
		t.Errorf("ContentLength = %d, want 5 (first piece wins)", req.ContentLength)
	}
}

func TestParseHeadUnknownMethodRejected(t *testing.T) {
	s := pipeStream(t, "FROB / HTTP/1.1\r\nHost: a.com\r\n\r\n")
	req := newTestRequest()
	if err := ParseHead(s, req, Limits{}); err == nil {
		t.Fatal("expected error for unrecognized method, got nil")
	}
}

func TestParseHeadUnsupportedVersionRejected(t *testing.T) {
	s := pipeStream(t, "GET / HTTP/2.0\r\nHost: a.com\r\n\r\n")
	req := newTestRequest()
	if err := ParseHead(s, req, Limits{}); err == nil {
		t.Fatal("expected error for unsupported HTTP version, got nil")
	}
}

func TestParseHeadAbsoluteFormTarget(t *testing.T) {
	s := pipeStream(t, "GET http://example.com/foo?x=1 HTTP/1.1\r\nHost: example.com\r\n\r\n")
	req := newTestRequest()
	if err := ParseHead(s, req, Limits{}); err != nil {
		t.Fatalf("ParseHead failed: %v", err)
	}
	if req.Scheme != SchemeHTTP {
		t.Errorf("Scheme = %v, want SchemeHTTP", req.Scheme)
	}
	if string(req.Host) != "example.com" {
		t.Errorf("Host = %q, want example.com", req.Host)
	}
	if string(req.Path) != "/foo" {
		t.Errorf("Path = %q, want /foo", req.Path)
	}
	if string(req.Query) != "x=1" {
		t.Errorf("Query = %q, want x=1", req.Query)
	}
}

func TestReadBodyInMemoryFixedLength(t *testing.T) {
	s := pipeStream(t, "POST / HTTP/1.1\r\nHost: a.com\r\nContent-Length: 5\r\n\r\nhello")
	req := newTestRequest()
	if err := ParseHead(s, req, Limits{}); err != nil {
		t.Fatalf("ParseHead failed: %v", err)
	}
	if err := ReadBodyInMemory(s, req, Limits{}); err != nil {
		t.Fatalf("ReadBodyInMemory failed: %v", err)
	}
	if string(req.Body) != "hello" {
		t.Errorf("Body = %q, want hello", req.Body)
	}
	if !req.ReadFinished {
		t.Error("ReadFinished = false, want true")
	}
}

func TestReadBodyInMemoryChunked(t *testing.T) {
	raw := "POST / HTTP/1.1\r\nHost: a.com\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"4\r\nWiki\r\n5\r\npedia\r\n0\r\n\r\n"
	s := pipeStream(t, raw)
	req := newTestRequest()
	if err := ParseHead(s, req, Limits{}); err != nil {
		t.Fatalf("ParseHead failed: %v", err)
	}
	if req.BodyMode != BodyModeChunked {
		t.Fatalf("BodyMode = %v, want BodyModeChunked", req.BodyMode)
	}
	if err := ReadBodyInMemory(s, req, Limits{}); err != nil {
		t.Fatalf("ReadBodyInMemory failed: %v", err)
	}
	if string(req.Body) != "Wikipedia" {
		t.Errorf("Body = %q, want Wikipedia", req.Body)
	}
}

func TestIsKeepAliveDefaults(t *testing.T) {
	s := pipeStream(t, "GET / HTTP/1.1\r\nHost: a.com\r\n\r\n")
	req := newTestRequest()
	if err := ParseHead(s, req, Limits{}); err != nil {
		t.Fatalf("ParseHead failed: %v", err)
	}
	if !req.IsKeepAlive() {
		t.Error("HTTP/1.1 with no Connection header should default to keep-alive")
	}
}

func TestIsKeepAliveExplicitClose(t *testing.T) {
	s := pipeStream(t, "GET / HTTP/1.1\r\nHost: a.com\r\nConnection: close\r\n\r\n")
	req := newTestRequest()
	if err := ParseHead(s, req, Limits{}); err != nil {
		t.Fatalf("ParseHead failed: %v", err)
	}
	if req.IsKeepAlive() {
		t.Error("Connection: close should disable keep-alive")
	}
}

func TestIsKeepAliveHTTP10Default(t *testing.T) {
	s := pipeStream(t, "GET / HTTP/1.0\r\nHost: a.com\r\n\r\n")
	req := newTestRequest()
	if err := ParseHead(s, req, Limits{}); err != nil {
		t.Fatalf("ParseHead failed: %v", err)
	}
	if req.IsKeepAlive() {
		t.Error("HTTP/1.0 with no Connection header should default to close")
	}
}

func TestIsKeepAliveHTTP10GetWithKeepAliveHeader(t *testing.T) {
	s := pipeStream(t, "GET / HTTP/1.0\r\nHost: a.com\r\nConnection: keep-alive\r\n\r\n")
	req := newTestRequest()
	if err := ParseHead(s, req, Limits{}); err != nil {
		t.Fatalf("ParseHead failed: %v", err)
	}
	if !req.IsKeepAlive() {
		t.Error("HTTP/1.0 GET with Connection: keep-alive should stay alive (GET needs no length framing)")
	}
}

func TestIsKeepAliveHTTP10PostWithoutLengthFramingStaysClose(t *testing.T) {
	s := pipeStream(t, "POST / HTTP/1.0\r\nHost: a.com\r\nConnection: keep-alive\r\n\r\n")
	req := newTestRequest()
	if err := ParseHead(s, req, Limits{}); err != nil {
		t.Fatalf("ParseHead failed: %v", err)
	}
	if req.IsKeepAlive() {
		t.Error("HTTP/1.0 POST with no Content-Length/chunked framing must not be kept alive even with Connection: keep-alive")
	}
}

func TestIsKeepAliveHTTP10PostWithContentLengthStaysAlive(t *testing.T) {
	s := pipeStream(t, "POST / HTTP/1.0\r\nHost: a.com\r\nConnection: keep-alive\r\nContent-Length: 5\r\n\r\nhello")
	req := newTestRequest()
	if err := ParseHead(s, req, Limits{}); err != nil {
		t.Fatalf("ParseHead failed: %v", err)
	}
	if !req.IsKeepAlive() {
		t.Error("HTTP/1.0 POST with Content-Length framing and Connection: keep-alive should stay alive")
	}
}

func TestWantsWebsocketUpgrade(t *testing.T) {
	s := pipeStream(t, "GET /ws HTTP/1.1\r\nHost: a.com\r\nUpgrade: websocket\r\nConnection: Upgrade\r\n\r\n")
	req := newTestRequest()
	if err := ParseHead(s, req, Limits{}); err != nil {
		t.Fatalf("ParseHead failed: %v", err)
	}
	if !req.WantsWebsocketUpgrade() {
		t.Error("expected WantsWebsocketUpgrade to be true")
	}
}

func TestParseHeadRequestLineTooLong(t *testing.T) {
	longPath := "/" + string(make([]byte, 200))
	for i := range longPath {
		_ = i
	}
	s := pipeStream(t, "GET "+longPath+" HTTP/1.1\r\nHost: a.com\r\n\r\n")
	req := newTestRequest()
	err := ParseHead(s, req, Limits{MaxRequestLineSize: 16})
	if err == nil {
		t.Fatal("expected request-line-too-long error, got nil")
	}
}

func TestParseHeadKeepAliveTimeoutDoesNotHang(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	go func() {
		time.Sleep(10 * time.Millisecond)
		client.Close()
	}()
	s := iostream.New(server, 4096)
	req := newTestRequest()
	if err := ParseHead(s, req, Limits{}); err == nil {
		t.Fatal("expected error when peer closes before sending a request line")
	}
}
