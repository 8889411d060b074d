package middleware

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"

	"github.com/miraimindz/embercore/httpcore"
)

func TestCompressionSkipsSmallBodies(t *testing.T) {
	c := NewCompression(CompressionConfig{MinSize: 1024})
	req := httpcore.NewRequest(4096, 16, 8)
	req.Headers.Put([]byte("Accept-Encoding"), []byte("gzip, br"))
	resp := httpcore.NewResponse(8)
	resp.SetBody([]byte("tiny"))

	c.Post(req, resp)

	if resp.Headers.Contains([]byte("Content-Encoding")) {
		t.Error("expected no Content-Encoding for a body under MinSize")
	}
}

func TestCompressionPrefersBrotliOverGzip(t *testing.T) {
	c := NewCompression(CompressionConfig{MinSize: 4})
	req := httpcore.NewRequest(4096, 16, 8)
	req.Headers.Put([]byte("Accept-Encoding"), []byte("gzip, br"))
	resp := httpcore.NewResponse(8)
	body := strings.Repeat("compress-me ", 20)
	resp.SetBody([]byte(body))

	c.Post(req, resp)

	enc, _ := resp.Headers.GetString("Content-Encoding")
	if enc != "br" {
		t.Errorf("Content-Encoding = %q, want br", enc)
	}

	r := brotli.NewReader(bytes.NewReader(resp.Body()))
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("brotli decode failed: %v", err)
	}
	if string(out) != body {
		t.Errorf("decoded body = %q, want %q", out, body)
	}
}

func TestCompressionFallsBackToGzip(t *testing.T) {
	c := NewCompression(CompressionConfig{MinSize: 4})
	req := httpcore.NewRequest(4096, 16, 8)
	req.Headers.Put([]byte("Accept-Encoding"), []byte("gzip"))
	resp := httpcore.NewResponse(8)
	body := strings.Repeat("gzip-me ", 20)
	resp.SetBody([]byte(body))

	c.Post(req, resp)

	enc, _ := resp.Headers.GetString("Content-Encoding")
	if enc != "gzip" {
		t.Errorf("Content-Encoding = %q, want gzip", enc)
	}

	r, err := gzip.NewReader(bytes.NewReader(resp.Body()))
	if err != nil {
		t.Fatalf("gzip.NewReader failed: %v", err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("gzip decode failed: %v", err)
	}
	if string(out) != body {
		t.Errorf("decoded body = %q, want %q", out, body)
	}
}

func TestCompressionSkipsWithoutAcceptEncoding(t *testing.T) {
	c := NewCompression(CompressionConfig{MinSize: 4})
	req := httpcore.NewRequest(4096, 16, 8)
	resp := httpcore.NewResponse(8)
	resp.SetBody([]byte(strings.Repeat("x", 50)))

	c.Post(req, resp)

	if resp.Headers.Contains([]byte("Content-Encoding")) {
		t.Error("expected no Content-Encoding when the client sends no Accept-Encoding")
	}
}

func TestCompressionSkipsUnbufferedResponses(t *testing.T) {
	c := NewCompression(CompressionConfig{MinSize: 4})
	req := httpcore.NewRequest(4096, 16, 8)
	req.Headers.Put([]byte("Accept-Encoding"), []byte("gzip"))
	resp := httpcore.NewResponse(8)
	resp.SendStream(io.NopCloser(strings.NewReader(strings.Repeat("stream", 20))), -1)

	c.Post(req, resp)

	if resp.Headers.Contains([]byte("Content-Encoding")) {
		t.Error("expected streaming responses to be left uncompressed")
	}
}
