package middleware

import (
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"

	"github.com/miraimindz/embercore/httpcore"
	"github.com/miraimindz/embercore/server"
)

// CompressionConfig configures the Compression middleware.
type CompressionConfig struct {
	// MinSize is the smallest buffered body, in bytes, worth compressing;
	// below this the framing overhead isn't worth it.
	MinSize int

	// GzipLevel is passed to klauspost/compress/gzip.NewWriterLevel.
	GzipLevel int

	// BrotliQuality is passed to andybalholm/brotli.NewWriterLevel.
	BrotliQuality int
}

// DefaultCompressionConfig compresses bodies over 256 bytes at a balanced
// level for both codecs.
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{MinSize: 256, GzipLevel: gzip.DefaultCompression, BrotliQuality: 5}
}

// Compression transparently gzip- or brotli-encodes a buffered response
// body when the client's Accept-Encoding allows it, preferring brotli
// (smaller output) when both are accepted.
//
// Not grounded in bolt or shockwave (neither ships response compression);
// built from SPEC_FULL.md's ambient-stack expansion, which names
// klauspost/compress and andybalholm/brotli — both already in the domain
// dependency set via shockwave's benchmark suite — as the codecs every
// handler-agnostic compression layer in this pack's ecosystem reaches for.
type Compression struct {
	server.NopMiddleware

	cfg CompressionConfig
}

// NewCompression builds a Compression middleware from cfg.
func NewCompression(cfg CompressionConfig) *Compression {
	if cfg.MinSize == 0 {
		cfg.MinSize = 256
	}
	if cfg.GzipLevel == 0 {
		cfg.GzipLevel = gzip.DefaultCompression
	}
	if cfg.BrotliQuality == 0 {
		cfg.BrotliQuality = 5
	}
	return &Compression{cfg: cfg}
}

func (c *Compression) Post(req *httpcore.Request, resp *httpcore.Response) {
	if !resp.IsBuffered() {
		return
	}
	body := resp.Body()
	if len(body) < c.cfg.MinSize {
		return
	}

	accept, _ := req.HeaderValue("Accept-Encoding")
	if accept == "" {
		return
	}

	switch {
	case strings.Contains(accept, "br"):
		c.writeBrotli(resp, body)
	case strings.Contains(accept, "gzip"):
		c.writeGzip(resp, body)
	}
}

func (c *Compression) writeGzip(resp *httpcore.Response, body []byte) {
	buf := resp.BodyWriter()
	raw := append([]byte(nil), body...)
	buf.Reset()

	w, err := gzip.NewWriterLevel(buf, c.cfg.GzipLevel)
	if err != nil {
		buf.Reset()
		_, _ = buf.Write(raw)
		return
	}
	if _, err := w.Write(raw); err != nil {
		buf.Reset()
		_, _ = buf.Write(raw)
		return
	}
	if err := w.Close(); err != nil {
		buf.Reset()
		_, _ = buf.Write(raw)
		return
	}
	_ = resp.Headers.Put([]byte("Content-Encoding"), []byte("gzip"))
}

func (c *Compression) writeBrotli(resp *httpcore.Response, body []byte) {
	buf := resp.BodyWriter()
	raw := append([]byte(nil), body...)
	buf.Reset()

	w := brotli.NewWriterLevel(buf, c.cfg.BrotliQuality)
	if _, err := w.Write(raw); err != nil {
		buf.Reset()
		_, _ = buf.Write(raw)
		return
	}
	if err := w.Close(); err != nil {
		buf.Reset()
		_, _ = buf.Write(raw)
		return
	}
	_ = resp.Headers.Put([]byte("Content-Encoding"), []byte("br"))
}
