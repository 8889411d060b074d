package httpcore

import (
	"github.com/miraimindz/embercore/errs"
	"github.com/miraimindz/embercore/iostream"
)

// ChunkedReader decodes an RFC 7230 §4.1 chunked transfer-coded body
// directly off an IOStream, without an intermediate bufio.Reader — the
// IOStream already owns the buffering, so wrapping it again would just add
// a second copy. Chunk extensions are scanned and discarded without being
// exposed to callers, which closes the chunk-extension smuggling vector the
// same way shockwave/pkg/shockwave/http11/chunked.go does.
//
// Grounded on shockwave/pkg/shockwave/http11/chunked.go's state machine
// (read chunk-size line, read chunk data + trailing CRLF, repeat until a
// zero-size chunk, then read trailers), adapted to use errs.Kind instead of
// package-level sentinel errors and to pull bytes from *iostream.IOStream
// rather than bufio.Reader.
type ChunkedReader struct {
	s *iostream.IOStream

	remaining int64 // bytes left in the current chunk body
	done      bool  // final (zero-size) chunk has been consumed
	err       error // sticky error, once set all subsequent reads return it

	maxChunkSize int64
	maxBodySize  int64
	totalRead    int64
}

// NewChunkedReader wraps s to decode a chunked body, rejecting any single
// chunk larger than maxChunkSize or a cumulative body larger than
// maxBodySize.
func NewChunkedReader(s *iostream.IOStream, maxChunkSize, maxBodySize int64) *ChunkedReader {
	if maxChunkSize <= 0 {
		maxChunkSize = DefaultMaxChunkSize
	}
	if maxBodySize <= 0 {
		maxBodySize = DefaultMaxBodySize
	}
	return &ChunkedReader{s: s, maxChunkSize: maxChunkSize, maxBodySize: maxBodySize}
}

// Read implements io.Reader, decoding chunk framing transparently. Returns
// (0, io.EOF)-equivalent (errs.KindEndOfStream) once the terminating chunk
// and trailers have been consumed.
func (c *ChunkedReader) Read(dst []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	if c.done {
		c.err = errs.New(errs.KindEndOfStream, "chunked body fully consumed")
		return 0, c.err
	}
	if c.remaining == 0 {
		if err := c.readChunkHeader(); err != nil {
			c.err = err
			return 0, err
		}
		if c.done {
			if err := c.readTrailers(); err != nil {
				c.err = err
				return 0, err
			}
			c.err = errs.New(errs.KindEndOfStream, "chunked body fully consumed")
			return 0, c.err
		}
	}

	want := int64(len(dst))
	if want > c.remaining {
		want = c.remaining
	}
	n, err := c.s.Read(dst[:want])
	c.remaining -= int64(n)
	c.totalRead += int64(n)
	if c.totalRead > c.maxBodySize {
		c.err = errs.New(errs.KindRequestEntityTooLarge, "chunked body exceeds configured limit")
		return n, c.err
	}
	if err != nil {
		c.err = err
		return n, err
	}
	if c.remaining == 0 {
		if rerr := c.readCRLF(); rerr != nil {
			c.err = rerr
			return n, rerr
		}
	}
	return n, nil
}

// readChunkHeader reads one "<hex-size>[;ext...]\r\n" line and sets
// c.remaining, or c.done if the size is zero. Chunk-extension bytes are
// scanned (so the CRLF is found correctly) but never stored or interpreted,
// the same defensive stance the teacher's reader takes against request
// smuggling via crafted extensions.
func (c *ChunkedReader) readChunkHeader() error {
	var sizeBuf []byte
	inExt := false
	for {
		b, err := c.s.ReadByte()
		if err != nil {
			return err
		}
		if b == ';' {
			inExt = true
			continue
		}
		if b == '\r' {
			nb, err := c.s.ReadByte()
			if err != nil {
				return err
			}
			if nb != '\n' {
				return errs.New(errs.KindImproperlyTerminatedChunk, "malformed chunk size line")
			}
			break
		}
		if b == '\n' {
			break
		}
		if !inExt {
			if len(sizeBuf) >= 16 {
				return errs.New(errs.KindImproperlyTerminatedChunk, "chunk size line too long")
			}
			sizeBuf = append(sizeBuf, b)
		}
	}
	size, ok := parseHexBytes(sizeBuf)
	if !ok {
		return errs.New(errs.KindImproperlyTerminatedChunk, "invalid chunk size")
	}
	if size > c.maxChunkSize {
		return errs.New(errs.KindRequestEntityTooLarge, "chunk size exceeds configured limit")
	}
	if size == 0 {
		c.done = true
		return nil
	}
	c.remaining = size
	return nil
}

// readCRLF consumes the mandatory CRLF that follows each chunk's data.
func (c *ChunkedReader) readCRLF() error {
	b, err := c.s.ReadByte()
	if err != nil {
		return err
	}
	if b != '\r' {
		return errs.New(errs.KindImproperlyTerminatedChunk, "expected CR after chunk data")
	}
	b, err = c.s.ReadByte()
	if err != nil {
		return err
	}
	if b != '\n' {
		return errs.New(errs.KindImproperlyTerminatedChunk, "expected LF after chunk data")
	}
	return nil
}

// readTrailers consumes zero or more trailer header lines followed by the
// final blank line. Trailer fields are discarded — the spec's body model
// does not surface them to handlers, mirroring the teacher's behavior.
func (c *ChunkedReader) readTrailers() error {
	for {
		b, err := c.s.ReadByte()
		if err != nil {
			return err
		}
		if b == '\r' {
			nb, err := c.s.ReadByte()
			if err != nil {
				return err
			}
			if nb != '\n' {
				return errs.New(errs.KindImproperlyTerminatedChunk, "malformed trailer block")
			}
			return nil
		}
		if b == '\n' {
			return nil
		}
		// Discard the rest of this trailer line.
		for b != '\n' {
			b, err = c.s.ReadByte()
			if err != nil {
				return err
			}
		}
	}
}
