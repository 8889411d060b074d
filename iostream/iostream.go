// Package iostream implements the buffered duplex byte stream that sits
// between a net.Conn and the request parser / response builder: a fixed
// read buffer with zero-copy peek/consume semantics, a zero-copy
// "buffer swap" pivot used by the parser to hand parsed slices off to the
// Request object, and a small write accumulator flushed in single
// syscalls.
//
// The read/write side is grounded on the buffering discipline of
// shockwave/pkg/shockwave/http11/connection.go and response.go, adapted to
// the spec's explicit swap_buffer contract (the teacher resizes its
// internal slice in place rather than installing a caller-owned buffer).
package iostream

import (
	"errors"
	"io"
	"net"

	"github.com/miraimindz/embercore/errs"
)

const defaultOutBufSize = 4096

// IOStream wraps a net.Conn with a read buffer supporting zero-copy
// peek/consume and a write buffer flushed in bulk. A single IOStream is
// never used from two goroutines concurrently (see SPEC_FULL.md §5).
type IOStream struct {
	conn net.Conn

	in         []byte // current read buffer (may be caller-owned after SwapBuffer)
	inStart    int    // index of first unread byte
	inEnd      int    // index one past last buffered byte
	inOwned    bool   // true if `in` was allocated by IOStream (safe to grow/replace)

	out      []byte // write accumulator
	outIndex int     // number of bytes currently queued in `out`

	closed bool
}

// New wraps conn with a fresh IOStream using an internally owned read
// buffer of the given size and a page-sized write buffer.
func New(conn net.Conn, readBufSize int) *IOStream {
	if readBufSize <= 0 {
		readBufSize = defaultOutBufSize
	}
	return &IOStream{
		conn:    conn,
		in:      make([]byte, readBufSize),
		inOwned: true,
		out:     make([]byte, defaultOutBufSize),
	}
}

// Buffered returns the currently buffered, unread bytes. The returned slice
// aliases the internal buffer and is only valid until the next read or
// SwapBuffer call.
func (s *IOStream) Buffered() []byte {
	return s.in[s.inStart:s.inEnd]
}

// ConsumedSince returns the number of bytes discarded from the buffer
// since it was installed by SwapBuffer — a request parser that installs
// its own scratch buffer can use this right after finishing a parse step
// to slice out exactly the wire bytes it just consumed, e.g.
// req.Scratch()[:s.ConsumedSince()] for a header block.
func (s *IOStream) ConsumedSince() int { return s.inStart }

// Discard advances the read cursor past n already-peeked bytes.
func (s *IOStream) Discard(n int) {
	s.inStart += n
	if s.inStart > s.inEnd {
		s.inStart = s.inEnd
	}
}

// SwapBuffer installs newBuf as the read buffer, copying any unread tail
// from the current buffer to the head of newBuf. This is the zero-copy
// pivot the parser uses so parsed slices live in the Request's own scratch
// buffer rather than in a buffer IOStream might later reuse or grow.
// newBuf is treated as caller-owned: IOStream will never resize it.
func (s *IOStream) SwapBuffer(newBuf []byte) {
	unread := s.in[s.inStart:s.inEnd]
	n := copy(newBuf, unread)
	s.in = newBuf
	s.inOwned = false
	s.inStart = 0
	s.inEnd = n
}

// ReadByteSafe returns a byte only if one is already buffered; it never
// performs I/O. Used by the parser's fast path.
func (s *IOStream) ReadByteSafe() (byte, bool) {
	if s.inStart < s.inEnd {
		b := s.in[s.inStart]
		s.inStart++
		return b, true
	}
	return 0, false
}

// ReadByte refills from the socket if the buffer is empty, then returns a
// byte. Returns an errs.KindEndOfStream error on EOF.
func (s *IOStream) ReadByte() (byte, error) {
	if b, ok := s.ReadByteSafe(); ok {
		return b, nil
	}
	if err := s.fill(); err != nil {
		return 0, err
	}
	b, _ := s.ReadByteSafe()
	return b, nil
}

// PeekByte returns the next byte without consuming it, refilling from the
// socket if the buffer is currently empty. Used by scanners that need to
// branch on the next byte before deciding how much of the buffered region
// to slice and Discard in one shot.
func (s *IOStream) PeekByte() (byte, error) {
	for s.inStart >= s.inEnd {
		if err := s.fill(); err != nil {
			return 0, err
		}
	}
	return s.in[s.inStart], nil
}

// fill performs a single read syscall into the read buffer, compacting any
// unread tail to the front first if the buffer has no room left. It never
// discards the already-consumed prefix just because the buffer happens to
// be fully drained (inStart == inEnd) — a caller (the request parser) may
// be holding a slice into that prefix, e.g. Request.HeadSlice spanning
// several fill()s on a slow connection, so only a genuinely full buffer
// forces compaction.
func (s *IOStream) fill() error {
	if s.inEnd == len(s.in) {
		n := copy(s.in, s.in[s.inStart:s.inEnd])
		s.inStart, s.inEnd = 0, n
	}
	if s.inEnd == len(s.in) {
		// Buffer is full of unread data and caller-owned (won't grow); nothing
		// more this call can do.
		return errs.ErrEndOfBuffer
	}
	n, err := s.conn.Read(s.in[s.inEnd:])
	if n > 0 {
		s.inEnd += n
	}
	if err != nil {
		return classifyReadErr(err)
	}
	if n == 0 {
		return errs.New(errs.KindEndOfStream, "read returned 0 bytes")
	}
	return nil
}

func classifyReadErr(err error) error {
	if errors.Is(err, io.EOF) {
		return errs.Wrap(errs.KindEndOfStream, "connection closed by peer", err)
	}
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return errs.Wrap(errs.KindEndOfStream, "read timeout", err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errs.Wrap(errs.KindConnectionReset, "connection reset", err)
	}
	return errs.Wrap(errs.KindEndOfStream, "read error", err)
}

// Read implements io.Reader. Hot path: if at least one byte is already
// buffered, copy directly from the buffer; otherwise, for requests no
// larger than the buffer, refill the buffer first (so subsequent small
// reads stay buffered); for larger requests, read straight into dst.
func (s *IOStream) Read(dst []byte) (int, error) {
	if s.inStart < s.inEnd {
		n := copy(dst, s.in[s.inStart:s.inEnd])
		s.inStart += n
		return n, nil
	}
	if len(dst) >= len(s.in) {
		n, err := s.conn.Read(dst)
		if err != nil {
			return n, classifyReadErr(err)
		}
		return n, nil
	}
	if err := s.fill(); err != nil {
		return 0, err
	}
	n := copy(dst, s.in[s.inStart:s.inEnd])
	s.inStart += n
	return n, nil
}

// ReadUntilExpr scans the buffered region for the first byte satisfying
// pred, refilling from the socket as needed. It returns pos, the number of
// bytes preceding the match (so Buffered()[:pos] is the unmatched span),
// and whether a match was found within limit bytes of scanning; it does
// not consume anything; the caller still owns deciding how much to
// Discard. Each byte already scanned is checked exactly once across
// fill()s — a refill only ever appends past what's already been checked,
// it never rewinds the scan.
func (s *IOStream) ReadUntilExpr(pred func(byte) bool, limit int) (pos int, matched bool, err error) {
	scanned := 0
	checked := s.inStart
	for {
		for i := checked; i < s.inEnd; i++ {
			if pred(s.in[i]) {
				return i - s.inStart, true, nil
			}
			scanned++
			if scanned >= limit {
				return 0, false, nil
			}
		}
		checked = s.inEnd
		beforeStart := s.inStart
		if ferr := s.fill(); ferr != nil {
			return 0, false, ferr
		}
		checked -= beforeStart - s.inStart
	}
}

// Write queues data into the out buffer, flushing as necessary. It never
// partially fails: either all of data is queued/written or an error is
// returned.
func (s *IOStream) Write(data []byte) (int, error) {
	written := 0
	for len(data) > 0 {
		n := copy(s.out[s.outIndex:], data)
		s.outIndex += n
		written += n
		data = data[n:]
		if s.outIndex == len(s.out) {
			if err := s.Flush(); err != nil {
				return written, err
			}
		}
	}
	return written, nil
}

// WriteString is a convenience wrapper around Write.
func (s *IOStream) WriteString(str string) (int, error) {
	return s.Write([]byte(str))
}

// Flush pushes the entire write accumulator to the socket in one syscall
// (short writes are retried internally).
func (s *IOStream) Flush() error {
	if s.outIndex == 0 {
		return nil
	}
	if err := s.flushN(s.outIndex); err != nil {
		return err
	}
	s.outIndex = 0
	return nil
}

// FlushBuffered flushes only the first n bytes of the out buffer; used when
// a caller (e.g. the static file streamer) populates OutBuffer() directly
// rather than going through Write.
func (s *IOStream) FlushBuffered(n int) error {
	if n <= 0 {
		return nil
	}
	if n > s.outIndex {
		n = s.outIndex
	}
	if err := s.flushN(n); err != nil {
		return err
	}
	remaining := s.outIndex - n
	copy(s.out, s.out[n:s.outIndex])
	s.outIndex = remaining
	return nil
}

func (s *IOStream) flushN(n int) error {
	buf := s.out[:n]
	for len(buf) > 0 {
		written, err := s.conn.Write(buf)
		if err != nil {
			return errs.Wrap(errs.KindBrokenPipe, "write failed", err)
		}
		buf = buf[written:]
	}
	return nil
}

// OutBuffer exposes the write accumulator for callers that want to fill it
// directly (e.g. copying from a file) before calling FlushBuffered.
func (s *IOStream) OutBuffer() []byte { return s.out[s.outIndex:] }

// AdvanceOut records that n bytes were written directly into OutBuffer().
func (s *IOStream) AdvanceOut(n int) { s.outIndex += n }

// WriteFromReader alternates reading into the out buffer and flushing,
// streaming an arbitrarily large reader to the socket without buffering it
// all in memory.
func (s *IOStream) WriteFromReader(r io.Reader) (int64, error) {
	var total int64
	for {
		buf := s.OutBuffer()
		if len(buf) == 0 {
			if err := s.Flush(); err != nil {
				return total, err
			}
			buf = s.OutBuffer()
		}
		n, err := r.Read(buf)
		if n > 0 {
			s.AdvanceOut(n)
			total += int64(n)
			if ferr := s.Flush(); ferr != nil {
				return total, ferr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return total, nil
			}
			return total, errs.Wrap(errs.KindBrokenPipe, "copy from reader failed", err)
		}
	}
}

// Conn exposes the underlying connection, e.g. for hijacking on WebSocket
// upgrade or for SetDeadline calls by the connection state machine.
func (s *IOStream) Conn() net.Conn { return s.conn }

// Close closes the underlying connection. Safe to call more than once.
func (s *IOStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close()
}

// Closed reports whether Close has been called on this stream.
func (s *IOStream) Closed() bool { return s.closed }

// Reset prepares the stream for reuse by a new connection borrowed from the
// pool: rebinds the socket and clears buffered state. The read buffer is
// restored to its originally owned buffer if it had been swapped out.
func (s *IOStream) Reset(conn net.Conn, ownBuf []byte) {
	s.conn = conn
	s.in = ownBuf
	s.inOwned = true
	s.inStart, s.inEnd = 0, 0
	s.outIndex = 0
	s.closed = false
}
