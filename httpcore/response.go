package httpcore

import (
	"io"
	"strconv"

	gojson "github.com/goccy/go-json"
	"github.com/valyala/bytebufferpool"

	"github.com/miraimindz/embercore/errs"
	"github.com/miraimindz/embercore/header"
	"github.com/miraimindz/embercore/iostream"
)

var crlf = []byte("\r\n")
var colonSpace = []byte(": ")
var finalChunk = []byte("0\r\n\r\n")

// sendMode distinguishes the three response bodies the spec's streaming
// state machine supports: a buffered in-memory body, an arbitrary
// io.Reader streamed through chunked or length-framed output, and no body
// at all (e.g. 204/304, or a Redirect).
type sendMode uint8

const (
	sendModeNone sendMode = iota
	sendModeBuffer
	sendModeStream
)

// Response is the pooled response builder (spec L5). A handler populates
// Status/Headers and either calls SetBody (buffered) or SendStream
// (streaming), then the connection state machine calls WriteTo to emit it.
//
// Grounded on shockwave/pkg/shockwave/http11/response.go's
// WriteHeader/Write/Flush split, adapted to the spec's explicit
// send_stream + chunking_output + disconnect_on_finish fields and backed
// by a bytebufferpool.ByteBuffer for the buffered-body scratch space
// instead of the teacher's inline []byte field, so large buffered bodies
// don't retain an oversized backing array across keep-alive reuse (see
// bolt/pool/buffers/json_buffer_pool.go for the pattern this borrows).
type Response struct {
	Status  int
	Version HTTPVersion
	Headers *header.Headers

	mode sendMode

	bodyBuf *bytebufferpool.ByteBuffer
	stream  io.Reader

	// ChunkingOutput is set when the body must be emitted with
	// Transfer-Encoding: chunked (streaming body whose length is unknown
	// up front, or a chunked-in/chunked-out proxy scenario).
	ChunkingOutput bool

	// DisconnectOnFinish forces Connection: close regardless of the
	// request's keep-alive negotiation (spec §4.8 step 9: set by the
	// handler, or by the connection state machine itself on protocol
	// error recovery).
	DisconnectOnFinish bool

	headersSent bool
	finished    bool
	bytesSent   int64

	// Handled lets a Pre middleware hook (CORS preflight, rate limiting,
	// auth) finish the response itself and skip route dispatch entirely;
	// the connection state machine checks this after runPre.
	Handled bool
}

// NewResponse allocates a Response with its own Headers table.
func NewResponse(maxHeaders int) *Response {
	return &Response{Headers: header.New(maxHeaders), Status: 200}
}

// Reset clears the Response for reuse by the next request on this
// connection, releasing any pooled body buffer back to bytebufferpool.
func (r *Response) Reset() {
	if r.bodyBuf != nil {
		bytebufferpool.Put(r.bodyBuf)
		r.bodyBuf = nil
	}
	r.Status = 200
	r.Headers.Reset()
	r.mode = sendModeNone
	r.stream = nil
	r.ChunkingOutput = false
	r.DisconnectOnFinish = false
	r.headersSent = false
	r.finished = false
	r.bytesSent = 0
	r.Handled = false
}

// SetBody buffers body as the complete response body and sets Content-Length
// accordingly; ChunkingOutput is left false since the length is known.
func (r *Response) SetBody(body []byte) {
	if r.bodyBuf == nil {
		r.bodyBuf = bytebufferpool.Get()
	}
	r.bodyBuf.Reset()
	_, _ = r.bodyBuf.Write(body)
	r.mode = sendModeBuffer
}

// BodyWriter returns the pooled scratch buffer for handlers that want to
// build the body incrementally (e.g. a template renderer) without a second
// copy; the returned buffer is already installed as the body, so nothing
// further is needed after writing to it.
func (r *Response) BodyWriter() *bytebufferpool.ByteBuffer {
	if r.bodyBuf == nil {
		r.bodyBuf = bytebufferpool.Get()
	}
	r.mode = sendModeBuffer
	return r.bodyBuf
}

// JSON marshals v with goccy/go-json directly into the pooled body buffer
// and sets Content-Type: application/json.
func (r *Response) JSON(v interface{}) error {
	buf := r.BodyWriter()
	buf.Reset()
	enc := gojson.NewEncoder(buf)
	if err := enc.Encode(v); err != nil {
		return errs.Wrap(errs.KindServerError, "failed to encode JSON response", err)
	}
	_ = r.Headers.Put([]byte("Content-Type"), []byte("application/json; charset=utf-8"))
	return nil
}

// SendStream installs r as a streaming body. If contentLength is
// non-negative, a Content-Length header is used; a negative contentLength
// forces ChunkingOutput.
func (r *Response) SendStream(stream io.Reader, contentLength int64) {
	r.stream = stream
	r.mode = sendModeStream
	if contentLength < 0 {
		r.ChunkingOutput = true
	} else {
		_ = r.Headers.Put([]byte("Content-Length"), []byte(strconv.FormatInt(contentLength, 10)))
	}
}

// Redirect sets status and Location for a redirect response with an empty
// body (spec's 3xx convenience; grounded on bolt/core/context.go's Redirect
// helper).
func (r *Response) Redirect(status int, location string) {
	r.Status = status
	_ = r.Headers.Put([]byte("Location"), []byte(location))
	r.mode = sendModeNone
}

// WriteTo emits the status line, headers and body to s, honoring
// ChunkingOutput and the request's keep-alive negotiation (keepAlive is
// supplied by the connection state machine, which already knows the
// request's negotiated value). Returns the number of body bytes written
// (the status line and headers are not counted).
func (r *Response) WriteTo(s *iostream.IOStream, keepAlive bool) (int64, error) {
	if r.finished {
		return 0, errs.New(errs.KindServerError, "response already finished")
	}

	connValue := []byte("keep-alive")
	if r.DisconnectOnFinish || !keepAlive {
		connValue = tokenClose
	}
	_ = r.Headers.Put(headerConnection, connValue)

	if r.mode == sendModeStream && r.ChunkingOutput {
		_ = r.Headers.Put(headerTransferEncoding, tokenChunked)
		r.Headers.Remove([]byte("Content-Length"))
	} else if r.mode == sendModeBuffer {
		n := 0
		if r.bodyBuf != nil {
			n = r.bodyBuf.Len()
		}
		_ = r.Headers.Put([]byte("Content-Length"), []byte(strconv.Itoa(n)))
	}

	if err := r.writeHeadAndStatusLine(s); err != nil {
		return 0, err
	}

	var bodyBytes int64
	switch r.mode {
	case sendModeBuffer:
		if r.bodyBuf != nil && r.bodyBuf.Len() > 0 {
			n, err := s.Write(r.bodyBuf.Bytes())
			bodyBytes = int64(n)
			if err != nil {
				return r.bytesSent + bodyBytes, err
			}
		}
	case sendModeStream:
		var err error
		if r.ChunkingOutput {
			bodyBytes, err = writeChunkedStream(s, r.stream)
		} else {
			bodyBytes, err = s.WriteFromReader(r.stream)
		}
		if err != nil {
			return r.bytesSent + bodyBytes, err
		}
	}
	r.bytesSent += bodyBytes

	if err := s.Flush(); err != nil {
		return r.bytesSent, err
	}
	r.finished = true
	return r.bytesSent, nil
}

func (r *Response) writeHeadAndStatusLine(s *iostream.IOStream) error {
	if r.headersSent {
		return nil
	}
	r.headersSent = true

	line := statusLine(r.Version, r.Status)
	if _, err := s.Write(line); err != nil {
		return err
	}
	var writeErr error
	r.Headers.VisitAll(func(key, value []byte) bool {
		if _, err := s.Write(key); err != nil {
			writeErr = err
			return false
		}
		if _, err := s.Write(colonSpace); err != nil {
			writeErr = err
			return false
		}
		if _, err := s.Write(value); err != nil {
			writeErr = err
			return false
		}
		if _, err := s.Write(crlf); err != nil {
			writeErr = err
			return false
		}
		return true
	})
	if writeErr != nil {
		return writeErr
	}
	_, err := s.Write(crlf)
	return err
}

// writeChunkedStream copies src to s, framing each write as one chunk, and
// terminates with the zero-size final chunk (RFC 7230 §4.1).
func writeChunkedStream(s *iostream.IOStream, src io.Reader) (int64, error) {
	var total int64
	buf := make([]byte, 32*1024)
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			total += int64(n)
			if _, err := s.WriteString(strconv.FormatInt(int64(n), 16)); err != nil {
				return total, err
			}
			if _, err := s.Write(crlf); err != nil {
				return total, err
			}
			if _, err := s.Write(buf[:n]); err != nil {
				return total, err
			}
			if _, err := s.Write(crlf); err != nil {
				return total, err
			}
		}
		if rerr != nil {
			if rerr == io.EOF {
				break
			}
			return total, errs.Wrap(errs.KindServerError, "error reading response stream", rerr)
		}
	}
	if _, err := s.Write(finalChunk); err != nil {
		return total, err
	}
	return total, nil
}

// IsBuffered reports whether the response body is a fully in-memory
// buffer (as opposed to a stream or no body at all) — compression
// middleware only rewrites buffered bodies, since a stream's length and
// contents aren't known until it's already being written to the wire.
func (r *Response) IsBuffered() bool { return r.mode == sendModeBuffer }

// Body returns the buffered body bytes, or nil if the response isn't
// buffered.
func (r *Response) Body() []byte {
	if r.mode != sendModeBuffer || r.bodyBuf == nil {
		return nil
	}
	return r.bodyBuf.Bytes()
}

// Finished reports whether WriteTo has already emitted this response.
func (r *Response) Finished() bool { return r.finished }

// BytesSent returns the number of body bytes written so far.
func (r *Response) BytesSent() int64 { return r.bytesSent }
