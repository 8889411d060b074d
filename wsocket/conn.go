package wsocket

import (
	"encoding/binary"

	"github.com/miraimindz/embercore/errs"
	"github.com/miraimindz/embercore/iostream"
)

// Conn is a hijacked, upgraded WebSocket connection. A Conn is handed to
// the application's WebSocket handler once the handshake completes; the
// handler owns the connection for the rest of its lifetime (the
// connection state machine no longer touches it).
type Conn struct {
	stream      *iostream.IOStream
	Subprotocol string

	readBuf []byte
	closed  bool
}

func newConn(stream *iostream.IOStream, subprotocol string) *Conn {
	return &Conn{stream: stream, Subprotocol: subprotocol, readBuf: make([]byte, 0, 4096)}
}

// ReadMessage reads the next data frame and returns its opcode and a copy
// of its payload, transparently answering Ping frames with Pong and
// skipping Pong frames. Fragmented messages are not reassembled: each
// Text, Binary or Continuation frame is returned on its own. Close frames
// are answered with an echoing Close frame and reported as
// errs.KindEndOfStream.
func (c *Conn) ReadMessage() (Opcode, []byte, error) {
	for {
		f, buf, err := readFrame(c.stream, c.readBuf)
		c.readBuf = buf
		if err != nil {
			return 0, nil, err
		}

		switch f.Opcode {
		case OpcodePing:
			if err := writeFrame(c.stream, OpcodePong, true, f.Payload); err != nil {
				return 0, nil, err
			}
			if err := c.stream.Flush(); err != nil {
				return 0, nil, err
			}
			continue
		case OpcodePong:
			continue
		case OpcodeClose:
			code := CloseNormal
			if len(f.Payload) >= 2 {
				code = CloseCode(binary.BigEndian.Uint16(f.Payload[:2]))
			}
			_ = writeFrame(c.stream, OpcodeClose, true, f.Payload)
			_ = c.stream.Flush()
			c.closed = true
			return OpcodeClose, nil, errs.New(errs.KindEndOfStream, "peer closed websocket: "+codeString(code))
		default:
			msg := make([]byte, len(f.Payload))
			copy(msg, f.Payload)
			return f.Opcode, msg, nil
		}
	}
}

func codeString(c CloseCode) string {
	switch c {
	case CloseNormal:
		return "normal"
	case CloseGoingAway:
		return "going_away"
	case CloseProtocolError:
		return "protocol_error"
	default:
		return "other"
	}
}

// WriteMessage sends a single-frame Text or Binary message.
func (c *Conn) WriteMessage(opcode Opcode, data []byte) error {
	if err := writeFrame(c.stream, opcode, true, data); err != nil {
		return err
	}
	return c.stream.Flush()
}

// Close sends a Close frame with code and closes the underlying
// connection.
func (c *Conn) Close(code CloseCode) error {
	if c.closed {
		return nil
	}
	var payload [2]byte
	binary.BigEndian.PutUint16(payload[:], uint16(code))
	_ = writeFrame(c.stream, OpcodeClose, true, payload[:])
	_ = c.stream.Flush()
	c.closed = true
	return c.stream.Close()
}
