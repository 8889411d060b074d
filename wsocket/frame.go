package wsocket

import (
	"encoding/binary"
	"io"

	"github.com/miraimindz/embercore/errs"
)

// Frame is one decoded WebSocket frame. Payload aliases the reusable buffer
// passed to readFrame (a Conn's read buffer) and is only valid until the
// next readFrame call on that buffer.
type Frame struct {
	Fin     bool
	Opcode  Opcode
	Payload []byte
}

const (
	finBit    = 0x80
	rsvMask   = 0x70
	opcodeMsk = 0x0F
	maskBit   = 0x80
	lenMask   = 0x7F
)

// readFrame decodes one frame from r, unmasking the payload in place if
// masked (a compliant client always masks; the spec requires the server
// reject an unmasked frame from a client — RFC 6455 §5.1). buf is reused
// across calls, growing if a larger payload is received.
//
// Grounded on shockwave/pkg/shockwave/websocket/frame.go's ReadFrame state
// machine (2-byte header, extended length, masking key, payload), trimmed
// of its pooled-buffer/SIMD-masking optimizations since this core is not
// chasing shockwave's per-frame allocation budget.
func readFrame(r io.Reader, buf []byte) (Frame, []byte, error) {
	var header [2]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Frame{}, buf, errs.Wrap(errs.KindEndOfStream, "failed to read frame header", err)
	}

	b0, b1 := header[0], header[1]
	f := Frame{
		Fin:    b0&finBit != 0,
		Opcode: Opcode(b0 & opcodeMsk),
	}
	if b0&rsvMask != 0 {
		return Frame{}, buf, errs.New(errs.KindBadRequest, "reserved bits set without negotiated extension")
	}

	masked := b1&maskBit != 0
	payloadLen := uint64(b1 & lenMask)

	if f.Opcode.isControl() {
		if !f.Fin {
			return Frame{}, buf, errs.New(errs.KindBadRequest, "fragmented control frame")
		}
		if payloadLen > maxControlFramePayload {
			return Frame{}, buf, errs.New(errs.KindBadRequest, "control frame payload too large")
		}
	}

	switch payloadLen {
	case 126:
		var ext [2]byte
		if _, err := io.ReadFull(r, ext[:]); err != nil {
			return Frame{}, buf, errs.Wrap(errs.KindEndOfStream, "failed to read extended length", err)
		}
		payloadLen = uint64(binary.BigEndian.Uint16(ext[:]))
	case 127:
		var ext [8]byte
		if _, err := io.ReadFull(r, ext[:]); err != nil {
			return Frame{}, buf, errs.Wrap(errs.KindEndOfStream, "failed to read extended length", err)
		}
		payloadLen = binary.BigEndian.Uint64(ext[:])
	}

	if !masked {
		return Frame{}, buf, errs.New(errs.KindBadRequest, "client frame must be masked")
	}

	var maskKey [4]byte
	if _, err := io.ReadFull(r, maskKey[:]); err != nil {
		return Frame{}, buf, errs.Wrap(errs.KindEndOfStream, "failed to read mask key", err)
	}

	if uint64(cap(buf)) < payloadLen {
		buf = make([]byte, payloadLen)
	}
	buf = buf[:payloadLen]
	if payloadLen > 0 {
		if _, err := io.ReadFull(r, buf); err != nil {
			return Frame{}, buf, errs.Wrap(errs.KindEndOfStream, "failed to read payload", err)
		}
		for i := range buf {
			buf[i] ^= maskKey[i%4]
		}
	}
	f.Payload = buf
	return f, buf, nil
}

// writeFrame encodes and writes one unmasked frame (server-to-client
// frames are never masked, RFC 6455 §5.1).
func writeFrame(w io.Writer, opcode Opcode, fin bool, payload []byte) error {
	var header [10]byte
	n := 1
	b0 := byte(opcode)
	if fin {
		b0 |= finBit
	}
	header[0] = b0

	switch {
	case len(payload) <= 125:
		header[1] = byte(len(payload))
		n = 2
	case len(payload) <= 0xFFFF:
		header[1] = 126
		binary.BigEndian.PutUint16(header[2:4], uint16(len(payload)))
		n = 4
	default:
		header[1] = 127
		binary.BigEndian.PutUint64(header[2:10], uint64(len(payload)))
		n = 10
	}

	if _, err := w.Write(header[:n]); err != nil {
		return errs.Wrap(errs.KindBrokenPipe, "failed to write frame header", err)
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return errs.Wrap(errs.KindBrokenPipe, "failed to write frame payload", err)
		}
	}
	return nil
}
