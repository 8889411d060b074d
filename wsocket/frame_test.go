package wsocket

import (
	"bytes"
	"testing"
)

// maskPayload applies a client-side mask in place, mirroring what a real
// client does before sending (frame reading always expects masked input).
func maskPayload(payload []byte, key [4]byte) {
	for i := range payload {
		payload[i] ^= key[i%4]
	}
}

func encodeClientFrame(opcode Opcode, fin bool, payload []byte) []byte {
	var buf bytes.Buffer
	b0 := byte(opcode)
	if fin {
		b0 |= finBit
	}
	buf.WriteByte(b0)

	masked := append([]byte(nil), payload...)
	key := [4]byte{0x11, 0x22, 0x33, 0x44}
	maskPayload(masked, key)

	switch {
	case len(payload) <= 125:
		buf.WriteByte(byte(len(payload)) | maskBit)
	case len(payload) <= 0xFFFF:
		buf.WriteByte(126 | maskBit)
		buf.WriteByte(byte(len(payload) >> 8))
		buf.WriteByte(byte(len(payload)))
	default:
		panic("test helper does not support 64-bit lengths")
	}
	buf.Write(key[:])
	buf.Write(masked)
	return buf.Bytes()
}

func TestReadFrameUnmasksPayload(t *testing.T) {
	raw := encodeClientFrame(OpcodeText, true, []byte("hello"))
	f, _, err := readFrame(bytes.NewReader(raw), nil)
	if err != nil {
		t.Fatalf("readFrame failed: %v", err)
	}
	if !f.Fin {
		t.Error("Fin = false, want true")
	}
	if f.Opcode != OpcodeText {
		t.Errorf("Opcode = %v, want OpcodeText", f.Opcode)
	}
	if string(f.Payload) != "hello" {
		t.Errorf("Payload = %q, want hello", f.Payload)
	}
}

func TestReadFrameRejectsUnmasked(t *testing.T) {
	raw := []byte{finBit | byte(OpcodeText), 5, 'h', 'e', 'l', 'l', 'o'}
	if _, _, err := readFrame(bytes.NewReader(raw), nil); err == nil {
		t.Fatal("expected error reading an unmasked frame")
	}
}

func TestReadFrameRejectsReservedBits(t *testing.T) {
	raw := encodeClientFrame(OpcodeText, true, []byte("x"))
	raw[0] |= 0x40 // set RSV1
	if _, _, err := readFrame(bytes.NewReader(raw), nil); err == nil {
		t.Fatal("expected error for reserved bits set without a negotiated extension")
	}
}

func TestReadFrameRejectsFragmentedControlFrame(t *testing.T) {
	raw := encodeClientFrame(OpcodePing, false, []byte("x"))
	if _, _, err := readFrame(bytes.NewReader(raw), nil); err == nil {
		t.Fatal("expected error for a fragmented control frame")
	}
}

func TestReadFrameExtendedLength16(t *testing.T) {
	payload := bytes.Repeat([]byte{'a'}, 200)
	raw := encodeClientFrame(OpcodeBinary, true, payload)
	f, _, err := readFrame(bytes.NewReader(raw), nil)
	if err != nil {
		t.Fatalf("readFrame failed: %v", err)
	}
	if len(f.Payload) != 200 {
		t.Errorf("len(Payload) = %d, want 200", len(f.Payload))
	}
}

func TestReadFrameReusesBufferWhenCapacitySuffices(t *testing.T) {
	buf := make([]byte, 0, 64)
	raw := encodeClientFrame(OpcodeText, true, []byte("short"))
	f, retBuf, err := readFrame(bytes.NewReader(raw), buf)
	if err != nil {
		t.Fatalf("readFrame failed: %v", err)
	}
	if cap(retBuf) != cap(buf) {
		t.Errorf("cap(retBuf) = %d, want %d (buffer should be reused, not reallocated)", cap(retBuf), cap(buf))
	}
	if string(f.Payload) != "short" {
		t.Errorf("Payload = %q, want short", f.Payload)
	}
}

func TestWriteFrameRoundTrip(t *testing.T) {
	var out bytes.Buffer
	payload := []byte("round trip payload")
	if err := writeFrame(&out, OpcodeText, true, payload); err != nil {
		t.Fatalf("writeFrame failed: %v", err)
	}

	// A server frame is never masked, so decode it directly without
	// expecting/removing a mask.
	b := out.Bytes()
	if b[0] != finBit|byte(OpcodeText) {
		t.Errorf("first byte = %x, want fin+text", b[0])
	}
	if int(b[1]) != len(payload) {
		t.Errorf("length byte = %d, want %d", b[1], len(payload))
	}
	if string(b[2:]) != string(payload) {
		t.Errorf("payload = %q, want %q", b[2:], payload)
	}
}

func TestWriteFrameLargePayloadUsesExtended64(t *testing.T) {
	var out bytes.Buffer
	payload := make([]byte, 70000)
	if err := writeFrame(&out, OpcodeBinary, true, payload); err != nil {
		t.Fatalf("writeFrame failed: %v", err)
	}
	b := out.Bytes()
	if b[1] != 127 {
		t.Errorf("length indicator = %d, want 127 for a 64-bit extended length", b[1])
	}
	if len(b) != 10+len(payload) {
		t.Errorf("total length = %d, want %d", len(b), 10+len(payload))
	}
}
