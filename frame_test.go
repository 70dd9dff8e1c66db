package bleproxy

import (
	"bytes"
	"testing"
)

func testID(b byte) ID {
	var id ID
	for i := range id {
		id[i] = b
	}
	return id
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	id := testID(0x42)
	payload := []byte("GET / HTTP/1.1\r\n\r\n")

	frame, err := EncodeWithMTU(id, FlagFirst|FlagLast, payload, 515)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := Decode(frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.ID != id {
		t.Fatalf("id mismatch: got %v want %v", decoded.ID, id)
	}
	if decoded.Flags != FlagFirst|FlagLast {
		t.Fatalf("flags mismatch: got %x", decoded.Flags)
	}
	if !bytes.Equal(decoded.Payload, payload) {
		t.Fatalf("payload mismatch: got %q want %q", decoded.Payload, payload)
	}
	if !decoded.First() || !decoded.Last() {
		t.Fatalf("expected both First and Last set")
	}
}

func TestDecodeFrameTooShort(t *testing.T) {
	_, err := Decode(make([]byte, HeaderLen-1))
	if err != ErrFrameTooShort {
		t.Fatalf("got %v want ErrFrameTooShort", err)
	}
}

func TestDecodeReservedBits(t *testing.T) {
	frame := make([]byte, HeaderLen)
	frame[IDLen] = 0x04 // bit 2, reserved
	_, err := Decode(frame)
	if err != ErrFrameReservedBits {
		t.Fatalf("got %v want ErrFrameReservedBits", err)
	}
}

func TestEncodeTooLargeForMTU(t *testing.T) {
	id := testID(1)
	_, err := EncodeWithMTU(id, FlagFirst|FlagLast, make([]byte, 600), 515)
	if err != ErrFrameTooLarge {
		t.Fatalf("got %v want ErrFrameTooLarge", err)
	}
}

func TestMTUPayloadDefaultsAndFloor(t *testing.T) {
	if got := MTUPayload(515); got != 495 {
		t.Fatalf("MTUPayload(515) = %d, want 495", got)
	}
	if got := MTUPayload(23); got != 6 {
		t.Fatalf("MTUPayload(23) = %d, want floor of 6", got)
	}
}
