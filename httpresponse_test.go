package bleproxy

import (
	"bytes"
	"testing"
)

func TestResponseSerializeRoundTrip(t *testing.T) {
	headers := NewHeaders()
	headers.Add("Content-Type", "text/plain")
	headers.Add("X-Multi", "one")
	headers.Add("X-Multi", "two")
	resp := NewResponse(200, "OK", headers, []byte("hi"))

	serialized := resp.Serialize()
	if !bytes.HasPrefix(serialized, []byte("HTTP/1.1 200 OK\r\n")) {
		t.Fatalf("unexpected status line: %q", serialized)
	}
	if !bytes.HasSuffix(serialized, []byte("\r\n\r\nhi")) {
		t.Fatalf("unexpected tail: %q", serialized)
	}

	parsed, err := ParseResponse(serialized)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.Status != 200 || parsed.Reason != "OK" {
		t.Fatalf("unexpected status: %d %q", parsed.Status, parsed.Reason)
	}
	if !bytes.Equal(parsed.Body, []byte("hi")) {
		t.Fatalf("body mismatch: %q", parsed.Body)
	}
	if !resp.Headers.Equal(parsed.Headers) {
		t.Fatalf("header order/duplicates not preserved across round trip")
	}
}

func TestSynthesizeErrorResponses(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{ErrOriginUnreachable, 502},
		{ErrOriginTimeout, 504},
		{ErrBadRequest, 400},
		{ErrOversize, 413},
	}
	for _, c := range cases {
		resp := SynthesizeError(c.err)
		if resp.Status != c.status {
			t.Fatalf("%v: got status %d want %d", c.err, resp.Status, c.status)
		}
	}
}
