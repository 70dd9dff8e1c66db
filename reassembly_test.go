package bleproxy

import (
	"bytes"
	"testing"
	"time"
)

type nullLogger struct{}

func (nullLogger) Warningf(format string, args ...interface{}) {}

func TestReassemblySingleFrame(t *testing.T) {
	table := NewTable(nullLogger{})
	id := testID(1)
	payload := []byte("GET / HTTP/1.1\r\n\r\n")

	frame, _ := Decode(mustEncode(t, id, FlagFirst|FlagLast, payload))
	outcome := table.Admit(frame, "dev-a")
	if outcome.Result != Complete {
		t.Fatalf("got %v want Complete", outcome.Result)
	}
	if !bytes.Equal(outcome.Payload, payload) {
		t.Fatalf("payload mismatch")
	}
	if table.Len() != 0 {
		t.Fatalf("entry should be removed on Complete")
	}
}

func TestReassemblyFragmented(t *testing.T) {
	table := NewTable(nullLogger{})
	id := testID(2)
	parts := [][]byte{[]byte("GET "), []byte("/foo "), []byte("HTTP/1.1\r\n\r\n")}

	for i, p := range parts {
		var flags byte
		if i == 0 {
			flags |= FlagFirst
		}
		if i == len(parts)-1 {
			flags |= FlagLast
		}
		frame, _ := Decode(mustEncode(t, id, flags, p))
		outcome := table.Admit(frame, "dev-a")
		if i < len(parts)-1 {
			if outcome.Result != Buffered {
				t.Fatalf("frame %d: got %v want Buffered", i, outcome.Result)
			}
		} else {
			if outcome.Result != Complete {
				t.Fatalf("final frame: got %v want Complete", outcome.Result)
			}
			want := bytes.Join(parts, nil)
			if !bytes.Equal(outcome.Payload, want) {
				t.Fatalf("reassembled payload mismatch: got %q want %q", outcome.Payload, want)
			}
		}
	}
}

func TestReassemblyUnknownContinuation(t *testing.T) {
	table := NewTable(nullLogger{})
	frame, _ := Decode(mustEncode(t, testID(9), 0, []byte("x")))
	outcome := table.Admit(frame, "dev-a")
	if outcome.Result != UnknownContinuation {
		t.Fatalf("got %v want UnknownContinuation", outcome.Result)
	}
}

func TestReassemblyOversize(t *testing.T) {
	table := NewTable(nullLogger{})
	id := testID(3)

	first, _ := Decode(mustEncode(t, id, FlagFirst, make([]byte, 100)))
	if outcome := table.Admit(first, "dev-a"); outcome.Result != Buffered {
		t.Fatalf("first frame: got %v want Buffered", outcome.Result)
	}

	big, _ := Decode(mustEncode(t, id, FlagLast, make([]byte, MaxRequestBytes)))
	outcome := table.Admit(big, "dev-a")
	if outcome.Result != Oversize {
		t.Fatalf("got %v want Oversize", outcome.Result)
	}
	if table.Len() != 0 {
		t.Fatalf("oversize entry should be removed")
	}
}

func TestReassemblyDuplicateFirstEvicts(t *testing.T) {
	table := NewTable(nullLogger{})
	id := testID(4)

	f1, _ := Decode(mustEncode(t, id, FlagFirst, []byte("stale")))
	table.Admit(f1, "dev-a")

	f2, _ := Decode(mustEncode(t, id, FlagFirst|FlagLast, []byte("fresh")))
	outcome := table.Admit(f2, "dev-a")
	if outcome.Result != Complete {
		t.Fatalf("got %v want Complete", outcome.Result)
	}
	if !bytes.Equal(outcome.Payload, []byte("fresh")) {
		t.Fatalf("expected stale entry evicted, got %q", outcome.Payload)
	}
}

func TestReassemblyOverload(t *testing.T) {
	table := NewTable(nullLogger{})
	for i := 0; i < MaxConcurrentIDs; i++ {
		id := testID(byte(i))
		frame, _ := Decode(mustEncode(t, id, FlagFirst, []byte("x")))
		if outcome := table.Admit(frame, "dev-a"); outcome.Result != Buffered {
			t.Fatalf("entry %d: got %v want Buffered", i, outcome.Result)
		}
	}
	overflowID := testID(0)
	overflowID[IDLen-1] = 1 // differs from every testID(i) already in the table
	overflow, _ := Decode(mustEncode(t, overflowID, FlagFirst, []byte("x")))
	if outcome := table.Admit(overflow, "dev-a"); outcome.Result != Overloaded {
		t.Fatalf("got %v want Overloaded", outcome.Result)
	}
}

func TestReassemblyDropDevice(t *testing.T) {
	table := NewTable(nullLogger{})
	f1, _ := Decode(mustEncode(t, testID(1), FlagFirst, []byte("a")))
	f2, _ := Decode(mustEncode(t, testID(2), FlagFirst, []byte("b")))
	table.Admit(f1, "dev-a")
	table.Admit(f2, "dev-b")

	if n := table.DropDevice("dev-a"); n != 1 {
		t.Fatalf("got %d want 1", n)
	}
	if table.Len() != 1 {
		t.Fatalf("expected one entry remaining")
	}
}

func TestReassemblyGCSweepsAbandoned(t *testing.T) {
	table := NewTable(nullLogger{})
	f1, _ := Decode(mustEncode(t, testID(1), FlagFirst, []byte("a")))
	table.Admit(f1, "dev-a")

	table.entries[testID(1)].createdAt = time.Now().Add(-time.Hour)
	if n := table.GC(30 * time.Second); n != 1 {
		t.Fatalf("got %d want 1", n)
	}
	if table.Len() != 0 {
		t.Fatalf("expected abandoned entry removed")
	}
}

func mustEncode(t *testing.T, id ID, flags byte, payload []byte) []byte {
	t.Helper()
	frame, err := EncodeWithMTU(id, flags, payload, HeaderLen+3+len(payload))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return frame
}
