package bleproxy

import (
	"sync"
	"time"
)

// MaxRequestBytes is the hard per-request size cap: exceeding it fails
// the request with the Oversize outcome, answered with 413 Payload Too
// Large at the HTTP layer.
const MaxRequestBytes = 1 << 20 // 1 MiB

// MaxConcurrentIDs is the OVERLOAD cap from spec.md §5.
const MaxConcurrentIDs = 256

// pendingRequest is the growing buffer for one correlation ID's
// in-flight reassembly, plus the bookkeeping the GC sweep and the
// stats tracker need.
type pendingRequest struct {
	buf        []byte
	createdAt  time.Time
	devicePath string
}

// AdmitResult is the outcome Table.Admit returns for a single frame.
type AdmitResult int

const (
	Buffered AdmitResult = iota
	Complete
	Oversize
	UnknownContinuation
	Overloaded
)

// AdmitOutcome carries the result plus any data relevant to it: the
// full payload on Complete, nothing otherwise.
type AdmitOutcome struct {
	Result  AdmitResult
	Payload []byte
}

// Table is the correlation-ID-keyed reassembly table. All mutation
// happens under a single mutex; per spec.md §4.2 hold times are
// bounded by a single payload-length copy, never by I/O.
type Table struct {
	mu      sync.Mutex
	entries map[ID]*pendingRequest
	log     logger
}

type logger interface {
	Warningf(format string, args ...interface{})
}

func NewTable(log logger) *Table {
	return &Table{
		entries: make(map[ID]*pendingRequest),
		log:     log,
	}
}

// Admit applies one already-decoded frame to the table. The caller is
// responsible for frame decoding (and for rejecting FRAME_TOO_SHORT /
// FRAME_RESERVED_BITS before ever reaching here, per spec.md §7's
// policy that those are silently-ignored write errors, not reassembly
// outcomes).
func (t *Table) Admit(f Frame, devicePath string) AdmitOutcome {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, exists := t.entries[f.ID]

	if f.First() {
		if exists {
			t.log.Warningf("reassembly: duplicate FIRST for in-flight correlation ID, evicting stale entry (central restart)")
		} else if len(t.entries) >= MaxConcurrentIDs {
			return AdmitOutcome{Result: Overloaded}
		}
		entry = &pendingRequest{
			buf:        append([]byte(nil), f.Payload...),
			createdAt:  time.Now(),
			devicePath: devicePath,
		}
		t.entries[f.ID] = entry
	} else {
		if !exists {
			return AdmitOutcome{Result: UnknownContinuation}
		}
		entry.buf = append(entry.buf, f.Payload...)
	}

	if len(entry.buf) > MaxRequestBytes {
		delete(t.entries, f.ID)
		return AdmitOutcome{Result: Oversize}
	}

	if f.Last() {
		delete(t.entries, f.ID)
		return AdmitOutcome{Result: Complete, Payload: entry.buf}
	}

	return AdmitOutcome{Result: Buffered}
}

// DropDevice removes every pending entry owned by devicePath, used on
// central disconnect per spec.md §5 cancellation semantics.
func (t *Table) DropDevice(devicePath string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for id, e := range t.entries {
		if e.devicePath == devicePath {
			delete(t.entries, id)
			n++
		}
	}
	return n
}

// Len reports the number of entries currently mid-assembly.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// GC removes entries older than ttl and returns how many were dropped.
// Called periodically from a sweep goroutine (spec.md §4.2, §8
// invariant 5: no entry older than 30s survives a GC tick).
func (t *Table) GC(ttl time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := time.Now().Add(-ttl)
	n := 0
	for id, e := range t.entries {
		if e.createdAt.Before(cutoff) {
			delete(t.entries, id)
			n++
		}
	}
	return n
}

// RunGC loops GC on interval until ctx-like stop channel closes. Kept
// as a plain channel rather than a context.Context since it has no
// deadline of its own, only an external stop signal.
func (t *Table) RunGC(interval, ttl time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if n := t.GC(ttl); n > 0 {
				t.log.Warningf("reassembly: GC swept %d abandoned entries", n)
			}
		}
	}
}
