package bleproxy

import (
	"time"
)

// BackoffSchedule is the exponential backoff the response chunker walks
// through when the notification queue reports ERR_FULL: Steps in order,
// then the last delay doubled on each retry, never above Cap.
type BackoffSchedule struct {
	Steps []time.Duration
	Cap   time.Duration
}

type Timeouts struct {
	// OriginCall bounds a single forwarded HTTP request end-to-end.
	OriginCall time.Duration
	// ReassemblyGC is how often the sweep looks for abandoned entries.
	ReassemblyGC time.Duration
	// ReassemblyTTL is how long an entry may stay incomplete, measured
	// from its FIRST frame; later frames do not extend it.
	ReassemblyTTL time.Duration
	// ResponseBudget bounds the whole chunked-response emission,
	// backoff retries included.
	ResponseBudget time.Duration
	// ChunkPacing is the inter-frame delay used when the transport
	// exposes no credit-based flow control.
	ChunkPacing time.Duration
	// ShutdownGrace is how long in-flight workers get to finish
	// emitting before the process cancels them.
	ShutdownGrace time.Duration
	Backoff       BackoffSchedule
}

func DefaultTimeouts() Timeouts {
	return Timeouts{
		OriginCall:     10 * time.Second,
		ReassemblyGC:   5 * time.Second,
		ReassemblyTTL:  30 * time.Second,
		ResponseBudget: 10 * time.Second,
		ChunkPacing:    10 * time.Millisecond,
		ShutdownGrace:  1 * time.Second,
		Backoff: BackoffSchedule{
			Steps: []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond},
			Cap:   200 * time.Millisecond,
		},
	}
}
