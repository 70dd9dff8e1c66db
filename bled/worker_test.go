package main

import (
	"testing"

	bleproxy "github.com/NetScout-Go/Plugin-ble-http-proxy"
)

func TestPoolHandleOversizeShortCircuitsToSynthesizedResponse(t *testing.T) {
	log := testLog()
	timeouts := bleproxy.DefaultTimeouts()
	timeouts.ResponseBudget = 0 // abandon on first backpressure instead of looping

	tracker := bleproxy.NewTracker(8080)
	responses := NewResponseCharacteristic(servicePath, 1) // not notifying: PushFrame always rejects
	chunker := bleproxy.NewChunker(timeouts)
	pool := NewPool(nil, chunker, tracker, responses, log, func(string) int { return 400 })

	var id bleproxy.ID
	id[0] = 7
	pool.handle(job{id: id, connID: "dev-a", devicePath: "dev-a", immediateErr: bleproxy.ErrOversize})

	snap := tracker.Snapshot(false)
	if snap.TotalBytesSent != 0 {
		t.Fatalf("expected no bytes recorded as sent when nobody is subscribed, got %d", snap.TotalBytesSent)
	}
}

func TestPoolSubmitDropsWhenSaturated(t *testing.T) {
	log := testLog()
	timeouts := bleproxy.DefaultTimeouts()
	tracker := bleproxy.NewTracker(8080)
	responses := NewResponseCharacteristic(servicePath, 1)
	chunker := bleproxy.NewChunker(timeouts)
	pool := NewPool(nil, chunker, tracker, responses, log, func(string) int { return 400 })

	// Fill the channel without starting workers to drain it.
	for i := 0; i < bleproxy.MaxConcurrentIDs; i++ {
		var id bleproxy.ID
		id[0] = byte(i)
		pool.Submit(job{id: id, connID: "dev-a"})
	}

	// One more must not block the caller.
	var overflow bleproxy.ID
	overflow[0] = 255
	done := make(chan struct{})
	go func() {
		pool.Submit(job{id: overflow, connID: "dev-a"})
		close(done)
	}()
	<-done
}
