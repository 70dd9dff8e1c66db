package main

import (
	"time"

	"github.com/op/go-logging"

	bleproxy "github.com/NetScout-Go/Plugin-ble-http-proxy"
)

// maxWorkers is the spec.md §5 cap on concurrent in-flight HTTP
// transactions; additional completed requests queue behind it.
const maxWorkers = 16

// job is one COMPLETE reassembled request ready for the HTTP pipeline.
// immediateErr short-circuits straight to a synthesized error response
// (e.g. OVERSIZE) without ever attempting to parse or forward payload.
type job struct {
	id           bleproxy.ID
	connID       string
	devicePath   string
	payload      []byte
	immediateErr error
}

// Pool runs the request->origin->response pipeline on a bounded number
// of goroutines, mirroring the teacher's agent/bluetooth.go start()
// loop shape (a channel consumer fanning work out) generalized from
// "broadcast to every subscriber" to "feed N workers".
type Pool struct {
	jobs      chan job
	origin    *bleproxy.OriginClient
	chunker   *bleproxy.Chunker
	tracker   *bleproxy.Tracker
	responses *ResponseCharacteristic
	log       *logging.Logger
	mtuFunc   func(devicePath string) int
}

func NewPool(origin *bleproxy.OriginClient, chunker *bleproxy.Chunker, tracker *bleproxy.Tracker, responses *ResponseCharacteristic, log *logging.Logger, mtuFunc func(string) int) *Pool {
	return &Pool{
		jobs:      make(chan job, bleproxy.MaxConcurrentIDs),
		origin:    origin,
		chunker:   chunker,
		tracker:   tracker,
		responses: responses,
		log:       log,
		mtuFunc:   mtuFunc,
	}
}

// Start launches the fixed worker goroutines. Call once at startup.
func (p *Pool) Start() {
	for i := 0; i < maxWorkers; i++ {
		go p.work()
	}
}

// Submit enqueues a completed request without ever blocking the BLE
// write callback. The queue holds MaxConcurrentIDs jobs; when it is
// full the job is dropped and an error is logged, and no response is
// sent for it.
func (p *Pool) Submit(j job) {
	select {
	case p.jobs <- j:
	default:
		p.log.Error("worker pool saturated, dropping completed request for", j.connID)
	}
}

func (p *Pool) work() {
	for j := range p.jobs {
		bleproxy.RecoverToLog(func() { p.handle(j) }, p.log, p.tracker)
	}
}

func (p *Pool) handle(j job) {
	if j.immediateErr != nil {
		p.respond(j, bleproxy.SynthesizeError(j.immediateErr))
		return
	}

	req, err := bleproxy.ParseRequest(j.payload)
	if err != nil {
		p.respond(j, bleproxy.SynthesizeError(bleproxy.ErrBadRequest))
		return
	}

	start := time.Now()
	resp, err := p.origin.Forward(req)
	p.tracker.ObserveOriginLatency(time.Since(start))
	if err != nil {
		p.log.Warning("origin forward failed:", err)
		resp = bleproxy.SynthesizeError(err)
	}
	p.respond(j, resp)
}

func (p *Pool) respond(j job, resp *bleproxy.Response) {
	mtuPayload := p.mtuFunc(j.connID)
	sent := 0
	notifier := notifierFunc(func(connID string, frame []byte) error {
		err := p.responses.PushFrame(frame)
		if err == nil && len(frame) >= bleproxy.HeaderLen {
			sent += len(frame) - bleproxy.HeaderLen
		}
		return err
	})
	if err := p.chunker.Emit(notifier, j.connID, j.id, resp, mtuPayload); err != nil {
		p.log.Error("response chunker abandoned response for", j.connID, ":", err)
	}
	p.tracker.RecordSent(sent)
}

type notifierFunc func(connID string, frame []byte) error

func (f notifierFunc) Notify(connID string, frame []byte) error { return f(connID, frame) }
