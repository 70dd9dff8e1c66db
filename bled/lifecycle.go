package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/op/go-logging"

	bleproxy "github.com/NetScout-Go/Plugin-ble-http-proxy"
)

// Daemon owns the whole running process: the bus connection, the GATT
// application, the advertisement, the reassembly table, the worker
// pool, and the stats tracker. Nothing here is a package-level global —
// every piece is reached through this struct, per spec.md §9's
// "no process-wide singletons" redesign note.
type Daemon struct {
	log         *logging.Logger
	conn        *dbus.Conn
	adapterPath dbus.ObjectPath
	app         *Application
	adv         *Advertisement
	table       *bleproxy.Table
	tracker     *bleproxy.Tracker
	pool        *Pool
	statusFile  string
	stopGC      chan struct{}
	stopWatch   chan struct{}

	mtuMu sync.Mutex
	mtu   map[string]int
}

type Config struct {
	DeviceName string
	HTTPPort   int
	StatusFile string
}

// Start runs the full lifecycle: bus connect, adapter discovery and
// power-on, GATT registration, advertisement registration, status
// file write, per spec.md §4.8.
func Start(cfg Config, log *logging.Logger) (*Daemon, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, bleproxy.ErrBusUnavailable
	}

	d := &Daemon{
		log:        log,
		conn:       conn,
		table:      bleproxy.NewTable(log),
		tracker:    bleproxy.NewTracker(cfg.HTTPPort),
		statusFile: cfg.StatusFile,
		stopGC:     make(chan struct{}),
		stopWatch:  make(chan struct{}),
		mtu:        make(map[string]int),
	}

	if err := writeStatus(d, bleproxy.StateStarting); err != nil {
		log.Warning("could not write status file:", err)
	}

	adapterPath, err := findAdapterWithRetry(conn, log)
	if err != nil {
		return nil, err
	}
	d.adapterPath = adapterPath

	if err := PowerOn(conn, adapterPath); err != nil {
		return nil, err
	}

	responses := NewResponseCharacteristic(servicePath, 1)
	status := NewStatusCharacteristic(servicePath, 2, func() []byte {
		snap := d.tracker.Snapshot(true)
		b, _ := json.Marshal(snap)
		return b
	})

	timeouts := bleproxy.DefaultTimeouts()
	origin := bleproxy.NewOriginClient(cfg.HTTPPort, timeouts.OriginCall)
	chunker := bleproxy.NewChunker(timeouts)
	d.pool = NewPool(origin, chunker, d.tracker, responses, log, d.mtuPayloadFor)
	d.pool.Start()

	requests := NewRequestCharacteristic(servicePath, 0, func(raw []byte, devicePath string, attMTU int) error {
		return d.onFrame(raw, devicePath, attMTU, responses)
	})

	d.app = NewApplication(conn, adapterPath)
	if err := d.app.Export([]Characteristic{requests, responses, status}); err != nil {
		return nil, err
	}
	if err := registerWithRetry(d.app.Register, log); err != nil {
		return nil, err
	}

	d.adv = NewAdvertisement(conn, adapterPath, cfg.DeviceName)
	if err := d.adv.Export(); err != nil {
		return nil, err
	}
	if err := registerWithRetry(d.adv.Register, log); err != nil {
		return nil, err
	}

	go bleproxy.RecoverToLog(func() {
		d.table.RunGC(timeouts.ReassemblyGC, timeouts.ReassemblyTTL, d.stopGC)
	}, log, d.tracker)
	go bleproxy.RecoverToLog(func() {
		if err := watchDeviceConnections(conn, d.table, d.tracker, log, d.stopWatch); err != nil {
			log.Warning("device connection watcher stopped:", err)
		}
	}, log, d.tracker)

	d.tracker.SetState(bleproxy.StateRunning)
	if err := writeStatus(d, bleproxy.StateRunning); err != nil {
		log.Warning("could not write status file:", err)
	}
	log.Notice("GATT application and advertisement registered, running")
	return d, nil
}

// onFrame is the Request characteristic's write handler: decode, admit
// into the reassembly table, and on COMPLETE enqueue a worker job.
// Per spec.md §5 this never suspends. devicePath and attMTU come
// straight from BlueZ's WriteValue options and are threaded through to
// the worker pool so chunking and cancellation stay per-connection.
func (d *Daemon) onFrame(raw []byte, devicePath string, attMTU int, responses *ResponseCharacteristic) error {
	frame, err := bleproxy.Decode(raw)
	if err != nil {
		d.log.Warning("dropping malformed frame:", err)
		return nil
	}
	d.tracker.RecordReceived(len(frame.Payload), false)
	if attMTU > 0 {
		d.setMTU(devicePath, attMTU)
	}

	outcome := d.table.Admit(frame, devicePath)
	switch outcome.Result {
	case bleproxy.Buffered:
		return nil
	case bleproxy.UnknownContinuation:
		d.log.Warning("dropping continuation frame for unknown correlation ID")
		return nil
	case bleproxy.Overloaded:
		d.log.Warning("reassembly table at capacity, rejecting new request")
		return nil
	case bleproxy.Oversize:
		d.pool.Submit(job{id: frame.ID, connID: devicePath, devicePath: devicePath, immediateErr: bleproxy.ErrOversize})
		return nil
	case bleproxy.Complete:
		d.tracker.RecordReceived(0, true)
		d.pool.Submit(job{id: frame.ID, connID: devicePath, devicePath: devicePath, payload: outcome.Payload})
		return nil
	}
	return nil
}

func (d *Daemon) setMTU(devicePath string, attMTU int) {
	d.mtuMu.Lock()
	defer d.mtuMu.Unlock()
	d.mtu[devicePath] = attMTU
}

// mtuPayloadFor returns the max response chunk size for a connection,
// falling back to DefaultATTMTU until a write from that device has told
// us its negotiated MTU.
func (d *Daemon) mtuPayloadFor(devicePath string) int {
	d.mtuMu.Lock()
	attMTU, ok := d.mtu[devicePath]
	d.mtuMu.Unlock()
	if !ok {
		attMTU = bleproxy.DefaultATTMTU
	}
	return bleproxy.MTUPayload(attMTU)
}

// Stop unregisters the advertisement, then the application — that
// order, per spec.md §4.6 — writes the stopped status, and gives
// in-flight workers their shutdown grace period.
func (d *Daemon) Stop() {
	d.tracker.SetState(bleproxy.StateStopping)
	close(d.stopGC)
	close(d.stopWatch)

	if err := d.adv.Unregister(); err != nil {
		d.log.Error("advertisement unregister failed:", err)
	}
	if err := d.app.Unregister(); err != nil {
		d.log.Error("application unregister failed:", err)
	}

	time.Sleep(bleproxy.DefaultTimeouts().ShutdownGrace)

	if err := writeStatus(d, bleproxy.StateStopped); err != nil {
		d.log.Warning("could not write status file:", err)
	}
	d.log.Notice("shutdown complete")
}

func writeStatus(d *Daemon, state bleproxy.ServerState) error {
	return bleproxy.WriteStatusFile(d.statusFile, state, os.Getpid(), time.Now())
}

// findAdapterWithRetry and registerWithRetry reuse the teacher's
// bluetoothMain crash-only retry shape (krd/bluetooth.go) for the
// narrow startup race against bluetoothd still coming up, not for
// steady-state failures (those are fatal per spec.md §7).
func findAdapterWithRetry(conn *dbus.Conn, log *logging.Logger) (dbus.ObjectPath, error) {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		path, err := FindAdapter(conn)
		if err == nil {
			return path, nil
		}
		lastErr = err
		log.Warning("no Bluetooth adapter yet, retrying:", err)
		time.Sleep(2 * time.Second)
	}
	return "", lastErr
}

func registerWithRetry(register func() error, log *logging.Logger) error {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if err := register(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warning("registration attempt failed, retrying:", err)
			time.Sleep(2 * time.Second)
		}
	}
	return lastErr
}

// WaitForSignal blocks until a termination signal arrives, mirroring
// the teacher's krd/krd.go signal-handling shape.
func WaitForSignal(log *logging.Logger) os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)
	sig := <-stop
	log.Notice("stopping with signal", sig)
	return sig
}
