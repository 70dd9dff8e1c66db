package bleproxy

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/procfs"
)

// ServerState is the lifecycle phase reported in the status JSON.
type ServerState string

const (
	StateStarting ServerState = "starting"
	StateRunning  ServerState = "running"
	StateStopping ServerState = "stopping"

	// StateStopped never appears in a status JSON snapshot (nothing is
	// listening on the characteristic by the time it would apply) but
	// is the terminal token spec.md §4.8 requires in the status file.
	StateStopped ServerState = "stopped"
)

// Snapshot is the JSON document exposed via the Status characteristic,
// per spec.md §6.
type Snapshot struct {
	Status             ServerState `json:"status"`
	Uptime             int64       `json:"uptime"`
	HTTPPort           int         `json:"http_port"`
	TotalConnections   uint64      `json:"total_connections"`
	TotalRequests      uint64      `json:"total_requests"`
	TotalBytesSent     uint64      `json:"total_bytes_sent"`
	TotalBytesReceived uint64      `json:"total_bytes_received"`
	ConnectedClients   int         `json:"connected_clients"`
	CPUPercent         *float64    `json:"cpu_percent,omitempty"`
	MemoryPercent      *float64    `json:"memory_percent,omitempty"`
}

// Tracker is the mutex-guarded connection/stats aggregator, per
// spec.md §4.7. Its counters double as the source of truth for the
// internal Prometheus collectors registered alongside it.
type Tracker struct {
	mu sync.Mutex

	state       ServerState
	startedAt   time.Time
	httpPort    int
	connected   map[string]bool
	connections uint64
	requests    uint64
	bytesSent   uint64
	bytesRecv   uint64

	lastSnapshotAt time.Time
	lastSnapshot   *Snapshot
	snapshotEvery  time.Duration

	cpu *cpuSampler

	panics uint64

	registry        *prometheus.Registry
	requestsMetric  prometheus.Counter
	bytesSentMetric prometheus.Counter
	bytesRecvMetric prometheus.Counter
	connectedMetric prometheus.Gauge
	originLatency   prometheus.Histogram
	panicsMetric    prometheus.Counter
}

func NewTracker(httpPort int) *Tracker {
	t := &Tracker{
		state:         StateStarting,
		startedAt:     time.Now(),
		httpPort:      httpPort,
		connected:     make(map[string]bool),
		snapshotEvery: 2 * time.Second,
		cpu:           newCPUSampler(),
		registry:      prometheus.NewRegistry(),
	}

	t.requestsMetric = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nettool_ble_proxy_requests_total",
		Help: "Total HTTP requests completed through reassembly.",
	})
	t.bytesSentMetric = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nettool_ble_proxy_bytes_sent_total",
		Help: "Total payload bytes emitted on the response characteristic.",
	})
	t.bytesRecvMetric = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nettool_ble_proxy_bytes_received_total",
		Help: "Total payload bytes accepted on the request characteristic.",
	})
	t.connectedMetric = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "nettool_ble_proxy_connected_clients",
		Help: "Number of centrals currently connected.",
	})
	t.originLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "nettool_ble_proxy_origin_latency_seconds",
		Help:    "Latency of forwarded requests to the local HTTP origin.",
		Buckets: prometheus.DefBuckets,
	})
	t.panicsMetric = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nettool_ble_proxy_panics_total",
		Help: "Total panics recovered from worker, GC, and watcher goroutines.",
	})
	t.registry.MustRegister(t.requestsMetric, t.bytesSentMetric, t.bytesRecvMetric, t.connectedMetric, t.originLatency, t.panicsMetric)

	return t
}

// Registry exposes the internal Prometheus collector set. Not served
// over HTTP by this daemon (spec.md's CLI surface is two flags and no
// extra listeners) — it exists so tests and embedders can assert on
// the same counters the JSON snapshot reports.
func (t *Tracker) Registry() *prometheus.Registry { return t.registry }

func (t *Tracker) SetState(s ServerState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = s
}

// MarkConnected is idempotent: connecting an already-connected device
// path is a no-op beyond the cumulative counter semantics spec.md §4.7
// calls for (each *new* connection increments total_connections once).
func (t *Tracker) MarkConnected(devicePath string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.connected[devicePath] {
		return
	}
	t.connected[devicePath] = true
	t.connections++
	t.connectedMetric.Set(float64(len(t.connected)))
}

func (t *Tracker) MarkDisconnected(devicePath string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected[devicePath] {
		return
	}
	delete(t.connected, devicePath)
	t.connectedMetric.Set(float64(len(t.connected)))
}

// RecordReceived accounts payload bytes accepted on the Request
// characteristic. completed should be true exactly once per COMPLETE
// reassembly (spec.md §4.7, §8 invariant 4).
func (t *Tracker) RecordReceived(n int, completed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bytesRecv += uint64(n)
	t.bytesRecvMetric.Add(float64(n))
	if completed {
		t.requests++
		t.requestsMetric.Inc()
	}
}

// RecordSent accounts payload bytes emitted on the Response
// characteristic.
func (t *Tracker) RecordSent(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bytesSent += uint64(n)
	t.bytesSentMetric.Add(float64(n))
}

func (t *Tracker) ObserveOriginLatency(d time.Duration) {
	t.originLatency.Observe(d.Seconds())
}

// RecordPanic accounts a panic recovered by RecoverToLog.
func (t *Tracker) RecordPanic() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.panics++
	t.panicsMetric.Inc()
}

// Snapshot composes the status JSON document. Reads always return a
// fresh snapshot; forNotify rate-limits to spec.md §4.7's 2s window so
// a high request rate doesn't turn into a notification storm.
func (t *Tracker) Snapshot(forNotify bool) *Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	if forNotify && t.lastSnapshot != nil && time.Since(t.lastSnapshotAt) < t.snapshotEvery {
		return t.lastSnapshot
	}

	snap := &Snapshot{
		Status:             t.state,
		Uptime:             int64(time.Since(t.startedAt).Seconds()),
		HTTPPort:           t.httpPort,
		TotalConnections:   t.connections,
		TotalRequests:      t.requests,
		TotalBytesSent:     t.bytesSent,
		TotalBytesReceived: t.bytesRecv,
		ConnectedClients:   len(t.connected),
	}
	if cpu, mem, ok := t.cpu.sample(); ok {
		snap.CPUPercent = &cpu
		snap.MemoryPercent = &mem
	}

	t.lastSnapshot = snap
	t.lastSnapshotAt = time.Now()
	return snap
}

// cpuSampler reads /proc via prometheus/procfs to compute instantaneous
// CPU and memory percentages for the current process, the way
// kata-containers and sockstats both lean on procfs instead of
// shelling out to ps.
type cpuSampler struct {
	fs        procfs.FS
	available bool
	memTotal  uint64 // bytes

	lastWall time.Time
	lastCPU  float64
}

func newCPUSampler() *cpuSampler {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return &cpuSampler{available: false}
	}
	s := &cpuSampler{fs: fs, available: true}
	if mi, err := fs.Meminfo(); err == nil && mi.MemTotal != nil {
		s.memTotal = *mi.MemTotal * 1024
	}
	return s
}

func (s *cpuSampler) sample() (cpuPercent, memPercent float64, ok bool) {
	if !s.available || s.memTotal == 0 {
		return 0, 0, false
	}
	proc, err := s.fs.NewProc(os.Getpid())
	if err != nil {
		return 0, 0, false
	}
	stat, err := proc.Stat()
	if err != nil {
		return 0, 0, false
	}

	now := time.Now()
	cpuTime := stat.CPUTime()
	if !s.lastWall.IsZero() {
		wallDelta := now.Sub(s.lastWall).Seconds()
		cpuDelta := cpuTime - s.lastCPU
		if wallDelta > 0 {
			cpuPercent = 100 * cpuDelta / wallDelta
		}
	}
	s.lastWall = now
	s.lastCPU = cpuTime

	rss := uint64(stat.ResidentMemory())
	memPercent = 100 * float64(rss) / float64(s.memTotal)
	return cpuPercent, memPercent, true
}
