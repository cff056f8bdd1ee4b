// Package monitor tracks engine health counters and latency histograms.
package monitor

import (
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics tracks scheduler and evaluation activity.
type Metrics struct {
	// Latency histograms
	CycleLatency *LatencyHistogram
	DataLatency  *LatencyHistogram
	OrderLatency *LatencyHistogram
	APILatency   *LatencyHistogram

	// Counters
	ticks        uint64
	cycles       uint64
	signals      uint64
	orders       uint64
	faults       uint64
	breakerTrips uint64
	apiRequests  uint64
	apiErrors    uint64

	lastUpdate time.Time
}

// NewMetrics creates a metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{
		CycleLatency: NewLatencyHistogram(1000),
		DataLatency:  NewLatencyHistogram(1000),
		OrderLatency: NewLatencyHistogram(1000),
		APILatency:   NewLatencyHistogram(1000),
		lastUpdate:   time.Now(),
	}
}

// LatencyHistogram tracks latency samples with a sliding window and lazy
// stats computation.
type LatencyHistogram struct {
	mu          sync.Mutex
	samples     []float64
	maxSize     int
	dirty       bool
	cachedStats LatencyStats
}

// NewLatencyHistogram creates a sliding-window histogram.
func NewLatencyHistogram(size int) *LatencyHistogram {
	if size <= 0 {
		size = 1000
	}
	return &LatencyHistogram{
		samples: make([]float64, 0, size),
		maxSize: size,
		dirty:   true,
	}
}

// Record adds a latency sample in milliseconds.
func (h *LatencyHistogram) Record(latencyMs float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.samples) >= h.maxSize {
		h.samples = h.samples[1:]
	}
	h.samples = append(h.samples, latencyMs)
	h.dirty = true
}

// RecordDuration converts a duration to ms and records it.
func (h *LatencyHistogram) RecordDuration(d time.Duration) {
	h.Record(float64(d.Nanoseconds()) / 1e6)
}

// Stats returns min, max, avg, p50, p95, p99. Recomputes only when samples
// have changed since the last call.
func (h *LatencyHistogram) Stats() LatencyStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.dirty && h.cachedStats.Count > 0 {
		return h.cachedStats
	}

	n := len(h.samples)
	if n == 0 {
		return LatencyStats{}
	}

	sorted := make([]float64, n)
	copy(sorted, h.samples)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}

	h.cachedStats = LatencyStats{
		Min:   sorted[0],
		Max:   sorted[n-1],
		Avg:   sum / float64(n),
		P50:   sorted[n/2],
		P95:   sorted[int(float64(n)*0.95)],
		P99:   sorted[int(float64(n)*0.99)],
		Count: n,
	}
	h.dirty = false

	return h.cachedStats
}

// LatencyStats holds computed latency statistics.
type LatencyStats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
	Count int     `json:"count"`
}

// IncrementTicks counts one scheduler wake-up.
func (m *Metrics) IncrementTicks() {
	atomic.AddUint64(&m.ticks, 1)
}

// IncrementCycles counts one completed evaluation cycle.
func (m *Metrics) IncrementCycles() {
	atomic.AddUint64(&m.cycles, 1)
}

// IncrementSignals counts one non-HOLD signal.
func (m *Metrics) IncrementSignals() {
	atomic.AddUint64(&m.signals, 1)
}

// IncrementOrders counts one filled order.
func (m *Metrics) IncrementOrders() {
	atomic.AddUint64(&m.orders, 1)
}

// IncrementFaults counts one cycle fault.
func (m *Metrics) IncrementFaults() {
	atomic.AddUint64(&m.faults, 1)
}

// IncrementBreakerTrips counts one circuit-breaker trip.
func (m *Metrics) IncrementBreakerTrips() {
	atomic.AddUint64(&m.breakerTrips, 1)
}

// IncrementAPIRequests counts one handled HTTP request.
func (m *Metrics) IncrementAPIRequests() {
	atomic.AddUint64(&m.apiRequests, 1)
}

// IncrementAPIErrors counts one HTTP request that returned 4xx/5xx.
func (m *Metrics) IncrementAPIErrors() {
	atomic.AddUint64(&m.apiErrors, 1)
}

// Snapshot is a point-in-time view of the metrics.
type Snapshot struct {
	CycleLatency     LatencyStats `json:"cycle_latency"`
	DataLatency      LatencyStats `json:"data_latency"`
	OrderLatency     LatencyStats `json:"order_latency"`
	APILatency       LatencyStats `json:"api_latency"`
	Ticks            uint64       `json:"ticks"`
	Cycles           uint64       `json:"cycles"`
	SignalsGenerated uint64       `json:"signals_generated"`
	OrdersPlaced     uint64       `json:"orders_placed"`
	Faults           uint64       `json:"faults"`
	BreakerTrips     uint64       `json:"breaker_trips"`
	APIRequests      uint64       `json:"api_requests"`
	APIErrors        uint64       `json:"api_errors"`
	GoroutineCount   int          `json:"goroutine_count"`
	HeapAlloc        uint64       `json:"heap_alloc_bytes"`
	HeapSys          uint64       `json:"heap_sys_bytes"`
	Timestamp        time.Time    `json:"timestamp"`
}

// GetSnapshot returns a point-in-time metrics snapshot.
func (m *Metrics) GetSnapshot() Snapshot {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return Snapshot{
		CycleLatency:     m.CycleLatency.Stats(),
		DataLatency:      m.DataLatency.Stats(),
		OrderLatency:     m.OrderLatency.Stats(),
		APILatency:       m.APILatency.Stats(),
		Ticks:            atomic.LoadUint64(&m.ticks),
		Cycles:           atomic.LoadUint64(&m.cycles),
		SignalsGenerated: atomic.LoadUint64(&m.signals),
		OrdersPlaced:     atomic.LoadUint64(&m.orders),
		Faults:           atomic.LoadUint64(&m.faults),
		BreakerTrips:     atomic.LoadUint64(&m.breakerTrips),
		APIRequests:      atomic.LoadUint64(&m.apiRequests),
		APIErrors:        atomic.LoadUint64(&m.apiErrors),
		GoroutineCount:   runtime.NumGoroutine(),
		HeapAlloc:        memStats.HeapAlloc,
		HeapSys:          memStats.HeapSys,
		Timestamp:        time.Now(),
	}
}

// Timer helps measure operation duration.
type Timer struct {
	start     time.Time
	histogram *LatencyHistogram
}

// NewTimer creates a timer that records to the given histogram.
func NewTimer(h *LatencyHistogram) *Timer {
	return &Timer{start: time.Now(), histogram: h}
}

// Stop records elapsed time to the histogram.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	if t.histogram != nil {
		t.histogram.RecordDuration(elapsed)
	}
	return elapsed
}
