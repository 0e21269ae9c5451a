// Package metrics provides performance tracking for stratum kernels using
// Prometheus metrics.
//
// # Overview
//
// The metrics package provides:
//   - Pre-defined metrics for kernel invocations, latency and rows processed
//   - Allocation accounting fed by the stream allocator
//   - A Collector bound to one kernel name
//   - Throughput tracking utilities
//
// # Basic Usage
//
//	collector := metrics.NewCollector("scan")
//	timer := metrics.NewTimer("scan")
//	out, err := runScan()
//	collector.RecordInvocation("int64", err, timer.Stop(), n)
//
// Handler exposes the default registry for scraping.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Invocation status label values.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

var (
	// KernelInvocations counts kernel invocations.
	// Labels: kernel (scan/drop_nulls/...), type (element type), status (success/failure)
	KernelInvocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stratum_kernel_invocations_total",
			Help: "Total number of kernel invocations",
		},
		[]string{"kernel", "type", "status"},
	)

	// KernelLatency tracks the distribution of kernel latencies in seconds.
	KernelLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "stratum_kernel_latency_seconds",
			Help: "Kernel latency in seconds",
			Buckets: []float64{
				1e-6, // 1μs - empty or short-circuited inputs
				1e-5,
				1e-4,
				1e-3, // 1ms - small columns
				1e-2,
				1e-1,
				1, // 1s - large string columns
				10,
			},
		},
		[]string{"kernel"},
	)

	// RowsProcessed counts input rows handled by each kernel.
	RowsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stratum_rows_processed_total",
			Help: "Total number of input rows processed",
		},
		[]string{"kernel"},
	)

	// BytesAllocated counts bytes handed out by stream allocators.
	BytesAllocated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stratum_bytes_allocated_total",
			Help: "Total bytes allocated by stream allocators",
		},
	)

	// BytesInUse tracks bytes currently held by stream allocators.
	BytesInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stratum_bytes_in_use",
			Help: "Bytes currently held by stream allocators",
		},
	)

	// Throughput tracks rows per second per kernel
	Throughput = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stratum_throughput_rows_per_second",
			Help: "Current throughput in rows per second",
		},
		[]string{"kernel"},
	)
)

// Handler returns an HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Collector records metrics for a single kernel.
type Collector struct {
	kernel      string
	invocations *prometheus.CounterVec
	latency     prometheus.Observer
	rows        prometheus.Counter
}

// NewCollector creates a collector labelled with the kernel name.
func NewCollector(kernel string) *Collector {
	return &Collector{
		kernel:      kernel,
		invocations: KernelInvocations,
		latency:     KernelLatency.WithLabelValues(kernel),
		rows:        RowsProcessed.WithLabelValues(kernel),
	}
}

// RecordInvocation records one finished invocation.
func (c *Collector) RecordInvocation(dtype string, err error, elapsed time.Duration, rows int) {
	status := StatusSuccess
	if err != nil {
		status = StatusFailure
	}
	c.invocations.WithLabelValues(c.kernel, dtype, status).Inc()
	c.latency.Observe(elapsed.Seconds())
	if err == nil && rows > 0 {
		c.rows.Add(float64(rows))
	}
}

// RecordAllocation accounts for size bytes acquired (positive) or released (negative).
func RecordAllocation(size int) {
	if size > 0 {
		BytesAllocated.Add(float64(size))
	}
	BytesInUse.Add(float64(size))
}

// Timer provides a simple timing mechanism for measuring operation durations.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Name returns the timer name.
func (t *Timer) Name() string {
	return t.name
}

// Stop returns the elapsed duration since creation. It can be called
// multiple times.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// ThroughputTracker tracks rows per second over time windows.
// Thread-safe for concurrent use.
type ThroughputTracker struct {
	mu        sync.Mutex
	count     int64
	lastReset time.Time
	kernel    string
}

// NewThroughputTracker creates a new throughput tracker for a kernel.
func NewThroughputTracker(kernel string) *ThroughputTracker {
	return &ThroughputTracker{
		lastReset: time.Now(),
		kernel:    kernel,
	}
}

// Increment adds n to the row count. Safe for concurrent use.
func (t *ThroughputTracker) Increment(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count += n
}

// GetAndReset calculates the current throughput, updates the Prometheus
// gauge, resets the counter and returns the throughput.
func (t *ThroughputTracker) GetAndReset() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.lastReset).Seconds()
	if elapsed == 0 {
		return 0
	}

	throughput := float64(t.count) / elapsed

	t.count = 0
	t.lastReset = time.Now()

	Throughput.WithLabelValues(t.kernel).Set(throughput)

	return throughput
}
