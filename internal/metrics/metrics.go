// Package metrics holds the process counters and exposes them to Prometheus.
package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics. Counters only grow; the last three
// fields are gauges overwritten every frame.
type Metrics struct {
	// Frame pipeline
	FramesRead       atomic.Uint64
	FramesProcessed  atomic.Uint64
	FramesDropped    atomic.Uint64
	ReadErrors       atomic.Uint64
	ProcessingErrors atomic.Uint64

	// Event delivery
	EventsQueued  atomic.Uint64
	EventsSent    atomic.Uint64
	EventsFailed  atomic.Uint64
	EventsDropped atomic.Uint64

	// Per-frame gauges
	TrackedObjects   atomic.Uint64
	Violations       atomic.Uint64
	ProcessLatencyMs atomic.Uint64

	registry *prometheus.Registry
}

// New creates a Metrics instance with its own Prometheus registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}
	m.registerPrometheusMetrics()
	return m
}

func (m *Metrics) registerPrometheusMetrics() {
	gauges := []struct {
		name string
		help string
		v    *atomic.Uint64
	}{
		{"occupancy_frames_read_total", "Total frames read from the source", &m.FramesRead},
		{"occupancy_frames_processed_total", "Total frames processed", &m.FramesProcessed},
		{"occupancy_frames_dropped_total", "Frames replaced in the mailbox before processing", &m.FramesDropped},
		{"occupancy_read_errors_total", "Total frame source errors", &m.ReadErrors},
		{"occupancy_processing_errors_total", "Total frames whose processing failed", &m.ProcessingErrors},
		{"occupancy_events_queued_total", "Events accepted by the emitter queue", &m.EventsQueued},
		{"occupancy_events_sent_total", "Events delivered to the collector", &m.EventsSent},
		{"occupancy_events_failed_total", "Event deliveries that failed", &m.EventsFailed},
		{"occupancy_events_dropped_total", "Events dropped on a full queue", &m.EventsDropped},
		{"occupancy_tracked_objects", "Identities matched or created in the last frame", &m.TrackedObjects},
		{"occupancy_violations", "Identities violating distance in the last frame", &m.Violations},
		{"occupancy_process_latency_ms", "Processing time of the last frame in milliseconds", &m.ProcessLatencyMs},
	}
	for _, g := range gauges {
		v := g.v
		m.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Name: g.name, Help: g.help},
			func() float64 { return float64(v.Load()) },
		))
	}
}

// UpdateProcessLatency records how long the last frame took.
func (m *Metrics) UpdateProcessLatency(d time.Duration) {
	m.ProcessLatencyMs.Store(uint64(d.Milliseconds()))
}

// Registry returns the private registry, for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Snapshot is a plain copy of the counters for JSON status responses.
type Snapshot struct {
	FramesRead       uint64 `json:"frames_read"`
	FramesProcessed  uint64 `json:"frames_processed"`
	FramesDropped    uint64 `json:"frames_dropped"`
	ReadErrors       uint64 `json:"read_errors"`
	ProcessingErrors uint64 `json:"processing_errors"`
	EventsQueued     uint64 `json:"events_queued"`
	EventsSent       uint64 `json:"events_sent"`
	EventsFailed     uint64 `json:"events_failed"`
	EventsDropped    uint64 `json:"events_dropped"`
	TrackedObjects   uint64 `json:"tracked_objects"`
	Violations       uint64 `json:"violations"`
	ProcessLatencyMs uint64 `json:"process_latency_ms"`
}

// Snapshot copies the current values.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		FramesRead:       m.FramesRead.Load(),
		FramesProcessed:  m.FramesProcessed.Load(),
		FramesDropped:    m.FramesDropped.Load(),
		ReadErrors:       m.ReadErrors.Load(),
		ProcessingErrors: m.ProcessingErrors.Load(),
		EventsQueued:     m.EventsQueued.Load(),
		EventsSent:       m.EventsSent.Load(),
		EventsFailed:     m.EventsFailed.Load(),
		EventsDropped:    m.EventsDropped.Load(),
		TrackedObjects:   m.TrackedObjects.Load(),
		Violations:       m.Violations.Load(),
		ProcessLatencyMs: m.ProcessLatencyMs.Load(),
	}
}
