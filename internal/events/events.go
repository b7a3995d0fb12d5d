// Package events delivers scenario payloads to the external collector.
//
// Delivery is best effort: Emit never blocks the frame loop and never fails,
// a full queue drops the event, and a failed send is logged and forgotten.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/occupancy.report/internal/httputil"
	"github.com/banshee-data/occupancy.report/internal/metrics"
	"github.com/banshee-data/occupancy.report/internal/monitoring"
	"github.com/banshee-data/occupancy.report/internal/timeutil"
)

// Collector routes.
const (
	RouteEvent = "event"
	RouteSetup = "setup"
)

// DefaultBaseURL is the collector address used when none is configured.
const DefaultBaseURL = "http://localhost:5001/"

// DefaultQueueSize bounds the number of events waiting for delivery.
const DefaultQueueSize = 64

var logf = monitoring.Component("events")

// Record is one JSON payload.
type Record map[string]interface{}

// Entry describes one delivery attempt, for the journal.
type Entry struct {
	ID         string    `json:"id"`
	RunID      string    `json:"run_id"`
	Route      string    `json:"route"`
	TimeMarker string    `json:"time_marker"`
	Payload    string    `json:"payload"`
	OK         bool      `json:"ok"`
	Error      string    `json:"error,omitempty"`
	SentAt     time.Time `json:"sent_at"`
}

// Journal records delivery attempts.
type Journal interface {
	RecordEvent(ctx context.Context, e Entry) error
}

// RouteStats counts delivery outcomes for one route.
type RouteStats struct {
	Queued  int `json:"queued"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Dropped int `json:"dropped"`
}

type outbound struct {
	id      string
	route   string
	marker  string
	payload []byte
}

// Config configures an Emitter.
type Config struct {
	BaseURL   string
	QueueSize int
	Client    httputil.HTTPClient
	Clock     timeutil.Clock
	Journal   Journal          // optional
	Metrics   *metrics.Metrics // optional
}

// Emitter queues records and sends them from Run.
type Emitter struct {
	baseURL string
	client  httputil.HTTPClient
	clock   timeutil.Clock
	journal Journal
	metrics *metrics.Metrics
	start   time.Time
	runID   string
	queue   chan outbound

	mu    sync.Mutex
	stats map[string]*RouteStats
}

// New creates an Emitter. The process start reference for time markers is
// taken from the clock at construction.
func New(cfg Config) *Emitter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(cfg.BaseURL, "/") {
		cfg.BaseURL += "/"
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Client == nil {
		cfg.Client = httputil.NewStandardClient(10 * time.Second)
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	return &Emitter{
		baseURL: cfg.BaseURL,
		client:  cfg.Client,
		clock:   cfg.Clock,
		journal: cfg.Journal,
		metrics: cfg.Metrics,
		start:   cfg.Clock.Now(),
		runID:   uuid.NewString(),
		queue:   make(chan outbound, cfg.QueueSize),
		stats:   make(map[string]*RouteStats),
	}
}

// RunID identifies this process run in the journal.
func (e *Emitter) RunID() string {
	return e.runID
}

// URL returns the collector URL for route.
func (e *Emitter) URL(route string) string {
	return e.baseURL + route
}

// TimeMarker returns seconds since start with two decimals.
func (e *Emitter) TimeMarker() string {
	return fmt.Sprintf("%.2f", e.clock.Since(e.start).Seconds())
}

// Emit stamps rec with a time marker and queues it for route. It never
// blocks; when the queue is full the event is dropped and logged.
func (e *Emitter) Emit(route string, rec Record) {
	marker := e.TimeMarker()
	out := make(Record, len(rec)+1)
	for k, v := range rec {
		out[k] = v
	}
	out["time_marker"] = marker

	payload, err := json.Marshal(out)
	if err != nil {
		logf("dropping %s event: encode: %v", route, err)
		e.count(route, func(s *RouteStats) { s.Dropped++ })
		return
	}
	logf("event_log %s %s", route, payload)

	select {
	case e.queue <- outbound{id: uuid.NewString(), route: route, marker: marker, payload: payload}:
		e.count(route, func(s *RouteStats) { s.Queued++ })
		if e.metrics != nil {
			e.metrics.EventsQueued.Add(1)
		}
	default:
		logf("queue full, dropping %s event at %s", route, marker)
		e.count(route, func(s *RouteStats) { s.Dropped++ })
		if e.metrics != nil {
			e.metrics.EventsDropped.Add(1)
		}
	}
}

// Run delivers queued events until ctx is done. Failures are logged and not
// retried.
func (e *Emitter) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-e.queue:
			e.deliver(ctx, ev)
		}
	}
}

// Flush delivers whatever is queued right now and returns.
func (e *Emitter) Flush(ctx context.Context) {
	for {
		select {
		case ev := <-e.queue:
			e.deliver(ctx, ev)
		default:
			return
		}
	}
}

func (e *Emitter) deliver(ctx context.Context, ev outbound) {
	err := e.Send(ctx, ev.route, ev.payload)
	if err != nil {
		logf("send %s failed: %v", ev.route, err)
		e.count(ev.route, func(s *RouteStats) { s.Failed++ })
		if e.metrics != nil {
			e.metrics.EventsFailed.Add(1)
		}
	} else {
		e.count(ev.route, func(s *RouteStats) { s.Sent++ })
		if e.metrics != nil {
			e.metrics.EventsSent.Add(1)
		}
	}

	if e.journal == nil {
		return
	}
	entry := Entry{
		ID:         ev.id,
		RunID:      e.runID,
		Route:      ev.route,
		TimeMarker: ev.marker,
		Payload:    string(ev.payload),
		OK:         err == nil,
		SentAt:     e.clock.Now().UTC(),
	}
	if err != nil {
		entry.Error = err.Error()
	}
	if jerr := e.journal.RecordEvent(ctx, entry); jerr != nil {
		logf("journal %s event: %v", ev.route, jerr)
	}
}

// Send posts one encoded payload to the collector.
func (e *Emitter) Send(ctx context.Context, route string, payload []byte) error {
	_, err := httputil.Post(ctx, e.client, e.URL(route), "application/json", payload)
	return err
}

func (e *Emitter) count(route string, fn func(*RouteStats)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.stats[route]
	if !ok {
		s = &RouteStats{}
		e.stats[route] = s
	}
	fn(s)
}

// Stats returns per-route delivery counts.
func (e *Emitter) Stats() map[string]RouteStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]RouteStats, len(e.stats))
	for k, v := range e.stats {
		out[k] = *v
	}
	return out
}

// Pending returns the number of queued events.
func (e *Emitter) Pending() int {
	return len(e.queue)
}
