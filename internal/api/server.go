package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/disintegration/imaging"

	"github.com/banshee-data/occupancy.report/internal/events"
	"github.com/banshee-data/occupancy.report/internal/httputil"
	"github.com/banshee-data/occupancy.report/internal/journal"
	"github.com/banshee-data/occupancy.report/internal/metrics"
	"github.com/banshee-data/occupancy.report/internal/monitoring"
	"github.com/banshee-data/occupancy.report/internal/pipeline"
	"github.com/banshee-data/occupancy.report/internal/security"
	"github.com/banshee-data/occupancy.report/internal/tracking"
	"github.com/banshee-data/occupancy.report/internal/version"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// EventStore is the read side of the event journal.
type EventStore interface {
	RecentEvents(ctx context.Context, limit int) ([]events.Entry, error)
	CountsByRoute(ctx context.Context) ([]journal.RouteCount, error)
}

// TrackSource exposes the live identities of a scenario's tracker.
type TrackSource interface {
	Snapshot() []tracking.Track
}

// DeliveryStats exposes per-route emitter counts.
type DeliveryStats interface {
	Stats() map[string]events.RouteStats
}

// Options configures a Server. Everything but Scenario and DeviceID is
// optional; the routes backed by a missing source answer 503.
type Options struct {
	Scenario string
	DeviceID string
	Metrics  *metrics.Metrics
	Journal  EventStore
	Emitter  DeliveryStats
	Tracks   TrackSource
}

// Server serves the latest processed frame and run counters. It is the
// pipeline's sink.
type Server struct {
	opts Options

	mu        sync.RWMutex
	latest    *pipeline.Result
	published uint64
}

func NewServer(opts Options) *Server {
	return &Server{opts: opts}
}

// Publish implements pipeline.Sink.
func (s *Server) Publish(r pipeline.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = &r
	s.published++
}

// Latest returns the most recent result, if any.
func (s *Server) Latest() (pipeline.Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return pipeline.Result{}, false
	}
	return *s.latest, true
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.showStatus)
	mux.HandleFunc("/tracks", s.listTracks)
	mux.HandleFunc("/events", s.listEvents)
	mux.HandleFunc("/frame.jpg", s.showFrame)
	mux.HandleFunc("/version", s.showVersion)
	return mux
}

type statusResponse struct {
	Scenario    string                       `json:"scenario"`
	DeviceID    string                       `json:"device_id"`
	Frames      uint64                       `json:"frames_published"`
	Seq         int64                        `json:"seq"`
	Status      []string                     `json:"status"`
	InArea      []int                        `json:"in_area"`
	Good        int                          `json:"good"`
	Bad         int                          `json:"bad"`
	ProcessedAt *time.Time                   `json:"processed_at,omitempty"`
	Metrics     *metrics.Snapshot            `json:"metrics,omitempty"`
	Delivery    map[string]events.RouteStats `json:"delivery,omitempty"`
}

func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	s.mu.RLock()
	resp := statusResponse{
		Scenario: s.opts.Scenario,
		DeviceID: s.opts.DeviceID,
		Frames:   s.published,
		Status:   []string{},
		InArea:   []int{},
	}
	if l := s.latest; l != nil {
		resp.Seq = l.Seq
		if l.Status != nil {
			resp.Status = l.Status
		}
		if l.InArea != nil {
			resp.InArea = l.InArea
		}
		resp.Good = len(l.Good)
		resp.Bad = len(l.Bad)
		at := l.ProcessedAt
		resp.ProcessedAt = &at
	}
	s.mu.RUnlock()

	if s.opts.Metrics != nil {
		snap := s.opts.Metrics.Snapshot()
		resp.Metrics = &snap
	}
	if s.opts.Emitter != nil {
		resp.Delivery = s.opts.Emitter.Stats()
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) listTracks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.opts.Tracks == nil {
		httputil.ServiceUnavailable(w, "this scenario does not track identities")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, s.opts.Tracks.Snapshot())
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.opts.Journal == nil {
		httputil.ServiceUnavailable(w, "event journal not configured")
		return
	}

	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 || parsed > 1000 {
			httputil.BadRequest(w, "Invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	entries, err := s.opts.Journal.RecentEvents(r.Context(), limit)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve events: %v", err))
		return
	}
	if entries == nil {
		entries = []events.Entry{}
	}
	httputil.WriteJSON(w, http.StatusOK, entries)
}

func (s *Server) showFrame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	latest, ok := s.Latest()
	if !ok || latest.Annotated == nil {
		httputil.WriteJSONError(w, http.StatusNotFound, "no frame processed yet")
		return
	}

	name := fmt.Sprintf("%s-%d.jpg", security.SanitizeFilename(s.opts.DeviceID), latest.Seq)
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%s", name))
	if err := imaging.Encode(w, latest.Annotated, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		monitoring.Logf("encode frame %d: %v", latest.Seq, err)
	}
}

func (s *Server) showVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, version.Current())
}
