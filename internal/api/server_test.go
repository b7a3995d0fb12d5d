package api

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/occupancy.report/internal/detection"
	"github.com/banshee-data/occupancy.report/internal/events"
	"github.com/banshee-data/occupancy.report/internal/journal"
	"github.com/banshee-data/occupancy.report/internal/metrics"
	"github.com/banshee-data/occupancy.report/internal/monitoring"
	"github.com/banshee-data/occupancy.report/internal/pipeline"
	"github.com/banshee-data/occupancy.report/internal/testutil"
	"github.com/banshee-data/occupancy.report/internal/tracking"
)

type fakeStore struct {
	entries []events.Entry
	counts  []journal.RouteCount
	err     error
	limit   int
}

func (f *fakeStore) RecentEvents(_ context.Context, limit int) ([]events.Entry, error) {
	f.limit = limit
	return f.entries, f.err
}

func (f *fakeStore) CountsByRoute(context.Context) ([]journal.RouteCount, error) {
	return f.counts, f.err
}

type fakeStats map[string]events.RouteStats

func (f fakeStats) Stats() map[string]events.RouteStats { return f }

func TestStatus(t *testing.T) {
	m := metrics.New()
	m.FramesProcessed.Add(3)
	s := NewServer(Options{
		Scenario: "waiting",
		DeviceID: "waiting_room",
		Metrics:  m,
		Emitter:  fakeStats{"event": {Queued: 2, Sent: 1}},
	})
	mux := s.ServeMux()

	rec := testutil.Get(t, mux, "/status")
	require.Equal(t, http.StatusOK, rec.Code)
	var before statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &before))
	assert.Equal(t, "waiting", before.Scenario)
	assert.Equal(t, []string{}, before.Status)
	assert.Nil(t, before.ProcessedAt)

	s.Publish(pipeline.Result{
		Seq:         7,
		Status:      []string{"1 people not distanced"},
		InArea:      []int{1, 2},
		Good:        []detection.Detection{testutil.Person(0, 0)},
		Bad:         []detection.Detection{testutil.Person(50, 0), testutil.Person(90, 0)},
		ProcessedAt: time.Date(2021, 3, 1, 9, 0, 0, 0, time.UTC),
	})

	rec = testutil.Get(t, mux, "/status")
	require.Equal(t, http.StatusOK, rec.Code)
	var after statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &after))
	assert.Equal(t, int64(7), after.Seq)
	assert.Equal(t, uint64(1), after.Frames)
	assert.Equal(t, []int{1, 2}, after.InArea)
	assert.Equal(t, 1, after.Good)
	assert.Equal(t, 2, after.Bad)
	require.NotNil(t, after.Metrics)
	assert.Equal(t, uint64(3), after.Metrics.FramesProcessed)
	assert.Equal(t, 1, after.Delivery["event"].Sent)

	post := httptest.NewRecorder()
	mux.ServeHTTP(post, httptest.NewRequest(http.MethodPost, "/status", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, post.Code)
}

func TestTracks(t *testing.T) {
	s := NewServer(Options{})
	assert.Equal(t, http.StatusServiceUnavailable, testutil.Get(t, s.ServeMux(), "/tracks").Code)

	tr := tracking.NewTracker(tracking.DefaultConfig())
	tr.Update([]detection.Detection{testutil.Person(100, 100), testutil.Person(400, 100)})
	s = NewServer(Options{Tracks: tr})

	rec := testutil.Get(t, s.ServeMux(), "/tracks")
	require.Equal(t, http.StatusOK, rec.Code)
	var tracks []tracking.Track
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tracks))
	require.Len(t, tracks, 2)
	assert.Equal(t, 1, tracks[0].ID)
	assert.Equal(t, 2, tracks[1].ID)
}

func TestEvents(t *testing.T) {
	testutil.MuteLogs(t)
	assert.Equal(t, http.StatusServiceUnavailable, testutil.Get(t, NewServer(Options{}).ServeMux(), "/events").Code)

	store := &fakeStore{entries: []events.Entry{{ID: "e1", Route: "event", OK: true}}}
	mux := NewServer(Options{Journal: store}).ServeMux()

	rec := testutil.Get(t, mux, "/events")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 100, store.limit)
	var got []events.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "e1", got[0].ID)

	rec = testutil.Get(t, mux, "/events?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, store.limit)

	for _, bad := range []string{"0", "-3", "abc", "5000"} {
		assert.Equal(t, http.StatusBadRequest, testutil.Get(t, mux, "/events?limit="+bad).Code, "limit=%s", bad)
	}

	store.entries = nil
	rec = testutil.Get(t, mux, "/events")
	assert.JSONEq(t, "[]", rec.Body.String())

	store.err = errors.New("disk gone")
	rec = testutil.Get(t, mux, "/events")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "disk gone")
}

func TestFrame(t *testing.T) {
	testutil.MuteLogs(t)
	s := NewServer(Options{DeviceID: "waiting room/1"})
	mux := s.ServeMux()
	assert.Equal(t, http.StatusNotFound, testutil.Get(t, mux, "/frame.jpg").Code)

	s.Publish(pipeline.Result{Seq: 4, Annotated: image.NewRGBA(image.Rect(0, 0, 32, 24))})
	rec := testutil.Get(t, mux, "/frame.jpg")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "inline; filename=waiting_room_1-4.jpg", rec.Header().Get("Content-Disposition"))

	img, err := jpeg.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(32, 24), img.Bounds().Size())
}

func TestVersion(t *testing.T) {
	rec := testutil.Get(t, NewServer(Options{}).ServeMux(), "/version")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"version"`)
}

func TestLoggingMiddleware(t *testing.T) {
	var lines []string
	original := monitoring.Logf
	monitoring.SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, format)
	})
	t.Cleanup(func() { monitoring.SetLogger(original) })

	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := testutil.Get(t, h, "/status?x=1")
	assert.Equal(t, http.StatusTeapot, rec.Code)
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], "[%s]"))
	assert.Equal(t, colorBoldRed+"418"+colorReset, statusCodeColor(http.StatusTeapot))
	assert.Equal(t, colorBoldGreen+"200"+colorReset, statusCodeColor(http.StatusOK))
}

func TestCharts(t *testing.T) {
	tr := tracking.NewTracker(tracking.DefaultConfig())
	tr.Update([]detection.Detection{testutil.Person(100, 100)})
	store := &fakeStore{counts: []journal.RouteCount{{Route: "event", OK: 3, Failed: 1}, {Route: "setup", OK: 1}}}
	s := NewServer(Options{DeviceID: "waiting_room", Tracks: tr, Journal: store})

	mux := http.NewServeMux()
	s.AttachDebugRoutes(mux)

	rec := testutil.Get(t, mux, "/debug/charts/tracks")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Live tracks")

	rec = testutil.Get(t, mux, "/debug/charts/events")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Collector deliveries")

	empty := http.NewServeMux()
	NewServer(Options{}).AttachDebugRoutes(empty)
	assert.Equal(t, http.StatusServiceUnavailable, testutil.Get(t, empty, "/debug/charts/tracks").Code)
	assert.Equal(t, http.StatusServiceUnavailable, testutil.Get(t, empty, "/debug/charts/events").Code)
}
