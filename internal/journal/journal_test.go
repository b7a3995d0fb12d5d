package journal

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/occupancy.report/internal/events"
	"github.com/banshee-data/occupancy.report/internal/monitoring"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	monitoring.SetLogger(t.Logf)
	t.Cleanup(func() { monitoring.SetLogger(nil) })

	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestOpen_Migrates(t *testing.T) {
	j := openTestJournal(t)

	version, dirty, err := j.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	// Migrating again is a no-op.
	require.NoError(t, j.MigrateUp())
}

func TestRecordAndQuery(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	base := time.Date(2021, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, j.StartRun(ctx, "run-1", "waiting", "cam-1", "dev", base))

	entries := []events.Entry{
		{ID: "a", RunID: "run-1", Route: events.RouteSetup, TimeMarker: "0.00", Payload: `{"area":{}}`, OK: true, SentAt: base},
		{ID: "b", RunID: "run-1", Route: events.RouteEvent, TimeMarker: "1.00", Payload: `{"in_area":[1]}`, OK: true, SentAt: base.Add(time.Second)},
		{ID: "c", RunID: "run-1", Route: events.RouteEvent, TimeMarker: "2.00", Payload: `{"in_area":[1,2]}`, OK: false, Error: "connection refused", SentAt: base.Add(2 * time.Second)},
	}
	for _, e := range entries {
		require.NoError(t, j.RecordEvent(ctx, e))
	}

	recent, err := j.RecentEvents(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "c", recent[0].ID)
	assert.False(t, recent[0].OK)
	assert.Equal(t, "connection refused", recent[0].Error)
	assert.Equal(t, "b", recent[1].ID)
	assert.Empty(t, recent[1].Error)
	assert.True(t, recent[1].SentAt.Equal(base.Add(time.Second)))

	counts, err := j.CountsByRoute(ctx)
	require.NoError(t, err)
	assert.Equal(t, []RouteCount{
		{Route: events.RouteEvent, OK: 1, Failed: 1},
		{Route: events.RouteSetup, OK: 1, Failed: 0},
	}, counts)

	// Duplicate IDs are rejected.
	assert.Error(t, j.RecordEvent(ctx, entries[0]))
}

func TestServeBackup(t *testing.T) {
	j := openTestJournal(t)
	require.NoError(t, j.RecordEvent(context.Background(), events.Entry{
		ID: "x", RunID: "r", Route: events.RouteEvent, TimeMarker: "0.00", Payload: "{}", OK: true, SentAt: time.Now(),
	}))

	rec := httptest.NewRecorder()
	j.serveBackup(rec, httptest.NewRequest(http.MethodGet, "/debug/backup", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/gzip", rec.Header().Get("Content-Type"))

	gz, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	data, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.True(t, len(data) > 16 && string(data[:16]) == "SQLite format 3\x00", "backup should be a sqlite file")
}

func TestAttachAdminRoutes(t *testing.T) {
	j := openTestJournal(t)
	mux := http.NewServeMux()
	require.NoError(t, j.AttachAdminRoutes(mux))
}
