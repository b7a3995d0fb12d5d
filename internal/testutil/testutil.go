// Package testutil holds fixtures shared by the scenario, API and command
// tests.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/banshee-data/occupancy.report/internal/detection"
	"github.com/banshee-data/occupancy.report/internal/geometry"
	"github.com/banshee-data/occupancy.report/internal/monitoring"
	"github.com/banshee-data/occupancy.report/internal/timeutil"
)

// Epoch is the fixed start time of FixedClock.
var Epoch = time.Date(2021, 3, 1, 9, 0, 0, 0, time.UTC)

// MuteLogs silences the package logger for the rest of the test.
func MuteLogs(t testing.TB) {
	t.Helper()
	original := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.SetLogger(original) })
}

// Person returns a person detection at the reference size (16x42) with its
// top-left corner at (x, y). At that size one pixel is one inch.
func Person(x, y float64) detection.Detection {
	return detection.Detection{
		Label:      detection.LabelPerson,
		Box:        geometry.NewBoundingBox(x, y, x+16, y+42),
		Confidence: 0.995,
	}
}

// FixedClock returns a mock clock set to Epoch.
func FixedClock() *timeutil.MockClock {
	return timeutil.NewMockClock(Epoch)
}

// Get serves a GET for target from loopback, which the /debug/ routes
// require.
func Get(t testing.TB, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.RemoteAddr = "127.0.0.1:40000"
	h.ServeHTTP(rec, req)
	return rec
}
