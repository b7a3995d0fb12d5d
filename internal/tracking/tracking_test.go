package tracking

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/occupancy.report/internal/detection"
	"github.com/banshee-data/occupancy.report/internal/geometry"
)

// person returns a 20x40 box centred on (cx, cy).
func person(cx, cy float64) detection.Detection {
	return detection.Detection{
		Label:      detection.LabelPerson,
		Box:        geometry.NewBoundingBox(cx-10, cy-20, cx+10, cy+20),
		Confidence: 0.99,
	}
}

func wantIDs(t *testing.T, got map[int]detection.Detection, want ...int) {
	t.Helper()
	if diff := cmp.Diff(want, SortedIDs(got)); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
}

func TestTracker_NewIdentitiesInInputOrder(t *testing.T) {
	t.Parallel()
	tr := NewTracker(DefaultConfig())

	got := tr.Update([]detection.Detection{person(100, 100), person(500, 100), person(900, 100)})
	want := map[int]detection.Detection{
		1: person(100, 100),
		2: person(500, 100),
		3: person(900, 100),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Update() mismatch (-want +got):\n%s", diff)
	}
}

func TestTracker_FollowsMovement(t *testing.T) {
	t.Parallel()
	tr := NewTracker(DefaultConfig())
	tr.Update([]detection.Detection{person(100, 100), person(600, 100)})

	// Both move within MaxDistance; order of the input is swapped.
	got := tr.Update([]detection.Detection{person(650, 120), person(140, 90)})
	want := map[int]detection.Detection{1: person(140, 90), 2: person(650, 120)}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Update() mismatch (-want +got):\n%s", diff)
	}

	// A jump beyond MaxDistance is a new identity and the old one misses.
	got = tr.Update([]detection.Detection{person(140, 90), person(900, 500)})
	wantIDs(t, got, 1, 3)
	if tr.Len() != 3 {
		t.Errorf("Len() = %d, want 3", tr.Len())
	}

	snap := tr.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("Snapshot() has %d tracks, want 3", len(snap))
	}
	if snap[1].Misses != 1 {
		t.Errorf("track 2 Misses = %d, want 1", snap[1].Misses)
	}
	if len(snap[0].History) != 3 {
		t.Errorf("track 1 history length = %d, want 3", len(snap[0].History))
	}
}

func TestTracker_Deregistration(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	tr := NewTracker(cfg)
	tr.Update([]detection.Detection{person(100, 100)})

	for i := 1; i <= cfg.DeregisterFrames; i++ {
		if got := tr.Update(nil); len(got) != 0 {
			t.Errorf("empty frame returned %v", got)
		}
		if tr.Len() != 1 {
			t.Fatalf("track should survive %d misses, Len() = %d", i, tr.Len())
		}
	}

	tr.Update(nil)
	if tr.Len() != 0 {
		t.Errorf("track should be gone after DeregisterFrames+1 misses, Len() = %d", tr.Len())
	}

	// Identities are never reused.
	wantIDs(t, tr.Update([]detection.Detection{person(100, 100)}), 2)
}

func TestTracker_MatchResetsMisses(t *testing.T) {
	t.Parallel()
	tr := NewTracker(DefaultConfig())
	tr.Update([]detection.Detection{person(100, 100)})
	tr.Update(nil)
	tr.Update(nil)
	wantIDs(t, tr.Update([]detection.Detection{person(110, 100)}), 1)
	if m := tr.Snapshot()[0].Misses; m != 0 {
		t.Errorf("Misses = %d after a match, want 0", m)
	}
}

func TestTracker_GreedyAssignment(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		det    detection.Detection
		wantID int
	}{
		{"closest track wins", person(170, 100), 2},
		{"tie goes to the lower id", person(150, 100), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker(DefaultConfig())
			tr.Update([]detection.Detection{person(100, 100), person(200, 100)})
			wantIDs(t, tr.Update([]detection.Detection{tt.det}), tt.wantID)
		})
	}
}

func TestTracker_HistoryBounded(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.MaxHistory = 2
	tr := NewTracker(cfg)
	for i := 0; i < 5; i++ {
		tr.Update([]detection.Detection{person(100+float64(i), 100)})
	}
	snap := tr.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("Snapshot() has %d tracks, want 1", len(snap))
	}
	want := []geometry.Point{{X: 103, Y: 100}, {X: 104, Y: 100}}
	if diff := cmp.Diff(want, snap[0].History); diff != "" {
		t.Errorf("History mismatch (-want +got):\n%s", diff)
	}
}

func TestTracker_ResetAndUpdateConfig(t *testing.T) {
	t.Parallel()
	tr := NewTracker(DefaultConfig())
	tr.Update([]detection.Detection{person(100, 100)})
	tr.UpdateConfig(func(c *Config) { c.MaxDistance = 5 })

	// A 20px jump exceeds the tightened gate.
	wantIDs(t, tr.Update([]detection.Detection{person(120, 100)}), 2)

	tr.Reset()
	if tr.Len() != 0 || tr.Frame != 0 {
		t.Errorf("after Reset: Len() = %d, Frame = %d", tr.Len(), tr.Frame)
	}
	wantIDs(t, tr.Update([]detection.Detection{person(120, 100)}), 1)
}
