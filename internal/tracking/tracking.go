// Package tracking assigns stable integer identities to per-frame detections
// by matching box centroids across frames.
package tracking

import (
	"sort"
	"sync"

	"github.com/banshee-data/occupancy.report/internal/detection"
	"github.com/banshee-data/occupancy.report/internal/geometry"
)

// Config holds the tracker's tuning parameters.
type Config struct {
	MaxDistance      float64 // Largest centroid jump (pixels) still treated as the same object
	DeregisterFrames int     // Consecutive misses tolerated; one more removes the track
	MaxHistory       int     // Centroid trail length kept per track for diagnostics
}

// DefaultConfig returns the tuning used by all three scenarios.
func DefaultConfig() Config {
	return Config{
		MaxDistance:      130,
		DeregisterFrames: 4,
		MaxHistory:       32,
	}
}

// Track is one identity the tracker is following.
type Track struct {
	ID        int                 `json:"id"`
	Detection detection.Detection `json:"detection"`
	Misses    int                 `json:"misses"`
	Hits      int                 `json:"hits"`
	FirstSeen int64               `json:"first_seen_frame"`
	LastSeen  int64               `json:"last_seen_frame"`
	History   []geometry.Point    `json:"history,omitempty"`
}

// Centroid is the center of the track's last matched box.
func (tr *Track) Centroid() geometry.Point {
	return tr.Detection.Box.Center()
}

// Tracker is a greedy nearest-centroid tracker.
//
// Matching is a greedy approximation of a global assignment: every
// (track, detection) pair within MaxDistance is considered in ascending
// distance order, and a pair is accepted when neither side has been taken.
// Equal distances are broken by lower track ID, then lower detection index,
// so the result depends only on the inputs.
type Tracker struct {
	Tracks map[int]*Track
	NextID int
	Config Config

	Frame         int64 // Number of Update calls so far
	TracksCreated int

	mu sync.RWMutex
}

// NewTracker creates a tracker with the given configuration.
func NewTracker(config Config) *Tracker {
	return &Tracker{
		Tracks: make(map[int]*Track),
		NextID: 1,
		Config: config,
	}
}

// UpdateConfig applies fn to the configuration under the tracker lock.
func (t *Tracker) UpdateConfig(fn func(*Config)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(&t.Config)
}

// Reset clears all tracks. Identities restart from 1.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Tracks = make(map[int]*Track)
	t.NextID = 1
	t.Frame = 0
	t.TracksCreated = 0
}

type candidate struct {
	trackID  int
	detIndex int
	dist     float64
}

// Update matches a new frame of detections against the live tracks and
// returns the identities matched or created in this frame. Tracks missing
// from the frame age by one miss and are dropped once their misses exceed
// DeregisterFrames; they do not appear in the result.
func (t *Tracker) Update(dets []detection.Detection) map[int]detection.Detection {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.Frame++
	result := make(map[int]detection.Detection, len(dets))

	// Step 1: Collect every gated pair.
	var cands []candidate
	for id, tr := range t.Tracks {
		c := tr.Centroid()
		for i, d := range dets {
			dist := c.DistanceTo(d.Box.Center())
			if dist <= t.Config.MaxDistance {
				cands = append(cands, candidate{trackID: id, detIndex: i, dist: dist})
			}
		}
	}

	// Step 2: Greedy acceptance in (distance, track ID, detection index) order.
	sort.Slice(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.dist != b.dist {
			return a.dist < b.dist
		}
		if a.trackID != b.trackID {
			return a.trackID < b.trackID
		}
		return a.detIndex < b.detIndex
	})
	usedTracks := make(map[int]bool)
	usedDets := make([]bool, len(dets))
	for _, c := range cands {
		if usedTracks[c.trackID] || usedDets[c.detIndex] {
			continue
		}
		usedTracks[c.trackID] = true
		usedDets[c.detIndex] = true

		tr := t.Tracks[c.trackID]
		tr.Detection = dets[c.detIndex]
		tr.Misses = 0
		tr.Hits++
		tr.LastSeen = t.Frame
		t.appendHistory(tr)
		result[tr.ID] = tr.Detection
	}

	// Step 3: Age unmatched tracks and drop the stale ones.
	for id, tr := range t.Tracks {
		if usedTracks[id] {
			continue
		}
		tr.Misses++
		if tr.Misses > t.Config.DeregisterFrames {
			delete(t.Tracks, id)
		}
	}

	// Step 4: Register leftover detections in input order.
	for i, d := range dets {
		if usedDets[i] {
			continue
		}
		tr := &Track{
			ID:        t.NextID,
			Detection: d,
			Hits:      1,
			FirstSeen: t.Frame,
			LastSeen:  t.Frame,
		}
		t.appendHistory(tr)
		t.Tracks[tr.ID] = tr
		t.NextID++
		t.TracksCreated++
		result[tr.ID] = d
	}

	return result
}

// appendHistory records the track's current centroid; callers hold t.mu.
func (t *Tracker) appendHistory(tr *Track) {
	if t.Config.MaxHistory <= 0 {
		return
	}
	tr.History = append(tr.History, tr.Centroid())
	if over := len(tr.History) - t.Config.MaxHistory; over > 0 {
		tr.History = append(tr.History[:0:0], tr.History[over:]...)
	}
}

// Snapshot returns copies of all live tracks, sorted by ID.
func (t *Tracker) Snapshot() []Track {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Track, 0, len(t.Tracks))
	for _, tr := range t.Tracks {
		cp := *tr
		cp.History = append([]geometry.Point(nil), tr.History...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of live tracks.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.Tracks)
}

// SortedIDs returns the keys of a tracked-detection map in ascending order.
func SortedIDs(tracked map[int]detection.Detection) []int {
	ids := make([]int, 0, len(tracked))
	for id := range tracked {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
