package dwell

import (
	"sync"
	"time"

	"github.com/banshee-data/occupancy.report/internal/timeutil"
)

// Defaults for the vaccination chair pair.
const (
	DefaultOccupancyTarget   = 2
	DefaultOccupancyInterval = 30 * time.Second
)

// OccupancyCommit confirms that exactly Target identities occupied a zone
// for at least Interval.
//
// It starts listening when it sees exactly Target members while idle. While
// listening, the first observation with at most Target members after the
// interval commits. More than Target members cancels the window.
type OccupancyCommit struct {
	Target   int
	Interval time.Duration

	clock   timeutil.Clock
	mu      sync.Mutex
	state   State
	members []int
	trigger time.Time
	commits int
}

// NewOccupancyCommit creates an idle OccupancyCommit.
func NewOccupancyCommit(target int, interval time.Duration, clock timeutil.Clock) *OccupancyCommit {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &OccupancyCommit{Target: target, Interval: interval, clock: clock, state: StateIdle}
}

// Observe feeds the zone's members for one frame and reports whether an
// occupancy completed.
func (o *OccupancyCommit) Observe(members []int) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	n := len(members)
	switch o.state {
	case StateIdle:
		if n == o.Target {
			o.state = StateListening
			o.members = append([]int(nil), members...)
			o.trigger = o.clock.Now()
		}
		return false

	default:
		if n > o.Target {
			o.reset()
			return false
		}
		if !expired(o.clock, o.trigger, o.Interval) {
			return false
		}
		o.reset()
		o.commits++
		return true
	}
}

// reset returns to idle; callers hold o.mu.
func (o *OccupancyCommit) reset() {
	o.state = StateIdle
	o.members = nil
	o.trigger = time.Time{}
}

// State returns the current state.
func (o *OccupancyCommit) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Listening reports whether an occupancy window is open.
func (o *OccupancyCommit) Listening() bool {
	return o.State() == StateListening
}

// Members returns the identities that opened the current window.
func (o *OccupancyCommit) Members() []int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]int(nil), o.members...)
}

// Commits returns the number of completed occupancies.
func (o *OccupancyCommit) Commits() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.commits
}
