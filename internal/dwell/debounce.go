package dwell

import (
	"sync"
	"time"

	"github.com/banshee-data/occupancy.report/internal/timeutil"
)

// DefaultDebounceInterval is the aggregation window for raised-hand signals.
const DefaultDebounceInterval = 3 * time.Second

// Debouncer aggregates boolean signals over a window that opens on the first
// positive signal.
//
// Every observation is appended to the window, including negatives seen
// while idle. When the window has been open for Interval, the decision is
// positive if count(true) >= len(window) / population; the window is then
// cleared and the machine returns to idle. A positive while listening does
// not restart the window.
type Debouncer struct {
	Interval time.Duration

	clock   timeutil.Clock
	mu      sync.Mutex
	signals []bool
	trigger time.Time
	state   State
}

// NewDebouncer creates an idle Debouncer.
func NewDebouncer(interval time.Duration, clock timeutil.Clock) *Debouncer {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Debouncer{Interval: interval, clock: clock, state: StateIdle}
}

// Observe records one signal. population is the number of subjects sharing
// the window this frame; values below 1 are treated as 1.
func (d *Debouncer) Observe(signal bool, population int) Outcome {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.signals = append(d.signals, signal)

	switch d.state {
	case StateListening:
		if !expired(d.clock, d.trigger, d.Interval) {
			return NoSignal
		}
		if population < 1 {
			population = 1
		}
		positives := 0
		for _, s := range d.signals {
			if s {
				positives++
			}
		}
		ok := float64(positives) >= float64(len(d.signals))/float64(population)
		d.signals = nil
		d.trigger = time.Time{}
		d.state = StateIdle
		if ok {
			return Confirmed
		}
		return Rejected

	default:
		if signal {
			d.state = StateListening
			d.trigger = d.clock.Now()
		}
		return NoSignal
	}
}

// State returns the current state.
func (d *Debouncer) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Listening reports whether a window is open.
func (d *Debouncer) Listening() bool {
	return d.State() == StateListening
}

// Pending returns the number of signals in the current window.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.signals)
}
