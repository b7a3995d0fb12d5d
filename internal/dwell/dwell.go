// Package dwell turns per-frame observations into debounced decisions.
//
// Both machines have two states. Idle waits for a triggering observation;
// Listening keeps accumulating until its interval has elapsed on the
// injected clock and then resolves.
package dwell

import (
	"time"

	"github.com/banshee-data/occupancy.report/internal/timeutil"
)

// State is the lifecycle state of a dwell machine.
type State string

const (
	StateIdle      State = "idle"
	StateListening State = "listening"
)

// Outcome is the result of one Debouncer observation.
type Outcome int

const (
	NoSignal  Outcome = -1 // still idle or still listening
	Rejected  Outcome = 0  // window closed without enough positives
	Confirmed Outcome = 1  // window closed with enough positives
)

func (o Outcome) String() string {
	switch o {
	case Rejected:
		return "rejected"
	case Confirmed:
		return "confirmed"
	default:
		return "no-signal"
	}
}

// expired reports whether at least interval has passed since trigger.
func expired(clock timeutil.Clock, trigger time.Time, interval time.Duration) bool {
	return !clock.Now().Before(trigger.Add(interval))
}
