// Package scenario holds the per-frame orchestrators. Each one chains the
// detector adapters, tracker, classifiers and dwell machines for one site
// and turns the outcome into collector events and an annotated frame.
//
// A scenario is driven by a single pipeline goroutine, so its state needs
// no locking.
package scenario

import (
	"context"
	"fmt"

	"github.com/banshee-data/occupancy.report/internal/config"
	"github.com/banshee-data/occupancy.report/internal/detection"
	"github.com/banshee-data/occupancy.report/internal/events"
	"github.com/banshee-data/occupancy.report/internal/metrics"
	"github.com/banshee-data/occupancy.report/internal/monitoring"
	"github.com/banshee-data/occupancy.report/internal/pipeline"
	"github.com/banshee-data/occupancy.report/internal/timeutil"
	"github.com/banshee-data/occupancy.report/internal/tracking"
)

var logf = monitoring.Component("scenario")

// Result is the per-frame output shared with the pipeline.
type Result = pipeline.Result

// Emitter queues collector events. *events.Emitter satisfies it.
type Emitter interface {
	Emit(route string, rec events.Record)
}

// Scenario is a frame processor with a one-time setup step.
type Scenario interface {
	pipeline.Processor
	// Name is the scenario's configured name.
	Name() string
	// Setup sends whatever the collector expects before the first frame.
	Setup(ctx context.Context)
}

// Deps are the collaborators a scenario is built from. Detector and
// Emitter are required for the box-based scenarios, Poses for posture.
// Secondary is optional; without it the waiting room skips mask checks.
type Deps struct {
	Detector  detection.Detector
	Secondary detection.Detector
	Poses     detection.PoseEstimator
	Emitter   Emitter
	Clock     timeutil.Clock
	Metrics   *metrics.Metrics
}

func (d *Deps) clock() timeutil.Clock {
	if d.Clock == nil {
		return timeutil.RealClock{}
	}
	return d.Clock
}

// New builds the scenario named by cfg.
func New(cfg *config.Config, deps Deps) (Scenario, error) {
	if deps.Emitter == nil {
		return nil, fmt.Errorf("scenario %s: no event emitter", cfg.GetScenario())
	}
	switch cfg.GetScenario() {
	case config.ScenarioWaiting:
		if deps.Detector == nil {
			return nil, fmt.Errorf("waiting room needs a detector")
		}
		return NewWaitingRoom(cfg, deps), nil
	case config.ScenarioVaccination:
		if deps.Detector == nil {
			return nil, fmt.Errorf("vaccination area needs a detector")
		}
		return NewVaccinationArea(cfg, deps)
	case config.ScenarioPosture:
		if deps.Poses == nil {
			return nil, fmt.Errorf("posture monitor needs a pose estimator")
		}
		return NewPostureMonitor(cfg, deps), nil
	default:
		return nil, fmt.Errorf("unknown scenario %q", cfg.GetScenario())
	}
}

func newTracker(cfg *config.Config) *tracking.Tracker {
	tc := tracking.DefaultConfig()
	tc.MaxDistance = cfg.GetTrackerMaxDistance()
	tc.DeregisterFrames = cfg.GetTrackerDeregisterFrames()
	return tracking.NewTracker(tc)
}

func detectionsFor(tracked map[int]detection.Detection, ids []int) []detection.Detection {
	out := make([]detection.Detection, 0, len(ids))
	for _, id := range ids {
		if d, ok := tracked[id]; ok {
			out = append(out, d)
		}
	}
	return out
}
