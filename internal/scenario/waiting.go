package scenario

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"github.com/banshee-data/occupancy.report/internal/annotate"
	"github.com/banshee-data/occupancy.report/internal/config"
	"github.com/banshee-data/occupancy.report/internal/detection"
	"github.com/banshee-data/occupancy.report/internal/events"
	"github.com/banshee-data/occupancy.report/internal/metrics"
	"github.com/banshee-data/occupancy.report/internal/pipeline"
	"github.com/banshee-data/occupancy.report/internal/proximity"
	"github.com/banshee-data/occupancy.report/internal/refine"
	"github.com/banshee-data/occupancy.report/internal/timeutil"
	"github.com/banshee-data/occupancy.report/internal/tracking"
	"github.com/banshee-data/occupancy.report/internal/units"
	"github.com/banshee-data/occupancy.report/internal/zone"
)

// WaitingRoom checks distancing among the people inside the waiting area
// and mask use among everyone in view.
type WaitingRoom struct {
	deviceID   string
	capacity   int
	confidence float64
	unit       string

	detector   detection.Detector
	refiner    *refine.Refiner // nil when no mask classifier is configured
	tracker    *tracking.Tracker
	classifier *proximity.Classifier
	area       zone.Zone
	chairs     []zone.Zone

	emitter Emitter
	clock   timeutil.Clock
	metrics *metrics.Metrics
}

// NewWaitingRoom builds a waiting room from cfg.
func NewWaitingRoom(cfg *config.Config, deps Deps) *WaitingRoom {
	w := &WaitingRoom{
		deviceID:   cfg.GetDeviceID(),
		capacity:   cfg.GetCapacity(),
		confidence: cfg.GetDetectorConfidence(),
		unit:       cfg.GetDistanceUnit(),
		detector:   deps.Detector,
		tracker:    newTracker(cfg),
		classifier: proximity.NewClassifier(cfg.GetDistanceThreshold()),
		area: zone.Zone{
			Name:      "waiting area",
			Box:       cfg.GetArea().BoundingBox(),
			Threshold: cfg.GetAreaThreshold(),
		},
		emitter: deps.Emitter,
		clock:   deps.clock(),
		metrics: deps.Metrics,
	}
	for _, c := range cfg.Chairs {
		w.chairs = append(w.chairs, zone.Zone{
			Name:      c.Name,
			Box:       c.Box.BoundingBox(),
			Threshold: cfg.GetChairThreshold(),
		})
	}
	if deps.Secondary != nil {
		w.refiner = refine.NewRefiner(deps.Secondary)
		w.refiner.Confidence = cfg.GetMaskConfidence()
	}
	return w
}

// Name implements Scenario.
func (w *WaitingRoom) Name() string { return config.ScenarioWaiting }

// Tracker exposes the identity tracker for status reporting.
func (w *WaitingRoom) Tracker() *tracking.Tracker { return w.tracker }

// Setup announces the room layout to the collector. Chairs are numbered
// from 1 in configuration order.
func (w *WaitingRoom) Setup(context.Context) {
	chairs := make(map[string]int, len(w.chairs))
	for i, c := range w.chairs {
		chairs[c.Name] = i + 1
	}
	logf("sending setup for %s", w.deviceID)
	w.emitter.Emit(events.RouteSetup, events.Record{
		"device_id": w.deviceID,
		"area":      w.capacity,
		"chairs":    chairs,
	})
}

// Process runs one frame through detection, tracking, the area test, the
// distance check over people in the area and the mask check over all
// people. An event is emitted whenever anyone is in view.
func (w *WaitingRoom) Process(ctx context.Context, f pipeline.Frame) (Result, error) {
	dets, err := w.detector.Detect(ctx, f.Image, w.confidence)
	if err != nil {
		return Result{}, fmt.Errorf("detect people: %w", err)
	}
	people := detection.FilterByLabel(dets, detection.LabelPerson)

	tracked := w.tracker.Update(people)
	inArea := zone.Members(tracked, w.area)
	prox := w.classifier.Classify(lo.PickByKeys(tracked, inArea))

	var status []string
	good := detectionsFor(tracked, prox.Compliant)
	bad := detectionsFor(tracked, prox.Violating)
	if len(people) > 0 {
		status = append(status, fmt.Sprintf("%d people not distanced", len(prox.Violating)))
		if prox.Evaluated > 0 {
			status = append(status, "average distance "+units.Format(prox.AverageDistance, w.unit))
		}
	}

	var masks, noMasks, uncertain []detection.Detection
	if w.refiner != nil && len(people) > 0 {
		masks, noMasks, uncertain = refine.Partition(w.refiner.Refine(ctx, people, f.Image))
		status = append(status, fmt.Sprintf("%d people not wearing masks", len(noMasks)+len(uncertain)))
		good = append(good, masks...)
		bad = append(bad, noMasks...)
		bad = append(bad, uncertain...)
	}

	res := Result{
		Scenario: w.Name(),
		Status:   status,
		Good:     good,
		Bad:      bad,
		Tracked:  tracked,
		InArea:   inArea,
	}

	if len(inArea) > 0 || len(masks)+len(noMasks)+len(uncertain) > 0 {
		rec := events.Record{
			"device_id": w.deviceID,
			"in_area":   inArea,
			"covid_data": map[string]interface{}{
				"people_not_distanced": prox.Violating,
				"people_distanced":     prox.Compliant,
				"distances":            roundDistances(prox.Distances),
				"ave_distance":         units.Round2(prox.AverageDistance),
				"masks":                len(masks),
				"no_masks":             len(noMasks),
				"uncertain_masks":      len(uncertain),
			},
		}
		if len(w.chairs) > 0 {
			rec["seated"] = zone.MembersAny(tracked, w.chairs)
		}
		w.emitter.Emit(events.RouteEvent, rec)
		res.Events++
	}

	if w.metrics != nil {
		w.metrics.TrackedObjects.Store(uint64(len(tracked)))
		w.metrics.Violations.Store(uint64(len(prox.Violating)))
	}

	zones := append([]zone.Zone{w.area}, w.chairs...)
	res.Annotated = annotate.Draw(f.Image, annotate.Frame{Good: good, Bad: bad, Zones: zones, Status: status})
	return res, nil
}

func roundDistances(in map[string]float64) map[string]float64 {
	return lo.MapValues(in, func(v float64, _ string) float64 { return units.Round2(v) })
}
