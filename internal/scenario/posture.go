package scenario

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"github.com/banshee-data/occupancy.report/internal/annotate"
	"github.com/banshee-data/occupancy.report/internal/config"
	"github.com/banshee-data/occupancy.report/internal/detection"
	"github.com/banshee-data/occupancy.report/internal/dwell"
	"github.com/banshee-data/occupancy.report/internal/events"
	"github.com/banshee-data/occupancy.report/internal/geometry"
	"github.com/banshee-data/occupancy.report/internal/metrics"
	"github.com/banshee-data/occupancy.report/internal/pipeline"
)

// RaisedHand reports whether either elbow is at or above its shoulder.
// Image y grows downward, so a raised elbow has the smaller y. A side is
// only considered when both of its keypoints were located.
func RaisedHand(p detection.Pose) bool {
	raised := func(shoulder, elbow geometry.Point) bool {
		return shoulder.Y != -1 && elbow.Y != -1 && shoulder.Y >= elbow.Y
	}
	return raised(p.KeyPoint(detection.KeyLeftShoulder), p.KeyPoint(detection.KeyLeftElbow)) ||
		raised(p.KeyPoint(detection.KeyRightShoulder), p.KeyPoint(detection.KeyRightElbow))
}

// PostureMonitor watches the post-vaccination area for raised hands. All
// poses feed one shared debouncer; its window compares positives against
// the number of people in view.
type PostureMonitor struct {
	poses     detection.PoseEstimator
	debouncer *dwell.Debouncer

	emitter Emitter
	metrics *metrics.Metrics
}

// NewPostureMonitor builds a posture monitor from cfg.
func NewPostureMonitor(cfg *config.Config, deps Deps) *PostureMonitor {
	return &PostureMonitor{
		poses:     deps.Poses,
		debouncer: dwell.NewDebouncer(cfg.GetDebounceInterval(), deps.clock()),
		emitter:   deps.Emitter,
		metrics:   deps.Metrics,
	}
}

// Name implements Scenario.
func (p *PostureMonitor) Name() string { return config.ScenarioPosture }

// Setup is a no-op; the collector needs nothing before the first event.
func (p *PostureMonitor) Setup(context.Context) {}

// Process estimates poses and feeds each one's raised-hand signal to the
// debouncer. Every resolved window emits an event.
func (p *PostureMonitor) Process(ctx context.Context, f pipeline.Frame) (Result, error) {
	est, err := p.poses.Estimate(ctx, f.Image)
	if err != nil {
		return Result{}, fmt.Errorf("estimate poses: %w", err)
	}
	population := len(est.Poses)

	res := Result{Scenario: p.Name()}
	hands := 0
	for i, pose := range est.Poses {
		out := p.debouncer.Observe(RaisedHand(pose), population)
		if out == dwell.NoSignal {
			continue
		}
		if out == dwell.Confirmed {
			hands++
			logf("person %d raising hand", i)
		}
		p.emitter.Emit(events.RouteEvent, events.Record{
			"hands_raised":       int(out),
			"post_vaccine_count": population,
		})
		res.Events++
	}

	res.Status = []string{
		fmt.Sprintf("Inference time: %1.3f s", est.Duration),
		fmt.Sprintf("%d people in total", population),
		fmt.Sprintf("%d people hands raised", hands),
	}
	if p.metrics != nil {
		p.metrics.TrackedObjects.Store(uint64(population))
	}

	points := lo.FlatMap(est.Poses, func(pose detection.Pose, _ int) []geometry.Point {
		return lo.Values(pose.KeyPoints)
	})
	res.Annotated = annotate.Draw(f.Image, annotate.Frame{Points: points, Status: res.Status})
	return res, nil
}
