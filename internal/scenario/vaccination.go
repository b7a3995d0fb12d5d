package scenario

import (
	"context"
	"fmt"
	"time"

	"github.com/banshee-data/occupancy.report/internal/annotate"
	"github.com/banshee-data/occupancy.report/internal/config"
	"github.com/banshee-data/occupancy.report/internal/detection"
	"github.com/banshee-data/occupancy.report/internal/dwell"
	"github.com/banshee-data/occupancy.report/internal/events"
	"github.com/banshee-data/occupancy.report/internal/metrics"
	"github.com/banshee-data/occupancy.report/internal/pipeline"
	"github.com/banshee-data/occupancy.report/internal/timeutil"
	"github.com/banshee-data/occupancy.report/internal/tracking"
	"github.com/banshee-data/occupancy.report/internal/units"
	"github.com/banshee-data/occupancy.report/internal/zone"
)

// LastAptLayout formats the last appointment time in events.
const LastAptLayout = "2006-01-02 15:04:05"

// VaccinationArea counts vaccinations by watching the chair pair: two
// people seated together for the vaccination time is one dose given.
type VaccinationArea struct {
	confidence float64

	detector detection.Detector
	tracker  *tracking.Tracker
	chairs   zone.Zone
	commit   *dwell.OccupancyCommit
	ledger   Ledger

	emitter Emitter
	clock   timeutil.Clock
	metrics *metrics.Metrics
}

// NewVaccinationArea builds a vaccination area from cfg. The last
// appointment is pinned to today in the site timezone.
func NewVaccinationArea(cfg *config.Config, deps Deps) (*VaccinationArea, error) {
	clock := deps.clock()
	now, err := units.ConvertTime(clock.Now(), cfg.GetTimezone())
	if err != nil {
		return nil, fmt.Errorf("site timezone: %w", err)
	}
	hour, minute := cfg.GetLastAppointment()
	lastApt := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())

	return &VaccinationArea{
		confidence: cfg.GetDetectorConfidence(),
		detector:   deps.Detector,
		tracker:    newTracker(cfg),
		chairs: zone.Zone{
			Name:      "vaccination",
			Box:       cfg.GetVaccinationBox().BoundingBox(),
			Threshold: cfg.GetChairThreshold(),
		},
		commit: dwell.NewOccupancyCommit(cfg.GetOccupancyTarget(), cfg.GetVaccinationTime(), clock),
		ledger: Ledger{
			DosesPerVial: cfg.GetDosesPerVial(),
			Scheduled:    cfg.GetScheduledVaccinations(),
			LastApt:      lastApt.Format(LastAptLayout),
		},
		emitter: deps.Emitter,
		clock:   clock,
		metrics: deps.Metrics,
	}, nil
}

// Name implements Scenario.
func (v *VaccinationArea) Name() string { return config.ScenarioVaccination }

// Tracker exposes the identity tracker for status reporting.
func (v *VaccinationArea) Tracker() *tracking.Tracker { return v.tracker }

// Ledger returns a copy of the running totals.
func (v *VaccinationArea) Ledger() Ledger { return v.ledger }

// Setup reports the starting totals.
func (v *VaccinationArea) Setup(context.Context) {
	v.send(0)
}

func (v *VaccinationArea) send(n int) {
	v.emitter.Emit(events.RouteEvent, events.Record{
		"vaccination_data": v.ledger.Data(n),
	})
}

// Process tracks the people seated in the chair pair and records a
// vaccination each time the pair commits.
func (v *VaccinationArea) Process(ctx context.Context, f pipeline.Frame) (Result, error) {
	dets, err := v.detector.Detect(ctx, f.Image, v.confidence)
	if err != nil {
		return Result{}, fmt.Errorf("detect people: %w", err)
	}
	people := detection.FilterByLabel(dets, detection.LabelPerson)
	tracked := v.tracker.Update(people)
	seated := zone.Members(tracked, v.chairs)

	res := Result{
		Scenario: v.Name(),
		Tracked:  tracked,
		InArea:   seated,
		Good:     detectionsFor(tracked, seated),
	}
	if v.commit.Observe(seated) {
		v.ledger.Total++
		logf("vaccination %d recorded", v.ledger.Total)
		v.send(1)
		res.Events++
	}

	res.Status = []string{
		fmt.Sprintf("%d people in vaccination area", len(seated)),
		fmt.Sprintf("%d vaccinations given", v.ledger.Total),
		fmt.Sprintf("%d doses left in current vial", v.ledger.DosesLeft()),
	}
	if v.commit.Listening() {
		res.Status = append(res.Status, "vaccination in progress")
	}

	if v.metrics != nil {
		v.metrics.TrackedObjects.Store(uint64(len(tracked)))
	}
	res.Annotated = annotate.Draw(f.Image, annotate.Frame{
		Good:   res.Good,
		Zones:  []zone.Zone{v.chairs},
		Status: res.Status,
	})
	return res, nil
}
