package config

import (
	"time"

	"github.com/banshee-data/occupancy.report/internal/events"
	"github.com/banshee-data/occupancy.report/internal/units"
)

// GetScenario returns the scenario name or "waiting".
func (c *Config) GetScenario() string {
	if c.Scenario == nil || *c.Scenario == "" {
		return ScenarioWaiting
	}
	return *c.Scenario
}

// GetDeviceID returns the device id, defaulting to a per-scenario name.
func (c *Config) GetDeviceID() string {
	if c.DeviceID != nil && *c.DeviceID != "" {
		return *c.DeviceID
	}
	switch c.GetScenario() {
	case ScenarioVaccination:
		return "vaccination_area"
	case ScenarioPosture:
		return "post_vaccination"
	default:
		return "waiting_room"
	}
}

// GetServerURL returns the collector base URL.
func (c *Config) GetServerURL() string {
	if c.ServerURL == nil || *c.ServerURL == "" {
		return events.DefaultBaseURL
	}
	return *c.ServerURL
}

// GetTimezone returns the site timezone or "UTC".
func (c *Config) GetTimezone() string {
	if c.Timezone == nil || *c.Timezone == "" {
		return "UTC"
	}
	return *c.Timezone
}

// GetDistanceUnit returns the display unit for distances.
func (c *Config) GetDistanceUnit() string {
	if c.DistanceUnit == nil {
		return units.Inches
	}
	return *c.DistanceUnit
}

// GetQueueSize returns the event queue bound.
func (c *Config) GetQueueSize() int {
	if c.QueueSize == nil {
		return events.DefaultQueueSize
	}
	return *c.QueueSize
}

// GetMaxFrameRate returns the capture cap; zero means unlimited.
func (c *Config) GetMaxFrameRate() float64 {
	if c.MaxFrameRate == nil {
		return 0
	}
	return *c.MaxFrameRate
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// GetDetectorURL returns the primary detector endpoint, if any.
func (c *Config) GetDetectorURL() string { return str(c.DetectorURL) }

// GetMaskURL returns the mask classifier endpoint, if any.
func (c *Config) GetMaskURL() string { return str(c.MaskURL) }

// GetPoseURL returns the pose estimator endpoint, if any.
func (c *Config) GetPoseURL() string { return str(c.PoseURL) }

// GetDetectorConfidence returns the primary confidence level. The waiting
// room only trusts near-certain people; the vaccination area accepts 0.6.
func (c *Config) GetDetectorConfidence() float64 {
	if c.DetectorConfidence != nil {
		return *c.DetectorConfidence
	}
	if c.GetScenario() == ScenarioVaccination {
		return 0.6
	}
	return 0.99
}

// GetMaskConfidence returns the secondary confidence level.
func (c *Config) GetMaskConfidence() float64 {
	if c.MaskConfidence == nil {
		return 0.2
	}
	return *c.MaskConfidence
}

// GetDetectorTimeout returns the per-request detector timeout.
func (c *Config) GetDetectorTimeout() time.Duration {
	return duration(c.DetectorTimeout, 5*time.Second)
}

// GetTrackerMaxDistance returns the centroid gate in pixels.
func (c *Config) GetTrackerMaxDistance() float64 {
	if c.TrackerMaxDistance == nil {
		return 130
	}
	return *c.TrackerMaxDistance
}

// GetTrackerDeregisterFrames returns how many misses a track survives.
func (c *Config) GetTrackerDeregisterFrames() int {
	if c.TrackerDeregisterFrames == nil {
		return 4
	}
	return *c.TrackerDeregisterFrames
}

// GetDistanceThreshold returns the minimum separation in inches. A
// min_distance given in the display unit takes precedence.
func (c *Config) GetDistanceThreshold() float64 {
	if c.MinDistance != nil {
		return units.ToInches(*c.MinDistance, c.GetDistanceUnit())
	}
	if c.DistanceThreshold == nil {
		return 42
	}
	return *c.DistanceThreshold
}

// GetArea returns the waiting area box, by default the full 1080p frame.
func (c *Config) GetArea() Box {
	if c.Area == nil {
		return Box{0, 0, 1920, 1080}
	}
	return *c.Area
}

// GetAreaThreshold returns the waiting area overlap threshold.
func (c *Config) GetAreaThreshold() float64 {
	if c.AreaThreshold == nil {
		return 0.70
	}
	return *c.AreaThreshold
}

// GetCapacity returns the waiting room capacity.
func (c *Config) GetCapacity() int {
	if c.Capacity == nil {
		return 4
	}
	return *c.Capacity
}

// GetVaccinationBox returns the chair-pair box.
func (c *Config) GetVaccinationBox() Box {
	if c.VaccinationBox == nil {
		return Box{1269, 187, 1920, 1080}
	}
	return *c.VaccinationBox
}

// GetChairThreshold returns the chair-pair overlap threshold.
func (c *Config) GetChairThreshold() float64 {
	if c.ChairThreshold == nil {
		return 0.99
	}
	return *c.ChairThreshold
}

// GetOccupancyTarget returns how many people make a vaccination.
func (c *Config) GetOccupancyTarget() int {
	if c.OccupancyTarget == nil {
		return 2
	}
	return *c.OccupancyTarget
}

// GetVaccinationTime returns how long the pair must stay seated.
func (c *Config) GetVaccinationTime() time.Duration {
	return duration(c.VaccinationTime, 30*time.Second)
}

// GetDosesPerVial returns the doses in one vial.
func (c *Config) GetDosesPerVial() int {
	if c.DosesPerVial == nil {
		return 10
	}
	return *c.DosesPerVial
}

// GetScheduledVaccinations returns the day's appointment count.
func (c *Config) GetScheduledVaccinations() int {
	if c.ScheduledVaccinations == nil {
		return 20
	}
	return *c.ScheduledVaccinations
}

// GetLastAppointment returns the last appointment as hour and minute.
func (c *Config) GetLastAppointment() (hour, minute int) {
	if c.LastAppointment != nil {
		if t, err := time.Parse("15:04", *c.LastAppointment); err == nil {
			return t.Hour(), t.Minute()
		}
	}
	return 16, 45
}

// GetDebounceInterval returns the raised-hand aggregation window.
func (c *Config) GetDebounceInterval() time.Duration {
	return duration(c.DebounceInterval, 3*time.Second)
}

func duration(p *string, def time.Duration) time.Duration {
	if p == nil || *p == "" {
		return def
	}
	d, err := time.ParseDuration(*p)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
