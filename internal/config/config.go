// Package config loads the site configuration for a monitor process.
//
// Every field is optional. The Get* accessors supply the defaults for
// fields missing from the file, so a partial (or empty) JSON object is a
// valid configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/occupancy.report/internal/geometry"
	"github.com/banshee-data/occupancy.report/internal/units"
)

// Scenario names.
const (
	ScenarioWaiting     = "waiting"
	ScenarioVaccination = "vaccination"
	ScenarioPosture     = "posture"
)

// ValidScenarios lists the supported scenario names.
var ValidScenarios = []string{ScenarioWaiting, ScenarioVaccination, ScenarioPosture}

// Box is a rectangle in frame pixels, written [start_x, start_y, end_x, end_y].
type Box [4]float64

// BoundingBox converts the box.
func (b Box) BoundingBox() geometry.BoundingBox {
	return geometry.NewBoundingBox(b[0], b[1], b[2], b[3])
}

// ZoneConfig names a box in the frame.
type ZoneConfig struct {
	Name string `json:"name"`
	Box  Box    `json:"box"`
}

// Config is the root configuration.
type Config struct {
	// Process
	Scenario     *string  `json:"scenario,omitempty"`
	DeviceID     *string  `json:"device_id,omitempty"`
	ServerURL    *string  `json:"server_url,omitempty"`
	Timezone     *string  `json:"timezone,omitempty"`
	DistanceUnit *string  `json:"distance_unit,omitempty"`
	QueueSize    *int     `json:"event_queue_size,omitempty"`
	MaxFrameRate *float64 `json:"max_frame_rate,omitempty"`

	// Detector endpoints and confidence levels
	DetectorURL        *string  `json:"detector_url,omitempty"`
	MaskURL            *string  `json:"mask_url,omitempty"`
	PoseURL            *string  `json:"pose_url,omitempty"`
	DetectorConfidence *float64 `json:"detector_confidence,omitempty"`
	MaskConfidence     *float64 `json:"mask_confidence,omitempty"`
	DetectorTimeout    *string  `json:"detector_timeout,omitempty"` // duration string like "5s"

	// Tracker
	TrackerMaxDistance      *float64 `json:"tracker_max_distance,omitempty"`
	TrackerDeregisterFrames *int     `json:"tracker_deregister_frames,omitempty"`

	// Waiting room
	DistanceThreshold *float64     `json:"distance_threshold_inches,omitempty"`
	MinDistance       *float64     `json:"min_distance,omitempty"` // in distance_unit; overrides distance_threshold_inches
	Area              *Box         `json:"area,omitempty"`
	AreaThreshold     *float64     `json:"area_threshold,omitempty"`
	Capacity          *int         `json:"capacity,omitempty"`
	Chairs            []ZoneConfig `json:"chairs,omitempty"`

	// Vaccination area
	VaccinationBox        *Box     `json:"vaccination_box,omitempty"`
	ChairThreshold        *float64 `json:"chair_threshold,omitempty"`
	OccupancyTarget       *int     `json:"occupancy_target,omitempty"`
	VaccinationTime       *string  `json:"vaccination_time,omitempty"` // duration string like "30s"
	DosesPerVial          *int     `json:"doses_per_vial,omitempty"`
	ScheduledVaccinations *int     `json:"scheduled_vaccinations,omitempty"`
	LastAppointment       *string  `json:"last_appointment,omitempty"` // "15:04"

	// Post-vaccination
	DebounceInterval *string `json:"debounce_interval,omitempty"` // duration string like "3s"
}

// Empty returns a Config with every field unset.
func Empty() *Config {
	return &Config{}
}

// LoadConfig loads a Config from a JSON file. The file must have a .json
// extension and be under 1MB.
func LoadConfig(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Empty()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the values that are set.
func (c *Config) Validate() error {
	if c.Scenario != nil && !validScenario(*c.Scenario) {
		return fmt.Errorf("scenario must be one of %v, got %q", ValidScenarios, *c.Scenario)
	}
	if c.DistanceUnit != nil && !units.IsValid(*c.DistanceUnit) {
		return fmt.Errorf("distance_unit must be one of %s, got %q", units.GetValidUnitsString(), *c.DistanceUnit)
	}
	if c.Timezone != nil && !units.IsTimezoneValid(*c.Timezone) {
		return fmt.Errorf("unknown timezone %q", *c.Timezone)
	}

	for name, v := range map[string]*float64{
		"detector_confidence": c.DetectorConfidence,
		"mask_confidence":     c.MaskConfidence,
		"area_threshold":      c.AreaThreshold,
		"chair_threshold":     c.ChairThreshold,
	} {
		if v != nil && (*v < 0 || *v > 1) {
			return fmt.Errorf("%s must be between 0 and 1, got %f", name, *v)
		}
	}
	for name, v := range map[string]*float64{
		"tracker_max_distance":      c.TrackerMaxDistance,
		"distance_threshold_inches": c.DistanceThreshold,
		"min_distance":              c.MinDistance,
	} {
		if v != nil && *v <= 0 {
			return fmt.Errorf("%s must be positive, got %f", name, *v)
		}
	}
	if c.MaxFrameRate != nil && *c.MaxFrameRate < 0 {
		return fmt.Errorf("max_frame_rate must be non-negative, got %f", *c.MaxFrameRate)
	}
	for name, v := range map[string]*int{
		"event_queue_size":       c.QueueSize,
		"occupancy_target":       c.OccupancyTarget,
		"doses_per_vial":         c.DosesPerVial,
		"scheduled_vaccinations": c.ScheduledVaccinations,
		"capacity":               c.Capacity,
	} {
		if v != nil && *v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, *v)
		}
	}
	if c.TrackerDeregisterFrames != nil && *c.TrackerDeregisterFrames < 0 {
		return fmt.Errorf("tracker_deregister_frames must be non-negative, got %d", *c.TrackerDeregisterFrames)
	}

	for name, v := range map[string]*string{
		"detector_timeout":  c.DetectorTimeout,
		"vaccination_time":  c.VaccinationTime,
		"debounce_interval": c.DebounceInterval,
	} {
		if v == nil || *v == "" {
			continue
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if c.LastAppointment != nil {
		if _, err := time.Parse("15:04", *c.LastAppointment); err != nil {
			return fmt.Errorf("invalid last_appointment '%s': want HH:MM", *c.LastAppointment)
		}
	}

	boxes := map[string]*Box{"area": c.Area, "vaccination_box": c.VaccinationBox}
	for i := range c.Chairs {
		if c.Chairs[i].Name == "" {
			return fmt.Errorf("chairs[%d] needs a name", i)
		}
		boxes["chair "+c.Chairs[i].Name] = &c.Chairs[i].Box
	}
	for name, b := range boxes {
		if b != nil && b.BoundingBox().Area() <= 0 {
			return fmt.Errorf("%s box %v has no area", name, *b)
		}
	}
	return nil
}

func validScenario(s string) bool {
	for _, v := range ValidScenarios {
		if s == v {
			return true
		}
	}
	return false
}
