package main

import (
	"fmt"

	"github.com/banshee-data/occupancy.report/internal/config"
	"github.com/banshee-data/occupancy.report/internal/detection"
	"github.com/banshee-data/occupancy.report/internal/httputil"
	"github.com/banshee-data/occupancy.report/internal/pipeline"
)

// overrides are command-line values that take precedence over the file.
type overrides struct {
	Scenario    string
	DetectorURL string
	MaskURL     string
	PoseURL     string
	MaxFPS      float64
}

// loadConfig reads path (if set), applies the overrides and validates the
// result.
func loadConfig(path string, o overrides) (*config.Config, error) {
	cfg := config.Empty()
	if path != "" {
		var err error
		if cfg, err = config.LoadConfig(path); err != nil {
			return nil, err
		}
	}
	set := func(dst **string, v string) {
		if v != "" {
			*dst = &v
		}
	}
	set(&cfg.Scenario, o.Scenario)
	set(&cfg.DetectorURL, o.DetectorURL)
	set(&cfg.MaskURL, o.MaskURL)
	set(&cfg.PoseURL, o.PoseURL)
	if o.MaxFPS > 0 {
		cfg.MaxFrameRate = &o.MaxFPS
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// inputs are the frame source and the detector adapters feeding a
// scenario.
type inputs struct {
	Source    pipeline.Source
	Detector  detection.Detector
	Secondary detection.Detector
	Poses     detection.PoseEstimator
	Finite    bool // every frame must be processed
}

// buildInputs chooses between recorded detector output and live inference
// endpoints. A replay without a frame directory runs on blank frames, one
// per record.
func buildInputs(cfg *config.Config, framesDir, replayPath string, loop bool) (inputs, error) {
	var in inputs

	if replayPath != "" {
		replay, err := detection.LoadReplay(replayPath)
		if err != nil {
			return in, err
		}
		in.Detector = replay.Primary()
		in.Secondary = replay.Secondary()
		in.Poses = replay.Poses()
		in.Finite = true
		if framesDir == "" {
			in.Source = pipeline.NewBlankSource(1920, 1080, replay.Len())
			return in, nil
		}
	} else {
		client := httputil.NewStandardClient(cfg.GetDetectorTimeout())
		if u := cfg.GetDetectorURL(); u != "" {
			in.Detector = detection.NewHTTPDetector(u, client)
		}
		if u := cfg.GetMaskURL(); u != "" {
			in.Secondary = detection.NewHTTPDetector(u, client)
		}
		if u := cfg.GetPoseURL(); u != "" {
			in.Poses = detection.NewHTTPPoseEstimator(u, client)
		}
	}

	if framesDir == "" {
		return in, fmt.Errorf("a frame directory (-frames) or a replay (-replay) is required")
	}
	src, err := pipeline.NewDirectorySource(framesDir)
	if err != nil {
		return in, err
	}
	src.Loop = loop && replayPath == ""
	in.Source = src
	in.Finite = !src.Loop
	return in, nil
}
