// Package detection defines what the engine consumes from the outside world:
// labeled boxes from object detectors and keypoint sets from pose estimators.
//
// The detectors themselves are external. This package only holds the data
// types, the interfaces the scenarios call through, and thin adapters
// (HTTP inference endpoints and recorded fixtures).
package detection

import (
	"context"
	"image"

	"github.com/banshee-data/occupancy.report/internal/geometry"
)

// LabelPerson is the primary detector's label for people.
const LabelPerson = "person"

// Keypoint names reported by the pose estimator.
const (
	KeyLeftShoulder  = "Left Shoulder"
	KeyRightShoulder = "Right Shoulder"
	KeyLeftElbow     = "Left Elbow"
	KeyRightElbow    = "Right Elbow"
)

// Detection is one labeled box from a detector.
type Detection struct {
	Label      string               `json:"label"`
	Box        geometry.BoundingBox `json:"box"`
	Confidence float64              `json:"confidence"`
}

// Detector finds labeled boxes in a frame, keeping results with a
// confidence at or above the given level.
type Detector interface {
	Detect(ctx context.Context, frame image.Image, confidence float64) ([]Detection, error)
}

// CropSkipper is implemented by detectors that answer crops in a fixed
// order and must know when a caller skipped one (for example a box lying
// entirely off-frame).
type CropSkipper interface {
	SkipCrop()
}

// Pose is the keypoint set for one person. Keypoints the estimator could not
// place are reported as geometry.Missing; keys may also be absent entirely.
type Pose struct {
	KeyPoints map[string]geometry.Point `json:"key_points"`
}

// KeyPoint returns the named keypoint, or geometry.Missing when the key is
// absent.
func (p Pose) KeyPoint(name string) geometry.Point {
	if pt, ok := p.KeyPoints[name]; ok {
		return pt
	}
	return geometry.Missing
}

// PoseResult is a pose estimator's output for one frame. Duration is the
// inference time in seconds as reported by the estimator.
type PoseResult struct {
	Duration float64 `json:"duration"`
	Poses    []Pose  `json:"poses"`
}

// PoseEstimator finds people's keypoints in a frame.
type PoseEstimator interface {
	Estimate(ctx context.Context, frame image.Image) (PoseResult, error)
}

// Postprocessor filters or modifies a list of detections.
type Postprocessor func([]Detection) []Detection

// NewScoreFilter drops detections below conf.
func NewScoreFilter(conf float64) Postprocessor {
	return func(in []Detection) []Detection {
		out := make([]Detection, 0, len(in))
		for _, d := range in {
			if d.Confidence >= conf {
				out = append(out, d)
			}
		}
		return out
	}
}

// NewLabelFilter keeps detections whose label is one of labels.
func NewLabelFilter(labels ...string) Postprocessor {
	keep := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		keep[l] = struct{}{}
	}
	return func(in []Detection) []Detection {
		out := make([]Detection, 0, len(in))
		for _, d := range in {
			if _, ok := keep[d.Label]; ok {
				out = append(out, d)
			}
		}
		return out
	}
}

// FilterByLabel keeps detections whose label is one of labels, preserving order.
func FilterByLabel(dets []Detection, labels ...string) []Detection {
	return NewLabelFilter(labels...)(dets)
}

// Apply runs the postprocessors in order.
func Apply(dets []Detection, pps ...Postprocessor) []Detection {
	for _, pp := range pps {
		dets = pp(dets)
	}
	return dets
}
