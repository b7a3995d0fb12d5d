// Package refine re-inspects the crop under each primary detection with a
// secondary detector (for example a face-covering classifier) and merges the
// answer back into frame coordinates.
package refine

import (
	"context"
	"image"

	"github.com/disintegration/imaging"

	"github.com/banshee-data/occupancy.report/internal/detection"
	"github.com/banshee-data/occupancy.report/internal/monitoring"
)

// Labels produced by the mask classifier, plus the label used when it has
// no answer for a crop.
const (
	LabelPositive  = "mask"
	LabelNegative  = "no-mask"
	LabelUncertain = "no-mask-detected"

	DefaultConfidence = 0.2
)

var logf = monitoring.Component("refine")

// Refiner runs the secondary detector over crops of the frame.
type Refiner struct {
	Secondary  detection.Detector
	Confidence float64
}

// NewRefiner returns a Refiner using the default low confidence level.
func NewRefiner(secondary detection.Detector) *Refiner {
	return &Refiner{Secondary: secondary, Confidence: DefaultConfidence}
}

// Refine returns one result per input detection, in input order. When the
// secondary detector finds something, the first result's box is shifted by
// the origin of the crop it was found in and its label replaces the primary
// label. Otherwise, including on secondary errors, the primary box is kept
// and labelled LabelUncertain. Boxes entirely outside the frame are not sent;
// a secondary implementing detection.CropSkipper is told about each one.
func (r *Refiner) Refine(ctx context.Context, dets []detection.Detection, frame image.Image) []detection.Detection {
	out := make([]detection.Detection, 0, len(dets))
	for _, d := range dets {
		res := d
		res.Label = LabelUncertain

		crop, rect := r.crop(frame, d)
		if crop == nil {
			if sk, ok := r.Secondary.(detection.CropSkipper); ok {
				sk.SkipCrop()
			}
		} else {
			found, err := r.Secondary.Detect(ctx, crop, r.Confidence)
			if err != nil {
				logf("secondary detector failed for box %+v: %v", d.Box, err)
			} else if len(found) > 0 {
				top := found[0]
				res.Label = top.Label
				res.Confidence = top.Confidence
				res.Box = top.Box.Translate(float64(rect.Min.X), float64(rect.Min.Y))
			}
		}
		out = append(out, res)
	}
	return out
}

// crop cuts the part of d's box that lies inside the frame. imaging.Crop
// rebases the result at (0, 0), so rect is the frame position of the crop.
func (r *Refiner) crop(frame image.Image, d detection.Detection) (image.Image, image.Rectangle) {
	if frame == nil {
		return nil, image.Rectangle{}
	}
	rect := d.Box.Rect().Intersect(frame.Bounds())
	if rect.Empty() {
		return nil, rect
	}
	return imaging.Crop(frame, rect), rect
}

// Partition splits refined detections by exact label: LabelPositive,
// LabelNegative, and everything else.
func Partition(dets []detection.Detection) (positive, negative, uncertain []detection.Detection) {
	for _, d := range dets {
		switch d.Label {
		case LabelPositive:
			positive = append(positive, d)
		case LabelNegative:
			negative = append(negative, d)
		default:
			uncertain = append(uncertain, d)
		}
	}
	return positive, negative, uncertain
}
