// Package proximity estimates physical distances between tracked people from
// their pixel boxes and flags pairs that stand too close together.
package proximity

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/occupancy.report/internal/detection"
)

// ReferenceItem is an object class whose real-world size is known, used to
// convert pixels to inches.
type ReferenceItem struct {
	Label  string  `json:"label"`
	Width  float64 `json:"width"`  // inches
	Height float64 `json:"height"` // inches
}

// Area of the item in square inches.
func (r ReferenceItem) Area() float64 {
	return r.Width * r.Height
}

// Person is the reference size of an adult seen front-on.
var Person = ReferenceItem{Label: detection.LabelPerson, Width: 16, Height: 42}

// EstimateScale returns the mean pixels-per-inch ratio over the detections
// whose label has a reference item, or 0 when none do. Each detection
// contributes sqrt(box area) / sqrt(reference area).
func EstimateScale(dets []detection.Detection, refs []ReferenceItem) float64 {
	ratios := make([]float64, 0, len(dets))
	for _, d := range dets {
		ref, ok := lookup(refs, d.Label)
		if !ok || ref.Area() <= 0 {
			continue
		}
		ratios = append(ratios, math.Sqrt(d.Box.Area())/math.Sqrt(ref.Area()))
	}
	if len(ratios) == 0 {
		return 0
	}
	return stat.Mean(ratios, nil)
}

func lookup(refs []ReferenceItem, label string) (ReferenceItem, bool) {
	for _, r := range refs {
		if r.Label == label {
			return r, true
		}
	}
	return ReferenceItem{}, false
}
