package proximity

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/occupancy.report/internal/detection"
	"github.com/banshee-data/occupancy.report/internal/tracking"
)

// DefaultThreshold is the minimum allowed separation in inches.
const DefaultThreshold = 42.0

// Result is the outcome of classifying one frame's tracked people.
type Result struct {
	Compliant []int              `json:"people_distanced"`
	Violating []int              `json:"people_not_distanced"`
	Distances map[string]float64 `json:"distances"` // inches, keyed "a-b" with a < b
	// AverageDistance is the mean over evaluated pairs; 0 when none were.
	AverageDistance float64 `json:"ave_distance"`
	Evaluated       int     `json:"-"`
}

// Classifier flags identities that stand closer than Threshold inches to
// any other identity.
type Classifier struct {
	Threshold  float64
	References []ReferenceItem
}

// NewClassifier returns a classifier using the person reference size.
func NewClassifier(threshold float64) *Classifier {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Classifier{Threshold: threshold, References: []ReferenceItem{Person}}
}

// PairKey formats the distances map key for two identities.
func PairKey(a, b int) string {
	if b < a {
		a, b = b, a
	}
	return fmt.Sprintf("%d-%d", a, b)
}

// Classify evaluates every unordered pair of identities in ascending ID
// order. Each pair is scaled by its own two boxes; a pair with no usable
// scale is skipped and leaves its members' classification untouched.
// Violation is sticky: one close pair is enough.
func (c *Classifier) Classify(tracked map[int]detection.Detection) Result {
	ids := tracking.SortedIDs(tracked)
	res := Result{
		Compliant: []int{},
		Violating: []int{},
		Distances: make(map[string]float64),
	}

	bad := make(map[int]bool)
	var dists []float64
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			a, b := tracked[ids[i]], tracked[ids[j]]
			scale := EstimateScale([]detection.Detection{a, b}, c.References)
			if scale <= 0 {
				continue
			}
			dist := a.Box.Distance(b.Box) / scale
			res.Distances[PairKey(ids[i], ids[j])] = dist
			dists = append(dists, dist)
			if dist < c.Threshold {
				bad[ids[i]] = true
				bad[ids[j]] = true
			}
		}
	}

	for _, id := range ids {
		if bad[id] {
			res.Violating = append(res.Violating, id)
		} else {
			res.Compliant = append(res.Compliant, id)
		}
	}
	res.Evaluated = len(dists)
	if len(dists) > 0 {
		res.AverageDistance = stat.Mean(dists, nil)
	}
	return res
}
