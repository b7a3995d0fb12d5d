// Package zone decides which tracked identities stand inside a configured
// region of the frame.
package zone

import (
	"github.com/banshee-data/occupancy.report/internal/detection"
	"github.com/banshee-data/occupancy.report/internal/geometry"
	"github.com/banshee-data/occupancy.report/internal/tracking"
)

// Default overlap thresholds.
const (
	WaitingAreaThreshold = 0.70
	ChairThreshold       = 0.99
)

// Zone is a named region. A detection is inside when the fraction of its own
// box lying within Box is strictly greater than Threshold.
type Zone struct {
	Name      string               `json:"name"`
	Box       geometry.BoundingBox `json:"box"`
	Threshold float64              `json:"threshold"`
}

// Contains reports whether d is inside the zone.
func (z Zone) Contains(d detection.Detection) bool {
	return d.Box.Overlap(z.Box) > z.Threshold
}

// Members returns the identities inside z in ascending order.
func Members(tracked map[int]detection.Detection, z Zone) []int {
	members := []int{}
	for _, id := range tracking.SortedIDs(tracked) {
		if z.Contains(tracked[id]) {
			members = append(members, id)
		}
	}
	return members
}

// MembersAny returns the identities inside at least one of zones, in
// ascending order.
func MembersAny(tracked map[int]detection.Detection, zones []Zone) []int {
	members := []int{}
	for _, id := range tracking.SortedIDs(tracked) {
		for _, z := range zones {
			if z.Contains(tracked[id]) {
				members = append(members, id)
				break
			}
		}
	}
	return members
}
