// Package units provides the length units used to report physical distances
// between people, plus the timezone helpers used for local display.
package units

import (
	"fmt"
	"math"
	"strings"
)

// Length unit constants. Distances are computed in inches internally.
const (
	Inches      = "in"
	Feet        = "ft"
	Centimeters = "cm"
	Meters      = "m"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{Inches, Feet, Centimeters, Meters}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return strings.Join(ValidUnits, ", ")
}

// FromInches converts a length in inches to the target unit. Unknown units
// leave the value in inches.
func FromInches(in float64, target string) float64 {
	switch target {
	case Feet:
		return in / 12
	case Centimeters:
		return in * 2.54
	case Meters:
		return in * 0.0254
	default:
		return in
	}
}

// ToInches converts a length in the given unit to inches.
func ToInches(v float64, from string) float64 {
	switch from {
	case Feet:
		return v * 12
	case Centimeters:
		return v / 2.54
	case Meters:
		return v / 0.0254
	default:
		return v
	}
}

// Round2 rounds to two decimals, the precision used in emitted payloads.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Format renders a length in inches as e.g. "3.50 ft".
func Format(in float64, target string) string {
	if !IsValid(target) {
		target = Inches
	}
	return fmt.Sprintf("%.2f %s", FromInches(in, target), target)
}
