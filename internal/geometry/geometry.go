// Package geometry holds the pixel-space primitives shared by the tracker,
// the proximity classifier and the zone tester.
//
// Everything here is a pure value type; nothing keeps state between frames.
package geometry

import (
	"image"
	"math"
)

// Point is a 2D pixel coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Missing is the sentinel coordinate pose estimators report for a keypoint
// they could not locate.
var Missing = Point{X: -1, Y: -1}

// Valid reports whether the point is a real observation. Either coordinate
// at -1 marks the keypoint as not detected.
func (p Point) Valid() bool {
	return p.X != -1 && p.Y != -1
}

// DistanceTo returns the Euclidean distance between two points.
func (p Point) DistanceTo(o Point) float64 {
	return math.Hypot(p.X-o.X, p.Y-o.Y)
}

// BoundingBox is an axis-aligned box in frame coordinates. End coordinates
// are exclusive in the same sense as image.Rectangle.
type BoundingBox struct {
	StartX float64 `json:"start_x"`
	StartY float64 `json:"start_y"`
	EndX   float64 `json:"end_x"`
	EndY   float64 `json:"end_y"`
}

// NewBoundingBox builds a box from its corners.
func NewBoundingBox(startX, startY, endX, endY float64) BoundingBox {
	return BoundingBox{StartX: startX, StartY: startY, EndX: endX, EndY: endY}
}

// FromRect converts an image.Rectangle to a BoundingBox.
func FromRect(r image.Rectangle) BoundingBox {
	return BoundingBox{
		StartX: float64(r.Min.X),
		StartY: float64(r.Min.Y),
		EndX:   float64(r.Max.X),
		EndY:   float64(r.Max.Y),
	}
}

// Width of the box; never negative.
func (b BoundingBox) Width() float64 {
	return math.Max(0, b.EndX-b.StartX)
}

// Height of the box; never negative.
func (b BoundingBox) Height() float64 {
	return math.Max(0, b.EndY-b.StartY)
}

// Area of the box in square pixels.
func (b BoundingBox) Area() float64 {
	return b.Width() * b.Height()
}

// Center returns the box centroid.
func (b BoundingBox) Center() Point {
	return Point{
		X: (b.StartX + b.EndX) / 2,
		Y: (b.StartY + b.EndY) / 2,
	}
}

// Intersection returns the overlapping region of two boxes. The result has
// zero area when the boxes do not touch.
func (b BoundingBox) Intersection(o BoundingBox) BoundingBox {
	in := BoundingBox{
		StartX: math.Max(b.StartX, o.StartX),
		StartY: math.Max(b.StartY, o.StartY),
		EndX:   math.Min(b.EndX, o.EndX),
		EndY:   math.Min(b.EndY, o.EndY),
	}
	if in.EndX < in.StartX {
		in.EndX = in.StartX
	}
	if in.EndY < in.StartY {
		in.EndY = in.StartY
	}
	return in
}

// Overlap returns the fraction of b's own area that lies inside o, in [0, 1].
// A box entirely inside o yields 1; a degenerate box yields 0.
func (b BoundingBox) Overlap(o BoundingBox) float64 {
	area := b.Area()
	if area <= 0 {
		return 0
	}
	return b.Intersection(o).Area() / area
}

// Distance returns the center-to-center distance between two boxes in pixels.
func (b BoundingBox) Distance(o BoundingBox) float64 {
	return b.Center().DistanceTo(o.Center())
}

// Translate shifts the box by (dx, dy).
func (b BoundingBox) Translate(dx, dy float64) BoundingBox {
	return BoundingBox{
		StartX: b.StartX + dx,
		StartY: b.StartY + dy,
		EndX:   b.EndX + dx,
		EndY:   b.EndY + dy,
	}
}

// Rect converts the box to an image.Rectangle, rounding to the nearest pixel.
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(
		int(math.Round(b.StartX)),
		int(math.Round(b.StartY)),
		int(math.Round(b.EndX)),
		int(math.Round(b.EndY)),
	)
}
