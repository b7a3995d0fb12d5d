package geometry

import (
	"image"
	"math"
	"testing"
)

func TestBoundingBoxDimensions(t *testing.T) {
	b := NewBoundingBox(10, 20, 40, 80)
	if b.Width() != 30 {
		t.Errorf("Width() = %f, want 30", b.Width())
	}
	if b.Height() != 60 {
		t.Errorf("Height() = %f, want 60", b.Height())
	}
	if b.Area() != 1800 {
		t.Errorf("Area() = %f, want 1800", b.Area())
	}
	if c := b.Center(); c.X != 25 || c.Y != 50 {
		t.Errorf("Center() = %+v, want {25 50}", c)
	}

	inverted := NewBoundingBox(40, 80, 10, 20)
	if inverted.Area() != 0 {
		t.Errorf("inverted box Area() = %f, want 0", inverted.Area())
	}
}

func TestOverlap(t *testing.T) {
	zone := NewBoundingBox(0, 0, 100, 100)
	tests := []struct {
		name string
		box  BoundingBox
		want float64
	}{
		{"entirely inside", NewBoundingBox(10, 10, 20, 20), 1.0},
		{"entirely outside", NewBoundingBox(200, 200, 220, 220), 0},
		{"touching edge", NewBoundingBox(100, 0, 120, 10), 0},
		{"half inside", NewBoundingBox(90, 0, 110, 10), 0.5},
		{"quarter inside", NewBoundingBox(90, 90, 110, 110), 0.25},
		{"degenerate", NewBoundingBox(5, 5, 5, 5), 0},
		{"covers zone", NewBoundingBox(-100, -100, 200, 200), 10000.0 / 90000.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.box.Overlap(zone)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Overlap() = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestDistance(t *testing.T) {
	a := NewBoundingBox(0, 0, 10, 10)
	b := NewBoundingBox(30, 40, 40, 50)
	if d := a.Distance(b); math.Abs(d-50) > 1e-9 {
		t.Errorf("Distance() = %f, want 50", d)
	}
	if d := b.Distance(a); math.Abs(d-50) > 1e-9 {
		t.Errorf("Distance() not symmetric: %f", d)
	}
}

func TestTranslateAndRect(t *testing.T) {
	b := NewBoundingBox(1, 2, 3, 4).Translate(10, 20)
	want := NewBoundingBox(11, 22, 13, 24)
	if b != want {
		t.Errorf("Translate() = %+v, want %+v", b, want)
	}
	if r := NewBoundingBox(1.4, 1.6, 9.5, 10.2).Rect(); r != image.Rect(1, 2, 10, 10) {
		t.Errorf("Rect() = %v", r)
	}
	if fb := FromRect(image.Rect(3, 4, 5, 6)); fb != NewBoundingBox(3, 4, 5, 6) {
		t.Errorf("FromRect() = %+v", fb)
	}
}

func TestPointValid(t *testing.T) {
	if Missing.Valid() {
		t.Error("Missing should not be valid")
	}
	if (Point{X: -1, Y: 10}).Valid() {
		t.Error("point with x=-1 should not be valid")
	}
	if !(Point{X: 0, Y: 0}).Valid() {
		t.Error("origin should be valid")
	}
}
