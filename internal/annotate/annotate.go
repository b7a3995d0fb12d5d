// Package annotate draws scenario results onto a copy of the frame.
package annotate

import (
	"image"
	"image/color"

	"github.com/fogleman/gg"

	"github.com/banshee-data/occupancy.report/internal/detection"
	"github.com/banshee-data/occupancy.report/internal/geometry"
	"github.com/banshee-data/occupancy.report/internal/zone"
)

// Colours used for markup.
var (
	Good = color.RGBA{R: 7, G: 105, B: 12, A: 255}
	Bad  = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	Zone = color.RGBA{R: 255, G: 191, B: 0, A: 255}
	Text = color.White
)

// Frame describes what to draw.
type Frame struct {
	Good   []detection.Detection
	Bad    []detection.Detection
	Zones  []zone.Zone
	Points []geometry.Point // keypoints; invalid points are skipped
	Status []string
}

// Draw returns a new image with zones outlined, good boxes in green, bad
// boxes in red and the status lines in the top-left corner. The input
// image is not modified. A nil frame yields nil.
func Draw(frame image.Image, f Frame) image.Image {
	if frame == nil {
		return nil
	}
	dc := gg.NewContextForImage(frame)
	dc.SetLineWidth(2)

	for _, z := range f.Zones {
		drawBox(dc, z.Box, Zone, z.Name)
	}
	for _, d := range f.Good {
		drawBox(dc, d.Box, Good, d.Label)
	}
	for _, d := range f.Bad {
		drawBox(dc, d.Box, Bad, d.Label)
	}
	dc.SetColor(Zone)
	for _, p := range f.Points {
		if p.Valid() {
			dc.DrawCircle(p.X, p.Y, 4)
			dc.Fill()
		}
	}

	y := 18.0
	for _, line := range f.Status {
		w, h := dc.MeasureString(line)
		dc.SetColor(color.RGBA{A: 160})
		dc.DrawRectangle(6, y-h-2, w+8, h+6)
		dc.Fill()
		dc.SetColor(Text)
		dc.DrawString(line, 10, y)
		y += h + 10
	}
	return dc.Image()
}

func drawBox(dc *gg.Context, b geometry.BoundingBox, c color.Color, label string) {
	dc.SetColor(c)
	dc.DrawRectangle(b.StartX, b.StartY, b.Width(), b.Height())
	dc.Stroke()
	if label != "" {
		dc.DrawString(label, b.StartX+2, b.StartY-4)
	}
}
