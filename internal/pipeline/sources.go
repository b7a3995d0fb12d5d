package pipeline

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/banshee-data/occupancy.report/internal/security"
	"github.com/banshee-data/occupancy.report/internal/timeutil"
)

// DirectorySource reads PNG and JPEG files from a directory in name order.
type DirectorySource struct {
	Paths []string
	Loop  bool
	Clock timeutil.Clock

	next int
	seq  int64
}

// NewDirectorySource lists the images in dir. It fails when dir holds none.
func NewDirectorySource(dir string) (*DirectorySource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read frame directory: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".jpg", ".jpeg":
			p := filepath.Join(dir, e.Name())
			if err := security.WithinDirectory(p, dir); err != nil {
				logf("skipping frame: %v", err)
				continue
			}
			paths = append(paths, p)
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no .png or .jpg frames in %s", dir)
	}
	sort.Strings(paths)
	return &DirectorySource{Paths: paths, Clock: timeutil.RealClock{}}, nil
}

// Next implements Source. Decoding errors are returned for the offending file
// and the source moves on to the following one.
func (s *DirectorySource) Next(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	if s.next >= len(s.Paths) {
		if !s.Loop || len(s.Paths) == 0 {
			return Frame{}, io.EOF
		}
		s.next = 0
	}
	path := s.Paths[s.next]
	s.next++

	img, err := imaging.Open(path)
	if err != nil {
		return Frame{}, fmt.Errorf("load frame %s: %w", path, err)
	}
	s.seq++
	return Frame{Seq: s.seq, Image: img, CapturedAt: s.Clock.Now()}, nil
}

// BlankSource yields solid frames of a fixed size. It stands in for a camera
// when detector output comes from a replay file.
type BlankSource struct {
	Width, Height int
	Count         int // zero means unlimited
	Clock         timeutil.Clock

	seq int64
}

// NewBlankSource creates a BlankSource of count frames.
func NewBlankSource(width, height, count int) *BlankSource {
	return &BlankSource{Width: width, Height: height, Count: count, Clock: timeutil.RealClock{}}
}

// Next implements Source.
func (s *BlankSource) Next(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	if s.Count > 0 && s.seq >= int64(s.Count) {
		return Frame{}, io.EOF
	}
	s.seq++
	img := imaging.New(s.Width, s.Height, color.NRGBA{R: 32, G: 32, B: 32, A: 255})
	return Frame{Seq: s.seq, Image: img, CapturedAt: s.Clock.Now()}, nil
}

// Bounds returns the frame rectangle.
func (s *BlankSource) Bounds() image.Rectangle {
	return image.Rect(0, 0, s.Width, s.Height)
}
