package pipeline

import (
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/occupancy.report/internal/metrics"
	"github.com/banshee-data/occupancy.report/internal/monitoring"
)

type recordingSink struct {
	mu   sync.Mutex
	seqs []int64
}

func (s *recordingSink) Publish(r Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seqs = append(s.seqs, r.Seq)
}

func (s *recordingSink) Seqs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.seqs...)
}

type funcProcessor func(ctx context.Context, f Frame) (Result, error)

func (p funcProcessor) Process(ctx context.Context, f Frame) (Result, error) { return p(ctx, f) }

func init() {
	monitoring.SetLogger(nil)
}

func TestRunner_BackpressureProcessesEveryFrame(t *testing.T) {
	sink := &recordingSink{}
	m := metrics.New()
	r := &Runner{
		Source:       NewBlankSource(8, 8, 5),
		Processor:    funcProcessor(func(context.Context, Frame) (Result, error) { return Result{Scenario: "test"}, nil }),
		Sink:         sink,
		Metrics:      m,
		Backpressure: true,
	}
	require.NoError(t, r.Run(context.Background()))

	assert.Equal(t, []int64{1, 2, 3, 4, 5}, sink.Seqs())
	assert.Equal(t, uint64(5), m.FramesRead.Load())
	assert.Equal(t, uint64(5), m.FramesProcessed.Load())
	assert.Zero(t, m.FramesDropped.Load())
}

func TestRunner_DropsStaleFramesInOrder(t *testing.T) {
	sink := &recordingSink{}
	m := metrics.New()
	release := make(chan struct{})
	r := &Runner{
		Source: NewBlankSource(4, 4, 50),
		Processor: funcProcessor(func(_ context.Context, f Frame) (Result, error) {
			if f.Seq == 1 {
				<-release
			}
			return Result{}, nil
		}),
		Sink:    sink,
		Metrics: m,
	}

	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background()) }()

	// Let capture run ahead while frame 1 (if it was taken) is held.
	require.Eventually(t, func() bool { return m.FramesRead.Load() == 50 }, time.Second, time.Millisecond)
	close(release)
	require.NoError(t, <-done)

	seqs := sink.Seqs()
	require.NotEmpty(t, seqs)
	assert.Equal(t, int64(50), seqs[len(seqs)-1], "the newest frame is never lost")
	for i := 1; i < len(seqs); i++ {
		assert.Less(t, seqs[i-1], seqs[i], "frames must not reorder")
	}
	assert.Equal(t, uint64(50), m.FramesProcessed.Load()+m.FramesDropped.Load())
}

func TestRunner_ProcessingErrorsContinue(t *testing.T) {
	sink := &recordingSink{}
	m := metrics.New()
	r := &Runner{
		Source: NewBlankSource(4, 4, 3),
		Processor: funcProcessor(func(_ context.Context, f Frame) (Result, error) {
			if f.Seq == 2 {
				return Result{}, errors.New("detector offline")
			}
			return Result{}, nil
		}),
		Sink:         sink,
		Metrics:      m,
		Backpressure: true,
	}
	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, []int64{1, 3}, sink.Seqs())
	assert.Equal(t, uint64(1), m.ProcessingErrors.Load())
}

func TestRunner_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		Source:       NewBlankSource(4, 4, 0),
		Processor:    funcProcessor(func(context.Context, Frame) (Result, error) { return Result{}, nil }),
		MaxFrameRate: 200,
	}
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop")
	}
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, image.NewRGBA(image.Rect(0, 0, w, h))))
}

func TestDirectorySource(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "b.png"), 6, 4)
	writePNG(t, filepath.Join(dir, "a.png"), 3, 2)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.jpg"), []byte("not a jpeg"), 0o600))

	src, err := NewDirectorySource(dir)
	require.NoError(t, err)
	require.Len(t, src.Paths, 3)

	ctx := context.Background()
	f, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), f.Seq)
	assert.Equal(t, image.Pt(3, 2), f.Image.Bounds().Size())

	f, err = src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(6, 4), f.Image.Bounds().Size())

	_, err = src.Next(ctx)
	assert.ErrorContains(t, err, "c.jpg")

	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)

	src.Loop = true
	f, err = src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), f.Seq)
}

func TestDirectorySource_SkipsEscapingLinks(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "frames")
	require.NoError(t, os.Mkdir(dir, 0o755))
	writePNG(t, filepath.Join(dir, "a.png"), 2, 2)
	writePNG(t, filepath.Join(root, "outside.png"), 2, 2)
	if err := os.Symlink(filepath.Join(root, "outside.png"), filepath.Join(dir, "b.png")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	src, err := NewDirectorySource(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.png")}, src.Paths)
}

func TestDirectorySource_Empty(t *testing.T) {
	_, err := NewDirectorySource(t.TempDir())
	assert.Error(t, err)
	_, err = NewDirectorySource(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestBlankSource(t *testing.T) {
	s := NewBlankSource(10, 5, 1)
	f, err := s.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, s.Bounds(), f.Image.Bounds())
	_, err = s.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}
