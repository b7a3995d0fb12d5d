// Package pipeline moves frames from a source through a scenario processor
// to the status sink.
//
// Capture and processing run as separate stages joined by a depth-one
// mailbox. A newer frame replaces one the processor has not taken yet, so a
// slow processor always works on the freshest frame and frames are never
// reordered.
package pipeline

import (
	"context"
	"errors"
	"image"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/banshee-data/occupancy.report/internal/detection"
	"github.com/banshee-data/occupancy.report/internal/metrics"
	"github.com/banshee-data/occupancy.report/internal/monitoring"
	"github.com/banshee-data/occupancy.report/internal/timeutil"
)

var logf = monitoring.Component("pipeline")

// Frame is one captured image.
type Frame struct {
	Seq        int64
	Image      image.Image
	CapturedAt time.Time
}

// Result is what a processor produced for one frame.
type Result struct {
	Seq         int64                       `json:"seq"`
	Scenario    string                      `json:"scenario"`
	Annotated   image.Image                 `json:"-"`
	Status      []string                    `json:"status"`
	Good        []detection.Detection       `json:"good"`
	Bad         []detection.Detection       `json:"bad"`
	Tracked     map[int]detection.Detection `json:"tracked,omitempty"`
	InArea      []int                       `json:"in_area,omitempty"`
	Events      int                         `json:"events"`
	ProcessedAt time.Time                   `json:"processed_at"`
}

// Source yields frames until it returns io.EOF.
type Source interface {
	Next(ctx context.Context) (Frame, error)
}

// Processor turns a frame into a Result. It is only ever called from one
// goroutine.
type Processor interface {
	Process(ctx context.Context, f Frame) (Result, error)
}

// Sink receives every Result in frame order.
type Sink interface {
	Publish(r Result)
}

// Runner wires a Source to a Processor.
type Runner struct {
	Source    Source
	Processor Processor
	Sink      Sink             // optional
	Metrics   *metrics.Metrics // optional
	Clock     timeutil.Clock

	// MaxFrameRate caps how often frames are captured. Zero means no limit.
	MaxFrameRate float64

	// Backpressure makes capture wait for the processor instead of replacing
	// an unconsumed frame. Use it for finite sources (directories, replays)
	// where every frame should be processed.
	Backpressure bool
}

// Run processes frames until the source is exhausted or ctx is done. A
// processing error is counted and logged; the frame yields no result and the
// loop continues.
func (r *Runner) Run(ctx context.Context) error {
	if r.Clock == nil {
		r.Clock = timeutil.RealClock{}
	}
	mb := newMailbox()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer mb.close()
		return r.capture(gctx, mb)
	})
	g.Go(func() error {
		return r.process(gctx, mb)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (r *Runner) capture(ctx context.Context, mb *mailbox) error {
	var limiter *rate.Limiter
	if r.MaxFrameRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(r.MaxFrameRate), 1)
	}
	for {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return nil
			}
		}
		f, err := r.Source.Next(ctx)
		if errors.Is(err, io.EOF) {
			logf("source exhausted")
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if r.Metrics != nil {
				r.Metrics.ReadErrors.Add(1)
			}
			logf("frame read failed: %v", err)
			continue
		}
		if r.Metrics != nil {
			r.Metrics.FramesRead.Add(1)
		}

		if r.Backpressure {
			if !mb.putWait(ctx, f) {
				return nil
			}
			continue
		}
		if mb.put(f) {
			if r.Metrics != nil {
				r.Metrics.FramesDropped.Add(1)
			}
		}
	}
}

func (r *Runner) process(ctx context.Context, mb *mailbox) error {
	for {
		f, ok := mb.take(ctx)
		if !ok {
			return nil
		}
		start := r.Clock.Now()
		res, err := r.Processor.Process(ctx, f)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if r.Metrics != nil {
				r.Metrics.ProcessingErrors.Add(1)
			}
			logf("frame %d: %v", f.Seq, err)
			continue
		}
		res.Seq = f.Seq
		res.ProcessedAt = r.Clock.Now()
		if r.Metrics != nil {
			r.Metrics.FramesProcessed.Add(1)
			r.Metrics.UpdateProcessLatency(r.Clock.Since(start))
		}
		if r.Sink != nil {
			r.Sink.Publish(res)
		}
	}
}

// mailbox holds at most one frame.
type mailbox struct {
	mu     sync.Mutex
	slot   *Frame
	closed bool
	ready  chan struct{} // signalled when a frame arrives or on close
	taken  chan struct{} // signalled when the slot is emptied
}

func newMailbox() *mailbox {
	return &mailbox{
		ready: make(chan struct{}, 1),
		taken: make(chan struct{}, 1),
	}
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// put stores f, replacing any unconsumed frame. It reports whether a frame
// was replaced.
func (m *mailbox) put(f Frame) bool {
	m.mu.Lock()
	replaced := m.slot != nil
	m.slot = &f
	m.mu.Unlock()
	notify(m.ready)
	return replaced
}

// putWait stores f once the slot is empty. It returns false if ctx ends first.
func (m *mailbox) putWait(ctx context.Context, f Frame) bool {
	for {
		m.mu.Lock()
		if m.slot == nil {
			m.slot = &f
			m.mu.Unlock()
			notify(m.ready)
			return true
		}
		m.mu.Unlock()
		select {
		case <-ctx.Done():
			return false
		case <-m.taken:
		}
	}
}

// take waits for a frame. It returns false when the mailbox is closed and
// empty, or when ctx ends.
func (m *mailbox) take(ctx context.Context) (Frame, bool) {
	for {
		m.mu.Lock()
		if m.slot != nil {
			f := *m.slot
			m.slot = nil
			m.mu.Unlock()
			notify(m.taken)
			return f, true
		}
		if m.closed {
			m.mu.Unlock()
			return Frame{}, false
		}
		m.mu.Unlock()
		select {
		case <-ctx.Done():
			return Frame{}, false
		case <-m.ready:
		}
	}
}

func (m *mailbox) close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	notify(m.ready)
}
