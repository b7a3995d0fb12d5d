package detection

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"os"
	"sync"
)

// ReplayRecord is one line of a replay fixture. Secondary holds the
// sub-region detector's answers for the crops of this frame, in the order
// the crops are requested.
type ReplayRecord struct {
	Frame      int           `json:"frame"`
	Detections []Detection   `json:"detections,omitempty"`
	Secondary  [][]Detection `json:"secondary,omitempty"`
	Poses      []Pose        `json:"poses,omitempty"`
	Duration   float64       `json:"duration,omitempty"`
}

// Replay serves recorded detector output, one record per frame. The primary
// detector and the pose estimator each advance to the next record; the
// secondary detector reads from the current record, one entry per primary
// detection, including entries for boxes the caller skips.
type Replay struct {
	mu      sync.Mutex
	records []ReplayRecord
	next    int
	cur     *ReplayRecord
	sub     int
}

// NewReplay wraps already-decoded records.
func NewReplay(records []ReplayRecord) *Replay {
	return &Replay{records: records}
}

// LoadReplay reads a JSON-lines fixture file. Blank lines are skipped.
func LoadReplay(path string) (*Replay, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open replay %s: %w", path, err)
	}
	defer f.Close()
	return ReadReplay(f)
}

// ReadReplay decodes JSON-lines records from r.
func ReadReplay(r io.Reader) (*Replay, error) {
	var records []ReplayRecord
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		b := scanner.Bytes()
		if len(b) == 0 {
			continue
		}
		var rec ReplayRecord
		if err := json.Unmarshal(b, &rec); err != nil {
			return nil, fmt.Errorf("replay line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read replay: %w", err)
	}
	return NewReplay(records), nil
}

// Len returns the number of recorded frames.
func (r *Replay) Len() int {
	return len(r.records)
}

// advance moves to the next record; callers hold r.mu.
func (r *Replay) advance() (*ReplayRecord, error) {
	if r.next >= len(r.records) {
		return nil, fmt.Errorf("replay exhausted after %d frames: %w", len(r.records), io.EOF)
	}
	r.cur = &r.records[r.next]
	r.next++
	r.sub = 0
	return r.cur, nil
}

// Primary returns a Detector that advances one record per call.
func (r *Replay) Primary() Detector {
	return replayPrimary{r}
}

// Secondary returns a Detector that answers crops of the current record.
func (r *Replay) Secondary() Detector {
	return replaySecondary{r}
}

// Poses returns a PoseEstimator that advances one record per call.
func (r *Replay) Poses() PoseEstimator {
	return replayPoses{r}
}

type replayPrimary struct{ r *Replay }

func (p replayPrimary) Detect(_ context.Context, _ image.Image, confidence float64) ([]Detection, error) {
	p.r.mu.Lock()
	defer p.r.mu.Unlock()
	rec, err := p.r.advance()
	if err != nil {
		return nil, err
	}
	return NewScoreFilter(confidence)(rec.Detections), nil
}

type replaySecondary struct{ r *Replay }

func (s replaySecondary) Detect(_ context.Context, _ image.Image, confidence float64) ([]Detection, error) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	if s.r.cur == nil || s.r.sub >= len(s.r.cur.Secondary) {
		return nil, nil
	}
	out := s.r.cur.Secondary[s.r.sub]
	s.r.sub++
	return NewScoreFilter(confidence)(out), nil
}

// SkipCrop consumes the answer recorded for a crop the caller did not send,
// keeping later crops of the frame aligned with their records.
func (s replaySecondary) SkipCrop() {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	if s.r.cur != nil && s.r.sub < len(s.r.cur.Secondary) {
		s.r.sub++
	}
}

type replayPoses struct{ r *Replay }

func (p replayPoses) Estimate(_ context.Context, _ image.Image) (PoseResult, error) {
	p.r.mu.Lock()
	defer p.r.mu.Unlock()
	rec, err := p.r.advance()
	if err != nil {
		return PoseResult{}, err
	}
	return PoseResult{Duration: rec.Duration, Poses: rec.Poses}, nil
}
