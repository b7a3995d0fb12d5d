package detection

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"net/url"
	"strconv"

	"github.com/disintegration/imaging"

	"github.com/banshee-data/occupancy.report/internal/httputil"
)

// HTTPDetector posts JPEG frames to an inference service and decodes the
// JSON list of detections it answers with.
type HTTPDetector struct {
	URL     string
	Client  httputil.HTTPClient
	Quality int // JPEG quality, defaults to 90
}

// NewHTTPDetector creates a detector for the endpoint at rawURL.
func NewHTTPDetector(rawURL string, client httputil.HTTPClient) *HTTPDetector {
	return &HTTPDetector{URL: rawURL, Client: client}
}

// Detect implements Detector. The confidence level is passed to the service
// as the "confidence" query parameter and enforced again locally.
func (d *HTTPDetector) Detect(ctx context.Context, frame image.Image, confidence float64) ([]Detection, error) {
	endpoint, err := withQuery(d.URL, "confidence", strconv.FormatFloat(confidence, 'f', -1, 64))
	if err != nil {
		return nil, err
	}
	body, err := encodeJPEG(frame, d.Quality)
	if err != nil {
		return nil, err
	}
	data, err := httputil.Post(ctx, d.Client, endpoint, "image/jpeg", body)
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}
	var dets []Detection
	if err := json.Unmarshal(data, &dets); err != nil {
		return nil, fmt.Errorf("decode detections: %w", err)
	}
	return NewScoreFilter(confidence)(dets), nil
}

// HTTPPoseEstimator posts JPEG frames to a pose service and decodes a
// PoseResult.
type HTTPPoseEstimator struct {
	URL     string
	Client  httputil.HTTPClient
	Quality int
}

// NewHTTPPoseEstimator creates an estimator for the endpoint at rawURL.
func NewHTTPPoseEstimator(rawURL string, client httputil.HTTPClient) *HTTPPoseEstimator {
	return &HTTPPoseEstimator{URL: rawURL, Client: client}
}

// Estimate implements PoseEstimator.
func (p *HTTPPoseEstimator) Estimate(ctx context.Context, frame image.Image) (PoseResult, error) {
	body, err := encodeJPEG(frame, p.Quality)
	if err != nil {
		return PoseResult{}, err
	}
	data, err := httputil.Post(ctx, p.Client, p.URL, "image/jpeg", body)
	if err != nil {
		return PoseResult{}, fmt.Errorf("estimate pose: %w", err)
	}
	var res PoseResult
	if err := json.Unmarshal(data, &res); err != nil {
		return PoseResult{}, fmt.Errorf("decode poses: %w", err)
	}
	return res, nil
}

func encodeJPEG(frame image.Image, quality int) ([]byte, error) {
	if frame == nil {
		return nil, fmt.Errorf("encode frame: nil image")
	}
	if quality <= 0 {
		quality = 90
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, frame, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

func withQuery(rawURL, key, value string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse detector url %q: %w", rawURL, err)
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
