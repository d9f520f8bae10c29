package gantry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"time"
)

// Sender posts one textual command to the motion controller and returns
// its textual reply. Implemented over HTTP in production; tests
// substitute a scripted fake.
type Sender interface {
	Send(ctx context.Context, script string) (string, error)
}

// scriptRequest is the JSON envelope the controller accepts.
type scriptRequest struct {
	Script string `json:"script"`
}

// scriptResponse is the JSON envelope the controller returns. The result
// field carries the command output ("ok", a position report, ...).
type scriptResponse struct {
	Result string `json:"result"`
}

// HTTPSender sends G-code scripts to a Klipper/Moonraker-style endpoint.
type HTTPSender struct {
	url    string
	client *http.Client
}

// NewHTTPSender creates a sender for the given script endpoint URL.
func NewHTTPSender(url string, timeout time.Duration) *HTTPSender {
	return &HTTPSender{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Send posts the script and returns the controller's reply.
func (s *HTTPSender) Send(ctx context.Context, script string) (string, error) {
	body, err := json.Marshal(scriptRequest{Script: script})
	if err != nil {
		return "", fmt.Errorf("encoding script: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("posting script: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("controller returned status %d", resp.StatusCode)
	}

	var env scriptResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&env); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	return env.Result, nil
}

// poseAxisRE captures axis-letter/value pairs from an M114-style report:
// "X:0.00 Y:0.00 Z:0.00 A:0.00 Count X:0 ...". The "Count" section also
// matches but its values simply overwrite with integer counts, so the
// scan stops at the first occurrence per axis instead.
var poseAxisRE = regexp.MustCompile(`([XYZA]):\s*(-?[0-9.]+)`)

// parsePose extracts a Pose from a position report.
//
// Missing or unparseable reports yield an error rather than partial
// coordinates; the caller keeps its cached pose in that case.
func parsePose(report string) (Pose, error) {
	if report == "" {
		return Pose{}, fmt.Errorf("%w: empty report", ErrPoseUnavailable)
	}

	var pose Pose
	seen := make(map[string]bool, 4)
	for _, m := range poseAxisRE.FindAllStringSubmatch(report, -1) {
		axis := m[1]
		if seen[axis] {
			continue
		}
		v, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			return Pose{}, fmt.Errorf("%w: bad value for %s in %q", ErrPoseUnavailable, axis, report)
		}
		seen[axis] = true
		switch axis {
		case "X":
			pose.X = v
		case "Y":
			pose.Y = v
		case "Z":
			pose.Z = v
		case "A":
			pose.A = v
		}
	}

	if len(seen) == 0 {
		return Pose{}, fmt.Errorf("%w: no axes in %q", ErrPoseUnavailable, report)
	}
	return pose, nil
}
