package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fabworks/cell-core/internal/audit"
	"github.com/fabworks/cell-core/internal/camera"
)

// streamBoundary is the multipart boundary token for MJPEG streams.
const streamBoundary = "frame"

// handleDetectCameras probes the configured device index range and
// returns the indices that opened successfully.
func (s *Server) handleDetectCameras(w http.ResponseWriter, r *http.Request) {
	cams := s.factory.Cameras()
	if cams == nil {
		writeUnavailable(w, "no camera backend configured")
		return
	}

	available := cams.Probe(r.Context())
	if available == nil {
		available = []int{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"cameras": available})
}

// handleCameraStream serves a live MJPEG stream for one camera.
//
// The stream holds one reference on the camera session for the lifetime
// of the response; the matching release on the handler's exit path is
// what lets the device close when the last viewer disconnects.
func (s *Server) handleCameraStream(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	cams := s.factory.Cameras()
	if cams == nil {
		writeUnavailable(w, "no camera backend configured")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeInternalError(w, "streaming not supported")
		return
	}

	if err := cams.Acquire(r.Context(), key); err != nil {
		writeCameraError(w, key, err)
		return
	}
	defer func() {
		if err := cams.Release(key); err != nil {
			s.logger.Warn("camera release failed after stream", "key", key, "error", err)
		}
	}()

	s.factory.RecordEvent(r.Context(), audit.Event{
		Category: audit.CategoryCamera,
		Subject:  key,
		Action:   "stream",
	})
	if s.hub != nil {
		s.hub.Broadcast(ChannelCameraEvent, map[string]any{
			"camera": key,
			"event":  "stream_started",
			"refs":   cams.RefCount(key),
		})
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+streamBoundary)
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.Header().Set("Connection", "close")
	w.WriteHeader(http.StatusOK)

	interval := time.Duration(s.camCfg.FrameDivider) * time.Millisecond
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("camera stream viewer disconnected", "key", key)
			return
		case <-ticker.C:
		}

		frame, err := cams.LatestFrame(key)
		switch {
		case errors.Is(err, camera.ErrNoFrame):
			continue
		case err != nil:
			s.logger.Debug("camera stream ended", "key", key, "error", err)
			return
		}

		if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", streamBoundary, len(frame)); err != nil {
			return
		}
		if _, err := w.Write(frame); err != nil {
			return
		}
		if _, err := fmt.Fprint(w, "\r\n"); err != nil {
			return
		}
		flusher.Flush()
	}
}

// handleCameraSnapshot returns a single JPEG from the camera.
//
// The camera is acquired for the duration of the request only. A fresh
// session needs a moment to capture its first frame, so the handler
// polls briefly before giving up.
func (s *Server) handleCameraSnapshot(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	cams := s.factory.Cameras()
	if cams == nil {
		writeUnavailable(w, "no camera backend configured")
		return
	}

	if err := cams.Acquire(r.Context(), key); err != nil {
		writeCameraError(w, key, err)
		return
	}
	defer func() {
		if err := cams.Release(key); err != nil {
			s.logger.Warn("camera release failed after snapshot", "key", key, "error", err)
		}
	}()

	frame, err := s.awaitFrame(r, key)
	if err != nil {
		writeCameraError(w, key, err)
		return
	}

	s.factory.RecordEvent(r.Context(), audit.Event{
		Category: audit.CategoryCamera,
		Subject:  key,
		Action:   "snapshot",
	})

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // Best-effort write to response; connection may be closed
	w.Write(frame)
}

// awaitFrame polls for the first captured frame, bounded by the
// per-frame read timeout.
func (s *Server) awaitFrame(r *http.Request, key string) ([]byte, error) {
	deadline := time.Duration(s.camCfg.ReadTimeout) * time.Second
	if deadline <= 0 {
		deadline = 5 * time.Second
	}

	cams := s.factory.Cameras()
	timeout := time.After(deadline)
	poll := time.NewTicker(20 * time.Millisecond)
	defer poll.Stop()

	for {
		frame, err := cams.LatestFrame(key)
		if err == nil {
			return frame, nil
		}
		if !errors.Is(err, camera.ErrNoFrame) {
			return nil, err
		}

		select {
		case <-r.Context().Done():
			return nil, r.Context().Err()
		case <-timeout:
			return nil, camera.ErrNoFrame
		case <-poll.C:
		}
	}
}

// writeCameraError maps camera package errors to HTTP responses.
func writeCameraError(w http.ResponseWriter, key string, err error) {
	switch {
	case errors.Is(err, camera.ErrInvalidKey):
		writeBadRequest(w, fmt.Sprintf("invalid camera key %q", key))
	case errors.Is(err, camera.ErrDeviceUnavailable):
		writeUnavailable(w, fmt.Sprintf("camera %q unavailable", key))
	case errors.Is(err, camera.ErrNotAcquired):
		writeNotFound(w, fmt.Sprintf("camera %q has no live session", key))
	case errors.Is(err, camera.ErrNoFrame):
		writeUnavailable(w, fmt.Sprintf("camera %q produced no frame", key))
	default:
		writeInternalError(w, err.Error())
	}
}
