package camera

import "time"

// Options is the fixed capture configuration applied to every device a
// session opens.
//
// The reduced resolution and compressed pixel format are deliberate:
// several cameras share one USB bus, and uncompressed or full-resolution
// capture starves the bus and surfaces as kernel-level read timeouts.
type Options struct {
	// Width and Height select the capture resolution.
	Width  int
	Height int

	// ReadTimeout bounds a single frame read so the capture loop never
	// blocks indefinitely on a wedged device.
	ReadTimeout time.Duration
}

// Backend opens capture devices by index.
//
// Implementations: V4L2Backend for real hardware, SimBackend when the
// host has no capture capability. The backend is selected once at
// startup; everything above it is identical in both modes.
type Backend interface {
	// Open acquires exclusive ownership of the device at the given index.
	// It returns an error if the device is busy, disconnected, or cannot
	// deliver the requested configuration.
	Open(index int, opts Options) (Device, error)
}

// Device is an open capture device owned by exactly one session.
//
// ReadFrame returns a complete JPEG frame in a freshly allocated buffer;
// callers may retain the returned slice. Close releases the device and
// is safe to call exactly once.
type Device interface {
	ReadFrame() ([]byte, error)
	Close() error
}
