package camera

import "errors"

// Domain errors for the camera package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, camera.ErrDeviceUnavailable) {
//	    // device busy or disconnected
//	}
var (
	// ErrDeviceUnavailable is returned when a device cannot be opened
	// (busy, disconnected, or unable to deliver the capture configuration).
	ErrDeviceUnavailable = errors.New("camera: device unavailable")

	// ErrNotAcquired is returned when operating on a key with no live session.
	ErrNotAcquired = errors.New("camera: not acquired")

	// ErrNoFrame is returned when a session has not captured a frame yet.
	ErrNoFrame = errors.New("camera: no frame available")

	// ErrInvalidKey is returned when a camera key has no device index.
	ErrInvalidKey = errors.New("camera: invalid key")
)
