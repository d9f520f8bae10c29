package actuator

import "errors"

// Domain errors for the actuator package.
var (
	// ErrBadDirection is returned for directions other than CW, CCW, STOP.
	ErrBadDirection = errors.New("actuator: bad direction")

	// ErrOutputsNotInitialized is returned when output lines are driven
	// before Init claimed them.
	ErrOutputsNotInitialized = errors.New("actuator: outputs not initialized")
)
