package factory

import "errors"

// Domain errors for the factory package.
var (
	// ErrNoSavePath is returned when Save is called before Load
	// configured a state file path.
	ErrNoSavePath = errors.New("factory: no save path configured")

	// ErrNoPlanner is returned when path planning is requested but no
	// planner collaborator is wired.
	ErrNoPlanner = errors.New("factory: no planner configured")
)
