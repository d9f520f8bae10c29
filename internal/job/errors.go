package job

import "errors"

// Domain errors for the job package.
//
// These errors can be checked using errors.Is() for error handling.
var (
	// ErrJobNotFound is returned when a job id does not exist.
	ErrJobNotFound = errors.New("job: not found")

	// ErrInvalidJob is returned when a job record is malformed (e.g. empty id).
	ErrInvalidJob = errors.New("job: invalid")

	// ErrUnknownMachine is returned when a job targets a machine that is
	// not in the registry.
	ErrUnknownMachine = errors.New("job: unknown machine")

	// ErrNoSavePath is returned when persistence is attempted before a
	// jobs file path is configured.
	ErrNoSavePath = errors.New("job: no save path configured")
)
