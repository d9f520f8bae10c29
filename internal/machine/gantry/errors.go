package gantry

import "errors"

// ErrPoseUnavailable is returned when a position report is missing or
// cannot be parsed. The cached pose is left untouched in that case.
var ErrPoseUnavailable = errors.New("gantry: pose unavailable")
