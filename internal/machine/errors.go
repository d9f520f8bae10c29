package machine

import "errors"

// Domain errors shared by all machine controllers.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, machine.ErrBusy) {
//	    // policy rejection, not a fault: report "busy" and move on
//	}
var (
	// ErrBusy is returned when a long-running operation is refused
	// because one is already in flight. No side effect occurred.
	ErrBusy = errors.New("machine: busy")

	// ErrNotConnected is returned when a command requires a transport or
	// output lines that Connect has not established.
	ErrNotConnected = errors.New("machine: not connected")

	// ErrUnknownCommand is returned when an action is not in a
	// controller's command table.
	ErrUnknownCommand = errors.New("machine: unknown command")
)
