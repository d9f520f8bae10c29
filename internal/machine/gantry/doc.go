// Package gantry drives the cell's multi-axis positioner.
//
// Commands are G-code scripts posted to the motion controller's HTTP
// endpoint in a {"script": "..."} JSON envelope; the reply's result
// field carries the controller's textual output.
//
// Motion is non-blocking: Goto transitions Idle -> Moving, runs the move
// on its own goroutine, and guarantees the return to Idle whatever the
// outcome. A second Goto while Moving is refused without queuing
// (busy-reject policy). All wire traffic is serialized by a mutex so
// concurrent callers never interleave commands.
package gantry
