// Package actuator drives the cell's screwdriver motor and solenoid lock.
//
// The motor takes a direction line and a pulse-width duty cycle; the
// lock is a single energize/de-energize line where de-energized is the
// safe (locked) state. Operations are synchronous and bounded by their
// stated durations, with forced-stop and forced-lock steps on every exit
// path.
//
// On hosts without GPIO capability the controller runs against
// SimOutputs: every state transition and timing contract holds, the
// hardware writes are simply absent. Job execution and tests are
// identical in both modes.
package actuator
