// Package machine defines the uniform command interface over the cell's
// heterogeneous controllers.
//
// Every machine exposes a closed CommandSet mapping action names to
// typed handlers. The job runner and HTTP handlers dispatch through that
// table, so the set of remotely invokable operations per machine is
// explicit and fixed at compile time.
package machine
