// Package audit keeps an append-only trail of cell operations.
//
// Every job execution, motion command, actuator operation, and camera
// session transition is recorded with a timestamp in SQLite, giving
// operators a queryable history of what the cell physically did and
// when. The trail is diagnostic: recording failures are logged by the
// caller and never fail the audited operation.
package audit
