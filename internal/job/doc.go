// Package job stores and executes the cell's named jobs.
//
// A job is a (machine, action, params) triple. The Store keeps jobs in
// memory with whole-file JSON persistence on every mutation; the Runner
// resolves a job to a controller and dispatches its action through the
// controller's explicit command table.
//
// Load failures (missing, empty, corrupt file) degrade to an empty store
// with a logged warning; save failures are returned to the caller rather
// than swallowed.
package job
