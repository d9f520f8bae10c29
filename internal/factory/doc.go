// Package factory is the composition root of the manufacturing cell.
//
// The Factory owns one controller per machine kind, the job store, the
// camera manager, and the tool metadata, and it alone reads and writes
// the aggregate state file. There are no process-wide registries: every
// component that needs a machine or the job store receives it from the
// Factory.
//
// Startup is tolerant: a missing or corrupt state file logs a warning
// and falls back to defaults rather than refusing to boot. Mutations are
// strict the other way: each one rewrites the whole aggregate before
// returning, so on-disk state never lags memory.
package factory
