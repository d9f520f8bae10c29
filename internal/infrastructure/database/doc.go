// Package database manages the SQLite connection backing the audit trail.
//
// It wraps database/sql with directory creation, pragma configuration
// (WAL mode, busy timeout, foreign keys), a single-writer connection
// pool, and a connectivity check on open.
//
// Schema creation lives with the stores that own the tables (see
// internal/audit); this package only provides the connection.
package database
