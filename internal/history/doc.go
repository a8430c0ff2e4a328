// Package history persists a write-only audit log of runs and the
// deletions they performed, backed by SQLite. The engine never reads it;
// it exists for the history command and post-hoc inspection.
package history
