// Package store persists replicas by (entity, owner, period, side)
// coordinates.
//
// The production implementation is SQLite with WAL mode; an in-memory
// implementation backs tests and the fault-injection cases around failed
// write-backs. Both honor the adapter contract the reconciler depends on:
// loading coordinates with no prior data returns an empty replica (never an
// error), and a save replaces the whole replica atomically so a concurrent
// reader can never observe a partially written record set.
package store
