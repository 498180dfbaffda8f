// Package reconcile implements the set reconciler: it loads the producer
// and reviewer replicas of one (owner, period), merges them key by key
// through the entity's merge rule table, writes the converged set back to
// the replica(s) that need it, and reports the quota counter deltas the
// merge produced.
//
// All reconciliation and replica mutation for one owner is serialized
// through a per-owner read/write lock (sharded by owner hash over a fixed
// pool, so the table cannot grow with the user population). Display loads
// take the shared lock; anything that may write back takes the exclusive
// lock. Owners are independent; there is no cross-owner ordering.
//
// Reconciliation itself is a blocking, synchronous computation over
// in-memory replicas: both sides are read fully, merged, and written back
// wholesale. Entity counts per owner per period are small, so no streaming
// is needed.
package reconcile
