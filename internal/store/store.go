package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tberndt/worksync/internal/record"
)

// Store is the replica store adapter the reconciler works against.
type Store interface {
	// LoadReplica returns the stored replica for the given coordinates.
	// Coordinates with no prior data return an empty replica, not an error.
	LoadReplica(ctx context.Context, entity record.EntityType, ownerID, period string, side record.Side) (record.Replica, error)

	// SaveReplica replaces the stored replica wholesale. Atomic from the
	// caller's point of view: a concurrent reader sees either the previous
	// record set or the new one, never a mix.
	SaveReplica(ctx context.Context, entity record.EntityType, rep record.Replica) error

	// SaveReplicas replaces several replicas of one entity in a single
	// atomic commit: either every replica is stored or none is. The
	// reconciler writes both sides of a merge through this so a failure
	// cannot leave one side holding merged state the other never saw.
	SaveReplicas(ctx context.Context, entity record.EntityType, reps ...record.Replica) error

	// MergedAt returns when the replica was last saved. ok is false for
	// coordinates that were never written. Informational only; the merge
	// table never consults it.
	MergedAt(ctx context.Context, entity record.EntityType, ownerID, period string, side record.Side) (t time.Time, ok bool, err error)

	// Close releases the underlying resources.
	Close() error
}

// ErrStore marks replica load/save failures. Callers match it with
// errors.Is; the reconciler fails the whole call on it, discarding the
// in-memory merge, and the period counts as not yet merged.
var ErrStore = errors.New("replica store failure")

// StoreError wraps an underlying storage failure with the coordinates of
// the replica being accessed.
type StoreError struct {
	Op      string // "load" or "save"
	Entity  record.EntityType
	OwnerID string
	Period  string
	Side    record.Side
	Err     error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return fmt.Sprintf("%s replica %s/%s/%s/%s: %v", e.Op, e.Entity, e.OwnerID, e.Period, e.Side, e.Err)
}

// Is makes StoreError match ErrStore under errors.Is.
func (e *StoreError) Is(target error) bool {
	return target == ErrStore
}

// Unwrap returns the underlying error.
func (e *StoreError) Unwrap() error {
	return e.Err
}
