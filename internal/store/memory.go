package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tberndt/worksync/internal/record"
)

type coord struct {
	entity  record.EntityType
	ownerID string
	period  string
	side    record.Side
}

type memReplica struct {
	records  []record.Record
	mergedAt time.Time
}

// MemoryStore is an in-memory Store used by tests. It copies record slices
// on both load and save, so callers can never alias stored state, and can
// inject save failures to exercise the no-partial-commit path.
type MemoryStore struct {
	mu       sync.RWMutex
	replicas map[coord]memReplica

	// FailSaves makes every save return a StoreError when set.
	FailSaves bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{replicas: make(map[coord]memReplica)}
}

// LoadReplica returns a copy of the stored replica, or an empty one.
func (s *MemoryStore) LoadReplica(_ context.Context, entity record.EntityType, ownerID, period string, side record.Side) (record.Replica, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rep := record.NewReplica(ownerID, period, side)
	stored, ok := s.replicas[coord{entity, ownerID, period, side}]
	if !ok {
		return rep, nil
	}
	rep.Records = append([]record.Record(nil), stored.records...)
	return rep, nil
}

// SaveReplica stores a copy of the replica's records.
func (s *MemoryStore) SaveReplica(ctx context.Context, entity record.EntityType, rep record.Replica) error {
	return s.SaveReplicas(ctx, entity, rep)
}

// SaveReplicas stores copies of all replicas, or none of them. Validation
// and the injected-failure check run before the first write so a rejected
// replica never leaves a partial batch behind.
func (s *MemoryStore) SaveReplicas(_ context.Context, entity record.EntityType, reps ...record.Replica) error {
	for _, rep := range reps {
		if s.FailSaves {
			return &StoreError{Op: "save", Entity: entity, OwnerID: rep.OwnerID, Period: rep.Period, Side: rep.Side, Err: fmt.Errorf("injected save failure")}
		}
		if err := rep.Validate(); err != nil {
			return &StoreError{Op: "save", Entity: entity, OwnerID: rep.OwnerID, Period: rep.Period, Side: rep.Side, Err: err}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for _, rep := range reps {
		s.replicas[coord{entity, rep.OwnerID, rep.Period, rep.Side}] = memReplica{
			records:  append([]record.Record(nil), rep.Records...),
			mergedAt: now,
		}
	}
	return nil
}

// MergedAt reports the last save time of a replica.
func (s *MemoryStore) MergedAt(_ context.Context, entity record.EntityType, ownerID, period string, side record.Side) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.replicas[coord{entity, ownerID, period, side}]
	if !ok {
		return time.Time{}, false, nil
	}
	return stored.mergedAt, true, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}

// SaveCount returns the number of stored replicas. Test helper.
func (s *MemoryStore) SaveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.replicas)
}
