package record

import (
	"fmt"
)

// Side identifies which role owns a replica.
type Side string

const (
	// SideProducer is the record owner's replica (the employee).
	SideProducer Side = "producer"

	// SideReviewer is the supervising role's replica (admin or team lead).
	SideReviewer Side = "reviewer"
)

// Valid reports whether s is a known replica side.
func (s Side) Valid() bool {
	return s == SideProducer || s == SideReviewer
}

// Other returns the opposite side.
func (s Side) Other() Side {
	if s == SideProducer {
		return SideReviewer
	}
	return SideProducer
}

// Replica is one role's copy of a record set for one (owner, period) pair.
// Two replicas of the same (owner, period) drift apart between
// synchronization points and are reconciled per call.
type Replica struct {
	OwnerID string   `json:"owner_id"`
	Period  string   `json:"period"` // "2024-05" for monthly, "2024" for yearly sets
	Side    Side     `json:"side"`
	Records []Record `json:"records"`
}

// NewReplica returns an empty replica for the given coordinates.
func NewReplica(ownerID, period string, side Side) Replica {
	return Replica{OwnerID: ownerID, Period: period, Side: side}
}

// Get returns the record stored under key, if any.
func (r Replica) Get(key string) (Record, bool) {
	for _, rec := range r.Records {
		if rec.Key == key {
			return rec, true
		}
	}
	return Record{}, false
}

// Index returns the replica's records keyed by record key.
func (r Replica) Index() map[string]Record {
	idx := make(map[string]Record, len(r.Records))
	for _, rec := range r.Records {
		idx[rec.Key] = rec
	}
	return idx
}

// Keys returns the record keys in storage order.
func (r Replica) Keys() []string {
	keys := make([]string, len(r.Records))
	for i, rec := range r.Records {
		keys[i] = rec.Key
	}
	return keys
}

// Validate checks the replica's key-uniqueness invariant.
func (r Replica) Validate() error {
	seen := make(map[string]bool, len(r.Records))
	for _, rec := range r.Records {
		if seen[rec.Key] {
			return fmt.Errorf("replica %s/%s/%s: duplicate key %q", r.OwnerID, r.Period, r.Side, rec.Key)
		}
		seen[rec.Key] = true
	}
	return nil
}
