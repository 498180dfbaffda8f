package reconcile

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// DefaultLockShards is the default size of the owner lock pool.
const DefaultLockShards = 64

// lockTable serializes replica access per owner. Owners hash onto a fixed
// pool of read/write locks, so memory stays constant however many owners
// the system sees; two owners sharing a shard merely contend, they never
// deadlock (a merge holds exactly one shard at a time).
type lockTable struct {
	shards []sync.RWMutex
}

func newLockTable(shards int) *lockTable {
	if shards <= 0 {
		shards = DefaultLockShards
	}
	return &lockTable{shards: make([]sync.RWMutex, shards)}
}

func (t *lockTable) forOwner(ownerID string) *sync.RWMutex {
	idx := xxhash.Sum64String(ownerID) % uint64(len(t.shards))
	return &t.shards[idx]
}
