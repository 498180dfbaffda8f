// Package balance tracks per-owner quota balances (paid leave days, sick
// leave days) and consumes the counter deltas reconciliation emits.
//
// The engine delivers deltas at-least-once: a merge that fails its write-back
// is retried and replays the same deltas under a new run token, while hook
// retries within one run reuse the token. The ledger therefore dedupes on
// (run, owner, kind, record key) and applying the same notification twice is
// a no-op.
package balance

import (
	"context"
	"sync"

	"github.com/tberndt/worksync/internal/reconcile"
)

type appliedKey struct {
	run       string
	ownerID   string
	kind      string
	recordKey string
}

type balanceKey struct {
	ownerID string
	kind    string
}

// Ledger is an in-memory quota balance tracker implementing
// reconcile.CounterHook. Safe for concurrent use.
type Ledger struct {
	mu       sync.Mutex
	balances map[balanceKey]int
	applied  map[appliedKey]bool
}

var (
	_ reconcile.CounterHook = (*Ledger)(nil)
	_ reconcile.RunEvicter  = (*Ledger)(nil)
)

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		balances: make(map[balanceKey]int),
		applied:  make(map[appliedKey]bool),
	}
}

// Grant adds days to an owner's quota, e.g. the yearly paid-leave
// allowance. Negative grants are allowed for corrections.
func (l *Ledger) Grant(ownerID, kind string, days int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[balanceKey{ownerID, kind}] += days
}

// Apply books one counter delta. Idempotent against repeated delivery of
// the same notification.
func (l *Ledger) Apply(_ context.Context, n reconcile.Notification) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	k := appliedKey{run: n.RunToken, ownerID: n.OwnerID, kind: n.Delta.Kind, recordKey: n.Delta.Key}
	if l.applied[k] {
		return nil
	}
	l.applied[k] = true
	l.balances[balanceKey{n.OwnerID, n.Delta.Kind}] += n.Delta.Amount
	return nil
}

// Balance returns an owner's current balance for one quota kind.
func (l *Ledger) Balance(ownerID, kind string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[balanceKey{ownerID, kind}]
}

// ForgetRun drops the dedup entries of a completed run, keeping the dedup
// table from growing with merge history. The reconciler calls it through
// reconcile.RunEvicter once a run's delivery is finished.
func (l *Ledger) ForgetRun(run string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k := range l.applied {
		if k.run == run {
			delete(l.applied, k)
		}
	}
}
