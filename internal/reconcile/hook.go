package reconcile

import (
	"context"

	"github.com/tberndt/worksync/internal/merge"
	"github.com/tberndt/worksync/internal/record"
)

// Notification carries one CounterDelta together with the merge run that
// produced it. The run token is the dedup handle: delivery is at-least-once
// across retried merges, so the receiving balance tracker must be
// idempotent against repeated notifications of the same (run, delta).
type Notification struct {
	RunToken string
	Entity   record.EntityType
	OwnerID  string
	Period   string
	Delta    merge.CounterDelta
}

// CounterHook receives quota counter adjustments computed by a merge.
// The engine computes what changed and by how much; mutating actual
// balances is entirely the hook's side of the boundary.
type CounterHook interface {
	Apply(ctx context.Context, n Notification) error
}

// RunEvicter is implemented by counter hooks that keep per-run dedup
// state. The reconciler calls ForgetRun once a run's write-back and delta
// delivery are finished; a retried merge always carries a fresh token, so
// the evicted entries are never consulted again.
type RunEvicter interface {
	ForgetRun(run string)
}

// CounterHookFunc adapts a function to the CounterHook interface.
type CounterHookFunc func(ctx context.Context, n Notification) error

// Apply implements CounterHook.
func (f CounterHookFunc) Apply(ctx context.Context, n Notification) error {
	return f(ctx, n)
}
