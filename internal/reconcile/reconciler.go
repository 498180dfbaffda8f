package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/tberndt/worksync/internal/merge"
	"github.com/tberndt/worksync/internal/record"
	"github.com/tberndt/worksync/internal/store"
)

// DefaultAmbiguityThreshold is the number of consecutive merges in which an
// unresolved producer edit must survive against a conflicting reviewer
// snapshot before the reconciler logs it as a standing disagreement.
const DefaultAmbiguityThreshold = 2

// ExcludedKey reports a key skipped by the merge because of a per-record
// failure (an unknown tag). The key's records stay untouched on both sides;
// the period counts as not fully merged until a writer fixes the tag.
type ExcludedKey struct {
	Key string
	Err error
}

// Result is the outcome of one reconciliation run.
type Result struct {
	RunToken string
	Entity   record.EntityType
	OwnerID  string
	Period   string

	// Merged is the converged record set in the entity's natural order.
	Merged []record.Record

	// ProducerOut and ReviewerOut are the post-merge replica contents:
	// the merged set plus each side's carried-through excluded records.
	ProducerOut record.Replica
	ReviewerOut record.Replica

	// Deltas are the quota counter adjustments this merge produced.
	Deltas []merge.CounterDelta

	// Excluded lists keys skipped because of unknown tags.
	Excluded []ExcludedKey

	// WroteProducer and WroteReviewer say which replicas were saved.
	WroteProducer bool
	WroteReviewer bool

	// conflictKeys are keys resolved by the producer-wins rule this run;
	// input to the standing-disagreement tracker.
	conflictKeys []string
}

// Reconciler merges producer and reviewer replicas through the per-entity
// merge rule tables. Safe for concurrent use; per-owner serialization is
// handled internally via the owner lock table.
type Reconciler struct {
	store              store.Store
	tables             map[record.EntityType]*merge.Table
	locks              *lockTable
	tokens             TokenGenerator
	hook               CounterHook
	ambiguity          *ambiguityTracker
	ambiguityThreshold int
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithCounterHook installs the quota counter hook. Without one, deltas are
// still computed and returned but delivered nowhere.
func WithCounterHook(h CounterHook) Option {
	return func(r *Reconciler) { r.hook = h }
}

// WithTokenGenerator replaces the run token source. Tests install a
// FixedGenerator for deterministic output.
func WithTokenGenerator(g TokenGenerator) Option {
	return func(r *Reconciler) { r.tokens = g }
}

// WithLockShards sets the owner lock pool size.
func WithLockShards(n int) Option {
	return func(r *Reconciler) { r.locks = newLockTable(n) }
}

// WithAmbiguityThreshold sets how many consecutive producer-wins merges of
// the same key trigger the standing-disagreement warning.
func WithAmbiguityThreshold(n int) Option {
	return func(r *Reconciler) {
		if n > 0 {
			r.ambiguityThreshold = n
		}
	}
}

// New creates a Reconciler over the given store with rule tables for every
// registered entity type.
func New(s store.Store, opts ...Option) *Reconciler {
	tables := make(map[record.EntityType]*merge.Table)
	for _, e := range record.Entities() {
		desc, ok := record.DescriptorFor(e)
		if !ok {
			continue
		}
		tables[e] = merge.NewTable(desc)
	}

	r := &Reconciler{
		store:              s,
		tables:             tables,
		locks:              newLockTable(DefaultLockShards),
		tokens:             UUIDv7Generator{},
		ambiguity:          newAmbiguityTracker(),
		ambiguityThreshold: DefaultAmbiguityThreshold,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile merges the two replicas of (entity, owner, period) and writes
// the result back. initiator names the replica on whose behalf the call
// runs; that replica always receives the full merged set, the other side is
// written only when it was stale relative to the merge outcome.
//
// Takes the owner's exclusive lock: a background full merge and an
// interactive edit on the same owner cannot interleave.
func (r *Reconciler) Reconcile(ctx context.Context, entity record.EntityType, ownerID, period string, initiator record.Side) (*Result, error) {
	tbl, ok := r.tables[entity]
	if !ok {
		return nil, fmt.Errorf("reconcile: unknown entity type %q", entity)
	}
	if !initiator.Valid() {
		return nil, fmt.Errorf("reconcile: invalid initiator side %q", initiator)
	}

	mu := r.locks.forOwner(ownerID)
	mu.Lock()
	defer mu.Unlock()

	run := r.tokens.Generate()
	defer r.evictRun(run)
	return r.reconcileLocked(ctx, tbl, run, ownerID, period, initiator)
}

// ReconcileAll merges every entity type for one owner under a single
// exclusive lock hold and a single run token. This is the login-time full
// merge path: no interactive edit can slip between the per-entity merges,
// and every per-entity result carries the same RunToken.
//
// A store failure aborts the remaining entities; results for entities
// merged before the failure are returned alongside the error.
func (r *Reconciler) ReconcileAll(ctx context.Context, ownerID, period string, initiator record.Side) (map[record.EntityType]*Result, error) {
	if !initiator.Valid() {
		return nil, fmt.Errorf("reconcile: invalid initiator side %q", initiator)
	}

	mu := r.locks.forOwner(ownerID)
	mu.Lock()
	defer mu.Unlock()

	run := r.tokens.Generate()
	defer r.evictRun(run)

	results := make(map[record.EntityType]*Result)
	for _, entity := range record.Entities() {
		tbl := r.tables[entity]
		res, err := r.reconcileLocked(ctx, tbl, run, ownerID, period, initiator)
		if err != nil {
			return results, fmt.Errorf("reconcile all %s: %w", entity, err)
		}
		results[entity] = res
	}
	return results, nil
}

// LoadForDisplay loads one replica under the owner's shared lock. Multiple
// readers may proceed concurrently; a reconciliation in flight blocks them
// until its write-back completes.
func (r *Reconciler) LoadForDisplay(ctx context.Context, entity record.EntityType, ownerID, period string, side record.Side) (record.Replica, error) {
	mu := r.locks.forOwner(ownerID)
	mu.RLock()
	defer mu.RUnlock()

	return r.store.LoadReplica(ctx, entity, ownerID, period, side)
}

// reconcileLocked runs one merge under an already-generated run token.
// Caller holds the owner's exclusive lock.
func (r *Reconciler) reconcileLocked(ctx context.Context, tbl *merge.Table, run, ownerID, period string, initiator record.Side) (*Result, error) {
	entity := tbl.Entity()

	slog.Debug("reconcile starting",
		"run", run,
		"entity", entity,
		"owner", ownerID,
		"period", period,
		"initiator", initiator,
	)

	producer, err := r.store.LoadReplica(ctx, entity, ownerID, period, record.SideProducer)
	if err != nil {
		return nil, fmt.Errorf("reconcile %s/%s/%s: %w", entity, ownerID, period, err)
	}
	reviewer, err := r.store.LoadReplica(ctx, entity, ownerID, period, record.SideReviewer)
	if err != nil {
		return nil, fmt.Errorf("reconcile %s/%s/%s: %w", entity, ownerID, period, err)
	}

	res := r.mergeReplicas(tbl, run, ownerID, period, producer, reviewer)

	// Write-back. The initiator is always saved so it becomes
	// self-consistent with the other side; the other replica only when
	// stale. Both saves go through one atomic SaveReplicas call: a failure
	// leaves the stored replicas exactly as loaded, the in-memory merge is
	// discarded before counter deltas are delivered, and the caller
	// retries on next access (merging again is idempotent).
	var initiatorOut, otherOut *record.Replica
	if initiator == record.SideProducer {
		initiatorOut, otherOut = &res.ProducerOut, &res.ReviewerOut
	} else {
		initiatorOut, otherOut = &res.ReviewerOut, &res.ProducerOut
	}

	toSave := []record.Replica{*initiatorOut}
	stored := producer
	if otherOut.Side == record.SideReviewer {
		stored = reviewer
	}
	if replicaStale(stored, *otherOut) {
		toSave = append(toSave, *otherOut)
	}

	if err := r.store.SaveReplicas(ctx, entity, toSave...); err != nil {
		return nil, fmt.Errorf("reconcile %s/%s/%s: %w", entity, ownerID, period, err)
	}
	for _, rep := range toSave {
		r.markWritten(res, rep.Side)
	}

	r.deliverDeltas(ctx, res)
	r.trackAmbiguity(res)

	slog.Info("reconcile complete",
		"run", run,
		"entity", entity,
		"owner", ownerID,
		"period", period,
		"merged", len(res.Merged),
		"excluded", len(res.Excluded),
		"deltas", len(res.Deltas),
		"wrote_producer", res.WroteProducer,
		"wrote_reviewer", res.WroteReviewer,
	)

	return res, nil
}

// mergeReplicas builds the merged set in memory: key union in deterministic
// order, one Resolve per key, per-key failures isolated.
func (r *Reconciler) mergeReplicas(tbl *merge.Table, run, ownerID, period string, producer, reviewer record.Replica) *Result {
	entity := tbl.Entity()
	desc, _ := record.DescriptorFor(entity)

	res := &Result{
		RunToken:    run,
		Entity:      entity,
		OwnerID:     ownerID,
		Period:      period,
		ProducerOut: record.NewReplica(ownerID, period, record.SideProducer),
		ReviewerOut: record.NewReplica(ownerID, period, record.SideReviewer),
	}

	pIdx := producer.Index()
	rIdx := reviewer.Index()

	// Producer keys in producer order, then reviewer-only keys in
	// reviewer order. Deterministic for a given pair of replicas.
	union := make([]string, 0, len(pIdx)+len(rIdx))
	union = append(union, producer.Keys()...)
	for _, key := range reviewer.Keys() {
		if _, inProducer := pIdx[key]; !inProducer {
			union = append(union, key)
		}
	}

	var producerExtra, reviewerExtra []record.Record
	for _, key := range union {
		var pRec, rRec *record.Record
		if rec, ok := pIdx[key]; ok {
			pRec = &rec
		}
		if rec, ok := rIdx[key]; ok {
			rRec = &rec
		}

		out, deltas, err := tbl.Resolve(key, pRec, rRec)
		if err != nil {
			// The one key is excluded; each side keeps its own record
			// so nothing is lost without an explicit Drop outcome.
			slog.Error("record excluded from merge",
				"run", run,
				"entity", entity,
				"owner", ownerID,
				"key", key,
				"error", err,
			)
			res.Excluded = append(res.Excluded, ExcludedKey{Key: key, Err: err})
			if pRec != nil {
				producerExtra = append(producerExtra, *pRec)
			}
			if rRec != nil {
				reviewerExtra = append(reviewerExtra, *rRec)
			}
			continue
		}

		res.Deltas = append(res.Deltas, deltas...)
		if out.Decision == merge.DecisionKeep {
			res.Merged = append(res.Merged, out.Record)
		}
		r.noteRule(res, key, out.Rule)
	}

	sort.SliceStable(res.Merged, func(i, j int) bool { return desc.Less(res.Merged[i], res.Merged[j]) })

	res.ProducerOut.Records = sortedWith(desc, res.Merged, producerExtra)
	res.ReviewerOut.Records = sortedWith(desc, res.Merged, reviewerExtra)
	return res
}

// sortedWith returns merged plus extra, sorted in the entity order. The
// merged slice is never shared between the two output replicas.
func sortedWith(desc *record.Descriptor, merged, extra []record.Record) []record.Record {
	out := make([]record.Record, 0, len(merged)+len(extra))
	out = append(out, merged...)
	out = append(out, extra...)
	sort.SliceStable(out, func(i, j int) bool { return desc.Less(out[i], out[j]) })
	return out
}

// replicaStale reports whether the stored replica differs from the merge
// outcome for that side: any missing key, extra key, tag change or payload
// change makes it stale.
func replicaStale(stored, out record.Replica) bool {
	if len(stored.Records) != len(out.Records) {
		return true
	}
	idx := stored.Index()
	for _, rec := range out.Records {
		got, ok := idx[rec.Key]
		if !ok || got.Tag != rec.Tag || !record.ContentEqual(got, rec) {
			return true
		}
	}
	return false
}

func (r *Reconciler) markWritten(res *Result, side record.Side) {
	if side == record.SideProducer {
		res.WroteProducer = true
	} else {
		res.WroteReviewer = true
	}
}

// evictRun tells a dedup-keeping hook to drop the run's delivery state.
// Runs after everything delivered under the token, success or not; the
// token is never reused, so the entries are dead either way.
func (r *Reconciler) evictRun(run string) {
	if ev, ok := r.hook.(RunEvicter); ok {
		ev.ForgetRun(run)
	}
}

// deliverDeltas hands every counter delta to the hook. Hook failures are
// logged and do not fail the merge: the replicas are already consistent,
// and the ledger catches up on the next run because delivery keys repeat.
func (r *Reconciler) deliverDeltas(ctx context.Context, res *Result) {
	if r.hook == nil || len(res.Deltas) == 0 {
		return
	}
	for _, d := range res.Deltas {
		n := Notification{
			RunToken: res.RunToken,
			Entity:   res.Entity,
			OwnerID:  res.OwnerID,
			Period:   res.Period,
			Delta:    d,
		}
		if err := r.hook.Apply(ctx, n); err != nil {
			slog.Warn("counter hook failed",
				"run", res.RunToken,
				"owner", res.OwnerID,
				"kind", d.Kind,
				"key", d.Key,
				"error", err,
			)
		}
	}
}
