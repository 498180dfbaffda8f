package reconcile

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tberndt/worksync/internal/merge"
	"github.com/tberndt/worksync/internal/record"
	"github.com/tberndt/worksync/internal/store"
)

// collectHook records every notification it receives.
type collectHook struct {
	mu    sync.Mutex
	notes []Notification
}

func (h *collectHook) Apply(_ context.Context, n Notification) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.notes = append(h.notes, n)
	return nil
}

func (h *collectHook) all() []Notification {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Notification(nil), h.notes...)
}

// forgettingHook is a collectHook that also records run evictions.
type forgettingHook struct {
	collectHook
	forgotten []string
}

func (h *forgettingHook) ForgetRun(run string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.forgotten = append(h.forgotten, run)
}

func (h *forgettingHook) runsForgotten() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.forgotten...)
}

func wtRec(key string, tag record.Tag, payload string) record.Record {
	r := record.Record{Key: key, OwnerID: "emp-1", Tag: tag}
	if payload != "" {
		r.Payload = json.RawMessage(payload)
	}
	return r
}

func seedReplica(t *testing.T, s store.Store, entity record.EntityType, side record.Side, recs ...record.Record) {
	t.Helper()
	rep := record.NewReplica("emp-1", "2024-05", side)
	rep.Records = recs
	require.NoError(t, s.SaveReplica(context.Background(), entity, rep))
}

func fixedTokens(n int) *FixedGenerator {
	tokens := make([]string, n)
	for i := range tokens {
		tokens[i] = "run-" + string(rune('a'+i))
	}
	return NewFixedGenerator(tokens...)
}

// TestReconcile_FreshInputSeedsReviewer covers the absent-reviewer edge: a
// producer INPUT record passes through unchanged and the reviewer replica is
// created with the same content as a side effect.
func TestReconcile_FreshInputSeedsReviewer(t *testing.T) {
	s := store.NewMemoryStore()
	seedReplica(t, s, record.EntityWorkTime, record.SideProducer,
		wtRec("2024-05-10", record.WorkTimeInput, `{"hours":8}`))

	r := New(s, WithTokenGenerator(fixedTokens(1)))
	res, err := r.Reconcile(context.Background(), record.EntityWorkTime, "emp-1", "2024-05", record.SideProducer)
	require.NoError(t, err)

	require.Len(t, res.Merged, 1)
	assert.Equal(t, record.WorkTimeInput, res.Merged[0].Tag)
	assert.JSONEq(t, `{"hours":8}`, string(res.Merged[0].Payload))
	assert.True(t, res.WroteProducer)
	assert.True(t, res.WroteReviewer, "reviewer replica must be created")

	reviewer, err := s.LoadReplica(context.Background(), record.EntityWorkTime, "emp-1", "2024-05", record.SideReviewer)
	require.NoError(t, err)
	require.Len(t, reviewer.Records, 1)
	assert.Equal(t, res.Merged[0], reviewer.Records[0])
}

// TestReconcile_ProducerSeededFromReviewer covers the absent-producer edge:
// first access for a period seeds the producer from the reviewer replica.
func TestReconcile_ProducerSeededFromReviewer(t *testing.T) {
	s := store.NewMemoryStore()
	seedReplica(t, s, record.EntityWorkTime, record.SideReviewer,
		wtRec("2024-05-06", record.WorkTimeTLChecked, `{"hours":6}`))

	r := New(s, WithTokenGenerator(fixedTokens(1)))
	res, err := r.Reconcile(context.Background(), record.EntityWorkTime, "emp-1", "2024-05", record.SideProducer)
	require.NoError(t, err)

	require.Len(t, res.Merged, 1)
	assert.Equal(t, record.WorkTimeUserDone, res.Merged[0].Tag)

	producer, err := s.LoadReplica(context.Background(), record.EntityWorkTime, "emp-1", "2024-05", record.SideProducer)
	require.NoError(t, err)
	require.Len(t, producer.Records, 1)
}

// TestReconcile_InProgressProtection verifies the merged output for an open
// session equals the producer record exactly, regardless of reviewer content.
func TestReconcile_InProgressProtection(t *testing.T) {
	s := store.NewMemoryStore()
	open := wtRec("2024-05-11", record.WorkTimeOpenSession, `{"start":"09:00","end":null}`)
	seedReplica(t, s, record.EntityWorkTime, record.SideProducer, open)
	seedReplica(t, s, record.EntityWorkTime, record.SideReviewer,
		wtRec("2024-05-11", record.WorkTimeTLEdited, `{"start":"09:00","end":"17:00"}`))

	r := New(s, WithTokenGenerator(fixedTokens(1)))
	res, err := r.Reconcile(context.Background(), record.EntityWorkTime, "emp-1", "2024-05", record.SideProducer)
	require.NoError(t, err)

	require.Len(t, res.Merged, 1)
	assert.Equal(t, open, res.Merged[0], "open session survives byte-for-byte")

	// The reviewer's edit is discarded for this cycle on both sides.
	reviewer, err := s.LoadReplica(context.Background(), record.EntityWorkTime, "emp-1", "2024-05", record.SideReviewer)
	require.NoError(t, err)
	require.Len(t, reviewer.Records, 1)
	assert.Equal(t, record.WorkTimeOpenSession, reviewer.Records[0].Tag)
}

// TestReconcile_TombstoneDropsAndRestoresQuota verifies tombstone finality:
// the key disappears from both replicas and exactly one restoring delta is
// delivered to the hook.
func TestReconcile_TombstoneDropsAndRestoresQuota(t *testing.T) {
	s := store.NewMemoryStore()
	seedReplica(t, s, record.EntityWorkTime, record.SideProducer,
		wtRec("2024-05-07", record.WorkTimeUserDone, `{"type":"CO"}`),
		wtRec("2024-05-08", record.WorkTimeUserDone, `{"hours":8}`))
	seedReplica(t, s, record.EntityWorkTime, record.SideReviewer,
		wtRec("2024-05-07", record.WorkTimeTLDeleted, `{"type":"CO"}`),
		wtRec("2024-05-08", record.WorkTimeUserDone, `{"hours":8}`))

	hook := &collectHook{}
	r := New(s, WithTokenGenerator(fixedTokens(1)), WithCounterHook(hook))
	res, err := r.Reconcile(context.Background(), record.EntityWorkTime, "emp-1", "2024-05", record.SideProducer)
	require.NoError(t, err)

	require.Len(t, res.Merged, 1)
	assert.Equal(t, "2024-05-08", res.Merged[0].Key)

	notes := hook.all()
	require.Len(t, notes, 1)
	assert.Equal(t, "run-a", notes[0].RunToken)
	assert.Equal(t, merge.CounterDelta{Kind: record.QuotaPaidLeaveDay, Amount: +1, Key: "2024-05-07"}, notes[0].Delta)

	producer, err := s.LoadReplica(context.Background(), record.EntityWorkTime, "emp-1", "2024-05", record.SideProducer)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-05-08"}, producer.Keys())
}

// TestReconcile_KeyUnionCompleteness verifies no key is silently lost: the
// merged key set equals the union minus dropped keys.
func TestReconcile_KeyUnionCompleteness(t *testing.T) {
	s := store.NewMemoryStore()
	seedReplica(t, s, record.EntityWorkTime, record.SideProducer,
		wtRec("2024-05-02", record.WorkTimeInput, `{"hours":8}`),
		wtRec("2024-05-03", record.WorkTimeUserEdited, `{"hours":6}`))
	seedReplica(t, s, record.EntityWorkTime, record.SideReviewer,
		wtRec("2024-05-03", record.WorkTimeTLEdited, `{"hours":4}`),
		wtRec("2024-05-04", record.WorkTimeTLDeleted, ""),
		wtRec("2024-05-05", record.WorkTimeTLChecked, `{"hours":7}`))

	r := New(s, WithTokenGenerator(fixedTokens(1)))
	res, err := r.Reconcile(context.Background(), record.EntityWorkTime, "emp-1", "2024-05", record.SideProducer)
	require.NoError(t, err)

	// Union is {02,03,04,05}; 04 dropped by tombstone.
	var keys []string
	for _, rec := range res.Merged {
		keys = append(keys, rec.Key)
	}
	assert.Equal(t, []string{"2024-05-02", "2024-05-03", "2024-05-05"}, keys,
		"date ascending, dropped key absent")
}

// TestReconcile_EditPrecedence verifies an unresolved producer edit survives
// while the reviewer snapshot differs.
func TestReconcile_EditPrecedence(t *testing.T) {
	s := store.NewMemoryStore()
	edited := wtRec("2024-05-09", record.WorkTimeUserEdited, `{"hours":8}`)
	seedReplica(t, s, record.EntityWorkTime, record.SideProducer, edited)
	seedReplica(t, s, record.EntityWorkTime, record.SideReviewer,
		wtRec("2024-05-09", record.WorkTimeTLChecked, `{"hours":2}`))

	r := New(s, WithTokenGenerator(fixedTokens(1)))
	res, err := r.Reconcile(context.Background(), record.EntityWorkTime, "emp-1", "2024-05", record.SideProducer)
	require.NoError(t, err)

	require.Len(t, res.Merged, 1)
	assert.Equal(t, edited, res.Merged[0])
}

// TestReconcile_Idempotence verifies re-running reconciliation over its own
// outputs reaches a fixed point: the second run settles fresh tags, the
// third changes nothing and skips the non-initiator write entirely.
func TestReconcile_Idempotence(t *testing.T) {
	s := store.NewMemoryStore()
	seedReplica(t, s, record.EntityWorkTime, record.SideProducer,
		wtRec("2024-05-02", record.WorkTimeInput, `{"hours":8}`),
		wtRec("2024-05-03", record.WorkTimeUserEdited, `{"hours":6}`),
		wtRec("2024-05-06", record.WorkTimeOpenSession, `{"start":"08:00"}`))
	seedReplica(t, s, record.EntityWorkTime, record.SideReviewer,
		wtRec("2024-05-03", record.WorkTimeTLEdited, `{"hours":6}`),
		wtRec("2024-05-04", record.WorkTimeTLChecked, `{"hours":7}`))

	r := New(s, WithTokenGenerator(fixedTokens(3)))
	ctx := context.Background()

	first, err := r.Reconcile(ctx, record.EntityWorkTime, "emp-1", "2024-05", record.SideProducer)
	require.NoError(t, err)

	second, err := r.Reconcile(ctx, record.EntityWorkTime, "emp-1", "2024-05", record.SideProducer)
	require.NoError(t, err)

	third, err := r.Reconcile(ctx, record.EntityWorkTime, "emp-1", "2024-05", record.SideProducer)
	require.NoError(t, err)

	// Key sets never change across reruns.
	assert.Equal(t, keysOf(first.Merged), keysOf(second.Merged))
	assert.Equal(t, keysOf(second.Merged), keysOf(third.Merged))

	// The merge reaches a fixed point: run three equals run two exactly,
	// and the reviewer side is already up to date.
	assert.Equal(t, second.Merged, third.Merged)
	assert.False(t, third.WroteReviewer)
	assert.Empty(t, third.Deltas)

	// The open session alone may stay unconverged; everything else has
	// settled tags by the second run.
	for _, rec := range second.Merged {
		if rec.Tag == record.WorkTimeOpenSession {
			continue
		}
		assert.Contains(t, []record.Tag{record.WorkTimeUserDone}, rec.Tag, "key %s", rec.Key)
	}
}

// TestReconcile_CheckRegisterIdempotence verifies the fixed point for the
// entity whose settled tag is not the producer acknowledgement: a converged
// check record is QA_SIGNED after the first run and the second run writes
// nothing.
func TestReconcile_CheckRegisterIdempotence(t *testing.T) {
	s := store.NewMemoryStore()
	seedCheck := func(side record.Side, tag record.Tag) {
		rep := record.NewReplica("emp-1", "2024-05", side)
		rep.Records = []record.Record{{Key: "5", OwnerID: "emp-1", Tag: tag, Payload: json.RawMessage(`{"date":"2024-05-03","result":"pass"}`)}}
		require.NoError(t, s.SaveReplica(context.Background(), record.EntityCheckRegister, rep))
	}
	seedCheck(record.SideProducer, record.CheckUserEdited)
	seedCheck(record.SideReviewer, record.CheckQAEdited)

	r := New(s, WithTokenGenerator(fixedTokens(2)))
	ctx := context.Background()

	first, err := r.Reconcile(ctx, record.EntityCheckRegister, "emp-1", "2024-05", record.SideProducer)
	require.NoError(t, err)
	require.Len(t, first.Merged, 1)
	assert.Equal(t, record.CheckQASigned, first.Merged[0].Tag)

	second, err := r.Reconcile(ctx, record.EntityCheckRegister, "emp-1", "2024-05", record.SideProducer)
	require.NoError(t, err)
	assert.Equal(t, first.Merged, second.Merged)
	assert.False(t, second.WroteReviewer, "nothing left to rewrite")
}

func keysOf(recs []record.Record) []string {
	keys := make([]string, len(recs))
	for i, r := range recs {
		keys[i] = r.Key
	}
	return keys
}

// TestReconcile_UnknownTagIsolated verifies a single bad record excludes
// only its own key; the period still merges and both sides keep the
// offending record untouched.
func TestReconcile_UnknownTagIsolated(t *testing.T) {
	s := store.NewMemoryStore()
	seedReplica(t, s, record.EntityWorkTime, record.SideProducer,
		wtRec("2024-05-02", record.WorkTimeInput, `{"hours":8}`),
		wtRec("2024-05-03", record.Tag("CORRUPTED"), `{"hours":1}`))

	r := New(s, WithTokenGenerator(fixedTokens(1)))
	res, err := r.Reconcile(context.Background(), record.EntityWorkTime, "emp-1", "2024-05", record.SideProducer)
	require.NoError(t, err, "per-key failures must not fail the period")

	require.Len(t, res.Excluded, 1)
	assert.Equal(t, "2024-05-03", res.Excluded[0].Key)
	assert.True(t, merge.IsUnknownTag(res.Excluded[0].Err))

	require.Len(t, res.Merged, 1)
	assert.Equal(t, "2024-05-02", res.Merged[0].Key)

	// The bad record is carried through on the producer side, not dropped.
	producer, err := s.LoadReplica(context.Background(), record.EntityWorkTime, "emp-1", "2024-05", record.SideProducer)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-05-02", "2024-05-03"}, producer.Keys())
}

// TestReconcile_SaveFailureDiscardsMerge verifies the no-partial-commit
// contract: a failed write-back fails the call, delivers no deltas and
// leaves the stored replicas untouched.
func TestReconcile_SaveFailureDiscardsMerge(t *testing.T) {
	s := store.NewMemoryStore()
	seedReplica(t, s, record.EntityWorkTime, record.SideProducer,
		wtRec("2024-05-07", record.WorkTimeUserDone, `{"type":"CO"}`))
	seedReplica(t, s, record.EntityWorkTime, record.SideReviewer,
		wtRec("2024-05-07", record.WorkTimeTLDeleted, ""))

	s.FailSaves = true
	hook := &collectHook{}
	r := New(s, WithTokenGenerator(fixedTokens(1)), WithCounterHook(hook))

	_, err := r.Reconcile(context.Background(), record.EntityWorkTime, "emp-1", "2024-05", record.SideProducer)
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrStore)
	assert.Empty(t, hook.all(), "no counter delta may escape a failed merge")

	s.FailSaves = false
	producer, err := s.LoadReplica(context.Background(), record.EntityWorkTime, "emp-1", "2024-05", record.SideProducer)
	require.NoError(t, err)
	require.Len(t, producer.Records, 1)
	assert.Equal(t, record.WorkTimeUserDone, producer.Records[0].Tag, "stored replica unchanged")
}

// TestReconcile_TombstoneSurvivesFailedWriteBack drives a reviewer-initiated
// deletion merge into a write-back failure. Both sides must come through
// untouched, so the reviewer still holds the tombstone and the retry
// confirms the drop instead of resurrecting the record.
func TestReconcile_TombstoneSurvivesFailedWriteBack(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	seedReplica(t, s, record.EntityWorkTime, record.SideProducer,
		wtRec("2024-05-07", record.WorkTimeUserDone, `{"type":"CO"}`))
	seedReplica(t, s, record.EntityWorkTime, record.SideReviewer,
		wtRec("2024-05-07", record.WorkTimeTLDeleted, ""))

	s.FailSaves = true
	hook := &collectHook{}
	r := New(s, WithTokenGenerator(fixedTokens(2)), WithCounterHook(hook))

	_, err := r.Reconcile(ctx, record.EntityWorkTime, "emp-1", "2024-05", record.SideReviewer)
	require.ErrorIs(t, err, store.ErrStore)
	assert.Empty(t, hook.all())

	reviewer, err := s.LoadReplica(ctx, record.EntityWorkTime, "emp-1", "2024-05", record.SideReviewer)
	require.NoError(t, err)
	require.Len(t, reviewer.Records, 1)
	assert.Equal(t, record.WorkTimeTLDeleted, reviewer.Records[0].Tag, "tombstone must survive the failed run")

	s.FailSaves = false
	res, err := r.Reconcile(ctx, record.EntityWorkTime, "emp-1", "2024-05", record.SideReviewer)
	require.NoError(t, err)
	assert.Empty(t, res.Merged, "retry confirms the deletion")

	producer, err := s.LoadReplica(ctx, record.EntityWorkTime, "emp-1", "2024-05", record.SideProducer)
	require.NoError(t, err)
	assert.Empty(t, producer.Records)

	// The quota day flows back exactly once, on the run that committed.
	notes := hook.all()
	require.Len(t, notes, 1)
	assert.Equal(t, "run-b", notes[0].RunToken)
	assert.Equal(t, 1, notes[0].Delta.Amount)
}

// TestReconcile_SkipsCleanOtherReplica verifies the write-target rule: the
// non-initiating side is not rewritten when it already matches the outcome.
func TestReconcile_SkipsCleanOtherReplica(t *testing.T) {
	s := store.NewMemoryStore()
	done := wtRec("2024-05-06", record.WorkTimeUserDone, `{"hours":8}`)
	seedReplica(t, s, record.EntityWorkTime, record.SideProducer, done)
	seedReplica(t, s, record.EntityWorkTime, record.SideReviewer, done)

	r := New(s, WithTokenGenerator(fixedTokens(1)))
	res, err := r.Reconcile(context.Background(), record.EntityWorkTime, "emp-1", "2024-05", record.SideProducer)
	require.NoError(t, err)

	assert.True(t, res.WroteProducer, "initiator is always written")
	assert.False(t, res.WroteReviewer, "clean reviewer replica is left alone")
}

// TestReconcile_ReviewerInitiator verifies the initiator convention from the
// reviewer's side.
func TestReconcile_ReviewerInitiator(t *testing.T) {
	s := store.NewMemoryStore()
	seedReplica(t, s, record.EntityWorkTime, record.SideProducer,
		wtRec("2024-05-06", record.WorkTimeUserDone, `{"hours":7}`))
	seedReplica(t, s, record.EntityWorkTime, record.SideReviewer,
		wtRec("2024-05-06", record.WorkTimeTLEdited, `{"hours":8}`))

	r := New(s, WithTokenGenerator(fixedTokens(1)))
	res, err := r.Reconcile(context.Background(), record.EntityWorkTime, "emp-1", "2024-05", record.SideReviewer)
	require.NoError(t, err)

	assert.True(t, res.WroteReviewer)
	assert.True(t, res.WroteProducer, "producer was stale and gets the reviewer's version")

	producer, err := s.LoadReplica(context.Background(), record.EntityWorkTime, "emp-1", "2024-05", record.SideProducer)
	require.NoError(t, err)
	require.Len(t, producer.Records, 1)
	assert.JSONEq(t, `{"hours":8}`, string(producer.Records[0].Payload))
	assert.Equal(t, record.WorkTimeUserDone, producer.Records[0].Tag)
}

// TestReconcile_RegisterOrdering verifies the register's date-descending,
// key-descending merged order is reproduced.
func TestReconcile_RegisterOrdering(t *testing.T) {
	s := store.NewMemoryStore()
	rep := record.NewReplica("emp-1", "2024-05", record.SideProducer)
	rep.Records = []record.Record{
		{Key: "3", OwnerID: "emp-1", Tag: record.RegisterInput, Payload: json.RawMessage(`{"date":"2024-05-10","qty":5}`)},
		{Key: "10", OwnerID: "emp-1", Tag: record.RegisterInput, Payload: json.RawMessage(`{"date":"2024-05-10","qty":2}`)},
		{Key: "7", OwnerID: "emp-1", Tag: record.RegisterInput, Payload: json.RawMessage(`{"date":"2024-05-12","qty":1}`)},
	}
	require.NoError(t, s.SaveReplica(context.Background(), record.EntityRegister, rep))

	r := New(s, WithTokenGenerator(fixedTokens(1)))
	res, err := r.Reconcile(context.Background(), record.EntityRegister, "emp-1", "2024-05", record.SideProducer)
	require.NoError(t, err)

	assert.Equal(t, []string{"7", "10", "3"}, keysOf(res.Merged))
}

// TestReconcileAll runs every entity under one lock hold and one run token.
func TestReconcileAll(t *testing.T) {
	s := store.NewMemoryStore()
	seedReplica(t, s, record.EntityWorkTime, record.SideProducer,
		wtRec("2024-05-02", record.WorkTimeInput, `{"hours":8}`))

	regRep := record.NewReplica("emp-1", "2024-05", record.SideProducer)
	regRep.Records = []record.Record{{Key: "1", OwnerID: "emp-1", Tag: record.RegisterInput, Payload: json.RawMessage(`{"date":"2024-05-02"}`)}}
	require.NoError(t, s.SaveReplica(context.Background(), record.EntityRegister, regRep))

	r := New(s, WithTokenGenerator(fixedTokens(1)))
	results, err := r.ReconcileAll(context.Background(), "emp-1", "2024-05", record.SideProducer)
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.Len(t, results[record.EntityWorkTime].Merged, 1)
	assert.Len(t, results[record.EntityRegister].Merged, 1)
	assert.Empty(t, results[record.EntityCheckRegister].Merged)
	for entity, res := range results {
		assert.Equal(t, "run-a", res.RunToken, "entity %s must share the run", entity)
	}
}

// TestReconcile_EvictsRunFromHook verifies a dedup-keeping hook is told to
// drop a run's delivery state once the run finished, for single-entity and
// all-entity merges alike.
func TestReconcile_EvictsRunFromHook(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	seedReplica(t, s, record.EntityWorkTime, record.SideProducer,
		wtRec("2024-05-07", record.WorkTimeUserDone, `{"type":"CO"}`))
	seedReplica(t, s, record.EntityWorkTime, record.SideReviewer,
		wtRec("2024-05-07", record.WorkTimeTLDeleted, ""))

	hook := &forgettingHook{}
	r := New(s, WithTokenGenerator(fixedTokens(2)), WithCounterHook(hook))

	_, err := r.Reconcile(ctx, record.EntityWorkTime, "emp-1", "2024-05", record.SideProducer)
	require.NoError(t, err)
	require.Len(t, hook.all(), 1)
	assert.Equal(t, []string{"run-a"}, hook.runsForgotten())

	// ReconcileAll evicts its shared run once, after every entity merged.
	_, err = r.ReconcileAll(ctx, "emp-1", "2024-05", record.SideProducer)
	require.NoError(t, err)
	assert.Equal(t, []string{"run-a", "run-b"}, hook.runsForgotten())
}

// TestReconcile_UnknownEntity rejects entities without a rule table.
func TestReconcile_UnknownEntity(t *testing.T) {
	r := New(store.NewMemoryStore())
	_, err := r.Reconcile(context.Background(), record.EntityType("bogus"), "emp-1", "2024-05", record.SideProducer)
	require.Error(t, err)

	_, err = r.Reconcile(context.Background(), record.EntityWorkTime, "emp-1", "2024-05", record.Side("auditor"))
	require.Error(t, err)
}

// TestReconcile_ConcurrentOwners verifies merges on distinct owners and
// display loads on the same owner run concurrently without data races.
func TestReconcile_ConcurrentOwners(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	owners := []string{"emp-1", "emp-2", "emp-3", "emp-4"}
	for _, owner := range owners {
		rep := record.NewReplica(owner, "2024-05", record.SideProducer)
		rep.Records = []record.Record{{Key: "2024-05-02", OwnerID: owner, Tag: record.WorkTimeInput, Payload: json.RawMessage(`{"hours":8}`)}}
		require.NoError(t, s.SaveReplica(ctx, record.EntityWorkTime, rep))
	}

	r := New(s)
	var wg sync.WaitGroup
	for _, owner := range owners {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := r.Reconcile(ctx, record.EntityWorkTime, owner, "2024-05", record.SideProducer)
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := r.LoadForDisplay(ctx, record.EntityWorkTime, owner, "2024-05", record.SideProducer)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}
