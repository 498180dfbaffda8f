package reconcile

import (
	"log/slog"
	"sync"

	"github.com/tberndt/worksync/internal/merge"
	"github.com/tberndt/worksync/internal/record"
)

// ambiguityKey identifies one record across successive merge runs.
type ambiguityKey struct {
	entity  record.EntityType
	ownerID string
	period  string
	key     string
}

// ambiguityTracker counts consecutive runs in which the producer-wins rule
// resolved the same key. A key that converges, drops or stops conflicting
// is evicted, so the table stays bounded by the number of currently
// contested records, not by merge history.
type ambiguityTracker struct {
	mu   sync.Mutex
	hits map[ambiguityKey]int
}

func newAmbiguityTracker() *ambiguityTracker {
	return &ambiguityTracker{hits: make(map[ambiguityKey]int)}
}

// observe records one run's outcome for a key and returns the consecutive
// conflict count (0 when the key is not conflicted).
func (t *ambiguityTracker) observe(k ambiguityKey, conflicted bool) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !conflicted {
		delete(t.hits, k)
		return 0
	}
	t.hits[k]++
	return t.hits[k]
}

// noteRule collects the producer-wins keys of a run on the result.
func (r *Reconciler) noteRule(res *Result, key string, rule merge.Rule) {
	if rule == merge.RuleProducerWins {
		res.conflictKeys = append(res.conflictKeys, key)
	}
}

// trackAmbiguity feeds a finished run into the tracker. A key whose
// producer edit has survived a conflicting reviewer snapshot across enough
// consecutive merges indicates a standing human disagreement: neither side
// is converging, the reviewer needs to re-edit or the producer to
// acknowledge. Surfaced as a warning, never a failure.
func (r *Reconciler) trackAmbiguity(res *Result) {
	conflicted := make(map[string]bool, len(res.conflictKeys))
	for _, key := range res.conflictKeys {
		conflicted[key] = true
	}

	// Every merged key participates so resolved keys reset their count.
	for _, rec := range res.Merged {
		k := ambiguityKey{entity: res.Entity, ownerID: res.OwnerID, period: res.Period, key: rec.Key}
		count := r.ambiguity.observe(k, conflicted[rec.Key])
		if count >= r.ambiguityThreshold {
			slog.Warn("standing merge conflict",
				"run", res.RunToken,
				"entity", res.Entity,
				"owner", res.OwnerID,
				"period", res.Period,
				"key", rec.Key,
				"consecutive_runs", count,
			)
		}
	}
}
