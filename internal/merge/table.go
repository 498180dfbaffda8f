package merge

import (
	"fmt"

	"github.com/tberndt/worksync/internal/record"
)

// Decision says what happens to a key after merging.
type Decision string

const (
	// DecisionKeep persists the outcome record on both sides.
	DecisionKeep Decision = "keep"

	// DecisionDrop removes the key from the merged set entirely.
	DecisionDrop Decision = "drop"
)

// Rule identifies which precedence rule produced an outcome. Carried on the
// outcome for logging and for the reconciler's repeated-conflict tracking.
type Rule int

const (
	RuleInProgress      Rule = 1 // producer mid-edit, reviewer ignored
	RuleResurrect       Rule = 2 // producer edit overrides reviewer tombstone
	RuleConverged       Rule = 3 // producer edit matches reviewer content
	RuleProducerWins    Rule = 4 // unresolved producer edit beats reviewer snapshot
	RuleReviewerWins    Rule = 5 // reviewer edit authoritative, acknowledged
	RuleTombstone       Rule = 6 // reviewer deletion confirmed, key dropped
	RuleFreshInput      Rule = 7 // producer-only new data passes through
	RuleReviewerInserts Rule = 8 // reviewer-introduced record pushed to producer
	RuleFallback        Rule = 9 // remaining combinations, tag settled
)

func (r Rule) String() string {
	switch r {
	case RuleInProgress:
		return "in_progress"
	case RuleResurrect:
		return "resurrect"
	case RuleConverged:
		return "converged"
	case RuleProducerWins:
		return "producer_wins"
	case RuleReviewerWins:
		return "reviewer_wins"
	case RuleTombstone:
		return "tombstone"
	case RuleFreshInput:
		return "fresh_input"
	case RuleReviewerInserts:
		return "reviewer_inserts"
	case RuleFallback:
		return "fallback"
	default:
		return fmt.Sprintf("rule(%d)", int(r))
	}
}

// Outcome is the merge result for one key.
type Outcome struct {
	Decision Decision
	Record   record.Record // the surviving record; zero value on Drop
	Rule     Rule
}

// CounterDelta reports that an outcome moved a record into or out of a
// quota-consuming state. Amount is +1 when the outcome restores a quota day
// (record dropped or no longer consuming) and -1 when it consumes one.
//
// The engine only computes deltas; applying them to a balance tracker is the
// caller's job, and delivery is at-least-once across retried merges.
type CounterDelta struct {
	Kind   string `json:"kind"`
	Amount int    `json:"amount"`
	Key    string `json:"key"`
}

// Table is the merge rule table for one entity type.
type Table struct {
	desc *record.Descriptor
}

// NewTable creates the rule table for an entity descriptor.
func NewTable(desc *record.Descriptor) *Table {
	return &Table{desc: desc}
}

// Entity returns the entity type the table resolves.
func (t *Table) Entity() record.EntityType {
	return t.desc.Entity
}

// Resolve merges one key. producer and reviewer are nil when the respective
// replica has no record for the key; at least one must be present.
//
// Decision order, first match wins:
//
//  1. Producer in progress: keep producer unchanged, reviewer ignored. An
//     open, unfinished record is never overwritten by a stale snapshot.
//  2. Producer edit vs reviewer tombstone: the new producer content
//     resurrects the key, tag stays on the producer-edited role. Fresh
//     producer INPUT resurrects only when its payload consumes a quota
//     (deleting it would silently burn the quota day).
//  3. Producer edit, reviewer content-equal: both sides agree, tag
//     converges to the entity's settled tag.
//  4. Producer edit, reviewer differs or absent: producer wins unchanged.
//     The reviewer must re-edit explicitly to override.
//  5. Reviewer edit (producer has no open edit): reviewer payload wins,
//     tag settles to the entity's acknowledgement tag.
//  6. Reviewer tombstone, no overriding producer edit: drop the key; a
//     quota day the record consumed is restored via CounterDelta.
//  7. Producer-only fresh input: passes through unchanged for the reviewer
//     to see next cycle.
//  8. Reviewer-only reviewed/edited record: pushed into the producer side,
//     tag settled.
//  9. Fallback: keep the producer side if present, else the reviewer, tag
//     normalized to the entity's settled tag.
//
// Tags outside the entity vocabulary yield an UnknownTagError; the caller
// excludes that single key and keeps merging the rest of the period.
func (t *Table) Resolve(key string, producer, reviewer *record.Record) (Outcome, []CounterDelta, error) {
	if producer == nil && reviewer == nil {
		return Outcome{}, nil, fmt.Errorf("resolve %s/%s: both sides absent", t.desc.Entity, key)
	}

	pRole, rRole, err := t.roles(key, producer, reviewer)
	if err != nil {
		return Outcome{}, nil, err
	}

	out := t.decide(producer, reviewer, pRole, rRole)
	deltas := t.deltas(key, producer, reviewer, out)
	return out, deltas, nil
}

// roles validates both tags against the vocabulary and maps them to
// canonical roles. Absent sides map to the empty role.
func (t *Table) roles(key string, producer, reviewer *record.Record) (pRole, rRole record.Role, err error) {
	vocab := t.desc.Vocab
	if producer != nil {
		role, ok := vocab.Role(producer.Tag)
		if !ok {
			return "", "", &UnknownTagError{Entity: t.desc.Entity, Key: key, Side: record.SideProducer, Tag: producer.Tag}
		}
		pRole = role
	}
	if reviewer != nil {
		role, ok := vocab.Role(reviewer.Tag)
		if !ok {
			return "", "", &UnknownTagError{Entity: t.desc.Entity, Key: key, Side: record.SideReviewer, Tag: reviewer.Tag}
		}
		rRole = role
	}
	return pRole, rRole, nil
}

func (t *Table) decide(producer, reviewer *record.Record, pRole, rRole record.Role) Outcome {
	vocab := t.desc.Vocab

	// Rule 1: an open producer session is carried through untouched.
	if pRole == record.RoleInProgress {
		return Outcome{Decision: DecisionKeep, Record: *producer, Rule: RuleInProgress}
	}

	producerEdited := pRole == record.RoleProducerEdited

	// Rule 2: producer content supplied after a reviewer deletion
	// resurrects the key. A plain INPUT record resurrects only when its
	// payload consumes a quota; see the tombstone handling in rule 6 for
	// the non-consuming case.
	if rRole == record.RoleTombstone {
		resurrect := producerEdited ||
			(pRole == record.RoleInput && t.desc.QuotaKind(*producer) != "")
		if resurrect {
			out := *producer
			if edited, ok := vocab.TagFor(record.RoleProducerEdited); ok {
				out.Tag = edited
			}
			return Outcome{Decision: DecisionKeep, Record: out, Rule: RuleResurrect}
		}
	}

	if producerEdited {
		// Rule 3: reviewer already holds the same content; converge
		// straight to the settled tag. Settling to anything else would
		// send the key through the rule 9 fallback on the next run and
		// rewrite both replicas for a merge that changed nothing.
		if reviewer != nil && rRole != record.RoleTombstone && record.ContentEqual(*producer, *reviewer) {
			out := *producer
			out.Tag = vocab.Settled()
			return Outcome{Decision: DecisionKeep, Record: out, Rule: RuleConverged}
		}
		// Rule 4: unresolved producer edit survives unchanged, whatever
		// the reviewer snapshot says.
		return Outcome{Decision: DecisionKeep, Record: *producer, Rule: RuleProducerWins}
	}

	// Rule 5: reviewer edits are authoritative once the producer has no
	// open edit of its own.
	if rRole == record.RoleReviewerEdited {
		out := *reviewer
		out.Tag = vocab.Settled()
		return Outcome{Decision: DecisionKeep, Record: out, Rule: RuleReviewerWins}
	}

	// Rule 6: the deletion stands; the key disappears from the merged set.
	if rRole == record.RoleTombstone {
		return Outcome{Decision: DecisionDrop, Rule: RuleTombstone}
	}

	// Rule 7: new producer data the reviewer has not seen yet.
	if producer != nil && pRole == record.RoleInput && reviewer == nil {
		return Outcome{Decision: DecisionKeep, Record: *producer, Rule: RuleFreshInput}
	}

	// Rule 8: the reviewer introduced a record the producer did not have
	// (e.g. a correction added centrally).
	if producer == nil && rRole == record.RoleReviewDone {
		out := *reviewer
		out.Tag = vocab.Settled()
		return Outcome{Decision: DecisionKeep, Record: out, Rule: RuleReviewerInserts}
	}

	// Rule 9: everything else settles on whichever side is present,
	// producer preferred.
	if producer != nil {
		out := *producer
		out.Tag = vocab.Settled()
		return Outcome{Decision: DecisionKeep, Record: out, Rule: RuleFallback}
	}
	out := *reviewer
	out.Tag = vocab.Settled()
	return Outcome{Decision: DecisionKeep, Record: out, Rule: RuleFallback}
}

// deltas compares quota consumption before and after the outcome.
//
// "Before" is the producer's stored record when present (the producer
// replica is the side quota balances are booked against), falling back to
// the reviewer's copy for reviewer-only keys. "After" is the outcome record,
// or nothing on Drop.
func (t *Table) deltas(key string, producer, reviewer *record.Record, out Outcome) []CounterDelta {
	var before string
	if producer != nil {
		before = t.desc.QuotaKind(*producer)
	} else if reviewer != nil {
		before = t.desc.QuotaKind(*reviewer)
	}

	var after string
	if out.Decision == DecisionKeep {
		after = t.desc.QuotaKind(out.Record)
	}

	if before == after {
		return nil
	}
	var deltas []CounterDelta
	if before != "" {
		deltas = append(deltas, CounterDelta{Kind: before, Amount: +1, Key: key})
	}
	if after != "" {
		deltas = append(deltas, CounterDelta{Kind: after, Amount: -1, Key: key})
	}
	return deltas
}
