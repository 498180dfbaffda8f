package record

import (
	"fmt"
	"sort"
)

// Role is the canonical semantic role of a sync tag. Every entity vocabulary
// maps its domain-flavored tags onto these seven roles; the merge table
// decides precedence on roles only and never sees entity tag spellings.
type Role string

const (
	// RoleInput marks a freshly created record, not yet reviewed.
	RoleInput Role = "INPUT"

	// RoleInProgress marks a record the producer is still building
	// (e.g. an open work session). Its content is intentionally incomplete.
	RoleInProgress Role = "IN_PROGRESS"

	// RoleProducerEdited marks a record the producer changed after it had
	// previously been reviewed.
	RoleProducerEdited Role = "EDITED_BY_PRODUCER"

	// RoleAckDone marks a record whose producer has accepted the reviewer's
	// version; converged, no open edit.
	RoleAckDone Role = "ACK_DONE"

	// RoleReviewerEdited marks a record the reviewer explicitly changed;
	// authoritative until acknowledged.
	RoleReviewerEdited Role = "EDITED_BY_REVIEWER"

	// RoleTombstone marks a record the reviewer wants deleted.
	RoleTombstone Role = "TOMBSTONE"

	// RoleReviewDone marks a record the reviewer processed without changing
	// content (terminal, e.g. a quality sign-off).
	RoleReviewDone Role = "REVIEW_DONE"
)

// Tag is an entity-specific sync status value, e.g. "USER_EDITED" or
// "TL_DELETED". Tags are meaningful only relative to a Vocabulary.
type Tag string

// Vocabulary is the closed tag set of one entity type. It maps each tag to
// its canonical role and names the settled tag the merge table converges to.
//
// A vocabulary may omit a role entirely (the register has no in-progress
// state); the merge rules guarded by that role then simply never match.
type Vocabulary struct {
	entity  EntityType
	roles   map[Tag]Role
	byRole  map[Role]Tag
	settled Tag
}

// NewVocabulary builds a vocabulary from a tag-to-role table.
// Panics on construction errors: vocabularies are package-level constants
// and a bad table is a programmer error, not a runtime condition.
func NewVocabulary(entity EntityType, roles map[Tag]Role, settled Tag) *Vocabulary {
	byRole := make(map[Role]Tag, len(roles))
	for tag, role := range roles {
		if _, dup := byRole[role]; dup {
			panic(fmt.Sprintf("vocabulary %s: duplicate tag for role %s", entity, role))
		}
		byRole[role] = tag
	}
	if _, ok := roles[settled]; !ok {
		panic(fmt.Sprintf("vocabulary %s: settled tag %s not in tag set", entity, settled))
	}
	return &Vocabulary{
		entity:  entity,
		roles:   roles,
		byRole:  byRole,
		settled: settled,
	}
}

// Entity returns the entity type this vocabulary belongs to.
func (v *Vocabulary) Entity() EntityType {
	return v.entity
}

// Role resolves a tag to its canonical role.
// The second return is false for tags outside the vocabulary.
func (v *Vocabulary) Role(t Tag) (Role, bool) {
	r, ok := v.roles[t]
	return r, ok
}

// TagFor returns the entity tag carrying the given canonical role.
// The second return is false when the vocabulary omits that role.
func (v *Vocabulary) TagFor(r Role) (Tag, bool) {
	t, ok := v.byRole[r]
	return t, ok
}

// Valid reports whether t belongs to this vocabulary.
func (v *Vocabulary) Valid(t Tag) bool {
	_, ok := v.roles[t]
	return ok
}

// Settled returns the tag the merge table normalizes converged records to.
func (v *Vocabulary) Settled() Tag {
	return v.settled
}

// Tags returns all tags of the vocabulary in sorted order.
// Used by the CLI vocab listing and by tests.
func (v *Vocabulary) Tags() []Tag {
	out := make([]Tag, 0, len(v.roles))
	for t := range v.roles {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
