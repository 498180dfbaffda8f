package record

import (
	"encoding/json"

	"github.com/cespare/xxhash/v2"
	"github.com/tidwall/gjson"
)

// Record is one entity instance: a day of work time, one production-order
// line, one check-register line.
//
// Record is an immutable value type. Mutating helpers (WithTag, WithPayload)
// return a new value and leave the receiver untouched, so records held by two
// replicas can never alias each other.
type Record struct {
	// Key is the record's identity within one period: an ISO date for work
	// time, a decimal sequence id for register-style entities.
	// Unique within one replica.
	Key string `json:"key"`

	// OwnerID is the producer's identity.
	OwnerID string `json:"owner_id"`

	// Tag is the record's sync status in the entity's vocabulary.
	Tag Tag `json:"tag"`

	// Payload holds the domain fields (times, quantities, descriptions).
	// Opaque to the merge engine.
	Payload json.RawMessage `json:"payload,omitempty"`
}

// WithTag returns a copy of the record carrying the given tag.
func (r Record) WithTag(t Tag) Record {
	r.Tag = t
	return r
}

// WithPayload returns a copy of the record carrying the given payload.
// The payload bytes are copied so the new record cannot alias the argument.
func (r Record) WithPayload(payload json.RawMessage) Record {
	if payload == nil {
		r.Payload = nil
		return r
	}
	cp := make(json.RawMessage, len(payload))
	copy(cp, payload)
	r.Payload = cp
	return r
}

// Field reads a payload field by gjson path.
// Returns a non-existent result for nil payloads or missing fields; callers
// treat missing fields as absent, never as an error.
func (r Record) Field(path string) gjson.Result {
	if len(r.Payload) == 0 {
		return gjson.Result{}
	}
	return gjson.GetBytes(r.Payload, path)
}

// Digest returns an xxhash digest of the record's canonicalized payload.
// Two records with semantically equal payloads (same fields, any key order)
// produce the same digest. A nil or empty payload digests to 0.
func (r Record) Digest() uint64 {
	canonical, err := CanonicalPayload(r.Payload)
	if err != nil {
		// Undecodable payloads hash their raw bytes; the digest is used
		// only for equality, so a stable wrong answer beats a panic.
		return xxhash.Sum64(r.Payload)
	}
	if canonical == nil {
		return 0
	}
	return xxhash.Sum64(canonical)
}

// ContentEqual reports whether two records carry semantically equal payloads.
// Tags and keys are not compared; the merge table compares those itself.
func ContentEqual(a, b Record) bool {
	if len(a.Payload) == 0 && len(b.Payload) == 0 {
		return true
	}
	if len(a.Payload) == 0 || len(b.Payload) == 0 {
		return false
	}
	return a.Digest() == b.Digest()
}
