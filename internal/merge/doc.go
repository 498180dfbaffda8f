// Package merge implements the per-record merge rule table.
//
// The table is a pure function over (producer record, reviewer record)
// presence and sync roles: no I/O, deterministic, and safe to call from any
// goroutine. It decides, for one key, which side's record survives the
// reconciliation, what tag it converges to, and which quota counters the
// decision moved.
//
// Precedence is a fixed, ordered rule list (first match wins); see
// Table.Resolve. The table never invents tags outside the entity's
// vocabulary and fails fast with UnknownTagError on tags it does not know.
package merge
