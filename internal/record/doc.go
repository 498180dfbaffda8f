// Package record provides the value types shared by the reconciliation
// engine: records, replicas, sync tags and the per-entity descriptors.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import record; record imports nothing internal. This
// keeps it the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Record is an immutable value type; edits produce new values
//   - Payloads are opaque JSON; the engine reads them only through
//     canonical digests and gjson path lookups
//   - All JSON tags use snake_case
package record
