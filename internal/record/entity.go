package record

// EntityType names one of the three reconciled entity kinds.
type EntityType string

const (
	// EntityWorkTime is the daily work-time entry set (one record per date).
	EntityWorkTime EntityType = "worktime"

	// EntityRegister is the production-order register (sequence-id keyed).
	EntityRegister EntityType = "register"

	// EntityCheckRegister is the quality-check register (sequence-id keyed).
	EntityCheckRegister EntityType = "checkregister"
)

// Valid reports whether e is a known entity type.
func (e EntityType) Valid() bool {
	_, ok := descriptors[e]
	return ok
}

// Descriptor bundles everything entity-specific the generic engine needs:
// the tag vocabulary, the natural ordering of merged sets and the quota
// predicate. The reconciler and merge table are written against this
// interface once and instantiated three times.
type Descriptor struct {
	Entity EntityType
	Vocab  *Vocabulary

	// Less orders merged sets (date ascending for work time, date
	// descending then key descending for register-style entities).
	// The ordering is part of the contract: stored replicas must diff
	// stably across merges.
	Less func(a, b Record) bool

	// QuotaKind returns the finite quota a record's payload consumes
	// ("paid_leave_day"), or "" when it consumes none. Reads the opaque
	// payload only; missing fields consume nothing.
	QuotaKind func(r Record) string
}

var descriptors = map[EntityType]*Descriptor{}

func registerDescriptor(d *Descriptor) {
	descriptors[d.Entity] = d
}

// DescriptorFor returns the descriptor for an entity type.
func DescriptorFor(e EntityType) (*Descriptor, bool) {
	d, ok := descriptors[e]
	return d, ok
}

// Entities returns the known entity types in a fixed order.
func Entities() []EntityType {
	return []EntityType{EntityWorkTime, EntityRegister, EntityCheckRegister}
}
