package record

import "strconv"

// Production-order register vocabulary. Records are keyed by a decimal
// sequence id; orders are entered whole, so there is no in-progress state.
const (
	RegisterInput      Tag = "INPUT"
	RegisterUserEdited Tag = "USER_EDITED"
	RegisterUserDone   Tag = "USER_DONE"
	RegisterTLEdited   Tag = "TL_EDITED"
	RegisterTLDeleted  Tag = "TL_DELETED"
	RegisterTLChecked  Tag = "TL_CHECKED"
)

// RegisterVocabulary maps the register tags onto the canonical roles.
// RoleInProgress is deliberately absent.
var RegisterVocabulary = NewVocabulary(EntityRegister, map[Tag]Role{
	RegisterInput:      RoleInput,
	RegisterUserEdited: RoleProducerEdited,
	RegisterUserDone:   RoleAckDone,
	RegisterTLEdited:   RoleReviewerEdited,
	RegisterTLDeleted:  RoleTombstone,
	RegisterTLChecked:  RoleReviewDone,
}, RegisterUserDone)

// registerLess orders register-style entities: payload date descending,
// then sequence key descending. Newest entries first is the stored order
// the display layer diffs against.
func registerLess(a, b Record) bool {
	da := a.Field("date").String()
	db := b.Field("date").String()
	if da != db {
		return da > db
	}
	return seqKey(a.Key) > seqKey(b.Key)
}

// seqKey parses a decimal sequence key. Non-numeric keys sort first; they
// never occur in well-formed replicas but must not panic the sort.
func seqKey(key string) int64 {
	n, err := strconv.ParseInt(key, 10, 64)
	if err != nil {
		return -1
	}
	return n
}

func init() {
	registerDescriptor(&Descriptor{
		Entity:    EntityRegister,
		Vocab:     RegisterVocabulary,
		Less:      registerLess,
		QuotaKind: func(Record) string { return "" },
	})
}
