package record

// Quality-check register vocabulary. Same key and ordering shape as the
// production-order register; the terminal tag is the QA sign-off, which also
// serves as the settled tag the merge table converges to.
const (
	CheckInput      Tag = "INPUT"
	CheckUserEdited Tag = "USER_EDITED"
	CheckUserDone   Tag = "USER_DONE"
	CheckQAEdited   Tag = "QA_EDITED"
	CheckQADeleted  Tag = "QA_DELETED"
	CheckQASigned   Tag = "QA_SIGNED"
)

// CheckRegisterVocabulary maps the check-register tags onto the canonical
// roles. No in-progress state; QA_SIGNED doubles as the settled tag.
var CheckRegisterVocabulary = NewVocabulary(EntityCheckRegister, map[Tag]Role{
	CheckInput:      RoleInput,
	CheckUserEdited: RoleProducerEdited,
	CheckUserDone:   RoleAckDone,
	CheckQAEdited:   RoleReviewerEdited,
	CheckQADeleted:  RoleTombstone,
	CheckQASigned:   RoleReviewDone,
}, CheckQASigned)

func init() {
	registerDescriptor(&Descriptor{
		Entity:    EntityCheckRegister,
		Vocab:     CheckRegisterVocabulary,
		Less:      registerLess,
		QuotaKind: func(Record) string { return "" },
	})
}
