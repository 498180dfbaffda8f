package record

// Work-time vocabulary. One record per calendar day; the key is the ISO
// date. OPEN_SESSION is the in-progress state of a running work session
// (clocked in, not yet clocked out).
const (
	WorkTimeInput       Tag = "INPUT"
	WorkTimeOpenSession Tag = "OPEN_SESSION"
	WorkTimeUserEdited  Tag = "USER_EDITED"
	WorkTimeUserDone    Tag = "USER_DONE"
	WorkTimeTLEdited    Tag = "TL_EDITED"
	WorkTimeTLDeleted   Tag = "TL_DELETED"
	WorkTimeTLChecked   Tag = "TL_CHECKED"
)

// WorkTimeVocabulary maps the work-time tags onto the canonical roles.
var WorkTimeVocabulary = NewVocabulary(EntityWorkTime, map[Tag]Role{
	WorkTimeInput:       RoleInput,
	WorkTimeOpenSession: RoleInProgress,
	WorkTimeUserEdited:  RoleProducerEdited,
	WorkTimeUserDone:    RoleAckDone,
	WorkTimeTLEdited:    RoleReviewerEdited,
	WorkTimeTLDeleted:   RoleTombstone,
	WorkTimeTLChecked:   RoleReviewDone,
}, WorkTimeUserDone)

// Absence types that consume a finite yearly quota.
const (
	absenceTypePaidLeave = "CO" // congé / paid leave day
	absenceTypeSickConv  = "CM" // sick leave converted day
)

// Quota kinds emitted in CounterDeltas.
const (
	QuotaPaidLeaveDay = "paid_leave_day"
	QuotaSickLeaveDay = "sick_leave_day"
)

func init() {
	registerDescriptor(&Descriptor{
		Entity: EntityWorkTime,
		Vocab:  WorkTimeVocabulary,
		// ISO date keys sort correctly as strings.
		Less: func(a, b Record) bool { return a.Key < b.Key },
		QuotaKind: func(r Record) string {
			switch r.Field("type").String() {
			case absenceTypePaidLeave:
				return QuotaPaidLeaveDay
			case absenceTypeSickConv:
				return QuotaSickLeaveDay
			default:
				return ""
			}
		},
	})
}
