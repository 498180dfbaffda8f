package merge

import (
	"errors"
	"fmt"

	"github.com/tberndt/worksync/internal/record"
)

// UnknownTagError reports a record carrying a tag outside its entity's
// vocabulary. This is a programmer error (a writer bypassed the vocabulary),
// not a runtime data condition: the table must not guess a precedence for a
// tag it cannot rank, so the affected key is excluded from the merge and
// reported rather than silently resolved.
type UnknownTagError struct {
	Entity record.EntityType
	Key    string
	Side   record.Side
	Tag    record.Tag
}

// Error implements the error interface.
func (e *UnknownTagError) Error() string {
	return fmt.Sprintf("unknown tag %q on %s record %s/%s", e.Tag, e.Side, e.Entity, e.Key)
}

// IsUnknownTag returns true if the error is an UnknownTagError.
// Uses errors.As to handle wrapped errors.
func IsUnknownTag(err error) bool {
	var ute *UnknownTagError
	return errors.As(err, &ute)
}
