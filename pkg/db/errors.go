package db

import (
	"strings"

	pkgerrors "github.com/anucarts/marketplace-backend/pkg/errors"
)

const pgUniqueViolation = "23505"

// sqlite has no SQLSTATE, so the test driver is matched on its message.
var uniqueViolationText = []string{"UNIQUE constraint failed", "duplicate key value"}

// IsUniqueViolation reports whether err is a unique-key violation, optionally
// restricted to one constraint. For sqlite errors the constraint is matched as
// a substring of the message (e.g. "payment_ref").
func IsUniqueViolation(err error, constraint string) bool {
	if err == nil {
		return false
	}
	if pg, ok := pkgerrors.PostgresInfo(err); ok {
		return pg.Code == pgUniqueViolation && (constraint == "" || pg.Constraint == constraint)
	}
	msg := err.Error()
	for _, marker := range uniqueViolationText {
		if strings.Contains(msg, marker) {
			return constraint == "" || strings.Contains(msg, constraint)
		}
	}
	return false
}
