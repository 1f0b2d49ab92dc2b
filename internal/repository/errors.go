package repository

import (
	"errors"

	"github.com/lib/pq"
)

// uniqueViolation is the PostgreSQL error code raised by the partial unique
// indexes backing the duplicate guard.
const uniqueViolation = "23505"

// IsUniqueViolation reports whether err is a storage-level uniqueness
// conflict. Services translate it into the engine's typed errors.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolation
	}
	return false
}
