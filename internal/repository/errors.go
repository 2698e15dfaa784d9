package repository

import (
	"errors"

	"github.com/lib/pq"
)

// ErrDuplicate signals that an insert violated a uniqueness constraint. The
// database constraint is the authoritative guard for pair-unique rows such as
// enrollments and diplomas; services translate this into a conflict result.
var ErrDuplicate = errors.New("duplicate row")

const uniqueViolationCode = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolationCode
	}
	return false
}
