package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// UniqueViolationCode indicates a unique constraint violation.
const UniqueViolationCode = "23505"

func isUniqueViolation(err error) bool {
	var pe *pgconn.PgError
	return errors.As(err, &pe) && pe.Code == UniqueViolationCode
}
