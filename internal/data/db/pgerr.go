package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgAdminShutdown        = "57P01"
)

// PgCode returns the SQLSTATE of a Postgres error, or "".
func PgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func IsUniqueViolation(err error) bool {
	return PgCode(err) == pgUniqueViolation
}

// IsRetryable reports errors a fresh transaction can be expected to clear:
// serialization conflicts, deadlocks, dropped connections and concurrent
// writers racing on a unique key.
func IsRetryable(err error) bool {
	code := PgCode(err)
	switch {
	case code == "":
		return false
	case code == pgSerializationFailure, code == pgDeadlockDetected, code == pgAdminShutdown, code == pgUniqueViolation:
		return true
	case strings.HasPrefix(code, "08"):
		return true
	default:
		return false
	}
}
