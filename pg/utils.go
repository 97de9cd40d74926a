package pg

import (
	"errors"
	"fmt"
	"strings"

	"github.com/code19m/errx"
	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes the repositories react to.
const (
	sqlstateUniqueViolation      = "23505"
	sqlstateSerializationFailure = "40001"
	sqlstateDeadlockDetected     = "40P01"
)

func asPgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	ok := errors.As(err, &pgErr)
	return pgErr, ok
}

// IsConflict reports a unique constraint violation.
func IsConflict(err error) bool {
	pgErr, ok := asPgError(err)
	return ok && pgErr.Code == sqlstateUniqueViolation
}

// IsSerializationFailure reports whether the transaction lost a concurrency race
// and may succeed when retried.
func IsSerializationFailure(err error) bool {
	pgErr, ok := asPgError(err)
	return ok && (pgErr.Code == sqlstateSerializationFailure || pgErr.Code == sqlstateDeadlockDetected)
}

// ConstraintName returns the violated constraint, or "".
func ConstraintName(err error) string {
	if pgErr, ok := asPgError(err); ok {
		return pgErr.ConstraintName
	}
	return ""
}

// GetPgErrorDetails describes a failed query for errx details.
// Empty server fields are left out.
func GetPgErrorDetails(err error, query fmt.Stringer) errx.D {
	details := errx.D{}
	if q := queryString(query); q != "" {
		details["query"] = strings.ReplaceAll(q, `"`, ``)
	}

	pgErr, ok := asPgError(err)
	if !ok {
		return details
	}

	for key, value := range map[string]string{
		"pg.code":       pgErr.Code,
		"pg.severity":   pgErr.Severity,
		"pg.message":    pgErr.Message,
		"pg.detail":     pgErr.Detail,
		"pg.hint":       pgErr.Hint,
		"pg.table":      pgErr.TableName,
		"pg.column":     pgErr.ColumnName,
		"pg.constraint": pgErr.ConstraintName,
	} {
		if value != "" {
			details[key] = value
		}
	}

	return details
}

// queryString renders query, or "" when it is nil or String panics
// (bun insert queries can panic on partially built models).
func queryString(query fmt.Stringer) (s string) {
	defer func() {
		if recover() != nil {
			s = ""
		}
	}()

	if query == nil {
		return ""
	}
	return query.String()
}
