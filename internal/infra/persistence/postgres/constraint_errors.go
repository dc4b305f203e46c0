package postgres

import (
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// PostgreSQL error class 23: integrity constraint violation.
const (
	pgUniqueViolation = "23505"
)

// isUniqueConstraintViolation reports whether err is a duplicate-key failure,
// either as surfaced by GORM's translator or as a raw pgconn error.
func isUniqueConstraintViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}

	return strings.Contains(strings.ToLower(err.Error()), "duplicate key")
}
