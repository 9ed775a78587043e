package db

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

const uniqueViolation = "23505"

// Translate maps driver errors onto shared error types. Unique violations
// become *shared.DuplicateKeyError carrying the constraint name.
func Translate(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return &shared.DuplicateKeyError{Constraint: pgErr.ConstraintName}
	}
	return err
}

// NoRows reports whether err signals an empty result.
func NoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// NotFound converts pgx.ErrNoRows into a shared.NotFoundError.
func NotFound(err error, entity string, id any) error {
	if NoRows(err) {
		return shared.NotFound(entity, id)
	}
	return err
}
