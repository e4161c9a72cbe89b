package repository

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes mapped by MapError.
const (
	codeUniqueViolation = "23505"
	codeCheckViolation  = "23514"
)

// Domain errors a system hands to MapError.
type Errors struct {
	NotFound  error
	Duplicate error
	Invalid   error
}

// MapError translates no-rows and constraint violations to the domain errors
// in e. Nil entries leave the original error in place.
func MapError(err error, e Errors) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) && e.NotFound != nil {
		return e.NotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == codeUniqueViolation && e.Duplicate != nil:
			return e.Duplicate
		case pgErr.Code == codeCheckViolation && e.Invalid != nil:
			return errors.Join(e.Invalid, err)
		}
	}
	return err
}
