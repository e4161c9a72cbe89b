package repository_test

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JaimeStill/postmottak/pkg/repository"
)

var (
	errMissing   = errors.New("missing")
	errDuplicate = errors.New("duplicate")
	errInvalid   = errors.New("invalid")
)

func TestMapError(t *testing.T) {
	all := repository.Errors{NotFound: errMissing, Duplicate: errDuplicate, Invalid: errInvalid}
	other := errors.New("boom")
	fk := &pgconn.PgError{Code: "23503"}

	tests := []struct {
		name   string
		err    error
		errs   repository.Errors
		want   error
		wantIs []error
	}{
		{name: "nil", err: nil, errs: all, want: nil},
		{name: "no rows", err: sql.ErrNoRows, errs: all, want: errMissing},
		{name: "no rows unmapped", err: sql.ErrNoRows, errs: repository.Errors{}, want: sql.ErrNoRows},
		{name: "unique violation", err: &pgconn.PgError{Code: "23505"}, errs: all, want: errDuplicate},
		{name: "check violation keeps cause", err: &pgconn.PgError{Code: "23514"}, errs: all, wantIs: []error{errInvalid}},
		{name: "other pg code", err: fk, errs: all, want: fk},
		{name: "passthrough", err: other, errs: all, want: other},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := repository.MapError(tt.err, tt.errs)
			if tt.wantIs != nil {
				for _, target := range tt.wantIs {
					if !errors.Is(got, target) {
						t.Errorf("MapError() = %v, want wrapping %v", got, target)
					}
				}
				var pgErr *pgconn.PgError
				if !errors.As(got, &pgErr) {
					t.Error("original PgError lost")
				}
				return
			}
			if got != tt.want {
				t.Errorf("MapError() = %v, want %v", got, tt.want)
			}
		})
	}
}
