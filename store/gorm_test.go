package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"rejection-therapy/services"
)

func TestMapErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"record not found", gorm.ErrRecordNotFound, services.ErrNotFound},
		{"malformed uuid", &pgconn.PgError{Code: "22P02"}, services.ErrNotFound},
		{"wrapped malformed uuid", fmt.Errorf("query: %w", &pgconn.PgError{Code: "22P02"}), services.ErrNotFound},
		{"duplicate key", gorm.ErrDuplicatedKey, services.ErrConflict},
		{"unique violation", &pgconn.PgError{Code: "23505"}, services.ErrConflict},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, services.ErrTransient},
		{"deadline", context.DeadlineExceeded, services.ErrTransient},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := mapErr("op", tc.err); !errors.Is(got, tc.want) {
				t.Errorf("mapErr(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}

	if got := mapErr("op", nil); got != nil {
		t.Errorf("mapErr(nil) = %v", got)
	}
	other := mapErr("op", &pgconn.PgError{Code: "23502"})
	for _, sentinel := range []error{services.ErrNotFound, services.ErrConflict, services.ErrTransient} {
		if errors.Is(other, sentinel) {
			t.Errorf("not-null violation classified as %v", sentinel)
		}
	}
}
