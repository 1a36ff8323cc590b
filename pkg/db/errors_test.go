package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolationPostgres(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		constraint string
		want       bool
	}{
		{
			name:       "matching constraint name",
			err:        &pgconn.PgError{Code: "23505", ConstraintName: "settlements_payment_id"},
			constraint: "settlements_payment_id",
			want:       true,
		},
		{
			name:       "matching unique index name",
			err:        &pgconn.PgError{Code: "23505", ConstraintName: "idx_payments_reservation_id"},
			constraint: "idx_payments_reservation_id",
			want:       true,
		},
		{
			name:       "different constraint",
			err:        &pgconn.PgError{Code: "23505", ConstraintName: "payments_provider_session_id_key"},
			constraint: "settlements_payment_id",
			want:       false,
		},
		{
			name:       "wrapped pg error",
			err:        fmt.Errorf("persisting: %w", &pgconn.PgError{Code: "23505", ConstraintName: "settlements_payment_id"}),
			constraint: "settlements_payment_id",
			want:       true,
		},
		{
			name:       "not a unique violation",
			err:        &pgconn.PgError{Code: "23503", ConstraintName: "settlements_payment_id"},
			constraint: "settlements_payment_id",
			want:       false,
		},
		{
			name:       "any constraint accepted when unnamed",
			err:        &pgconn.PgError{Code: "23505", ConstraintName: "whatever"},
			constraint: "",
			want:       true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsUniqueViolation(tc.err, tc.constraint); got != tc.want {
				t.Fatalf("IsUniqueViolation(%v, %q) = %v, want %v", tc.err, tc.constraint, got, tc.want)
			}
		})
	}
}

func TestIsUniqueViolationSQLiteFallback(t *testing.T) {
	err := errors.New("UNIQUE constraint failed: settlements.payment_id")
	if !IsUniqueViolation(err, "settlements_payment_id") {
		t.Fatal("expected sqlite unique violation to be recognized")
	}
	if IsUniqueViolation(errors.New("connection refused"), "settlements_payment_id") {
		t.Fatal("expected unrelated error to be rejected")
	}
	if IsUniqueViolation(nil, "") {
		t.Fatal("expected nil error to be rejected")
	}
}
