package errors

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestMapDBError_NilError(t *testing.T) {
	if err := MapDBError(nil); err != nil {
		t.Errorf("MapDBError(nil) = %v, want nil", err)
	}
}

func TestMapDBError_ContextAndNoRows(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode ErrorCode
	}{
		{name: "deadline exceeded", err: context.DeadlineExceeded, wantCode: ErrCodeTimeout},
		{name: "wrapped canceled", err: fmt.Errorf("query: %w", context.Canceled), wantCode: ErrCodeCanceled},
		{name: "no rows", err: pgx.ErrNoRows, wantCode: ErrCodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(MapDBError(tt.err)); got != tt.wantCode {
				t.Errorf("MapDBError() code = %v, want %v", got, tt.wantCode)
			}
		})
	}
}

func TestMapDBError_PgErrors(t *testing.T) {
	tests := []struct {
		name      string
		pgErr     *pgconn.PgError
		wantCode  ErrorCode
		wantField string
		wantMsg   string
	}{
		{
			name: "duplicate usage record",
			pgErr: &pgconn.PgError{
				Code:           pgerrcode.UniqueViolation,
				ConstraintName: "usage_records_job_id_key",
				Detail:         "Key (job_id)=(2f0c) already exists.",
			},
			wantCode:  ErrCodeConflict,
			wantField: "job_id",
			wantMsg:   "Usage has already been recorded for this job.",
		},
		{
			name:     "unknown unique constraint",
			pgErr:    &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "x_key"},
			wantCode: ErrCodeConflict,
			wantMsg:  "This value already exists.",
		},
		{
			name:     "event for missing job",
			pgErr:    &pgconn.PgError{Code: pgerrcode.ForeignKeyViolation, ConstraintName: "job_events_job_id_fkey"},
			wantCode: ErrCodeNotFound,
			wantMsg:  "The job for this event does not exist.",
		},
		{
			name:     "walltime check",
			pgErr:    &pgconn.PgError{Code: pgerrcode.CheckViolation, ConstraintName: "jobs_walltime_seconds_check"},
			wantCode: ErrCodeValidation,
			wantMsg:  "Walltime must be at least 60 seconds.",
		},
		{
			name:      "not null",
			pgErr:     &pgconn.PgError{Code: pgerrcode.NotNullViolation, ColumnName: "queue"},
			wantCode:  ErrCodeValidation,
			wantField: "queue",
			wantMsg:   "This field is required.",
		},
		{
			name:     "malformed uuid",
			pgErr:    &pgconn.PgError{Code: pgerrcode.InvalidTextRepresentation},
			wantCode: ErrCodeValidation,
			wantMsg:  "Malformed identifier or value.",
		},
		{
			name:     "other",
			pgErr:    &pgconn.PgError{Code: pgerrcode.DeadlockDetected},
			wantCode: ErrCodeInternal,
			wantMsg:  "A database error occurred. Please try again.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MapDBError(tt.pgErr)
			appErr, ok := err.(*AppError)
			if !ok {
				t.Fatalf("MapDBError() returned %T, want *AppError", err)
			}
			if appErr.Code != tt.wantCode {
				t.Errorf("code = %v, want %v", appErr.Code, tt.wantCode)
			}
			if appErr.Field != tt.wantField {
				t.Errorf("field = %q, want %q", appErr.Field, tt.wantField)
			}
			if appErr.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", appErr.Message, tt.wantMsg)
			}
			if appErr.Cause != tt.pgErr {
				t.Errorf("cause not preserved")
			}
		})
	}
}

func TestMapDBError_PassThrough(t *testing.T) {
	orig := fmt.Errorf("plain failure")
	if got := MapDBError(orig); got != orig {
		t.Errorf("MapDBError() = %v, want original error", got)
	}
}
