package errors

import (
	"context"
	"errors"
	"regexp"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// reKeyField extracts the column from "Key (field)=(value) already exists.".
var reKeyField = regexp.MustCompile(`Key \(([^)]+)\)=`)

// constraintMessages gives user-facing text for the schema's named constraints.
var constraintMessages = map[string]string{
	"usage_records_job_id_key":    "Usage has already been recorded for this job.",
	"job_events_job_id_fkey":      "The job for this event does not exist.",
	"usage_records_job_id_fkey":   "The job for this usage record does not exist.",
	"jobs_walltime_seconds_check": "Walltime must be at least 60 seconds.",
}

// MapDBError maps database errors to AppError instances:
//   - context deadline/cancellation → Timeout/Canceled
//   - pgx.ErrNoRows → NotFound
//   - unique violations → Conflict
//   - foreign key violations → NotFound
//   - check, not-null and malformed-value errors → Validation
//
// Unrecognized errors are returned unchanged.
func MapDBError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &AppError{Code: ErrCodeTimeout, Message: "Request timed out. Please try again.", Cause: err}
	}
	if errors.Is(err, context.Canceled) {
		return &AppError{Code: ErrCodeCanceled, Message: "Request was canceled.", Cause: err}
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return &AppError{Code: ErrCodeNotFound, Message: "Resource not found", Cause: err}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return mapPgError(pgErr)
	}
	return err
}

func mapPgError(pgErr *pgconn.PgError) error {
	msg, known := constraintMessages[pgErr.ConstraintName]

	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		if !known {
			msg = "This value already exists."
		}
		return &AppError{Code: ErrCodeConflict, Message: msg, Field: uniqueField(pgErr), Cause: pgErr}
	case pgerrcode.ForeignKeyViolation:
		if !known {
			msg = "The referenced resource does not exist."
		}
		return &AppError{Code: ErrCodeNotFound, Message: msg, Cause: pgErr}
	case pgerrcode.CheckViolation:
		if !known {
			msg = "Invalid data. Please check your input."
		}
		return &AppError{Code: ErrCodeValidation, Message: msg, Field: pgErr.ColumnName, Cause: pgErr}
	case pgerrcode.NotNullViolation:
		return &AppError{Code: ErrCodeValidation, Message: "This field is required.", Field: pgErr.ColumnName, Cause: pgErr}
	case pgerrcode.InvalidTextRepresentation:
		return &AppError{Code: ErrCodeValidation, Message: "Malformed identifier or value.", Cause: pgErr}
	default:
		return &AppError{Code: ErrCodeInternal, Message: "A database error occurred. Please try again.", Cause: pgErr}
	}
}

func uniqueField(pgErr *pgconn.PgError) string {
	if pgErr.ColumnName != "" {
		return pgErr.ColumnName
	}
	if m := reKeyField.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
		return m[1]
	}
	return ""
}
