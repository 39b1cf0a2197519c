package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "error without cause",
			err:  &AppError{Code: ErrCodeNotFound, Message: "job not found"},
			want: "job not found",
		},
		{
			name: "error with cause",
			err:  &AppError{Code: ErrCodeUnavailable, Message: "submission failed", Cause: errors.New("sbatch exited 1")},
			want: "submission failed: sbatch exited 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("AppError.Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAppError_UnwrapThroughWrapping(t *testing.T) {
	cause := errors.New("scancel failed")
	err := fmt.Errorf("cancel job: %w", Wrap(cause, ErrCodeUnavailable, "could not cancel"))

	if !errors.Is(err, cause) {
		t.Errorf("errors.Is should find the original cause")
	}
	if !IsUnavailable(err) {
		t.Errorf("IsUnavailable should see through fmt wrapping")
	}
	if GetCode(err) != ErrCodeUnavailable {
		t.Errorf("GetCode() = %v, want %v", GetCode(err), ErrCodeUnavailable)
	}
}

func TestConstructorsAndPredicates(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
		code  ErrorCode
	}{
		{"not found", NotFoundf("job %s not found", "j1"), IsNotFound, ErrCodeNotFound},
		{"forbidden", Forbidden("not your job"), IsForbidden, ErrCodeForbidden},
		{"conflict", Conflictf("job is %s", "COMPLETED"), IsConflict, ErrCodeConflict},
		{"validation", Validation("bad input"), IsValidation, ErrCodeValidation},
		{"internal", Internal("boom"), IsInternal, ErrCodeInternal},
		{"timeout", Wrap(errors.New("x"), ErrCodeTimeout, "slow"), IsTimeout, ErrCodeTimeout},
		{"canceled", Wrapf(errors.New("x"), ErrCodeCanceled, "stopped %d", 1), IsCanceled, ErrCodeCanceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.check(tt.err) {
				t.Errorf("predicate returned false for %v", tt.err)
			}
			if GetCode(tt.err) != tt.code {
				t.Errorf("GetCode() = %v, want %v", GetCode(tt.err), tt.code)
			}
		})
	}

	if msg := NotFoundf("job %s not found", "j1").Message; msg != "job j1 not found" {
		t.Errorf("NotFoundf message = %q", msg)
	}
	if msg := Validation("100% wrong").Message; msg != "100% wrong" {
		t.Errorf("Validation should not format its message, got %q", msg)
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, ErrCodeInternal, "x") != nil {
		t.Errorf("Wrap(nil) should return nil")
	}
	if Wrapf(nil, ErrCodeInternal, "x %d", 1) != nil {
		t.Errorf("Wrapf(nil) should return nil")
	}
}

func TestValidationField(t *testing.T) {
	err := ValidationField("walltime_seconds", "too short")
	if GetField(err) != "walltime_seconds" {
		t.Errorf("GetField() = %q", GetField(err))
	}
	if GetField(errors.New("plain")) != "" {
		t.Errorf("GetField() on plain error should be empty")
	}
}
