package errors

import (
	"context"
	goerrors "errors"
	"fmt"
	"testing"
)

type scancelError struct{}

func (scancelError) Error() string { return "scancel" }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"deadline", fmt.Errorf("poll: %w", context.DeadlineExceeded), "timeout"},
		{"canceled", context.Canceled, "canceled"},
		{"plain", goerrors.New("x"), "errors_errorstring"},
		{"wrapped custom", fmt.Errorf("cancel: %w", &scancelError{}), "errors_scancelerror"},
		{"value custom", scancelError{}, "errors_scancelerror"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Fatalf("Classify(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}
