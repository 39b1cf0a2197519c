package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/target/hpcjobs/internal/adapters/slurm"
	domainauth "github.com/target/hpcjobs/internal/domain/auth"
	apperrors "github.com/target/hpcjobs/internal/errors"
	"github.com/target/hpcjobs/internal/service"
)

var errInternal = errors.New("internal server error")

// appErrorStatus maps AppError codes to HTTP statuses.
var appErrorStatus = map[apperrors.ErrorCode]int{ //nolint:gochecknoglobals // read-only lookup
	apperrors.ErrCodeNotFound:    http.StatusNotFound,
	apperrors.ErrCodeForbidden:   http.StatusForbidden,
	apperrors.ErrCodeConflict:    http.StatusConflict,
	apperrors.ErrCodeValidation:  http.StatusBadRequest,
	apperrors.ErrCodeUnavailable: http.StatusServiceUnavailable,
	apperrors.ErrCodeTimeout:     http.StatusGatewayTimeout,
	apperrors.ErrCodeCanceled:    http.StatusServiceUnavailable,
	apperrors.ErrCodeInternal:    http.StatusInternalServerError,
}

// WriteServiceError renders an error returned by the service layer.
// Scheduler failures become 502 with the scheduler's reason; unknown errors are logged and hidden.
func WriteServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	if logger == nil {
		logger = slog.Default()
	}

	var (
		submitErr *service.SubmissionError
		cancelErr *slurm.CancelExecError
		appErr    *apperrors.AppError
	)
	switch {
	case errors.Is(err, domainauth.ErrUnauthenticated):
		WriteError(w, ErrorParams{Code: http.StatusUnauthorized, ErrCode: "authentication_required", Err: err})
	case errors.As(err, &submitErr):
		WriteError(w, ErrorParams{
			Code:    http.StatusBadGateway,
			ErrCode: "submission_failed",
			Err:     submitErr.Err,
			JobID:   submitErr.JobID,
		})
	case errors.As(err, &cancelErr):
		WriteError(w, ErrorParams{Code: http.StatusBadGateway, ErrCode: "cancel_failed", Err: cancelErr})
	case slurm.IsExitError(err):
		WriteError(w, ErrorParams{Code: http.StatusBadGateway, ErrCode: "scheduler_error", Err: err})
	case errors.As(err, &appErr) && appErr.Code != apperrors.ErrCodeInternal:
		status, ok := appErrorStatus[appErr.Code]
		if !ok {
			status = http.StatusInternalServerError
		}
		WriteError(w, ErrorParams{
			Code:    status,
			ErrCode: string(appErr.Code),
			Err:     errors.New(appErr.Message),
			Field:   appErr.Field,
		})
	case errors.Is(err, context.DeadlineExceeded):
		WriteError(w, ErrorParams{Code: http.StatusGatewayTimeout, ErrCode: "timeout", Err: err})
	default:
		logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "internal_error", Err: errInternal})
	}
}
