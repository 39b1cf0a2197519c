package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/target/hpcjobs/internal/data/pgxutil"
	"github.com/target/hpcjobs/internal/domain/lifecycle"
	"github.com/target/hpcjobs/internal/domain/model"
)

const insertEventSQL = `
	INSERT INTO job_events (id, job_id, kind, message, created_at)
	VALUES ($1, $2, $3, $4, $5)`

const insertUsageSQL = `
	INSERT INTO usage_records (id, job_id, user_id, cpu_hours, gpu_hours, walltime_seconds, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (job_id) DO NOTHING`

// MarkSubmitted stores the scheduler handle and moves a SUBMITTED job to QUEUED,
// appending the SUBMITTED event in the same transaction.
func (r *JobRepo) MarkSubmitted(ctx context.Context, id, externalID string) (*model.Job, error) {
	if externalID == "" {
		return nil, errors.New("external id is required")
	}

	now := r.timeProvider.Now()
	update := `
		UPDATE jobs
		SET external_id = $2, status = $3, updated_at = $4
		WHERE id = $1 AND status = $5
		RETURNING ` + jobSelectList

	event := model.JobEvent{
		JobID:     id,
		Kind:      model.EventSubmitted,
		Message:   lifecycle.SubmittedMessage(externalID),
		CreatedAt: now,
	}
	return r.updateSubmission(ctx, update, event, id, externalID, model.JobStatusQueued, now, model.JobStatusSubmitted)
}

// MarkSubmissionFailed moves a SUBMITTED job to FAILED with reason and appends a FAILED event.
func (r *JobRepo) MarkSubmissionFailed(ctx context.Context, id, reason string) (*model.Job, error) {
	now := r.timeProvider.Now()
	update := `
		UPDATE jobs
		SET status = $2, status_reason = $3, ended_at = $4, updated_at = $4
		WHERE id = $1 AND status = $5
		RETURNING ` + jobSelectList

	event := model.JobEvent{
		JobID:     id,
		Kind:      model.EventFailed,
		Message:   lifecycle.SubmissionFailedMessage(reason),
		CreatedAt: now,
	}
	return r.updateSubmission(ctx, update, event, id, model.JobStatusFailed, reason, now, model.JobStatusSubmitted)
}

func (r *JobRepo) updateSubmission(
	ctx context.Context,
	update string,
	event model.JobEvent,
	args ...any,
) (*model.Job, error) {
	var job *model.Job
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Fn: func(tx pgx.Tx) error {
			rows, err := tx.Query(ctx, update, args...)
			if err != nil {
				return fmt.Errorf("update job submission: %w", err)
			}
			job, err = pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[model.Job])
			if errors.Is(err, pgx.ErrNoRows) {
				return r.submissionMiss(ctx, tx, event.JobID)
			}
			if err != nil {
				return fmt.Errorf("collect job: %w", err)
			}
			return insertEvent(ctx, tx, event)
		},
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// submissionMiss distinguishes a missing job from one that already left SUBMITTED.
func (r *JobRepo) submissionMiss(ctx context.Context, tx pgx.Tx, id string) error {
	var status model.JobStatus
	err := tx.QueryRow(ctx, `SELECT status FROM jobs WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrJobNotFound
	}
	if err != nil {
		return fmt.Errorf("read job status: %w", err)
	}
	r.logger.WarnContext(ctx, "submission update skipped", "job_id", id, "status", status)
	return fmt.Errorf("%w: job is %s", ErrJobStatusConflict, status)
}

const applyTransitionSQL = `
	UPDATE jobs
	SET status = $2,
	    started_at = COALESCE($3::timestamptz, started_at),
	    ended_at = COALESCE($4::timestamptz, ended_at),
	    exit_code = COALESCE($5::integer, exit_code),
	    status_reason = COALESCE($6::text, status_reason),
	    updated_at = $7
	WHERE id = $1 AND status = $8`

// ApplyTransition moves the job from rec.From to rec.To only if it is still in rec.From.
// The event and optional usage record are written in the same transaction. It reports
// false, with no writes, when the precondition no longer holds.
func (r *JobRepo) ApplyTransition(ctx context.Context, rec model.TransitionRecord) (bool, error) {
	if rec.JobID == "" {
		return false, ErrJobIDRequired
	}

	now := r.timeProvider.Now()
	applied := false
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Fn: func(tx pgx.Tx) error {
			tag, err := tx.Exec(ctx, applyTransitionSQL,
				rec.JobID, rec.To, rec.StartedAt, rec.EndedAt, rec.ExitCode, rec.Reason, now, rec.From)
			if err != nil {
				return fmt.Errorf("update job status: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return nil
			}

			ev := rec.Event
			ev.JobID = rec.JobID
			if ev.CreatedAt.IsZero() {
				ev.CreatedAt = now
			}
			if err := insertEvent(ctx, tx, ev); err != nil {
				return err
			}
			if rec.Usage != nil {
				if err := insertUsage(ctx, tx, rec.JobID, rec.Usage, now); err != nil {
					return err
				}
			}
			applied = true
			return nil
		},
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

func insertEvent(ctx context.Context, tx pgx.Tx, ev model.JobEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if _, err := tx.Exec(ctx, insertEventSQL, ev.ID, ev.JobID, ev.Kind, ev.Message, ev.CreatedAt); err != nil {
		return fmt.Errorf("insert job event: %w", err)
	}
	return nil
}

func insertUsage(ctx context.Context, tx pgx.Tx, jobID string, u *model.UsageRecord, now time.Time) error {
	id := u.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := u.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	if _, err := tx.Exec(ctx, insertUsageSQL,
		id, jobID, u.UserID, u.CPUHours, u.GPUHours, u.WalltimeSeconds, createdAt); err != nil {
		return fmt.Errorf("insert usage record: %w", err)
	}
	return nil
}
