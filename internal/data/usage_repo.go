package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/target/hpcjobs/internal/data/pgxutil"
	"github.com/target/hpcjobs/internal/domain/model"
)

// UsageRepo reads usage records. Records are inserted by JobRepo.ApplyTransition.
type UsageRepo struct {
	DB *sql.DB
}

// NewUsageRepo creates a new UsageRepo.
func NewUsageRepo(db *sql.DB) *UsageRepo {
	return &UsageRepo{DB: db}
}

// GetByJobID returns the usage record for jobID, or ErrUsageNotFound.
func (r *UsageRepo) GetByJobID(ctx context.Context, jobID string) (*model.UsageRecord, error) {
	if jobID == "" {
		return nil, ErrJobIDRequired
	}

	const query = `
		SELECT id, job_id, user_id, cpu_hours, gpu_hours, walltime_seconds, created_at
		FROM usage_records
		WHERE job_id = $1`

	var rec *model.UsageRecord
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, jobID)
		if err != nil {
			return fmt.Errorf("query usage: %w", err)
		}
		rec, err = pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[model.UsageRecord])
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUsageNotFound
		}
		if err != nil {
			return fmt.Errorf("collect usage: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// SummarizeByUser totals the user's usage recorded at or after since.
func (r *UsageRepo) SummarizeByUser(ctx context.Context, userID string, since time.Time) (*model.UsageSummary, error) {
	if userID == "" {
		return nil, errors.New("user id is required")
	}

	const query = `
		SELECT COUNT(*),
		       COALESCE(SUM(cpu_hours), 0),
		       COALESCE(SUM(gpu_hours), 0),
		       COALESCE(SUM(walltime_seconds), 0)::bigint
		FROM usage_records
		WHERE user_id = $1 AND created_at >= $2`

	sum := &model.UsageSummary{UserID: userID, Since: since}
	var jobs int64
	if err := r.DB.QueryRowContext(ctx, query, userID, since).Scan(
		&jobs, &sum.CPUHours, &sum.GPUHours, &sum.WalltimeSeconds,
	); err != nil {
		return nil, fmt.Errorf("summarize usage: %w", err)
	}
	sum.Jobs = int(jobs)
	return sum, nil
}
