package data

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/target/hpcjobs/internal/data/pgxutil"
	"github.com/target/hpcjobs/internal/domain/model"
)

// DefaultEventListLimit bounds event listings when no limit is given.
const DefaultEventListLimit = 100

// JobEventRepo reads the append-only job event log. Events are written by JobRepo
// inside lifecycle transactions and are never updated.
type JobEventRepo struct {
	DB *sql.DB
}

// NewJobEventRepo creates a new JobEventRepo.
func NewJobEventRepo(db *sql.DB) *JobEventRepo {
	return &JobEventRepo{DB: db}
}

// ListByJob returns up to limit events for jobID, newest first.
func (r *JobEventRepo) ListByJob(ctx context.Context, jobID string, limit int) ([]*model.JobEvent, error) {
	if jobID == "" {
		return nil, ErrJobIDRequired
	}
	if limit <= 0 {
		limit = DefaultEventListLimit
	}

	const query = `
		SELECT id, job_id, kind, message, created_at
		FROM job_events
		WHERE job_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT $2`

	var out []*model.JobEvent
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, jobID, limit)
		if err != nil {
			return fmt.Errorf("query job events: %w", err)
		}
		out, err = pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[model.JobEvent])
		if err != nil {
			return fmt.Errorf("collect job events: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
