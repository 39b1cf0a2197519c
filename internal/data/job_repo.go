package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/target/hpcjobs/internal/data/pgxutil"
	"github.com/target/hpcjobs/internal/domain/model"
)

const maxJobListLimit = 500

// RepoConfig holds configuration options shared by the repositories.
type RepoConfig struct {
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// JobRepo provides database operations for jobs and their lifecycle.
type JobRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
	psql         sq.StatementBuilderType
}

// NewJobRepo creates a new JobRepo with the given database connection and configuration.
func NewJobRepo(db *sql.DB, cfg RepoConfig) *JobRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = RealTimeProvider{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &JobRepo{
		DB:           db,
		timeProvider: tp,
		logger:       logger.With("component", "job_repo"),
		psql:         sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// jobColumns matches the db tags on model.Job so rows can be collected by name.
var jobColumns = []string{
	"id",
	"user_id",
	"name",
	"description",
	"job_type",
	"external_id",
	"queue",
	"nodes",
	"tasks_per_node",
	"cpus_per_task",
	"memory_per_node_gb",
	"gpus_per_node",
	"walltime_seconds",
	"priority",
	"environment",
	"command",
	"arguments",
	"pre_script",
	"post_script",
	"COALESCE(working_directory, '') AS working_directory",
	"status",
	"status_reason",
	"submitted_at",
	"started_at",
	"ended_at",
	"exit_code",
	"created_at",
	"updated_at",
}

var jobSelectList = strings.Join(jobColumns, ", ")

const insertJobSQL = `
	INSERT INTO jobs (
		id, user_id, name, description, job_type, queue,
		nodes, tasks_per_node, cpus_per_task, memory_per_node_gb, gpus_per_node,
		walltime_seconds, priority, environment, command, arguments, pre_script, post_script,
		status, submitted_at, created_at, updated_at
	) VALUES (
		$1, $2, $3, $4, $5, $6,
		$7, $8, $9, $10, $11,
		$12, $13, $14, $15, $16, $17, $18,
		$19, $20, $20, $20
	)
	RETURNING `

// Create persists a new job in SUBMITTED status. The request is normalized and validated first.
func (r *JobRepo) Create(ctx context.Context, rec *model.CreateJobRecord) (*model.Job, error) {
	if rec == nil {
		return nil, errors.New("create job record is required")
	}
	if strings.TrimSpace(rec.UserID) == "" {
		return nil, errors.New("user id is required")
	}

	req := rec.Request
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	env, err := req.Environment.Value()
	if err != nil {
		return nil, fmt.Errorf("encode environment: %w", err)
	}

	now := r.timeProvider.Now()
	args := []any{
		uuid.NewString(), rec.UserID, req.Name, req.Description, req.Type, req.Queue,
		*req.Nodes, *req.TasksPerNode, *req.CPUsPerTask, *req.MemoryPerNodeGB, *req.GPUsPerNode,
		req.WalltimeSeconds, req.Priority, env, req.Command, req.Arguments, req.PreScript, req.PostScript,
		model.JobStatusSubmitted, now,
	}

	var job *model.Job
	err = pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, qErr := conn.Query(ctx, insertJobSQL+jobSelectList, args...)
		if qErr != nil {
			return fmt.Errorf("insert job: %w", qErr)
		}
		job, qErr = pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[model.Job])
		if qErr != nil {
			return fmt.Errorf("collect inserted job: %w", qErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// GetByID returns the job with id, or ErrJobNotFound.
func (r *JobRepo) GetByID(ctx context.Context, id string) (*model.Job, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrJobNotFound
	}

	query := `SELECT ` + jobSelectList + ` FROM jobs WHERE id = $1`

	var job *model.Job
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, qErr := conn.Query(ctx, query, id)
		if qErr != nil {
			return fmt.Errorf("query job: %w", qErr)
		}
		job, qErr = pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[model.Job])
		if errors.Is(qErr, pgx.ErrNoRows) {
			return ErrJobNotFound
		}
		if qErr != nil {
			return fmt.Errorf("collect job: %w", qErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// buildListQuery translates list options into a parameterized SELECT.
func (r *JobRepo) buildListQuery(opts model.JobListOptions) (string, []any, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = model.DefaultJobListLimit
	}
	limit = min(limit, maxJobListLimit)
	offset := max(opts.Offset, 0)

	q := r.psql.Select(jobColumns...).
		From("jobs").
		Where(sq.Eq{"user_id": opts.UserID})

	if opts.Status != nil {
		q = q.Where(sq.Eq{"status": *opts.Status})
	}
	if s := strings.TrimSpace(opts.Search); s != "" {
		pattern := "%" + escapeLike(s) + "%"
		q = q.Where(sq.Or{
			sq.ILike{"name": pattern},
			sq.Expr("id::text ILIKE ?", pattern),
		})
	}

	q = q.OrderBy("submitted_at DESC", "id DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset))

	return q.ToSql()
}

// List returns the caller's jobs newest first, filtered by status and a name/id search.
func (r *JobRepo) List(ctx context.Context, opts model.JobListOptions) ([]*model.Job, error) {
	if strings.TrimSpace(opts.UserID) == "" {
		return nil, errors.New("user id is required")
	}

	query, args, err := r.buildListQuery(opts)
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}
	return r.queryJobs(ctx, query, args...)
}

// ListActive returns up to limit jobs the poller must reconcile, oldest submission first,
// resuming after the cursor when one is given.
func (r *JobRepo) ListActive(ctx context.Context, after *model.ActiveJobCursor, limit int) ([]*model.Job, error) {
	query, args, err := r.buildActiveQuery(after, limit)
	if err != nil {
		return nil, fmt.Errorf("build active query: %w", err)
	}
	return r.queryJobs(ctx, query, args...)
}

func (r *JobRepo) buildActiveQuery(after *model.ActiveJobCursor, limit int) (string, []any, error) {
	if limit <= 0 {
		limit = maxJobListLimit
	}

	q := r.psql.Select(jobColumns...).
		From("jobs").
		Where(sq.Eq{"status": model.ActiveJobStatuses})
	if after != nil {
		q = q.Where(sq.Expr("(submitted_at, id) > (?::timestamptz, ?::uuid)", after.SubmittedAt, after.ID))
	}

	return q.OrderBy("submitted_at ASC", "id ASC").
		Limit(uint64(limit)).
		ToSql()
}

func (r *JobRepo) queryJobs(ctx context.Context, query string, args ...any) ([]*model.Job, error) {
	var out []*model.Job
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, qErr := conn.Query(ctx, query, args...)
		if qErr != nil {
			return fmt.Errorf("query jobs: %w", qErr)
		}
		out, qErr = pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[model.Job])
		if qErr != nil {
			return fmt.Errorf("collect jobs: %w", qErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SetWorkingDirectory records the job's workspace directory.
func (r *JobRepo) SetWorkingDirectory(ctx context.Context, id, dir string) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE jobs SET working_directory = $2, updated_at = $3 WHERE id = $1`,
		id, dir, r.timeProvider.Now(),
	)
	if err != nil {
		return fmt.Errorf("set working directory: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set working directory rows affected: %w", err)
	}
	if n == 0 {
		return ErrJobNotFound
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
