package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/target/hpcjobs/config"
	"github.com/target/hpcjobs/internal/core"
	"github.com/target/hpcjobs/internal/domain/model"
	obserrors "github.com/target/hpcjobs/internal/observability/errors"
	"github.com/target/hpcjobs/internal/observability/metrics"
	"github.com/target/hpcjobs/internal/observability/statsd"
)

// PollerLockKey is the cache key guarding a poll cycle across replicas.
const PollerLockKey = "hpcjobs:poller:lock"

const defaultPollerBatchSize = 500

// PollerServiceOptions groups dependencies for PollerService.
type PollerServiceOptions struct {
	Repo      core.JobRepository    // Required: job repository
	Gateway   core.SchedulerGateway // Required: batch scheduler gateway
	Lifecycle *LifecycleService     // Required: applies observed transitions
	Config    config.PollerConfig   // Required: poller configuration
	Lock      core.CacheRepository  // Optional: cross-replica cycle lock
	Logger    *slog.Logger          // Optional: structured logger
	Metrics   statsd.Sink           // Optional: metrics sink (StatsD-compatible)
}

// PollerService reconciles active jobs with the scheduler on a fixed interval.
type PollerService struct {
	repo      core.JobRepository
	gateway   core.SchedulerGateway
	lifecycle *LifecycleService
	config    config.PollerConfig
	lock      core.CacheRepository
	logger    *slog.Logger
	metrics   statsd.Sink
	running   atomic.Bool
}

// CycleStats summarizes one poll cycle.
type CycleStats struct {
	// Skipped is true when another cycle held the lock.
	Skipped      bool
	Active       int
	Processed    int
	Transitioned int
	Errors       int
	NoHandle     int
	Elapsed      time.Duration
}

// NewPollerService constructs a new PollerService.
func NewPollerService(opts PollerServiceOptions) (*PollerService, error) {
	switch {
	case opts.Repo == nil:
		return nil, errors.New("JobRepository is required")
	case opts.Gateway == nil:
		return nil, errors.New("SchedulerGateway is required")
	case opts.Lifecycle == nil:
		return nil, errors.New("LifecycleService is required")
	case opts.Config.Interval <= 0:
		return nil, errors.New("poller interval must be positive")
	}

	cfg := opts.Config
	cfg.Concurrency = max(cfg.Concurrency, 1)
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultPollerBatchSize
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = cfg.Interval
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "poller_service")
	logger.Debug("PollerService initialized",
		"interval", cfg.Interval,
		"concurrency", cfg.Concurrency,
		"batch_size", cfg.BatchSize,
		"query_timeout", cfg.QueryTimeout,
	)

	return &PollerService{
		repo:      opts.Repo,
		gateway:   opts.Gateway,
		lifecycle: opts.Lifecycle,
		config:    cfg,
		lock:      opts.Lock,
		logger:    logger,
		metrics:   opts.Metrics,
	}, nil
}

// Run polls until the context is cancelled. The first cycle runs after a short jitter.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (s *PollerService) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "starting poller service", "interval", s.config.Interval)

	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "poller service stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

func (s *PollerService) runCycle(ctx context.Context) {
	if _, err := s.PollOnce(ctx); err != nil {
		if isContextCancellation(err) {
			s.logger.Debug("poll cycle cancelled by context", "error", err)
			return
		}
		s.logger.Error("poll cycle failed", "error", err)
	}
}

// waitWithJitter sleeps for a random delay up to 10% of the interval so replicas spread out.
func (s *PollerService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.config.Interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		s.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		return
	}
	jitter := time.Duration(int64(binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter))) // #nosec G115 - bounded by maxJitter

	select {
	case <-time.After(jitter):
	case <-ctx.Done():
	}
}

// PollOnce runs a single reconciliation cycle. Per-job failures are logged and counted,
// never returned; only failing to list active jobs is an error.
func (s *PollerService) PollOnce(ctx context.Context) (CycleStats, error) {
	start := time.Now()

	if !s.running.CompareAndSwap(false, true) {
		s.logger.DebugContext(ctx, "poll cycle already running in this process")
		stats := CycleStats{Skipped: true}
		s.emitCycleMetrics(stats, nil)
		return stats, nil
	}
	defer s.running.Store(false)

	release, acquired := s.acquireLock(ctx)
	if !acquired {
		s.logger.DebugContext(ctx, "poll cycle lock held elsewhere")
		stats := CycleStats{Skipped: true}
		s.emitCycleMetrics(stats, nil)
		return stats, nil
	}
	defer release()

	stats, err := s.reconcileActive(ctx)
	stats.Elapsed = time.Since(start)
	if err != nil {
		err = fmt.Errorf("list active jobs: %w", err)
		if !isContextCancellation(err) {
			s.emitCycleMetrics(stats, err)
		}
		return stats, err
	}
	s.emitCycleMetrics(stats, nil)

	if stats.Active > 0 {
		s.logger.InfoContext(ctx, "poll cycle finished",
			"active", stats.Active,
			"processed", stats.Processed,
			"transitioned", stats.Transitioned,
			"errors", stats.Errors,
			"no_handle", stats.NoHandle,
			"elapsed", stats.Elapsed,
		)
	}
	return stats, nil
}

// reconcileActive walks every active job one page at a time. A short page ends the walk.
func (s *PollerService) reconcileActive(ctx context.Context) (CycleStats, error) {
	var (
		stats CycleStats
		after *model.ActiveJobCursor
	)
	for {
		page, err := s.repo.ListActive(ctx, after, s.config.BatchSize)
		if err != nil {
			return stats, err
		}
		stats.add(s.reconcileAll(ctx, page))
		if len(page) < s.config.BatchSize || ctx.Err() != nil {
			return stats, nil
		}
		after = page[len(page)-1].CursorAfter()
	}
}

func (c *CycleStats) add(o CycleStats) {
	c.Active += o.Active
	c.Processed += o.Processed
	c.Transitioned += o.Transitioned
	c.Errors += o.Errors
	c.NoHandle += o.NoHandle
}

type jobOutcome int

const (
	outcomeNotRun jobOutcome = iota
	outcomeUnchanged
	outcomeTransitioned
	outcomeError
	outcomeNoHandle
)

func (s *PollerService) reconcileAll(ctx context.Context, jobs []*model.Job) CycleStats {
	stats := CycleStats{Active: len(jobs)}
	outcomes := make([]jobOutcome, len(jobs))

	// Workers never return an error so one job cannot cancel its siblings.
	var g errgroup.Group
	g.SetLimit(s.config.Concurrency)
	for i, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			outcomes[i] = s.reconcileJob(ctx, job)
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range outcomes {
		switch o {
		case outcomeNotRun:
			continue
		case outcomeNoHandle:
			stats.NoHandle++
			continue
		case outcomeTransitioned:
			stats.Transitioned++
		case outcomeError:
			stats.Errors++
		}
		stats.Processed++
	}
	return stats
}

func (s *PollerService) reconcileJob(ctx context.Context, job *model.Job) jobOutcome {
	if !job.HasExternalID() {
		return outcomeNoHandle
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.QueryTimeout)
	defer cancel()

	observed, err := s.gateway.QueryStatus(ctx, *job.ExternalID)
	if err != nil {
		s.logJobError(ctx, job, "status query failed", err)
		return outcomeError
	}

	changed, err := s.lifecycle.Reconcile(ctx, job, observed)
	if err != nil {
		s.logJobError(ctx, job, "reconcile failed", err)
		return outcomeError
	}
	if changed {
		return outcomeTransitioned
	}
	return outcomeUnchanged
}

func (s *PollerService) logJobError(ctx context.Context, job *model.Job, msg string, err error) {
	level := slog.LevelWarn
	if isContextCancellation(err) && ctx.Err() == nil {
		level = slog.LevelDebug
	}
	s.logger.Log(ctx, level, msg,
		"job_id", job.ID,
		"external_id", *job.ExternalID,
		"status", job.Status,
		"error", err,
	)
}

// acquireLock takes the cross-replica cycle lock. Without a cache, or when the cache
// is unreachable, the in-process guard alone protects the cycle.
func (s *PollerService) acquireLock(ctx context.Context) (release func(), acquired bool) {
	noop := func() {}
	if s.lock == nil {
		return noop, true
	}

	token := lockToken()
	ok, err := s.lock.SetIfNotExists(ctx, PollerLockKey, []byte(token), s.config.Interval)
	if err != nil {
		s.logger.WarnContext(ctx, "poller lock unavailable, continuing without it", "error", err)
		return noop, true
	}
	if !ok {
		return noop, false
	}

	return func() {
		// Release even if the cycle context was cancelled.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if _, err := s.lock.DeleteIfValue(releaseCtx, PollerLockKey, []byte(token)); err != nil {
			s.logger.WarnContext(ctx, "failed to release poller lock", "error", err)
		}
	}, true
}

func lockToken() string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return time.Now().UTC().Format(time.RFC3339Nano)
	}
	return hex.EncodeToString(buf[:])
}

func (s *PollerService) emitCycleMetrics(stats CycleStats, err error) {
	if s.metrics == nil {
		return
	}

	result := metrics.ResultSuccess
	switch {
	case err != nil:
		result = metrics.ResultError
	case stats.Skipped:
		result = metrics.ResultSkipped
	case stats.Active == 0:
		result = metrics.ResultNoop
	}

	tags := map[string]string{"result": result}
	if err != nil {
		if class := obserrors.Classify(err); class != "" {
			tags["error_class"] = class
		}
	}

	s.metrics.Count("poller.cycle", 1, tags)
	if stats.Elapsed > 0 {
		s.metrics.Timing("poller.cycle_duration", stats.Elapsed, metrics.CloneTags(tags))
	}
	if stats.Skipped || err != nil {
		return
	}

	s.metrics.Count("poller.jobs", int64(stats.Processed), map[string]string{"outcome": "processed"})
	s.metrics.Count("poller.jobs", int64(stats.Transitioned), map[string]string{"outcome": "transitioned"})
	s.metrics.Count("poller.jobs", int64(stats.Errors), map[string]string{"outcome": "error"})
	s.metrics.Count("poller.jobs", int64(stats.NoHandle), map[string]string{"outcome": "no_handle"})
	s.metrics.Gauge("poller.last_success_epoch", float64(time.Now().Unix()), nil)
}

func isContextCancellation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
