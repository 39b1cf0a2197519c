package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"
	"github.com/target/hpcjobs/internal/core"
	"github.com/target/hpcjobs/internal/domain/model"
)

// QueueCacheKey is the cache key holding the last partition listing.
const QueueCacheKey = "hpcjobs:queues"

// DefaultQueueCacheTTL applies when QueueServiceOptions.CacheTTL is not positive.
const DefaultQueueCacheTTL = 30 * time.Second

// QueueServiceOptions groups dependencies for QueueService.
type QueueServiceOptions struct {
	Gateway  core.SchedulerGateway // Required: batch scheduler gateway
	Cache    core.CacheRepository  // Optional: partition listing cache
	CacheTTL time.Duration         // Optional: defaults to DefaultQueueCacheTTL
	Filter   string                // Optional: JMESPath expression selecting visible partitions
	Logger   *slog.Logger          // Optional: structured logger
}

// QueueService lists scheduler partitions, cached and filtered.
type QueueService struct {
	gateway core.SchedulerGateway
	cache   core.CacheRepository
	ttl     time.Duration
	filter  jmespath.JMESPath
	logger  *slog.Logger
}

// NewQueueService constructs a QueueService. An invalid filter expression is an error.
func NewQueueService(opts QueueServiceOptions) (*QueueService, error) {
	if opts.Gateway == nil {
		return nil, errors.New("SchedulerGateway is required")
	}

	var filter jmespath.JMESPath
	if expr := strings.TrimSpace(opts.Filter); expr != "" {
		compiled, err := jmespath.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("compile queue filter %q: %w", expr, err)
		}
		filter = compiled
	}

	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = DefaultQueueCacheTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &QueueService{
		gateway: opts.Gateway,
		cache:   opts.Cache,
		ttl:     ttl,
		filter:  filter,
		logger:  logger.With("component", "queue_service"),
	}, nil
}

// List returns the visible partitions. Cache failures fall through to the scheduler.
func (s *QueueService) List(ctx context.Context) ([]model.QueueInfo, error) {
	queues, ok := s.fromCache(ctx)
	if !ok {
		var err error
		queues, err = s.gateway.ListQueues(ctx)
		if err != nil {
			return nil, fmt.Errorf("list queues: %w", err)
		}
		s.store(ctx, queues)
	}
	return s.apply(queues)
}

func (s *QueueService) fromCache(ctx context.Context) ([]model.QueueInfo, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, QueueCacheKey)
	if err != nil {
		s.logger.WarnContext(ctx, "queue cache read failed", "error", err)
		return nil, false
	}
	if raw == nil {
		return nil, false
	}
	var queues []model.QueueInfo
	if err := json.Unmarshal(raw, &queues); err != nil {
		s.logger.WarnContext(ctx, "queue cache entry unreadable", "error", err)
		return nil, false
	}
	return queues, true
}

func (s *QueueService) store(ctx context.Context, queues []model.QueueInfo) {
	if s.cache == nil || len(queues) == 0 {
		return
	}
	raw, err := json.Marshal(queues)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, QueueCacheKey, raw, s.ttl); err != nil {
		s.logger.WarnContext(ctx, "queue cache write failed", "error", err)
	}
}

// apply runs the filter over the JSON form of queues. The expression must yield an array
// of partition objects, e.g. "[?state=='up']".
func (s *QueueService) apply(queues []model.QueueInfo) ([]model.QueueInfo, error) {
	if queues == nil {
		queues = []model.QueueInfo{}
	}
	if s.filter == nil {
		return queues, nil
	}

	raw, err := json.Marshal(queues)
	if err != nil {
		return nil, fmt.Errorf("encode queues: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode queues: %w", err)
	}

	result, err := s.filter.Search(doc)
	if err != nil {
		return nil, fmt.Errorf("apply queue filter: %w", err)
	}
	if result == nil {
		return []model.QueueInfo{}, nil
	}

	filtered, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode filtered queues: %w", err)
	}
	out := []model.QueueInfo{}
	if err := json.Unmarshal(filtered, &out); err != nil {
		return nil, fmt.Errorf("queue filter must select partition objects: %w", err)
	}
	return out, nil
}
