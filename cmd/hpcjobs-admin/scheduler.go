package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/target/hpcjobs/internal/bootstrap"
	"github.com/target/hpcjobs/internal/core"
	"github.com/target/hpcjobs/internal/data"
	"github.com/target/hpcjobs/internal/domain/model"
	"github.com/target/hpcjobs/internal/service"
)

const defaultSchedulerTimeout = 2 * time.Minute

type queuesOptions struct {
	Filter    string
	NoFilter  bool
	JSON      bool
	UseCache  bool
	Timeout   time.Duration
	filterSet bool
}

func parseQueuesFlags(args []string) (queuesOptions, error) {
	fs := flag.NewFlagSet("queues", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := queuesOptions{Timeout: defaultSchedulerTimeout}
	fs.StringVar(&opts.Filter, "filter", "", "JMESPath expression overriding SLURM_QUEUE_FILTER")
	fs.BoolVar(&opts.NoFilter, "all", false, "Show every partition, ignoring the configured filter")
	fs.BoolVar(&opts.JSON, "json", false, "Print JSON instead of a table")
	fs.BoolVar(&opts.UseCache, "cached", false, "Read through the Redis partition cache")
	fs.DurationVar(&opts.Timeout, "timeout", defaultSchedulerTimeout, "Maximum duration of the scheduler call")

	if err := fs.Parse(args); err != nil {
		return queuesOptions{}, err
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "filter" {
			opts.filterSet = true
		}
	})
	if opts.NoFilter && opts.filterSet {
		return queuesOptions{}, errors.New("--all and --filter are mutually exclusive")
	}
	if opts.Timeout <= 0 {
		return queuesOptions{}, errors.New("--timeout must be greater than zero")
	}
	return opts, nil
}

func (o queuesOptions) effectiveFilter(configured string) string {
	switch {
	case o.NoFilter:
		return ""
	case o.filterSet:
		return o.Filter
	default:
		return configured
	}
}

func runQueues(cmdCtx *commandContext, args []string) error {
	opts, err := parseQueuesFlags(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, opts.Timeout)
	defer cancel()

	gw, err := bootstrap.BuildGateway(bootstrap.GatewayConfig{Slurm: cmdCtx.Config.Slurm, Logger: cmdCtx.Logger})
	if err != nil {
		return err
	}
	defer closeGateway(cmdCtx, gw)

	svcOpts := service.QueueServiceOptions{
		Gateway:  gw,
		CacheTTL: cmdCtx.Config.Slurm.QueueCacheTTL,
		Filter:   opts.effectiveFilter(cmdCtx.Config.Slurm.QueueFilter),
		Logger:   cmdCtx.Logger,
	}
	if opts.UseCache {
		redisClient, redisErr := bootstrap.ConnectRedis(bootstrap.DatabaseConfig{
			RedisConfig: cmdCtx.Config.Redis,
			Logger:      cmdCtx.Logger,
		})
		if redisErr != nil {
			return fmt.Errorf("connect redis: %w", redisErr)
		}
		defer func() {
			if closeErr := redisClient.Close(); closeErr != nil {
				cmdCtx.Logger.Warn("redis close failed", "error", closeErr)
			}
		}()
		svcOpts.Cache = data.NewRedisCacheRepo(redisClient)
	}

	queues, err := service.NewQueueService(svcOpts)
	if err != nil {
		return err
	}
	list, err := queues.List(ctx)
	if err != nil {
		return fmt.Errorf("list queues: %w", err)
	}

	if opts.JSON {
		return writeJSON(cmdCtx.Out, list)
	}
	return printQueues(cmdCtx.Out, list)
}

func printQueues(w io.Writer, queues []model.QueueInfo) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if err := writef(tw, "NAME\tSTATE\tNODES\tCPUS\tDEFAULT\n"); err != nil {
		return err
	}
	for _, q := range queues {
		def := ""
		if q.Default {
			def = "*"
		}
		if err := writef(tw, "%s\t%s\t%d\t%d\t%s\n", q.Name, q.State, q.Nodes, q.CPUs, def); err != nil {
			return err
		}
	}
	return tw.Flush()
}

type statusOptions struct {
	ExternalID string
	JSON       bool
	Timeout    time.Duration
}

func parseStatusFlags(args []string) (statusOptions, error) {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := statusOptions{Timeout: defaultSchedulerTimeout}
	fs.BoolVar(&opts.JSON, "json", false, "Print JSON instead of a table")
	fs.DurationVar(&opts.Timeout, "timeout", defaultSchedulerTimeout, "Maximum duration of the scheduler calls")

	if err := fs.Parse(args); err != nil {
		return statusOptions{}, err
	}
	if fs.NArg() != 1 {
		return statusOptions{}, errors.New("usage: hpcjobs-admin status [flags] <external-id>")
	}
	opts.ExternalID = strings.TrimSpace(fs.Arg(0))
	if _, err := strconv.ParseUint(opts.ExternalID, 10, 64); err != nil {
		return statusOptions{}, fmt.Errorf("external id must be a numeric slurm job id, got %q", fs.Arg(0))
	}
	if opts.Timeout <= 0 {
		return statusOptions{}, errors.New("--timeout must be greater than zero")
	}
	return opts, nil
}

func runStatus(cmdCtx *commandContext, args []string) error {
	opts, err := parseStatusFlags(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, opts.Timeout)
	defer cancel()

	gw, err := bootstrap.BuildGateway(bootstrap.GatewayConfig{Slurm: cmdCtx.Config.Slurm, Logger: cmdCtx.Logger})
	if err != nil {
		return err
	}
	defer closeGateway(cmdCtx, gw)

	status, err := gw.QueryStatus(ctx, opts.ExternalID)
	if err != nil {
		return fmt.Errorf("query status: %w", err)
	}

	view := newStatusView(opts.ExternalID, status)
	if opts.JSON {
		return writeJSON(cmdCtx.Out, view)
	}
	return printStatus(cmdCtx.Out, view)
}

type statusView struct {
	ExternalID string          `json:"external_id"`
	Status     model.JobStatus `json:"status"`
	StartTime  *time.Time      `json:"start_time,omitempty"`
	EndTime    *time.Time      `json:"end_time,omitempty"`
	ExitCode   *int            `json:"exit_code,omitempty"`
	Reason     string          `json:"reason,omitempty"`
}

func newStatusView(externalID string, s *model.SchedulerStatus) statusView {
	return statusView{
		ExternalID: externalID,
		Status:     s.Status,
		StartTime:  s.StartTime,
		EndTime:    s.EndTime,
		ExitCode:   s.ExitCode,
		Reason:     s.Reason,
	}
}

func printStatus(w io.Writer, v statusView) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	rows := [][2]string{
		{"External ID", v.ExternalID},
		{"Status", string(v.Status)},
		{"Started", formatTime(v.StartTime)},
		{"Ended", formatTime(v.EndTime)},
		{"Exit code", formatExitCode(v.ExitCode)},
	}
	if v.Reason != "" {
		rows = append(rows, [2]string{"Reason", v.Reason})
	}
	for _, row := range rows {
		if err := writef(tw, "%s:\t%s\n", row[0], row[1]); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func formatExitCode(code *int) string {
	if code == nil {
		return "-"
	}
	return strconv.Itoa(*code)
}

type reconcileOptions struct {
	Timeout time.Duration
	NoLock  bool
}

func parseReconcileFlags(args []string) (reconcileOptions, error) {
	fs := flag.NewFlagSet("reconcile", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := reconcileOptions{Timeout: defaultSchedulerTimeout}
	fs.DurationVar(&opts.Timeout, "timeout", defaultSchedulerTimeout, "Maximum duration of the poll cycle")
	fs.BoolVar(&opts.NoLock, "no-lock", false, "Skip the Redis cycle lock (only when no poller is running)")

	if err := fs.Parse(args); err != nil {
		return reconcileOptions{}, err
	}
	if opts.Timeout <= 0 {
		return reconcileOptions{}, errors.New("--timeout must be greater than zero")
	}
	return opts, nil
}

func runReconcile(cmdCtx *commandContext, args []string) error {
	opts, err := parseReconcileFlags(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, opts.Timeout)
	defer cancel()

	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{DBConfig: cmdCtx.Config.Postgres, Logger: cmdCtx.Logger})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", closeErr)
		}
	}()

	var lock core.CacheRepository
	if !opts.NoLock {
		redisClient, redisErr := bootstrap.ConnectRedis(bootstrap.DatabaseConfig{
			RedisConfig: cmdCtx.Config.Redis,
			Logger:      cmdCtx.Logger,
		})
		if redisErr != nil {
			return fmt.Errorf("connect redis (use --no-lock to skip): %w", redisErr)
		}
		defer func() {
			if closeErr := redisClient.Close(); closeErr != nil {
				cmdCtx.Logger.Warn("redis close failed", "error", closeErr)
			}
		}()
		lock = data.NewRedisCacheRepo(redisClient)
	}

	gw, err := bootstrap.BuildGateway(bootstrap.GatewayConfig{Slurm: cmdCtx.Config.Slurm, Logger: cmdCtx.Logger})
	if err != nil {
		return err
	}
	defer closeGateway(cmdCtx, gw)

	runner, err := bootstrap.NewPollerRunner(bootstrap.PollerConfig{
		DB:      db,
		Gateway: gw,
		Lock:    lock,
		Logger:  cmdCtx.Logger,
		Config:  cmdCtx.Config.Poller,
	})
	if err != nil {
		return err
	}

	stats, err := runner.PollOnce(ctx)
	if err != nil {
		return fmt.Errorf("poll cycle: %w", err)
	}
	return printCycleStats(cmdCtx.Out, stats)
}

func printCycleStats(w io.Writer, stats service.CycleStats) error {
	if stats.Skipped {
		return writef(w, "Cycle skipped: another poller holds the lock.\n")
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	rows := []struct {
		label string
		value string
	}{
		{"Active jobs", strconv.Itoa(stats.Active)},
		{"Processed", strconv.Itoa(stats.Processed)},
		{"Transitioned", strconv.Itoa(stats.Transitioned)},
		{"Without scheduler id", strconv.Itoa(stats.NoHandle)},
		{"Errors", strconv.Itoa(stats.Errors)},
		{"Elapsed", stats.Elapsed.Round(time.Millisecond).String()},
	}
	for _, row := range rows {
		if err := writef(tw, "%s:\t%s\n", row.label, row.value); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func closeGateway(cmdCtx *commandContext, gw *bootstrap.Gateway) {
	if err := gw.Close(); err != nil {
		cmdCtx.Logger.Warn("scheduler connection close failed", "error", err)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
