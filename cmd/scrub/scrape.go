package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/eoln/scrub/internal/catalog"
	"github.com/eoln/scrub/internal/config"
	"github.com/eoln/scrub/internal/metrics"
	"github.com/eoln/scrub/internal/pipeline"
	"github.com/eoln/scrub/internal/progress"
	"github.com/eoln/scrub/internal/store"
)

// lockFileName guards a local output directory against concurrent runs.
const lockFileName = ".scrub.lock"

func newScrapeCommand(cc *commandContext) *cobra.Command {
	var (
		workers           int
		batchSize         int
		batchInterval     time.Duration
		jobDelay          time.Duration
		retryDelay        time.Duration
		maxTimeoutRetries int
		showProgress      bool
		metricsAddr       string
	)

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Download every endpoint in the stored catalog",
		Long: `Download the CSV export of every (endpoint, asset) pair listed in the
stored endpoints.json at the preferred resolution. Files that already
exist are skipped, so an interrupted scrape can simply be run again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			cfg := &cc.cfg
			if flags.Changed("workers") {
				cfg.Workers = workers
			}
			if flags.Changed("batch-size") {
				cfg.BatchSize = batchSize
			}
			if flags.Changed("batch-interval") {
				cfg.BatchInterval = batchInterval
			}
			if flags.Changed("job-delay") {
				cfg.JobDelay = jobDelay
			}
			if flags.Changed("retry-delay") {
				cfg.Retry.Delay = retryDelay
			}
			if flags.Changed("max-timeout-retries") {
				cfg.Retry.MaxTimeoutRetries = maxTimeoutRetries
			}
			if flags.Changed("metrics-addr") {
				cfg.MetricsAddr = metricsAddr
			}
			if flags.Changed("progress") {
				cfg.Progress = showProgress
			} else if !cfg.Progress {
				cfg.Progress = isTerminal(cc.stdout)
			}
			if err := cc.validate(); err != nil {
				return err
			}
			return runScrape(cmd.Context(), cc)
		},
	}

	defaults := config.Default()
	cmd.Flags().IntVarP(&workers, "workers", "w", defaults.Workers, "Number of concurrent fetch workers")
	cmd.Flags().IntVar(&batchSize, "batch-size", defaults.BatchSize, "Jobs released to the workers per batch")
	cmd.Flags().DurationVar(&batchInterval, "batch-interval", defaults.BatchInterval, "Pause between batches")
	cmd.Flags().DurationVar(&jobDelay, "job-delay", defaults.JobDelay, "Pause after each job")
	cmd.Flags().DurationVar(&retryDelay, "retry-delay", defaults.Retry.Delay, "Pause before re-enqueueing a timed out job")
	cmd.Flags().IntVar(&maxTimeoutRetries, "max-timeout-retries", 0, "Give up on a job after this many timeouts (0 retries forever)")
	cmd.Flags().BoolVar(&showProgress, "progress", false, "Show progress (default on when stdout is a terminal)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")

	return cmd
}

func runScrape(ctx context.Context, cc *commandContext) error {
	cfg := cc.cfg
	logger := cc.logger

	st, err := store.Open(ctx, cfg.Output)
	if err != nil {
		return withCode(ExitStorageError, err)
	}
	defer st.Close()

	if dir := st.Dir(); dir != "" {
		lock := flock.New(filepath.Join(dir, lockFileName))
		ok, err := lock.TryLock()
		if err != nil {
			return withCode(ExitStorageError, fmt.Errorf("acquire output lock: %w", err))
		}
		if !ok {
			return withCode(ExitOutputLocked, fmt.Errorf("output %s is in use by another scrub run", dir))
		}
		defer lock.Unlock()
	}

	endpoints, err := catalog.Load(ctx, st)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return withCode(ExitStorageError, fmt.Errorf("%w; run 'scrub endpoints' first", err))
		}
		if errors.Is(err, catalog.ErrMalformed) {
			return withCode(ExitGeneralError, err)
		}
		return withCode(ExitStorageError, err)
	}

	opts := pipeline.OptionsFromConfig(cfg)
	opts.Logger = logger

	collector := metrics.NewCollector()
	observers := []pipeline.Observer{collector}

	if cfg.MetricsAddr != "" {
		srv, err := metrics.Listen(cfg.MetricsAddr, collector)
		if err != nil {
			return withCode(ExitGeneralError, err)
		}
		serveCtx, stopServe := context.WithCancel(ctx)
		defer stopServe()
		go func() {
			if err := srv.Serve(serveCtx); err != nil {
				logger.Warn("metrics server stopped", "error", err)
			}
		}()
		logger.Info("serving metrics", "addr", srv.Addr())
	}

	var reporter *progress.Reporter
	if cfg.Progress {
		reporter = progress.NewReporter(progress.Options{
			Workers: cfg.Workers,
			Output:  cc.stdout,
			Target:  cfg.Output,
		})
		reporter.Start()
		defer reporter.Stop()
		observers = append(observers, reporter)
	}
	opts.Observer = pipeline.Observers(observers...)

	summary, err := pipeline.New(st, opts).Run(ctx, endpoints)
	if reporter != nil {
		reporter.Stop()
	}
	if summary != nil {
		fmt.Fprintln(cc.stdout, renderSummary(summary))
	}
	if err != nil {
		return withCode(ExitGeneralError, err)
	}
	return nil
}

func renderSummary(s *pipeline.Summary) string {
	rows := [][]string{
		{"Jobs", strconv.Itoa(s.Enqueued)},
		{"Stored", strconv.Itoa(s.Stored)},
		{"Skipped", strconv.Itoa(s.Skipped)},
		{"Abandoned", strconv.Itoa(s.Abandoned)},
		{"Dropped", strconv.Itoa(s.Dropped)},
		{"Timeout retries", strconv.Itoa(s.Retried)},
		{"Written", progress.FormatBytes(s.Bytes)},
		{"Duration", progress.FormatDuration(s.Duration)},
	}
	return renderTable([]string{"Run " + s.RunID, ""}, rows, []columnAlignment{alignLeft, alignRight})
}
