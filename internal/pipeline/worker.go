package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	scrubhttp "github.com/eoln/scrub/internal/http"
	"github.com/eoln/scrub/internal/jobs"
	"github.com/eoln/scrub/internal/queue"
)

// worker takes jobs off the queue one at a time until its context is
// cancelled.
type worker struct {
	queue    *queue.Queue[attempt]
	fetcher  Fetcher
	store    Store
	opts     *Options
	observer Observer
	tally    *tally
	logger   *slog.Logger
}

func (w *worker) run(ctx context.Context) {
	for {
		a, err := w.queue.Take(ctx)
		if err != nil {
			return
		}
		w.handle(ctx, a)
	}
}

// handle processes one queue entry and acknowledges it exactly once.
func (w *worker) handle(ctx context.Context, a attempt) {
	defer func() {
		sleep(ctx, w.opts.JobDelay)
		w.queue.Done()
		w.observer.QueueDepth(w.queue.Pending(), w.queue.InFlight())
	}()

	job := a.job
	logger := w.logger.With("path", job.Path, "symbol", job.Symbol, "resolution", job.Resolution)
	name := job.Filename()

	w.observer.JobStarted()

	exists, err := w.store.Exists(ctx, name)
	if err == nil && exists {
		logger.Info("skipped, output exists", "file", name)
		w.tally.skipped.Add(1)
		w.observer.JobSkipped()
		return
	}

	start := time.Now()
	var n int64
	if err == nil {
		n, err = w.fetch(ctx, job, name)
	}
	if err == nil {
		logger.Info("stored", "file", name, "bytes", n, "attempt", a.retries+1)
		w.tally.stored.Add(1)
		w.tally.bytes.Add(n)
		w.observer.JobStored(n, time.Since(start))
		return
	}

	if ctx.Err() != nil {
		logger.Debug("job interrupted", "error", err)
		w.observer.JobFailed(scrubhttp.ClassCanceled)
		return
	}

	w.fail(ctx, logger, a, err)
}

// fetch requests the job's CSV export and streams it into the store.
func (w *worker) fetch(ctx context.Context, job jobs.Job, name string) (int64, error) {
	body, err := w.fetcher.FetchCSV(ctx, job.Path, job.Symbol, job.Resolution)
	if err != nil {
		return 0, fmt.Errorf("fetch %s: %w", job, err)
	}
	defer body.Close()

	n, err := w.store.Store(ctx, name, body)
	if err != nil {
		return n, fmt.Errorf("store %s: %w", name, err)
	}
	return n, nil
}

// fail applies the retry policy for err's class. Only timeouts are retried.
func (w *worker) fail(ctx context.Context, logger *slog.Logger, a attempt, err error) {
	class := scrubhttp.Classify(err)
	switch class {
	case scrubhttp.ClassTimeout:
		if w.opts.MaxTimeoutRetries > 0 && a.retries >= w.opts.MaxTimeoutRetries {
			logger.Error("timed out, giving up", "attempts", a.retries+1, "error", err)
			w.tally.abandoned.Add(1)
			w.observer.JobFailed(class)
			return
		}
		logger.Warn("timed out, retrying", "attempt", a.retries+1, "error", err)
		if sleep(ctx, w.opts.RetryDelay) != nil {
			w.observer.JobFailed(scrubhttp.ClassCanceled)
			return
		}
		// Put before the deferred Done so the queue never looks drained
		// between the failed attempt and its retry.
		w.queue.Put(attempt{job: a.job, retries: a.retries + 1})
		w.tally.retried.Add(1)
		w.observer.JobRetried()

	case scrubhttp.ClassProtocol, scrubhttp.ClassTransport:
		attrs := []any{"class", class.String(), "error", err}
		var statusErr *scrubhttp.StatusError
		if errors.As(err, &statusErr) {
			attrs = append(attrs, "status", statusErr.Code)
		}
		logger.Error("request failed", attrs...)
		sleep(ctx, w.opts.ErrorDelay)
		w.tally.abandoned.Add(1)
		w.observer.JobFailed(class)

	default:
		logger.Error("job failed", "error", err)
		sleep(ctx, w.opts.ErrorDelay)
		w.tally.dropped.Add(1)
		w.observer.JobFailed(scrubhttp.ClassUnknown)
	}
}

// sleep pauses for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
