package pipeline

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/eoln/scrub/internal/catalog"
	"github.com/eoln/scrub/internal/config"
	scrubhttp "github.com/eoln/scrub/internal/http"
	"github.com/eoln/scrub/internal/jobs"
	"github.com/eoln/scrub/internal/logging"
	"github.com/eoln/scrub/internal/queue"
)

// Fetcher retrieves the CSV export of one job. *http.Client satisfies it.
type Fetcher interface {
	FetchCSV(ctx context.Context, path, symbol, resolution string) (io.ReadCloser, error)
}

// Store persists results. *store.Store satisfies it.
type Store interface {
	Exists(ctx context.Context, name string) (bool, error)
	Store(ctx context.Context, name string, r io.Reader) (int64, error)
}

// Options configures a Pipeline.
type Options struct {
	// Workers is the number of concurrent fetch workers.
	// Default: 18
	Workers int

	// JobDelay is the pause after each job before the worker takes the next.
	JobDelay time.Duration

	// RetryDelay is the pause after a timeout before the job is re-enqueued.
	RetryDelay time.Duration

	// ErrorDelay is the pause after a job is abandoned or dropped.
	ErrorDelay time.Duration

	// MaxTimeoutRetries caps how often one job is retried after timeouts.
	// Zero retries without limit.
	MaxTimeoutRetries int

	// Resolutions is the resolution preference order, finest first.
	Resolutions []string

	// Feed configures batching and pacing of the job feeder.
	Feed jobs.FeedOptions

	// Fetcher performs the requests. If nil, a client is built from HTTP
	// once there is at least one job to run.
	Fetcher Fetcher

	// HTTP configures the client built when Fetcher is nil.
	HTTP scrubhttp.Options

	// Observer receives job events. Optional.
	Observer Observer

	// Logger receives job and run logs.
	// Default: discard
	Logger *slog.Logger
}

// DefaultOptions returns options with the scraper's default pacing.
func DefaultOptions() Options {
	return OptionsFromConfig(config.Default())
}

// OptionsFromConfig maps a scraper configuration onto pipeline options.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		Workers:           cfg.Workers,
		JobDelay:          cfg.JobDelay,
		RetryDelay:        cfg.Retry.Delay,
		ErrorDelay:        cfg.Retry.ErrorDelay,
		MaxTimeoutRetries: cfg.Retry.MaxTimeoutRetries,
		Resolutions:       cfg.Resolutions,
		Feed: jobs.FeedOptions{
			BatchSize: cfg.BatchSize,
			Interval:  cfg.BatchInterval,
		},
		HTTP: scrubhttp.OptionsFromConfig(cfg),
	}
}

// Summary describes the outcome of one run.
type Summary struct {
	RunID     string
	Enqueued  int   // jobs expanded and fed to the queue
	Stored    int   // results written
	Skipped   int   // outputs that already existed
	Abandoned int   // protocol and transport failures, and capped timeouts
	Dropped   int   // unclassified failures
	Retried   int   // timeouts re-enqueued
	Bytes     int64 // result bytes written
	Pending   int   // queue pending after the run
	InFlight  int   // queue in-flight after the run
	Duration  time.Duration
}

// Failed returns the number of jobs that were given up.
func (s *Summary) Failed() int {
	return s.Abandoned + s.Dropped
}

// Pipeline expands endpoints into jobs and runs them to completion.
type Pipeline struct {
	store Store
	opts  Options
}

// New creates a pipeline writing results to st.
func New(st Store, opts Options) *Pipeline {
	if opts.Workers <= 0 {
		opts.Workers = config.Default().Workers
	}
	if opts.Observer == nil {
		opts.Observer = Observers()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &Pipeline{store: st, opts: opts}
}

// Run downloads every job derived from endpoints whose output does not yet
// exist. It returns once every job reached a final outcome. Individual job
// failures are logged and counted, never returned; Run fails only on
// malformed endpoints or cancellation.
func (p *Pipeline) Run(ctx context.Context, endpoints []catalog.Endpoint) (*Summary, error) {
	start := time.Now()
	list, err := jobs.Expand(endpoints, p.opts.Resolutions)
	if err != nil {
		return nil, err
	}

	summary := &Summary{RunID: uuid.NewString()}
	logger := p.opts.Logger.With("run_id", summary.RunID)

	if len(list) == 0 {
		logger.Info("no jobs to run", "endpoints", len(endpoints))
		return summary, nil
	}

	fetcher := p.opts.Fetcher
	if fetcher == nil {
		fetcher = scrubhttp.NewClient(p.opts.HTTP)
	}

	q := queue.New[attempt]()
	t := &tally{}
	summary.Enqueued = len(list)
	p.opts.Observer.Planned(len(list))

	logger.Info("run started",
		"endpoints", len(endpoints),
		"jobs", len(list),
		"workers", p.opts.Workers,
	)

	workCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()
	g, gctx := errgroup.WithContext(workCtx)

	for i := 0; i < p.opts.Workers; i++ {
		w := &worker{
			queue:    q,
			fetcher:  fetcher,
			store:    p.store,
			opts:     &p.opts,
			observer: p.opts.Observer,
			tally:    t,
			logger:   logger.With("worker", i),
		}
		g.Go(func() error {
			w.run(gctx)
			return nil
		})
	}

	fed := make(chan error, 1)
	g.Go(func() error {
		err := jobs.Feed(gctx, feedQueue{q}, list, p.opts.Feed)
		fed <- err
		return err
	})

	runErr := <-fed
	if runErr == nil {
		runErr = q.Join(gctx)
	}
	cancelWorkers()
	g.Wait()

	summary.Stored = int(t.stored.Load())
	summary.Skipped = int(t.skipped.Load())
	summary.Abandoned = int(t.abandoned.Load())
	summary.Dropped = int(t.dropped.Load())
	summary.Retried = int(t.retried.Load())
	summary.Bytes = t.bytes.Load()
	summary.Pending = q.Pending()
	summary.InFlight = q.InFlight()
	summary.Duration = time.Since(start)
	p.opts.Observer.QueueDepth(summary.Pending, summary.InFlight)

	if runErr != nil {
		logger.Warn("run interrupted", "error", runErr, "pending", summary.Pending)
		return summary, runErr
	}

	logger.Info("run finished",
		"stored", summary.Stored,
		"skipped", summary.Skipped,
		"abandoned", summary.Abandoned,
		"dropped", summary.Dropped,
		"retried", summary.Retried,
		"bytes", summary.Bytes,
		"duration", summary.Duration,
	)
	return summary, nil
}

// attempt is a queued job and the number of times it was retried.
type attempt struct {
	job     jobs.Job
	retries int
}

// feedQueue adapts the attempt queue to the feeder.
type feedQueue struct {
	q *queue.Queue[attempt]
}

func (f feedQueue) Put(j jobs.Job) {
	f.q.Put(attempt{job: j})
}

// tally counts job outcomes across workers.
type tally struct {
	stored    atomic.Int64
	skipped   atomic.Int64
	abandoned atomic.Int64
	dropped   atomic.Int64
	retried   atomic.Int64
	bytes     atomic.Int64
}
