package jobs

import (
	"context"
	"math/rand"
	"time"

	"golang.org/x/time/rate"
)

// Enqueuer accepts jobs from the feeder.
type Enqueuer interface {
	Put(Job)
}

// Pacer blocks until the next batch may be released.
// *rate.Limiter satisfies it.
type Pacer interface {
	Wait(ctx context.Context) error
}

// FeedOptions configures Feed.
type FeedOptions struct {
	// BatchSize is the number of jobs released at once.
	// Default: 8
	BatchSize int

	// Interval separates consecutive batches when Pacer is nil.
	// Default: 500ms
	Interval time.Duration

	// Pacer gates each batch. The first Wait should return immediately.
	// Default: a rate limiter with one token per Interval and burst 1
	Pacer Pacer

	// Shuffle reorders jobs in place before batching.
	// Default: uniform shuffle via math/rand/v2
	Shuffle func([]Job)
}

// DefaultFeedOptions returns options with sensible defaults.
func DefaultFeedOptions() FeedOptions {
	return FeedOptions{
		BatchSize: 8,
		Interval:  500 * time.Millisecond,
	}
}

// Feed shuffles a copy of jobs and releases them to q in paced batches.
// It returns nil once the last batch is enqueued, or the context error if
// ctx is cancelled first. jobs is not modified.
func Feed(ctx context.Context, q Enqueuer, jobs []Job, opts FeedOptions) error {
	defaults := DefaultFeedOptions()
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaults.BatchSize
	}
	if opts.Interval <= 0 {
		opts.Interval = defaults.Interval
	}
	if opts.Pacer == nil {
		opts.Pacer = rate.NewLimiter(rate.Every(opts.Interval), 1)
	}
	if opts.Shuffle == nil {
		opts.Shuffle = shuffle
	}

	order := make([]Job, len(jobs))
	copy(order, jobs)
	opts.Shuffle(order)

	for start := 0; start < len(order); start += opts.BatchSize {
		if err := opts.Pacer.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return err
		}
		end := min(start+opts.BatchSize, len(order))
		for _, j := range order[start:end] {
			q.Put(j)
		}
	}
	return nil
}

func shuffle(jobs []Job) {
	rand.Shuffle(len(jobs), func(i, k int) {
		jobs[i], jobs[k] = jobs[k], jobs[i]
	})
}
