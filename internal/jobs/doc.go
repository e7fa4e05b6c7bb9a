// Package jobs turns endpoint descriptors into download jobs and releases
// them to a work queue at a fixed pace.
//
// A job is the triple (dataset path, asset symbol, resolution). Each job
// maps to exactly one output file, see [Job.Filename]; distinct jobs never
// share a file.
//
// # Usage
//
//	list, err := jobs.Expand(endpoints, []string{"10m", "1h", "24h"})
//	if err != nil {
//	    return err // jobs.ErrMalformedEndpoint
//	}
//
//	err = jobs.Feed(ctx, queue, list, jobs.FeedOptions{
//	    BatchSize: 8,
//	    Interval:  500 * time.Millisecond,
//	})
//
// # Pacing
//
// Feed shuffles the jobs to spread load across datasets, then waits on a
// [Pacer] before each batch. The default pacer releases the first batch
// immediately and one batch per interval after that.
package jobs
