// Package pipeline runs download jobs against the metrics API with a fixed
// pool of workers.
//
// A run expands endpoints into jobs, feeds them to a shared queue in paced
// batches and lets Workers goroutines fetch and store them. The run ends
// when the queue is drained.
//
// # Usage
//
//	p := pipeline.New(st, pipeline.OptionsFromConfig(cfg))
//	summary, err := p.Run(ctx, endpoints)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(summary.Stored, summary.Skipped, summary.Failed())
//
// # Job outcomes
//
// Every job ends in exactly one outcome per attempt:
//
//	skipped    the output already exists, no request is made
//	stored     the CSV export was written
//	retried    the request timed out, the job goes back on the queue
//	abandoned  non-2xx status, malformed response or connection failure
//	dropped    any other error, including store write errors
//
// Only timeouts are retried. Each worker pauses for JobDelay after every
// job, and additionally for RetryDelay or ErrorDelay after a failure.
package pipeline
