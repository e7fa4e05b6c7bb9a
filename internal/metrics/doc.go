// Package metrics exposes scrape progress as Prometheus metrics.
//
// A Collector receives the same job callbacks as the terminal progress
// reporter and can be served on /metrics while a scrape runs:
//
//	scrub_jobs_planned          jobs expanded for the run
//	scrub_jobs_started_total    attempts taken by workers
//	scrub_jobs_stored_total     results written
//	scrub_jobs_skipped_total    outputs that already existed
//	scrub_jobs_retried_total    timeouts put back on the queue
//	scrub_jobs_failed_total     jobs given up, labelled by class
//	scrub_bytes_stored_total    result bytes written
//	scrub_job_duration_seconds  fetch and store time per result
//	scrub_jobs_pending          queued jobs
//	scrub_jobs_in_flight        jobs held by workers
//
// # Usage
//
//	collector := metrics.NewCollector()
//	srv, err := metrics.Listen(":9090", collector)
//	if err != nil {
//	    return err
//	}
//	go srv.Serve(ctx)
package metrics
