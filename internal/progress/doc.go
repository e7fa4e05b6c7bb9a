// Package progress provides progress reporting for scrape runs.
//
// This package outputs human-readable progress information to stdout,
// including job completion, outcome counts and transfer speed.
//
// # Usage
//
//	reporter := progress.NewReporter(progress.Options{
//	    Workers: 18,
//	    Target:  "./data",
//	})
//
//	reporter.Start()
//	defer reporter.Stop()
//
//	// Workers report as jobs complete
//	reporter.JobStarted()
//	reporter.JobStored(n, elapsed)
//
// # Output Format
//
//	[scrub] Scraping into: ./data | Workers: 18
//	[scrub] Progress: 45.2% | 452 / 1000 jobs | 1.13 GB | Speed: 2.40 MB/s
//	[scrub] Jobs: 300 stored | 140 skipped | 12 failed | 3 retried | 18 in-progress | 530 pending
package progress
