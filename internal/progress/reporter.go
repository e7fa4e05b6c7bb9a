package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	scrubhttp "github.com/eoln/scrub/internal/http"
)

// Options configures the progress reporter.
type Options struct {
	// Workers is the number of fetch workers (for display).
	Workers int

	// Output is where to write progress output.
	// Default: os.Stdout
	Output io.Writer

	// UpdateInterval is how often to update the progress display.
	// Default: 500ms
	UpdateInterval time.Duration

	// Target is the output location (for display).
	Target string
}

// Stats is a snapshot of the reporter's counters.
type Stats struct {
	Total      int
	Stored     int
	Skipped    int
	Failed     int
	Retried    int
	InProgress int
	Pending    int
	Bytes      int64
}

// Done returns the number of jobs that reached a final outcome.
func (s Stats) Done() int {
	return s.Stored + s.Skipped + s.Failed
}

// Reporter outputs human-readable progress information. The job
// callbacks are safe for concurrent use by the workers.
type Reporter struct {
	opts Options

	mu         sync.Mutex
	total      atomic.Int64
	stored     atomic.Int64
	skipped    atomic.Int64
	failed     atomic.Int64
	retried    atomic.Int64
	inProgress atomic.Int64
	pending    atomic.Int64
	bytes      atomic.Int64
	startTime  time.Time
	lastUpdate time.Time
	lastBytes  int64
	stopCh     chan struct{}
	doneCh     chan struct{}
	started    bool
	stopped    bool
}

// NewReporter creates a new progress reporter.
func NewReporter(opts Options) *Reporter {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.UpdateInterval == 0 {
		opts.UpdateInterval = 500 * time.Millisecond
	}

	return &Reporter{
		opts:   opts,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins outputting progress information.
func (r *Reporter) Start() {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return
	}
	r.started = true
	r.startTime = time.Now()
	r.lastUpdate = r.startTime
	r.mu.Unlock()

	fmt.Fprintf(r.opts.Output, "[scrub] Scraping into: %s | Workers: %d\n", r.opts.Target, r.opts.Workers)

	go r.updateLoop()
}

// Stop stops the progress reporter and prints the final status.
func (r *Reporter) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	started := r.started
	r.mu.Unlock()

	close(r.stopCh)
	if started {
		<-r.doneCh
	}
}

// Planned records the number of jobs in the run.
func (r *Reporter) Planned(total int) {
	r.total.Store(int64(total))
}

// JobStarted marks a job as in progress.
func (r *Reporter) JobStarted() {
	r.inProgress.Add(1)
}

// JobSkipped marks a job whose output already existed.
func (r *Reporter) JobSkipped() {
	r.skipped.Add(1)
	r.inProgress.Add(-1)
}

// JobStored marks a job as completed with size bytes written.
func (r *Reporter) JobStored(size int64, _ time.Duration) {
	r.bytes.Add(size)
	r.stored.Add(1)
	r.inProgress.Add(-1)
}

// JobFailed marks a job as given up (removes from in-progress).
func (r *Reporter) JobFailed(scrubhttp.Class) {
	r.failed.Add(1)
	r.inProgress.Add(-1)
}

// JobRetried marks a job that was put back on the queue.
func (r *Reporter) JobRetried() {
	r.retried.Add(1)
	r.inProgress.Add(-1)
}

// QueueDepth records the queue state.
func (r *Reporter) QueueDepth(pending, _ int) {
	r.pending.Store(int64(pending))
}

// Stats returns a snapshot of the counters.
func (r *Reporter) Stats() Stats {
	return Stats{
		Total:      int(r.total.Load()),
		Stored:     int(r.stored.Load()),
		Skipped:    int(r.skipped.Load()),
		Failed:     int(r.failed.Load()),
		Retried:    int(r.retried.Load()),
		InProgress: int(r.inProgress.Load()),
		Pending:    int(r.pending.Load()),
		Bytes:      r.bytes.Load(),
	}
}

// updateLoop periodically updates the progress display.
func (r *Reporter) updateLoop() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.opts.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			r.printFinalStatus()
			return
		case <-ticker.C:
			r.printProgress()
		}
	}
}

// printProgress outputs the current progress.
func (r *Reporter) printProgress() {
	now := time.Now()
	s := r.Stats()

	// Calculate speed
	elapsed := now.Sub(r.lastUpdate).Seconds()
	if elapsed < 0.1 {
		elapsed = 0.1
	}
	speed := float64(s.Bytes-r.lastBytes) / elapsed

	r.lastUpdate = now
	r.lastBytes = s.Bytes

	var percent float64
	if s.Total > 0 {
		percent = float64(s.Done()) / float64(s.Total) * 100
	}

	fmt.Fprintf(r.opts.Output, "\r[scrub] Progress: %.1f%% | %d / %d jobs | %s | Speed: %s/s    ",
		percent,
		s.Done(),
		s.Total,
		formatBytes(s.Bytes),
		formatBytes(int64(speed)),
	)
	fmt.Fprintf(r.opts.Output, "\n[scrub] Jobs: %d stored | %d skipped | %d failed | %d retried | %d in-progress | %d pending    \033[A",
		s.Stored,
		s.Skipped,
		s.Failed,
		s.Retried,
		s.InProgress,
		s.Pending,
	)
}

// printFinalStatus outputs the final status.
func (r *Reporter) printFinalStatus() {
	s := r.Stats()
	duration := time.Since(r.startTime)
	var avgSpeed float64
	if secs := duration.Seconds(); secs > 0 {
		avgSpeed = float64(s.Bytes) / secs
	}

	fmt.Fprintf(r.opts.Output, "\r[scrub] Progress: %d / %d jobs | %s | Complete!    \n",
		s.Done(),
		s.Total,
		formatBytes(s.Bytes),
	)
	fmt.Fprintf(r.opts.Output, "[scrub] Jobs: %d stored | %d skipped | %d failed | %d retried    \n",
		s.Stored,
		s.Skipped,
		s.Failed,
		s.Retried,
	)
	fmt.Fprintf(r.opts.Output, "[scrub] Total time: %s | Average speed: %s/s\n",
		formatDuration(duration),
		formatBytes(int64(avgSpeed)),
	)
}

// formatBytes formats bytes as a human-readable string.
func formatBytes(b int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
		TB = GB * 1024
	)

	switch {
	case b >= TB:
		return fmt.Sprintf("%.2f TB", float64(b)/float64(TB))
	case b >= GB:
		return fmt.Sprintf("%.2f GB", float64(b)/float64(GB))
	case b >= MB:
		return fmt.Sprintf("%.2f MB", float64(b)/float64(MB))
	case b >= KB:
		return fmt.Sprintf("%.2f KB", float64(b)/float64(KB))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// formatDuration formats a duration as a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}

// FormatBytes is exported for use by other packages.
func FormatBytes(b int64) string {
	return formatBytes(b)
}

// FormatDuration is exported for use by other packages.
func FormatDuration(d time.Duration) string {
	return formatDuration(d)
}
