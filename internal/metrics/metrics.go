package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	scrubhttp "github.com/eoln/scrub/internal/http"
)

const namespace = "scrub"

// Collector holds the scrape metrics. It registers with its own registry,
// so several collectors can coexist in one process.
type Collector struct {
	registry *prometheus.Registry

	jobsPlanned  prometheus.Gauge
	jobsStarted  prometheus.Counter
	jobsStored   prometheus.Counter
	jobsSkipped  prometheus.Counter
	jobsRetried  prometheus.Counter
	jobsFailed   *prometheus.CounterVec
	bytesStored  prometheus.Counter
	jobLatency   prometheus.Histogram
	jobsPending  prometheus.Gauge
	jobsInFlight prometheus.Gauge
}

// NewCollector creates a collector with all metrics registered.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		jobsPlanned: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_planned",
			Help:      "Number of jobs expanded for the current run",
		}),
		jobsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_started_total",
			Help:      "Total number of job attempts taken by workers",
		}),
		jobsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_stored_total",
			Help:      "Total number of jobs whose result was stored",
		}),
		jobsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_skipped_total",
			Help:      "Total number of jobs skipped because the output existed",
		}),
		jobsRetried: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_retried_total",
			Help:      "Total number of jobs re-enqueued after a timeout",
		}),
		jobsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_failed_total",
			Help:      "Total number of jobs given up, by error class",
		}, []string{"class"}),
		bytesStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_stored_total",
			Help:      "Total number of result bytes written",
		}),
		jobLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Time to fetch and store one result",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14),
		}),
		jobsPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_pending",
			Help:      "Current number of queued jobs",
		}),
		jobsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_in_flight",
			Help:      "Current number of jobs held by workers",
		}),
	}

	c.registry.MustRegister(
		c.jobsPlanned,
		c.jobsStarted,
		c.jobsStored,
		c.jobsSkipped,
		c.jobsRetried,
		c.jobsFailed,
		c.bytesStored,
		c.jobLatency,
		c.jobsPending,
		c.jobsInFlight,
	)
	return c
}

// Registry returns the registry the metrics are registered with.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Planned sets the number of jobs in the run.
func (c *Collector) Planned(total int) {
	c.jobsPlanned.Set(float64(total))
}

// JobStarted records a worker taking a job.
func (c *Collector) JobStarted() {
	c.jobsStarted.Inc()
}

// JobSkipped records a job whose output already existed.
func (c *Collector) JobSkipped() {
	c.jobsSkipped.Inc()
}

// JobStored records a stored result.
func (c *Collector) JobStored(size int64, elapsed time.Duration) {
	c.jobsStored.Inc()
	c.bytesStored.Add(float64(size))
	c.jobLatency.Observe(elapsed.Seconds())
}

// JobFailed records a job given up with the given error class.
func (c *Collector) JobFailed(class scrubhttp.Class) {
	c.jobsFailed.WithLabelValues(class.String()).Inc()
}

// JobRetried records a re-enqueued job.
func (c *Collector) JobRetried() {
	c.jobsRetried.Inc()
}

// QueueDepth updates the queue gauges.
func (c *Collector) QueueDepth(pending, inFlight int) {
	c.jobsPending.Set(float64(pending))
	c.jobsInFlight.Set(float64(inFlight))
}

// Handler returns an http.Handler serving the collector's metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Server exposes a collector on /metrics.
type Server struct {
	srv *http.Server
	ln  net.Listener
}

// Listen binds addr and prepares a server for c. Use Serve to start it.
func Listen(addr string, c *Collector) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	return &Server{
		srv: &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		ln:  ln,
	}, nil
}

// Addr returns the address the server listens on.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Serve serves until ctx is done, then shuts the server down.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.Serve(s.ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown metrics server: %w", err)
		}
		return nil
	}
}
