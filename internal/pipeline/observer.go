package pipeline

import (
	"time"

	scrubhttp "github.com/eoln/scrub/internal/http"
)

// Observer receives job lifecycle events from the workers. Every
// JobStarted is followed by exactly one of JobSkipped, JobStored,
// JobFailed or JobRetried. Implementations must be safe for concurrent use.
type Observer interface {
	Planned(total int)
	JobStarted()
	JobSkipped()
	JobStored(size int64, elapsed time.Duration)
	JobFailed(class scrubhttp.Class)
	JobRetried()
	QueueDepth(pending, inFlight int)
}

// Observers fans events out to several observers. Nil entries are ignored.
func Observers(observers ...Observer) Observer {
	var m multiObserver
	for _, o := range observers {
		if o != nil {
			m = append(m, o)
		}
	}
	return m
}

type multiObserver []Observer

func (m multiObserver) Planned(total int) {
	for _, o := range m {
		o.Planned(total)
	}
}

func (m multiObserver) JobStarted() {
	for _, o := range m {
		o.JobStarted()
	}
}

func (m multiObserver) JobSkipped() {
	for _, o := range m {
		o.JobSkipped()
	}
}

func (m multiObserver) JobStored(size int64, elapsed time.Duration) {
	for _, o := range m {
		o.JobStored(size, elapsed)
	}
}

func (m multiObserver) JobFailed(class scrubhttp.Class) {
	for _, o := range m {
		o.JobFailed(class)
	}
}

func (m multiObserver) JobRetried() {
	for _, o := range m {
		o.JobRetried()
	}
}

func (m multiObserver) QueueDepth(pending, inFlight int) {
	for _, o := range m {
		o.QueueDepth(pending, inFlight)
	}
}
