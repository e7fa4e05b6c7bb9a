package jobs

import (
	"fmt"
	"slices"
	"strings"

	"github.com/eoln/scrub/internal/catalog"
)

// ErrMalformedEndpoint is returned by Expand for endpoints it cannot turn
// into jobs. It is the same error catalog.Decode reports.
var ErrMalformedEndpoint = catalog.ErrMalformed

// Job is one (dataset path, asset, resolution) download.
type Job struct {
	Path       string
	Symbol     string
	Resolution string
}

func (j Job) String() string {
	return fmt.Sprintf("%s?a=%s&i=%s", j.Path, j.Symbol, j.Resolution)
}

// Filename returns the output file name of the job.
//
// Path segments are joined with "-", then path, symbol and resolution are
// joined with ".". Within each piece "%", "-" and "." are percent-escaped,
// which keeps distinct jobs on distinct files while leaving ordinary API
// names untouched: /v1/metrics/x, BTC, 24h becomes v1-metrics-x.BTC.24h.csv.
func (j Job) Filename() string {
	segments := strings.Split(strings.TrimPrefix(j.Path, "/"), "/")
	for i, s := range segments {
		segments[i] = escape(s)
	}
	return strings.Join(segments, "-") + "." + escape(j.Symbol) + "." + escape(j.Resolution) + ".csv"
}

var escaper = strings.NewReplacer("%", "%25", "-", "%2D", ".", "%2E")

func escape(s string) string {
	return escaper.Replace(s)
}

// PickResolution returns the first preferred resolution the endpoint
// offers. If none match, the endpoint's first resolution is used, and an
// endpoint without resolutions yields "".
func PickResolution(prefs, available []string) string {
	for _, p := range prefs {
		if slices.Contains(available, p) {
			return p
		}
	}
	if len(available) > 0 {
		return available[0]
	}
	return ""
}

// Expand produces one job per endpoint and asset, at the resolution chosen
// by PickResolution. Endpoints are visited in order and assets in listed
// order.
func Expand(endpoints []catalog.Endpoint, prefs []string) ([]Job, error) {
	var jobs []Job
	for i, e := range endpoints {
		switch {
		case !strings.HasPrefix(e.Path, "/"):
			return nil, fmt.Errorf("%w: endpoint %d: path %q is not absolute", ErrMalformedEndpoint, i, e.Path)
		case e.Assets == nil:
			return nil, fmt.Errorf("%w: endpoint %d (%s): missing assets", ErrMalformedEndpoint, i, e.Path)
		case e.Resolutions == nil:
			return nil, fmt.Errorf("%w: endpoint %d (%s): missing resolutions", ErrMalformedEndpoint, i, e.Path)
		}

		resolution := PickResolution(prefs, e.Resolutions)
		for _, a := range e.Assets {
			jobs = append(jobs, Job{Path: e.Path, Symbol: a.Symbol, Resolution: resolution})
		}
	}
	return jobs, nil
}
