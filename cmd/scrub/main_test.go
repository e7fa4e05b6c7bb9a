package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eoln/scrub/internal/catalog"
	scrubhttp "github.com/eoln/scrub/internal/http"
	"github.com/eoln/scrub/internal/pipeline"
)

const catalogJSON = `[
	{"path": "/v1/metrics/x", "tier": 1, "assets": [{"symbol": "BTC"}, {"symbol": "ETH"}], "resolutions": ["24h", "1w"], "formats": ["csv"]},
	{"path": "/v1/metrics/y", "tier": 2, "assets": [{"symbol": "BTC"}], "resolutions": ["24h"]}
]`

// mockAPI serves the catalog and a CSV body per request.
type mockAPI struct {
	*httptest.Server
	csvRequests atomic.Int64
}

func startMockAPI(t *testing.T) *mockAPI {
	t.Helper()
	m := &mockAPI{}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(scrubhttp.APIKeyHeader) != "test-key" {
			http.Error(w, "invalid api key", http.StatusUnauthorized)
			return
		}
		if r.URL.Path == catalog.EndpointsPath {
			fmt.Fprint(w, catalogJSON)
			return
		}
		m.csvRequests.Add(1)
		q := r.URL.Query()
		fmt.Fprintf(w, "t,v\n1600000000,%s-%s-%s\n", r.URL.Path, q.Get("a"), q.Get("i"))
	}))
	t.Cleanup(m.Close)
	return m
}

func setEnv(t *testing.T, host string) {
	t.Helper()
	t.Setenv("SCRUB_HOST", host)
	t.Setenv("GLASSNODE_API_KEY", "")
	t.Setenv("SCRUB_API_KEY", "")
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func fastScrape(outdir string) []string {
	return []string{
		"--apikey", "test-key", "--outdir", outdir,
		"scrape", "--batch-interval", "1ms", "--job-delay", "0s", "--progress=false",
	}
}

func TestHelp(t *testing.T) {
	code, stdout, _ := runCLI(t)
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "endpoints")
	assert.Contains(t, stdout, "scrape")
}

func TestEndpointsAndScrape(t *testing.T) {
	api := startMockAPI(t)
	setEnv(t, api.URL)
	outdir := filepath.Join(t.TempDir(), "data")

	code, stdout, stderr := runCLI(t, "--apikey", "test-key", "--outdir", outdir, "endpoints", "-a", "BTC", "--show")
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Contains(t, stdout, "/v1/metrics/x")
	assert.Contains(t, stdout, "Stored 2 endpoints")

	data, err := os.ReadFile(filepath.Join(outdir, catalog.FileName))
	require.NoError(t, err)
	var stored []catalog.Endpoint
	require.NoError(t, json.Unmarshal(data, &stored))
	require.Len(t, stored, 2)
	assert.Equal(t, []catalog.Asset{{Symbol: "BTC"}}, stored[0].Assets)
	assert.JSONEq(t, `["csv"]`, string(stored[0].Extra["formats"]))

	code, stdout, stderr = runCLI(t, fastScrape(outdir)...)
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Contains(t, stdout, "Stored")
	assert.Equal(t, int64(2), api.csvRequests.Load())

	csv, err := os.ReadFile(filepath.Join(outdir, "v1-metrics-x.BTC.24h.csv"))
	require.NoError(t, err)
	assert.Equal(t, "t,v\n1600000000,/v1/metrics/x-BTC-24h\n", string(csv))
	assert.FileExists(t, filepath.Join(outdir, "v1-metrics-y.BTC.24h.csv"))

	// A second scrape finds everything on disk.
	code, _, stderr = runCLI(t, fastScrape(outdir)...)
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Equal(t, int64(2), api.csvRequests.Load())
	assert.Contains(t, stderr, "skipped")
}

func TestScrapeWithoutCatalog(t *testing.T) {
	api := startMockAPI(t)
	setEnv(t, api.URL)

	code, _, stderr := runCLI(t, fastScrape(t.TempDir())...)
	assert.Equal(t, ExitStorageError, code)
	assert.Contains(t, stderr, "scrub endpoints")
}

func TestScrapeOutputLocked(t *testing.T) {
	api := startMockAPI(t)
	setEnv(t, api.URL)
	outdir := t.TempDir()

	lock := flock.New(filepath.Join(outdir, lockFileName))
	ok, err := lock.TryLock()
	require.NoError(t, err)
	require.True(t, ok)
	defer lock.Unlock()

	code, _, stderr := runCLI(t, fastScrape(outdir)...)
	assert.Equal(t, ExitOutputLocked, code)
	assert.Contains(t, stderr, "in use")
}

func TestMissingAPIKey(t *testing.T) {
	api := startMockAPI(t)
	setEnv(t, api.URL)

	code, _, stderr := runCLI(t, "--outdir", t.TempDir(), "endpoints")
	assert.Equal(t, ExitInvalidArgs, code)
	assert.Contains(t, stderr, "api key")
}

func TestAPIKeyFromEnv(t *testing.T) {
	api := startMockAPI(t)
	setEnv(t, api.URL)
	t.Setenv("GLASSNODE_API_KEY", "test-key")

	code, _, stderr := runCLI(t, "--outdir", t.TempDir(), "endpoints")
	assert.Equal(t, ExitSuccess, code, stderr)
}

func TestEndpointsUnauthorized(t *testing.T) {
	api := startMockAPI(t)
	setEnv(t, api.URL)

	code, _, stderr := runCLI(t, "--apikey", "wrong", "--outdir", t.TempDir(), "endpoints")
	assert.Equal(t, ExitAPIUnreachable, code)
	assert.Contains(t, stderr, "401")
}

func TestEndpointsInvalidPattern(t *testing.T) {
	api := startMockAPI(t)
	setEnv(t, api.URL)

	code, _, _ := runCLI(t, "--apikey", "test-key", "--outdir", t.TempDir(), "endpoints", "-p", "(")
	assert.Equal(t, ExitInvalidArgs, code)
}

func TestInvalidFlags(t *testing.T) {
	setEnv(t, "http://127.0.0.1:1")

	tests := [][]string{
		{"scrape", "--workers", "many"},
		{"--unknown"},
		{"endpoints", "extra-arg"},
		{"nope"},
	}

	for _, args := range tests {
		code, _, _ := runCLI(t, args...)
		assert.Equal(t, ExitInvalidArgs, code, strings.Join(args, " "))
	}
}

func TestConfigFile(t *testing.T) {
	api := startMockAPI(t)
	setEnv(t, "")
	outdir := filepath.Join(t.TempDir(), "out")

	path := filepath.Join(t.TempDir(), "scrub.yaml")
	content := fmt.Sprintf("host: %s\napi_key: test-key\noutput: %s\nlog_format: json\n", api.URL, outdir)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	code, _, stderr := runCLI(t, "--config", path, "endpoints")
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Contains(t, stderr, `"msg":"stored endpoint catalog"`)
	assert.FileExists(t, filepath.Join(outdir, catalog.FileName))
}

func TestRenderEndpoints(t *testing.T) {
	out := renderEndpoints([]catalog.Endpoint{
		{Path: "/v1/metrics/x", Tier: 1, Assets: []catalog.Asset{{Symbol: "BTC"}}, Resolutions: []string{"24h", "1h"}},
	}, []string{"1h"})
	assert.Contains(t, out, "/v1/metrics/x")
	assert.Contains(t, out, "1h")
}

func TestRenderSummary(t *testing.T) {
	out := renderSummary(&pipeline.Summary{RunID: "run-1", Enqueued: 3, Stored: 2, Abandoned: 1, Bytes: 2048})
	assert.Contains(t, out, "Run run-1")
	assert.Contains(t, out, "2.00 KB")
	assert.Contains(t, out, "Abandoned")
}
