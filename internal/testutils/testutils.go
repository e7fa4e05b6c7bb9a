//go:build integration

// Package testutils provides shared test infrastructure for integration tests.
package testutils

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gocloud.dev/blob"
)

// APIKey is the key the mock API accepts.
const APIKey = "integration-key"

// Dataset is one endpoint served by the mock API.
type Dataset struct {
	Path        string
	Tier        int
	Symbols     []string
	Resolutions []string
}

// MockAPI is a metrics API double serving a catalog and generated CSV data.
type MockAPI struct {
	*httptest.Server

	mu       sync.Mutex
	requests map[string]int
}

// Requests returns the number of CSV requests for path and symbol.
func (m *MockAPI) Requests(path, symbol string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[path+"?a="+symbol]
}

// TotalRequests returns the number of CSV requests served.
func (m *MockAPI) TotalRequests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.requests {
		n += c
	}
	return n
}

// CSV returns the body the mock API serves for one request.
func CSV(path, symbol, resolution string) string {
	return fmt.Sprintf("t,v\n1600000000,%s %s %s\n1600086400,42\n", path, symbol, resolution)
}

// StartMockAPI starts an HTTP server that serves the endpoint catalog at
// /v2/metrics/endpoints and a CSV export for every dataset path.
func StartMockAPI(t *testing.T, datasets []Dataset) *MockAPI {
	t.Helper()

	type asset struct {
		Symbol string `json:"symbol"`
	}
	type endpoint struct {
		Path        string   `json:"path"`
		Tier        int      `json:"tier"`
		Assets      []asset  `json:"assets"`
		Resolutions []string `json:"resolutions"`
	}

	catalog := make([]endpoint, 0, len(datasets))
	known := make(map[string]bool)
	for _, d := range datasets {
		e := endpoint{Path: d.Path, Tier: d.Tier, Assets: []asset{}, Resolutions: d.Resolutions}
		for _, s := range d.Symbols {
			e.Assets = append(e.Assets, asset{Symbol: s})
		}
		catalog = append(catalog, e)
		known[d.Path] = true
	}
	catalogJSON, err := json.Marshal(catalog)
	if err != nil {
		t.Fatalf("encode catalog: %v", err)
	}

	m := &MockAPI{requests: make(map[string]int)}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != APIKey {
			http.Error(w, "invalid api key", http.StatusUnauthorized)
			return
		}

		if r.URL.Path == "/v2/metrics/endpoints" {
			w.Header().Set("Content-Type", "application/json")
			w.Write(catalogJSON)
			return
		}

		if !known[r.URL.Path] {
			http.NotFound(w, r)
			return
		}

		q := r.URL.Query()
		m.mu.Lock()
		m.requests[r.URL.Path+"?a="+q.Get("a")]++
		m.mu.Unlock()

		w.Header().Set("Content-Type", "text/csv")
		fmt.Fprint(w, CSV(r.URL.Path, q.Get("a"), q.Get("i")))
	}))
	t.Cleanup(m.Close)
	return m
}

// MinioEnv contains connection information for a Minio test environment.
type MinioEnv struct {
	Container testcontainers.Container
	BucketURL string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// Close terminates the Minio container.
func (e *MinioEnv) Close(ctx context.Context) error {
	if e.Container != nil {
		return e.Container.Terminate(ctx)
	}
	return nil
}

// OpenBucket opens a gocloud bucket connection to the Minio environment.
func (e *MinioEnv) OpenBucket(ctx context.Context) (*blob.Bucket, error) {
	return blob.OpenBucket(ctx, e.BucketURL)
}

// StartMinioContainer starts a Minio container with a pre-created bucket.
func StartMinioContainer(t *testing.T, ctx context.Context, bucketName string) *MinioEnv {
	t.Helper()

	const (
		accessKey = "minioadmin"
		secretKey = "minioadmin"
	)

	networkName := fmt.Sprintf("scrub-test-net-%d", time.Now().UnixNano())
	network, err := testcontainers.GenericNetwork(ctx, testcontainers.GenericNetworkRequest{
		NetworkRequest: testcontainers.NetworkRequest{
			Name: networkName,
		},
	})
	if err != nil {
		t.Fatalf("create network: %v", err)
	}
	t.Cleanup(func() { network.Remove(ctx) })

	minioContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "minio/minio:latest",
			ExposedPorts: []string{"9000/tcp"},
			Networks:     []string{networkName},
			NetworkAliases: map[string][]string{
				networkName: {"minio"},
			},
			Env: map[string]string{
				"MINIO_ROOT_USER":     accessKey,
				"MINIO_ROOT_PASSWORD": secretKey,
			},
			Cmd:        []string{"server", "/data"},
			WaitingFor: wait.ForHTTP("/minio/health/ready").WithPort("9000"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start minio container: %v", err)
	}

	createBucket(t, ctx, networkName, accessKey, secretKey, bucketName)

	host, err := minioContainer.Host(ctx)
	if err != nil {
		t.Fatalf("get container host: %v", err)
	}
	port, err := minioContainer.MappedPort(ctx, "9000")
	if err != nil {
		t.Fatalf("get container port: %v", err)
	}
	endpoint := fmt.Sprintf("%s:%s", host, port.Port())

	// gocloud s3blob URL pointing at minio
	bucketURL := fmt.Sprintf("s3://%s?endpoint=http://%s&use_path_style=true&disable_https=true&region=us-east-1",
		bucketName,
		endpoint,
	)

	// gocloud reads credentials from the environment
	t.Setenv("AWS_ACCESS_KEY_ID", accessKey)
	t.Setenv("AWS_SECRET_ACCESS_KEY", secretKey)

	return &MinioEnv{
		Container: minioContainer,
		BucketURL: bucketURL,
		Endpoint:  endpoint,
		AccessKey: accessKey,
		SecretKey: secretKey,
	}
}

// createBucket creates a bucket using a short-lived minio/mc container.
func createBucket(t *testing.T, ctx context.Context, networkName, accessKey, secretKey, bucketName string) {
	t.Helper()

	mcContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:      "minio/mc:latest",
			Networks:   []string{networkName},
			Entrypoint: []string{"/bin/sh", "-c"},
			Cmd: []string{
				fmt.Sprintf(
					"/usr/bin/mc alias set scrub http://minio:9000 %s %s && /usr/bin/mc mb scrub/%s; exit 0",
					accessKey, secretKey, bucketName,
				),
			},
			WaitingFor: wait.ForExit(),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start mc container: %v", err)
	}
	defer mcContainer.Terminate(ctx)
}
