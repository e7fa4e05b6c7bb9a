//go:build integration

package store

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/eoln/scrub/internal/testutils"
)

func TestS3Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	minio := testutils.StartMinioContainer(t, ctx, "store-test-bucket")
	defer minio.Close(ctx)

	st, err := Open(ctx, minio.BucketURL)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	if st.Dir() != "" {
		t.Errorf("expected no local directory for s3 store, got %q", st.Dir())
	}

	payload := strings.Repeat("1600000000,42\n", 5000)
	n, err := st.Store(ctx, "v1-metrics-x.BTC.24h.csv", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if n != int64(len(payload)) {
		t.Errorf("Store wrote %d bytes, want %d", n, len(payload))
	}

	ok, err := st.Exists(ctx, "v1-metrics-x.BTC.24h.csv")
	if err != nil || !ok {
		t.Fatalf("Exists = %v, %v; want true", ok, err)
	}

	_, err = st.Store(ctx, "broken.csv", &failingReader{data: []byte(payload), err: errors.New("reset")})
	if err == nil {
		t.Fatal("expected error for failed stream")
	}
	if ok, _ := st.Exists(ctx, "broken.csv"); ok {
		t.Error("failed stream must not leave an object")
	}
}
