package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	// Registered bucket schemes.
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
)

// ChunkSize is the size of the buffer results are streamed through.
const ChunkSize = 4096

// ContentType is set on stored results.
const ContentType = "text/csv"

// ErrNotFound is returned by ReadAll for missing objects.
var ErrNotFound = errors.New("store: object not found")

// Store persists results in a bucket. It is safe for concurrent use.
type Store struct {
	bucket *blob.Bucket
	dir    string // local directory backing the bucket, if any
}

// New wraps an open bucket. The caller keeps ownership of bucket.
func New(bucket *blob.Bucket) *Store {
	return &Store{bucket: bucket}
}

// Open opens the output location. A plain directory path is opened as a
// file bucket and created if missing; anything with a scheme is passed to
// blob.OpenBucket (file://, mem://, s3://, gs://).
func Open(ctx context.Context, location string) (*Store, error) {
	bucketURL, dir, err := BucketURL(location)
	if err != nil {
		return nil, err
	}
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", bucketURL, err)
	}
	return &Store{bucket: bucket, dir: dir}, nil
}

// BucketURL converts an output location into a bucket URL. For local
// locations it also returns the directory on disk.
func BucketURL(location string) (bucketURL, dir string, err error) {
	if location == "" {
		return "", "", errors.New("store: empty output location")
	}
	if !strings.Contains(location, "://") {
		abs, err := filepath.Abs(location)
		if err != nil {
			return "", "", fmt.Errorf("resolve output directory: %w", err)
		}
		u := url.URL{
			Scheme:   "file",
			Path:     filepath.ToSlash(abs),
			RawQuery: "create_dir=true&metadata=skip&no_tmp_dir=true",
		}
		return u.String(), abs, nil
	}

	u, err := url.Parse(location)
	if err != nil {
		return "", "", fmt.Errorf("parse output location: %w", err)
	}
	if u.Scheme == "file" {
		dir = filepath.FromSlash(u.Path)
	}
	return location, dir, nil
}

// Dir returns the local directory backing the store, or "" if the store is
// not on the local filesystem.
func (s *Store) Dir() string {
	return s.dir
}

// Bucket returns the underlying bucket.
func (s *Store) Bucket() *blob.Bucket {
	return s.bucket
}

// Close closes the bucket.
func (s *Store) Close() error {
	return s.bucket.Close()
}

// Exists reports whether a completed object called name exists.
func (s *Store) Exists(ctx context.Context, name string) (bool, error) {
	ok, err := s.bucket.Exists(ctx, name)
	if err != nil {
		return false, fmt.Errorf("check %s: %w", name, err)
	}
	return ok, nil
}

// Store streams r into the object name and returns the number of bytes
// written. The object becomes visible only if the whole stream was copied;
// on any error nothing is committed.
func (s *Store) Store(ctx context.Context, name string, r io.Reader) (int64, error) {
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w, err := s.bucket.NewWriter(wctx, name, &blob.WriterOptions{
		ContentType: ContentType,
		BufferSize:  ChunkSize,
	})
	if err != nil {
		return 0, fmt.Errorf("create writer %s: %w", name, err)
	}

	var (
		buf     = make([]byte, ChunkSize)
		written int64
	)
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			m, werr := w.Write(buf[:n])
			written += int64(m)
			if werr != nil {
				s.abort(cancel, w, name)
				return written, fmt.Errorf("write %s: %w", name, werr)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			s.abort(cancel, w, name)
			return written, rerr
		}
	}

	if err := w.Close(); err != nil {
		return written, fmt.Errorf("commit %s: %w", name, err)
	}
	return written, nil
}

// StoreBytes writes data to the object name in one call.
func (s *Store) StoreBytes(ctx context.Context, name string, data []byte) error {
	if err := s.bucket.WriteAll(ctx, name, data, nil); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// ReadAll returns the contents of the object name.
func (s *Store) ReadAll(ctx context.Context, name string) ([]byte, error) {
	data, err := s.bucket.ReadAll(ctx, name)
	if err != nil {
		if isNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

// abort cancels an in-progress write so the object is never committed.
func (s *Store) abort(cancel context.CancelFunc, w *blob.Writer, name string) {
	cancel()
	// Close must still run to release the writer.
	w.Close()

	// Some backends may have committed partial buffers before the cancel.
	s.bucket.Delete(context.Background(), name) // best effort
}

// isNotExist returns true if the error indicates the object doesn't exist.
func isNotExist(err error) bool {
	return gcerrors.Code(err) == gcerrors.NotFound
}
