package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/eoln/scrub/internal/config"
)

// APIKeyHeader carries the API key on every request.
const APIKeyHeader = "x-api-key"

// Options configures the HTTP client.
type Options struct {
	// Host is the scheme and authority requests are sent to.
	Host string

	// APIKey is sent in the x-api-key header.
	APIKey string

	// MaxIdleConnsPerHost sets the maximum idle connections per host.
	// Default: 100
	MaxIdleConnsPerHost int

	// Timeout for individual requests, including reading the body.
	// Default: 5m
	Timeout time.Duration

	// RateLimit caps requests per second across all callers.
	// Zero disables the cap.
	RateLimit float64
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		MaxIdleConnsPerHost: 100,
		Timeout:             5 * time.Minute,
	}
}

// OptionsFromConfig maps the API settings of a scraper configuration onto
// client options. A non-positive request timeout keeps the default.
func OptionsFromConfig(cfg config.Config) Options {
	opts := DefaultOptions()
	opts.Host = cfg.Host
	opts.APIKey = cfg.APIKey
	opts.RateLimit = cfg.RateLimit
	if cfg.RequestTimeout > 0 {
		opts.Timeout = cfg.RequestTimeout
	}
	return opts
}

// Client is a pre-authenticated HTTP session shared by all workers.
// It is safe for concurrent use.
type Client struct {
	client  *http.Client
	opts    Options
	limiter *rate.Limiter
}

// NewClient creates a new HTTP client with the given options.
func NewClient(opts Options) *Client {
	if opts.MaxIdleConnsPerHost <= 0 {
		opts.MaxIdleConnsPerHost = DefaultOptions().MaxIdleConnsPerHost
	}
	opts.Host = strings.TrimRight(opts.Host, "/")

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConnsPerHost: opts.MaxIdleConnsPerHost,
		MaxIdleConns:        opts.MaxIdleConnsPerHost * 2,
		IdleConnTimeout:     90 * time.Second,
	}

	c := &Client{
		client: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
		},
		opts: opts,
	}
	if opts.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}
	return c
}

// CSVURL returns the URL of the CSV export for one dataset, asset and
// resolution. The resolution parameter is omitted when empty.
func (c *Client) CSVURL(path, symbol, resolution string) string {
	var b strings.Builder
	b.WriteString(c.opts.Host)
	b.WriteString(path)
	b.WriteString("?a=")
	b.WriteString(url.QueryEscape(symbol))
	if resolution != "" {
		b.WriteString("&i=")
		b.WriteString(url.QueryEscape(resolution))
	}
	b.WriteString("&f=csv")
	return b.String()
}

// FetchCSV requests the CSV export for one dataset and streams the body.
// The caller must close the returned reader. Errors while reading the body
// are classified the same way as errors while sending the request.
func (c *Client) FetchCSV(ctx context.Context, path, symbol, resolution string) (io.ReadCloser, error) {
	resp, err := c.get(ctx, c.CSVURL(path, symbol, resolution))
	if err != nil {
		return nil, err
	}
	return &body{ctx: ctx, rc: resp.Body}, nil
}

// GetJSON requests path and decodes the JSON response into v.
func (c *Client) GetJSON(ctx context.Context, path string, v any) error {
	resp, err := c.get(ctx, c.opts.Host+path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(&body{ctx: ctx, rc: resp.Body}).Decode(v); err != nil {
		if Classify(err) != ClassUnknown {
			return err
		}
		return fmt.Errorf("%w: malformed response: %w", ErrProtocol, err)
	}
	return nil
}

// get sends an authenticated GET and fails on any non-2xx status.
func (c *Client) get(ctx context.Context, rawURL string) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, wrapTransport(ctx, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.opts.APIKey != "" {
		req.Header.Set(APIKeyHeader, c.opts.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, wrapTransport(ctx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{
			Code:    resp.StatusCode,
			Status:  resp.Status,
			Message: strings.TrimSpace(string(msg)),
		}
	}

	return resp, nil
}

// body classifies read errors on a response body.
type body struct {
	ctx context.Context
	rc  io.ReadCloser
}

func (b *body) Read(p []byte) (int, error) {
	n, err := b.rc.Read(p)
	if err != nil && err != io.EOF {
		err = wrapTransport(b.ctx, err)
	}
	return n, err
}

func (b *body) Close() error {
	return b.rc.Close()
}
