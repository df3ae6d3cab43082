// Package fetch downloads remote images for classification.
package fetch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Brownie44l1/dogbreed-api/internal/core"

	"github.com/dustin/go-humanize"
)

// Config configuration for Fetcher
type Config struct {
	Timeout  time.Duration
	MaxBytes int64
	Client   *http.Client
	Metrics  core.MetricsCollector
}

// Fetcher performs bounded GET requests.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
	metrics  core.MetricsCollector
}

// New creates a Fetcher. A nil Client gets a dedicated client with cfg.Timeout.
func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = core.DefaultFetchTimeout
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = core.DefaultMaxUploadBytes
	}
	if cfg.Metrics == nil {
		cfg.Metrics = &core.NopMetrics{}
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				MaxIdleConns:          10,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   cfg.Timeout,
				ResponseHeaderTimeout: cfg.Timeout,
			},
			Timeout: cfg.Timeout,
		}
	}
	return &Fetcher{
		client:   client,
		maxBytes: cfg.MaxBytes,
		metrics:  cfg.Metrics,
	}
}

// Fetch downloads rawURL. Every failure is a BadInput error carrying the cause.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	start := time.Now()
	data, err := f.fetch(ctx, rawURL)
	f.metrics.RecordFetch(time.Since(start), err == nil)
	return data, err
}

func (f *Fetcher) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, core.BadInput(err, "invalid image URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, core.BadInput(nil, "unsupported URL scheme %q", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, core.BadInput(err, "invalid image URL")
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, core.BadInput(err, "cannot fetch image URL")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, core.BadInput(nil, "cannot fetch image URL: upstream returned %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, core.BadInput(err, "cannot read image from URL")
	}
	if int64(len(data)) > f.maxBytes {
		return nil, core.BadInput(nil, "image at URL exceeds %s", humanize.IBytes(uint64(f.maxBytes)))
	}
	return data, nil
}
