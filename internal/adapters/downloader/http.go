package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"vidgrabber/internal/core/domain"
	"vidgrabber/internal/logging"
)

// ErrIdleTimeout is the cause recorded when no bytes arrive within the idle timeout.
var ErrIdleTimeout = errors.New("read idle timeout")

// Options bounds each fetch.
type Options struct {
	ConnectTimeout time.Duration
	HeaderTimeout  time.Duration
	IdleTimeout    time.Duration
	ChunkSize      int
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		ConnectTimeout: 30 * time.Second,
		HeaderTimeout:  30 * time.Second,
		IdleTimeout:    30 * time.Second,
		ChunkSize:      64 * 1024,
	}
}

// HTTPDownloader implements ports.Fetcher using standard HTTP.
type HTTPDownloader struct {
	client *http.Client
	opts   Options
	logger *slog.Logger
}

// NewHTTPDownloader creates a new HTTPDownloader. Zero option fields fall back to DefaultOptions.
func NewHTTPDownloader(opts Options, logger *slog.Logger) *HTTPDownloader {
	def := DefaultOptions()
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = def.ConnectTimeout
	}
	if opts.HeaderTimeout <= 0 {
		opts.HeaderTimeout = def.HeaderTimeout
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = def.IdleTimeout
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = def.ChunkSize
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   opts.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext
	transport.TLSHandshakeTimeout = opts.ConnectTimeout
	transport.ResponseHeaderTimeout = opts.HeaderTimeout

	return &HTTPDownloader{
		// No overall client timeout: large streams are bounded by the idle timeout instead.
		client: &http.Client{Transport: transport},
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "fetcher"),
	}
}

// Fetch streams the remote content into dest in ChunkSize increments.
func (d *HTTPDownloader) Fetch(ctx context.Context, stream domain.StreamDescriptor, dest domain.ScratchHandle) error {
	start := time.Now()
	written, err := d.fetch(ctx, stream, dest)
	if err != nil {
		d.logger.Warn("stream fetch failed",
			logging.String("kind", string(stream.Kind)),
			logging.String("path", dest.Path),
			logging.Int64("bytes", written),
			logging.Error(err),
			logging.Event("fetch_failed"),
		)
		return &domain.FetchError{Kind: stream.Kind, URL: stream.URL, Err: err}
	}

	d.logger.Info("stream fetched",
		logging.String("kind", string(stream.Kind)),
		logging.String("path", dest.Path),
		logging.String("size", humanize.Bytes(uint64(written))),
		logging.Duration("elapsed", time.Since(start).Round(time.Millisecond)),
		logging.Event("fetch_complete"),
	)
	return nil
}

func (d *HTTPDownloader) fetch(ctx context.Context, stream domain.StreamDescriptor, dest domain.ScratchHandle) (int64, error) {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, stream.URL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range stream.Headers {
		req.Header.Set(k, v)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to download stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	file, err := os.OpenFile(dest.Path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("failed to create file %s: %w", dest.Path, err)
	}
	defer file.Close()

	watchdog := time.AfterFunc(d.opts.IdleTimeout, func() { cancel(ErrIdleTimeout) })
	defer watchdog.Stop()

	buf := make([]byte, d.opts.ChunkSize)
	var written int64
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			watchdog.Reset(d.opts.IdleTimeout)
			if _, err := file.Write(buf[:n]); err != nil {
				return written, fmt.Errorf("failed to write file %s: %w", dest.Path, err)
			}
			written += int64(n)
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			if cause := context.Cause(ctx); cause != nil {
				return written, fmt.Errorf("failed to read stream: %w", cause)
			}
			return written, fmt.Errorf("failed to read stream: %w", readErr)
		}
	}

	if err := file.Close(); err != nil {
		return written, fmt.Errorf("failed to flush file %s: %w", dest.Path, err)
	}
	return written, nil
}
