package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/texloader/texloader/pkg/logging"
	"github.com/texloader/texloader/pkg/texture"
)

// ProgressFunc receives transfer-progress fractions in [0,1]. Values are
// strictly increasing; a successful fetch always ends with 1.0 even when the
// transport reported no byte counts at all.
type ProgressFunc func(fraction float64)

// HTTPFetcher streams a remote resource into memory over HTTP.
//
// It performs no retries: a network failure or a non-2xx status terminates
// the fetch with a single TransportError. Retry policy, if any, belongs to
// the caller.
type HTTPFetcher struct {
	client    *http.Client
	chunkSize int64
	userAgent string
	logger    logging.Interface
}

// NewFetcher creates an HTTP fetcher from the given configuration.
func NewFetcher(config *Config) (*HTTPFetcher, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid fetch config: %w", err)
	}

	logger := config.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	return &HTTPFetcher{
		client:    &http.Client{Timeout: config.Timeout},
		chunkSize: config.ChunkSize,
		userAgent: config.UserAgent,
		logger:    logger,
	}, nil
}

// Fetch downloads the resource at url and returns the full payload.
// onProgress may be nil. Cancellation is checked before every chunk read; a
// cancelled fetch returns the context's error, not a TransportError.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string, onProgress ProgressFunc) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, texture.NewTransportError(url, "invalid request", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, texture.NewTransportError(url, "request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, texture.NewTransportError(url, fmt.Sprintf("HTTP %d: %s", resp.StatusCode, resp.Status), nil)
	}

	payload, err := f.readAll(ctx, resp.Body, resp.ContentLength, onProgress)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, texture.NewTransportError(url, "reading response body", err)
	}

	// The transport may never report a final fraction itself, so completion
	// is synthesized here. Intermediate emissions stay below 1.0, which keeps
	// the sequence strictly increasing.
	if onProgress != nil {
		onProgress(1.0)
	}

	f.logger.WithField("url", url).WithField("bytes", len(payload)).Debug("fetched remote texture")
	return payload, nil
}

func (f *HTTPFetcher) readAll(ctx context.Context, body io.Reader, total int64, onProgress ProgressFunc) ([]byte, error) {
	var buf bytes.Buffer
	chunk := make([]byte, f.chunkSize)
	lastFraction := 0.0

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		n, err := body.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])

			if onProgress != nil && total > 0 {
				fraction := float64(buf.Len()) / float64(total)
				if fraction > lastFraction && fraction < 1.0 {
					lastFraction = fraction
					onProgress(fraction)
				}
			}
		}
		if err == io.EOF {
			return buf.Bytes(), nil
		}
		if err != nil {
			return nil, err
		}
	}
}
