package imagecache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ekisa-team/mapbridge/internal/xfs"
)

const (
	defaultFetchTimeout = 10 * time.Second
	defaultMaxRetries   = 3
	defaultRetryDelay   = 500 * time.Millisecond
	maxImageBytes       = 16 << 20
)

// ErrUnsupportedScheme is returned for URLs the fetcher cannot load.
var ErrUnsupportedScheme = errors.New("unsupported image url scheme")

// HTTPFetcher loads images over http(s) or from local paths and decodes their
// dimensions.
type HTTPFetcher struct {
	Client     *http.Client
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// NewHTTPFetcher creates a fetcher with the given limits. Zero values select
// the defaults.
func NewHTTPFetcher(timeout time.Duration, maxRetries int, retryDelay time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}
	return &HTTPFetcher{
		Client:     &http.Client{},
		Timeout:    timeout,
		MaxRetries: maxRetries,
		RetryDelay: retryDelay,
	}
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*Image, error) {
	switch {
	case strings.HasPrefix(url, "http://"), strings.HasPrefix(url, "https://"):
		return f.fetchRemote(ctx, url)
	case strings.HasPrefix(url, "file://"):
		return f.readLocal(strings.TrimPrefix(url, "file://"))
	case strings.Contains(url, "://"):
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, url)
	default:
		return f.readLocal(url)
	}
}

func (f *HTTPFetcher) fetchRemote(ctx context.Context, url string) (*Image, error) {
	var lastErr error
	for attempt := range f.MaxRetries {
		if attempt > 0 {
			slog.Info("Retrying image fetch", "url", url, "attempt", attempt+1, "last_error", lastErr)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("image fetch canceled: %w", ctx.Err())
			case <-time.After(f.RetryDelay):
			}
		}

		img, err := f.fetchOnce(ctx, url)
		if err == nil {
			return img, nil
		}
		lastErr = err
		slog.Warn("Failed to fetch image", "url", url, "attempt", attempt+1, "error", err)

		if ctx.Err() != nil {
			return nil, fmt.Errorf("image fetch canceled: %w", err)
		}
	}
	return nil, lastErr
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, url string) (*Image, error) {
	reqCtx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	return decode(url, resp.Header.Get("Content-Type"), data)
}

func (f *HTTPFetcher) readLocal(path string) (*Image, error) {
	data, err := os.ReadFile(xfs.ExpandTilde(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return decode(path, "", data)
}

func decode(url, contentType string, data []byte) (*Image, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", url, err)
	}
	if contentType == "" {
		contentType = "image/" + format
	}
	return &Image{
		URL:         url,
		ContentType: contentType,
		Data:        data,
		Width:       cfg.Width,
		Height:      cfg.Height,
	}, nil
}
