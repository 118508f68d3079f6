package imagestore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPFetcher downloads images registered by URL.
type HTTPFetcher struct {
	Client   *http.Client
	MaxBytes int64
}

func NewHTTPFetcher(maxBytes int64) *HTTPFetcher {
	return &HTTPFetcher{Client: &http.Client{Timeout: 15 * time.Second}, MaxBytes: maxBytes}
}

func (f *HTTPFetcher) Open(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, url)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	if int64(len(data)) > f.MaxBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrTooLarge, url, f.MaxBytes)
	}
	return data, nil
}
