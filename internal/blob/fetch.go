// Package blob retrieves stored document bytes by URL.
package blob

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxObjectSize caps a single fetched object.
const maxObjectSize = 50 << 20

type Fetcher struct {
	client *http.Client
}

func NewFetcher(timeout time.Duration) *Fetcher {
	return &Fetcher{client: &http.Client{Timeout: timeout}}
}

// Fetch downloads url and returns its body. Non-2xx responses are errors.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxObjectSize+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	if len(body) > maxObjectSize {
		return nil, fmt.Errorf("fetch %s: object exceeds %d bytes", url, maxObjectSize)
	}

	return body, nil
}
