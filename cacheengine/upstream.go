package cacheengine

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxUpstreamBodySize caps how much of an upstream response is buffered.
// Poster/backdrop artwork stays well under this.
const maxUpstreamBodySize = 64 * 1024 * 1024 // 64MB

// BinaryResponse is the outcome of one upstream image fetch.
type BinaryResponse struct {
	Status      int
	OK          bool
	Body        []byte
	ContentType string
}

// BinaryFetcher retrieves binary payloads from upstream image CDNs.
type BinaryFetcher interface {
	Fetch(ctx context.Context, url string, headers map[string]string) (*BinaryResponse, error)
}

// NewHTTPBinaryFetcher returns a BinaryFetcher backed by net/http with a
// fixed per-request timeout.
func NewHTTPBinaryFetcher(timeout time.Duration) BinaryFetcher {
	if timeout <= 0 {
		timeout = DefaultUpstreamTimeout
	}
	return &httpBinaryFetcher{
		client: &http.Client{Timeout: timeout},
	}
}

type httpBinaryFetcher struct {
	client *http.Client
}

func (f *httpBinaryFetcher) Fetch(ctx context.Context, url string, headers map[string]string) (*BinaryResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBodySize))
	if err != nil {
		return nil, fmt.Errorf("read upstream body: %w", err)
	}

	return &BinaryResponse{
		Status:      resp.StatusCode,
		OK:          resp.StatusCode >= 200 && resp.StatusCode < 300,
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}
