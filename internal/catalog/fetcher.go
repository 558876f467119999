// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/traylinx/switchAIFree/internal/buildinfo"
	"github.com/traylinx/switchAIFree/internal/util"
)

// Fetcher retrieves raw catalog content from a remote source.
type Fetcher interface {
	FetchWithAuth(ctx context.Context, url string, authHeader string) ([]byte, error)
}

// HTTPFetcher implements Fetcher using standard HTTP.
type HTTPFetcher struct {
	client  *http.Client
	timeout atomic.Int64
	headers map[string]string
}

// NewHTTPFetcher creates a new fetcher bounded by timeout.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	f := &HTTPFetcher{
		client:  &http.Client{},
		headers: make(map[string]string),
	}
	f.SetTimeout(timeout)
	return f
}

// SetTimeout changes the per-request timeout. Non-positive values restore the 15s default.
func (f *HTTPFetcher) SetTimeout(timeout time.Duration) {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	f.timeout.Store(int64(timeout))
}

// Timeout returns the per-request timeout.
func (f *HTTPFetcher) Timeout() time.Duration {
	return time.Duration(f.timeout.Load())
}

// SetHeader sets a default header for all fetch requests.
func (f *HTTPFetcher) SetHeader(key, value string) {
	if f.headers == nil {
		f.headers = make(map[string]string)
	}
	f.headers[key] = value
}

// FetchWithAuth retrieves the content from the given URL with an optional Authorization header.
func (f *HTTPFetcher) FetchWithAuth(ctx context.Context, url string, authHeader string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.Timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", buildinfo.UserAgent())
	util.ApplyCustomHeaders(req, f.headers)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to perform request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned status: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return data, nil
}
