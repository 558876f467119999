// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package catalog

import (
	"context"
	"errors"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/traylinx/switchAIFree/internal/constant"
)

var errInvalidCatalog = errors.New("catalog response has no data array")

// Catalog fetches and filters the provider's model listing.
type Catalog struct {
	fetcher Fetcher
	baseURL string
	apiKey  func() string
}

// New creates a Catalog. apiKey is read on every refresh so hot-reloaded credentials apply.
func New(fetcher Fetcher, baseURL string, apiKey func() string) *Catalog {
	return &Catalog{
		fetcher: fetcher,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
	}
}

// Refresh returns the ranked free candidates. It never fails: missing credentials,
// transport errors and malformed bodies all yield an empty list with ok false.
// ok is true when the listing was fetched and parsed, even if nothing qualified.
func (c *Catalog) Refresh(ctx context.Context) (candidates []Candidate, ok bool) {
	key := ""
	if c.apiKey != nil {
		key = strings.TrimSpace(c.apiKey())
	}
	if key == "" {
		log.Warn("OPENROUTER_API_KEY is not configured; skipping free model discovery.")
		return []Candidate{}, false
	}

	url := c.baseURL + constant.ModelsPath
	body, err := c.fetcher.FetchWithAuth(ctx, url, "Bearer "+key)
	if err != nil {
		log.Errorf("Failed to fetch model catalog: %v", err)
		return []Candidate{}, false
	}

	parsed, err := ParseCandidates(body)
	if err != nil {
		log.Errorf("Failed to parse model catalog: %v", err)
		return []Candidate{}, false
	}

	ranked := Rank(parsed)
	log.Debugf("Model catalog refreshed: %d free candidates", len(ranked))
	return ranked, true
}
