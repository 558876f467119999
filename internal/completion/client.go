// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package completion issues single chat completion requests against the
// provider and classifies every outcome as a Success or a *Failure.
package completion

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/traylinx/switchAIFree/internal/buildinfo"
	"github.com/traylinx/switchAIFree/internal/constant"
	"github.com/traylinx/switchAIFree/internal/logging"
	"github.com/traylinx/switchAIFree/internal/quality"
	"github.com/traylinx/switchAIFree/internal/util"
)

// Sanitizer cleans accepted text.
type Sanitizer interface {
	Sanitize(text string) string
}

// Validator classifies sanitized text.
type Validator interface {
	Classify(text string) (quality.Verdict, string)
}

// ResourceGuard is called once after every invocation, whatever the outcome.
type ResourceGuard interface {
	Check(ctx context.Context)
}

// Options holds the reloadable client settings.
type Options struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Referer string
	Title   string
	Headers map[string]string
}

// Client invokes the chat completion endpoint.
type Client struct {
	httpClient *http.Client
	opts       atomic.Pointer[Options]
	sanitizer  atomic.Pointer[Sanitizer]
	validator  Validator
	guard      ResourceGuard
}

// NewClient creates a completion client. guard may be nil.
func NewClient(opts Options, sanitizer Sanitizer, validator Validator, guard ResourceGuard) *Client {
	c := &Client{
		httpClient: &http.Client{},
		validator:  validator,
		guard:      guard,
	}
	c.Update(opts, sanitizer)
	return c
}

// Update atomically replaces the client settings. A nil sanitizer keeps the current one.
func (c *Client) Update(opts Options, sanitizer Sanitizer) {
	o := opts
	o.BaseURL = strings.TrimSuffix(strings.TrimSpace(o.BaseURL), "/")
	if o.BaseURL == "" {
		o.BaseURL = constant.OpenRouterBaseURL
	}
	if o.Timeout <= 0 {
		o.Timeout = 15 * time.Second
	}
	c.opts.Store(&o)
	if sanitizer != nil {
		c.sanitizer.Store(&sanitizer)
	}
}

// HasAPIKey reports whether a credential is configured.
func (c *Client) HasAPIKey() bool {
	return c.APIKey() != ""
}

// APIKey returns the configured credential.
func (c *Client) APIKey() string {
	return c.opts.Load().APIKey
}

// Complete issues one completion request. On failure the error is always a *Failure.
func (c *Client) Complete(ctx context.Context, modelID string, req Request) (*Success, error) {
	if c.guard != nil {
		defer c.guard.Check(ctx)
	}
	opts := c.opts.Load()
	logger := logging.FromContext(ctx).WithField("model", modelID)

	if opts.APIKey == "" {
		return nil, &Failure{Detail: DetailMissingAPIKey, ModelID: modelID, Message: "OPENROUTER_API_KEY not configured"}
	}

	body, err := buildBody(modelID, req)
	if err != nil {
		return nil, &Failure{Detail: DetailNetworkError, ModelID: modelID, Message: err.Error()}
	}

	callCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, opts.BaseURL+constant.ChatCompletionsPath, bytes.NewReader(body))
	if err != nil {
		return nil, &Failure{Detail: DetailNetworkError, ModelID: modelID, Message: err.Error()}
	}
	httpReq.Header.Set("Authorization", "Bearer "+opts.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("HTTP-Referer", opts.Referer)
	httpReq.Header.Set("X-Title", opts.Title)
	httpReq.Header.Set("User-Agent", buildinfo.UserAgent())
	util.ApplyCustomHeaders(httpReq, opts.Headers)

	logger.Debugf("Requesting completion via model %s.", modelID)
	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		logger.Errorf("AI request failed for model %s: %v", modelID, err)
		return nil, &Failure{Detail: DetailNetworkError, ModelID: modelID, Message: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.Errorf("Failed to read response from model %s: %v", modelID, err)
		return nil, &Failure{Detail: DetailNetworkError, ModelID: modelID, Message: err.Error(), HTTPStatus: resp.StatusCode}
	}
	latency := time.Since(start)

	env, ok := parseEnvelope(data)
	if !ok {
		snippet := util.Preview(strings.ReplaceAll(string(data), "\n", " "), 120)
		if snippet == "" {
			snippet = "[empty]"
		}
		logger.Errorf("Model %s returned a non-JSON response (status %d): %s", modelID, resp.StatusCode, snippet)
		return nil, &Failure{
			Detail:     DetailInvalidResponse,
			Code:       strconv.Itoa(resp.StatusCode),
			ModelID:    modelID,
			HTTPStatus: resp.StatusCode,
		}
	}

	if code, message, isErr := env.providerError(); isErr {
		return nil, &Failure{
			Detail:     DetailProviderError,
			Code:       code,
			Message:    message,
			ModelID:    modelID,
			HTTPStatus: resp.StatusCode,
		}
	}

	raw := env.content()
	if utf8.RuneCountInString(raw) < constant.MinContentLength {
		return nil, &Failure{Detail: DetailEmptyContent, ModelID: modelID, HTTPStatus: resp.StatusCode}
	}

	sanitized := raw
	if s := c.sanitizer.Load(); s != nil && *s != nil {
		sanitized = (*s).Sanitize(raw)
	}

	if c.validator != nil {
		switch verdict, marker := c.validator.Classify(sanitized); verdict {
		case quality.VerdictRefusal:
			logger.Warnf("Model %s refused to comply with the request.", modelID)
			return nil, &Failure{Detail: DetailRefusal, Code: string(DetailRefusal), Message: marker, ModelID: modelID, HTTPStatus: resp.StatusCode}
		case quality.VerdictReasoningLeak:
			logger.Warnf("Model %s response leaked internal reasoning.", modelID)
			return nil, &Failure{Detail: DetailReasoningLeak, Message: marker, ModelID: modelID, HTTPStatus: resp.StatusCode}
		}
	}

	if sanitized == "" {
		return nil, &Failure{Detail: DetailEmptyContent, Message: "nothing left after sanitization", ModelID: modelID, HTTPStatus: resp.StatusCode}
	}

	return &Success{
		Content:    sanitized,
		Raw:        raw,
		ModelID:    modelID,
		HTTPStatus: resp.StatusCode,
		Latency:    latency,
	}, nil
}
