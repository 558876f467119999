// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package completion

import (
	"errors"
	"fmt"
	"time"

	"github.com/traylinx/switchAIFree/internal/constant"
)

// Detail classifies a failed invocation.
type Detail string

const (
	DetailMissingAPIKey    Detail = "missing_api_key"
	DetailInvalidResponse  Detail = "invalid_response"
	DetailEmptyContent     Detail = "empty_content"
	DetailRefusal          Detail = "refusal"
	DetailReasoningLeak    Detail = "reasoning_leak"
	DetailNetworkError     Detail = "network_error"
	DetailProviderError    Detail = "provider_error"
	DetailNoFallbackModels Detail = "no_fallback_models"
)

// Success is an accepted completion.
type Success struct {
	// Content is the sanitized text.
	Content string `json:"content"`
	// Raw is the text before sanitization.
	Raw        string        `json:"raw"`
	ModelID    string        `json:"model_id"`
	HTTPStatus int           `json:"http_status"`
	Latency    time.Duration `json:"latency"`
}

// Failure is a classified invocation failure. It is the only error type returned by Client.Complete.
type Failure struct {
	Detail Detail `json:"detail"`
	// Code is the provider error code compared as a string, e.g. "429".
	Code string `json:"code,omitempty"`
	// Message is human-readable context such as the provider message or transport error text.
	Message    string `json:"message,omitempty"`
	ModelID    string `json:"model_id,omitempty"`
	HTTPStatus int    `json:"http_status,omitempty"`
}

// Error implements error.
func (f *Failure) Error() string {
	msg := string(f.Detail)
	if f.ModelID != "" {
		msg = f.ModelID + ": " + msg
	}
	if f.Code != "" {
		msg += fmt.Sprintf(" (code %s)", f.Code)
	}
	if f.Message != "" {
		msg += ": " + f.Message
	}
	return msg
}

// RateLimited reports whether the provider signalled rate limiting.
func (f *Failure) RateLimited() bool {
	return f != nil && f.Code == constant.RateLimitCode
}

// AsFailure extracts a *Failure from err.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}
