// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package constant defines provider endpoints and identifiers used throughout switchAIFree.
// These constants keep provider naming and wire locations consistent across the application.
package constant

const (
	// OpenRouter is the provider identifier used in logs and audit entries.
	OpenRouter = "openrouter"

	// OpenRouterBaseURL is the root of the OpenRouter REST API.
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"

	// ModelsPath is the catalog listing endpoint relative to the base URL.
	ModelsPath = "/models"

	// ChatCompletionsPath is the completion endpoint relative to the base URL.
	ChatCompletionsPath = "/chat/completions"

	// FreeMarker is the case-insensitive substring that tags a zero-cost model.
	FreeMarker = "free"

	// DefaultModel is used until the first smoke test selects a verified model.
	DefaultModel = "google/gemma-3-12b-it:free"

	// AppTitle is sent as X-Title so the provider can attribute traffic.
	AppTitle = "TrumpBot"

	// AppReferer is sent as HTTP-Referer.
	AppReferer = "https://yourdomain.com"

	// RateLimitCode is the provider error code that signals throttling.
	RateLimitCode = "429"

	// MinContentLength is the shortest assistant reply treated as usable.
	MinContentLength = 16

	// SamplePreviewLength bounds smoke-test and fallback previews in logs.
	SamplePreviewLength = 200
)
