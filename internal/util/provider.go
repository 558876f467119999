// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package util provides utility functions used across the switchAIFree application.
// These functions handle credential masking, free-tier checks and preview truncation.
package util

import (
	"strings"
	"unicode/utf8"

	"github.com/traylinx/switchAIFree/internal/constant"
)

// HideAPIKey obscures an API key for logging purposes, showing only the first and last few characters.
//
// Parameters:
//   - apiKey: The API key to hide
//
// Returns:
//   - string: The obscured API key
func HideAPIKey(apiKey string) string {
	if len(apiKey) > 8 {
		return apiKey[:4] + "..." + apiKey[len(apiKey)-4:]
	} else if len(apiKey) > 4 {
		return apiKey[:2] + "..." + apiKey[len(apiKey)-2:]
	} else if len(apiKey) > 2 {
		return apiKey[:1] + "..." + apiKey[len(apiKey)-1:]
	}
	return apiKey
}

// MaskAuthorizationHeader masks the Authorization header value while preserving the auth type prefix.
func MaskAuthorizationHeader(value string) string {
	parts := strings.SplitN(strings.TrimSpace(value), " ", 2)
	if len(parts) < 2 {
		return HideAPIKey(value)
	}
	return parts[0] + " " + HideAPIKey(parts[1])
}

// HasFreeMarker reports whether any of the given identifiers carries the
// provider's free-tier marker. The match is a case-insensitive substring.
func HasFreeMarker(values ...string) bool {
	for _, v := range values {
		if strings.Contains(strings.ToLower(v), constant.FreeMarker) {
			return true
		}
	}
	return false
}

// Preview trims s and truncates it to limit runes, appending an ellipsis when cut.
func Preview(s string, limit int) string {
	s = strings.TrimSpace(s)
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + "…"
}
