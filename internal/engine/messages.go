// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package engine

import (
	"fmt"
	"strings"

	"github.com/traylinx/switchAIFree/internal/config"
)

// Messages are the user-facing strings returned when no model text is available.
type Messages struct {
	NoModel          string
	RateLimited      string
	Refusal          string
	ReasoningLeak    string
	EmptyContent     string
	InvalidResponse  string
	MissingAPIKey    string
	ProviderErrorFmt string
	RequestFailed    string
}

// DefaultMessages returns the built-in strings.
func DefaultMessages() Messages {
	return Messages{
		NoModel:          "🚫 No free model is available right now, please try again later.",
		RateLimited:      "🚫 Too many people are using the bot! Please wait a moment and try again. (model rate limited)",
		Refusal:          "⚠️ The current model refused to generate content, please try again later.",
		ReasoningLeak:    "⚠️ The model produced abnormal output, please try again later.",
		EmptyContent:     "⚠️ The model returned no usable content or the output was too short, please try again later.",
		InvalidResponse:  "⚠️ The model returned an invalid response, please try again later.",
		MissingAPIKey:    "⚠️ AI is not configured on this server.",
		ProviderErrorFmt: "❌ Model error: %s",
		RequestFailed:    "⚠️ AI request failed, please try again later.",
	}
}

// MessagesFromConfig overlays non-empty configured strings on the defaults.
func MessagesFromConfig(mc config.MessagesConfig) Messages {
	m := DefaultMessages()
	pick := func(dst *string, v string) {
		if strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
	pick(&m.NoModel, mc.NoModel)
	pick(&m.RateLimited, mc.RateLimited)
	pick(&m.Refusal, mc.Refusal)
	pick(&m.ReasoningLeak, mc.ReasoningLeak)
	pick(&m.EmptyContent, mc.EmptyContent)
	pick(&m.InvalidResponse, mc.InvalidResponse)
	pick(&m.MissingAPIKey, mc.MissingAPIKey)
	if strings.Contains(mc.ProviderErrorFmt, "%s") {
		m.ProviderErrorFmt = mc.ProviderErrorFmt
	}
	pick(&m.RequestFailed, mc.RequestFailed)
	return m
}

// ProviderError renders the provider error message.
func (m Messages) ProviderError(detail string) string {
	return fmt.Sprintf(m.ProviderErrorFmt, detail)
}
