// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package engine

import (
	"time"

	"github.com/traylinx/switchAIFree/internal/completion"
	"github.com/traylinx/switchAIFree/internal/config"
	"github.com/traylinx/switchAIFree/internal/prompts"
)

// Settings are the engine tunables. They are swapped atomically on config reload.
type Settings struct {
	// DefaultModel is invoked while no model is active. Empty disables it.
	DefaultModel string
	// AutoSelect runs smoke tests after each catalog refresh.
	AutoSelect bool

	// ProbeLimit caps smoke-test and fallback attempts.
	ProbeLimit int
	// ProbeDelay is the pause between failed attempts.
	ProbeDelay time.Duration

	// SmokeRequest is the fixed probe prompt pair with its sampling parameters.
	SmokeRequest completion.Request
	// SystemPrompt is used when a request does not carry its own.
	SystemPrompt string
	// Production are the sampling parameters of user requests.
	Production completion.Params

	Messages Messages
}

// SettingsFromConfig derives engine settings from cfg.
func SettingsFromConfig(cfg *config.Config) Settings {
	system := prompts.SystemPrompt(cfg.Sanitizer.CurrentYear)
	smokeSystem := cfg.Selection.SmokeTestSystem
	if smokeSystem == "" {
		smokeSystem = system
	}
	return Settings{
		DefaultModel: cfg.OpenRouter.DefaultModel,
		AutoSelect:   cfg.Selection.AutoSelect,
		ProbeLimit:   cfg.Selection.SmokeTestLimit,
		ProbeDelay:   cfg.SmokeTestDelayDuration(),
		SmokeRequest: completion.Request{
			System: smokeSystem,
			User:   cfg.Selection.SmokeTestPrompt,
			Params: paramsFrom(cfg.Sampling.SmokeTest),
		},
		SystemPrompt: system,
		Production:   paramsFrom(cfg.Sampling.Production),
		Messages:     MessagesFromConfig(cfg.Messages),
	}
}

func paramsFrom(s config.Sampling) completion.Params {
	return completion.Params{Temperature: s.Temperature, TopP: s.TopP, MaxTokens: s.MaxTokens}
}

func (s Settings) probeLimit() int {
	return max(1, s.ProbeLimit)
}
