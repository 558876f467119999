// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// Environment variables recognised by ApplyEnv. They override values from the YAML file.
const (
	EnvAPIKey         = "OPENROUTER_API_KEY"
	EnvModel          = "OPENROUTER_MODEL"
	EnvAutoSelect     = "OPENROUTER_AUTO_SELECT_FREE"
	EnvSmokePrompt    = "OPENROUTER_SMOKE_TEST_PROMPT"
	EnvSmokeSystem    = "OPENROUTER_SMOKE_TEST_SYSTEM"
	EnvSmokeLimit     = "OPENROUTER_SMOKE_TEST_LIMIT"
	EnvSmokeDelay     = "OPENROUTER_SMOKE_TEST_DELAY"
	EnvRequestTimeout = "OPENROUTER_REQUEST_TIMEOUT"
	EnvRefreshHours   = "OPENROUTER_FREE_MODEL_REFRESH_HOURS"
	EnvMemoryLimitMB  = "APP_MEMORY_LIMIT_MB"
	EnvLogLevel       = "LOG_LEVEL"
	EnvManagementKey  = "SWITCHAIFREE_MANAGEMENT_KEY"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides configuration values from the environment.
// Malformed numeric values are ignored with a warning so the YAML or default value stays in effect.
func (cfg *Config) ApplyEnv(lookup LookupFunc) {
	if cfg == nil || lookup == nil {
		return
	}
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		if !ok {
			return "", false
		}
		return strings.TrimSpace(v), true
	}

	if v, ok := get(EnvAPIKey); ok {
		cfg.OpenRouter.APIKey = v
	}
	if v, ok := get(EnvModel); ok {
		cfg.OpenRouter.DefaultModel = v
	}
	if v, ok := get(EnvAutoSelect); ok {
		switch strings.ToLower(v) {
		case "1", "true", "yes":
			cfg.Selection.AutoSelect = true
		default:
			cfg.Selection.AutoSelect = false
		}
	}
	if v, ok := get(EnvSmokePrompt); ok && v != "" {
		cfg.Selection.SmokeTestPrompt = v
	}
	if v, ok := get(EnvSmokeSystem); ok && v != "" {
		cfg.Selection.SmokeTestSystem = v
	}
	if v, ok := get(EnvSmokeLimit); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Selection.SmokeTestLimit = max(1, n)
		} else {
			log.Warnf("Ignoring invalid %s=%q", EnvSmokeLimit, v)
		}
	}
	if v, ok := get(EnvSmokeDelay); ok {
		if secs, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Selection.SmokeTestDelay = secondsToDuration(max(0, secs)).String()
		} else {
			log.Warnf("Ignoring invalid %s=%q", EnvSmokeDelay, v)
		}
	}
	if v, ok := get(EnvRequestTimeout); ok {
		if secs, err := strconv.ParseFloat(v, 64); err == nil && secs > 0 {
			cfg.OpenRouter.RequestTimeout = secondsToDuration(secs).String()
		} else {
			log.Warnf("Ignoring invalid %s=%q", EnvRequestTimeout, v)
		}
	}
	if v, ok := get(EnvRefreshHours); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Selection.RefreshInterval = fmt.Sprintf("%dh", max(1, n))
		} else {
			log.Warnf("Ignoring invalid %s=%q", EnvRefreshHours, v)
		}
	}
	if v, ok := get(EnvMemoryLimitMB); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ResourceGuard.MemoryLimitMB = n
		} else {
			log.Warnf("Ignoring invalid %s=%q", EnvMemoryLimitMB, v)
		}
	}
	if v, ok := get(EnvLogLevel); ok && v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v, ok := get(EnvManagementKey); ok && v != "" {
		cfg.API.ManagementKey = v
	}
}

func secondsToDuration(secs float64) time.Duration {
	return time.Duration(secs * float64(time.Second))
}
