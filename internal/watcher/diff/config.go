// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package diff compares configuration snapshots for hot reload.
package diff

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/traylinx/switchAIFree/internal/config"
)

// ComputeHash returns the hex SHA-256 of raw config bytes.
func ComputeHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HotChanges lists settings that changed between old and new and that take
// effect without a restart.
func HotChanges(oldCfg, newCfg *config.Config) []string {
	if oldCfg == nil || newCfg == nil {
		return nil
	}
	var changes []string
	add := func(name string, before, after any) {
		if !reflect.DeepEqual(before, after) {
			changes = append(changes, fmt.Sprintf("%s: %v -> %v", name, before, after))
		}
	}

	add("log-level", oldCfg.LogLevel, newCfg.LogLevel)
	add("debug", oldCfg.Debug, newCfg.Debug)
	add("openrouter.default-model", oldCfg.OpenRouter.DefaultModel, newCfg.OpenRouter.DefaultModel)
	add("openrouter.request-timeout", oldCfg.OpenRouter.RequestTimeout, newCfg.OpenRouter.RequestTimeout)
	add("openrouter.app-title", oldCfg.OpenRouter.AppTitle, newCfg.OpenRouter.AppTitle)
	add("openrouter.referer", oldCfg.OpenRouter.Referer, newCfg.OpenRouter.Referer)
	add("openrouter.headers", headerKeys(oldCfg.OpenRouter.Headers), headerKeys(newCfg.OpenRouter.Headers))
	add("selection.auto-select", oldCfg.Selection.AutoSelect, newCfg.Selection.AutoSelect)
	add("selection.smoke-test-limit", oldCfg.Selection.SmokeTestLimit, newCfg.Selection.SmokeTestLimit)
	add("selection.smoke-test-delay", oldCfg.Selection.SmokeTestDelay, newCfg.Selection.SmokeTestDelay)
	add("selection.smoke-test-prompt", changedMarker(oldCfg.Selection.SmokeTestPrompt), changedMarker(newCfg.Selection.SmokeTestPrompt))
	add("selection.smoke-test-system", changedMarker(oldCfg.Selection.SmokeTestSystem), changedMarker(newCfg.Selection.SmokeTestSystem))
	add("selection.refresh-interval", oldCfg.Selection.RefreshInterval, newCfg.Selection.RefreshInterval)
	add("sampling", oldCfg.Sampling, newCfg.Sampling)
	add("sanitizer", oldCfg.Sanitizer, newCfg.Sanitizer)
	add("messages", changedMarker(fmt.Sprintf("%v", oldCfg.Messages)), changedMarker(fmt.Sprintf("%v", newCfg.Messages)))
	add("resource-guard.memory-limit-mb", oldCfg.ResourceGuard.MemoryLimitMB, newCfg.ResourceGuard.MemoryLimitMB)
	add("resource-guard.report-interval", oldCfg.ResourceGuard.ReportInterval, newCfg.ResourceGuard.ReportInterval)
	return changes
}

// RestartRequired lists changed settings that only apply after a restart.
func RestartRequired(oldCfg, newCfg *config.Config) []string {
	if oldCfg == nil || newCfg == nil {
		return nil
	}
	var fields []string
	if oldCfg.OpenRouter.APIKey != newCfg.OpenRouter.APIKey {
		fields = append(fields, "openrouter.api-key")
	}
	if oldCfg.OpenRouter.BaseURL != newCfg.OpenRouter.BaseURL {
		fields = append(fields, "openrouter.base-url")
	}
	if oldCfg.API.Enabled != newCfg.API.Enabled || oldCfg.ListenAddr() != newCfg.ListenAddr() {
		fields = append(fields, "api")
	}
	if oldCfg.Audit != newCfg.Audit {
		fields = append(fields, "audit")
	}
	if oldCfg.Hooks != newCfg.Hooks {
		fields = append(fields, "hooks")
	}
	if oldCfg.LoggingToFile != newCfg.LoggingToFile || oldCfg.LogDir != newCfg.LogDir {
		fields = append(fields, "logging-to-file")
	}
	return fields
}

func headerKeys(headers map[string]string) string {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ",")
}

// changedMarker hides prompt text from logs while still detecting a change.
func changedMarker(s string) string {
	if s == "" {
		return ""
	}
	return ComputeHash([]byte(s))[:8]
}
