// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package hooks runs user-defined automation rules when the model selection
// changes, a fallback cascade ends or a catalog refresh completes.
package hooks

import (
	"time"
)

// HookEvent defines the type of event that can trigger a hook.
type HookEvent string

const (
	EventModelSwitched     HookEvent = "model_switched"
	EventSelectionDisabled HookEvent = "selection_disabled"
	EventFallbackSucceeded HookEvent = "fallback_succeeded"
	EventFallbackExhausted HookEvent = "fallback_exhausted"
	EventSmokeTestFailed   HookEvent = "smoke_test_failed"
	EventCatalogRefreshed  HookEvent = "catalog_refreshed"
	EventCatalogUnreadable HookEvent = "catalog_unreadable"
)

// AllEvents lists every event the engine publishes.
var AllEvents = []HookEvent{
	EventModelSwitched, EventSelectionDisabled,
	EventFallbackSucceeded, EventFallbackExhausted,
	EventSmokeTestFailed, EventCatalogRefreshed, EventCatalogUnreadable,
}

// HookAction defines the action to be performed when a hook is triggered.
type HookAction string

const (
	ActionNotifyWebhook  HookAction = "notify_webhook"
	ActionLogWarning     HookAction = "log_warning"
	ActionRunCommand     HookAction = "run_command"
	ActionRefreshCatalog HookAction = "refresh_catalog"
)

// Hook represents a single automation rule.
type Hook struct {
	ID          string         `yaml:"id" json:"id"`
	Name        string         `yaml:"name" json:"name"`
	Description string         `yaml:"description" json:"description"`
	Event       HookEvent      `yaml:"event" json:"event"`
	Condition   string         `yaml:"condition" json:"condition"`
	Action      HookAction     `yaml:"action" json:"action"`
	Params      map[string]any `yaml:"params" json:"params"`
	Enabled     bool           `yaml:"enabled" json:"enabled"`

	// FilePath is the source file (not in YAML)
	FilePath string `yaml:"-" json:"-"`
}

// EventContext provides the environment for hook execution.
type EventContext struct {
	Event     HookEvent      `json:"event"`
	Timestamp time.Time      `json:"timestamp"`
	RequestID string         `json:"request_id,omitempty"`
	Model     string         `json:"model,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// ActionHandler is a function that executes a hook action.
type ActionHandler func(hook *Hook, ctx *EventContext) error
