// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package heartbeat runs the background maintenance tasks of the service:
// the periodic free-model catalog refresh and the resource usage report.
package heartbeat

import (
	"context"
	"time"
)

// Task is a unit of periodic work.
type Task interface {
	// Name identifies the task in logs, events and stats.
	Name() string

	// Interval is the time between runs.
	Interval() time.Duration

	// Run performs one cycle. Errors are reported as events; the task keeps its schedule.
	Run(ctx context.Context) error
}

// Config contains configuration for the heartbeat monitor.
type Config struct {
	// Enabled controls whether background tasks are scheduled at all.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Timeout bounds a single task run. Zero means no bound.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// DefaultConfig returns the default heartbeat configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled: true,
		Timeout: 10 * time.Minute,
	}
}

// Event is emitted by the monitor as tasks start, finish and fail.
type Event struct {
	Type      EventType      `json:"type"`
	Task      string         `json:"task,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Duration  time.Duration  `json:"duration,omitempty"`
	Error     string         `json:"error,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// EventType represents the type of heartbeat event.
type EventType string

const (
	// EventStarted indicates the monitor started
	EventStarted EventType = "heartbeat_started"

	// EventStopped indicates the monitor stopped
	EventStopped EventType = "heartbeat_stopped"

	// EventTaskSucceeded indicates a task run completed without error
	EventTaskSucceeded EventType = "task_succeeded"

	// EventTaskFailed indicates a task run returned an error
	EventTaskFailed EventType = "task_failed"

	// EventIntervalChanged indicates a task was rescheduled
	EventIntervalChanged EventType = "interval_changed"
)

// EventHandler receives monitor events.
type EventHandler interface {
	HandleEvent(event *Event) error
}

// TaskStats are per-task counters.
type TaskStats struct {
	Interval     time.Duration `json:"interval"`
	Runs         int64         `json:"runs"`
	Failures     int64         `json:"failures"`
	LastRun      time.Time     `json:"last_run"`
	LastDuration time.Duration `json:"last_duration"`
	LastError    string        `json:"last_error,omitempty"`
}

// Stats contains statistics about the heartbeat monitor.
type Stats struct {
	StartTime time.Time             `json:"start_time"`
	Running   bool                  `json:"running"`
	Tasks     map[string]*TaskStats `json:"tasks"`
}
