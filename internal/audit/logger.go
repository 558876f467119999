// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package audit records model selection decisions to a dedicated JSON-lines log.
// Every switch of the active model, fallback cascade and smoke-test round is
// written so operators can reconstruct why a model was trusted.
package audit

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
	"github.com/traylinx/switchAIFree/internal/constant"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Action types written to the audit log.
const (
	ActionModelSwitch = "model_switch"
	ActionFallback    = "fallback"
	ActionSmokeTest   = "smoke_test"
	ActionRefresh     = "catalog_refresh"
)

// Entry records a single selection decision. Each entry is written as a JSON line.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`

	// RequestID identifies the request or scheduled task that caused the action.
	RequestID string `json:"request_id,omitempty"`

	// ActionType is one of the Action* constants.
	ActionType string `json:"action_type"`

	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`

	// Details holds action-specific metadata (previous model, reason, probe count).
	Details map[string]any `json:"details,omitempty"`

	// Outcome is "success", "failed" or "skipped".
	Outcome string `json:"outcome"`
}

// Logger writes JSON audit entries to a rotating log file.
type Logger struct {
	mu       sync.Mutex
	encoder  *json.Encoder
	file     *lumberjack.Logger
	enabled  bool
	logPath  string
	fallback *log.Logger
}

// Config holds configuration for the audit logger.
type Config struct {
	Enabled bool
	LogPath string

	// MaxSizeMB is the size in megabytes before rotation. Default: 10 MB.
	MaxSizeMB int

	// MaxBackups is the number of rotated files kept. Default: 5.
	MaxBackups int

	// MaxAgeDays is the retention of rotated files. Default: 30 days.
	MaxAgeDays int

	Compress bool
}

// NewLogger creates an audit logger. A disabled logger is a no-op.
func NewLogger(cfg Config) (*Logger, error) {
	if !cfg.Enabled {
		return &Logger{enabled: false, fallback: log.New()}, nil
	}

	if cfg.MaxSizeMB == 0 {
		cfg.MaxSizeMB = 10
	}
	if cfg.MaxBackups == 0 {
		cfg.MaxBackups = 5
	}
	if cfg.MaxAgeDays == 0 {
		cfg.MaxAgeDays = 30
	}

	if err := os.MkdirAll(filepath.Dir(cfg.LogPath), 0o755); err != nil {
		return nil, err
	}

	fileLogger := &lumberjack.Logger{
		Filename:   cfg.LogPath,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}

	return &Logger{
		encoder:  json.NewEncoder(fileLogger),
		file:     fileLogger,
		enabled:  true,
		logPath:  cfg.LogPath,
		fallback: log.New(),
	}, nil
}

// Enabled reports whether entries are written.
func (l *Logger) Enabled() bool {
	return l != nil && l.enabled
}

// LogAction writes an audit entry. It is safe for concurrent use.
func (l *Logger) LogAction(entry Entry) {
	if !l.Enabled() {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if entry.Provider == "" {
		entry.Provider = constant.OpenRouter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.encoder.Encode(entry); err != nil {
		l.fallback.WithFields(log.Fields{
			"error":       err.Error(),
			"request_id":  entry.RequestID,
			"action_type": entry.ActionType,
			"model":       entry.Model,
			"outcome":     entry.Outcome,
		}).Error("Failed to write audit log entry")
	}
}

// LogModelSwitch records a change of the active model. An empty to means AI replies were disabled.
func (l *Logger) LogModelSwitch(requestID, from, to, reason string) {
	outcome := "success"
	if to == "" {
		outcome = "disabled"
	}
	l.LogAction(Entry{
		RequestID:  requestID,
		ActionType: ActionModelSwitch,
		Model:      to,
		Details: map[string]any{
			"previous_model": from,
			"reason":         reason,
		},
		Outcome: outcome,
	})
}

// LogFallback records the result of a fallback cascade.
func (l *Logger) LogFallback(requestID, failedModel, winner, reason string, attempts int, outcome string) {
	l.LogAction(Entry{
		RequestID:  requestID,
		ActionType: ActionFallback,
		Model:      winner,
		Details: map[string]any{
			"failed_model": failedModel,
			"reason":       reason,
			"attempts":     attempts,
		},
		Outcome: outcome,
	})
}

// LogSmokeTest records one smoke-test round.
func (l *Logger) LogSmokeTest(requestID, winner string, probed int, outcome string) {
	l.LogAction(Entry{
		RequestID:  requestID,
		ActionType: ActionSmokeTest,
		Model:      winner,
		Details: map[string]any{
			"probed": probed,
		},
		Outcome: outcome,
	})
}

// LogRefresh records a catalog refresh.
func (l *Logger) LogRefresh(requestID string, candidates int) {
	outcome := "success"
	if candidates == 0 {
		outcome = "empty"
	}
	l.LogAction(Entry{
		RequestID:  requestID,
		ActionType: ActionRefresh,
		Details: map[string]any{
			"candidates": candidates,
		},
		Outcome: outcome,
	})
}

// Close flushes and closes the audit file.
func (l *Logger) Close() error {
	if !l.Enabled() || l.file == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// Rotate triggers a log file rotation.
func (l *Logger) Rotate() error {
	if !l.Enabled() || l.file == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Rotate()
}
