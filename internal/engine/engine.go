// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package engine selects and invokes free models. It discovers candidates,
// verifies them with smoke tests, keeps one trusted selection, and on rate
// limiting or unusable output cascades to the next verified candidate.
//
// Attempts within one request are strictly sequential. Shared state lives in
// the registry and is replaced wholesale; no lock is held across a network call.
package engine

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/traylinx/switchAIFree/internal/audit"
	"github.com/traylinx/switchAIFree/internal/catalog"
	"github.com/traylinx/switchAIFree/internal/completion"
	"github.com/traylinx/switchAIFree/internal/hooks"
	"github.com/traylinx/switchAIFree/internal/metrics"
	"github.com/traylinx/switchAIFree/internal/registry"
	"golang.org/x/sync/singleflight"
)

// Invoker issues one completion request. Errors are *completion.Failure.
type Invoker interface {
	Complete(ctx context.Context, modelID string, req completion.Request) (*completion.Success, error)
}

// CandidateSource lists ranked free candidates. ok is false when the listing could not be obtained.
type CandidateSource interface {
	Refresh(ctx context.Context) (candidates []catalog.Candidate, ok bool)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Engine is the model selection and invocation engine.
type Engine struct {
	registry *registry.Registry
	source   CandidateSource
	invoker  Invoker
	metrics  *metrics.Metrics
	audit    *audit.Logger
	events   *hooks.EventBus
	sleep    SleepFunc

	settings atomic.Pointer[Settings]
	refresh  singleflight.Group
}

// Option customizes an Engine.
type Option func(*Engine)

// WithMetrics records activity in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithAudit records selection decisions in l.
func WithAudit(l *audit.Logger) Option {
	return func(e *Engine) { e.audit = l }
}

// WithSleep replaces the inter-attempt wait.
func WithSleep(fn SleepFunc) Option {
	return func(e *Engine) { e.sleep = fn }
}

// New creates an Engine over reg.
func New(reg *registry.Registry, source CandidateSource, invoker Invoker, settings Settings, opts ...Option) *Engine {
	e := &Engine{
		registry: reg,
		source:   source,
		invoker:  invoker,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = metrics.New(0)
	}
	e.UpdateSettings(settings)

	reg.OnSwitch(func(t registry.Transition) {
		e.metrics.RecordModelSwitch()
		e.audit.LogModelSwitch("", t.From.ModelID, t.To.ModelID, t.To.Reason)
		data := map[string]any{"from": t.From.ModelID, "to": t.To.ModelID}
		if t.To.ModelID == "" {
			e.publish(context.Background(), hooks.EventSelectionDisabled, t.From.ModelID, t.To.Reason, data)
			return
		}
		e.publish(context.Background(), hooks.EventModelSwitched, t.To.ModelID, t.To.Reason, data)
	})
	return e
}

// UpdateSettings atomically replaces the engine settings.
func (e *Engine) UpdateSettings(s Settings) {
	e.settings.Store(&s)
}

// Settings returns the current settings.
func (e *Engine) Settings() Settings {
	return *e.settings.Load()
}

// Registry exposes the selection state for read access.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// Metrics returns the engine metrics.
func (e *Engine) Metrics() *metrics.Metrics {
	return e.metrics
}

// invoke calls the invoker and records the outcome.
func (e *Engine) invoke(ctx context.Context, modelID string, req completion.Request) (*completion.Success, *completion.Failure) {
	res, err := e.invoker.Complete(ctx, modelID, req)
	if err == nil {
		e.metrics.RecordInvocationSuccess(res.Latency)
		return res, nil
	}
	f, ok := completion.AsFailure(err)
	if !ok {
		f = &completion.Failure{Detail: completion.DetailNetworkError, ModelID: modelID, Message: err.Error()}
	}
	e.metrics.RecordInvocationFailure(string(f.Detail))
	return nil, f
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
