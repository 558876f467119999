// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package engine

import (
	"context"

	"github.com/traylinx/switchAIFree/internal/hooks"
	"github.com/traylinx/switchAIFree/internal/logging"
)

// WithEvents publishes selection lifecycle events on bus.
func WithEvents(bus *hooks.EventBus) Option {
	return func(e *Engine) { e.events = bus }
}

// publish queues an event without blocking the caller. A nil bus drops it.
func (e *Engine) publish(ctx context.Context, event hooks.HookEvent, model, reason string, data map[string]any) {
	if e.events == nil {
		return
	}
	e.events.PublishAsync(&hooks.EventContext{
		Event:     event,
		RequestID: logging.RequestID(ctx),
		Model:     model,
		Reason:    reason,
		Data:      data,
	})
}
