// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package heartbeat

import (
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
)

const defaultMaxEvents = 100

// LoggingEventHandler logs events and keeps the most recent ones in memory.
type LoggingEventHandler struct {
	mu        sync.RWMutex
	events    []Event
	maxEvents int
}

// NewLoggingEventHandler creates a handler retaining up to maxEvents events.
func NewLoggingEventHandler(maxEvents int) *LoggingEventHandler {
	if maxEvents <= 0 {
		maxEvents = defaultMaxEvents
	}
	return &LoggingEventHandler{
		events:    make([]Event, 0, maxEvents),
		maxEvents: maxEvents,
	}
}

// HandleEvent records the event and logs it at debug level.
func (h *LoggingEventHandler) HandleEvent(event *Event) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}

	h.mu.Lock()
	h.events = append(h.events, *event)
	if len(h.events) > h.maxEvents {
		h.events = h.events[len(h.events)-h.maxEvents:]
	}
	h.mu.Unlock()

	fields := log.Fields{"event": event.Type}
	if event.Task != "" {
		fields["task"] = event.Task
	}
	if event.Duration > 0 {
		fields["duration"] = event.Duration.String()
	}
	log.WithFields(fields).Debug("heartbeat event")
	return nil
}

// Events returns the retained events, oldest first.
func (h *LoggingEventHandler) Events() []Event {
	h.mu.RLock()
	defer h.mu.RUnlock()

	events := make([]Event, len(h.events))
	copy(events, h.events)
	return events
}

// EventsForTask returns retained events of one task.
func (h *LoggingEventHandler) EventsForTask(task string) []Event {
	h.mu.RLock()
	defer h.mu.RUnlock()

	events := make([]Event, 0)
	for _, event := range h.events {
		if event.Task == task {
			events = append(events, event)
		}
	}
	return events
}

// Clear drops all retained events.
func (h *LoggingEventHandler) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = make([]Event, 0, h.maxEvents)
}
