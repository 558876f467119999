// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hooks

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus_PublishSubscribe(t *testing.T) {
	bus := NewEventBus()
	defer bus.Shutdown()

	var got *EventContext
	bus.Subscribe(EventModelSwitched, func(ctx *EventContext) { got = ctx })

	bus.Publish(&EventContext{Event: EventModelSwitched, Model: "meta/llama:free"})
	require.NotNil(t, got)
	assert.Equal(t, "meta/llama:free", got.Model)
	assert.False(t, got.Timestamp.IsZero(), "timestamp filled in")
}

func TestEventBus_OtherEventsIgnored(t *testing.T) {
	bus := NewEventBus()
	defer bus.Shutdown()

	var calls atomic.Int32
	bus.Subscribe(EventFallbackExhausted, func(*EventContext) { calls.Add(1) })
	bus.Publish(&EventContext{Event: EventModelSwitched})
	assert.Equal(t, int32(0), calls.Load())
}

func TestEventBus_Filter(t *testing.T) {
	bus := NewEventBus()
	defer bus.Shutdown()

	var calls atomic.Int32
	bus.SubscribeWithFilter(EventModelSwitched, func(*EventContext) { calls.Add(1) },
		func(ctx *EventContext) bool { return ctx.Model == "wanted:free" })

	bus.Publish(&EventContext{Event: EventModelSwitched, Model: "other:free"})
	bus.Publish(&EventContext{Event: EventModelSwitched, Model: "wanted:free"})
	assert.Equal(t, int32(1), calls.Load())
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := NewEventBus()
	defer bus.Shutdown()

	var calls atomic.Int32
	sub := bus.Subscribe(EventModelSwitched, func(*EventContext) { calls.Add(1) })
	bus.Publish(&EventContext{Event: EventModelSwitched})
	sub.Unsubscribe()
	bus.Publish(&EventContext{Event: EventModelSwitched})
	assert.Equal(t, int32(1), calls.Load())
}

func TestEventBus_PanicIsolated(t *testing.T) {
	bus := NewEventBus()
	defer bus.Shutdown()

	var calls atomic.Int32
	bus.Subscribe(EventModelSwitched, func(*EventContext) { panic("boom") })
	bus.Subscribe(EventModelSwitched, func(*EventContext) { calls.Add(1) })

	assert.NotPanics(t, func() { bus.Publish(&EventContext{Event: EventModelSwitched}) })
	assert.Equal(t, int32(1), calls.Load())
}

func TestEventBus_PublishAsync(t *testing.T) {
	bus := NewEventBus()
	defer bus.Shutdown()

	done := make(chan string, 1)
	bus.Subscribe(EventCatalogRefreshed, func(ctx *EventContext) { done <- ctx.Reason })
	bus.PublishAsync(&EventContext{Event: EventCatalogRefreshed, Reason: "scheduled"})

	select {
	case reason := <-done:
		assert.Equal(t, "scheduled", reason)
	case <-time.After(time.Second):
		t.Fatal("async event was not delivered")
	}
}

func TestEventBus_AfterShutdown(t *testing.T) {
	bus := NewEventBus()
	bus.Shutdown()
	bus.Shutdown()

	assert.NotPanics(t, func() {
		bus.PublishAsync(&EventContext{Event: EventModelSwitched})
	})
}

func TestEventBus_NilSafe(t *testing.T) {
	var bus *EventBus
	assert.NotPanics(t, func() {
		bus.Publish(&EventContext{Event: EventModelSwitched})
		bus.PublishAsync(&EventContext{Event: EventModelSwitched})
		bus.Shutdown()
	})
}
