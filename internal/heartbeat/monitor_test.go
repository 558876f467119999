// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package heartbeat

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/traylinx/switchAIFree/internal/catalog"
	"github.com/traylinx/switchAIFree/internal/metrics"
)

// MockTask counts runs and optionally fails or panics.
type MockTask struct {
	name     string
	interval time.Duration
	runs     atomic.Int64
	err      error
	panicMsg string
}

func (m *MockTask) Name() string            { return m.name }
func (m *MockTask) Interval() time.Duration { return m.interval }

func (m *MockTask) Run(context.Context) error {
	m.runs.Add(1)
	if m.panicMsg != "" {
		panic(m.panicMsg)
	}
	return m.err
}

func TestMonitorRegisterTask(t *testing.T) {
	m := NewMonitor(nil)

	assert.Error(t, m.RegisterTask(nil))
	assert.Error(t, m.RegisterTask(&MockTask{name: "", interval: time.Second}))
	assert.Error(t, m.RegisterTask(&MockTask{name: "zero", interval: 0}))
	require.NoError(t, m.RegisterTask(&MockTask{name: "a", interval: time.Second}))
	assert.Error(t, m.RegisterTask(&MockTask{name: "a", interval: time.Second}), "duplicate names are rejected")
	assert.Equal(t, time.Second, m.Interval("a"))
	assert.Equal(t, time.Duration(0), m.Interval("missing"))
}

func TestMonitorStartStop(t *testing.T) {
	m := NewMonitor(DefaultConfig())
	task := &MockTask{name: "tick", interval: 10 * time.Millisecond}
	require.NoError(t, m.RegisterTask(task))

	require.NoError(t, m.Start(context.Background()))
	assert.True(t, m.IsRunning())
	assert.Error(t, m.Start(context.Background()), "double start is rejected")
	assert.Error(t, m.RegisterTask(&MockTask{name: "late", interval: time.Second}))

	assert.Eventually(t, func() bool { return task.runs.Load() >= 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, m.Stop())
	assert.False(t, m.IsRunning())
	after := task.runs.Load()
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, after, task.runs.Load(), "no runs after stop")
	assert.NoError(t, m.Stop(), "stop is idempotent")
}

func TestMonitorDisabled(t *testing.T) {
	m := NewMonitor(&Config{Enabled: false})
	require.NoError(t, m.RegisterTask(&MockTask{name: "a", interval: time.Second}))
	assert.Error(t, m.Start(context.Background()))
	assert.False(t, m.IsRunning())
}

func TestMonitorRunNowRecordsStats(t *testing.T) {
	m := NewMonitor(nil)
	ok := &MockTask{name: "ok", interval: time.Hour}
	bad := &MockTask{name: "bad", interval: time.Hour, err: errors.New("catalog down")}
	boom := &MockTask{name: "boom", interval: time.Hour, panicMsg: "kaboom"}
	for _, task := range []Task{ok, bad, boom} {
		require.NoError(t, m.RegisterTask(task))
	}
	handler := NewLoggingEventHandler(10)
	m.AddEventHandler(handler)

	assert.NoError(t, m.RunNow(context.Background(), "ok"))
	assert.EqualError(t, m.RunNow(context.Background(), "bad"), "catalog down")
	err := m.RunNow(context.Background(), "boom")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
	assert.Error(t, m.RunNow(context.Background(), "missing"))

	stats := m.Stats()
	assert.Equal(t, int64(1), stats.Tasks["ok"].Runs)
	assert.Equal(t, int64(0), stats.Tasks["ok"].Failures)
	assert.Equal(t, int64(1), stats.Tasks["bad"].Failures)
	assert.Equal(t, "catalog down", stats.Tasks["bad"].LastError)
	assert.Equal(t, int64(1), stats.Tasks["boom"].Failures)

	events := handler.Events()
	require.Len(t, events, 3)
	assert.Equal(t, EventTaskSucceeded, events[0].Type)
	assert.Equal(t, EventTaskFailed, events[1].Type)
	assert.Len(t, handler.EventsForTask("bad"), 1)
}

func TestMonitorSetInterval(t *testing.T) {
	m := NewMonitor(nil)
	task := &MockTask{name: "slow", interval: time.Hour}
	require.NoError(t, m.RegisterTask(task))
	require.NoError(t, m.Start(context.Background()))
	defer m.Stop()

	assert.Error(t, m.SetInterval("slow", 0))
	assert.Error(t, m.SetInterval("missing", time.Second))
	require.NoError(t, m.SetInterval("slow", 10*time.Millisecond))
	assert.Equal(t, 10*time.Millisecond, m.Interval("slow"))
	assert.Equal(t, 10*time.Millisecond, m.Stats().Tasks["slow"].Interval)

	assert.Eventually(t, func() bool { return task.runs.Load() >= 1 }, time.Second, 5*time.Millisecond)
}

func TestMonitorTimeoutBoundsRun(t *testing.T) {
	m := NewMonitor(&Config{Enabled: true, Timeout: 20 * time.Millisecond})
	var sawDeadline atomic.Bool
	require.NoError(t, m.RegisterTask(funcTask{name: "wait", fn: func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		sawDeadline.Store(ok)
		<-ctx.Done()
		return ctx.Err()
	}}))

	err := m.RunNow(context.Background(), "wait")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, sawDeadline.Load())
}

type funcTask struct {
	name string
	fn   func(ctx context.Context) error
}

func (f funcTask) Name() string                  { return f.name }
func (f funcTask) Interval() time.Duration       { return time.Hour }
func (f funcTask) Run(ctx context.Context) error { return f.fn(ctx) }

func TestLoggingEventHandler(t *testing.T) {
	h := NewLoggingEventHandler(2)
	assert.Error(t, h.HandleEvent(nil))
	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, h.HandleEvent(&Event{Type: EventTaskSucceeded, Task: name}))
	}
	events := h.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "b", events[0].Task)
	assert.Equal(t, "c", events[1].Task)

	h.Clear()
	assert.Empty(t, h.Events())
}

type recordingRefresher struct {
	mu      sync.Mutex
	reasons []string
}

func (r *recordingRefresher) Refresh(_ context.Context, reason string) []catalog.Candidate {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reasons = append(r.reasons, reason)
	return nil
}

type countingReporter struct{ calls atomic.Int64 }

func (c *countingReporter) Report(context.Context) { c.calls.Add(1) }

func TestRefreshAndReportTasks(t *testing.T) {
	refresher := &recordingRefresher{}
	reporter := &countingReporter{}

	rt := NewRefreshTask(refresher, 168*time.Hour)
	assert.Equal(t, TaskRefresh, rt.Name())
	assert.Equal(t, 168*time.Hour, rt.Interval())
	require.NoError(t, rt.Run(context.Background()))
	assert.Equal(t, []string{"scheduled"}, refresher.reasons)

	m := metrics.New(10)
	m.RecordInvocationSuccess(5 * time.Millisecond)
	pt := NewReportTask(reporter, m, 5*time.Minute)
	assert.Equal(t, TaskReport, pt.Name())
	require.NoError(t, pt.Run(context.Background()))
	require.NoError(t, NewReportTask(reporter, nil, time.Minute).Run(context.Background()))
	assert.Equal(t, int64(2), reporter.calls.Load())
}
