// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package heartbeat

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/traylinx/switchAIFree/internal/logging"
)

// scheduled is a registered task with its live schedule.
type scheduled struct {
	task     Task
	interval time.Duration
	reset    chan time.Duration
	stats    TaskStats
}

// Monitor runs each registered task on its own ticker.
type Monitor struct {
	config *Config

	tasks         map[string]*scheduled
	order         []string
	eventHandlers []EventHandler
	startTime     time.Time

	mu sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	running bool
}

// NewMonitor creates a monitor with the given configuration.
func NewMonitor(config *Config) *Monitor {
	if config == nil {
		config = DefaultConfig()
	}
	return &Monitor{
		config: config,
		tasks:  make(map[string]*scheduled),
	}
}

// RegisterTask adds a task. Tasks must be registered before Start.
func (m *Monitor) RegisterTask(task Task) error {
	if task == nil {
		return fmt.Errorf("task cannot be nil")
	}
	name := task.Name()
	if name == "" {
		return fmt.Errorf("task name cannot be empty")
	}
	if task.Interval() <= 0 {
		return fmt.Errorf("task %s has a non-positive interval", name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return fmt.Errorf("cannot register task %s while the monitor is running", name)
	}
	if _, exists := m.tasks[name]; exists {
		return fmt.Errorf("task %s is already registered", name)
	}
	m.tasks[name] = &scheduled{
		task:     task,
		interval: task.Interval(),
		reset:    make(chan time.Duration, 1),
		stats:    TaskStats{Interval: task.Interval()},
	}
	m.order = append(m.order, name)
	return nil
}

// Start begins the task loops. The first run of each task happens one interval after Start.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()

	if !m.config.Enabled {
		m.mu.Unlock()
		return fmt.Errorf("heartbeat monitoring is disabled")
	}
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("heartbeat monitor is already running")
	}

	m.ctx, m.cancel = context.WithCancel(ctx)
	m.startTime = time.Now()
	m.running = true

	names := append([]string(nil), m.order...)
	for _, name := range names {
		s := m.tasks[name]
		m.wg.Add(1)
		go m.loop(s)
	}
	m.mu.Unlock()

	m.emitEvent(&Event{
		Type:      EventStarted,
		Timestamp: time.Now(),
		Data:      map[string]any{"tasks": names},
	})
	return nil
}

// Stop cancels the task loops and waits for in-flight runs to return.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	if m.cancel != nil {
		m.cancel()
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		log.Warn("Heartbeat monitor stop timed out waiting for tasks")
	}

	m.mu.Lock()
	m.running = false
	uptime := time.Since(m.startTime).String()
	m.mu.Unlock()

	m.emitEvent(&Event{
		Type:      EventStopped,
		Timestamp: time.Now(),
		Data:      map[string]any{"uptime": uptime},
	})
	return nil
}

func (m *Monitor) loop(s *scheduled) {
	defer m.wg.Done()

	m.mu.RLock()
	interval := s.interval
	m.mu.RUnlock()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case d := <-s.reset:
			ticker.Reset(d)
		case <-ticker.C:
			m.runTask(m.ctx, s)
		}
	}
}

// RunNow runs the named task once on the caller's goroutine.
func (m *Monitor) RunNow(ctx context.Context, name string) error {
	m.mu.RLock()
	s, ok := m.tasks[name]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("task %s not found", name)
	}
	return m.runTask(ctx, s)
}

func (m *Monitor) runTask(ctx context.Context, s *scheduled) error {
	name := s.task.Name()
	ctx = logging.WithRequestID(ctx, logging.NewRequestID())
	if m.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.config.Timeout)
		defer cancel()
	}

	start := time.Now()
	err := runSafely(ctx, s.task)
	elapsed := time.Since(start)

	m.mu.Lock()
	s.stats.Runs++
	s.stats.LastRun = start
	s.stats.LastDuration = elapsed
	s.stats.LastError = ""
	if err != nil {
		s.stats.Failures++
		s.stats.LastError = err.Error()
	}
	m.mu.Unlock()

	event := &Event{Type: EventTaskSucceeded, Task: name, Timestamp: time.Now(), Duration: elapsed}
	if err != nil {
		logging.FromContext(ctx).Warnf("Heartbeat task %s failed: %v", name, err)
		event.Type = EventTaskFailed
		event.Error = err.Error()
	}
	m.emitEvent(event)
	return err
}

func runSafely(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", task.Name(), r)
		}
	}()
	return task.Run(ctx)
}

// SetInterval reschedules the named task. The new interval applies from the next tick.
func (m *Monitor) SetInterval(name string, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	m.mu.Lock()
	s, ok := m.tasks[name]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("task %s not found", name)
	}
	if s.interval == interval {
		m.mu.Unlock()
		return nil
	}
	previous := s.interval
	s.interval = interval
	s.stats.Interval = interval
	running := m.running
	m.mu.Unlock()

	if running {
		// Drop a pending reset so the latest interval wins.
		select {
		case <-s.reset:
		default:
		}
		s.reset <- interval
	}

	log.Infof("Heartbeat task %s rescheduled from %s to %s.", name, previous, interval)
	m.emitEvent(&Event{
		Type:      EventIntervalChanged,
		Task:      name,
		Timestamp: time.Now(),
		Data:      map[string]any{"from": previous.String(), "to": interval.String()},
	})
	return nil
}

// Interval returns the current interval of the named task, or zero when unknown.
func (m *Monitor) Interval(name string) time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.tasks[name]; ok {
		return s.interval
	}
	return 0
}

// AddEventHandler registers an event handler.
func (m *Monitor) AddEventHandler(handler EventHandler) {
	if handler == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventHandlers = append(m.eventHandlers, handler)
}

func (m *Monitor) emitEvent(event *Event) {
	m.mu.RLock()
	handlers := make([]EventHandler, len(m.eventHandlers))
	copy(handlers, m.eventHandlers)
	m.mu.RUnlock()

	for _, h := range handlers {
		if err := h.HandleEvent(event); err != nil {
			log.Debugf("Heartbeat event handler error: %v", err)
		}
	}
}

// Stats returns a copy of the monitor statistics.
func (m *Monitor) Stats() *Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := &Stats{StartTime: m.startTime, Running: m.running, Tasks: make(map[string]*TaskStats, len(m.tasks))}
	for name, s := range m.tasks {
		st := s.stats
		out.Tasks[name] = &st
	}
	return out
}

// IsRunning reports whether the task loops are active.
func (m *Monitor) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}
