// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hooks

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// HookManager loads hook rules from a directory and runs their actions when
// matching events arrive on the bus.
type HookManager struct {
	hooksDir       string
	hooks          map[HookEvent][]*Hook
	eventBus       *EventBus
	programs       map[string]*vm.Program
	actionHandlers map[HookAction]ActionHandler
	subs           []*Subscription
	mu             sync.RWMutex
	inflight       sync.WaitGroup

	watcher     *fsnotify.Watcher
	stopWatcher chan struct{}
	stopOnce    sync.Once
}

// NewHookManager creates a manager reading rules from hooksDir.
func NewHookManager(hooksDir string, eventBus *EventBus) (*HookManager, error) {
	if hooksDir == "" {
		return nil, fmt.Errorf("hooks directory is required")
	}
	if eventBus == nil {
		return nil, fmt.Errorf("event bus is required")
	}

	manager := &HookManager{
		hooksDir:       hooksDir,
		hooks:          make(map[HookEvent][]*Hook),
		eventBus:       eventBus,
		programs:       make(map[string]*vm.Program),
		actionHandlers: make(map[HookAction]ActionHandler),
		stopWatcher:    make(chan struct{}),
	}
	RegisterBuiltInActions(manager)
	return manager, nil
}

// LoadHooks (re)reads every *.yaml / *.yml file under the hooks directory.
// Unreadable or invalid files are logged and skipped.
func (m *HookManager) LoadHooks() error {
	if _, err := os.Stat(m.hooksDir); os.IsNotExist(err) {
		if err := os.MkdirAll(m.hooksDir, 0o755); err != nil {
			return fmt.Errorf("failed to create hooks directory: %w", err)
		}
	}

	newHooks := make(map[HookEvent][]*Hook)
	count := 0
	err := filepath.Walk(m.hooksDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !(strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml")) {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			log.Errorf("Failed to read hook file %s: %v", path, err)
			return nil
		}
		var hook Hook
		if err := yaml.Unmarshal(data, &hook); err != nil {
			log.Errorf("Failed to parse hook %s: %v", path, err)
			return nil
		}
		if err := validateHook(&hook); err != nil {
			log.Errorf("Invalid hook %s: %v", path, err)
			return nil
		}
		hook.FilePath = path
		if hook.Enabled {
			newHooks[hook.Event] = append(newHooks[hook.Event], &hook)
			count++
			log.Debugf("Loaded hook: %s for event %s", hook.Name, hook.Event)
		}
		return nil
	})
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.hooks = newHooks
	m.programs = make(map[string]*vm.Program)
	m.mu.Unlock()

	log.Infof("Loaded %d hook(s) for %d event type(s)", count, len(newHooks))
	return nil
}

func validateHook(h *Hook) error {
	if h.Event == "" {
		return fmt.Errorf("event is required")
	}
	known := false
	for _, evt := range AllEvents {
		if evt == h.Event {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("unknown event %q", h.Event)
	}
	if h.Action == "" {
		return fmt.Errorf("action is required")
	}
	if h.Name == "" {
		h.Name = h.ID
	}
	return nil
}

// SubscribeToAllEvents attaches the manager to every engine event.
func (m *HookManager) SubscribeToAllEvents() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.subs) > 0 {
		return
	}
	for _, evt := range AllEvents {
		m.subs = append(m.subs, m.eventBus.Subscribe(evt, m.handleEvent))
	}
}

func (m *HookManager) handleEvent(ctx *EventContext) {
	m.mu.RLock()
	hooks := m.hooks[ctx.Event]
	m.mu.RUnlock()

	for _, hook := range hooks {
		matches, err := m.evaluateCondition(hook.Condition, ctx)
		if err != nil {
			log.Warnf("Failed to evaluate hook condition '%s': %v", hook.Condition, err)
			continue
		}
		if !matches {
			continue
		}
		log.Infof("Executing hook: %s (Action: %s)", hook.Name, hook.Action)
		m.inflight.Add(1)
		go func(h *Hook) {
			defer m.inflight.Done()
			m.executeAction(h, ctx)
		}(hook)
	}
}

func (m *HookManager) evaluateCondition(condition string, ctx *EventContext) (bool, error) {
	condition = strings.TrimSpace(condition)
	if condition == "" || condition == "true" {
		return true, nil
	}

	m.mu.Lock()
	program, exists := m.programs[condition]
	if !exists {
		var err error
		program, err = expr.Compile(condition, expr.AsBool())
		if err != nil {
			m.mu.Unlock()
			return false, err
		}
		m.programs[condition] = program
	}
	m.mu.Unlock()

	data := ctx.Data
	if data == nil {
		data = map[string]any{}
	}
	env := map[string]any{
		"Event":     string(ctx.Event),
		"Timestamp": ctx.Timestamp,
		"Model":     ctx.Model,
		"Reason":    ctx.Reason,
		"Data":      data,
	}

	output, err := expr.Run(program, env)
	if err != nil {
		return false, err
	}
	result, ok := output.(bool)
	if !ok {
		return false, fmt.Errorf("condition did not return boolean")
	}
	return result, nil
}

func (m *HookManager) executeAction(hook *Hook, ctx *EventContext) {
	m.mu.RLock()
	handler, exists := m.actionHandlers[hook.Action]
	m.mu.RUnlock()

	if !exists {
		log.Warnf("No handler registered for action: %s", hook.Action)
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Panic in hook %s: %v", hook.Name, r)
		}
	}()
	if err := handler(hook, ctx); err != nil {
		log.Errorf("Action %s failed for hook %s: %v", hook.Action, hook.Name, err)
	}
}

// RegisterAction registers a handler for a specific action type.
func (m *HookManager) RegisterAction(action HookAction, handler ActionHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actionHandlers[action] = handler
}

// StartWatcher reloads the rules whenever a file in the hooks directory changes.
func (m *HookManager) StartWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(m.hooksDir); err != nil {
		_ = watcher.Close()
		return err
	}
	m.mu.Lock()
	m.watcher = watcher
	m.mu.Unlock()

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
					log.Infof("Hooks directory changed (%s), reloading...", event.Name)
					time.Sleep(100 * time.Millisecond)
					if err := m.LoadHooks(); err != nil {
						log.Errorf("Failed to reload hooks: %v", err)
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Errorf("Hooks watcher error: %v", err)
			case <-m.stopWatcher:
				return
			}
		}
	}()
	return nil
}

// Close stops the watcher, detaches from the bus and waits for running actions.
func (m *HookManager) Close() {
	m.stopOnce.Do(func() {
		close(m.stopWatcher)
		m.mu.Lock()
		if m.watcher != nil {
			_ = m.watcher.Close()
		}
		subs := m.subs
		m.subs = nil
		m.mu.Unlock()
		for _, sub := range subs {
			sub.Unsubscribe()
		}
	})
	m.inflight.Wait()
}

// Wait blocks until every dispatched action has returned.
func (m *HookManager) Wait() {
	m.inflight.Wait()
}

// HooksDir returns the hooks directory path.
func (m *HookManager) HooksDir() string {
	return m.hooksDir
}

// Hooks returns all loaded hooks flattened.
func (m *HookManager) Hooks() []*Hook {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Hook, 0)
	for _, hooks := range m.hooks {
		result = append(result, hooks...)
	}
	return result
}

// Hook returns a loaded hook by ID.
func (m *HookManager) Hook(id string) *Hook {
	for _, h := range m.Hooks() {
		if h.ID == id {
			return h
		}
	}
	return nil
}

// EvaluateCondition exposes condition evaluation for a single hook.
func (m *HookManager) EvaluateCondition(h *Hook, ctx *EventContext) (bool, error) {
	return m.evaluateCondition(h.Condition, ctx)
}
