// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package watcher reloads the configuration file when it changes on disk.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
	"github.com/traylinx/switchAIFree/internal/config"
	"github.com/traylinx/switchAIFree/internal/watcher/diff"
)

const defaultDebounce = 150 * time.Millisecond

// ReloadFunc receives the freshly loaded configuration.
type ReloadFunc func(cfg *config.Config)

// Watcher observes the config file and invokes the reload callback with each
// new valid configuration. Writes that leave the file content unchanged, and
// files that fail to parse, do not trigger the callback.
type Watcher struct {
	configPath string
	reload     ReloadFunc
	debounce   time.Duration

	mu       sync.Mutex
	config   *config.Config
	lastHash string

	fsw    *fsnotify.Watcher
	stop   chan struct{}
	done   chan struct{}
	timer  *time.Timer
	active bool
}

// NewWatcher creates a watcher for configPath.
func NewWatcher(configPath string, reload ReloadFunc) (*Watcher, error) {
	if configPath == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	if reload == nil {
		return nil, fmt.Errorf("reload callback cannot be nil")
	}
	abs, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}
	return &Watcher{configPath: abs, reload: reload, debounce: defaultDebounce}, nil
}

// SetDebounce changes the quiet period between the last file event and the reload.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if d > 0 {
		w.debounce = d
	}
}

// SetConfig records the configuration currently in effect and the hash of the file backing it.
func (w *Watcher) SetConfig(cfg *config.Config) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.config = cfg
	if data, err := os.ReadFile(w.configPath); err == nil {
		w.lastHash = diff.ComputeHash(data)
	}
}

// Config returns the configuration currently in effect.
func (w *Watcher) Config() *config.Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.config
}

// Start begins watching. The parent directory is watched so that editors
// replacing the file atomically are still observed.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.active {
		return fmt.Errorf("watcher already started")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err = fsw.Add(filepath.Dir(w.configPath)); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(w.configPath), err)
	}

	w.fsw = fsw
	w.stop = make(chan struct{})
	w.done = make(chan struct{})
	w.active = true
	go w.loop(ctx, fsw, w.stop, w.done)

	log.Infof("Watching %s for configuration changes.", w.configPath)
	return nil
}

// Stop ends watching. It is safe to call more than once.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.active {
		w.mu.Unlock()
		return nil
	}
	w.active = false
	close(w.stop)
	if w.timer != nil {
		w.timer.Stop()
	}
	fsw, done := w.fsw, w.done
	w.mu.Unlock()

	err := fsw.Close()
	<-done
	return err
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher, stop, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.configPath {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.schedule()
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			log.Errorf("Config watcher error: %v", err)
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.active {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reloadNow)
}

// reloadNow reads, hashes and parses the config file and invokes the callback on change.
func (w *Watcher) reloadNow() {
	data, err := os.ReadFile(w.configPath)
	if err != nil {
		log.Warnf("Config file %s unreadable, keeping current configuration: %v", w.configPath, err)
		return
	}
	hash := diff.ComputeHash(data)

	w.mu.Lock()
	if hash == w.lastHash {
		w.mu.Unlock()
		log.Debug("Config file rewritten without changes; skipping reload.")
		return
	}
	previous := w.config
	w.mu.Unlock()

	next, err := config.LoadConfig(w.configPath)
	if err != nil {
		log.Errorf("Failed to reload config, keeping current configuration: %v", err)
		return
	}

	for _, change := range diff.HotChanges(previous, next) {
		log.Infof("Config change: %s", change)
	}
	if fields := diff.RestartRequired(previous, next); len(fields) > 0 {
		log.Warnf("Config changes to %v take effect after a restart.", fields)
	}

	w.mu.Lock()
	w.config = next
	w.lastHash = hash
	w.mu.Unlock()

	w.reload(next)
}
