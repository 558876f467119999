// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/traylinx/switchAIFree/internal/api"
	"github.com/traylinx/switchAIFree/internal/audit"
	"github.com/traylinx/switchAIFree/internal/catalog"
	"github.com/traylinx/switchAIFree/internal/completion"
	"github.com/traylinx/switchAIFree/internal/config"
	"github.com/traylinx/switchAIFree/internal/engine"
	"github.com/traylinx/switchAIFree/internal/guard"
	"github.com/traylinx/switchAIFree/internal/heartbeat"
	"github.com/traylinx/switchAIFree/internal/hooks"
	"github.com/traylinx/switchAIFree/internal/logging"
	"github.com/traylinx/switchAIFree/internal/metrics"
	"github.com/traylinx/switchAIFree/internal/quality"
	"github.com/traylinx/switchAIFree/internal/registry"
	"github.com/traylinx/switchAIFree/internal/sanitize"
	"github.com/traylinx/switchAIFree/internal/util"
	"github.com/traylinx/switchAIFree/internal/watcher"
)

// Service owns every long-lived component of the server.
type Service struct {
	cfg        *config.Config
	configPath string

	fetcher *catalog.HTTPFetcher
	client  *completion.Client
	guard   *guard.Guard
	engine  *engine.Engine
	audit   *audit.Logger
	monitor *heartbeat.Monitor
	events  *heartbeat.LoggingEventHandler
	watcher *watcher.Watcher
	server  *api.Server
	bus     *hooks.EventBus
	hooks   *hooks.HookManager
}

// NewService wires the components described by cfg. configPath enables hot
// reload when non-empty.
func NewService(cfg *config.Config, configPath string) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	s := &Service{cfg: cfg, configPath: configPath}

	auditLogger, err := audit.NewLogger(audit.Config{Enabled: cfg.Audit.Enabled, LogPath: cfg.Audit.LogPath})
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	s.audit = auditLogger

	s.guard = guard.New(cfg.ResourceGuard.MemoryLimitMB)
	s.fetcher = catalog.NewHTTPFetcher(cfg.RequestTimeoutDuration())
	for k, v := range cfg.OpenRouter.Headers {
		s.fetcher.SetHeader(k, v)
	}
	s.client = completion.NewClient(clientOptions(cfg), sanitizerFor(cfg), quality.NewDetector(), s.guard)

	if cfg.Hooks.Enabled {
		if err = s.setupHooks(cfg.Hooks.Dir); err != nil {
			return nil, err
		}
	}

	apiKey := func() string { return s.client.APIKey() }
	source := catalog.New(s.fetcher, cfg.OpenRouter.BaseURL, apiKey)
	s.engine = engine.New(registry.New(), source, s.client, engine.SettingsFromConfig(cfg),
		engine.WithMetrics(metrics.New(0)),
		engine.WithAudit(auditLogger),
		engine.WithEvents(s.bus),
	)

	s.monitor = heartbeat.NewMonitor(heartbeat.DefaultConfig())
	s.events = heartbeat.NewLoggingEventHandler(0)
	s.monitor.AddEventHandler(s.events)
	if err = s.monitor.RegisterTask(heartbeat.NewRefreshTask(s.engine, cfg.RefreshIntervalDuration())); err != nil {
		return nil, err
	}
	if err = s.monitor.RegisterTask(heartbeat.NewReportTask(s.guard, s.engine.Metrics(), cfg.ReportIntervalDuration())); err != nil {
		return nil, err
	}

	if configPath != "" {
		s.watcher, err = watcher.NewWatcher(configPath, s.ApplyConfig)
		if err != nil {
			return nil, err
		}
		s.watcher.SetConfig(cfg)
	}

	if cfg.API.Enabled {
		s.server = api.NewServer(cfg.API, s.engine, api.WithUsage(s.guard), api.WithHeartbeat(s.monitor))
	}
	return s, nil
}

func (s *Service) setupHooks(dir string) error {
	s.bus = hooks.NewEventBus()
	manager, err := hooks.NewHookManager(dir, s.bus)
	if err != nil {
		s.bus.Shutdown()
		return fmt.Errorf("failed to create hook manager: %w", err)
	}
	manager.RegisterAction(hooks.ActionRefreshCatalog, s.refreshFromHook)
	if err = manager.LoadHooks(); err != nil {
		log.Warnf("Failed to load hooks from %s: %v", dir, err)
	}
	manager.SubscribeToAllEvents()
	s.hooks = manager
	return nil
}

// refreshFromHook runs a catalog refresh on behalf of a hook. Refresh events
// cannot trigger it.
func (s *Service) refreshFromHook(hook *hooks.Hook, ev *hooks.EventContext) error {
	if ev.Event == hooks.EventCatalogRefreshed || ev.Event == hooks.EventCatalogUnreadable {
		return fmt.Errorf("refresh_catalog cannot run on %s", ev.Event)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	ctx = logging.WithRequestID(ctx, logging.NewRequestID())
	s.engine.Refresh(ctx, "hook "+hook.Name)
	return nil
}

// Engine returns the selection engine.
func (s *Service) Engine() *engine.Engine {
	return s.engine
}

// ApplyConfig applies the hot-reloadable part of cfg to the running components.
func (s *Service) ApplyConfig(cfg *config.Config) {
	logging.SetLevel(cfg.LogLevel, cfg.Debug)

	opts := clientOptions(cfg)
	// Credentials and endpoints are fixed for the process lifetime.
	opts.APIKey = s.cfg.OpenRouter.APIKey
	opts.BaseURL = s.cfg.OpenRouter.BaseURL
	s.client.Update(opts, sanitizerFor(cfg))
	s.fetcher.SetTimeout(cfg.RequestTimeoutDuration())
	s.engine.UpdateSettings(engine.SettingsFromConfig(cfg))
	s.guard.SetLimit(cfg.ResourceGuard.MemoryLimitMB)

	if err := s.monitor.SetInterval(heartbeat.TaskRefresh, cfg.RefreshIntervalDuration()); err != nil {
		log.Warnf("Failed to reschedule catalog refresh: %v", err)
	}
	if err := s.monitor.SetInterval(heartbeat.TaskReport, cfg.ReportIntervalDuration()); err != nil {
		log.Warnf("Failed to reschedule resource report: %v", err)
	}
	log.Info("Configuration reloaded.")
}

// Run performs the startup refresh, starts background tasks, the config
// watcher and the management API, and blocks until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	if !s.client.HasAPIKey() {
		log.Warnf("%s is not set; AI replies are disabled until it is configured.", config.EnvAPIKey)
	} else {
		log.Infof("Using OpenRouter key %s", util.HideAPIKey(s.cfg.OpenRouter.APIKey))
	}

	startCtx := logging.WithRequestID(ctx, logging.NewRequestID())
	s.engine.Refresh(startCtx, "startup")
	if active := s.engine.Registry().ActiveModel(); active == "" {
		if s.cfg.OpenRouter.DefaultModel != "" {
			log.Warnf("No verified free model yet; requests will use the default model %s.", s.cfg.OpenRouter.DefaultModel)
		} else {
			log.Warn("No verified free model yet; AI replies are disabled.")
		}
	}

	if err := s.monitor.Start(ctx); err != nil {
		return fmt.Errorf("failed to start heartbeat: %w", err)
	}
	if s.watcher != nil {
		if err := s.watcher.Start(ctx); err != nil {
			log.Warnf("Config hot reload unavailable: %v", err)
		}
	}
	if s.hooks != nil {
		if err := s.hooks.StartWatcher(); err != nil {
			log.Warnf("Hook hot reload unavailable: %v", err)
		}
	}

	serverErr := make(chan error, 1)
	if s.server != nil {
		go func() { serverErr <- s.server.Start() }()
	}

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received.")
	case err := <-serverErr:
		runErr = err
	}
	s.shutdown()
	return runErr
}

func (s *Service) shutdown() {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.server.Stop(ctx); err != nil {
			log.Warnf("Management API shutdown: %v", err)
		}
		cancel()
	}
	if s.watcher != nil {
		if err := s.watcher.Stop(); err != nil {
			log.Debugf("Config watcher stop: %v", err)
		}
	}
	if err := s.monitor.Stop(); err != nil {
		log.Debugf("Heartbeat stop: %v", err)
	}
	if s.hooks != nil {
		s.hooks.Close()
	}
	s.bus.Shutdown()
	if err := s.audit.Close(); err != nil {
		log.Debugf("Audit log close: %v", err)
	}
}

func clientOptions(cfg *config.Config) completion.Options {
	return completion.Options{
		BaseURL: cfg.OpenRouter.BaseURL,
		APIKey:  cfg.OpenRouter.APIKey,
		Timeout: cfg.RequestTimeoutDuration(),
		Referer: cfg.OpenRouter.Referer,
		Title:   cfg.OpenRouter.AppTitle,
		Headers: cfg.OpenRouter.Headers,
	}
}

func sanitizerFor(cfg *config.Config) *sanitize.Sanitizer {
	return sanitize.New(sanitize.Options{
		CurrentYear:     cfg.Sanitizer.CurrentYear,
		RewriteHashtags: cfg.Sanitizer.RewriteHashtags,
		DropHashtags:    cfg.Sanitizer.DropHashtags,
	})
}
