// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package api serves the management HTTP surface: health, status, ask and refresh.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/traylinx/switchAIFree/internal/catalog"
	"github.com/traylinx/switchAIFree/internal/config"
	"github.com/traylinx/switchAIFree/internal/engine"
	"github.com/traylinx/switchAIFree/internal/guard"
	"github.com/traylinx/switchAIFree/internal/heartbeat"
	"github.com/traylinx/switchAIFree/internal/metrics"
	"github.com/traylinx/switchAIFree/internal/registry"
)

// Backend is the engine surface the API drives.
type Backend interface {
	AskDetailed(ctx context.Context, req engine.AskRequest) engine.Answer
	Refresh(ctx context.Context, reason string) []catalog.Candidate
	Registry() *registry.Registry
	Metrics() *metrics.Metrics
}

// UsageSource reports process resource usage.
type UsageSource interface {
	Usage(ctx context.Context) (guard.Usage, error)
}

// HeartbeatSource reports background task statistics.
type HeartbeatSource interface {
	Stats() *heartbeat.Stats
}

// Server is the management HTTP server.
type Server struct {
	backend       Backend
	usage         UsageSource
	heartbeat     HeartbeatSource
	managementKey string
	addr          string

	engine *gin.Engine
	server *http.Server
}

// ServerOption customises a Server.
type ServerOption func(*Server)

// WithUsage adds resource usage to the status payload.
func WithUsage(u UsageSource) ServerOption {
	return func(s *Server) { s.usage = u }
}

// WithHeartbeat adds background task statistics to the status payload.
func WithHeartbeat(h HeartbeatSource) ServerOption {
	return func(s *Server) { s.heartbeat = h }
}

// NewServer builds the router for cfg. cfg.ManagementKey must already be a bcrypt hash or empty.
func NewServer(cfg config.APIConfig, backend Backend, opts ...ServerOption) *Server {
	s := &Server{
		backend:       backend,
		managementKey: cfg.ManagementKey,
		addr:          fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), RequestLogger())
	r.GET("/healthz", s.handleHealth)

	v0 := r.Group("/v0", ManagementAuth(s.managementKey))
	v0.GET("/status", s.handleStatus)
	v0.POST("/ask", s.handleAsk)
	v0.POST("/refresh", s.handleRefresh)

	s.engine = r
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}

// Start serves until Stop is called. It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	log.Infof("Management API listening on %s", s.addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("management API failed: %w", err)
	}
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
