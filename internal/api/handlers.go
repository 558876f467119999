// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/traylinx/switchAIFree/internal/buildinfo"
	"github.com/traylinx/switchAIFree/internal/engine"
	"github.com/traylinx/switchAIFree/internal/logging"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"version":      buildinfo.Version,
		"active_model": s.backend.Registry().ActiveModel(),
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	reg := s.backend.Registry()
	snapshot := s.backend.Metrics().Snapshot()

	response := gin.H{
		"active":     reg.Active(),
		"candidates": reg.Candidates(),
		"metrics": gin.H{
			"counters":             snapshot,
			"success_rate_percent": snapshot.SuccessRate(),
		},
	}
	if s.usage != nil {
		if usage, err := s.usage.Usage(c.Request.Context()); err == nil {
			response["resources"] = usage
		} else {
			logging.FromContext(c.Request.Context()).Debugf("resource usage unavailable: %v", err)
		}
	}
	if s.heartbeat != nil {
		response["heartbeat"] = s.heartbeat.Stats()
	}
	c.JSON(http.StatusOK, response)
}

func (s *Server) handleAsk(c *gin.Context) {
	var req engine.AskRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	answer := s.backend.AskDetailed(c.Request.Context(), req)
	c.JSON(http.StatusOK, answer)
}

func (s *Server) handleRefresh(c *gin.Context) {
	candidates := s.backend.Refresh(c.Request.Context(), "manual")
	c.JSON(http.StatusOK, gin.H{
		"candidates":   candidates,
		"count":        len(candidates),
		"active_model": s.backend.Registry().ActiveModel(),
	})
}
