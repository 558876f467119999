// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package cmd builds and runs the switchAIFree service.
package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/traylinx/switchAIFree/internal/config"
)

// StartService builds the service from cfg and runs it until SIGINT or SIGTERM.
// configPath enables config hot reload when non-empty.
func StartService(cfg *config.Config, configPath string) {
	service, err := NewService(cfg, configPath)
	if err != nil {
		log.Errorf("failed to build service: %v", err)
		return
	}

	ctxSignal, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err = service.Run(ctxSignal); err != nil && !errors.Is(err, context.Canceled) {
		log.Errorf("service exited with error: %v", err)
	}
}
