// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package main provides the entry point for the switchAIFree server, which
// keeps a verified free OpenRouter model selected and answers requests with it.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/traylinx/switchAIFree/internal/buildinfo"
	"github.com/traylinx/switchAIFree/internal/cmd"
	"github.com/traylinx/switchAIFree/internal/config"
	"github.com/traylinx/switchAIFree/internal/logging"
)

var (
	Version           = "dev"
	Commit            = "none"
	BuildDate         = "unknown"
	DefaultConfigPath = ""
)

// init initializes the shared logger setup.
func init() {
	logging.SetupBaseLogger()
	buildinfo.Version = Version
	buildinfo.Commit = Commit
	buildinfo.BuildDate = BuildDate
}

func main() {
	var configPath string
	var envFile string
	var showVersion bool
	var noWatch bool

	flag.StringVar(&configPath, "config", DefaultConfigPath, "Configure File Path (default ./config.yaml, optional)")
	flag.StringVar(&envFile, "env-file", ".env", "Environment file loaded before the config")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.BoolVar(&noWatch, "no-watch", false, "Disable config hot reload")
	flag.Parse()

	if showVersion {
		fmt.Printf("switchAIFree Version: %s, Commit: %s, BuiltAt: %s\n", buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate)
		return
	}

	if envFile != "" {
		if errLoad := godotenv.Load(envFile); errLoad != nil && !errors.Is(errLoad, os.ErrNotExist) {
			log.WithError(errLoad).Warn("failed to load .env file")
		}
	}

	// An explicit -config must exist; the implicit ./config.yaml is optional.
	optional := configPath == ""
	if configPath == "" {
		wd, err := os.Getwd()
		if err != nil {
			log.Errorf("failed to get working directory: %v", err)
			os.Exit(1)
		}
		configPath = filepath.Join(wd, "config.yaml")
	}

	cfg, err := config.LoadConfigOptional(configPath, optional)
	if err != nil {
		log.Errorf("failed to load config: %v", err)
		os.Exit(1)
	}

	if err = logging.ConfigureLogOutput(cfg.LoggingToFile, cfg.LogDir); err != nil {
		log.Errorf("failed to configure log output: %v", err)
		os.Exit(1)
	}
	logging.SetLevel(cfg.LogLevel, cfg.Debug)
	log.Infof("switchAIFree Version: %s, Commit: %s, BuiltAt: %s", buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate)

	watchPath := configPath
	if noWatch {
		watchPath = ""
	} else if _, errStat := os.Stat(configPath); errStat != nil {
		log.Debugf("Config file %s not found; hot reload disabled.", configPath)
		watchPath = ""
	}
	cmd.StartService(cfg, watchPath)
}
