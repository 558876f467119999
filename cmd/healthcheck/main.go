// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package main provides a container health probe: it exits 0 when a server
// process is running and 1 otherwise.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/process"
	log "github.com/sirupsen/logrus"
)

// procInfo is the subset of process data the probe inspects.
type procInfo struct {
	pid     int32
	cmdline []string
}

type lister func(ctx context.Context) ([]procInfo, error)

func listProcesses(ctx context.Context) ([]procInfo, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]procInfo, 0, len(procs))
	for _, p := range procs {
		cmdline, errCmd := p.CmdlineSliceWithContext(ctx)
		if errCmd != nil {
			// Exited or inaccessible processes are skipped.
			continue
		}
		out = append(out, procInfo{pid: p.Pid, cmdline: cmdline})
	}
	return out, nil
}

// serverRunning reports whether a process other than self has a command line segment containing name.
func serverRunning(ctx context.Context, list lister, self int32, name string) (bool, error) {
	procs, err := list(ctx)
	if err != nil {
		return false, err
	}
	for _, p := range procs {
		if p.pid == self {
			continue
		}
		for _, segment := range p.cmdline {
			if strings.Contains(segment, name) {
				return true, nil
			}
		}
	}
	return false, nil
}

// endpointHealthy reports whether url answers 2xx.
func endpointHealthy(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func run(ctx context.Context, list lister, self int32, name, url string) int {
	running, err := serverRunning(ctx, list, self, name)
	if err != nil {
		log.Errorf("process scan failed: %v", err)
		return 1
	}
	if !running {
		return 1
	}
	if url != "" && !endpointHealthy(ctx, url) {
		return 1
	}
	return 0
}

func main() {
	var name string
	var url string
	var timeout time.Duration

	flag.StringVar(&name, "name", "switchaifree", "Substring of the server command line")
	flag.StringVar(&url, "url", "", "Optional health endpoint that must answer 2xx, e.g. http://127.0.0.1:8318/healthz")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "Probe timeout")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	code := run(ctx, listProcesses, int32(os.Getpid()), name, url)
	cancel()
	os.Exit(code)
}
