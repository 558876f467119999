// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package guard enforces the process memory ceiling and reports resource usage.
package guard

import (
	"context"
	"os"
	"runtime"
	"sync/atomic"

	"github.com/shirou/gopsutil/v4/process"
	log "github.com/sirupsen/logrus"
	"github.com/traylinx/switchAIFree/internal/logging"
)

const bytesPerMB = 1024 * 1024

// warnRatio is the share of the limit above which Report warns.
const warnRatio = 0.9

// Usage is a point-in-time resource sample.
type Usage struct {
	RSSMB      float64 `json:"rss_mb"`
	LimitMB    int     `json:"limit_mb"`
	CPUPercent float64 `json:"cpu_percent"`
	Goroutines int     `json:"goroutines"`
	Threads    int32   `json:"threads"`
}

// Percent returns RSS as a share of the limit, or 0 without a limit.
func (u Usage) Percent() float64 {
	if u.LimitMB <= 0 {
		return 0
	}
	return u.RSSMB / float64(u.LimitMB) * 100
}

// Sampler reads the current resident set size in bytes.
type Sampler func(ctx context.Context) (uint64, error)

// Guard terminates the process when RSS exceeds the configured limit.
type Guard struct {
	limitMB atomic.Int64
	sample  Sampler
	proc    *process.Process
	exit    func(code int)
}

// Option customizes a Guard.
type Option func(*Guard)

// WithSampler replaces the RSS source.
func WithSampler(s Sampler) Option {
	return func(g *Guard) { g.sample = s }
}

// WithExit replaces os.Exit.
func WithExit(fn func(code int)) Option {
	return func(g *Guard) { g.exit = fn }
}

// New creates a guard for the current process. limitMB <= 0 disables termination.
func New(limitMB int, opts ...Option) *Guard {
	g := &Guard{exit: os.Exit}
	g.limitMB.Store(int64(limitMB))
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		g.proc = p
	} else {
		log.Warnf("Resource guard cannot inspect the current process: %v", err)
	}
	g.sample = g.processRSS
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// SetLimit changes the memory ceiling.
func (g *Guard) SetLimit(limitMB int) {
	g.limitMB.Store(int64(limitMB))
}

// Limit returns the memory ceiling in MB.
func (g *Guard) Limit() int {
	return int(g.limitMB.Load())
}

// Check samples RSS and exits the process when it is above the limit.
func (g *Guard) Check(ctx context.Context) {
	limit := g.Limit()
	rss, err := g.sample(ctx)
	if err != nil {
		logging.FromContext(ctx).Debugf("Memory usage check skipped: %v", err)
		return
	}
	mb := float64(rss) / bytesPerMB
	if limit > 0 && mb > float64(limit) {
		logging.FromContext(ctx).Errorf("Memory limit exceeded: %.2f MB > %d MB. Exiting process.", mb, limit)
		g.exit(0)
		return
	}
	logging.FromContext(ctx).Debugf("Memory usage check passed: %.2f MB (limit %d MB).", mb, limit)
}

// Usage returns the current resource sample.
func (g *Guard) Usage(ctx context.Context) (Usage, error) {
	rss, err := g.sample(ctx)
	if err != nil {
		return Usage{}, err
	}
	u := Usage{
		RSSMB:      float64(rss) / bytesPerMB,
		LimitMB:    g.Limit(),
		Goroutines: runtime.NumGoroutine(),
	}
	if g.proc != nil {
		if cpu, errCPU := g.proc.CPUPercentWithContext(ctx); errCPU == nil {
			u.CPUPercent = cpu
		}
		if n, errThreads := g.proc.NumThreadsWithContext(ctx); errThreads == nil {
			u.Threads = n
		}
	}
	return u, nil
}

// Report logs the current usage and warns when it nears the limit.
func (g *Guard) Report(ctx context.Context) {
	u, err := g.Usage(ctx)
	if err != nil {
		log.Warnf("Resource report unavailable: %v", err)
		return
	}
	entry := log.WithFields(log.Fields{
		"rss_mb":     u.RSSMB,
		"cpu":        u.CPUPercent,
		"goroutines": u.Goroutines,
		"threads":    u.Threads,
	})
	if u.LimitMB > 0 && u.RSSMB > float64(u.LimitMB)*warnRatio {
		entry.Warnf("Memory usage at %.1f%% of the %d MB limit.", u.Percent(), u.LimitMB)
		return
	}
	entry.Info("Resource usage report")
}

func (g *Guard) processRSS(ctx context.Context) (uint64, error) {
	if g.proc == nil {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		return ms.Sys, nil
	}
	info, err := g.proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return info.RSS, nil
}
