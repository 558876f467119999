// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package heartbeat

import (
	"context"
	"time"

	"github.com/traylinx/switchAIFree/internal/catalog"
	"github.com/traylinx/switchAIFree/internal/logging"
	"github.com/traylinx/switchAIFree/internal/metrics"
)

// Task names.
const (
	TaskRefresh = "catalog_refresh"
	TaskReport  = "resource_report"
)

// Refresher re-reads the free-model catalog.
type Refresher interface {
	Refresh(ctx context.Context, reason string) []catalog.Candidate
}

// Reporter logs process resource usage and enforces the memory ceiling.
type Reporter interface {
	Report(ctx context.Context)
}

// SnapshotSource provides the metrics logged with each resource report.
type SnapshotSource interface {
	Snapshot() *metrics.Snapshot
}

// RefreshTask refreshes the catalog on a fixed schedule.
type RefreshTask struct {
	refresher Refresher
	interval  time.Duration
}

// NewRefreshTask creates the periodic catalog refresh.
func NewRefreshTask(r Refresher, interval time.Duration) *RefreshTask {
	return &RefreshTask{refresher: r, interval: interval}
}

func (t *RefreshTask) Name() string            { return TaskRefresh }
func (t *RefreshTask) Interval() time.Duration { return t.interval }

func (t *RefreshTask) Run(ctx context.Context) error {
	t.refresher.Refresh(ctx, "scheduled")
	return ctx.Err()
}

// ReportTask logs resource usage and a metrics summary.
type ReportTask struct {
	reporter Reporter
	metrics  SnapshotSource
	interval time.Duration
}

// NewReportTask creates the periodic resource report. metrics may be nil.
func NewReportTask(r Reporter, m SnapshotSource, interval time.Duration) *ReportTask {
	return &ReportTask{reporter: r, metrics: m, interval: interval}
}

func (t *ReportTask) Name() string            { return TaskReport }
func (t *ReportTask) Interval() time.Duration { return t.interval }

func (t *ReportTask) Run(ctx context.Context) error {
	t.reporter.Report(ctx)
	if t.metrics != nil {
		s := t.metrics.Snapshot()
		logging.FromContext(ctx).Infof("Invocations: %d (success rate %.1f%%); fallbacks %d/%d recovered; %d cached candidates.",
			s.Invocations, s.SuccessRate(), s.FallbackSuccesses, s.FallbacksTriggered, s.CandidateCount)
	}
	return nil
}
