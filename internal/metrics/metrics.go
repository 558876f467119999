// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package metrics tracks model selection and invocation activity.
// Counters are lock-free; per-detail breakdowns and latency samples are guarded.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics tracks engine operations for observability.
type Metrics struct {
	// Counters track cumulative counts of events
	asks               atomic.Int64
	safeFallbacks      atomic.Int64
	invocations        atomic.Int64
	invocationSuccess  atomic.Int64
	fallbacksTriggered atomic.Int64
	fallbackSuccesses  atomic.Int64
	smokeProbes        atomic.Int64
	smokePasses        atomic.Int64
	refreshes          atomic.Int64
	modelSwitches      atomic.Int64

	failureByDetailMu sync.RWMutex
	failureByDetail   map[string]int64

	// Latency tracking (in milliseconds)
	latencyMu      sync.RWMutex
	latencySamples []int64
	maxSamples     int

	lastCandidateCount atomic.Int64

	startTime time.Time
}

// New creates a new Metrics instance keeping at most maxSamples latency measurements.
func New(maxSamples int) *Metrics {
	if maxSamples <= 0 {
		maxSamples = 1000
	}
	return &Metrics{
		failureByDetail: make(map[string]int64),
		latencySamples:  make([]int64, 0, maxSamples),
		maxSamples:      maxSamples,
		startTime:       time.Now(),
	}
}

// RecordAsk counts one top-level request.
func (m *Metrics) RecordAsk() {
	m.asks.Add(1)
}

// RecordSafeFallback counts a request answered without any model.
func (m *Metrics) RecordSafeFallback() {
	m.safeFallbacks.Add(1)
}

// RecordInvocationSuccess counts a successful completion and records its latency.
func (m *Metrics) RecordInvocationSuccess(latency time.Duration) {
	m.invocations.Add(1)
	m.invocationSuccess.Add(1)
	m.recordLatency(latency.Milliseconds())
}

// RecordInvocationFailure counts a failed completion by detail.
func (m *Metrics) RecordInvocationFailure(detail string) {
	m.invocations.Add(1)
	m.failureByDetailMu.Lock()
	defer m.failureByDetailMu.Unlock()
	m.failureByDetail[detail]++
}

// RecordFallback counts a fallback cascade and whether it recovered.
func (m *Metrics) RecordFallback(recovered bool) {
	m.fallbacksTriggered.Add(1)
	if recovered {
		m.fallbackSuccesses.Add(1)
	}
}

// RecordSmokeProbe counts one smoke-test probe.
func (m *Metrics) RecordSmokeProbe(passed bool) {
	m.smokeProbes.Add(1)
	if passed {
		m.smokePasses.Add(1)
	}
}

// RecordRefresh counts a catalog refresh and stores the candidate count.
func (m *Metrics) RecordRefresh(candidates int) {
	m.refreshes.Add(1)
	m.lastCandidateCount.Store(int64(candidates))
}

// RecordModelSwitch counts an active selection change.
func (m *Metrics) RecordModelSwitch() {
	m.modelSwitches.Add(1)
}

// recordLatency keeps only the most recent maxSamples measurements.
func (m *Metrics) recordLatency(latencyMs int64) {
	m.latencyMu.Lock()
	defer m.latencyMu.Unlock()

	m.latencySamples = append(m.latencySamples, latencyMs)
	if len(m.latencySamples) > m.maxSamples {
		m.latencySamples = m.latencySamples[len(m.latencySamples)-m.maxSamples:]
	}
}

// Snapshot returns a point-in-time copy of all metrics.
func (m *Metrics) Snapshot() *Snapshot {
	m.failureByDetailMu.RLock()
	failures := make(map[string]int64, len(m.failureByDetail))
	for k, v := range m.failureByDetail {
		failures[k] = v
	}
	m.failureByDetailMu.RUnlock()

	m.latencyMu.RLock()
	latencyStats := m.calculateLatencyStats()
	m.latencyMu.RUnlock()

	return &Snapshot{
		Asks:               m.asks.Load(),
		SafeFallbacks:      m.safeFallbacks.Load(),
		Invocations:        m.invocations.Load(),
		InvocationSuccess:  m.invocationSuccess.Load(),
		FallbacksTriggered: m.fallbacksTriggered.Load(),
		FallbackSuccesses:  m.fallbackSuccesses.Load(),
		SmokeProbes:        m.smokeProbes.Load(),
		SmokePasses:        m.smokePasses.Load(),
		Refreshes:          m.refreshes.Load(),
		ModelSwitches:      m.modelSwitches.Load(),
		CandidateCount:     m.lastCandidateCount.Load(),
		FailureByDetail:    failures,
		LatencyStats:       latencyStats,
		UptimeSeconds:      int64(time.Since(m.startTime).Seconds()),
		Timestamp:          time.Now(),
	}
}

// calculateLatencyStats must be called with latencyMu held.
func (m *Metrics) calculateLatencyStats() LatencyStats {
	if len(m.latencySamples) == 0 {
		return LatencyStats{}
	}

	var sum int64
	lo := m.latencySamples[0]
	hi := m.latencySamples[0]
	for _, sample := range m.latencySamples {
		sum += sample
		lo = min(lo, sample)
		hi = max(hi, sample)
	}

	return LatencyStats{
		AverageMs: sum / int64(len(m.latencySamples)),
		MinMs:     lo,
		MaxMs:     hi,
		Samples:   int64(len(m.latencySamples)),
	}
}

// Snapshot is a serializable view of Metrics.
type Snapshot struct {
	Asks               int64 `json:"asks"`
	SafeFallbacks      int64 `json:"safe_fallbacks"`
	Invocations        int64 `json:"invocations"`
	InvocationSuccess  int64 `json:"invocation_success"`
	FallbacksTriggered int64 `json:"fallbacks_triggered"`
	FallbackSuccesses  int64 `json:"fallback_successes"`
	SmokeProbes        int64 `json:"smoke_probes"`
	SmokePasses        int64 `json:"smoke_passes"`
	Refreshes          int64 `json:"refreshes"`
	ModelSwitches      int64 `json:"model_switches"`
	CandidateCount     int64 `json:"candidate_count"`

	FailureByDetail map[string]int64 `json:"failure_by_detail"`
	LatencyStats    LatencyStats     `json:"latency_stats"`

	UptimeSeconds int64     `json:"uptime_seconds"`
	Timestamp     time.Time `json:"timestamp"`
}

// LatencyStats summarises successful completion latencies.
type LatencyStats struct {
	AverageMs int64 `json:"average_ms"`
	MinMs     int64 `json:"min_ms"`
	MaxMs     int64 `json:"max_ms"`
	Samples   int64 `json:"samples"`
}

// SuccessRate returns the invocation success rate as a percentage (0-100).
func (s *Snapshot) SuccessRate() float64 {
	if s.Invocations == 0 {
		return 0.0
	}
	return (float64(s.InvocationSuccess) / float64(s.Invocations)) * 100.0
}
