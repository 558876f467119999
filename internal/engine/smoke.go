// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package engine

import (
	"context"

	"github.com/traylinx/switchAIFree/internal/catalog"
	"github.com/traylinx/switchAIFree/internal/constant"
	"github.com/traylinx/switchAIFree/internal/hooks"
	"github.com/traylinx/switchAIFree/internal/logging"
	"github.com/traylinx/switchAIFree/internal/util"
)

// Verified is a candidate that passed a smoke test, with a preview of its reply.
type Verified struct {
	catalog.Candidate
	Sample string `json:"sample"`
}

// probeSet returns the capped smoke-test working set: the previously active
// model first when listed, then ranked candidates, skipping duplicates and ids
// without the free marker.
func probeSet(ranked []catalog.Candidate, previous string, limit int) []catalog.Candidate {
	set := make([]catalog.Candidate, 0, limit)
	seen := make(map[string]struct{}, limit)

	if previous != "" {
		for _, c := range ranked {
			if c.ID == previous && util.HasFreeMarker(c.ID) {
				set = append(set, c)
				seen[c.ID] = struct{}{}
				break
			}
		}
	}
	for _, c := range ranked {
		if len(set) >= limit {
			break
		}
		if _, dup := seen[c.ID]; dup || !util.HasFreeMarker(c.ID) {
			continue
		}
		set = append(set, c)
		seen[c.ID] = struct{}{}
	}
	return set
}

// SmokeTest probes ranked candidates in order and returns the first that
// produces a usable reply. It returns false when every probe fails.
func (e *Engine) SmokeTest(ctx context.Context, ranked []catalog.Candidate) (Verified, bool) {
	s := e.Settings()
	set := probeSet(ranked, e.registry.ActiveModel(), s.probeLimit())
	logger := logging.FromContext(ctx)

	for i, c := range set {
		logger.Infof("Smoke-testing model %s (%d/%d).", c.ID, i+1, len(set))
		res, failure := e.invoke(ctx, c.ID, s.SmokeRequest)
		e.metrics.RecordSmokeProbe(failure == nil)
		if failure == nil {
			sample := res.Content
			logger.Infof("Model %s passed smoke test. Sample: %s", c.ID, util.Preview(sample, constant.SamplePreviewLength))
			e.audit.LogSmokeTest(logging.RequestID(ctx), c.ID, i+1, "success")
			return Verified{Candidate: c, Sample: sample}, true
		}

		logger.Warnf("Model %s failed smoke test%s: %s", c.ID, codeHint(failure.Code), failureText(failure))
		if i < len(set)-1 {
			if err := e.sleep(ctx, s.ProbeDelay); err != nil {
				logger.Warnf("Smoke test interrupted: %v", err)
				break
			}
		}
	}

	e.audit.LogSmokeTest(logging.RequestID(ctx), "", len(set), "failed")
	e.publish(ctx, hooks.EventSmokeTestFailed, "", "", map[string]any{"attempts": len(set)})
	return Verified{}, false
}

func codeHint(code string) string {
	if code == "" {
		return ""
	}
	return " (code " + code + ")"
}
