// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/traylinx/switchAIFree/internal/catalog"
	"github.com/traylinx/switchAIFree/internal/constant"
	"github.com/traylinx/switchAIFree/internal/hooks"
	"github.com/traylinx/switchAIFree/internal/logging"
	"github.com/traylinx/switchAIFree/internal/util"
)

const (
	previewCount   = 5
	refreshTimeout = 5 * time.Minute
)

// Refresh re-reads the catalog, replaces the candidate cache and, when
// auto-select is on, smoke-tests candidates to pick the active model.
// Concurrent calls share one in-flight refresh.
//
// When the catalog cannot be read the cache and selection are left untouched
// and an empty list is returned. When it lists no free model the selection is cleared.
//
// The shared refresh is detached from the caller's cancellation and bounded by
// refreshTimeout. A caller whose ctx ends first gets the current cache back
// while the refresh completes in the background.
func (e *Engine) Refresh(ctx context.Context, reason string) []catalog.Candidate {
	ch := e.refresh.DoChan("refresh", func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return e.doRefresh(rctx, reason), nil
	})

	select {
	case res := <-ch:
		shared, _ := res.Val.([]catalog.Candidate)
		out := make([]catalog.Candidate, len(shared))
		copy(out, shared)
		return out
	case <-ctx.Done():
		logging.FromContext(ctx).Warnf("Free model refresh (%s) abandoned by caller: %v", reason, ctx.Err())
		return e.registry.Candidates()
	}
}

func (e *Engine) doRefresh(ctx context.Context, reason string) []catalog.Candidate {
	logger := logging.FromContext(ctx)
	s := e.Settings()

	candidates, ok := e.source.Refresh(ctx)
	if !ok {
		logger.Warnf("Free model refresh (%s) could not read the catalog. Continuing with %s.", reason, displayModel(e.registry.ActiveModel()))
		e.publish(ctx, hooks.EventCatalogUnreadable, e.registry.ActiveModel(), reason, nil)
		return []catalog.Candidate{}
	}

	e.registry.ReplaceCandidates(candidates)
	e.metrics.RecordRefresh(len(candidates))
	e.audit.LogRefresh(logging.RequestID(ctx), len(candidates))
	defer func() {
		e.publish(ctx, hooks.EventCatalogRefreshed, e.registry.ActiveModel(), reason,
			map[string]any{"candidates": len(candidates)})
	}()

	if len(candidates) == 0 {
		logger.Warn("No free models detected; disabling AI responses for safety.")
		e.registry.Clear("no free models detected")
		return e.registry.Candidates()
	}

	if s.AutoSelect {
		if winner, found := e.SmokeTest(ctx, candidates); found {
			e.registry.Activate(winner.ID, winner.Name, "auto-selected free model after smoke test")
			logger.Infof("Selected model %s (context %d tokens) after smoke testing.", winner.ID, winner.ContextTokens)
			if winner.Sample != "" {
				logger.Debugf("Model %s smoke test sample output: %s", winner.ID, util.Preview(winner.Sample, constant.SamplePreviewLength))
			}
		} else {
			if err := ctx.Err(); err != nil {
				logger.Warnf("Free model refresh (%s) interrupted during smoke tests (%v); keeping %s.", reason, err, displayModel(e.registry.ActiveModel()))
				return e.registry.Candidates()
			}
			logger.Error("No working free model passed the smoke test; AI replies are now disabled.")
			e.registry.Clear("no free model passed the smoke test")
		}
	}

	top := candidates[0]
	logger.Infof("Free model refresh (%s) candidate: %s (context %d tokens). Active model: %s",
		reason, top.ID, top.ContextTokens, displayModel(e.registry.ActiveModel()))
	if log.IsLevelEnabled(log.DebugLevel) {
		logger.Debugf("Top free models (%s): %s", reason, previewList(candidates, previewCount))
	}
	return e.registry.Candidates()
}

func previewList(candidates []catalog.Candidate, n int) string {
	parts := make([]string, 0, n)
	for i, c := range candidates {
		if i >= n {
			break
		}
		parts = append(parts, fmt.Sprintf("%s(%d)", c.ID, c.ContextTokens))
	}
	return strings.Join(parts, ", ")
}

func displayModel(id string) string {
	if id == "" {
		return "<none>"
	}
	return id
}
