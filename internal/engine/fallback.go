// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package engine

import (
	"context"

	"github.com/traylinx/switchAIFree/internal/catalog"
	"github.com/traylinx/switchAIFree/internal/completion"
	"github.com/traylinx/switchAIFree/internal/constant"
	"github.com/traylinx/switchAIFree/internal/hooks"
	"github.com/traylinx/switchAIFree/internal/logging"
	"github.com/traylinx/switchAIFree/internal/util"
)

// FallbackReason names what triggered a cascade.
type FallbackReason string

const (
	ReasonRateLimit     FallbackReason = "rate_limit"
	ReasonRefusal       FallbackReason = "refusal"
	ReasonReasoningLeak FallbackReason = "reasoning_leak"
)

// switchReason is recorded on the registry when a fallback candidate wins.
func (r FallbackReason) switchReason() string {
	if r == ReasonRateLimit {
		return "fallback after rate limit"
	}
	return "fallback after refusal/leak"
}

// fallbackSet returns cached candidates not in excluded that carry the free marker.
func fallbackSet(candidates []catalog.Candidate, excluded map[string]struct{}) []catalog.Candidate {
	out := make([]catalog.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if _, skip := excluded[c.ID]; skip {
			continue
		}
		if !util.HasFreeMarker(c.ID) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Recover retries req against untried candidates in ranked order. The first
// success becomes the active model. When every attempt fails the last failure
// is returned; when there is nothing to try the failure detail is no_fallback_models.
func (e *Engine) Recover(ctx context.Context, req completion.Request, excluded map[string]struct{}, reason FallbackReason) (*completion.Success, error) {
	s := e.Settings()
	logger := logging.FromContext(ctx)
	requestID := logging.RequestID(ctx)
	failedModel := firstKey(excluded)

	set := fallbackSet(e.registry.Candidates(), excluded)
	if len(set) == 0 {
		e.Refresh(ctx, "fallback")
		set = fallbackSet(e.registry.Candidates(), excluded)
	}
	if len(set) == 0 {
		e.metrics.RecordFallback(false)
		e.audit.LogFallback(requestID, failedModel, "", string(reason), 0, "skipped")
		e.publish(ctx, hooks.EventFallbackExhausted, failedModel, string(reason),
			map[string]any{"failed_model": failedModel, "attempts": 0})
		return nil, &completion.Failure{Detail: completion.DetailNoFallbackModels}
	}
	if limit := s.probeLimit(); len(set) > limit {
		set = set[:limit]
	}

	var last *completion.Failure
	for i, c := range set {
		logger.Infof("Attempting fallback model %s after %s.", c.ID, reason)
		res, failure := e.invoke(ctx, c.ID, req)
		if failure == nil {
			e.registry.Activate(c.ID, c.Name, reason.switchReason())
			logger.Infof("Switched to fallback free model %s after %s. Sample: %s", c.ID, reason, util.Preview(res.Content, constant.SamplePreviewLength))
			e.metrics.RecordFallback(true)
			e.audit.LogFallback(requestID, failedModel, c.ID, string(reason), i+1, "success")
			e.publish(ctx, hooks.EventFallbackSucceeded, c.ID, string(reason),
				map[string]any{"failed_model": failedModel, "attempts": i + 1})
			return res, nil
		}

		logger.Warnf("Fallback model %s failed%s: %s", c.ID, codeHint(failure.Code), failureText(failure))
		last = failure
		if i < len(set)-1 {
			if err := e.sleep(ctx, s.ProbeDelay); err != nil {
				logger.Warnf("Fallback interrupted: %v", err)
				break
			}
		}
	}

	e.metrics.RecordFallback(false)
	e.audit.LogFallback(requestID, failedModel, "", string(reason), len(set), "failed")
	e.publish(ctx, hooks.EventFallbackExhausted, failedModel, string(reason),
		map[string]any{"failed_model": failedModel, "attempts": len(set)})
	return nil, last
}

func failureText(f *completion.Failure) string {
	if f.Message != "" && f.Detail == completion.DetailProviderError {
		return f.Message
	}
	if f.Message != "" {
		return string(f.Detail) + ": " + f.Message
	}
	return string(f.Detail)
}

func firstKey(m map[string]struct{}) string {
	for k := range m {
		return k
	}
	return ""
}
