// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package engine

import (
	"context"
	"strings"

	"github.com/traylinx/switchAIFree/internal/completion"
	"github.com/traylinx/switchAIFree/internal/logging"
	"github.com/traylinx/switchAIFree/internal/prompts"
	"github.com/traylinx/switchAIFree/internal/util"
)

// AskRequest is one text generation request. When User is empty a post about Topic is requested.
type AskRequest struct {
	Topic  string `json:"topic,omitempty"`
	System string `json:"system,omitempty"`
	User   string `json:"user,omitempty"`
}

// State is the terminal state of one request.
type State string

const (
	StateNoModel        State = "no_model"
	StateDone           State = "done"
	StateFallbackDone   State = "fallback_done"
	StateFallbackFailed State = "fallback_failed"
	StateDiagnostic     State = "diagnostic"
)

// Answer is the detailed result of Ask.
type Answer struct {
	Text    string            `json:"text"`
	State   State             `json:"state"`
	ModelID string            `json:"model_id,omitempty"`
	Detail  completion.Detail `json:"detail,omitempty"`
	Code    string            `json:"code,omitempty"`
}

// Ask returns display text for req. It never fails: every outcome maps to a non-empty string.
func (e *Engine) Ask(ctx context.Context, req AskRequest) string {
	return e.AskDetailed(ctx, req).Text
}

// AskDetailed runs the request state machine and reports how it ended.
func (e *Engine) AskDetailed(ctx context.Context, req AskRequest) Answer {
	s := e.Settings()
	msgs := s.Messages
	logger := logging.FromContext(ctx)
	e.metrics.RecordAsk()

	modelID := e.registry.ActiveModel()
	if modelID == "" {
		modelID = s.DefaultModel
	}
	if modelID == "" || !util.HasFreeMarker(modelID) {
		logger.Error("Attempted to send AI request without a verified free model. Aborting to protect balance.")
		e.metrics.RecordSafeFallback()
		return Answer{Text: msgs.NoModel, State: StateNoModel}
	}

	creq := completion.Request{
		System: strings.TrimSpace(req.System),
		User:   strings.TrimSpace(req.User),
		Params: s.Production,
	}
	if creq.System == "" {
		creq.System = s.SystemPrompt
	}
	if creq.User == "" {
		creq.User = prompts.TopicPrompt(req.Topic)
	}

	res, failure := e.invoke(ctx, modelID, creq)
	if failure == nil {
		return Answer{Text: res.Content, State: StateDone, ModelID: res.ModelID}
	}

	var reason FallbackReason
	switch {
	case failure.RateLimited():
		reason = ReasonRateLimit
		logger.Warnf("Model %s hit rate limit; attempting fallback.", modelID)
	case failure.Detail == completion.DetailRefusal:
		reason = ReasonRefusal
	case failure.Detail == completion.DetailReasoningLeak:
		reason = ReasonReasoningLeak
	default:
		return e.diagnostic(ctx, modelID, failure, msgs)
	}
	if reason != ReasonRateLimit {
		logger.Warnf("Model %s returned unusable content (%s); attempting fallback.", modelID, reason)
	}

	excluded := map[string]struct{}{modelID: {}}
	recovered, err := e.Recover(ctx, creq, excluded, reason)
	if err == nil {
		return Answer{Text: recovered.Content, State: StateFallbackDone, ModelID: recovered.ModelID}
	}

	last, _ := completion.AsFailure(err)
	ans := Answer{State: StateFallbackFailed}
	if last != nil {
		ans.Detail = last.Detail
		ans.Code = last.Code
		logger.Errorf("Fallback after %s failed: %s", reason, failureText(last))
	}
	switch reason {
	case ReasonRateLimit:
		ans.Text = msgs.RateLimited
	case ReasonRefusal:
		ans.Text = msgs.Refusal
	default:
		ans.Text = msgs.ReasoningLeak
	}
	return ans
}

// diagnostic maps a non-recoverable failure to its user-facing message.
func (e *Engine) diagnostic(ctx context.Context, modelID string, f *completion.Failure, msgs Messages) Answer {
	logger := logging.FromContext(ctx)
	ans := Answer{State: StateDiagnostic, ModelID: modelID, Detail: f.Detail, Code: f.Code}

	switch f.Detail {
	case completion.DetailEmptyContent:
		logger.Warnf("Model %s returned empty or too-short content.", modelID)
		ans.Text = msgs.EmptyContent
	case completion.DetailInvalidResponse:
		logger.Errorf("Model %s returned an invalid response payload.", modelID)
		ans.Text = msgs.InvalidResponse
	case completion.DetailMissingAPIKey:
		logger.Error("AI request skipped: OPENROUTER_API_KEY is not configured.")
		ans.Text = msgs.MissingAPIKey
	case completion.DetailProviderError:
		logger.Errorf("Model %s reported error%s: %s", modelID, codeHint(f.Code), f.Message)
		ans.Text = msgs.ProviderError(f.Message)
	default:
		logger.Errorf("AI request failed for model %s: %s", modelID, failureText(f))
		ans.Text = msgs.RequestFailed
	}
	return ans
}
