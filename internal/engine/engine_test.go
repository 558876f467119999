// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/traylinx/switchAIFree/internal/catalog"
	"github.com/traylinx/switchAIFree/internal/completion"
	"github.com/traylinx/switchAIFree/internal/registry"
)

// fakeInvoker returns scripted outcomes per model id and records every call.
type fakeInvoker struct {
	mu       sync.Mutex
	outcomes map[string]error
	content  map[string]string
	calls    []string
	reqs     []completion.Request
}

func newFakeInvoker() *fakeInvoker {
	return &fakeInvoker{outcomes: map[string]error{}, content: map[string]string{}}
}

func (f *fakeInvoker) succeed(modelID, content string) *fakeInvoker {
	f.content[modelID] = content
	delete(f.outcomes, modelID)
	return f
}

func (f *fakeInvoker) fail(modelID string, failure *completion.Failure) *fakeInvoker {
	f.outcomes[modelID] = failure
	delete(f.content, modelID)
	return f
}

func (f *fakeInvoker) Complete(ctx context.Context, modelID string, req completion.Request) (*completion.Success, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, modelID)
	f.reqs = append(f.reqs, req)
	if err := ctx.Err(); err != nil {
		return nil, &completion.Failure{Detail: completion.DetailNetworkError, ModelID: modelID, Message: err.Error()}
	}
	if err, ok := f.outcomes[modelID]; ok {
		return nil, err
	}
	if c, ok := f.content[modelID]; ok {
		return &completion.Success{Content: c, Raw: c, ModelID: modelID, HTTPStatus: 200}, nil
	}
	return nil, &completion.Failure{Detail: completion.DetailNetworkError, ModelID: modelID, Message: "unscripted"}
}

func (f *fakeInvoker) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// fakeSource returns a fixed listing.
type fakeSource struct {
	mu         sync.Mutex
	candidates []catalog.Candidate
	ok         bool
	calls      int
	gate       chan struct{}
}

func (s *fakeSource) Refresh(context.Context) ([]catalog.Candidate, bool) {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return append([]catalog.Candidate(nil), s.candidates...), s.ok
}

func (s *fakeSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type sleepRecorder struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (r *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sleeps = append(r.sleeps, d)
	return nil
}

func (r *sleepRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sleeps)
}

func testSettings() Settings {
	return Settings{
		AutoSelect: true,
		ProbeLimit: 5,
		ProbeDelay: 500 * time.Millisecond,
		SmokeRequest: completion.Request{
			System: "smoke-system",
			User:   "smoke-user",
			Params: completion.Params{Temperature: 0.8, TopP: 0.85, MaxTokens: 120},
		},
		SystemPrompt: "persona",
		Production:   completion.Params{Temperature: 0.9, TopP: 0.9, MaxTokens: 256},
		Messages:     DefaultMessages(),
	}
}

type harness struct {
	engine  *Engine
	reg     *registry.Registry
	invoker *fakeInvoker
	source  *fakeSource
	sleeps  *sleepRecorder
}

func newHarness(t *testing.T, settings Settings, candidates ...catalog.Candidate) *harness {
	t.Helper()
	h := &harness{
		reg:     registry.New(),
		invoker: newFakeInvoker(),
		source:  &fakeSource{candidates: candidates, ok: true},
		sleeps:  &sleepRecorder{},
	}
	h.engine = New(h.reg, h.source, h.invoker, settings, WithSleep(h.sleeps.sleep))
	return h
}

func cands(ids ...string) []catalog.Candidate {
	out := make([]catalog.Candidate, len(ids))
	for i, id := range ids {
		out[i] = catalog.Candidate{ID: id, Name: id, ContextTokens: 1000 * (len(ids) - i)}
	}
	return out
}

var (
	rateLimited = &completion.Failure{Detail: completion.DetailProviderError, Code: "429", Message: "rate"}
	refused     = &completion.Failure{Detail: completion.DetailRefusal, Code: "refusal"}
	leaked      = &completion.Failure{Detail: completion.DetailReasoningLeak}
)

func TestAsk_NoModelMakesNoCall(t *testing.T) {
	h := newHarness(t, testSettings())
	ans := h.engine.AskDetailed(context.Background(), AskRequest{Topic: "tariffs"})
	assert.Equal(t, StateNoModel, ans.State)
	assert.Equal(t, DefaultMessages().NoModel, ans.Text)
	assert.Empty(t, h.invoker.callLog())
	assert.Equal(t, int64(1), h.engine.Metrics().Snapshot().SafeFallbacks)
}

func TestAsk_NonFreeDefaultIsRefused(t *testing.T) {
	s := testSettings()
	s.DefaultModel = "openai/gpt-4o"
	h := newHarness(t, s)
	assert.Equal(t, DefaultMessages().NoModel, h.engine.Ask(context.Background(), AskRequest{}))
	assert.Empty(t, h.invoker.callLog())
}

func TestAsk_UsesDefaultModelAndTopicPrompt(t *testing.T) {
	s := testSettings()
	s.DefaultModel = "g/gemma:free"
	h := newHarness(t, s)
	h.invoker.succeed("g/gemma:free", "FAKE NEWS is at it again, folks.")

	ans := h.engine.AskDetailed(context.Background(), AskRequest{})
	assert.Equal(t, StateDone, ans.State)
	assert.Equal(t, "FAKE NEWS is at it again, folks.", ans.Text)
	require.Len(t, h.invoker.reqs, 1)
	assert.Equal(t, "persona", h.invoker.reqs[0].System)
	assert.Equal(t, "Write a Truth Social post about the fake news media.", h.invoker.reqs[0].User)
	assert.Equal(t, 256, h.invoker.reqs[0].Params.MaxTokens)
	assert.Equal(t, "", h.reg.ActiveModel(), "an unverified default is never written to the selection")
}

func TestAsk_ActiveModelPreferredAndCustomPrompts(t *testing.T) {
	s := testSettings()
	s.DefaultModel = "g/gemma:free"
	h := newHarness(t, s)
	h.reg.Activate("a/x:free", "", "test")
	h.invoker.succeed("a/x:free", "TREMENDOUS success, believe me.")

	h.engine.Ask(context.Background(), AskRequest{System: "sys", User: "usr"})
	assert.Equal(t, []string{"a/x:free"}, h.invoker.callLog())
	assert.Equal(t, "sys", h.invoker.reqs[0].System)
	assert.Equal(t, "usr", h.invoker.reqs[0].User)
}

func TestAsk_RateLimitFallsBack(t *testing.T) {
	h := newHarness(t, testSettings())
	h.reg.ReplaceCandidates(cands("a/x:free", "a/y:free", "a/z:free"))
	h.reg.Activate("a/x:free", "", "test")
	h.invoker.fail("a/x:free", rateLimited).succeed("a/y:free", "Recovered post, SAD but TRUE.")

	ans := h.engine.AskDetailed(context.Background(), AskRequest{Topic: "China"})
	assert.Equal(t, StateFallbackDone, ans.State)
	assert.Equal(t, "Recovered post, SAD but TRUE.", ans.Text)
	assert.Equal(t, []string{"a/x:free", "a/y:free"}, h.invoker.callLog())
	assert.Equal(t, "a/y:free", h.reg.ActiveModel())
	assert.Equal(t, "fallback after rate limit", h.reg.Active().Reason)
	assert.Equal(t, h.invoker.reqs[0], h.invoker.reqs[1], "fallback reuses the caller's prompts and parameters")
}

func TestAsk_AllFallbacksFailReturnsRateLimitMessage(t *testing.T) {
	h := newHarness(t, testSettings())
	h.reg.ReplaceCandidates(cands("a/x:free", "a/y:free", "a/z:free"))
	h.reg.Activate("a/x:free", "", "test")
	h.invoker.fail("a/x:free", rateLimited).
		fail("a/y:free", rateLimited).
		fail("a/z:free", &completion.Failure{Detail: completion.DetailEmptyContent})

	ans := h.engine.AskDetailed(context.Background(), AskRequest{})
	assert.Equal(t, StateFallbackFailed, ans.State)
	assert.Equal(t, DefaultMessages().RateLimited, ans.Text)
	assert.Equal(t, completion.DetailEmptyContent, ans.Detail, "last observed failure is kept")
	assert.Equal(t, "a/x:free", h.reg.ActiveModel())
	assert.Equal(t, 1, h.sleeps.count())
}

func TestAsk_RefusalAndLeakFallBack(t *testing.T) {
	for _, tc := range []struct {
		failure *completion.Failure
		message string
	}{
		{refused, DefaultMessages().Refusal},
		{leaked, DefaultMessages().ReasoningLeak},
	} {
		t.Run(string(tc.failure.Detail), func(t *testing.T) {
			h := newHarness(t, testSettings())
			h.reg.ReplaceCandidates(cands("a/x:free", "a/y:free"))
			h.reg.Activate("a/x:free", "", "test")
			h.invoker.fail("a/x:free", tc.failure).succeed("a/y:free", "The winner reply, folks!!")

			assert.Equal(t, "The winner reply, folks!!", h.engine.Ask(context.Background(), AskRequest{}))
			assert.Equal(t, "fallback after refusal/leak", h.reg.Active().Reason)

			h2 := newHarness(t, testSettings())
			h2.reg.ReplaceCandidates(cands("a/x:free", "a/y:free"))
			h2.reg.Activate("a/x:free", "", "test")
			h2.invoker.fail("a/x:free", tc.failure).fail("a/y:free", tc.failure)
			assert.Equal(t, tc.message, h2.engine.Ask(context.Background(), AskRequest{}))
		})
	}
}

func TestAsk_DiagnosticsDoNotFallBack(t *testing.T) {
	msgs := DefaultMessages()
	tests := []struct {
		failure *completion.Failure
		want    string
	}{
		{&completion.Failure{Detail: completion.DetailEmptyContent}, msgs.EmptyContent},
		{&completion.Failure{Detail: completion.DetailInvalidResponse, Code: "502"}, msgs.InvalidResponse},
		{&completion.Failure{Detail: completion.DetailMissingAPIKey}, msgs.MissingAPIKey},
		{&completion.Failure{Detail: completion.DetailProviderError, Code: "400", Message: "bad model"}, "❌ Model error: bad model"},
		{&completion.Failure{Detail: completion.DetailNetworkError, Message: "timeout"}, msgs.RequestFailed},
	}
	for _, tt := range tests {
		t.Run(string(tt.failure.Detail), func(t *testing.T) {
			h := newHarness(t, testSettings())
			h.reg.ReplaceCandidates(cands("a/x:free", "a/y:free"))
			h.reg.Activate("a/x:free", "", "test")
			h.invoker.fail("a/x:free", tt.failure).succeed("a/y:free", "should never be used!")

			ans := h.engine.AskDetailed(context.Background(), AskRequest{})
			assert.Equal(t, StateDiagnostic, ans.State)
			assert.Equal(t, tt.want, ans.Text)
			assert.Equal(t, []string{"a/x:free"}, h.invoker.callLog())
		})
	}
}

func TestRecover_CapsAttemptsAndDelaysBetweenFailures(t *testing.T) {
	s := testSettings()
	s.ProbeLimit = 2
	h := newHarness(t, s)
	h.reg.ReplaceCandidates(cands("a/1:free", "a/2:free", "a/3:free", "a/4:free"))
	for _, id := range []string{"a/1:free", "a/2:free", "a/3:free", "a/4:free"} {
		h.invoker.fail(id, rateLimited)
	}

	_, err := h.engine.Recover(context.Background(), completion.Request{}, map[string]struct{}{"a/1:free": {}}, ReasonRateLimit)
	f, ok := completion.AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, "429", f.Code)
	assert.Equal(t, []string{"a/2:free", "a/3:free"}, h.invoker.callLog())
	assert.Equal(t, []time.Duration{500 * time.Millisecond}, h.sleeps.sleeps)
}

func TestRecover_SkipsIDsWithoutFreeMarker(t *testing.T) {
	h := newHarness(t, testSettings())
	h.reg.ReplaceCandidates([]catalog.Candidate{{ID: "b/named", Name: "Named Free"}, {ID: "a/y:free"}})
	h.invoker.succeed("a/y:free", "Only free ids are invoked.")

	res, err := h.engine.Recover(context.Background(), completion.Request{}, nil, ReasonRefusal)
	require.NoError(t, err)
	assert.Equal(t, "a/y:free", res.ModelID)
	assert.Equal(t, []string{"a/y:free"}, h.invoker.callLog())
}

func TestRecover_EmptyCacheRefreshesOnce(t *testing.T) {
	s := testSettings()
	s.AutoSelect = false
	h := newHarness(t, s, cands("a/x:free", "a/y:free")...)
	h.invoker.succeed("a/y:free", "Fresh from the catalog!!")

	res, err := h.engine.Recover(context.Background(), completion.Request{}, map[string]struct{}{"a/x:free": {}}, ReasonRateLimit)
	require.NoError(t, err)
	assert.Equal(t, "a/y:free", res.ModelID)
	assert.Equal(t, 1, h.source.callCount())
}

func TestRecover_NoFallbackModels(t *testing.T) {
	s := testSettings()
	s.AutoSelect = false
	h := newHarness(t, s, cands("a/x:free")...)
	h.reg.ReplaceCandidates(cands("a/x:free"))

	_, err := h.engine.Recover(context.Background(), completion.Request{}, map[string]struct{}{"a/x:free": {}}, ReasonRateLimit)
	f, ok := completion.AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, completion.DetailNoFallbackModels, f.Detail)
	assert.Equal(t, 1, h.source.callCount())
	assert.Empty(t, h.invoker.callLog())
}

func TestAsk_NoFallbackModelsUsesReasonMessage(t *testing.T) {
	h := newHarness(t, testSettings())
	h.source.ok = false
	h.reg.Activate("a/x:free", "", "test")
	h.invoker.fail("a/x:free", rateLimited)

	ans := h.engine.AskDetailed(context.Background(), AskRequest{})
	assert.Equal(t, DefaultMessages().RateLimited, ans.Text)
	assert.Equal(t, completion.DetailNoFallbackModels, ans.Detail)
}
