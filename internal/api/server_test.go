// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"github.com/traylinx/switchAIFree/internal/catalog"
	"github.com/traylinx/switchAIFree/internal/completion"
	"github.com/traylinx/switchAIFree/internal/config"
	"github.com/traylinx/switchAIFree/internal/engine"
	"github.com/traylinx/switchAIFree/internal/guard"
	"github.com/traylinx/switchAIFree/internal/heartbeat"
	"github.com/traylinx/switchAIFree/internal/registry"
	"golang.org/x/crypto/bcrypt"
)

type staticInvoker struct{ content string }

func (s staticInvoker) Complete(_ context.Context, modelID string, _ completion.Request) (*completion.Success, error) {
	if s.content == "" {
		return nil, &completion.Failure{Detail: completion.DetailNetworkError, ModelID: modelID}
	}
	return &completion.Success{Content: s.content, ModelID: modelID, HTTPStatus: 200}, nil
}

type staticSource struct{ candidates []catalog.Candidate }

func (s staticSource) Refresh(context.Context) ([]catalog.Candidate, bool) {
	return append([]catalog.Candidate(nil), s.candidates...), true
}

type fixedUsage struct{}

func (fixedUsage) Usage(context.Context) (guard.Usage, error) {
	return guard.Usage{RSSMB: 42, LimitMB: 1900, Goroutines: 7}, nil
}

type failingUsage struct{}

func (failingUsage) Usage(context.Context) (guard.Usage, error) {
	return guard.Usage{}, errors.New("no procfs")
}

func noSleep(context.Context, time.Duration) error { return nil }

func newTestEngine(content string) *engine.Engine {
	settings := engine.Settings{
		AutoSelect: true,
		ProbeLimit: 3,
		Messages:   engine.DefaultMessages(),
	}
	source := staticSource{candidates: []catalog.Candidate{
		{ID: "meta/llama:free", Name: "Llama", ContextTokens: 8000},
		{ID: "google/gemma:free", Name: "Gemma", ContextTokens: 4000},
	}}
	return engine.New(registry.New(), source, staticInvoker{content: content}, settings, engine.WithSleep(noSleep))
}

func newTestServer(t *testing.T, key string, e *engine.Engine, opts ...ServerOption) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	hashed := ""
	if key != "" {
		h, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.MinCost)
		require.NoError(t, err)
		hashed = string(h)
	}
	return NewServer(config.APIConfig{Enabled: true, Host: "127.0.0.1", Port: 8318, ManagementKey: hashed}, e, opts...)
}

func do(s *Server, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.RemoteAddr = "127.0.0.1:5555"
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, "", newTestEngine(""))
	rr := do(s, http.MethodGet, "/healthz", "", map[string]string{"X-Forwarded-For": "8.8.8.8"})

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", gjson.Get(rr.Body.String(), "status").String())
	assert.Equal(t, "", gjson.Get(rr.Body.String(), "active_model").String())
	assert.NotEmpty(t, rr.Header().Get(requestIDHeader))
}

func TestRequestIDPropagated(t *testing.T) {
	s := newTestServer(t, "", newTestEngine(""))
	rr := do(s, http.MethodGet, "/healthz", "", map[string]string{requestIDHeader: "abc123"})
	assert.Equal(t, "abc123", rr.Header().Get(requestIDHeader))
}

func TestManagementAuth_LoopbackOnlyWithoutKey(t *testing.T) {
	s := newTestServer(t, "", newTestEngine(""))

	assert.Equal(t, http.StatusOK, do(s, http.MethodGet, "/v0/status", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, do(s, http.MethodGet, "/v0/status", "", map[string]string{"X-Forwarded-For": "1.2.3.4"}).Code)

	req := httptest.NewRequest(http.MethodGet, "/v0/status", nil)
	req.RemoteAddr = "10.0.0.8:4444"
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestManagementAuth_BearerKey(t *testing.T) {
	s := newTestServer(t, "s3cret", newTestEngine(""))

	assert.Equal(t, http.StatusUnauthorized, do(s, http.MethodGet, "/v0/status", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(s, http.MethodGet, "/v0/status", "", map[string]string{"Authorization": "Bearer wrong"}).Code)
	assert.Equal(t, http.StatusUnauthorized, do(s, http.MethodGet, "/v0/status", "", map[string]string{"Authorization": "s3cret"}).Code)
	assert.Equal(t, http.StatusOK, do(s, http.MethodGet, "/v0/status", "", map[string]string{"Authorization": "Bearer s3cret"}).Code)
	assert.Equal(t, http.StatusOK, do(s, http.MethodGet, "/v0/status", "", map[string]string{"Authorization": "bearer s3cret"}).Code)
}

func TestAsk_NoModel(t *testing.T) {
	s := newTestServer(t, "", newTestEngine(""))
	rr := do(s, http.MethodPost, "/v0/ask", "", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Equal(t, engine.DefaultMessages().NoModel, gjson.Get(body, "text").String())
	assert.Equal(t, string(engine.StateNoModel), gjson.Get(body, "state").String())
}

func TestRefreshThenAsk(t *testing.T) {
	e := newTestEngine("SAD! The fake news got it wrong again.")
	s := newTestServer(t, "", e)

	rr := do(s, http.MethodPost, "/v0/refresh", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, int64(2), gjson.Get(rr.Body.String(), "count").Int())
	assert.Equal(t, "meta/llama:free", gjson.Get(rr.Body.String(), "active_model").String())
	assert.Equal(t, "meta/llama:free", gjson.Get(rr.Body.String(), "candidates.0.id").String())

	rr = do(s, http.MethodPost, "/v0/ask", `{"topic":"tariffs"}`, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "SAD! The fake news got it wrong again.", gjson.Get(rr.Body.String(), "text").String())
	assert.Equal(t, "meta/llama:free", gjson.Get(rr.Body.String(), "model_id").String())
}

func TestAsk_InvalidBody(t *testing.T) {
	s := newTestServer(t, "", newTestEngine(""))
	rr := do(s, http.MethodPost, "/v0/ask", `{"topic":`, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestStatusPayload(t *testing.T) {
	e := newTestEngine("Tremendous output, believe me.")
	monitor := heartbeat.NewMonitor(nil)
	require.NoError(t, monitor.RegisterTask(heartbeat.NewRefreshTask(e, time.Hour)))
	s := newTestServer(t, "", e, WithUsage(fixedUsage{}), WithHeartbeat(monitor))

	e.Refresh(context.Background(), "startup")
	rr := do(s, http.MethodGet, "/v0/status", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	body := rr.Body.String()
	assert.Equal(t, "meta/llama:free", gjson.Get(body, "active.model_id").String())
	assert.Equal(t, "auto-selected free model after smoke test", gjson.Get(body, "active.reason").String())
	assert.Equal(t, int64(2), gjson.Get(body, "candidates.#").Int())
	assert.Equal(t, int64(1), gjson.Get(body, "metrics.counters.refreshes").Int())
	assert.Equal(t, float64(42), gjson.Get(body, "resources.rss_mb").Float())
	assert.True(t, gjson.Get(body, "heartbeat.tasks.catalog_refresh").Exists())
}

func TestStatusWithoutUsage(t *testing.T) {
	s := newTestServer(t, "", newTestEngine(""), WithUsage(failingUsage{}))
	rr := do(s, http.MethodGet, "/v0/status", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.False(t, gjson.Get(rr.Body.String(), "resources").Exists())
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", bearerToken("Bearer abc"))
	assert.Equal(t, "abc", bearerToken("  BEARER   abc "))
	assert.Equal(t, "", bearerToken("Bearer "))
	assert.Equal(t, "", bearerToken("Basic abc"))
}
