// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
)

const (
	webhookRateLimit = 10
	webhookTimeout   = 5 * time.Second
	commandTimeout   = 10 * time.Second
)

var allowedCommands = []string{"echo", "logger", "notify-send"}

// RegisterBuiltInActions registers the default action handlers.
// refresh_catalog is registered by the caller owning the engine.
func RegisterBuiltInActions(m *HookManager) {
	m.RegisterAction(ActionLogWarning, handleLogWarning)
	wh := NewWebhookHandler()
	m.RegisterAction(ActionNotifyWebhook, wh.Handle)
	m.RegisterAction(ActionRunCommand, handleRunCommand)
}

func handleLogWarning(hook *Hook, ctx *EventContext) error {
	msg, _ := hook.Params["message"].(string)
	if msg == "" {
		msg = "Hook triggered"
	}
	log.WithFields(log.Fields{
		"hook":  hook.Name,
		"event": ctx.Event,
		"model": ctx.Model,
	}).Warn(msg)
	return nil
}

// WebhookHandler posts events to an HTTP endpoint with per-URL rate limiting
// and retry backoff.
type WebhookHandler struct {
	client  *http.Client
	backoff []time.Duration
	sleep   func(context.Context, time.Duration) error
	now     func() time.Time

	mu           sync.Mutex
	rateLimiters map[string]*rateLimiter
}

type rateLimiter struct {
	count    int
	lastTime time.Time
}

// NewWebhookHandler creates a handler with 1s/2s/4s retry backoff.
func NewWebhookHandler() *WebhookHandler {
	return &WebhookHandler{
		client:       &http.Client{Timeout: webhookTimeout},
		backoff:      []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second},
		sleep:        sleepCtx,
		now:          time.Now,
		rateLimiters: make(map[string]*rateLimiter),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Handle implements ActionHandler.
func (h *WebhookHandler) Handle(hook *Hook, ctx *EventContext) error {
	url, _ := hook.Params["url"].(string)
	if url == "" {
		return fmt.Errorf("missing webhook url")
	}
	if !strings.HasPrefix(url, "https://") && !strings.HasPrefix(url, "http://localhost") && !strings.HasPrefix(url, "http://127.0.0.1") {
		return fmt.Errorf("insecure webhook url (must be https or localhost): %s", url)
	}
	if !h.checkRateLimit(url) {
		return fmt.Errorf("rate limit exceeded for webhook: %s", url)
	}

	payload := map[string]any{
		"event":     ctx.Event,
		"timestamp": ctx.Timestamp,
		"hook_id":   hook.ID,
	}
	if ctx.Model != "" {
		payload["model"] = ctx.Model
	}
	if ctx.Reason != "" {
		payload["reason"] = ctx.Reason
	}
	if ctx.RequestID != "" {
		payload["request_id"] = ctx.RequestID
	}
	if len(ctx.Data) > 0 {
		payload["data"] = ctx.Data
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	secret, _ := hook.Params["secret"].(string)
	var signature string
	if secret != "" {
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write(body)
		signature = "sha256=" + hex.EncodeToString(mac.Sum(nil))
	}

	reqCtx := context.Background()
	var lastErr error
	for i := 0; i <= len(h.backoff); i++ {
		if i > 0 {
			if err := h.sleep(reqCtx, h.backoff[i-1]); err != nil {
				return err
			}
		}
		lastErr = h.post(reqCtx, url, body, signature)
		if lastErr == nil {
			return nil
		}
		log.Warnf("Webhook attempt %d failed: %v", i+1, lastErr)
	}
	return fmt.Errorf("webhook failed after retries: %w", lastErr)
}

func (h *WebhookHandler) post(ctx context.Context, url string, body []byte, signature string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "switchAIFree-Hooks/1.0")
	if signature != "" {
		req.Header.Set("X-Hook-Signature", signature)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

func (h *WebhookHandler) checkRateLimit(url string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	limiter, exists := h.rateLimiters[url]
	if !exists {
		limiter = &rateLimiter{lastTime: now}
		h.rateLimiters[url] = limiter
	}
	if now.Sub(limiter.lastTime) > time.Minute {
		limiter.count = 0
		limiter.lastTime = now
	}
	if limiter.count >= webhookRateLimit {
		return false
	}
	limiter.count++
	return true
}

func handleRunCommand(hook *Hook, ctx *EventContext) error {
	cmdStr, _ := hook.Params["command"].(string)
	cmdParts := strings.Fields(cmdStr)
	if len(cmdParts) == 0 {
		return fmt.Errorf("missing command")
	}

	isAllowed := false
	for _, allowed := range allowedCommands {
		if cmdParts[0] == allowed {
			isAllowed = true
			break
		}
	}
	if !isAllowed {
		return fmt.Errorf("command '%s' is not in the whitelist", cmdParts[0])
	}

	runCtx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	cmd := exec.CommandContext(runCtx, cmdParts[0], cmdParts[1:]...)
	cmd.Env = append(cmd.Environ(),
		"SWITCHAI_EVENT="+string(ctx.Event),
		"SWITCHAI_MODEL="+ctx.Model,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("command failed: %v, output: %s", err, string(out))
	}
	return nil
}
