// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package completion

import (
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const unknownProviderError = "unknown error"

// Params are the sampling parameters of one request.
type Params struct {
	Temperature float64
	TopP        float64
	MaxTokens   int
}

// Request is one completion call.
type Request struct {
	System string
	User   string
	Params Params
}

// buildBody renders the chat completion payload.
func buildBody(modelID string, req Request) ([]byte, error) {
	body := []byte(`{}`)
	var err error
	set := func(path string, v any) {
		if err != nil {
			return
		}
		body, err = sjson.SetBytes(body, path, v)
	}
	set("model", modelID)
	set("messages.0.role", "system")
	set("messages.0.content", req.System)
	set("messages.1.role", "user")
	set("messages.1.content", req.User)
	set("temperature", req.Params.Temperature)
	set("top_p", req.Params.TopP)
	set("max_tokens", req.Params.MaxTokens)
	return body, err
}

// envelope is the parsed provider response.
type envelope struct {
	root gjson.Result
}

// parseEnvelope returns false when the body is not a JSON object.
func parseEnvelope(body []byte) (envelope, bool) {
	if !gjson.ValidBytes(body) {
		return envelope{}, false
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return envelope{}, false
	}
	return envelope{root: root}, true
}

// providerError returns the error code and message when the envelope carries a truthy error.
func (e envelope) providerError() (code, message string, ok bool) {
	errRes := e.root.Get("error")
	if !truthy(errRes) {
		return "", "", false
	}
	message = unknownProviderError
	if errRes.IsObject() {
		if c := errRes.Get("code"); c.Exists() && c.Type != gjson.Null {
			code = c.String()
		}
		if m := errRes.Get("message"); m.Exists() && m.Type != gjson.Null {
			message = m.String()
		}
		return code, message, true
	}
	if errRes.Type == gjson.String {
		message = errRes.Str
	}
	return code, message, true
}

// content extracts the assistant text from the first choice. It tries the
// message-wrapped shape, then the bare content shape, and yields "" otherwise.
func (e envelope) content() string {
	if c := e.root.Get("choices.0.message.content"); c.Type == gjson.String {
		return strings.TrimSpace(c.Str)
	}
	if c := e.root.Get("choices.0.content"); c.Type == gjson.String {
		return strings.TrimSpace(c.Str)
	}
	return ""
}

func truthy(r gjson.Result) bool {
	switch r.Type {
	case gjson.Null, gjson.False:
		return false
	case gjson.True:
		return true
	case gjson.Number:
		return r.Num != 0
	case gjson.String:
		return r.Str != ""
	case gjson.JSON:
		if r.IsObject() {
			return len(r.Map()) > 0
		}
		return len(r.Array()) > 0
	default:
		return false
	}
}
