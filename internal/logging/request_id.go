// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package logging

import (
	"context"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type requestIDKey struct{}

// NewRequestID returns a short correlation id suitable for the log prefix.
func NewRequestID() string {
	return uuid.NewString()[:8]
}

// WithRequestID stores id in ctx, generating one when id is empty.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = NewRequestID()
	}
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the id stored in ctx, or "".
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// FromContext returns a log entry tagged with the request id carried by ctx.
func FromContext(ctx context.Context) *log.Entry {
	if id := RequestID(ctx); id != "" {
		return log.WithField(RequestIDField, id)
	}
	return log.NewEntry(log.StandardLogger())
}
