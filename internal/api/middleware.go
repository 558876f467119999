// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/traylinx/switchAIFree/internal/logging"
	"github.com/traylinx/switchAIFree/internal/util"
	"golang.org/x/crypto/bcrypt"
)

const requestIDHeader = "X-Request-Id"

// RequestID propagates or assigns a request id and stores it in the request context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if requestID == "" {
			requestID = logging.NewRequestID()
		}
		c.Writer.Header().Set(requestIDHeader, requestID)
		c.Request = c.Request.WithContext(logging.WithRequestID(c.Request.Context(), requestID))
		c.Next()
	}
}

// RequestLogger logs each request with its status and latency.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		entry := logging.FromContext(c.Request.Context()).WithFields(log.Fields{
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    status,
			"latency":   time.Since(start).String(),
			"client_ip": c.ClientIP(),
		})
		switch {
		case status >= http.StatusInternalServerError:
			entry.Error("management request")
		case status >= http.StatusBadRequest:
			entry.Warn("management request")
		default:
			entry.Debug("management request")
		}
	}
}

// ManagementAuth guards routes with a bcrypt-hashed bearer key. Without a
// configured key only direct loopback clients are served.
func ManagementAuth(hashedKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if hashedKey == "" {
			if !util.IsLocalhostDirect(c) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "management API is restricted to localhost"})
				return
			}
			c.Next()
			return
		}

		presented := bearerToken(c.GetHeader("Authorization"))
		if presented == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing management key"})
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(hashedKey), []byte(presented)); err != nil {
			logging.FromContext(c.Request.Context()).Warnf("Rejected management request with key %s", util.HideAPIKey(presented))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid management key"})
			return
		}
		c.Next()
	}
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
