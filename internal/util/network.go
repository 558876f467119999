// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package util

import (
	"net"

	"github.com/gin-gonic/gin"
)

// IsLocalhostDirect checks if the request is coming directly from localhost
// without any proxy headers.
func IsLocalhostDirect(c *gin.Context) bool {
	host, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		return false
	}
	ip := net.ParseIP(host)
	if ip == nil || !ip.IsLoopback() {
		return false
	}

	// Proxied requests never count as local.
	if c.GetHeader("X-Forwarded-For") != "" ||
		c.GetHeader("X-Real-IP") != "" ||
		c.GetHeader("Forwarded") != "" {
		return false
	}
	return true
}
