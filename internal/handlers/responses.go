// Package handlers wires the HTTP surface of the gateway: route groups with
// their rate-limit presets, the admin management API, resource stubs, and the
// WebSocket upgrade endpoint.
package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
)

// respondOK writes the standard success envelope.
func respondOK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success":   true,
		"data":      data,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// respondError writes the standard error envelope.
func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
