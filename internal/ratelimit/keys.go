package ratelimit

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

// DefaultKeyPrefix is the namespace under which usage counters live in Redis.
const DefaultKeyPrefix = "ratelimit"

// GenerateKey derives the counting bucket key for one (subject, endpoint)
// pair. Distinct paths on the same identity are limited independently.
func GenerateKey(prefix, identity, path string) string {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return fmt.Sprintf("%s:%s:%s", prefix, identity, path)
}

// Identity resolves the limiting subject for a request: the authenticated
// user ID when present, the client IP otherwise, or "unknown" as a last
// resort.
func Identity(c *gin.Context) string {
	if userID := c.GetString("userID"); userID != "" {
		return userID
	}
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	return "unknown"
}
