package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/comet-platform/golive/internal/ratelimit"
)

// handleRateLimitStatus reports the caller's usage on the api preset. The
// optional path query inspects another endpoint's bucket; the default is this
// endpoint's own bucket, which the api preset on this route is filling.
func (s *Server) handleRateLimitStatus(c *gin.Context) {
	policy, _ := s.table.Preset(ratelimit.PresetAPI)
	limit := s.table.EffectiveLimit(policy, ratelimit.RoleFromContext(c))

	path := c.Query("path")
	if path == "" {
		path = c.Request.URL.Path
	}
	key := ratelimit.GenerateKey(s.cfg.RateLimit.KeyPrefix, ratelimit.Identity(c), path)

	res, err := s.limiter.Check(c.Request.Context(), key, limit, policy.Window)
	if err != nil {
		s.logger.Error("Rate limit status lookup failed", zap.String("key", key), zap.Error(err))
		respondError(c, http.StatusServiceUnavailable, "BACKEND_UNAVAILABLE", "Rate limit backend unavailable")
		return
	}

	respondOK(c, http.StatusOK, gin.H{
		"preset":    ratelimit.PresetAPI,
		"path":      path,
		"limit":     res.Limit,
		"current":   res.Current,
		"remaining": res.Remaining,
		"resetTime": res.ResetAt.UTC().Format(time.RFC3339),
		"resetIn":   int(time.Until(res.ResetAt).Seconds()),
	})
}

type resetRequest struct {
	UserID string `json:"userId" binding:"required"`
	Path   string `json:"path"`
}

// handleRateLimitReset clears counters for a user. With a path it removes the
// single bucket; without one it sweeps every bucket under the user's prefix.
func (s *Server) handleRateLimitReset(c *gin.Context) {
	var req resetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "userId is required")
		return
	}

	ctx := c.Request.Context()
	if req.Path != "" {
		key := ratelimit.GenerateKey(s.cfg.RateLimit.KeyPrefix, req.UserID, req.Path)
		if err := s.limiter.Reset(ctx, key); err != nil {
			s.logger.Error("Rate limit reset failed", zap.String("key", key), zap.Error(err))
			respondError(c, http.StatusInternalServerError, "RESET_FAILED", "Failed to reset rate limit")
			return
		}
		respondOK(c, http.StatusOK, gin.H{"userId": req.UserID, "path": req.Path, "cleared": 1})
		return
	}

	pattern := s.cfg.RateLimit.KeyPrefix + ":" + req.UserID + ":*"
	cleared, err := s.limiter.ResetPattern(ctx, pattern)
	if err != nil {
		s.logger.Error("Rate limit pattern reset failed", zap.String("pattern", pattern), zap.Error(err))
		respondError(c, http.StatusInternalServerError, "RESET_FAILED", "Failed to reset rate limits")
		return
	}
	respondOK(c, http.StatusOK, gin.H{"userId": req.UserID, "cleared": cleared})
}

// handleRateLimitConfig exposes the active policy tables to operators.
func (s *Server) handleRateLimitConfig(c *gin.Context) {
	presets := make(map[string]gin.H)
	for name, p := range s.table.Presets() {
		presets[name] = gin.H{
			"windowSeconds": int(p.Window.Seconds()),
			"maxRequests":   p.MaxRequests,
		}
	}

	multipliers := make(map[string]float64)
	for role, f := range s.table.Multipliers() {
		multipliers[string(role)] = f
	}

	respondOK(c, http.StatusOK, gin.H{
		"presets":         presets,
		"roleMultipliers": multipliers,
		"features": []string{
			"role-multipliers",
			"per-endpoint-buckets",
			"deferred-counting",
			"fail-open",
			"pattern-reset",
		},
	})
}
