package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/comet-platform/golive/pkg/metrics"
	"github.com/comet-platform/golive/pkg/models"
)

// KeyFunc derives the counting bucket key for a request. The default keys on
// (identity, path) so every endpoint carries its own budget.
type KeyFunc func(c *gin.Context) string

// DenyHandler lets callers replace the standard 429 response entirely.
type DenyHandler func(c *gin.Context, res Result)

// Options configures one middleware instance.
type Options struct {
	// Name labels the policy in logs and metrics (usually the preset name).
	Name string
	// Policy is the base (window, max) quota before role scaling.
	Policy Policy
	// Table resolves role multipliers; nil means no scaling.
	Table *Table
	// KeyPrefix namespaces the Redis keys. Defaults to DefaultKeyPrefix.
	KeyPrefix string
	// KeyFunc overrides bucket key derivation.
	KeyFunc KeyFunc
	// Skip bypasses the limiter entirely: no read, no write, no headers.
	Skip func(c *gin.Context) bool
	// SkipSuccessfulRequests leaves responses below 400 uncounted.
	SkipSuccessfulRequests bool
	// SkipFailedRequests leaves responses of 400 and above uncounted.
	SkipFailedRequests bool
	// CountImmediately increments before the handler runs instead of after
	// the response is finalized. Incompatible with the skip flags.
	CountImmediately bool
	// OnDeny replaces the standard 429 response.
	OnDeny DenyHandler
}

// PresetOptions builds Options for a named preset from the table.
func PresetOptions(table *Table, preset string) Options {
	p, ok := table.Preset(preset)
	if !ok {
		// Unknown preset names are a programming error; fall back to the
		// most restrictive shape rather than panicking in the hot path.
		p = Policy{Window: time.Minute, MaxRequests: 10}
	}
	return Options{Name: preset, Policy: p, Table: table}
}

// RegisterOptions caps account registration at 3 requests per hour and does
// not count successful attempts toward the quota.
func RegisterOptions(table *Table) Options {
	return Options{
		Name:                   "register",
		Policy:                 Policy{Window: time.Hour, MaxRequests: 3},
		Table:                  table,
		SkipSuccessfulRequests: true,
	}
}

// PasswordResetOptions caps password resets at 3 requests per hour, skipping
// successful attempts.
func PasswordResetOptions(table *Table) Options {
	return Options{
		Name:                   "password-reset",
		Policy:                 Policy{Window: time.Hour, MaxRequests: 3},
		Table:                  table,
		SkipSuccessfulRequests: true,
	}
}

// FileUploadOptions caps uploads at 10 requests per hour, skipping
// successful attempts.
func FileUploadOptions(table *Table) Options {
	return Options{
		Name:                   "fileUpload",
		Policy:                 Policy{Window: time.Hour, MaxRequests: 10},
		Table:                  table,
		SkipSuccessfulRequests: true,
	}
}

// RoleFromContext reads the role the auth middleware stored on the request.
func RoleFromContext(c *gin.Context) models.Role {
	return models.Role(c.GetString("role"))
}

// rateLimitError is the structured 429 body.
type rateLimitError struct {
	Success   bool             `json:"success"`
	Error     rateLimitErrBody `json:"error"`
	Timestamp string           `json:"timestamp"`
}

type rateLimitErrBody struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Details rateLimitErrDetails `json:"details"`
}

type rateLimitErrDetails struct {
	Limit      int   `json:"limit"`
	Remaining  int   `json:"remaining"`
	ResetTime  int64 `json:"resetTime"`
	RetryAfter int   `json:"retryAfter"`
}

// Middleware applies the engine to every request on the route. Backend
// failures never block traffic: errors are logged and the request is
// admitted without headers or counting.
func (l *Limiter) Middleware(opts Options) gin.HandlerFunc {
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = DefaultKeyPrefix
	}
	if opts.Name == "" {
		opts.Name = "custom"
	}

	return func(c *gin.Context) {
		if opts.Skip != nil && opts.Skip(c) {
			c.Next()
			return
		}

		identity := Identity(c)
		key := GenerateKey(opts.KeyPrefix, identity, c.Request.URL.Path)
		if opts.KeyFunc != nil {
			key = opts.KeyFunc(c)
		}

		limit := opts.Policy.MaxRequests
		if opts.Table != nil {
			limit = opts.Table.EffectiveLimit(opts.Policy, RoleFromContext(c))
		}

		ctx := c.Request.Context()
		res, err := l.Check(ctx, key, limit, opts.Policy.Window)
		if err != nil {
			l.logger.Error("Rate limit check failed, admitting request",
				zap.String("policy", opts.Name),
				zap.String("key", key),
				zap.Error(err))
			metrics.RateLimitFailOpen.Inc()
			c.Next()
			return
		}

		allowed := res.Current < int64(limit)

		// Headers reflect usage after this request is counted.
		remaining := limit - int(res.Current) - 1
		if remaining < 0 {
			remaining = 0
		}
		retryAfter := int((time.Until(res.ResetAt) + time.Second - 1) / time.Second)
		c.Header("X-RateLimit-Limit", itoa(limit))
		c.Header("X-RateLimit-Remaining", itoa(remaining))
		c.Header("X-RateLimit-Reset", itoa64(res.ResetAt.UnixMilli()))
		if remaining == 0 {
			c.Header("Retry-After", itoa(retryAfter))
		}

		if !allowed {
			l.logger.Warn("Rate limit exceeded",
				zap.String("policy", opts.Name),
				zap.String("identity", identity),
				zap.String("path", c.Request.URL.Path),
				zap.Int("limit", limit),
				zap.Int64("current", res.Current))
			metrics.RateLimitChecks.WithLabelValues(opts.Name, "rejected").Inc()

			if opts.OnDeny != nil {
				opts.OnDeny(c, res)
				c.Abort()
				return
			}

			c.AbortWithStatusJSON(http.StatusTooManyRequests, rateLimitError{
				Success: false,
				Error: rateLimitErrBody{
					Code:    "RATE_LIMIT_EXCEEDED",
					Message: "Too many requests, please try again later",
					Details: rateLimitErrDetails{
						Limit:      limit,
						Remaining:  0,
						ResetTime:  res.ResetAt.UnixMilli(),
						RetryAfter: retryAfter,
					},
				},
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			})
			return
		}

		metrics.RateLimitChecks.WithLabelValues(opts.Name, "allowed").Inc()

		if opts.CountImmediately {
			if err := l.Increment(ctx, key, opts.Policy.Window); err != nil {
				l.logger.Error("Rate limit increment failed", zap.String("key", key), zap.Error(err))
			}
			c.Next()
			return
		}

		c.Next()

		// Deferred counting inspects the finalized status so the skip flags
		// can exclude this response from the quota.
		status := c.Writer.Status()
		if opts.SkipSuccessfulRequests && status < http.StatusBadRequest {
			return
		}
		if opts.SkipFailedRequests && status >= http.StatusBadRequest {
			return
		}
		if err := l.Increment(ctx, key, opts.Policy.Window); err != nil {
			l.logger.Error("Rate limit increment failed", zap.String("key", key), zap.Error(err))
		}
	}
}

func itoa(v int) string { return strconv.Itoa(v) }

func itoa64(v int64) string { return strconv.FormatInt(v, 10) }
