package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/comet-platform/golive/internal/auth"
	"github.com/comet-platform/golive/internal/config"
	"github.com/comet-platform/golive/internal/ratelimit"
	"github.com/comet-platform/golive/internal/ws"
)

// HealthChecker reports backend liveness; satisfied by *redis.Client.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server holds the gateway's HTTP dependencies and builds the router.
type Server struct {
	cfg     *config.Config
	logger  *zap.Logger
	limiter *ratelimit.Limiter
	table   *ratelimit.Table
	hub     *ws.Hub
	health  HealthChecker
}

// NewServer assembles the HTTP layer over the limiter engine and the fan-out
// hub.
func NewServer(cfg *config.Config, logger *zap.Logger, limiter *ratelimit.Limiter, table *ratelimit.Table, hub *ws.Hub, health HealthChecker) *Server {
	return &Server{
		cfg:     cfg,
		logger:  logger,
		limiter: limiter,
		table:   table,
		hub:     hub,
		health:  health,
	}
}

// Router builds the gin engine with logging, recovery, CORS, metrics, and
// every route group under its rate-limit preset.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(ginzap.Ginzap(s.logger, time.RFC3339, true))
	r.Use(ginzap.RecoveryWithZap(s.logger, true))
	r.Use(s.corsMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ws", s.handleWS)

	api := r.Group("/api/v1")
	api.GET("/health", s.handleHealth)

	// Unauthenticated auth flows carry the strictest budgets.
	authGroup := api.Group("/auth")
	authGroup.POST("/login", s.limit(ratelimit.PresetOptions(s.table, ratelimit.PresetAuth)), s.handleLogin)
	authGroup.POST("/register", s.limit(ratelimit.RegisterOptions(s.table)), s.handleRegister)
	authGroup.POST("/password-reset", s.limit(ratelimit.PasswordResetOptions(s.table)), s.handlePasswordReset)

	authed := api.Group("")
	authed.Use(auth.Middleware(s.cfg.Auth.JWTSecret, s.logger))

	authed.GET("/rate-limits/status", s.limit(ratelimit.PresetOptions(s.table, ratelimit.PresetAPI)), s.handleRateLimitStatus)

	read := s.limit(ratelimit.PresetOptions(s.table, ratelimit.PresetRead))
	write := s.limit(ratelimit.PresetOptions(s.table, ratelimit.PresetWrite))

	authed.GET("/pipelines", read, s.handleListPipelines)
	authed.GET("/pipelines/:id", read, s.handleGetPipeline)
	authed.POST("/pipelines/:id/trigger", write, s.handleTriggerPipeline)
	authed.GET("/tests", read, s.handleListTestRuns)
	authed.POST("/tests/:id/trigger", write, s.handleTriggerTestRun)
	authed.GET("/deployments", read, s.handleListDeployments)
	authed.POST("/deployments/:id/trigger", write, s.handleTriggerDeployment)
	authed.POST("/uploads", s.limit(ratelimit.FileUploadOptions(s.table)), s.handleUpload)

	admin := authed.Group("")
	admin.Use(auth.RequireAdmin())
	admin.Use(s.limit(ratelimit.PresetOptions(s.table, ratelimit.PresetAdmin)))
	admin.POST("/rate-limits/reset", s.handleRateLimitReset)
	admin.GET("/rate-limits/config", s.handleRateLimitConfig)

	return r
}

// limit wraps a preset's middleware, honoring the global kill switch and the
// configured key prefix.
func (s *Server) limit(opts ratelimit.Options) gin.HandlerFunc {
	if !s.cfg.RateLimit.Enabled {
		return func(c *gin.Context) { c.Next() }
	}
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = s.cfg.RateLimit.KeyPrefix
	}
	return s.limiter.Middleware(opts)
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	cc := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	origins := s.cfg.Server.AllowedOrigins
	if len(origins) == 1 && origins[0] == "*" {
		cc.AllowAllOrigins = true
		cc.AllowCredentials = false
	} else {
		cc.AllowOrigins = origins
	}
	return cors.New(cc)
}

// handleWS authenticates the handshake and hands the connection to the hub.
// Browsers cannot set headers on WebSocket upgrades, so the token may arrive
// as a query parameter.
func (s *Server) handleWS(c *gin.Context) {
	tokenString := auth.TokenFromRequest(c)
	if tokenString == "" {
		respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Token required")
		return
	}
	claims, err := auth.ParseToken(tokenString, s.cfg.Auth.JWTSecret)
	if err != nil {
		s.logger.Debug("WebSocket handshake rejected", zap.Error(err))
		respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired token")
		return
	}
	s.hub.ServeWS(c, claims.UserID)
}

func (s *Server) handleHealth(c *gin.Context) {
	overall := "ok"
	redisStatus := "up"
	status := http.StatusOK
	if err := s.health.HealthCheck(c.Request.Context()); err != nil {
		s.logger.Warn("Health check degraded", zap.Error(err))
		overall = "degraded"
		redisStatus = "down"
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"status": overall,
		"redis":  redisStatus,
		"connections": gin.H{
			"websocket": s.hub.ConnectionCount(),
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
