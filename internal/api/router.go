package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/steemit/postboard/pkg/config"
	"github.com/steemit/postboard/pkg/logging"
	"github.com/steemit/postboard/pkg/telemetry"
)

// HealthChecker reports whether a dependency answers
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Router sets up API routes
type Router struct {
	posts   *PostHandler
	handler *JSONRPCHandler
	db      HealthChecker
	cache   HealthChecker
	origins []string
	logger  *zap.Logger
}

// NewRouter creates a new API router
func NewRouter(svc PostService, database HealthChecker, cfg *config.ServerConfig) *Router {
	router := &Router{
		posts:   NewPostHandler(svc),
		handler: NewJSONRPCHandler(),
		db:      database,
		origins: cfg.AllowedOrigins,
		logger:  logging.WithComponent("api-router"),
	}

	NewPostMethods(svc).Register(router.handler)

	return router
}

// WithCache adds the cache to the health report. A failing cache is reported
// but does not fail the check.
func (r *Router) WithCache(c HealthChecker) *Router {
	r.cache = c
	return r
}

// Engine builds a gin engine with middleware and every route mounted
func (r *Router) Engine() *gin.Engine {
	engine := gin.New()
	engine.Use(
		gin.Recovery(),
		RequestID(),
		Tracing(),
		Metrics(),
		AccessLog(),
		r.cors(),
	)
	r.SetupRoutes(engine)
	return engine
}

func (r *Router) cors() gin.HandlerFunc {
	cfg := cors.Config{
		AllowOrigins:     r.origins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		ExposeHeaders:    []string{RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(r.origins) == 0 {
		r.logger.Warn("No allowed origins configured, accepting any origin")
		cfg.AllowOrigins = nil
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	}
	return cors.New(cfg)
}

// SetupRoutes sets up all API routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	engine.GET("/", r.bannerHandler)
	engine.GET("/health", r.healthHandler)

	r.posts.Register(engine)

	// JSON-RPC endpoint
	engine.POST("/rpc", r.handler.Handle)

	engine.NoRoute(func(c *gin.Context) {
		abortWithError(c, NewError(http.StatusNotFound, "Cannot "+c.Request.Method+" "+c.Request.URL.Path))
	})
}

// bannerHandler describes the service
func (r *Router) bannerHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Postboard API",
		"version": telemetry.Version,
		"endpoints": gin.H{
			"posts":  "/posts",
			"health": "/health",
			"rpc":    "/rpc",
		},
	})
}

// healthHandler handles health check requests
func (r *Router) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	body := gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	}

	if r.cache != nil {
		if err := r.cache.Health(ctx); err != nil {
			r.logger.Warn("Cache health check failed", zap.Error(err))
			body["cache"] = "error"
		} else {
			body["cache"] = "ok"
		}
	}

	if r.db != nil {
		if err := r.db.Health(ctx); err != nil {
			r.logger.Error("Database health check failed", zap.Error(err))
			body["status"] = "error"
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
	}

	c.JSON(http.StatusOK, body)
}
