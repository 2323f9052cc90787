package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"situation-backend/internal/actionitems"
	"situation-backend/internal/analyses"
	"situation-backend/internal/services/health"
	"situation-backend/internal/shared/config"
	"situation-backend/internal/shared/metrics"
	"situation-backend/internal/shared/server/middleware"
	"situation-backend/internal/shared/server/respond"
)

// RouterDeps carries the handlers the router wires up. Bootstrap builds
// them; the router only arranges middleware and routes.
type RouterDeps struct {
	Config            config.Config
	HealthService     *health.Service
	AnalysisHandler   *analyses.Handler
	ActionItemHandler *actionitems.Handler
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.HandleMethodNotAllowed = true

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	r.NoMethod(func(c *gin.Context) {
		respond.Error(c, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", nil)
	})
	r.NoRoute(func(c *gin.Context) {
		respond.Error(c, http.StatusNotFound, "not_found", "route not found", nil)
	})

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, deps.HealthService.Status())
	})
	if deps.AnalysisHandler != nil {
		deps.AnalysisHandler.RegisterRoutes(api)
	}
	if deps.ActionItemHandler != nil {
		deps.ActionItemHandler.RegisterRoutes(api)
	}

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
