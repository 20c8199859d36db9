package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrskwiw/content-jumpstart-backend-sub005/internal/projects"
	"github.com/mrskwiw/content-jumpstart-backend-sub005/internal/revisions"
	"github.com/mrskwiw/content-jumpstart-backend-sub005/internal/scope"
	"github.com/mrskwiw/content-jumpstart-backend-sub005/internal/services/health"
	"github.com/mrskwiw/content-jumpstart-backend-sub005/internal/shared/config"
	"github.com/mrskwiw/content-jumpstart-backend-sub005/internal/shared/metrics"
	"github.com/mrskwiw/content-jumpstart-backend-sub005/internal/shared/server/middleware"
	"github.com/mrskwiw/content-jumpstart-backend-sub005/internal/shared/server/respond"
)

// RouterDeps carries the handlers the router wires up.
type RouterDeps struct {
	Config          config.Config
	Health          *health.Service
	ProjectHandler  *projects.Handler
	RevisionHandler *revisions.Handler
	ScopeHandler    *scope.Handler
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.Auth(deps.Config.APIToken),
		middleware.RateLimit(rateLimitConfig()),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		if deps.Health == nil {
			respond.JSON(c, http.StatusOK, gin.H{"ok": true})
			return
		}
		respond.JSON(c, http.StatusOK, deps.Health.Status(c.Request.Context()))
	})

	if deps.ProjectHandler != nil {
		deps.ProjectHandler.RegisterRoutes(api)
	}
	if deps.RevisionHandler != nil {
		deps.RevisionHandler.RegisterRoutes(api)
	}
	if deps.ScopeHandler != nil {
		deps.ScopeHandler.RegisterRoutes(api)
	}

	return r
}

func rateLimitConfig() middleware.RateLimitConfig {
	return middleware.RateLimitConfig{
		DefaultGroup: "DEFAULT",
		GroupFor: func(c *gin.Context) string {
			if c.Request.Method == http.MethodGet {
				switch c.FullPath() {
				case "/api/v1/revisions/:id", "/api/v1/projects/:id":
					return "POLLING"
				}
			}
			if c.Request.Method == http.MethodPost {
				switch c.FullPath() {
				case "/api/v1/projects/:id/generate", "/api/v1/projects/:id/revisions":
					return "GENERATE"
				}
			}
			return "DEFAULT"
		},
		Rules: map[string]middleware.RateLimitRule{
			"DEFAULT":  {Rate: 5, Burst: 10},
			"POLLING":  {Rate: 10, Burst: 30},
			"GENERATE": {Rate: 0.5, Burst: 3},
		},
	}
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
