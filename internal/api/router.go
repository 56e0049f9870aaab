package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/durolink/durolink/internal/app"
	"github.com/durolink/durolink/internal/cache"
	"github.com/durolink/durolink/internal/directory"
	"github.com/durolink/durolink/internal/github"
	"github.com/durolink/durolink/internal/githubauth"
	"github.com/durolink/durolink/internal/handlers"
	"github.com/durolink/durolink/internal/middleware"
	"github.com/durolink/durolink/internal/resolver"
)

// Deps collects the wired components the router exposes over HTTP.
type Deps struct {
	Config    *app.Config
	DB        *gorm.DB
	Store     cache.Store
	Directory *directory.Directory
	Resolver  *resolver.Resolver
	Gateway   *github.Gateway
	Authority *githubauth.Authority
	Exchanger *githubauth.OAuthExchanger
}

// NewRouter builds the Gin engine, wires middleware and registers routes.
func NewRouter(deps Deps) (*gin.Engine, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if deps.DB == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if deps.Directory == nil {
		return nil, fmt.Errorf("directory must be provided")
	}
	if deps.Resolver == nil {
		return nil, fmt.Errorf("resolver must be provided")
	}

	r := gin.New()

	quiet := []string{"/health"}
	if deps.Config.Monitoring.Prometheus.Enabled {
		quiet = append(quiet, deps.Config.Monitoring.Prometheus.Endpoint)
	}

	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(quiet...))
	r.Use(middleware.Metrics())
	r.Use(middleware.RateLimit(deps.Store, deps.Config.Server.RateLimit.Requests, deps.Config.Server.RateLimit.Window))

	r.NoRoute(middleware.NotFoundHandler)
	r.HandleMethodNotAllowed = true
	r.NoMethod(middleware.MethodNotAllowedHandler)

	if deps.Config.Monitoring.Health.Enabled {
		r.GET("/health", handlers.Health(deps.DB, deps.Directory))
	}
	if deps.Config.Monitoring.Prometheus.Enabled {
		r.GET(deps.Config.Monitoring.Prometheus.Endpoint, gin.WrapH(promhttp.Handler()))
	}

	if deps.Exchanger != nil && deps.Gateway != nil && deps.Authority != nil {
		authHandler := handlers.NewAuthHandler(deps.Exchanger, deps.Gateway, deps.Authority, deps.Directory)
		auth := r.Group("/auth")
		{
			auth.GET("/login", authHandler.Login)
			auth.GET("/callback", authHandler.Callback)
		}
	}

	// Resolution routes live at the root so shared URLs mirror the
	// GitHub path shape for the same repository.
	resolve := handlers.NewResolveHandler(deps.Resolver)
	r.GET("/:owner/:repo/workflows/:workflow/:branch/:artifact", resolve.ByBranch)
	r.GET("/:owner/:repo/actions/runs/:run/:artifact", resolve.ByRun)
	r.GET("/:owner/:repo/actions/artifacts/:artifact", resolve.ByArtifact)

	return r, nil
}
