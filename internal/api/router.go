package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/entraops/guestgate/internal/app"
	"github.com/entraops/guestgate/internal/handlers"
	"github.com/entraops/guestgate/internal/middleware"
	"github.com/entraops/guestgate/internal/services"
)

// NewRouter builds the Gin engine, wires middleware and registers routes.
func NewRouter(authz middleware.Authorizer, bulk *services.BulkService, invites *services.InviteService, cfg *app.Config) (*gin.Engine, error) {
	if authz == nil {
		return nil, fmt.Errorf("authorizer must be provided")
	}
	if bulk == nil || invites == nil {
		return nil, fmt.Errorf("invite services must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())

	r.GET("/healthz", handlers.Health())

	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	inviteHandler := handlers.NewInviteHandler(bulk, invites)

	api := r.Group("/api")
	api.Use(middleware.Principal())

	// The template download carries no tenant data and stays open so the
	// form can offer it before sign-in completes.
	api.GET("/invites/template", inviteHandler.Template)

	protected := api.Group("")
	protected.Use(middleware.RequireInviter(authz))
	{
		protected.POST("/invites", inviteHandler.Create)
		protected.POST("/invites/bulk", inviteHandler.CreateBulk)
		protected.GET("/me", inviteHandler.Me)
	}

	return r, nil
}
