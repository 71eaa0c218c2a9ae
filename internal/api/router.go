package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/charlesng35/uniauth/internal/app"
	"github.com/charlesng35/uniauth/internal/handlers"
	"github.com/charlesng35/uniauth/internal/middleware"
	"github.com/charlesng35/uniauth/internal/monitoring"
	"github.com/charlesng35/uniauth/internal/monitoring/checks"
)

// NewRouter builds the Gin engine, wires middleware and registers the identity routes.
func NewRouter(cfg *app.Config, svc *Services) (*gin.Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if svc == nil || svc.DB == nil {
		return nil, fmt.Errorf("services must be provided")
	}

	metricsEndpoint := strings.TrimSpace(cfg.Monitoring.Prometheus.Endpoint)
	if metricsEndpoint == "" {
		metricsEndpoint = "/metrics"
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics(metricsEndpoint))
	r.Use(middleware.RequestOrigin())

	if cfg.Monitoring.Health.Enabled {
		r.GET("/health", handlers.Health(newHealthManager(cfg, svc)))
	}

	api := r.Group("/api")
	profiles := handlers.NewProfileHandler(svc.Profiles)

	registerUserRoutes(api, handlers.NewUserHandler(svc.Users), profiles)
	registerProfileRoutes(api, profiles)
	registerInstitutionRoutes(api, handlers.NewInstitutionHandler(svc.Institutions), profiles)
	registerMaintenanceRoutes(api, handlers.NewMaintenanceHandler(svc.Identity, svc.Integrity))
	api.GET("/audit", handlers.NewAuditHandler(svc.Audit).List)

	if cfg.Monitoring.Prometheus.Enabled {
		r.GET(metricsEndpoint, gin.WrapH(promhttp.Handler()))
	}

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}

func registerUserRoutes(api *gin.RouterGroup, users *handlers.UserHandler, profiles *handlers.ProfileHandler) {
	group := api.Group("/users")
	{
		group.GET("", users.List)
		group.POST("", users.Create)
		group.POST("/temporary", users.CreateTemporary)
		group.GET("/:id", users.Get)
		group.PATCH("/:id", users.Update)
		group.DELETE("/:id", users.Delete)
		group.GET("/:id/profile", profiles.GetForUser)
		group.POST("/:id/profile", profiles.Ensure)
	}
}

func registerProfileRoutes(api *gin.RouterGroup, profiles *handlers.ProfileHandler) {
	group := api.Group("/profiles")
	{
		group.DELETE("/:id", profiles.Delete)
		group.POST("/:id/emails", profiles.AddEmail)
		group.GET("/:id/accounts", profiles.ListAccounts)
		group.POST("/:id/accounts", profiles.LinkAccount)
	}

	api.POST("/emails/:id/verify", profiles.VerifyEmail)
	api.DELETE("/emails/:id", profiles.RemoveEmail)
	api.DELETE("/accounts/:id", profiles.UnlinkAccount)
}

func registerInstitutionRoutes(api *gin.RouterGroup, institutions *handlers.InstitutionHandler, profiles *handlers.ProfileHandler) {
	group := api.Group("/institutions")
	{
		group.GET("", institutions.List)
		group.POST("", institutions.Create)
		group.GET("/:slug", institutions.Get)
		group.PATCH("/:slug", institutions.Update)
		group.DELETE("/:slug", institutions.Delete)
		group.GET("/:slug/accounts/:cas_id/profile", profiles.FindByCASID)
	}
}

func registerMaintenanceRoutes(api *gin.RouterGroup, maintenance *handlers.MaintenanceHandler) {
	group := api.Group("/maintenance")
	{
		group.POST("/sweep", maintenance.Sweep)
		group.POST("/reconcile", maintenance.Reconcile)
		group.GET("/integrity", maintenance.Integrity)
	}
}

func newHealthManager(cfg *app.Config, svc *Services) *monitoring.HealthManager {
	manager := monitoring.NewHealthManager(checks.Database(svc.DB, 2*time.Second))
	if cfg.Maintenance.Enabled {
		manager.Register(checks.Maintenance(svc.Jobs, checks.DefaultMaintenanceMaxAge))
	}
	return manager
}
