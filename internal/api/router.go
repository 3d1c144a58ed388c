package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/timmy/imageguard/internal/api/handler"
	"github.com/timmy/imageguard/internal/api/middleware"
	"github.com/timmy/imageguard/internal/i18n"
	"github.com/timmy/imageguard/internal/logger"
	"github.com/timmy/imageguard/internal/service"
)

// Dependencies groups what the router needs to build its handlers.
type Dependencies struct {
	Registry  *service.RegistryService
	Guard     *service.GuardService
	Import    *service.ImportService
	Localizer *i18n.Localizer
	Logger    *logger.Logger

	// Ping checks the rule store for /health; nil skips the check.
	Ping func(ctx context.Context) error

	MaxUpload  int64
	AdminToken string
	ImportRoot string
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(deps *Dependencies, mode string) *gin.Engine {
	switch mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	log := deps.Logger
	if log == nil {
		log = logger.GetDefault()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(log))

	healthHandler := handler.NewHealthHandler(deps.Ping)
	registryHandler := handler.NewRegistryHandler(deps.Registry, deps.Localizer, deps.MaxUpload)
	messageHandler := handler.NewMessageHandler(deps.Guard, deps.Localizer)

	r.GET("/health", healthHandler.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	{
		// Inbound message hook
		v1.POST("/scopes/:scope/messages", messageHandler.HandleMessage)
	}

	// Rule registry. With an admin token set only operators may edit or
	// read the blocked set.
	registry := v1.Group("")
	if deps.AdminToken != "" {
		registry.Use(middleware.AdminAuth(deps.AdminToken))
	}
	{
		registry.POST("/scopes/:scope/images", registryHandler.AddImage)
		registry.GET("/scopes/:scope/images", registryHandler.ListImages)
		registry.DELETE("/scopes/:scope/images/:seq", registryHandler.DeleteImage)
		registry.GET("/images/:seq/file", registryHandler.GetImageFile)
	}

	if deps.AdminToken != "" && deps.Import != nil {
		adminHandler := handler.NewAdminHandler(deps.Import, deps.ImportRoot, deps.Localizer)
		admin := v1.Group("/admin", middleware.AdminAuth(deps.AdminToken))
		admin.POST("/import", adminHandler.TriggerImport)
		admin.GET("/import/status", adminHandler.GetImportStatus)
	}

	return r
}
