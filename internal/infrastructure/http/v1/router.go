// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"ordernum/internal/infrastructure/http/v1/handlers"
	"ordernum/internal/infrastructure/http/v1/middleware"
	"ordernum/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	Logger *logger.Logger

	// DB backs the readiness probe.
	DB handlers.Pinger

	Orders   handlers.OrderService
	Previews handlers.PreviewService

	// JWTValidator enables bearer auth on the API when non-nil.
	JWTValidator middleware.JWTValidator
}

// NewRouter creates the gin engine with all routes registered.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}

	router := gin.New()

	// Order matters: ErrorHandler must run inside Recovery and Logger.
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	health := handlers.NewHealthHandler(cfg.DB)
	hg := router.Group("/health")
	{
		hg.GET("/live", health.Live)
		hg.GET("/ready", health.Ready)
	}

	api := router.Group("")
	if cfg.JWTValidator != nil {
		api.Use(middleware.Auth(cfg.JWTValidator))
	}

	base := handlers.NewBaseHandler()
	registerSequenceRoutes(api, handlers.NewSequenceHandler(base, cfg.Previews))
	registerOrderRoutes(api, handlers.NewOrderHandler(base, cfg.Orders))

	return router
}

func registerSequenceRoutes(rg *gin.RouterGroup, h *handlers.SequenceHandler) {
	rg.GET("/transactions/next-number", h.NextNumber)
	rg.GET("/sequence/preview", h.LegacyPreview)
}

func registerOrderRoutes(rg *gin.RouterGroup, h *handlers.OrderHandler) {
	g := rg.Group("/transactions/transactions")
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.PATCH("/:id/process", h.Process)
}
