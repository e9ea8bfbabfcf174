package handlers

import (
	"weigh_station/internal/events"
	"weigh_station/internal/logger"
	"weigh_station/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services, the event bus and logging.
type Handler struct {
	services *service.Service
	bus      *events.Bus
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, bus *events.Bus, log *logger.Logger) *Handler {
	return &Handler{services: services, bus: bus, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health and metrics endpoints
	router.GET("/health", h.health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Auth endpoints
	h.registerAuthRoutes(router)

	// Versioned API endpoints
	h.registerAPIRoutes(router)

	// Live event feed, upgraded on the same port
	router.GET("/ws", h.wsLive)

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/unlock", h.unlock)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		h.registerScaleRoutes(api)
		h.registerUploadRoutes(api)
		h.registerSettingsRoutes(api)
	}
}

func (h *Handler) registerScaleRoutes(api *gin.RouterGroup) {
	scale := api.Group("/scale")
	{
		scale.GET("/status", h.scaleStatus)
	}
}

func (h *Handler) registerUploadRoutes(api *gin.RouterGroup) {
	uploads := api.Group("/uploads")
	{
		// Body example: {"scan_no":"SF123456789","length_cm":30}
		uploads.POST("", h.createUpload)
		uploads.GET("/:id", h.getUpload)
	}
	api.GET("/history", h.getHistory)
}

// Settings are the only surface behind the password gate: the scale display
// must keep working for whoever stands at the station.
func (h *Handler) registerSettingsRoutes(api *gin.RouterGroup) {
	settings := api.Group("/settings", h.settingsTokenMiddleware)
	{
		settings.GET("", h.getSettings)
		settings.PUT("", h.updateSettings)
	}
}
