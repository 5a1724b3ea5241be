package handlers

import (
	"smarthome_collector/internal/logger"
	"smarthome_collector/internal/metrics"
	"smarthome_collector/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger) *Handler {
	return &Handler{services: services, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(h.requestLogger)
	router.Use(corsMiddleware())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	router.GET("/health", h.health)

	h.registerAuthRoutes(router)
	h.registerAPIRoutes(router)

	// status stream, same port
	router.GET("/ws", h.wsAuthMiddleware, h.wsConnect)

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.userIdMiddleware)
	{
		h.registerAutomationRoutes(api)
		h.registerCollectorRoutes(api)
		h.registerDeviceRoutes(api)
		h.registerLogRoutes(api)
	}
}

func (h *Handler) registerAutomationRoutes(api *gin.RouterGroup) {
	dh := api.Group("/automation/dehumidifier")
	{
		dh.GET("/status", h.getDehumidifierStatus)
		dh.POST("/process", h.processDehumidifier)
	}
}

func (h *Handler) registerCollectorRoutes(api *gin.RouterGroup) {
	collector := api.Group("/collector")
	{
		collector.GET("/stats", h.getCollectorStats)
		collector.POST("/collect", h.collectNow)
	}
	api.GET("/readings/:sensor_id", h.getSensorHistory)
}

func (h *Handler) registerDeviceRoutes(api *gin.RouterGroup) {
	devices := api.Group("/devices")
	{
		devices.GET("", h.listDevices)
		devices.GET("/:id", h.getDevice)
		devices.POST("/:id/on", h.turnOn)
		devices.POST("/:id/off", h.turnOff)
		// Body example: {"temperature":21.5}
		devices.POST("/:id/temperature", h.setTemperature)
		// Body example: {"mode":"heat"}
		devices.POST("/:id/hvac_mode", h.setHVACMode)
	}
	api.GET("/capabilities", h.getCapabilities)
	api.GET("/zones", h.getZones)
	api.GET("/flows", h.getFlows)
	api.POST("/flows/:id/trigger", h.triggerFlow)
}

func (h *Handler) registerLogRoutes(api *gin.RouterGroup) {
	logs := api.Group("/logs")
	{
		logs.GET("/", h.getLogs)
	}
}
