package routes

import (
	"github.com/gin-gonic/gin"

	"firmup/internal/interfaces/http/handlers"
)

// DeviceRouteConfig holds dependencies for device inventory routes.
type DeviceRouteConfig struct {
	DeviceHandler *handlers.DeviceHandler
}

// SetupDeviceRoutes configures device registration, connection and
// firmware assignment routes.
func SetupDeviceRoutes(engine *gin.Engine, cfg *DeviceRouteConfig) {
	devices := engine.Group("/devices")
	{
		devices.POST("", cfg.DeviceHandler.Register)
		devices.GET("", cfg.DeviceHandler.List)
		devices.GET("/:sid", cfg.DeviceHandler.Get)
		devices.GET("/:sid/firmware", cfg.DeviceHandler.GetFirmware)
		devices.PUT("/:sid/firmware", cfg.DeviceHandler.AssignFirmware)
		devices.POST("/:sid/connections", cfg.DeviceHandler.CreateConnection)
		devices.GET("/:sid/connections", cfg.DeviceHandler.ListConnections)
	}
}
