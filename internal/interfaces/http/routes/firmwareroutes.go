package routes

import (
	"github.com/gin-gonic/gin"

	"firmup/internal/interfaces/http/handlers"
)

// FirmwareRouteConfig holds dependencies for firmware catalog routes.
type FirmwareRouteConfig struct {
	FirmwareHandler *handlers.FirmwareHandler
}

// SetupFirmwareRoutes configures category, build, image and batch
// rollout routes.
func SetupFirmwareRoutes(engine *gin.Engine, cfg *FirmwareRouteConfig) {
	categories := engine.Group("/categories")
	{
		categories.POST("", cfg.FirmwareHandler.CreateCategory)
		categories.GET("", cfg.FirmwareHandler.ListCategories)
	}

	builds := engine.Group("/builds")
	{
		builds.POST("", cfg.FirmwareHandler.CreateBuild)
		builds.GET("", cfg.FirmwareHandler.ListBuilds)
		builds.POST("/:sid/images", cfg.FirmwareHandler.UploadImage)
		builds.GET("/:sid/images", cfg.FirmwareHandler.ListImages)
		builds.POST("/:sid/upgrade", cfg.FirmwareHandler.BatchUpgrade)
		builds.GET("/:sid/upgrade/dry-run", cfg.FirmwareHandler.DryRunBatchUpgrade)
	}
}
