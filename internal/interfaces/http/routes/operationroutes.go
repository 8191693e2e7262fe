package routes

import (
	"github.com/gin-gonic/gin"

	"firmup/internal/interfaces/http/handlers"
)

// OperationRouteConfig holds dependencies for upgrade operation routes.
type OperationRouteConfig struct {
	OperationHandler *handlers.OperationHandler
}

// SetupOperationRoutes configures operation and batch report routes.
func SetupOperationRoutes(engine *gin.Engine, cfg *OperationRouteConfig) {
	operations := engine.Group("/operations")
	{
		operations.GET("", cfg.OperationHandler.List)
		operations.GET("/:sid", cfg.OperationHandler.Get)
	}

	batches := engine.Group("/batch-upgrades")
	{
		batches.GET("", cfg.OperationHandler.ListBatches)
		batches.GET("/:sid", cfg.OperationHandler.GetBatchReport)
		batches.DELETE("/:sid", cfg.OperationHandler.DeleteBatch)
	}
}
