package routes

import (
	"net/http"

	"bulk-order-service/controllers"
	"bulk-order-service/middleware"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RouterDeps carries everything route registration needs.
type RouterDeps struct {
	Controller   *controllers.BulkOrderController
	LimiterStore middleware.LimiterStore
	RatePerSec   float64
	RateBurst    int
	JWTSecret    string
}

// RegisterBulkOrderRoutes wires the bulk order endpoints.
func RegisterBulkOrderRoutes(r *gin.Engine, deps RouterDeps) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	bulkRoutes := r.Group("/bulk-orders")
	bulkRoutes.Use(middleware.RateLimit(deps.LimiterStore, rate.Limit(deps.RatePerSec), deps.RateBurst))
	bulkRoutes.Use(middleware.Auth(deps.JWTSecret))
	{
		bulkRoutes.POST("", deps.Controller.CreateBulkOrder)
		bulkRoutes.POST("/validate", deps.Controller.ValidateBulkOrder)
		bulkRoutes.GET("/jobs/:id", deps.Controller.GetJobStatus)
		bulkRoutes.GET("/runs", deps.Controller.ListRuns)
		bulkRoutes.GET("/runs/:id", deps.Controller.GetRun)
	}
}
