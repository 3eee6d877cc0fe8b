package routes

import (
	"github.com/gin-gonic/gin"

	"truck_tracker/internal/controllers"
)

func ZoneRoutes(r *gin.Engine) {
	zone := r.Group("/zones")
	{
		zone.POST("/", controllers.CreateZone)
		zone.GET("/", controllers.ListZones)
		zone.GET("/:id", controllers.GetZone)
		zone.PUT("/:id", controllers.UpdateZone)
		zone.POST("/:id/deactivate", controllers.DeactivateZone)
		zone.GET("/:id/stats", controllers.ZoneStats)
	}
}
