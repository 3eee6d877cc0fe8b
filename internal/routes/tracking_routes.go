package routes

import (
	"github.com/gin-gonic/gin"

	"truck_tracker/internal/controllers"
)

func TrackingRoutes(r *gin.Engine) {
	track := r.Group("/track")
	{
		track.GET("/:id", controllers.TrackUser)
		track.GET("/:id/route", controllers.RouteHistory)
	}
}
