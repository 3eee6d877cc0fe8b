package routes

import (
	"github.com/gin-gonic/gin"

	"truck_tracker/internal/controllers"
)

func WebSocketRoutes(r *gin.Engine) {
	r.GET("/ws/track/:id", controllers.HandleTrackingWebSocket)
}
