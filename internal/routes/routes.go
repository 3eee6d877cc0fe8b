package routes

import (
	"github.com/gin-gonic/gin"
)

func SetupRouter() *gin.Engine {
	r := gin.Default()

	ZoneRoutes(r)
	TruckRoutes(r)
	UserRoutes(r)
	TrackingRoutes(r)
	WebSocketRoutes(r)

	return r
}
