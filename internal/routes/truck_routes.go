package routes

import (
	"github.com/gin-gonic/gin"

	"truck_tracker/internal/controllers"
	"truck_tracker/internal/middleware"
)

func TruckRoutes(r *gin.Engine) {
	truck := r.Group("/trucks")
	{
		truck.POST("/", controllers.CreateTruck)
		truck.GET("/", controllers.ListTrucks)
		truck.PUT("/:id", controllers.UpdateTruck)
		truck.PUT("/:id/zone", controllers.AssignZone)
		truck.GET("/:id/status", controllers.TruckStatus)
		truck.DELETE("/:id", controllers.DeleteTruck)
		truck.POST("/login", controllers.DriverLogin)
	}

	// Driver endpoints act on the truck carried in the token.
	driver := r.Group("/driver")
	driver.Use(middleware.RequireAuth())
	{
		driver.POST("/duty/start", controllers.StartDuty)
		driver.POST("/duty/stop", controllers.StopDuty)
		driver.POST("/location", controllers.UpdateLocation)
		driver.POST("/location/sync", controllers.SyncLocations)
	}
}
