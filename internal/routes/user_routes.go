package routes

import (
	"github.com/gin-gonic/gin"

	"truck_tracker/internal/controllers"
)

func UserRoutes(r *gin.Engine) {
	user := r.Group("/users")
	{
		user.POST("/", controllers.RegisterUser)
		user.GET("/", controllers.ListUsers)
		user.GET("/:id", controllers.GetUser)
		user.GET("/phone/:phone", controllers.GetUserByPhone)
		user.PUT("/:id/home", controllers.SetHomeLocation)
		user.PUT("/:id/preferences", controllers.UpdateAlertPreferences)
		user.DELETE("/:id", controllers.DeleteUser)
	}
}
