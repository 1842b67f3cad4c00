package reservations

import (
	"github.com/gin-gonic/gin"
)

func SetupReservationRoutes(rg *gin.RouterGroup, controller *Controller) {
	reservations := rg.Group("/reservations")
	{
		reservations.POST("", controller.Reserve)   // POST /api/v1/reservations
		reservations.DELETE("", controller.Release) // DELETE /api/v1/reservations
		reservations.GET("", controller.GetHold)    // GET /api/v1/reservations?stallId=&bookingDate=&sessionId=
	}
}
