package stalls

import (
	"github.com/gin-gonic/gin"
)

func SetupStallRoutes(rg *gin.RouterGroup, controller *Controller) {
	stalls := rg.Group("/stalls")
	{
		stalls.GET("", controller.GetStallMap)    // GET /api/v1/stalls?zone=&date=&sessionId=
		stalls.POST("/select", controller.Select) // POST /api/v1/stalls/select
		stalls.GET("/:code", controller.GetStall) // GET /api/v1/stalls/:code
	}
}

// SetupStallAdminRoutes expects admin to already require the ADMIN role
func SetupStallAdminRoutes(admin *gin.RouterGroup, controller *Controller) {
	admin.PUT("/stalls/:code", controller.UpsertStall) // PUT /api/v1/admin/stalls/:code
}
