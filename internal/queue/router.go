package queue

import (
	"github.com/gin-gonic/gin"
)

// SetupQueueRoutes mounts the public queue endpoint on the /api group.
func SetupQueueRoutes(rg *gin.RouterGroup, controller *Controller) {
	queue := rg.Group("/queue")
	{
		queue.GET("", controller.GetQueue)       // GET /api/queue?stallId=&bookingDate=[&userId=]
		queue.POST("", controller.Enqueue)       // POST /api/queue
		queue.PATCH("", controller.UpdateTicket) // PATCH /api/queue {queueId, action}
		queue.DELETE("", controller.Leave)       // DELETE /api/queue {queueId}
	}
}

// SetupQueueAdminRoutes expects admin to already carry the auth middleware.
func SetupQueueAdminRoutes(admin *gin.RouterGroup, controller *Controller) {
	admin.GET("/queue/stats", controller.GetQueueStats)
	admin.GET("/jobs", controller.GetJobStatus)
	admin.POST("/jobs/sweep", controller.RunSweep)
}
