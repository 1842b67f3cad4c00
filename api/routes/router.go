// api/routes/router.go
package routes

import (
	"net/http"
	"time"

	_ "stallbook/api/docs"
	"stallbook/internal/auth"
	"stallbook/internal/bookings"
	"stallbook/internal/queue"
	"stallbook/internal/reservations"
	"stallbook/internal/shared/config"
	"stallbook/internal/shared/database"
	"stallbook/internal/shared/middleware"
	"stallbook/internal/stalls"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

const serviceName = "stallbook-backend"

// Router holds all route dependencies
type Router struct {
	config   *config.Config
	db       *database.DB
	services *Services

	queueController   *queue.Controller
	bookingController *bookings.Controller
	stallController   *stalls.Controller
}

// NewRouter creates a new router instance
func NewRouter(cfg *config.Config, db *database.DB, services *Services) *Router {
	return &Router{
		config:            cfg,
		db:                db,
		services:          services,
		queueController:   queue.NewController(services.Coordinator, services.Jobs, services.Clock),
		bookingController: bookings.NewController(services.Bookings, services.Finalizer),
		stallController:   stalls.NewController(services.Catalog, services.Selection, services.Clock),
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	r.setupHealthRoutes(engine)
	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// the queue endpoint lives on the unversioned prefix: /api/queue
	queue.SetupQueueRoutes(engine.Group(r.config.APIPrefix), r.queueController)

	api := engine.Group(r.config.GetAPIBasePath())
	{
		r.setupAuthRoutes(api)
		reservations.SetupReservationRoutes(api, reservations.NewController(r.services.Holds, r.services.Clock))
		stalls.SetupStallRoutes(api, r.stallController)
		bookings.SetupBookingRoutes(api, r.bookingController)

		r.setupAdminRoutes(api)
	}
}

// setupHealthRoutes sets up health check and system status routes
func (r *Router) setupHealthRoutes(engine *gin.Engine) {
	engine.GET("/health", func(c *gin.Context) {
		if err := r.db.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "unhealthy",
				"error":     err.Error(),
				"timestamp": time.Now(),
				"service":   serviceName,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"service":   serviceName,
		})
	})

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
			"version": r.config.APIVersion,
		})
	})

	engine.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":        "operational",
			"api_version":   r.config.APIVersion,
			"state_backend": r.config.Booking.StateBackend,
			"jobs":          r.services.Jobs.GetJobStatus(),
			"timestamp":     time.Now(),
		})
	})
}

// setupAuthRoutes configures operator authentication routes
func (r *Router) setupAuthRoutes(rg *gin.RouterGroup) {
	auth.SetupAuthRoutes(rg, auth.NewController(r.services.Auth), r.config)
}

// setupAdminRoutes mounts the operator-only routes under /admin
func (r *Router) setupAdminRoutes(rg *gin.RouterGroup) {
	// staff can watch queues and run the sweeper
	ops := rg.Group("/admin")
	ops.Use(middleware.JWTAuthWithConfig(r.config), middleware.RequireRoles(middleware.RoleAdmin, middleware.RoleStaff))
	queue.SetupQueueAdminRoutes(ops, r.queueController)

	admin := rg.Group("/admin")
	admin.Use(middleware.JWTAuthWithConfig(r.config), middleware.RequireAdmin())
	bookings.SetupBookingAdminRoutes(admin, r.bookingController)
	stalls.SetupStallAdminRoutes(admin, r.stallController)
}
