package auth

import (
	"stallbook/internal/shared/config"
	"stallbook/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

// SetupAuthRoutes registers operator login and profile routes
func SetupAuthRoutes(rg *gin.RouterGroup, controller *Controller, cfg *config.Config) {
	auth := rg.Group("/auth")
	{
		auth.POST("/login", controller.Login)

		protected := auth.Group("")
		protected.Use(middleware.JWTAuthWithConfig(cfg))
		{
			protected.GET("/me", controller.GetMe)
		}
	}
}
