package http

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all account-related routes (including Auth).
func RegisterRoutes(g *gin.RouterGroup, h *AccountHandler, authMiddleware, adminMiddleware gin.HandlerFunc) {
	// Public Routes
	authGroup := g.Group("/auth")
	{
		authGroup.POST("/register", h.Register)
		authGroup.POST("/login", h.Login)
	}

	// Authenticated Routes
	g.GET("/me", authMiddleware, h.Me)

	accounts := g.Group("/accounts")
	accounts.Use(authMiddleware)
	{
		accounts.GET("", adminMiddleware, h.List)
		accounts.GET("/:id", h.Get)
		accounts.PATCH("/:id", h.Update)
		accounts.DELETE("/:id", h.Delete)
	}
}
