package http

import (
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware, adminMiddleware gin.HandlerFunc) {
	group := g.Group("/reservations")

	// === Authenticated Routes ===
	group.Use(authMiddleware)
	{
		group.GET("", h.List)
		group.GET("/:id", h.Get)
		group.POST("", h.Create)
		group.PATCH("/:id", h.Update)
		group.DELETE("/:id", adminMiddleware, h.Delete)
	}

	tables := g.Group("/resources/:id", authMiddleware)
	{
		tables.GET("/availability", h.Availability)
		tables.GET("/schedule", h.Schedule)
	}
}
