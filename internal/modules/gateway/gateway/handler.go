package gateway

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts socket.io on the engine root and the stats endpoint on api.
func RegisterRoutes(root gin.IRoutes, api *gin.RouterGroup, hub *Hub) {
	handler := gin.WrapH(hub.Handler())
	root.Any("/socket.io", handler)
	root.Any("/socket.io/*any", handler)

	api.GET("/gateway/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"online":        hub.ClientCount(),
			"authenticated": hub.AuthenticatedCount(),
		})
	})
}
