package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-widget/internal/telemetry"
)

// RegisterDebugRoutes wires debug-only endpoints.
func RegisterDebugRoutes(router *gin.Engine, emitter *telemetry.AuditEmitter, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		emitter.Emit(c.Request.Context(), "INFO", "audit test", requestIDFromContext(c), map[string]string{
			"ip": c.ClientIP(),
		})
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

// Health reports liveness and the number of open widget connections.
func Health(connections func() int) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "connections": connections()})
	}
}
