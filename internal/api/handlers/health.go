package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/suturelab/tissuesim/internal/session"
)

var startTime = time.Now()

const version = "1.0.0"

// HealthCheck returns server health status
func HealthCheck(mgr *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"service":  "tissuesim-api",
			"version":  version,
			"instance": mgr.Options().InstanceID,
			"sessions": len(mgr.List()),
			"uptime":   time.Since(startTime).String(),
		})
	}
}
