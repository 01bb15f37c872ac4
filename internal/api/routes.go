package api

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/suturelab/tissuesim/internal/api/handlers"
	"github.com/suturelab/tissuesim/internal/config"
	"github.com/suturelab/tissuesim/internal/middleware"
	"github.com/suturelab/tissuesim/internal/session"
	"github.com/suturelab/tissuesim/internal/ws"
)

// SetupRoutes configures all API routes. cache may be nil when Redis is
// not configured.
func SetupRoutes(router *gin.Engine, mgr *session.Manager, hub *ws.Hub, cache handlers.SummaryCache, cfg *config.Config) {
	router.Use(middleware.CORSMiddleware(cfg))

	if cfg.Environment != "production" {
		router.Use(func(c *gin.Context) {
			c.Header("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
			c.Header("Pragma", "no-cache")
			c.Header("Expires", "0")
			c.Next()
		})
		log.Println("[DEV MODE] no-cache headers enabled for all routes")
	}

	router.GET("/health", handlers.HealthCheck(mgr))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", handlers.HealthCheck(mgr))
		v1.GET("/materials", handlers.ListMaterials(mgr.Registry()))

		sessions := v1.Group("/sessions")
		{
			sessions.POST("", handlers.CreateSession(mgr))
			sessions.GET("", handlers.ListSessions(mgr))
			sessions.GET("/:id", handlers.GetSession(mgr, cache))
			sessions.DELETE("/:id", handlers.DeleteSession(mgr))
			sessions.POST("/:id/contacts", handlers.ApplyContact(mgr))
			sessions.GET("/:id/snapshot", handlers.GetSnapshot(mgr))
			sessions.GET("/:id/markers", handlers.GetMarkers(mgr))
			sessions.GET("/:id/blood", handlers.GetBlood(mgr))
			sessions.GET("/:id/events", handlers.GetEvents(mgr))
			sessions.GET("/:id/replay", handlers.ReplaySession(mgr))
			sessions.GET("/:id/heatmap.webp", handlers.GetHeatmap(mgr, cfg.HeatmapSize))
			sessions.GET("/:id/ws", middleware.WebSocketCORSCheck(cfg), handlers.HandleSessionWebSocket(hub, mgr))
		}
	}
}
