package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/arjunbhagat/eventsched/internal/health"
	"github.com/arjunbhagat/eventsched/internal/transport/http/handler"
	"github.com/arjunbhagat/eventsched/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"
	sloggin "github.com/samber/slog-gin"
)

// NewRouter wires the admin HTTP surface in front of EventsFacade. This
// is the "embedding process" spec.md §6 describes owning CLI/env/HTTP
// concerns — the core scheduler packages never import gin.
func NewRouter(logger *slog.Logger, eventsHandler *handler.EventsHandler, checker *health.Checker, jwtKey []byte) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(sloggin.New(logger))
	r.Use(middleware.Metrics())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, checker.Liveness(c.Request.Context()))
	})
	r.GET("/readyz", func(c *gin.Context) {
		result := checker.Readiness(c.Request.Context())
		status := http.StatusOK
		if result.Status != "up" {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, result)
	})

	events := r.Group("/events", middleware.Auth(jwtKey))
	events.GET("", eventsHandler.List)
	events.POST("", eventsHandler.Create)
	events.PUT("/:schema/:name", eventsHandler.Update)
	events.DELETE("/:schema/:name", eventsHandler.Drop)
	events.GET("/:schema/:name/show-create", eventsHandler.ShowCreate)

	scheduler := r.Group("/scheduler", middleware.Auth(jwtKey))
	scheduler.POST("/start", eventsHandler.Start)
	scheduler.POST("/stop", eventsHandler.Stop)
	scheduler.GET("/status", eventsHandler.Status)

	return r
}
