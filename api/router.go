package api

import (
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func NewRouter(h *Handler, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger, true))

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})

	events := router.Group(h.Config.Calendar.RoutePrefix)
	{
		events.GET("", h.IndexHandler)
		events.GET("/draft", h.DraftHandler)
		events.GET("/:year/:month", h.MonthHandler)
		events.GET("/:year/:month/export.ics", h.ExportHandler)

		events.POST("/event", h.CreateEventHandler)
		events.GET("/event/:id", h.GetEventHandler)
		events.PUT("/event/:id", h.UpdateEventHandler)
		events.DELETE("/event/:id", h.DeleteEventHandler)
		events.POST("/event/:id/exclusions/:date", h.ExcludeDateHandler)
		events.DELETE("/event/:id/exclusions/:date", h.IncludeDateHandler)
	}

	apiGroup := router.Group("/api")
	{
		apiGroup.GET("/health", h.HealthCheckHandler)

		dash := apiGroup.Group("/dashboard")
		dash.GET("/stats", h.StatisticsHandler)
		dash.GET("/upcoming", h.UpcomingEventsHandler)
		dash.GET("/recent", h.RecentEventsHandler)
		dash.GET("/calendar", h.MiniCalendarHandler)
		dash.GET("/chart", h.ChartHandler)
	}

	return router
}
