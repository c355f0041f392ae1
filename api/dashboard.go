package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func (h *Handler) StatisticsHandler(c *gin.Context) {
	stats, err := h.Dashboard.Statistics(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) UpcomingEventsHandler(c *gin.Context) {
	limit, ok := queryLimit(c, h.Config.Dashboard.UpcomingLimit)
	if !ok {
		return
	}
	events, err := h.Dashboard.UpcomingEvents(c.Request.Context(), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

func (h *Handler) RecentEventsHandler(c *gin.Context) {
	limit, ok := queryLimit(c, h.Config.Dashboard.RecentLimit)
	if !ok {
		return
	}
	events, err := h.Dashboard.RecentEvents(c.Request.Context(), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

// MiniCalendarHandler serves the dashboard grid; year and month default to now.
func (h *Handler) MiniCalendarHandler(c *gin.Context) {
	var query struct {
		Year  int `form:"year" binding:"omitempty,min=1"`
		Month int `form:"month" binding:"omitempty,min=1,max=12"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	weeks, err := h.Dashboard.MonthlyCalendarData(c.Request.Context(), query.Year, query.Month)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, weeks)
}

func (h *Handler) ChartHandler(c *gin.Context) {
	counts, err := h.Dashboard.EventsPerMonth(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, counts)
}

func queryLimit(c *gin.Context, fallback int) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return fallback, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 || limit > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 100"})
		return 0, false
	}
	return limit, true
}
