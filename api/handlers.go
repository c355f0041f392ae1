package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/chxlky/event-calendar/database"
	"github.com/chxlky/event-calendar/integrations"
	"github.com/chxlky/event-calendar/internal/calendar"
	"github.com/chxlky/event-calendar/internal/config"
	"github.com/chxlky/event-calendar/internal/dashboard"
	"github.com/chxlky/event-calendar/internal/grid"
	"github.com/chxlky/event-calendar/internal/models"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	yearPattern  = regexp.MustCompile(`^\d{4}$`)
	monthPattern = regexp.MustCompile(`^\d{2}$`)
)

// draftLayouts are tried in order when prefilling a new event from ?date=.
var draftLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02 15:04", models.DateLayout}

// EventSyncer mirrors events into an external calendar.
type EventSyncer interface {
	PushEvent(ctx context.Context, event *models.Event) (string, error)
	DeleteEvent(ctx context.Context, remoteID string) error
}

type ChangeNotifier interface {
	Notify(ctx context.Context, note models.ChangeNotification) error
}

type Handler struct {
	Events    *database.EventRepository
	Dashboard *dashboard.Widget
	Syncer    EventSyncer
	Notifier  ChangeNotifier
	Config    *config.Config
	Location  *time.Location
	Now       func() time.Time
	Workers   chan struct{} // bounds concurrent integration jobs

	jobs sync.WaitGroup
}

func NewHandler(cfg *config.Config, events *database.EventRepository, syncer EventSyncer, notifier ChangeNotifier) *Handler {
	loc := cfg.Location()
	return &Handler{
		Events:    events,
		Dashboard: dashboard.NewWidget(events, loc, cfg.Dashboard.ChartMonths),
		Syncer:    syncer,
		Notifier:  notifier,
		Config:    cfg,
		Location:  loc,
		Now:       time.Now,
		Workers:   make(chan struct{}, cfg.Webhooks.Workers),
	}
}

func (h *Handler) now() time.Time {
	return h.Now().In(h.Location)
}

// Wait blocks until every dispatched integration job has finished.
func (h *Handler) Wait() {
	h.jobs.Wait()
}

func (h *Handler) HealthCheckHandler(c *gin.Context) {
	if err := h.Events.Ping(c.Request.Context()); err != nil {
		zap.L().Error("Health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// IndexHandler redirects to the current month.
func (h *Handler) IndexHandler(c *gin.Context) {
	now := h.now()
	c.Redirect(http.StatusFound, h.monthPath(now.Year(), int(now.Month())))
}

func (h *Handler) MonthHandler(c *gin.Context) {
	year, month, ok := parseYearMonth(c)
	if !ok {
		return
	}

	view, err := calendar.Load(c.Request.Context(), h.Events, year, month, h.now())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) ExportHandler(c *gin.Context) {
	year, month, ok := parseYearMonth(c)
	if !ok {
		return
	}
	if err := grid.ValidMonth(month); err != nil {
		h.respondError(c, err)
		return
	}

	events, err := h.Events.FindByMonth(c.Request.Context(), year, time.Month(month), h.Location)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="calendar-%04d-%02d.ics"`, year, month))
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(integrations.ExportICS(events, h.now(), h.Location)))
}

type draftResponse struct {
	Title     string     `json:"title"`
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
	AllDay    bool       `json:"all_day"`
	Color     string     `json:"color"`
	Warning   string     `json:"warning,omitempty"`
}

// DraftHandler returns the prefilled form values for a new event. A date
// query parameter sets a one hour slot starting at that date.
func (h *Handler) DraftHandler(c *gin.Context) {
	draft := draftResponse{Color: h.Config.Calendar.DefaultColor}

	if raw, ok := c.GetQuery("date"); ok {
		start, err := parseDraftDate(raw, h.Location)
		if err != nil {
			zap.L().Debug("Invalid draft date", zap.String("date", raw), zap.Error(err))
			start = h.now()
			draft.Warning = "The supplied date is invalid, using today's date."
		}
		end := start.Add(time.Hour)
		draft.StartDate = &start
		draft.EndDate = &end
	}
	c.JSON(http.StatusOK, draft)
}

func parseDraftDate(raw string, loc *time.Location) (time.Time, error) {
	var lastErr error
	for _, layout := range draftLayouts {
		t, err := time.ParseInLocation(layout, raw, loc)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func (h *Handler) GetEventHandler(c *gin.Context) {
	event, ok := h.loadEvent(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, event)
}

func (h *Handler) CreateEventHandler(c *gin.Context) {
	var input models.EventInput
	if err := c.ShouldBindJSON(&input); err != nil {
		zap.L().Debug("Could not bind event payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON payload: " + err.Error()})
		return
	}

	event := models.NewEvent()
	color := h.Config.Calendar.DefaultColor
	event.Color = &color
	input.Apply(event)
	h.applyFeatures(event)

	if err := h.Events.Save(c.Request.Context(), event); err != nil {
		h.respondError(c, err)
		return
	}
	zap.L().Info("Event created", zap.Uint("eventID", event.ID), zap.String("title", event.Title))

	h.respondWithMonth(c, http.StatusCreated, event)
	h.afterWrite(models.ActionCreated, event)
}

func (h *Handler) UpdateEventHandler(c *gin.Context) {
	event, ok := h.loadEvent(c)
	if !ok {
		return
	}

	var input models.EventInput
	if err := c.ShouldBindJSON(&input); err != nil {
		zap.L().Debug("Could not bind event payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON payload: " + err.Error()})
		return
	}

	input.Apply(event)
	h.applyFeatures(event)

	if err := h.Events.Save(c.Request.Context(), event); err != nil {
		h.respondError(c, err)
		return
	}
	zap.L().Info("Event updated", zap.Uint("eventID", event.ID))

	h.respondWithMonth(c, http.StatusOK, event)
	h.afterWrite(models.ActionUpdated, event)
}

func (h *Handler) DeleteEventHandler(c *gin.Context) {
	event, ok := h.loadEvent(c)
	if !ok {
		return
	}

	// keep what the response needs before the row is gone
	start := event.StartDate.In(h.Location)

	if err := h.Events.Remove(c.Request.Context(), event.ID); err != nil {
		h.respondError(c, err)
		return
	}
	zap.L().Info("Event deleted", zap.Uint("eventID", event.ID))

	c.JSON(http.StatusOK, gin.H{
		"deleted_id": event.ID,
		"year":       start.Year(),
		"month":      int(start.Month()),
	})
	h.afterWrite(models.ActionDeleted, event)
}

func (h *Handler) ExcludeDateHandler(c *gin.Context) {
	h.changeExclusion(c, (*models.Event).ExcludeDate)
}

func (h *Handler) IncludeDateHandler(c *gin.Context) {
	h.changeExclusion(c, (*models.Event).IncludeDate)
}

func (h *Handler) changeExclusion(c *gin.Context, apply func(*models.Event, time.Time)) {
	event, ok := h.loadEvent(c)
	if !ok {
		return
	}

	day, err := time.Parse(models.DateLayout, c.Param("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date, expected YYYY-MM-DD"})
		return
	}

	apply(event, day)
	if err := h.Events.Save(c.Request.Context(), event); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, event)
	h.afterWrite(models.ActionUpdated, event)
}

func (h *Handler) applyFeatures(event *models.Event) {
	features := h.Config.Calendar.Features
	if !features.AllDayEvents {
		event.AllDay = false
	}
	if !features.Colors {
		color := h.Config.Calendar.DefaultColor
		event.Color = &color
	}
}

// respondWithMonth replies with the event and the refreshed month it starts in.
// The write has already been committed, so a month that cannot be rebuilt
// only drops the calendar from the reply.
func (h *Handler) respondWithMonth(c *gin.Context, status int, event *models.Event) {
	start := event.StartDate.In(h.Location)
	view, err := calendar.Load(c.Request.Context(), h.Events, start.Year(), int(start.Month()), h.now())
	if err != nil {
		zap.L().Warn("Could not rebuild month after write", zap.Uint("eventID", event.ID), zap.Error(err))
		c.JSON(status, gin.H{"event": event})
		return
	}
	c.JSON(status, gin.H{"event": event, "calendar": view})
}

func (h *Handler) loadEvent(c *gin.Context) (*models.Event, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid event ID"})
		return nil, false
	}

	event, err := h.Events.Get(c.Request.Context(), uint(id))
	if err != nil {
		h.respondError(c, err)
		return nil, false
	}
	return event, true
}

func (h *Handler) monthPath(year, month int) string {
	return fmt.Sprintf("%s/%04d/%02d", h.Config.Calendar.RoutePrefix, year, month)
}

// parseYearMonth accepts only a four digit year and a two digit month; any
// other shape is answered as an unknown route.
func parseYearMonth(c *gin.Context) (int, int, bool) {
	rawYear, rawMonth := c.Param("year"), c.Param("month")
	if !yearPattern.MatchString(rawYear) || !monthPattern.MatchString(rawMonth) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return 0, 0, false
	}
	year, _ := strconv.Atoi(rawYear)
	month, _ := strconv.Atoi(rawMonth)
	return year, month, true
}

func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, grid.ErrInvalidMonth):
		c.JSON(http.StatusNotFound, gin.H{"error": "Invalid month"})
	case errors.Is(err, database.ErrEventNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
	case errors.Is(err, models.ErrInvalidEvent):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		zap.L().Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
