package integrations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/chxlky/event-calendar/internal/config"
	"github.com/chxlky/event-calendar/internal/models"
	"go.uber.org/zap"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// CalendarClient mirrors local events into a Google Calendar.
type CalendarClient struct {
	service    *calendar.Service
	calendarID string
	location   *time.Location
}

// NewCalendarClient authenticates with the service account in cfg. Dates of
// all-day events and recurrence rules are written in loc.
func NewCalendarClient(ctx context.Context, cfg config.GoogleConfig, loc *time.Location) (*CalendarClient, error) {
	if cfg.CalendarID == "" {
		return nil, errors.New("google calendar ID is not configured")
	}

	jsonBytes, err := json.Marshal(cfg.ServiceAccount)
	if err != nil {
		return nil, fmt.Errorf("unable to marshal service account settings to JSON: %w", err)
	}

	// create credentials from JSON data
	jwtConfig, err := google.JWTConfigFromJSON(jsonBytes, calendar.CalendarScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse service account credentials from JSON: %w", err)
	}

	srv, err := calendar.NewService(ctx, option.WithHTTPClient(jwtConfig.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Calendar client: %w", err)
	}

	return &CalendarClient{service: srv, calendarID: cfg.CalendarID, location: loc}, nil
}

// PushEvent creates the remote copy of event, or updates it when the event is
// already linked. It returns the remote event ID.
func (c *CalendarClient) PushEvent(ctx context.Context, event *models.Event) (string, error) {
	body := toGoogleEvent(event, c.location)

	if event.GoogleEventID != "" {
		updated, err := c.service.Events.Update(c.calendarID, event.GoogleEventID, body).Context(ctx).Do()
		if err == nil {
			return updated.Id, nil
		}
		if !isNotFound(err) {
			return "", fmt.Errorf("unable to update event in Google Calendar: %w", err)
		}
		zap.L().Info("Linked Google event vanished; recreating", zap.Uint("eventID", event.ID), zap.String("googleEventID", event.GoogleEventID))
	}

	created, err := c.service.Events.Insert(c.calendarID, body).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to create event in Google Calendar: %w", err)
	}
	return created.Id, nil
}

func (c *CalendarClient) DeleteEvent(ctx context.Context, googleEventID string) error {
	err := c.service.Events.Delete(c.calendarID, googleEventID).Context(ctx).Do()
	if err != nil {
		// It's possible the event was already deleted, so we can ignore "Not Found" errors
		if isNotFound(err) {
			zap.L().Info("Event not found in Google Calendar. Already deleted.", zap.String("googleEventID", googleEventID))
			return nil
		}
		return fmt.Errorf("unable to delete event from Google Calendar: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && (gerr.Code == http.StatusNotFound || gerr.Code == http.StatusGone)
}

func toGoogleEvent(e *models.Event, loc *time.Location) *calendar.Event {
	ge := &calendar.Event{
		Summary: e.Title,
	}
	if e.Description != nil {
		ge.Description = *e.Description
	}

	start, end := e.StartDate.In(loc), e.EndDate.In(loc)
	if e.AllDay {
		ge.Start = &calendar.EventDateTime{Date: start.Format(models.DateLayout)}
		// all-day event ends the next day
		ge.End = &calendar.EventDateTime{Date: end.AddDate(0, 0, 1).Format(models.DateLayout)}
	} else {
		// the zone lets Google expand recurrences on local time
		ge.Start = &calendar.EventDateTime{DateTime: start.Format(time.RFC3339), TimeZone: loc.String()}
		ge.End = &calendar.EventDateTime{DateTime: end.Format(time.RFC3339), TimeZone: loc.String()}
	}

	if e.IsRecurring() {
		ge.Recurrence = []string{"RRULE:" + e.Recurrence}
		for _, d := range e.ExcludedDates {
			day, err := time.Parse(models.DateLayout, d)
			if err != nil {
				continue
			}
			if e.AllDay {
				ge.Recurrence = append(ge.Recurrence, "EXDATE;VALUE=DATE:"+day.Format("20060102"))
				continue
			}
			ge.Recurrence = append(ge.Recurrence, "EXDATE:"+models.OccurrenceOn(start, day).UTC().Format("20060102T150405Z"))
		}
	}
	return ge
}
