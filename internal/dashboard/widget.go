// Package dashboard computes the statistics and the mini calendar shown on
// the admin dashboard.
package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/chxlky/event-calendar/internal/calendar"
	"github.com/chxlky/event-calendar/internal/grid"
	"github.com/chxlky/event-calendar/internal/models"
	"github.com/chxlky/event-calendar/internal/recurrence"
)

// EventStore is the subset of database.EventRepository the widget reads from.
type EventStore interface {
	FindByMonth(ctx context.Context, year int, month time.Month, loc *time.Location) ([]*models.Event, error)
	FindByDay(ctx context.Context, t time.Time) ([]*models.Event, error)
	Count(ctx context.Context) (int64, error)
	CountUpcoming(ctx context.Context, now time.Time) (int64, error)
	Upcoming(ctx context.Context, now time.Time, limit int) ([]*models.Event, error)
	Recent(ctx context.Context, limit int) ([]*models.Event, error)
}

// Statistics counts stored events for the totals and occurrences, with
// recurring series expanded, for this month and today.
type Statistics struct {
	TotalEvents     int64 `json:"total_events"`
	EventsThisMonth int   `json:"events_this_month"`
	UpcomingEvents  int64 `json:"upcoming_events"`
	EventsToday     int   `json:"events_today"`
}

type MonthCount struct {
	Label string `json:"label"`
	Year  int    `json:"year"`
	Month int    `json:"month"`
	Count int    `json:"count"`
}

type Widget struct {
	Store       EventStore
	Location    *time.Location
	ChartMonths int
	Now         func() time.Time
}

func NewWidget(store EventStore, loc *time.Location, chartMonths int) *Widget {
	return &Widget{Store: store, Location: loc, ChartMonths: chartMonths, Now: time.Now}
}

func (w *Widget) now() time.Time {
	return w.Now().In(w.Location)
}

func (w *Widget) Statistics(ctx context.Context) (Statistics, error) {
	var stats Statistics
	now := w.now()

	total, err := w.Store.Count(ctx)
	if err != nil {
		return stats, err
	}

	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, w.Location)
	thisMonth, err := w.occurrencesInMonth(ctx, monthStart)
	if err != nil {
		return stats, err
	}

	upcoming, err := w.Store.CountUpcoming(ctx, now)
	if err != nil {
		return stats, err
	}

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, w.Location)
	today, err := w.Store.FindByDay(ctx, dayStart)
	if err != nil {
		return stats, err
	}
	today, err = recurrence.Expand(today, dayStart, dayStart.AddDate(0, 0, 1).Add(-time.Second))
	if err != nil {
		return stats, err
	}

	stats = Statistics{
		TotalEvents:     total,
		EventsThisMonth: thisMonth,
		UpcomingEvents:  upcoming,
		EventsToday:     len(today),
	}
	return stats, nil
}

func (w *Widget) UpcomingEvents(ctx context.Context, limit int) ([]*models.Event, error) {
	return w.Store.Upcoming(ctx, w.now(), limit)
}

func (w *Widget) RecentEvents(ctx context.Context, limit int) ([]*models.Event, error) {
	return w.Store.Recent(ctx, limit)
}

// MonthlyCalendarData builds the mini calendar. Zero year or month means the
// current one.
func (w *Widget) MonthlyCalendarData(ctx context.Context, year, month int) (grid.Grid, error) {
	now := w.now()
	if year == 0 {
		year = now.Year()
	}
	if month == 0 {
		month = int(now.Month())
	}

	m, err := calendar.Load(ctx, w.Store, year, month, now)
	if err != nil {
		return nil, err
	}
	return m.Weeks, nil
}

// EventsPerMonth counts the events of the last ChartMonths months, oldest first.
func (w *Widget) EventsPerMonth(ctx context.Context) ([]MonthCount, error) {
	now := w.now()
	current := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, w.Location)

	out := make([]MonthCount, 0, w.ChartMonths)
	for i := w.ChartMonths - 1; i >= 0; i-- {
		m := current.AddDate(0, -i, 0)
		count, err := w.occurrencesInMonth(ctx, m)
		if err != nil {
			return nil, fmt.Errorf("failed to count events for %s: %w", m.Format("2006-01"), err)
		}
		out = append(out, MonthCount{
			Label: m.Format("Jan 06"),
			Year:  m.Year(),
			Month: int(m.Month()),
			Count: count,
		})
	}
	return out, nil
}

// occurrencesInMonth counts what the month grid would show for the month
// starting at first: plain events plus each occurrence of a series.
func (w *Widget) occurrencesInMonth(ctx context.Context, first time.Time) (int, error) {
	events, err := w.Store.FindByMonth(ctx, first.Year(), first.Month(), w.Location)
	if err != nil {
		return 0, err
	}
	events, err = recurrence.Expand(events, first, first.AddDate(0, 1, 0).Add(-time.Second))
	if err != nil {
		return 0, err
	}
	return len(events), nil
}
