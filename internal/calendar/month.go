// Package calendar assembles a month view: the events of the month with
// recurring series expanded, laid out on the shared grid.
package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/chxlky/event-calendar/internal/grid"
	"github.com/chxlky/event-calendar/internal/models"
	"github.com/chxlky/event-calendar/internal/recurrence"
)

type Source interface {
	FindByMonth(ctx context.Context, year int, month time.Month, loc *time.Location) ([]*models.Event, error)
}

type Month struct {
	Year        int             `json:"year"`
	Month       int             `json:"month"`
	CurrentDate time.Time       `json:"current_date"`
	Previous    string          `json:"previous"`
	Next        string          `json:"next"`
	Weeks       grid.Grid       `json:"weeks"`
	Events      []*models.Event `json:"events"`
}

// Load builds year/month as seen at now; now's location sets the day
// boundaries. An out-of-range month yields grid.ErrInvalidMonth.
func Load(ctx context.Context, src Source, year, month int, now time.Time) (*Month, error) {
	if err := grid.ValidMonth(month); err != nil {
		return nil, err
	}
	loc := now.Location()
	m := time.Month(month)

	events, err := src.FindByMonth(ctx, year, m, loc)
	if err != nil {
		return nil, err
	}

	first := time.Date(year, m, 1, 0, 0, 0, 0, loc)
	events, err = recurrence.Expand(events, first, first.AddDate(0, 1, 0).Add(-time.Second))
	if err != nil {
		return nil, fmt.Errorf("failed to expand events for %04d-%02d: %w", year, month, err)
	}

	return &Month{
		Year:        year,
		Month:       month,
		CurrentDate: first,
		Previous:    first.AddDate(0, -1, 0).Format("2006/01"),
		Next:        first.AddDate(0, 1, 0).Format("2006/01"),
		Weeks:       grid.Build(year, m, events, now),
		Events:      events,
	}, nil
}
