// Package grid lays out a calendar month as Monday-first weeks and places
// events on the days they touch.
package grid

import (
	"errors"
	"fmt"
	"time"

	"github.com/chxlky/event-calendar/internal/models"
)

var ErrInvalidMonth = errors.New("invalid month")

// Cell is a single day of the month.
type Cell struct {
	Date    time.Time       `json:"date"`
	Day     int             `json:"day"`
	Events  []*models.Event `json:"events"`
	IsToday bool            `json:"is_today"`
}

// Week holds Monday..Sunday. A nil slot pads the days outside the month.
type Week [7]*Cell

type Grid []Week

// ValidMonth rejects anything outside 1..12.
func ValidMonth(month int) error {
	if month < 1 || month > 12 {
		return fmt.Errorf("%w: %d", ErrInvalidMonth, month)
	}
	return nil
}

func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// isoWeekday maps Sunday..Saturday onto 7,1..6.
func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// Build returns the grid for year/month. month must already be validated.
//
// Day boundaries are those of today's location: event timestamps are moved
// into it before their dates are compared. An event lands on a day when it
// starts or ends on that date, or when the date falls strictly between its
// start and end dates.
func Build(year int, month time.Month, events []*models.Event, today time.Time) Grid {
	loc := today.Location()
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	offset := isoWeekday(first) - 1
	days := DaysInMonth(year, month)
	todayKey := dateOf(today, loc)

	spans := make([]span, len(events))
	for i, ev := range events {
		spans[i] = span{start: dateOf(ev.StartDate, loc), end: dateOf(ev.EndDate, loc)}
	}

	weeks := (offset + days + 6) / 7
	g := make(Grid, weeks)
	day := 1
	for w := range g {
		for d := 0; d < 7; d++ {
			if w*7+d < offset || day > days {
				continue
			}
			key := civil{year, month, day}
			cell := &Cell{
				Date:    time.Date(year, month, day, 0, 0, 0, 0, loc),
				Day:     day,
				Events:  []*models.Event{},
				IsToday: key == todayKey,
			}
			for i, s := range spans {
				if s.covers(key) {
					cell.Events = append(cell.Events, events[i])
				}
			}
			g[w][d] = cell
			day++
		}
	}
	return g
}

// Cells returns the non-padding cells in day order.
func (g Grid) Cells() []*Cell {
	out := make([]*Cell, 0, 31)
	for _, w := range g {
		for _, c := range w {
			if c != nil {
				out = append(out, c)
			}
		}
	}
	return out
}

// Day returns the cell for day-of-month d, or nil.
func (g Grid) Day(d int) *Cell {
	for _, c := range g.Cells() {
		if c.Day == d {
			return c
		}
	}
	return nil
}

type civil struct {
	year  int
	month time.Month
	day   int
}

func (c civil) before(o civil) bool {
	if c.year != o.year {
		return c.year < o.year
	}
	if c.month != o.month {
		return c.month < o.month
	}
	return c.day < o.day
}

func dateOf(t time.Time, loc *time.Location) civil {
	y, m, d := t.In(loc).Date()
	return civil{y, m, d}
}

type span struct {
	start, end civil
}

func (s span) covers(d civil) bool {
	return d == s.start || d == s.end || (s.start.before(d) && d.before(s.end))
}
