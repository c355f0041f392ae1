package integrations

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chxlky/event-calendar/internal/models"
)

const productID = "-//chxlky//event-calendar//EN"

// uidNamespace seeds the name-based UUIDs handed out as VEVENT UIDs.
var uidNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/chxlky/event-calendar"))

// EventUID returns a UID that stays the same across exports of one event.
func EventUID(id uint) string {
	return uuid.NewSHA1(uidNamespace, []byte(strconv.FormatUint(uint64(id), 10))).String() + "@event-calendar"
}

// ExportICS serialises events as a VCALENDAR. Recurring events are written
// once, as a series with RRULE and EXDATE. Outside UTC, timed events carry a
// TZID of loc so that clients expand series on local time; all-day dates are
// the local dates in loc.
func ExportICS(events []*models.Event, now time.Time, loc *time.Location) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(productID)

	seen := make(map[uint]bool, len(events))
	for _, e := range events {
		if e.ID != 0 && seen[e.ID] {
			continue
		}
		seen[e.ID] = true

		ve := cal.AddEvent(EventUID(e.ID))
		ve.SetDtStampTime(now.UTC())
		ve.SetCreatedTime(e.CreatedAt.UTC())
		ve.SetModifiedAt(e.UpdatedAt.UTC())
		ve.SetSummary(e.Title)
		if e.Description != nil {
			ve.SetDescription(*e.Description)
		}
		if e.Color != nil {
			ve.SetProperty(ics.ComponentProperty("COLOR"), *e.Color)
		}

		start, end := e.StartDate.In(loc), e.EndDate.In(loc)
		if e.AllDay {
			ve.SetAllDayStartAt(start)
			// DTEND is exclusive for dates.
			ve.SetAllDayEndAt(end.AddDate(0, 0, 1))
		} else {
			value, params := icsDateTime(start)
			ve.SetProperty(ics.ComponentPropertyDtStart, value, params...)
			value, params = icsDateTime(end)
			ve.SetProperty(ics.ComponentPropertyDtEnd, value, params...)
		}

		if e.IsRecurring() {
			ve.AddProperty(ics.ComponentPropertyRrule, e.Recurrence)
			for _, d := range e.ExcludedDates {
				addExDate(ve, e.AllDay, start, d)
			}
		}
	}
	return cal.Serialize()
}

func addExDate(ve *ics.VEvent, allDay bool, start time.Time, date string) {
	day, err := time.Parse(models.DateLayout, date)
	if err != nil {
		return
	}
	if allDay {
		ve.AddProperty(ics.ComponentPropertyExdate, day.Format("20060102"),
			&ics.KeyValues{Key: string(ics.ParameterValue), Value: []string{"DATE"}})
		return
	}
	value, params := icsDateTime(models.OccurrenceOn(start, day))
	ve.AddProperty(ics.ComponentPropertyExdate, value, params...)
}

// icsDateTime formats t as a UTC DATE-TIME, or as local time with a TZID
// parameter when t is in any other location.
func icsDateTime(t time.Time) (string, []ics.PropertyParameter) {
	if t.Location() == time.UTC || t.Location().String() == "UTC" {
		return t.UTC().Format("20060102T150405Z"), nil
	}
	return t.Format("20060102T150405"), []ics.PropertyParameter{
		&ics.KeyValues{Key: string(ics.ParameterTzid), Value: []string{t.Location().String()}},
	}
}

// ParseICS reads the VEVENTs of an iCalendar stream as unsaved events.
// All-day dates and UTC EXDATEs are read as calendar dates in loc. VEVENTs
// that cannot be understood are logged and skipped.
func ParseICS(r io.Reader, loc *time.Location) ([]*models.Event, error) {
	cal, err := ics.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse calendar: %w", err)
	}

	events := make([]*models.Event, 0, len(cal.Events()))
	for _, ve := range cal.Events() {
		e, err := parseVEvent(ve, loc)
		if err != nil {
			uid := ""
			if p := ve.GetProperty(ics.ComponentPropertyUniqueId); p != nil {
				uid = p.Value
			}
			zap.L().Warn("Skipping VEVENT", zap.String("uid", uid), zap.Error(err))
			continue
		}
		events = append(events, e)
	}
	return events, nil
}

func parseVEvent(ve *ics.VEvent, loc *time.Location) (*models.Event, error) {
	e := models.NewEvent()

	if p := ve.GetProperty(ics.ComponentPropertySummary); p != nil {
		e.Title = p.Value
	}
	if p := ve.GetProperty(ics.ComponentPropertyDescription); p != nil && p.Value != "" {
		desc := p.Value
		e.Description = &desc
	}
	if p := ve.GetProperty(ics.ComponentProperty("COLOR")); p != nil && p.Value != "" {
		color := p.Value
		e.Color = &color
	}

	dtStart := ve.GetProperty(ics.ComponentPropertyDtStart)
	if dtStart == nil {
		return nil, errors.New("missing DTSTART")
	}
	e.AllDay = isDateValue(dtStart)

	if e.AllDay {
		start, err := ve.GetAllDayStartAt()
		if err != nil {
			return nil, fmt.Errorf("bad DTSTART: %w", err)
		}
		start = localMidnight(start, loc)
		e.StartDate = start
		e.EndDate = start
		if end, err := ve.GetAllDayEndAt(); err == nil {
			if last := localMidnight(end, loc).AddDate(0, 0, -1); last.After(start) {
				e.EndDate = last
			}
		}
	} else {
		start, err := ve.GetStartAt()
		if err != nil {
			return nil, fmt.Errorf("bad DTSTART: %w", err)
		}
		e.StartDate = start
		e.EndDate = start
		if end, err := ve.GetEndAt(); err == nil && !end.Before(start) {
			e.EndDate = end
		}
	}

	if p := ve.GetProperty(ics.ComponentPropertyRrule); p != nil {
		e.Recurrence = p.Value
	}
	for _, p := range ve.GetProperties(ics.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if len(part) < 8 {
				continue
			}
			if utc, err := time.Parse("20060102T150405Z", part); err == nil {
				e.ExcludeDate(utc.In(loc))
				continue
			}
			if day, err := time.Parse("20060102", part[:8]); err == nil {
				e.ExcludeDate(day)
			}
		}
	}

	e.Normalize()
	return e, nil
}

// localMidnight keeps the calendar date of t and moves it to 00:00 in loc.
func localMidnight(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func isDateValue(p *ics.IANAProperty) bool {
	if vs, ok := p.ICalParameters[string(ics.ParameterValue)]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}
