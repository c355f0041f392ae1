package models

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/teambition/rrule-go"
)

// DefaultColor is used for events that were saved without a colour.
const DefaultColor = "#3788d8"

// DateLayout is the format of the entries in Event.ExcludedDates.
const DateLayout = "2006-01-02"

var ErrInvalidEvent = errors.New("invalid event")

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("rgbcolor", func(fl validator.FieldLevel) bool {
		return colorPattern.MatchString(fl.Field().String())
	})
	return v
}

type Event struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Title         string    `gorm:"size:255;not null" json:"title" validate:"required,max=255"`
	StartDate     time.Time `gorm:"not null;index" json:"start_date"`
	EndDate       time.Time `gorm:"not null;index" json:"end_date"`
	AllDay        bool      `gorm:"default:false" json:"all_day"`
	Description   *string   `gorm:"type:text" json:"description"`
	Color         *string   `gorm:"size:7" json:"color" validate:"omitempty,rgbcolor"`
	Recurrence    string    `json:"recurrence,omitempty"`
	ExcludedDates []string  `gorm:"serializer:json" json:"excluded_dates"`
	GoogleEventID string    `json:"google_event_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (Event) TableName() string {
	return "calendar_events"
}

// NewEvent returns an event carrying the default colour.
func NewEvent() *Event {
	color := DefaultColor
	return &Event{
		Color:         &color,
		ExcludedDates: []string{},
	}
}

// Normalize trims user input and drops empty optional values.
func (e *Event) Normalize() {
	e.Title = strings.TrimSpace(e.Title)
	e.Recurrence = strings.TrimPrefix(strings.TrimSpace(e.Recurrence), "RRULE:")
	if e.Description != nil && strings.TrimSpace(*e.Description) == "" {
		e.Description = nil
	}
	if e.Color != nil && *e.Color == "" {
		e.Color = nil
	}
	if e.ExcludedDates == nil {
		e.ExcludedDates = []string{}
	}
}

// Validate reports every problem with the event, wrapped in ErrInvalidEvent.
func (e *Event) Validate() error {
	var problems []string

	if err := validate.Struct(e); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
		}
		for _, fe := range verrs {
			problems = append(problems, fieldMessage(fe))
		}
	}

	if e.StartDate.IsZero() {
		problems = append(problems, "start_date: is required")
	}
	if e.EndDate.IsZero() {
		problems = append(problems, "end_date: is required")
	}
	if !e.StartDate.IsZero() && !e.EndDate.IsZero() && e.EndDate.Before(e.StartDate) {
		problems = append(problems, "end_date: must not be before start_date")
	}
	if e.Recurrence != "" && !e.StartDate.IsZero() {
		if _, err := e.Rule(); err != nil {
			problems = append(problems, "recurrence: "+err.Error())
		}
	}
	for _, d := range e.ExcludedDates {
		if _, err := time.Parse(DateLayout, d); err != nil {
			problems = append(problems, fmt.Sprintf("excluded_dates: %q is not a YYYY-MM-DD date", d))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidEvent, strings.Join(problems, "; "))
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + ": is required"
	case "max":
		return fmt.Sprintf("%s: must be at most %s characters", fe.Field(), fe.Param())
	case "rgbcolor":
		return fe.Field() + ": must be a #RRGGBB hex colour"
	default:
		return fmt.Sprintf("%s: failed %s", fe.Field(), fe.Tag())
	}
}

// IsRecurring reports whether the event carries a recurrence rule.
func (e *Event) IsRecurring() bool {
	return e.Recurrence != ""
}

// Rule parses the recurrence rule anchored at the event's start.
func (e *Event) Rule() (*rrule.RRule, error) {
	return e.RuleIn(e.StartDate.Location())
}

// RuleIn anchors the rule at the start's wall clock in loc, so occurrences
// keep their local time across DST changes in loc.
func (e *Event) RuleIn(loc *time.Location) (*rrule.RRule, error) {
	opt, err := rrule.StrToROption(e.Recurrence)
	if err != nil {
		return nil, err
	}
	opt.Dtstart = e.StartDate.In(loc)
	return rrule.NewRRule(*opt)
}

// Duration is the length of a single occurrence.
func (e *Event) Duration() time.Duration {
	return e.EndDate.Sub(e.StartDate)
}

// Occurrence returns a copy of a recurring event moved to start at the given time.
func (e *Event) Occurrence(start time.Time) *Event {
	occ := *e
	occ.StartDate = start
	occ.EndDate = start.Add(e.Duration())
	occ.ExcludedDates = slices.Clone(e.ExcludedDates)
	return &occ
}

// OccurrenceOn returns start's wall-clock time on the calendar date of day,
// in start's location.
func OccurrenceOn(start, day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), start.Hour(), start.Minute(), start.Second(), 0, start.Location())
}

func (e *Event) IsExcludedDate(t time.Time) bool {
	return slices.Contains(e.ExcludedDates, t.Format(DateLayout))
}

// ExcludeDate adds the calendar date of t to ExcludedDates once.
func (e *Event) ExcludeDate(t time.Time) {
	if e.IsExcludedDate(t) {
		return
	}
	e.ExcludedDates = append(e.ExcludedDates, t.Format(DateLayout))
}

// IncludeDate removes every occurrence of t's calendar date from ExcludedDates.
func (e *Event) IncludeDate(t time.Time) {
	key := t.Format(DateLayout)
	kept := make([]string, 0, len(e.ExcludedDates))
	for _, d := range e.ExcludedDates {
		if d != key {
			kept = append(kept, d)
		}
	}
	e.ExcludedDates = kept
}
