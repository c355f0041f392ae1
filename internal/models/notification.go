package models

import "time"

type ChangeAction string

const (
	ActionCreated ChangeAction = "created"
	ActionUpdated ChangeAction = "updated"
	ActionDeleted ChangeAction = "deleted"
)

// ChangeNotification is the payload posted to webhook subscribers after a write.
type ChangeNotification struct {
	Action     ChangeAction `json:"action"`
	EventID    uint         `json:"event_id"`
	Event      *Event       `json:"event,omitempty"` // nil for deletions
	Year       int          `json:"year"`
	Month      int          `json:"month"`
	OccurredAt time.Time    `json:"occurred_at"`
}

// EventInput is the request body accepted when creating or updating an event.
type EventInput struct {
	Title         string    `json:"title" binding:"required,max=255"`
	StartDate     time.Time `json:"start_date" binding:"required"`
	EndDate       time.Time `json:"end_date" binding:"required"`
	AllDay        bool      `json:"all_day"`
	Description   *string   `json:"description"`
	Color         *string   `json:"color"`
	Recurrence    string    `json:"recurrence"`
	ExcludedDates []string  `json:"excluded_dates"`
}

// Apply copies the input onto e. ID, timestamps and the Google link are left alone.
func (in EventInput) Apply(e *Event) {
	e.Title = in.Title
	e.StartDate = in.StartDate
	e.EndDate = in.EndDate
	e.AllDay = in.AllDay
	e.Description = in.Description
	if in.Color != nil {
		e.Color = in.Color
	}
	e.Recurrence = in.Recurrence
	if in.ExcludedDates != nil {
		e.ExcludedDates = in.ExcludedDates
	}
	e.Normalize()
}
