package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEvent() *Event {
	e := NewEvent()
	e.Title = "Planning"
	e.StartDate = time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	e.EndDate = e.StartDate.Add(time.Hour)
	return e
}

func strPtr(s string) *string { return &s }

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(e *Event)
		wantErr string
	}{
		{name: "valid", mutate: func(e *Event) {}},
		{name: "lower case colour", mutate: func(e *Event) { e.Color = strPtr("#abcdef") }},
		{name: "no colour", mutate: func(e *Event) { e.Color = nil }},
		{name: "short colour", mutate: func(e *Event) { e.Color = strPtr("#12345") }, wantErr: "color: must be a #RRGGBB hex colour"},
		{name: "named colour", mutate: func(e *Event) { e.Color = strPtr("red") }, wantErr: "color: must be a #RRGGBB hex colour"},
		{name: "colour without hash", mutate: func(e *Event) { e.Color = strPtr("3788d8") }, wantErr: "color: must be a #RRGGBB hex colour"},
		{name: "title at limit", mutate: func(e *Event) { e.Title = strings.Repeat("a", 255) }},
		{name: "title over limit", mutate: func(e *Event) { e.Title = strings.Repeat("a", 256) }, wantErr: "title: must be at most 255 characters"},
		{name: "missing title", mutate: func(e *Event) { e.Title = "" }, wantErr: "title: is required"},
		{name: "end equals start", mutate: func(e *Event) { e.EndDate = e.StartDate }},
		{name: "end before start", mutate: func(e *Event) { e.EndDate = e.StartDate.Add(-time.Minute) }, wantErr: "end_date: must not be before start_date"},
		{name: "missing start", mutate: func(e *Event) { e.StartDate = time.Time{} }, wantErr: "start_date: is required"},
		{name: "good rule", mutate: func(e *Event) { e.Recurrence = "FREQ=WEEKLY;BYDAY=MO;COUNT=4" }},
		{name: "bad rule", mutate: func(e *Event) { e.Recurrence = "FREQ=SOMETIMES" }, wantErr: "recurrence:"},
		{name: "bad excluded date", mutate: func(e *Event) { e.ExcludedDates = []string{"13/01/2025"} }, wantErr: `excluded_dates: "13/01/2025"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := validEvent()
			tt.mutate(e)

			err := e.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidEvent)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	e := validEvent()
	e.Title = ""
	e.Color = strPtr("blue")
	e.EndDate = e.StartDate.Add(-time.Hour)

	err := e.Validate()
	require.ErrorIs(t, err, ErrInvalidEvent)
	assert.Contains(t, err.Error(), "title: is required")
	assert.Contains(t, err.Error(), "color:")
	assert.Contains(t, err.Error(), "end_date:")
}

func TestNormalize(t *testing.T) {
	e := validEvent()
	e.Title = "  Planning  "
	e.Recurrence = " RRULE:FREQ=DAILY "
	e.Description = strPtr("   ")
	e.Color = strPtr("")
	e.ExcludedDates = nil

	e.Normalize()

	assert.Equal(t, "Planning", e.Title)
	assert.Equal(t, "FREQ=DAILY", e.Recurrence)
	assert.Nil(t, e.Description)
	assert.Nil(t, e.Color)
	assert.NotNil(t, e.ExcludedDates)
	assert.Empty(t, e.ExcludedDates)
}

func TestExcludeAndIncludeDate(t *testing.T) {
	day := time.Date(2025, 1, 13, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		existing []string
		apply    func(e *Event)
		want     []string
	}{
		{
			name:     "exclude adds the date once",
			existing: []string{},
			apply:    func(e *Event) { e.ExcludeDate(day); e.ExcludeDate(day) },
			want:     []string{"2025-01-13"},
		},
		{
			name:     "exclude keeps other dates",
			existing: []string{"2025-01-20"},
			apply:    func(e *Event) { e.ExcludeDate(day) },
			want:     []string{"2025-01-20", "2025-01-13"},
		},
		{
			name:     "include removes every duplicate",
			existing: []string{"2025-01-13", "2025-01-20", "2025-01-13"},
			apply:    func(e *Event) { e.IncludeDate(day) },
			want:     []string{"2025-01-20"},
		},
		{
			name:     "include of a date that is not excluded",
			existing: []string{"2025-01-20"},
			apply:    func(e *Event) { e.IncludeDate(day) },
			want:     []string{"2025-01-20"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := validEvent()
			e.ExcludedDates = tt.existing
			tt.apply(e)
			assert.Equal(t, tt.want, e.ExcludedDates)
		})
	}
}

func TestOccurrenceCopiesExclusions(t *testing.T) {
	e := validEvent()
	e.Recurrence = "FREQ=WEEKLY"
	e.ExcludedDates = []string{"2025-01-13"}

	occ := e.Occurrence(time.Date(2025, 1, 20, 9, 0, 0, 0, time.UTC))
	occ.ExcludeDate(time.Date(2025, 1, 27, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, time.Hour, occ.Duration())
	assert.Equal(t, []string{"2025-01-13"}, e.ExcludedDates)
}

func TestRuleInKeepsLocalWallClock(t *testing.T) {
	paris, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)

	e := validEvent()
	e.StartDate = time.Date(2025, 3, 24, 9, 0, 0, 0, paris).UTC()
	e.EndDate = e.StartDate.Add(time.Hour)
	e.Recurrence = "FREQ=WEEKLY;COUNT=2"

	rule, err := e.RuleIn(paris)
	require.NoError(t, err)
	all := rule.All()
	require.Len(t, all, 2)
	assert.Equal(t, 9, all[1].In(paris).Hour())
	assert.Equal(t, 7, all[1].UTC().Hour())
}

func TestOccurrenceOn(t *testing.T) {
	paris, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)

	start := time.Date(2025, 1, 6, 0, 30, 0, 0, paris)
	got := OccurrenceOn(start, time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2025, 1, 13, 0, 30, 0, 0, paris), got)
}
