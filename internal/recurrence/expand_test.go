package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chxlky/event-calendar/internal/models"
)

func mkEvent(id uint, start time.Time, d time.Duration, rule string) *models.Event {
	e := models.NewEvent()
	e.ID = id
	e.Title = "standup"
	e.StartDate = start
	e.EndDate = start.Add(d)
	e.Recurrence = rule
	return e
}

var (
	janStart = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	janEnd   = time.Date(2025, time.January, 31, 23, 59, 59, 0, time.UTC)
)

func TestExpand_PlainEventsPassThrough(t *testing.T) {
	a := mkEvent(1, time.Date(2025, 1, 3, 9, 0, 0, 0, time.UTC), time.Hour, "")
	b := mkEvent(2, time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC), time.Hour, "")

	out, err := Expand([]*models.Event{a, b}, janStart, janEnd)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Same(t, a, out[0])
	assert.Same(t, b, out[1])
}

func TestExpand_WeeklySeries(t *testing.T) {
	ev := mkEvent(7, time.Date(2024, 12, 30, 9, 0, 0, 0, time.UTC), 30*time.Minute, "FREQ=WEEKLY;BYDAY=MO")

	out, err := Expand([]*models.Event{ev}, janStart, janEnd)
	require.NoError(t, err)

	var days []int
	for _, occ := range out {
		assert.Equal(t, uint(7), occ.ID)
		assert.Equal(t, 30*time.Minute, occ.Duration())
		if occ.StartDate.Month() == time.January {
			days = append(days, occ.StartDate.Day())
		}
	}
	assert.Equal(t, []int{6, 13, 20, 27}, days)
	assert.Equal(t, time.Date(2024, 12, 30, 9, 0, 0, 0, time.UTC), ev.StartDate, "series must not be mutated")
}

func TestExpand_OccurrenceRunningIntoRange(t *testing.T) {
	ev := mkEvent(3, time.Date(2024, 12, 31, 22, 0, 0, 0, time.UTC), 4*time.Hour, "FREQ=YEARLY")

	out, err := Expand([]*models.Event{ev}, janStart, janEnd)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 31, out[0].StartDate.Day())
	assert.Equal(t, 1, out[0].EndDate.Day())
}

func TestExpand_SkipsExcludedDates(t *testing.T) {
	ev := mkEvent(4, time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC), time.Hour, "FREQ=DAILY;COUNT=5")
	ev.ExcludeDate(time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC))

	out, err := Expand([]*models.Event{ev}, janStart, janEnd)
	require.NoError(t, err)

	var days []int
	for _, occ := range out {
		days = append(days, occ.StartDate.Day())
	}
	assert.Equal(t, []int{1, 2, 4, 5}, days)
}

func TestExpand_InvalidRule(t *testing.T) {
	ev := mkEvent(9, janStart, time.Hour, "FREQ=SOMETIMES")

	_, err := Expand([]*models.Event{ev}, janStart, janEnd)
	assert.ErrorIs(t, err, ErrInvalidRule)
}

func TestExpand_RejectsInvertedRange(t *testing.T) {
	_, err := Expand(nil, janEnd, janStart)
	assert.Error(t, err)
}

func TestExpand_UsesRangeLocation(t *testing.T) {
	paris, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)

	// stored as UTC, which puts the first start on Sunday the 5th
	start := time.Date(2025, 1, 6, 0, 30, 0, 0, paris).UTC()
	ev := mkEvent(5, start, time.Hour, "FREQ=WEEKLY")
	ev.ExcludeDate(time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC))

	from := time.Date(2025, 1, 1, 0, 0, 0, 0, paris)
	out, err := Expand([]*models.Event{ev}, from, from.AddDate(0, 1, 0).Add(-time.Second))
	require.NoError(t, err)

	var days []int
	for _, occ := range out {
		assert.Equal(t, paris, occ.StartDate.Location())
		days = append(days, occ.StartDate.Day())
	}
	assert.Equal(t, []int{6, 20, 27}, days)
}

func TestExpand_KeepsLocalTimeAcrossDST(t *testing.T) {
	paris, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)

	// Paris moves to summer time on 2025-03-30
	start := time.Date(2025, 3, 24, 9, 0, 0, 0, paris).UTC()
	ev := mkEvent(6, start, time.Hour, "FREQ=WEEKLY;COUNT=3")

	from := time.Date(2025, 3, 1, 0, 0, 0, 0, paris)
	out, err := Expand([]*models.Event{ev}, from, from.AddDate(0, 2, 0))
	require.NoError(t, err)
	require.Len(t, out, 3)
	for _, occ := range out {
		assert.Equal(t, 9, occ.StartDate.Hour(), occ.StartDate)
	}
}
