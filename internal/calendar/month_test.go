package calendar

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chxlky/event-calendar/internal/grid"
	"github.com/chxlky/event-calendar/internal/models"
)

type stubSource struct {
	events []*models.Event
	err    error
	calls  int
}

func (s *stubSource) FindByMonth(_ context.Context, _ int, _ time.Month, _ *time.Location) ([]*models.Event, error) {
	s.calls++
	return s.events, s.err
}

func TestLoad(t *testing.T) {
	single := models.NewEvent()
	single.Title = "dentist"
	single.StartDate = time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	single.EndDate = time.Date(2025, 1, 15, 11, 0, 0, 0, time.UTC)

	series := models.NewEvent()
	series.Title = "payroll"
	series.StartDate = time.Date(2024, 6, 28, 9, 0, 0, 0, time.UTC)
	series.EndDate = series.StartDate.Add(time.Hour)
	series.Recurrence = "FREQ=MONTHLY;BYMONTHDAY=28"

	src := &stubSource{events: []*models.Event{series, single}}
	now := time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC)

	m, err := Load(context.Background(), src, 2025, 1, now)
	require.NoError(t, err)

	assert.Equal(t, 2025, m.Year)
	assert.Equal(t, 1, m.Month)
	assert.Equal(t, "2024/12", m.Previous)
	assert.Equal(t, "2025/02", m.Next)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), m.CurrentDate)
	require.Len(t, m.Events, 2)
	assert.Equal(t, 28, m.Events[0].StartDate.Day())
	assert.Same(t, single, m.Events[1])

	assert.True(t, m.Weeks.Day(15).IsToday)
	assert.Len(t, m.Weeks.Day(15).Events, 1)
	assert.Len(t, m.Weeks.Day(28).Events, 1)
}

func TestLoadHonoursExclusionsInDisplayZone(t *testing.T) {
	paris, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)

	// stored in UTC, as the repository returns it: Sunday 23:30 UTC is Monday 00:30 in Paris
	series := models.NewEvent()
	series.ID = 4
	series.Title = "night shift"
	series.StartDate = time.Date(2025, 1, 6, 0, 30, 0, 0, paris).UTC()
	series.EndDate = series.StartDate.Add(time.Hour)
	series.Recurrence = "FREQ=WEEKLY"
	series.ExcludedDates = []string{"2025-01-13"}

	src := &stubSource{events: []*models.Event{series}}
	m, err := Load(context.Background(), src, 2025, 1, time.Date(2025, 1, 15, 8, 0, 0, 0, paris))
	require.NoError(t, err)

	var days []int
	for _, week := range m.Weeks {
		for _, cell := range week {
			if cell != nil && len(cell.Events) > 0 {
				days = append(days, cell.Day)
			}
		}
	}
	assert.Equal(t, []int{6, 20, 27}, days)
	assert.Empty(t, m.Weeks.Day(13).Events)
}

func TestLoadInvalidMonthSkipsStore(t *testing.T) {
	src := &stubSource{}
	_, err := Load(context.Background(), src, 2025, 13, time.Now())
	assert.ErrorIs(t, err, grid.ErrInvalidMonth)
	assert.Zero(t, src.calls)
}

func TestLoadPropagatesStoreErrors(t *testing.T) {
	boom := errors.New("db down")
	_, err := Load(context.Background(), &stubSource{err: boom}, 2025, 1, time.Now())
	assert.ErrorIs(t, err, boom)
}
