package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chxlky/event-calendar/internal/models"
	"gorm.io/gorm"
)

var ErrEventNotFound = errors.New("event not found")

// overlapClause matches events touching [start, end], plus every recurring
// series that has started by the end of the range.
const overlapClause = `(start_date BETWEEN @start AND @end)
	OR (end_date BETWEEN @start AND @end)
	OR (start_date <= @start AND end_date >= @end)
	OR (recurrence <> '' AND start_date <= @end)`

type EventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

// FindOverlapping returns the events touching [start, end], ordered by start date.
func (r *EventRepository) FindOverlapping(ctx context.Context, start, end time.Time) ([]*models.Event, error) {
	var events []*models.Event
	err := r.db.WithContext(ctx).
		Where(overlapClause, map[string]any{"start": start.UTC(), "end": end.UTC()}).
		Order("start_date ASC, id ASC").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	return events, nil
}

// FindByMonth returns the events touching year/month, from the first day at
// 00:00:00 to the last day at 23:59:59 in loc.
func (r *EventRepository) FindByMonth(ctx context.Context, year int, month time.Month, loc *time.Location) ([]*models.Event, error) {
	start, end := MonthRange(year, month, loc)
	return r.FindOverlapping(ctx, start, end)
}

// FindByDay returns the events touching the calendar day of t, in t's location.
func (r *EventRepository) FindByDay(ctx context.Context, t time.Time) ([]*models.Event, error) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return r.FindOverlapping(ctx, start, start.AddDate(0, 0, 1).Add(-time.Second))
}

func MonthRange(year int, month time.Month, loc *time.Location) (time.Time, time.Time) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 1, 0).Add(-time.Second)
}

func (r *EventRepository) Get(ctx context.Context, id uint) (*models.Event, error) {
	var event models.Event
	err := r.db.WithContext(ctx).First(&event, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrEventNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load event %d: %w", id, err)
	}
	return &event, nil
}

// Save validates the event and inserts or updates it. Timestamps are stored
// in UTC so that SQLite's text comparison orders them correctly.
func (r *EventRepository) Save(ctx context.Context, event *models.Event) error {
	event.Normalize()
	if err := event.Validate(); err != nil {
		return err
	}
	event.StartDate = event.StartDate.UTC()
	event.EndDate = event.EndDate.UTC()

	tx := r.db.WithContext(ctx)
	if event.ID == 0 {
		if err := tx.Create(event).Error; err != nil {
			return fmt.Errorf("failed to create event: %w", err)
		}
		return nil
	}

	// the Google link is owned by SetGoogleEventID
	if err := tx.Omit("google_event_id").Save(event).Error; err != nil {
		return fmt.Errorf("failed to update event %d: %w", event.ID, err)
	}
	return nil
}

func (r *EventRepository) Remove(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Event{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete event %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %d", ErrEventNotFound, id)
	}
	return nil
}

// SetGoogleEventID records the remote ID without touching UpdatedAt.
func (r *EventRepository) SetGoogleEventID(ctx context.Context, id uint, googleID string) error {
	err := r.db.WithContext(ctx).Model(&models.Event{}).Where("id = ?", id).
		UpdateColumn("google_event_id", googleID).Error
	if err != nil {
		return fmt.Errorf("failed to link event %d to google event: %w", id, err)
	}
	return nil
}

func (r *EventRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Event{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}

// CountUpcoming counts events starting strictly after now.
func (r *EventRepository) CountUpcoming(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Event{}).
		Where("start_date > ?", now.UTC()).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count upcoming events: %w", err)
	}
	return n, nil
}

// Upcoming returns at most limit events starting at or after now, soonest first.
func (r *EventRepository) Upcoming(ctx context.Context, now time.Time, limit int) ([]*models.Event, error) {
	var events []*models.Event
	err := r.db.WithContext(ctx).
		Where("start_date >= ?", now.UTC()).
		Order("start_date ASC, id ASC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query upcoming events: %w", err)
	}
	return events, nil
}

// Recent returns the last limit events created, newest first.
func (r *EventRepository) Recent(ctx context.Context, limit int) ([]*models.Event, error) {
	var events []*models.Event
	err := r.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query recent events: %w", err)
	}
	return events, nil
}

func (r *EventRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
