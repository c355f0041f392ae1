package recurrence

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/chxlky/event-calendar/internal/models"
)

// MaxOccurrencesPerEvent caps the expansion of a single series within one range.
const MaxOccurrencesPerEvent = 1000

var ErrInvalidRule = errors.New("invalid recurrence rule")

// Expand replaces every recurring event with the occurrences that touch
// [rangeStart, rangeEnd]. Plain events are returned as is, in input order.
// Series are expanded on the wall clock of rangeStart's location, which also
// decides the local date matched against ExcludedDates.
func Expand(events []*models.Event, rangeStart, rangeEnd time.Time) ([]*models.Event, error) {
	if rangeEnd.Before(rangeStart) {
		return nil, errors.New("expand: range end is before range start")
	}

	out := make([]*models.Event, 0, len(events))
	for _, ev := range events {
		if !ev.IsRecurring() {
			out = append(out, ev)
			continue
		}

		occ, err := expandEvent(ev, rangeStart, rangeEnd)
		if err != nil {
			return nil, err
		}
		out = append(out, occ...)
	}
	return out, nil
}

func expandEvent(ev *models.Event, rangeStart, rangeEnd time.Time) ([]*models.Event, error) {
	loc := rangeStart.Location()
	r, err := ev.RuleIn(loc)
	if err != nil {
		return nil, fmt.Errorf("%w: event %d: %v", ErrInvalidRule, ev.ID, err)
	}

	// Occurrences starting before the range may still run into it.
	starts := r.Between(rangeStart.Add(-ev.Duration()), rangeEnd, true)
	if len(starts) > MaxOccurrencesPerEvent {
		zap.L().Warn("Truncated recurring event expansion",
			zap.Uint("eventID", ev.ID),
			zap.Int("occurrences", len(starts)),
			zap.Int("cap", MaxOccurrencesPerEvent))
		starts = starts[:MaxOccurrencesPerEvent]
	}

	out := make([]*models.Event, 0, len(starts))
	for _, start := range starts {
		start = start.In(loc)
		if ev.IsExcludedDate(start) {
			continue
		}
		out = append(out, ev.Occurrence(start))
	}
	return out, nil
}
