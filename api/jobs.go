package api

import (
	"context"
	"time"

	"github.com/chxlky/event-calendar/internal/models"
	"go.uber.org/zap"
)

const jobTimeout = 30 * time.Second

// dispatch runs job in the background once a worker slot is free.
func (h *Handler) dispatch(name string, job func(ctx context.Context) error) {
	h.jobs.Add(1)
	go func() {
		defer h.jobs.Done()

		h.Workers <- struct{}{}
		defer func() { <-h.Workers }()

		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		if err := job(ctx); err != nil {
			zap.L().Error("Background job failed", zap.String("job", name), zap.Error(err))
		}
	}()
}

// afterWrite mirrors a stored change to Google Calendar and the webhook
// subscribers. Neither can fail the request that triggered it.
func (h *Handler) afterWrite(action models.ChangeAction, event *models.Event) {
	snapshot := *event
	start := snapshot.StartDate.In(h.Location)

	if h.Syncer != nil {
		h.dispatch("google-sync", func(ctx context.Context) error {
			if action == models.ActionDeleted {
				if snapshot.GoogleEventID == "" {
					return nil
				}
				return h.Syncer.DeleteEvent(ctx, snapshot.GoogleEventID)
			}

			remoteID, err := h.Syncer.PushEvent(ctx, &snapshot)
			if err != nil {
				return err
			}
			if remoteID == snapshot.GoogleEventID {
				return nil
			}
			zap.L().Info("Linked event to Google Calendar", zap.Uint("eventID", snapshot.ID), zap.String("googleEventID", remoteID))
			return h.Events.SetGoogleEventID(ctx, snapshot.ID, remoteID)
		})
	}

	if h.Notifier != nil {
		note := models.ChangeNotification{
			Action:     action,
			EventID:    snapshot.ID,
			Year:       start.Year(),
			Month:      int(start.Month()),
			OccurredAt: h.Now().UTC(),
		}
		if action != models.ActionDeleted {
			note.Event = &snapshot
		}
		h.dispatch("webhook-notify", func(ctx context.Context) error {
			return h.Notifier.Notify(ctx, note)
		})
	}
}
