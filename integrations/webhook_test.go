package integrations

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chxlky/event-calendar/internal/models"
)

func TestNotifyDeliversJSON(t *testing.T) {
	var got models.ChangeNotification
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewWebhookNotifier([]string{srv.URL}, 3)
	note := models.ChangeNotification{
		Action:     models.ActionDeleted,
		EventID:    12,
		Year:       2025,
		Month:      1,
		OccurredAt: time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC),
	}

	require.NoError(t, n.Notify(context.Background(), note))
	assert.Equal(t, models.ActionDeleted, got.Action)
	assert.Equal(t, uint(12), got.EventID)
	assert.Nil(t, got.Event)
}

func TestNotifyRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewWebhookNotifier([]string{srv.URL}, 3)
	n.Delay = time.Millisecond

	require.NoError(t, n.Notify(context.Background(), models.ChangeNotification{Action: models.ActionCreated}))
	assert.EqualValues(t, 3, calls.Load())
}

func TestNotifyDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "nope", http.StatusGone)
	}))
	defer srv.Close()

	var okCalls atomic.Int32
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		okCalls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer ok.Close()

	n := NewWebhookNotifier([]string{srv.URL, ok.URL}, 4)
	n.Delay = time.Millisecond

	err := n.Notify(context.Background(), models.ChangeNotification{Action: models.ActionUpdated})
	require.Error(t, err)
	assert.Contains(t, err.Error(), srv.URL)
	assert.EqualValues(t, 1, calls.Load())
	assert.EqualValues(t, 1, okCalls.Load())
}
