package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go"
	"github.com/chxlky/event-calendar/internal/models"
	"go.uber.org/zap"
)

// errPermanent marks failures that retrying cannot fix.
var errPermanent = errors.New("permanent webhook failure")

// WebhookNotifier posts change notifications to subscriber URLs.
type WebhookNotifier struct {
	Client   *http.Client
	URLs     []string
	Attempts uint
	Delay    time.Duration
}

func NewWebhookNotifier(urls []string, attempts uint) *WebhookNotifier {
	return &WebhookNotifier{
		Client:   &http.Client{Timeout: 10 * time.Second},
		URLs:     urls,
		Attempts: attempts,
		Delay:    500 * time.Millisecond,
	}
}

// Notify delivers note to every URL. 5xx responses and transport errors are
// retried; 4xx responses are not. The returned error joins the failures.
func (n *WebhookNotifier) Notify(ctx context.Context, note models.ChangeNotification) error {
	payload, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	var errs []error
	for _, url := range n.URLs {
		err := retry.Do(
			func() error { return n.post(ctx, url, payload) },
			retry.Attempts(n.Attempts),
			retry.Delay(n.Delay),
			retry.LastErrorOnly(true),
			retry.RetryIf(func(err error) bool { return !errors.Is(err, errPermanent) }),
			retry.OnRetry(func(attempt uint, err error) {
				zap.L().Warn("Webhook delivery failed, retrying",
					zap.String("url", url), zap.Uint("attempt", attempt+1), zap.Error(err))
			}),
		)
		if err != nil {
			errs = append(errs, fmt.Errorf("webhook %s: %w", url, err))
			continue
		}
		zap.L().Debug("Webhook delivered", zap.String("url", url), zap.String("action", string(note.Action)), zap.Uint("eventID", note.EventID))
	}
	return errors.Join(errs...)
}

func (n *WebhookNotifier) post(ctx context.Context, url string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", errPermanent, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: failed to create post request: %v", errPermanent, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.Client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send post request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	err = fmt.Errorf("subscriber returned non-2xx status: %s, body: %s", resp.Status, string(bodyBytes))
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return fmt.Errorf("%w: %v", errPermanent, err)
	}
	return err
}
