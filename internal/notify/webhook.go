// Package notify delivers trigger alerts to an external webhook. Delivery
// is best effort: a failed POST is logged and retried on transient errors,
// never propagated, so notification problems cannot stall a monitor pass.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dossier-cli/internal/config"
	"github.com/sells-group/dossier-cli/internal/model"
	"github.com/sells-group/dossier-cli/internal/resilience"
)

// Payload is the webhook body for one alert.
type Payload struct {
	Ticker        string    `json:"ticker"`
	Metric        string    `json:"metric"`
	Status        string    `json:"status"`
	Message       string    `json:"message"`
	Operator      string    `json:"operator"`
	Threshold     float64   `json:"threshold"`
	Deadline      string    `json:"deadline"`
	DaysRemaining int       `json:"days_remaining"`
	SentAt        time.Time `json:"sent_at"`
}

// Webhook posts trigger alerts to the configured URL.
type Webhook struct {
	cfg    config.MonitorConfig
	client *http.Client
	retry  resilience.RetryConfig
}

// NewWebhook builds a notifier from the monitor config. With no webhook URL
// configured it is a no-op.
func NewWebhook(cfg config.MonitorConfig) *Webhook {
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("webhook", "deliver alert")
	return &Webhook{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		retry:  retry,
	}
}

// Notify delivers every breached or expired alert. Pending alerts are
// routine and never forwarded. Returns the number successfully delivered.
func (w *Webhook) Notify(ctx context.Context, alerts []model.TriggerAlert) int {
	if w.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if alert.Status == model.AlertPending {
			continue
		}

		if err := w.send(ctx, payloadFor(alert)); err != nil {
			zap.L().Error("notify: webhook delivery failed",
				zap.String("ticker", alert.Trigger.Ticker),
				zap.String("metric", alert.Trigger.Metric),
				zap.Error(err),
			)
			continue
		}

		zap.L().Info("notify: alert delivered",
			zap.String("ticker", alert.Trigger.Ticker),
			zap.String("metric", alert.Trigger.Metric),
			zap.String("status", string(alert.Status)),
		)
		sent++
	}
	return sent
}

func payloadFor(alert model.TriggerAlert) Payload {
	return Payload{
		Ticker:        alert.Trigger.Ticker,
		Metric:        alert.Trigger.Metric,
		Status:        string(alert.Status),
		Message:       alert.Message,
		Operator:      string(alert.Trigger.Operator),
		Threshold:     alert.Trigger.Threshold,
		Deadline:      alert.Trigger.Deadline,
		DaysRemaining: alert.DaysRemaining,
		SentAt:        time.Now().UTC(),
	}
}

// send posts one payload, retrying transient failures with backoff.
func (w *Webhook) send(ctx context.Context, p Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return eris.Wrap(err, "notify: marshal payload")
	}

	return resilience.Do(ctx, w.retry, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.WebhookURL, bytes.NewReader(body))
		if err != nil {
			return eris.Wrap(err, "notify: create webhook request")
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := w.client.Do(req)
		if err != nil {
			return eris.Wrap(err, "notify: webhook request")
		}
		defer resp.Body.Close() //nolint:errcheck

		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return resilience.NewTransientError(
				eris.Errorf("notify: webhook returned status %d", resp.StatusCode),
				resp.StatusCode,
			)
		}
		if resp.StatusCode >= 400 {
			return eris.Errorf("notify: webhook returned status %d", resp.StatusCode)
		}
		return nil
	})
}
