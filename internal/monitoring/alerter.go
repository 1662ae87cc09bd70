package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/LibrePCB/librepcb-api-server/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertQuotaExhausted AlertType = "quota_exhausted"
	AlertLowResultRate  AlertType = "low_result_rate"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client

	// lastQuota is the resume time of the last quota alert, so one
	// exhaustion period is reported once.
	lastQuota time.Time
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	if snap.QuotaResumesAt != nil && !snap.QuotaResumesAt.Equal(a.lastQuota) {
		a.lastQuota = *snap.QuotaResumesAt
		alerts = append(alerts, Alert{
			Type:     AlertQuotaExhausted,
			Severity: "high",
			Message: fmt.Sprintf(
				"Partstack quota exhausted, queries resume at %s",
				snap.QuotaResumesAt.Format(time.RFC3339),
			),
			Details: map[string]any{
				"next_access_time": snap.QuotaResumesAt.Format(time.RFC3339),
			},
			Timestamp: now,
		})
	}

	if a.cfg.ResultRateThreshold > 0 && snap.Parts >= int64(a.cfg.MinParts) && snap.Parts > 0 &&
		snap.ResultRate < a.cfg.ResultRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertLowResultRate,
			Severity: "medium",
			Message: fmt.Sprintf(
				"Only %.1f%% of queried parts resolved (threshold %.1f%%, %d of %d in last %dh)",
				snap.ResultRate*100, a.cfg.ResultRateThreshold*100,
				snap.WithResult, snap.Parts, snap.LookbackHours,
			),
			Details: map[string]any{
				"result_rate": snap.ResultRate,
				"threshold":   a.cfg.ResultRateThreshold,
				"with_result": snap.WithResult,
				"parts":       snap.Parts,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
