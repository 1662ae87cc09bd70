package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/LibrePCB/librepcb-api-server/internal/config"
)

const (
	defaultCheckInterval = 5 * time.Minute
	defaultLookbackHours = 24
)

// Checker periodically evaluates the parts service health while the server runs.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	interval  time.Duration
	lookback  int
}

// NewChecker creates a Checker. Zero interval or lookback values fall back to
// five minutes and 24 hours.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	c := &Checker{
		collector: collector,
		alerter:   alerter,
		interval:  time.Duration(cfg.CheckIntervalSecs) * time.Second,
		lookback:  cfg.LookbackWindowHours,
	}
	if c.interval <= 0 {
		c.interval = defaultCheckInterval
	}
	if c.lookback <= 0 {
		c.lookback = defaultLookbackHours
	}
	return c
}

// Run checks once immediately, then on every interval until ctx is done.
func (c *Checker) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "parts.watchdog"))
	if ctx.Err() != nil {
		return
	}
	log.Info("parts watchdog started",
		zap.Duration("interval", c.interval),
		zap.Int("lookback_hours", c.lookback),
	)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		c.check(ctx, log)
		select {
		case <-ctx.Done():
			log.Info("parts watchdog stopped")
			return
		case <-ticker.C:
		}
	}
}

// check collects a snapshot, evaluates it and delivers what it raised.
func (c *Checker) check(ctx context.Context, log *zap.Logger) []Alert {
	snap, err := c.collector.Collect(ctx, c.lookback)
	if err != nil {
		log.Error("monitoring: collect snapshot", zap.Error(err))
		return nil
	}

	alerts := c.alerter.Evaluate(snap)
	log.Debug("monitoring: snapshot",
		zap.Int64("parts", snap.Parts),
		zap.Float64("cache_hit_rate", snap.CacheHitRate),
		zap.Float64("result_rate", snap.ResultRate),
		zap.Int("alerts", len(alerts)),
	)
	if len(alerts) == 0 {
		return nil
	}

	for _, a := range alerts {
		log.Warn(a.Message, zap.String("alert", string(a.Type)), zap.String("severity", a.Severity))
	}
	if sent := c.alerter.SendAlerts(ctx, alerts); sent < len(alerts) && c.alerter.cfg.WebhookURL != "" {
		log.Warn("monitoring: some alerts were not delivered",
			zap.Int("raised", len(alerts)),
			zap.Int("sent", sent),
		)
	}
	return alerts
}
