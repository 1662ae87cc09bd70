// Package monitoring watches request accounting and provider status and
// raises alerts when the parts service degrades.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/LibrePCB/librepcb-api-server/internal/model"
	"github.com/LibrePCB/librepcb-api-server/internal/store"
)

// MetricsSnapshot holds a point-in-time view of service health.
type MetricsSnapshot struct {
	// Request accounting (within lookback window).
	Requests     int64   `json:"requests"`
	Parts        int64   `json:"parts"`
	CacheHits    int64   `json:"cache_hits"`
	WithResult   int64   `json:"with_result"`
	CacheHitRate float64 `json:"cache_hit_rate"`
	ResultRate   float64 `json:"result_rate"`

	// QuotaResumesAt is set while the external quota is exhausted.
	QuotaResumesAt *time.Time `json:"quota_resumes_at,omitempty"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// StatsReader abstracts the store method needed by the collector.
type StatsReader interface {
	PartsRequestStats(ctx context.Context, since time.Time) (*store.RequestStats, error)
}

// StatusReader abstracts the persisted provider status.
type StatusReader interface {
	Read() (model.ProviderStatus, error)
}

// Collector gathers metrics from the request log and the status file.
type Collector struct {
	stats  StatsReader
	status StatusReader
	now    func() time.Time
}

// NewCollector creates a new metrics collector. status may be nil.
func NewCollector(stats StatsReader, status StatusReader) *Collector {
	return &Collector{stats: stats, status: status, now: time.Now}
}

// Collect gathers a snapshot of service metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := c.now().UTC()
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}

	st, err := c.stats.PartsRequestStats(ctx, now.Add(-time.Duration(lookbackHours)*time.Hour))
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: request stats")
	}
	snap.Requests = st.Requests
	snap.Parts = st.Parts
	snap.CacheHits = st.CacheHits
	snap.WithResult = st.WithResult
	if st.Parts > 0 {
		snap.CacheHitRate = float64(st.CacheHits) / float64(st.Parts)
		snap.ResultRate = float64(st.WithResult) / float64(st.Parts)
	}

	if c.status != nil {
		ps, err := c.status.Read()
		if err != nil {
			return nil, eris.Wrap(err, "monitoring: read provider status")
		}
		if t, ok := nextAccessTime(ps); ok && t.After(now) {
			snap.QuotaResumesAt = &t
		}
	}

	return snap, nil
}

// nextAccessTime extracts the quota resume time. Values that are not RFC 3339
// timestamps are ignored.
func nextAccessTime(ps model.ProviderStatus) (time.Time, bool) {
	raw, ok := ps[model.StatusNextAccessTime].(string)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}
