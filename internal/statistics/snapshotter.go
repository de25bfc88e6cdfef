package statistics

import (
	"context"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/help-search/internal/helpsearch"
	"github.com/Adithya-Monish-Kumar-K/help-search/pkg/metrics"
)

// Saver persists one snapshot. *Store implements it.
type Saver interface {
	SaveSnapshot(ctx context.Context, stats helpsearch.Statistics) error
}

// Source yields the current statistics. *helpsearch.Engine implements it.
type Source interface {
	Statistics() helpsearch.Statistics
}

// Snapshotter periodically saves a Source's statistics.
type Snapshotter struct {
	saver    Saver
	source   Source
	interval time.Duration
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

const defaultInterval = time.Minute

// NewSnapshotter builds a Snapshotter. m may be nil.
func NewSnapshotter(saver Saver, source Source, interval time.Duration, m *metrics.Metrics) *Snapshotter {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Snapshotter{
		saver:    saver,
		source:   source,
		interval: interval,
		metrics:  m,
		logger:   slog.Default().With("component", "statistics-snapshotter"),
	}
}

// Run saves a snapshot every interval and a final one when ctx is
// cancelled. It blocks until then and always returns nil.
func (s *Snapshotter) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.logger.Info("periodic snapshot started", "interval", s.interval)

	var lastTotal int64 = -1
	for {
		select {
		case <-ticker.C:
			stats := s.source.Statistics()
			if stats.TotalSearches == lastTotal {
				continue
			}
			if s.save(ctx, stats) {
				lastTotal = stats.TotalSearches
			}
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			s.save(shutdownCtx, s.source.Statistics())
			return nil
		}
	}
}

func (s *Snapshotter) save(ctx context.Context, stats helpsearch.Statistics) bool {
	status := "ok"
	err := s.saver.SaveSnapshot(ctx, stats)
	if err != nil {
		status = "error"
		s.logger.Error("statistics snapshot failed", "error", err)
	}
	if s.metrics != nil {
		s.metrics.SnapshotsTotal.WithLabelValues(status).Inc()
	}
	return err == nil
}
