// Package poller waits for a remote scan to leave the Pending state.
package poller

import (
	"context"
	"log/slog"
	"time"

	"github.com/daimoniac/sbomscan/internal/config"
	"github.com/daimoniac/sbomscan/internal/errors"
	"github.com/daimoniac/sbomscan/internal/observability"
	"github.com/daimoniac/sbomscan/internal/scanapi"
)

// StatusSource reports the current outcome of a scan
type StatusSource interface {
	GetScanStatus(ctx context.Context, scanID string) (scanapi.ScanOutcome, error)
}

// Poller waits for scans to complete
type Poller interface {
	// Poll queries the scan status until it is terminal or deadline has
	// elapsed since the first query. It returns errors.ErrScanTimeout when
	// the deadline passes and the gateway error when a query fails.
	Poll(ctx context.Context, scanID string, deadline time.Duration) (scanapi.ScanOutcome, error)
}

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Config contains configuration for the poller
type Config struct {
	Interval time.Duration
	Now      func() time.Time // defaults to time.Now
	Sleep    SleepFunc        // defaults to a context-aware timer
}

// pollerImpl implements the Poller interface
type pollerImpl struct {
	source   StatusSource
	interval time.Duration
	now      func() time.Time
	sleep    SleepFunc
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// New creates a new scan completion poller
func New(source StatusSource, cfg Config, logger *slog.Logger) Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = config.DefaultPollInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleepContext
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &pollerImpl{
		source:   source,
		interval: cfg.Interval,
		now:      cfg.Now,
		sleep:    cfg.Sleep,
		logger:   logger,
		metrics:  observability.GetMetrics(),
	}
}

// Poll queries the scan status until it resolves or the deadline passes
func (p *pollerImpl) Poll(ctx context.Context, scanID string, deadline time.Duration) (scanapi.ScanOutcome, error) {
	startTime := p.now()
	defer func() {
		p.metrics.ScanDuration.Observe(p.now().Sub(startTime).Seconds())
	}()

	for {
		p.metrics.StatusPolls.Inc()
		outcome, err := p.source.GetScanStatus(ctx, scanID)
		if err != nil {
			return nil, err
		}

		if outcome.Terminal() {
			p.logger.Info("scan resolved",
				"scan_id", scanID,
				"status", string(outcome.Status()))
			return outcome, nil
		}

		// elapsed is floored to whole seconds
		elapsed := p.now().Sub(startTime).Truncate(time.Second)
		remaining := deadline - elapsed

		p.logger.Info("waiting for scan completion",
			"scan_id", scanID,
			"remaining_seconds", int64(max(remaining, 0)/time.Second))

		if remaining <= 0 {
			p.logger.Info("scan did not complete in time",
				"scan_id", scanID,
				"start_time", startTime,
				"elapsed_seconds", int64(elapsed/time.Second))
			return nil, errors.ErrScanTimeout
		}

		if err := p.sleep(ctx, p.interval); err != nil {
			return nil, err
		}
	}
}

// sleepContext waits for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
