package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// UsageReporter periodically logs quota and cache usage and publishes quota gauges
type UsageReporter struct {
	service   *CricketService
	metrics   *Metrics
	logger    *logrus.Logger
	cron      *cron.Cron
	schedule  string
	mu        sync.Mutex
	isRunning bool
	reports   atomic.Int64
}

// NewUsageReporter creates a reporter for the given cron schedule (e.g. "@every 15m")
func NewUsageReporter(service *CricketService, metrics *Metrics, logger *logrus.Logger, schedule string) *UsageReporter {
	return &UsageReporter{
		service:  service,
		metrics:  metrics,
		logger:   logger,
		cron:     cron.New(),
		schedule: schedule,
	}
}

// Start schedules the report and emits one immediately
func (r *UsageReporter) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.isRunning {
		return fmt.Errorf("usage reporter is already running")
	}

	if _, err := r.cron.AddFunc(r.schedule, r.Report); err != nil {
		return fmt.Errorf("failed to schedule usage reporter: %w", err)
	}

	r.cron.Start()
	r.isRunning = true

	go r.Report()

	r.logger.WithField("schedule", r.schedule).Info("Usage reporter started")
	return nil
}

// Stop halts the schedule and waits for a running report to finish
func (r *UsageReporter) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.isRunning {
		return
	}

	ctx := r.cron.Stop()
	<-ctx.Done()

	r.isRunning = false
	r.logger.Info("Usage reporter stopped")
}

// Report logs one usage snapshot
func (r *UsageReporter) Report() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	summary := r.service.UsageSummary(ctx)
	for _, s := range summary.Sources {
		r.metrics.QuotaSnapshot(s.Quota)

		entry := r.logger.WithFields(logrus.Fields{
			"component":  "usage_reporter",
			"source":     s.Name,
			"configured": s.Configured,
			"breaker":    s.Breaker,
			"minute":     s.Quota.Minute,
			"hour":       s.Quota.Hour,
			"day":        s.Quota.Day,
			"daily_pct":  fmt.Sprintf("%.1f", s.Quota.DailyPct),
		})
		if s.Quota.Exhausted {
			entry.Warn("Source quota exhausted")
		} else {
			entry.Info("Source quota usage")
		}
	}

	r.logger.WithFields(logrus.Fields{
		"component": "usage_reporter",
		"backend":   summary.Cache.Backend,
		"entries":   summary.Cache.Entries,
		"hits":      summary.Cache.Hits,
		"misses":    summary.Cache.Misses,
	}).Info("Response cache usage")

	r.reports.Add(1)
}

// Status returns the reporter state and its next scheduled run
func (r *UsageReporter) Status() map[string]interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := r.cron.Entries()
	nextRuns := make([]time.Time, 0, len(entries))
	for _, entry := range entries {
		nextRuns = append(nextRuns, entry.Next)
	}

	return map[string]interface{}{
		"is_running": r.isRunning,
		"schedule":   r.schedule,
		"next_runs":  nextRuns,
		"reports":    r.reports.Load(),
	}
}
