package services

import (
	"context"
	"sync"
	"time"

	"github.com/jstittsworth/cricklytics/internal/cricket"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// UsageCounter tracks calls made to one source in the current minute, hour and day windows
type UsageCounter struct {
	Source      string    `json:"source"`
	Minute      int       `json:"minute"`
	Hour        int       `json:"hour"`
	Day         int       `json:"day"`
	MinuteStart time.Time `json:"minute_start"`
	HourStart   time.Time `json:"hour_start"`
	DayStart    time.Time `json:"day_start"`
}

// QuotaUsage is a read-only snapshot of a guard's counters and ceilings
type QuotaUsage struct {
	UsageCounter
	PerMinute   int     `json:"per_minute"`
	PerHour     int     `json:"per_hour"`
	PerDay      int     `json:"per_day"`
	DailyPct    float64 `json:"daily_pct"`
	Exhausted   bool    `json:"exhausted"`
	MinInterval string  `json:"min_interval"`
}

// QuotaGuard enforces per-window call ceilings and a per-endpoint minimum
// interval for a single source
type QuotaGuard struct {
	desc   cricket.SourceDescriptor
	logger *logrus.Logger
	now    func() time.Time

	// held across allow, wait and record so concurrent callers cannot
	// jointly exceed a ceiling
	acquireMu sync.Mutex

	mu       sync.Mutex
	counter  UsageCounter
	limiters map[string]*rate.Limiter
}

// QuotaOption configures a QuotaGuard
type QuotaOption func(*QuotaGuard)

// WithClock overrides the wall clock used for window rollover
func WithClock(now func() time.Time) QuotaOption {
	return func(q *QuotaGuard) {
		q.now = now
	}
}

// NewQuotaGuard creates a guard for the given source
func NewQuotaGuard(desc cricket.SourceDescriptor, logger *logrus.Logger, opts ...QuotaOption) *QuotaGuard {
	q := &QuotaGuard{
		desc:     desc,
		logger:   logger,
		now:      time.Now,
		limiters: make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(q)
	}

	now := q.now()
	q.counter = UsageCounter{
		Source:      desc.Name,
		MinuteStart: minuteStart(now),
		HourStart:   hourStart(now),
		DayStart:    dayStart(now),
	}
	return q
}

// Descriptor returns the source configuration the guard enforces
func (q *QuotaGuard) Descriptor() cricket.SourceDescriptor {
	return q.desc
}

// Allow reports whether another call fits under every window ceiling
func (q *QuotaGuard) Allow(endpoint string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.rollover(q.now())
	if exceeded(q.counter.Minute, q.desc.PerMinute) ||
		exceeded(q.counter.Hour, q.desc.PerHour) ||
		exceeded(q.counter.Day, q.desc.PerDay) {
		q.logger.WithFields(logrus.Fields{
			"component": "quota_guard",
			"source":    q.desc.Name,
			"endpoint":  endpoint,
			"minute":    q.counter.Minute,
			"hour":      q.counter.Hour,
			"day":       q.counter.Day,
		}).Warn("Source quota exhausted")
		return false
	}
	return true
}

// RecordCall counts one call against every window
func (q *QuotaGuard) RecordCall(endpoint string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.rollover(q.now())
	q.counter.Minute++
	q.counter.Hour++
	q.counter.Day++

	q.logger.WithFields(logrus.Fields{
		"component": "quota_guard",
		"source":    q.desc.Name,
		"endpoint":  endpoint,
		"day":       q.counter.Day,
	}).Debug("Recorded source call")
}

// Wait blocks until the minimum interval since the last call to endpoint has elapsed
func (q *QuotaGuard) Wait(ctx context.Context, endpoint string) error {
	if q.desc.MinInterval <= 0 {
		return nil
	}
	return q.limiter(endpoint).Wait(ctx)
}

// Acquire admits one call to endpoint: quota check, throttle wait, then record.
// It returns ReasonQuotaExceeded when a ceiling is reached and
// ReasonNetworkError when the wait is abandoned.
func (q *QuotaGuard) Acquire(ctx context.Context, endpoint string) cricket.Reason {
	q.acquireMu.Lock()
	defer q.acquireMu.Unlock()

	if !q.Allow(endpoint) {
		return cricket.ReasonQuotaExceeded
	}
	if err := q.Wait(ctx, endpoint); err != nil {
		q.logger.WithFields(logrus.Fields{
			"component": "quota_guard",
			"source":    q.desc.Name,
			"endpoint":  endpoint,
			"error":     err.Error(),
		}).Warn("Throttle wait abandoned")
		return cricket.ReasonNetworkError
	}
	q.RecordCall(endpoint)
	return cricket.ReasonNone
}

// Usage returns a snapshot of the current counters
func (q *QuotaGuard) Usage() QuotaUsage {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.rollover(q.now())
	usage := QuotaUsage{
		UsageCounter: q.counter,
		PerMinute:    q.desc.PerMinute,
		PerHour:      q.desc.PerHour,
		PerDay:       q.desc.PerDay,
		MinInterval:  q.desc.MinInterval.String(),
	}
	if q.desc.PerDay > 0 {
		usage.DailyPct = float64(q.counter.Day) / float64(q.desc.PerDay) * 100
	}
	usage.Exhausted = exceeded(q.counter.Minute, q.desc.PerMinute) ||
		exceeded(q.counter.Hour, q.desc.PerHour) ||
		exceeded(q.counter.Day, q.desc.PerDay)
	return usage
}

func (q *QuotaGuard) limiter(endpoint string) *rate.Limiter {
	q.mu.Lock()
	defer q.mu.Unlock()

	l, ok := q.limiters[endpoint]
	if !ok {
		l = rate.NewLimiter(rate.Every(q.desc.MinInterval), 1)
		q.limiters[endpoint] = l
	}
	return l
}

// rollover zeroes any window whose boundary has passed. Caller holds q.mu.
func (q *QuotaGuard) rollover(now time.Time) {
	if m := minuteStart(now); m.After(q.counter.MinuteStart) {
		q.counter.Minute = 0
		q.counter.MinuteStart = m
	}
	if h := hourStart(now); h.After(q.counter.HourStart) {
		q.counter.Hour = 0
		q.counter.HourStart = h
	}
	if d := dayStart(now); d.After(q.counter.DayStart) {
		q.counter.Day = 0
		q.counter.DayStart = d
	}
}

func exceeded(count, ceiling int) bool {
	return ceiling > 0 && count >= ceiling
}

func minuteStart(t time.Time) time.Time {
	return t.UTC().Truncate(time.Minute)
}

func hourStart(t time.Time) time.Time {
	return t.UTC().Truncate(time.Hour)
}

func dayStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
