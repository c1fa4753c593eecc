// Package quota keeps the daily budget of external API cost units.
package quota

import (
	"context"
	"sync"
	"time"

	"VideoScanner/internal/domain"
	"VideoScanner/internal/ports"
)

// Tracker is an in-process budget. Reservations are compare-and-reserve under a
// mutex, so concurrent callers never overspend.
type Tracker struct {
	mu    sync.Mutex
	limit int
	used  int
	day   string
	loc   *time.Location
	now   func() time.Time
}

var _ ports.QuotaTracker = (*Tracker)(nil)

// NewTracker builds a tracker with the given daily limit. Days roll over at
// midnight in loc (UTC when nil).
func NewTracker(limit int, loc *time.Location) *Tracker {
	if loc == nil {
		loc = time.UTC
	}
	if limit < 0 {
		limit = 0
	}
	return &Tracker{limit: limit, loc: loc, now: time.Now}
}

// WithClock swaps the time source; used by tests.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
	return t
}

// TryReserve spends cost units if the remaining budget covers all of them.
func (t *Tracker) TryReserve(_ context.Context, cost int) (bool, error) {
	if cost < 0 {
		return false, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.rollover()
	if t.limit-t.used < cost {
		return false, nil
	}
	t.used += cost
	return true, nil
}

// Exhaust marks the whole day as spent, e.g. after the provider refused a call.
func (t *Tracker) Exhaust(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rollover()
	t.used = t.limit
	return nil
}

// Reset clears today's usage. Calling it repeatedly yields the same state.
func (t *Tracker) Reset(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.day = DayKey(t.now(), t.loc)
	t.used = 0
	return nil
}

// Status reports usage for the current day.
func (t *Tracker) Status(_ context.Context) (domain.QuotaStatus, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rollover()
	return domain.QuotaStatus{
		Used:      t.used,
		Remaining: t.limit - t.used,
		Limit:     t.limit,
		ResetAt:   NextReset(t.now(), t.loc),
	}, nil
}

// rollover resets usage when the wall-clock date moved since the last call.
func (t *Tracker) rollover() {
	today := DayKey(t.now(), t.loc)
	if today != t.day {
		t.day = today
		t.used = 0
	}
}

// DayKey formats the calendar day of ts in loc.
func DayKey(ts time.Time, loc *time.Location) string {
	return ts.In(loc).Format(domain.DayLayout)
}

// NextReset returns the next midnight after ts in loc.
func NextReset(ts time.Time, loc *time.Location) time.Time {
	local := ts.In(loc)
	y, m, d := local.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, loc)
}
