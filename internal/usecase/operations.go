package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"VideoScanner/internal/dispatch"
	"VideoScanner/internal/domain"
	"VideoScanner/internal/quota"
)

const (
	defaultListLimit  = 50
	maxListLimit      = 500
	defaultMaxAgeDays = 7
)

// ApproveAndPublish sends a held or pending item and marks it manually
// published. The state only changes when the send succeeds.
func (e *Engine) ApproveAndPublish(ctx context.Context, id string) domain.ActionResult {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Failed("item id is empty")
	}
	if e.repo == nil {
		return domain.Failed("storage is not configured")
	}

	item, err := e.publish(ctx, id, dispatch.Predecessors(domain.StateManuallyPublished), domain.StateManuallyPublished, "manual")
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound):
		return domain.Failed("item not found")
	case errors.Is(err, domain.ErrInvalidTransition):
		if item.IsSpam {
			return domain.Failed("item is marked as spam")
		}
		if dispatch.Terminal(item.DispatchState) {
			return domain.Failed(fmt.Sprintf("item is already %s", item.DispatchState))
		}
		return domain.Failed(fmt.Sprintf("item is %s", item.DispatchState))
	case errors.Is(err, domain.ErrDispatch):
		e.log.Warn("manual publish failed", "item", id, "error", err)
		return domain.Failed(err.Error())
	default:
		e.log.Error("manual publish failed", "item", id, "error", err)
		return domain.Failed("storage error")
	}

	e.addStats(ctx, domain.CycleStatistics{ManuallyPublished: 1})
	return domain.Succeeded()
}

// MarkSpam flags an item as spam. Pending and held items are also discarded;
// published items keep their state. Marking twice succeeds.
func (e *Engine) MarkSpam(ctx context.Context, id string) domain.ActionResult {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Failed("item id is empty")
	}
	if e.repo == nil {
		return domain.Failed("storage is not configured")
	}

	e.dispatchMu.Lock()
	defer e.dispatchMu.Unlock()

	store := storeContext(ctx)
	item, err := e.repo.GetItem(store, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Failed("item not found")
	}
	if err != nil {
		e.log.Error("mark spam: load item", "item", id, "error", err)
		return domain.Failed("storage error")
	}
	if item.IsSpam {
		return domain.Succeeded()
	}

	err = e.repo.MarkSpam(store, id, dispatch.Predecessors(domain.StateDiscarded), domain.StateDiscarded, e.now().UTC())
	if err != nil {
		e.log.Error("mark spam", "item", id, "error", err)
		return domain.Failed("storage error")
	}

	e.log.Info("item marked as spam", "item", id, "state", item.DispatchState)
	e.addStats(ctx, domain.CycleStatistics{SpamFiltered: 1})
	return domain.Succeeded()
}

// RegisterSource adds or updates a curated source. Curated sources are verified.
func (e *Engine) RegisterSource(ctx context.Context, id, displayName string, boost int) domain.ActionResult {
	return e.RegisterSourceEntry(ctx, domain.SourceEntry{
		ID:          id,
		DisplayName: displayName,
		Verified:    true,
		Boost:       boost,
	})
}

// RegisterSourceEntry is RegisterSource with full control over kind, trust and scanner.
func (e *Engine) RegisterSourceEntry(ctx context.Context, entry domain.SourceEntry) domain.ActionResult {
	if entry.Scanner != "" {
		if _, err := e.scanners.Resolve(entry.Scanner); err != nil {
			return domain.Failed(err.Error())
		}
	}

	saved, err := e.sources.Register(storeContext(ctx), entry)
	if err != nil {
		e.log.Warn("register source", "source", entry.ID, "error", err)
		return domain.Failed(err.Error())
	}
	e.log.Info("source registered", "source", saved.ID, "name", saved.DisplayName, "boost", saved.Boost, "scanner", saved.Scanner)
	return domain.Succeeded()
}

// Sources lists the registry ordered by id.
func (e *Engine) Sources() []domain.SourceEntry {
	return e.sources.Entries()
}

// GetPending lists items waiting for a decision or a retry, best first.
func (e *Engine) GetPending(ctx context.Context, limit int) ([]domain.ContentItem, error) {
	if e.repo == nil {
		return nil, fmt.Errorf("%w: repository is not configured", domain.ErrPersistence)
	}
	items, err := e.repo.ListByState(ctx, []domain.DispatchState{domain.StateHeld, domain.StatePending}, clampLimit(limit))
	if err != nil {
		return nil, persistenceError("list pending", err)
	}
	return items, nil
}

// GetRecent lists items published within maxAgeDays, newest first.
func (e *Engine) GetRecent(ctx context.Context, limit, maxAgeDays int) ([]domain.ContentItem, error) {
	if e.repo == nil {
		return nil, fmt.Errorf("%w: repository is not configured", domain.ErrPersistence)
	}
	if maxAgeDays <= 0 {
		maxAgeDays = defaultMaxAgeDays
	}
	since := e.now().UTC().Add(-time.Duration(maxAgeDays) * 24 * time.Hour)

	items, err := e.repo.ListRecent(ctx, since, clampLimit(limit))
	if err != nil {
		return nil, persistenceError("list recent", err)
	}
	return items, nil
}

// GetQuotaStatus reports today's API budget.
func (e *Engine) GetQuotaStatus(ctx context.Context) (domain.QuotaStatus, error) {
	return e.quota.Status(ctx)
}

// Dashboard aggregates today's counters, category split and quota.
func (e *Engine) Dashboard(ctx context.Context) (domain.Dashboard, error) {
	if e.repo == nil {
		return domain.Dashboard{}, fmt.Errorf("%w: repository is not configured", domain.ErrPersistence)
	}

	now := e.now()
	loc := e.opts.StatsLocation
	local := now.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	today, err := e.repo.DailyStats(ctx, quota.DayKey(now, loc))
	if err != nil {
		return domain.Dashboard{}, persistenceError("daily stats", err)
	}
	categories, err := e.repo.CategoryCounts(ctx, midnight.UTC())
	if err != nil {
		return domain.Dashboard{}, persistenceError("category counts", err)
	}
	status, err := e.quota.Status(ctx)
	if err != nil {
		return domain.Dashboard{}, fmt.Errorf("quota status: %w", err)
	}

	return domain.Dashboard{Today: today, Categories: categories, Quota: status}, nil
}

// addStats books counters from operator actions on today's row.
func (e *Engine) addStats(ctx context.Context, delta domain.CycleStatistics) {
	delta.Day = quota.DayKey(e.now(), e.opts.StatsLocation)
	if err := e.repo.AddDailyStats(storeContext(ctx), delta); err != nil {
		e.log.Error("update daily stats", "error", err)
	}
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	}
	return limit
}
