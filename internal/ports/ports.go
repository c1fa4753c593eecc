package ports

import (
	"context"
	"time"

	"VideoScanner/internal/domain"
)

// SearchProvider pulls fresh items from the video platform. Implementations
// return domain.ErrQuotaExhausted or domain.ErrExternalCall (wrapped) so callers
// can tell the outcomes apart; an empty slice with a nil error means no results.
type SearchProvider interface {
	Name() string
	SearchCost() int
	StatisticsCost() int
	Search(ctx context.Context, req domain.SearchRequest) ([]domain.RawItem, error)
	Statistics(ctx context.Context, ids []string) (map[string]domain.Metrics, error)
}

// ContentRepository persists discovered items.
type ContentRepository interface {
	ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error)
	// InsertItem stores the item unless the id exists; it reports whether a row was written.
	InsertItem(ctx context.Context, item domain.ContentItem) (bool, error)
	GetItem(ctx context.Context, id string) (domain.ContentItem, error)
	// TransitionDispatch moves id to state `to` only if it is currently in one of `from`.
	TransitionDispatch(ctx context.Context, id string, from []domain.DispatchState, to domain.DispatchState, at time.Time) (bool, error)
	// MarkSpam flags the item and moves it to `to` when it is in one of `from`.
	MarkSpam(ctx context.Context, id string, from []domain.DispatchState, to domain.DispatchState, at time.Time) error
	ListByState(ctx context.Context, states []domain.DispatchState, limit int) ([]domain.ContentItem, error)
	ListRecent(ctx context.Context, since time.Time, limit int) ([]domain.ContentItem, error)
	CategoryCounts(ctx context.Context, since time.Time) (map[domain.Category]int, error)
}

// StatsRepository keeps the additive per-day counters.
type StatsRepository interface {
	AddDailyStats(ctx context.Context, delta domain.CycleStatistics) error
	DailyStats(ctx context.Context, day string) (domain.CycleStatistics, error)
}

// SourceRepository persists registry entries.
type SourceRepository interface {
	UpsertSource(ctx context.Context, entry domain.SourceEntry) error
	ListSources(ctx context.Context) ([]domain.SourceEntry, error)
}

// Repository is the full persistence collaborator.
type Repository interface {
	ContentRepository
	StatsRepository
	SourceRepository
}

// QuotaTracker guards the daily external API budget.
type QuotaTracker interface {
	TryReserve(ctx context.Context, cost int) (bool, error)
	Exhaust(ctx context.Context) error
	Reset(ctx context.Context) error
	Status(ctx context.Context) (domain.QuotaStatus, error)
}

// Notifier streams formatted messages to Telegram or other channels.
type Notifier interface {
	Send(ctx context.Context, message string) error
}

// Job is a unit of periodic work; a non-nil error selects the backoff delay.
type Job func(ctx context.Context, trigger time.Time) error

// Scheduler controls when cycles execute.
type Scheduler interface {
	Start(ctx context.Context, job Job) error
	Trigger() bool
	Stop(ctx context.Context) error
}
