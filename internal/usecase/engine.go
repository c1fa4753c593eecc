package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"VideoScanner/internal/classify"
	"VideoScanner/internal/dispatch"
	"VideoScanner/internal/ports"
	"VideoScanner/internal/quality"
	"VideoScanner/internal/quota"
	"VideoScanner/internal/scanner"
	"VideoScanner/internal/sources"
)

const (
	defaultThreshold   = 4
	defaultLookback    = 24 * time.Hour
	defaultMaxResults  = 10
	defaultRetryLimit  = 20
	defaultCallTimeout = 20 * time.Second
	defaultQuotaLimit  = 10000

	// statisticsBatchSize is the largest id list one statistics call accepts.
	statisticsBatchSize = 50
)

// EngineDeps wires all driven adapters into the cycle orchestrator.
type EngineDeps struct {
	Repository ports.Repository
	Quota      ports.QuotaTracker
	Sources    *sources.Registry
	Scanners   *scanner.Registry
	Classifier *classify.Classifier
	Filter     *quality.Filter
	Notifier   ports.Notifier
	Logger     *slog.Logger
	Now        func() time.Time
}

// EngineOptions are the tunables of a cycle.
type EngineOptions struct {
	AutoPostThreshold int
	SourceDelay       time.Duration
	SendDelay         time.Duration
	CallTimeout       time.Duration
	Lookback          time.Duration
	MaxResults        int
	RetryLimit        int
	// StatsLocation decides which calendar day a cycle's counters land on.
	StatsLocation *time.Location
	Message       dispatch.MessageOptions
}

// Engine owns the state shared between cycles and operator actions.
type Engine struct {
	repo       ports.Repository
	quota      ports.QuotaTracker
	sources    *sources.Registry
	scanners   *scanner.Registry
	classifier *classify.Classifier
	filter     *quality.Filter
	notifier   ports.Notifier
	log        *slog.Logger
	now        func() time.Time
	opts       EngineOptions

	// cycleSem admits one cycle at a time; a buffered channel lets waiters honour ctx.
	cycleSem chan struct{}
	// dispatchMu serialises every send together with its state transition.
	dispatchMu sync.Mutex

	sourceLimiter *rate.Limiter
	sendLimiter   *rate.Limiter
}

// NewEngine constructs the orchestration component.
func NewEngine(deps EngineDeps, opts EngineOptions) *Engine {
	if opts.AutoPostThreshold == 0 {
		opts.AutoPostThreshold = defaultThreshold
	}
	if opts.Lookback <= 0 {
		opts.Lookback = defaultLookback
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = defaultMaxResults
	}
	if opts.RetryLimit <= 0 {
		opts.RetryLimit = defaultRetryLimit
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	if opts.StatsLocation == nil {
		opts.StatsLocation = time.UTC
	}

	classifier := deps.Classifier
	if classifier == nil {
		classifier = classify.New(nil)
	}
	filter := deps.Filter
	if filter == nil {
		filter = quality.NewFilter(nil, nil)
	}
	scanners := deps.Scanners
	if scanners == nil {
		scanners = scanner.NewRegistry()
	}
	registry := deps.Sources
	if registry == nil {
		registry = sources.NewRegistry(nil, deps.Repository)
	}
	tracker := deps.Quota
	if tracker == nil {
		tracker = quota.NewTracker(defaultQuotaLimit, time.UTC)
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	return &Engine{
		repo:          deps.Repository,
		quota:         tracker,
		sources:       registry,
		scanners:      scanners,
		classifier:    classifier,
		filter:        filter,
		notifier:      deps.Notifier,
		log:           log.With("component", "engine"),
		now:           now,
		opts:          opts,
		cycleSem:      make(chan struct{}, 1),
		sourceLimiter: newLimiter(opts.SourceDelay),
		sendLimiter:   newLimiter(opts.SendDelay),
	}
}

// newLimiter spaces events by delay; zero disables pacing.
func newLimiter(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}

// Threshold is the configured auto-post priority threshold.
func (e *Engine) Threshold() int {
	return e.opts.AutoPostThreshold
}

// storeContext detaches persistence writes from caller cancellation so a
// shutdown never interrupts a write halfway.
func storeContext(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
