package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"VideoScanner/internal/classify"
	"VideoScanner/internal/config"
	"VideoScanner/internal/dispatch"
	"VideoScanner/internal/domain"
	"VideoScanner/internal/httpapi"
	"VideoScanner/internal/infrastructure/feed"
	"VideoScanner/internal/infrastructure/redisquota"
	"VideoScanner/internal/infrastructure/scheduler"
	"VideoScanner/internal/infrastructure/storage"
	"VideoScanner/internal/infrastructure/telegram"
	"VideoScanner/internal/infrastructure/youtube"
	"VideoScanner/internal/logging"
	"VideoScanner/internal/ports"
	"VideoScanner/internal/quality"
	"VideoScanner/internal/quota"
	"VideoScanner/internal/scanner"
	"VideoScanner/internal/sources"
	"VideoScanner/internal/usecase"
)

const shutdownTimeout = 30 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	log       *slog.Logger
	engine    *usecase.Engine
	scheduler *usecase.Scheduler
	server    *httpapi.Server
	closers   []func() error
}

// New builds the application: storage, quota, providers, engine, driver and API.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	a := &Application{cfg: cfg, log: baseLogger}

	repo, err := a.openRepository(ctx)
	if err != nil {
		return nil, err
	}
	tracker, err := a.newQuotaTracker(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	registry := sources.NewRegistry(seedSources(cfg.Sources), repo)
	if err := registry.Load(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}

	scanners := scanner.NewRegistry()
	if cfg.Providers.YouTube.APIKey == "" {
		baseLogger.Warn("youtube api key is empty; query sources will fail until it is set")
	}
	scanners.Register(youtube.NewClient(cfg.Providers.YouTube))
	scanners.Register(feed.NewScanner(cfg.Providers.Feed))
	if cfg.Providers.DefaultScanner != "" {
		scanners.SetFallback(cfg.Providers.DefaultScanner)
	}

	var notifier ports.Notifier
	if tg := telegram.NewNotifier(cfg.Notifications.Telegram); tg.Configured() {
		notifier = tg
	} else {
		baseLogger.Warn("telegram is not configured; auto-publish items stay pending")
	}

	a.engine = usecase.NewEngine(usecase.EngineDeps{
		Repository: repo,
		Quota:      tracker,
		Sources:    registry,
		Scanners:   scanners,
		Classifier: classify.New(classifierRules(cfg.Classifier.Rules)),
		Filter:     quality.NewFilter(cfg.Filter.Denylist, cfg.Filter.QualityKeywords),
		Notifier:   notifier,
		Logger:     baseLogger,
	}, usecase.EngineOptions{
		AutoPostThreshold: cfg.Dispatch.AutoPostThreshold,
		SourceDelay:       cfg.Providers.SourceDelay,
		SendDelay:         cfg.Dispatch.SendDelay,
		CallTimeout:       cfg.Providers.CallTimeout,
		Lookback:          cfg.Providers.Lookback,
		MaxResults:        cfg.Providers.MaxResults,
		RetryLimit:        cfg.Dispatch.RetryLimit,
		StatsLocation:     cfg.Scheduler.Location(),
		Message: dispatch.MessageOptions{
			Label:    cfg.Dispatch.Label,
			Hashtags: cfg.Dispatch.Hashtags,
		},
	})

	driver, err := scheduler.NewCronScheduler(cfg.Scheduler.CronExpression, scheduler.Options{
		ErrorBackoff: cfg.Scheduler.ErrorBackoff,
		RunOnStart:   cfg.Scheduler.RunOnStart,
		Logger:       baseLogger,
	})
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.scheduler = usecase.NewScheduler(driver, a.engine)

	if cfg.HTTP.Addr != "" {
		a.server = httpapi.New(cfg.HTTP, a.engine, a.scheduler, baseLogger)
	}

	baseLogger.Info("application ready",
		"sources", len(registry.Entries()),
		"scanners", scanners.Names(),
		"schedule", cfg.Scheduler.CronExpression,
		"threshold", a.engine.Threshold(),
	)
	return a, nil
}

// Engine exposes the orchestrator for one-shot runs.
func (a *Application) Engine() *usecase.Engine {
	return a.engine
}

// Run starts the periodic driver and the API, and blocks until ctx is done
// or one of them fails. Shutdown waits for the in-flight cycle.
func (a *Application) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if err := a.scheduler.Start(gctx); err != nil {
		return errors.Join(err, a.Close())
	}
	if a.server != nil {
		g.Go(a.server.Start)
	}

	g.Go(func() error {
		<-gctx.Done()
		a.log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		var errs []error
		if a.server != nil {
			errs = append(errs, a.server.Stop(shutdownCtx))
		}
		errs = append(errs, a.scheduler.Stop(shutdownCtx))
		return errors.Join(errs...)
	})

	err := g.Wait()
	return errors.Join(err, a.Close())
}

// Close releases storage and redis connections.
func (a *Application) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *Application) openRepository(ctx context.Context) (ports.Repository, error) {
	if strings.TrimSpace(a.cfg.Database.DSN) == "" {
		a.log.Warn("database dsn is empty; using in-memory storage")
		return storage.NewMemoryRepository(), nil
	}

	db, dialect, err := storage.Open(ctx, a.cfg.Database)
	if err != nil {
		return nil, err
	}
	repo := storage.NewSQLRepository(db, dialect)
	if err := repo.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	a.closers = append(a.closers, db.Close)
	a.log.Info("storage ready", "driver", dialect)
	return repo, nil
}

func (a *Application) newQuotaTracker(ctx context.Context) (ports.QuotaTracker, error) {
	limit, loc := a.cfg.Quota.DailyLimit, a.cfg.Quota.Location()
	if a.cfg.Redis.Addr == "" {
		return quota.NewTracker(limit, loc), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", a.cfg.Redis.Addr, err)
	}
	a.closers = append(a.closers, client.Close)
	a.log.Info("connected to redis", "addr", a.cfg.Redis.Addr)
	return redisquota.NewTracker(client, a.cfg.Redis.Prefix, limit, loc), nil
}

func seedSources(list []config.SourceConfig) []domain.SourceEntry {
	out := make([]domain.SourceEntry, 0, len(list))
	for _, s := range list {
		out = append(out, domain.SourceEntry{
			ID:          s.ID,
			DisplayName: s.Name,
			Kind:        domain.SourceKind(s.Kind),
			Verified:    s.Verified,
			Boost:       s.Boost,
			Scanner:     s.Scanner,
		})
	}
	return out
}

func classifierRules(list []config.RuleConfig) []classify.Rule {
	out := make([]classify.Rule, 0, len(list))
	for _, r := range list {
		out = append(out, classify.Rule{
			Category:     domain.Category(r.Category),
			Keywords:     r.Keywords,
			BasePriority: r.BasePriority,
			AutoEligible: r.AutoEligible,
		})
	}
	return out
}
