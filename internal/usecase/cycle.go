package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"VideoScanner/internal/dedup"
	"VideoScanner/internal/dispatch"
	"VideoScanner/internal/domain"
	"VideoScanner/internal/metrics"
	"VideoScanner/internal/quality"
	"VideoScanner/internal/quota"
	"VideoScanner/internal/scoring"
	"VideoScanner/internal/sources"
)

// cycle is the per-run working state. It is owned by a single goroutine.
type cycle struct {
	engine  *Engine
	log     *slog.Logger
	view    sources.View
	started time.Time

	summary        domain.CycleSummary
	stats          domain.CycleStatistics
	quotaExhausted bool
}

// evaluation carries one admitted item through spam check, enrichment and scoring.
type evaluation struct {
	candidate
	fingerprint string
	verdict     quality.Verdict
	item        domain.ContentItem
	outcome     dispatch.Outcome
}

// RunCycle executes one ingestion cycle. Cycles never overlap: a caller
// arriving while one runs waits for it, or gives up when ctx is done.
func (e *Engine) RunCycle(ctx context.Context) (domain.CycleSummary, error) {
	select {
	case e.cycleSem <- struct{}{}:
	case <-ctx.Done():
		return domain.CycleSummary{}, ctx.Err()
	}
	defer func() { <-e.cycleSem }()

	return e.runCycle(ctx)
}

// TryRunCycle runs a cycle only if none is in flight, otherwise it returns
// domain.ErrCycleInProgress immediately.
func (e *Engine) TryRunCycle(ctx context.Context) (domain.CycleSummary, error) {
	select {
	case e.cycleSem <- struct{}{}:
	default:
		return domain.CycleSummary{}, domain.ErrCycleInProgress
	}
	defer func() { <-e.cycleSem }()

	return e.runCycle(ctx)
}

func (e *Engine) runCycle(ctx context.Context) (domain.CycleSummary, error) {
	started := e.now().UTC()
	id := uuid.NewString()

	c := &cycle{
		engine:  e,
		log:     e.log.With("cycle_id", id),
		view:    e.sources.Snapshot(),
		started: started,
		summary: domain.CycleSummary{ID: id, StartedAt: started},
		stats:   domain.CycleStatistics{Day: quota.DayKey(started, e.opts.StatsLocation), Cycles: 1},
	}
	c.log.Info("cycle started", "sources", c.view.Len())

	return c.finish(ctx, c.run(ctx))
}

func (c *cycle) run(ctx context.Context) error {
	if c.engine.repo == nil {
		return fmt.Errorf("%w: repository is not configured", domain.ErrPersistence)
	}

	if err := c.retryPending(ctx); err != nil {
		return err
	}

	candidates := c.collect(ctx)
	if len(candidates) == 0 {
		return nil
	}

	evals, err := c.admit(ctx, candidates)
	if err != nil {
		return err
	}

	c.enrich(ctx, evals)
	c.evaluate(evals)

	return c.persist(ctx, evals)
}

// retryPending re-sends items a previous cycle failed to deliver.
func (c *cycle) retryPending(ctx context.Context) error {
	if c.engine.notifier == nil {
		return nil
	}

	pending, err := c.engine.repo.ListByState(storeContext(ctx), []domain.DispatchState{domain.StatePending}, c.engine.opts.RetryLimit)
	if err != nil {
		return persistenceError("list pending", err)
	}

	for _, item := range pending {
		if ctx.Err() != nil {
			c.summary.Interrupted = true
			return nil
		}

		_, err := c.engine.publish(ctx, item.ID, []domain.DispatchState{domain.StatePending}, domain.StateAutoPublished, "retry")
		switch {
		case err == nil:
			c.summary.AutoPublished++
			c.stats.AutoPublished++
		case errors.Is(err, domain.ErrPersistence):
			return err
		case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrNotFound):
			continue
		case errors.Is(err, domain.ErrMessageRejected):
			c.stats.DispatchFailures++
			c.log.Warn("pending item rejected by the channel; skipping it", "item", item.ID, "error", err)
			continue
		default:
			c.stats.DispatchFailures++
			c.log.Warn("pending retry failed; leaving the rest for the next cycle", "item", item.ID, "error", err)
			return nil
		}
	}
	return nil
}

// admit drops in-batch repeats (same id or fingerprint) and ids already
// stored, then runs the spam predicate on what remains.
func (c *cycle) admit(ctx context.Context, candidates []candidate) ([]*evaluation, error) {
	batch := dedup.NewBatch()
	admitted := make([]*evaluation, 0, len(candidates))
	ids := make([]string, 0, len(candidates))

	for _, cand := range candidates {
		fp := dedup.Fingerprint(cand.raw.Title, cand.raw.SourceID)
		if !batch.Admit(cand.raw.ID, fp) {
			c.summary.DuplicatesSkipped++
			continue
		}
		admitted = append(admitted, &evaluation{candidate: cand, fingerprint: fp})
		ids = append(ids, cand.raw.ID)
	}

	existing, err := c.engine.repo.ExistingIDs(storeContext(ctx), ids)
	if err != nil {
		return nil, persistenceError("load existing ids", err)
	}

	fresh := admitted[:0]
	for _, ev := range admitted {
		if existing[ev.raw.ID] {
			c.summary.DuplicatesSkipped++
			continue
		}
		ev.verdict = c.engine.filter.Check(ev.raw.Title, ev.raw.Description)
		if ev.verdict.Spam {
			c.debug("spam", "item", ev.raw.ID, "reason", ev.verdict.Reason)
		}
		fresh = append(fresh, ev)
	}
	return fresh, nil
}

// evaluate classifies, scores and decides every admitted item, then orders
// them so the most valuable are persisted and sent first.
func (c *cycle) evaluate(evals []*evaluation) {
	e := c.engine
	for _, ev := range evals {
		raw := ev.raw
		trust := c.view.Lookup(raw.SourceID, raw.SourceName)

		item := domain.ContentItem{
			ID:               raw.ID,
			Title:            raw.Title,
			Description:      raw.Description,
			SourceID:         raw.SourceID,
			SourceName:       raw.SourceName,
			Origin:           raw.Origin,
			PublishedAt:      raw.PublishedAt.UTC(),
			ThumbnailURL:     raw.ThumbnailURL,
			URL:              raw.URL,
			Metrics:          raw.Metrics,
			IsOfficialSource: trust.Verified,
			Fingerprint:      ev.fingerprint,
			CreatedAt:        c.started,
			UpdatedAt:        c.started,
		}

		if ev.verdict.Spam {
			item.IsSpam = true
			item.Category = domain.CategoryOther
			item.Priority = domain.MinPriority
			ev.outcome = dispatch.Decide(dispatch.Input{IsSpam: true})
		} else {
			assessment := e.filter.Score(quality.Input{
				Title:          raw.Title,
				Metrics:        raw.Metrics,
				PublishedAt:    raw.PublishedAt,
				Now:            c.started,
				OfficialSource: trust.Verified,
			})
			result := e.classifier.Classify(raw.Title, raw.Description, raw.SourceName)
			priority := scoring.Priority(scoring.Input{
				BasePriority:   result.BasePriority,
				SourceBoost:    trust.Boost,
				RecencyTier:    assessment.RecencyTier,
				EngagementTier: assessment.EngagementTier,
				ViewTier:       assessment.ViewTier,
			})

			item.Category = result.Category
			item.Priority = priority
			item.QualityScore = assessment.Score
			item.EngagementRate = assessment.EngagementRate
			ev.outcome = dispatch.Decide(dispatch.Input{
				AutoEligible: result.AutoEligible,
				Priority:     priority,
				Threshold:    e.opts.AutoPostThreshold,
			})
		}
		item.DispatchState = dispatch.InitialState(ev.outcome)
		ev.item = item
	}

	sort.SliceStable(evals, func(i, j int) bool {
		a, b := evals[i].item, evals[j].item
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.PublishedAt.After(b.PublishedAt)
	})
}

// persist writes items in order and sends the auto-publish ones. A storage
// failure aborts the rest of the cycle; cancellation stops between items.
func (c *cycle) persist(ctx context.Context, evals []*evaluation) error {
	for _, ev := range evals {
		if ctx.Err() != nil {
			c.summary.Interrupted = true
			return nil
		}

		inserted, err := c.engine.repo.InsertItem(storeContext(ctx), ev.item)
		if err != nil {
			return persistenceError("insert item "+ev.item.ID, err)
		}
		if !inserted {
			c.summary.DuplicatesSkipped++
			continue
		}
		c.summary.Found++
		c.stats.ItemsFound++

		switch ev.outcome {
		case dispatch.OutcomeDiscard:
			c.summary.Discarded++
			c.stats.SpamFiltered++
		case dispatch.OutcomeHold:
			c.summary.Held++
		case dispatch.OutcomeAutoPublish:
			_, err := c.engine.publish(ctx, ev.item.ID, []domain.DispatchState{domain.StatePending}, domain.StateAutoPublished, "auto")
			switch {
			case err == nil:
				c.summary.AutoPublished++
				c.stats.AutoPublished++
			case errors.Is(err, domain.ErrPersistence):
				return err
			default:
				c.summary.Pending++
				if ctx.Err() == nil {
					c.stats.DispatchFailures++
				}
				c.log.Warn("auto publish failed; item stays pending", "item", ev.item.ID, "error", err)
			}
		}
	}
	return nil
}

func (c *cycle) finish(ctx context.Context, err error) (domain.CycleSummary, error) {
	c.summary.FinishedAt = c.engine.now().UTC()
	c.stats.DuplicatesFiltered = c.summary.DuplicatesSkipped

	if err == nil {
		if statsErr := c.engine.repo.AddDailyStats(storeContext(ctx), c.stats); statsErr != nil {
			err = persistenceError("add daily stats", statsErr)
		}
	}

	result := "ok"
	switch {
	case err != nil:
		c.summary.Error = err.Error()
		result = "failed"
	case c.summary.Interrupted:
		result = "interrupted"
	case c.summary.Failed():
		result = "failed"
	}

	metrics.RecordCycle(result, c.summary.FinishedAt.Sub(c.summary.StartedAt).Seconds())
	metrics.RecordItems("auto_published", c.summary.AutoPublished)
	metrics.RecordItems("held", c.summary.Held)
	metrics.RecordItems("discarded", c.summary.Discarded)
	metrics.RecordItems("pending", c.summary.Pending)
	metrics.RecordItems("duplicate", c.summary.DuplicatesSkipped)

	attrs := []any{
		"result", result,
		"found", c.summary.Found,
		"auto_published", c.summary.AutoPublished,
		"held", c.summary.Held,
		"discarded", c.summary.Discarded,
		"pending", c.summary.Pending,
		"duplicates", c.summary.DuplicatesSkipped,
		"quota_spent", c.summary.QuotaSpent,
		"sources_failed", c.summary.SourcesFailed,
		"duration", c.summary.FinishedAt.Sub(c.summary.StartedAt).Round(time.Millisecond),
	}
	if err != nil {
		c.log.Error("cycle aborted", append(attrs, "error", err)...)
	} else {
		c.log.Info("cycle finished", attrs...)
	}

	return c.summary, err
}
