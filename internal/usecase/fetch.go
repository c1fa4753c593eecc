package usecase

import (
	"context"
	"errors"
	"fmt"

	"VideoScanner/internal/domain"
	"VideoScanner/internal/metrics"
	"VideoScanner/internal/ports"
)

// candidate is a raw item together with the source and provider that surfaced it.
type candidate struct {
	raw      domain.RawItem
	origin   domain.SourceEntry
	provider ports.SearchProvider
}

// collect polls every registered source in registry order. Failures stay
// scoped to their source; only cancellation stops the loop early.
func (c *cycle) collect(ctx context.Context) []candidate {
	entries := c.view.Entries()
	c.debug("collect", "sources", len(entries))

	var out []candidate
	for _, entry := range entries {
		if ctx.Err() != nil {
			c.summary.Interrupted = true
			break
		}

		provider, err := c.engine.scanners.Resolve(entry.Scanner)
		if err != nil {
			c.summary.SourcesFailed++
			c.stats.SourceFailures++
			c.log.Warn("source has no scanner", "source", entry.ID, "scanner", entry.Scanner, "error", err)
			continue
		}

		cost := provider.SearchCost()
		if cost > 0 && c.quotaExhausted {
			c.summary.SourcesSkipped++
			continue
		}
		if err := c.engine.sourceLimiter.Wait(ctx); err != nil {
			c.summary.Interrupted = true
			break
		}
		if !c.reserve(ctx, provider, cost) {
			c.summary.SourcesSkipped++
			c.debug("quota denied search", "source", entry.ID, "cost", cost)
			continue
		}

		items, err := c.search(ctx, provider, entry)
		c.summary.SourcesAttempted++
		if err != nil {
			c.summary.SourcesFailed++
			c.stats.SourceFailures++
			c.handleProviderError(ctx, provider, err)
			c.log.Warn("source search failed", "source", entry.ID, "scanner", provider.Name(), "error", err)
			continue
		}

		for _, raw := range items {
			if raw.ID == "" {
				continue
			}
			if raw.SourceName == "" {
				raw.SourceName = entry.DisplayName
			}
			if raw.SourceID == "" {
				raw.SourceID = entry.ID
			}
			raw.Origin = entry.ID
			out = append(out, candidate{raw: raw, origin: entry, provider: provider})
		}
		c.debug("source produced items", "source", entry.ID, "count", len(items))
	}
	return out
}

func (c *cycle) search(ctx context.Context, provider ports.SearchProvider, entry domain.SourceEntry) ([]domain.RawItem, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.engine.opts.CallTimeout)
	defer cancel()

	return provider.Search(callCtx, domain.SearchRequest{
		Source:         entry,
		PublishedAfter: c.started.Add(-c.engine.opts.Lookback),
		MaxResults:     c.engine.opts.MaxResults,
	})
}

// enrich fills metrics for non-spam items whose provider returned none.
// Calls are batched per provider; a denied reservation leaves zero metrics.
func (c *cycle) enrich(ctx context.Context, list []*evaluation) {
	type group struct {
		provider ports.SearchProvider
		items    []*evaluation
	}
	var (
		order  []string
		groups = map[string]*group{}
	)
	for _, ev := range list {
		if ev.verdict.Spam || ev.raw.HasMetrics {
			continue
		}
		name := ev.provider.Name()
		g, ok := groups[name]
		if !ok {
			g = &group{provider: ev.provider}
			groups[name] = g
			order = append(order, name)
		}
		g.items = append(g.items, ev)
	}

	for _, name := range order {
		g := groups[name]
		for start := 0; start < len(g.items); start += statisticsBatchSize {
			if ctx.Err() != nil {
				return
			}
			end := min(start+statisticsBatchSize, len(g.items))
			chunk := g.items[start:end]

			cost := g.provider.StatisticsCost()
			if cost > 0 && c.quotaExhausted {
				return
			}
			if !c.reserve(ctx, g.provider, cost) {
				c.debug("quota denied statistics", "scanner", name, "items", len(chunk))
				continue
			}

			ids := make([]string, len(chunk))
			for i, ev := range chunk {
				ids[i] = ev.raw.ID
			}

			stats, err := c.statistics(ctx, g.provider, ids)
			if err != nil {
				c.handleProviderError(ctx, g.provider, err)
				c.log.Warn("statistics failed", "scanner", name, "items", len(ids), "error", err)
				continue
			}
			for _, ev := range chunk {
				if m, ok := stats[ev.raw.ID]; ok {
					ev.raw.Metrics = m
					ev.raw.HasMetrics = true
				}
			}
		}
	}
}

func (c *cycle) statistics(ctx context.Context, provider ports.SearchProvider, ids []string) (map[string]domain.Metrics, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.engine.opts.CallTimeout)
	defer cancel()
	return provider.Statistics(callCtx, ids)
}

// reserve books quota for one call. Tracker errors fail closed.
func (c *cycle) reserve(ctx context.Context, provider ports.SearchProvider, cost int) bool {
	if cost <= 0 {
		return true
	}
	ok, err := c.engine.quota.TryReserve(ctx, cost)
	if err != nil {
		c.log.Error("quota reservation failed", "error", err)
		return false
	}
	if !ok {
		return false
	}
	c.summary.QuotaSpent += cost
	c.stats.APICost += cost
	metrics.RecordQuota(provider.Name(), cost)
	return true
}

func (c *cycle) handleProviderError(ctx context.Context, provider ports.SearchProvider, err error) {
	switch {
	case errors.Is(err, domain.ErrQuotaExhausted):
		metrics.RecordExternalError(provider.Name(), "quota")
		if !c.quotaExhausted {
			c.quotaExhausted = true
			if exErr := c.engine.quota.Exhaust(storeContext(ctx)); exErr != nil {
				c.log.Error("mark quota exhausted", "error", exErr)
			}
			c.log.Warn("provider reports quota exhausted; skipping metered calls for this cycle", "scanner", provider.Name())
		}
	case errors.Is(err, context.DeadlineExceeded):
		metrics.RecordExternalError(provider.Name(), "timeout")
	default:
		metrics.RecordExternalError(provider.Name(), "transient")
	}
}

func (c *cycle) debug(msg string, args ...any) {
	c.log.Debug(msg, args...)
}

func persistenceError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrPersistence, op, err)
}
