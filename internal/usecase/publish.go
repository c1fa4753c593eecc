package usecase

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"VideoScanner/internal/dispatch"
	"VideoScanner/internal/domain"
	"VideoScanner/internal/metrics"
)

// publish sends item id and records the move from one of `from` to `to`.
// The state is re-read under dispatchMu so an item is never sent twice, and
// the transition is written only after the notifier accepted the message.
func (e *Engine) publish(ctx context.Context, id string, from []domain.DispatchState, to domain.DispatchState, mode string) (domain.ContentItem, error) {
	e.dispatchMu.Lock()
	defer e.dispatchMu.Unlock()

	store := storeContext(ctx)
	item, err := e.repo.GetItem(store, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ContentItem{}, err
		}
		return domain.ContentItem{}, persistenceError("load item "+id, err)
	}
	if item.IsSpam || !slices.Contains(from, item.DispatchState) {
		return item, fmt.Errorf("%w: item %s is %s", domain.ErrInvalidTransition, id, item.DispatchState)
	}
	if e.notifier == nil {
		return item, fmt.Errorf("%w: no notifier configured", domain.ErrDispatch)
	}

	if err := e.sendLimiter.Wait(ctx); err != nil {
		return item, fmt.Errorf("%w: %w", domain.ErrDispatch, err)
	}

	// Once started, a send finishes even if the caller is shutting down.
	sendCtx, cancel := context.WithTimeout(store, e.opts.CallTimeout)
	defer cancel()
	if err := e.notifier.Send(sendCtx, dispatch.FormatMessage(item, e.opts.Message)); err != nil {
		metrics.RecordDispatch(mode, false)
		return item, fmt.Errorf("%w: %w", domain.ErrDispatch, err)
	}
	metrics.RecordDispatch(mode, true)

	at := e.now().UTC()
	moved, err := e.repo.TransitionDispatch(store, id, from, to, at)
	if err != nil {
		return item, persistenceError("record dispatch of "+id, err)
	}
	if !moved {
		return item, fmt.Errorf("%w: item %s changed during dispatch", domain.ErrInvalidTransition, id)
	}

	item.DispatchState = to
	item.UpdatedAt = at
	item.DispatchedAt = &at
	e.log.Info("item published", "item", id, "mode", mode, "priority", item.Priority, "category", item.Category)
	return item, nil
}
