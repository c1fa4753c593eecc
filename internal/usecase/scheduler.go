package usecase

import (
	"context"
	"fmt"
	"time"

	"VideoScanner/internal/ports"
)

// Scheduler wires the periodic driver with the cycle engine.
type Scheduler struct {
	driver ports.Scheduler
	engine *Engine
}

// NewScheduler returns a helper to start/stop recurring cycles.
func NewScheduler(driver ports.Scheduler, engine *Engine) *Scheduler {
	return &Scheduler{driver: driver, engine: engine}
}

// Start registers the engine with the provided driver. A failed cycle is
// reported back so the driver can back off before the next one.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.engine == nil {
		return nil
	}

	job := func(ctx context.Context, _ time.Time) error {
		summary, err := s.engine.RunCycle(ctx)
		if err != nil {
			return err
		}
		if summary.Failed() {
			return fmt.Errorf("cycle %s: all %d sources failed", summary.ID, summary.SourcesFailed)
		}
		return nil
	}

	return s.driver.Start(ctx, job)
}

// Trigger asks the driver for an immediate cycle.
func (s *Scheduler) Trigger() bool {
	if s.driver == nil {
		return false
	}
	return s.driver.Trigger()
}

// Stop gracefully tears down the underlying driver.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
