package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"VideoScanner/internal/ports"
)

// CronScheduler runs a job on a cron schedule, waits longer after a failed
// run and accepts out-of-band "run now" triggers. Runs never overlap.
type CronScheduler struct {
	schedule   cron.Schedule
	backoff    time.Duration
	runOnStart bool
	log        *slog.Logger
	now        func() time.Time

	trigger chan struct{}

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// Options tune a CronScheduler.
type Options struct {
	ErrorBackoff time.Duration
	RunOnStart   bool
	Logger       *slog.Logger
}

// NewCronScheduler builds a scheduler configured via cron expression string
// (standard five fields or descriptors such as "@every 30m").
func NewCronScheduler(spec string, opts Options) (*CronScheduler, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &CronScheduler{
		schedule:   schedule,
		backoff:    opts.ErrorBackoff,
		runOnStart: opts.RunOnStart,
		log:        log.With("component", "scheduler"),
		now:        time.Now,
		trigger:    make(chan struct{}, 1),
	}, nil
}

// Start launches the loop. Calling Start twice is a no-op.
func (c *CronScheduler) Start(ctx context.Context, job ports.Job) error {
	if job == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})

	go c.loop(loopCtx, job, c.done)
	return nil
}

// Trigger requests an immediate run. Requests made while one is already
// queued are coalesced; the return value reports whether it was queued.
func (c *CronScheduler) Trigger() bool {
	select {
	case c.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Stop halts the loop and waits for a running job to return.
func (c *CronScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *CronScheduler) loop(ctx context.Context, job ports.Job, done chan struct{}) {
	defer close(done)

	var lastErr error
	if c.runOnStart {
		lastErr = c.run(ctx, job, c.now())
	}

	for {
		delay := c.nextDelay(lastErr)
		c.log.Debug("next run scheduled", "in", delay.Round(time.Second))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case t := <-timer.C:
			lastErr = c.run(ctx, job, t)
		case <-c.trigger:
			timer.Stop()
			lastErr = c.run(ctx, job, c.now())
		}
	}
}

func (c *CronScheduler) run(ctx context.Context, job ports.Job, at time.Time) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
		if err != nil && ctx.Err() == nil {
			c.log.Error("scheduled run failed", "error", err, "backoff", c.backoff)
		}
	}()
	return job(ctx, at)
}

// nextDelay picks the wait before the next run: the regular schedule after
// success, the schedule plus backoff after a failure.
func (c *CronScheduler) nextDelay(lastErr error) time.Duration {
	now := c.now()
	delay := c.schedule.Next(now).Sub(now)
	if delay < 0 {
		delay = 0
	}
	if lastErr != nil && c.backoff > 0 {
		delay += c.backoff
	}
	return delay
}
