package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"VideoScanner/internal/config"
)

func TestNewCronSchedulerRejectsBadSpec(t *testing.T) {
	t.Parallel()

	if _, err := NewCronScheduler("not a schedule", Options{}); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestNextDelay(t *testing.T) {
	t.Parallel()

	s, err := NewCronScheduler("@every 30m", Options{ErrorBackoff: 45 * time.Minute})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	fixed := time.Date(2026, time.March, 3, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	if got := s.nextDelay(nil); got != 30*time.Minute {
		t.Fatalf("expected 30m after success, got %s", got)
	}
	if got := s.nextDelay(errors.New("boom")); got != 75*time.Minute {
		t.Fatalf("expected schedule plus backoff after failure, got %s", got)
	}

	short, _ := NewCronScheduler("@every 30m", Options{ErrorBackoff: time.Minute})
	short.now = s.now
	if got := short.nextDelay(errors.New("boom")); got != 31*time.Minute {
		t.Fatalf("expected 31m after failure, got %s", got)
	}

	none, _ := NewCronScheduler("@every 30m", Options{})
	none.now = s.now
	if got := none.nextDelay(errors.New("boom")); got != 30*time.Minute {
		t.Fatalf("expected plain schedule without backoff, got %s", got)
	}
}

func TestDefaultConfigBacksOffAfterFailure(t *testing.T) {
	t.Setenv("VIDEO_SCANNER_CONFIG", "")
	t.Setenv("MONITORING_INTERVAL", "")

	cfg := config.Load()
	s, err := NewCronScheduler(cfg.Scheduler.CronExpression, Options{ErrorBackoff: cfg.Scheduler.ErrorBackoff})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	s.now = func() time.Time { return time.Date(2026, time.March, 3, 12, 0, 0, 0, time.UTC) }

	success, failure := s.nextDelay(nil), s.nextDelay(errors.New("boom"))
	if failure <= success {
		t.Fatalf("expected a longer wait after failure: success=%s failure=%s", success, failure)
	}
	if failure-success != cfg.Scheduler.ErrorBackoff {
		t.Fatalf("expected failure to add %s, got success=%s failure=%s", cfg.Scheduler.ErrorBackoff, success, failure)
	}
}

func TestCronExpression(t *testing.T) {
	t.Parallel()

	s, err := NewCronScheduler("0 6 * * *", Options{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	s.now = func() time.Time { return time.Date(2026, time.March, 3, 5, 30, 0, 0, time.UTC) }
	if got := s.nextDelay(nil); got != 30*time.Minute {
		t.Fatalf("expected 30m until 06:00, got %s", got)
	}
}

func TestTriggerRunsJobAndStopWaits(t *testing.T) {
	t.Parallel()

	s, err := NewCronScheduler("@every 1h", Options{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	var runs atomic.Int32
	ran := make(chan struct{}, 4)
	job := func(ctx context.Context, _ time.Time) error {
		runs.Add(1)
		ran <- struct{}{}
		return nil
	}

	if err := s.Start(context.Background(), job); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !s.Trigger() {
		t.Fatalf("first trigger must be queued")
	}

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatalf("triggered job did not run")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("second stop: %v", err)
	}
	if runs.Load() != 1 {
		t.Fatalf("expected exactly one run, got %d", runs.Load())
	}
}

func TestRunOnStartAndPanicRecovery(t *testing.T) {
	t.Parallel()

	s, err := NewCronScheduler("@every 1h", Options{RunOnStart: true})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	ran := make(chan struct{}, 1)
	job := func(ctx context.Context, _ time.Time) error {
		ran <- struct{}{}
		panic("boom")
	}
	if err := s.Start(context.Background(), job); err != nil {
		t.Fatalf("start: %v", err)
	}

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatalf("run on start did not happen")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop after panic: %v", err)
	}
}
