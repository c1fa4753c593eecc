package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"VideoScanner/internal/domain"
	"VideoScanner/internal/infrastructure/storage"
	"VideoScanner/internal/ports"
	"VideoScanner/internal/quota"
	"VideoScanner/internal/scanner"
	"VideoScanner/internal/sources"
)

var testNow = time.Date(2026, time.March, 3, 12, 0, 0, 0, time.UTC)

type fakeProvider struct {
	name       string
	searchCost int
	statsCost  int

	mu        sync.Mutex
	items     map[string][]domain.RawItem
	metrics   map[string]domain.Metrics
	searchErr map[string]error
	searched  []string
	statIDs   []string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		name:       "fake",
		searchCost: 100,
		statsCost:  1,
		items:      map[string][]domain.RawItem{},
		metrics:    map[string]domain.Metrics{},
		searchErr:  map[string]error{},
	}
}

func (p *fakeProvider) Name() string        { return p.name }
func (p *fakeProvider) SearchCost() int     { return p.searchCost }
func (p *fakeProvider) StatisticsCost() int { return p.statsCost }

func (p *fakeProvider) Search(_ context.Context, req domain.SearchRequest) ([]domain.RawItem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.searched = append(p.searched, req.Source.ID)
	if err := p.searchErr[req.Source.ID]; err != nil {
		return nil, err
	}
	return slices.Clone(p.items[req.Source.ID]), nil
}

func (p *fakeProvider) Statistics(_ context.Context, ids []string) (map[string]domain.Metrics, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statIDs = append(p.statIDs, ids...)
	out := make(map[string]domain.Metrics, len(ids))
	for _, id := range ids {
		if m, ok := p.metrics[id]; ok {
			out[id] = m
		}
	}
	return out, nil
}

func (p *fakeProvider) searches() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.searched)
}

type fakeNotifier struct {
	mu     sync.Mutex
	sent   []string
	err    error
	reject func(message string) error
}

func (n *fakeNotifier) Send(_ context.Context, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	if n.reject != nil {
		if err := n.reject(message); err != nil {
			return err
		}
	}
	n.sent = append(n.sent, message)
	return nil
}

func (n *fakeNotifier) setErr(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.err = err
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type harnessConfig struct {
	sources    []domain.SourceEntry
	opts       EngineOptions
	quotaLimit int
	repo       ports.Repository
}

type harness struct {
	engine   *Engine
	repo     ports.Repository
	provider *fakeProvider
	notifier *fakeNotifier
	tracker  *quota.Tracker
}

func newHarness(t *testing.T, cfg harnessConfig) *harness {
	t.Helper()

	if cfg.repo == nil {
		cfg.repo = storage.NewMemoryRepository()
	}
	if cfg.quotaLimit == 0 {
		cfg.quotaLimit = 10000
	}
	if cfg.sources == nil {
		cfg.sources = []domain.SourceEntry{{ID: "verified_house", DisplayName: "Verified House", Verified: true, Boost: 2, Scanner: "fake"}}
	}

	provider := newFakeProvider()
	scanners := scanner.NewRegistry()
	scanners.Register(provider)

	tracker := quota.NewTracker(cfg.quotaLimit, time.UTC).WithClock(func() time.Time { return testNow })
	notifier := &fakeNotifier{}

	engine := NewEngine(EngineDeps{
		Repository: cfg.repo,
		Quota:      tracker,
		Sources:    sources.NewRegistry(cfg.sources, cfg.repo),
		Scanners:   scanners,
		Notifier:   notifier,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:        func() time.Time { return testNow },
	}, cfg.opts)

	return &harness{engine: engine, repo: cfg.repo, provider: provider, notifier: notifier, tracker: tracker}
}

func video(id, title, sourceID string, age time.Duration) domain.RawItem {
	return domain.RawItem{
		ID:          id,
		Title:       title,
		SourceID:    sourceID,
		SourceName:  sourceID,
		PublishedAt: testNow.Add(-age),
		URL:         "https://www.youtube.com/watch?v=" + id,
	}
}

func mustItem(t *testing.T, repo ports.Repository, id string) domain.ContentItem {
	t.Helper()
	item, err := repo.GetItem(context.Background(), id)
	if err != nil {
		t.Fatalf("get %s: %v", id, err)
	}
	return item
}

func countItems(t *testing.T, repo ports.Repository) int {
	t.Helper()
	items, err := repo.ListRecent(context.Background(), time.Time{}, 1000)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	return len(items)
}

func TestOfficialTrailerIsAutoPublished(t *testing.T) {
	t.Parallel()

	h := newHarness(t, harnessConfig{})
	h.provider.items["verified_house"] = []domain.RawItem{video("trailer1", "Movie X Official Trailer", "verified_house", 30*time.Minute)}
	h.provider.metrics["trailer1"] = domain.Metrics{Views: 150000, Likes: 9000}

	summary, err := h.engine.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Found != 1 || summary.AutoPublished != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	item := mustItem(t, h.repo, "trailer1")
	if item.Category != domain.CategoryOfficialTrailer {
		t.Fatalf("expected official_trailer, got %s", item.Category)
	}
	if item.Priority != 5 {
		t.Fatalf("expected priority 5, got %d", item.Priority)
	}
	if item.QualityScore != 10 {
		t.Fatalf("expected capped score 10, got %v", item.QualityScore)
	}
	if item.DispatchState != domain.StateAutoPublished || item.DispatchedAt == nil {
		t.Fatalf("expected auto published with timestamp, got %s", item.DispatchState)
	}
	if item.Metrics.Views != 150000 || item.EngagementRate < 0.059 {
		t.Fatalf("metrics not enriched: %+v rate=%v", item.Metrics, item.EngagementRate)
	}
	if h.notifier.count() != 1 {
		t.Fatalf("expected one message, got %d", h.notifier.count())
	}
	if summary.QuotaSpent != 101 {
		t.Fatalf("expected search + statistics cost, got %d", summary.QuotaSpent)
	}
}

func TestSpamIsDiscardedAndNeverSent(t *testing.T) {
	t.Parallel()

	h := newHarness(t, harnessConfig{})
	h.provider.items["verified_house"] = []domain.RawItem{
		video("spam1", "MOVIE LEAKED FULL MOVIE DOWNLOAD!!!", "verified_house", time.Minute),
		video("spam2", "Movie X Official Trailer leaked", "verified_house", time.Minute),
	}

	summary, err := h.engine.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Discarded != 2 || summary.AutoPublished != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	for _, id := range []string{"spam1", "spam2"} {
		item := mustItem(t, h.repo, id)
		if !item.IsSpam || item.DispatchState != domain.StateDiscarded {
			t.Fatalf("%s: expected discarded spam, got %+v", id, item)
		}
		if item.Category != domain.CategoryOther || item.Priority != domain.MinPriority {
			t.Fatalf("%s: spam must not be scored, got %s/%d", id, item.Category, item.Priority)
		}
	}
	if h.notifier.count() != 0 {
		t.Fatalf("spam must never be sent")
	}
	if len(h.provider.statIDs) != 0 {
		t.Fatalf("spam must not be enriched, got %v", h.provider.statIDs)
	}

	stats, err := h.repo.DailyStats(context.Background(), "2026-03-03")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.SpamFiltered != 2 || stats.Cycles != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestDuplicateInBatchIsSkipped(t *testing.T) {
	t.Parallel()

	h := newHarness(t, harnessConfig{})
	item := video("dup1", "Movie Y lyrical song", "verified_house", 2*time.Hour)
	h.provider.items["verified_house"] = []domain.RawItem{item, item}

	summary, err := h.engine.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.DuplicatesSkipped != 1 {
		t.Fatalf("expected one duplicate, got %d", summary.DuplicatesSkipped)
	}
	if got := countItems(t, h.repo); got != 1 {
		t.Fatalf("expected exactly one stored item, got %d", got)
	}
}

func TestSameTitleFromSameChannelIsSkipped(t *testing.T) {
	t.Parallel()

	h := newHarness(t, harnessConfig{})
	h.provider.items["verified_house"] = []domain.RawItem{
		video("a1", "Movie Z - Teaser", "verified_house", time.Hour),
		video("a2", "movie z teaser", "verified_house", time.Hour),
	}

	summary, err := h.engine.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.DuplicatesSkipped != 1 || countItems(t, h.repo) != 1 {
		t.Fatalf("expected fingerprint duplicate to be dropped: %+v", summary)
	}
}

func TestRunCycleIsIdempotent(t *testing.T) {
	t.Parallel()

	h := newHarness(t, harnessConfig{})
	h.provider.items["verified_house"] = []domain.RawItem{
		video("v1", "Movie X Official Trailer", "verified_house", 10*time.Minute),
		video("v2", "Director interview", "verified_house", 3*time.Hour),
	}

	first, err := h.engine.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := h.engine.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if first.Found != 2 {
		t.Fatalf("first cycle should store both items: %+v", first)
	}
	if second.Found != 0 || second.DuplicatesSkipped != 2 {
		t.Fatalf("second cycle must only see duplicates: %+v", second)
	}
	if h.notifier.count() != 1 {
		t.Fatalf("expected a single send across cycles, got %d", h.notifier.count())
	}
	if got := countItems(t, h.repo); got != 2 {
		t.Fatalf("expected 2 stored items, got %d", got)
	}
}

func TestAutoPostGate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		threshold int
		title     string
		want      domain.DispatchState
	}{
		{"trailer at threshold", 4, "Movie X trailer", domain.StateAutoPublished},
		{"trailer below threshold", 5, "Movie X trailer", domain.StateHeld},
		{"interview never auto", 1, "Director interview", domain.StateHeld},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t, harnessConfig{
				sources: []domain.SourceEntry{{ID: "fan_page", Scanner: "fake"}},
				opts:    EngineOptions{AutoPostThreshold: tc.threshold},
			})
			h.provider.items["fan_page"] = []domain.RawItem{video("x1", tc.title, "fan_page", 12*time.Hour)}

			if _, err := h.engine.RunCycle(context.Background()); err != nil {
				t.Fatalf("run: %v", err)
			}
			item := mustItem(t, h.repo, "x1")
			if item.DispatchState != tc.want {
				t.Fatalf("expected %s, got %s (priority %d)", tc.want, item.DispatchState, item.Priority)
			}
		})
	}
}

func TestQuotaLimitsSearches(t *testing.T) {
	t.Parallel()

	h := newHarness(t, harnessConfig{
		quotaLimit: 150,
		sources: []domain.SourceEntry{
			{ID: "query_a", Scanner: "fake"},
			{ID: "query_b", Scanner: "fake"},
		},
	})
	h.provider.items["query_a"] = []domain.RawItem{video("q1", "Movie teaser", "chan_a", time.Hour)}
	h.provider.items["query_b"] = []domain.RawItem{video("q2", "Movie teaser two", "chan_b", time.Hour)}

	summary, err := h.engine.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if h.provider.searches() != 1 {
		t.Fatalf("expected one search within budget, got %d", h.provider.searches())
	}
	if summary.SourcesSkipped != 1 {
		t.Fatalf("expected one skipped source, got %+v", summary)
	}

	status, err := h.engine.GetQuotaStatus(context.Background())
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Used > status.Limit || status.Used != summary.QuotaSpent {
		t.Fatalf("quota overspent or misreported: %+v vs %d", status, summary.QuotaSpent)
	}
}

func TestProviderQuotaErrorStopsMeteredCalls(t *testing.T) {
	t.Parallel()

	h := newHarness(t, harnessConfig{
		sources: []domain.SourceEntry{
			{ID: "query_a", Scanner: "fake"},
			{ID: "query_b", Scanner: "fake"},
		},
	})
	h.provider.searchErr["query_a"] = errors.Join(domain.ErrQuotaExhausted, errors.New("403 quotaExceeded"))

	summary, err := h.engine.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if h.provider.searches() != 1 || summary.SourcesSkipped != 1 || summary.SourcesFailed != 1 {
		t.Fatalf("expected the second source to be skipped: %+v", summary)
	}
	status, _ := h.engine.GetQuotaStatus(context.Background())
	if status.Remaining != 0 {
		t.Fatalf("tracker should be exhausted, got %+v", status)
	}
}

func TestFailedSendStaysPendingAndIsRetried(t *testing.T) {
	t.Parallel()

	h := newHarness(t, harnessConfig{})
	h.provider.items["verified_house"] = []domain.RawItem{video("p1", "Movie X Official Trailer", "verified_house", time.Minute)}
	h.notifier.setErr(errors.New("telegram down"))

	first, err := h.engine.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.Pending != 1 || first.AutoPublished != 0 {
		t.Fatalf("expected pending item: %+v", first)
	}
	if state := mustItem(t, h.repo, "p1").DispatchState; state != domain.StatePending {
		t.Fatalf("expected pending, got %s", state)
	}

	pending, err := h.engine.GetPending(context.Background(), 10)
	if err != nil || len(pending) != 1 {
		t.Fatalf("pending list: %v %v", pending, err)
	}

	h.notifier.setErr(nil)
	second, err := h.engine.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.AutoPublished != 1 || second.DuplicatesSkipped != 1 {
		t.Fatalf("expected retry to publish once: %+v", second)
	}
	if state := mustItem(t, h.repo, "p1").DispatchState; state != domain.StateAutoPublished {
		t.Fatalf("expected auto_published after retry, got %s", state)
	}
	if h.notifier.count() != 1 {
		t.Fatalf("expected one delivered message, got %d", h.notifier.count())
	}
}

func TestRejectedMessageDoesNotBlockOtherRetries(t *testing.T) {
	t.Parallel()

	h := newHarness(t, harnessConfig{})
	for _, it := range []struct {
		id, title string
		priority  int
	}{
		{"bad1", "Broken Cut", 5},
		{"good1", "Movie X Official Trailer", 4},
	} {
		item := domain.ContentItem{
			ID:            it.id,
			Title:         it.title,
			SourceID:      "verified_house",
			SourceName:    "Verified House",
			PublishedAt:   testNow.Add(-time.Hour),
			URL:           "https://www.youtube.com/watch?v=" + it.id,
			Category:      domain.CategoryOfficialTrailer,
			Priority:      it.priority,
			DispatchState: domain.StatePending,
			CreatedAt:     testNow,
			UpdatedAt:     testNow,
		}
		if _, err := h.repo.InsertItem(context.Background(), item); err != nil {
			t.Fatalf("seed %s: %v", it.id, err)
		}
	}

	h.notifier.mu.Lock()
	h.notifier.reject = func(message string) error {
		if strings.Contains(message, "Broken Cut") {
			return fmt.Errorf("%w: can't parse entities", domain.ErrMessageRejected)
		}
		return nil
	}
	h.notifier.mu.Unlock()

	summary, err := h.engine.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.AutoPublished != 1 {
		t.Fatalf("expected the healthy item to publish: %+v", summary)
	}
	if state := mustItem(t, h.repo, "good1").DispatchState; state != domain.StateAutoPublished {
		t.Fatalf("expected good1 auto_published, got %s", state)
	}
	if state := mustItem(t, h.repo, "bad1").DispatchState; state != domain.StatePending {
		t.Fatalf("expected bad1 to stay pending, got %s", state)
	}
	if h.notifier.count() != 1 {
		t.Fatalf("expected one delivered message, got %d", h.notifier.count())
	}
}

func TestOutageStopsPendingRetries(t *testing.T) {
	t.Parallel()

	h := newHarness(t, harnessConfig{})
	for i, id := range []string{"r1", "r2"} {
		item := domain.ContentItem{
			ID:            id,
			Title:         "Trailer " + id,
			SourceID:      "verified_house",
			SourceName:    "Verified House",
			PublishedAt:   testNow.Add(-time.Hour),
			URL:           "https://www.youtube.com/watch?v=" + id,
			Category:      domain.CategoryTrailer,
			Priority:      5 - i,
			DispatchState: domain.StatePending,
			CreatedAt:     testNow,
			UpdatedAt:     testNow,
		}
		if _, err := h.repo.InsertItem(context.Background(), item); err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
	}

	var attempts int
	h.notifier.mu.Lock()
	h.notifier.reject = func(string) error {
		attempts++
		return errors.New("telegram error: 502 Bad Gateway")
	}
	h.notifier.mu.Unlock()

	if _, err := h.engine.RunCycle(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected retries to stop after the first outage error, got %d attempts", attempts)
	}
	for _, id := range []string{"r1", "r2"} {
		if state := mustItem(t, h.repo, id).DispatchState; state != domain.StatePending {
			t.Fatalf("expected %s pending, got %s", id, state)
		}
	}
}

type failingRepo struct {
	*storage.MemoryRepository
	insertErr error
}

func (r failingRepo) InsertItem(context.Context, domain.ContentItem) (bool, error) {
	return false, r.insertErr
}

func TestPersistenceFailureAbortsCycle(t *testing.T) {
	t.Parallel()

	repo := failingRepo{MemoryRepository: storage.NewMemoryRepository(), insertErr: errors.New("disk full")}
	h := newHarness(t, harnessConfig{repo: repo})
	h.provider.items["verified_house"] = []domain.RawItem{video("f1", "Movie X Official Trailer", "verified_house", time.Minute)}

	summary, err := h.engine.RunCycle(context.Background())
	if !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
	if summary.Error == "" || !summary.Failed() {
		t.Fatalf("summary should carry the error: %+v", summary)
	}
	if h.notifier.count() != 0 {
		t.Fatalf("nothing may be sent when the insert failed")
	}
	stats, _ := repo.DailyStats(context.Background(), "2026-03-03")
	if stats.Cycles != 0 {
		t.Fatalf("aborted cycle must not record stats: %+v", stats)
	}
}

func TestCyclesDoNotOverlap(t *testing.T) {
	t.Parallel()

	h := newHarness(t, harnessConfig{})
	h.engine.cycleSem <- struct{}{}

	if _, err := h.engine.TryRunCycle(context.Background()); !errors.Is(err, domain.ErrCycleInProgress) {
		t.Fatalf("expected ErrCycleInProgress, got %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := h.engine.RunCycle(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("waiting caller should honour ctx, got %v", err)
	}

	<-h.engine.cycleSem
	if _, err := h.engine.TryRunCycle(context.Background()); err != nil {
		t.Fatalf("free engine should run: %v", err)
	}
}

func TestCancelledCycleIsInterrupted(t *testing.T) {
	t.Parallel()

	h := newHarness(t, harnessConfig{})
	h.provider.items["verified_house"] = []domain.RawItem{video("c1", "Movie X Official Trailer", "verified_house", time.Minute)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	summary, err := h.engine.TryRunCycle(ctx)
	if err != nil {
		t.Fatalf("cancellation is not an error: %v", err)
	}
	if !summary.Interrupted || h.provider.searches() != 0 {
		t.Fatalf("expected an interrupted cycle without calls: %+v", summary)
	}
	stats, _ := h.repo.DailyStats(context.Background(), "2026-03-03")
	if stats.Cycles != 1 {
		t.Fatalf("interrupted cycle still records stats: %+v", stats)
	}
}
