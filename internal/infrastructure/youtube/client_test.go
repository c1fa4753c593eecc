package youtube

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"VideoScanner/internal/config"
	"VideoScanner/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(config.YouTubeConfig{APIKey: "k", BaseURL: server.URL, Timeout: 2 * time.Second})
}

func TestSearchChannel(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("channelId") != "UC_x5XG1OV2P6uZZ5FSM9Ttw" || q.Get("q") != "" {
			t.Errorf("expected channel search, got %s", r.URL.RawQuery)
		}
		if q.Get("publishedAfter") != "2026-03-02T12:00:00Z" || q.Get("order") != "date" || q.Get("maxResults") != "10" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"items":[
		  {"id":{"videoId":"vid1"},"snippet":{"publishedAt":"2026-03-03T11:30:00Z","channelId":"UC_x5XG1OV2P6uZZ5FSM9Ttw",
		   "title":"Hero&#39;s Official Trailer &amp; more","description":"desc","channelTitle":"Hombale Films",
		   "thumbnails":{"default":{"url":"d.jpg"},"medium":{"url":"m.jpg"}}}},
		  {"id":{"channelId":"UCother"},"snippet":{"title":"a channel result"}}
		]}`))
	})

	items, err := client.Search(context.Background(), domain.SearchRequest{
		Source:         domain.SourceEntry{ID: "UC_x5XG1OV2P6uZZ5FSM9Ttw", Kind: domain.SourceChannel},
		PublishedAfter: time.Date(2026, time.March, 2, 12, 0, 0, 0, time.UTC),
		MaxResults:     10,
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}

	got := items[0]
	if got.Title != "Hero's Official Trailer & more" {
		t.Fatalf("entities not decoded: %q", got.Title)
	}
	if got.SourceID != "UC_x5XG1OV2P6uZZ5FSM9Ttw" || got.SourceName != "Hombale Films" {
		t.Fatalf("unexpected source: %+v", got)
	}
	if got.ThumbnailURL != "m.jpg" || got.URL != WatchURL+"vid1" {
		t.Fatalf("unexpected refs: %+v", got)
	}
	if got.HasMetrics {
		t.Fatalf("search results carry no metrics")
	}
}

func TestSearchQueryUsesRegion(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("q") != "telugu trailer" || q.Get("regionCode") != "IN" || q.Get("relevanceLanguage") != "te" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))
	defer server.Close()

	client := NewClient(config.YouTubeConfig{APIKey: "k", BaseURL: server.URL, RegionCode: "IN", RelevanceLanguage: "te"})
	items, err := client.Search(context.Background(), domain.SearchRequest{
		Source: domain.SourceEntry{ID: "telugu trailer", Kind: domain.SourceQuery},
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected no results")
	}
}

func TestSearchErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"quota", http.StatusForbidden, `{"error":{"code":403,"message":"quota","errors":[{"reason":"quotaExceeded"}]}}`, domain.ErrQuotaExhausted},
		{"daily", http.StatusForbidden, `{"error":{"code":403,"errors":[{"reason":"dailyLimitExceeded"}]}}`, domain.ErrQuotaExhausted},
		{"forbidden", http.StatusForbidden, `{"error":{"code":403,"message":"nope","errors":[{"reason":"forbidden"}]}}`, domain.ErrExternalCall},
		{"server", http.StatusInternalServerError, `oops`, domain.ErrExternalCall},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})
			_, err := client.Search(context.Background(), domain.SearchRequest{Source: domain.SourceEntry{ID: "x"}})
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestSearchWithoutKey(t *testing.T) {
	t.Parallel()

	client := NewClient(config.YouTubeConfig{})
	if _, err := client.Search(context.Background(), domain.SearchRequest{}); !errors.Is(err, domain.ErrExternalCall) {
		t.Fatalf("expected external call error, got %v", err)
	}
}

func TestStatistics(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/videos" || r.URL.Query().Get("id") != "a,b" {
			t.Errorf("unexpected request %s", r.URL.String())
		}
		_, _ = w.Write([]byte(`{"items":[
		  {"id":"a","statistics":{"viewCount":"150000","likeCount":"9000","commentCount":"12"}},
		  {"id":"b","statistics":{"viewCount":"7"}}
		]}`))
	})

	stats, err := client.Statistics(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats["a"] != (domain.Metrics{Views: 150000, Likes: 9000, Comments: 12}) {
		t.Fatalf("unexpected metrics for a: %+v", stats["a"])
	}
	if stats["b"] != (domain.Metrics{Views: 7}) {
		t.Fatalf("unexpected metrics for b: %+v", stats["b"])
	}

	ids := make([]string, MaxIDsPerCall+1)
	if _, err := client.Statistics(context.Background(), ids); err == nil {
		t.Fatalf("expected error above id limit")
	}
}

func TestPlainText(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"plain":              "plain",
		"Tom &amp; Jerry":    "Tom & Jerry",
		"<b>bold</b> text":   "bold text",
		" a &lt; b ":         "a < b",
		"Hero&#39;s Trailer": "Hero's Trailer",
	}
	for in, want := range cases {
		if got := plainText(in); got != want {
			t.Fatalf("%q: expected %q, got %q", in, want, got)
		}
	}
}
