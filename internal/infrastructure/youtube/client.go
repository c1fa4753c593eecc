package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"VideoScanner/internal/config"
	"VideoScanner/internal/domain"
	"VideoScanner/internal/ports"
)

const (
	// Name identifies the strategy inside the scanner registry.
	Name = "youtube"

	DefaultBaseURL = "https://www.googleapis.com/youtube/v3"
	WatchURL       = "https://www.youtube.com/watch?v="

	searchCost = 100
	videosCost = 1

	// MaxIDsPerCall is the videos.list id limit.
	MaxIDsPerCall = 50
	maxResults    = 50
)

// Client talks to the YouTube Data API v3.
type Client struct {
	apiKey     string
	baseURL    string
	regionCode string
	language   string
	http       *http.Client
}

var _ ports.SearchProvider = (*Client)(nil)

// NewClient creates a reusable API client.
func NewClient(cfg config.YouTubeConfig) *Client {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		regionCode: cfg.RegionCode,
		language:   cfg.RelevanceLanguage,
		http:       &http.Client{Timeout: timeout},
	}
}

// Name identifies the strategy.
func (c *Client) Name() string { return Name }

// SearchCost is the quota price of one search.list call.
func (c *Client) SearchCost() int { return searchCost }

// StatisticsCost is the quota price of one videos.list call.
func (c *Client) StatisticsCost() int { return videosCost }

type snippet struct {
	PublishedAt  time.Time `json:"publishedAt"`
	ChannelID    string    `json:"channelId"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	ChannelTitle string    `json:"channelTitle"`
	Thumbnails   map[string]struct {
		URL string `json:"url"`
	} `json:"thumbnails"`
}

type searchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet snippet `json:"snippet"`
	} `json:"items"`
}

type videosResponse struct {
	Items []struct {
		ID         string `json:"id"`
		Statistics struct {
			ViewCount    int64 `json:"viewCount,string"`
			LikeCount    int64 `json:"likeCount,string"`
			CommentCount int64 `json:"commentCount,string"`
		} `json:"statistics"`
	} `json:"items"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"error"`
}

// Search lists the newest videos of a channel or matching a query.
func (c *Client) Search(ctx context.Context, req domain.SearchRequest) ([]domain.RawItem, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("%w: youtube api key is not configured", domain.ErrExternalCall)
	}

	limit := req.MaxResults
	if limit <= 0 || limit > maxResults {
		limit = maxResults
	}

	query := url.Values{}
	query.Set("part", "snippet")
	query.Set("type", "video")
	query.Set("order", "date")
	query.Set("maxResults", strconv.Itoa(limit))
	query.Set("key", c.apiKey)
	if !req.PublishedAfter.IsZero() {
		query.Set("publishedAfter", req.PublishedAfter.UTC().Format(time.RFC3339))
	}
	switch req.Source.Kind {
	case domain.SourceChannel:
		query.Set("channelId", req.Source.ID)
	default:
		query.Set("q", req.Source.ID)
		if c.regionCode != "" {
			query.Set("regionCode", c.regionCode)
		}
		if c.language != "" {
			query.Set("relevanceLanguage", c.language)
		}
	}

	var resp searchResponse
	if err := c.get(ctx, "/search", query, &resp); err != nil {
		return nil, err
	}

	items := make([]domain.RawItem, 0, len(resp.Items))
	for _, it := range resp.Items {
		if it.ID.VideoID == "" {
			continue
		}
		items = append(items, domain.RawItem{
			ID:           it.ID.VideoID,
			Title:        plainText(it.Snippet.Title),
			Description:  plainText(it.Snippet.Description),
			SourceID:     it.Snippet.ChannelID,
			SourceName:   plainText(it.Snippet.ChannelTitle),
			PublishedAt:  it.Snippet.PublishedAt,
			ThumbnailURL: thumbnail(it.Snippet.Thumbnails),
			URL:          WatchURL + it.ID.VideoID,
		})
	}
	return items, nil
}

// Statistics fetches view/like/comment counters for up to MaxIDsPerCall ids.
func (c *Client) Statistics(ctx context.Context, ids []string) (map[string]domain.Metrics, error) {
	if len(ids) == 0 {
		return map[string]domain.Metrics{}, nil
	}
	if len(ids) > MaxIDsPerCall {
		return nil, fmt.Errorf("statistics: %d ids exceed the limit of %d", len(ids), MaxIDsPerCall)
	}
	if c.apiKey == "" {
		return nil, fmt.Errorf("%w: youtube api key is not configured", domain.ErrExternalCall)
	}

	query := url.Values{}
	query.Set("part", "statistics")
	query.Set("id", strings.Join(ids, ","))
	query.Set("key", c.apiKey)

	var resp videosResponse
	if err := c.get(ctx, "/videos", query, &resp); err != nil {
		return nil, err
	}

	out := make(map[string]domain.Metrics, len(resp.Items))
	for _, it := range resp.Items {
		out[it.ID] = domain.Metrics{
			Views:    nonNegative(it.Statistics.ViewCount),
			Likes:    nonNegative(it.Statistics.LikeCount),
			Comments: nonNegative(it.Statistics.CommentCount),
		}
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: youtube %s: %w", domain.ErrExternalCall, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return classifyError(resp.Status, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: decode youtube %s: %w", domain.ErrExternalCall, path, err)
	}
	return nil
}

// classifyError separates quota exhaustion from other failures.
func classifyError(status string, body []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil {
		for _, e := range apiErr.Error.Errors {
			switch e.Reason {
			case "quotaExceeded", "dailyLimitExceeded":
				return fmt.Errorf("%w: youtube %s", domain.ErrQuotaExhausted, e.Reason)
			}
		}
		if apiErr.Error.Message != "" {
			return fmt.Errorf("%w: youtube returned %s: %s", domain.ErrExternalCall, status, apiErr.Error.Message)
		}
	}
	return fmt.Errorf("%w: youtube returned %s", domain.ErrExternalCall, status)
}

// plainText decodes the HTML entities the API embeds in snippet fields.
func plainText(s string) string {
	if !strings.ContainsAny(s, "&<") {
		return strings.TrimSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(doc.Text())
}

func thumbnail(thumbs map[string]struct {
	URL string `json:"url"`
}) string {
	for _, size := range []string{"medium", "high", "default"} {
		if t, ok := thumbs[size]; ok && t.URL != "" {
			return t.URL
		}
	}
	return ""
}

func nonNegative(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}
