package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"

	"VideoScanner/internal/config"
	"VideoScanner/internal/domain"
	"VideoScanner/internal/ports"
)

const (
	// Name identifies the strategy inside the scanner registry.
	Name = "feed"

	DefaultBaseURL = "https://www.youtube.com/feeds/videos.xml"
	watchURL       = "https://www.youtube.com/watch?v="
)

// Scanner reads public channel Atom feeds. It costs no API quota and
// carries view and like counters from the media:community block.
type Scanner struct {
	baseURL string
	parser  *gofeed.Parser
}

var _ ports.SearchProvider = (*Scanner)(nil)

// NewScanner creates a feed scanner.
func NewScanner(cfg config.FeedConfig) *Scanner {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: timeout}
	parser.UserAgent = "VideoScanner/1.0"

	return &Scanner{baseURL: baseURL, parser: parser}
}

// Name identifies the strategy.
func (s *Scanner) Name() string { return Name }

// SearchCost is zero: feeds are not metered.
func (s *Scanner) SearchCost() int { return 0 }

// StatisticsCost is zero since feed entries already carry metrics.
func (s *Scanner) StatisticsCost() int { return 0 }

// Search loads the channel feed and returns entries newer than PublishedAfter.
func (s *Scanner) Search(ctx context.Context, req domain.SearchRequest) ([]domain.RawItem, error) {
	if req.Source.Kind != domain.SourceChannel {
		return nil, fmt.Errorf("%w: feed scanner supports channels only, got %q", domain.ErrExternalCall, req.Source.ID)
	}

	feedURL, err := s.feedURL(req.Source.ID)
	if err != nil {
		return nil, err
	}

	parsed, err := s.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: feed %s: %w", domain.ErrExternalCall, req.Source.ID, err)
	}

	items := make([]domain.RawItem, 0, len(parsed.Items))
	for _, entry := range parsed.Items {
		item, ok := toRawItem(entry, req.Source)
		if !ok {
			continue
		}
		if !req.PublishedAfter.IsZero() && !item.PublishedAt.After(req.PublishedAfter) {
			continue
		}
		items = append(items, item)
		if req.MaxResults > 0 && len(items) >= req.MaxResults {
			break
		}
	}
	return items, nil
}

// Statistics is never needed for feed items; it returns an empty map.
func (s *Scanner) Statistics(context.Context, []string) (map[string]domain.Metrics, error) {
	return map[string]domain.Metrics{}, nil
}

func (s *Scanner) feedURL(channelID string) (string, error) {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse feed base url: %w", err)
	}
	q := u.Query()
	q.Set("channel_id", channelID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func toRawItem(entry *gofeed.Item, source domain.SourceEntry) (domain.RawItem, bool) {
	id := extValue(entry.Extensions, "yt", "videoId")
	if id == "" {
		id = strings.TrimPrefix(entry.GUID, "yt:video:")
	}
	if id == "" {
		return domain.RawItem{}, false
	}

	item := domain.RawItem{
		ID:         id,
		Title:      strings.TrimSpace(entry.Title),
		SourceID:   extValue(entry.Extensions, "yt", "channelId"),
		SourceName: source.DisplayName,
		URL:        entry.Link,
		HasMetrics: true,
	}
	if item.SourceID == "" {
		item.SourceID = source.ID
	}
	if len(entry.Authors) > 0 && entry.Authors[0].Name != "" {
		item.SourceName = entry.Authors[0].Name
	}
	if item.URL == "" {
		item.URL = watchURL + id
	}
	if entry.PublishedParsed != nil {
		item.PublishedAt = entry.PublishedParsed.UTC()
	}

	if group := first(entry.Extensions["media"]["group"]); group != nil {
		if desc := first(group.Children["description"]); desc != nil {
			item.Description = strings.TrimSpace(desc.Value)
		}
		if thumb := first(group.Children["thumbnail"]); thumb != nil {
			item.ThumbnailURL = thumb.Attrs["url"]
		}
		if community := first(group.Children["community"]); community != nil {
			if stats := first(community.Children["statistics"]); stats != nil {
				item.Metrics.Views = parseCount(stats.Attrs["views"])
			}
			if rating := first(community.Children["starRating"]); rating != nil {
				item.Metrics.Likes = parseCount(rating.Attrs["count"])
			}
		}
	}
	if item.Description == "" {
		item.Description = strings.TrimSpace(entry.Description)
	}
	return item, true
}

func extValue(extensions ext.Extensions, ns, name string) string {
	if e := first(extensions[ns][name]); e != nil {
		return strings.TrimSpace(e.Value)
	}
	return ""
}

func first(list []ext.Extension) *ext.Extension {
	if len(list) == 0 {
		return nil
	}
	return &list[0]
}

func parseCount(raw string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
