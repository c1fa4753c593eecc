package domain

import "time"

// Category is the classifier outcome stored with every item.
type Category string

const (
	CategoryOfficialTrailer Category = "official_trailer"
	CategoryTeaser          Category = "teaser"
	CategoryTrailer         Category = "trailer"
	CategorySong            Category = "song"
	CategoryEvent           Category = "event"
	CategoryNews            Category = "news"
	CategoryInterview       Category = "interview"
	CategoryOther           Category = "other"
)

const (
	MinPriority = 1
	MaxPriority = 5
)

// DispatchState tracks whether an item reached the notification channel.
type DispatchState string

const (
	StatePending           DispatchState = "pending"
	StateAutoPublished     DispatchState = "auto_published"
	StateManuallyPublished DispatchState = "manually_published"
	StateHeld              DispatchState = "held"
	StateDiscarded         DispatchState = "discarded"
)

// Published reports whether the state means a send succeeded.
func (s DispatchState) Published() bool {
	return s == StateAutoPublished || s == StateManuallyPublished
}

// Valid reports whether s is one of the known states.
func (s DispatchState) Valid() bool {
	switch s {
	case StatePending, StateAutoPublished, StateManuallyPublished, StateHeld, StateDiscarded:
		return true
	}
	return false
}

// Metrics are engagement counters captured once at ingestion.
type Metrics struct {
	Views    int64 `json:"views"`
	Likes    int64 `json:"likes"`
	Comments int64 `json:"comments"`
}

// EngagementRate returns likes per view, zero when there are no views.
func (m Metrics) EngagementRate() float64 {
	if m.Views <= 0 || m.Likes <= 0 {
		return 0
	}
	return float64(m.Likes) / float64(m.Views)
}

// RawItem is a single search result as returned by a provider.
type RawItem struct {
	ID           string
	Title        string
	Description  string
	SourceID     string
	SourceName   string
	PublishedAt  time.Time
	ThumbnailURL string
	URL          string
	Metrics      Metrics
	// HasMetrics is true when the provider already returned engagement counters.
	HasMetrics bool
	// Origin is the registry source whose search surfaced the item.
	Origin string
}

// ContentItem is the persisted record for one discovered video.
type ContentItem struct {
	ID               string        `json:"id"`
	Title            string        `json:"title"`
	Description      string        `json:"description"`
	SourceID         string        `json:"source_id"`
	SourceName       string        `json:"source_name"`
	Origin           string        `json:"origin"`
	PublishedAt      time.Time     `json:"published_at"`
	ThumbnailURL     string        `json:"thumbnail_url"`
	URL              string        `json:"url"`
	Metrics          Metrics       `json:"metrics"`
	EngagementRate   float64       `json:"engagement_rate"`
	Category         Category      `json:"category"`
	Priority         int           `json:"priority"`
	QualityScore     float64       `json:"quality_score"`
	IsOfficialSource bool          `json:"is_official_source"`
	IsSpam           bool          `json:"is_spam"`
	DispatchState    DispatchState `json:"dispatch_state"`
	Fingerprint      string        `json:"fingerprint"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
	DispatchedAt     *time.Time    `json:"dispatched_at,omitempty"`
}

// ActionResult is returned by operator actions instead of an error.
type ActionResult struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
}

// Succeeded builds a positive ActionResult.
func Succeeded() ActionResult {
	return ActionResult{Success: true}
}

// Failed builds a negative ActionResult with the given reason.
func Failed(reason string) ActionResult {
	return ActionResult{Success: false, Reason: reason}
}
