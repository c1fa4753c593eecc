// Package quality flags spam and assigns a 0-10 quality score to raw items.
package quality

import (
	"strings"
	"time"
	"unicode"

	"github.com/importcjj/sensitive"

	"VideoScanner/internal/domain"
)

const (
	MaxScore = 10.0

	maxPunctuationRatio = 0.3
	maxUppercaseRatio   = 0.6
	// minLettersForCaseCheck keeps short all-caps titles ("RRR", "KGF 2") out of the caps rule.
	minLettersForCaseCheck = 5
)

// DefaultDenylist are substrings that mark piracy and clickbait uploads.
func DefaultDenylist() []string {
	return []string{
		"leaked", "full movie download", "free download", "download link",
		"watch online free", "torrent", "camrip", "hd print", "tamilrockers",
		"movierulz", "subscribe and win", "giveaway",
	}
}

// DefaultQualityKeywords add a point when present in the title.
func DefaultQualityKeywords() []string {
	return []string{"official", "4k", "dolby", "lyrical", "first look", "exclusive"}
}

// Verdict is the spam predicate outcome.
type Verdict struct {
	Spam   bool
	Reason string
}

// Input bundles what the score needs.
type Input struct {
	Title          string
	Metrics        domain.Metrics
	PublishedAt    time.Time
	Now            time.Time
	OfficialSource bool
}

// Assessment is the additive score plus the tiers the scorer reuses.
type Assessment struct {
	Score          float64
	ViewTier       int
	EngagementTier int
	RecencyTier    int
	EngagementRate float64
}

// Filter evaluates spam and quality. It is safe for concurrent reads.
type Filter struct {
	denylist *sensitive.Filter
	keywords []string
}

// NewFilter builds a filter; nil slices select the defaults.
func NewFilter(denylist, keywords []string) *Filter {
	if denylist == nil {
		denylist = DefaultDenylist()
	}
	if keywords == nil {
		keywords = DefaultQualityKeywords()
	}

	words := sensitive.New()
	for _, w := range denylist {
		w = words.RemoveNoise(strings.ToLower(strings.TrimSpace(w)))
		if w != "" {
			words.AddWord(w)
		}
	}

	lowered := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			lowered = append(lowered, kw)
		}
	}

	return &Filter{denylist: words, keywords: lowered}
}

// Check runs the spam predicate over title and description.
func (f *Filter) Check(title, description string) Verdict {
	text := strings.ToLower(title + " " + description)
	if found, word := f.denylist.FindIn(text); found {
		return Verdict{Spam: true, Reason: "denylist:" + word}
	}

	punct, upper := titleRatios(title)
	if punct > maxPunctuationRatio {
		return Verdict{Spam: true, Reason: "punctuation"}
	}
	if upper > maxUppercaseRatio {
		return Verdict{Spam: true, Reason: "uppercase"}
	}
	return Verdict{}
}

// Score computes the capped additive quality score.
func (f *Filter) Score(in Input) Assessment {
	a := Assessment{
		ViewTier:       ViewTier(in.Metrics.Views),
		EngagementRate: in.Metrics.EngagementRate(),
		RecencyTier:    RecencyTier(in.Now.Sub(in.PublishedAt)),
	}
	a.EngagementTier = EngagementTier(a.EngagementRate)

	score := a.ViewTier + a.EngagementTier + a.RecencyTier
	if in.OfficialSource {
		score += 2
	}
	if f.hasQualityKeyword(in.Title) {
		score++
	}

	a.Score = float64(score)
	if a.Score > MaxScore {
		a.Score = MaxScore
	}
	return a
}

func (f *Filter) hasQualityKeyword(title string) bool {
	title = strings.ToLower(title)
	for _, kw := range f.keywords {
		if strings.Contains(title, kw) {
			return true
		}
	}
	return false
}

// ViewTier returns 0-3 for the 10k/100k/1M thresholds.
func ViewTier(views int64) int {
	switch {
	case views >= 1_000_000:
		return 3
	case views >= 100_000:
		return 2
	case views >= 10_000:
		return 1
	}
	return 0
}

// EngagementTier returns 0-2 for the 2%/5% like-to-view thresholds.
func EngagementTier(rate float64) int {
	switch {
	case rate >= 0.05:
		return 2
	case rate >= 0.02:
		return 1
	}
	return 0
}

// RecencyTier returns 0-3 for items younger than 24h/6h/1h. Future timestamps
// count as fresh.
func RecencyTier(age time.Duration) int {
	switch {
	case age < time.Hour:
		return 3
	case age < 6*time.Hour:
		return 2
	case age < 24*time.Hour:
		return 1
	}
	return 0
}

// titleRatios returns the share of punctuation among all runes and the share of
// uppercase among letters.
func titleRatios(title string) (punct, upper float64) {
	var total, symbols, letters, capitals int
	for _, r := range title {
		total++
		switch {
		case unicode.IsLetter(r):
			letters++
			if unicode.IsUpper(r) {
				capitals++
			}
		case unicode.IsDigit(r), unicode.IsSpace(r):
		default:
			symbols++
		}
	}
	if total > 0 {
		punct = float64(symbols) / float64(total)
	}
	if letters >= minLettersForCaseCheck {
		upper = float64(capitals) / float64(letters)
	}
	return punct, upper
}
