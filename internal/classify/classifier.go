// Package classify maps item text onto a content category.
package classify

import (
	"strings"

	"VideoScanner/internal/domain"
)

// Rule is one row of the ordered category table.
type Rule struct {
	Category     domain.Category
	Keywords     []string
	BasePriority int
	AutoEligible bool
}

// Result is what the classifier decides for an item.
type Result struct {
	Category     domain.Category
	BasePriority int
	AutoEligible bool
}

// Fallback is returned when no rule matches.
var Fallback = Result{Category: domain.CategoryOther, BasePriority: domain.MinPriority}

// DefaultRules is the built-in table. Order matters: the more specific and more
// valuable categories come first because the first match wins.
func DefaultRules() []Rule {
	return []Rule{
		{Category: domain.CategoryOfficialTrailer, Keywords: []string{"official trailer", "theatrical trailer", "release trailer"}, BasePriority: 5, AutoEligible: true},
		{Category: domain.CategoryTeaser, Keywords: []string{"teaser", "first look", "glimpse"}, BasePriority: 5, AutoEligible: true},
		{Category: domain.CategoryTrailer, Keywords: []string{"trailer"}, BasePriority: 4, AutoEligible: true},
		{Category: domain.CategorySong, Keywords: []string{"lyrical", "video song", "full song", "song"}, BasePriority: 4, AutoEligible: true},
		{Category: domain.CategoryEvent, Keywords: []string{"pre release event", "pre-release event", "audio launch", "success meet"}, BasePriority: 3},
		{Category: domain.CategoryNews, Keywords: []string{"news", "breaking", "announcement", "box office"}, BasePriority: 3},
		{Category: domain.CategoryInterview, Keywords: []string{"interview", "exclusive", "press meet"}, BasePriority: 2},
	}
}

// Classifier evaluates rules in order. It holds no mutable state.
type Classifier struct {
	rules []Rule
}

// New builds a classifier. An empty rule list falls back to DefaultRules.
func New(rules []Rule) *Classifier {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	normalized := make([]Rule, 0, len(rules))
	for _, rule := range rules {
		keywords := make([]string, 0, len(rule.Keywords))
		for _, kw := range rule.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" {
				keywords = append(keywords, kw)
			}
		}
		rule.Keywords = keywords
		rule.BasePriority = clampPriority(rule.BasePriority)
		normalized = append(normalized, rule)
	}
	return &Classifier{rules: normalized}
}

// Classify matches title, description and source name case-insensitively.
func (c *Classifier) Classify(title, description, sourceName string) Result {
	text := strings.ToLower(strings.Join([]string{title, description, sourceName}, " "))
	for _, rule := range c.rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(text, kw) {
				return Result{
					Category:     rule.Category,
					BasePriority: rule.BasePriority,
					AutoEligible: rule.AutoEligible,
				}
			}
		}
	}
	return Fallback
}

// Rules returns a copy of the table in evaluation order.
func (c *Classifier) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

func clampPriority(p int) int {
	if p < domain.MinPriority {
		return domain.MinPriority
	}
	if p > domain.MaxPriority {
		return domain.MaxPriority
	}
	return p
}
