// Package scoring turns classifier and quality outputs into a 1-5 priority.
package scoring

import "VideoScanner/internal/domain"

// Input holds everything the final priority depends on.
type Input struct {
	BasePriority   int
	SourceBoost    int
	RecencyTier    int
	EngagementTier int
	ViewTier       int
}

// RecencyBonus is 1 for items younger than six hours.
func RecencyBonus(recencyTier int) int {
	if recencyTier >= 2 {
		return 1
	}
	return 0
}

// EngagementBonus is 1 for a like ratio of at least 5% or a million views.
func EngagementBonus(engagementTier, viewTier int) int {
	if engagementTier >= 2 || viewTier >= 3 {
		return 1
	}
	return 0
}

// Priority = min(5, base + boost + recency + engagement), floored at 1.
// Each bonus is applied once.
func Priority(in Input) int {
	boost := in.SourceBoost
	if boost < 0 {
		boost = 0
	}
	p := in.BasePriority + boost + RecencyBonus(in.RecencyTier) + EngagementBonus(in.EngagementTier, in.ViewTier)
	if p > domain.MaxPriority {
		return domain.MaxPriority
	}
	if p < domain.MinPriority {
		return domain.MinPriority
	}
	return p
}
