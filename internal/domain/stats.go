package domain

import "time"

// DayLayout formats the key of a CycleStatistics row.
const DayLayout = "2006-01-02"

// CycleStatistics is the additive per-day counter row.
type CycleStatistics struct {
	Day                string `json:"day"`
	Cycles             int    `json:"cycles"`
	ItemsFound         int    `json:"items_found"`
	AutoPublished      int    `json:"auto_published"`
	ManuallyPublished  int    `json:"manually_published"`
	SpamFiltered       int    `json:"spam_filtered"`
	DuplicatesFiltered int    `json:"duplicates_filtered"`
	APICost            int    `json:"api_cost"`
	SourceFailures     int    `json:"source_failures"`
	DispatchFailures   int    `json:"dispatch_failures"`
}

// Add accumulates delta into s, keeping s.Day.
func (s *CycleStatistics) Add(delta CycleStatistics) {
	s.Cycles += delta.Cycles
	s.ItemsFound += delta.ItemsFound
	s.AutoPublished += delta.AutoPublished
	s.ManuallyPublished += delta.ManuallyPublished
	s.SpamFiltered += delta.SpamFiltered
	s.DuplicatesFiltered += delta.DuplicatesFiltered
	s.APICost += delta.APICost
	s.SourceFailures += delta.SourceFailures
	s.DispatchFailures += delta.DispatchFailures
}

// CycleSummary is what a single RunCycle reports back to its caller.
type CycleSummary struct {
	ID                string    `json:"id"`
	StartedAt         time.Time `json:"started_at"`
	FinishedAt        time.Time `json:"finished_at"`
	Found             int       `json:"found"`
	AutoPublished     int       `json:"auto_published"`
	Held              int       `json:"held"`
	Discarded         int       `json:"discarded"`
	Pending           int       `json:"pending"`
	DuplicatesSkipped int       `json:"duplicates_skipped"`
	QuotaSpent        int       `json:"quota_spent"`
	SourcesAttempted  int       `json:"sources_attempted"`
	SourcesFailed     int       `json:"sources_failed"`
	SourcesSkipped    int       `json:"sources_skipped"`
	Interrupted       bool      `json:"interrupted"`
	Error             string    `json:"error,omitempty"`
}

// Failed reports whether the cycle should be treated as an error cycle.
func (s CycleSummary) Failed() bool {
	if s.Error != "" {
		return true
	}
	return s.SourcesAttempted > 0 && s.SourcesFailed == s.SourcesAttempted
}

// QuotaStatus describes the daily API budget.
type QuotaStatus struct {
	Used      int       `json:"used"`
	Remaining int       `json:"remaining"`
	Limit     int       `json:"limit"`
	ResetAt   time.Time `json:"reset_at"`
}

// Dashboard aggregates today's counters for operator views.
type Dashboard struct {
	Today      CycleStatistics  `json:"today"`
	Categories map[Category]int `json:"categories"`
	Quota      QuotaStatus      `json:"quota"`
}
