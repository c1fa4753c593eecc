package domain

import (
	"regexp"
	"time"
)

// SourceKind tells providers whether a source is a channel or a keyword query.
type SourceKind string

const (
	SourceChannel SourceKind = "channel"
	SourceQuery   SourceKind = "query"
)

var channelIDExpr = regexp.MustCompile(`^UC[A-Za-z0-9_-]{22}$`)

// InferSourceKind guesses the kind from the identifier shape.
func InferSourceKind(id string) SourceKind {
	if channelIDExpr.MatchString(id) {
		return SourceChannel
	}
	return SourceQuery
}

// SourceEntry is the registry record describing trust for a source.
type SourceEntry struct {
	ID          string     `json:"id"`
	DisplayName string     `json:"display_name"`
	Kind        SourceKind `json:"kind"`
	Verified    bool       `json:"verified"`
	Boost       int        `json:"boost"`
	// Scanner names the provider strategy used to poll the source.
	Scanner   string    `json:"scanner"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Trust is the result of a registry lookup.
type Trust struct {
	Verified bool
	Boost    int
	Known    bool
}

// SearchRequest carries the parameters for one provider call.
type SearchRequest struct {
	Source         SourceEntry
	PublishedAfter time.Time
	MaxResults     int
}
