// Package dedup suppresses repeated items within a batch.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// NormalizeTitle lower-cases the title, drops every rune that is not a letter,
// digit, underscore or whitespace, and collapses whitespace runs.
func NormalizeTitle(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r) || r == '_' || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Fingerprint is the hex SHA-256 of the normalized title joined with sourceID.
func Fingerprint(title, sourceID string) string {
	sum := sha256.Sum256([]byte(NormalizeTitle(title) + "\x00" + sourceID))
	return hex.EncodeToString(sum[:])
}

// Batch remembers ids and fingerprints admitted during one cycle. It is not
// safe for concurrent use; the orchestrator owns it.
type Batch struct {
	ids          map[string]struct{}
	fingerprints map[string]struct{}
}

// NewBatch returns an empty batch.
func NewBatch() *Batch {
	return &Batch{
		ids:          map[string]struct{}{},
		fingerprints: map[string]struct{}{},
	}
}

// Admit records the item and reports whether it is the first occurrence.
func (b *Batch) Admit(id, fingerprint string) bool {
	if _, ok := b.ids[id]; ok {
		return false
	}
	if _, ok := b.fingerprints[fingerprint]; ok {
		return false
	}
	b.ids[id] = struct{}{}
	b.fingerprints[fingerprint] = struct{}{}
	return true
}

// Len returns the number of admitted items.
func (b *Batch) Len() int {
	return len(b.ids)
}
