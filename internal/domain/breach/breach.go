// Package breach defines the cached breach lookup entities.
package breach

import "time"

// Source describes where a lookup result came from.
type Source string

const (
	// SourceCache is a fresh, unexpired cache entry.
	SourceCache Source = "cache"
	// SourceUpstream is a value fetched from the breach data source during the call.
	SourceUpstream Source = "upstream"
	// SourceStale is an expired entry served because the data source failed.
	SourceStale Source = "stale"
)

// CacheEntry is one cached fact about an email. A nil Details records an
// explicit "not found" answer from the data source.
type CacheEntry struct {
	Details   *string   `json:"details"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Fresh reports whether the entry can be served without revalidation.
func (e CacheEntry) Fresh(now time.Time) bool {
	return e.ExpiresAt.After(now)
}

// Breached reports whether the entry marks the email as breached.
func (e CacheEntry) Breached() bool {
	return e.Details != nil
}

// PartitionState holds every cached entry of one email domain, keyed by
// normalized email.
type PartitionState struct {
	Entries map[string]CacheEntry `json:"entries"`
}

// NewPartitionState returns an empty state.
func NewPartitionState() PartitionState {
	return PartitionState{Entries: make(map[string]CacheEntry)}
}

// Clone returns a deep copy of the state.
func (s PartitionState) Clone() PartitionState {
	out := PartitionState{Entries: make(map[string]CacheEntry, len(s.Entries))}
	for email, entry := range s.Entries {
		if entry.Details != nil {
			d := *entry.Details
			entry.Details = &d
		}
		out.Entries[email] = entry
	}
	return out
}

// CacheResult is the answer to a lookup. It is never persisted.
type CacheResult struct {
	Email       string    `json:"email"`
	Details     *string   `json:"details"`
	Found       bool      `json:"found"`
	IsFromCache bool      `json:"is_from_cache"`
	ExpiresAt   time.Time `json:"expires_at"`
	Source      Source    `json:"source"`
}

// NewResult builds a CacheResult for email from entry. The result carries
// its own copy of the details.
func NewResult(email string, entry CacheEntry, src Source) CacheResult {
	res := CacheResult{
		Email:       email,
		Found:       entry.Breached(),
		IsFromCache: src != SourceUpstream,
		ExpiresAt:   entry.ExpiresAt,
		Source:      src,
	}
	if entry.Details != nil {
		d := *entry.Details
		res.Details = &d
	}
	return res
}

// AddedEvent is published after a breach record has been registered.
type AddedEvent struct {
	ID      string    `json:"id"`
	Email   string    `json:"email"`
	Domain  string    `json:"domain"`
	Details string    `json:"details"`
	AddedAt time.Time `json:"added_at"`
}
