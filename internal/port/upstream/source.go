// Package upstream defines the port interface for the breach data source.
package upstream

import "context"

// Source is the authoritative breach dataset the cache fronts.
// Implementations must be safe for concurrent use by many partitions.
type Source interface {
	// Fetch returns the stored breach details for email, or nil when the
	// email is unknown to the dataset.
	Fetch(ctx context.Context, email string) (*string, error)

	// Add registers details as a breach for email. It returns an error
	// wrapping domain.ErrConflict when the dataset already holds a record
	// for email and kept it.
	Add(ctx context.Context, email, details string) error
}
