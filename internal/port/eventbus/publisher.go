// Package eventbus defines the port interface for publishing domain events.
package eventbus

import "context"

// SubjectBreachAdded carries breach.AddedEvent payloads.
const SubjectBreachAdded = "breaches.added"

// Publisher sends a message to the given subject.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}
