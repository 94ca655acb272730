package ports

import (
	"context"

	"civicfix/internal/domain/timeline"
)

// EventPublisher hands committed timeline events to real-time fan-out.
// Implementations must not block the caller.
type EventPublisher interface {
	Publish(ctx context.Context, event timeline.Event, location *Location)
	PublishUpvote(ctx context.Context, issueID uint64, location *Location, upvotes int64)
}

// Message is one client-facing notification addressed to channels.
type Message struct {
	Name     string   `json:"event"`
	Channels []string `json:"channels"`
	Payload  any      `json:"data"`
}

// DistributionSink is one transport the router delivers to.
type DistributionSink interface {
	Name() string
	Deliver(ctx context.Context, msg Message) error
}
