package ports

import (
	"context"
	"errors"

	"civicfix/internal/domain/timeline"
)

var ErrIssueNotFound = errors.New("issue not found")

type TimelineEventCreate struct {
	IssueID     uint64
	Type        timeline.EventType
	ActorType   timeline.ActorType
	ActorID     *string
	Description string
	Metadata    map[string]any
	ImageURLs   []string
}

// TimelineRepository is the append-only event ledger. Appends join the
// transaction carried in ctx when there is one.
type TimelineRepository interface {
	AppendEvent(ctx context.Context, input TimelineEventCreate) (timeline.Event, error)
	ListEvents(ctx context.Context, issueID uint64) ([]timeline.Event, error)
	CountEvents(ctx context.Context, issueID uint64) (int64, error)
	ListEventsAfter(ctx context.Context, afterEventID uint64, limit int) ([]timeline.Event, error)
}
