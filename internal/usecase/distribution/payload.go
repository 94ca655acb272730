package distribution

import (
	"civicfix/internal/domain/timeline"
	"civicfix/internal/ports"
)

// EventPayload is the data body of a lifecycle notification.
type EventPayload struct {
	EventID     uint64          `json:"event_id"`
	IssueID     uint64          `json:"issue_id"`
	EventType   string          `json:"event_type"`
	ActorType   string          `json:"actor_type"`
	ActorID     *string         `json:"actor_id,omitempty"`
	Description string          `json:"description"`
	Metadata    map[string]any  `json:"metadata,omitempty"`
	ImageURLs   []string        `json:"image_urls,omitempty"`
	CreatedAt   string          `json:"created_at"`
	Location    *ports.Location `json:"location,omitempty"`
}

// UpvotePayload is the data body of an issue_upvoted notification.
type UpvotePayload struct {
	IssueID     uint64 `json:"issue_id"`
	UpvoteCount int64  `json:"upvote_count"`
}

func newEventPayload(event timeline.Event, location *ports.Location) EventPayload {
	return EventPayload{
		EventID:     event.ID,
		IssueID:     event.IssueID,
		EventType:   string(event.Type),
		ActorType:   string(event.ActorType),
		ActorID:     event.ActorID,
		Description: event.Description,
		Metadata:    event.Metadata,
		ImageURLs:   event.ImageURLs,
		CreatedAt:   timeline.FormatTimestamp(event.CreatedAt),
		Location:    location,
	}
}
