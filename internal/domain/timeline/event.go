package timeline

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const MaxDescriptionLength = 1000

// TimestampLayout is fixed width so that lexical order of stored
// timestamps equals chronological order.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z"

// Event is one immutable lifecycle fact for an issue.
type Event struct {
	ID          uint64
	IssueID     uint64
	Type        EventType
	ActorType   ActorType
	ActorID     *string
	Description string
	Metadata    map[string]any
	ImageURLs   []string
	CreatedAt   time.Time
}

// NormalizeDescription trims and bounds a description.
func NormalizeDescription(description string) (string, error) {
	trimmed := strings.TrimSpace(description)
	if trimmed == "" {
		return "", ErrDescriptionRequired
	}
	if n := utf8.RuneCountInString(trimmed); n > MaxDescriptionLength {
		return "", fmt.Errorf("%w: %d > %d", ErrDescriptionTooLong, n, MaxDescriptionLength)
	}
	return trimmed, nil
}

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

func ParseTimestamp(raw string) (time.Time, error) {
	return time.Parse(TimestampLayout, raw)
}
