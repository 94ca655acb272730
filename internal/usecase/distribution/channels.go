package distribution

import (
	"fmt"
	"math"
	"strconv"

	"civicfix/internal/domain/timeline"
	"civicfix/internal/ports"
)

// Client-facing event names.
const (
	NameIssueCreated       = "issue_created"
	NameCommentAdded       = "comment_added"
	NameIssueStatusUpdated = "issue_status_updated"
	NameIssueUpvoted       = "issue_upvoted"
)

// EventName maps a ledger event type onto the name subscribers see.
func EventName(eventType timeline.EventType) string {
	switch eventType {
	case timeline.EventIssueCreated:
		return NameIssueCreated
	case timeline.EventCommentAdded:
		return NameCommentAdded
	default:
		return NameIssueStatusUpdated
	}
}

// IssueChannel names the per-issue room.
func IssueChannel(issueID uint64) string {
	return "issue:" + strconv.FormatUint(issueID, 10)
}

// GridCell buckets a coordinate into a cell of one tenth of a degree,
// roughly 11 km of latitude.
func GridCell(latitude float64, longitude float64) (int64, int64) {
	return int64(math.Floor(latitude * 100 / 10)), int64(math.Floor(longitude * 100 / 10))
}

// LocationChannel names the grid room containing the coordinate.
func LocationChannel(latitude float64, longitude float64) string {
	lat, lon := GridCell(latitude, longitude)
	return fmt.Sprintf("location:%d_%d", lat, lon)
}

// Channels lists every room an issue's events go to: its own room, plus the
// grid room when the issue has a location.
func Channels(issueID uint64, location *ports.Location) []string {
	channels := []string{IssueChannel(issueID)}
	if location != nil {
		channels = append(channels, LocationChannel(location.Latitude, location.Longitude))
	}
	return channels
}
