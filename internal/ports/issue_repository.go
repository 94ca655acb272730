package ports

import (
	"context"
	"errors"
	"time"

	"civicfix/internal/domain/lifecycle"
)

// ErrVersionConflict means the issue row changed since it was read.
var ErrVersionConflict = errors.New("issue version conflict")

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type MediaSource string

const (
	MediaCitizen    MediaSource = "CITIZEN"
	MediaGovernment MediaSource = "GOVERNMENT"
)

type Issue struct {
	IssueID     uint64
	ReporterID  *string
	Category    string
	Description string
	Location    *Location
	UpvoteCount int64
	Lifecycle   lifecycle.Snapshot
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type IssueCreate struct {
	ReporterID  *string
	Category    string
	Description string
	Location    *Location
	ImageURLs   []string
}

type IssueFilter struct {
	Statuses      []lifecycle.Status
	Escalation    lifecycle.EscalationStatus
	CreatedBefore time.Time
	Limit         int
}

type IssueRepository interface {
	CreateIssue(ctx context.Context, input IssueCreate) (Issue, error)
	GetIssue(ctx context.Context, issueID uint64) (Issue, error)
	ListIssues(ctx context.Context, filter IssueFilter) ([]Issue, error)
	// UpdateLifecycle writes next only if the stored version still equals
	// expectedVersion, otherwise it returns ErrVersionConflict.
	UpdateLifecycle(ctx context.Context, issueID uint64, expectedVersion int64, next lifecycle.Snapshot) error
	IncrementUpvotes(ctx context.Context, issueID uint64) (int64, error)
	AddMedia(ctx context.Context, issueID uint64, source MediaSource, urls []string) error
	ListMedia(ctx context.Context, issueID uint64, source MediaSource) ([]string, error)
	DeleteIssue(ctx context.Context, issueID uint64) error
}
