package lifecycle

import (
	"context"

	domainlifecycle "civicfix/internal/domain/lifecycle"
	"civicfix/internal/domain/timeline"
	"civicfix/internal/ports"
)

func (o *Orchestrator) GetIssue(ctx context.Context, issueID uint64) (ports.Issue, error) {
	if err := o.ready(ctx); err != nil {
		return ports.Issue{}, err
	}
	issue, err := o.issues.GetIssue(ctx, issueID)
	if err != nil {
		return ports.Issue{}, classify(err)
	}
	return issue, nil
}

// ListTimeline returns the issue's events in ledger order.
func (o *Orchestrator) ListTimeline(ctx context.Context, issueID uint64) ([]timeline.Event, error) {
	if _, err := o.GetIssue(ctx, issueID); err != nil {
		return nil, err
	}
	events, err := o.timeline.ListEvents(ctx, issueID)
	if err != nil {
		return nil, classify(err)
	}
	return events, nil
}

func (o *Orchestrator) CountTimeline(ctx context.Context, issueID uint64) (int64, error) {
	if err := o.ready(ctx); err != nil {
		return 0, err
	}
	count, err := o.timeline.CountEvents(ctx, issueID)
	if err != nil {
		return 0, classify(err)
	}
	return count, nil
}

// VerifyConsistency replays the timeline and compares it with the stored
// projection.
func (o *Orchestrator) VerifyConsistency(ctx context.Context, issueID uint64) error {
	issue, err := o.GetIssue(ctx, issueID)
	if err != nil {
		return err
	}
	events, err := o.timeline.ListEvents(ctx, issueID)
	if err != nil {
		return classify(err)
	}
	return domainlifecycle.CheckConsistency(issue.Lifecycle, events)
}
