package lifecycle

import (
	"context"

	"civicfix/internal/errs"
)

// Upvote bumps the issue's upvote counter and notifies subscribers. Upvotes
// are not lifecycle transitions and leave the timeline untouched.
func (o *Orchestrator) Upvote(ctx context.Context, issueID uint64) (int64, error) {
	if err := o.ready(ctx); err != nil {
		return 0, err
	}
	if issueID == 0 {
		return 0, errs.WithKind(errIssueIDRequired, errs.KindValidation)
	}

	count, err := o.issues.IncrementUpvotes(ctx, issueID)
	if err != nil {
		return 0, classify(err)
	}
	if o.publisher != nil {
		issue, err := o.issues.GetIssue(ctx, issueID)
		if err == nil {
			o.publisher.PublishUpvote(ctx, issueID, issue.Location, count)
		}
	}
	return count, nil
}
