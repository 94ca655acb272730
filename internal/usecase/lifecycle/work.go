package lifecycle

import (
	"context"
	"fmt"
	"log/slog"

	"civicfix/internal/bootstrap/logging"
	domainlifecycle "civicfix/internal/domain/lifecycle"
	"civicfix/internal/domain/timeline"
	"civicfix/internal/errs"
	"civicfix/internal/ports"
)

type AssignInput struct {
	IssueID         uint64
	Actor           timeline.ActorType
	ActorID         *string
	Note            string
	ExpectedVersion *int64
}

// Assign hands a reported issue to a government team and starts work.
func (o *Orchestrator) Assign(ctx context.Context, input AssignInput) (TransitionResult, error) {
	if err := requireActor(input.Actor, timeline.ActorGovernment, timeline.ActorSystem); err != nil {
		return TransitionResult{}, err
	}

	return o.transition(ctx, transitionRequest{
		issueID:         input.IssueID,
		trigger:         domainlifecycle.TriggerAssign,
		input:           domainlifecycle.Input{Actor: input.Actor},
		expectedVersion: input.ExpectedVersion,
		describe: func(eventType timeline.EventType, _ ports.Issue, _ domainlifecycle.Snapshot) eventSpec {
			spec := eventSpec{actor: input.Actor, actorID: input.ActorID, payload: timeline.WorkPayload{Note: excerpt(input.Note)}}
			if eventType == timeline.EventGovernmentAssigned {
				spec.description = "Issue assigned to government"
			} else {
				spec.description = "Work started"
			}
			return spec
		},
	})
}

type CompleteWorkInput struct {
	IssueID         uint64
	Actor           timeline.ActorType
	ActorID         *string
	Note            string
	ImageURLs       []string
	ExpectedVersion *int64
}

// CompleteWork stores the government's evidence and stamps the resolution
// date. The cross-check follows when lifecycle.auto_cross_check is on.
func (o *Orchestrator) CompleteWork(ctx context.Context, input CompleteWorkInput) (TransitionResult, error) {
	if err := requireActor(input.Actor, timeline.ActorGovernment, timeline.ActorSystem); err != nil {
		return TransitionResult{}, err
	}
	imageURLs := compact(input.ImageURLs)

	result, err := o.transition(ctx, transitionRequest{
		issueID:         input.IssueID,
		trigger:         domainlifecycle.TriggerCompleteWork,
		input:           domainlifecycle.Input{Actor: input.Actor},
		expectedVersion: input.ExpectedVersion,
		within: func(txCtx context.Context, issue ports.Issue) error {
			return o.issues.AddMedia(txCtx, issue.IssueID, ports.MediaGovernment, imageURLs)
		},
		describe: func(_ timeline.EventType, _ ports.Issue, next domainlifecycle.Snapshot) eventSpec {
			payload := timeline.WorkPayload{Note: excerpt(input.Note), ImageCount: len(imageURLs)}
			if next.ResolutionDate != nil {
				payload.Resolution = timeline.FormatTimestamp(*next.ResolutionDate)
			}
			return eventSpec{
				actor:       input.Actor,
				actorID:     input.ActorID,
				description: fmt.Sprintf("Work completed with %d photo(s)", len(imageURLs)),
				payload:     payload,
				imageURLs:   imageURLs,
			}
		},
	})
	if err != nil {
		return TransitionResult{}, err
	}

	if o.cfg.AutoCrossCheck {
		issueID := input.IssueID
		o.dispatch(ctx, "cross_check", func(runCtx context.Context) {
			if _, err := o.RunCrossCheck(runCtx, issueID); err != nil {
				logging.Warn(runCtx, "automatic cross-check skipped",
					slog.Uint64("issue_id", issueID),
					slog.Any("err", errs.Loggable(err)),
				)
			}
		})
	}
	return result, nil
}
