package lifecycle

import (
	"context"
	"errors"
	"strings"

	domainlifecycle "civicfix/internal/domain/lifecycle"
	"civicfix/internal/domain/timeline"
	"civicfix/internal/errs"
	"civicfix/internal/ports"
)

type CommentInput struct {
	IssueID   uint64
	Actor     timeline.ActorType
	ActorID   *string
	Body      string
	CommentID string
}

// Comment counts a comment stored by the comment layer and records it on the
// timeline.
func (o *Orchestrator) Comment(ctx context.Context, input CommentInput) (TransitionResult, error) {
	if err := requireActor(input.Actor, timeline.ActorCitizen, timeline.ActorGovernment, timeline.ActorSystem); err != nil {
		return TransitionResult{}, err
	}
	body := excerpt(input.Body)
	if body == "" {
		return TransitionResult{}, errs.WithKind(errors.New("comment body is required"), errs.KindValidation)
	}

	return o.transition(ctx, transitionRequest{
		issueID: input.IssueID,
		trigger: domainlifecycle.TriggerComment,
		input:   domainlifecycle.Input{Actor: input.Actor},
		describe: func(timeline.EventType, ports.Issue, domainlifecycle.Snapshot) eventSpec {
			return eventSpec{
				actor:       input.Actor,
				actorID:     input.ActorID,
				description: "Comment added: " + body,
				payload:     timeline.CommentPayload{CommentID: strings.TrimSpace(input.CommentID)},
			}
		},
	})
}
