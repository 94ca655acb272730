package lifecycle

import (
	"context"

	domainlifecycle "civicfix/internal/domain/lifecycle"
	"civicfix/internal/domain/timeline"
	"civicfix/internal/ports"
)

type OverrideInput struct {
	IssueID         uint64
	Actor           timeline.ActorType
	ActorID         *string
	NewStatus       string
	Reason          string
	ExpectedVersion *int64
}

// Override sets the workflow status directly. Only government and system
// actors may do so, and only to a different status.
func (o *Orchestrator) Override(ctx context.Context, input OverrideInput) (TransitionResult, error) {
	next, err := domainlifecycle.ParseStatus(input.NewStatus)
	if err != nil {
		return TransitionResult{}, classify(err)
	}

	return o.transition(ctx, transitionRequest{
		issueID:         input.IssueID,
		trigger:         domainlifecycle.TriggerOverride,
		input:           domainlifecycle.Input{Actor: input.Actor, NewStatus: next},
		expectedVersion: input.ExpectedVersion,
		describe: func(_ timeline.EventType, current ports.Issue, _ domainlifecycle.Snapshot) eventSpec {
			return eventSpec{
				actor:       input.Actor,
				actorID:     input.ActorID,
				description: statusChangeDescription(current.Lifecycle.Status, next, input.Reason),
				payload: timeline.StatusChangePayload{
					OldStatus: string(current.Lifecycle.Status),
					NewStatus: string(next),
					Reason:    excerpt(input.Reason),
				},
			}
		},
	})
}
