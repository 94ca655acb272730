package lifecycle

import (
	"context"

	domainlifecycle "civicfix/internal/domain/lifecycle"
	"civicfix/internal/domain/timeline"
	"civicfix/internal/ports"
)

type CitizenResponseInput struct {
	IssueID         uint64
	Actor           timeline.ActorType
	ActorID         *string
	Reason          string
	ExpectedVersion *int64
}

// Confirm closes the issue on the citizen's confirmation.
func (o *Orchestrator) Confirm(ctx context.Context, input CitizenResponseInput) (TransitionResult, error) {
	if err := requireActor(input.Actor, timeline.ActorCitizen); err != nil {
		return TransitionResult{}, err
	}

	payload := timeline.CitizenResponsePayload{Outcome: "confirmed", Reason: excerpt(input.Reason)}
	return o.transition(ctx, transitionRequest{
		issueID:         input.IssueID,
		trigger:         domainlifecycle.TriggerConfirm,
		input:           domainlifecycle.Input{Actor: input.Actor},
		expectedVersion: input.ExpectedVersion,
		describe: func(eventType timeline.EventType, _ ports.Issue, _ domainlifecycle.Snapshot) eventSpec {
			if eventType == timeline.EventCitizenVerificationCompleted {
				return eventSpec{actor: input.Actor, actorID: input.ActorID, description: "Citizen confirmed the resolution", payload: payload}
			}
			return systemEvent("Issue closed", nil)
		},
	})
}

// Dispute escalates the issue; its workflow status is left unchanged.
func (o *Orchestrator) Dispute(ctx context.Context, input CitizenResponseInput) (TransitionResult, error) {
	if err := requireActor(input.Actor, timeline.ActorCitizen); err != nil {
		return TransitionResult{}, err
	}

	reason := excerpt(input.Reason)
	return o.transition(ctx, transitionRequest{
		issueID:         input.IssueID,
		trigger:         domainlifecycle.TriggerDispute,
		input:           domainlifecycle.Input{Actor: input.Actor},
		expectedVersion: input.ExpectedVersion,
		describe: func(eventType timeline.EventType, _ ports.Issue, _ domainlifecycle.Snapshot) eventSpec {
			if eventType == timeline.EventIssueDisputed {
				description := "Citizen disputed the resolution"
				if reason != "" {
					description += ": " + reason
				}
				return eventSpec{
					actor:       input.Actor,
					actorID:     input.ActorID,
					description: description,
					payload:     timeline.CitizenResponsePayload{Outcome: "disputed", Reason: reason},
				}
			}
			return systemEvent("Issue escalated after dispute", timeline.EscalationPayload{Trigger: timeline.EscalationDispute, Reason: reason})
		},
	})
}
