package lifecycle

import (
	"fmt"
	"time"

	"civicfix/internal/domain/timeline"
)

type Trigger string

const (
	TriggerSubmit            Trigger = "submit"
	TriggerStartVerification Trigger = "start_verification"
	TriggerApplyVerification Trigger = "apply_verification"
	TriggerAssign            Trigger = "assign"
	TriggerCompleteWork      Trigger = "complete_work"
	TriggerStartCrossCheck   Trigger = "start_cross_check"
	TriggerApplyCrossCheck   Trigger = "apply_cross_check"
	TriggerConfirm           Trigger = "confirm"
	TriggerDispute           Trigger = "dispute"
	TriggerComment           Trigger = "comment"
	TriggerOverride          Trigger = "override"
	TriggerEscalate          Trigger = "escalate"
)

// Input carries the trigger-specific values a rule needs.
type Input struct {
	Actor       timeline.ActorType
	Now         time.Time
	AIResult    AIStatus
	CrossResult CrossStatus
	NewStatus   Status
}

type rule struct {
	guard  func(s Snapshot, in Input) error
	apply  func(s *Snapshot, in Input)
	events func(in Input) []timeline.EventType
}

func events(types ...timeline.EventType) func(Input) []timeline.EventType {
	return func(Input) []timeline.EventType { return types }
}

func stale(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrStaleTransition}, args...)...)
}

func requireAIPending(s Snapshot, _ Input) error {
	if s.AIStatus != AIPending {
		return stale("ai verification is %s, want %s", s.AIStatus, AIPending)
	}
	return nil
}

func requireCitizenRequested(s Snapshot, _ Input) error {
	if s.CitizenStatus != CitizenRequested {
		return stale("citizen verification is %s, want %s", s.CitizenStatus, CitizenRequested)
	}
	return nil
}

var rules = map[Trigger]rule{
	TriggerSubmit: {
		guard:  func(Snapshot, Input) error { return nil },
		apply:  func(s *Snapshot, _ Input) { *s = NewSnapshot() },
		events: events(timeline.EventIssueCreated),
	},
	TriggerStartVerification: {
		guard:  requireAIPending,
		apply:  func(*Snapshot, Input) {},
		events: events(timeline.EventAIVerificationStarted),
	},
	TriggerApplyVerification: {
		guard: requireAIPending,
		apply: func(s *Snapshot, in Input) { s.AIStatus = in.AIResult },
		events: func(in Input) []timeline.EventType {
			if in.AIResult == AIVerified {
				return []timeline.EventType{timeline.EventAIVerificationCompleted, timeline.EventIssuePublished}
			}
			return []timeline.EventType{timeline.EventAIVerificationCompleted, timeline.EventIssueRejected}
		},
	},
	TriggerAssign: {
		guard: func(s Snapshot, _ Input) error {
			if s.Status != StatusReported {
				return stale("status is %s, want %s", s.Status, StatusReported)
			}
			return nil
		},
		apply:  func(s *Snapshot, _ Input) { s.Status = StatusInProgress },
		events: events(timeline.EventGovernmentAssigned, timeline.EventWorkStarted),
	},
	TriggerCompleteWork: {
		guard: func(s Snapshot, _ Input) error {
			if s.Status != StatusInProgress {
				return stale("status is %s, want %s", s.Status, StatusInProgress)
			}
			// a disputed resolution reopens the work loop
			if s.ResolutionDate != nil && s.CitizenStatus != CitizenDisputed {
				return stale("work already completed")
			}
			return nil
		},
		apply: func(s *Snapshot, in Input) {
			now := in.Now
			s.ResolutionDate = &now
			s.CrossStatus = CrossNone
			s.CitizenStatus = CitizenNotRequested
		},
		events: events(timeline.EventWorkCompleted),
	},
	TriggerStartCrossCheck: {
		guard: func(s Snapshot, _ Input) error {
			if s.ResolutionDate == nil {
				return stale("work has not been completed")
			}
			if s.CrossStatus != CrossNone {
				return stale("cross verification is %s, want %s", s.CrossStatus, CrossNone)
			}
			return nil
		},
		apply:  func(s *Snapshot, _ Input) { s.CrossStatus = CrossPending },
		events: events(timeline.EventCrossVerificationStarted),
	},
	TriggerApplyCrossCheck: {
		guard: func(s Snapshot, _ Input) error {
			if s.CrossStatus != CrossPending {
				return stale("cross verification is %s, want %s", s.CrossStatus, CrossPending)
			}
			return nil
		},
		apply: func(s *Snapshot, in Input) {
			s.CrossStatus = in.CrossResult
			s.CitizenStatus = CitizenRequested
		},
		events: events(timeline.EventCrossVerificationCompleted, timeline.EventCitizenVerificationRequested),
	},
	TriggerConfirm: {
		guard: requireCitizenRequested,
		apply: func(s *Snapshot, _ Input) {
			s.Status = StatusResolved
			s.CitizenStatus = CitizenConfirmed
		},
		events: events(timeline.EventCitizenVerificationCompleted, timeline.EventIssueClosed),
	},
	TriggerDispute: {
		guard: requireCitizenRequested,
		apply: func(s *Snapshot, in Input) {
			now := in.Now
			s.CitizenStatus = CitizenDisputed
			s.Escalation = EscalationEscalated
			s.EscalationDate = &now
		},
		events: events(timeline.EventIssueDisputed, timeline.EventEscalationTriggered),
	},
	TriggerComment: {
		guard:  func(Snapshot, Input) error { return nil },
		apply:  func(s *Snapshot, _ Input) { s.CommentCount++ },
		events: events(timeline.EventCommentAdded),
	},
	TriggerOverride: {
		guard: func(s Snapshot, in Input) error {
			if !in.Actor.IsAdmin() {
				return fmt.Errorf("%w: %s cannot override status", ErrActorNotAllowed, in.Actor)
			}
			if !in.NewStatus.Valid() {
				return fmt.Errorf("%w: %q", ErrInvalidStatus, in.NewStatus)
			}
			if s.Status == in.NewStatus {
				return stale("status is already %s", s.Status)
			}
			return nil
		},
		apply:  func(s *Snapshot, in Input) { s.Status = in.NewStatus },
		events: events(timeline.EventStatusChanged),
	},
	TriggerEscalate: {
		guard: func(s Snapshot, _ Input) error {
			if s.Escalation != EscalationNone {
				return stale("issue is already escalated")
			}
			if s.Status == StatusResolved {
				return stale("issue is resolved")
			}
			return nil
		},
		apply: func(s *Snapshot, in Input) {
			now := in.Now
			s.Escalation = EscalationEscalated
			s.EscalationDate = &now
		},
		events: events(timeline.EventEscalationTriggered),
	},
}

// Plan evaluates trigger against current and returns the next projection
// and the ordered event types the transition must append. The version is
// advanced so a conditional update detects concurrent writers.
func Plan(trigger Trigger, current Snapshot, in Input) (Snapshot, []timeline.EventType, error) {
	r, ok := rules[trigger]
	if !ok {
		return Snapshot{}, nil, fmt.Errorf("%w: %q", ErrUnknownTrigger, trigger)
	}
	if in.Now.IsZero() {
		in.Now = time.Now().UTC()
	}
	if err := r.guard(current, in); err != nil {
		return Snapshot{}, nil, err
	}

	next := current
	r.apply(&next, in)
	next.Version = current.Version + 1
	return next, r.events(in), nil
}

// Allowed reports whether trigger could fire against s right now.
func Allowed(trigger Trigger, s Snapshot, in Input) bool {
	r, ok := rules[trigger]
	if !ok {
		return false
	}
	return r.guard(s, in) == nil
}
