package lifecycle

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"civicfix/internal/domain/timeline"
)

func TestPlanHappyPath(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s, evs, err := Plan(TriggerSubmit, Snapshot{}, Input{Actor: timeline.ActorCitizen, Now: now})
	if err != nil {
		t.Fatalf("Plan(submit) error = %v", err)
	}
	if s.Status != StatusReported || s.AIStatus != AIPending {
		t.Fatalf("submit snapshot = %+v", s)
	}
	if !reflect.DeepEqual(evs, []timeline.EventType{timeline.EventIssueCreated}) {
		t.Fatalf("submit events = %v", evs)
	}

	steps := []struct {
		trigger Trigger
		in      Input
		want    []timeline.EventType
	}{
		{TriggerStartVerification, Input{Actor: timeline.ActorAI}, []timeline.EventType{timeline.EventAIVerificationStarted}},
		{TriggerApplyVerification, Input{Actor: timeline.ActorAI, AIResult: AIVerified}, []timeline.EventType{timeline.EventAIVerificationCompleted, timeline.EventIssuePublished}},
		{TriggerAssign, Input{Actor: timeline.ActorGovernment}, []timeline.EventType{timeline.EventGovernmentAssigned, timeline.EventWorkStarted}},
		{TriggerCompleteWork, Input{Actor: timeline.ActorGovernment, Now: now}, []timeline.EventType{timeline.EventWorkCompleted}},
		{TriggerStartCrossCheck, Input{Actor: timeline.ActorSystem}, []timeline.EventType{timeline.EventCrossVerificationStarted}},
		{TriggerApplyCrossCheck, Input{Actor: timeline.ActorAI, CrossResult: CrossVerified}, []timeline.EventType{timeline.EventCrossVerificationCompleted, timeline.EventCitizenVerificationRequested}},
		{TriggerConfirm, Input{Actor: timeline.ActorCitizen}, []timeline.EventType{timeline.EventCitizenVerificationCompleted, timeline.EventIssueClosed}},
	}

	for _, step := range steps {
		next, got, err := Plan(step.trigger, s, step.in)
		if err != nil {
			t.Fatalf("Plan(%s) error = %v", step.trigger, err)
		}
		if !reflect.DeepEqual(got, step.want) {
			t.Fatalf("Plan(%s) events = %v, want %v", step.trigger, got, step.want)
		}
		if next.Version != s.Version+1 {
			t.Fatalf("Plan(%s) version = %d, want %d", step.trigger, next.Version, s.Version+1)
		}
		s = next
	}

	if s.Status != StatusResolved || s.CitizenStatus != CitizenConfirmed || s.CrossStatus != CrossVerified {
		t.Fatalf("final snapshot = %+v", s)
	}
}

func TestPlanRejectsStalePreconditions(t *testing.T) {
	reported := NewSnapshot()
	inProgress := reported
	inProgress.Status = StatusInProgress
	completed := inProgress
	resolvedAt := time.Now()
	completed.ResolutionDate = &resolvedAt

	testCases := []struct {
		name    string
		trigger Trigger
		state   Snapshot
		in      Input
	}{
		{name: "verify twice", trigger: TriggerApplyVerification, state: Snapshot{AIStatus: AIVerified}, in: Input{AIResult: AIVerified}},
		{name: "assign in progress", trigger: TriggerAssign, state: inProgress},
		{name: "complete before assign", trigger: TriggerCompleteWork, state: reported},
		{name: "complete twice", trigger: TriggerCompleteWork, state: completed},
		{name: "cross check before work", trigger: TriggerStartCrossCheck, state: inProgress},
		{name: "apply cross check unstarted", trigger: TriggerApplyCrossCheck, state: completed},
		{name: "confirm unrequested", trigger: TriggerConfirm, state: completed},
		{name: "dispute unrequested", trigger: TriggerDispute, state: completed},
		{name: "override same status", trigger: TriggerOverride, state: reported, in: Input{Actor: timeline.ActorGovernment, NewStatus: StatusReported}},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			_, _, err := Plan(testCase.trigger, testCase.state, testCase.in)
			if !errors.Is(err, ErrStaleTransition) {
				t.Fatalf("Plan() error = %v, want ErrStaleTransition", err)
			}
		})
	}
}

func TestOverrideRequiresAdmin(t *testing.T) {
	_, _, err := Plan(TriggerOverride, NewSnapshot(), Input{Actor: timeline.ActorCitizen, NewStatus: StatusResolved})
	if !errors.Is(err, ErrActorNotAllowed) {
		t.Fatalf("Plan(override by citizen) error = %v", err)
	}

	next, evs, err := Plan(TriggerOverride, NewSnapshot(), Input{Actor: timeline.ActorSystem, NewStatus: StatusResolved})
	if err != nil {
		t.Fatalf("Plan(override by system) error = %v", err)
	}
	if next.Status != StatusResolved || len(evs) != 1 || evs[0] != timeline.EventStatusChanged {
		t.Fatalf("override result = %+v %v", next, evs)
	}
}

func TestDisputeEscalatesWithoutChangingStatus(t *testing.T) {
	s := NewSnapshot()
	s.Status = StatusInProgress
	s.CitizenStatus = CitizenRequested

	next, evs, err := Plan(TriggerDispute, s, Input{Actor: timeline.ActorCitizen})
	if err != nil {
		t.Fatalf("Plan(dispute) error = %v", err)
	}
	if next.Status != StatusInProgress || next.Escalation != EscalationEscalated || next.EscalationDate == nil {
		t.Fatalf("dispute snapshot = %+v", next)
	}
	if !reflect.DeepEqual(evs, []timeline.EventType{timeline.EventIssueDisputed, timeline.EventEscalationTriggered}) {
		t.Fatalf("dispute events = %v", evs)
	}

	if _, _, err := Plan(TriggerEscalate, next, Input{}); !errors.Is(err, ErrStaleTransition) {
		t.Fatalf("Plan(escalate twice) error = %v", err)
	}
}

func TestDisputedResolutionReopensWork(t *testing.T) {
	first := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s := NewSnapshot()
	s.Status = StatusInProgress
	s.ResolutionDate = &first
	s.CrossStatus = CrossVerified
	s.CitizenStatus = CitizenRequested

	if _, _, err := Plan(TriggerCompleteWork, s, Input{Actor: timeline.ActorGovernment}); !errors.Is(err, ErrStaleTransition) {
		t.Fatalf("Plan(complete before dispute) error = %v", err)
	}

	disputed, _, err := Plan(TriggerDispute, s, Input{Actor: timeline.ActorCitizen})
	if err != nil {
		t.Fatalf("Plan(dispute) error = %v", err)
	}

	second := first.Add(48 * time.Hour)
	reworked, evs, err := Plan(TriggerCompleteWork, disputed, Input{Actor: timeline.ActorGovernment, Now: second})
	if err != nil {
		t.Fatalf("Plan(complete after dispute) error = %v", err)
	}
	if len(evs) != 1 || evs[0] != timeline.EventWorkCompleted {
		t.Fatalf("rework events = %v", evs)
	}
	if reworked.ResolutionDate == nil || !reworked.ResolutionDate.Equal(second) {
		t.Fatalf("resolution date = %v, want %v", reworked.ResolutionDate, second)
	}
	if reworked.CrossStatus != CrossNone || reworked.CitizenStatus != CitizenNotRequested {
		t.Fatalf("rework snapshot = %+v", reworked)
	}
	if reworked.Escalation != EscalationEscalated {
		t.Fatalf("escalation = %s, want kept", reworked.Escalation)
	}
	if _, _, err := Plan(TriggerCompleteWork, reworked, Input{Actor: timeline.ActorGovernment}); !errors.Is(err, ErrStaleTransition) {
		t.Fatalf("Plan(complete twice) error = %v", err)
	}
	if !Allowed(TriggerStartCrossCheck, reworked, Input{}) {
		t.Fatalf("cross-check not allowed after rework")
	}
}

func TestResultMapping(t *testing.T) {
	if AIStatusFromResult("verified", true) != AIVerified {
		t.Fatalf("verified result should map to VERIFIED")
	}
	if AIStatusFromResult("VERIFIED", false) != AIRejected {
		t.Fatalf("missing result should map to REJECTED")
	}
	if AIStatusFromResult("NEEDS_REVIEW", true) != AIRejected {
		t.Fatalf("unknown verdict should map to REJECTED")
	}
	if CrossStatusFromResult("", false) != CrossUnavailable {
		t.Fatalf("missing cross result should be UNAVAILABLE")
	}
	if CrossStatusFromResult("rejected", true) != CrossRejected {
		t.Fatalf("rejected cross result should be REJECTED")
	}
}

func TestUnknownTrigger(t *testing.T) {
	if _, _, err := Plan(Trigger("teleport"), NewSnapshot(), Input{}); !errors.Is(err, ErrUnknownTrigger) {
		t.Fatalf("Plan(unknown) error = %v", err)
	}
	if Allowed(Trigger("teleport"), NewSnapshot(), Input{}) {
		t.Fatalf("Allowed(unknown) = true")
	}
}
