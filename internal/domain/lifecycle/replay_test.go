package lifecycle

import (
	"errors"
	"testing"
	"time"

	"civicfix/internal/domain/timeline"
)

func mustMetadata(t *testing.T, p timeline.Payload) map[string]any {
	t.Helper()
	meta, err := timeline.ToMetadata(p)
	if err != nil {
		t.Fatalf("ToMetadata() error = %v", err)
	}
	return meta
}

func TestReplayResetsCycleOnRework(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	events := []timeline.Event{
		{Type: timeline.EventIssueCreated, CreatedAt: at},
		{Type: timeline.EventWorkStarted, CreatedAt: at},
		{Type: timeline.EventWorkCompleted, CreatedAt: at},
		{Type: timeline.EventCrossVerificationStarted, CreatedAt: at},
		{Type: timeline.EventCrossVerificationCompleted, CreatedAt: at},
		{Type: timeline.EventCitizenVerificationRequested, CreatedAt: at},
		{Type: timeline.EventIssueDisputed, CreatedAt: at},
		{Type: timeline.EventEscalationTriggered, CreatedAt: at},
		{Type: timeline.EventWorkCompleted, CreatedAt: at.Add(time.Hour)},
	}

	got := Replay(events)
	if got.CrossStatus != CrossNone || got.CitizenStatus != CitizenNotRequested {
		t.Fatalf("replayed rework = %+v", got)
	}
	if got.ResolutionDate == nil || !got.ResolutionDate.Equal(at.Add(time.Hour)) {
		t.Fatalf("resolution date = %v", got.ResolutionDate)
	}
	if got.Escalation != EscalationEscalated {
		t.Fatalf("escalation = %s", got.Escalation)
	}
}

func TestReplayMatchesPlannedProjection(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	events := []timeline.Event{
		{Type: timeline.EventIssueCreated, CreatedAt: at},
		{Type: timeline.EventAIVerificationStarted, CreatedAt: at},
		{Type: timeline.EventAIVerificationCompleted, CreatedAt: at},
		{Type: timeline.EventIssuePublished, CreatedAt: at},
		{Type: timeline.EventGovernmentAssigned, CreatedAt: at},
		{Type: timeline.EventWorkStarted, CreatedAt: at},
		{Type: timeline.EventWorkCompleted, CreatedAt: at},
		{Type: timeline.EventCrossVerificationStarted, CreatedAt: at},
		{
			Type:      timeline.EventCrossVerificationCompleted,
			CreatedAt: at,
			Metadata:  mustMetadata(t, timeline.VerificationPayload{Phase: timeline.PhaseCrossCheck, Status: "VERIFIED"}),
		},
		{Type: timeline.EventCitizenVerificationRequested, CreatedAt: at},
		{Type: timeline.EventIssueDisputed, CreatedAt: at},
		{Type: timeline.EventEscalationTriggered, CreatedAt: at},
		{Type: timeline.EventCommentAdded, CreatedAt: at},
	}

	got := Replay(events)
	if got.Status != StatusInProgress || got.AIStatus != AIVerified {
		t.Fatalf("replayed status = %+v", got)
	}
	if got.CrossStatus != CrossVerified || got.CitizenStatus != CitizenDisputed || got.Escalation != EscalationEscalated {
		t.Fatalf("replayed verification = %+v", got)
	}
	if got.CommentCount != 1 || got.ResolutionDate == nil {
		t.Fatalf("replayed counters = %+v", got)
	}

	if err := CheckConsistency(got, events); err != nil {
		t.Fatalf("CheckConsistency() error = %v", err)
	}

	drifted := got
	drifted.Status = StatusResolved
	if err := CheckConsistency(drifted, events); !errors.Is(err, ErrInconsistentView) {
		t.Fatalf("CheckConsistency(drifted) error = %v", err)
	}
}

func TestReplayStatusChangedUsesPayload(t *testing.T) {
	events := []timeline.Event{
		{Type: timeline.EventIssueCreated},
		{
			Type:     timeline.EventStatusChanged,
			Metadata: mustMetadata(t, timeline.StatusChangePayload{OldStatus: "REPORTED", NewStatus: "RESOLVED"}),
		},
	}
	if got := Replay(events); got.Status != StatusResolved {
		t.Fatalf("Replay() status = %s, want RESOLVED", got.Status)
	}
}
