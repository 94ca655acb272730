package lifecycle

import (
	"fmt"

	"civicfix/internal/domain/timeline"
)

// Replay folds an ordered timeline into the projection it implies.
// Version is the number of events folded, not the stored row version.
func Replay(events []timeline.Event) Snapshot {
	s := NewSnapshot()
	for _, event := range events {
		applyEvent(&s, event)
		s.Version++
	}
	return s
}

func applyEvent(s *Snapshot, event timeline.Event) {
	at := event.CreatedAt
	switch event.Type {
	case timeline.EventIssueCreated:
		*s = NewSnapshot()
	case timeline.EventIssuePublished:
		s.AIStatus = AIVerified
	case timeline.EventIssueRejected:
		s.AIStatus = AIRejected
	case timeline.EventWorkStarted:
		s.Status = StatusInProgress
	case timeline.EventWorkCompleted:
		s.ResolutionDate = &at
		s.CrossStatus = CrossNone
		s.CitizenStatus = CitizenNotRequested
	case timeline.EventCrossVerificationStarted:
		s.CrossStatus = CrossPending
	case timeline.EventCrossVerificationCompleted:
		s.CrossStatus = CrossUnavailable
		if payload, err := timeline.DecodePayload(event.Metadata); err == nil {
			if vp, ok := payload.(*timeline.VerificationPayload); ok && !vp.Degraded {
				s.CrossStatus = CrossStatusFromResult(vp.Status, true)
			}
		}
	case timeline.EventCitizenVerificationRequested:
		s.CitizenStatus = CitizenRequested
	case timeline.EventCitizenVerificationCompleted:
		s.CitizenStatus = CitizenConfirmed
	case timeline.EventIssueClosed:
		s.Status = StatusResolved
	case timeline.EventIssueDisputed:
		s.CitizenStatus = CitizenDisputed
	case timeline.EventEscalationTriggered:
		s.Escalation = EscalationEscalated
		s.EscalationDate = &at
	case timeline.EventCommentAdded:
		s.CommentCount++
	case timeline.EventStatusChanged:
		if payload, err := timeline.DecodePayload(event.Metadata); err == nil {
			if sc, ok := payload.(*timeline.StatusChangePayload); ok {
				if next, err := ParseStatus(sc.NewStatus); err == nil {
					s.Status = next
				}
			}
		}
	}
}

// CheckConsistency compares a stored projection against the replayed
// timeline. Dates and versions are not compared.
func CheckConsistency(stored Snapshot, events []timeline.Event) error {
	replayed := Replay(events)

	mismatches := make([]string, 0, 4)
	if stored.Status != replayed.Status {
		mismatches = append(mismatches, fmt.Sprintf("status %s != %s", stored.Status, replayed.Status))
	}
	if stored.AIStatus != replayed.AIStatus {
		mismatches = append(mismatches, fmt.Sprintf("ai %s != %s", stored.AIStatus, replayed.AIStatus))
	}
	if stored.CitizenStatus != replayed.CitizenStatus {
		mismatches = append(mismatches, fmt.Sprintf("citizen %s != %s", stored.CitizenStatus, replayed.CitizenStatus))
	}
	if stored.CrossStatus != replayed.CrossStatus {
		mismatches = append(mismatches, fmt.Sprintf("cross %s != %s", stored.CrossStatus, replayed.CrossStatus))
	}
	if stored.Escalation != replayed.Escalation {
		mismatches = append(mismatches, fmt.Sprintf("escalation %s != %s", stored.Escalation, replayed.Escalation))
	}
	if stored.CommentCount != replayed.CommentCount {
		mismatches = append(mismatches, fmt.Sprintf("comments %d != %d", stored.CommentCount, replayed.CommentCount))
	}
	if len(mismatches) > 0 {
		return fmt.Errorf("%w: %v", ErrInconsistentView, mismatches)
	}
	return nil
}
