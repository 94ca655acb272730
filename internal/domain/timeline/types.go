package timeline

import (
	"fmt"
	"strings"
)

type EventType string

const (
	EventIssueCreated                 EventType = "ISSUE_CREATED"
	EventAIVerificationStarted        EventType = "AI_VERIFICATION_STARTED"
	EventAIVerificationCompleted      EventType = "AI_VERIFICATION_COMPLETED"
	EventIssuePublished               EventType = "ISSUE_PUBLISHED"
	EventIssueRejected                EventType = "ISSUE_REJECTED"
	EventGovernmentAssigned           EventType = "GOVERNMENT_ASSIGNED"
	EventWorkStarted                  EventType = "WORK_STARTED"
	EventWorkCompleted                EventType = "WORK_COMPLETED"
	EventCrossVerificationStarted     EventType = "CROSS_VERIFICATION_STARTED"
	EventCrossVerificationCompleted   EventType = "CROSS_VERIFICATION_COMPLETED"
	EventCitizenVerificationRequested EventType = "CITIZEN_VERIFICATION_REQUESTED"
	EventCitizenVerificationCompleted EventType = "CITIZEN_VERIFICATION_COMPLETED"
	EventIssueClosed                  EventType = "ISSUE_CLOSED"
	EventIssueDisputed                EventType = "ISSUE_DISPUTED"
	EventEscalationTriggered          EventType = "ESCALATION_TRIGGERED"
	EventCommentAdded                 EventType = "COMMENT_ADDED"
	EventStatusChanged                EventType = "STATUS_CHANGED"
)

var eventTypes = map[EventType]struct{}{
	EventIssueCreated:                 {},
	EventAIVerificationStarted:        {},
	EventAIVerificationCompleted:      {},
	EventIssuePublished:               {},
	EventIssueRejected:                {},
	EventGovernmentAssigned:           {},
	EventWorkStarted:                  {},
	EventWorkCompleted:                {},
	EventCrossVerificationStarted:     {},
	EventCrossVerificationCompleted:   {},
	EventCitizenVerificationRequested: {},
	EventCitizenVerificationCompleted: {},
	EventIssueClosed:                  {},
	EventIssueDisputed:                {},
	EventEscalationTriggered:          {},
	EventCommentAdded:                 {},
	EventStatusChanged:                {},
}

func (t EventType) Valid() bool {
	_, ok := eventTypes[t]
	return ok
}

func (t EventType) String() string { return string(t) }

// ParseEventType accepts any casing and surrounding whitespace.
func ParseEventType(raw string) (EventType, error) {
	candidate := EventType(strings.ToUpper(strings.TrimSpace(raw)))
	if !candidate.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownEventType, raw)
	}
	return candidate, nil
}

type ActorType string

const (
	ActorCitizen    ActorType = "CITIZEN"
	ActorAI         ActorType = "AI"
	ActorGovernment ActorType = "GOVERNMENT"
	ActorSystem     ActorType = "SYSTEM"
)

func (a ActorType) Valid() bool {
	switch a {
	case ActorCitizen, ActorAI, ActorGovernment, ActorSystem:
		return true
	default:
		return false
	}
}

func (a ActorType) String() string { return string(a) }

// IsAdmin reports whether the actor may override workflow status.
func (a ActorType) IsAdmin() bool {
	return a == ActorGovernment || a == ActorSystem
}

func ParseActorType(raw string) (ActorType, error) {
	candidate := ActorType(strings.ToUpper(strings.TrimSpace(raw)))
	if !candidate.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownActorType, raw)
	}
	return candidate, nil
}
