package lifecycle

import (
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusReported   Status = "REPORTED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusResolved   Status = "RESOLVED"
)

func (s Status) Valid() bool {
	return s == StatusReported || s == StatusInProgress || s == StatusResolved
}

func ParseStatus(raw string) (Status, error) {
	candidate := Status(strings.ToUpper(strings.TrimSpace(raw)))
	if !candidate.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return candidate, nil
}

type AIStatus string

const (
	AIPending  AIStatus = "PENDING"
	AIVerified AIStatus = "VERIFIED"
	AIRejected AIStatus = "REJECTED"
)

// AIStatusFromResult maps a service verdict to the terminal initial-check
// status. A missing verdict or anything but VERIFIED counts as rejected.
func AIStatusFromResult(status string, ok bool) AIStatus {
	if ok && strings.EqualFold(strings.TrimSpace(status), string(AIVerified)) {
		return AIVerified
	}
	return AIRejected
}

type CitizenStatus string

const (
	CitizenNotRequested CitizenStatus = "NOT_REQUESTED"
	CitizenRequested    CitizenStatus = "REQUESTED"
	CitizenConfirmed    CitizenStatus = "CONFIRMED"
	CitizenDisputed     CitizenStatus = "DISPUTED"
)

type CrossStatus string

const (
	CrossNone        CrossStatus = "NONE"
	CrossPending     CrossStatus = "PENDING"
	CrossVerified    CrossStatus = "VERIFIED"
	CrossRejected    CrossStatus = "REJECTED"
	CrossUnavailable CrossStatus = "UNAVAILABLE"
)

// CrossStatusFromResult maps a cross-check verdict; no verdict is UNAVAILABLE.
func CrossStatusFromResult(status string, ok bool) CrossStatus {
	if !ok {
		return CrossUnavailable
	}
	switch CrossStatus(strings.ToUpper(strings.TrimSpace(status))) {
	case CrossVerified:
		return CrossVerified
	case CrossRejected:
		return CrossRejected
	default:
		return CrossUnavailable
	}
}

type EscalationStatus string

const (
	EscalationNone      EscalationStatus = "NONE"
	EscalationEscalated EscalationStatus = "ESCALATED"
)

// Snapshot is the projection of one issue's lifecycle columns.
type Snapshot struct {
	Status         Status
	AIStatus       AIStatus
	CitizenStatus  CitizenStatus
	CrossStatus    CrossStatus
	Escalation     EscalationStatus
	ResolutionDate *time.Time
	EscalationDate *time.Time
	CommentCount   int64
	Version        int64
}

// NewSnapshot is the state of a freshly submitted issue.
func NewSnapshot() Snapshot {
	return Snapshot{
		Status:        StatusReported,
		AIStatus:      AIPending,
		CitizenStatus: CitizenNotRequested,
		CrossStatus:   CrossNone,
		Escalation:    EscalationNone,
	}
}
