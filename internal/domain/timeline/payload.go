package timeline

import (
	"encoding/json"
	"fmt"
)

// payloadKindKey tags the stored metadata map with the variant that produced it.
const payloadKindKey = "payload_kind"

type PayloadKind string

const (
	PayloadSubmission   PayloadKind = "submission"
	PayloadVerification PayloadKind = "verification"
	PayloadWork         PayloadKind = "work"
	PayloadCitizen      PayloadKind = "citizen_response"
	PayloadEscalation   PayloadKind = "escalation"
	PayloadStatusChange PayloadKind = "status_change"
	PayloadComment      PayloadKind = "comment"
)

// Payload is the typed metadata of an event the lifecycle produces.
// It becomes an opaque map only at the ledger boundary.
type Payload interface {
	Kind() PayloadKind
}

type SubmissionPayload struct {
	Category  string   `json:"category"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

type VerificationPhase string

const (
	PhaseInitial    VerificationPhase = "initial"
	PhaseCrossCheck VerificationPhase = "cross_check"
)

// VerificationPayload records an AI verification attempt. Degraded is set
// when the service produced no result and the outcome was assumed.
type VerificationPayload struct {
	Phase      VerificationPhase `json:"phase"`
	Status     string            `json:"status,omitempty"`
	Confidence *float64          `json:"confidence,omitempty"`
	Reasoning  string            `json:"reasoning,omitempty"`
	RequestID  string            `json:"request_id,omitempty"`
	Degraded   bool              `json:"degraded,omitempty"`
}

type WorkPayload struct {
	Note       string `json:"note,omitempty"`
	ImageCount int    `json:"image_count,omitempty"`
	Resolution string `json:"resolution_date,omitempty"`
}

type CitizenResponsePayload struct {
	Outcome string `json:"outcome"`
	Reason  string `json:"reason,omitempty"`
}

type EscalationTrigger string

const (
	EscalationDispute  EscalationTrigger = "dispute"
	EscalationDeadline EscalationTrigger = "deadline"
	EscalationManual   EscalationTrigger = "manual"
)

type EscalationPayload struct {
	Trigger EscalationTrigger `json:"trigger"`
	Reason  string            `json:"reason,omitempty"`
}

type StatusChangePayload struct {
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
	Reason    string `json:"reason,omitempty"`
}

type CommentPayload struct {
	CommentID string `json:"comment_id,omitempty"`
}

func (SubmissionPayload) Kind() PayloadKind { return PayloadSubmission }
func (VerificationPayload) Kind() PayloadKind { return PayloadVerification }
func (WorkPayload) Kind() PayloadKind { return PayloadWork }
func (CitizenResponsePayload) Kind() PayloadKind { return PayloadCitizen }
func (EscalationPayload) Kind() PayloadKind { return PayloadEscalation }
func (StatusChangePayload) Kind() PayloadKind { return PayloadStatusChange }
func (CommentPayload) Kind() PayloadKind { return PayloadComment }

// ToMetadata flattens p into the opaque map stored with the event.
func ToMetadata(p Payload) (map[string]any, error) {
	if p == nil {
		return nil, nil
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", p.Kind(), err)
	}

	out := make(map[string]any)
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("flatten %s payload: %w", p.Kind(), err)
	}
	out[payloadKindKey] = string(p.Kind())
	return out, nil
}

// DecodePayload restores the typed variant from stored metadata.
// Metadata written by other producers has no kind tag and yields (nil, nil).
func DecodePayload(metadata map[string]any) (Payload, error) {
	if len(metadata) == 0 {
		return nil, nil
	}
	kind, _ := metadata[payloadKindKey].(string)
	if kind == "" {
		return nil, nil
	}

	var target Payload
	switch PayloadKind(kind) {
	case PayloadSubmission:
		target = &SubmissionPayload{}
	case PayloadVerification:
		target = &VerificationPayload{}
	case PayloadWork:
		target = &WorkPayload{}
	case PayloadCitizen:
		target = &CitizenResponsePayload{}
	case PayloadEscalation:
		target = &EscalationPayload{}
	case PayloadStatusChange:
		target = &StatusChangePayload{}
	case PayloadComment:
		target = &CommentPayload{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPayloadKind, kind)
	}

	raw, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", kind, err)
	}
	return target, nil
}
