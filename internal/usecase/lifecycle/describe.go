package lifecycle

import (
	"fmt"
	"strings"
	"unicode/utf8"

	domainlifecycle "civicfix/internal/domain/lifecycle"
	"civicfix/internal/domain/timeline"
	"civicfix/internal/ports"
)

const excerptLength = 200

func systemEvent(description string, payload timeline.Payload) eventSpec {
	return eventSpec{actor: timeline.ActorSystem, description: description, payload: payload}
}

// excerpt shortens free text for an event description.
func excerpt(text string) string {
	trimmed := strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(trimmed) <= excerptLength {
		return trimmed
	}
	runes := []rune(trimmed)
	return string(runes[:excerptLength-3]) + "..."
}

func verificationSummary(label string, payload timeline.VerificationPayload) string {
	if payload.Degraded {
		return label + " completed without a result"
	}
	if payload.Confidence != nil {
		return fmt.Sprintf("%s completed: %s (confidence %.2f)", label, payload.Status, *payload.Confidence)
	}
	return fmt.Sprintf("%s completed: %s", label, payload.Status)
}

func verificationPayload(phase timeline.VerificationPhase, result *ports.VerificationResult) timeline.VerificationPayload {
	if result == nil {
		return timeline.VerificationPayload{Phase: phase, Degraded: true}
	}
	return timeline.VerificationPayload{
		Phase:      phase,
		Status:     strings.ToUpper(strings.TrimSpace(result.Status)),
		Confidence: result.Confidence,
		Reasoning:  result.Reasoning,
		RequestID:  result.RequestID,
	}
}

func statusChangeDescription(from domainlifecycle.Status, to domainlifecycle.Status, reason string) string {
	description := fmt.Sprintf("Status changed from %s to %s", from, to)
	if reason = excerpt(reason); reason != "" {
		description += ": " + reason
	}
	return description
}

func locationPayload(location *ports.Location) (*float64, *float64) {
	if location == nil {
		return nil, nil
	}
	lat, lon := location.Latitude, location.Longitude
	return &lat, &lon
}
