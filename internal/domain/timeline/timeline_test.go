package timeline

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParseEventType(t *testing.T) {
	got, err := ParseEventType(" issue_created ")
	if err != nil {
		t.Fatalf("ParseEventType() error = %v", err)
	}
	if got != EventIssueCreated {
		t.Fatalf("ParseEventType() = %q", got)
	}

	if _, err := ParseEventType("AI_VERIFIED"); !errors.Is(err, ErrUnknownEventType) {
		t.Fatalf("ParseEventType(unknown) error = %v, want ErrUnknownEventType", err)
	}
	if len(eventTypes) != 17 {
		t.Fatalf("event vocabulary size = %d, want 17", len(eventTypes))
	}
}

func TestActorTypeAdmin(t *testing.T) {
	testCases := []struct {
		actor ActorType
		admin bool
	}{
		{actor: ActorCitizen, admin: false},
		{actor: ActorAI, admin: false},
		{actor: ActorGovernment, admin: true},
		{actor: ActorSystem, admin: true},
	}
	for _, testCase := range testCases {
		if got := testCase.actor.IsAdmin(); got != testCase.admin {
			t.Fatalf("%s.IsAdmin() = %v, want %v", testCase.actor, got, testCase.admin)
		}
	}

	if _, err := ParseActorType("robot"); !errors.Is(err, ErrUnknownActorType) {
		t.Fatalf("ParseActorType(robot) error = %v", err)
	}
}

func TestNormalizeDescription(t *testing.T) {
	if _, err := NormalizeDescription("   "); !errors.Is(err, ErrDescriptionRequired) {
		t.Fatalf("blank description error = %v", err)
	}
	if _, err := NormalizeDescription(strings.Repeat("é", MaxDescriptionLength+1)); !errors.Is(err, ErrDescriptionTooLong) {
		t.Fatalf("long description error = %v", err)
	}
	got, err := NormalizeDescription(strings.Repeat("é", MaxDescriptionLength))
	if err != nil {
		t.Fatalf("limit description error = %v", err)
	}
	if len([]rune(got)) != MaxDescriptionLength {
		t.Fatalf("description runes = %d", len([]rune(got)))
	}
}

func TestTimestampOrderingIsLexical(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	earlier := FormatTimestamp(base.Add(900 * time.Millisecond))
	later := FormatTimestamp(base.Add(time.Second + time.Nanosecond))
	if !(earlier < later) {
		t.Fatalf("lexical order broken: %q >= %q", earlier, later)
	}

	parsed, err := ParseTimestamp(later)
	if err != nil {
		t.Fatalf("ParseTimestamp() error = %v", err)
	}
	if !parsed.Equal(base.Add(time.Second + time.Nanosecond)) {
		t.Fatalf("ParseTimestamp() = %s", parsed)
	}
}

func TestPayloadMetadataRoundTrip(t *testing.T) {
	confidence := 0.9
	meta, err := ToMetadata(VerificationPayload{
		Phase:      PhaseInitial,
		Status:     "VERIFIED",
		Confidence: &confidence,
	})
	if err != nil {
		t.Fatalf("ToMetadata() error = %v", err)
	}
	if meta["payload_kind"] != "verification" || meta["status"] != "VERIFIED" {
		t.Fatalf("metadata = %v", meta)
	}

	decoded, err := DecodePayload(meta)
	if err != nil {
		t.Fatalf("DecodePayload() error = %v", err)
	}
	vp, ok := decoded.(*VerificationPayload)
	if !ok {
		t.Fatalf("DecodePayload() type = %T", decoded)
	}
	if vp.Confidence == nil || *vp.Confidence != 0.9 {
		t.Fatalf("confidence = %v", vp.Confidence)
	}
}

func TestDecodePayloadForeignMetadata(t *testing.T) {
	decoded, err := DecodePayload(map[string]any{"source": "legacy"})
	if err != nil || decoded != nil {
		t.Fatalf("DecodePayload(untagged) = %v, %v", decoded, err)
	}
	if _, err := DecodePayload(map[string]any{"payload_kind": "mystery"}); !errors.Is(err, ErrUnknownPayloadKind) {
		t.Fatalf("DecodePayload(unknown kind) error = %v", err)
	}
}
