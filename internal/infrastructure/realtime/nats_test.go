package realtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"civicfix/internal/ports"
)

func TestNATSSinkDisabledIsNoop(t *testing.T) {
	sink := NewNATSSink("", "")
	if sink.Enabled() {
		t.Fatalf("Enabled() = true without url")
	}
	if err := sink.Probe(context.Background()); !errors.Is(err, ErrBrokerDisabled) {
		t.Fatalf("Probe() error = %v, want ErrBrokerDisabled", err)
	}
	sink.SetAvailable(true)
	if err := sink.Deliver(context.Background(), ports.Message{Name: "issue_created", Channels: []string{"issue:1"}}); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func TestNATSSubjectMapping(t *testing.T) {
	sink := NewNATSSink("nats://127.0.0.1:4222", "civicfix.")
	if got := sink.Subject("issue:42"); got != "civicfix.issue.42" {
		t.Fatalf("Subject() = %q", got)
	}
	if got := sink.Subject("location:-339_1512"); got != "civicfix.location.-339_1512" {
		t.Fatalf("Subject() = %q", got)
	}
}

func TestNATSProbeFailsWithinDeadline(t *testing.T) {
	sink := NewNATSSink("nats://127.0.0.1:1", "civicfix")
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	started := time.Now()
	if err := sink.Probe(ctx); err == nil {
		t.Fatalf("Probe() expected error for unreachable broker")
	}
	if elapsed := time.Since(started); elapsed > 2*time.Second {
		t.Fatalf("Probe() took %s", elapsed)
	}
}
