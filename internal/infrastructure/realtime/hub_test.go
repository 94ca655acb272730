package realtime

import (
	"context"
	"sync"
	"testing"

	"civicfix/internal/bootstrap/config"
	"civicfix/internal/ports"
)

func TestHubDeliversOnlyToRoomMembers(t *testing.T) {
	hub := NewHub(config.DistributionConfig{Shards: 4, SubscriberQueueSize: 8}, nil)
	issueWatcher := hub.Register()
	areaWatcher := hub.Register()
	bystander := hub.Register()

	hub.Join(issueWatcher, "issue:9")
	hub.Join(areaWatcher, "location:129_775")
	hub.Join(bystander, "issue:10")

	err := hub.Deliver(context.Background(), ports.Message{
		Name:     "issue_created",
		Channels: []string{"issue:9", "location:129_775"},
		Payload:  map[string]any{"issue_id": 9},
	})
	if err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}

	if got := len(issueWatcher.send); got != 1 {
		t.Fatalf("issue watcher frames = %d, want 1", got)
	}
	frame := <-areaWatcher.Frames()
	if frame.Channel != "location:129_775" || frame.Event != "issue_created" {
		t.Fatalf("area watcher frame = %+v", frame)
	}
	if got := len(bystander.send); got != 0 {
		t.Fatalf("bystander frames = %d, want 0", got)
	}
}

func TestHubUnregisterRemovesEveryMembership(t *testing.T) {
	hub := NewHub(config.DistributionConfig{}, nil)
	sub := hub.Register()
	hub.Join(sub, "issue:1")
	hub.Join(sub, "location:1_2")
	if hub.RoomSize("issue:1") != 1 || hub.RoomSize("location:1_2") != 1 {
		t.Fatalf("join did not register memberships")
	}

	hub.Leave(sub, "issue:1")
	if hub.RoomSize("issue:1") != 0 {
		t.Fatalf("Leave() kept membership")
	}

	hub.Unregister(sub)
	if hub.RoomSize("location:1_2") != 0 {
		t.Fatalf("Unregister() kept membership")
	}
	if _, ok := <-sub.Frames(); ok {
		t.Fatalf("frame stream should be closed after Unregister()")
	}
	hub.Unregister(sub)
	hub.Join(sub, "issue:1")
	if hub.RoomSize("issue:1") != 0 {
		t.Fatalf("closed subscriber rejoined a room")
	}
}

func TestHubDropsFramesForSlowSubscriber(t *testing.T) {
	hub := NewHub(config.DistributionConfig{SubscriberQueueSize: 2}, nil)
	slow := hub.Register()
	hub.Join(slow, "issue:3")

	for i := 0; i < 5; i++ {
		if err := hub.Deliver(context.Background(), ports.Message{Name: "comment_added", Channels: []string{"issue:3"}, Payload: i}); err != nil {
			t.Fatalf("Deliver() error = %v", err)
		}
	}
	if got := len(slow.send); got != 2 {
		t.Fatalf("buffered frames = %d, want 2", got)
	}
	if first := <-slow.Frames(); first.Data != 0 {
		t.Fatalf("first frame = %+v, want the oldest kept", first)
	}
}

func TestHubConcurrentJoinDeliverUnregister(t *testing.T) {
	hub := NewHub(config.DistributionConfig{Shards: 2, SubscriberQueueSize: 4}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub := hub.Register()
			hub.Join(sub, "issue:1")
			_ = hub.Deliver(context.Background(), ports.Message{Name: "issue_status_updated", Channels: []string{"issue:1"}})
			hub.Unregister(sub)
		}()
	}
	wg.Wait()

	if size := hub.RoomSize("issue:1"); size != 0 {
		t.Fatalf("RoomSize() = %d after all subscribers left", size)
	}
}
