package realtime

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"civicfix/internal/bootstrap/config"
	"civicfix/internal/bootstrap/logging"
	"civicfix/internal/platform/metrics"
	"civicfix/internal/ports"
)

const (
	defaultShards              = 16
	defaultSubscriberQueueSize = 64
)

// Frame is one server-to-client message.
type Frame struct {
	Event   string `json:"event"`
	Channel string `json:"channel,omitempty"`
	Data    any    `json:"data"`
}

// Subscriber is one connected client. Frames are buffered up to a fixed
// depth; a slow subscriber loses frames instead of stalling delivery.
type Subscriber struct {
	id   string
	send chan Frame

	mu       sync.Mutex
	closed   bool
	channels map[string]struct{}
}

func (s *Subscriber) ID() string { return s.id }

// Frames is closed when the subscriber is unregistered.
func (s *Subscriber) Frames() <-chan Frame { return s.send }

func (s *Subscriber) offer(frame Frame) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.send <- frame:
		return true
	default:
		return false
	}
}

// Channels returns the rooms the subscriber is currently in.
func (s *Subscriber) Channels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.channels))
	for channel := range s.channels {
		out = append(out, channel)
	}
	return out
}

type shard struct {
	mu    sync.RWMutex
	rooms map[string]map[string]*Subscriber
}

// Hub is the in-process room registry, sharded by channel name.
type Hub struct {
	shards    []*shard
	queueSize int
	metrics   *metrics.Metrics
}

var _ ports.DistributionSink = (*Hub)(nil)

func NewHub(cfg config.DistributionConfig, m *metrics.Metrics) *Hub {
	count := cfg.Shards
	if count <= 0 {
		count = defaultShards
	}
	queueSize := cfg.SubscriberQueueSize
	if queueSize <= 0 {
		queueSize = defaultSubscriberQueueSize
	}
	shards := make([]*shard, count)
	for i := range shards {
		shards[i] = &shard{rooms: map[string]map[string]*Subscriber{}}
	}
	return &Hub{shards: shards, queueSize: queueSize, metrics: m}
}

func (h *Hub) shardFor(channel string) *shard {
	hasher := fnv.New32a()
	_, _ = hasher.Write([]byte(channel))
	return h.shards[hasher.Sum32()%uint32(len(h.shards))]
}

func (h *Hub) Register() *Subscriber {
	h.metrics.AddSubscribers(1)
	return &Subscriber{
		id:       uuid.NewString(),
		send:     make(chan Frame, h.queueSize),
		channels: map[string]struct{}{},
	}
}

func (h *Hub) Join(sub *Subscriber, channel string) {
	sub.mu.Lock()
	if sub.closed {
		sub.mu.Unlock()
		return
	}
	sub.channels[channel] = struct{}{}
	sub.mu.Unlock()

	s := h.shardFor(channel)
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[channel]
	if !ok {
		room = map[string]*Subscriber{}
		s.rooms[channel] = room
	}
	room[sub.id] = sub
}

func (h *Hub) Leave(sub *Subscriber, channel string) {
	sub.mu.Lock()
	delete(sub.channels, channel)
	sub.mu.Unlock()
	h.removeFromRoom(sub.id, channel)
}

func (h *Hub) removeFromRoom(subscriberID string, channel string) {
	s := h.shardFor(channel)
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[channel]
	if !ok {
		return
	}
	delete(room, subscriberID)
	if len(room) == 0 {
		delete(s.rooms, channel)
	}
}

// Unregister drops every membership of sub and closes its frame stream.
func (h *Hub) Unregister(sub *Subscriber) {
	sub.mu.Lock()
	if sub.closed {
		sub.mu.Unlock()
		return
	}
	sub.closed = true
	channels := sub.channels
	sub.channels = map[string]struct{}{}
	close(sub.send)
	sub.mu.Unlock()

	for channel := range channels {
		h.removeFromRoom(sub.id, channel)
	}
	h.metrics.AddSubscribers(-1)
}

// Send queues a direct reply to one subscriber.
func (h *Hub) Send(sub *Subscriber, frame Frame) bool {
	return sub.offer(frame)
}

// RoomSize reports how many subscribers are in channel.
func (h *Hub) RoomSize(channel string) int {
	s := h.shardFor(channel)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms[channel])
}

func (h *Hub) Name() string { return "hub" }

func (h *Hub) Deliver(ctx context.Context, msg ports.Message) error {
	for _, channel := range msg.Channels {
		s := h.shardFor(channel)
		s.mu.RLock()
		members := make([]*Subscriber, 0, len(s.rooms[channel]))
		for _, sub := range s.rooms[channel] {
			members = append(members, sub)
		}
		s.mu.RUnlock()

		frame := Frame{Event: msg.Name, Channel: channel, Data: msg.Payload}
		for _, sub := range members {
			if !sub.offer(frame) {
				h.metrics.IncDropped("subscriber_full")
				logging.Debug(ctx, "subscriber queue full, dropping frame",
					slog.String("subscriber_id", sub.id),
					slog.String("channel", channel),
				)
			}
		}
	}
	return nil
}
