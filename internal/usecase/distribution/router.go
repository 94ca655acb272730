package distribution

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"civicfix/internal/bootstrap/config"
	"civicfix/internal/bootstrap/logging"
	"civicfix/internal/domain/timeline"
	"civicfix/internal/errs"
	"civicfix/internal/platform/metrics"
	"civicfix/internal/ports"
)

const defaultQueueSize = 1024

// Router fans committed lifecycle events out to every sink. Publish never
// blocks: when the queue is full the new message is dropped.
type Router struct {
	queue   chan ports.Message
	sinks   []ports.DistributionSink
	metrics *metrics.Metrics

	mu      sync.RWMutex
	started bool
	closed  bool
	done    chan struct{}
}

var _ ports.EventPublisher = (*Router)(nil)

func NewRouter(cfg config.DistributionConfig, m *metrics.Metrics, sinks ...ports.DistributionSink) *Router {
	size := cfg.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	kept := make([]ports.DistributionSink, 0, len(sinks))
	for _, sink := range sinks {
		if sink != nil {
			kept = append(kept, sink)
		}
	}
	return &Router{
		queue:   make(chan ports.Message, size),
		sinks:   kept,
		metrics: m,
		done:    make(chan struct{}),
	}
}

func (r *Router) Publish(ctx context.Context, event timeline.Event, location *ports.Location) {
	r.enqueue(ctx, ports.Message{
		Name:     EventName(event.Type),
		Channels: Channels(event.IssueID, location),
		Payload:  newEventPayload(event, location),
	})
}

func (r *Router) PublishUpvote(ctx context.Context, issueID uint64, location *ports.Location, upvotes int64) {
	r.enqueue(ctx, ports.Message{
		Name:     NameIssueUpvoted,
		Channels: Channels(issueID, location),
		Payload:  UpvotePayload{IssueID: issueID, UpvoteCount: upvotes},
	})
}

func (r *Router) enqueue(ctx context.Context, msg ports.Message) {
	if ctx == nil {
		ctx = context.Background()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.metrics.IncDropped("stopped")
		logging.Warn(ctx, "distribution router stopped, dropping message", slog.String("event", msg.Name))
		return
	}

	select {
	case r.queue <- msg:
	default:
		r.metrics.IncDropped("queue_full")
		logging.Warn(ctx, "distribution queue full, dropping message",
			slog.String("component", "distribution.router"),
			slog.String("event", msg.Name),
			slog.Any("channels", msg.Channels),
		)
	}
}

// Start launches the single delivery worker. Messages are delivered in
// publish order.
func (r *Router) Start(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return errors.New("distribution router already stopped")
	}
	if r.started {
		return nil
	}
	r.started = true

	workerCtx := logging.WithAttrs(context.WithoutCancel(ctx), slog.String("component", "distribution.router"))
	go r.run(workerCtx)
	return nil
}

func (r *Router) run(ctx context.Context) {
	defer close(r.done)
	for msg := range r.queue {
		r.deliver(ctx, msg)
	}
}

func (r *Router) deliver(ctx context.Context, msg ports.Message) {
	for _, sink := range r.sinks {
		if err := sink.Deliver(ctx, msg); err != nil {
			r.metrics.IncSinkError(sink.Name())
			logging.Warn(ctx, "distribution sink delivery failed",
				slog.String("sink", sink.Name()),
				slog.String("event", msg.Name),
				slog.Any("err", errs.Loggable(err)),
			)
			continue
		}
		r.metrics.IncPublished(sink.Name())
	}
}

// Stop refuses new messages and waits for the queue to drain or ctx to end.
func (r *Router) Stop(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	started := r.started
	close(r.queue)
	r.mu.Unlock()

	if !started {
		return nil
	}
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return errs.Wrap(ctx.Err(), "drain distribution queue")
	}
}
