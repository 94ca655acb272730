package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"civicfix/internal/errs"
	"civicfix/internal/ports"
)

// ErrBrokerDisabled is returned by Probe when no broker URL is configured.
var ErrBrokerDisabled = errors.New("nats bridge disabled")

const defaultSubjectPrefix = "civicfix"

// NATSSink republishes distribution messages onto NATS subjects such as
// civicfix.issue.42 and civicfix.location.129_775. Without a connection,
// or while marked unavailable, it accepts and discards messages.
type NATSSink struct {
	url    string
	prefix string

	mu        sync.Mutex
	conn      *nats.Conn
	available atomic.Bool
}

var _ ports.DistributionSink = (*NATSSink)(nil)

func NewNATSSink(url string, subjectPrefix string) *NATSSink {
	prefix := strings.Trim(strings.TrimSpace(subjectPrefix), ".")
	if prefix == "" {
		prefix = defaultSubjectPrefix
	}
	return &NATSSink{url: strings.TrimSpace(url), prefix: prefix}
}

func (s *NATSSink) Name() string { return "nats" }

func (s *NATSSink) Enabled() bool { return s.url != "" }

func (s *NATSSink) SetAvailable(available bool) {
	s.available.Store(available && s.Enabled())
}

// Subject maps a channel name onto a NATS subject.
func (s *NATSSink) Subject(channel string) string {
	return s.prefix + "." + strings.ReplaceAll(channel, ":", ".")
}

// Probe connects on first use and flushes to confirm the server answers.
func (s *NATSSink) Probe(ctx context.Context) error {
	if !s.Enabled() {
		return ErrBrokerDisabled
	}
	conn, err := s.connect(ctx)
	if err != nil {
		return err
	}
	if err := conn.FlushWithContext(ctx); err != nil {
		return errs.Wrap(err, "flush nats connection")
	}
	return nil
}

func (s *NATSSink) connect(ctx context.Context) (*nats.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil && !s.conn.IsClosed() {
		return s.conn, nil
	}

	timeout := 5 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
		if timeout <= 0 {
			return nil, errs.Wrap(context.DeadlineExceeded, "connect nats")
		}
	}
	conn, err := nats.Connect(s.url,
		nats.Name("civicfix"),
		nats.Timeout(timeout),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, errs.Wrap(err, "connect nats")
	}
	s.conn = conn
	return conn, nil
}

func (s *NATSSink) Deliver(_ context.Context, msg ports.Message) error {
	if !s.available.Load() {
		return nil
	}
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return nil
	}

	for _, channel := range msg.Channels {
		data, err := json.Marshal(Frame{Event: msg.Name, Channel: channel, Data: msg.Payload})
		if err != nil {
			return errs.Wrap(err, "encode nats frame")
		}
		if err := conn.Publish(s.Subject(channel), data); err != nil {
			return errs.Wrapf(err, "publish to %s", s.Subject(channel))
		}
	}
	return nil
}

// Close drains buffered publishes and closes the connection.
func (s *NATSSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Drain()
	s.conn = nil
	if err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return errs.Wrap(err, "drain nats connection")
	}
	return nil
}
