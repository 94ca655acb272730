package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"civicfix/internal/bootstrap/database"
	"civicfix/internal/bootstrap/logging"
	"civicfix/internal/errs"
	"civicfix/internal/platform/metrics"
	"civicfix/internal/ports"
)

var (
	errVerificationUnhealthy = errors.New("verification service reported unhealthy")
	errProbeDisabled         = errors.New("probe disabled")
)

// Probe checks one external dependency. Enabled reports whether the
// dependency is configured at all; OnResult switches the dependent
// component between its normal and degraded behavior.
type Probe struct {
	Name     string
	Timeout  time.Duration
	Enabled  func() bool
	Check    func(ctx context.Context) error
	OnResult func(healthy bool)
}

// Supervisor probes external dependencies under per-probe deadlines and
// keeps the last known state of each. It never fails startup: an
// unreachable dependency only degrades the component that uses it.
type Supervisor struct {
	probes  []Probe
	metrics *metrics.Metrics
	now     func() time.Time

	mu     sync.RWMutex
	states map[string]ports.DependencyHealth
}

var _ ports.HealthReporter = (*Supervisor)(nil)

func NewSupervisor(m *metrics.Metrics, probes ...Probe) *Supervisor {
	return &Supervisor{
		probes:  probes,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
		states:  make(map[string]ports.DependencyHealth, len(probes)),
	}
}

// CheckAll runs every probe concurrently and returns once all of them have
// finished or timed out.
func (s *Supervisor) CheckAll(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.supervisor"))

	g, gctx := errgroup.WithContext(ctx)
	for _, probe := range s.probes {
		g.Go(func() error {
			s.record(logCtx, s.run(gctx, probe))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return errs.Wrap(err, "run dependency probes")
	}
	return ctx.Err()
}

func (s *Supervisor) run(ctx context.Context, probe Probe) ports.DependencyHealth {
	result := ports.DependencyHealth{Name: probe.Name, CheckedAt: s.now()}
	if probe.Enabled != nil && !probe.Enabled() {
		result.State = ports.HealthDisabled
		return result
	}
	if probe.Check == nil {
		result.State = ports.HealthDisabled
		result.Error = errProbeDisabled.Error()
		return result
	}

	probeCtx := ctx
	if probe.Timeout > 0 {
		var cancel context.CancelFunc
		probeCtx, cancel = context.WithTimeout(ctx, probe.Timeout)
		defer cancel()
	}

	started := time.Now()
	err := probe.Check(probeCtx)
	result.Latency = time.Since(started)
	if err != nil {
		result.State = ports.HealthDegraded
		result.Error = err.Error()
		if probeCtx.Err() != nil && ctx.Err() == nil {
			result.Error = "probe timed out after " + probe.Timeout.String()
		}
	} else {
		result.State = ports.HealthHealthy
	}

	if probe.OnResult != nil {
		probe.OnResult(result.State == ports.HealthHealthy)
	}
	return result
}

func (s *Supervisor) record(ctx context.Context, result ports.DependencyHealth) {
	s.mu.Lock()
	previous, seen := s.states[result.Name]
	s.states[result.Name] = result
	s.mu.Unlock()

	switch result.State {
	case ports.HealthHealthy:
		s.metrics.SetDependency(result.Name, 1)
	case ports.HealthDegraded:
		s.metrics.SetDependency(result.Name, 0)
	default:
		s.metrics.SetDependency(result.Name, -1)
	}

	if seen && previous.State == result.State {
		return
	}
	attrs := []slog.Attr{
		slog.String("dependency", result.Name),
		slog.String("state", string(result.State)),
		slog.Duration("latency", result.Latency),
	}
	if result.State == ports.HealthDegraded {
		logging.Warn(ctx, "dependency degraded", append(attrs, slog.String("err", result.Error))...)
		return
	}
	logging.Info(ctx, "dependency state", attrs...)
}

// Run repeats CheckAll every interval until ctx ends.
func (s *Supervisor) Run(ctx context.Context, interval time.Duration) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if interval <= 0 {
		return errors.New("health interval must be positive")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.CheckAll(ctx); err != nil && ctx.Err() == nil {
				logging.Warn(ctx, "dependency recheck failed", slog.Any("err", errs.Loggable(err)))
			}
		}
	}
}

// Health returns the last known state of every dependency, sorted by name.
func (s *Supervisor) Health(_ context.Context) []ports.DependencyHealth {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ports.DependencyHealth, 0, len(s.states))
	for _, state := range s.states {
		out = append(out, state)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// State returns the last known state of one dependency.
func (s *Supervisor) State(name string) (ports.DependencyHealth, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[name]
	return state, ok
}

func DatabaseProbe(db *gorm.DB, timeout time.Duration) Probe {
	return Probe{
		Name:    "database",
		Timeout: timeout,
		Check: func(ctx context.Context) error {
			return database.Ping(ctx, db)
		},
	}
}

// healthChecker is the part of the verification client the supervisor uses.
type healthChecker interface {
	Enabled() bool
	HealthCheck(ctx context.Context) bool
	SetAvailable(available bool)
}

func VerificationProbe(client healthChecker, timeout time.Duration) Probe {
	return Probe{
		Name:    "verification",
		Timeout: timeout,
		Enabled: client.Enabled,
		Check: func(ctx context.Context) error {
			if !client.HealthCheck(ctx) {
				if err := ctx.Err(); err != nil {
					return err
				}
				return errVerificationUnhealthy
			}
			return nil
		},
		OnResult: client.SetAvailable,
	}
}

type brokerProber interface {
	Enabled() bool
	Probe(ctx context.Context) error
	SetAvailable(available bool)
}

func BrokerProbe(broker brokerProber, timeout time.Duration) Probe {
	return Probe{
		Name:     "nats",
		Timeout:  timeout,
		Enabled:  broker.Enabled,
		Check:    broker.Probe,
		OnResult: broker.SetAvailable,
	}
}

type cachePinger interface {
	Health(ctx context.Context) error
	SetAvailable(available bool)
}

// CacheProbe watches the shared cache. A nil cache means the configured
// driver has no remote dependency and the probe reports disabled.
func CacheProbe(cache cachePinger, timeout time.Duration) Probe {
	probe := Probe{Name: "cache", Timeout: timeout}
	if cache == nil {
		probe.Enabled = func() bool { return false }
		return probe
	}
	probe.Check = cache.Health
	probe.OnResult = cache.SetAvailable
	return probe
}
