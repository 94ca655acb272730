package bootstrap

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"civicfix/internal/bootstrap/config"
	"civicfix/internal/bootstrap/database"
	"civicfix/internal/bootstrap/logging"
	"civicfix/internal/errs"
	cacheinfra "civicfix/internal/infrastructure/cache"
	"civicfix/internal/infrastructure/media"
	"civicfix/internal/infrastructure/persistence/gormstore/repository"
	"civicfix/internal/infrastructure/persistence/gormstore/uow"
	"civicfix/internal/infrastructure/realtime"
	"civicfix/internal/infrastructure/verification"
	"civicfix/internal/platform/metrics"
	"civicfix/internal/ports"
	"civicfix/internal/usecase/distribution"
	"civicfix/internal/usecase/lifecycle"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(provideMetrics),
	fx.Provide(provideCache),
	fx.Provide(
		fx.Annotate(
			repository.NewIssueRepository,
			fx.As(new(ports.IssueRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			repository.NewTimelineRepository,
			fx.As(new(ports.TimelineRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			uow.NewUnitOfWork,
			fx.As(new(ports.UnitOfWork)),
		),
	),
	fx.Provide(provideMediaResolver),
	fx.Provide(provideVerifier),
	fx.Provide(provideHub),
	fx.Provide(provideBroker),
	fx.Provide(provideRouter),
	fx.Provide(provideOrchestrator),
	fx.Provide(provideSupervisor),
	fx.Provide(provideApp),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	return config.Load(ctx, p.ConfigFile)
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}

func provideMetrics() (*prometheus.Registry, *metrics.Metrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.New(reg)
}

// provideCache also returns the redis client when one is configured, so the
// supervisor can probe it; otherwise the second result is nil.
func provideCache(lc fx.Lifecycle, cfg config.Config, db *gorm.DB) (ports.Cache, *cacheinfra.RedisCache, error) {
	switch strings.ToLower(cfg.Cache.Driver) {
	case "redis":
		redisCache, err := cacheinfra.NewRedisCache(cfg.Cache.RedisURL, cfg.App.Name+":")
		if err != nil {
			return nil, nil, err
		}
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error { return redisCache.Close() },
		})
		return redisCache, redisCache, nil
	case "none":
		return cacheinfra.Noop{}, nil, nil
	default:
		return cacheinfra.NewDBCache(db), nil, nil
	}
}

func provideMediaResolver(cfg config.Config) (ports.MediaResolver, error) {
	if strings.TrimSpace(cfg.Media.PublicBaseURL) == "" {
		return nil, nil
	}
	resolver, err := media.NewResolver(cfg.Media.PublicBaseURL)
	if err != nil {
		return nil, errs.Wrap(err, "build media resolver")
	}
	return resolver, nil
}

func provideVerifier(cfg config.Config, m *metrics.Metrics) *verification.Client {
	return verification.NewClient(cfg.Verification, &http.Client{}, m)
}

func provideHub(cfg config.Config, m *metrics.Metrics) *realtime.Hub {
	return realtime.NewHub(cfg.Distribution, m)
}

func provideBroker(lc fx.Lifecycle, cfg config.Config) *realtime.NATSSink {
	broker := realtime.NewNATSSink(cfg.Distribution.NATSURL, cfg.Distribution.NATSSubjectPrefix)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return broker.Close() },
	})
	return broker
}

func provideRouter(lc fx.Lifecycle, ctx context.Context, cfg config.Config, m *metrics.Metrics, hub *realtime.Hub, broker *realtime.NATSSink) (*distribution.Router, ports.EventPublisher) {
	router := distribution.NewRouter(cfg.Distribution, m, hub, broker)
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return router.Start(logging.WithAttrs(ctx, slog.String("component", "usecase.distribution")))
		},
		OnStop: router.Stop,
	})
	return router, router
}

type orchestratorParams struct {
	fx.In

	Config    config.Config
	Issues    ports.IssueRepository
	Timeline  ports.TimelineRepository
	UoW       ports.UnitOfWork
	Verifier  *verification.Client
	Publisher ports.EventPublisher
	Cache     ports.Cache
	Media     ports.MediaResolver
	Metrics   *metrics.Metrics
}

func provideOrchestrator(lc fx.Lifecycle, p orchestratorParams) *lifecycle.Orchestrator {
	orchestrator := lifecycle.NewOrchestrator(lifecycle.Deps{
		Issues:    p.Issues,
		Timeline:  p.Timeline,
		UoW:       p.UoW,
		Verifier:  p.Verifier,
		Publisher: p.Publisher,
		Cache:     p.Cache,
		Media:     p.Media,
		Metrics:   p.Metrics,
	}, p.Config.Lifecycle)
	lc.Append(fx.Hook{
		OnStop: orchestrator.Drain,
	})
	return orchestrator
}

type supervisorParams struct {
	fx.In

	Ctx      context.Context
	Config   config.Config
	DB       *gorm.DB
	Metrics  *metrics.Metrics
	Verifier *verification.Client
	Broker   *realtime.NATSSink
	Redis    *cacheinfra.RedisCache
}

func provideSupervisor(lc fx.Lifecycle, p supervisorParams) *Supervisor {
	cfg := p.Config.Bootstrap

	var redisProbe cachePinger
	if p.Redis != nil {
		redisProbe = p.Redis
	}
	supervisor := NewSupervisor(p.Metrics,
		DatabaseProbe(p.DB, cfg.DatabaseProbeTimeout),
		VerificationProbe(p.Verifier, cfg.VerificationProbeTimeout),
		BrokerProbe(p.Broker, cfg.BrokerProbeTimeout),
		CacheProbe(redisProbe, cfg.CacheProbeTimeout),
	)

	lc.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			return supervisor.CheckAll(logging.WithAttrs(startCtx, logging.Attrs(p.Ctx)...))
		},
	})
	return supervisor
}

type appParams struct {
	fx.In

	Config       config.Config
	DB           *gorm.DB
	Registry     *prometheus.Registry
	Metrics      *metrics.Metrics
	Issues       ports.IssueRepository
	Timeline     ports.TimelineRepository
	Verifier     *verification.Client
	Hub          *realtime.Hub
	Router       *distribution.Router
	Orchestrator *lifecycle.Orchestrator
	Supervisor   *Supervisor
}

func provideApp(p appParams) *App {
	return &App{
		Config:       p.Config,
		DB:           p.DB,
		Registry:     p.Registry,
		Metrics:      p.Metrics,
		Issues:       p.Issues,
		Timeline:     p.Timeline,
		Verifier:     p.Verifier,
		Hub:          p.Hub,
		Router:       p.Router,
		Orchestrator: p.Orchestrator,
		Supervisor:   p.Supervisor,
	}
}
