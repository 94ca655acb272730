package lifecycle

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"civicfix/internal/bootstrap/config"
	domainlifecycle "civicfix/internal/domain/lifecycle"
	"civicfix/internal/platform/metrics"
	"civicfix/internal/ports"
)

const (
	defaultMaxInFlight     = 8
	defaultSweepBatch      = 100
	defaultResolutionLimit = 14 * 24 * time.Hour
)

var (
	errIssueIDRequired = errors.New("issue id is required")
	errActorRequired   = errors.New("actor type is required")
	errResultRequired  = errors.New("verification status is required")
)

// Orchestrator drives every lifecycle transition of an issue: it checks the
// transition table, commits the projection update with its ledger events in
// one unit of work and hands committed events to distribution.
type Orchestrator struct {
	issues    ports.IssueRepository
	timeline  ports.TimelineRepository
	uow       ports.UnitOfWork
	verifier  ports.Verifier
	publisher ports.EventPublisher
	cache     ports.Cache
	media     ports.MediaResolver
	metrics   *metrics.Metrics
	cfg       config.LifecycleConfig

	locks    *keyedMutex
	inFlight *semaphore.Weighted
	pending  sync.WaitGroup
	now      func() time.Time
}

// Deps groups the collaborators of an Orchestrator. Verifier, Publisher,
// Cache, Media and Metrics are optional.
type Deps struct {
	Issues    ports.IssueRepository
	Timeline  ports.TimelineRepository
	UoW       ports.UnitOfWork
	Verifier  ports.Verifier
	Publisher ports.EventPublisher
	Cache     ports.Cache
	Media     ports.MediaResolver
	Metrics   *metrics.Metrics
}

func NewOrchestrator(deps Deps, cfg config.LifecycleConfig) *Orchestrator {
	maxInFlight := cfg.MaxInFlight
	if maxInFlight <= 0 {
		maxInFlight = defaultMaxInFlight
	}
	if cfg.ResolutionDeadline <= 0 {
		cfg.ResolutionDeadline = defaultResolutionLimit
	}
	return &Orchestrator{
		issues:    deps.Issues,
		timeline:  deps.Timeline,
		uow:       deps.UoW,
		verifier:  deps.Verifier,
		publisher: deps.Publisher,
		cache:     deps.Cache,
		media:     deps.Media,
		metrics:   deps.Metrics,
		cfg:       cfg,
		locks:     newKeyedMutex(),
		inFlight:  semaphore.NewWeighted(maxInFlight),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (o *Orchestrator) ready(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if o.issues == nil {
		return errors.New("issue repository is required")
	}
	if o.timeline == nil {
		return errors.New("timeline repository is required")
	}
	if o.uow == nil {
		return errors.New("unit of work is required")
	}
	return nil
}

func (o *Orchestrator) setCacheBestEffort(ctx context.Context, key string, value string) {
	if o.cache == nil {
		return
	}
	_ = o.cache.Set(ctx, key, value, 0)
}

func cacheIssueStatusKey(issueID uint64) string {
	return "issue_status:" + strconv.FormatUint(issueID, 10)
}

// CachedStatus reads the status projection cache, falling back to the store.
func (o *Orchestrator) CachedStatus(ctx context.Context, issueID uint64) (domainlifecycle.Status, error) {
	if err := o.ready(ctx); err != nil {
		return "", err
	}
	if o.cache != nil {
		if value, found, err := o.cache.Get(ctx, cacheIssueStatusKey(issueID)); err == nil && found {
			if status, err := domainlifecycle.ParseStatus(value); err == nil {
				return status, nil
			}
		}
	}
	issue, err := o.issues.GetIssue(ctx, issueID)
	if err != nil {
		return "", err
	}
	o.setCacheBestEffort(ctx, cacheIssueStatusKey(issueID), string(issue.Lifecycle.Status))
	return issue.Lifecycle.Status, nil
}
