package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"civicfix/internal/bootstrap/logging"
	domainlifecycle "civicfix/internal/domain/lifecycle"
	"civicfix/internal/domain/timeline"
	"civicfix/internal/errs"
	"civicfix/internal/ports"
)

// TransitionResult is the committed outcome of one trigger.
type TransitionResult struct {
	Issue  ports.Issue
	Events []timeline.Event
}

// eventSpec is what a transition writes for one produced event type.
type eventSpec struct {
	actor       timeline.ActorType
	actorID     *string
	description string
	payload     timeline.Payload
	imageURLs   []string
}

type transitionRequest struct {
	issueID         uint64
	trigger         domainlifecycle.Trigger
	input           domainlifecycle.Input
	expectedVersion *int64

	// describe fills the ledger record for each event type the rule emits.
	describe func(eventType timeline.EventType, current ports.Issue, next domainlifecycle.Snapshot) eventSpec
	// within runs additional writes inside the same unit of work.
	within func(ctx context.Context, issue ports.Issue) error
}

// transition acquires the issue lock and applies req.
func (o *Orchestrator) transition(ctx context.Context, req transitionRequest) (TransitionResult, error) {
	unlock := o.locks.Lock(req.issueID)
	defer unlock()
	return o.transitionLocked(ctx, req)
}

// transitionLocked applies req; the caller holds the issue lock. The guard is
// evaluated against the row read inside the transaction, and the update is
// conditional on its version so writers in other processes are detected too.
func (o *Orchestrator) transitionLocked(ctx context.Context, req transitionRequest) (TransitionResult, error) {
	if err := o.ready(ctx); err != nil {
		return TransitionResult{}, err
	}
	if req.issueID == 0 {
		return TransitionResult{}, errs.WithKind(errIssueIDRequired, errs.KindValidation)
	}
	if req.input.Now.IsZero() {
		req.input.Now = o.now()
	}

	logCtx := logging.WithAttrs(ctx,
		slog.String("component", "usecase.lifecycle"),
		slog.Uint64("issue_id", req.issueID),
		slog.String("trigger", string(req.trigger)),
	)

	var result TransitionResult
	err := o.uow.WithTx(ctx, func(txCtx context.Context) error {
		issue, err := o.issues.GetIssue(txCtx, req.issueID)
		if err != nil {
			return err
		}
		if req.expectedVersion != nil && *req.expectedVersion != issue.Lifecycle.Version {
			return fmt.Errorf("%w: issue version is %d, caller expected %d",
				domainlifecycle.ErrStaleTransition, issue.Lifecycle.Version, *req.expectedVersion)
		}

		next, eventTypes, err := domainlifecycle.Plan(req.trigger, issue.Lifecycle, req.input)
		if err != nil {
			return err
		}

		if req.within != nil {
			if err := req.within(txCtx, issue); err != nil {
				return err
			}
		}

		if err := o.issues.UpdateLifecycle(txCtx, req.issueID, issue.Lifecycle.Version, next); err != nil {
			if errors.Is(err, ports.ErrVersionConflict) {
				return fmt.Errorf("%w: %v", domainlifecycle.ErrStaleTransition, err)
			}
			return err
		}

		events := make([]timeline.Event, 0, len(eventTypes))
		for _, eventType := range eventTypes {
			spec := req.describe(eventType, issue, next)
			metadata, err := timeline.ToMetadata(spec.payload)
			if err != nil {
				return errs.Wrap(err, "encode event payload")
			}
			event, err := o.timeline.AppendEvent(txCtx, ports.TimelineEventCreate{
				IssueID:     req.issueID,
				Type:        eventType,
				ActorType:   spec.actor,
				ActorID:     spec.actorID,
				Description: spec.description,
				Metadata:    metadata,
				ImageURLs:   spec.imageURLs,
			})
			if err != nil {
				return errs.Wrapf(err, "append %s", eventType)
			}
			events = append(events, event)
		}

		issue.Lifecycle = next
		result = TransitionResult{Issue: issue, Events: events}
		return nil
	})
	if err != nil {
		err = classify(err)
		o.metrics.ObserveTransition(string(req.trigger), outcomeOf(err))
		if errs.IsKind(err, errs.KindStorage) {
			logging.Error(logCtx, "lifecycle transition aborted", slog.Any("err", errs.Loggable(err)))
		} else {
			logging.Info(logCtx, "lifecycle transition rejected", slog.String("reason", err.Error()))
		}
		return TransitionResult{}, err
	}

	o.metrics.ObserveTransition(string(req.trigger), "ok")
	o.afterCommit(logCtx, result)
	return result, nil
}

// afterCommit refreshes the status cache and publishes the committed events.
// Neither can fail the transition.
func (o *Orchestrator) afterCommit(ctx context.Context, result TransitionResult) {
	o.setCacheBestEffort(ctx, cacheIssueStatusKey(result.Issue.IssueID), string(result.Issue.Lifecycle.Status))
	for _, event := range result.Events {
		o.metrics.IncEventAppended(string(event.Type))
		if o.publisher != nil {
			o.publisher.Publish(ctx, event, result.Issue.Location)
		}
	}
	logging.Info(ctx, "lifecycle transition committed",
		slog.Int("events", len(result.Events)),
		slog.String("status", string(result.Issue.Lifecycle.Status)),
		slog.Int64("version", result.Issue.Lifecycle.Version),
	)
}

// classify tags domain errors with the kind the callers branch on.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errs.KindOf(err) != errs.KindUnknown {
		return err
	}
	switch {
	case errors.Is(err, domainlifecycle.ErrStaleTransition):
		return errs.WithKind(err, errs.KindConflict)
	case errors.Is(err, domainlifecycle.ErrActorNotAllowed),
		errors.Is(err, domainlifecycle.ErrInvalidStatus),
		errors.Is(err, domainlifecycle.ErrUnknownTrigger),
		errors.Is(err, timeline.ErrDescriptionRequired),
		errors.Is(err, timeline.ErrDescriptionTooLong):
		return errs.WithKind(err, errs.KindValidation)
	case errors.Is(err, ports.ErrIssueNotFound):
		return errs.WithKind(err, errs.KindNotFound)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return errs.WithKind(err, errs.KindStorage)
	}
}

func outcomeOf(err error) string {
	if kind := errs.KindOf(err); kind != errs.KindUnknown {
		return string(kind)
	}
	return "error"
}

func requireActor(actor timeline.ActorType, allowed ...timeline.ActorType) error {
	if actor == "" {
		return errs.WithKind(errActorRequired, errs.KindValidation)
	}
	if _, err := timeline.ParseActorType(string(actor)); err != nil {
		return errs.WithKind(err, errs.KindValidation)
	}
	for _, candidate := range allowed {
		if actor == candidate {
			return nil
		}
	}
	return errs.WithKind(fmt.Errorf("%w: %s", domainlifecycle.ErrActorNotAllowed, actor), errs.KindValidation)
}
