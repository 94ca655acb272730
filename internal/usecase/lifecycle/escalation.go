package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"civicfix/internal/bootstrap/logging"
	domainlifecycle "civicfix/internal/domain/lifecycle"
	"civicfix/internal/domain/timeline"
	"civicfix/internal/errs"
	"civicfix/internal/ports"
)

type EscalateInput struct {
	IssueID         uint64
	Actor           timeline.ActorType
	ActorID         *string
	Reason          string
	ExpectedVersion *int64
}

// Escalate raises the escalation flag by hand.
func (o *Orchestrator) Escalate(ctx context.Context, input EscalateInput) (TransitionResult, error) {
	if err := requireActor(input.Actor, timeline.ActorGovernment, timeline.ActorSystem); err != nil {
		return TransitionResult{}, err
	}
	return o.escalate(ctx, input, timeline.EscalationManual)
}

func (o *Orchestrator) escalate(ctx context.Context, input EscalateInput, trigger timeline.EscalationTrigger) (TransitionResult, error) {
	reason := excerpt(input.Reason)
	return o.transition(ctx, transitionRequest{
		issueID:         input.IssueID,
		trigger:         domainlifecycle.TriggerEscalate,
		input:           domainlifecycle.Input{Actor: input.Actor},
		expectedVersion: input.ExpectedVersion,
		describe: func(timeline.EventType, ports.Issue, domainlifecycle.Snapshot) eventSpec {
			description := "Issue escalated"
			if reason != "" {
				description += ": " + reason
			}
			return eventSpec{
				actor:       input.Actor,
				actorID:     input.ActorID,
				description: description,
				payload:     timeline.EscalationPayload{Trigger: trigger, Reason: reason},
			}
		},
	})
}

// EscalateOverdue escalates every unresolved, unescalated issue older than
// the resolution deadline. Issues that changed underneath the sweep are
// skipped. It returns how many issues were escalated.
func (o *Orchestrator) EscalateOverdue(ctx context.Context) (int, error) {
	if err := o.ready(ctx); err != nil {
		return 0, err
	}

	now := o.now()
	cutoff := now.Add(-o.cfg.ResolutionDeadline)
	logCtx := logging.WithAttrs(ctx, slog.String("component", "usecase.lifecycle.escalation"))

	overdue, err := o.issues.ListIssues(ctx, ports.IssueFilter{
		Statuses:      []domainlifecycle.Status{domainlifecycle.StatusReported, domainlifecycle.StatusInProgress},
		Escalation:    domainlifecycle.EscalationNone,
		CreatedBefore: cutoff,
		Limit:         defaultSweepBatch,
	})
	if err != nil {
		return 0, classify(err)
	}

	escalated := 0
	for _, issue := range overdue {
		if err := ctx.Err(); err != nil {
			return escalated, err
		}
		_, err := o.escalate(ctx, EscalateInput{
			IssueID: issue.IssueID,
			Actor:   timeline.ActorSystem,
			Reason:  fmt.Sprintf("unresolved after %s", o.cfg.ResolutionDeadline),
		}, timeline.EscalationDeadline)
		if err != nil {
			if errs.IsKind(err, errs.KindConflict) || errs.IsKind(err, errs.KindNotFound) {
				logging.Debug(logCtx, "overdue issue changed during sweep", slog.Uint64("issue_id", issue.IssueID))
				continue
			}
			return escalated, err
		}
		escalated++
		o.metrics.IncEscalations()
	}

	if escalated > 0 {
		logging.Info(logCtx, "overdue issues escalated", slog.Int("count", escalated), slog.Time("cutoff", cutoff))
	}
	return escalated, nil
}

// RunEscalationSweep calls EscalateOverdue every interval until ctx ends.
func (o *Orchestrator) RunEscalationSweep(ctx context.Context, interval time.Duration) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if interval <= 0 {
		interval = o.cfg.EscalationSweepInterval
	}
	if interval <= 0 {
		return errors.New("escalation sweep interval must be positive")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := o.EscalateOverdue(ctx); err != nil && ctx.Err() == nil {
			logging.Warn(ctx, "escalation sweep failed", slog.Any("err", errs.Loggable(err)))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
