package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"civicfix/internal/bootstrap/logging"
	domainlifecycle "civicfix/internal/domain/lifecycle"
	"civicfix/internal/domain/timeline"
	"civicfix/internal/errs"
	"civicfix/internal/ports"
)

type SubmitInput struct {
	ReporterID  *string
	Category    string
	Description string
	Location    *ports.Location
	ImageURLs   []string
}

// Submit records a citizen report: the issue row, its evidence and the
// ISSUE_CREATED event commit together. Initial verification follows when
// lifecycle.auto_verify is on; its outcome never fails the submission.
func (o *Orchestrator) Submit(ctx context.Context, input SubmitInput) (TransitionResult, error) {
	if err := o.ready(ctx); err != nil {
		return TransitionResult{}, err
	}

	category := strings.TrimSpace(input.Category)
	if category == "" {
		return TransitionResult{}, errs.WithKind(errors.New("category is required"), errs.KindValidation)
	}
	if input.Location != nil {
		if input.Location.Latitude < -90 || input.Location.Latitude > 90 || input.Location.Longitude < -180 || input.Location.Longitude > 180 {
			return TransitionResult{}, errs.WithKind(errors.New("location is out of range"), errs.KindValidation)
		}
	}
	imageURLs := compact(input.ImageURLs)
	now := o.now()

	_, eventTypes, err := domainlifecycle.Plan(domainlifecycle.TriggerSubmit, domainlifecycle.Snapshot{}, domainlifecycle.Input{
		Actor: timeline.ActorCitizen,
		Now:   now,
	})
	if err != nil {
		return TransitionResult{}, classify(err)
	}

	var result TransitionResult
	err = o.uow.WithTx(ctx, func(txCtx context.Context) error {
		issue, err := o.issues.CreateIssue(txCtx, ports.IssueCreate{
			ReporterID:  input.ReporterID,
			Category:    category,
			Description: input.Description,
			Location:    input.Location,
			ImageURLs:   imageURLs,
		})
		if err != nil {
			return err
		}

		lat, lon := locationPayload(input.Location)
		metadata, err := timeline.ToMetadata(timeline.SubmissionPayload{Category: category, Latitude: lat, Longitude: lon})
		if err != nil {
			return errs.Wrap(err, "encode submission payload")
		}

		events := make([]timeline.Event, 0, len(eventTypes))
		for _, eventType := range eventTypes {
			event, err := o.timeline.AppendEvent(txCtx, ports.TimelineEventCreate{
				IssueID:     issue.IssueID,
				Type:        eventType,
				ActorType:   timeline.ActorCitizen,
				ActorID:     input.ReporterID,
				Description: "Issue reported: " + category,
				Metadata:    metadata,
				ImageURLs:   imageURLs,
			})
			if err != nil {
				return errs.Wrapf(err, "append %s", eventType)
			}
			events = append(events, event)
		}
		result = TransitionResult{Issue: issue, Events: events}
		return nil
	})
	if err != nil {
		err = classify(err)
		o.metrics.ObserveTransition(string(domainlifecycle.TriggerSubmit), outcomeOf(err))
		return TransitionResult{}, err
	}
	o.metrics.ObserveTransition(string(domainlifecycle.TriggerSubmit), "ok")

	logCtx := logging.WithAttrs(ctx,
		slog.String("component", "usecase.lifecycle"),
		slog.Uint64("issue_id", result.Issue.IssueID),
		slog.String("trigger", string(domainlifecycle.TriggerSubmit)),
	)
	o.afterCommit(logCtx, result)

	if o.cfg.AutoVerify {
		issueID := result.Issue.IssueID
		o.dispatch(logCtx, "initial_verification", func(runCtx context.Context) {
			if _, err := o.RunInitialVerification(runCtx, issueID); err != nil {
				logging.Warn(runCtx, "automatic initial verification failed", slog.Any("err", errs.Loggable(err)))
			}
		})
	}
	return result, nil
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
