package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"civicfix/internal/bootstrap/logging"
	domainlifecycle "civicfix/internal/domain/lifecycle"
	"civicfix/internal/domain/timeline"
	"civicfix/internal/errs"
	"civicfix/internal/ports"
)

var (
	errCitizenImagesRequired    = errors.New("cross-check requires citizen images")
	errGovernmentImagesRequired = errors.New("cross-check requires government images")
)

// RunInitialVerification records the start of the AI check, calls the
// verification service and applies its verdict. The issue stays locked for
// the whole exchange. A missing verdict is applied as REJECTED.
func (o *Orchestrator) RunInitialVerification(ctx context.Context, issueID uint64) (TransitionResult, error) {
	if err := o.ready(ctx); err != nil {
		return TransitionResult{}, err
	}
	unlock := o.locks.Lock(issueID)
	defer unlock()

	started, err := o.transitionLocked(ctx, transitionRequest{
		issueID: issueID,
		trigger: domainlifecycle.TriggerStartVerification,
		input:   domainlifecycle.Input{Actor: timeline.ActorSystem},
		describe: func(timeline.EventType, ports.Issue, domainlifecycle.Snapshot) eventSpec {
			return systemEvent("AI verification started", timeline.VerificationPayload{Phase: timeline.PhaseInitial})
		},
	})
	if err != nil {
		return TransitionResult{}, err
	}

	issue := started.Issue
	var verdict *ports.VerificationResult
	if o.verifier != nil {
		// the started event is already committed: a media lookup failure
		// completes the check without a verdict
		imageURLs, err := o.mediaURLs(ctx, issueID, ports.MediaCitizen)
		if err != nil {
			logging.Warn(ctx, "citizen media unavailable, verification skipped",
				slog.Uint64("issue_id", issueID),
				slog.Any("err", errs.Loggable(err)),
			)
		} else {
			verdict = o.verifier.VerifyInitial(ctx, ports.InitialVerificationRequest{
				IssueID:     issueID,
				ImageURLs:   imageURLs,
				Category:    issue.Category,
				Location:    issue.Location,
				Description: issue.Description,
			})
		}
	}

	applied, err := o.applyInitialVerdictLocked(ctx, issueID, verdict, nil)
	if err != nil {
		return TransitionResult{}, err
	}
	applied.Events = append(started.Events, applied.Events...)
	return applied, nil
}

func (o *Orchestrator) applyInitialVerdictLocked(ctx context.Context, issueID uint64, verdict *ports.VerificationResult, expectedVersion *int64) (TransitionResult, error) {
	payload := verificationPayload(timeline.PhaseInitial, verdict)
	aiStatus := domainlifecycle.AIStatusFromResult(payload.Status, verdict != nil)

	return o.transitionLocked(ctx, transitionRequest{
		issueID:         issueID,
		trigger:         domainlifecycle.TriggerApplyVerification,
		input:           domainlifecycle.Input{Actor: timeline.ActorAI, AIResult: aiStatus},
		expectedVersion: expectedVersion,
		describe: func(eventType timeline.EventType, _ ports.Issue, _ domainlifecycle.Snapshot) eventSpec {
			switch eventType {
			case timeline.EventAIVerificationCompleted:
				return eventSpec{
					actor:       timeline.ActorAI,
					description: verificationSummary("AI verification", payload),
					payload:     payload,
				}
			case timeline.EventIssuePublished:
				return systemEvent("Issue published after AI verification", nil)
			default:
				reason := "AI verification rejected the report"
				if payload.Degraded {
					reason = "Issue flagged: AI verification unavailable"
				}
				return systemEvent(reason, nil)
			}
		},
	})
}

// RunCrossCheck compares citizen and government evidence once work is
// complete. Both image sets must exist before anything is recorded.
func (o *Orchestrator) RunCrossCheck(ctx context.Context, issueID uint64) (TransitionResult, error) {
	if err := o.ready(ctx); err != nil {
		return TransitionResult{}, err
	}
	unlock := o.locks.Lock(issueID)
	defer unlock()

	issue, err := o.issues.GetIssue(ctx, issueID)
	if err != nil {
		return TransitionResult{}, classify(err)
	}
	if !domainlifecycle.Allowed(domainlifecycle.TriggerStartCrossCheck, issue.Lifecycle, domainlifecycle.Input{}) {
		_, _, planErr := domainlifecycle.Plan(domainlifecycle.TriggerStartCrossCheck, issue.Lifecycle, domainlifecycle.Input{})
		return TransitionResult{}, classify(planErr)
	}

	citizenImages, err := o.mediaURLs(ctx, issueID, ports.MediaCitizen)
	if err != nil {
		return TransitionResult{}, err
	}
	if len(citizenImages) == 0 {
		return TransitionResult{}, errs.WithKind(errCitizenImagesRequired, errs.KindValidation)
	}
	governmentImages, err := o.mediaURLs(ctx, issueID, ports.MediaGovernment)
	if err != nil {
		return TransitionResult{}, err
	}
	if len(governmentImages) == 0 {
		return TransitionResult{}, errs.WithKind(errGovernmentImagesRequired, errs.KindValidation)
	}

	started, err := o.transitionLocked(ctx, transitionRequest{
		issueID: issueID,
		trigger: domainlifecycle.TriggerStartCrossCheck,
		input:   domainlifecycle.Input{Actor: timeline.ActorSystem},
		describe: func(timeline.EventType, ports.Issue, domainlifecycle.Snapshot) eventSpec {
			return systemEvent("Cross verification started", timeline.VerificationPayload{Phase: timeline.PhaseCrossCheck})
		},
	})
	if err != nil {
		return TransitionResult{}, err
	}

	var verdict *ports.VerificationResult
	if o.verifier != nil {
		verdict, err = o.verifier.VerifyCrossCheck(ctx, ports.CrossCheckRequest{
			IssueID:          issueID,
			CitizenImages:    citizenImages,
			GovernmentImages: governmentImages,
			Location:         issue.Location,
			Category:         issue.Category,
		})
		if err != nil {
			logging.Warn(ctx, "cross-check request rejected locally", slog.Uint64("issue_id", issueID), slog.Any("err", errs.Loggable(err)))
			verdict = nil
		}
	}

	applied, err := o.applyCrossVerdictLocked(ctx, issueID, verdict, nil)
	if err != nil {
		return TransitionResult{}, err
	}
	applied.Events = append(started.Events, applied.Events...)
	return applied, nil
}

func (o *Orchestrator) applyCrossVerdictLocked(ctx context.Context, issueID uint64, verdict *ports.VerificationResult, expectedVersion *int64) (TransitionResult, error) {
	payload := verificationPayload(timeline.PhaseCrossCheck, verdict)
	crossStatus := domainlifecycle.CrossStatusFromResult(payload.Status, verdict != nil)

	return o.transitionLocked(ctx, transitionRequest{
		issueID:         issueID,
		trigger:         domainlifecycle.TriggerApplyCrossCheck,
		input:           domainlifecycle.Input{Actor: timeline.ActorAI, CrossResult: crossStatus},
		expectedVersion: expectedVersion,
		describe: func(eventType timeline.EventType, _ ports.Issue, _ domainlifecycle.Snapshot) eventSpec {
			if eventType == timeline.EventCrossVerificationCompleted {
				return eventSpec{
					actor:       timeline.ActorAI,
					description: verificationSummary("Cross verification", payload),
					payload:     payload,
				}
			}
			return systemEvent("Citizen asked to confirm the resolution", nil)
		},
	})
}

// CallbackInput is a verdict the AI service delivers asynchronously.
type CallbackInput struct {
	IssueID         uint64
	Phase           timeline.VerificationPhase
	Status          string
	Confidence      *float64
	Reasoning       string
	RequestID       string
	ExpectedVersion *int64
}

// ApplyVerificationCallback applies a verdict pushed by the AI service. It
// is rejected as stale when the matching phase is no longer pending.
func (o *Orchestrator) ApplyVerificationCallback(ctx context.Context, input CallbackInput) (TransitionResult, error) {
	if err := o.ready(ctx); err != nil {
		return TransitionResult{}, err
	}
	if strings.TrimSpace(input.Status) == "" {
		return TransitionResult{}, errs.WithKind(errResultRequired, errs.KindValidation)
	}

	verdict := &ports.VerificationResult{
		Status:     input.Status,
		Confidence: input.Confidence,
		Reasoning:  input.Reasoning,
		RequestID:  input.RequestID,
	}

	unlock := o.locks.Lock(input.IssueID)
	defer unlock()

	switch input.Phase {
	case timeline.PhaseInitial, "":
		return o.applyInitialVerdictLocked(ctx, input.IssueID, verdict, input.ExpectedVersion)
	case timeline.PhaseCrossCheck:
		return o.applyCrossVerdictLocked(ctx, input.IssueID, verdict, input.ExpectedVersion)
	default:
		return TransitionResult{}, errs.WithKind(fmt.Errorf("unknown verification phase %q", input.Phase), errs.KindValidation)
	}
}

// mediaURLs lists stored evidence and resolves it into fetchable URLs. A
// resolver failure falls back to the stored references.
func (o *Orchestrator) mediaURLs(ctx context.Context, issueID uint64, source ports.MediaSource) ([]string, error) {
	refs, err := o.issues.ListMedia(ctx, issueID, source)
	if err != nil {
		return nil, classify(err)
	}
	if o.media == nil || len(refs) == 0 {
		return refs, nil
	}
	resolved, err := o.media.ResolveMediaURLs(ctx, refs)
	if err != nil {
		logging.Warn(ctx, "media resolution failed, using stored references",
			slog.Uint64("issue_id", issueID),
			slog.String("source", string(source)),
			slog.Any("err", errs.Loggable(err)),
		)
		return refs, nil
	}
	return resolved, nil
}
