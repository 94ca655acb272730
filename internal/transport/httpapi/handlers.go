package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"civicfix/internal/bootstrap/logging"
	"civicfix/internal/domain/timeline"
	"civicfix/internal/errs"
	"civicfix/internal/ports"
	"civicfix/internal/usecase/lifecycle"
)

const maxCallbackBody = 64 << 10

var (
	errInvalidIssueID    = errs.WithKind(errors.New("issue id must be a positive integer"), errs.KindValidation)
	errUnauthorized      = errors.New("invalid api key")
	errCallbacksDisabled = errors.New("verification callbacks are disabled")
)

type healthResponse struct {
	Status       string                   `json:"status"`
	Dependencies []ports.DependencyHealth `json:"dependencies"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	var deps []ports.DependencyHealth
	if h.health != nil {
		deps = h.health.Health(r.Context())
	}
	status := "ok"
	for _, dep := range deps {
		if dep.State == ports.HealthDegraded {
			status = "degraded"
			break
		}
	}
	if deps == nil {
		deps = []ports.DependencyHealth{}
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: status, Dependencies: deps})
}

type eventResponse struct {
	ID          uint64         `json:"id"`
	IssueID     uint64         `json:"issue_id"`
	EventType   string         `json:"event_type"`
	ActorType   string         `json:"actor_type"`
	ActorID     *string        `json:"actor_id"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata"`
	ImageURLs   []string       `json:"image_urls"`
	CreatedAt   string         `json:"created_at"`
}

type timelineResponse struct {
	IssueID uint64          `json:"issue_id"`
	Events  []eventResponse `json:"events"`
	Total   int             `json:"total"`
}

func toEventResponse(event timeline.Event) eventResponse {
	images := event.ImageURLs
	if images == nil {
		images = []string{}
	}
	return eventResponse{
		ID:          event.ID,
		IssueID:     event.IssueID,
		EventType:   string(event.Type),
		ActorType:   string(event.ActorType),
		ActorID:     event.ActorID,
		Description: event.Description,
		Metadata:    event.Metadata,
		ImageURLs:   images,
		CreatedAt:   event.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	issueID, ok := issueIDParam(w, r)
	if !ok {
		return
	}
	ctx := logging.WithRequest(r.Context(), "", issueID)

	events, err := h.lifecycle.ListTimeline(ctx, issueID)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	out := timelineResponse{IssueID: issueID, Events: make([]eventResponse, 0, len(events)), Total: len(events)}
	for _, event := range events {
		out.Events = append(out.Events, toEventResponse(event))
	}
	writeJSON(w, http.StatusOK, out)
}

type callbackRequest struct {
	Phase           string   `json:"phase"`
	Status          string   `json:"status"`
	Confidence      *float64 `json:"confidence"`
	ConfidenceScore *float64 `json:"confidence_score"`
	Reasoning       string   `json:"reasoning"`
	RequestID       string   `json:"request_id"`
	ExpectedVersion *int64   `json:"expected_version"`
}

type callbackResponse struct {
	IssueID  uint64          `json:"issue_id"`
	Status   string          `json:"status"`
	AIStatus string          `json:"ai_verification_status"`
	Cross    string          `json:"cross_verification_status"`
	Version  int64           `json:"version"`
	Events   []eventResponse `json:"events"`
}

func (h *Handler) handleVerificationCallback(w http.ResponseWriter, r *http.Request) {
	if h.callbackAPIKey == "" {
		writeErrorStatus(w, http.StatusServiceUnavailable, errCallbacksDisabled.Error())
		return
	}
	if !h.authorizedCallback(r) {
		writeErrorStatus(w, http.StatusUnauthorized, errUnauthorized.Error())
		return
	}
	issueID, ok := issueIDParam(w, r)
	if !ok {
		return
	}
	ctx := logging.WithRequest(r.Context(), "", issueID)

	var req callbackRequest
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxCallbackBody))
	if err := decoder.Decode(&req); err != nil {
		writeError(ctx, w, errs.WithKind(errs.Wrap(err, "decode callback body"), errs.KindValidation))
		return
	}
	confidence := req.Confidence
	if confidence == nil {
		confidence = req.ConfidenceScore
	}

	result, err := h.lifecycle.ApplyVerificationCallback(ctx, lifecycle.CallbackInput{
		IssueID:         issueID,
		Phase:           timeline.VerificationPhase(strings.ToLower(strings.TrimSpace(req.Phase))),
		Status:          req.Status,
		Confidence:      confidence,
		Reasoning:       req.Reasoning,
		RequestID:       req.RequestID,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	out := callbackResponse{
		IssueID:  result.Issue.IssueID,
		Status:   string(result.Issue.Lifecycle.Status),
		AIStatus: string(result.Issue.Lifecycle.AIStatus),
		Cross:    string(result.Issue.Lifecycle.CrossStatus),
		Version:  result.Issue.Lifecycle.Version,
		Events:   make([]eventResponse, 0, len(result.Events)),
	}
	for _, event := range result.Events {
		out.Events = append(out.Events, toEventResponse(event))
	}
	writeJSON(w, http.StatusOK, out)
}

func issueIDParam(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	issueID, err := strconv.ParseUint(chi.URLParam(r, "issueID"), 10, 64)
	if err != nil || issueID == 0 {
		writeError(r.Context(), w, errInvalidIssueID)
		return 0, false
	}
	return issueID, true
}

// statusFor maps an error kind to the HTTP status the caller sees.
func statusFor(err error) int {
	switch errs.KindOf(err) {
	case errs.KindValidation:
		return http.StatusBadRequest
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindConflict:
		return http.StatusConflict
	case errs.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := statusFor(err)
	kind := string(errs.KindOf(err))
	if kind == "" {
		kind = "internal"
	}

	resp := errorResponse{Error: kind}
	if status < http.StatusInternalServerError {
		resp.Message = err.Error()
	} else {
		logging.Error(ctx, "request failed", slog.Int("status", status), slog.Any("err", errs.Loggable(err)))
	}
	writeJSON(w, status, resp)
}

func writeErrorStatus(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_")), Message: message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

