package verification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"civicfix/internal/bootstrap/config"
	"civicfix/internal/bootstrap/logging"
	"civicfix/internal/errs"
	"civicfix/internal/platform/metrics"
	"civicfix/internal/ports"
)

const (
	pathInitial    = "/api/v1/verify/initial"
	pathCrossCheck = "/api/v1/verify/cross-check"
	pathStatus     = "/api/v1/verify/status/"
	pathHealth     = "/health"

	headerRequestID = "X-Request-ID"
	headerAPIKey    = "X-API-Key"

	maxResponseBytes = 1 << 20
)

var (
	ErrEmptyCitizenImages    = errs.WithKind(errors.New("cross-check requires at least one citizen image"), errs.KindValidation)
	ErrEmptyGovernmentImages = errs.WithKind(errors.New("cross-check requires at least one government image"), errs.KindValidation)
)

// Client calls the external AI verification service. Every outward call is
// bounded by a timeout and failures are reported as a nil result.
type Client struct {
	cfg       config.VerificationConfig
	http      *http.Client
	limiter   *rate.Limiter
	metrics   *metrics.Metrics
	available atomic.Bool
	newID     func() string
}

var _ ports.Verifier = (*Client)(nil)

func NewClient(cfg config.VerificationConfig, httpClient *http.Client, m *metrics.Metrics) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.StatusTimeout <= 0 {
		cfg.StatusTimeout = 10 * time.Second
	}
	if cfg.HealthTimeout <= 0 {
		cfg.HealthTimeout = 5 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.RetryInitial <= 0 {
		cfg.RetryInitial = 500 * time.Millisecond
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")

	c := &Client{
		cfg:     cfg,
		http:    httpClient,
		metrics: m,
		newID:   uuid.NewString,
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	c.available.Store(cfg.Enabled)

	if cfg.Enabled && strings.TrimSpace(cfg.APIKey) == "" {
		logging.Warn(context.Background(), "verification service enabled without api key",
			slog.String("component", "verification.client"),
			slog.String("base_url", cfg.BaseURL),
		)
	}
	return c
}

// Enabled reports the static configuration switch.
func (c *Client) Enabled() bool {
	return c != nil && c.cfg.Enabled
}

// Available reports whether verdicts are currently requested. It is false
// when disabled by config or marked down by the health supervisor.
func (c *Client) Available() bool {
	return c.Enabled() && c.available.Load()
}

func (c *Client) SetAvailable(available bool) {
	if c == nil {
		return
	}
	c.available.Store(available && c.cfg.Enabled)
}

type locationBody struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type initialBody struct {
	IssueID     uint64         `json:"issue_id"`
	ImageURLs   []string       `json:"image_urls"`
	Category    string         `json:"category"`
	Location    *locationBody  `json:"location"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type crossCheckBody struct {
	IssueID          uint64         `json:"issue_id"`
	CitizenImages    []string       `json:"citizen_images"`
	GovernmentImages []string       `json:"government_images"`
	Location         *locationBody  `json:"location"`
	IssueCategory    string         `json:"issue_category"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

type resultBody struct {
	Status          string   `json:"status"`
	Confidence      *float64 `json:"confidence"`
	ConfidenceScore *float64 `json:"confidence_score"`
	Reasoning       string   `json:"reasoning"`
	RequestID       string   `json:"request_id"`
	UpdatedAt       string   `json:"updated_at"`
}

func (b resultBody) confidence() *float64 {
	if b.Confidence != nil {
		return b.Confidence
	}
	return b.ConfidenceScore
}

func toLocationBody(loc *ports.Location) *locationBody {
	if loc == nil {
		return nil
	}
	return &locationBody{Latitude: loc.Latitude, Longitude: loc.Longitude}
}

func (c *Client) VerifyInitial(ctx context.Context, req ports.InitialVerificationRequest) *ports.VerificationResult {
	logCtx := logging.WithAttrs(ctx,
		slog.String("component", "verification.client"),
		slog.String("operation", "initial"),
		slog.Uint64("issue_id", req.IssueID),
	)
	if !c.Available() {
		logging.Info(logCtx, "verification service unavailable, skipping initial verification")
		c.metrics.ObserveVerification("initial", "skipped", 0)
		return nil
	}

	body := initialBody{
		IssueID:     req.IssueID,
		ImageURLs:   nonNil(req.ImageURLs),
		Category:    req.Category,
		Location:    toLocationBody(req.Location),
		Description: req.Description,
		Metadata:    req.Metadata,
	}
	return c.verify(logCtx, "initial", pathInitial, body)
}

func (c *Client) VerifyCrossCheck(ctx context.Context, req ports.CrossCheckRequest) (*ports.VerificationResult, error) {
	if len(req.CitizenImages) == 0 {
		return nil, ErrEmptyCitizenImages
	}
	if len(req.GovernmentImages) == 0 {
		return nil, ErrEmptyGovernmentImages
	}

	logCtx := logging.WithAttrs(ctx,
		slog.String("component", "verification.client"),
		slog.String("operation", "cross_check"),
		slog.Uint64("issue_id", req.IssueID),
	)
	if !c.Available() {
		logging.Info(logCtx, "verification service unavailable, skipping cross-check")
		c.metrics.ObserveVerification("cross_check", "skipped", 0)
		return nil, nil
	}

	body := crossCheckBody{
		IssueID:          req.IssueID,
		CitizenImages:    req.CitizenImages,
		GovernmentImages: req.GovernmentImages,
		Location:         toLocationBody(req.Location),
		IssueCategory:    req.Category,
		Metadata:         req.Metadata,
	}
	return c.verify(logCtx, "cross_check", pathCrossCheck, body), nil
}

func (c *Client) verify(ctx context.Context, operation string, path string, body any) *ports.VerificationResult {
	started := time.Now()
	requestID := c.newID()
	ctx = logging.WithAttrs(ctx, slog.String("request_id", requestID))

	var out resultBody
	err := c.call(ctx, callSpec{
		method:    http.MethodPost,
		path:      path,
		body:      body,
		timeout:   c.cfg.Timeout,
		attempts:  c.cfg.MaxAttempts,
		requestID: requestID,
	}, &out)
	elapsed := time.Since(started)
	if err != nil {
		c.metrics.ObserveVerification(operation, outcomeOf(err), elapsed)
		logging.Warn(ctx, "verification call failed",
			slog.Duration("elapsed", elapsed),
			slog.Any("error", errs.Loggable(err)),
		)
		return nil
	}

	c.metrics.ObserveVerification(operation, "ok", elapsed)
	result := &ports.VerificationResult{
		Status:     strings.ToUpper(strings.TrimSpace(out.Status)),
		Confidence: out.confidence(),
		Reasoning:  out.Reasoning,
		RequestID:  out.RequestID,
	}
	if result.RequestID == "" {
		result.RequestID = requestID
	}
	logging.Info(ctx, "verification completed",
		slog.String("status", result.Status),
		slog.Duration("elapsed", elapsed),
	)
	return result
}

func (c *Client) GetVerificationStatus(ctx context.Context, issueID uint64) *ports.VerificationStatus {
	logCtx := logging.WithAttrs(ctx,
		slog.String("component", "verification.client"),
		slog.String("operation", "status"),
		slog.Uint64("issue_id", issueID),
	)
	if !c.Available() {
		return nil
	}

	started := time.Now()
	var out resultBody
	err := c.call(logCtx, callSpec{
		method:    http.MethodGet,
		path:      pathStatus + strconv.FormatUint(issueID, 10),
		timeout:   c.cfg.StatusTimeout,
		attempts:  c.cfg.MaxAttempts,
		requestID: c.newID(),
	}, &out)
	elapsed := time.Since(started)
	if err != nil {
		c.metrics.ObserveVerification("status", outcomeOf(err), elapsed)
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound {
			logging.Info(logCtx, "no verification status recorded")
			return nil
		}
		logging.Warn(logCtx, "verification status lookup failed", slog.Any("error", errs.Loggable(err)))
		return nil
	}

	c.metrics.ObserveVerification("status", "ok", elapsed)
	return &ports.VerificationStatus{
		IssueID:    issueID,
		Status:     strings.ToUpper(strings.TrimSpace(out.Status)),
		Confidence: out.confidence(),
		UpdatedAt:  out.UpdatedAt,
	}
}

// HealthCheck probes the service once without retries. It ignores the
// availability flag so a degraded client can be marked healthy again.
func (c *Client) HealthCheck(ctx context.Context) bool {
	if !c.Enabled() {
		return false
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "verification.client"), slog.String("operation", "health"))
	started := time.Now()
	var out struct {
		Status string `json:"status"`
	}
	err := c.call(logCtx, callSpec{
		method:    http.MethodGet,
		path:      pathHealth,
		timeout:   c.cfg.HealthTimeout,
		attempts:  1,
		requestID: c.newID(),
	}, &out)
	elapsed := time.Since(started)
	if err != nil {
		c.metrics.ObserveVerification("health", outcomeOf(err), elapsed)
		logging.Warn(logCtx, "verification health check failed", slog.Any("error", errs.Loggable(err)))
		return false
	}
	c.metrics.ObserveVerification("health", "ok", elapsed)
	return out.Status == "healthy"
}

// StatusError is a non-2xx reply from the service.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("verification service returned %d", e.Code)
	}
	return fmt.Sprintf("verification service returned %d: %s", e.Code, e.Body)
}

func (e *StatusError) retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= http.StatusInternalServerError
}

type callSpec struct {
	method    string
	path      string
	body      any
	timeout   time.Duration
	attempts  int
	requestID string
}

// call runs one logical request. Transport errors, 429 and 5xx are retried
// with exponential backoff inside the single timeout budget.
func (c *Client) call(ctx context.Context, spec callSpec, out any) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	var payload []byte
	if spec.body != nil {
		encoded, err := json.Marshal(spec.body)
		if err != nil {
			return errs.Wrap(err, "encode verification request")
		}
		payload = encoded
	}

	callCtx, cancel := context.WithTimeout(ctx, spec.timeout)
	defer cancel()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.cfg.RetryInitial

	attempt := 0
	_, err := backoff.Retry(callCtx, func() (struct{}, error) {
		attempt++
		if c.limiter != nil {
			if err := c.limiter.Wait(callCtx); err != nil {
				return struct{}{}, backoff.Permanent(errs.Wrap(err, "wait for rate limiter"))
			}
		}
		err := c.roundTrip(callCtx, spec, payload, out)
		if err != nil && attempt < spec.attempts {
			logging.Debug(ctx, "verification attempt failed",
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(spec.attempts)),
	)
	if err != nil {
		if callCtx.Err() != nil && ctx.Err() == nil {
			return errs.Wrapf(context.DeadlineExceeded, "verification call exceeded %s", spec.timeout)
		}
		return err
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, spec callSpec, payload []byte, out any) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, spec.method, c.cfg.BaseURL+spec.path, reader)
	if err != nil {
		return backoff.Permanent(errs.Wrap(err, "build verification request"))
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if key := strings.TrimSpace(c.cfg.APIKey); key != "" {
		req.Header.Set(headerAPIKey, key)
	}
	if spec.requestID != "" {
		req.Header.Set(headerRequestID, spec.requestID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return errs.Wrap(err, "send verification request")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return errs.Wrap(err, "read verification response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
		if statusErr.retryable() {
			return statusErr
		}
		return backoff.Permanent(statusErr)
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return backoff.Permanent(errs.Wrap(err, "decode verification response"))
	}
	return nil
}

func outcomeOf(err error) string {
	var statusErr *StatusError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &statusErr):
		return "http_" + strconv.Itoa(statusErr.Code)
	default:
		return "error"
	}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
