package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	domainlifecycle "civicfix/internal/domain/lifecycle"
	"civicfix/internal/domain/timeline"
	"civicfix/internal/errs"
	"civicfix/internal/ports"
	"civicfix/internal/usecase/lifecycle"
)

type fakeLifecycle struct {
	events      map[uint64][]timeline.Event
	callbackErr error
	lastInput   lifecycle.CallbackInput
}

func (f *fakeLifecycle) ListTimeline(_ context.Context, issueID uint64) ([]timeline.Event, error) {
	events, ok := f.events[issueID]
	if !ok {
		return nil, errs.WithKind(ports.ErrIssueNotFound, errs.KindNotFound)
	}
	return events, nil
}

func (f *fakeLifecycle) ApplyVerificationCallback(_ context.Context, input lifecycle.CallbackInput) (lifecycle.TransitionResult, error) {
	f.lastInput = input
	if f.callbackErr != nil {
		return lifecycle.TransitionResult{}, f.callbackErr
	}
	snapshot := domainlifecycle.NewSnapshot()
	snapshot.AIStatus = domainlifecycle.AIVerified
	snapshot.Version = 3
	return lifecycle.TransitionResult{
		Issue: ports.Issue{IssueID: input.IssueID, Lifecycle: snapshot},
		Events: []timeline.Event{
			{ID: 2, IssueID: input.IssueID, Type: timeline.EventAIVerificationCompleted, ActorType: timeline.ActorAI, Description: "AI verification completed: VERIFIED"},
			{ID: 3, IssueID: input.IssueID, Type: timeline.EventIssuePublished, ActorType: timeline.ActorSystem, Description: "Issue published"},
		},
	}, nil
}

type staticHealth []ports.DependencyHealth

func (s staticHealth) Health(context.Context) []ports.DependencyHealth { return s }

func newTestServer(t *testing.T, lc *fakeLifecycle, health ports.HealthReporter, apiKey string) *httptest.Server {
	t.Helper()
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "civicfix_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	server := httptest.NewServer(NewRouter(context.Background(), Deps{
		Lifecycle:      lc,
		Health:         health,
		Gatherer:       reg,
		CallbackAPIKey: apiKey,
	}))
	t.Cleanup(server.Close)
	return server
}

func TestTimelineEndpoint(t *testing.T) {
	created := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	lc := &fakeLifecycle{events: map[uint64][]timeline.Event{
		7: {{ID: 1, IssueID: 7, Type: timeline.EventIssueCreated, ActorType: timeline.ActorCitizen, Description: "Issue reported: Pothole", CreatedAt: created}},
	}}
	server := newTestServer(t, lc, nil, "")

	testCases := []struct {
		name   string
		path   string
		status int
	}{
		{name: "existing issue", path: "/api/v1/issues/7/timeline", status: http.StatusOK},
		{name: "unknown issue", path: "/api/v1/issues/8/timeline", status: http.StatusNotFound},
		{name: "malformed id", path: "/api/v1/issues/abc/timeline", status: http.StatusBadRequest},
		{name: "zero id", path: "/api/v1/issues/0/timeline", status: http.StatusBadRequest},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			resp, err := http.Get(server.URL + testCase.path)
			if err != nil {
				t.Fatalf("GET %s error = %v", testCase.path, err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != testCase.status {
				t.Fatalf("GET %s status = %d, want %d", testCase.path, resp.StatusCode, testCase.status)
			}
		})
	}

	resp, err := http.Get(server.URL + "/api/v1/issues/7/timeline")
	if err != nil {
		t.Fatalf("GET timeline error = %v", err)
	}
	defer resp.Body.Close()
	var body timelineResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode timeline: %v", err)
	}
	if body.Total != 1 || body.Events[0].EventType != "ISSUE_CREATED" || body.Events[0].CreatedAt != "2026-03-01T08:00:00Z" {
		t.Fatalf("timeline body = %+v", body)
	}
	if body.Events[0].ImageURLs == nil {
		t.Fatalf("image_urls should encode as an empty list")
	}
}

func TestVerificationCallbackEndpoint(t *testing.T) {
	lc := &fakeLifecycle{}
	server := newTestServer(t, lc, nil, "secret")

	post := func(key string, body string) *http.Response {
		t.Helper()
		req, err := http.NewRequest(http.MethodPost, server.URL+"/api/v1/issues/5/verification", strings.NewReader(body))
		if err != nil {
			t.Fatalf("build request: %v", err)
		}
		if key != "" {
			req.Header.Set("X-API-Key", key)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("POST callback error = %v", err)
		}
		return resp
	}

	resp := post("wrong", `{"status":"VERIFIED"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong key status = %d, want 401", resp.StatusCode)
	}

	resp = post("secret", `{"phase":"Initial","status":"VERIFIED","confidence_score":0.82,"request_id":"req-9"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("callback status = %d, want 200", resp.StatusCode)
	}
	var body callbackResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode callback: %v", err)
	}
	if body.AIStatus != "VERIFIED" || body.Version != 3 || len(body.Events) != 2 {
		t.Fatalf("callback body = %+v", body)
	}
	if lc.lastInput.Phase != timeline.PhaseInitial || lc.lastInput.Confidence == nil || *lc.lastInput.Confidence != 0.82 {
		t.Fatalf("callback input = %+v", lc.lastInput)
	}

	bad := post("secret", `{"status":`)
	bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Fatalf("malformed body status = %d, want 400", bad.StatusCode)
	}

	lc.callbackErr = errs.WithKind(domainlifecycle.ErrStaleTransition, errs.KindConflict)
	stale := post("secret", `{"status":"REJECTED"}`)
	stale.Body.Close()
	if stale.StatusCode != http.StatusConflict {
		t.Fatalf("stale callback status = %d, want 409", stale.StatusCode)
	}

	lc.callbackErr = errors.New("disk on fire")
	failed := post("secret", `{"status":"REJECTED"}`)
	defer failed.Body.Close()
	if failed.StatusCode != http.StatusInternalServerError {
		t.Fatalf("storage failure status = %d, want 500", failed.StatusCode)
	}
	var errBody errorResponse
	if err := json.NewDecoder(failed.Body).Decode(&errBody); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if errBody.Message != "" {
		t.Fatalf("internal error leaked message %q", errBody.Message)
	}
}

func TestVerificationCallbackRefusedWithoutAPIKey(t *testing.T) {
	lc := &fakeLifecycle{}
	server := newTestServer(t, lc, nil, "")

	req, err := http.NewRequest(http.MethodPost, server.URL+"/api/v1/issues/5/verification", strings.NewReader(`{"status":"VERIFIED"}`))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("X-API-Key", "anything")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST callback error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
	if lc.lastInput.IssueID != 0 {
		t.Fatalf("callback reached the lifecycle: %+v", lc.lastInput)
	}
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	health := staticHealth{
		{Name: "database", State: ports.HealthHealthy},
		{Name: "verification", State: ports.HealthDegraded, Error: "connection refused"},
	}
	server := newTestServer(t, &fakeLifecycle{}, health, "")

	resp, err := http.Get(server.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health error = %v", err)
	}
	defer resp.Body.Close()
	var body healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if body.Status != "degraded" || len(body.Dependencies) != 2 {
		t.Fatalf("health body = %+v", body)
	}

	metricsResp, err := http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	defer metricsResp.Body.Close()
	raw, err := io.ReadAll(metricsResp.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(string(raw), "civicfix_test_total 1") {
		t.Fatalf("metrics output missing registered counter:\n%s", raw)
	}
}
