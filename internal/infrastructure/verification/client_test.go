package verification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"civicfix/internal/bootstrap/config"
	"civicfix/internal/errs"
	"civicfix/internal/ports"
)

func testConfig(baseURL string) config.VerificationConfig {
	return config.VerificationConfig{
		Enabled:       true,
		BaseURL:       baseURL,
		APIKey:        "secret",
		Timeout:       2 * time.Second,
		StatusTimeout: time.Second,
		HealthTimeout: time.Second,
		MaxAttempts:   3,
		RetryInitial:  5 * time.Millisecond,
	}
}

func sampleInitial() ports.InitialVerificationRequest {
	return ports.InitialVerificationRequest{
		IssueID:     42,
		ImageURLs:   []string{"https://cdn.example/a.jpg"},
		Category:    "pothole",
		Location:    &ports.Location{Latitude: 12.97, Longitude: 77.59},
		Description: "deep pothole near the bus stop",
	}
}

func TestVerifyInitialSendsContractAndParsesVerdict(t *testing.T) {
	var gotBody initialBody
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != pathInitial {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get(headerAPIKey) != "secret" {
			t.Errorf("api key header = %q", r.Header.Get(headerAPIKey))
		}
		if r.Header.Get(headerRequestID) == "" {
			t.Errorf("request id header missing")
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		_, _ = w.Write([]byte(`{"status":"verified","confidence_score":0.91,"reasoning":"pothole visible"}`))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), server.Client(), nil)
	result := client.VerifyInitial(context.Background(), sampleInitial())
	if result == nil {
		t.Fatalf("VerifyInitial() = nil, want verdict")
	}
	if result.Status != "VERIFIED" {
		t.Fatalf("Status = %q, want VERIFIED", result.Status)
	}
	if result.Confidence == nil || *result.Confidence != 0.91 {
		t.Fatalf("Confidence = %v, want 0.91", result.Confidence)
	}
	if result.RequestID == "" {
		t.Fatalf("RequestID should fall back to the generated id")
	}
	if gotBody.IssueID != 42 || gotBody.Category != "pothole" || gotBody.Location == nil || gotBody.Location.Latitude != 12.97 {
		t.Fatalf("request body = %+v", gotBody)
	}
}

func TestDisabledClientMakesNoCalls(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.Enabled = false
	client := NewClient(cfg, server.Client(), nil)

	if got := client.VerifyInitial(context.Background(), sampleInitial()); got != nil {
		t.Fatalf("VerifyInitial() = %+v, want nil", got)
	}
	got, err := client.VerifyCrossCheck(context.Background(), ports.CrossCheckRequest{
		IssueID:          42,
		CitizenImages:    []string{"a"},
		GovernmentImages: []string{"b"},
	})
	if err != nil || got != nil {
		t.Fatalf("VerifyCrossCheck() = %+v, %v; want nil, nil", got, err)
	}
	if client.GetVerificationStatus(context.Background(), 42) != nil {
		t.Fatalf("GetVerificationStatus() want nil")
	}
	if client.HealthCheck(context.Background()) {
		t.Fatalf("HealthCheck() = true for disabled client")
	}
	if calls.Load() != 0 {
		t.Fatalf("disabled client made %d calls", calls.Load())
	}
}

func TestVerifyInitialTimeoutReturnsNilWithinBound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(5 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.Timeout = 150 * time.Millisecond
	client := NewClient(cfg, server.Client(), nil)

	started := time.Now()
	if got := client.VerifyInitial(context.Background(), sampleInitial()); got != nil {
		t.Fatalf("VerifyInitial() = %+v, want nil on timeout", got)
	}
	if elapsed := time.Since(started); elapsed > time.Second {
		t.Fatalf("VerifyInitial() took %s, want close to the 150ms bound", elapsed)
	}
}

func TestServerErrorsAreRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"status":"REJECTED","confidence":0.2}`))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), server.Client(), nil)
	result := client.VerifyInitial(context.Background(), sampleInitial())
	if result == nil || result.Status != "REJECTED" {
		t.Fatalf("VerifyInitial() = %+v, want REJECTED after retries", result)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", calls.Load())
	}
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), server.Client(), nil)
	if got := client.VerifyInitial(context.Background(), sampleInitial()); got != nil {
		t.Fatalf("VerifyInitial() = %+v, want nil", got)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
}

func TestCrossCheckRejectsEmptyImageListsLocally(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), server.Client(), nil)

	_, err := client.VerifyCrossCheck(context.Background(), ports.CrossCheckRequest{IssueID: 1, GovernmentImages: []string{"g"}})
	if !errors.Is(err, ErrEmptyCitizenImages) {
		t.Fatalf("VerifyCrossCheck() error = %v, want ErrEmptyCitizenImages", err)
	}
	_, err = client.VerifyCrossCheck(context.Background(), ports.CrossCheckRequest{IssueID: 1, CitizenImages: []string{"c"}})
	if !errors.Is(err, ErrEmptyGovernmentImages) {
		t.Fatalf("VerifyCrossCheck() error = %v, want ErrEmptyGovernmentImages", err)
	}
	if !errs.IsKind(err, errs.KindValidation) {
		t.Fatalf("empty image list should be a validation error")
	}
	if calls.Load() != 0 {
		t.Fatalf("calls = %d, want 0", calls.Load())
	}
}

func TestCrossCheckSendsBothImageSets(t *testing.T) {
	var gotBody crossCheckBody
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != pathCrossCheck {
			t.Errorf("path = %q", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"status":"VERIFIED","request_id":"svc-1"}`))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), server.Client(), nil)
	result, err := client.VerifyCrossCheck(context.Background(), ports.CrossCheckRequest{
		IssueID:          7,
		CitizenImages:    []string{"c1"},
		GovernmentImages: []string{"g1", "g2"},
		Category:         "streetlight",
	})
	if err != nil {
		t.Fatalf("VerifyCrossCheck() error = %v", err)
	}
	if result == nil || result.Status != "VERIFIED" || result.RequestID != "svc-1" {
		t.Fatalf("VerifyCrossCheck() = %+v", result)
	}
	if len(gotBody.GovernmentImages) != 2 || gotBody.IssueCategory != "streetlight" {
		t.Fatalf("request body = %+v", gotBody)
	}
}

func TestGetVerificationStatusNotFoundIsNil(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == pathStatus+"9" {
			_, _ = w.Write([]byte(`{"status":"PENDING","updated_at":"2026-01-01T00:00:00Z"}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), server.Client(), nil)
	if got := client.GetVerificationStatus(context.Background(), 404); got != nil {
		t.Fatalf("GetVerificationStatus(404) = %+v, want nil", got)
	}
	got := client.GetVerificationStatus(context.Background(), 9)
	if got == nil || got.Status != "PENDING" || got.IssueID != 9 {
		t.Fatalf("GetVerificationStatus(9) = %+v", got)
	}
}

func TestHealthCheckAndAvailability(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if healthy.Load() {
			_, _ = w.Write([]byte(`{"status":"healthy"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"starting"}`))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), server.Client(), nil)
	if !client.HealthCheck(context.Background()) {
		t.Fatalf("HealthCheck() = false, want true")
	}
	healthy.Store(false)
	if client.HealthCheck(context.Background()) {
		t.Fatalf("HealthCheck() = true for non-healthy status")
	}

	client.SetAvailable(false)
	if client.Available() {
		t.Fatalf("Available() = true after SetAvailable(false)")
	}
	if got := client.VerifyInitial(context.Background(), sampleInitial()); got != nil {
		t.Fatalf("VerifyInitial() on unavailable client = %+v", got)
	}
	client.SetAvailable(true)
	if !client.Available() {
		t.Fatalf("Available() = false after SetAvailable(true)")
	}
}
