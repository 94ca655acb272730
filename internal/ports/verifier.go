package ports

import "context"

type InitialVerificationRequest struct {
	IssueID     uint64
	ImageURLs   []string
	Category    string
	Location    *Location
	Description string
	Metadata    map[string]any
}

type CrossCheckRequest struct {
	IssueID          uint64
	CitizenImages    []string
	GovernmentImages []string
	Location         *Location
	Category         string
	Metadata         map[string]any
}

type VerificationResult struct {
	Status     string
	Confidence *float64
	Reasoning  string
	RequestID  string
}

type VerificationStatus struct {
	IssueID    uint64
	Status     string
	Confidence *float64
	UpdatedAt  string
}

// Verifier talks to the external AI verification service. A nil result
// means no verdict is available; the service being down is not an error.
type Verifier interface {
	VerifyInitial(ctx context.Context, req InitialVerificationRequest) *VerificationResult
	VerifyCrossCheck(ctx context.Context, req CrossCheckRequest) (*VerificationResult, error)
	GetVerificationStatus(ctx context.Context, issueID uint64) *VerificationStatus
	HealthCheck(ctx context.Context) bool
}

// MediaResolver turns stored media references into URLs the verifier can fetch.
type MediaResolver interface {
	ResolveMediaURLs(ctx context.Context, refs []string) ([]string, error)
}
