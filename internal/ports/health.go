package ports

import (
	"context"
	"time"
)

type HealthState string

const (
	HealthHealthy  HealthState = "healthy"
	HealthDegraded HealthState = "degraded"
	HealthDisabled HealthState = "disabled"
)

type DependencyHealth struct {
	Name      string        `json:"name"`
	State     HealthState   `json:"status"`
	Error     string        `json:"error,omitempty"`
	Latency   time.Duration `json:"latency_ns"`
	CheckedAt time.Time     `json:"checked_at"`
}

type HealthReporter interface {
	Health(ctx context.Context) []DependencyHealth
}
