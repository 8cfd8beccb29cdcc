package models

import (
	"time"

	"github.com/google/uuid"
)

type InvocationSource string

const (
	SourceLive     InvocationSource = "live"
	SourceFallback InvocationSource = "fallback"
	SourceRejected InvocationSource = "rejected"
)

// InvocationRecord is one audit entry of the advice pipeline. It carries
// operational data only: no user identifiers, messages or context values.
type InvocationRecord struct {
	ID            uuid.UUID        `json:"id"`
	RequestID     string           `json:"request_id"`
	Role          string           `json:"role"`
	Tier          string           `json:"tier"`
	Kind          string           `json:"kind"`
	Provider      string           `json:"provider"`
	Model         string           `json:"model"`
	Category      string           `json:"category,omitempty"`
	Source        InvocationSource `json:"source"`
	Success       bool             `json:"success"`
	FailureReason *string          `json:"failure_reason,omitempty"`
	LatencyMS     int64            `json:"latency_ms"`
	CreatedAt     time.Time        `json:"created_at"`
}

type RoleUsage struct {
	Role     string `json:"role"`
	Live     int    `json:"live"`
	Fallback int    `json:"fallback"`
	Rejected int    `json:"rejected"`
}

type DailyCount struct {
	Day   time.Time
	Count int
}

type UsageStats struct {
	Total    int
	Live     int
	Fallback int
	Rejected int
	ByRole   []RoleUsage
	ByDay    []DailyCount
}
