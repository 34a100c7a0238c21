package sla

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidRange is returned when a caller supplies a time range whose end
// is not after its start. Invalid ranges are rejected before any computation
// or write, never silently corrected.
var ErrInvalidRange = errors.New("invalid range: end must be after start")

// Status classifies a computed window against its error budget.
type Status string

const (
	StatusOK       Status = "OK"
	StatusAtRisk   Status = "AT_RISK"
	StatusBreached Status = "BREACHED"
)

// SubjectKind distinguishes the two grouping keys a policy may target.
type SubjectKind string

const (
	SubjectService SubjectKind = "service"
	SubjectSystem  SubjectKind = "system"
)

// Subject identifies what a policy, maintenance window, or computed window
// applies to: exactly one service or one system.
type Subject struct {
	Kind SubjectKind
	ID   string
}

// Key returns a stable composite key for map and storage use.
func (s Subject) Key() string {
	return string(s.Kind) + ":" + s.ID
}

func (s Subject) String() string {
	return fmt.Sprintf("%s/%s", s.Kind, s.ID)
}

// Incident is a discrete downtime interval for a service. An incident with a
// nil EndedAt is open (ongoing). Invariant: EndedAt, when set, is after
// StartedAt.
type Incident struct {
	ID        string
	ServiceID string
	StartedAt time.Time
	EndedAt   *time.Time
	IsPlanned bool
	Source    string // "samples", "manual", "auto-open", "auto-recovery"
	CreatedAt time.Time
}

// MaintenanceWindow is a pre-approved downtime interval excluded from SLA
// penalty. Invariant: EndsAt is after StartsAt.
type MaintenanceWindow struct {
	ID             string
	Subject        Subject
	StartsAt       time.Time
	EndsAt         time.Time
	Reason         string
	RecurrenceRule string
}

// Window is the computed availability record for one (subject, period) pair.
// There is exactly one logical row per subject and period; recomputation
// upserts in place.
type Window struct {
	ID                   string
	Subject              Subject
	PeriodStart          time.Time
	PeriodEnd            time.Time
	AvailabilityPct      float64
	ErrorBudgetAllowedMs int64
	ErrorBudgetUsedMs    int64
	Status               Status
	ComputedAt           time.Time
	NeedsRecompute       bool
}

// Violation records a window that transitioned to BREACHED. At most one
// violation exists per (PolicyID, WindowID) pair; violations are append-only.
type Violation struct {
	ID          string
	PolicyID    string
	WindowID    string
	ExpectedPct float64
	ObservedPct float64
	Reason      string
	CreatedAt   time.Time
}
