package storage

import (
	"time"

	"github.com/sentinelsla/sentinel/internal/sla"
)

// IncidentStore persists and queries incident intervals.
type IncidentStore interface {
	// CreateIncident inserts a new incident and returns it with its
	// generated ID and CreatedAt set.
	CreateIncident(inc sla.Incident) (sla.Incident, error)

	// CloseIncident sets the end time of an open incident.
	CloseIncident(id string, endedAt time.Time) error

	// ListIncidents returns incidents for a service that overlap
	// [from, to), including incidents still open.
	ListIncidents(serviceID string, from, to time.Time) ([]sla.Incident, error)
}

// MaintenanceStore persists and queries approved maintenance windows.
type MaintenanceStore interface {
	CreateMaintenance(mw sla.MaintenanceWindow) (sla.MaintenanceWindow, error)

	// ListMaintenance returns maintenance windows for a subject that
	// overlap [from, to).
	ListMaintenance(subject sla.Subject, from, to time.Time) ([]sla.MaintenanceWindow, error)
}

// WindowStore persists computed SLA windows, one logical row per
// (subject, periodStart, periodEnd).
type WindowStore interface {
	// UpsertWindow updates the row for the window's subject and period in
	// place, inserting it if absent. The stored row keeps its original ID
	// across recomputations.
	UpsertWindow(w sla.Window) (sla.Window, error)

	GetWindow(subject sla.Subject, periodStart, periodEnd time.Time) (*sla.Window, error)

	ListWindows(subject sla.Subject, from, to time.Time) ([]sla.Window, error)

	// FlagRecompute marks windows for a service overlapping [from, to) as
	// needing recomputation and returns the number of rows flagged.
	FlagRecompute(serviceID string, from, to time.Time) (int64, error)
}

// ViolationStore persists breach violations. Creation must be idempotent per
// (policyID, windowID).
type ViolationStore interface {
	// FindViolation returns the violation for the pair, or nil if none
	// exists.
	FindViolation(policyID, windowID string) (*sla.Violation, error)

	CreateViolation(v sla.Violation) (sla.Violation, error)

	ListViolations(policyID string, limit int) ([]sla.Violation, error)
}

// Store is the full persistence surface the engine needs.
type Store interface {
	IncidentStore
	MaintenanceStore
	WindowStore
	ViolationStore

	Close() error
}
