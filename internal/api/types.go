package api

// Boundary timestamps are ISO-8601 strings with millisecond precision and an
// explicit UTC offset; durations are integer milliseconds.

// SampleInput is one probe observation in an ingest batch.
type SampleInput struct {
	Time string `json:"time"`
	Up   bool   `json:"up"`
}

// IngestRequest is a batch of raw samples for one service.
type IngestRequest struct {
	ServiceID string        `json:"serviceID"`
	Samples   []SampleInput `json:"samples"`
}

// IngestResponse reports the outcome of an ingest batch.
type IngestResponse struct {
	IncidentsCreated int   `json:"incidentsCreated"`
	SamplesSkipped   int   `json:"samplesSkipped"`
	WindowsFlagged   int64 `json:"windowsFlagged"`
}

// CreateIncidentRequest creates a manual incident. EndedAt may be omitted to
// open an ongoing incident.
type CreateIncidentRequest struct {
	ServiceID string  `json:"serviceID"`
	StartedAt string  `json:"startedAt"`
	EndedAt   *string `json:"endedAt,omitempty"`
	IsPlanned bool    `json:"isPlanned,omitempty"`
}

// CloseIncidentRequest closes an open incident.
type CloseIncidentRequest struct {
	EndedAt string `json:"endedAt"`
}

// IncidentResponse is the wire form of an incident.
type IncidentResponse struct {
	ID        string  `json:"id"`
	ServiceID string  `json:"serviceID"`
	StartedAt string  `json:"startedAt"`
	EndedAt   *string `json:"endedAt,omitempty"`
	IsPlanned bool    `json:"isPlanned"`
	Source    string  `json:"source"`
	CreatedAt string  `json:"createdAt"`
}

// IncidentListResponse is a list of incidents.
type IncidentListResponse struct {
	Incidents []IncidentResponse `json:"incidents"`
}

// CreateMaintenanceRequest creates an approved maintenance window for
// exactly one service or system.
type CreateMaintenanceRequest struct {
	ServiceID      string `json:"serviceID,omitempty"`
	SystemID       string `json:"systemID,omitempty"`
	StartsAt       string `json:"startsAt"`
	EndsAt         string `json:"endsAt"`
	Reason         string `json:"reason,omitempty"`
	RecurrenceRule string `json:"recurrenceRule,omitempty"`
}

// MaintenanceResponse is the wire form of a maintenance window.
type MaintenanceResponse struct {
	ID             string `json:"id"`
	SubjectKind    string `json:"subjectKind"`
	SubjectID      string `json:"subjectID"`
	StartsAt       string `json:"startsAt"`
	EndsAt         string `json:"endsAt"`
	Reason         string `json:"reason,omitempty"`
	RecurrenceRule string `json:"recurrenceRule,omitempty"`
}

// MaintenanceListResponse is a list of maintenance windows.
type MaintenanceListResponse struct {
	Maintenance []MaintenanceResponse `json:"maintenance"`
}

// WindowResponse is the wire form of a computed SLA window.
type WindowResponse struct {
	ID                   string  `json:"id"`
	SubjectKind          string  `json:"subjectKind"`
	SubjectID            string  `json:"subjectID"`
	PeriodStart          string  `json:"periodStart"`
	PeriodEnd            string  `json:"periodEnd"`
	AvailabilityPct      float64 `json:"availabilityPct"`
	ErrorBudgetAllowedMs int64   `json:"errorBudgetAllowedMs"`
	ErrorBudgetUsedMs    int64   `json:"errorBudgetUsedMs"`
	Status               string  `json:"status"`
	ComputedAt           string  `json:"computedAt"`
	NeedsRecompute       bool    `json:"needsRecompute"`
}

// WindowListResponse is a list of windows.
type WindowListResponse struct {
	Windows []WindowResponse `json:"windows"`
}

// RecomputeRequest forces recomputation for one subject. Omitting the period
// recomputes the current period in the policy's timezone.
type RecomputeRequest struct {
	ServiceID   string  `json:"serviceID,omitempty"`
	SystemID    string  `json:"systemID,omitempty"`
	PeriodStart *string `json:"periodStart,omitempty"`
	PeriodEnd   *string `json:"periodEnd,omitempty"`
}

// ViolationResponse is the wire form of a violation.
type ViolationResponse struct {
	ID          string  `json:"id"`
	PolicyID    string  `json:"policyID"`
	WindowID    string  `json:"windowID"`
	ExpectedPct float64 `json:"expectedPct"`
	ObservedPct float64 `json:"observedPct"`
	Reason      string  `json:"reason,omitempty"`
	CreatedAt   string  `json:"createdAt"`
}

// ViolationListResponse is a list of violations.
type ViolationListResponse struct {
	Violations []ViolationResponse `json:"violations"`
}

// PolicySummary contains summary information about a loaded policy.
type PolicySummary struct {
	ID        string  `json:"id"`
	Service   string  `json:"service,omitempty"`
	System    string  `json:"system,omitempty"`
	TargetPct float64 `json:"targetPct"`
	Period    string  `json:"period"`
	Timezone  string  `json:"timezone"`
}

// PolicyListResponse represents the loaded policy set.
type PolicyListResponse struct {
	Policies []PolicySummary `json:"policies"`
}

// HealthResponse represents health check response.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse represents readiness check response.
type ReadyResponse struct {
	Ready          bool     `json:"ready"`
	PoliciesLoaded int      `json:"policiesLoaded"`
	Reasons        []string `json:"reasons,omitempty"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}
