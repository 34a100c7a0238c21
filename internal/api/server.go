package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sentinelsla/sentinel/internal/incident"
	"github.com/sentinelsla/sentinel/internal/policy"
	"github.com/sentinelsla/sentinel/internal/scheduler"
	"github.com/sentinelsla/sentinel/internal/sla"
	"github.com/sentinelsla/sentinel/internal/storage"
)

// isoMillis is the boundary timestamp format: millisecond precision with an
// explicit offset.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// SourceManual marks incidents created through the API.
const SourceManual = "manual"

// Server is the HTTP API server.
type Server struct {
	scheduler *scheduler.Scheduler
	store     storage.Store
	builder   *incident.Builder
	server    *http.Server
}

// NewServer creates a new API server.
func NewServer(sched *scheduler.Scheduler, store storage.Store, builder *incident.Builder, addr string) *Server {
	s := &Server{
		scheduler: sched,
		store:     store,
		builder:   builder,
	}

	mux := http.NewServeMux()

	// Health endpoints
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)

	// Policy endpoints
	mux.HandleFunc("/v1/policies", s.handlePolicyList)
	mux.HandleFunc("/v1/policies/", s.handlePolicyGet)

	// Sample ingestion
	mux.HandleFunc("/v1/samples", s.handleSamples)

	// Incident endpoints
	mux.HandleFunc("/v1/incidents", s.handleIncidents)
	mux.HandleFunc("/v1/incidents/", s.handleIncidentClose)

	// Maintenance endpoints
	mux.HandleFunc("/v1/maintenance", s.handleMaintenance)

	// Window endpoints
	mux.HandleFunc("/v1/windows", s.handleWindowList)
	mux.HandleFunc("/v1/windows/recompute", s.handleRecompute)

	// Violation endpoint
	mux.HandleFunc("/v1/violations", s.handleViolations)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      loggingMiddleware(mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	log.Printf("Starting API server on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down API server...")
	return s.server.Shutdown(ctx)
}

// Handler returns the server's handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// handleHealth handles GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	respondJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// handleReady handles GET /readyz
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	policies := s.scheduler.GetResolver().Policies()

	ready := len(policies) > 0
	reasons := []string{}
	if len(policies) == 0 {
		reasons = append(reasons, "no policies loaded")
	}
	if s.scheduler.GetCache().Size() == 0 {
		reasons = append(reasons, "no windows computed yet")
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}

	respondJSON(w, status, ReadyResponse{
		Ready:          ready,
		PoliciesLoaded: len(policies),
		Reasons:        reasons,
	})
}

// handlePolicyList handles GET /v1/policies
func (s *Server) handlePolicyList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	policies := s.scheduler.GetResolver().Policies()

	summaries := make([]PolicySummary, 0, len(policies))
	for _, pwf := range policies {
		pol := pwf.Policy
		summaries = append(summaries, PolicySummary{
			ID:        pol.Metadata.ID,
			Service:   pol.Metadata.Service,
			System:    pol.Metadata.System,
			TargetPct: pol.Spec.TargetPct,
			Period:    pol.Spec.Period,
			Timezone:  pol.Spec.Timezone,
		})
	}

	respondJSON(w, http.StatusOK, PolicyListResponse{Policies: summaries})
}

// handlePolicyGet handles GET /v1/policies/{id}
func (s *Server) handlePolicyGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/policies/")
	if id == "" {
		respondError(w, http.StatusBadRequest, "policy ID required")
		return
	}

	pol := s.scheduler.GetResolver().Get(id)
	if pol == nil {
		respondError(w, http.StatusNotFound, fmt.Sprintf("policy not found: %s", id))
		return
	}

	respondJSON(w, http.StatusOK, pol)
}

// handleSamples handles POST /v1/samples: a raw sample batch is run through
// the incident builder and any windows overlapping the detected incidents
// are flagged for recomputation.
func (s *Server) handleSamples(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}
	if req.ServiceID == "" {
		respondError(w, http.StatusBadRequest, "serviceID required")
		return
	}

	samples := make([]sla.Sample, 0, len(req.Samples))
	for _, in := range req.Samples {
		ts, err := time.Parse(time.RFC3339, in.Time)
		if err != nil {
			// Zero time: the builder skips and counts it.
			samples = append(samples, sla.Sample{Up: in.Up})
			continue
		}
		samples = append(samples, sla.Sample{Time: ts, Up: in.Up})
	}

	// The effective policy's detection stanza overrides the default
	// debouncing knobs. A service without a policy ingests with defaults.
	builder := s.builder
	subject := sla.Subject{Kind: sla.SubjectService, ID: req.ServiceID}
	if pol, err := s.scheduler.GetResolver().Resolve(subject, time.Now()); err == nil {
		builder, err = builder.WithPolicy(pol.Spec.Detection)
		if err != nil {
			respondError(w, http.StatusInternalServerError,
				fmt.Sprintf("detection config for policy %s: %v", pol.Metadata.ID, err))
			return
		}
	}

	created, skipped, err := builder.Run(req.ServiceID, samples, time.Now())
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("ingest failed: %v", err))
		return
	}

	var flagged int64
	for _, inc := range created {
		end := time.Now()
		if inc.EndedAt != nil {
			end = *inc.EndedAt
		}
		n, err := s.store.FlagRecompute(inc.ServiceID, inc.StartedAt, end)
		if err != nil {
			log.Printf("Warning: failed to flag windows for %s: %v", inc.ServiceID, err)
			continue
		}
		flagged += n
	}

	respondJSON(w, http.StatusOK, IngestResponse{
		IncidentsCreated: len(created),
		SamplesSkipped:   skipped,
		WindowsFlagged:   flagged,
	})
}

// handleIncidents handles GET and POST /v1/incidents
func (s *Server) handleIncidents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listIncidents(w, r)
	case http.MethodPost:
		s.createIncident(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) listIncidents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	serviceID := query.Get("service")
	if serviceID == "" {
		respondError(w, http.StatusBadRequest, "service query parameter required")
		return
	}

	from, to, err := parseRange(query.Get("from"), query.Get("to"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	incidents, err := s.store.ListIncidents(serviceID, from, to)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list incidents: %v", err))
		return
	}

	out := make([]IncidentResponse, 0, len(incidents))
	for _, inc := range incidents {
		out = append(out, incidentResponse(inc))
	}

	respondJSON(w, http.StatusOK, IncidentListResponse{Incidents: out})
}

func (s *Server) createIncident(w http.ResponseWriter, r *http.Request) {
	var req CreateIncidentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}
	if req.ServiceID == "" {
		respondError(w, http.StatusBadRequest, "serviceID required")
		return
	}

	startedAt, err := time.Parse(time.RFC3339, req.StartedAt)
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid startedAt: %v", err))
		return
	}

	inc := sla.Incident{
		ServiceID: req.ServiceID,
		StartedAt: startedAt,
		IsPlanned: req.IsPlanned,
		Source:    SourceManual,
	}
	if req.EndedAt != nil {
		endedAt, err := time.Parse(time.RFC3339, *req.EndedAt)
		if err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid endedAt: %v", err))
			return
		}
		inc.EndedAt = &endedAt
	}

	created, err := s.store.CreateIncident(inc)
	if err != nil {
		if errors.Is(err, sla.ErrInvalidRange) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to create incident: %v", err))
		return
	}

	respondJSON(w, http.StatusCreated, incidentResponse(created))
}

// handleIncidentClose handles POST /v1/incidents/{id}/close
func (s *Server) handleIncidentClose(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/v1/incidents/")
	id, ok := strings.CutSuffix(path, "/close")
	if !ok || id == "" {
		respondError(w, http.StatusBadRequest, "invalid path format, expected /v1/incidents/{id}/close")
		return
	}

	var req CloseIncidentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}

	endedAt, err := time.Parse(time.RFC3339, req.EndedAt)
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid endedAt: %v", err))
		return
	}

	if err := s.store.CloseIncident(id, endedAt); err != nil {
		if errors.Is(err, sla.ErrInvalidRange) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, HealthResponse{Status: "closed"})
}

// handleMaintenance handles GET and POST /v1/maintenance
func (s *Server) handleMaintenance(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listMaintenance(w, r)
	case http.MethodPost:
		s.createMaintenance(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) listMaintenance(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	subject, err := subjectFromParams(query.Get("service"), query.Get("system"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	from, to, err := parseRange(query.Get("from"), query.Get("to"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	windows, err := s.store.ListMaintenance(subject, from, to)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list maintenance: %v", err))
		return
	}

	out := make([]MaintenanceResponse, 0, len(windows))
	for _, mw := range windows {
		out = append(out, maintenanceResponse(mw))
	}

	respondJSON(w, http.StatusOK, MaintenanceListResponse{Maintenance: out})
}

func (s *Server) createMaintenance(w http.ResponseWriter, r *http.Request) {
	var req CreateMaintenanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}

	subject, err := subjectFromParams(req.ServiceID, req.SystemID)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	startsAt, err := time.Parse(time.RFC3339, req.StartsAt)
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid startsAt: %v", err))
		return
	}
	endsAt, err := time.Parse(time.RFC3339, req.EndsAt)
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid endsAt: %v", err))
		return
	}

	created, err := s.store.CreateMaintenance(sla.MaintenanceWindow{
		Subject:        subject,
		StartsAt:       startsAt,
		EndsAt:         endsAt,
		Reason:         req.Reason,
		RecurrenceRule: req.RecurrenceRule,
	})
	if err != nil {
		if errors.Is(err, sla.ErrInvalidRange) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to create maintenance: %v", err))
		return
	}

	respondJSON(w, http.StatusCreated, maintenanceResponse(created))
}

// handleWindowList handles GET /v1/windows
func (s *Server) handleWindowList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()

	subject, err := subjectFromParams(query.Get("service"), query.Get("system"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	from, to, err := parseRange(query.Get("from"), query.Get("to"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	windows, err := s.store.ListWindows(subject, from, to)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list windows: %v", err))
		return
	}

	out := make([]WindowResponse, 0, len(windows))
	for _, win := range windows {
		out = append(out, windowResponse(win))
	}

	respondJSON(w, http.StatusOK, WindowListResponse{Windows: out})
}

// handleRecompute handles POST /v1/windows/recompute
func (s *Server) handleRecompute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req RecomputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}

	subject, err := subjectFromParams(req.ServiceID, req.SystemID)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var periodStart, periodEnd *time.Time
	if (req.PeriodStart == nil) != (req.PeriodEnd == nil) {
		respondError(w, http.StatusBadRequest, "periodStart and periodEnd must be supplied together")
		return
	}
	if req.PeriodStart != nil {
		start, err := time.Parse(time.RFC3339, *req.PeriodStart)
		if err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid periodStart: %v", err))
			return
		}
		end, err := time.Parse(time.RFC3339, *req.PeriodEnd)
		if err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid periodEnd: %v", err))
			return
		}
		periodStart, periodEnd = &start, &end
	}

	win, err := s.scheduler.RecomputeNow(subject, periodStart, periodEnd)
	if err != nil {
		switch {
		case errors.Is(err, sla.ErrInvalidRange):
			respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, policy.ErrNotFound):
			respondError(w, http.StatusNotFound, err.Error())
		default:
			respondError(w, http.StatusInternalServerError, fmt.Sprintf("recompute failed: %v", err))
		}
		return
	}

	respondJSON(w, http.StatusOK, windowResponse(*win))
}

// handleViolations handles GET /v1/violations
func (s *Server) handleViolations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()
	policyID := query.Get("policy")
	if policyID == "" {
		respondError(w, http.StatusBadRequest, "policy query parameter required")
		return
	}

	limit := 0
	if limitStr := query.Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil {
			limit = n
		}
	}

	violations, err := s.store.ListViolations(policyID, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list violations: %v", err))
		return
	}

	out := make([]ViolationResponse, 0, len(violations))
	for _, v := range violations {
		out = append(out, ViolationResponse{
			ID:          v.ID,
			PolicyID:    v.PolicyID,
			WindowID:    v.WindowID,
			ExpectedPct: v.ExpectedPct,
			ObservedPct: v.ObservedPct,
			Reason:      v.Reason,
			CreatedAt:   v.CreatedAt.UTC().Format(isoMillis),
		})
	}

	respondJSON(w, http.StatusOK, ViolationListResponse{Violations: out})
}

// Helper functions

func subjectFromParams(serviceID, systemID string) (sla.Subject, error) {
	if (serviceID == "") == (systemID == "") {
		return sla.Subject{}, fmt.Errorf("exactly one of service or system must be set")
	}
	if systemID != "" {
		return sla.Subject{Kind: sla.SubjectSystem, ID: systemID}, nil
	}
	return sla.Subject{Kind: sla.SubjectService, ID: serviceID}, nil
}

func parseRange(fromStr, toStr string) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	from := now.AddDate(0, -1, 0)
	to := now

	if fromStr != "" {
		parsed, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid from: %v", err)
		}
		from = parsed
	}
	if toStr != "" {
		parsed, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid to: %v", err)
		}
		to = parsed
	}

	if !to.After(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid range: to must be after from")
	}

	return from, to, nil
}

func incidentResponse(inc sla.Incident) IncidentResponse {
	resp := IncidentResponse{
		ID:        inc.ID,
		ServiceID: inc.ServiceID,
		StartedAt: inc.StartedAt.UTC().Format(isoMillis),
		IsPlanned: inc.IsPlanned,
		Source:    inc.Source,
		CreatedAt: inc.CreatedAt.UTC().Format(isoMillis),
	}
	if inc.EndedAt != nil {
		ended := inc.EndedAt.UTC().Format(isoMillis)
		resp.EndedAt = &ended
	}
	return resp
}

func maintenanceResponse(mw sla.MaintenanceWindow) MaintenanceResponse {
	return MaintenanceResponse{
		ID:             mw.ID,
		SubjectKind:    string(mw.Subject.Kind),
		SubjectID:      mw.Subject.ID,
		StartsAt:       mw.StartsAt.UTC().Format(isoMillis),
		EndsAt:         mw.EndsAt.UTC().Format(isoMillis),
		Reason:         mw.Reason,
		RecurrenceRule: mw.RecurrenceRule,
	}
}

func windowResponse(win sla.Window) WindowResponse {
	return WindowResponse{
		ID:                   win.ID,
		SubjectKind:          string(win.Subject.Kind),
		SubjectID:            win.Subject.ID,
		PeriodStart:          win.PeriodStart.UTC().Format(isoMillis),
		PeriodEnd:            win.PeriodEnd.UTC().Format(isoMillis),
		AvailabilityPct:      win.AvailabilityPct,
		ErrorBudgetAllowedMs: win.ErrorBudgetAllowedMs,
		ErrorBudgetUsedMs:    win.ErrorBudgetUsedMs,
		Status:               string(win.Status),
		ComputedAt:           win.ComputedAt.UTC().Format(isoMillis),
		NeedsRecompute:       win.NeedsRecompute,
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}
