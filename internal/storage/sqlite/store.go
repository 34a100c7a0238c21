package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/sentinelsla/sentinel/internal/sla"
	"github.com/sentinelsla/sentinel/internal/storage"
)

// Store implements storage.Store using SQLite.
type Store struct {
	db *sql.DB
}

// NewStore creates a new SQLite store with the given database path.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// CreateIncident inserts a new incident. A supplied end time that is not
// after the start time is rejected before any write.
func (s *Store) CreateIncident(inc sla.Incident) (sla.Incident, error) {
	if inc.EndedAt != nil && !inc.EndedAt.After(inc.StartedAt) {
		return sla.Incident{}, fmt.Errorf("%w: incident end %s not after start %s",
			sla.ErrInvalidRange, inc.EndedAt.Format(time.RFC3339), inc.StartedAt.Format(time.RFC3339))
	}

	inc.ID = uuid.NewString()
	inc.CreatedAt = time.Now().UTC()
	inc.StartedAt = inc.StartedAt.UTC()
	if inc.EndedAt != nil {
		ended := inc.EndedAt.UTC()
		inc.EndedAt = &ended
	}

	query := `
		INSERT INTO incidents (id, service_id, started_at, ended_at, is_planned, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		inc.ID,
		inc.ServiceID,
		inc.StartedAt,
		inc.EndedAt,
		inc.IsPlanned,
		inc.Source,
		inc.CreatedAt,
	)
	if err != nil {
		return sla.Incident{}, fmt.Errorf("failed to store incident: %w", err)
	}

	return inc, nil
}

// CloseIncident sets the end time of an open incident.
func (s *Store) CloseIncident(id string, endedAt time.Time) error {
	var startedAt time.Time
	err := s.db.QueryRow("SELECT started_at FROM incidents WHERE id = ? AND ended_at IS NULL", id).
		Scan(&startedAt)
	if err == sql.ErrNoRows {
		return fmt.Errorf("open incident not found: %s", id)
	}
	if err != nil {
		return fmt.Errorf("failed to load incident: %w", err)
	}

	if !endedAt.After(startedAt) {
		return fmt.Errorf("%w: incident end %s not after start %s",
			sla.ErrInvalidRange, endedAt.Format(time.RFC3339), startedAt.Format(time.RFC3339))
	}

	_, err = s.db.Exec("UPDATE incidents SET ended_at = ? WHERE id = ?", endedAt.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to close incident: %w", err)
	}
	return nil
}

// ListIncidents returns incidents for a service overlapping [from, to),
// including incidents still open.
func (s *Store) ListIncidents(serviceID string, from, to time.Time) ([]sla.Incident, error) {
	query := `
		SELECT id, service_id, started_at, ended_at, is_planned, source, created_at
		FROM incidents
		WHERE service_id = ?
		  AND started_at < ?
		  AND (ended_at IS NULL OR ended_at > ?)
		ORDER BY started_at ASC
	`

	rows, err := s.db.Query(query, serviceID, to.UTC(), from.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query incidents: %w", err)
	}
	defer rows.Close()

	var incidents []sla.Incident
	for rows.Next() {
		var inc sla.Incident
		var endedAt sql.NullTime

		err := rows.Scan(
			&inc.ID,
			&inc.ServiceID,
			&inc.StartedAt,
			&endedAt,
			&inc.IsPlanned,
			&inc.Source,
			&inc.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan incident: %w", err)
		}

		if endedAt.Valid {
			ended := endedAt.Time
			inc.EndedAt = &ended
		}

		incidents = append(incidents, inc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return incidents, nil
}

// CreateMaintenance inserts a new maintenance window after validating its
// bounds.
func (s *Store) CreateMaintenance(mw sla.MaintenanceWindow) (sla.MaintenanceWindow, error) {
	if !mw.EndsAt.After(mw.StartsAt) {
		return sla.MaintenanceWindow{}, fmt.Errorf("%w: maintenance end %s not after start %s",
			sla.ErrInvalidRange, mw.EndsAt.Format(time.RFC3339), mw.StartsAt.Format(time.RFC3339))
	}

	mw.ID = uuid.NewString()
	mw.StartsAt = mw.StartsAt.UTC()
	mw.EndsAt = mw.EndsAt.UTC()

	query := `
		INSERT INTO maintenance_windows (id, subject_kind, subject_id, starts_at, ends_at, reason, recurrence_rule)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		mw.ID,
		string(mw.Subject.Kind),
		mw.Subject.ID,
		mw.StartsAt,
		mw.EndsAt,
		mw.Reason,
		mw.RecurrenceRule,
	)
	if err != nil {
		return sla.MaintenanceWindow{}, fmt.Errorf("failed to store maintenance window: %w", err)
	}

	return mw, nil
}

// ListMaintenance returns maintenance windows for a subject overlapping
// [from, to).
func (s *Store) ListMaintenance(subject sla.Subject, from, to time.Time) ([]sla.MaintenanceWindow, error) {
	query := `
		SELECT id, subject_kind, subject_id, starts_at, ends_at, reason, recurrence_rule
		FROM maintenance_windows
		WHERE subject_kind = ? AND subject_id = ?
		  AND starts_at < ? AND ends_at > ?
		ORDER BY starts_at ASC
	`

	rows, err := s.db.Query(query, string(subject.Kind), subject.ID, to.UTC(), from.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query maintenance windows: %w", err)
	}
	defer rows.Close()

	var windows []sla.MaintenanceWindow
	for rows.Next() {
		var mw sla.MaintenanceWindow
		var kind string

		err := rows.Scan(
			&mw.ID,
			&kind,
			&mw.Subject.ID,
			&mw.StartsAt,
			&mw.EndsAt,
			&mw.Reason,
			&mw.RecurrenceRule,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan maintenance window: %w", err)
		}
		mw.Subject.Kind = sla.SubjectKind(kind)

		windows = append(windows, mw)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return windows, nil
}

// UpsertWindow updates the row for the window's subject and period in place,
// inserting it if absent. The row keeps its original ID across
// recomputations so violations stay attached to it.
func (s *Store) UpsertWindow(w sla.Window) (sla.Window, error) {
	w.PeriodStart = w.PeriodStart.UTC()
	w.PeriodEnd = w.PeriodEnd.UTC()
	w.ComputedAt = w.ComputedAt.UTC()

	query := `
		INSERT INTO sla_windows (
			id, subject_kind, subject_id, period_start, period_end,
			availability_pct, error_budget_allowed_ms, error_budget_used_ms,
			status, computed_at, needs_recompute
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(subject_kind, subject_id, period_start, period_end) DO UPDATE SET
			availability_pct = excluded.availability_pct,
			error_budget_allowed_ms = excluded.error_budget_allowed_ms,
			error_budget_used_ms = excluded.error_budget_used_ms,
			status = excluded.status,
			computed_at = excluded.computed_at,
			needs_recompute = excluded.needs_recompute
	`

	_, err := s.db.Exec(query,
		uuid.NewString(),
		string(w.Subject.Kind),
		w.Subject.ID,
		w.PeriodStart,
		w.PeriodEnd,
		w.AvailabilityPct,
		w.ErrorBudgetAllowedMs,
		w.ErrorBudgetUsedMs,
		string(w.Status),
		w.ComputedAt,
		w.NeedsRecompute,
	)
	if err != nil {
		return sla.Window{}, fmt.Errorf("failed to upsert window: %w", err)
	}

	stored, err := s.GetWindow(w.Subject, w.PeriodStart, w.PeriodEnd)
	if err != nil {
		return sla.Window{}, err
	}
	if stored == nil {
		return sla.Window{}, fmt.Errorf("window missing after upsert for %s", w.Subject)
	}

	return *stored, nil
}

// GetWindow returns the window for the exact subject and period, or nil.
func (s *Store) GetWindow(subject sla.Subject, periodStart, periodEnd time.Time) (*sla.Window, error) {
	query := `
		SELECT id, subject_kind, subject_id, period_start, period_end,
		       availability_pct, error_budget_allowed_ms, error_budget_used_ms,
		       status, computed_at, needs_recompute
		FROM sla_windows
		WHERE subject_kind = ? AND subject_id = ? AND period_start = ? AND period_end = ?
	`

	row := s.db.QueryRow(query, string(subject.Kind), subject.ID, periodStart.UTC(), periodEnd.UTC())
	w, err := scanWindow(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get window: %w", err)
	}

	return &w, nil
}

// ListWindows returns windows for a subject overlapping [from, to).
func (s *Store) ListWindows(subject sla.Subject, from, to time.Time) ([]sla.Window, error) {
	query := `
		SELECT id, subject_kind, subject_id, period_start, period_end,
		       availability_pct, error_budget_allowed_ms, error_budget_used_ms,
		       status, computed_at, needs_recompute
		FROM sla_windows
		WHERE subject_kind = ? AND subject_id = ?
		  AND period_start < ? AND period_end > ?
		ORDER BY period_start ASC
	`

	rows, err := s.db.Query(query, string(subject.Kind), subject.ID, to.UTC(), from.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query windows: %w", err)
	}
	defer rows.Close()

	var windows []sla.Window
	for rows.Next() {
		w, err := scanWindow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan window: %w", err)
		}
		windows = append(windows, w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return windows, nil
}

// FlagRecompute marks windows keyed by the given service that overlap
// [from, to) as needing recomputation.
func (s *Store) FlagRecompute(serviceID string, from, to time.Time) (int64, error) {
	query := `
		UPDATE sla_windows
		SET needs_recompute = 1
		WHERE subject_kind = ? AND subject_id = ? AND period_start < ? AND period_end > ?
	`

	res, err := s.db.Exec(query, string(sla.SubjectService), serviceID, to.UTC(), from.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to flag windows: %w", err)
	}

	return res.RowsAffected()
}

// FindViolation returns the violation for the pair, or nil if none exists.
func (s *Store) FindViolation(policyID, windowID string) (*sla.Violation, error) {
	query := `
		SELECT id, policy_id, window_id, expected_pct, observed_pct, reason, created_at
		FROM violations
		WHERE policy_id = ? AND window_id = ?
	`

	var v sla.Violation
	err := s.db.QueryRow(query, policyID, windowID).Scan(
		&v.ID,
		&v.PolicyID,
		&v.WindowID,
		&v.ExpectedPct,
		&v.ObservedPct,
		&v.Reason,
		&v.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find violation: %w", err)
	}

	return &v, nil
}

// CreateViolation inserts a violation. The unique (policy_id, window_id)
// index guards against concurrent double-insert: on conflict the existing
// row is returned.
func (s *Store) CreateViolation(v sla.Violation) (sla.Violation, error) {
	v.ID = uuid.NewString()
	v.CreatedAt = time.Now().UTC()

	query := `
		INSERT OR IGNORE INTO violations (id, policy_id, window_id, expected_pct, observed_pct, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	res, err := s.db.Exec(query,
		v.ID,
		v.PolicyID,
		v.WindowID,
		v.ExpectedPct,
		v.ObservedPct,
		v.Reason,
		v.CreatedAt,
	)
	if err != nil {
		return sla.Violation{}, fmt.Errorf("failed to store violation: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		existing, err := s.FindViolation(v.PolicyID, v.WindowID)
		if err != nil {
			return sla.Violation{}, err
		}
		if existing != nil {
			return *existing, nil
		}
	}

	return v, nil
}

// ListViolations returns violations for a policy, newest first.
func (s *Store) ListViolations(policyID string, limit int) ([]sla.Violation, error) {
	query := `
		SELECT id, policy_id, window_id, expected_pct, observed_pct, reason, created_at
		FROM violations
		WHERE policy_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.Query(query, policyID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query violations: %w", err)
	}
	defer rows.Close()

	var violations []sla.Violation
	for rows.Next() {
		var v sla.Violation
		err := rows.Scan(
			&v.ID,
			&v.PolicyID,
			&v.WindowID,
			&v.ExpectedPct,
			&v.ObservedPct,
			&v.Reason,
			&v.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan violation: %w", err)
		}
		violations = append(violations, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return violations, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func scanWindow(scan func(dest ...interface{}) error) (sla.Window, error) {
	var w sla.Window
	var kind, status string

	err := scan(
		&w.ID,
		&kind,
		&w.Subject.ID,
		&w.PeriodStart,
		&w.PeriodEnd,
		&w.AvailabilityPct,
		&w.ErrorBudgetAllowedMs,
		&w.ErrorBudgetUsedMs,
		&status,
		&w.ComputedAt,
		&w.NeedsRecompute,
	)
	if err != nil {
		return sla.Window{}, err
	}

	w.Subject.Kind = sla.SubjectKind(kind)
	w.Status = sla.Status(status)
	return w, nil
}

// Interface compliance.
var _ storage.Store = (*Store)(nil)
