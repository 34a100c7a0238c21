package sqlite

// Schema defines the SQLite database schema.
const Schema = `
-- Incident intervals, open incidents have a NULL ended_at
CREATE TABLE IF NOT EXISTS incidents (
	id TEXT PRIMARY KEY,
	service_id TEXT NOT NULL,
	started_at TIMESTAMP NOT NULL,
	ended_at TIMESTAMP,
	is_planned BOOLEAN NOT NULL DEFAULT 0,
	source TEXT NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_incidents_service_started ON incidents(service_id, started_at);

-- Approved maintenance windows
CREATE TABLE IF NOT EXISTS maintenance_windows (
	id TEXT PRIMARY KEY,
	subject_kind TEXT NOT NULL,
	subject_id TEXT NOT NULL,
	starts_at TIMESTAMP NOT NULL,
	ends_at TIMESTAMP NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	recurrence_rule TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_maintenance_subject ON maintenance_windows(subject_kind, subject_id, starts_at);

-- Computed SLA windows, one logical row per subject and period
CREATE TABLE IF NOT EXISTS sla_windows (
	id TEXT PRIMARY KEY,
	subject_kind TEXT NOT NULL,
	subject_id TEXT NOT NULL,
	period_start TIMESTAMP NOT NULL,
	period_end TIMESTAMP NOT NULL,
	availability_pct REAL NOT NULL,
	error_budget_allowed_ms INTEGER NOT NULL,
	error_budget_used_ms INTEGER NOT NULL,
	status TEXT NOT NULL,
	computed_at TIMESTAMP NOT NULL,
	needs_recompute BOOLEAN NOT NULL DEFAULT 0,
	UNIQUE(subject_kind, subject_id, period_start, period_end)
);

CREATE INDEX IF NOT EXISTS idx_windows_subject ON sla_windows(subject_kind, subject_id, period_start);

-- Breach violations, append-only, at most one per (policy, window)
CREATE TABLE IF NOT EXISTS violations (
	id TEXT PRIMARY KEY,
	policy_id TEXT NOT NULL,
	window_id TEXT NOT NULL,
	expected_pct REAL NOT NULL,
	observed_pct REAL NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL,
	UNIQUE(policy_id, window_id)
);

CREATE INDEX IF NOT EXISTS idx_violations_policy ON violations(policy_id, created_at DESC);
`
