package store

import "database/sql"

// Schema is the complete monitoring schema. All timestamps are Unix
// milliseconds; all IDs are generated strings (see idgen).
const Schema = `
-- Full-text captures of each monitored page
CREATE TABLE IF NOT EXISTS snapshots (
    id              TEXT PRIMARY KEY,
    source_url      TEXT NOT NULL,
    content_hash    TEXT NOT NULL,
    normalized_text TEXT NOT NULL,
    captured_at     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_source ON snapshots(source_url, captured_at DESC);

-- Detected changes with AI summaries, drafts, and approval lifecycle
CREATE TABLE IF NOT EXISTS changes (
    id              TEXT PRIMARY KEY,
    source_url      TEXT NOT NULL,
    old_snapshot_id TEXT REFERENCES snapshots(id),
    new_snapshot_id TEXT NOT NULL REFERENCES snapshots(id),
    diff_text       TEXT NOT NULL DEFAULT '',
    ai_summary      TEXT NOT NULL DEFAULT '',
    patient_draft   TEXT NOT NULL DEFAULT '',
    clinician_draft TEXT NOT NULL DEFAULT '',
    status          TEXT NOT NULL DEFAULT 'pending',
    -- status: pending | approved | rejected | sent
    detected_at     INTEGER NOT NULL,
    approved_at     INTEGER,
    approved_by     TEXT,
    sent_at         INTEGER
);
CREATE INDEX IF NOT EXISTS idx_changes_status ON changes(status, detected_at DESC);

-- Patients and clinicians who receive updates
CREATE TABLE IF NOT EXISTS recipients (
    id                  TEXT PRIMARY KEY,
    name                TEXT NOT NULL,
    email               TEXT NOT NULL UNIQUE,
    type                TEXT NOT NULL,
    -- type: patient | clinician
    relevant_conditions TEXT NOT NULL DEFAULT '[]',
    active              INTEGER NOT NULL DEFAULT 1,
    created_at          INTEGER NOT NULL
);

-- Every delivery attempt ever made, for the audit trail
CREATE TABLE IF NOT EXISTS outbound_messages (
    id           TEXT PRIMARY KEY,
    change_id    TEXT NOT NULL REFERENCES changes(id),
    recipient_id TEXT NOT NULL REFERENCES recipients(id),
    subject      TEXT NOT NULL,
    body         TEXT NOT NULL,
    status       TEXT NOT NULL DEFAULT 'pending',
    -- status: pending | sent | failed
    sent_at      INTEGER,
    error        TEXT NOT NULL DEFAULT '',
    created_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_outbound_change ON outbound_messages(change_id, created_at);
CREATE INDEX IF NOT EXISTS idx_outbound_status ON outbound_messages(status);
`

// ApplySchema creates all tables and indexes on the given database.
// Idempotent (CREATE IF NOT EXISTS).
func ApplySchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
