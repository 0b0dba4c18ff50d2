package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const changeColumns = `id, source_url, old_snapshot_id, new_snapshot_id, diff_text,
	ai_summary, patient_draft, clinician_draft, status,
	detected_at, approved_at, approved_by, sent_at`

// InsertChange persists a newly detected change in pending status.
func (s *Store) InsertChange(ctx context.Context, c *Change) error {
	if c.DetectedAt == 0 {
		c.DetectedAt = time.Now().UnixMilli()
	}
	if c.Status == "" {
		c.Status = StatusPending
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO changes (id, source_url, old_snapshot_id, new_snapshot_id, diff_text,
		ai_summary, patient_draft, clinician_draft, status, detected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.SourceURL, c.OldSnapshotID, c.NewSnapshotID, c.DiffText,
		c.AISummary, c.PatientDraft, c.ClinicianDraft, c.Status, c.DetectedAt,
	)
	return err
}

// GetChange retrieves a change by ID, or nil if not found.
func (s *Store) GetChange(ctx context.Context, id string) (*Change, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+changeColumns+` FROM changes WHERE id = ?`, id)
	return scanChange(row)
}

// ListChanges returns changes ordered newest first. An empty status lists all.
func (s *Store) ListChanges(ctx context.Context, status string) ([]*Change, error) {
	query := `SELECT ` + changeColumns + ` FROM changes`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY detected_at DESC, id DESC`

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var changes []*Change
	for rows.Next() {
		c, err := scanChangeRows(rows)
		if err != nil {
			return nil, err
		}
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

// ResolveChange records the review decision (approved or rejected) with actor
// and timestamp. The WHERE status='pending' guard makes the transition happen
// at most once under concurrent callers; the return value reports whether
// this call won.
func (s *Store) ResolveChange(ctx context.Context, id, newStatus, actor string) (bool, error) {
	if newStatus != StatusApproved && newStatus != StatusRejected {
		return false, fmt.Errorf("resolve change: invalid target status %q", newStatus)
	}
	res, err := s.DB.ExecContext(ctx,
		`UPDATE changes SET status=?, approved_at=?, approved_by=?
		WHERE id=? AND status=?`,
		newStatus, time.Now().UnixMilli(), actor, id, StatusPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// MarkChangeSent records the terminal sent transition. Guarded on the
// approved state so it can only happen once, and never from pending or
// rejected.
func (s *Store) MarkChangeSent(ctx context.Context, id string) (bool, error) {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE changes SET status=?, sent_at=? WHERE id=? AND status=?`,
		StatusSent, time.Now().UnixMilli(), id, StatusApproved)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// UpdateDrafts replaces both draft texts. Only legal while the change is
// still pending; edits are not versioned.
func (s *Store) UpdateDrafts(ctx context.Context, id, patientDraft, clinicianDraft string) (bool, error) {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE changes SET patient_draft=?, clinician_draft=?
		WHERE id=? AND status=?`,
		patientDraft, clinicianDraft, id, StatusPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func scanChange(row *sql.Row) (*Change, error) {
	var c Change
	err := row.Scan(
		&c.ID, &c.SourceURL, &c.OldSnapshotID, &c.NewSnapshotID, &c.DiffText,
		&c.AISummary, &c.PatientDraft, &c.ClinicianDraft, &c.Status,
		&c.DetectedAt, &c.ApprovedAt, &c.ApprovedBy, &c.SentAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan change: %w", err)
	}
	return &c, nil
}

func scanChangeRows(rows *sql.Rows) (*Change, error) {
	var c Change
	err := rows.Scan(
		&c.ID, &c.SourceURL, &c.OldSnapshotID, &c.NewSnapshotID, &c.DiffText,
		&c.AISummary, &c.PatientDraft, &c.ClinicianDraft, &c.Status,
		&c.DetectedAt, &c.ApprovedAt, &c.ApprovedBy, &c.SentAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan change: %w", err)
	}
	return &c, nil
}
