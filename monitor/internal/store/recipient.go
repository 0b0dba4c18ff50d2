package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const recipientColumns = `id, name, email, type, relevant_conditions, active, created_at`

// InsertRecipient adds a recipient with insert-or-ignore semantics keyed on
// the unique email. Returns the stored recipient's ID and whether a new row
// was created; a repeated add with the same email is a silent no-op that
// returns the existing ID.
func (s *Store) InsertRecipient(ctx context.Context, r *Recipient) (string, bool, error) {
	if r.CreatedAt == 0 {
		r.CreatedAt = time.Now().UnixMilli()
	}
	if r.ConditionsJSON == "" {
		r.ConditionsJSON = "[]"
	}
	res, err := s.DB.ExecContext(ctx,
		`INSERT OR IGNORE INTO recipients (id, name, email, type, relevant_conditions, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Name, r.Email, r.Type, r.ConditionsJSON, boolToInt(r.Active), r.CreatedAt,
	)
	if err != nil {
		return "", false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", false, err
	}
	if n == 1 {
		return r.ID, true, nil
	}

	// Duplicate email: report the existing row.
	existing, err := s.GetRecipientByEmail(ctx, r.Email)
	if err != nil {
		return "", false, err
	}
	if existing == nil {
		return "", false, fmt.Errorf("recipient insert ignored but email %q not found", r.Email)
	}
	return existing.ID, false, nil
}

// GetRecipient retrieves a recipient by ID, or nil if not found.
func (s *Store) GetRecipient(ctx context.Context, id string) (*Recipient, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+recipientColumns+` FROM recipients WHERE id = ?`, id)
	return scanRecipient(row)
}

// GetRecipientByEmail retrieves a recipient by email, or nil if not found.
func (s *Store) GetRecipientByEmail(ctx context.Context, email string) (*Recipient, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+recipientColumns+` FROM recipients WHERE email = ?`, email)
	return scanRecipient(row)
}

// ListActiveRecipients returns active recipients in insertion order.
// An empty recipientType lists both audiences.
func (s *Store) ListActiveRecipients(ctx context.Context, recipientType string) ([]*Recipient, error) {
	query := `SELECT ` + recipientColumns + ` FROM recipients WHERE active = 1`
	args := []any{}
	if recipientType != "" {
		query += ` AND type = ?`
		args = append(args, recipientType)
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recipients []*Recipient
	for rows.Next() {
		var r Recipient
		var active int
		if err := rows.Scan(&r.ID, &r.Name, &r.Email, &r.Type, &r.ConditionsJSON, &active, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan recipient: %w", err)
		}
		r.Active = active != 0
		recipients = append(recipients, &r)
	}
	return recipients, rows.Err()
}

// DeactivateRecipient soft-deletes a recipient. The row stays so historical
// outbound messages keep a valid reference.
func (s *Store) DeactivateRecipient(ctx context.Context, id string) (bool, error) {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE recipients SET active = 0 WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func scanRecipient(row *sql.Row) (*Recipient, error) {
	var r Recipient
	var active int
	err := row.Scan(&r.ID, &r.Name, &r.Email, &r.Type, &r.ConditionsJSON, &active, &r.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan recipient: %w", err)
	}
	r.Active = active != 0
	return &r, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
