package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const outboundColumns = `id, change_id, recipient_id, subject, body, status, sent_at, error, created_at`

// InsertOutbound persists an outbound message in pending status. Called
// before the delivery attempt so a crash mid-send leaves a recoverable row.
func (s *Store) InsertOutbound(ctx context.Context, m *OutboundMessage) error {
	if m.CreatedAt == 0 {
		m.CreatedAt = time.Now().UnixMilli()
	}
	if m.Status == "" {
		m.Status = MessagePending
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO outbound_messages (id, change_id, recipient_id, subject, body, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.ChangeID, m.RecipientID, m.Subject, m.Body, m.Status, m.CreatedAt,
	)
	return err
}

// MarkMessageSent records a successful delivery. Guarded on pending status so
// a message receives exactly one terminal write.
func (s *Store) MarkMessageSent(ctx context.Context, id string) (bool, error) {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE outbound_messages SET status=?, sent_at=? WHERE id=? AND status=?`,
		MessageSent, time.Now().UnixMilli(), id, MessagePending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// MarkMessageFailed records a failed delivery with the error detail.
// Same exactly-one-terminal-write guard as MarkMessageSent.
func (s *Store) MarkMessageFailed(ctx context.Context, id, errMsg string) (bool, error) {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE outbound_messages SET status=?, error=? WHERE id=? AND status=?`,
		MessageFailed, errMsg, id, MessagePending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ListOutbound returns all messages for a change in creation order.
func (s *Store) ListOutbound(ctx context.Context, changeID string) ([]*OutboundMessage, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+outboundColumns+` FROM outbound_messages
		WHERE change_id = ? ORDER BY created_at ASC, id ASC`, changeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOutbound(rows)
}

// ListPendingOutbound returns messages stuck in pending. After a crash these
// are the rows whose delivery outcome is unknown; surfaced for manual
// reconciliation, never retried automatically.
func (s *Store) ListPendingOutbound(ctx context.Context) ([]*OutboundMessage, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+outboundColumns+` FROM outbound_messages
		WHERE status = ? ORDER BY created_at ASC`, MessagePending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOutbound(rows)
}

func collectOutbound(rows *sql.Rows) ([]*OutboundMessage, error) {
	var messages []*OutboundMessage
	for rows.Next() {
		var m OutboundMessage
		if err := rows.Scan(&m.ID, &m.ChangeID, &m.RecipientID, &m.Subject, &m.Body,
			&m.Status, &m.SentAt, &m.Error, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbound message: %w", err)
		}
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}
