package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// InsertSnapshot persists a new snapshot. Snapshots are immutable; there is
// no update path.
func (s *Store) InsertSnapshot(ctx context.Context, snap *Snapshot) error {
	if snap.CapturedAt == 0 {
		snap.CapturedAt = time.Now().UnixMilli()
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO snapshots (id, source_url, content_hash, normalized_text, captured_at)
		VALUES (?, ?, ?, ?, ?)`,
		snap.ID, snap.SourceURL, snap.ContentHash, snap.NormalizedText, snap.CapturedAt,
	)
	return err
}

// LatestSnapshot returns the most recent snapshot for a source, or nil if the
// source has never been captured.
func (s *Store) LatestSnapshot(ctx context.Context, sourceURL string) (*Snapshot, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, source_url, content_hash, normalized_text, captured_at
		FROM snapshots WHERE source_url = ?
		ORDER BY captured_at DESC, id DESC LIMIT 1`, sourceURL)

	var snap Snapshot
	err := row.Scan(&snap.ID, &snap.SourceURL, &snap.ContentHash, &snap.NormalizedText, &snap.CapturedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan snapshot: %w", err)
	}
	return &snap, nil
}

// GetSnapshot retrieves a snapshot by ID.
func (s *Store) GetSnapshot(ctx context.Context, id string) (*Snapshot, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, source_url, content_hash, normalized_text, captured_at
		FROM snapshots WHERE id = ?`, id)

	var snap Snapshot
	err := row.Scan(&snap.ID, &snap.SourceURL, &snap.ContentHash, &snap.NormalizedText, &snap.CapturedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan snapshot: %w", err)
	}
	return &snap, nil
}

// CountSnapshots returns the number of snapshots for a source.
func (s *Store) CountSnapshots(ctx context.Context, sourceURL string) (int, error) {
	var count int
	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM snapshots WHERE source_url = ?`, sourceURL).Scan(&count)
	return count, err
}
