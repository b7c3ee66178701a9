package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// DraftStore keeps serialized drafts in the drafts table, one row per key.
type DraftStore struct {
	db *sql.DB
}

func NewDraftStore(db *sql.DB) *DraftStore {
	return &DraftStore{db: db}
}

func (s *DraftStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM drafts WHERE key = ?
	`, key).Scan(&value)

	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get draft: %w", err)
	}

	return value, true, nil
}

func (s *DraftStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO drafts (key, value, updated_at) VALUES (?, ?, datetime('now'))
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}
	return nil
}

// Remove deletes the draft stored under key. Removing a missing key is not
// an error.
func (s *DraftStore) Remove(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM drafts WHERE key = ?
	`, key); err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	return nil
}

// DraftInfo describes one stored draft without its content.
type DraftInfo struct {
	Key       string
	Bytes     int
	UpdatedAt time.Time
}

func (s *DraftStore) List(ctx context.Context) ([]DraftInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, length(CAST(value AS BLOB)), updated_at FROM drafts ORDER BY updated_at DESC, key ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list drafts: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("failed to close rows", "error", err)
		}
	}()

	var drafts []DraftInfo
	for rows.Next() {
		var info DraftInfo
		if err := rows.Scan(&info.Key, &info.Bytes, &info.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan draft: %w", err)
		}
		drafts = append(drafts, info)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating drafts: %w", err)
	}

	return drafts, nil
}
