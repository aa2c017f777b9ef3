package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"
)

// SQLiteEventRepository implements EventRepository for SQLite.
type SQLiteEventRepository struct {
	db *sql.DB
}

func NewSQLiteEventRepository(db *sql.DB) *SQLiteEventRepository {
	return &SQLiteEventRepository{db: db}
}

func (r *SQLiteEventRepository) Append(ctx context.Context, event StoredEvent) error {
	payloadBytes, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	query := `
		INSERT INTO events (id, badge_id, timestamp_ms, event_type, quest_id, payload)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		event.ID, event.BadgeID, event.Timestamp.UnixMilli(), event.EventType,
		event.QuestID, string(payloadBytes),
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

const selectEvents = `SELECT id, badge_id, timestamp_ms, event_type, quest_id, payload FROM events`

func (r *SQLiteEventRepository) getMany(ctx context.Context, query string, args ...any) ([]StoredEvent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []StoredEvent
	for rows.Next() {
		var e StoredEvent
		var ts int64
		var payloadStr string
		if err := rows.Scan(&e.ID, &e.BadgeID, &ts, &e.EventType, &e.QuestID, &payloadStr); err != nil {
			return nil, err
		}
		e.Timestamp = time.UnixMilli(ts).UTC()
		if err := json.Unmarshal([]byte(payloadStr), &e.Payload); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *SQLiteEventRepository) ListByBadge(ctx context.Context, badgeID string, limit int) ([]StoredEvent, error) {
	if limit <= 0 {
		query := selectEvents + ` WHERE badge_id = ? ORDER BY timestamp_ms ASC, rowid ASC`
		return r.getMany(ctx, query, badgeID)
	}
	query := selectEvents + ` WHERE badge_id = ? ORDER BY timestamp_ms DESC, rowid DESC LIMIT ?`
	events, err := r.getMany(ctx, query, badgeID, limit)
	if err != nil {
		return nil, err
	}
	slices.Reverse(events)
	return events, nil
}

func (r *SQLiteEventRepository) ListByQuest(ctx context.Context, badgeID string, questID int) ([]StoredEvent, error) {
	query := selectEvents + ` WHERE badge_id = ? AND quest_id = ? ORDER BY timestamp_ms ASC, rowid ASC`
	return r.getMany(ctx, query, badgeID, questID)
}

func (r *SQLiteEventRepository) ListByType(ctx context.Context, badgeID, eventType string) ([]StoredEvent, error) {
	query := selectEvents + ` WHERE badge_id = ? AND event_type = ? ORDER BY timestamp_ms ASC, rowid ASC`
	return r.getMany(ctx, query, badgeID, eventType)
}

// ---------------------------------------------------------
// SQLiteBlobStore
// ---------------------------------------------------------

// SQLiteBlobStore keeps namespaced blobs in the blobs table.
type SQLiteBlobStore struct {
	db *sql.DB
}

func NewSQLiteBlobStore(db *sql.DB) *SQLiteBlobStore {
	return &SQLiteBlobStore{db: db}
}

func (s *SQLiteBlobStore) Load(ctx context.Context, namespace, key string) ([]byte, bool, error) {
	query := `SELECT data FROM blobs WHERE namespace = ? AND key = ?`
	var data []byte
	err := s.db.QueryRowContext(ctx, query, namespace, key).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("load blob %s/%s: %w", namespace, key, err)
	}
	return data, true, nil
}

func (s *SQLiteBlobStore) Save(ctx context.Context, namespace, key string, data []byte) error {
	query := `
		INSERT INTO blobs (namespace, key, data, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(namespace, key) DO UPDATE SET
			data=excluded.data,
			updated_at=excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, namespace, key, data, time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("save blob %s/%s: %w", namespace, key, err)
	}
	return nil
}

func (s *SQLiteBlobStore) Delete(ctx context.Context, namespace, key string) error {
	query := `DELETE FROM blobs WHERE namespace = ? AND key = ?`
	if _, err := s.db.ExecContext(ctx, query, namespace, key); err != nil {
		return fmt.Errorf("delete blob %s/%s: %w", namespace, key, err)
	}
	return nil
}
