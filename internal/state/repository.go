package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// SnapshotEntry is one persisted property value.
type SnapshotEntry struct {
	Value     any
	Timestamp time.Time
}

// SnapshotRepository persists the latest accepted value of each property so
// state survives a restart.
type SnapshotRepository interface {
	// Save upserts the current value of one property.
	Save(ctx context.Context, name string, value any, timestamp time.Time) error

	// Load returns every persisted property value keyed by name.
	Load(ctx context.Context) (map[string]SnapshotEntry, error)
}

// SQLiteSnapshotRepository stores property values in the state_snapshot
// table, one row per property, values serialized as JSON.
type SQLiteSnapshotRepository struct {
	db *sql.DB
}

// NewSQLiteSnapshotRepository creates a snapshot repository backed by db.
// The state_snapshot table must already exist (created by migrations).
func NewSQLiteSnapshotRepository(db *sql.DB) *SQLiteSnapshotRepository {
	return &SQLiteSnapshotRepository{db: db}
}

// Save upserts one property value.
func (r *SQLiteSnapshotRepository) Save(ctx context.Context, name string, value any, timestamp time.Time) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding snapshot value for %q: %w", name, err)
	}

	query := `
		INSERT INTO state_snapshot (property, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(property) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`
	if _, err := r.db.ExecContext(ctx, query, name, string(encoded), timestamp.UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("saving snapshot for %q: %w", name, err)
	}
	return nil
}

// Load returns every persisted property value.
func (r *SQLiteSnapshotRepository) Load(ctx context.Context) (map[string]SnapshotEntry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT property, value, updated_at FROM state_snapshot`)
	if err != nil {
		return nil, fmt.Errorf("querying state snapshot: %w", err)
	}
	defer rows.Close()

	out := make(map[string]SnapshotEntry)
	for rows.Next() {
		var name, encoded, updatedAt string
		if err := rows.Scan(&name, &encoded, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}

		var value any
		if err := json.Unmarshal([]byte(encoded), &value); err != nil {
			return nil, fmt.Errorf("decoding snapshot value for %q: %w", name, err)
		}
		ts, err := time.Parse(time.RFC3339Nano, updatedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing snapshot timestamp for %q: %w", name, err)
		}
		out[name] = SnapshotEntry{Value: value, Timestamp: ts}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating snapshot rows: %w", err)
	}
	return out, nil
}
