package command

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// HistoryEntry is one recorded command lifecycle transition.
type HistoryEntry struct {
	// ID is the auto-incremented primary key for the history row.
	ID int64 `json:"id"`

	// CommandID is the manager-assigned instance id.
	CommandID string `json:"command_id"`

	// Name is the fully-qualified command name.
	Name string `json:"name"`

	// State is the lifecycle state entered by this transition.
	State string `json:"state"`

	// Detail carries the error code and message for aborted/error states.
	Detail string `json:"detail,omitempty"`

	// CreatedAt is the transition timestamp (UTC).
	CreatedAt time.Time `json:"created_at"`
}

// HistoryRepository stores and retrieves command lifecycle transitions.
//
// Implementations must be thread-safe and use UTC timestamps.
type HistoryRepository interface {
	// RecordTransition appends one transition row for a command instance.
	RecordTransition(ctx context.Context, commandID, name, state, detail string) error

	// GetHistory returns recent transitions for a command, newest first.
	// The limit may be clamped by the implementation.
	GetHistory(ctx context.Context, commandID string, limit int) ([]HistoryEntry, error)
}

// SQLiteHistoryRepository implements HistoryRepository using SQLite.
// Rows live in the command_history table.
type SQLiteHistoryRepository struct {
	db *sql.DB
}

// NewSQLiteHistoryRepository creates a new SQLite command history repository.
func NewSQLiteHistoryRepository(db *sql.DB) *SQLiteHistoryRepository {
	return &SQLiteHistoryRepository{db: db}
}

// RecordTransition appends one transition row.
func (r *SQLiteHistoryRepository) RecordTransition(ctx context.Context, commandID, name, state, detail string) error {
	if commandID == "" {
		return fmt.Errorf("command id is required")
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO command_history (command_id, name, state, detail, created_at) VALUES (?, ?, ?, ?, ?)",
		commandID, name, state, detail, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting command history: %w", err)
	}
	return nil
}

// GetHistory returns recent transitions for a command, newest first.
func (r *SQLiteHistoryRepository) GetHistory(ctx context.Context, commandID string, limit int) ([]HistoryEntry, error) {
	if commandID == "" {
		return nil, fmt.Errorf("command id is required")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, command_id, name, state, detail, created_at
		 FROM command_history
		 WHERE command_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		commandID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying command history: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only cursor cleanup

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var createdAt string
		if err := rows.Scan(&e.ID, &e.CommandID, &e.Name, &e.State, &e.Detail, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning command history row: %w", err)
		}
		e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing command history timestamp: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating command history rows: %w", err)
	}
	return entries, nil
}
