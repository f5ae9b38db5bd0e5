package thing

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200

	// historyTimeFormat is fixed-width so stored timestamps sort lexically.
	historyTimeFormat = "2006-01-02T15:04:05.000000Z"
)

// SQLiteHistoryRepository implements HistoryRepository using SQLite.
//
// Values are stored as JSON in the property_history table.
type SQLiteHistoryRepository struct {
	db *sql.DB
}

// NewSQLiteHistoryRepository creates a history repository on an open database.
func NewSQLiteHistoryRepository(db *sql.DB) *SQLiteHistoryRepository {
	return &SQLiteHistoryRepository{db: db}
}

// Record inserts a history entry for an accepted write.
func (r *SQLiteHistoryRepository) Record(ctx context.Context, change Change) error {
	if change.Thing == "" || change.Property == "" {
		return fmt.Errorf("thing id and property are required")
	}
	if change.Source == "" {
		change.Source = SourceLocal
	}
	if change.At.IsZero() {
		change.At = time.Now()
	}

	valueJSON, err := json.Marshal(change.Value)
	if err != nil {
		return fmt.Errorf("marshalling value: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		"INSERT INTO property_history (thing_id, property, value, source, created_at) VALUES (?, ?, ?, ?, ?)",
		change.Thing,
		change.Property,
		string(valueJSON),
		change.Source,
		change.At.UTC().Format(historyTimeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting property history: %w", err)
	}

	return nil
}

// GetHistory returns recent history entries for a property, ordered newest first.
//
// limit defaults to 50 and is capped at 200.
func (r *SQLiteHistoryRepository) GetHistory(ctx context.Context, thingID, property string, limit int) ([]HistoryEntry, error) {
	if thingID == "" || property == "" {
		return nil, fmt.Errorf("thing id and property are required")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, thing_id, property, value, source, created_at
		 FROM property_history
		 WHERE thing_id = ? AND property = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		thingID,
		property,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying property history: %w", err)
	}
	defer rows.Close()

	entries := make([]HistoryEntry, 0, limit)
	for rows.Next() {
		var entry HistoryEntry
		var valueJSON string
		var createdAt string

		if err := rows.Scan(&entry.ID, &entry.ThingID, &entry.Property, &valueJSON, &entry.Source, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning property history: %w", err)
		}

		if err := json.Unmarshal([]byte(valueJSON), &entry.Value); err != nil {
			return nil, fmt.Errorf("unmarshalling value: %w", err)
		}

		timestamp, err := parseHistoryTimestamp(createdAt)
		if err != nil {
			return nil, err
		}
		entry.CreatedAt = timestamp

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating property history: %w", err)
	}

	return entries, nil
}

// PruneHistory deletes history entries older than the given duration.
func (r *SQLiteHistoryRepository) PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format(historyTimeFormat)
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM property_history WHERE created_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting property history: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}

	return rowsAffected, nil
}

// parseHistoryTimestamp parses a timestamp stored in SQLite.
func parseHistoryTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("created_at is empty")
	}

	timestamp, err := time.Parse(historyTimeFormat, value)
	if err == nil {
		return timestamp, nil
	}

	fallback, fallbackErr := time.Parse(time.RFC3339, value)
	if fallbackErr == nil {
		return fallback, nil
	}

	return time.Time{}, fmt.Errorf("parsing created_at: %w", err)
}
