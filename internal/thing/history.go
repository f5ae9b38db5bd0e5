package thing

import (
	"context"
	"time"
)

// HistoryEntry is one accepted property write kept in the local history.
type HistoryEntry struct {
	// ID is the auto-incremented primary key for the history row.
	ID int64 `json:"id"`

	// ThingID identifies the thing the property belongs to.
	ThingID string `json:"thing_id"`

	// Property is the property name.
	Property string `json:"property"`

	// Value is the accepted value.
	Value any `json:"value"`

	// Source identifies where the write came from (http, websocket, mqtt).
	Source string `json:"source"`

	// CreatedAt is when the write was accepted (UTC).
	CreatedAt time.Time `json:"created_at"`
}

// HistoryRepository stores and retrieves property write history.
//
// Implementations must be thread-safe and use UTC timestamps.
type HistoryRepository interface {
	// Record persists one accepted write.
	Record(ctx context.Context, change Change) error

	// GetHistory returns recent entries for one property, newest first.
	// limit is clamped by the implementation.
	GetHistory(ctx context.Context, thingID, property string, limit int) ([]HistoryEntry, error)

	// PruneHistory deletes entries older than olderThan and returns how many were removed.
	PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error)
}
