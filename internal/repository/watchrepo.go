package repository

import (
	"context"

	"github.com/and161185/stremur/internal/model"
	"github.com/gofrs/uuid/v5"
)

// HistoryRepository stores one playback state per (profile, media key).
type HistoryRepository interface {
	// List returns entries newest first. limit <= 0 means no limit.
	List(ctx context.Context, profileID uuid.UUID, limit int) ([]model.HistoryEntry, error)
	// Get returns the entry for a media key.
	Get(ctx context.Context, profileID uuid.UUID, key model.MediaKey) (*model.HistoryEntry, error)
	// Upsert atomically inserts or overwrites the entry for e.Media and returns its stable id.
	Upsert(ctx context.Context, e *model.HistoryEntry) (uuid.UUID, error)
	// Delete removes one entry and reports whether it existed.
	Delete(ctx context.Context, profileID uuid.UUID, key model.MediaKey) (bool, error)
	// Clear removes every entry of a profile and returns the count.
	Clear(ctx context.Context, profileID uuid.UUID) (int64, error)
}

// WatchlistRepository stores bookmarked titles, at most one per (profile, media key).
type WatchlistRepository interface {
	// List returns entries newest first.
	List(ctx context.Context, profileID uuid.UUID) ([]model.WatchlistEntry, error)
	// AddIfAbsent inserts e unless the key is already bookmarked. It returns
	// the id of the stored entry and whether a new row was created.
	AddIfAbsent(ctx context.Context, e *model.WatchlistEntry) (uuid.UUID, bool, error)
	// Remove deletes a bookmark and reports whether it existed.
	Remove(ctx context.Context, profileID uuid.UUID, key model.MediaKey) (bool, error)
	// Exists reports whether the key is bookmarked.
	Exists(ctx context.Context, profileID uuid.UUID, key model.MediaKey) (bool, error)
}
