package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/and161185/stremur/internal/errs"
	"github.com/and161185/stremur/internal/model"
	"github.com/gofrs/uuid/v5"
)

// WatchlistRepo implements WatchlistRepository using SQLite.
type WatchlistRepo struct{ db *DB }

// NewWatchlistRepo constructs a watchlist repository.
func NewWatchlistRepo(db *DB) *WatchlistRepo { return &WatchlistRepo{db: db} }

type watchlistRow struct {
	ID         uuid.UUID `db:"id"`
	ProfileID  uuid.UUID `db:"profile_id"`
	MediaType  string    `db:"media_type"`
	MediaID    int64     `db:"media_id"`
	Title      string    `db:"title"`
	PosterPath *string   `db:"poster_path"`
	AddedAt    int64     `db:"added_at"`
}

// List returns bookmarks, newest first.
func (r *WatchlistRepo) List(ctx context.Context, profileID uuid.UUID) ([]model.WatchlistEntry, error) {
	const q = `
SELECT id, profile_id, media_type, media_id, title, poster_path, added_at
FROM watchlist WHERE profile_id = ? ORDER BY added_at DESC, id DESC`
	var rows []watchlistRow
	if err := r.db.x.SelectContext(ctx, &rows, q, profileID); err != nil {
		return nil, err
	}
	out := make([]model.WatchlistEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, model.WatchlistEntry{
			ID:         row.ID,
			ProfileID:  row.ProfileID,
			Media:      model.MediaKey{Type: model.MediaType(row.MediaType), ID: row.MediaID},
			Title:      row.Title,
			PosterPath: row.PosterPath,
			AddedAt:    fromUnix(row.AddedAt),
		})
	}
	return out, nil
}

// AddIfAbsent bookmarks a title; an existing bookmark is left untouched.
func (r *WatchlistRepo) AddIfAbsent(ctx context.Context, e *model.WatchlistEntry) (uuid.UUID, bool, error) {
	const ins = `
INSERT INTO watchlist (id, profile_id, media_type, media_id, title, poster_path, added_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (profile_id, media_type, media_id) DO NOTHING
RETURNING id`
	const sel = `SELECT id FROM watchlist WHERE profile_id = ? AND media_type = ? AND media_id = ?`

	var id uuid.UUID
	err := r.db.x.QueryRowxContext(ctx, ins,
		e.ID, e.ProfileID, string(e.Media.Type), e.Media.ID, e.Title, e.PosterPath, toUnix(e.AddedAt),
	).Scan(&id)
	switch {
	case err == nil:
		return id, true, nil
	case isForeignKeyViolation(err):
		return uuid.Nil, false, errs.ErrNotFound
	case !errors.Is(err, sql.ErrNoRows):
		return uuid.Nil, false, err
	}
	if err = r.db.x.GetContext(ctx, &id, sel, e.ProfileID, string(e.Media.Type), e.Media.ID); err != nil {
		return uuid.Nil, false, err
	}
	return id, false, nil
}

// Remove deletes a bookmark.
func (r *WatchlistRepo) Remove(ctx context.Context, profileID uuid.UUID, key model.MediaKey) (bool, error) {
	res, err := r.db.x.ExecContext(ctx,
		`DELETE FROM watchlist WHERE profile_id = ? AND media_type = ? AND media_id = ?`,
		profileID, string(key.Type), key.ID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Exists reports whether a bookmark is present.
func (r *WatchlistRepo) Exists(ctx context.Context, profileID uuid.UUID, key model.MediaKey) (bool, error) {
	var ok bool
	err := r.db.x.GetContext(ctx, &ok,
		`SELECT EXISTS (SELECT 1 FROM watchlist WHERE profile_id = ? AND media_type = ? AND media_id = ?)`,
		profileID, string(key.Type), key.ID)
	return ok, err
}
