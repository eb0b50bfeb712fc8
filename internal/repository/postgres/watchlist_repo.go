package postgres

import (
	"context"
	"errors"

	"github.com/and161185/stremur/internal/errs"
	"github.com/and161185/stremur/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// WatchlistRepo implements WatchlistRepository using PostgreSQL.
type WatchlistRepo struct{ db *DB }

// NewWatchlistRepo constructs a watchlist repository.
func NewWatchlistRepo(db *DB) *WatchlistRepo { return &WatchlistRepo{db: db} }

// List returns bookmarks, newest first.
func (r *WatchlistRepo) List(ctx context.Context, profileID uuid.UUID) ([]model.WatchlistEntry, error) {
	const q = `
SELECT id, profile_id, media_type, media_id, title, poster_path, added_at
FROM watchlist
WHERE profile_id=$1
ORDER BY added_at DESC, id DESC`
	rows, err := r.db.Pool.Query(ctx, q, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.WatchlistEntry
	for rows.Next() {
		var (
			e  model.WatchlistEntry
			mt string
		)
		if err = rows.Scan(&e.ID, &e.ProfileID, &mt, &e.Media.ID, &e.Title, &e.PosterPath, &e.AddedAt); err != nil {
			return nil, err
		}
		e.Media.Type = model.MediaType(mt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// AddIfAbsent bookmarks a title; an existing bookmark is left untouched.
func (r *WatchlistRepo) AddIfAbsent(ctx context.Context, e *model.WatchlistEntry) (uuid.UUID, bool, error) {
	const ins = `
INSERT INTO watchlist (id, profile_id, media_type, media_id, title, poster_path, added_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (profile_id, media_type, media_id) DO NOTHING
RETURNING id`
	const sel = `SELECT id FROM watchlist WHERE profile_id=$1 AND media_type=$2 AND media_id=$3`

	var id uuid.UUID
	err := r.db.Pool.QueryRow(ctx, ins,
		e.ID, e.ProfileID, string(e.Media.Type), e.Media.ID, e.Title, e.PosterPath, e.AddedAt,
	).Scan(&id)
	switch {
	case err == nil:
		return id, true, nil
	case isForeignKeyViolation(err):
		return uuid.Nil, false, errs.ErrNotFound
	case !errors.Is(err, pgx.ErrNoRows):
		return uuid.Nil, false, err
	}

	if err = r.db.Pool.QueryRow(ctx, sel, e.ProfileID, string(e.Media.Type), e.Media.ID).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// removed between the two statements
			return uuid.Nil, false, errs.ErrNotFound
		}
		return uuid.Nil, false, err
	}
	return id, false, nil
}

// Remove deletes a bookmark.
func (r *WatchlistRepo) Remove(ctx context.Context, profileID uuid.UUID, key model.MediaKey) (bool, error) {
	const q = `DELETE FROM watchlist WHERE profile_id=$1 AND media_type=$2 AND media_id=$3`
	tag, err := r.db.Pool.Exec(ctx, q, profileID, string(key.Type), key.ID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Exists reports whether a bookmark is present.
func (r *WatchlistRepo) Exists(ctx context.Context, profileID uuid.UUID, key model.MediaKey) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM watchlist WHERE profile_id=$1 AND media_type=$2 AND media_id=$3)`
	var ok bool
	if err := r.db.Pool.QueryRow(ctx, q, profileID, string(key.Type), key.ID).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}
