package postgres

import (
	"context"
	"errors"

	"github.com/and161185/stremur/internal/errs"
	"github.com/and161185/stremur/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// HistoryRepo implements HistoryRepository using PostgreSQL.
type HistoryRepo struct{ db *DB }

// NewHistoryRepo constructs a watch history repository.
func NewHistoryRepo(db *DB) *HistoryRepo { return &HistoryRepo{db: db} }

const historyColumns = `id, profile_id, media_type, media_id, title, poster_path, progress, duration, season, episode, updated_at`

func scanHistory(row pgx.Row) (model.HistoryEntry, error) {
	var (
		e  model.HistoryEntry
		mt string
	)
	err := row.Scan(&e.ID, &e.ProfileID, &mt, &e.Media.ID, &e.Title, &e.PosterPath,
		&e.Progress, &e.Duration, &e.Season, &e.Episode, &e.UpdatedAt)
	e.Media.Type = model.MediaType(mt)
	return e, err
}

// List returns the profile's entries, most recently updated first.
func (r *HistoryRepo) List(ctx context.Context, profileID uuid.UUID, limit int) ([]model.HistoryEntry, error) {
	const q = `
SELECT ` + historyColumns + `
FROM watch_history
WHERE profile_id=$1
ORDER BY updated_at DESC, id DESC`
	const qLimit = q + `
LIMIT $2`

	var (
		rows pgx.Rows
		err  error
	)
	if limit > 0 {
		rows, err = r.db.Pool.Query(ctx, qLimit, profileID, limit)
	} else {
		rows, err = r.db.Pool.Query(ctx, q, profileID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.HistoryEntry
	for rows.Next() {
		e, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Get returns the entry for one title.
func (r *HistoryRepo) Get(ctx context.Context, profileID uuid.UUID, key model.MediaKey) (*model.HistoryEntry, error) {
	const q = `
SELECT ` + historyColumns + `
FROM watch_history
WHERE profile_id=$1 AND media_type=$2 AND media_id=$3`
	e, err := scanHistory(r.db.Pool.QueryRow(ctx, q, profileID, string(key.Type), key.ID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

// Upsert writes the entry in a single statement; an existing row keeps its id.
func (r *HistoryRepo) Upsert(ctx context.Context, e *model.HistoryEntry) (uuid.UUID, error) {
	const q = `
INSERT INTO watch_history (` + historyColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (profile_id, media_type, media_id) DO UPDATE SET
title=EXCLUDED.title, poster_path=EXCLUDED.poster_path, progress=EXCLUDED.progress,
duration=EXCLUDED.duration, season=EXCLUDED.season, episode=EXCLUDED.episode,
updated_at=EXCLUDED.updated_at
RETURNING id`
	var id uuid.UUID
	err := r.db.Pool.QueryRow(ctx, q,
		e.ID, e.ProfileID, string(e.Media.Type), e.Media.ID, e.Title, e.PosterPath,
		e.Progress, e.Duration, e.Season, e.Episode, e.UpdatedAt,
	).Scan(&id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return uuid.Nil, errs.ErrNotFound
		}
		return uuid.Nil, err
	}
	return id, nil
}

// Delete removes one entry.
func (r *HistoryRepo) Delete(ctx context.Context, profileID uuid.UUID, key model.MediaKey) (bool, error) {
	const q = `DELETE FROM watch_history WHERE profile_id=$1 AND media_type=$2 AND media_id=$3`
	tag, err := r.db.Pool.Exec(ctx, q, profileID, string(key.Type), key.ID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Clear removes every entry of the profile.
func (r *HistoryRepo) Clear(ctx context.Context, profileID uuid.UUID) (int64, error) {
	const q = `DELETE FROM watch_history WHERE profile_id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, profileID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
