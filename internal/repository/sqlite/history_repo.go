package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/and161185/stremur/internal/errs"
	"github.com/and161185/stremur/internal/model"
	"github.com/gofrs/uuid/v5"
)

// HistoryRepo implements HistoryRepository using SQLite.
type HistoryRepo struct{ db *DB }

// NewHistoryRepo constructs a watch history repository.
func NewHistoryRepo(db *DB) *HistoryRepo { return &HistoryRepo{db: db} }

type historyRow struct {
	ID         uuid.UUID `db:"id"`
	ProfileID  uuid.UUID `db:"profile_id"`
	MediaType  string    `db:"media_type"`
	MediaID    int64     `db:"media_id"`
	Title      string    `db:"title"`
	PosterPath *string   `db:"poster_path"`
	Progress   float64   `db:"progress"`
	Duration   float64   `db:"duration"`
	Season     *int      `db:"season"`
	Episode    *int      `db:"episode"`
	UpdatedAt  int64     `db:"updated_at"`
}

func (r historyRow) model() model.HistoryEntry {
	return model.HistoryEntry{
		ID:         r.ID,
		ProfileID:  r.ProfileID,
		Media:      model.MediaKey{Type: model.MediaType(r.MediaType), ID: r.MediaID},
		Title:      r.Title,
		PosterPath: r.PosterPath,
		Progress:   r.Progress,
		Duration:   r.Duration,
		Season:     r.Season,
		Episode:    r.Episode,
		UpdatedAt:  fromUnix(r.UpdatedAt),
	}
}

const historySelect = `SELECT id, profile_id, media_type, media_id, title, poster_path, progress, duration, season, episode, updated_at FROM watch_history`

// List returns the profile's entries, most recently updated first.
func (r *HistoryRepo) List(ctx context.Context, profileID uuid.UUID, limit int) ([]model.HistoryEntry, error) {
	q := historySelect + ` WHERE profile_id = ? ORDER BY updated_at DESC, id DESC`
	args := []any{profileID}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	var rows []historyRow
	if err := r.db.x.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	out := make([]model.HistoryEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.model())
	}
	return out, nil
}

// Get returns the entry for one title.
func (r *HistoryRepo) Get(ctx context.Context, profileID uuid.UUID, key model.MediaKey) (*model.HistoryEntry, error) {
	q := historySelect + ` WHERE profile_id = ? AND media_type = ? AND media_id = ?`
	var row historyRow
	if err := r.db.x.GetContext(ctx, &row, q, profileID, string(key.Type), key.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	e := row.model()
	return &e, nil
}

// Upsert writes the entry in a single statement; an existing row keeps its id.
func (r *HistoryRepo) Upsert(ctx context.Context, e *model.HistoryEntry) (uuid.UUID, error) {
	const q = `
INSERT INTO watch_history (id, profile_id, media_type, media_id, title, poster_path, progress, duration, season, episode, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (profile_id, media_type, media_id) DO UPDATE SET
title = excluded.title, poster_path = excluded.poster_path, progress = excluded.progress,
duration = excluded.duration, season = excluded.season, episode = excluded.episode,
updated_at = excluded.updated_at
RETURNING id`
	var id uuid.UUID
	err := r.db.x.QueryRowxContext(ctx, q,
		e.ID, e.ProfileID, string(e.Media.Type), e.Media.ID, e.Title, e.PosterPath,
		e.Progress, e.Duration, e.Season, e.Episode, toUnix(e.UpdatedAt),
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
	res, err := r.db.x.ExecContext(ctx,
		`DELETE FROM watch_history WHERE profile_id = ? AND media_type = ? AND media_id = ?`,
		profileID, string(key.Type), key.ID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Clear removes every entry of the profile.
func (r *HistoryRepo) Clear(ctx context.Context, profileID uuid.UUID) (int64, error) {
	res, err := r.db.x.ExecContext(ctx, `DELETE FROM watch_history WHERE profile_id = ?`, profileID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
