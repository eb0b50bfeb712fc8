package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/and161185/stremur/internal/errs"
	"github.com/and161185/stremur/internal/model"
	"github.com/gofrs/uuid/v5"
)

// ProfileRepo implements ProfileRepository using SQLite.
type ProfileRepo struct{ db *DB }

// NewProfileRepo constructs a profile repository.
func NewProfileRepo(db *DB) *ProfileRepo { return &ProfileRepo{db: db} }

type profileRow struct {
	ID        uuid.UUID `db:"id"`
	Name      string    `db:"name"`
	Pin       *string   `db:"pin"`
	IsAdmin   bool      `db:"is_admin"`
	Color     string    `db:"color"`
	CreatedAt int64     `db:"created_at"`
}

func (r profileRow) model() model.Profile {
	return model.Profile{
		ID:        r.ID,
		Name:      r.Name,
		Pin:       r.Pin,
		IsAdmin:   r.IsAdmin,
		Color:     r.Color,
		CreatedAt: fromUnix(r.CreatedAt),
	}
}

// Create inserts a new profile row.
func (r *ProfileRepo) Create(ctx context.Context, p *model.Profile) error {
	const q = `INSERT INTO profiles (id, name, pin, is_admin, color, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := r.db.x.ExecContext(ctx, q, p.ID, p.Name, p.Pin, p.IsAdmin, p.Color, toUnix(p.CreatedAt))
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// CreateFirst inserts p if no profile exists yet, in one statement.
func (r *ProfileRepo) CreateFirst(ctx context.Context, p *model.Profile) (bool, error) {
	const q = `INSERT INTO profiles (id, name, pin, is_admin, color, created_at)
SELECT ?, ?, ?, ?, ?, ? WHERE NOT EXISTS (SELECT 1 FROM profiles)`
	res, err := r.db.x.ExecContext(ctx, q, p.ID, p.Name, p.Pin, p.IsAdmin, p.Color, toUnix(p.CreatedAt))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// GetByID selects a profile by ID.
func (r *ProfileRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Profile, error) {
	const q = `SELECT id, name, pin, is_admin, color, created_at FROM profiles WHERE id = ?`
	var row profileRow
	if err := r.db.x.GetContext(ctx, &row, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	p := row.model()
	return &p, nil
}

// List returns every profile, oldest first.
func (r *ProfileRepo) List(ctx context.Context) ([]model.Profile, error) {
	const q = `SELECT id, name, pin, is_admin, color, created_at FROM profiles ORDER BY created_at ASC, id ASC`
	var rows []profileRow
	if err := r.db.x.SelectContext(ctx, &rows, q); err != nil {
		return nil, err
	}
	out := make([]model.Profile, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.model())
	}
	return out, nil
}

// Count returns the number of stored profiles.
func (r *ProfileRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.x.GetContext(ctx, &n, `SELECT count(*) FROM profiles`)
	return n, err
}

// Update applies the supplied fields only.
func (r *ProfileRepo) Update(ctx context.Context, id uuid.UUID, patch model.ProfilePatch) error {
	var (
		sets []string
		args []any
	)
	if patch.Name.Set {
		sets, args = append(sets, "name = ?"), append(args, patch.Name.Value)
	}
	if patch.Pin.Set {
		sets, args = append(sets, "pin = ?"), append(args, patch.Pin.Value)
	}
	if patch.Color.Set {
		sets, args = append(sets, "color = ?"), append(args, patch.Color.Value)
	}
	if len(sets) == 0 {
		_, err := r.GetByID(ctx, id)
		return err
	}
	q := "UPDATE profiles SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	res, err := r.db.x.ExecContext(ctx, q, append(args, id)...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// DeleteCascade removes a profile together with its watch state.
func (r *ProfileRepo) DeleteCascade(ctx context.Context, id uuid.UUID) (deleted bool, err error) {
	tx, err := r.db.x.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil || !deleted {
			_ = tx.Rollback()
			return
		}
		if e := tx.Commit(); e != nil {
			deleted, err = false, e
		}
	}()

	var isAdmin bool
	if err = tx.GetContext(ctx, &isAdmin, `SELECT is_admin FROM profiles WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	if isAdmin {
		var admins int
		if err = tx.GetContext(ctx, &admins, `SELECT count(*) FROM profiles WHERE is_admin = 1`); err != nil {
			return false, err
		}
		if admins <= 1 {
			return false, errs.ErrLastAdmin
		}
	}
	for _, q := range []string{
		`DELETE FROM watch_history WHERE profile_id = ?`,
		`DELETE FROM watchlist WHERE profile_id = ?`,
		`DELETE FROM profiles WHERE id = ?`,
	} {
		if _, err = tx.ExecContext(ctx, q, id); err != nil {
			return false, err
		}
	}
	return true, nil
}

// Ping checks storage availability.
func (r *ProfileRepo) Ping(ctx context.Context) error { return r.db.Ping(ctx) }
