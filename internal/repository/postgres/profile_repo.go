package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/and161185/stremur/internal/errs"
	"github.com/and161185/stremur/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// ProfileRepo implements ProfileRepository using PostgreSQL.
type ProfileRepo struct{ db *DB }

// NewProfileRepo constructs a profile repository.
func NewProfileRepo(db *DB) *ProfileRepo { return &ProfileRepo{db: db} }

// Create inserts a new profile row.
func (r *ProfileRepo) Create(ctx context.Context, p *model.Profile) error {
	const q = `
INSERT INTO profiles (id, name, pin, is_admin, color, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.Pool.Exec(ctx, q, p.ID, p.Name, p.Pin, p.IsAdmin, p.Color, p.CreatedAt)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// CreateFirst inserts p if the profiles table is empty. The table lock
// serializes concurrent bootstraps.
func (r *ProfileRepo) CreateFirst(ctx context.Context, p *model.Profile) (created bool, err error) {
	const lock = `LOCK TABLE profiles IN SHARE ROW EXCLUSIVE MODE`
	const q = `
INSERT INTO profiles (id, name, pin, is_admin, color, created_at)
SELECT $1, $2, $3, $4, $5, $6
WHERE NOT EXISTS (SELECT 1 FROM profiles)`

	err = r.db.withTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, lock); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, q, p.ID, p.Name, p.Pin, p.IsAdmin, p.Color, p.CreatedAt)
		if err != nil {
			return err
		}
		created = tag.RowsAffected() == 1
		return nil
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

// GetByID selects a profile by ID.
func (r *ProfileRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Profile, error) {
	const q = `
SELECT id, name, pin, is_admin, color, created_at
FROM profiles WHERE id=$1`
	var p model.Profile
	err := r.db.Pool.QueryRow(ctx, q, id).Scan(&p.ID, &p.Name, &p.Pin, &p.IsAdmin, &p.Color, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// List returns every profile, oldest first.
func (r *ProfileRepo) List(ctx context.Context) ([]model.Profile, error) {
	const q = `
SELECT id, name, pin, is_admin, color, created_at
FROM profiles
ORDER BY created_at ASC, id ASC`
	rows, err := r.db.Pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Profile
	for rows.Next() {
		var p model.Profile
		if err = rows.Scan(&p.ID, &p.Name, &p.Pin, &p.IsAdmin, &p.Color, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Count returns the number of stored profiles.
func (r *ProfileRepo) Count(ctx context.Context) (int, error) {
	const q = `SELECT count(*) FROM profiles`
	var n int
	if err := r.db.Pool.QueryRow(ctx, q).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Update applies the supplied fields only.
func (r *ProfileRepo) Update(ctx context.Context, id uuid.UUID, patch model.ProfilePatch) error {
	q, args := buildProfileUpdate(id, patch)
	if q == "" {
		_, err := r.GetByID(ctx, id)
		return err
	}
	tag, err := r.db.Pool.Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func buildProfileUpdate(id uuid.UUID, patch model.ProfilePatch) (string, []any) {
	var sets []string
	args := []any{id}
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s=$%d", col, len(args)))
	}
	if patch.Name.Set {
		add("name", patch.Name.Value)
	}
	if patch.Pin.Set {
		add("pin", patch.Pin.Value)
	}
	if patch.Color.Set {
		add("color", patch.Color.Value)
	}
	if len(sets) == 0 {
		return "", nil
	}
	return "UPDATE profiles SET " + strings.Join(sets, ", ") + " WHERE id=$1", args
}

// DeleteCascade removes a profile together with its watch state.
// Admin rows are locked so two concurrent deletes cannot remove the last two admins.
func (r *ProfileRepo) DeleteCascade(ctx context.Context, id uuid.UUID) (deleted bool, err error) {
	const selProfile = `SELECT is_admin FROM profiles WHERE id=$1 FOR UPDATE`
	const selAdmins = `SELECT id FROM profiles WHERE is_admin FOR UPDATE`
	const delHistory = `DELETE FROM watch_history WHERE profile_id=$1`
	const delWatchlist = `DELETE FROM watchlist WHERE profile_id=$1`
	const delProfile = `DELETE FROM profiles WHERE id=$1`

	err = r.db.withTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var isAdmin bool
		if err := tx.QueryRow(ctx, selProfile, id).Scan(&isAdmin); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return err
		}
		if isAdmin {
			admins, err := countRows(ctx, tx, selAdmins)
			if err != nil {
				return err
			}
			if admins <= 1 {
				return errs.ErrLastAdmin
			}
		}
		for _, q := range []string{delHistory, delWatchlist, delProfile} {
			if _, err := tx.Exec(ctx, q, id); err != nil {
				return err
			}
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

func countRows(ctx context.Context, tx pgx.Tx, q string) (int, error) {
	rows, err := tx.Query(ctx, q)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	n := 0
	for rows.Next() {
		n++
	}
	return n, rows.Err()
}

// Ping checks storage availability.
func (r *ProfileRepo) Ping(ctx context.Context) error { return r.db.Ping(ctx) }
