package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/and161185/stremur/internal/errs"
	"github.com/and161185/stremur/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return &DB{Pool: mock}, mock
}

func strPtr(s string) *string { return &s }

func TestProfileRepo_Create_OK_and_UniqueViolation(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewProfileRepo(db)
	ctx := context.Background()
	p := &model.Profile{
		ID:        uuid.Must(uuid.NewV4()),
		Name:      "Mom",
		Pin:       strPtr("1234"),
		IsAdmin:   true,
		Color:     "#e50914",
		CreatedAt: time.Now().UTC(),
	}

	mock.ExpectExec(`INSERT INTO profiles \(id, name, pin, is_admin, color, created_at\) VALUES \(\$1, \$2, \$3, \$4, \$5, \$6\)`).
		WithArgs(p.ID, p.Name, p.Pin, p.IsAdmin, p.Color, p.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, r.Create(ctx, p))

	mock.ExpectExec(`INSERT INTO profiles`).
		WithArgs(p.ID, p.Name, p.Pin, p.IsAdmin, p.Color, p.CreatedAt).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	require.ErrorIs(t, r.Create(ctx, p), errs.ErrAlreadyExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileRepo_CreateFirst(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewProfileRepo(db)
	ctx := context.Background()
	p := &model.Profile{
		ID:        uuid.Must(uuid.NewV4()),
		Name:      "Mom",
		IsAdmin:   true,
		Color:     "#e50914",
		CreatedAt: time.Now().UTC(),
	}
	const ins = `INSERT INTO profiles \(id, name, pin, is_admin, color, created_at\) SELECT \$1, \$2, \$3, \$4, \$5, \$6 WHERE NOT EXISTS \(SELECT 1 FROM profiles\)`

	mock.ExpectBegin()
	mock.ExpectExec(`LOCK TABLE profiles IN SHARE ROW EXCLUSIVE MODE`).
		WillReturnResult(pgxmock.NewResult("LOCK TABLE", 0))
	mock.ExpectExec(ins).
		WithArgs(p.ID, p.Name, p.Pin, p.IsAdmin, p.Color, p.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	created, err := r.CreateFirst(ctx, p)
	require.NoError(t, err)
	require.True(t, created)

	// table no longer empty
	mock.ExpectBegin()
	mock.ExpectExec(`LOCK TABLE profiles`).
		WillReturnResult(pgxmock.NewResult("LOCK TABLE", 0))
	mock.ExpectExec(ins).
		WithArgs(p.ID, p.Name, p.Pin, p.IsAdmin, p.Color, p.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectCommit()
	created, err = r.CreateFirst(ctx, p)
	require.NoError(t, err)
	require.False(t, created)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileRepo_GetByID(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewProfileRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(`SELECT id, name, pin, is_admin, color, created_at FROM profiles WHERE id=\$1`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "pin", "is_admin", "color", "created_at"}).
			AddRow(id, "Kid", (*string)(nil), false, "#1db954", created))
	p, err := r.GetByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, id, p.ID)
	require.Equal(t, "Kid", p.Name)
	require.False(t, p.HasPin())
	require.Equal(t, created, p.CreatedAt)

	mock.ExpectQuery(`SELECT id, name, pin, is_admin, color, created_at FROM profiles WHERE id=\$1`).
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)
	_, err = r.GetByID(ctx, id)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestProfileRepo_ListAndCount(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewProfileRepo(db)
	ctx := context.Background()
	a, b := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT id, name, pin, is_admin, color, created_at FROM profiles ORDER BY created_at ASC, id ASC`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "pin", "is_admin", "color", "created_at"}).
			AddRow(a, "Mom", strPtr("1234"), true, "#e50914", now).
			AddRow(b, "Kid", (*string)(nil), false, "#1db954", now))
	list, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.True(t, list[0].IsAdmin)
	require.Equal(t, "1234", *list[0].Pin)
	require.Equal(t, b, list[1].ID)

	mock.ExpectQuery(`SELECT count\(\*\) FROM profiles`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(2))
	n, err := r.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestProfileRepo_Update_PartialFields(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewProfileRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())

	// name changes, PIN is cleared, color is untouched
	patch := model.ProfilePatch{
		Name: model.Some("Teen"),
		Pin:  model.Some[*string](nil),
	}
	mock.ExpectExec(`UPDATE profiles SET name=\$2, pin=\$3 WHERE id=\$1`).
		WithArgs(id, "Teen", (*string)(nil)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.Update(ctx, id, patch))

	mock.ExpectExec(`UPDATE profiles SET color=\$2 WHERE id=\$1`).
		WithArgs(id, "#9b59b6").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	err := r.Update(ctx, id, model.ProfilePatch{Color: model.Some("#9b59b6")})
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileRepo_DeleteCascade_OK(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewProfileRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT is_admin FROM profiles WHERE id=\$1 FOR UPDATE`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"is_admin"}).AddRow(true))
	mock.ExpectQuery(`SELECT id FROM profiles WHERE is_admin FOR UPDATE`).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).
			AddRow(id).
			AddRow(uuid.Must(uuid.NewV4())))
	mock.ExpectExec(`DELETE FROM watch_history WHERE profile_id=\$1`).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectExec(`DELETE FROM watchlist WHERE profile_id=\$1`).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM profiles WHERE id=\$1`).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	ok, err := r.DeleteCascade(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileRepo_DeleteCascade_LastAdmin(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewProfileRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT is_admin FROM profiles WHERE id=\$1 FOR UPDATE`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"is_admin"}).AddRow(true))
	mock.ExpectQuery(`SELECT id FROM profiles WHERE is_admin FOR UPDATE`).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(id))
	mock.ExpectRollback()

	ok, err := r.DeleteCascade(ctx, id)
	require.ErrorIs(t, err, errs.ErrLastAdmin)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileRepo_DeleteCascade_Missing(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewProfileRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT is_admin FROM profiles WHERE id=\$1 FOR UPDATE`).
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectCommit()

	ok, err := r.DeleteCascade(ctx, id)
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDB_Ping(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	mock.ExpectPing()
	require.NoError(t, db.Ping(context.Background()))
}
