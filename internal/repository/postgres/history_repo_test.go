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

var historyCols = []string{
	"id", "profile_id", "media_type", "media_id", "title", "poster_path",
	"progress", "duration", "season", "episode", "updated_at",
}

func intPtr(v int) *int { return &v }

func TestHistoryRepo_Upsert_ReturnsStoredID(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewHistoryRepo(db)
	ctx := context.Background()

	existing := uuid.Must(uuid.NewV4())
	e := &model.HistoryEntry{
		ID:        uuid.Must(uuid.NewV4()),
		ProfileID: uuid.Must(uuid.NewV4()),
		Media:     model.MediaKey{Type: model.MediaTV, ID: 1399},
		Title:     "Game of Thrones",
		Progress:  35,
		Duration:  2700,
		Season:    intPtr(1),
		Episode:   intPtr(3),
		UpdatedAt: time.Now().UTC(),
	}

	mock.ExpectQuery(`INSERT INTO watch_history \(id, profile_id, media_type, .*\) VALUES .* ON CONFLICT \(profile_id, media_type, media_id\) DO UPDATE SET .* RETURNING id`).
		WithArgs(e.ID, e.ProfileID, "tv", int64(1399), e.Title, e.PosterPath,
			e.Progress, e.Duration, e.Season, e.Episode, e.UpdatedAt).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(existing))

	id, err := r.Upsert(ctx, e)
	require.NoError(t, err)
	require.Equal(t, existing, id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryRepo_Upsert_UnknownProfile(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewHistoryRepo(db)

	mock.ExpectQuery(`INSERT INTO watch_history`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "movie", int64(550), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23503"})

	_, err := r.Upsert(context.Background(), &model.HistoryEntry{
		Media: model.MediaKey{Type: model.MediaMovie, ID: 550},
	})
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryRepo_List_WithAndWithoutLimit(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewHistoryRepo(db)
	ctx := context.Background()
	profile := uuid.Must(uuid.NewV4())
	now := time.Now().UTC()
	poster := strPtr("/poster.jpg")

	rows := func() *pgxmock.Rows {
		return pgxmock.NewRows(historyCols).
			AddRow(uuid.Must(uuid.NewV4()), profile, "movie", int64(550), "Fight Club", poster,
				float64(50), float64(7200), (*int)(nil), (*int)(nil), now).
			AddRow(uuid.Must(uuid.NewV4()), profile, "tv", int64(1399), "Game of Thrones", (*string)(nil),
				float64(5), float64(2700), intPtr(2), intPtr(1), now.Add(-time.Hour))
	}

	mock.ExpectQuery(`SELECT .* FROM watch_history WHERE profile_id=\$1 ORDER BY updated_at DESC, id DESC LIMIT \$2`).
		WithArgs(profile, 2).
		WillReturnRows(rows())
	list, err := r.List(ctx, profile, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, model.MediaMovie, list[0].Media.Type)
	require.Equal(t, "/poster.jpg", *list[0].PosterPath)
	require.Nil(t, list[0].Season)
	require.Equal(t, model.MediaTV, list[1].Media.Type)
	require.Equal(t, 2, *list[1].Season)

	mock.ExpectQuery(`SELECT .* FROM watch_history WHERE profile_id=\$1 ORDER BY updated_at DESC, id DESC$`).
		WithArgs(profile).
		WillReturnRows(rows())
	list, err = r.List(ctx, profile, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryRepo_Get(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewHistoryRepo(db)
	ctx := context.Background()
	profile := uuid.Must(uuid.NewV4())
	key := model.MediaKey{Type: model.MediaMovie, ID: 550}

	mock.ExpectQuery(`SELECT .* FROM watch_history WHERE profile_id=\$1 AND media_type=\$2 AND media_id=\$3`).
		WithArgs(profile, "movie", int64(550)).
		WillReturnRows(pgxmock.NewRows(historyCols).
			AddRow(uuid.Must(uuid.NewV4()), profile, "movie", int64(550), "Fight Club", (*string)(nil),
				float64(20), float64(7200), (*int)(nil), (*int)(nil), time.Now().UTC()))
	e, err := r.Get(ctx, profile, key)
	require.NoError(t, err)
	require.Equal(t, key, e.Media)
	require.InDelta(t, 20, e.Progress, 0.0001)

	mock.ExpectQuery(`SELECT .* FROM watch_history WHERE profile_id=\$1 AND media_type=\$2 AND media_id=\$3`).
		WithArgs(profile, "movie", int64(550)).
		WillReturnError(pgx.ErrNoRows)
	_, err = r.Get(ctx, profile, key)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestHistoryRepo_DeleteAndClear(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewHistoryRepo(db)
	ctx := context.Background()
	profile := uuid.Must(uuid.NewV4())
	key := model.MediaKey{Type: model.MediaTV, ID: 1399}

	mock.ExpectExec(`DELETE FROM watch_history WHERE profile_id=\$1 AND media_type=\$2 AND media_id=\$3`).
		WithArgs(profile, "tv", int64(1399)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	ok, err := r.Delete(ctx, profile, key)
	require.NoError(t, err)
	require.True(t, ok)

	mock.ExpectExec(`DELETE FROM watch_history WHERE profile_id=\$1 AND media_type=\$2 AND media_id=\$3`).
		WithArgs(profile, "tv", int64(1399)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	ok, err = r.Delete(ctx, profile, key)
	require.NoError(t, err)
	require.False(t, ok)

	mock.ExpectExec(`DELETE FROM watch_history WHERE profile_id=\$1$`).
		WithArgs(profile).
		WillReturnResult(pgxmock.NewResult("DELETE", 4))
	n, err := r.Clear(ctx, profile)
	require.NoError(t, err)
	require.Equal(t, int64(4), n)
	require.NoError(t, mock.ExpectationsWereMet())
}
