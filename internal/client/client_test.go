package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/and161185/stremur/internal/errs"
	"github.com/and161185/stremur/internal/model"
	"github.com/and161185/stremur/internal/progress"
	"github.com/and161185/stremur/internal/repository/sqlite"
	httpapi "github.com/and161185/stremur/internal/server/http"
	"github.com/and161185/stremur/internal/service"
	"github.com/and161185/stremur/internal/session"
	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var _ progress.Writer = (*Client)(nil)

func newServer(t *testing.T) *Client {
	t.Helper()
	db, err := sqlite.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := zaptest.NewLogger(t)
	h := httpapi.New(httpapi.Options{
		Profiles:   service.NewProfileService(sqlite.NewProfileRepo(db), []byte("k"), time.Minute, nil),
		WatchState: service.NewWatchStateService(sqlite.NewHistoryRepo(db), sqlite.NewWatchlistRepo(db), nil, nil, log),
		Logger:     log,
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c
}

func strPtr(s string) *string { return &s }

func TestNew_RejectsBadAddress(t *testing.T) {
	_, err := New("localhost:8080")
	require.Error(t, err)
	_, err = New("")
	require.Error(t, err)
}

func TestProfilesRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newServer(t)

	admin, err := c.CreateProfile(ctx, model.NewProfile{Name: "Dad", Pin: strPtr("1234"), IsAdmin: true})
	require.NoError(t, err)
	require.True(t, admin.HasPin())

	_, err = c.CreateProfile(ctx, model.NewProfile{Name: "Kid"})
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	_, err = c.OpenSession(ctx, admin.ID, "0000")
	require.ErrorIs(t, err, errs.ErrInvalidPin)

	ok, err := c.ValidatePin(ctx, admin.ID, "1234")
	require.NoError(t, err)
	require.True(t, ok)

	tok, err := c.OpenSession(ctx, admin.ID, "1234")
	require.NoError(t, err)
	require.NotEmpty(t, tok.Token)
	require.False(t, tok.ExpiresAt.IsZero())
	as := c.WithToken(tok.Token)

	kid, err := as.CreateProfile(ctx, model.NewProfile{Name: "Kid", Color: "#1DB954"})
	require.NoError(t, err)
	require.Equal(t, "#1db954", kid.Color)

	// unset fields are not sent, so the admin PIN survives a rename
	updated, err := as.UpdateProfile(ctx, admin.ID, model.ProfilePatch{Name: model.Some("Papa")})
	require.NoError(t, err)
	require.Equal(t, "Papa", updated.Name)
	require.True(t, updated.HasPin())

	list, err := c.ListProfiles(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)

	_, err = as.DeleteProfile(ctx, admin.ID)
	require.ErrorIs(t, err, errs.ErrLastAdmin)

	deleted, err := as.DeleteProfile(ctx, kid.ID)
	require.NoError(t, err)
	require.True(t, deleted)

	_, err = c.Get(ctx, kid.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.True(t, IsAPIError(err, http.StatusNotFound))
}

func TestWatchStateRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newServer(t)
	p, err := c.CreateProfile(ctx, model.NewProfile{Name: "Dad", IsAdmin: true})
	require.NoError(t, err)
	s := model.Session{ProfileID: p.ID}
	movie := model.MediaKey{Type: model.MediaMovie, ID: 550}

	id, err := c.UpsertProgress(ctx, s, model.ProgressUpdate{Media: movie, Title: "Fight Club", Progress: 5, Duration: 7200})
	require.NoError(t, err)
	again, err := c.UpsertProgress(ctx, s, model.ProgressUpdate{Media: movie, Title: "Fight Club", Progress: 20, Duration: 7200})
	require.NoError(t, err)
	require.Equal(t, id, again)

	e, err := c.Progress(ctx, s, movie)
	require.NoError(t, err)
	require.Equal(t, 20.0, e.Progress)
	require.Equal(t, movie, e.Media)

	_, err = c.UpsertProgress(ctx, s, model.ProgressUpdate{Media: movie, Title: " ", Progress: 5, Duration: 7200})
	require.ErrorIs(t, err, errs.ErrValidation)

	hist, err := c.History(ctx, s, 0)
	require.NoError(t, err)
	require.Len(t, hist, 1)

	wid, err := c.AddToWatchlist(ctx, s, model.WatchlistAdd{Media: movie, Title: "Fight Club"})
	require.NoError(t, err)
	wid2, err := c.AddToWatchlist(ctx, s, model.WatchlistAdd{Media: movie, Title: "Fight Club"})
	require.NoError(t, err)
	require.Equal(t, wid, wid2)

	in, err := c.InWatchlist(ctx, s, movie)
	require.NoError(t, err)
	require.True(t, in)

	wl, err := c.Watchlist(ctx, s)
	require.NoError(t, err)
	require.Len(t, wl, 1)

	removed, err := c.RemoveFromWatchlist(ctx, s, movie)
	require.NoError(t, err)
	require.True(t, removed)

	deleted, err := c.DeleteProgress(ctx, s, movie)
	require.NoError(t, err)
	require.True(t, deleted)

	n, err := c.ClearHistory(ctx, s)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestSelectorOverClient(t *testing.T) {
	ctx := context.Background()
	c := newServer(t)
	p, err := c.CreateProfile(ctx, model.NewProfile{Name: "Dad", Pin: strPtr("4321"), IsAdmin: true})
	require.NoError(t, err)

	store := session.NewFileStorage(t.TempDir())
	sel := session.NewSelector(c, store, zaptest.NewLogger(t))

	st, err := sel.Choose(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, session.PendingPin, st)

	ok, err := sel.SubmitPin(ctx, "1111")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = sel.SubmitPin(ctx, "4321")
	require.NoError(t, err)
	require.True(t, ok)

	// a new device session restores without a PIN
	restored := session.NewSelector(c, store, nil)
	st, err = restored.Restore(ctx)
	require.NoError(t, err)
	require.Equal(t, session.Active, st)
}

func TestAPIErrorWithoutEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)
	c, err := New(srv.URL)
	require.NoError(t, err)

	_, err = c.Get(context.Background(), uuid.Must(uuid.NewV4()))
	var ae *APIError
	require.True(t, errors.As(err, &ae))
	require.Equal(t, http.StatusBadGateway, ae.Status)
	require.Nil(t, errors.Unwrap(err))
}
