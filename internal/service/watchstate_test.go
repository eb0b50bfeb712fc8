package service

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/and161185/stremur/internal/errs"
	"github.com/and161185/stremur/internal/events"
	"github.com/and161185/stremur/internal/model"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap/zaptest"
)

type watchFixture struct {
	svc       *WatchStateServiceImpl
	history   *fakeHistory
	watchlist *fakeWatchlist
	catalog   *fakeCatalog
	pub       *fakePublisher
	sess      model.Session
	clock     *time.Time
}

func newWatchFixture(t *testing.T) *watchFixture {
	t.Helper()
	f := &watchFixture{
		history:   newFakeHistory(),
		watchlist: newFakeWatchlist(),
		catalog:   &fakeCatalog{item: &model.CatalogItem{Title: "Catalog", PosterPath: strPtr("/catalog.jpg")}},
		pub:       &fakePublisher{},
		sess:      model.Session{ProfileID: uuid.Must(uuid.NewV4())},
	}
	f.svc = NewWatchStateService(f.history, f.watchlist, f.catalog, f.pub, zaptest.NewLogger(t))
	now := time.Date(2026, 2, 1, 20, 0, 0, 0, time.UTC)
	f.clock = &now
	f.svc.now = func() time.Time { return *f.clock }
	return f
}

func (f *watchFixture) tick(d time.Duration) { *f.clock = f.clock.Add(d) }

var (
	fightClub = model.MediaKey{Type: model.MediaMovie, ID: 550}
	thrones   = model.MediaKey{Type: model.MediaTV, ID: 1399}
)

func TestWatchState_UpsertValidation(t *testing.T) {
	f := newWatchFixture(t)
	ctx := context.Background()
	base := model.ProgressUpdate{Media: fightClub, Title: "Fight Club", Progress: 5, Duration: 7200}

	cases := []struct {
		name   string
		mutate func(u *model.ProgressUpdate)
	}{
		{"bad type", func(u *model.ProgressUpdate) { u.Media.Type = "anime" }},
		{"zero id", func(u *model.ProgressUpdate) { u.Media.ID = 0 }},
		{"blank title", func(u *model.ProgressUpdate) { u.Title = "  " }},
		{"zero duration", func(u *model.ProgressUpdate) { u.Duration = 0 }},
		{"nan progress", func(u *model.ProgressUpdate) { u.Progress = math.NaN() }},
		{"negative progress", func(u *model.ProgressUpdate) { u.Progress = -1 }},
		{"movie with season", func(u *model.ProgressUpdate) { u.Season = intPtr(1) }},
		{"tv episode zero", func(u *model.ProgressUpdate) { u.Media = thrones; u.Episode = intPtr(0) }},
		{"tv negative season", func(u *model.ProgressUpdate) { u.Media = thrones; u.Season = intPtr(-1) }},
	}
	for _, tc := range cases {
		u := base
		tc.mutate(&u)
		if _, err := f.svc.UpsertProgress(ctx, f.sess, u); !errors.Is(err, errs.ErrValidation) {
			t.Fatalf("%s: want ErrValidation, got %v", tc.name, err)
		}
	}
	if _, err := f.svc.UpsertProgress(ctx, model.Session{}, base); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("empty session: want ErrValidation, got %v", err)
	}
	if len(f.history.rows) != 0 {
		t.Fatalf("nothing should be stored")
	}
}

func TestWatchState_UpsertKeepsIdentityAndOverwrites(t *testing.T) {
	f := newWatchFixture(t)
	ctx := context.Background()

	id1, err := f.svc.UpsertProgress(ctx, f.sess, model.ProgressUpdate{
		Media: fightClub, Title: "Fight Club", PosterPath: strPtr("/fc.jpg"), Progress: 5, Duration: 7200,
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	f.tick(30 * time.Second)
	id2, err := f.svc.UpsertProgress(ctx, f.sess, model.ProgressUpdate{
		Media: fightClub, Title: "Fight Club", PosterPath: strPtr("/fc.jpg"), Progress: 20, Duration: 7200,
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("identity changed: %s != %s", id1, id2)
	}

	e, err := f.svc.Progress(ctx, f.sess, fightClub)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if e.Progress != 20 || !e.UpdatedAt.Equal(*f.clock) {
		t.Fatalf("entry not overwritten: %+v", e)
	}
	if f.catalog.calls != 0 {
		t.Fatalf("catalog should not be asked when a poster is given")
	}
	if got := f.pub.subjects(); len(got) != 2 || got[0] != events.SubjectHistoryUpserted {
		t.Fatalf("events: %v", got)
	}
}

func TestWatchState_CatalogBackfill(t *testing.T) {
	f := newWatchFixture(t)
	ctx := context.Background()

	if _, err := f.svc.UpsertProgress(ctx, f.sess, model.ProgressUpdate{
		Media: thrones, Title: "Game of Thrones", Progress: 5, Duration: 2700, Season: intPtr(1), Episode: intPtr(1),
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	e, _ := f.svc.Progress(ctx, f.sess, thrones)
	if e.PosterPath == nil || *e.PosterPath != "/catalog.jpg" {
		t.Fatalf("poster not backfilled: %+v", e)
	}
	if e.Title != "Game of Thrones" {
		t.Fatalf("caller title must win, got %q", e.Title)
	}

	// failing catalog never blocks the write
	f.catalog.err = errors.New("tmdb down")
	if _, err := f.svc.UpsertProgress(ctx, f.sess, model.ProgressUpdate{
		Media: fightClub, Title: "Fight Club", Progress: 5, Duration: 7200,
	}); err != nil {
		t.Fatalf("upsert with failing catalog: %v", err)
	}
	e, _ = f.svc.Progress(ctx, f.sess, fightClub)
	if e.PosterPath != nil {
		t.Fatalf("poster should stay empty: %v", *e.PosterPath)
	}
}

func TestWatchState_HistoryOrderingAndLimit(t *testing.T) {
	f := newWatchFixture(t)
	ctx := context.Background()
	for i, key := range []model.MediaKey{fightClub, thrones, {Type: model.MediaMovie, ID: 603}} {
		f.tick(time.Minute)
		if _, err := f.svc.UpsertProgress(ctx, f.sess, model.ProgressUpdate{
			Media: key, Title: "t", PosterPath: strPtr("/p"), Progress: float64(i * 10), Duration: 100,
		}); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	list, err := f.svc.History(ctx, f.sess, 0)
	if err != nil || len(list) != 3 {
		t.Fatalf("history: %v len=%d", err, len(list))
	}
	if list[0].Media.ID != 603 || list[2].Media != fightClub {
		t.Fatalf("order: %+v", list)
	}
	list, _ = f.svc.History(ctx, f.sess, 2)
	if len(list) != 2 {
		t.Fatalf("limit: got %d", len(list))
	}
	if _, err := f.svc.History(ctx, f.sess, -1); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("negative limit: want ErrValidation, got %v", err)
	}

	other := model.Session{ProfileID: uuid.Must(uuid.NewV4())}
	list, err = f.svc.History(ctx, other, 0)
	if err != nil || list == nil || len(list) != 0 {
		t.Fatalf("other profile must see an empty, non-nil list: %v %v", list, err)
	}

	ok, err := f.svc.DeleteProgress(ctx, f.sess, thrones)
	if err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	ok, _ = f.svc.DeleteProgress(ctx, f.sess, thrones)
	if ok {
		t.Fatalf("second delete must report false")
	}
	n, err := f.svc.ClearHistory(ctx, f.sess)
	if err != nil || n != 2 {
		t.Fatalf("clear: n=%d err=%v", n, err)
	}
	n, _ = f.svc.ClearHistory(ctx, f.sess)
	if n != 0 {
		t.Fatalf("clear on empty: %d", n)
	}
}

func TestWatchState_WatchlistIdempotent(t *testing.T) {
	f := newWatchFixture(t)
	ctx := context.Background()
	add := model.WatchlistAdd{Media: fightClub, Title: "Fight Club"}

	id1, err := f.svc.AddToWatchlist(ctx, f.sess, add)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	f.tick(time.Minute)
	id2, err := f.svc.AddToWatchlist(ctx, f.sess, model.WatchlistAdd{Media: fightClub, Title: "Renamed"})
	if err != nil {
		t.Fatalf("add again: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("repeated add must return the same id")
	}
	if f.catalog.calls != 1 {
		t.Fatalf("catalog calls: %d", f.catalog.calls)
	}

	list, _ := f.svc.Watchlist(ctx, f.sess)
	if len(list) != 1 || list[0].Title != "Fight Club" || *list[0].PosterPath != "/catalog.jpg" {
		t.Fatalf("watchlist: %+v", list)
	}
	in, _ := f.svc.InWatchlist(ctx, f.sess, fightClub)
	if !in {
		t.Fatalf("expected bookmarked")
	}

	if _, err := f.svc.AddToWatchlist(ctx, f.sess, model.WatchlistAdd{Media: fightClub}); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("blank title: want ErrValidation, got %v", err)
	}

	ok, _ := f.svc.RemoveFromWatchlist(ctx, f.sess, fightClub)
	if !ok {
		t.Fatalf("remove should report true")
	}
	ok, _ = f.svc.RemoveFromWatchlist(ctx, f.sess, fightClub)
	if ok {
		t.Fatalf("second remove should report false")
	}
	want := []string{events.SubjectWatchlistAdded, events.SubjectWatchlistRemoved}
	if got := f.pub.subjects(); len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("events: %v", got)
	}
}

func TestWatchState_StorageErrorPropagates(t *testing.T) {
	f := newWatchFixture(t)
	f.history.upsertErr = errs.ErrNotFound
	_, err := f.svc.UpsertProgress(context.Background(), f.sess, model.ProgressUpdate{
		Media: fightClub, Title: "Fight Club", PosterPath: strPtr("/p"), Progress: 5, Duration: 7200,
	})
	if !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if len(f.pub.subjects()) != 0 {
		t.Fatalf("no event on failure")
	}
}
