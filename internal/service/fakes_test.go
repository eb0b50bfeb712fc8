package service

import (
	"context"
	"sort"
	"sync"

	"github.com/and161185/stremur/internal/catalog"
	"github.com/and161185/stremur/internal/errs"
	"github.com/and161185/stremur/internal/model"
	"github.com/and161185/stremur/internal/repository"
	"github.com/gofrs/uuid/v5"
)

type fakeProfiles struct {
	byID  map[uuid.UUID]*model.Profile
	order []uuid.UUID

	createErr  error
	countErr   error
	staleCount bool // Count reports an empty household regardless of rows
}

var _ repository.ProfileRepository = (*fakeProfiles)(nil)

func newFakeProfiles() *fakeProfiles { return &fakeProfiles{byID: map[uuid.UUID]*model.Profile{}} }

func (f *fakeProfiles) Create(_ context.Context, p *model.Profile) error {
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.byID[p.ID]; ok {
		return errs.ErrAlreadyExists
	}
	c := *p
	f.byID[p.ID] = &c
	f.order = append(f.order, p.ID)
	return nil
}
func (f *fakeProfiles) CreateFirst(ctx context.Context, p *model.Profile) (bool, error) {
	if len(f.byID) > 0 {
		return false, nil
	}
	return true, f.Create(ctx, p)
}
func (f *fakeProfiles) GetByID(_ context.Context, id uuid.UUID) (*model.Profile, error) {
	p, ok := f.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *p
	return &c, nil
}
func (f *fakeProfiles) List(_ context.Context) ([]model.Profile, error) {
	var out []model.Profile
	for _, id := range f.order {
		if p, ok := f.byID[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}
func (f *fakeProfiles) Count(_ context.Context) (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	if f.staleCount {
		return 0, nil
	}
	return len(f.byID), nil
}
func (f *fakeProfiles) Update(_ context.Context, id uuid.UUID, patch model.ProfilePatch) error {
	p, ok := f.byID[id]
	if !ok {
		return errs.ErrNotFound
	}
	if patch.Name.Set {
		p.Name = patch.Name.Value
	}
	if patch.Pin.Set {
		p.Pin = patch.Pin.Value
	}
	if patch.Color.Set {
		p.Color = patch.Color.Value
	}
	return nil
}
func (f *fakeProfiles) DeleteCascade(_ context.Context, id uuid.UUID) (bool, error) {
	p, ok := f.byID[id]
	if !ok {
		return false, nil
	}
	if p.IsAdmin {
		admins := 0
		for _, q := range f.byID {
			if q.IsAdmin {
				admins++
			}
		}
		if admins <= 1 {
			return false, errs.ErrLastAdmin
		}
	}
	delete(f.byID, id)
	return true, nil
}
func (f *fakeProfiles) Ping(context.Context) error { return nil }

type histKey struct {
	profile uuid.UUID
	key     model.MediaKey
}

type fakeHistory struct {
	rows      map[histKey]model.HistoryEntry
	upsertErr error
}

var _ repository.HistoryRepository = (*fakeHistory)(nil)

func newFakeHistory() *fakeHistory { return &fakeHistory{rows: map[histKey]model.HistoryEntry{}} }

func (f *fakeHistory) List(_ context.Context, profileID uuid.UUID, limit int) ([]model.HistoryEntry, error) {
	var out []model.HistoryEntry
	for k, e := range f.rows {
		if k.profile == profileID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
func (f *fakeHistory) Get(_ context.Context, profileID uuid.UUID, key model.MediaKey) (*model.HistoryEntry, error) {
	e, ok := f.rows[histKey{profileID, key}]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &e, nil
}
func (f *fakeHistory) Upsert(_ context.Context, e *model.HistoryEntry) (uuid.UUID, error) {
	if f.upsertErr != nil {
		return uuid.Nil, f.upsertErr
	}
	k := histKey{e.ProfileID, e.Media}
	c := *e
	if old, ok := f.rows[k]; ok {
		c.ID = old.ID
	}
	f.rows[k] = c
	return c.ID, nil
}
func (f *fakeHistory) Delete(_ context.Context, profileID uuid.UUID, key model.MediaKey) (bool, error) {
	k := histKey{profileID, key}
	_, ok := f.rows[k]
	delete(f.rows, k)
	return ok, nil
}
func (f *fakeHistory) Clear(_ context.Context, profileID uuid.UUID) (int64, error) {
	var n int64
	for k := range f.rows {
		if k.profile == profileID {
			delete(f.rows, k)
			n++
		}
	}
	return n, nil
}

type fakeWatchlist struct {
	rows map[histKey]model.WatchlistEntry
}

var _ repository.WatchlistRepository = (*fakeWatchlist)(nil)

func newFakeWatchlist() *fakeWatchlist { return &fakeWatchlist{rows: map[histKey]model.WatchlistEntry{}} }

func (f *fakeWatchlist) List(_ context.Context, profileID uuid.UUID) ([]model.WatchlistEntry, error) {
	var out []model.WatchlistEntry
	for k, e := range f.rows {
		if k.profile == profileID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AddedAt.After(out[j].AddedAt) })
	return out, nil
}
func (f *fakeWatchlist) AddIfAbsent(_ context.Context, e *model.WatchlistEntry) (uuid.UUID, bool, error) {
	k := histKey{e.ProfileID, e.Media}
	if old, ok := f.rows[k]; ok {
		return old.ID, false, nil
	}
	f.rows[k] = *e
	return e.ID, true, nil
}
func (f *fakeWatchlist) Remove(_ context.Context, profileID uuid.UUID, key model.MediaKey) (bool, error) {
	k := histKey{profileID, key}
	_, ok := f.rows[k]
	delete(f.rows, k)
	return ok, nil
}
func (f *fakeWatchlist) Exists(_ context.Context, profileID uuid.UUID, key model.MediaKey) (bool, error) {
	_, ok := f.rows[histKey{profileID, key}]
	return ok, nil
}

type sentEvent struct {
	subject string
	profile uuid.UUID
	props   map[string]any
}

type fakePublisher struct {
	mu   sync.Mutex
	sent []sentEvent
}

var _ Publisher = (*fakePublisher)(nil)

func (f *fakePublisher) Publish(subject string, id uuid.UUID, props map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentEvent{subject, id, props})
}

func (f *fakePublisher) subjects() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, e := range f.sent {
		out = append(out, e.subject)
	}
	return out
}

type fakeCatalog struct {
	item  *model.CatalogItem
	err   error
	calls int
}

var _ catalog.Lookup = (*fakeCatalog)(nil)

func (f *fakeCatalog) Lookup(_ context.Context, key model.MediaKey) (*model.CatalogItem, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	c := *f.item
	c.Media = key
	return &c, nil
}

func strPtr(s string) *string { return &s }
func intPtr(v int) *int       { return &v }
