package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/and161185/stremur/internal/catalog"
	"github.com/and161185/stremur/internal/errs"
	"github.com/and161185/stremur/internal/events"
	"github.com/and161185/stremur/internal/model"
	"github.com/and161185/stremur/internal/repository"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// WatchStateService defines per-profile history and watchlist operations.
// Every call is scoped by the explicit session it receives.
type WatchStateService interface {
	// History returns entries newest first. limit 0 means all.
	History(ctx context.Context, s model.Session, limit int) ([]model.HistoryEntry, error)
	// Progress returns the entry for one title.
	Progress(ctx context.Context, s model.Session, key model.MediaKey) (*model.HistoryEntry, error)
	// UpsertProgress records playback state and returns the entry's stable id.
	UpsertProgress(ctx context.Context, s model.Session, in model.ProgressUpdate) (uuid.UUID, error)
	// DeleteProgress removes one entry.
	DeleteProgress(ctx context.Context, s model.Session, key model.MediaKey) (bool, error)
	// ClearHistory removes every entry and returns how many were removed.
	ClearHistory(ctx context.Context, s model.Session) (int64, error)
	// Watchlist returns bookmarks newest first.
	Watchlist(ctx context.Context, s model.Session) ([]model.WatchlistEntry, error)
	// AddToWatchlist bookmarks a title; repeated adds return the existing id.
	AddToWatchlist(ctx context.Context, s model.Session, in model.WatchlistAdd) (uuid.UUID, error)
	// RemoveFromWatchlist deletes a bookmark.
	RemoveFromWatchlist(ctx context.Context, s model.Session, key model.MediaKey) (bool, error)
	// InWatchlist reports whether a title is bookmarked.
	InWatchlist(ctx context.Context, s model.Session, key model.MediaKey) (bool, error)
}

type WatchStateServiceImpl struct {
	history   repository.HistoryRepository
	watchlist repository.WatchlistRepository
	catalog   catalog.Lookup
	events    Publisher
	log       *zap.Logger
	now       func() time.Time
}

// NewWatchStateService constructs WatchStateService. catalog and events may be nil.
func NewWatchStateService(
	history repository.HistoryRepository,
	watchlist repository.WatchlistRepository,
	cat catalog.Lookup,
	pub Publisher,
	log *zap.Logger,
) *WatchStateServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &WatchStateServiceImpl{
		history:   history,
		watchlist: watchlist,
		catalog:   cat,
		events:    pub,
		log:       log,
		now:       time.Now,
	}
}

// History lists the session profile's history.
func (s *WatchStateServiceImpl) History(ctx context.Context, sess model.Session, limit int) ([]model.HistoryEntry, error) {
	if err := validateSession(sess); err != nil {
		return nil, err
	}
	if limit < 0 {
		return nil, fmt.Errorf("%w: limit must not be negative", errs.ErrValidation)
	}
	out, err := s.history.List(ctx, sess.ProfileID, limit)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.HistoryEntry{}
	}
	return out, nil
}

// Progress returns one entry or errs.ErrNotFound.
func (s *WatchStateServiceImpl) Progress(ctx context.Context, sess model.Session, key model.MediaKey) (*model.HistoryEntry, error) {
	if err := validateSession(sess); err != nil {
		return nil, err
	}
	if err := validateKey(key); err != nil {
		return nil, err
	}
	return s.history.Get(ctx, sess.ProfileID, key)
}

// UpsertProgress validates input, backfills a missing poster from the catalog
// and atomically stores the entry.
// Validation rules:
// - media type movie|tv, media id > 0
// - title not blank
// - duration > 0, progress finite and >= 0
// - season >= 0 and episode >= 1 when given, neither for movies
func (s *WatchStateServiceImpl) UpsertProgress(ctx context.Context, sess model.Session, in model.ProgressUpdate) (uuid.UUID, error) {
	if err := validateSession(sess); err != nil {
		return uuid.Nil, err
	}
	if err := validateKey(in.Media); err != nil {
		return uuid.Nil, err
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return uuid.Nil, fmt.Errorf("%w: title is required", errs.ErrValidation)
	}
	if math.IsNaN(in.Duration) || math.IsInf(in.Duration, 0) || in.Duration <= 0 {
		return uuid.Nil, fmt.Errorf("%w: duration must be positive", errs.ErrValidation)
	}
	if math.IsNaN(in.Progress) || math.IsInf(in.Progress, 0) || in.Progress < 0 {
		return uuid.Nil, fmt.Errorf("%w: progress must not be negative", errs.ErrValidation)
	}
	if in.Media.Type == model.MediaMovie && (in.Season != nil || in.Episode != nil) {
		return uuid.Nil, fmt.Errorf("%w: season/episode only apply to tv", errs.ErrValidation)
	}
	if in.Season != nil && *in.Season < 0 {
		return uuid.Nil, fmt.Errorf("%w: season must not be negative", errs.ErrValidation)
	}
	if in.Episode != nil && *in.Episode < 1 {
		return uuid.Nil, fmt.Errorf("%w: episode must be at least 1", errs.ErrValidation)
	}

	id, err := uuid.NewV4()
	if err != nil {
		return uuid.Nil, err
	}
	e := &model.HistoryEntry{
		ID:         id,
		ProfileID:  sess.ProfileID,
		Media:      in.Media,
		Title:      title,
		PosterPath: s.posterFor(ctx, in.Media, in.PosterPath),
		Progress:   in.Progress,
		Duration:   in.Duration,
		Season:     in.Season,
		Episode:    in.Episode,
		UpdatedAt:  s.now().UTC(),
	}
	stored, err := s.history.Upsert(ctx, e)
	if err != nil {
		return uuid.Nil, err
	}
	s.publish(events.SubjectHistoryUpserted, sess.ProfileID, map[string]any{
		"media_type": string(in.Media.Type),
		"media_id":   in.Media.ID,
		"progress":   in.Progress,
	})
	return stored, nil
}

// DeleteProgress removes one entry.
func (s *WatchStateServiceImpl) DeleteProgress(ctx context.Context, sess model.Session, key model.MediaKey) (bool, error) {
	if err := validateSession(sess); err != nil {
		return false, err
	}
	if err := validateKey(key); err != nil {
		return false, err
	}
	ok, err := s.history.Delete(ctx, sess.ProfileID, key)
	if err != nil {
		return false, err
	}
	if ok {
		s.publish(events.SubjectHistoryDeleted, sess.ProfileID, keyProps(key))
	}
	return ok, nil
}

// ClearHistory removes all history of the session profile.
func (s *WatchStateServiceImpl) ClearHistory(ctx context.Context, sess model.Session) (int64, error) {
	if err := validateSession(sess); err != nil {
		return 0, err
	}
	n, err := s.history.Clear(ctx, sess.ProfileID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.publish(events.SubjectHistoryCleared, sess.ProfileID, map[string]any{"removed": n})
	}
	return n, nil
}

// Watchlist lists bookmarks of the session profile.
func (s *WatchStateServiceImpl) Watchlist(ctx context.Context, sess model.Session) ([]model.WatchlistEntry, error) {
	if err := validateSession(sess); err != nil {
		return nil, err
	}
	out, err := s.watchlist.List(ctx, sess.ProfileID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.WatchlistEntry{}
	}
	return out, nil
}

// AddToWatchlist bookmarks a title unless it is already bookmarked.
func (s *WatchStateServiceImpl) AddToWatchlist(ctx context.Context, sess model.Session, in model.WatchlistAdd) (uuid.UUID, error) {
	if err := validateSession(sess); err != nil {
		return uuid.Nil, err
	}
	if err := validateKey(in.Media); err != nil {
		return uuid.Nil, err
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return uuid.Nil, fmt.Errorf("%w: title is required", errs.ErrValidation)
	}
	// an existing bookmark is returned as is, so skip the catalog round trip
	exists, err := s.watchlist.Exists(ctx, sess.ProfileID, in.Media)
	if err != nil {
		return uuid.Nil, err
	}
	poster := in.PosterPath
	if !exists {
		poster = s.posterFor(ctx, in.Media, in.PosterPath)
	}

	id, err := uuid.NewV4()
	if err != nil {
		return uuid.Nil, err
	}
	stored, created, err := s.watchlist.AddIfAbsent(ctx, &model.WatchlistEntry{
		ID:         id,
		ProfileID:  sess.ProfileID,
		Media:      in.Media,
		Title:      title,
		PosterPath: poster,
		AddedAt:    s.now().UTC(),
	})
	if err != nil {
		return uuid.Nil, err
	}
	if created {
		s.publish(events.SubjectWatchlistAdded, sess.ProfileID, keyProps(in.Media))
	}
	return stored, nil
}

// RemoveFromWatchlist deletes a bookmark.
func (s *WatchStateServiceImpl) RemoveFromWatchlist(ctx context.Context, sess model.Session, key model.MediaKey) (bool, error) {
	if err := validateSession(sess); err != nil {
		return false, err
	}
	if err := validateKey(key); err != nil {
		return false, err
	}
	ok, err := s.watchlist.Remove(ctx, sess.ProfileID, key)
	if err != nil {
		return false, err
	}
	if ok {
		s.publish(events.SubjectWatchlistRemoved, sess.ProfileID, keyProps(key))
	}
	return ok, nil
}

// InWatchlist reports whether the title is bookmarked.
func (s *WatchStateServiceImpl) InWatchlist(ctx context.Context, sess model.Session, key model.MediaKey) (bool, error) {
	if err := validateSession(sess); err != nil {
		return false, err
	}
	if err := validateKey(key); err != nil {
		return false, err
	}
	return s.watchlist.Exists(ctx, sess.ProfileID, key)
}

// posterFor returns the caller's poster, or the catalog's when none was given.
// Catalog failures are logged and never fail the write.
func (s *WatchStateServiceImpl) posterFor(ctx context.Context, key model.MediaKey, given *string) *string {
	if given != nil && *given != "" {
		v := *given
		return &v
	}
	if s.catalog == nil {
		return nil
	}
	item, err := s.catalog.Lookup(ctx, key)
	if err != nil {
		s.log.Warn("catalog lookup failed", zap.String("media", key.String()), zap.Error(err))
		return nil
	}
	return item.PosterPath
}

func (s *WatchStateServiceImpl) publish(subject string, id uuid.UUID, props map[string]any) {
	if s.events != nil {
		s.events.Publish(subject, id, props)
	}
}

func validateSession(sess model.Session) error {
	if sess.ProfileID == uuid.Nil {
		return fmt.Errorf("%w: no active profile", errs.ErrValidation)
	}
	return nil
}

func validateKey(key model.MediaKey) error {
	if !key.Type.Valid() {
		return fmt.Errorf("%w: media type must be movie or tv", errs.ErrValidation)
	}
	if key.ID <= 0 {
		return fmt.Errorf("%w: media id must be positive", errs.ErrValidation)
	}
	return nil
}

func keyProps(key model.MediaKey) map[string]any {
	return map[string]any{"media_type": string(key.Type), "media_id": key.ID}
}
