package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/and161185/stremur/internal/errs"
	"github.com/and161185/stremur/internal/model"
	"github.com/go-chi/chi/v5"
)

// sessionParam builds the explicit session from the path.
func sessionParam(r *http.Request) (model.Session, error) {
	id, err := profileIDParam(r)
	if err != nil {
		return model.Session{}, err
	}
	return model.Session{ProfileID: id}, nil
}

func mediaKeyParam(r *http.Request) (model.MediaKey, error) {
	mt, err := model.ParseMediaType(chi.URLParam(r, "mediaType"))
	if err != nil {
		return model.MediaKey{}, fmt.Errorf("%w: %v", errs.ErrValidation, err)
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "mediaID"), 10, 64)
	if err != nil {
		return model.MediaKey{}, fmt.Errorf("%w: malformed media id", errs.ErrValidation)
	}
	return model.MediaKey{Type: mt, ID: id}, nil
}

// sessionAndKey parses both path parts, writing the error response on failure.
func sessionAndKey(w http.ResponseWriter, r *http.Request) (model.Session, model.MediaKey, bool) {
	sess, err := sessionParam(r)
	if err != nil {
		writeError(w, r, err)
		return model.Session{}, model.MediaKey{}, false
	}
	key, err := mediaKeyParam(r)
	if err != nil {
		writeError(w, r, err)
		return model.Session{}, model.MediaKey{}, false
	}
	return sess, key, true
}

func (a *API) listHistory(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: limit must be an integer", errs.ErrValidation))
			return
		}
	}
	list, err := a.watch.History(r.Context(), sess, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]HistoryEntryDTO, 0, len(list))
	for _, e := range list {
		out = append(out, HistoryToDTO(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) clearHistory(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	n, err := a.watch.ClearHistory(r.Context(), sess)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ClearedResponse{Removed: n})
}

func (a *API) getProgress(w http.ResponseWriter, r *http.Request) {
	sess, key, ok := sessionAndKey(w, r)
	if !ok {
		return
	}
	e, err := a.watch.Progress(r.Context(), sess, key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, HistoryToDTO(*e))
}

func (a *API) upsertProgress(w http.ResponseWriter, r *http.Request) {
	sess, key, ok := sessionAndKey(w, r)
	if !ok {
		return
	}
	var req ProgressRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	id, err := a.watch.UpsertProgress(r.Context(), sess, model.ProgressUpdate{
		Media:      key,
		Title:      req.Title,
		PosterPath: req.PosterPath,
		Progress:   req.Progress,
		Duration:   req.Duration,
		Season:     req.Season,
		Episode:    req.Episode,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, IDResponse{ID: id})
}

func (a *API) deleteProgress(w http.ResponseWriter, r *http.Request) {
	sess, key, ok := sessionAndKey(w, r)
	if !ok {
		return
	}
	deleted, err := a.watch.DeleteProgress(r.Context(), sess, key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DeletedResponse{Deleted: deleted})
}

func (a *API) listWatchlist(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := a.watch.Watchlist(r.Context(), sess)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]WatchlistEntryDTO, 0, len(list))
	for _, e := range list {
		out = append(out, WatchlistToDTO(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) inWatchlist(w http.ResponseWriter, r *http.Request) {
	sess, key, ok := sessionAndKey(w, r)
	if !ok {
		return
	}
	in, err := a.watch.InWatchlist(r.Context(), sess, key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ContainsResponse{InWatchlist: in})
}

func (a *API) addToWatchlist(w http.ResponseWriter, r *http.Request) {
	sess, key, ok := sessionAndKey(w, r)
	if !ok {
		return
	}
	var req WatchlistRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	id, err := a.watch.AddToWatchlist(r.Context(), sess, model.WatchlistAdd{
		Media:      key,
		Title:      req.Title,
		PosterPath: req.PosterPath,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, IDResponse{ID: id})
}

func (a *API) removeFromWatchlist(w http.ResponseWriter, r *http.Request) {
	sess, key, ok := sessionAndKey(w, r)
	if !ok {
		return
	}
	removed, err := a.watch.RemoveFromWatchlist(r.Context(), sess, key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DeletedResponse{Deleted: removed})
}
