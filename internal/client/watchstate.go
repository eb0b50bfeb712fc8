package client

import (
	"context"
	"net/http"
	"strconv"

	"github.com/and161185/stremur/internal/model"
	httpapi "github.com/and161185/stremur/internal/server/http"
	"github.com/gofrs/uuid/v5"
)

// History returns entries newest first. limit 0 means all.
func (c *Client) History(ctx context.Context, s model.Session, limit int) ([]model.HistoryEntry, error) {
	path := historyPath(s)
	if limit != 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out []httpapi.HistoryEntryDTO
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	list := make([]model.HistoryEntry, 0, len(out))
	for _, d := range out {
		list = append(list, httpapi.HistoryFromDTO(d))
	}
	return list, nil
}

func (c *Client) Progress(ctx context.Context, s model.Session, key model.MediaKey) (*model.HistoryEntry, error) {
	var out httpapi.HistoryEntryDTO
	if err := c.do(ctx, http.MethodGet, historyPath(s)+keyPath(key), nil, &out); err != nil {
		return nil, err
	}
	e := httpapi.HistoryFromDTO(out)
	return &e, nil
}

func (c *Client) UpsertProgress(ctx context.Context, s model.Session, in model.ProgressUpdate) (uuid.UUID, error) {
	req := httpapi.ProgressRequest{
		Title:      in.Title,
		PosterPath: in.PosterPath,
		Progress:   in.Progress,
		Duration:   in.Duration,
		Season:     in.Season,
		Episode:    in.Episode,
	}
	var out httpapi.IDResponse
	if err := c.do(ctx, http.MethodPut, historyPath(s)+keyPath(in.Media), req, &out); err != nil {
		return uuid.Nil, err
	}
	return out.ID, nil
}

func (c *Client) DeleteProgress(ctx context.Context, s model.Session, key model.MediaKey) (bool, error) {
	var out httpapi.DeletedResponse
	if err := c.do(ctx, http.MethodDelete, historyPath(s)+keyPath(key), nil, &out); err != nil {
		return false, err
	}
	return out.Deleted, nil
}

func (c *Client) ClearHistory(ctx context.Context, s model.Session) (int64, error) {
	var out httpapi.ClearedResponse
	if err := c.do(ctx, http.MethodDelete, historyPath(s), nil, &out); err != nil {
		return 0, err
	}
	return out.Removed, nil
}

// Watchlist returns bookmarks newest first.
func (c *Client) Watchlist(ctx context.Context, s model.Session) ([]model.WatchlistEntry, error) {
	var out []httpapi.WatchlistEntryDTO
	if err := c.do(ctx, http.MethodGet, watchlistPath(s), nil, &out); err != nil {
		return nil, err
	}
	list := make([]model.WatchlistEntry, 0, len(out))
	for _, d := range out {
		list = append(list, httpapi.WatchlistFromDTO(d))
	}
	return list, nil
}

func (c *Client) AddToWatchlist(ctx context.Context, s model.Session, in model.WatchlistAdd) (uuid.UUID, error) {
	req := httpapi.WatchlistRequest{Title: in.Title, PosterPath: in.PosterPath}
	var out httpapi.IDResponse
	if err := c.do(ctx, http.MethodPut, watchlistPath(s)+keyPath(in.Media), req, &out); err != nil {
		return uuid.Nil, err
	}
	return out.ID, nil
}

func (c *Client) RemoveFromWatchlist(ctx context.Context, s model.Session, key model.MediaKey) (bool, error) {
	var out httpapi.DeletedResponse
	if err := c.do(ctx, http.MethodDelete, watchlistPath(s)+keyPath(key), nil, &out); err != nil {
		return false, err
	}
	return out.Deleted, nil
}

func (c *Client) InWatchlist(ctx context.Context, s model.Session, key model.MediaKey) (bool, error) {
	var out httpapi.ContainsResponse
	if err := c.do(ctx, http.MethodGet, watchlistPath(s)+keyPath(key), nil, &out); err != nil {
		return false, err
	}
	return out.InWatchlist, nil
}
