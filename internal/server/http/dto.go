package httpapi

import (
	"time"

	"github.com/and161185/stremur/internal/model"
	"github.com/gofrs/uuid/v5"
)

// ProfileDTO is a profile as rendered by the API. The PIN never leaves the server.
type ProfileDTO struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name,omitzero"`
	HasPin    bool      `json:"has_pin"`
	IsAdmin   bool      `json:"is_admin"`
	Color     string    `json:"color,omitzero"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateProfileRequest is the body of POST /profiles.
type CreateProfileRequest struct {
	Name    string  `json:"name,omitzero"`
	Pin     *string `json:"pin,omitempty"`
	IsAdmin bool    `json:"is_admin"`
	Color   string  `json:"color,omitempty"`
}

// UpdateProfileRequest is the body of PATCH /profiles/{id}. "pin": null clears the PIN.
type UpdateProfileRequest struct {
	Name  model.Optional[string]  `json:"name,omitzero"`
	Pin   model.Optional[*string] `json:"pin,omitzero"`
	Color model.Optional[string]  `json:"color,omitzero"`
}

// PinRequest is the body of POST /profiles/{id}/pin.
type PinRequest struct {
	Pin string `json:"pin,omitzero"`
}

// PinResponse reports a PIN check. Token fields are set only when valid.
type PinResponse struct {
	Valid     bool       `json:"valid"`
	Token     string     `json:"token,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// HistoryEntryDTO is one history entry.
type HistoryEntryDTO struct {
	ID         uuid.UUID       `json:"id"`
	ProfileID  uuid.UUID       `json:"profile_id"`
	MediaType  model.MediaType `json:"media_type"`
	MediaID    int64           `json:"media_id"`
	Title      string          `json:"title"`
	PosterPath *string         `json:"poster_path"`
	Progress   float64         `json:"progress"`
	Duration   float64         `json:"duration"`
	Season     *int            `json:"season,omitempty"`
	Episode    *int            `json:"episode,omitempty"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// ProgressRequest is the body of PUT /profiles/{id}/history/{type}/{mediaId}.
type ProgressRequest struct {
	Title      string  `json:"title"`
	PosterPath *string `json:"poster_path,omitempty"`
	Progress   float64 `json:"progress"`
	Duration   float64 `json:"duration"`
	Season     *int    `json:"season,omitempty"`
	Episode    *int    `json:"episode,omitempty"`
}

// WatchlistEntryDTO is one bookmark.
type WatchlistEntryDTO struct {
	ID         uuid.UUID       `json:"id"`
	ProfileID  uuid.UUID       `json:"profile_id"`
	MediaType  model.MediaType `json:"media_type"`
	MediaID    int64           `json:"media_id"`
	Title      string          `json:"title"`
	PosterPath *string         `json:"poster_path"`
	AddedAt    time.Time       `json:"added_at"`
}

// WatchlistRequest is the body of PUT /profiles/{id}/watchlist/{type}/{mediaId}.
type WatchlistRequest struct {
	Title      string  `json:"title"`
	PosterPath *string `json:"poster_path,omitempty"`
}

// IDResponse returns the id of a written entry.
type IDResponse struct {
	ID uuid.UUID `json:"id"`
}

// DeletedResponse reports whether a delete removed something.
type DeletedResponse struct {
	Deleted bool `json:"deleted"`
}

// ClearedResponse reports how many entries a clear removed.
type ClearedResponse struct {
	Removed int64 `json:"removed"`
}

// ContainsResponse reports watchlist membership.
type ContainsResponse struct {
	InWatchlist bool `json:"in_watchlist"`
}

// ProfileToDTO renders a profile.
func ProfileToDTO(p model.Profile) ProfileDTO {
	return ProfileDTO{
		ID:        p.ID,
		Name:      p.Name,
		HasPin:    p.HasPin(),
		IsAdmin:   p.IsAdmin,
		Color:     p.Color,
		CreatedAt: p.CreatedAt,
	}
}

// HistoryToDTO renders a history entry.
func HistoryToDTO(e model.HistoryEntry) HistoryEntryDTO {
	return HistoryEntryDTO{
		ID:         e.ID,
		ProfileID:  e.ProfileID,
		MediaType:  e.Media.Type,
		MediaID:    e.Media.ID,
		Title:      e.Title,
		PosterPath: e.PosterPath,
		Progress:   e.Progress,
		Duration:   e.Duration,
		Season:     e.Season,
		Episode:    e.Episode,
		UpdatedAt:  e.UpdatedAt,
	}
}

// HistoryFromDTO is the inverse of HistoryToDTO.
func HistoryFromDTO(d HistoryEntryDTO) model.HistoryEntry {
	return model.HistoryEntry{
		ID:         d.ID,
		ProfileID:  d.ProfileID,
		Media:      model.MediaKey{Type: d.MediaType, ID: d.MediaID},
		Title:      d.Title,
		PosterPath: d.PosterPath,
		Progress:   d.Progress,
		Duration:   d.Duration,
		Season:     d.Season,
		Episode:    d.Episode,
		UpdatedAt:  d.UpdatedAt,
	}
}

// WatchlistToDTO renders a bookmark.
func WatchlistToDTO(e model.WatchlistEntry) WatchlistEntryDTO {
	return WatchlistEntryDTO{
		ID:         e.ID,
		ProfileID:  e.ProfileID,
		MediaType:  e.Media.Type,
		MediaID:    e.Media.ID,
		Title:      e.Title,
		PosterPath: e.PosterPath,
		AddedAt:    e.AddedAt,
	}
}

// WatchlistFromDTO is the inverse of WatchlistToDTO.
func WatchlistFromDTO(d WatchlistEntryDTO) model.WatchlistEntry {
	return model.WatchlistEntry{
		ID:         d.ID,
		ProfileID:  d.ProfileID,
		Media:      model.MediaKey{Type: d.MediaType, ID: d.MediaID},
		Title:      d.Title,
		PosterPath: d.PosterPath,
		AddedAt:    d.AddedAt,
	}
}

// redactedPin stands in for a PIN the API does not reveal, so that
// Profile.HasPin keeps working on the client side.
const redactedPin = "****"

// ProfileFromDTO is the inverse of ProfileToDTO. The PIN is a redacted placeholder.
func ProfileFromDTO(d ProfileDTO) model.Profile {
	p := model.Profile{
		ID:        d.ID,
		Name:      d.Name,
		IsAdmin:   d.IsAdmin,
		Color:     d.Color,
		CreatedAt: d.CreatedAt,
	}
	if d.HasPin {
		pin := redactedPin
		p.Pin = &pin
	}
	return p
}
