// Package model defines domain entities used by services and repositories.
package model

import (
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
)

// MediaType distinguishes movies from tv series.
type MediaType string

// Supported media types.
const (
	MediaMovie MediaType = "movie"
	MediaTV    MediaType = "tv"
)

// ParseMediaType returns the media type named by s.
func ParseMediaType(s string) (MediaType, error) {
	switch MediaType(s) {
	case MediaMovie, MediaTV:
		return MediaType(s), nil
	default:
		return "", fmt.Errorf("unknown media type %q", s)
	}
}

// Valid reports whether t is one of the supported media types.
func (t MediaType) Valid() bool { return t == MediaMovie || t == MediaTV }

// MediaKey identifies a title inside a profile's history or watchlist.
type MediaKey struct {
	Type MediaType
	ID   int64 // catalog id (TMDB)
}

func (k MediaKey) String() string { return fmt.Sprintf("%s/%d", k.Type, k.ID) }

// Profile is a household member. The PIN is a plain 4-digit string by contract.
type Profile struct {
	ID        uuid.UUID
	Name      string
	Pin       *string
	IsAdmin   bool
	Color     string
	CreatedAt time.Time
}

// HasPin reports whether selecting the profile requires a PIN.
func (p *Profile) HasPin() bool { return p.Pin != nil && *p.Pin != "" }

// NewProfile is the input of profile creation.
type NewProfile struct {
	Name    string
	Pin     *string
	IsAdmin bool
	Color   string
}

// ProfilePatch carries a partial profile update. Unset fields are left alone.
type ProfilePatch struct {
	Name  Optional[string]
	Pin   Optional[*string] // Set with a nil Value clears the PIN
	Color Optional[string]
}

// Empty reports whether the patch changes nothing.
func (p ProfilePatch) Empty() bool { return !p.Name.Set && !p.Pin.Set && !p.Color.Set }

// HistoryEntry is the last known playback state of a title for a profile.
type HistoryEntry struct {
	ID         uuid.UUID
	ProfileID  uuid.UUID
	Media      MediaKey
	Title      string
	PosterPath *string
	Progress   float64 // percent, 0..100
	Duration   float64 // seconds
	Season     *int
	Episode    *int
	UpdatedAt  time.Time
}

// ProgressUpdate is a caller's intent to record playback progress.
type ProgressUpdate struct {
	Media      MediaKey
	Title      string
	PosterPath *string
	Progress   float64
	Duration   float64
	Season     *int
	Episode    *int
}

// WatchlistEntry is a bookmarked title.
type WatchlistEntry struct {
	ID         uuid.UUID
	ProfileID  uuid.UUID
	Media      MediaKey
	Title      string
	PosterPath *string
	AddedAt    time.Time
}

// WatchlistAdd is a caller's intent to bookmark a title.
type WatchlistAdd struct {
	Media      MediaKey
	Title      string
	PosterPath *string
}

// Session is the explicit active-profile context passed to watch-state calls.
type Session struct {
	ProfileID uuid.UUID
}

// SessionToken is a signed, short-lived proof that a profile passed PIN validation.
type SessionToken struct {
	Token     string
	ProfileID uuid.UUID
	ExpiresAt time.Time
}

// CatalogItem is the subset of catalog metadata the service can backfill.
type CatalogItem struct {
	Media      MediaKey
	Title      string
	PosterPath *string
}
