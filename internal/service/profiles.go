// Package service contains application services for household profiles and
// per-profile watch state.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/and161185/stremur/internal/errs"
	"github.com/and161185/stremur/internal/events"
	"github.com/and161185/stremur/internal/model"
	"github.com/and161185/stremur/internal/repository"
	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
)

// MaxNameLen is the longest accepted profile name, in characters.
const MaxNameLen = 20

// DefaultColor is used when a profile is created without a color.
const DefaultColor = "#e50914"

// PresetColors are the avatar colors offered by clients.
var PresetColors = []string{
	"#e50914", "#1db954", "#ff6b35", "#00a8e1",
	"#9b59b6", "#f1c40f", "#e91e63", "#00bcd4",
}

// Publisher receives fire-and-forget domain events. *events.Publisher implements it.
type Publisher interface {
	Publish(subject string, profileID uuid.UUID, props map[string]any)
}

var _ Publisher = (*events.Publisher)(nil)

// ProfileService defines profile CRUD, PIN checks and session tokens.
type ProfileService interface {
	// List returns all profiles.
	List(ctx context.Context) ([]model.Profile, error)
	// Get returns one profile.
	Get(ctx context.Context, id uuid.UUID) (*model.Profile, error)
	// Count returns the number of profiles (0 means the household is not set up).
	Count(ctx context.Context) (int, error)
	// Create validates and stores a new profile.
	Create(ctx context.Context, in model.NewProfile) (*model.Profile, error)
	// Bootstrap creates the first admin of an empty household.
	Bootstrap(ctx context.Context, in model.NewProfile) (*model.Profile, error)
	// Update applies a partial update.
	Update(ctx context.Context, id uuid.UUID, patch model.ProfilePatch) error
	// Delete removes a profile and its watch state; false if it did not exist.
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	// ValidatePin reports whether pin unlocks the profile.
	ValidatePin(ctx context.Context, id uuid.UUID, pin string) (bool, error)
	// OpenSession validates the PIN and issues a signed session token.
	OpenSession(ctx context.Context, id uuid.UUID, pin string) (model.SessionToken, error)
	// Authenticate verifies a session token and returns its current profile.
	Authenticate(ctx context.Context, token string) (*model.Profile, error)
}

type ProfileServiceImpl struct {
	profiles repository.ProfileRepository
	signKey  []byte
	ttl      time.Duration
	events   Publisher
	now      func() time.Time
}

// NewProfileService constructs ProfileService. events may be nil.
func NewProfileService(profiles repository.ProfileRepository, signKey []byte, ttl time.Duration, pub Publisher) *ProfileServiceImpl {
	return &ProfileServiceImpl{profiles: profiles, signKey: signKey, ttl: ttl, events: pub, now: time.Now}
}

// List returns profiles in creation order.
func (s *ProfileServiceImpl) List(ctx context.Context) ([]model.Profile, error) {
	out, err := s.profiles.List(ctx)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.Profile{}
	}
	return out, nil
}

// Get returns one profile or errs.ErrNotFound.
func (s *ProfileServiceImpl) Get(ctx context.Context, id uuid.UUID) (*model.Profile, error) {
	return s.profiles.GetByID(ctx, id)
}

// Count returns the number of stored profiles.
func (s *ProfileServiceImpl) Count(ctx context.Context) (int, error) {
	return s.profiles.Count(ctx)
}

// Create stores a new profile. The first profile of a household must be an admin.
func (s *ProfileServiceImpl) Create(ctx context.Context, in model.NewProfile) (*model.Profile, error) {
	p, err := s.newProfile(in)
	if err != nil {
		return nil, err
	}
	if !in.IsAdmin {
		n, err := s.profiles.Count(ctx)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, errFirstNotAdmin
		}
	}
	if err := s.profiles.Create(ctx, p); err != nil {
		return nil, err
	}
	s.publish(events.SubjectProfileCreated, p.ID, map[string]any{"is_admin": p.IsAdmin})
	return p, nil
}

// Bootstrap stores the first profile without a session. Once any profile
// exists it fails with errs.ErrUnauthorized, also when two setups race.
func (s *ProfileServiceImpl) Bootstrap(ctx context.Context, in model.NewProfile) (*model.Profile, error) {
	n, err := s.profiles.Count(ctx)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, errHouseholdSetUp
	}
	p, err := s.newProfile(in)
	if err != nil {
		return nil, err
	}
	if !in.IsAdmin {
		return nil, errFirstNotAdmin
	}
	created, err := s.profiles.CreateFirst(ctx, p)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, errHouseholdSetUp
	}
	s.publish(events.SubjectProfileCreated, p.ID, map[string]any{"is_admin": p.IsAdmin})
	return p, nil
}

var (
	errFirstNotAdmin  = fmt.Errorf("%w: the first profile must be an admin", errs.ErrValidation)
	errHouseholdSetUp = fmt.Errorf("%w: household already set up, admin session required", errs.ErrUnauthorized)
)

func (s *ProfileServiceImpl) newProfile(in model.NewProfile) (*model.Profile, error) {
	name, err := normalizeName(in.Name)
	if err != nil {
		return nil, err
	}
	if err := validatePinFormat(in.Pin); err != nil {
		return nil, err
	}
	color, err := normalizeColor(in.Color)
	if err != nil {
		return nil, err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	return &model.Profile{
		ID:        id,
		Name:      name,
		Pin:       clonePin(in.Pin),
		IsAdmin:   in.IsAdmin,
		Color:     color,
		CreatedAt: s.now().UTC(),
	}, nil
}

// Update validates supplied fields and applies them.
func (s *ProfileServiceImpl) Update(ctx context.Context, id uuid.UUID, patch model.ProfilePatch) error {
	if patch.Name.Set {
		name, err := normalizeName(patch.Name.Value)
		if err != nil {
			return err
		}
		patch.Name.Value = name
	}
	if patch.Pin.Set {
		if err := validatePinFormat(patch.Pin.Value); err != nil {
			return err
		}
		patch.Pin.Value = clonePin(patch.Pin.Value)
	}
	if patch.Color.Set {
		color, err := normalizeColor(patch.Color.Value)
		if err != nil {
			return err
		}
		patch.Color.Value = color
	}
	if err := s.profiles.Update(ctx, id, patch); err != nil {
		return err
	}
	if !patch.Empty() {
		s.publish(events.SubjectProfileUpdated, id, nil)
	}
	return nil
}

// Delete removes the profile with its history and watchlist.
// It fails with errs.ErrLastAdmin when the profile is the only admin.
func (s *ProfileServiceImpl) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	ok, err := s.profiles.DeleteCascade(ctx, id)
	if err != nil {
		return false, err
	}
	if ok {
		s.publish(events.SubjectProfileDeleted, id, nil)
	}
	return ok, nil
}

// ValidatePin is true when the profile has no PIN or the PIN matches exactly.
// An unknown profile yields false without error.
func (s *ProfileServiceImpl) ValidatePin(ctx context.Context, id uuid.UUID, pin string) (bool, error) {
	p, err := s.profiles.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if !p.HasPin() {
		return true, nil
	}
	return *p.Pin == pin, nil
}

// OpenSession checks the PIN and issues a short-lived token for the profile.
func (s *ProfileServiceImpl) OpenSession(ctx context.Context, id uuid.UUID, pin string) (model.SessionToken, error) {
	p, err := s.profiles.GetByID(ctx, id)
	if err != nil {
		return model.SessionToken{}, err
	}
	if p.HasPin() && *p.Pin != pin {
		return model.SessionToken{}, errs.ErrInvalidPin
	}
	tok, exp, err := s.issueToken(p.ID)
	if err != nil {
		return model.SessionToken{}, err
	}
	return model.SessionToken{Token: tok, ProfileID: p.ID, ExpiresAt: exp}, nil
}

// issueToken creates a signed HS256 JWT for the given profile.
func (s *ProfileServiceImpl) issueToken(profileID uuid.UUID) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   profileID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signKey)
	return signed, exp, err
}

// Authenticate verifies HS256, expiry and subject, then loads the profile so
// role changes and deletions take effect immediately.
func (s *ProfileServiceImpl) Authenticate(ctx context.Context, token string) (*model.Profile, error) {
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return s.signKey, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithLeeway(30*time.Second))
	if err != nil || !parsed.Valid {
		return nil, errs.ErrUnauthorized
	}
	id, err := uuid.FromString(claims.Subject)
	if err != nil {
		return nil, errs.ErrUnauthorized
	}
	p, err := s.profiles.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.ErrUnauthorized
		}
		return nil, err
	}
	return p, nil
}

func (s *ProfileServiceImpl) publish(subject string, id uuid.UUID, props map[string]any) {
	if s.events != nil {
		s.events.Publish(subject, id, props)
	}
}

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: name is required", errs.ErrValidation)
	}
	if utf8.RuneCountInString(name) > MaxNameLen {
		return "", fmt.Errorf("%w: name longer than %d characters", errs.ErrValidation, MaxNameLen)
	}
	return name, nil
}

// validatePinFormat accepts no PIN or exactly four ASCII digits.
func validatePinFormat(pin *string) error {
	if pin == nil {
		return nil
	}
	if len(*pin) != 4 {
		return fmt.Errorf("%w: pin must be 4 digits", errs.ErrValidation)
	}
	for _, c := range *pin {
		if c < '0' || c > '9' {
			return fmt.Errorf("%w: pin must be 4 digits", errs.ErrValidation)
		}
	}
	return nil
}

func normalizeColor(color string) (string, error) {
	color = strings.TrimSpace(color)
	if color == "" {
		return DefaultColor, nil
	}
	if len(color) != 7 || color[0] != '#' {
		return "", fmt.Errorf("%w: color must look like #rrggbb", errs.ErrValidation)
	}
	for _, c := range strings.ToLower(color[1:]) {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return "", fmt.Errorf("%w: color must look like #rrggbb", errs.ErrValidation)
		}
	}
	return strings.ToLower(color), nil
}

func clonePin(pin *string) *string {
	if pin == nil {
		return nil
	}
	v := *pin
	return &v
}
