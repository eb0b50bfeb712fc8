// Package session tracks which household profile is active on this device.
//
// The Selector is a small state machine:
//
//	Unselected --Choose(no pin)--> Active
//	Unselected --Choose(pin)-----> PendingPin
//	PendingPin --SubmitPin(ok)---> Active
//	PendingPin --SubmitPin(bad)--> PendingPin
//	PendingPin --Cancel----------> Unselected
//	Active     --Logout----------> Unselected
//
// The active profile id is persisted in a Storage slot; Restore re-enters
// Active from it without asking for the PIN again.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/and161185/stremur/internal/errs"
	"github.com/and161185/stremur/internal/model"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// State of the selector.
type State int

// Selector states.
const (
	Unselected State = iota
	PendingPin
	Active
)

func (s State) String() string {
	switch s {
	case Unselected:
		return "unselected"
	case PendingPin:
		return "pending_pin"
	case Active:
		return "active"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrNoActiveProfile is returned by Session when nothing is active.
	ErrNoActiveProfile = errors.New("no active profile")
	// ErrInvalidTransition is returned when an action does not apply to the current state.
	ErrInvalidTransition = errors.New("invalid session transition")
)

// Directory resolves profiles and checks PINs. ProfileService and the API client implement it.
type Directory interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Profile, error)
	ValidatePin(ctx context.Context, id uuid.UUID, pin string) (bool, error)
}

// Storage is a single durable string slot.
type Storage interface {
	Load() (string, error)
	Save(v string) error
	Clear() error
}

// Selector holds the active profile for a device session.
type Selector struct {
	dir   Directory
	store Storage
	log   *zap.Logger

	mu      sync.Mutex
	state   State
	profile *model.Profile // chosen (PendingPin) or active (Active)
}

// NewSelector returns a selector in the Unselected state.
func NewSelector(dir Directory, store Storage, log *zap.Logger) *Selector {
	if log == nil {
		log = zap.NewNop()
	}
	return &Selector{dir: dir, store: store, log: log}
}

// Restore re-activates the persisted profile if it still exists.
// A stale or malformed slot is cleared and the selector stays Unselected.
func (s *Selector) Restore(ctx context.Context) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.store.Load()
	if err != nil {
		return s.state, err
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return s.state, nil
	}
	id, err := uuid.FromString(raw)
	if err != nil {
		s.log.Warn("session: dropping malformed profile id", zap.String("value", raw))
		return s.state, s.store.Clear()
	}
	p, err := s.dir.Get(ctx, id)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			s.log.Info("session: persisted profile no longer exists", zap.String("profile_id", raw))
			return s.state, s.store.Clear()
		}
		return s.state, err
	}
	s.state, s.profile = Active, p
	return s.state, nil
}

// Choose selects a profile. Profiles with a PIN move to PendingPin.
func (s *Selector) Choose(ctx context.Context, id uuid.UUID) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Unselected {
		return s.state, fmt.Errorf("%w: choose from %s", ErrInvalidTransition, s.state)
	}
	p, err := s.dir.Get(ctx, id)
	if err != nil {
		return s.state, err
	}
	if p.HasPin() {
		s.state, s.profile = PendingPin, p
		return s.state, nil
	}
	return s.activate(p)
}

// SubmitPin verifies the PIN of the chosen profile. A wrong PIN keeps the
// selector in PendingPin so the caller can retry; there is no lockout.
func (s *Selector) SubmitPin(ctx context.Context, pin string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != PendingPin {
		return false, fmt.Errorf("%w: pin from %s", ErrInvalidTransition, s.state)
	}
	ok, err := s.dir.ValidatePin(ctx, s.profile.ID, pin)
	if err != nil || !ok {
		return false, err
	}
	if _, err := s.activate(s.profile); err != nil {
		return false, err
	}
	return true, nil
}

// Cancel abandons a pending PIN entry.
func (s *Selector) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != PendingPin {
		return fmt.Errorf("%w: cancel from %s", ErrInvalidTransition, s.state)
	}
	s.state, s.profile = Unselected, nil
	return nil
}

// Logout clears the active profile and the persisted slot.
func (s *Selector) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Active {
		return fmt.Errorf("%w: logout from %s", ErrInvalidTransition, s.state)
	}
	if err := s.store.Clear(); err != nil {
		return err
	}
	s.state, s.profile = Unselected, nil
	return nil
}

// State returns the current state.
func (s *Selector) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Profile returns the chosen or active profile, or nil when Unselected.
func (s *Selector) Profile() *model.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.profile == nil {
		return nil
	}
	p := *s.profile
	return &p
}

// Session returns the explicit session for watch-state calls.
func (s *Selector) Session() (model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Active {
		return model.Session{}, ErrNoActiveProfile
	}
	return model.Session{ProfileID: s.profile.ID}, nil
}

// activate persists p and enters Active. Callers hold s.mu.
func (s *Selector) activate(p *model.Profile) (State, error) {
	if err := s.store.Save(p.ID.String()); err != nil {
		return s.state, fmt.Errorf("persist active profile: %w", err)
	}
	s.state, s.profile = Active, p
	return s.state, nil
}
