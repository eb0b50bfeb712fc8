package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/and161185/stremur/internal/errs"
	"github.com/and161185/stremur/internal/model"
	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid/v5"
)

func profileIDParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.FromString(chi.URLParam(r, "profileID"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: malformed profile id", errs.ErrValidation)
	}
	return id, nil
}

// requireAdmin returns ErrUnauthorized without a token and ErrForbidden for non-admins.
func requireAdmin(r *http.Request) (*model.Profile, error) {
	p, ok := ProfileFromCtx(r.Context())
	if !ok {
		return nil, errs.ErrUnauthorized
	}
	if !p.IsAdmin {
		return nil, errs.ErrForbidden
	}
	return p, nil
}

func (a *API) listProfiles(w http.ResponseWriter, r *http.Request) {
	list, err := a.profiles.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]ProfileDTO, 0, len(list))
	for _, p := range list {
		out = append(out, ProfileToDTO(p))
	}
	writeJSON(w, http.StatusOK, out)
}

// createProfile is open while the household has no profiles, admin-only afterwards.
func (a *API) createProfile(w http.ResponseWriter, r *http.Request) {
	var req CreateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in := model.NewProfile{
		Name:    req.Name,
		Pin:     req.Pin,
		IsAdmin: req.IsAdmin,
		Color:   req.Color,
	}
	var (
		p   *model.Profile
		err error
	)
	if _, ok := ProfileFromCtx(r.Context()); ok {
		if _, err := requireAdmin(r); err != nil {
			writeError(w, r, err)
			return
		}
		p, err = a.profiles.Create(r.Context(), in)
	} else {
		p, err = a.profiles.Bootstrap(r.Context(), in)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ProfileToDTO(*p))
}

func (a *API) getProfile(w http.ResponseWriter, r *http.Request) {
	id, err := profileIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := a.profiles.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ProfileToDTO(*p))
}

// updateProfile requires a token of the same profile or of an admin.
func (a *API) updateProfile(w http.ResponseWriter, r *http.Request) {
	id, err := profileIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	caller, ok := ProfileFromCtx(r.Context())
	if !ok {
		writeError(w, r, errs.ErrUnauthorized)
		return
	}
	if caller.ID != id && !caller.IsAdmin {
		writeError(w, r, errs.ErrForbidden)
		return
	}
	var req UpdateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	patch := model.ProfilePatch{Name: req.Name, Pin: req.Pin, Color: req.Color}
	if err := a.profiles.Update(r.Context(), id, patch); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := a.profiles.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ProfileToDTO(*p))
}

func (a *API) deleteProfile(w http.ResponseWriter, r *http.Request) {
	id, err := profileIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := requireAdmin(r); err != nil {
		writeError(w, r, err)
		return
	}
	deleted, err := a.profiles.Delete(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DeletedResponse{Deleted: deleted})
}

// validatePin answers valid=false for wrong PINs and unknown profiles alike.
func (a *API) validatePin(w http.ResponseWriter, r *http.Request) {
	id, err := profileIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req PinRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	tok, err := a.profiles.OpenSession(r.Context(), id, req.Pin)
	switch {
	case err == nil:
		exp := tok.ExpiresAt
		writeJSON(w, http.StatusOK, PinResponse{Valid: true, Token: tok.Token, ExpiresAt: &exp})
	case errors.Is(err, errs.ErrInvalidPin), errors.Is(err, errs.ErrNotFound):
		writeJSON(w, http.StatusOK, PinResponse{Valid: false})
	default:
		writeError(w, r, err)
	}
}
