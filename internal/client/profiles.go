package client

import (
	"context"
	"net/http"

	"github.com/and161185/stremur/internal/errs"
	"github.com/and161185/stremur/internal/model"
	httpapi "github.com/and161185/stremur/internal/server/http"
	"github.com/gofrs/uuid/v5"
)

// ListProfiles returns all profiles in creation order.
func (c *Client) ListProfiles(ctx context.Context) ([]model.Profile, error) {
	var out []httpapi.ProfileDTO
	if err := c.do(ctx, http.MethodGet, "/profiles", nil, &out); err != nil {
		return nil, err
	}
	list := make([]model.Profile, 0, len(out))
	for _, d := range out {
		list = append(list, httpapi.ProfileFromDTO(d))
	}
	return list, nil
}

// Get returns one profile. The PIN, if any, is redacted.
func (c *Client) Get(ctx context.Context, id uuid.UUID) (*model.Profile, error) {
	var out httpapi.ProfileDTO
	if err := c.do(ctx, http.MethodGet, profilePath(id), nil, &out); err != nil {
		return nil, err
	}
	p := httpapi.ProfileFromDTO(out)
	return &p, nil
}

// CreateProfile needs an admin token unless the household is empty.
func (c *Client) CreateProfile(ctx context.Context, in model.NewProfile) (*model.Profile, error) {
	req := httpapi.CreateProfileRequest{Name: in.Name, Pin: in.Pin, IsAdmin: in.IsAdmin, Color: in.Color}
	var out httpapi.ProfileDTO
	if err := c.do(ctx, http.MethodPost, "/profiles", req, &out); err != nil {
		return nil, err
	}
	p := httpapi.ProfileFromDTO(out)
	return &p, nil
}

// UpdateProfile sends only the fields set in patch.
func (c *Client) UpdateProfile(ctx context.Context, id uuid.UUID, patch model.ProfilePatch) (*model.Profile, error) {
	req := httpapi.UpdateProfileRequest{Name: patch.Name, Pin: patch.Pin, Color: patch.Color}
	var out httpapi.ProfileDTO
	if err := c.do(ctx, http.MethodPatch, profilePath(id), req, &out); err != nil {
		return nil, err
	}
	p := httpapi.ProfileFromDTO(out)
	return &p, nil
}

// DeleteProfile needs an admin token.
func (c *Client) DeleteProfile(ctx context.Context, id uuid.UUID) (bool, error) {
	var out httpapi.DeletedResponse
	if err := c.do(ctx, http.MethodDelete, profilePath(id), nil, &out); err != nil {
		return false, err
	}
	return out.Deleted, nil
}

func (c *Client) checkPin(ctx context.Context, id uuid.UUID, pin string) (httpapi.PinResponse, error) {
	var out httpapi.PinResponse
	err := c.do(ctx, http.MethodPost, profilePath(id)+"/pin", httpapi.PinRequest{Pin: pin}, &out)
	return out, err
}

// ValidatePin reports whether pin unlocks the profile.
func (c *Client) ValidatePin(ctx context.Context, id uuid.UUID, pin string) (bool, error) {
	res, err := c.checkPin(ctx, id, pin)
	if err != nil {
		return false, err
	}
	return res.Valid, nil
}

// OpenSession exchanges a PIN for a session token. A wrong PIN is errs.ErrInvalidPin.
func (c *Client) OpenSession(ctx context.Context, id uuid.UUID, pin string) (model.SessionToken, error) {
	res, err := c.checkPin(ctx, id, pin)
	if err != nil {
		return model.SessionToken{}, err
	}
	if !res.Valid {
		return model.SessionToken{}, errs.ErrInvalidPin
	}
	tok := model.SessionToken{Token: res.Token, ProfileID: id}
	if res.ExpiresAt != nil {
		tok.ExpiresAt = *res.ExpiresAt
	}
	return tok, nil
}
