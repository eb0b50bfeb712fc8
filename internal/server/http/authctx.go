package httpapi

import (
	"context"

	"github.com/and161185/stremur/internal/model"
)

type ctxKey string

const (
	profileKey   ctxKey = "stremur.profile"
	requestIDKey ctxKey = "stremur.requestID"
)

// WithProfile stores the authenticated profile in context.
func WithProfile(ctx context.Context, p *model.Profile) context.Context {
	return context.WithValue(ctx, profileKey, p)
}

// ProfileFromCtx fetches the authenticated profile from context.
func ProfileFromCtx(ctx context.Context) (*model.Profile, bool) {
	p, ok := ctx.Value(profileKey).(*model.Profile)
	return p, ok && p != nil
}

// RequestIDFromCtx returns the request id assigned by the middleware.
func RequestIDFromCtx(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}
