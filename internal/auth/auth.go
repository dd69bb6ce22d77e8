package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/kidandcat/teamboard/internal/db"
)

type contextKey string

const userKey contextKey = "user"

// WithUser stores the authenticated user on ctx.
func WithUser(ctx context.Context, u *db.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// CurrentUser returns the authenticated user for r, or nil.
func CurrentUser(r *http.Request) *db.User {
	if u, ok := r.Context().Value(userKey).(*db.User); ok {
		return u
	}
	return nil
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
