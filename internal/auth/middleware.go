package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// contextKey keeps this package's context values private to it.
type contextKey string

const userIDKey contextKey = "userID"

// CookieName is the HttpOnly cookie holding the session token.
const CookieName = "token"

// CurrentUser reports who is signed in on this installation.
type CurrentUser interface {
	CurrentUser() string
}

var errNotCurrent = errors.New("auth: token does not belong to the signed-in user")

// RequireAuth rejects requests without a valid token for the signed-in user
// and stores that user's id in the request context.
//
// The token is read from the "token" cookie first and from an
// "Authorization: Bearer" header otherwise. Chi applies middlewares in a
// chain, so this wraps every route registered after it:
//
//	req → RequestID → Logger → RequireAuth → handler
func RequireAuth(tokens *TokenService, session CurrentUser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := extractUserID(r, tokens, session)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"unauthorized","message":"sign in required"}`))
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithUserID(r.Context(), userID)))
		})
	}
}

// UserIDFromContext returns ("", false) for anonymous requests.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// ContextWithUserID attaches the authenticated user id to ctx.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func tokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return ""
}

func extractUserID(r *http.Request, tokens *TokenService, session CurrentUser) (string, error) {
	raw := tokenFromRequest(r)
	if raw == "" {
		return "", http.ErrNoCookie
	}
	userID, err := tokens.Validate(raw)
	if err != nil {
		return "", err
	}
	if userID != session.CurrentUser() {
		return "", errNotCurrent
	}
	return userID, nil
}
