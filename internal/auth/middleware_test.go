package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

type staticSession string

func (s staticSession) CurrentUser() string { return string(s) }

func protected(t *testing.T, session CurrentUser) (http.Handler, *TokenService) {
	t.Helper()
	ts := newTestTokenService(t)
	h := RequireAuth(ts, session)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := UserIDFromContext(r.Context())
		w.Write([]byte(id))
	}))
	return h, ts
}

func TestRequireAuth(t *testing.T) {
	h, ts := protected(t, staticSession("sub-a"))
	tokenA, _ := ts.Generate("sub-a")
	tokenB, _ := ts.Generate("sub-b")

	tests := []struct {
		name       string
		setup      func(r *http.Request)
		wantStatus int
		wantBody   string
	}{
		{"no token", func(*http.Request) {}, http.StatusUnauthorized, ""},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: CookieName, Value: tokenA}) }, http.StatusOK, "sub-a"},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tokenA) }, http.StatusOK, "sub-a"},
		{"garbage", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized, ""},
		{"not the signed-in user", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: CookieName, Value: tokenB}) }, http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK && rec.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestRequireAuth_SignedOutRejectsEveryToken(t *testing.T) {
	h, ts := protected(t, staticSession(""))
	token, _ := ts.Generate("sub-a")

	req := httptest.NewRequest(http.MethodGet, "/api/notes", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestUserIDFromContext_Anonymous(t *testing.T) {
	if _, ok := UserIDFromContext(context.Background()); ok {
		t.Error("empty context should not carry a user id")
	}
	if id, ok := UserIDFromContext(ContextWithUserID(context.Background(), "sub-a")); !ok || id != "sub-a" {
		t.Errorf("UserIDFromContext() = %q, %v, want sub-a, true", id, ok)
	}
}

func TestGoogleProvider_Exchange(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.Form.Get("code") != "good-code" {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"access_token": "at-1", "token_type": "Bearer", "expires_in": 3600})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(GoogleUser{Sub: "1234", Name: "Dana", Email: "dana@example.com", Picture: "https://example.com/d.png"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewGoogleProvider("client", "secret", "http://localhost/cb",
		WithEndpoint(srv.URL+"/auth", srv.URL+"/token", srv.URL+"/userinfo"))

	authURL, err := url.Parse(p.AuthURL("state-xyz"))
	if err != nil {
		t.Fatalf("AuthURL() is not a URL: %v", err)
	}
	if got := authURL.Query().Get("state"); got != "state-xyz" {
		t.Errorf("state = %q, want state-xyz", got)
	}
	if !strings.Contains(authURL.Query().Get("scope"), "email") {
		t.Errorf("scope = %q, want it to include email", authURL.Query().Get("scope"))
	}

	user, err := p.Exchange(context.Background(), "good-code")
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	if user.Sub != "1234" || user.Name != "Dana" {
		t.Errorf("Exchange() = %+v", user)
	}

	if _, err := p.Exchange(context.Background(), "bad-code"); err == nil {
		t.Error("Exchange() should fail for a rejected code")
	}
}

func TestTokenService_DefaultTTL(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	ts, err := NewTokenService("test-secret-at-least-16-chars!!", 0, clock)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	token, _ := ts.Generate("u")

	clock.Advance(DefaultTokenTTL - time.Minute)
	if _, err := ts.Validate(token); err != nil {
		t.Errorf("token should still be valid just before the default TTL: %v", err)
	}
}
