package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/notekeeper/internal/apperror"
	"github.com/sakif/notekeeper/internal/auth"
	"github.com/sakif/notekeeper/internal/model"
)

// unknown stands in for profile fields the identity provider left empty.
const unknown = "Unknown"

// Identity is what the identity provider returns after a successful sign-in.
type Identity struct {
	Subject    string
	Name       string
	Email      string
	PictureURL string
}

// AuthService signs users in and out of this installation.
//
//	AuthHandler (HTTP) → AuthService → Repository (user row)
//	                                 ↘ Session (current user)
//	                                 ↘ TokenService (JWT)
//
// It never touches cookies or requests; that is the handler's job.
type AuthService struct {
	app    *App
	tokens *auth.TokenService
}

func NewAuthService(app *App, tokens *auth.TokenService) *AuthService {
	return &AuthService{app: app, tokens: tokens}
}

// AuthResult bundles the user and the issued token so the handler can set
// the cookie and respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// SignIn upserts the user, makes it the current user and issues a token.
// Missing name or email are stored as "Unknown".
func (s *AuthService) SignIn(ctx context.Context, id Identity) (*AuthResult, error) {
	if strings.TrimSpace(id.Subject) == "" {
		return nil, apperror.ValidationFailed("subject", "sign-in did not return an account id")
	}

	user := &model.User{
		ID:                id.Subject,
		Name:              orUnknown(id.Name),
		Email:             orUnknown(id.Email),
		ProfilePictureURL: id.PictureURL,
	}
	if err := s.app.Repo.SaveUser(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: saving user %s: %w", user.ID, err)
	}
	if err := s.app.Session.SetCurrentUser(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("service/auth: setting current user: %w", err)
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	s.app.Logger.Info("user signed in", slog.String("user_id", user.ID))
	return &AuthResult{User: user, Token: token}, nil
}

// SignOut clears the current user. Every token issued before stops working.
func (s *AuthService) SignOut(ctx context.Context) error {
	prev := s.app.Session.CurrentUser()
	if err := s.app.Session.ClearCurrentUser(ctx); err != nil {
		return fmt.Errorf("service/auth: clearing current user: %w", err)
	}
	if prev != "" {
		s.app.Logger.Info("user signed out", slog.String("user_id", prev))
	}
	return nil
}

// Me returns the signed-in user's profile.
func (s *AuthService) Me(ctx context.Context) (*model.User, error) {
	userID, err := s.app.requireUser(ctx)
	if err != nil {
		return nil, err
	}
	user, err := s.app.Repo.GetUser(ctx, userID)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, apperror.Unauthenticated()
	}
	return user, err
}

// SignInMessage turns a sign-in failure into text fit for the sign-in page.
func SignInMessage(err error) string {
	if errors.Is(err, apperror.ErrValidation) {
		return apperror.Public(err)
	}
	return "Sign-in failed. Please try again."
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return unknown
	}
	return s
}
