package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/usecasehub/usecase-hub/internal/config"
	"github.com/usecasehub/usecase-hub/internal/models"
)

// Common errors
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrSessionNotFound    = errors.New("session not found")
	ErrUnknownProvider    = errors.New("unknown oauth provider")
	ErrInvalidState       = errors.New("invalid oauth state")
)

const (
	minPasswordLength = 8
	oauthStateTTL     = 10 * time.Minute
)

// UserStore is the slice of the repository the identity service consumes
type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	TouchUserLastSeen(ctx context.Context, id string) error
}

// EventSink receives fire-and-forget telemetry events
type EventSink interface {
	Dispatch(ev models.Event) bool
}

// Service implements credential and OAuth-redirect authentication with
// bearer sessions stored in Redis
type Service struct {
	users    UserStore
	sessions SessionStore
	events   EventSink
	cfg      config.AuthConfig
}

// NewService creates an identity service. events may be nil.
func NewService(users UserStore, sessions SessionStore, events EventSink, cfg config.AuthConfig) *Service {
	return &Service{
		users:    users,
		sessions: sessions,
		events:   events,
		cfg:      cfg,
	}
}

// SignUp registers a new credential account and opens a session
func (s *Service) SignUp(ctx context.Context, req models.SignUpRequest) (*models.AuthResponse, error) {
	email := normalizeEmail(req.Email)
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}
	if len(req.Password) < minPasswordLength {
		return nil, fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}

	existing, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         req.Name,
		Role:         models.RoleMember,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.track(models.SignUpEvent(user.ID, "credentials"))
	slog.Info("user signed up", "user_id", user.ID)

	return s.openSession(ctx, user)
}

// SignIn authenticates credentials and opens a session
func (s *Service) SignIn(ctx context.Context, req models.SignInRequest) (*models.AuthResponse, error) {
	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil || user.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := s.users.TouchUserLastSeen(ctx, user.ID); err != nil {
		slog.Warn("failed to update last_seen_at", "user_id", user.ID, "error", err)
	}

	s.track(models.SignInEvent(user.ID, "credentials"))

	return s.openSession(ctx, user)
}

// SignOut deletes the session for a bearer token
func (s *Service) SignOut(ctx context.Context, token string) error {
	if err := s.sessions.Delete(ctx, token); err != nil {
		return fmt.Errorf("failed to sign out: %w", err)
	}
	return nil
}

// UserFromToken resolves a bearer token to its user
func (s *Service) UserFromToken(ctx context.Context, token string) (*models.User, error) {
	userID, err := s.sessions.Lookup(ctx, token)
	if err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, ErrSessionNotFound
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, ErrSessionNotFound
	}

	return user, nil
}

// BeginOAuth returns the provider redirect URL for an OAuth sign-in. The
// state nonce is stored for the callback to consume.
func (s *Service) BeginOAuth(ctx context.Context, provider string) (string, error) {
	p, err := s.provider(provider)
	if err != nil {
		return "", err
	}

	state, err := models.GenerateSessionToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}

	if err := s.sessions.SaveState(ctx, state, provider, oauthStateTTL); err != nil {
		return "", err
	}

	redirect := fmt.Sprintf("%s?client_id=%s&redirect_uri=%s&state=%s&response_type=code",
		p.AuthorizeURL,
		url.QueryEscape(p.ClientID),
		url.QueryEscape(s.cfg.CallbackBaseURL+"/api/v1/auth/oauth/"+provider+"/callback"),
		state,
	)
	return redirect, nil
}

// CompleteOAuth consumes the state nonce and signs the identity in,
// creating the account on first sight. Token exchange and identity
// verification are the provider's business; this service trusts the
// identity the callback layer resolved.
func (s *Service) CompleteOAuth(ctx context.Context, provider, state, email, name string) (*models.AuthResponse, error) {
	if _, err := s.provider(provider); err != nil {
		return nil, err
	}

	boundProvider, err := s.sessions.TakeState(ctx, state)
	if err != nil {
		return nil, err
	}
	if boundProvider != provider {
		return nil, ErrInvalidState
	}

	email = normalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("provider returned no email")
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if user == nil {
		user = &models.User{
			ID:        uuid.New().String(),
			Email:     email,
			Name:      name,
			Role:      models.RoleMember,
			Provider:  provider,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.users.CreateUser(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		s.track(models.SignUpEvent(user.ID, provider))
	} else {
		s.track(models.SignInEvent(user.ID, provider))
	}

	return s.openSession(ctx, user)
}

// Ping verifies the session store is reachable
func (s *Service) Ping(ctx context.Context) error {
	return s.sessions.Ping(ctx)
}

func (s *Service) openSession(ctx context.Context, user *models.User) (*models.AuthResponse, error) {
	token, err := models.GenerateSessionToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	expiresAt := time.Now().UTC().Add(s.cfg.SessionTTL)
	if err := s.sessions.Save(ctx, token, user.ID, s.cfg.SessionTTL); err != nil {
		return nil, err
	}

	return &models.AuthResponse{
		User:      user,
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *Service) provider(name string) (config.OAuthProvider, error) {
	switch name {
	case "google":
		if s.cfg.OAuthGoogle.ClientID != "" {
			return s.cfg.OAuthGoogle, nil
		}
	case "github":
		if s.cfg.OAuthGitHub.ClientID != "" {
			return s.cfg.OAuthGitHub, nil
		}
	}
	return config.OAuthProvider{}, ErrUnknownProvider
}

func (s *Service) track(ev models.Event) {
	if s.events != nil {
		s.events.Dispatch(ev)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
