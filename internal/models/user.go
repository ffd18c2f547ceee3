package models

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// UserRole constants for the account role column (distinct from the
// user_roles catalog facet)
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

// User represents a registered account
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name,omitempty"`
	Role         string     `json:"role"`
	PasswordHash string     `json:"-"` // Never serialize
	Provider     string     `json:"provider,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	LastSeenAt   *time.Time `json:"last_seen_at,omitempty"`
}

// IsAdmin reports whether the account may use the admin surface
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Session pairs a bearer token with the authenticated user
type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// GenerateSessionToken creates a cryptographically random 48-char hex token
func GenerateSessionToken() (string, error) {
	bytes := make([]byte, 24)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// SignUpRequest is the credential registration payload
type SignUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

// SignInRequest is the credential sign-in payload
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned after a successful sign-up or sign-in
type AuthResponse struct {
	User      *User     `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// UpdateProfileRequest carries mutable profile fields
type UpdateProfileRequest struct {
	Name string `json:"name"`
}

// Bookmark links a user to a saved use case
type Bookmark struct {
	UserID    string    `json:"user_id"`
	UseCaseID string    `json:"use_case_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ProgressEntry marks one implementation step as completed by a user
type ProgressEntry struct {
	UserID      string    `json:"user_id"`
	UseCaseID   string    `json:"use_case_id"`
	StepID      string    `json:"step_id"`
	CompletedAt time.Time `json:"completed_at"`
}
