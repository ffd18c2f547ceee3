package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/usecasehub/usecase-hub/internal/auth"
	"github.com/usecasehub/usecase-hub/internal/models"
)

// Auth handlers

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req models.SignUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	resp, err := s.identity.SignUp(r.Context(), req)
	if err != nil {
		if errors.Is(err, auth.ErrEmailTaken) {
			respondError(w, http.StatusConflict, "email_taken", "email is already registered")
			return
		}
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req models.SignInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	resp, err := s.identity.SignIn(r.Context(), req)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			respondError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
			return
		}
		slog.Error("sign-in failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to sign in")
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	token := extractBearerToken(r)
	if token == "" {
		respondError(w, http.StatusUnauthorized, "missing_token", "provide Authorization header with Bearer token")
		return
	}

	if err := s.identity.SignOut(r.Context(), token); err != nil {
		slog.Error("sign-out failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to sign out")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "signed out",
	})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	respondJSON(w, http.StatusOK, user)
}

func (s *Server) handleOAuthBegin(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	redirect, err := s.identity.BeginOAuth(r.Context(), provider)
	if err != nil {
		if errors.Is(err, auth.ErrUnknownProvider) {
			respondError(w, http.StatusNotFound, "unknown_provider", "oauth provider is not configured")
			return
		}
		slog.Error("failed to begin oauth flow", "provider", provider, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to begin oauth flow")
		return
	}

	http.Redirect(w, r, redirect, http.StatusFound)
}

func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	query := r.URL.Query()

	state := query.Get("state")
	if state == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "state is required")
		return
	}

	resp, err := s.identity.CompleteOAuth(r.Context(), provider, state, query.Get("email"), query.Get("name"))
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUnknownProvider):
			respondError(w, http.StatusNotFound, "unknown_provider", "oauth provider is not configured")
		case errors.Is(err, auth.ErrInvalidState):
			respondError(w, http.StatusUnauthorized, "invalid_state", "oauth state is invalid or expired")
		default:
			slog.Error("failed to complete oauth flow", "provider", provider, "error", err)
			respondError(w, http.StatusBadRequest, "oauth_error", err.Error())
		}
		return
	}

	respondJSON(w, http.StatusOK, resp)
}
