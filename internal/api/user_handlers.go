package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/usecasehub/usecase-hub/internal/models"
)

// Profile handlers

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, UserFromContext(r.Context()))
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	var req models.UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	user.Name = req.Name
	if err := s.repo.UpdateUser(r.Context(), user); err != nil {
		slog.Error("failed to update profile", "user_id", user.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to update profile")
		return
	}

	respondJSON(w, http.StatusOK, user)
}

// Bookmark handlers

func (s *Server) handleListBookmarks(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	ids, err := s.repo.ListBookmarks(r.Context(), user.ID)
	if err != nil {
		slog.Error("failed to list bookmarks", "user_id", user.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to list bookmarks")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"use_case_ids": ids,
		"total":        len(ids),
	})
}

func (s *Server) handleAddBookmark(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	var req struct {
		UseCaseID string `json:"use_case_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.UseCaseID == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "use_case_id is required")
		return
	}

	if err := s.repo.AddBookmark(r.Context(), user.ID, req.UseCaseID); err != nil {
		slog.Error("failed to add bookmark", "user_id", user.ID, "use_case_id", req.UseCaseID, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to add bookmark")
		return
	}

	s.track(models.BookmarkEvent(req.UseCaseID, user.ID, true))

	respondJSON(w, http.StatusCreated, map[string]string{
		"use_case_id": req.UseCaseID,
	})
}

func (s *Server) handleRemoveBookmark(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	useCaseID := chi.URLParam(r, "id")
	if useCaseID == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "use case id is required")
		return
	}

	// Removal is idempotent: deleting an absent bookmark succeeds
	if err := s.repo.RemoveBookmark(r.Context(), user.ID, useCaseID); err != nil {
		slog.Error("failed to remove bookmark", "user_id", user.ID, "use_case_id", useCaseID, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to remove bookmark")
		return
	}

	s.track(models.BookmarkEvent(useCaseID, user.ID, false))

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "bookmark removed",
	})
}

// Progress handlers

func (s *Server) handleListProgress(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	useCaseID := r.URL.Query().Get("use_case_id")

	stepIDs, err := s.repo.ListProgress(r.Context(), user.ID, useCaseID)
	if err != nil {
		slog.Error("failed to list progress", "user_id", user.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to list progress")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"step_ids": stepIDs,
		"total":    len(stepIDs),
	})
}

func (s *Server) handleMarkStep(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	var req struct {
		UseCaseID string `json:"use_case_id"`
		StepID    string `json:"step_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.UseCaseID == "" || req.StepID == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "use_case_id and step_id are required")
		return
	}

	// The first completed step of a use case marks the start of its
	// implementation
	existing, err := s.repo.ListProgress(r.Context(), user.ID, req.UseCaseID)
	if err != nil {
		slog.Error("failed to list progress", "user_id", user.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to mark step complete")
		return
	}

	if err := s.repo.MarkStepComplete(r.Context(), user.ID, req.UseCaseID, req.StepID); err != nil {
		slog.Error("failed to mark step complete", "user_id", user.ID, "step_id", req.StepID, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to mark step complete")
		return
	}

	if len(existing) == 0 {
		s.track(models.ImplementationStartedEvent(req.UseCaseID, user.ID))
	}
	s.track(models.StepCompletedEvent(req.UseCaseID, req.StepID, user.ID))

	respondJSON(w, http.StatusCreated, map[string]string{
		"step_id": req.StepID,
	})
}

func (s *Server) handleUnmarkStep(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	stepID := chi.URLParam(r, "stepID")
	if stepID == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "step id is required")
		return
	}

	if err := s.repo.UnmarkStepComplete(r.Context(), user.ID, stepID); err != nil {
		slog.Error("failed to unmark step", "user_id", user.ID, "step_id", stepID, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to unmark step")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "step unmarked",
	})
}
