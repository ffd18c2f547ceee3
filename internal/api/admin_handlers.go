package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/usecasehub/usecase-hub/internal/models"
	"github.com/usecasehub/usecase-hub/internal/storage"
)

// Admin handlers

func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.repo.Stats(r.Context())
	if err != nil {
		slog.Error("failed to load admin stats", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load stats")
		return
	}

	respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleAdminCreateUseCase(w http.ResponseWriter, r *http.Request) {
	var req models.UpsertUseCaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if msg := validateUpsert(&req); msg != "" {
		respondError(w, http.StatusBadRequest, "validation_error", msg)
		return
	}

	uc := useCaseFromRequest(uuid.New().String(), &req)
	if err := s.repo.CreateUseCase(r.Context(), uc); err != nil {
		slog.Error("failed to create use case", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to create use case")
		return
	}

	slog.Info("use case created", "id", uc.ID, "admin", userIDFrom(r))

	respondJSON(w, http.StatusCreated, uc)
}

func (s *Server) handleAdminUpdateUseCase(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "use case id is required")
		return
	}

	var req models.UpsertUseCaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if msg := validateUpsert(&req); msg != "" {
		respondError(w, http.StatusBadRequest, "validation_error", msg)
		return
	}

	uc := useCaseFromRequest(id, &req)
	if err := s.repo.UpdateUseCase(r.Context(), uc); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "use case not found")
			return
		}
		slog.Error("failed to update use case", "id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to update use case")
		return
	}

	slog.Info("use case updated", "id", id, "admin", userIDFrom(r))

	respondJSON(w, http.StatusOK, uc)
}

func (s *Server) handleAdminDeleteUseCase(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "use case id is required")
		return
	}

	if err := s.repo.DeleteUseCase(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "use case not found")
			return
		}
		slog.Error("failed to delete use case", "id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to delete use case")
		return
	}

	slog.Info("use case deleted", "id", id, "admin", userIDFrom(r))

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "use case deleted",
	})
}

func (s *Server) handleAdminSetFeatured(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "use case id is required")
		return
	}

	var req struct {
		Featured bool `json:"featured"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if err := s.repo.SetFeatured(r.Context(), id, req.Featured); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "use case not found")
			return
		}
		slog.Error("failed to set featured flag", "id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to set featured flag")
		return
	}

	respondJSON(w, http.StatusOK, models.FeatureToggleResponse{
		ID:       id,
		Featured: req.Featured,
	})
}

func (s *Server) handleAdminEventSummary(w http.ResponseWriter, r *http.Request) {
	window := 7 * 24 * time.Hour
	if sinceStr := r.URL.Query().Get("window"); sinceStr != "" {
		if d, err := time.ParseDuration(sinceStr); err == nil && d > 0 {
			window = d
		}
	}

	summary, err := s.repo.EventSummary(r.Context(), time.Now().UTC().Add(-window))
	if err != nil {
		slog.Error("failed to load event summary", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load event summary")
		return
	}

	respondJSON(w, http.StatusOK, summary)
}

// validateUpsert returns "" when the payload is acceptable
func validateUpsert(req *models.UpsertUseCaseRequest) string {
	if strings.TrimSpace(req.Title) == "" {
		return "title is required"
	}
	if strings.TrimSpace(req.Category) == "" {
		return "category is required"
	}
	if req.Difficulty != "" && !req.Difficulty.Valid() {
		return "unknown difficulty: " + string(req.Difficulty)
	}
	if req.EstimatedCost != "" && !req.EstimatedCost.Valid() {
		return "unknown estimated cost: " + string(req.EstimatedCost)
	}
	if req.Popularity < 0 {
		return "popularity must not be negative"
	}
	return ""
}

func useCaseFromRequest(id string, req *models.UpsertUseCaseRequest) *models.UseCase {
	return &models.UseCase{
		ID:              id,
		Title:           req.Title,
		Description:     req.Description,
		Category:        req.Category,
		Difficulty:      req.Difficulty,
		TimeToImplement: req.TimeToImplement,
		ROIExpected:     req.ROIExpected,
		EstimatedCost:   req.EstimatedCost,
		Featured:        req.Featured,
		Popularity:      req.Popularity,
		LastUpdated:     time.Now().UTC(),
		Tags:            req.Tags,
		Industries:      req.Industries,
		UserRoles:       req.UserRoles,
		Steps:           req.Steps,
	}
}
