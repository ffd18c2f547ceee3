package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/usecasehub/usecase-hub/internal/catalog"
	"github.com/usecasehub/usecase-hub/internal/models"
)

// Catalog handlers

func (s *Server) handleListUseCases(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := models.Filter{
		Query:        strings.TrimSpace(query.Get("q")),
		Categories:   splitParam(query.Get("categories")),
		Difficulties: splitParam(query.Get("difficulties")),
		Industries:   splitParam(query.Get("industries")),
		UserRoles:    splitParam(query.Get("roles")),
		Featured:     query.Get("featured") == "true",
	}
	selector := query.Get("category")

	// Load the full collection and narrow in memory so set-based filters
	// behave identically on the store and fixture paths
	useCases := s.catalog.List(r.Context(), models.StoreFilter{})
	useCases = catalog.Apply(useCases, selector, filter)

	// Telemetry reports the pipeline's result count, not the page size
	resultCount := len(useCases)

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 && limit < len(useCases) {
			useCases = useCases[:limit]
		}
	}

	userID := userIDFrom(r)
	if filter.Query != "" {
		s.track(models.SearchEvent(filter.Query, resultCount, userID))
	}
	if !filter.IsZero() || selector != "" {
		s.track(models.FiltersEvent(filter, resultCount, userID))
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"use_cases": useCases,
		"total":     len(useCases),
	})
}

func (s *Server) handleGetUseCase(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "use case id is required")
		return
	}

	uc, err := s.catalog.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, catalog.ErrUseCaseNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "use case not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to get use case")
		return
	}

	s.track(models.UseCaseViewedEvent(id, userIDFrom(r)))

	respondJSON(w, http.StatusOK, uc)
}

func (s *Server) handleFeaturedUseCases(w http.ResponseWriter, r *http.Request) {
	useCases := s.catalog.Featured(r.Context())
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"use_cases": useCases,
		"total":     len(useCases),
	})
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories := s.catalog.Categories(r.Context())
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"categories": categories,
		"total":      len(categories),
	})
}

func (s *Server) handleListMCPServers(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	officialOnly := r.URL.Query().Get("official") == "true"

	servers, err := s.repo.ListMCPServers(r.Context(), category, officialOnly)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to list mcp servers")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"mcp_servers": servers,
		"total":       len(servers),
	})
}

func (s *Server) handleGetMCPServer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	server, err := s.repo.GetMCPServer(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to get mcp server")
		return
	}
	if server == nil {
		respondError(w, http.StatusNotFound, "not_found", "mcp server not found")
		return
	}

	s.track(models.MCPServerViewedEvent(id, userIDFrom(r)))

	respondJSON(w, http.StatusOK, server)
}

type mcpConfigRequest struct {
	ServerIDs  []string `json:"server_ids"`
	ConfigType string   `json:"config_type"`
}

// handleGenerateMCPConfig assembles a client configuration document from a
// selection of MCP servers. With ?download=true the document is returned as
// a file attachment instead of the usual envelope.
func (s *Server) handleGenerateMCPConfig(w http.ResponseWriter, r *http.Request) {
	var req mcpConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", "invalid request body")
		return
	}
	if len(req.ServerIDs) == 0 {
		respondError(w, http.StatusBadRequest, "validation_error", "server_ids is required")
		return
	}
	if req.ConfigType == "" {
		req.ConfigType = "claude_desktop"
	}

	entries := make(map[string]interface{})
	for _, id := range req.ServerIDs {
		server, err := s.repo.GetMCPServer(r.Context(), id)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "failed to get mcp server")
			return
		}
		// Unknown references are treated as absent rather than failing
		// the whole document
		if server == nil {
			continue
		}

		var example map[string]interface{}
		if err := json.Unmarshal([]byte(server.ConfigExample), &example); err != nil || len(example) == 0 {
			example = map[string]interface{}{"command": server.InstallCommand}
		}
		entries[server.Name] = example
	}

	userID := userIDFrom(r)
	s.track(models.MCPConfigGeneratedEvent(req.ServerIDs, userID))

	document := map[string]interface{}{"mcpServers": entries}

	if r.URL.Query().Get("download") == "true" {
		s.track(models.MCPConfigDownloadedEvent(req.ConfigType, userID))

		body, err := json.MarshalIndent(document, "", "  ")
		if err != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "failed to encode config")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", `attachment; filename="`+req.ConfigType+`_config.json"`)
		w.WriteHeader(http.StatusOK)
		w.Write(body)
		return
	}

	respondJSON(w, http.StatusOK, document)
}

// splitParam parses a comma-separated query parameter into a clean slice
func splitParam(raw string) []string {
	if raw == "" {
		return nil
	}

	var values []string
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	return values
}

// userIDFrom returns the authenticated user's ID for telemetry attribution,
// or "" for anonymous requests
func userIDFrom(r *http.Request) string {
	if user := UserFromContext(r.Context()); user != nil {
		return user.ID
	}
	return ""
}
