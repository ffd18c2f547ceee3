package models

import (
	"time"
)

// Telemetry event types
const (
	EventPageViewed          = "page_viewed"
	EventSearchPerformed     = "search_performed"
	EventFiltersApplied      = "filters_applied"
	EventUseCaseViewed       = "use_case_viewed"
	EventUseCaseBookmarked   = "use_case_bookmarked"
	EventImplementationStart = "implementation_started"
	EventStepCompleted       = "step_completed"
	EventMCPServerViewed     = "mcp_server_viewed"
	EventMCPConfigGenerated  = "mcp_config_generated"
	EventMCPConfigDownloaded = "mcp_config_downloaded"
	EventUserSignedUp        = "user_signed_up"
	EventUserSignedIn        = "user_signed_in"
)

// Event is one fire-and-forget telemetry record. Optional fields are left
// empty when not applicable; no consumer awaits a response.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"event_type"`
	UserID    string                 `json:"user_id,omitempty"`
	UseCaseID string                 `json:"use_case_id,omitempty"`
	ServerID  string                 `json:"mcp_server_id,omitempty"`
	Payload   map[string]interface{} `json:"event_data,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// PageViewEvent records a page view
func PageViewEvent(page, userID string) Event {
	return Event{
		Type:      EventPageViewed,
		UserID:    userID,
		Payload:   map[string]interface{}{"page": page},
		CreatedAt: time.Now().UTC(),
	}
}

// SearchEvent records a free-text search and its result count
func SearchEvent(query string, results int, userID string) Event {
	return Event{
		Type:      EventSearchPerformed,
		UserID:    userID,
		Payload:   map[string]interface{}{"query": query, "results_count": results},
		CreatedAt: time.Now().UTC(),
	}
}

// FiltersEvent records a structured filter application and its result count
func FiltersEvent(f Filter, results int, userID string) Event {
	return Event{
		Type:   EventFiltersApplied,
		UserID: userID,
		Payload: map[string]interface{}{
			"categories":    f.Categories,
			"difficulties":  f.Difficulties,
			"industries":    f.Industries,
			"user_roles":    f.UserRoles,
			"featured":      f.Featured,
			"results_count": results,
		},
		CreatedAt: time.Now().UTC(),
	}
}

// UseCaseViewedEvent records a detail-page view
func UseCaseViewedEvent(useCaseID, userID string) Event {
	return Event{
		Type:      EventUseCaseViewed,
		UseCaseID: useCaseID,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}
}

// BookmarkEvent records a bookmark toggle
func BookmarkEvent(useCaseID, userID string, added bool) Event {
	return Event{
		Type:      EventUseCaseBookmarked,
		UseCaseID: useCaseID,
		UserID:    userID,
		Payload:   map[string]interface{}{"added": added},
		CreatedAt: time.Now().UTC(),
	}
}

// StepCompletedEvent records a progress toggle on an implementation step
func StepCompletedEvent(useCaseID, stepID, userID string) Event {
	return Event{
		Type:      EventStepCompleted,
		UseCaseID: useCaseID,
		UserID:    userID,
		Payload:   map[string]interface{}{"step_id": stepID},
		CreatedAt: time.Now().UTC(),
	}
}

// ImplementationStartedEvent records the first completed step of a use case
func ImplementationStartedEvent(useCaseID, userID string) Event {
	return Event{
		Type:      EventImplementationStart,
		UseCaseID: useCaseID,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}
}

// MCPServerViewedEvent records a detail view of an MCP server
func MCPServerViewedEvent(serverID, userID string) Event {
	return Event{
		Type:      EventMCPServerViewed,
		ServerID:  serverID,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}
}

// MCPConfigGeneratedEvent records assembly of a client config from a
// selection of MCP servers
func MCPConfigGeneratedEvent(serverIDs []string, userID string) Event {
	return Event{
		Type:   EventMCPConfigGenerated,
		UserID: userID,
		Payload: map[string]interface{}{
			"server_ids":   serverIDs,
			"server_count": len(serverIDs),
		},
		CreatedAt: time.Now().UTC(),
	}
}

// MCPConfigDownloadedEvent records a config being saved as a file
func MCPConfigDownloadedEvent(configType, userID string) Event {
	return Event{
		Type:      EventMCPConfigDownloaded,
		UserID:    userID,
		Payload:   map[string]interface{}{"config_type": configType},
		CreatedAt: time.Now().UTC(),
	}
}

// SignUpEvent records a new registration
func SignUpEvent(userID, provider string) Event {
	return Event{
		Type:      EventUserSignedUp,
		UserID:    userID,
		Payload:   map[string]interface{}{"provider": provider},
		CreatedAt: time.Now().UTC(),
	}
}

// SignInEvent records a sign-in
func SignInEvent(userID, provider string) Event {
	return Event{
		Type:      EventUserSignedIn,
		UserID:    userID,
		Payload:   map[string]interface{}{"provider": provider},
		CreatedAt: time.Now().UTC(),
	}
}

// EventSummary aggregates recent telemetry for the admin dashboard
type EventSummary struct {
	TotalEvents int            `json:"total_events"`
	ByType      map[string]int `json:"by_type"`
	TopUseCases []UseCaseViews `json:"top_use_cases"`
	TopSearches []SearchCount  `json:"top_searches"`
	Since       time.Time      `json:"since"`
}

// UseCaseViews counts detail-page views per use case
type UseCaseViews struct {
	UseCaseID string `json:"use_case_id"`
	Title     string `json:"title,omitempty"`
	Views     int    `json:"views"`
}

// SearchCount counts occurrences of a search query
type SearchCount struct {
	Query string `json:"query"`
	Count int    `json:"count"`
}
