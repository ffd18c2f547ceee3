package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/usecasehub/usecase-hub/internal/auth"
	"github.com/usecasehub/usecase-hub/internal/catalog"
	"github.com/usecasehub/usecase-hub/internal/config"
	"github.com/usecasehub/usecase-hub/internal/fixtures"
	"github.com/usecasehub/usecase-hub/internal/models"
	"github.com/usecasehub/usecase-hub/internal/storage"
	"github.com/usecasehub/usecase-hub/internal/telemetry"
)

var errDown = errors.New("connection refused")

// fakeRepo is an in-memory storage.Repository for handler tests
type fakeRepo struct {
	mu          sync.Mutex
	useCases    []*models.UseCase
	categories  []*models.Category
	mcpServers  []*models.MCPServer
	users       map[string]*models.User
	bookmarks   map[string][]string
	progress    map[string]map[string]string
	events      []*models.Event
	catalogDown bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users:     make(map[string]*models.User),
		bookmarks: make(map[string][]string),
		progress:  make(map[string]map[string]string),
	}
}

func (f *fakeRepo) ListUseCases(ctx context.Context, filter models.StoreFilter) ([]*models.UseCase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.catalogDown {
		return nil, errDown
	}

	var out []*models.UseCase
	for _, uc := range f.useCases {
		if filter.Featured != nil && uc.Featured != *filter.Featured {
			continue
		}
		if filter.Category != "" && uc.Category != filter.Category {
			continue
		}
		out = append(out, uc)
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (f *fakeRepo) GetUseCase(ctx context.Context, id string) (*models.UseCase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.catalogDown {
		return nil, errDown
	}
	for _, uc := range f.useCases {
		if uc.ID == id {
			return uc, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) CreateUseCase(ctx context.Context, uc *models.UseCase) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.useCases = append(f.useCases, uc)
	return nil
}

func (f *fakeRepo) UpdateUseCase(ctx context.Context, uc *models.UseCase) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, existing := range f.useCases {
		if existing.ID == uc.ID {
			f.useCases[i] = uc
			return nil
		}
	}
	return fmt.Errorf("use case %s: %w", uc.ID, storage.ErrNotFound)
}

func (f *fakeRepo) DeleteUseCase(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, uc := range f.useCases {
		if uc.ID == id {
			f.useCases = append(f.useCases[:i], f.useCases[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("use case %s: %w", id, storage.ErrNotFound)
}

func (f *fakeRepo) SetFeatured(ctx context.Context, id string, featured bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, uc := range f.useCases {
		if uc.ID == id {
			uc.Featured = featured
			return nil
		}
	}
	return fmt.Errorf("use case %s: %w", id, storage.ErrNotFound)
}

func (f *fakeRepo) ListCategories(ctx context.Context) ([]*models.Category, error) {
	if f.catalogDown {
		return nil, errDown
	}
	return f.categories, nil
}

func (f *fakeRepo) ListMCPServers(ctx context.Context, category string, officialOnly bool) ([]*models.MCPServer, error) {
	var out []*models.MCPServer
	for _, srv := range f.mcpServers {
		if category != "" && srv.Category != category {
			continue
		}
		if officialOnly && !srv.Official {
			continue
		}
		out = append(out, srv)
	}
	return out, nil
}

func (f *fakeRepo) GetMCPServer(ctx context.Context, id string) (*models.MCPServer, error) {
	for _, srv := range f.mcpServers {
		if srv.ID == id {
			return srv, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) CreateUser(ctx context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[u.ID] = u
	return nil
}

func (f *fakeRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[id], nil
}

func (f *fakeRepo) UpdateUser(ctx context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[u.ID]; !ok {
		return fmt.Errorf("user %s: %w", u.ID, storage.ErrNotFound)
	}
	f.users[u.ID] = u
	return nil
}

func (f *fakeRepo) TouchUserLastSeen(ctx context.Context, id string) error { return nil }

func (f *fakeRepo) ListBookmarks(ctx context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.bookmarks[userID]...), nil
}

func (f *fakeRepo) AddBookmark(ctx context.Context, userID, useCaseID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range f.bookmarks[userID] {
		if id == useCaseID {
			return nil
		}
	}
	f.bookmarks[userID] = append(f.bookmarks[userID], useCaseID)
	return nil
}

func (f *fakeRepo) RemoveBookmark(ctx context.Context, userID, useCaseID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := f.bookmarks[userID]
	for i, id := range ids {
		if id == useCaseID {
			f.bookmarks[userID] = append(ids[:i], ids[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeRepo) ListProgress(ctx context.Context, userID, useCaseID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for stepID, ucID := range f.progress[userID] {
		if useCaseID == "" || ucID == useCaseID {
			out = append(out, stepID)
		}
	}
	return out, nil
}

func (f *fakeRepo) MarkStepComplete(ctx context.Context, userID, useCaseID, stepID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.progress[userID] == nil {
		f.progress[userID] = make(map[string]string)
	}
	f.progress[userID][stepID] = useCaseID
	return nil
}

func (f *fakeRepo) UnmarkStepComplete(ctx context.Context, userID, stepID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.progress[userID], stepID)
	return nil
}

func (f *fakeRepo) InsertEvent(ctx context.Context, ev *models.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeRepo) EventSummary(ctx context.Context, since time.Time) (*models.EventSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	summary := &models.EventSummary{
		ByType: make(map[string]int),
		Since:  since,
	}
	for _, ev := range f.events {
		summary.TotalEvents++
		summary.ByType[ev.Type]++
	}
	return summary, nil
}

func (f *fakeRepo) DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeRepo) Stats(ctx context.Context) (*models.AdminStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &models.AdminStats{
		TotalUseCases: len(f.useCases),
		TotalUsers:    len(f.users),
	}
	for _, uc := range f.useCases {
		if uc.Featured {
			stats.FeaturedUseCases++
		}
	}
	return stats, nil
}

func (f *fakeRepo) Ping(ctx context.Context) error { return nil }
func (f *fakeRepo) Close() error                   { return nil }

// fakeSessions is a map-backed auth.SessionStore
type fakeSessions struct {
	mu     sync.Mutex
	tokens map[string]string
	states map[string]string
}

func (f *fakeSessions) Save(ctx context.Context, token, userID string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens[token] = userID
	return nil
}

func (f *fakeSessions) Lookup(ctx context.Context, token string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokens[token], nil
}

func (f *fakeSessions) Delete(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tokens, token)
	return nil
}

func (f *fakeSessions) SaveState(ctx context.Context, state, provider string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[state] = provider
	return nil
}

func (f *fakeSessions) TakeState(ctx context.Context, state string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	provider := f.states[state]
	delete(f.states, state)
	return provider, nil
}

func (f *fakeSessions) Ping(ctx context.Context) error { return nil }
func (f *fakeSessions) Close() error                   { return nil }

func seedRepo(repo *fakeRepo) {
	repo.useCases = []*models.UseCase{
		{
			ID:         "email-automation",
			Title:      "Automated Email Sequences",
			Category:   "business-automation",
			Difficulty: models.DifficultyBeginner,
			Featured:   true,
			Popularity: 95,
		},
		{
			ID:          "support-chatbot",
			Title:       "Customer Support Chatbot",
			Description: "Conversational assistant for support tickets",
			Category:    "customer-service",
			Difficulty:  models.DifficultyIntermediate,
			Featured:    true,
			Popularity:  88,
		},
		{
			ID:         "report-generator",
			Title:      "Weekly Report Generator",
			Category:   "business-automation",
			Difficulty: models.DifficultyBeginner,
			Popularity: 60,
		},
	}
	repo.categories = []*models.Category{
		{ID: "1", Name: "Business Automation", Slug: "business-automation"},
		{ID: "2", Name: "Customer Service", Slug: "customer-service"},
	}
	repo.mcpServers = []*models.MCPServer{
		{
			ID: "mcp-filesystem", Name: "Filesystem", Category: "filesystem",
			Official: true, Active: true,
			InstallCommand: "npx -y @modelcontextprotocol/server-filesystem",
			ConfigExample:  `{"command":"npx","args":["-y","@modelcontextprotocol/server-filesystem"]}`,
		},
		{
			ID: "mcp-community", Name: "Community Server", Category: "misc",
			Active:         true,
			InstallCommand: "npx community-server",
		},
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *fakeRepo) {
	ts, repo, _ := newTestServerWithEvents(t)
	return ts, repo
}

// newTestServerWithEvents additionally returns a channel receiving every
// event the handlers emit, for tests asserting on telemetry.
func newTestServerWithEvents(t *testing.T) (*httptest.Server, *fakeRepo, <-chan models.Event) {
	t.Helper()

	repo := newFakeRepo()
	seedRepo(repo)

	fx := fixtures.NewLoader()
	if err := fx.LoadEmbedded(); err != nil {
		t.Fatalf("LoadEmbedded failed: %v", err)
	}

	dispatcher := telemetry.NewDispatcher(repo, 256)
	catalogSvc := catalog.NewService(repo, fx, dispatcher)

	sessions := &fakeSessions{tokens: make(map[string]string), states: make(map[string]string)}
	identity := auth.NewService(repo, sessions, dispatcher, config.AuthConfig{
		SessionTTL:      time.Hour,
		CallbackBaseURL: "http://localhost:8080",
	})

	server := NewServer(config.ServerConfig{Host: "127.0.0.1", Port: 0}, catalogSvc, identity, dispatcher, repo)

	events, unsubscribe := dispatcher.Subscribe()
	t.Cleanup(unsubscribe)

	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)
	return ts, repo, events
}

// collectEvents drains whatever the handlers have already emitted,
// grouped by event type.
func collectEvents(events <-chan models.Event) map[string][]models.Event {
	byType := make(map[string][]models.Event)
	for {
		select {
		case ev := <-events:
			byType[ev.Type] = append(byType[ev.Type], ev)
		default:
			return byType
		}
	}
}

type testEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func doRequest(t *testing.T, method, url, token string, body interface{}) (int, testEnvelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var env testEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("failed to decode envelope: %v", err)
	}
	return resp.StatusCode, env
}

func signUp(t *testing.T, ts *httptest.Server, email string) (string, string) {
	t.Helper()

	status, env := doRequest(t, "POST", ts.URL+"/api/v1/auth/signup", "", models.SignUpRequest{
		Email:    email,
		Password: "long-enough-password",
	})
	if status != http.StatusCreated {
		t.Fatalf("signup returned %d", status)
	}

	var resp models.AuthResponse
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatal(err)
	}
	return resp.Token, resp.User.ID
}

func TestHealthEndpoints(t *testing.T) {
	ts, _ := newTestServer(t)

	status, env := doRequest(t, "GET", ts.URL+"/health", "", nil)
	if status != http.StatusOK || !env.Success {
		t.Errorf("health returned %d success=%v", status, env.Success)
	}

	status, env = doRequest(t, "GET", ts.URL+"/ready", "", nil)
	if status != http.StatusOK || !env.Success {
		t.Errorf("ready returned %d success=%v", status, env.Success)
	}
}

func TestListUseCases(t *testing.T) {
	ts, _ := newTestServer(t)

	status, env := doRequest(t, "GET", ts.URL+"/api/v1/use-cases", "", nil)
	if status != http.StatusOK {
		t.Fatalf("list returned %d", status)
	}

	var data struct {
		UseCases []*models.UseCase `json:"use_cases"`
		Total    int               `json:"total"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatal(err)
	}
	if data.Total != 3 {
		t.Errorf("expected 3 use cases, got %d", data.Total)
	}
	if data.UseCases[0].ID != "email-automation" {
		t.Errorf("expected popularity ordering, got %s first", data.UseCases[0].ID)
	}

	// Free-text query
	status, env = doRequest(t, "GET", ts.URL+"/api/v1/use-cases?q=chatbot", "", nil)
	if status != http.StatusOK {
		t.Fatalf("query returned %d", status)
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatal(err)
	}
	if data.Total != 1 || data.UseCases[0].ID != "support-chatbot" {
		t.Errorf("query filter failed: %+v", data)
	}

	// Category selector plus difficulty set
	status, env = doRequest(t, "GET", ts.URL+"/api/v1/use-cases?category=business-automation&difficulties=beginner", "", nil)
	if status != http.StatusOK {
		t.Fatalf("filter returned %d", status)
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatal(err)
	}
	if data.Total != 2 {
		t.Errorf("expected 2 results, got %d", data.Total)
	}
}

func TestListUseCasesFixtureFallback(t *testing.T) {
	ts, repo := newTestServer(t)
	repo.catalogDown = true

	status, env := doRequest(t, "GET", ts.URL+"/api/v1/use-cases", "", nil)
	if status != http.StatusOK {
		t.Fatalf("list returned %d with store down", status)
	}

	var data struct {
		UseCases []*models.UseCase `json:"use_cases"`
		Total    int               `json:"total"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatal(err)
	}
	if data.Total != 5 {
		t.Errorf("expected 5 fixture records, got %d", data.Total)
	}
}

func TestSearchEventCountsFullResultSet(t *testing.T) {
	ts, _, events := newTestServerWithEvents(t)

	// All 3 seeded titles contain an "e"; the limit truncates the page but
	// must not change the reported result count
	status, env := doRequest(t, "GET", ts.URL+"/api/v1/use-cases?q=e&limit=1", "", nil)
	if status != http.StatusOK {
		t.Fatalf("list returned %d", status)
	}
	var data struct {
		UseCases []*models.UseCase `json:"use_cases"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatal(err)
	}
	if len(data.UseCases) != 1 {
		t.Fatalf("limit not applied, got %d records", len(data.UseCases))
	}

	searches := collectEvents(events)[models.EventSearchPerformed]
	if len(searches) != 1 {
		t.Fatalf("expected one search_performed event, got %+v", searches)
	}
	if count, ok := searches[0].Payload["results_count"].(int); !ok || count != 3 {
		t.Errorf("expected results_count 3 before limit, got %+v", searches[0].Payload)
	}

	status, _ = doRequest(t, "GET", ts.URL+"/api/v1/use-cases?categories=business-automation&limit=1", "", nil)
	if status != http.StatusOK {
		t.Fatalf("filtered list returned %d", status)
	}
	filtered := collectEvents(events)[models.EventFiltersApplied]
	if len(filtered) != 1 {
		t.Fatalf("expected one filters_applied event, got %+v", filtered)
	}
	if count, ok := filtered[0].Payload["results_count"].(int); !ok || count != 2 {
		t.Errorf("expected results_count 2 before limit, got %+v", filtered[0].Payload)
	}
}

func TestGetUseCaseNotFound(t *testing.T) {
	ts, _ := newTestServer(t)

	status, env := doRequest(t, "GET", ts.URL+"/api/v1/use-cases/nope", "", nil)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
	if env.Success || env.Error == nil || env.Error.Code != "not_found" {
		t.Errorf("unexpected error envelope: %+v", env)
	}
}

func TestFeaturedEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	status, env := doRequest(t, "GET", ts.URL+"/api/v1/use-cases/featured", "", nil)
	if status != http.StatusOK {
		t.Fatalf("featured returned %d", status)
	}

	var data struct {
		UseCases []*models.UseCase `json:"use_cases"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatal(err)
	}
	if len(data.UseCases) != 2 {
		t.Fatalf("expected 2 featured records, got %d", len(data.UseCases))
	}
	for _, uc := range data.UseCases {
		if !uc.Featured {
			t.Errorf("non-featured record %s in featured response", uc.ID)
		}
	}
}

func TestMCPServersEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	status, env := doRequest(t, "GET", ts.URL+"/api/v1/mcp-servers?official=true", "", nil)
	if status != http.StatusOK {
		t.Fatalf("mcp-servers returned %d", status)
	}

	var data struct {
		MCPServers []*models.MCPServer `json:"mcp_servers"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatal(err)
	}
	if len(data.MCPServers) != 1 || data.MCPServers[0].ID != "mcp-filesystem" {
		t.Errorf("official filter failed: %+v", data.MCPServers)
	}
}

func TestGetMCPServer(t *testing.T) {
	ts, _, events := newTestServerWithEvents(t)

	status, env := doRequest(t, "GET", ts.URL+"/api/v1/mcp-servers/mcp-filesystem", "", nil)
	if status != http.StatusOK {
		t.Fatalf("get mcp server returned %d", status)
	}

	var server models.MCPServer
	if err := json.Unmarshal(env.Data, &server); err != nil {
		t.Fatal(err)
	}
	if server.ID != "mcp-filesystem" || !server.Official {
		t.Errorf("unexpected server: %+v", server)
	}

	viewed := collectEvents(events)[models.EventMCPServerViewed]
	if len(viewed) != 1 || viewed[0].ServerID != "mcp-filesystem" {
		t.Errorf("expected one mcp_server_viewed event, got %+v", viewed)
	}

	status, env = doRequest(t, "GET", ts.URL+"/api/v1/mcp-servers/mcp-missing", "", nil)
	if status != http.StatusNotFound || env.Error == nil || env.Error.Code != "not_found" {
		t.Errorf("expected not_found for unknown server, got %d %+v", status, env.Error)
	}
	if leftover := collectEvents(events)[models.EventMCPServerViewed]; len(leftover) != 0 {
		t.Errorf("missing server should not be tracked as viewed: %+v", leftover)
	}
}

func TestGenerateMCPConfig(t *testing.T) {
	ts, _, events := newTestServerWithEvents(t)

	status, env := doRequest(t, "POST", ts.URL+"/api/v1/mcp-servers/config", "",
		map[string]interface{}{"server_ids": []string{"mcp-filesystem", "mcp-community", "mcp-missing"}})
	if status != http.StatusOK {
		t.Fatalf("generate config returned %d", status)
	}

	var doc struct {
		MCPServers map[string]map[string]interface{} `json:"mcpServers"`
	}
	if err := json.Unmarshal(env.Data, &doc); err != nil {
		t.Fatal(err)
	}
	// Unknown ids are skipped rather than failing the document
	if len(doc.MCPServers) != 2 {
		t.Fatalf("expected 2 config entries, got %+v", doc.MCPServers)
	}
	if doc.MCPServers["Filesystem"]["command"] != "npx" {
		t.Errorf("config example not used: %+v", doc.MCPServers["Filesystem"])
	}
	// A server without a config example falls back to its install command
	if doc.MCPServers["Community Server"]["command"] != "npx community-server" {
		t.Errorf("install command fallback failed: %+v", doc.MCPServers["Community Server"])
	}

	generated := collectEvents(events)[models.EventMCPConfigGenerated]
	if len(generated) != 1 {
		t.Fatalf("expected one mcp_config_generated event, got %+v", generated)
	}
	if count, ok := generated[0].Payload["server_count"].(int); !ok || count != 3 {
		t.Errorf("unexpected server_count payload: %+v", generated[0].Payload)
	}

	status, env = doRequest(t, "POST", ts.URL+"/api/v1/mcp-servers/config", "",
		map[string]interface{}{"server_ids": []string{}})
	if status != http.StatusBadRequest || env.Error == nil || env.Error.Code != "validation_error" {
		t.Errorf("expected validation_error for empty selection, got %d %+v", status, env.Error)
	}
}

func TestDownloadMCPConfig(t *testing.T) {
	ts, _, events := newTestServerWithEvents(t)

	body, err := json.Marshal(map[string]interface{}{"server_ids": []string{"mcp-filesystem"}})
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(ts.URL+"/api/v1/mcp-servers/config?download=true", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("download returned %d", resp.StatusCode)
	}
	disposition := resp.Header.Get("Content-Disposition")
	if !strings.Contains(disposition, "claude_desktop_config.json") {
		t.Errorf("unexpected disposition %q", disposition)
	}

	var doc struct {
		MCPServers map[string]map[string]interface{} `json:"mcpServers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		t.Fatal(err)
	}
	if len(doc.MCPServers) != 1 {
		t.Errorf("unexpected document: %+v", doc.MCPServers)
	}

	byType := collectEvents(events)
	if len(byType[models.EventMCPConfigGenerated]) != 1 {
		t.Errorf("expected mcp_config_generated, got %+v", byType[models.EventMCPConfigGenerated])
	}
	downloaded := byType[models.EventMCPConfigDownloaded]
	if len(downloaded) != 1 || downloaded[0].Payload["config_type"] != "claude_desktop" {
		t.Errorf("expected one mcp_config_downloaded event, got %+v", downloaded)
	}
}

func TestUserRecordsRequireAuth(t *testing.T) {
	ts, _ := newTestServer(t)

	status, _ := doRequest(t, "GET", ts.URL+"/api/v1/me/bookmarks", "", nil)
	if status != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", status)
	}

	status, _ = doRequest(t, "GET", ts.URL+"/api/v1/me/bookmarks", "bogus-token", nil)
	if status != http.StatusUnauthorized {
		t.Errorf("expected 401 with bogus token, got %d", status)
	}
}

func TestBookmarkLifecycle(t *testing.T) {
	ts, _ := newTestServer(t)
	token, _ := signUp(t, ts, "reader@example.com")

	status, _ := doRequest(t, "POST", ts.URL+"/api/v1/me/bookmarks", token,
		map[string]string{"use_case_id": "support-chatbot"})
	if status != http.StatusCreated {
		t.Fatalf("add bookmark returned %d", status)
	}

	status, env := doRequest(t, "GET", ts.URL+"/api/v1/me/bookmarks", token, nil)
	if status != http.StatusOK {
		t.Fatalf("list bookmarks returned %d", status)
	}
	var data struct {
		UseCaseIDs []string `json:"use_case_ids"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatal(err)
	}
	if len(data.UseCaseIDs) != 1 || data.UseCaseIDs[0] != "support-chatbot" {
		t.Errorf("unexpected bookmarks: %v", data.UseCaseIDs)
	}

	status, _ = doRequest(t, "DELETE", ts.URL+"/api/v1/me/bookmarks/support-chatbot", token, nil)
	if status != http.StatusOK {
		t.Fatalf("remove bookmark returned %d", status)
	}

	// Removing again is idempotent
	status, _ = doRequest(t, "DELETE", ts.URL+"/api/v1/me/bookmarks/support-chatbot", token, nil)
	if status != http.StatusOK {
		t.Errorf("repeat removal returned %d", status)
	}
}

func TestProgressLifecycle(t *testing.T) {
	ts, _ := newTestServer(t)
	token, _ := signUp(t, ts, "builder@example.com")

	status, _ := doRequest(t, "POST", ts.URL+"/api/v1/me/progress", token,
		map[string]string{"use_case_id": "support-chatbot", "step_id": "step-1"})
	if status != http.StatusCreated {
		t.Fatalf("mark step returned %d", status)
	}

	status, env := doRequest(t, "GET", ts.URL+"/api/v1/me/progress?use_case_id=support-chatbot", token, nil)
	if status != http.StatusOK {
		t.Fatalf("list progress returned %d", status)
	}
	var data struct {
		StepIDs []string `json:"step_ids"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatal(err)
	}
	if len(data.StepIDs) != 1 || data.StepIDs[0] != "step-1" {
		t.Errorf("unexpected progress: %v", data.StepIDs)
	}

	status, _ = doRequest(t, "DELETE", ts.URL+"/api/v1/me/progress/step-1", token, nil)
	if status != http.StatusOK {
		t.Fatalf("unmark step returned %d", status)
	}
}

func TestImplementationStartTracking(t *testing.T) {
	ts, _, events := newTestServerWithEvents(t)
	token, _ := signUp(t, ts, "starter@example.com")

	mark := func(useCaseID, stepID string) {
		t.Helper()
		status, _ := doRequest(t, "POST", ts.URL+"/api/v1/me/progress", token,
			map[string]string{"use_case_id": useCaseID, "step_id": stepID})
		if status != http.StatusCreated {
			t.Fatalf("mark step returned %d", status)
		}
	}

	// The first step of a use case starts its implementation
	mark("support-chatbot", "step-1")
	byType := collectEvents(events)
	started := byType[models.EventImplementationStart]
	if len(started) != 1 || started[0].UseCaseID != "support-chatbot" {
		t.Fatalf("expected implementation_started for support-chatbot, got %+v", started)
	}
	if len(byType[models.EventStepCompleted]) != 1 {
		t.Errorf("expected step_completed event, got %+v", byType[models.EventStepCompleted])
	}

	// Further steps of the same use case do not
	mark("support-chatbot", "step-2")
	byType = collectEvents(events)
	if len(byType[models.EventImplementationStart]) != 0 {
		t.Errorf("second step should not restart implementation: %+v", byType[models.EventImplementationStart])
	}
	if len(byType[models.EventStepCompleted]) != 1 {
		t.Errorf("expected step_completed event, got %+v", byType[models.EventStepCompleted])
	}

	// A different use case starts its own implementation
	mark("email-automation", "step-1")
	started = collectEvents(events)[models.EventImplementationStart]
	if len(started) != 1 || started[0].UseCaseID != "email-automation" {
		t.Errorf("expected implementation_started for email-automation, got %+v", started)
	}
}

func TestAdminAuthorization(t *testing.T) {
	ts, repo := newTestServer(t)
	token, userID := signUp(t, ts, "plain@example.com")

	status, env := doRequest(t, "GET", ts.URL+"/api/v1/admin/stats", token, nil)
	if status != http.StatusForbidden {
		t.Fatalf("expected 403 for member, got %d", status)
	}
	if env.Error == nil || env.Error.Code != "forbidden" {
		t.Errorf("unexpected error envelope: %+v", env)
	}

	repo.mu.Lock()
	repo.users[userID].Role = models.RoleAdmin
	repo.mu.Unlock()

	status, env = doRequest(t, "GET", ts.URL+"/api/v1/admin/stats", token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d", status)
	}

	var stats models.AdminStats
	if err := json.Unmarshal(env.Data, &stats); err != nil {
		t.Fatal(err)
	}
	if stats.TotalUseCases != 3 {
		t.Errorf("expected 3 use cases in stats, got %d", stats.TotalUseCases)
	}
}

func TestAdminUseCaseCRUD(t *testing.T) {
	ts, repo := newTestServer(t)
	token, userID := signUp(t, ts, "ops@example.com")
	repo.mu.Lock()
	repo.users[userID].Role = models.RoleAdmin
	repo.mu.Unlock()

	// Validation failures are rejected before touching the store
	status, env := doRequest(t, "POST", ts.URL+"/api/v1/admin/use-cases", token,
		models.UpsertUseCaseRequest{Category: "development"})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing title, got %d", status)
	}

	status, env = doRequest(t, "POST", ts.URL+"/api/v1/admin/use-cases", token,
		models.UpsertUseCaseRequest{Title: "X", Category: "development", Difficulty: "impossible"})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown difficulty, got %d", status)
	}

	status, env = doRequest(t, "POST", ts.URL+"/api/v1/admin/use-cases", token,
		models.UpsertUseCaseRequest{
			Title:      "Log Anomaly Triage",
			Category:   "development",
			Difficulty: models.DifficultyAdvanced,
			Popularity: 10,
		})
	if status != http.StatusCreated {
		t.Fatalf("create returned %d", status)
	}

	var created models.UseCase
	if err := json.Unmarshal(env.Data, &created); err != nil {
		t.Fatal(err)
	}
	if created.ID == "" {
		t.Fatal("expected server-assigned ID")
	}

	// Feature toggle
	status, env = doRequest(t, "POST", ts.URL+"/api/v1/admin/use-cases/"+created.ID+"/feature", token,
		map[string]bool{"featured": true})
	if status != http.StatusOK {
		t.Fatalf("feature toggle returned %d", status)
	}
	var toggled models.FeatureToggleResponse
	if err := json.Unmarshal(env.Data, &toggled); err != nil {
		t.Fatal(err)
	}
	if !toggled.Featured {
		t.Error("expected featured=true in response")
	}

	// Update of a missing record is a 404
	status, _ = doRequest(t, "PUT", ts.URL+"/api/v1/admin/use-cases/ghost", token,
		models.UpsertUseCaseRequest{Title: "Ghost", Category: "development"})
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 updating missing record, got %d", status)
	}

	// Delete
	status, _ = doRequest(t, "DELETE", ts.URL+"/api/v1/admin/use-cases/"+created.ID, token, nil)
	if status != http.StatusOK {
		t.Fatalf("delete returned %d", status)
	}
	status, _ = doRequest(t, "DELETE", ts.URL+"/api/v1/admin/use-cases/"+created.ID, token, nil)
	if status != http.StatusNotFound {
		t.Errorf("expected 404 deleting twice, got %d", status)
	}
}

func TestSessionEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)
	token, _ := signUp(t, ts, "whoami@example.com")

	status, env := doRequest(t, "GET", ts.URL+"/api/v1/auth/session", token, nil)
	if status != http.StatusOK {
		t.Fatalf("session returned %d", status)
	}

	var user models.User
	if err := json.Unmarshal(env.Data, &user); err != nil {
		t.Fatal(err)
	}
	if user.Email != "whoami@example.com" {
		t.Errorf("unexpected session user: %s", user.Email)
	}

	// Sign out invalidates the token
	status, _ = doRequest(t, "POST", ts.URL+"/api/v1/auth/signout", token, nil)
	if status != http.StatusOK {
		t.Fatalf("signout returned %d", status)
	}
	status, _ = doRequest(t, "GET", ts.URL+"/api/v1/auth/session", token, nil)
	if status != http.StatusUnauthorized {
		t.Errorf("expected 401 after signout, got %d", status)
	}
}
