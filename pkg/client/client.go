package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/usecasehub/usecase-hub/internal/models"
)

// Client is a Go SDK for the usecase-hub API
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithToken sets the bearer session token for authenticated calls
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// NewClient creates a new usecase-hub client
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// SetToken replaces the bearer token, typically after SignIn
func (c *Client) SetToken(token string) {
	c.token = token
}

// ListOptions contains options for listing use cases
type ListOptions struct {
	Query        string
	Category     string
	Categories   []string
	Difficulties []string
	Industries   []string
	UserRoles    []string
	Featured     bool
	Limit        int
}

// SignUp registers a new account. The session token is retained for
// subsequent calls.
func (c *Client) SignUp(ctx context.Context, req models.SignUpRequest) (*models.AuthResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.doRequest(ctx, "POST", "/api/v1/auth/signup", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var auth models.AuthResponse
	if err := decodeEnvelope(resp, &auth); err != nil {
		return nil, err
	}

	c.token = auth.Token
	return &auth, nil
}

// SignIn authenticates credentials. The session token is retained for
// subsequent calls.
func (c *Client) SignIn(ctx context.Context, req models.SignInRequest) (*models.AuthResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.doRequest(ctx, "POST", "/api/v1/auth/signin", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var auth models.AuthResponse
	if err := decodeEnvelope(resp, &auth); err != nil {
		return nil, err
	}

	c.token = auth.Token
	return &auth, nil
}

// SignOut ends the current session and clears the retained token
func (c *Client) SignOut(ctx context.Context) error {
	resp, err := c.doRequest(ctx, "POST", "/api/v1/auth/signout", nil)
	if err != nil {
		return err
	}

	if err := decodeEnvelope(resp, nil); err != nil {
		return err
	}

	c.token = ""
	return nil
}

// Session returns the user bound to the current token
func (c *Client) Session(ctx context.Context) (*models.User, error) {
	resp, err := c.doRequest(ctx, "GET", "/api/v1/auth/session", nil)
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := decodeEnvelope(resp, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListUseCases retrieves the catalog entries matching the options
func (c *Client) ListUseCases(ctx context.Context, opts ListOptions) ([]*models.UseCase, error) {
	params := url.Values{}
	if opts.Query != "" {
		params.Set("q", opts.Query)
	}
	if opts.Category != "" {
		params.Set("category", opts.Category)
	}
	if len(opts.Categories) > 0 {
		params.Set("categories", strings.Join(opts.Categories, ","))
	}
	if len(opts.Difficulties) > 0 {
		params.Set("difficulties", strings.Join(opts.Difficulties, ","))
	}
	if len(opts.Industries) > 0 {
		params.Set("industries", strings.Join(opts.Industries, ","))
	}
	if len(opts.UserRoles) > 0 {
		params.Set("roles", strings.Join(opts.UserRoles, ","))
	}
	if opts.Featured {
		params.Set("featured", "true")
	}
	if opts.Limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", opts.Limit))
	}

	path := "/api/v1/use-cases"
	if encoded := params.Encode(); encoded != "" {
		path += "?" + encoded
	}

	resp, err := c.doRequest(ctx, "GET", path, nil)
	if err != nil {
		return nil, err
	}

	var data struct {
		UseCases []*models.UseCase `json:"use_cases"`
		Total    int               `json:"total"`
	}
	if err := decodeEnvelope(resp, &data); err != nil {
		return nil, err
	}
	return data.UseCases, nil
}

// GetUseCase retrieves one use case with full nested relations
func (c *Client) GetUseCase(ctx context.Context, id string) (*models.UseCase, error) {
	resp, err := c.doRequest(ctx, "GET", "/api/v1/use-cases/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}

	var uc models.UseCase
	if err := decodeEnvelope(resp, &uc); err != nil {
		return nil, err
	}
	return &uc, nil
}

// FeaturedUseCases retrieves the featured subset
func (c *Client) FeaturedUseCases(ctx context.Context) ([]*models.UseCase, error) {
	resp, err := c.doRequest(ctx, "GET", "/api/v1/use-cases/featured", nil)
	if err != nil {
		return nil, err
	}

	var data struct {
		UseCases []*models.UseCase `json:"use_cases"`
		Total    int               `json:"total"`
	}
	if err := decodeEnvelope(resp, &data); err != nil {
		return nil, err
	}
	return data.UseCases, nil
}

// ListCategories retrieves the category table
func (c *Client) ListCategories(ctx context.Context) ([]*models.Category, error) {
	resp, err := c.doRequest(ctx, "GET", "/api/v1/categories", nil)
	if err != nil {
		return nil, err
	}

	var data struct {
		Categories []*models.Category `json:"categories"`
		Total      int                `json:"total"`
	}
	if err := decodeEnvelope(resp, &data); err != nil {
		return nil, err
	}
	return data.Categories, nil
}

// ListMCPServers retrieves MCP server records, optionally filtered
func (c *Client) ListMCPServers(ctx context.Context, category string, officialOnly bool) ([]*models.MCPServer, error) {
	params := url.Values{}
	if category != "" {
		params.Set("category", category)
	}
	if officialOnly {
		params.Set("official", "true")
	}

	path := "/api/v1/mcp-servers"
	if encoded := params.Encode(); encoded != "" {
		path += "?" + encoded
	}

	resp, err := c.doRequest(ctx, "GET", path, nil)
	if err != nil {
		return nil, err
	}

	var data struct {
		MCPServers []*models.MCPServer `json:"mcp_servers"`
		Total      int                 `json:"total"`
	}
	if err := decodeEnvelope(resp, &data); err != nil {
		return nil, err
	}
	return data.MCPServers, nil
}

// MCPServer retrieves a single MCP server record
func (c *Client) MCPServer(ctx context.Context, id string) (*models.MCPServer, error) {
	resp, err := c.doRequest(ctx, "GET", "/api/v1/mcp-servers/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}

	var server models.MCPServer
	if err := decodeEnvelope(resp, &server); err != nil {
		return nil, err
	}
	return &server, nil
}

// GenerateMCPConfig assembles a client configuration document from the
// given server selection
func (c *Client) GenerateMCPConfig(ctx context.Context, serverIDs []string) (map[string]interface{}, error) {
	body, err := json.Marshal(map[string]interface{}{"server_ids": serverIDs})
	if err != nil {
		return nil, err
	}

	resp, err := c.doRequest(ctx, "POST", "/api/v1/mcp-servers/config", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var data map[string]interface{}
	if err := decodeEnvelope(resp, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// Bookmarks retrieves the IDs of the caller's saved use cases
func (c *Client) Bookmarks(ctx context.Context) ([]string, error) {
	resp, err := c.doRequest(ctx, "GET", "/api/v1/me/bookmarks", nil)
	if err != nil {
		return nil, err
	}

	var data struct {
		UseCaseIDs []string `json:"use_case_ids"`
		Total      int      `json:"total"`
	}
	if err := decodeEnvelope(resp, &data); err != nil {
		return nil, err
	}
	return data.UseCaseIDs, nil
}

// AddBookmark saves a use case for the caller
func (c *Client) AddBookmark(ctx context.Context, useCaseID string) error {
	body, err := json.Marshal(map[string]string{"use_case_id": useCaseID})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.doRequest(ctx, "POST", "/api/v1/me/bookmarks", bytes.NewReader(body))
	if err != nil {
		return err
	}
	return decodeEnvelope(resp, nil)
}

// RemoveBookmark removes a saved use case
func (c *Client) RemoveBookmark(ctx context.Context, useCaseID string) error {
	resp, err := c.doRequest(ctx, "DELETE", "/api/v1/me/bookmarks/"+url.PathEscape(useCaseID), nil)
	if err != nil {
		return err
	}
	return decodeEnvelope(resp, nil)
}

// Progress retrieves the caller's completed step IDs, optionally scoped to
// one use case
func (c *Client) Progress(ctx context.Context, useCaseID string) ([]string, error) {
	path := "/api/v1/me/progress"
	if useCaseID != "" {
		path += "?use_case_id=" + url.QueryEscape(useCaseID)
	}

	resp, err := c.doRequest(ctx, "GET", path, nil)
	if err != nil {
		return nil, err
	}

	var data struct {
		StepIDs []string `json:"step_ids"`
		Total   int      `json:"total"`
	}
	if err := decodeEnvelope(resp, &data); err != nil {
		return nil, err
	}
	return data.StepIDs, nil
}

// MarkStep records an implementation step as completed
func (c *Client) MarkStep(ctx context.Context, useCaseID, stepID string) error {
	body, err := json.Marshal(map[string]string{
		"use_case_id": useCaseID,
		"step_id":     stepID,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.doRequest(ctx, "POST", "/api/v1/me/progress", bytes.NewReader(body))
	if err != nil {
		return err
	}
	return decodeEnvelope(resp, nil)
}

// UnmarkStep removes a completed step record
func (c *Client) UnmarkStep(ctx context.Context, stepID string) error {
	resp, err := c.doRequest(ctx, "DELETE", "/api/v1/me/progress/"+url.PathEscape(stepID), nil)
	if err != nil {
		return err
	}
	return decodeEnvelope(resp, nil)
}

// Health checks if the service is healthy
func (c *Client) Health(ctx context.Context) error {
	_, err := c.doRequest(ctx, "GET", "/health", nil)
	return err
}

// decodeEnvelope unpacks the standard response envelope into out. Pass nil
// when only the success flag matters.
func decodeEnvelope(resp []byte, out interface{}) error {
	var result struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.Unmarshal(resp, &result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !result.Success {
		if result.Error != nil {
			return fmt.Errorf("API error: %s - %s", result.Error.Code, result.Error.Message)
		}
		return fmt.Errorf("API error: request failed")
	}

	if out != nil && len(result.Data) > 0 {
		if err := json.Unmarshal(result.Data, out); err != nil {
			return fmt.Errorf("failed to unmarshal response data: %w", err)
		}
	}

	return nil
}

// doRequest performs an HTTP request
func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}
