package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/usecasehub/usecase-hub/internal/models"
)

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int32
	MaxIdleConns int32
	MaxLifetime  time.Duration
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(ctx context.Context, cfg PostgresConfig) (*PostgresRepository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = cfg.MaxOpenConns
	} else {
		poolConfig.MaxConns = 25
	}

	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = cfg.MaxIdleConns
	} else {
		poolConfig.MinConns = 5
	}

	if cfg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxLifetime
	} else {
		poolConfig.MaxConnLifetime = 30 * time.Minute
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

// Ping checks database connectivity
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the database connection pool
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

const useCaseColumns = `id, title, description, category_slug, difficulty, time_to_implement,
	roi_expected, estimated_cost, is_featured, popularity, tags, industries, user_roles, updated_at`

// ListUseCases returns use cases matching the store-side filter, ordered by
// descending popularity, with tools and steps expanded
func (r *PostgresRepository) ListUseCases(ctx context.Context, filter models.StoreFilter) ([]*models.UseCase, error) {
	query := `SELECT ` + useCaseColumns + ` FROM use_cases WHERE 1=1`
	args := make([]interface{}, 0)
	argNum := 1

	if filter.Category != "" {
		query += fmt.Sprintf(" AND category_slug = $%d", argNum)
		args = append(args, filter.Category)
		argNum++
	}

	if filter.Difficulty != "" {
		query += fmt.Sprintf(" AND difficulty = $%d", argNum)
		args = append(args, filter.Difficulty)
		argNum++
	}

	if filter.Featured != nil {
		query += fmt.Sprintf(" AND is_featured = $%d", argNum)
		args = append(args, *filter.Featured)
		argNum++
	}

	if filter.Search != "" {
		query += fmt.Sprintf(" AND (title ILIKE $%d OR description ILIKE $%d)", argNum, argNum)
		args = append(args, "%"+filter.Search+"%")
		argNum++
	}

	query += " ORDER BY popularity DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, filter.Limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list use cases: %w", err)
	}
	defer rows.Close()

	var useCases []*models.UseCase

	for rows.Next() {
		uc, err := scanUseCase(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan use case: %w", err)
		}
		useCases = append(useCases, uc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating use cases: %w", err)
	}

	for _, uc := range useCases {
		if err := r.expandRelations(ctx, uc, false); err != nil {
			return nil, err
		}
	}

	return useCases, nil
}

// GetUseCase retrieves a use case by ID with full nested relations,
// including MCP server records on tools. Returns nil when not found.
func (r *PostgresRepository) GetUseCase(ctx context.Context, id string) (*models.UseCase, error) {
	row, err := r.pool.Query(ctx, `SELECT `+useCaseColumns+` FROM use_cases WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get use case: %w", err)
	}
	defer row.Close()

	if !row.Next() {
		if err := row.Err(); err != nil {
			return nil, fmt.Errorf("failed to get use case: %w", err)
		}
		return nil, nil // Not found
	}

	uc, err := scanUseCase(row)
	if err != nil {
		return nil, fmt.Errorf("failed to scan use case: %w", err)
	}
	row.Close()

	if err := r.expandRelations(ctx, uc, true); err != nil {
		return nil, err
	}

	return uc, nil
}

// scanUseCase maps one use_cases row into the typed record. Enum-like
// columns are carried as-is; values outside the known sets simply fail
// set-membership in the filter engine downstream.
func scanUseCase(rows pgx.Rows) (*models.UseCase, error) {
	var uc models.UseCase
	var difficulty, cost string

	err := rows.Scan(
		&uc.ID,
		&uc.Title,
		&uc.Description,
		&uc.Category,
		&difficulty,
		&uc.TimeToImplement,
		&uc.ROIExpected,
		&cost,
		&uc.Featured,
		&uc.Popularity,
		&uc.Tags,
		&uc.Industries,
		&uc.UserRoles,
		&uc.LastUpdated,
	)
	if err != nil {
		return nil, err
	}

	uc.Difficulty = models.DifficultyLevel(difficulty)
	uc.EstimatedCost = models.CostRange(cost)
	return &uc, nil
}

// expandRelations loads tools and steps for a use case. Missing relation
// rows degrade to empty lists, never an error for the record itself.
func (r *PostgresRepository) expandRelations(ctx context.Context, uc *models.UseCase, withMCP bool) error {
	tools, err := r.getTools(ctx, uc.ID, withMCP)
	if err != nil {
		return fmt.Errorf("failed to get tools for use case %s: %w", uc.ID, err)
	}
	uc.Tools = tools

	steps, err := r.getSteps(ctx, uc.ID)
	if err != nil {
		return fmt.Errorf("failed to get steps for use case %s: %w", uc.ID, err)
	}
	uc.Steps = steps

	return nil
}

func (r *PostgresRepository) getTools(ctx context.Context, useCaseID string, withMCP bool) ([]models.Tool, error) {
	query := `
		SELECT t.id, t.name, t.description, t.website, t.pricing, t.category,
		       t.difficulty, t.features, t.integrations, t.mcp_server_id
		FROM tools t
		JOIN use_case_tools uct ON uct.tool_id = t.id
		WHERE uct.use_case_id = $1
		ORDER BY uct.position
	`

	rows, err := r.pool.Query(ctx, query, useCaseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tools []models.Tool
	var mcpIDs []sql.NullString

	for rows.Next() {
		var t models.Tool
		var difficulty string
		var mcpID sql.NullString

		err := rows.Scan(
			&t.ID,
			&t.Name,
			&t.Description,
			&t.Website,
			&t.Pricing,
			&t.Category,
			&difficulty,
			&t.Features,
			&t.Integrations,
			&mcpID,
		)
		if err != nil {
			return nil, err
		}

		t.Difficulty = models.DifficultyLevel(difficulty)
		tools = append(tools, t)
		mcpIDs = append(mcpIDs, mcpID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if withMCP {
		for i := range tools {
			if !mcpIDs[i].Valid {
				continue
			}
			server, err := r.getMCPServer(ctx, mcpIDs[i].String)
			if err != nil {
				return nil, err
			}
			// A dangling reference is treated as no server at all
			tools[i].MCPServer = server
		}
	}

	return tools, nil
}

func (r *PostgresRepository) getMCPServer(ctx context.Context, id string) (*models.MCPServer, error) {
	query := `
		SELECT id, name, description, repository, install_command, config_example,
		       capabilities, requirements, category, is_official, documentation_url, is_active
		FROM mcp_servers
		WHERE id = $1
	`

	var s models.MCPServer
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&s.ID,
		&s.Name,
		&s.Description,
		&s.Repository,
		&s.InstallCommand,
		&s.ConfigExample,
		&s.Capabilities,
		&s.Requirements,
		&s.Category,
		&s.Official,
		&s.DocumentationURL,
		&s.Active,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &s, nil
}

func (r *PostgresRepository) getSteps(ctx context.Context, useCaseID string) ([]models.Step, error) {
	query := `
		SELECT id, step_number, title, description, code, code_language,
		       duration, difficulty, prerequisites
		FROM implementation_steps
		WHERE use_case_id = $1
		ORDER BY step_number
	`

	rows, err := r.pool.Query(ctx, query, useCaseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []models.Step

	for rows.Next() {
		var s models.Step
		var code, codeLanguage sql.NullString
		var difficulty string

		err := rows.Scan(
			&s.ID,
			&s.StepNumber,
			&s.Title,
			&s.Description,
			&code,
			&codeLanguage,
			&s.Duration,
			&difficulty,
			&s.Prerequisites,
		)
		if err != nil {
			return nil, err
		}

		s.Code = code.String
		s.CodeLanguage = codeLanguage.String
		s.Difficulty = models.DifficultyLevel(difficulty)
		steps = append(steps, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range steps {
		resources, err := r.getStepResources(ctx, steps[i].ID)
		if err != nil {
			return nil, err
		}
		steps[i].Resources = resources
	}

	return steps, nil
}

func (r *PostgresRepository) getStepResources(ctx context.Context, stepID string) ([]models.StepResource, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT title, url, type FROM step_resources WHERE step_id = $1 ORDER BY id`, stepID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var resources []models.StepResource
	for rows.Next() {
		var res models.StepResource
		if err := rows.Scan(&res.Title, &res.URL, &res.Type); err != nil {
			return nil, err
		}
		resources = append(resources, res)
	}

	return resources, rows.Err()
}

// CreateUseCase inserts a new use case record with its steps
func (r *PostgresRepository) CreateUseCase(ctx context.Context, uc *models.UseCase) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO use_cases (id, title, description, category_slug, difficulty, time_to_implement,
			roi_expected, estimated_cost, is_featured, popularity, tags, industries, user_roles, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err = tx.Exec(ctx, query,
		uc.ID,
		uc.Title,
		uc.Description,
		uc.Category,
		string(uc.Difficulty),
		uc.TimeToImplement,
		uc.ROIExpected,
		string(uc.EstimatedCost),
		uc.Featured,
		uc.Popularity,
		uc.Tags,
		uc.Industries,
		uc.UserRoles,
		uc.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("failed to create use case: %w", err)
	}

	if err := insertSteps(ctx, tx, uc.ID, uc.Steps); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// UpdateUseCase replaces an existing use case record and its steps
func (r *PostgresRepository) UpdateUseCase(ctx context.Context, uc *models.UseCase) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE use_cases
		SET title = $2, description = $3, category_slug = $4, difficulty = $5,
		    time_to_implement = $6, roi_expected = $7, estimated_cost = $8,
		    is_featured = $9, popularity = $10, tags = $11, industries = $12,
		    user_roles = $13, updated_at = NOW()
		WHERE id = $1
	`

	result, err := tx.Exec(ctx, query,
		uc.ID,
		uc.Title,
		uc.Description,
		uc.Category,
		string(uc.Difficulty),
		uc.TimeToImplement,
		uc.ROIExpected,
		string(uc.EstimatedCost),
		uc.Featured,
		uc.Popularity,
		uc.Tags,
		uc.Industries,
		uc.UserRoles,
	)
	if err != nil {
		return fmt.Errorf("failed to update use case: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("use case %s: %w", uc.ID, ErrNotFound)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM implementation_steps WHERE use_case_id = $1`, uc.ID); err != nil {
		return fmt.Errorf("failed to replace steps: %w", err)
	}

	if err := insertSteps(ctx, tx, uc.ID, uc.Steps); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func insertSteps(ctx context.Context, tx pgx.Tx, useCaseID string, steps []models.Step) error {
	for _, s := range steps {
		_, err := tx.Exec(ctx, `
			INSERT INTO implementation_steps (id, use_case_id, step_number, title, description,
				code, code_language, duration, difficulty, prerequisites)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`,
			s.ID,
			useCaseID,
			s.StepNumber,
			s.Title,
			s.Description,
			nullString(s.Code),
			nullString(s.CodeLanguage),
			s.Duration,
			string(s.Difficulty),
			s.Prerequisites,
		)
		if err != nil {
			return fmt.Errorf("failed to insert step %d: %w", s.StepNumber, err)
		}

		for _, res := range s.Resources {
			_, err := tx.Exec(ctx,
				`INSERT INTO step_resources (step_id, title, url, type) VALUES ($1, $2, $3, $4)`,
				s.ID, res.Title, res.URL, res.Type)
			if err != nil {
				return fmt.Errorf("failed to insert step resource: %w", err)
			}
		}
	}

	return nil
}

// DeleteUseCase deletes a use case by ID
func (r *PostgresRepository) DeleteUseCase(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM use_cases WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete use case: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("use case %s: %w", id, ErrNotFound)
	}

	return nil
}

// SetFeatured flips the featured flag for a use case
func (r *PostgresRepository) SetFeatured(ctx context.Context, id string, featured bool) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE use_cases SET is_featured = $2, updated_at = NOW() WHERE id = $1`, id, featured)
	if err != nil {
		return fmt.Errorf("failed to set featured flag: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("use case %s: %w", id, ErrNotFound)
	}

	return nil
}

// ListCategories returns all categories ordered by name
func (r *PostgresRepository) ListCategories(ctx context.Context) ([]*models.Category, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, slug, COALESCE(icon, ''), COALESCE(color, '') FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var categories []*models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.Icon, &c.Color); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, &c)
	}

	return categories, rows.Err()
}

// ListMCPServers returns active MCP servers, official first then by name
// GetMCPServer returns a single server by ID, or nil when no row matches
func (r *PostgresRepository) GetMCPServer(ctx context.Context, id string) (*models.MCPServer, error) {
	return r.getMCPServer(ctx, id)
}

func (r *PostgresRepository) ListMCPServers(ctx context.Context, category string, officialOnly bool) ([]*models.MCPServer, error) {
	query := `
		SELECT id, name, description, repository, install_command, config_example,
		       capabilities, requirements, category, is_official, documentation_url, is_active
		FROM mcp_servers
		WHERE is_active = TRUE
	`
	args := make([]interface{}, 0)
	argNum := 1

	if category != "" {
		query += fmt.Sprintf(" AND category = $%d", argNum)
		args = append(args, category)
		argNum++
	}

	if officialOnly {
		query += " AND is_official = TRUE"
	}

	query += " ORDER BY is_official DESC, name"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list mcp servers: %w", err)
	}
	defer rows.Close()

	var servers []*models.MCPServer
	for rows.Next() {
		var s models.MCPServer
		err := rows.Scan(
			&s.ID,
			&s.Name,
			&s.Description,
			&s.Repository,
			&s.InstallCommand,
			&s.ConfigExample,
			&s.Capabilities,
			&s.Requirements,
			&s.Category,
			&s.Official,
			&s.DocumentationURL,
			&s.Active,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mcp server: %w", err)
		}
		servers = append(servers, &s)
	}

	return servers, rows.Err()
}

// --- Users ---

// CreateUser inserts a new user record
func (r *PostgresRepository) CreateUser(ctx context.Context, u *models.User) error {
	query := `
		INSERT INTO users (id, email, name, role, password_hash, provider, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		u.ID,
		u.Email,
		u.Name,
		u.Role,
		nullString(u.PasswordHash),
		nullString(u.Provider),
		u.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetUserByEmail retrieves a user by email. Returns nil when not found.
func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getUser(ctx, "email", email)
}

// GetUserByID retrieves a user by ID. Returns nil when not found.
func (r *PostgresRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return r.getUser(ctx, "id", id)
}

func (r *PostgresRepository) getUser(ctx context.Context, field, value string) (*models.User, error) {
	query := fmt.Sprintf(`
		SELECT id, email, name, role, password_hash, provider, created_at, last_seen_at
		FROM users
		WHERE %s = $1
	`, field)

	var u models.User
	var passwordHash, provider sql.NullString
	var lastSeenAt sql.NullTime

	err := r.pool.QueryRow(ctx, query, value).Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&u.Role,
		&passwordHash,
		&provider,
		&u.CreatedAt,
		&lastSeenAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	u.PasswordHash = passwordHash.String
	u.Provider = provider.String
	if lastSeenAt.Valid {
		u.LastSeenAt = &lastSeenAt.Time
	}

	return &u, nil
}

// UpdateUser updates mutable user fields
func (r *PostgresRepository) UpdateUser(ctx context.Context, u *models.User) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE users SET name = $2, role = $3 WHERE id = $1`, u.ID, u.Name, u.Role)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", u.ID, ErrNotFound)
	}

	return nil
}

// TouchUserLastSeen updates the last_seen_at timestamp for a user
func (r *PostgresRepository) TouchUserLastSeen(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET last_seen_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to update last_seen_at: %w", err)
	}
	return nil
}

// --- Bookmarks ---

// ListBookmarks returns the use case IDs bookmarked by a user
func (r *PostgresRepository) ListBookmarks(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT use_case_id FROM user_bookmarks WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookmarks: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan bookmark: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// AddBookmark records a bookmark; adding an existing bookmark is a no-op
func (r *PostgresRepository) AddBookmark(ctx context.Context, userID, useCaseID string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_bookmarks (user_id, use_case_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, use_case_id) DO NOTHING
	`, userID, useCaseID)
	if err != nil {
		return fmt.Errorf("failed to add bookmark: %w", err)
	}
	return nil
}

// RemoveBookmark deletes a bookmark
func (r *PostgresRepository) RemoveBookmark(ctx context.Context, userID, useCaseID string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM user_bookmarks WHERE user_id = $1 AND use_case_id = $2`, userID, useCaseID)
	if err != nil {
		return fmt.Errorf("failed to remove bookmark: %w", err)
	}
	return nil
}

// --- Progress ---

// ListProgress returns completed step IDs for a user within one use case
func (r *PostgresRepository) ListProgress(ctx context.Context, userID, useCaseID string) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT step_id FROM user_progress WHERE user_id = $1 AND use_case_id = $2`, userID, useCaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan progress entry: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// MarkStepComplete records step completion; repeating it is a no-op
func (r *PostgresRepository) MarkStepComplete(ctx context.Context, userID, useCaseID, stepID string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_progress (user_id, use_case_id, step_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, step_id) DO NOTHING
	`, userID, useCaseID, stepID)
	if err != nil {
		return fmt.Errorf("failed to mark step complete: %w", err)
	}
	return nil
}

// UnmarkStepComplete removes a step completion record
func (r *PostgresRepository) UnmarkStepComplete(ctx context.Context, userID, stepID string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM user_progress WHERE user_id = $1 AND step_id = $2`, userID, stepID)
	if err != nil {
		return fmt.Errorf("failed to unmark step: %w", err)
	}
	return nil
}

// --- Telemetry ---

// InsertEvent stores one telemetry event
func (r *PostgresRepository) InsertEvent(ctx context.Context, ev *models.Event) error {
	payloadJSON, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	query := `
		INSERT INTO analytics_events (id, event_type, user_id, use_case_id, mcp_server_id, event_data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = r.pool.Exec(ctx, query,
		ev.ID,
		ev.Type,
		nullString(ev.UserID),
		nullString(ev.UseCaseID),
		nullString(ev.ServerID),
		payloadJSON,
		ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	return nil
}

// EventSummary aggregates telemetry since the given time
func (r *PostgresRepository) EventSummary(ctx context.Context, since time.Time) (*models.EventSummary, error) {
	summary := &models.EventSummary{
		ByType: make(map[string]int),
		Since:  since,
	}

	rows, err := r.pool.Query(ctx, `
		SELECT event_type, COUNT(*)
		FROM analytics_events
		WHERE created_at >= $1
		GROUP BY event_type
	`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var eventType string
		var count int
		if err := rows.Scan(&eventType, &count); err != nil {
			return nil, fmt.Errorf("failed to scan event count: %w", err)
		}
		summary.ByType[eventType] = count
		summary.TotalEvents += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	viewRows, err := r.pool.Query(ctx, `
		SELECT e.use_case_id, COALESCE(u.title, ''), COUNT(*)
		FROM analytics_events e
		LEFT JOIN use_cases u ON u.id = e.use_case_id
		WHERE e.event_type = $1 AND e.created_at >= $2 AND e.use_case_id IS NOT NULL
		GROUP BY e.use_case_id, u.title
		ORDER BY COUNT(*) DESC
		LIMIT 10
	`, models.EventUseCaseViewed, since)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize views: %w", err)
	}
	defer viewRows.Close()

	for viewRows.Next() {
		var v models.UseCaseViews
		if err := viewRows.Scan(&v.UseCaseID, &v.Title, &v.Views); err != nil {
			return nil, fmt.Errorf("failed to scan view count: %w", err)
		}
		summary.TopUseCases = append(summary.TopUseCases, v)
	}
	if err := viewRows.Err(); err != nil {
		return nil, err
	}
	viewRows.Close()

	searchRows, err := r.pool.Query(ctx, `
		SELECT event_data->>'query', COUNT(*)
		FROM analytics_events
		WHERE event_type = $1 AND created_at >= $2 AND event_data ? 'query'
		GROUP BY event_data->>'query'
		ORDER BY COUNT(*) DESC
		LIMIT 10
	`, models.EventSearchPerformed, since)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize searches: %w", err)
	}
	defer searchRows.Close()

	for searchRows.Next() {
		var s models.SearchCount
		if err := searchRows.Scan(&s.Query, &s.Count); err != nil {
			return nil, fmt.Errorf("failed to scan search count: %w", err)
		}
		summary.TopSearches = append(summary.TopSearches, s)
	}

	return summary, searchRows.Err()
}

// DeleteEventsBefore removes telemetry older than the cutoff and returns the
// number of rows deleted
func (r *PostgresRepository) DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM analytics_events WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old events: %w", err)
	}
	return result.RowsAffected(), nil
}

// --- Admin ---

// Stats returns catalog totals for the admin dashboard
func (r *PostgresRepository) Stats(ctx context.Context) (*models.AdminStats, error) {
	var stats models.AdminStats

	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM use_cases),
			(SELECT COUNT(*) FROM use_cases WHERE is_featured),
			(SELECT COUNT(*) FROM tools),
			(SELECT COUNT(*) FROM mcp_servers),
			(SELECT COUNT(*) FROM users)
	`).Scan(
		&stats.TotalUseCases,
		&stats.FeaturedUseCases,
		&stats.TotalTools,
		&stats.TotalMCPServers,
		&stats.TotalUsers,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}

	return &stats, nil
}

// Helper functions for nullable values

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
