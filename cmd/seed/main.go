// Command seed loads the embedded fixture snapshot into PostgreSQL so a
// fresh deployment starts with a populated catalog. Existing rows are
// updated in place; running it twice is safe.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/lib/pq"

	"github.com/usecasehub/usecase-hub/internal/config"
	"github.com/usecasehub/usecase-hub/internal/fixtures"
	"github.com/usecasehub/usecase-hub/internal/models"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	fixtureDir := flag.String("fixtures", "", "optional directory of fixture YAML files layered over the embedded snapshot")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	loader := fixtures.NewLoader()
	if err := loader.LoadEmbedded(); err != nil {
		slog.Error("failed to load embedded fixtures", "error", err)
		os.Exit(1)
	}
	if *fixtureDir != "" {
		if err := loader.LoadFromDir(*fixtureDir); err != nil {
			slog.Error("failed to load fixture directory", "dir", *fixtureDir, "error", err)
			os.Exit(1)
		}
	}

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := seed(db, loader.List()); err != nil {
		slog.Error("seeding failed", "error", err)
		os.Exit(1)
	}

	slog.Info("seeding complete", "use_cases", loader.Count())
}

func seed(db *sql.DB, useCases []*models.UseCase) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := seedCategories(tx, useCases); err != nil {
		return err
	}

	for _, uc := range useCases {
		if err := seedUseCase(tx, uc); err != nil {
			return fmt.Errorf("use case %s: %w", uc.ID, err)
		}
	}

	return tx.Commit()
}

// seedCategories inserts every known category slug plus any slug the
// snapshot references that the known list misses
func seedCategories(tx *sql.Tx, useCases []*models.UseCase) error {
	slugs := append([]string{}, models.UseCaseCategories...)
	seen := make(map[string]bool, len(slugs))
	for _, s := range slugs {
		seen[s] = true
	}
	for _, uc := range useCases {
		if uc.Category != "" && !seen[uc.Category] {
			seen[uc.Category] = true
			slugs = append(slugs, uc.Category)
		}
	}

	for _, slug := range slugs {
		_, err := tx.Exec(`
			INSERT INTO categories (name, slug)
			VALUES ($1, $2)
			ON CONFLICT (slug) DO NOTHING
		`, humanize(slug), slug)
		if err != nil {
			return fmt.Errorf("failed to insert category %s: %w", slug, err)
		}
	}

	return nil
}

func seedUseCase(tx *sql.Tx, uc *models.UseCase) error {
	_, err := tx.Exec(`
		INSERT INTO use_cases (id, title, description, category_slug, difficulty,
			time_to_implement, roi_expected, estimated_cost, is_featured, popularity,
			tags, industries, user_roles)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			category_slug = EXCLUDED.category_slug,
			difficulty = EXCLUDED.difficulty,
			time_to_implement = EXCLUDED.time_to_implement,
			roi_expected = EXCLUDED.roi_expected,
			estimated_cost = EXCLUDED.estimated_cost,
			is_featured = EXCLUDED.is_featured,
			popularity = EXCLUDED.popularity,
			tags = EXCLUDED.tags,
			industries = EXCLUDED.industries,
			user_roles = EXCLUDED.user_roles,
			updated_at = NOW()
	`,
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
		pq.Array(uc.Tags),
		pq.Array(uc.Industries),
		pq.Array(uc.UserRoles),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert use case: %w", err)
	}

	for i, tool := range uc.Tools {
		if err := seedTool(tx, uc.ID, i, tool); err != nil {
			return err
		}
	}

	for _, step := range uc.Steps {
		if err := seedStep(tx, uc.ID, step); err != nil {
			return err
		}
	}

	return nil
}

func seedTool(tx *sql.Tx, useCaseID string, position int, tool models.Tool) error {
	var mcpServerID sql.NullString
	if tool.MCPServer != nil {
		srv := tool.MCPServer
		_, err := tx.Exec(`
			INSERT INTO mcp_servers (id, name, description, repository, install_command,
				config_example, capabilities, requirements, category, is_official,
				documentation_url, is_active)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				description = EXCLUDED.description,
				repository = EXCLUDED.repository,
				install_command = EXCLUDED.install_command,
				config_example = EXCLUDED.config_example,
				capabilities = EXCLUDED.capabilities,
				requirements = EXCLUDED.requirements,
				category = EXCLUDED.category,
				is_official = EXCLUDED.is_official,
				documentation_url = EXCLUDED.documentation_url,
				is_active = EXCLUDED.is_active
		`,
			srv.ID, srv.Name, srv.Description, srv.Repository, srv.InstallCommand,
			srv.ConfigExample, pq.Array(srv.Capabilities), pq.Array(srv.Requirements),
			srv.Category, srv.Official, srv.DocumentationURL, srv.Active,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert mcp server %s: %w", srv.ID, err)
		}
		mcpServerID = sql.NullString{String: srv.ID, Valid: true}
	}

	_, err := tx.Exec(`
		INSERT INTO tools (id, name, description, website, pricing, category,
			difficulty, features, integrations, mcp_server_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			website = EXCLUDED.website,
			pricing = EXCLUDED.pricing,
			category = EXCLUDED.category,
			difficulty = EXCLUDED.difficulty,
			features = EXCLUDED.features,
			integrations = EXCLUDED.integrations,
			mcp_server_id = EXCLUDED.mcp_server_id
	`,
		tool.ID, tool.Name, tool.Description, tool.Website, tool.Pricing,
		tool.Category, string(tool.Difficulty), pq.Array(tool.Features),
		pq.Array(tool.Integrations), mcpServerID,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert tool %s: %w", tool.ID, err)
	}

	_, err = tx.Exec(`
		INSERT INTO use_case_tools (use_case_id, tool_id, position)
		VALUES ($1, $2, $3)
		ON CONFLICT (use_case_id, tool_id) DO UPDATE SET position = EXCLUDED.position
	`, useCaseID, tool.ID, position)
	if err != nil {
		return fmt.Errorf("failed to link tool %s: %w", tool.ID, err)
	}

	return nil
}

func seedStep(tx *sql.Tx, useCaseID string, step models.Step) error {
	var code, codeLanguage sql.NullString
	if step.Code != "" {
		code = sql.NullString{String: step.Code, Valid: true}
	}
	if step.CodeLanguage != "" {
		codeLanguage = sql.NullString{String: step.CodeLanguage, Valid: true}
	}

	_, err := tx.Exec(`
		INSERT INTO implementation_steps (id, use_case_id, step_number, title,
			description, code, code_language, duration, difficulty, prerequisites)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			step_number = EXCLUDED.step_number,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			code = EXCLUDED.code,
			code_language = EXCLUDED.code_language,
			duration = EXCLUDED.duration,
			difficulty = EXCLUDED.difficulty,
			prerequisites = EXCLUDED.prerequisites
	`,
		step.ID, useCaseID, step.StepNumber, step.Title, step.Description,
		code, codeLanguage, step.Duration, string(step.Difficulty),
		pq.Array(step.Prerequisites),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert step %s: %w", step.ID, err)
	}

	// Re-create link rows so removed resources disappear
	if _, err := tx.Exec(`DELETE FROM step_resources WHERE step_id = $1`, step.ID); err != nil {
		return fmt.Errorf("failed to clear step resources: %w", err)
	}
	for _, res := range step.Resources {
		_, err := tx.Exec(`
			INSERT INTO step_resources (step_id, title, url, type)
			VALUES ($1, $2, $3, $4)
		`, step.ID, res.Title, res.URL, res.Type)
		if err != nil {
			return fmt.Errorf("failed to insert step resource: %w", err)
		}
	}

	return nil
}

func humanize(slug string) string {
	words := strings.Split(slug, "-")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
