package models

import (
	"time"
)

// DifficultyLevel is the ordered difficulty scale for use cases, tools and steps
type DifficultyLevel string

const (
	DifficultyBeginner     DifficultyLevel = "beginner"
	DifficultyIntermediate DifficultyLevel = "intermediate"
	DifficultyAdvanced     DifficultyLevel = "advanced"
)

// Valid reports whether the value belongs to the known difficulty scale
func (d DifficultyLevel) Valid() bool {
	switch d {
	case DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced:
		return true
	}
	return false
}

// CostRange is the estimated monthly cost tier of a use case
type CostRange string

const (
	CostFree   CostRange = "free"
	CostLow    CostRange = "low"
	CostMedium CostRange = "medium"
	CostHigh   CostRange = "high"
	CostCustom CostRange = "custom"
)

// Valid reports whether the value belongs to the known cost tiers
func (c CostRange) Valid() bool {
	switch c {
	case CostFree, CostLow, CostMedium, CostHigh, CostCustom:
		return true
	}
	return false
}

// Known category slugs for use cases
var UseCaseCategories = []string{
	"business-automation",
	"content-creation",
	"data-analysis",
	"customer-service",
	"development",
	"research",
	"design",
	"finance",
	"hr",
	"sales",
}

// Known industry values
var Industries = []string{
	"technology",
	"healthcare",
	"finance",
	"education",
	"retail",
	"manufacturing",
	"marketing",
	"consulting",
	"startup",
	"enterprise",
}

// Known user role values
var UserRoles = []string{
	"developer",
	"business-analyst",
	"marketing-manager",
	"sales-manager",
	"data-analyst",
	"project-manager",
	"entrepreneur",
	"consultant",
	"designer",
	"executive",
}

// UseCase represents one curated catalog entry: an automation scenario with
// its tools, step-by-step guide and supporting resources
type UseCase struct {
	ID              string          `json:"id" yaml:"id"`
	Title           string          `json:"title" yaml:"title"`
	Description     string          `json:"description" yaml:"description"`
	Category        string          `json:"category" yaml:"category"`
	Difficulty      DifficultyLevel `json:"difficulty" yaml:"difficulty"`
	TimeToImplement string          `json:"time_to_implement" yaml:"time_to_implement"`
	ROIExpected     string          `json:"roi_expected" yaml:"roi_expected"`
	EstimatedCost   CostRange       `json:"estimated_cost" yaml:"estimated_cost"`
	Featured        bool            `json:"featured" yaml:"featured"`
	Popularity      int             `json:"popularity" yaml:"popularity"`
	LastUpdated     time.Time       `json:"last_updated" yaml:"last_updated"`
	Tags            []string        `json:"tags" yaml:"tags"`
	Industries      []string        `json:"industries" yaml:"industries"`
	UserRoles       []string        `json:"user_roles" yaml:"user_roles"`
	Tools           []Tool          `json:"tools" yaml:"tools"`
	Steps           []Step          `json:"steps" yaml:"steps"`

	// Opaque to filtering; carried through as-is
	ExternalResources []ExternalResource `json:"external_resources,omitempty" yaml:"external_resources"`
	RelatedVideos     []VideoResource    `json:"related_videos,omitempty" yaml:"related_videos"`
	RelatedArticles   []ArticleResource  `json:"related_articles,omitempty" yaml:"related_articles"`
}

// Tool represents a product or service referenced by a use case
type Tool struct {
	ID           string          `json:"id" yaml:"id"`
	Name         string          `json:"name" yaml:"name"`
	Description  string          `json:"description" yaml:"description"`
	Website      string          `json:"website" yaml:"website"`
	Pricing      string          `json:"pricing" yaml:"pricing"`
	Category     string          `json:"category" yaml:"category"`
	Difficulty   DifficultyLevel `json:"difficulty" yaml:"difficulty"`
	Features     []string        `json:"features" yaml:"features"`
	Integrations []string        `json:"integrations" yaml:"integrations"`
	MCPServer    *MCPServer      `json:"mcp_server,omitempty" yaml:"mcp_server"`
}

// MCPServer describes an MCP server associated with a tool.
// The catalog never mutates these records; they pass through verbatim.
type MCPServer struct {
	ID               string   `json:"id" yaml:"id"`
	Name             string   `json:"name" yaml:"name"`
	Description      string   `json:"description" yaml:"description"`
	Repository       string   `json:"repository" yaml:"repository"`
	InstallCommand   string   `json:"install_command" yaml:"install_command"`
	ConfigExample    string   `json:"config_example" yaml:"config_example"`
	Capabilities     []string `json:"capabilities" yaml:"capabilities"`
	Requirements     []string `json:"requirements" yaml:"requirements"`
	Category         string   `json:"category" yaml:"category"`
	Official         bool     `json:"official" yaml:"official"`
	DocumentationURL string   `json:"documentation_url" yaml:"documentation_url"`
	Active           bool     `json:"active" yaml:"active"`
}

// Step is one step of a use case's implementation guide, ordered by StepNumber
type Step struct {
	ID            string          `json:"id" yaml:"id"`
	StepNumber    int             `json:"step_number" yaml:"step_number"`
	Title         string          `json:"title" yaml:"title"`
	Description   string          `json:"description" yaml:"description"`
	Code          string          `json:"code,omitempty" yaml:"code"`
	CodeLanguage  string          `json:"code_language,omitempty" yaml:"code_language"`
	Duration      string          `json:"duration" yaml:"duration"`
	Difficulty    DifficultyLevel `json:"difficulty" yaml:"difficulty"`
	Prerequisites []string        `json:"prerequisites" yaml:"prerequisites"`
	Resources     []StepResource  `json:"resources" yaml:"resources"`
}

// StepResource is a link attached to an implementation step
type StepResource struct {
	Title string `json:"title" yaml:"title"`
	URL   string `json:"url" yaml:"url"`
	Type  string `json:"type" yaml:"type"`
}

// ExternalResource is an external tool/service recommendation
type ExternalResource struct {
	ID          string  `json:"id" yaml:"id"`
	Title       string  `json:"title" yaml:"title"`
	Description string  `json:"description" yaml:"description"`
	URL         string  `json:"url" yaml:"url"`
	Type        string  `json:"type" yaml:"type"`
	IsPaid      bool    `json:"is_paid" yaml:"is_paid"`
	Rating      float64 `json:"rating,omitempty" yaml:"rating"`
}

// VideoResource is a related video link
type VideoResource struct {
	ID          string    `json:"id" yaml:"id"`
	Title       string    `json:"title" yaml:"title"`
	Description string    `json:"description" yaml:"description"`
	URL         string    `json:"url" yaml:"url"`
	Platform    string    `json:"platform" yaml:"platform"`
	Duration    string    `json:"duration" yaml:"duration"`
	Author      string    `json:"author" yaml:"author"`
	PublishedAt time.Time `json:"published_at" yaml:"published_at"`
}

// ArticleResource is a related article link
type ArticleResource struct {
	ID          string    `json:"id" yaml:"id"`
	Title       string    `json:"title" yaml:"title"`
	Description string    `json:"description" yaml:"description"`
	URL         string    `json:"url" yaml:"url"`
	Author      string    `json:"author" yaml:"author"`
	PublishedAt time.Time `json:"published_at" yaml:"published_at"`
	ReadingTime string    `json:"reading_time" yaml:"reading_time"`
	Source      string    `json:"source" yaml:"source"`
}

// Category is a row of the store's category table
type Category struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Icon  string `json:"icon,omitempty"`
	Color string `json:"color,omitempty"`
}

// Filter is the structured predicate input for the filter engine.
// Set fields are inclusive-OR within the field and AND across fields;
// an empty set means no constraint from that field.
type Filter struct {
	Categories   []string `json:"categories"`
	Difficulties []string `json:"difficulties"`
	Industries   []string `json:"industries"`
	UserRoles    []string `json:"user_roles"`
	Query        string   `json:"query"`
	Featured     bool     `json:"featured"`
}

// IsZero reports whether the filter imposes no constraint at all
func (f Filter) IsZero() bool {
	return len(f.Categories) == 0 &&
		len(f.Difficulties) == 0 &&
		len(f.Industries) == 0 &&
		len(f.UserRoles) == 0 &&
		f.Query == "" &&
		!f.Featured
}

// StoreFilter is the store-side pre-filter applied at query time to reduce
// transfer volume. The same constraints are re-applied in memory on the
// fixture fallback path.
type StoreFilter struct {
	Category   string
	Difficulty string
	Featured   *bool
	Search     string
	Limit      int
}

// IsZero reports whether no store-side constraint is set
func (f StoreFilter) IsZero() bool {
	return f.Category == "" && f.Difficulty == "" && f.Featured == nil && f.Search == "" && f.Limit == 0
}
