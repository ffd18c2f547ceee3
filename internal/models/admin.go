package models

// AdminStats holds catalog totals for the admin dashboard
type AdminStats struct {
	TotalUseCases    int `json:"total_use_cases"`
	FeaturedUseCases int `json:"featured_use_cases"`
	TotalTools       int `json:"total_tools"`
	TotalMCPServers  int `json:"total_mcp_servers"`
	TotalUsers       int `json:"total_users"`
}

// UpsertUseCaseRequest is the admin create/update payload. The record shape
// mirrors UseCase minus the server-assigned fields.
type UpsertUseCaseRequest struct {
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	Category        string          `json:"category"`
	Difficulty      DifficultyLevel `json:"difficulty"`
	TimeToImplement string          `json:"time_to_implement"`
	ROIExpected     string          `json:"roi_expected"`
	EstimatedCost   CostRange       `json:"estimated_cost"`
	Featured        bool            `json:"featured"`
	Popularity      int             `json:"popularity"`
	Tags            []string        `json:"tags"`
	Industries      []string        `json:"industries"`
	UserRoles       []string        `json:"user_roles"`
	Steps           []Step          `json:"steps"`
}

// FeatureToggleResponse is returned after flipping the featured flag
type FeatureToggleResponse struct {
	ID       string `json:"id"`
	Featured bool   `json:"featured"`
}
