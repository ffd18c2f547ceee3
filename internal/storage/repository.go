package storage

import (
	"context"
	"errors"
	"time"

	"github.com/usecasehub/usecase-hub/internal/models"
)

// ErrNotFound is returned by mutations targeting a record that does not
// exist. Lookups signal absence with a nil record instead.
var ErrNotFound = errors.New("record not found")

// Repository defines the interface for catalog persistence
type Repository interface {
	// Use cases
	ListUseCases(ctx context.Context, filter models.StoreFilter) ([]*models.UseCase, error)
	GetUseCase(ctx context.Context, id string) (*models.UseCase, error)
	CreateUseCase(ctx context.Context, uc *models.UseCase) error
	UpdateUseCase(ctx context.Context, uc *models.UseCase) error
	DeleteUseCase(ctx context.Context, id string) error
	SetFeatured(ctx context.Context, id string, featured bool) error

	// Reference data
	ListCategories(ctx context.Context) ([]*models.Category, error)
	ListMCPServers(ctx context.Context, category string, officialOnly bool) ([]*models.MCPServer, error)
	GetMCPServer(ctx context.Context, id string) (*models.MCPServer, error)

	// Users
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	UpdateUser(ctx context.Context, u *models.User) error
	TouchUserLastSeen(ctx context.Context, id string) error

	// Bookmarks
	ListBookmarks(ctx context.Context, userID string) ([]string, error)
	AddBookmark(ctx context.Context, userID, useCaseID string) error
	RemoveBookmark(ctx context.Context, userID, useCaseID string) error

	// Progress
	ListProgress(ctx context.Context, userID, useCaseID string) ([]string, error)
	MarkStepComplete(ctx context.Context, userID, useCaseID, stepID string) error
	UnmarkStepComplete(ctx context.Context, userID, stepID string) error

	// Telemetry
	InsertEvent(ctx context.Context, ev *models.Event) error
	EventSummary(ctx context.Context, since time.Time) (*models.EventSummary, error)
	DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Admin
	Stats(ctx context.Context) (*models.AdminStats, error)

	// Health
	Ping(ctx context.Context) error
	Close() error
}
