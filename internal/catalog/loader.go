package catalog

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/usecasehub/usecase-hub/internal/fixtures"
	"github.com/usecasehub/usecase-hub/internal/models"
)

// Common errors
var (
	ErrUseCaseNotFound = errors.New("use case not found")
)

// Store is the slice of the repository the loader consumes
type Store interface {
	ListUseCases(ctx context.Context, filter models.StoreFilter) ([]*models.UseCase, error)
	GetUseCase(ctx context.Context, id string) (*models.UseCase, error)
	ListCategories(ctx context.Context) ([]*models.Category, error)
}

// EventSink receives fire-and-forget telemetry events
type EventSink interface {
	Dispatch(ev models.Event) bool
}

// Service loads catalog records from the store and degrades to the embedded
// fixture snapshot when the store is unreachable. Availability over
// freshness: load failures are logged and counted, never surfaced.
type Service struct {
	store     Store
	fixtures  *fixtures.Loader
	events    EventSink
	fallbacks atomic.Int64
}

// NewService creates a catalog service. events may be nil.
func NewService(store Store, fx *fixtures.Loader, events EventSink) *Service {
	return &Service{
		store:    store,
		fixtures: fx,
		events:   events,
	}
}

// List returns the collection matching the store-side filter, ordered by
// descending popularity. On a store failure the embedded fixture snapshot is
// substituted with the same filter re-applied in memory; the caller cannot
// tell the difference.
func (s *Service) List(ctx context.Context, filter models.StoreFilter) []*models.UseCase {
	s.trackPageView(ctx)

	useCases, err := s.store.ListUseCases(ctx, filter)
	if err != nil {
		s.fallbacks.Add(1)
		slog.Warn("store unavailable, serving fixture catalog",
			"error", err,
			"fallbacks", s.fallbacks.Load(),
		)
		return applyStoreFilter(s.fixtures.List(), filter)
	}

	return useCases
}

// Get returns one record with full nested relations. A store failure falls
// back to the fixture snapshot; ErrUseCaseNotFound means the record exists
// in neither place.
func (s *Service) Get(ctx context.Context, id string) (*models.UseCase, error) {
	uc, err := s.store.GetUseCase(ctx, id)
	if err != nil {
		s.fallbacks.Add(1)
		slog.Warn("store unavailable, serving fixture record", "id", id, "error", err)
		if fx := s.fixtures.Get(id); fx != nil {
			return fx, nil
		}
		return nil, ErrUseCaseNotFound
	}

	if uc == nil {
		return nil, ErrUseCaseNotFound
	}
	return uc, nil
}

// Featured returns the featured subset, at most six records, ordered by
// descending popularity
func (s *Service) Featured(ctx context.Context) []*models.UseCase {
	featured := true
	return s.List(ctx, models.StoreFilter{Featured: &featured, Limit: 6})
}

// Categories returns the category table ordered by name. When the store is
// unreachable the category list is derived from the fixture snapshot.
func (s *Service) Categories(ctx context.Context) []*models.Category {
	categories, err := s.store.ListCategories(ctx)
	if err != nil {
		s.fallbacks.Add(1)
		slog.Warn("store unavailable, deriving categories from fixtures", "error", err)
		return fixtureCategories(s.fixtures.List())
	}
	return categories
}

// FallbackCount reports how many loads were served from the fixture snapshot
func (s *Service) FallbackCount() int64 {
	return s.fallbacks.Load()
}

func (s *Service) trackPageView(ctx context.Context) {
	if s.events == nil {
		return
	}
	userID, _ := ctx.Value(userIDKey{}).(string)
	s.events.Dispatch(models.PageViewEvent("catalog", userID))
}

type userIDKey struct{}

// ContextWithUserID attaches the current user identifier for telemetry
// attribution. The loader never inspects it beyond passing it along.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// applyStoreFilter re-applies the store-side constraints in memory so the
// fixture path matches what the store would have returned
func applyStoreFilter(in []*models.UseCase, filter models.StoreFilter) []*models.UseCase {
	out := make([]*models.UseCase, 0, len(in))

	search := strings.ToLower(filter.Search)
	for _, uc := range in {
		if filter.Category != "" && uc.Category != filter.Category {
			continue
		}
		if filter.Difficulty != "" && string(uc.Difficulty) != filter.Difficulty {
			continue
		}
		if filter.Featured != nil && uc.Featured != *filter.Featured {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(uc.Title), search) &&
			!strings.Contains(strings.ToLower(uc.Description), search) {
			continue
		}
		out = append(out, uc)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Popularity > out[j].Popularity
	})

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}

	return out
}

// fixtureCategories derives a category list from the slugs present in the
// snapshot, with a humanized display name
func fixtureCategories(in []*models.UseCase) []*models.Category {
	seen := make(map[string]bool)
	var categories []*models.Category

	for _, uc := range in {
		if uc.Category == "" || seen[uc.Category] {
			continue
		}
		seen[uc.Category] = true
		categories = append(categories, &models.Category{
			ID:   uc.Category,
			Slug: uc.Category,
			Name: humanizeSlug(uc.Category),
		})
	}

	sort.Slice(categories, func(i, j int) bool {
		return categories[i].Name < categories[j].Name
	})
	return categories
}

func humanizeSlug(slug string) string {
	words := strings.Split(slug, "-")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
