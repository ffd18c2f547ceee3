package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/usecasehub/usecase-hub/internal/fixtures"
	"github.com/usecasehub/usecase-hub/internal/models"
)

var errStoreDown = errors.New("connection refused")

// stubStore fails every call unless canned data is set
type stubStore struct {
	useCases   []*models.UseCase
	categories []*models.Category
	healthy    bool
}

func (s *stubStore) ListUseCases(ctx context.Context, filter models.StoreFilter) ([]*models.UseCase, error) {
	if !s.healthy {
		return nil, errStoreDown
	}
	return s.useCases, nil
}

func (s *stubStore) GetUseCase(ctx context.Context, id string) (*models.UseCase, error) {
	if !s.healthy {
		return nil, errStoreDown
	}
	for _, uc := range s.useCases {
		if uc.ID == id {
			return uc, nil
		}
	}
	return nil, nil
}

func (s *stubStore) ListCategories(ctx context.Context) ([]*models.Category, error) {
	if !s.healthy {
		return nil, errStoreDown
	}
	return s.categories, nil
}

type captureSink struct {
	events []models.Event
}

func (c *captureSink) Dispatch(ev models.Event) bool {
	c.events = append(c.events, ev)
	return true
}

func embeddedFixtures(t *testing.T) *fixtures.Loader {
	t.Helper()
	loader := fixtures.NewLoader()
	if err := loader.LoadEmbedded(); err != nil {
		t.Fatalf("LoadEmbedded failed: %v", err)
	}
	return loader
}

func TestListFallsBackToFixtures(t *testing.T) {
	svc := NewService(&stubStore{}, embeddedFixtures(t), nil)

	got := svc.List(context.Background(), models.StoreFilter{})
	if len(got) == 0 {
		t.Fatal("expected fixture records when the store is down")
	}

	// Fixture path preserves popularity ordering
	for i := 1; i < len(got); i++ {
		if got[i-1].Popularity < got[i].Popularity {
			t.Errorf("fixtures out of order at %d: %d < %d", i, got[i-1].Popularity, got[i].Popularity)
		}
	}

	if svc.FallbackCount() != 1 {
		t.Errorf("expected 1 fallback, got %d", svc.FallbackCount())
	}
}

func TestListFallbackReappliesFilter(t *testing.T) {
	svc := NewService(&stubStore{}, embeddedFixtures(t), nil)
	ctx := context.Background()

	got := svc.List(ctx, models.StoreFilter{Category: "development"})
	if len(got) != 1 || got[0].ID != "code-review-assistant" {
		t.Fatalf("expected only code-review-assistant, got %v", ids(got))
	}

	featured := true
	got = svc.List(ctx, models.StoreFilter{Featured: &featured, Limit: 1})
	if len(got) != 1 || got[0].ID != "email-automation-sequences" {
		t.Fatalf("expected top featured record, got %v", ids(got))
	}

	got = svc.List(ctx, models.StoreFilter{Search: "chatbot"})
	if len(got) != 1 || got[0].ID != "customer-support-chatbot" {
		t.Fatalf("expected chatbot record, got %v", ids(got))
	}
}

func TestListUsesStoreWhenHealthy(t *testing.T) {
	store := &stubStore{
		healthy:  true,
		useCases: []*models.UseCase{{ID: "from-store", Title: "From Store"}},
	}
	svc := NewService(store, embeddedFixtures(t), nil)

	got := svc.List(context.Background(), models.StoreFilter{})
	if len(got) != 1 || got[0].ID != "from-store" {
		t.Fatalf("expected store records, got %v", ids(got))
	}
	if svc.FallbackCount() != 0 {
		t.Errorf("expected no fallbacks, got %d", svc.FallbackCount())
	}
}

func TestGetFallsBackToFixtures(t *testing.T) {
	svc := NewService(&stubStore{}, embeddedFixtures(t), nil)
	ctx := context.Background()

	uc, err := svc.Get(ctx, "customer-support-chatbot")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if uc.Title != "AI-Powered Customer Support Chatbot" {
		t.Errorf("unexpected title: %s", uc.Title)
	}

	if _, err := svc.Get(ctx, "does-not-exist"); !errors.Is(err, ErrUseCaseNotFound) {
		t.Errorf("expected ErrUseCaseNotFound, got %v", err)
	}
}

func TestGetNotFoundOnHealthyStore(t *testing.T) {
	svc := NewService(&stubStore{healthy: true}, embeddedFixtures(t), nil)

	if _, err := svc.Get(context.Background(), "missing"); !errors.Is(err, ErrUseCaseNotFound) {
		t.Errorf("expected ErrUseCaseNotFound, got %v", err)
	}
}

func TestCategoriesDerivedFromFixtures(t *testing.T) {
	svc := NewService(&stubStore{}, embeddedFixtures(t), nil)

	categories := svc.Categories(context.Background())
	if len(categories) != 5 {
		t.Fatalf("expected 5 derived categories, got %d", len(categories))
	}

	// Sorted by humanized name
	if categories[0].Name != "Business Automation" {
		t.Errorf("expected 'Business Automation' first, got %q", categories[0].Name)
	}
	if categories[0].Slug != "business-automation" {
		t.Errorf("unexpected slug: %s", categories[0].Slug)
	}
}

func TestListTracksPageView(t *testing.T) {
	sink := &captureSink{}
	svc := NewService(&stubStore{}, embeddedFixtures(t), sink)

	ctx := ContextWithUserID(context.Background(), "user-42")
	svc.List(ctx, models.StoreFilter{})

	if len(sink.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(sink.events))
	}
	ev := sink.events[0]
	if ev.Type != models.EventPageViewed {
		t.Errorf("expected %s, got %s", models.EventPageViewed, ev.Type)
	}
	if ev.UserID != "user-42" {
		t.Errorf("expected user attribution, got %q", ev.UserID)
	}
}
