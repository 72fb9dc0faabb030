package fulfillment

import (
	"context"
	"errors"
	"testing"

	domain "github.com/oakmart/api/internal/domain"
)

type stubProfileRepository struct {
	findByIDFn      func(ctx context.Context, profileID string) (domain.ShippingProfile, error)
	findByProductFn func(ctx context.Context, productID string) (domain.ShippingProfile, error)
}

func (s *stubProfileRepository) FindByID(ctx context.Context, profileID string) (domain.ShippingProfile, error) {
	if s.findByIDFn == nil {
		return domain.ShippingProfile{}, errors.New("unexpected FindByID call")
	}
	return s.findByIDFn(ctx, profileID)
}

func (s *stubProfileRepository) FindByProduct(ctx context.Context, productID string) (domain.ShippingProfile, error) {
	if s.findByProductFn == nil {
		return domain.ShippingProfile{}, errors.New("unexpected FindByProduct call")
	}
	return s.findByProductFn(ctx, productID)
}

func TestNewResolverRequiresRepository(t *testing.T) {
	if _, err := NewResolver(ResolverDeps{}); err == nil {
		t.Fatal("expected error when profile repository is missing")
	}
}

func TestResolveForOrderUsesDefaultProfile(t *testing.T) {
	var requestedID string
	repo := &stubProfileRepository{
		findByIDFn: func(_ context.Context, profileID string) (domain.ShippingProfile, error) {
			requestedID = profileID
			return domain.ShippingProfile{ID: profileID, ProviderID: "manual"}, nil
		},
	}

	resolver, err := NewResolver(ResolverDeps{Profiles: repo, DefaultProfileID: "sp_default"})
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	profile, err := resolver.ResolveForOrder(context.Background(), domain.Order{ID: "ord_1"})
	if err != nil {
		t.Fatalf("ResolveForOrder: %v", err)
	}
	if requestedID != "sp_default" {
		t.Fatalf("expected lookup of sp_default, got %s", requestedID)
	}
	if profile.ID != "sp_default" {
		t.Fatalf("unexpected profile %s", profile.ID)
	}
}

func TestResolveForOrderFallsBackToProductLookup(t *testing.T) {
	var requestedProduct string
	repo := &stubProfileRepository{
		findByProductFn: func(_ context.Context, productID string) (domain.ShippingProfile, error) {
			requestedProduct = productID
			return domain.ShippingProfile{ID: "sp_books", ProviderID: "manual"}, nil
		},
	}

	resolver, err := NewResolver(ResolverDeps{Profiles: repo})
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	order := domain.Order{
		ID: "ord_2",
		Items: []domain.LineItem{
			{ID: "item_1", Content: domain.LineContent{ProductID: "prod_9"}},
		},
	}

	profile, err := resolver.ResolveForOrder(context.Background(), order)
	if err != nil {
		t.Fatalf("ResolveForOrder: %v", err)
	}
	if requestedProduct != "prod_9" {
		t.Fatalf("expected product lookup for prod_9, got %s", requestedProduct)
	}
	if profile.ID != "sp_books" {
		t.Fatalf("unexpected profile %s", profile.ID)
	}
}

func TestResolveForOrderFailsWithoutProducts(t *testing.T) {
	resolver, err := NewResolver(ResolverDeps{Profiles: &stubProfileRepository{}})
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	if _, err := resolver.ResolveForOrder(context.Background(), domain.Order{ID: "ord_3"}); err == nil {
		t.Fatal("expected error when order has no products")
	}
}
