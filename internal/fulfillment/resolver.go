package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/oakmart/api/internal/domain"
	"github.com/oakmart/api/internal/repositories"
)

// ResolverDeps configures the shipping profile resolver.
type ResolverDeps struct {
	Profiles repositories.ShippingProfileRepository
	// DefaultProfileID short-circuits lookup when the shop ships everything
	// through a single profile.
	DefaultProfileID string
}

// Resolver picks the shipping profile responsible for an order.
type Resolver struct {
	profiles       repositories.ShippingProfileRepository
	defaultProfile string
}

// NewResolver constructs a Resolver over the shipping profile repository.
func NewResolver(deps ResolverDeps) (*Resolver, error) {
	if deps.Profiles == nil {
		return nil, errors.New("fulfillment: shipping profile repository is required")
	}
	return &Resolver{
		profiles:       deps.Profiles,
		defaultProfile: strings.TrimSpace(deps.DefaultProfileID),
	}, nil
}

// ResolveForOrder returns the profile covering the order's items. With no
// configured default it resolves through the first line item's product.
func (r *Resolver) ResolveForOrder(ctx context.Context, order domain.Order) (domain.ShippingProfile, error) {
	if r == nil || r.profiles == nil {
		return domain.ShippingProfile{}, errors.New("fulfillment: resolver not initialised")
	}

	if r.defaultProfile != "" {
		return r.profiles.FindByID(ctx, r.defaultProfile)
	}

	for _, item := range order.Items {
		productID := strings.TrimSpace(item.Content.ProductID)
		if productID == "" {
			continue
		}
		return r.profiles.FindByProduct(ctx, productID)
	}

	return domain.ShippingProfile{}, fmt.Errorf("fulfillment: order %s has no product to resolve a shipping profile from", order.ID)
}
