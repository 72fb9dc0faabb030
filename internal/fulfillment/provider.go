package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/oakmart/api/internal/domain"
)

const shipmentIDPrefix = "ful_"

// Provider hands an order to a carrier integration and reports the created shipment.
type Provider interface {
	CreateFulfillment(ctx context.Context, order domain.Order, profile domain.ShippingProfile) (domain.Shipment, error)
}

// ManualProviderDeps configures the manual carrier.
type ManualProviderDeps struct {
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

// ManualProvider records fulfillments without talking to an external carrier.
// Warehouses pick up the shipment from the published event instead.
type ManualProvider struct {
	clock  func() time.Time
	newID  func() string
	logger func(context.Context, string, map[string]any)
}

var _ Provider = (*ManualProvider)(nil)

// NewManualProvider constructs the manual carrier.
func NewManualProvider(deps ManualProviderDeps) *ManualProvider {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &ManualProvider{
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}
}

// CreateFulfillment acknowledges the order as handed over for shipping.
func (p *ManualProvider) CreateFulfillment(ctx context.Context, order domain.Order, profile domain.ShippingProfile) (domain.Shipment, error) {
	if p == nil {
		return domain.Shipment{}, errors.New("fulfillment: provider is nil")
	}
	if strings.TrimSpace(order.ID) == "" {
		return domain.Shipment{}, errors.New("fulfillment: order id is required")
	}
	if len(order.Items) == 0 {
		return domain.Shipment{}, fmt.Errorf("fulfillment: order %s has no items to ship", order.ID)
	}

	providerID := strings.TrimSpace(profile.ProviderID)
	if providerID == "" {
		providerID = "manual"
	}

	shipment := domain.Shipment{
		ID:         shipmentIDPrefix + p.newID(),
		OrderID:    order.ID,
		ProviderID: providerID,
		Data: map[string]any{
			"lineCount": len(order.Items),
		},
		CreatedAt: p.clock(),
	}

	p.logger(ctx, "fulfillment.created", map[string]any{
		"order":    order.ID,
		"shipment": shipment.ID,
		"provider": shipment.ProviderID,
	})

	return shipment, nil
}
