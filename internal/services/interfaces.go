package services

import (
	"context"
	"time"

	domain "github.com/oakmart/api/internal/domain"
	"github.com/oakmart/api/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination         = domain.Pagination
	SortOrder          = domain.SortOrder
	Order              = domain.Order
	OrderStatus        = domain.OrderStatus
	FulfillmentStatus  = domain.FulfillmentStatus
	PaymentStatus      = domain.PaymentStatus
	OrderTotals        = domain.OrderTotals
	LineItem           = domain.LineItem
	LineContent        = domain.LineContent
	Address            = domain.Address
	PaymentMethod      = domain.PaymentMethod
	ShippingProfile    = domain.ShippingProfile
	Shipment           = domain.Shipment
	SystemHealthReport = domain.SystemHealthReport
)

// OrderService drives the order lifecycle: creation, partial updates,
// payment capture, fulfillment, returns, cancellation, and archival.
type OrderService interface {
	Create(ctx context.Context, cmd CreateOrderCommand) (Order, error)
	Get(ctx context.Context, orderID string) (Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error)
	Update(ctx context.Context, cmd UpdateOrderCommand) (Order, error)
	SetMetadata(ctx context.Context, orderID string, key string, value any) (Order, error)
	DeleteMetadata(ctx context.Context, orderID string, key string) (Order, error)
	Cancel(ctx context.Context, orderID string) (Order, error)
	CapturePayment(ctx context.Context, orderID string) (Order, error)
	CreateFulfillment(ctx context.Context, orderID string) (Order, error)
	Return(ctx context.Context, cmd ReturnOrderCommand) (Order, error)
	Archive(ctx context.Context, orderID string) (Order, error)
}

// SystemService aggregates utility endpoints (health checks, build metadata).
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// PaymentProcessor captures and refunds funds for an order through its
// payment provider.
type PaymentProcessor interface {
	Capture(ctx context.Context, order Order) (PaymentCaptureResult, error)
	Refund(ctx context.Context, order Order, amount int64, reason string) (PaymentRefundResult, error)
}

// PaymentCaptureResult reports the provider outcome for a capture call.
type PaymentCaptureResult struct {
	ProviderID string
	Reference  string
	Amount     int64
	CapturedAt time.Time
}

// PaymentRefundResult reports the provider outcome for a refund call.
type PaymentRefundResult struct {
	ProviderID string
	Reference  string
	Amount     int64
	RefundedAt time.Time
}

// FulfillmentDispatcher hands an order to its fulfillment provider.
type FulfillmentDispatcher interface {
	CreateFulfillment(ctx context.Context, order Order, profile ShippingProfile) (Shipment, error)
}

// ShippingProfileResolver picks the shipping profile responsible for an order.
type ShippingProfileResolver interface {
	ResolveForOrder(ctx context.Context, order Order) (ShippingProfile, error)
}

// OrderEventPublisher publishes order domain events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// OrderEvent captures metadata for emitted order domain events.
type OrderEvent struct {
	Type              string
	OrderID           string
	PreviousStatus    string
	CurrentStatus     string
	FulfillmentStatus string
	PaymentStatus     string
	OccurredAt        time.Time
	Metadata          map[string]any
}

// Command and DTO definitions ------------------------------------------------

type OrderListFilter = repositories.OrderListFilter

// CreateOrderCommand carries the inputs for placing a new order.
type CreateOrderCommand struct {
	Email           string
	Currency        string
	TaxRate         float64
	BillingAddress  *Address
	ShippingAddress *Address
	Items           []OrderLineInput
	PaymentMethod   *PaymentMethod
	Metadata        map[string]any
}

// OrderLineInput describes one requested line on a new order.
type OrderLineInput struct {
	Title       string
	Description string
	Thumbnail   string
	Content     LineContent
	Quantity    int
	Metadata    map[string]any
}

// UpdateOrderCommand carries a whitelist partial update: nil fields are left
// untouched. Metadata is rejected here; use SetMetadata.
type UpdateOrderCommand struct {
	OrderID         string
	Email           *string
	Status          *OrderStatus
	BillingAddress  *Address
	ShippingAddress *Address
	Items           *[]LineItem
	PaymentMethod   *PaymentMethod
	Metadata        map[string]any
}

// ReturnOrderCommand registers returned items against an order.
type ReturnOrderCommand struct {
	OrderID string
	Lines   []ReturnLine
	// Refund overrides the computed refund amount when set.
	Refund *int64
}

// ReturnLine identifies how many units of a line item came back. Lines naming
// an id the order does not carry are appended as new line items; descriptive
// fields, when set, replace the stored ones on merge.
type ReturnLine struct {
	ItemID      string
	Title       string
	Description string
	Thumbnail   string
	Content     *LineContent
	Quantity    int
}

// BuildInfo captures runtime metadata exposed via health endpoints.
type BuildInfo struct {
	Version     string
	CommitSHA   string
	Environment string
	StartedAt   time.Time
}
