package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// RangeQuery represents inclusive range filters for numeric or timestamp fields.
type RangeQuery[T comparable] struct {
	From *T
	To   *T
}

// OrderStatus captures the overall lifecycle state of an order.
type OrderStatus string

const (
	// OrderStatusPending marks a freshly created, still open order.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusCompleted marks an order whose lifecycle finished normally.
	OrderStatusCompleted OrderStatus = "completed"
	// OrderStatusArchived marks a processed order moved out of active views.
	OrderStatusArchived OrderStatus = "archived"
	// OrderStatusCancelled marks an order cancelled before processing.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// FulfillmentStatus tracks the shipping side of the order lifecycle.
type FulfillmentStatus string

const (
	// FulfillmentStatusNotFulfilled indicates no fulfillment has been created yet.
	FulfillmentStatusNotFulfilled FulfillmentStatus = "not_fulfilled"
	// FulfillmentStatusFulfilled indicates all items have been handed to the provider.
	FulfillmentStatusFulfilled FulfillmentStatus = "fulfilled"
	// FulfillmentStatusPartiallyFulfilled indicates a subset of items was returned.
	FulfillmentStatusPartiallyFulfilled FulfillmentStatus = "partially_fulfilled"
	// FulfillmentStatusReturned indicates every item came back in full.
	FulfillmentStatusReturned FulfillmentStatus = "returned"
	// FulfillmentStatusShipped indicates the provider reported the parcels in transit.
	FulfillmentStatusShipped FulfillmentStatus = "shipped"
	// FulfillmentStatusCanceled indicates the fulfillment was aborted.
	FulfillmentStatusCanceled FulfillmentStatus = "canceled"
)

// PaymentStatus tracks the money side of the order lifecycle.
type PaymentStatus string

const (
	// PaymentStatusAwaiting indicates the payment is authorised but not captured.
	PaymentStatusAwaiting PaymentStatus = "awaiting"
	// PaymentStatusCaptured indicates funds were collected from the customer.
	PaymentStatusCaptured PaymentStatus = "captured"
	// PaymentStatusRefunded indicates captured funds were returned to the customer.
	PaymentStatusRefunded PaymentStatus = "refunded"
	// PaymentStatusCanceled indicates the authorisation was voided.
	PaymentStatusCanceled PaymentStatus = "canceled"
)

// Address holds a postal address attached to an order.
type Address struct {
	FirstName   string
	LastName    string
	Company     string
	Address1    string
	Address2    string
	City        string
	CountryCode string
	Province    string
	PostalCode  string
	Phone       string
}

// LineContent describes what a line item resolves to at purchase time.
type LineContent struct {
	UnitPrice int64
	VariantID string
	ProductID string
	Quantity  int
}

// LineItem is a purchasable line on an order. ReturnedQuantity can never
// exceed Quantity.
type LineItem struct {
	ID               string
	Title            string
	Description      string
	Thumbnail        string
	Content          LineContent
	Quantity         int
	ReturnedQuantity int
	Metadata         map[string]any
}

// PaymentMethod references the PSP session the order was placed with.
type PaymentMethod struct {
	ProviderID string
	ProfileID  string
	Data       map[string]any
}

// Order is the aggregate tracked through the lifecycle state machine.
type Order struct {
	ID                string
	Email             string
	Status            OrderStatus
	FulfillmentStatus FulfillmentStatus
	PaymentStatus     PaymentStatus
	Currency          string
	TaxRate           float64
	BillingAddress    *Address
	ShippingAddress   *Address
	Items             []LineItem
	PaymentMethod     *PaymentMethod
	Metadata          map[string]any
	CreatedAt         time.Time
	UpdatedAt         time.Time
	CanceledAt        *time.Time
	CapturedAt        *time.Time
	FulfilledAt       *time.Time
	ArchivedAt        *time.Time
}

// ShippingProfile groups products that ship together through one provider.
type ShippingProfile struct {
	ID         string
	Name       string
	ProviderID string
	ProductIDs []string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Shipment records the provider acknowledgement for a created fulfillment.
type Shipment struct {
	ID              string
	OrderID         string
	ProviderID      string
	TrackingNumbers []string
	Data            map[string]any
	CreatedAt       time.Time
}

// OrderTotals aggregates the monetary breakdown computed for an order.
type OrderTotals struct {
	Subtotal int64
	Shipping int64
	Tax      int64
	Total    int64
}

// CursorPage wraps a page of results together with the continuation token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// Health statuses reported by readiness endpoints.
const (
	HealthStatusOK       = "ok"
	HealthStatusDegraded = "degraded"
	HealthStatusError    = "error"
)

// SystemHealthCheck records the outcome of a single dependency probe.
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency probes with build metadata.
type SystemHealthReport struct {
	Status      string
	Version     string
	CommitSHA   string
	Environment string
	Uptime      time.Duration
	Checks      map[string]SystemHealthCheck
	GeneratedAt time.Time
}
