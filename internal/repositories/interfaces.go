package repositories

import (
	"context"
	"time"

	domain "github.com/oakmart/api/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderPatch enumerates the order fields a partial update may touch. A nil
// field is left untouched; a set field is written as-is. Nothing outside this
// struct can be modified through Patch.
type OrderPatch struct {
	Email             *string
	Status            *domain.OrderStatus
	FulfillmentStatus *domain.FulfillmentStatus
	PaymentStatus     *domain.PaymentStatus
	BillingAddress    *domain.Address
	ShippingAddress   *domain.Address
	Items             *[]domain.LineItem
	PaymentMethod     *domain.PaymentMethod
	Metadata          map[string]any
	MetadataDeletes   []string
	CanceledAt        *time.Time
	CapturedAt        *time.Time
	FulfilledAt       *time.Time
	ArchivedAt        *time.Time
	UpdatedAt         *time.Time
}

// IsZero reports whether the patch carries no field at all.
func (p OrderPatch) IsZero() bool {
	return p.Email == nil &&
		p.Status == nil &&
		p.FulfillmentStatus == nil &&
		p.PaymentStatus == nil &&
		p.BillingAddress == nil &&
		p.ShippingAddress == nil &&
		p.Items == nil &&
		p.PaymentMethod == nil &&
		len(p.Metadata) == 0 &&
		len(p.MetadataDeletes) == 0 &&
		p.CanceledAt == nil &&
		p.CapturedAt == nil &&
		p.FulfilledAt == nil &&
		p.ArchivedAt == nil &&
		p.UpdatedAt == nil
}

// OrderListFilter narrows order listings.
type OrderListFilter struct {
	Email      string
	Status     []domain.OrderStatus
	DateRange  domain.RangeQuery[time.Time]
	Pagination domain.Pagination
}

// OrderRepository persists order documents. Updates are patch-only: whole
// documents are never replaced after insert.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	Patch(ctx context.Context, orderID string, patch OrderPatch) error
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
}

// ShippingProfileRepository resolves shipping profiles referenced by orders.
type ShippingProfileRepository interface {
	FindByID(ctx context.Context, profileID string) (domain.ShippingProfile, error)
	FindByProduct(ctx context.Context, productID string) (domain.ShippingProfile, error)
}

// HealthRepository evaluates dependency probes for readiness reporting.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
