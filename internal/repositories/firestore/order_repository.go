package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/oakmart/api/internal/domain"
	pfirestore "github.com/oakmart/api/internal/platform/firestore"
	"github.com/oakmart/api/internal/platform/pagination"
	"github.com/oakmart/api/internal/repositories"
)

const ordersCollection = "orders"

var validOrderStatuses = map[domain.OrderStatus]struct{}{
	domain.OrderStatusPending:   {},
	domain.OrderStatusCompleted: {},
	domain.OrderStatusArchived:  {},
	domain.OrderStatusCancelled: {},
}

var validFulfillmentStatuses = map[domain.FulfillmentStatus]struct{}{
	domain.FulfillmentStatusNotFulfilled:       {},
	domain.FulfillmentStatusFulfilled:          {},
	domain.FulfillmentStatusPartiallyFulfilled: {},
	domain.FulfillmentStatusReturned:           {},
	domain.FulfillmentStatusShipped:            {},
	domain.FulfillmentStatusCanceled:           {},
}

var validPaymentStatuses = map[domain.PaymentStatus]struct{}{
	domain.PaymentStatusAwaiting: {},
	domain.PaymentStatusCaptured: {},
	domain.PaymentStatusRefunded: {},
	domain.PaymentStatusCanceled: {},
}

// OrderRepository persists order documents in Firestore.
type OrderRepository struct {
	provider *pfirestore.Provider
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{provider: provider}, nil
}

// Insert stores a new order, failing with a conflict when the id is taken.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	coll, err := r.collection(ctx)
	if err != nil {
		return err
	}

	id := strings.TrimSpace(order.ID)
	if id == "" {
		return errors.New("order repository: id is required")
	}
	if err := validateOrderDocument(order); err != nil {
		return err
	}

	doc := newOrderDocument(order)
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docRef := coll.Doc(id)
		if _, err := tx.Get(docRef); err == nil {
			return status.Errorf(codes.AlreadyExists, "order %s already exists", id)
		} else if status.Code(err) != codes.NotFound {
			return err
		}
		return tx.Set(docRef, doc)
	})
	if err != nil {
		return pfirestore.WrapError("orders.insert", err)
	}
	return nil
}

// FindByID loads a single order by its document id.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	coll, err := r.collection(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	id := strings.TrimSpace(orderID)
	if id == "" {
		return domain.Order{}, errors.New("order repository: id is required")
	}
	snap, err := coll.Doc(id).Get(ctx)
	if err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.find", err)
	}
	return decodeOrderDocument(snap)
}

// Patch applies a set-only partial update to the order document. Values are
// validated before any write is issued; invalid patches leave the document
// untouched.
func (r *OrderRepository) Patch(ctx context.Context, orderID string, patch repositories.OrderPatch) error {
	coll, err := r.collection(ctx)
	if err != nil {
		return err
	}
	id := strings.TrimSpace(orderID)
	if id == "" {
		return errors.New("order repository: id is required")
	}
	if patch.IsZero() {
		return errors.New("order repository: empty patch")
	}

	updates, err := buildOrderUpdates(patch)
	if err != nil {
		return err
	}

	if _, err := coll.Doc(id).Update(ctx, updates); err != nil {
		return pfirestore.WrapError("orders.patch", err)
	}
	return nil
}

// List returns orders matching the filter ordered by creation time descending.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	coll, err := r.collection(ctx)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	pageSize := filter.Pagination.PageSize
	if pageSize <= 0 {
		pageSize = pagination.DefaultPageSize
	}

	query := coll.Query
	if email := strings.TrimSpace(filter.Email); email != "" {
		query = query.Where("email", "==", email)
	}
	if len(filter.Status) == 1 {
		query = query.Where("status", "==", string(filter.Status[0]))
	} else if len(filter.Status) > 1 {
		statuses := make([]string, 0, len(filter.Status))
		for _, s := range filter.Status {
			statuses = append(statuses, string(s))
		}
		query = query.Where("status", "in", statuses)
	}
	if filter.DateRange.From != nil {
		query = query.Where("createdAt", ">=", filter.DateRange.From.UTC())
	}
	if filter.DateRange.To != nil {
		query = query.Where("createdAt", "<=", filter.DateRange.To.UTC())
	}

	query = query.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)

	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		cursor, err := pagination.DecodeToken(token)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, err
		}
		startAfter, err := decodeOrderCursor(cursor)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, err
		}
		if len(startAfter) > 0 {
			query = query.StartAfter(startAfter...)
		}
	}

	iter := query.Limit(pageSize + 1).Documents(ctx)
	defer iter.Stop()

	page := domain.CursorPage[domain.Order]{}
	var lastSnap *firestore.DocumentSnapshot
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.CursorPage[domain.Order]{}, pfirestore.WrapError("orders.list", err)
		}
		if len(page.Items) == pageSize {
			token, err := encodeOrderCursor(lastSnap)
			if err != nil {
				return domain.CursorPage[domain.Order]{}, err
			}
			page.NextPageToken = token
			break
		}
		order, err := decodeOrderDocument(snap)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, err
		}
		page.Items = append(page.Items, order)
		lastSnap = snap
	}
	return page, nil
}

func (r *OrderRepository) collection(ctx context.Context) (*firestore.CollectionRef, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("order repository not initialised")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(ordersCollection), nil
}

func buildOrderUpdates(patch repositories.OrderPatch) ([]firestore.Update, error) {
	updates := make([]firestore.Update, 0, 8)

	if patch.Email != nil {
		email := strings.TrimSpace(*patch.Email)
		if email == "" {
			return nil, errors.New("order repository: email cannot be cleared")
		}
		updates = append(updates, firestore.Update{Path: "email", Value: email})
	}
	if patch.Status != nil {
		if _, ok := validOrderStatuses[*patch.Status]; !ok {
			return nil, fmt.Errorf("order repository: invalid status %q", *patch.Status)
		}
		updates = append(updates, firestore.Update{Path: "status", Value: string(*patch.Status)})
	}
	if patch.FulfillmentStatus != nil {
		if _, ok := validFulfillmentStatuses[*patch.FulfillmentStatus]; !ok {
			return nil, fmt.Errorf("order repository: invalid fulfillment status %q", *patch.FulfillmentStatus)
		}
		updates = append(updates, firestore.Update{Path: "fulfillmentStatus", Value: string(*patch.FulfillmentStatus)})
	}
	if patch.PaymentStatus != nil {
		if _, ok := validPaymentStatuses[*patch.PaymentStatus]; !ok {
			return nil, fmt.Errorf("order repository: invalid payment status %q", *patch.PaymentStatus)
		}
		updates = append(updates, firestore.Update{Path: "paymentStatus", Value: string(*patch.PaymentStatus)})
	}
	if patch.BillingAddress != nil {
		updates = append(updates, firestore.Update{Path: "billingAddress", Value: newAddressDocument(patch.BillingAddress)})
	}
	if patch.ShippingAddress != nil {
		updates = append(updates, firestore.Update{Path: "shippingAddress", Value: newAddressDocument(patch.ShippingAddress)})
	}
	if patch.Items != nil {
		items, err := newLineItemDocuments(*patch.Items)
		if err != nil {
			return nil, err
		}
		updates = append(updates, firestore.Update{Path: "items", Value: items})
	}
	if patch.PaymentMethod != nil {
		updates = append(updates, firestore.Update{Path: "paymentMethod", Value: newPaymentMethodDocument(patch.PaymentMethod)})
	}
	for key, value := range patch.Metadata {
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, errors.New("order repository: metadata key is required")
		}
		updates = append(updates, firestore.Update{Path: "metadata." + key, Value: value})
	}
	for _, key := range patch.MetadataDeletes {
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, errors.New("order repository: metadata key is required")
		}
		updates = append(updates, firestore.Update{Path: "metadata." + key, Value: firestore.Delete})
	}
	if patch.CanceledAt != nil {
		updates = append(updates, firestore.Update{Path: "canceledAt", Value: patch.CanceledAt.UTC()})
	}
	if patch.CapturedAt != nil {
		updates = append(updates, firestore.Update{Path: "capturedAt", Value: patch.CapturedAt.UTC()})
	}
	if patch.FulfilledAt != nil {
		updates = append(updates, firestore.Update{Path: "fulfilledAt", Value: patch.FulfilledAt.UTC()})
	}
	if patch.ArchivedAt != nil {
		updates = append(updates, firestore.Update{Path: "archivedAt", Value: patch.ArchivedAt.UTC()})
	}
	if patch.UpdatedAt != nil {
		updates = append(updates, firestore.Update{Path: "updatedAt", Value: patch.UpdatedAt.UTC()})
	}

	if len(updates) == 0 {
		return nil, errors.New("order repository: empty patch")
	}
	return updates, nil
}

func validateOrderDocument(order domain.Order) error {
	if strings.TrimSpace(order.Email) == "" {
		return errors.New("order repository: email is required")
	}
	if _, ok := validOrderStatuses[order.Status]; !ok {
		return fmt.Errorf("order repository: invalid status %q", order.Status)
	}
	if _, ok := validFulfillmentStatuses[order.FulfillmentStatus]; !ok {
		return fmt.Errorf("order repository: invalid fulfillment status %q", order.FulfillmentStatus)
	}
	if _, ok := validPaymentStatuses[order.PaymentStatus]; !ok {
		return fmt.Errorf("order repository: invalid payment status %q", order.PaymentStatus)
	}
	if _, err := newLineItemDocuments(order.Items); err != nil {
		return err
	}
	return nil
}

func encodeOrderCursor(snap *firestore.DocumentSnapshot) (string, error) {
	if snap == nil {
		return "", nil
	}
	createdAt, err := snap.DataAt("createdAt")
	if err != nil {
		return "", pfirestore.WrapError("orders.cursor", err)
	}
	ts, ok := createdAt.(time.Time)
	if !ok {
		return "", fmt.Errorf("order repository: unexpected createdAt type %T", createdAt)
	}
	return pagination.EncodeToken(pagination.Cursor{
		StartAfter: []any{ts.UTC().Format(time.RFC3339Nano), snap.Ref.ID},
	})
}

func decodeOrderCursor(cursor pagination.Cursor) ([]any, error) {
	if len(cursor.StartAfter) == 0 {
		return nil, nil
	}
	if len(cursor.StartAfter) != 2 {
		return nil, pagination.ErrInvalidPageToken
	}
	rawTime, ok := cursor.StartAfter[0].(string)
	if !ok {
		return nil, pagination.ErrInvalidPageToken
	}
	ts, err := time.Parse(time.RFC3339Nano, rawTime)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pagination.ErrInvalidPageToken, err)
	}
	id, ok := cursor.StartAfter[1].(string)
	if !ok {
		return nil, pagination.ErrInvalidPageToken
	}
	return []any{ts, id}, nil
}

func decodeOrderDocument(snap *firestore.DocumentSnapshot) (domain.Order, error) {
	var doc orderDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.Order{}, fmt.Errorf("decode order %s: %w", snap.Ref.ID, err)
	}
	return doc.toDomain(snap.Ref.ID), nil
}

type orderDocument struct {
	Email             string                 `firestore:"email"`
	Status            string                 `firestore:"status"`
	FulfillmentStatus string                 `firestore:"fulfillmentStatus"`
	PaymentStatus     string                 `firestore:"paymentStatus"`
	Currency          string                 `firestore:"currency,omitempty"`
	TaxRate           float64                `firestore:"taxRate,omitempty"`
	BillingAddress    *addressDocument       `firestore:"billingAddress,omitempty"`
	ShippingAddress   *addressDocument       `firestore:"shippingAddress,omitempty"`
	Items             []lineItemDocument     `firestore:"items"`
	PaymentMethod     *paymentMethodDocument `firestore:"paymentMethod,omitempty"`
	Metadata          map[string]any         `firestore:"metadata,omitempty"`
	CreatedAt         time.Time              `firestore:"createdAt"`
	UpdatedAt         time.Time              `firestore:"updatedAt"`
	CanceledAt        *time.Time             `firestore:"canceledAt,omitempty"`
	CapturedAt        *time.Time             `firestore:"capturedAt,omitempty"`
	FulfilledAt       *time.Time             `firestore:"fulfilledAt,omitempty"`
	ArchivedAt        *time.Time             `firestore:"archivedAt,omitempty"`
}

type addressDocument struct {
	FirstName   string `firestore:"firstName"`
	LastName    string `firestore:"lastName"`
	Company     string `firestore:"company,omitempty"`
	Address1    string `firestore:"address1"`
	Address2    string `firestore:"address2,omitempty"`
	City        string `firestore:"city"`
	CountryCode string `firestore:"countryCode"`
	Province    string `firestore:"province"`
	PostalCode  string `firestore:"postalCode"`
	Phone       string `firestore:"phone,omitempty"`
}

type lineItemDocument struct {
	ID               string              `firestore:"id"`
	Title            string              `firestore:"title"`
	Description      string              `firestore:"description,omitempty"`
	Thumbnail        string              `firestore:"thumbnail,omitempty"`
	Content          lineContentDocument `firestore:"content"`
	Quantity         int                 `firestore:"quantity"`
	ReturnedQuantity int                 `firestore:"returnedQuantity"`
	Metadata         map[string]any      `firestore:"metadata,omitempty"`
}

type lineContentDocument struct {
	UnitPrice int64  `firestore:"unitPrice"`
	VariantID string `firestore:"variantId,omitempty"`
	ProductID string `firestore:"productId,omitempty"`
	Quantity  int    `firestore:"quantity"`
}

type paymentMethodDocument struct {
	ProviderID string         `firestore:"providerId"`
	ProfileID  string         `firestore:"profileId,omitempty"`
	Data       map[string]any `firestore:"data,omitempty"`
}

func newOrderDocument(order domain.Order) orderDocument {
	doc := orderDocument{
		Email:             strings.TrimSpace(order.Email),
		Status:            string(order.Status),
		FulfillmentStatus: string(order.FulfillmentStatus),
		PaymentStatus:     string(order.PaymentStatus),
		Currency:          strings.TrimSpace(order.Currency),
		TaxRate:           order.TaxRate,
		BillingAddress:    newAddressDocument(order.BillingAddress),
		ShippingAddress:   newAddressDocument(order.ShippingAddress),
		PaymentMethod:     newPaymentMethodDocument(order.PaymentMethod),
		Metadata:          order.Metadata,
		CreatedAt:         order.CreatedAt.UTC(),
		UpdatedAt:         order.UpdatedAt.UTC(),
		CanceledAt:        utcTimePtr(order.CanceledAt),
		CapturedAt:        utcTimePtr(order.CapturedAt),
		FulfilledAt:       utcTimePtr(order.FulfilledAt),
		ArchivedAt:        utcTimePtr(order.ArchivedAt),
	}
	items, err := newLineItemDocuments(order.Items)
	if err == nil {
		doc.Items = items
	}
	if doc.Items == nil {
		doc.Items = []lineItemDocument{}
	}
	return doc
}

func newAddressDocument(addr *domain.Address) *addressDocument {
	if addr == nil {
		return nil
	}
	return &addressDocument{
		FirstName:   strings.TrimSpace(addr.FirstName),
		LastName:    strings.TrimSpace(addr.LastName),
		Company:     strings.TrimSpace(addr.Company),
		Address1:    strings.TrimSpace(addr.Address1),
		Address2:    strings.TrimSpace(addr.Address2),
		City:        strings.TrimSpace(addr.City),
		CountryCode: strings.TrimSpace(addr.CountryCode),
		Province:    strings.TrimSpace(addr.Province),
		PostalCode:  strings.TrimSpace(addr.PostalCode),
		Phone:       strings.TrimSpace(addr.Phone),
	}
}

func newPaymentMethodDocument(method *domain.PaymentMethod) *paymentMethodDocument {
	if method == nil {
		return nil
	}
	return &paymentMethodDocument{
		ProviderID: strings.TrimSpace(method.ProviderID),
		ProfileID:  strings.TrimSpace(method.ProfileID),
		Data:       method.Data,
	}
}

func newLineItemDocuments(items []domain.LineItem) ([]lineItemDocument, error) {
	docs := make([]lineItemDocument, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.ID) == "" {
			return nil, errors.New("order repository: line item id is required")
		}
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("order repository: line %s quantity must be positive", item.ID)
		}
		if item.ReturnedQuantity < 0 || item.ReturnedQuantity > item.Quantity {
			return nil, fmt.Errorf("order repository: line %s returned quantity out of range", item.ID)
		}
		docs = append(docs, lineItemDocument{
			ID:          strings.TrimSpace(item.ID),
			Title:       item.Title,
			Description: item.Description,
			Thumbnail:   item.Thumbnail,
			Content: lineContentDocument{
				UnitPrice: item.Content.UnitPrice,
				VariantID: item.Content.VariantID,
				ProductID: item.Content.ProductID,
				Quantity:  item.Content.Quantity,
			},
			Quantity:         item.Quantity,
			ReturnedQuantity: item.ReturnedQuantity,
			Metadata:         item.Metadata,
		})
	}
	return docs, nil
}

func utcTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}

func (d orderDocument) toDomain(id string) domain.Order {
	order := domain.Order{
		ID:                id,
		Email:             d.Email,
		Status:            domain.OrderStatus(d.Status),
		FulfillmentStatus: domain.FulfillmentStatus(d.FulfillmentStatus),
		PaymentStatus:     domain.PaymentStatus(d.PaymentStatus),
		Currency:          d.Currency,
		TaxRate:           d.TaxRate,
		BillingAddress:    d.BillingAddress.toDomain(),
		ShippingAddress:   d.ShippingAddress.toDomain(),
		PaymentMethod:     d.PaymentMethod.toDomain(),
		Metadata:          d.Metadata,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
		CanceledAt:        d.CanceledAt,
		CapturedAt:        d.CapturedAt,
		FulfilledAt:       d.FulfilledAt,
		ArchivedAt:        d.ArchivedAt,
	}
	order.Items = make([]domain.LineItem, 0, len(d.Items))
	for _, item := range d.Items {
		order.Items = append(order.Items, domain.LineItem{
			ID:          item.ID,
			Title:       item.Title,
			Description: item.Description,
			Thumbnail:   item.Thumbnail,
			Content: domain.LineContent{
				UnitPrice: item.Content.UnitPrice,
				VariantID: item.Content.VariantID,
				ProductID: item.Content.ProductID,
				Quantity:  item.Content.Quantity,
			},
			Quantity:         item.Quantity,
			ReturnedQuantity: item.ReturnedQuantity,
			Metadata:         item.Metadata,
		})
	}
	return order
}

func (d *addressDocument) toDomain() *domain.Address {
	if d == nil {
		return nil
	}
	return &domain.Address{
		FirstName:   d.FirstName,
		LastName:    d.LastName,
		Company:     d.Company,
		Address1:    d.Address1,
		Address2:    d.Address2,
		City:        d.City,
		CountryCode: d.CountryCode,
		Province:    d.Province,
		PostalCode:  d.PostalCode,
		Phone:       d.Phone,
	}
}

func (d *paymentMethodDocument) toDomain() *domain.PaymentMethod {
	if d == nil {
		return nil
	}
	return &domain.PaymentMethod{
		ProviderID: d.ProviderID,
		ProfileID:  d.ProfileID,
		Data:       d.Data,
	}
}

// Ensure interface compliance.
var _ repositories.OrderRepository = (*OrderRepository)(nil)
