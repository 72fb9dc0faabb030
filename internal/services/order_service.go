package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/oakmart/api/internal/domain"
	"github.com/oakmart/api/internal/repositories"
)

const (
	orderEventCreated            = "order.created"
	orderEventStatusChanged      = "order.status.changed"
	orderEventPaymentCaptured    = "order.payment.captured"
	orderEventFulfillmentCreated = "order.fulfillment.created"
	orderEventReturnReceived     = "order.return.received"
	orderEventArchived           = "order.archived"

	orderIDPrefix = "ord_"
	lineIDPrefix  = "item_"
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderConflict indicates the order state forbids the requested operation.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrPaymentFailure indicates the payment provider rejected or failed an operation.
	ErrPaymentFailure = errors.New("order: payment failure")
	// ErrFulfillmentFailure indicates the fulfillment provider rejected or failed an operation.
	ErrFulfillmentFailure = errors.New("order: fulfillment failure")
)

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Profiles    ShippingProfileResolver
	Payments    PaymentProcessor
	Fulfillment FulfillmentDispatcher
	UnitOfWork  repositories.UnitOfWork
	Clock       func() time.Time
	IDGenerator func() string
	Events      OrderEventPublisher
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders      repositories.OrderRepository
	profiles    ShippingProfileResolver
	payments    PaymentProcessor
	fulfillment FulfillmentDispatcher
	unitOfWork  repositories.UnitOfWork
	clock       func() time.Time
	newID       func() string
	events      OrderEventPublisher
	logger      func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}

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

	return &orderService{
		orders:      deps.Orders,
		profiles:    deps.Profiles,
		payments:    deps.Payments,
		fulfillment: deps.Fulfillment,
		unitOfWork:  unit,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		events: deps.Events,
		logger: logger,
	}, nil
}

func (s *orderService) Create(ctx context.Context, cmd CreateOrderCommand) (Order, error) {
	email := strings.TrimSpace(cmd.Email)
	if email == "" {
		return Order{}, fmt.Errorf("%w: email is required", ErrOrderInvalidInput)
	}
	if !strings.Contains(email, "@") {
		return Order{}, fmt.Errorf("%w: email %q is not valid", ErrOrderInvalidInput, email)
	}
	if len(cmd.Items) == 0 {
		return Order{}, fmt.Errorf("%w: order must contain at least one item", ErrOrderInvalidInput)
	}
	if cmd.TaxRate < 0 {
		return Order{}, fmt.Errorf("%w: tax rate cannot be negative", ErrOrderInvalidInput)
	}
	if cmd.BillingAddress != nil {
		if err := validateAddress(cmd.BillingAddress); err != nil {
			return Order{}, err
		}
	}
	if cmd.ShippingAddress != nil {
		if err := validateAddress(cmd.ShippingAddress); err != nil {
			return Order{}, err
		}
	}

	items := make([]LineItem, 0, len(cmd.Items))
	for _, input := range cmd.Items {
		title := strings.TrimSpace(input.Title)
		if title == "" {
			return Order{}, fmt.Errorf("%w: line item title is required", ErrOrderInvalidInput)
		}
		if input.Quantity <= 0 {
			return Order{}, fmt.Errorf("%w: line item quantity must be positive", ErrOrderInvalidInput)
		}
		items = append(items, LineItem{
			ID:          lineIDPrefix + s.newID(),
			Title:       title,
			Description: strings.TrimSpace(input.Description),
			Thumbnail:   strings.TrimSpace(input.Thumbnail),
			Content:     input.Content,
			Quantity:    input.Quantity,
			Metadata:    cloneMap(input.Metadata),
		})
	}

	now := s.now()
	order := Order{
		ID:                s.nextOrderID(),
		Email:             email,
		Status:            domain.OrderStatusPending,
		FulfillmentStatus: domain.FulfillmentStatusNotFulfilled,
		PaymentStatus:     domain.PaymentStatusAwaiting,
		Currency:          strings.ToLower(strings.TrimSpace(cmd.Currency)),
		TaxRate:           cmd.TaxRate,
		BillingAddress:    cloneAddress(cmd.BillingAddress),
		ShippingAddress:   cloneAddress(cmd.ShippingAddress),
		Items:             items,
		PaymentMethod:     clonePaymentMethod(cmd.PaymentMethod),
		Metadata:          cloneMap(cmd.Metadata),
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	err := s.runInTx(ctx, func(txCtx context.Context) error {
		if err := s.orders.Insert(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	s.publishEvent(ctx, OrderEvent{
		Type:          orderEventCreated,
		OrderID:       order.ID,
		CurrentStatus: string(order.Status),
		PaymentStatus: string(order.PaymentStatus),
		OccurredAt:    now,
		Metadata:      cloneMap(order.Metadata),
	})

	return order, nil
}

func (s *orderService) Get(ctx context.Context, orderID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	return order, nil
}

func (s *orderService) List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error) {
	page, err := s.orders.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[Order]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *orderService) Update(ctx context.Context, cmd UpdateOrderCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if cmd.Metadata != nil {
		// An empty metadata object is still a metadata update.
		return Order{}, fmt.Errorf("%w: use SetMetadata to update metadata fields", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	if cmd.BillingAddress != nil {
		if err := validateAddress(cmd.BillingAddress); err != nil {
			return Order{}, err
		}
	}
	if cmd.ShippingAddress != nil {
		if err := validateAddress(cmd.ShippingAddress); err != nil {
			return Order{}, err
		}
	}

	touchesRestricted := cmd.BillingAddress != nil ||
		cmd.ShippingAddress != nil ||
		cmd.Items != nil ||
		cmd.PaymentMethod != nil
	if touchesRestricted && isProcessed(order) {
		return Order{}, fmt.Errorf("%w: can't update shipping, billing, items and payment method when order is processed", ErrOrderConflict)
	}

	now := s.now()
	prevStatus := order.Status
	patch := repositories.OrderPatch{UpdatedAt: &now}

	if cmd.Email != nil {
		email := strings.TrimSpace(*cmd.Email)
		if email == "" || !strings.Contains(email, "@") {
			return Order{}, fmt.Errorf("%w: email %q is not valid", ErrOrderInvalidInput, *cmd.Email)
		}
		patch.Email = &email
	}
	if cmd.Status != nil {
		status := *cmd.Status
		switch status {
		case domain.OrderStatusPending, domain.OrderStatusCompleted, domain.OrderStatusArchived, domain.OrderStatusCancelled:
		default:
			return Order{}, fmt.Errorf("%w: invalid status %q", ErrOrderInvalidInput, status)
		}
		patch.Status = &status
	}
	if cmd.BillingAddress != nil {
		patch.BillingAddress = cloneAddress(cmd.BillingAddress)
	}
	if cmd.ShippingAddress != nil {
		patch.ShippingAddress = cloneAddress(cmd.ShippingAddress)
	}
	if cmd.Items != nil {
		items := *cmd.Items
		for _, item := range items {
			if strings.TrimSpace(item.ID) == "" {
				return Order{}, fmt.Errorf("%w: line item id is required", ErrOrderInvalidInput)
			}
			if item.Quantity <= 0 {
				return Order{}, fmt.Errorf("%w: line item quantity must be positive", ErrOrderInvalidInput)
			}
			if item.ReturnedQuantity < 0 || item.ReturnedQuantity > item.Quantity {
				return Order{}, fmt.Errorf("%w: returned quantity out of range for line %s", ErrOrderInvalidInput, item.ID)
			}
		}
		patch.Items = &items
	}
	if cmd.PaymentMethod != nil {
		patch.PaymentMethod = clonePaymentMethod(cmd.PaymentMethod)
	}

	if err := s.patchOrder(ctx, orderID, patch); err != nil {
		return Order{}, err
	}
	applyOrderPatch(&order, patch)

	if patch.Status != nil && *patch.Status != prevStatus {
		s.publishEvent(ctx, OrderEvent{
			Type:           orderEventStatusChanged,
			OrderID:        order.ID,
			PreviousStatus: string(prevStatus),
			CurrentStatus:  string(order.Status),
			OccurredAt:     now,
		})
	}

	return order, nil
}

func (s *orderService) SetMetadata(ctx context.Context, orderID string, key string, value any) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return Order{}, fmt.Errorf("%w: metadata key is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	now := s.now()
	patch := repositories.OrderPatch{
		Metadata:  map[string]any{key: value},
		UpdatedAt: &now,
	}
	if err := s.patchOrder(ctx, orderID, patch); err != nil {
		return Order{}, err
	}
	applyOrderPatch(&order, patch)
	return order, nil
}

func (s *orderService) DeleteMetadata(ctx context.Context, orderID string, key string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return Order{}, fmt.Errorf("%w: metadata key is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	now := s.now()
	patch := repositories.OrderPatch{
		MetadataDeletes: []string{key},
		UpdatedAt:       &now,
	}
	if err := s.patchOrder(ctx, orderID, patch); err != nil {
		return Order{}, err
	}
	applyOrderPatch(&order, patch)
	return order, nil
}

func (s *orderService) Cancel(ctx context.Context, orderID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	if order.FulfillmentStatus != domain.FulfillmentStatusNotFulfilled {
		return Order{}, fmt.Errorf("%w: can't cancel a fulfilled order", ErrOrderConflict)
	}
	if order.PaymentStatus != domain.PaymentStatusAwaiting {
		return Order{}, fmt.Errorf("%w: can't cancel an order with payment processed", ErrOrderConflict)
	}

	now := s.now()
	prevStatus := order.Status
	cancelled := domain.OrderStatusCancelled
	patch := repositories.OrderPatch{
		Status:     &cancelled,
		CanceledAt: &now,
		UpdatedAt:  &now,
	}
	if err := s.patchOrder(ctx, orderID, patch); err != nil {
		return Order{}, err
	}
	applyOrderPatch(&order, patch)

	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventStatusChanged,
		OrderID:        order.ID,
		PreviousStatus: string(prevStatus),
		CurrentStatus:  string(order.Status),
		OccurredAt:     now,
	})

	return order, nil
}

func (s *orderService) CapturePayment(ctx context.Context, orderID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	if order.PaymentStatus == domain.PaymentStatusCaptured {
		return Order{}, fmt.Errorf("%w: payment already captured", ErrOrderConflict)
	}

	var result PaymentCaptureResult
	if s.payments != nil {
		result, err = s.payments.Capture(ctx, order)
		if err != nil {
			return Order{}, fmt.Errorf("%w: %v", ErrPaymentFailure, err)
		}
	}

	now := s.now()
	captured := domain.PaymentStatusCaptured
	patch := repositories.OrderPatch{
		PaymentStatus: &captured,
		CapturedAt:    &now,
		UpdatedAt:     &now,
	}
	if err := s.patchOrder(ctx, orderID, patch); err != nil {
		return Order{}, err
	}
	applyOrderPatch(&order, patch)

	metadata := map[string]any{}
	if result.Reference != "" {
		metadata["paymentReference"] = result.Reference
	}
	if result.Amount > 0 {
		metadata["amount"] = result.Amount
	}
	s.publishEvent(ctx, OrderEvent{
		Type:          orderEventPaymentCaptured,
		OrderID:       order.ID,
		CurrentStatus: string(order.Status),
		PaymentStatus: string(order.PaymentStatus),
		OccurredAt:    now,
		Metadata:      metadata,
	})

	return order, nil
}

func (s *orderService) CreateFulfillment(ctx context.Context, orderID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	if order.FulfillmentStatus == domain.FulfillmentStatusFulfilled {
		return Order{}, fmt.Errorf("%w: order is already fulfilled", ErrOrderConflict)
	}

	var (
		profile  ShippingProfile
		shipment Shipment
	)
	if s.profiles != nil {
		profile, err = s.profiles.ResolveForOrder(ctx, order)
		if err != nil {
			return Order{}, fmt.Errorf("%w: %v", ErrFulfillmentFailure, err)
		}
	}
	if s.fulfillment != nil {
		shipment, err = s.fulfillment.CreateFulfillment(ctx, order, profile)
		if err != nil {
			return Order{}, fmt.Errorf("%w: %v", ErrFulfillmentFailure, err)
		}
	}

	now := s.now()
	fulfilled := domain.FulfillmentStatusFulfilled
	patch := repositories.OrderPatch{
		FulfillmentStatus: &fulfilled,
		FulfilledAt:       &now,
		UpdatedAt:         &now,
	}
	if err := s.patchOrder(ctx, orderID, patch); err != nil {
		return Order{}, err
	}
	applyOrderPatch(&order, patch)

	metadata := map[string]any{}
	if shipment.ID != "" {
		metadata["shipmentId"] = shipment.ID
	}
	if shipment.ProviderID != "" {
		metadata["providerId"] = shipment.ProviderID
	}
	if len(shipment.TrackingNumbers) > 0 {
		metadata["trackingNumbers"] = shipment.TrackingNumbers
	}
	s.publishEvent(ctx, OrderEvent{
		Type:              orderEventFulfillmentCreated,
		OrderID:           order.ID,
		CurrentStatus:     string(order.Status),
		FulfillmentStatus: string(order.FulfillmentStatus),
		OccurredAt:        now,
		Metadata:          metadata,
	})

	return order, nil
}

func (s *orderService) Return(ctx context.Context, cmd ReturnOrderCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if len(cmd.Lines) == 0 {
		return Order{}, fmt.Errorf("%w: a return must name at least one line", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	if order.PaymentStatus != domain.PaymentStatusCaptured {
		return Order{}, fmt.Errorf("%w: can't return an order with payment unprocessed", ErrOrderConflict)
	}
	switch order.FulfillmentStatus {
	case domain.FulfillmentStatusNotFulfilled, domain.FulfillmentStatusReturned:
		return Order{}, fmt.Errorf("%w: can't return an unfulfilled or already returned order", ErrOrderConflict)
	}

	items := cloneLineItems(order.Items)
	index := make(map[string]int, len(items))
	for i := range items {
		index[items[i].ID] = i
	}

	for _, line := range cmd.Lines {
		itemID := strings.TrimSpace(line.ItemID)
		if itemID == "" {
			return Order{}, fmt.Errorf("%w: return line item id is required", ErrOrderInvalidInput)
		}
		if line.Quantity <= 0 {
			return Order{}, fmt.Errorf("%w: return quantity must be positive", ErrOrderInvalidInput)
		}

		pos, ok := index[itemID]
		if !ok {
			// Unknown line ids are appended with the supplied fields; none of
			// their units count as returned yet.
			appended := LineItem{
				ID:          itemID,
				Title:       strings.TrimSpace(line.Title),
				Description: strings.TrimSpace(line.Description),
				Thumbnail:   strings.TrimSpace(line.Thumbnail),
				Quantity:    line.Quantity,
			}
			if line.Content != nil {
				appended.Content = *line.Content
			}
			items = append(items, appended)
			index[itemID] = len(items) - 1
			continue
		}

		item := &items[pos]
		if title := strings.TrimSpace(line.Title); title != "" {
			item.Title = title
		}
		if description := strings.TrimSpace(line.Description); description != "" {
			item.Description = description
		}
		if thumbnail := strings.TrimSpace(line.Thumbnail); thumbnail != "" {
			item.Thumbnail = thumbnail
		}
		if line.Content != nil {
			item.Content = *line.Content
		}
		outstanding := item.Quantity - item.ReturnedQuantity
		if line.Quantity > outstanding {
			return Order{}, fmt.Errorf("%w: return quantity %d exceeds the %d outstanding units of line %s",
				ErrOrderInvalidInput, line.Quantity, outstanding, item.ID)
		}
		item.ReturnedQuantity += line.Quantity
	}

	newStatus := domain.FulfillmentStatusReturned
	for _, item := range items {
		if item.ReturnedQuantity != item.Quantity {
			newStatus = domain.FulfillmentStatusPartiallyFulfilled
			break
		}
	}

	refundable := refundableAmount(order)
	refund := returnRefundAmount(order, cmd.Lines)
	if refund > refundable {
		refund = refundable
	}
	if cmd.Refund != nil {
		if *cmd.Refund < 0 {
			return Order{}, fmt.Errorf("%w: refund amount cannot be negative", ErrOrderInvalidInput)
		}
		if *cmd.Refund > refundable {
			return Order{}, fmt.Errorf("%w: refund amount %d exceeds the %d still refundable",
				ErrOrderInvalidInput, *cmd.Refund, refundable)
		}
		refund = *cmd.Refund
	}

	if s.payments != nil && refund > 0 {
		if _, err := s.payments.Refund(ctx, order, refund, "return"); err != nil {
			return Order{}, fmt.Errorf("%w: %v", ErrPaymentFailure, err)
		}
	}

	now := s.now()
	patch := repositories.OrderPatch{
		Items:             &items,
		FulfillmentStatus: &newStatus,
		UpdatedAt:         &now,
	}
	if err := s.patchOrder(ctx, orderID, patch); err != nil {
		return Order{}, err
	}
	applyOrderPatch(&order, patch)

	s.publishEvent(ctx, OrderEvent{
		Type:              orderEventReturnReceived,
		OrderID:           order.ID,
		CurrentStatus:     string(order.Status),
		FulfillmentStatus: string(order.FulfillmentStatus),
		OccurredAt:        now,
		Metadata: map[string]any{
			"refundAmount": refund,
		},
	})

	return order, nil
}

func (s *orderService) Archive(ctx context.Context, orderID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	if !isProcessed(order) {
		return Order{}, fmt.Errorf("%w: can't archive an unprocessed order", ErrOrderConflict)
	}

	now := s.now()
	prevStatus := order.Status
	archived := domain.OrderStatusArchived
	patch := repositories.OrderPatch{
		Status:     &archived,
		ArchivedAt: &now,
		UpdatedAt:  &now,
	}
	if err := s.patchOrder(ctx, orderID, patch); err != nil {
		return Order{}, err
	}
	applyOrderPatch(&order, patch)

	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventArchived,
		OrderID:        order.ID,
		PreviousStatus: string(prevStatus),
		CurrentStatus:  string(order.Status),
		OccurredAt:     now,
	})

	return order, nil
}

// isProcessed reports whether money or goods already moved for the order.
func isProcessed(order Order) bool {
	return order.PaymentStatus != domain.PaymentStatusAwaiting ||
		order.FulfillmentStatus != domain.FulfillmentStatusNotFulfilled
}

func validateAddress(addr *Address) error {
	if addr == nil {
		return nil
	}
	required := []string{
		addr.FirstName,
		addr.LastName,
		addr.Address1,
		addr.City,
		addr.CountryCode,
		addr.Province,
		addr.PostalCode,
	}
	for _, field := range required {
		if strings.TrimSpace(field) == "" {
			return fmt.Errorf("%w: the address is not valid", ErrOrderInvalidInput)
		}
	}
	return nil
}

func (s *orderService) patchOrder(ctx context.Context, orderID string, patch repositories.OrderPatch) error {
	return s.runInTx(ctx, func(txCtx context.Context) error {
		if err := s.orders.Patch(txCtx, orderID, patch); err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
}

// applyOrderPatch mirrors a persisted patch onto the in-memory copy handed
// back to callers.
func applyOrderPatch(order *Order, patch repositories.OrderPatch) {
	if patch.Email != nil {
		order.Email = *patch.Email
	}
	if patch.Status != nil {
		order.Status = *patch.Status
	}
	if patch.FulfillmentStatus != nil {
		order.FulfillmentStatus = *patch.FulfillmentStatus
	}
	if patch.PaymentStatus != nil {
		order.PaymentStatus = *patch.PaymentStatus
	}
	if patch.BillingAddress != nil {
		order.BillingAddress = cloneAddress(patch.BillingAddress)
	}
	if patch.ShippingAddress != nil {
		order.ShippingAddress = cloneAddress(patch.ShippingAddress)
	}
	if patch.Items != nil {
		order.Items = cloneLineItems(*patch.Items)
	}
	if patch.PaymentMethod != nil {
		order.PaymentMethod = clonePaymentMethod(patch.PaymentMethod)
	}
	if len(patch.Metadata) > 0 || len(patch.MetadataDeletes) > 0 {
		metadata := cloneMap(order.Metadata)
		if metadata == nil {
			metadata = map[string]any{}
		}
		for k, v := range patch.Metadata {
			metadata[k] = v
		}
		for _, k := range patch.MetadataDeletes {
			delete(metadata, k)
		}
		order.Metadata = metadata
	}
	if patch.CanceledAt != nil {
		order.CanceledAt = patch.CanceledAt
	}
	if patch.CapturedAt != nil {
		order.CapturedAt = patch.CapturedAt
	}
	if patch.FulfilledAt != nil {
		order.FulfilledAt = patch.FulfilledAt
	}
	if patch.ArchivedAt != nil {
		order.ArchivedAt = patch.ArchivedAt
	}
	if patch.UpdatedAt != nil {
		order.UpdatedAt = *patch.UpdatedAt
	}
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("order: repository unavailable: %w", err)
		}
	}

	return err
}

func (s *orderService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}

func (s *orderService) now() time.Time {
	return s.clock()
}

func (s *orderService) nextOrderID() string {
	return orderIDPrefix + s.newID()
}

func (s *orderService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if event.Metadata != nil {
		event.Metadata = maps.Clone(event.Metadata)
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":   event.Type,
			"order":  event.OrderID,
			"error":  err.Error(),
			"status": event.CurrentStatus,
		})
	}
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func cloneAddress(addr *Address) *Address {
	if addr == nil {
		return nil
	}
	cloned := *addr
	return &cloned
}

func clonePaymentMethod(method *PaymentMethod) *PaymentMethod {
	if method == nil {
		return nil
	}
	cloned := *method
	cloned.Data = cloneMap(method.Data)
	return &cloned
}

func cloneLineItems(items []LineItem) []LineItem {
	cloned := make([]LineItem, len(items))
	for i, item := range items {
		cloned[i] = item
		cloned[i].Metadata = cloneMap(item.Metadata)
	}
	return cloned
}

func cloneMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	return maps.Clone(src)
}
