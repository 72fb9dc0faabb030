package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/oakmart/api/internal/domain"
	"github.com/oakmart/api/internal/services"
)

type stubOrderService struct {
	createFn      func(context.Context, services.CreateOrderCommand) (services.Order, error)
	getFn         func(context.Context, string) (services.Order, error)
	listFn        func(context.Context, services.OrderListFilter) (domain.CursorPage[services.Order], error)
	updateFn      func(context.Context, services.UpdateOrderCommand) (services.Order, error)
	setMetaFn     func(context.Context, string, string, any) (services.Order, error)
	deleteMetaFn  func(context.Context, string, string) (services.Order, error)
	cancelFn      func(context.Context, string) (services.Order, error)
	captureFn     func(context.Context, string) (services.Order, error)
	fulfillFn     func(context.Context, string) (services.Order, error)
	returnFn      func(context.Context, services.ReturnOrderCommand) (services.Order, error)
	archiveFn     func(context.Context, string) (services.Order, error)
}

func (s *stubOrderService) Create(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error) {
	if s.createFn != nil {
		return s.createFn(ctx, cmd)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) Get(ctx context.Context, orderID string) (services.Order, error) {
	if s.getFn != nil {
		return s.getFn(ctx, orderID)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) List(ctx context.Context, filter services.OrderListFilter) (domain.CursorPage[services.Order], error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return domain.CursorPage[services.Order]{}, nil
}

func (s *stubOrderService) Update(ctx context.Context, cmd services.UpdateOrderCommand) (services.Order, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, cmd)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) SetMetadata(ctx context.Context, orderID, key string, value any) (services.Order, error) {
	if s.setMetaFn != nil {
		return s.setMetaFn(ctx, orderID, key, value)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) DeleteMetadata(ctx context.Context, orderID, key string) (services.Order, error) {
	if s.deleteMetaFn != nil {
		return s.deleteMetaFn(ctx, orderID, key)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) Cancel(ctx context.Context, orderID string) (services.Order, error) {
	if s.cancelFn != nil {
		return s.cancelFn(ctx, orderID)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) CapturePayment(ctx context.Context, orderID string) (services.Order, error) {
	if s.captureFn != nil {
		return s.captureFn(ctx, orderID)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) CreateFulfillment(ctx context.Context, orderID string) (services.Order, error) {
	if s.fulfillFn != nil {
		return s.fulfillFn(ctx, orderID)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) Return(ctx context.Context, cmd services.ReturnOrderCommand) (services.Order, error) {
	if s.returnFn != nil {
		return s.returnFn(ctx, cmd)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) Archive(ctx context.Context, orderID string) (services.Order, error) {
	if s.archiveFn != nil {
		return s.archiveFn(ctx, orderID)
	}
	return services.Order{}, errors.New("not implemented")
}

func newOrdersRouter(service services.OrderService) chi.Router {
	handler := NewOrderHandlers(service)
	router := chi.NewRouter()
	router.Route("/orders", handler.Routes)
	return router
}

func sampleOrder() services.Order {
	created := time.Date(2025, 4, 10, 12, 0, 0, 0, time.UTC)
	return services.Order{
		ID:                "ord_123",
		Email:             "dante@example.com",
		Status:            domain.OrderStatusPending,
		FulfillmentStatus: domain.FulfillmentStatusNotFulfilled,
		PaymentStatus:     domain.PaymentStatusAwaiting,
		Currency:          "eur",
		TaxRate:           0.25,
		Items: []services.LineItem{
			{
				ID:       "item_1",
				Title:    "Left glove",
				Quantity: 2,
				Content:  services.LineContent{UnitPrice: 500, ProductID: "prod_1", Quantity: 1},
			},
		},
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestOrderHandlersCreateOrder(t *testing.T) {
	var captured services.CreateOrderCommand
	service := &stubOrderService{
		createFn: func(_ context.Context, cmd services.CreateOrderCommand) (services.Order, error) {
			captured = cmd
			return sampleOrder(), nil
		},
	}
	router := newOrdersRouter(service)

	body := `{
		"email": "dante@example.com",
		"currency": "EUR",
		"tax_rate": 0.25,
		"items": [
			{"title": "Left glove", "quantity": 2, "content": {"unit_price": 500, "product_id": "prod_1", "quantity": 1}}
		],
		"payment_method": {"provider_id": "stripe", "data": {"paymentIntentId": "pi_1"}}
	}`

	req := httptest.NewRequest(http.MethodPost, "/orders/", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.Email != "dante@example.com" {
		t.Fatalf("unexpected email %q", captured.Email)
	}
	if len(captured.Items) != 1 || captured.Items[0].Content.UnitPrice != 500 {
		t.Fatalf("unexpected items %+v", captured.Items)
	}
	if captured.PaymentMethod == nil || captured.PaymentMethod.ProviderID != "stripe" {
		t.Fatalf("unexpected payment method %+v", captured.PaymentMethod)
	}

	var payload orderResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Order.ID != "ord_123" {
		t.Fatalf("unexpected order id %s", payload.Order.ID)
	}
	if payload.Order.Totals.Subtotal != 1000 || payload.Order.Totals.Tax != 250 || payload.Order.Totals.Total != 1250 {
		t.Fatalf("unexpected totals %+v", payload.Order.Totals)
	}
}

func TestOrderHandlersCreateOrderInvalidJSON(t *testing.T) {
	router := newOrdersRouter(&stubOrderService{})

	req := httptest.NewRequest(http.MethodPost, "/orders/", bytes.NewBufferString("{nope"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestOrderHandlersListOrders(t *testing.T) {
	var captured services.OrderListFilter
	service := &stubOrderService{
		listFn: func(_ context.Context, filter services.OrderListFilter) (domain.CursorPage[services.Order], error) {
			captured = filter
			return domain.CursorPage[services.Order]{
				Items:         []services.Order{sampleOrder()},
				NextPageToken: "tok-next",
			}, nil
		},
	}
	router := newOrdersRouter(service)

	target := "/orders/?pageSize=5" +
		"&filter=" + escapeQuery("email==dante@example.com") +
		"&filter=" + escapeQuery("status==pending") +
		"&filter=" + escapeQuery("createdAt>=2025-03-01T00:00:00Z") +
		"&filter=" + escapeQuery("createdAt<=2025-04-01T00:00:00Z")
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.Email != "dante@example.com" {
		t.Fatalf("unexpected email filter %q", captured.Email)
	}
	if len(captured.Status) != 1 || captured.Status[0] != domain.OrderStatusPending {
		t.Fatalf("unexpected status filter %v", captured.Status)
	}
	if captured.DateRange.From == nil || !captured.DateRange.From.Equal(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected from filter %v", captured.DateRange.From)
	}
	if captured.DateRange.To == nil || !captured.DateRange.To.Equal(time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected to filter %v", captured.DateRange.To)
	}
	if captured.Pagination.PageSize != 5 {
		t.Fatalf("unexpected page size %d", captured.Pagination.PageSize)
	}

	var payload orderListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Items) != 1 || payload.NextPageToken != "tok-next" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestOrderHandlersListOrdersRejectsInvalidStatus(t *testing.T) {
	router := newOrdersRouter(&stubOrderService{})

	req := httptest.NewRequest(http.MethodGet, "/orders/?filter="+escapeQuery("status==bogus"), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestOrderHandlersGetOrderNotFound(t *testing.T) {
	service := &stubOrderService{
		getFn: func(_ context.Context, orderID string) (services.Order, error) {
			return services.Order{}, fmt.Errorf("%w: order %s", services.ErrOrderNotFound, orderID)
		},
	}
	router := newOrdersRouter(service)

	req := httptest.NewRequest(http.MethodGet, "/orders/ord_missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "order_not_found") {
		t.Fatalf("expected order_not_found code, got %s", rec.Body.String())
	}
}

func TestOrderHandlersUpdateOrder(t *testing.T) {
	var captured services.UpdateOrderCommand
	service := &stubOrderService{
		updateFn: func(_ context.Context, cmd services.UpdateOrderCommand) (services.Order, error) {
			captured = cmd
			return sampleOrder(), nil
		},
	}
	router := newOrdersRouter(service)

	body := `{"email": "virgil@example.com", "status": "completed"}`
	req := httptest.NewRequest(http.MethodPatch, "/orders/ord_123", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.OrderID != "ord_123" {
		t.Fatalf("unexpected order id %q", captured.OrderID)
	}
	if captured.Email == nil || *captured.Email != "virgil@example.com" {
		t.Fatalf("unexpected email %+v", captured.Email)
	}
	if captured.Status == nil || *captured.Status != domain.OrderStatusCompleted {
		t.Fatalf("unexpected status %+v", captured.Status)
	}
	if captured.Items != nil {
		t.Fatalf("items should stay nil when omitted")
	}
}

func TestOrderHandlersCancelOrder(t *testing.T) {
	service := &stubOrderService{
		cancelFn: func(_ context.Context, orderID string) (services.Order, error) {
			cancelled := sampleOrder()
			cancelled.Status = domain.OrderStatusCancelled
			return cancelled, nil
		},
	}
	router := newOrdersRouter(service)

	req := httptest.NewRequest(http.MethodPost, "/orders/ord_123:cancel", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var payload orderResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Order.Status != "cancelled" {
		t.Fatalf("expected cancelled status, got %s", payload.Order.Status)
	}
}

func TestOrderHandlersCancelConflict(t *testing.T) {
	service := &stubOrderService{
		cancelFn: func(_ context.Context, _ string) (services.Order, error) {
			return services.Order{}, fmt.Errorf("%w: can't cancel a fulfilled order", services.ErrOrderConflict)
		},
	}
	router := newOrdersRouter(service)

	req := httptest.NewRequest(http.MethodPost, "/orders/ord_123:cancel", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "can't cancel a fulfilled order") {
		t.Fatalf("expected guard message, got %s", rec.Body.String())
	}
}

func TestOrderHandlersCapturePaymentFailure(t *testing.T) {
	service := &stubOrderService{
		captureFn: func(_ context.Context, _ string) (services.Order, error) {
			return services.Order{}, fmt.Errorf("%w: provider declined", services.ErrPaymentFailure)
		},
	}
	router := newOrdersRouter(service)

	req := httptest.NewRequest(http.MethodPost, "/orders/ord_123:capture", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", rec.Code)
	}
}

func TestOrderHandlersFulfillmentFailure(t *testing.T) {
	service := &stubOrderService{
		fulfillFn: func(_ context.Context, _ string) (services.Order, error) {
			return services.Order{}, fmt.Errorf("%w: carrier timeout", services.ErrFulfillmentFailure)
		},
	}
	router := newOrdersRouter(service)

	req := httptest.NewRequest(http.MethodPost, "/orders/ord_123:fulfill", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
}

func TestOrderHandlersReturnOrder(t *testing.T) {
	var captured services.ReturnOrderCommand
	service := &stubOrderService{
		returnFn: func(_ context.Context, cmd services.ReturnOrderCommand) (services.Order, error) {
			captured = cmd
			returned := sampleOrder()
			returned.FulfillmentStatus = domain.FulfillmentStatusPartiallyFulfilled
			return returned, nil
		},
	}
	router := newOrdersRouter(service)

	body := `{"items": [{"item_id": "item_1", "quantity": 1, "title": "Left glove", "content": {"unit_price": 500, "product_id": "prod_1", "quantity": 1}}], "refund": 625}`
	req := httptest.NewRequest(http.MethodPost, "/orders/ord_123:return", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.OrderID != "ord_123" {
		t.Fatalf("unexpected order id %q", captured.OrderID)
	}
	if len(captured.Lines) != 1 || captured.Lines[0].ItemID != "item_1" || captured.Lines[0].Quantity != 1 {
		t.Fatalf("unexpected lines %+v", captured.Lines)
	}
	if captured.Lines[0].Title != "Left glove" {
		t.Fatalf("expected descriptive fields forwarded got %+v", captured.Lines[0])
	}
	if captured.Lines[0].Content == nil || captured.Lines[0].Content.UnitPrice != 500 {
		t.Fatalf("expected line content forwarded got %+v", captured.Lines[0].Content)
	}
	if captured.Refund == nil || *captured.Refund != 625 {
		t.Fatalf("unexpected refund %+v", captured.Refund)
	}
}

func TestOrderHandlersArchiveOrder(t *testing.T) {
	service := &stubOrderService{
		archiveFn: func(_ context.Context, orderID string) (services.Order, error) {
			archived := sampleOrder()
			archived.Status = domain.OrderStatusArchived
			return archived, nil
		},
	}
	router := newOrdersRouter(service)

	req := httptest.NewRequest(http.MethodPost, "/orders/ord_123:archive", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestOrderHandlersSetMetadata(t *testing.T) {
	var capturedKey string
	var capturedValue any
	service := &stubOrderService{
		setMetaFn: func(_ context.Context, orderID, key string, value any) (services.Order, error) {
			capturedKey = key
			capturedValue = value
			return sampleOrder(), nil
		},
	}
	router := newOrdersRouter(service)

	req := httptest.NewRequest(http.MethodPut, "/orders/ord_123/metadata/color", bytes.NewBufferString(`{"value": "red"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if capturedKey != "color" {
		t.Fatalf("unexpected key %q", capturedKey)
	}
	if capturedValue != "red" {
		t.Fatalf("unexpected value %v", capturedValue)
	}
}

func TestOrderHandlersDeleteMetadata(t *testing.T) {
	var capturedKey string
	service := &stubOrderService{
		deleteMetaFn: func(_ context.Context, orderID, key string) (services.Order, error) {
			capturedKey = key
			return sampleOrder(), nil
		},
	}
	router := newOrdersRouter(service)

	req := httptest.NewRequest(http.MethodDelete, "/orders/ord_123/metadata/color", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if capturedKey != "color" {
		t.Fatalf("unexpected key %q", capturedKey)
	}
}

func escapeQuery(value string) string {
	replacer := strings.NewReplacer(
		"=", "%3D",
		">", "%3E",
		"<", "%3C",
		"@", "%40",
		":", "%3A",
		"+", "%2B",
	)
	return replacer.Replace(value)
}
