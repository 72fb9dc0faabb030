package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/oakmart/api/internal/domain"
	"github.com/oakmart/api/internal/platform/httpx"
	"github.com/oakmart/api/internal/platform/pagination"
	"github.com/oakmart/api/internal/services"
)

const (
	defaultOrderPageSize = 20
	maxOrderPageSize     = 100
	maxOrderBodySize     = 64 * 1024
	maxMetadataBodySize  = 16 * 1024
)

var (
	errEmptyBody    = errors.New("request body is empty")
	errBodyTooLarge = errors.New("request body too large")
)

var validOrderStatuses = map[domain.OrderStatus]struct{}{
	domain.OrderStatusPending:   {},
	domain.OrderStatusCompleted: {},
	domain.OrderStatusArchived:  {},
	domain.OrderStatusCancelled: {},
}

// OrderHandlers exposes the order lifecycle endpoints.
type OrderHandlers struct {
	orders      services.OrderService
	maxPageSize int
}

// OrderHandlerOption customises the order handlers.
type OrderHandlerOption func(*OrderHandlers)

// WithOrderMaxPageSize caps the page size accepted by the list endpoint.
func WithOrderMaxPageSize(limit int) OrderHandlerOption {
	return func(h *OrderHandlers) {
		if limit > 0 {
			h.maxPageSize = limit
		}
	}
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(orders services.OrderService, opts ...OrderHandlerOption) *OrderHandlers {
	h := &OrderHandlers{orders: orders, maxPageSize: maxOrderPageSize}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.createOrder)
	r.Get("/", h.listOrders)
	r.Get("/{orderID}", h.getOrder)
	r.Patch("/{orderID}", h.updateOrder)
	r.Post("/{orderID}:cancel", h.cancelOrder)
	r.Post("/{orderID}:capture", h.capturePayment)
	r.Post("/{orderID}:fulfill", h.createFulfillment)
	r.Post("/{orderID}:return", h.returnOrder)
	r.Post("/{orderID}:archive", h.archiveOrder)
	r.Put("/{orderID}/metadata/{key}", h.setMetadata)
	r.Delete("/{orderID}/metadata/{key}", h.deleteMetadata)
}

type createOrderRequest struct {
	Email           string                 `json:"email"`
	Currency        string                 `json:"currency"`
	TaxRate         float64                `json:"tax_rate"`
	BillingAddress  *addressInput          `json:"billing_address"`
	ShippingAddress *addressInput          `json:"shipping_address"`
	Items           []createOrderItemInput `json:"items"`
	PaymentMethod   *paymentMethodInput    `json:"payment_method"`
	Metadata        map[string]any         `json:"metadata"`
}

type createOrderItemInput struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Thumbnail   string           `json:"thumbnail"`
	Quantity    int              `json:"quantity"`
	Content     lineContentInput `json:"content"`
	Metadata    map[string]any   `json:"metadata"`
}

type lineContentInput struct {
	UnitPrice int64  `json:"unit_price"`
	VariantID string `json:"variant_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type addressInput struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Company     string `json:"company"`
	Address1    string `json:"address_1"`
	Address2    string `json:"address_2"`
	City        string `json:"city"`
	CountryCode string `json:"country_code"`
	Province    string `json:"province"`
	PostalCode  string `json:"postal_code"`
	Phone       string `json:"phone"`
}

type paymentMethodInput struct {
	ProviderID string         `json:"provider_id"`
	ProfileID  string         `json:"profile_id"`
	Data       map[string]any `json:"data"`
}

type updateOrderRequest struct {
	Email           *string                 `json:"email"`
	Status          *string                 `json:"status"`
	BillingAddress  *addressInput           `json:"billing_address"`
	ShippingAddress *addressInput           `json:"shipping_address"`
	Items           *[]updateOrderItemInput `json:"items"`
	PaymentMethod   *paymentMethodInput     `json:"payment_method"`
	Metadata        map[string]any          `json:"metadata"`
}

type updateOrderItemInput struct {
	ID               string           `json:"id"`
	Title            string           `json:"title"`
	Description      string           `json:"description"`
	Thumbnail        string           `json:"thumbnail"`
	Quantity         int              `json:"quantity"`
	ReturnedQuantity int              `json:"returned_quantity"`
	Content          lineContentInput `json:"content"`
	Metadata         map[string]any   `json:"metadata"`
}

type returnOrderRequest struct {
	Items  []returnLineInput `json:"items"`
	Refund *int64            `json:"refund"`
}

type returnLineInput struct {
	ItemID      string            `json:"item_id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Thumbnail   string            `json:"thumbnail"`
	Content     *lineContentInput `json:"content"`
	Quantity    int               `json:"quantity"`
}

type setMetadataRequest struct {
	Value any `json:"value"`
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeOrderServiceUnavailable(ctx, w)
		return
	}

	var req createOrderRequest
	if !decodeOrderBody(ctx, w, r, maxOrderBodySize, &req) {
		return
	}

	cmd := services.CreateOrderCommand{
		Email:           strings.TrimSpace(req.Email),
		Currency:        strings.TrimSpace(req.Currency),
		TaxRate:         req.TaxRate,
		BillingAddress:  buildAddress(req.BillingAddress),
		ShippingAddress: buildAddress(req.ShippingAddress),
		PaymentMethod:   buildPaymentMethod(req.PaymentMethod),
		Metadata:        req.Metadata,
	}
	for _, item := range req.Items {
		cmd.Items = append(cmd.Items, services.OrderLineInput{
			Title:       strings.TrimSpace(item.Title),
			Description: strings.TrimSpace(item.Description),
			Thumbnail:   strings.TrimSpace(item.Thumbnail),
			Quantity:    item.Quantity,
			Content:     buildLineContent(item.Content),
			Metadata:    item.Metadata,
		})
	}

	order, err := h.orders.Create(ctx, cmd)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeOrderServiceUnavailable(ctx, w)
		return
	}

	params, err := pagination.FromRequest(r, pagination.Options{
		DefaultPageSize:    defaultOrderPageSize,
		MaxPageSize:        h.maxPageSize,
		AllowedOrderFields: []string{"createdAt"},
		AllowedFilterFields: map[string][]pagination.Operator{
			"email":     {pagination.OperatorEqual},
			"status":    {pagination.OperatorEqual},
			"createdAt": {pagination.OperatorGreaterEqual, pagination.OperatorLessEqual},
		},
	})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	filter := services.OrderListFilter{
		Pagination: services.Pagination{
			PageSize:  params.PageSize,
			PageToken: params.PageToken,
		},
	}
	for _, f := range params.Filters {
		switch f.Field {
		case "email":
			filter.Email = strings.ToLower(strings.TrimSpace(f.Value))
		case "status":
			status := domain.OrderStatus(strings.ToLower(strings.TrimSpace(f.Value)))
			if _, ok := validOrderStatuses[status]; !ok {
				httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status filter must be a valid order status", http.StatusBadRequest))
				return
			}
			filter.Status = append(filter.Status, status)
		case "createdAt":
			ts, err := parseTimeParam(f.Value)
			if err != nil {
				httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "createdAt filter must be a valid RFC3339 timestamp", http.StatusBadRequest))
				return
			}
			switch f.Op {
			case pagination.OperatorGreaterEqual:
				filter.DateRange.From = &ts
			case pagination.OperatorLessEqual:
				filter.DateRange.To = &ts
			}
		}
	}

	page, err := h.orders.List(ctx, filter)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	items := make([]orderPayload, 0, len(page.Items))
	for _, order := range page.Items {
		items = append(items, buildOrderPayload(order))
	}
	writeJSONResponse(w, http.StatusOK, orderListResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	})
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeOrderServiceUnavailable(ctx, w)
		return
	}

	orderID, ok := orderIDParam(ctx, w, r)
	if !ok {
		return
	}

	order, err := h.orders.Get(ctx, orderID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) updateOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeOrderServiceUnavailable(ctx, w)
		return
	}

	orderID, ok := orderIDParam(ctx, w, r)
	if !ok {
		return
	}

	var req updateOrderRequest
	if !decodeOrderBody(ctx, w, r, maxOrderBodySize, &req) {
		return
	}

	cmd := services.UpdateOrderCommand{
		OrderID:         orderID,
		Email:           req.Email,
		BillingAddress:  buildAddress(req.BillingAddress),
		ShippingAddress: buildAddress(req.ShippingAddress),
		PaymentMethod:   buildPaymentMethod(req.PaymentMethod),
		Metadata:        req.Metadata,
	}
	if req.Status != nil {
		status := services.OrderStatus(strings.ToLower(strings.TrimSpace(*req.Status)))
		cmd.Status = &status
	}
	if req.Items != nil {
		items := make([]services.LineItem, 0, len(*req.Items))
		for _, item := range *req.Items {
			items = append(items, services.LineItem{
				ID:               strings.TrimSpace(item.ID),
				Title:            strings.TrimSpace(item.Title),
				Description:      strings.TrimSpace(item.Description),
				Thumbnail:        strings.TrimSpace(item.Thumbnail),
				Quantity:         item.Quantity,
				ReturnedQuantity: item.ReturnedQuantity,
				Content:          buildLineContent(item.Content),
				Metadata:         item.Metadata,
			})
		}
		cmd.Items = &items
	}

	order, err := h.orders.Update(ctx, cmd)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	h.runOrderAction(w, r, func(ctx context.Context, orderID string) (services.Order, error) {
		return h.orders.Cancel(ctx, orderID)
	})
}

func (h *OrderHandlers) capturePayment(w http.ResponseWriter, r *http.Request) {
	h.runOrderAction(w, r, func(ctx context.Context, orderID string) (services.Order, error) {
		return h.orders.CapturePayment(ctx, orderID)
	})
}

func (h *OrderHandlers) createFulfillment(w http.ResponseWriter, r *http.Request) {
	h.runOrderAction(w, r, func(ctx context.Context, orderID string) (services.Order, error) {
		return h.orders.CreateFulfillment(ctx, orderID)
	})
}

func (h *OrderHandlers) archiveOrder(w http.ResponseWriter, r *http.Request) {
	h.runOrderAction(w, r, func(ctx context.Context, orderID string) (services.Order, error) {
		return h.orders.Archive(ctx, orderID)
	})
}

func (h *OrderHandlers) runOrderAction(w http.ResponseWriter, r *http.Request, action func(context.Context, string) (services.Order, error)) {
	ctx := r.Context()
	if h.orders == nil {
		writeOrderServiceUnavailable(ctx, w)
		return
	}

	orderID, ok := orderIDParam(ctx, w, r)
	if !ok {
		return
	}

	order, err := action(ctx, orderID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) returnOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeOrderServiceUnavailable(ctx, w)
		return
	}

	orderID, ok := orderIDParam(ctx, w, r)
	if !ok {
		return
	}

	var req returnOrderRequest
	if !decodeOrderBody(ctx, w, r, maxOrderBodySize, &req) {
		return
	}

	cmd := services.ReturnOrderCommand{
		OrderID: orderID,
		Refund:  req.Refund,
	}
	for _, line := range req.Items {
		returnLine := services.ReturnLine{
			ItemID:      strings.TrimSpace(line.ItemID),
			Title:       strings.TrimSpace(line.Title),
			Description: strings.TrimSpace(line.Description),
			Thumbnail:   strings.TrimSpace(line.Thumbnail),
			Quantity:    line.Quantity,
		}
		if line.Content != nil {
			content := buildLineContent(*line.Content)
			returnLine.Content = &content
		}
		cmd.Lines = append(cmd.Lines, returnLine)
	}

	order, err := h.orders.Return(ctx, cmd)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) setMetadata(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeOrderServiceUnavailable(ctx, w)
		return
	}

	orderID, ok := orderIDParam(ctx, w, r)
	if !ok {
		return
	}
	key := strings.TrimSpace(chi.URLParam(r, "key"))
	if key == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "metadata key is required", http.StatusBadRequest))
		return
	}

	var req setMetadataRequest
	if !decodeOrderBody(ctx, w, r, maxMetadataBodySize, &req) {
		return
	}

	order, err := h.orders.SetMetadata(ctx, orderID, key, req.Value)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) deleteMetadata(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeOrderServiceUnavailable(ctx, w)
		return
	}

	orderID, ok := orderIDParam(ctx, w, r)
	if !ok {
		return
	}
	key := strings.TrimSpace(chi.URLParam(r, "key"))
	if key == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "metadata key is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.DeleteMetadata(ctx, orderID, key)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

// Response payloads ----------------------------------------------------------

type orderListResponse struct {
	Items         []orderPayload `json:"items"`
	NextPageToken string         `json:"next_page_token,omitempty"`
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type orderPayload struct {
	ID                string                `json:"id"`
	Email             string                `json:"email"`
	Status            string                `json:"status"`
	FulfillmentStatus string                `json:"fulfillment_status"`
	PaymentStatus     string                `json:"payment_status"`
	Currency          string                `json:"currency"`
	TaxRate           float64               `json:"tax_rate"`
	Totals            orderTotalsPayload    `json:"totals"`
	BillingAddress    *addressPayload       `json:"billing_address,omitempty"`
	ShippingAddress   *addressPayload       `json:"shipping_address,omitempty"`
	Items             []orderItemPayload    `json:"items"`
	PaymentMethod     *paymentMethodPayload `json:"payment_method,omitempty"`
	Metadata          map[string]any        `json:"metadata,omitempty"`
	CreatedAt         string                `json:"created_at"`
	UpdatedAt         string                `json:"updated_at,omitempty"`
	CanceledAt        string                `json:"canceled_at,omitempty"`
	CapturedAt        string                `json:"captured_at,omitempty"`
	FulfilledAt       string                `json:"fulfilled_at,omitempty"`
	ArchivedAt        string                `json:"archived_at,omitempty"`
}

type orderTotalsPayload struct {
	Subtotal int64 `json:"subtotal"`
	Shipping int64 `json:"shipping"`
	Tax      int64 `json:"tax"`
	Total    int64 `json:"total"`
}

type orderItemPayload struct {
	ID               string             `json:"id"`
	Title            string             `json:"title"`
	Description      string             `json:"description,omitempty"`
	Thumbnail        string             `json:"thumbnail,omitempty"`
	Quantity         int                `json:"quantity"`
	ReturnedQuantity int                `json:"returned_quantity"`
	Content          lineContentPayload `json:"content"`
	Metadata         map[string]any     `json:"metadata,omitempty"`
}

type lineContentPayload struct {
	UnitPrice int64  `json:"unit_price"`
	VariantID string `json:"variant_id,omitempty"`
	ProductID string `json:"product_id,omitempty"`
	Quantity  int    `json:"quantity"`
}

type addressPayload struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Company     string `json:"company,omitempty"`
	Address1    string `json:"address_1"`
	Address2    string `json:"address_2,omitempty"`
	City        string `json:"city"`
	CountryCode string `json:"country_code"`
	Province    string `json:"province"`
	PostalCode  string `json:"postal_code"`
	Phone       string `json:"phone,omitempty"`
}

type paymentMethodPayload struct {
	ProviderID string         `json:"provider_id"`
	ProfileID  string         `json:"profile_id,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}

func buildOrderPayload(order services.Order) orderPayload {
	totals := services.CalculateOrderTotals(order)
	payload := orderPayload{
		ID:                strings.TrimSpace(order.ID),
		Email:             strings.TrimSpace(order.Email),
		Status:            string(order.Status),
		FulfillmentStatus: string(order.FulfillmentStatus),
		PaymentStatus:     string(order.PaymentStatus),
		Currency:          strings.ToLower(strings.TrimSpace(order.Currency)),
		TaxRate:           order.TaxRate,
		Totals: orderTotalsPayload{
			Subtotal: totals.Subtotal,
			Shipping: totals.Shipping,
			Tax:      totals.Tax,
			Total:    totals.Total,
		},
		Items:       make([]orderItemPayload, 0, len(order.Items)),
		Metadata:    cloneMap(order.Metadata),
		CreatedAt:   formatTime(order.CreatedAt),
		UpdatedAt:   formatTime(order.UpdatedAt),
		CanceledAt:  formatTime(pointerTime(order.CanceledAt)),
		CapturedAt:  formatTime(pointerTime(order.CapturedAt)),
		FulfilledAt: formatTime(pointerTime(order.FulfilledAt)),
		ArchivedAt:  formatTime(pointerTime(order.ArchivedAt)),
	}

	for _, item := range order.Items {
		payload.Items = append(payload.Items, orderItemPayload{
			ID:               item.ID,
			Title:            item.Title,
			Description:      item.Description,
			Thumbnail:        item.Thumbnail,
			Quantity:         item.Quantity,
			ReturnedQuantity: item.ReturnedQuantity,
			Content: lineContentPayload{
				UnitPrice: item.Content.UnitPrice,
				VariantID: item.Content.VariantID,
				ProductID: item.Content.ProductID,
				Quantity:  item.Content.Quantity,
			},
			Metadata: cloneMap(item.Metadata),
		})
	}

	if order.BillingAddress != nil {
		addr := buildAddressPayload(*order.BillingAddress)
		payload.BillingAddress = &addr
	}
	if order.ShippingAddress != nil {
		addr := buildAddressPayload(*order.ShippingAddress)
		payload.ShippingAddress = &addr
	}
	if order.PaymentMethod != nil {
		payload.PaymentMethod = &paymentMethodPayload{
			ProviderID: order.PaymentMethod.ProviderID,
			ProfileID:  order.PaymentMethod.ProfileID,
			Data:       cloneMap(order.PaymentMethod.Data),
		}
	}

	return payload
}

func buildAddressPayload(addr services.Address) addressPayload {
	return addressPayload{
		FirstName:   addr.FirstName,
		LastName:    addr.LastName,
		Company:     addr.Company,
		Address1:    addr.Address1,
		Address2:    addr.Address2,
		City:        addr.City,
		CountryCode: addr.CountryCode,
		Province:    addr.Province,
		PostalCode:  addr.PostalCode,
		Phone:       addr.Phone,
	}
}

func buildAddress(input *addressInput) *services.Address {
	if input == nil {
		return nil
	}
	return &services.Address{
		FirstName:   strings.TrimSpace(input.FirstName),
		LastName:    strings.TrimSpace(input.LastName),
		Company:     strings.TrimSpace(input.Company),
		Address1:    strings.TrimSpace(input.Address1),
		Address2:    strings.TrimSpace(input.Address2),
		City:        strings.TrimSpace(input.City),
		CountryCode: strings.TrimSpace(input.CountryCode),
		Province:    strings.TrimSpace(input.Province),
		PostalCode:  strings.TrimSpace(input.PostalCode),
		Phone:       strings.TrimSpace(input.Phone),
	}
}

func buildPaymentMethod(input *paymentMethodInput) *services.PaymentMethod {
	if input == nil {
		return nil
	}
	return &services.PaymentMethod{
		ProviderID: strings.TrimSpace(input.ProviderID),
		ProfileID:  strings.TrimSpace(input.ProfileID),
		Data:       input.Data,
	}
}

func buildLineContent(input lineContentInput) services.LineContent {
	return services.LineContent{
		UnitPrice: input.UnitPrice,
		VariantID: strings.TrimSpace(input.VariantID),
		ProductID: strings.TrimSpace(input.ProductID),
		Quantity:  input.Quantity,
	}
}

// Error mapping and shared helpers -------------------------------------------

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrPaymentFailure):
		httpx.WriteError(ctx, w, httpx.NewError("payment_failed", err.Error(), http.StatusPaymentRequired))
	case errors.Is(err, services.ErrFulfillmentFailure):
		httpx.WriteError(ctx, w, httpx.NewError("fulfillment_failed", err.Error(), http.StatusBadGateway))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to process order request", http.StatusInternalServerError))
	}
}

func writeOrderServiceUnavailable(ctx context.Context, w http.ResponseWriter) {
	httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
}

func orderIDParam(ctx context.Context, w http.ResponseWriter, r *http.Request) (string, bool) {
	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return "", false
	}
	return orderID, true
}

func decodeOrderBody(ctx context.Context, w http.ResponseWriter, r *http.Request, limit int64, target any) bool {
	body, err := readLimitedBody(r, limit)
	if err != nil {
		switch {
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return false
	}
	if err := json.Unmarshal(body, target); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return false
	}
	return true
}

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = maxOrderBodySize
	}
	reader := io.LimitReader(r.Body, limit+1)
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func parseTimeParam(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("timestamp is empty")
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts.UTC(), nil
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts.UTC(), nil
	}
	return time.Time{}, errors.New("must be RFC3339 timestamp")
}

func pointerTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func cloneMap(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	cloned := make(map[string]any, len(src))
	for key, value := range src {
		cloned[key] = value
	}
	return cloned
}
