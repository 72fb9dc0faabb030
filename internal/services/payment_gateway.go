package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oakmart/api/internal/payments"
)

// paymentMethodIntentKey is the PaymentMethod.Data entry holding the PSP
// intent reference recorded at checkout.
const paymentMethodIntentKey = "paymentIntentId"

// paymentManager abstracts payments.Manager for easier testing.
type paymentManager interface {
	Capture(ctx context.Context, paymentCtx payments.PaymentContext, req payments.CaptureRequest) (payments.PaymentDetails, error)
	Refund(ctx context.Context, paymentCtx payments.PaymentContext, req payments.RefundRequest) (payments.PaymentDetails, error)
}

// PaymentGateway adapts the payment provider manager to the order lifecycle.
type PaymentGateway struct {
	manager paymentManager
	clock   func() time.Time
}

var _ PaymentProcessor = (*PaymentGateway)(nil)

// NewPaymentGateway wraps a provider manager for use by the order service.
func NewPaymentGateway(manager paymentManager, clock func() time.Time) (*PaymentGateway, error) {
	if manager == nil {
		return nil, errors.New("payment gateway: provider manager is required")
	}
	if clock == nil {
		clock = time.Now
	}
	return &PaymentGateway{
		manager: manager,
		clock: func() time.Time {
			return clock().UTC()
		},
	}, nil
}

// Capture collects the authorised funds for the order.
func (g *PaymentGateway) Capture(ctx context.Context, order Order) (PaymentCaptureResult, error) {
	intentID, paymentCtx, err := paymentReference(order)
	if err != nil {
		return PaymentCaptureResult{}, err
	}

	details, err := g.manager.Capture(ctx, paymentCtx, payments.CaptureRequest{
		IntentID:       intentID,
		IdempotencyKey: "capture_" + order.ID,
	})
	if err != nil {
		return PaymentCaptureResult{}, err
	}
	if details.Status == payments.StatusFailed {
		return PaymentCaptureResult{}, fmt.Errorf("payment gateway: capture of %s failed", intentID)
	}

	capturedAt := g.clock()
	if details.CapturedAt != nil {
		capturedAt = *details.CapturedAt
	}
	return PaymentCaptureResult{
		ProviderID: details.Provider,
		Reference:  details.IntentID,
		Amount:     details.Amount,
		CapturedAt: capturedAt,
	}, nil
}

// Refund returns funds for the order, typically after a return.
func (g *PaymentGateway) Refund(ctx context.Context, order Order, amount int64, reason string) (PaymentRefundResult, error) {
	if amount <= 0 {
		return PaymentRefundResult{}, errors.New("payment gateway: refund amount must be positive")
	}
	intentID, paymentCtx, err := paymentReference(order)
	if err != nil {
		return PaymentRefundResult{}, err
	}

	details, err := g.manager.Refund(ctx, paymentCtx, payments.RefundRequest{
		IntentID:       intentID,
		Amount:         &amount,
		Reason:         reason,
		IdempotencyKey: fmt.Sprintf("refund_%s_%d", order.ID, amount),
	})
	if err != nil {
		return PaymentRefundResult{}, err
	}

	refundedAt := g.clock()
	if details.RefundedAt != nil {
		refundedAt = *details.RefundedAt
	}
	return PaymentRefundResult{
		ProviderID: details.Provider,
		Reference:  details.IntentID,
		Amount:     amount,
		RefundedAt: refundedAt,
	}, nil
}

func paymentReference(order Order) (string, payments.PaymentContext, error) {
	if order.PaymentMethod == nil {
		return "", payments.PaymentContext{}, errors.New("payment gateway: order has no payment method")
	}
	intentID := ""
	if raw, ok := order.PaymentMethod.Data[paymentMethodIntentKey]; ok {
		if value, ok := raw.(string); ok {
			intentID = strings.TrimSpace(value)
		}
	}
	if intentID == "" {
		return "", payments.PaymentContext{}, errors.New("payment gateway: order has no payment intent reference")
	}
	return intentID, payments.PaymentContext{
		PreferredProvider: order.PaymentMethod.ProviderID,
		Currency:          order.Currency,
	}, nil
}
