package services

import (
	"testing"

	domain "github.com/oakmart/api/internal/domain"
)

func TestCalculateOrderTotals(t *testing.T) {
	order := testOrder()

	totals := CalculateOrderTotals(order)

	// 10 * 1230 + 1 * 500 = 12800, 25% tax = 3200.
	if totals.Subtotal != 12800 {
		t.Fatalf("expected subtotal 12800 got %d", totals.Subtotal)
	}
	if totals.Tax != 3200 {
		t.Fatalf("expected tax 3200 got %d", totals.Tax)
	}
	if totals.Total != 16000 {
		t.Fatalf("expected total 16000 got %d", totals.Total)
	}
}

func TestCalculateOrderTotalsZeroRate(t *testing.T) {
	order := testOrder()
	order.TaxRate = 0

	totals := CalculateOrderTotals(order)
	if totals.Tax != 0 {
		t.Fatalf("expected no tax got %d", totals.Tax)
	}
	if totals.Total != totals.Subtotal {
		t.Fatalf("expected total %d got %d", totals.Subtotal, totals.Total)
	}
}

func TestCalculateOrderTotalsRounding(t *testing.T) {
	order := domain.Order{
		TaxRate: 0.1,
		Items: []domain.LineItem{
			{ID: "item_1", Content: domain.LineContent{UnitPrice: 5}, Quantity: 1},
		},
	}

	totals := CalculateOrderTotals(order)
	// 5 * 0.1 = 0.5 rounds up to 1.
	if totals.Tax != 1 {
		t.Fatalf("expected tax 1 got %d", totals.Tax)
	}
}

func TestReturnRefundAmount(t *testing.T) {
	order := testOrder()

	amount := returnRefundAmount(order, []ReturnLine{{ItemID: "item_1", Quantity: 2}})
	// 2 * 1230 = 2460 plus 615 tax.
	if amount != 3075 {
		t.Fatalf("expected 3075 got %d", amount)
	}

	amount = returnRefundAmount(order, []ReturnLine{
		{ItemID: "item_1", Quantity: 2},
		{ItemID: "item_unknown", Quantity: 5},
		{ItemID: "item_2", Quantity: 0},
	})
	if amount != 3075 {
		t.Fatalf("expected priceless unknown and zero lines ignored got %d", amount)
	}

	amount = returnRefundAmount(order, []ReturnLine{
		{ItemID: "item_extra", Content: &LineContent{UnitPrice: 800}, Quantity: 1},
	})
	// Unknown lines are valued at the price they carry: 800 plus 200 tax.
	if amount != 1000 {
		t.Fatalf("expected 1000 got %d", amount)
	}
}

func TestRefundableAmount(t *testing.T) {
	order := testOrder()

	// Untouched order: the full total is refundable.
	if amount := refundableAmount(order); amount != 16000 {
		t.Fatalf("expected 16000 got %d", amount)
	}

	order.Items[0].ReturnedQuantity = 2
	// 2 * 1230 already returned plus 615 tax leaves 16000 - 3075.
	if amount := refundableAmount(order); amount != 12925 {
		t.Fatalf("expected 12925 got %d", amount)
	}

	order.Items[0].ReturnedQuantity = 10
	order.Items[1].ReturnedQuantity = 1
	if amount := refundableAmount(order); amount != 0 {
		t.Fatalf("expected nothing refundable got %d", amount)
	}
}
