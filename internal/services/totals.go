package services

import (
	"math"
	"strings"
)

// CalculateOrderTotals derives the monetary breakdown for an order from its
// line items and tax rate. Amounts are minor units; tax rounds half away
// from zero.
func CalculateOrderTotals(order Order) OrderTotals {
	var subtotal int64
	for _, item := range order.Items {
		subtotal += item.Content.UnitPrice * int64(item.Quantity)
	}
	tax := roundTax(subtotal, order.TaxRate)
	return OrderTotals{
		Subtotal: subtotal,
		Shipping: 0,
		Tax:      tax,
		Total:    subtotal + tax,
	}
}

// returnRefundAmount values the returned units at their purchase price plus
// the proportional tax. Lines unknown to the order are valued at the price
// they carry themselves.
func returnRefundAmount(order Order, lines []ReturnLine) int64 {
	byID := make(map[string]LineItem, len(order.Items))
	for _, item := range order.Items {
		byID[item.ID] = item
	}

	var amount int64
	for _, line := range lines {
		if line.Quantity <= 0 {
			continue
		}
		if item, ok := byID[strings.TrimSpace(line.ItemID)]; ok {
			amount += item.Content.UnitPrice * int64(line.Quantity)
			continue
		}
		if line.Content != nil {
			amount += line.Content.UnitPrice * int64(line.Quantity)
		}
	}
	return amount + roundTax(amount, order.TaxRate)
}

// refundableAmount is the money that can still move back to the customer:
// the order total minus the value of units already returned.
func refundableAmount(order Order) int64 {
	totals := CalculateOrderTotals(order)
	var returned int64
	for _, item := range order.Items {
		returned += item.Content.UnitPrice * int64(item.ReturnedQuantity)
	}
	refunded := returned + roundTax(returned, order.TaxRate)
	if refunded >= totals.Total {
		return 0
	}
	return totals.Total - refunded
}

func roundTax(amount int64, rate float64) int64 {
	if amount == 0 || rate <= 0 {
		return 0
	}
	return int64(math.Round(float64(amount) * rate))
}
