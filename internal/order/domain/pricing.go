package domain

import (
	"math"

	cart "github.com/kimspro130/promode/internal/cart/domain"
)

// Pricing holds the storefront's money knobs. The server recomputes
// every order from these; client-supplied totals are only ever
// cross-checked, never trusted.
type Pricing struct {
	TaxRate               float64
	FreeShippingThreshold float64
	FlatShippingFee       float64
}

type Totals struct {
	Subtotal       float64
	TaxAmount      float64
	ShippingAmount float64
	DiscountAmount float64
	TotalAmount    float64
}

func (p Pricing) Compute(items []cart.CartItem, discount float64) Totals {
	var subtotal float64
	for _, item := range items {
		subtotal += item.UnitPrice * float64(item.Quantity)
	}

	tax := subtotal * p.TaxRate
	shipping := p.FlatShippingFee
	if subtotal > p.FreeShippingThreshold {
		shipping = 0
	}

	return Totals{
		Subtotal:       subtotal,
		TaxAmount:      tax,
		ShippingAmount: shipping,
		DiscountAmount: discount,
		TotalAmount:    subtotal + tax + shipping - discount,
	}
}

// Matches compares a caller-supplied total against the recomputed one
// within the floating-point tolerance.
func (t Totals) Matches(expected float64) bool {
	return math.Abs(t.TotalAmount-expected) <= totalTolerance
}
