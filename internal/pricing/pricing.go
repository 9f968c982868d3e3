package pricing

import "math"

// Line is one cart line entering the quote: unit price times quantity.
type Line struct {
	Price    float64
	Quantity uint
}

// Quote is the full pricing breakdown stored verbatim on the order.
type Quote struct {
	Subtotal    float64 `json:"subtotal"`
	Tax         float64 `json:"tax"`
	DeliveryFee float64 `json:"delivery_fee"`
	Total       float64 `json:"total"`
}

// Calculator applies the restaurant's fee schedule: a flat tax rate on the
// subtotal plus a fixed delivery fee.
type Calculator struct {
	TaxRate     float64
	DeliveryFee float64
}

// Quote computes subtotal, tax, delivery fee and total for the given lines.
// Amounts are rounded to two decimals at computation time; later menu price
// changes never alter a stored quote.
func (c Calculator) Quote(lines []Line) Quote {
	var subtotal float64
	for _, l := range lines {
		subtotal += l.Price * float64(l.Quantity)
	}
	subtotal = Round2(subtotal)
	tax := Round2(subtotal * c.TaxRate)
	total := Round2(subtotal + tax + c.DeliveryFee)

	return Quote{
		Subtotal:    subtotal,
		Tax:         tax,
		DeliveryFee: c.DeliveryFee,
		Total:       total,
	}
}

func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
