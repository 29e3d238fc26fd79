package orders

import (
	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/models"
	"github.com/shopspring/decimal"
)

type Totals struct {
	TotalAmount float64
	Subtotal    *float64
	Shipping    float64
	Tax         float64
}

type pricedTotals struct {
	subtotal decimal.Decimal
	shipping decimal.Decimal
	tax      decimal.Decimal
	total    decimal.Decimal
}

// price sums the snapshotted line prices and checks the client's figures
// against them. The server-side sum is authoritative.
func price(items []models.LineItem, claimed Totals, tolerance float64) (pricedTotals, error) {
	subtotal := decimal.Zero
	for _, item := range items {
		line := decimal.NewFromFloat(item.Price).Mul(decimal.NewFromInt(int64(item.Quantity)))
		subtotal = subtotal.Add(line)
	}
	p := pricedTotals{
		subtotal: subtotal.Round(2),
		shipping: decimal.NewFromFloat(claimed.Shipping).Round(2),
		tax:      decimal.NewFromFloat(claimed.Tax).Round(2),
	}
	p.total = p.subtotal.Add(p.shipping).Add(p.tax)

	tol := decimal.NewFromFloat(tolerance)
	if claimed.Subtotal != nil && !within(decimal.NewFromFloat(*claimed.Subtotal), p.subtotal, tol) {
		return p, apperr.Validation("Order subtotal %s does not match item prices (%s)",
			decimal.NewFromFloat(*claimed.Subtotal).StringFixed(2), p.subtotal.StringFixed(2))
	}
	if !within(decimal.NewFromFloat(claimed.TotalAmount), p.total, tol) {
		return p, apperr.Validation("Order total %s does not match items, shipping and tax (%s)",
			decimal.NewFromFloat(claimed.TotalAmount).StringFixed(2), p.total.StringFixed(2))
	}
	return p, nil
}

func within(a, b, tolerance decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(tolerance)
}

func (p pricedTotals) apply(o *models.Order) {
	o.Subtotal = p.subtotal.InexactFloat64()
	o.Shipping = p.shipping.InexactFloat64()
	o.Tax = p.tax.InexactFloat64()
	o.TotalAmount = p.total.InexactFloat64()
}
