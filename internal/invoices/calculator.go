package invoices

import "github.com/shopspring/decimal"

// TaxMode selects how tax is derived for an invoice. The modes intentionally
// disagree; each call site picks its own.
type TaxMode int

const (
	// TaxPerItem sums price*qty*rate/100 per enabled item. Used for purchase listings.
	TaxPerItem TaxMode = iota
	// TaxFlatSale applies FlatTaxRate to the rounded cost. Used for sale listings.
	TaxFlatSale
	// TaxFlatReport applies FlatTaxRate to the rounded cost of any invoice in the
	// recent invoices report.
	TaxFlatReport
)

// FlatTaxRate is the fixed 7% rate of the flat modes.
var FlatTaxRate = decimal.RequireFromString("0.07")

var hundred = decimal.NewFromInt(100)

// Totals holds the three rounded money fields of an invoice.
type Totals struct {
	Cost  decimal.Decimal
	Tax   decimal.Decimal
	Total decimal.Decimal
}

// ListingMode returns the tax mode used when listing invoices of type t.
func ListingMode(t Type) TaxMode {
	if t == TypePurchase {
		return TaxPerItem
	}
	return TaxFlatSale
}

// ComputeCost sums price*qty over enabled items without rounding.
func ComputeCost(items []LineItem) decimal.Decimal {
	cost := decimal.Zero
	for _, item := range items {
		if !item.Enabled {
			continue
		}
		cost = cost.Add(lineCost(item))
	}
	return cost
}

// ComputeTax derives unrounded tax. cost must already be rounded for the flat modes.
func ComputeTax(mode TaxMode, items []LineItem, cost decimal.Decimal) decimal.Decimal {
	switch mode {
	case TaxPerItem:
		tax := decimal.Zero
		for _, item := range items {
			if !item.Enabled {
				continue
			}
			tax = tax.Add(lineCost(item).Mul(item.Tax).Div(hundred))
		}
		return tax
	default:
		return cost.Mul(FlatTaxRate)
	}
}

// Compute rounds cost and tax independently, then rounds their sum.
func Compute(mode TaxMode, items []LineItem) Totals {
	cost := roundMoney(ComputeCost(items))
	tax := roundMoney(ComputeTax(mode, items, cost))
	return Totals{Cost: cost, Tax: tax, Total: roundMoney(cost.Add(tax))}
}

// roundMoney keeps two fractional digits, rounding toward positive infinity.
func roundMoney(d decimal.Decimal) decimal.Decimal {
	return d.RoundCeil(2)
}

func lineCost(item LineItem) decimal.Decimal {
	return item.Price.Mul(decimal.NewFromInt(int64(item.Qty)))
}
