package invoices

import "time"

func invoiceFromDraft(d Draft, number string, date time.Time) Invoice {
	return Invoice{
		Number:         number,
		Date:           date,
		Status:         StatusPending,
		Type:           d.Type,
		Enabled:        d.Enabled,
		CompanyID:      d.CompanyID,
		ClientVendorID: d.ClientVendorID,
	}
}

func lineItemFromInput(invoiceID int64, in LineItemInput) LineItem {
	return LineItem{
		InvoiceID: invoiceID,
		ProductID: in.ProductID,
		Name:      in.Name,
		Price:     in.Price,
		Qty:       in.Qty,
		Tax:       in.Tax,
		Enabled:   in.Enabled,
	}
}

func lineItemView(item LineItem) LineItemView {
	return LineItemView{
		ID:        item.ID,
		ProductID: item.ProductID,
		Name:      item.Name,
		Price:     item.Price,
		Qty:       item.Qty,
		Tax:       item.Tax,
		Enabled:   item.Enabled,
	}
}

// toSummary converts inv with the given items (already filtered by the
// caller) and computed totals.
func toSummary(inv Invoice, items []LineItem, totals Totals) Summary {
	views := make([]LineItemView, 0, len(items))
	for _, item := range items {
		views = append(views, lineItemView(item))
	}
	return Summary{
		ID:             inv.ID,
		Number:         inv.Number,
		Date:           inv.Date,
		Status:         inv.Status,
		Type:           inv.Type,
		Enabled:        inv.Enabled,
		CompanyID:      inv.CompanyID,
		ClientVendorID: inv.ClientVendorID,
		Items:          views,
		Cost:           totals.Cost,
		Tax:            totals.Tax,
		Total:          totals.Total,
	}
}

// stockLotFromItem prices the lot tax-inclusive: price * (100 + tax) / 100.
func stockLotFromItem(item LineItem, now time.Time) StockLot {
	return StockLot{
		ProductID:         item.ProductID,
		InvoiceItemID:     item.ID,
		Price:             item.Price.Mul(hundred.Add(item.Tax)).Div(hundred),
		Quantity:          item.Qty,
		RemainingQuantity: item.Qty,
		CreatedAt:         now,
	}
}

func enabledItems(items []LineItem) []LineItem {
	out := make([]LineItem, 0, len(items))
	for _, item := range items {
		if item.Enabled {
			out = append(out, item)
		}
	}
	return out
}

// Summarize computes totals for inv using mode over its enabled items.
func Summarize(inv Invoice, mode TaxMode) Summary {
	items := enabledItems(inv.Items)
	return toSummary(inv, items, Compute(mode, items))
}

// FormatInvoiceDate renders a date the way invoice headers print it, e.g. 05/7/2024.
func FormatInvoiceDate(t time.Time) string {
	return t.Format("01/2/2006")
}
