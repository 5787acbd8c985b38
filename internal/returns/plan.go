package returns

import (
	"github.com/shopspring/decimal"

	"github.com/vikasgargbear/production-infra-sub000/internal/sales"
	"github.com/vikasgargbear/production-infra-sub000/internal/shared"
	"github.com/vikasgargbear/production-infra-sub000/internal/tax"
)

// plannedLine is one batch-level quantity to move.
type plannedLine struct {
	productID int64
	batchID   int64
	quantity  int64
	price     decimal.Decimal
	discount  decimal.Decimal
	gst       decimal.NullDecimal
}

type soldKey struct {
	product int64
	batch   int64
}

// planSalesReturn checks the return bound per product and per batch and
// spreads unassigned quantities over the invoice's batches, most recently
// allocated first.
func planSalesReturn(items []sales.InvoiceItem, prior []ReturnedQuantity, lines []ReturnLine) ([]plannedLine, error) {
	sold := make(map[soldKey]int64)
	soldByProduct := make(map[int64]int64)
	source := make(map[soldKey]sales.InvoiceItem)
	var order []soldKey
	for _, it := range items {
		if it.BatchID == nil {
			continue
		}
		k := soldKey{product: it.ProductID, batch: *it.BatchID}
		if _, seen := sold[k]; !seen {
			order = append(order, k)
			source[k] = it
		}
		sold[k] += it.Quantity
		soldByProduct[it.ProductID] += it.Quantity
	}

	returned := make(map[soldKey]int64)
	returnedByProduct := make(map[int64]int64)
	for _, p := range prior {
		returned[soldKey{product: p.ProductID, batch: p.BatchID}] += p.Quantity
		returnedByProduct[p.ProductID] += p.Quantity
	}

	requested := make(map[int64]int64)
	var productOrder []int64
	for _, line := range lines {
		if _, seen := requested[line.ProductID]; !seen {
			productOrder = append(productOrder, line.ProductID)
		}
		requested[line.ProductID] += line.Quantity
	}
	for _, product := range productOrder {
		returnable := soldByProduct[product] - returnedByProduct[product]
		if requested[product] > returnable {
			return nil, shared.QuantityExceeded(product, returnable, requested[product])
		}
	}

	var planned []plannedLine
	for _, line := range lines {
		if line.BatchID != nil {
			k := soldKey{product: line.ProductID, batch: *line.BatchID}
			left := sold[k] - returned[k]
			if line.Quantity > left {
				return nil, shared.QuantityExceeded(line.ProductID, left, line.Quantity)
			}
			returned[k] += line.Quantity
			planned = append(planned, plannedFrom(source[k], k, line.Quantity, line.ReturnPrice))
			continue
		}
		remaining := line.Quantity
		for i := len(order) - 1; i >= 0 && remaining > 0; i-- {
			k := order[i]
			if k.product != line.ProductID {
				continue
			}
			left := sold[k] - returned[k]
			if left <= 0 {
				continue
			}
			take := min(left, remaining)
			returned[k] += take
			remaining -= take
			planned = append(planned, plannedFrom(source[k], k, take, line.ReturnPrice))
		}
		if remaining > 0 {
			return nil, shared.QuantityExceeded(line.ProductID, line.Quantity-remaining, line.Quantity)
		}
	}
	return planned, nil
}

// plannedFrom prices a returned quantity. Without an explicit price the
// invoiced price and discount apply.
func plannedFrom(it sales.InvoiceItem, k soldKey, qty int64, price decimal.NullDecimal) plannedLine {
	p := plannedLine{
		productID: k.product,
		batchID:   k.batch,
		quantity:  qty,
		price:     it.UnitPrice,
		discount:  it.DiscountPercent,
		gst:       decimal.NewNullDecimal(it.TaxPercent),
	}
	if price.Valid {
		p.price = price.Decimal
		p.discount = decimal.Zero
	}
	return p
}

func taxLines(planned []plannedLine) []tax.Line {
	lines := make([]tax.Line, len(planned))
	for i, p := range planned {
		lines[i] = tax.Line{
			Quantity:        p.quantity,
			UnitPrice:       p.price,
			DiscountPercent: p.discount,
			GSTPercent:      p.gst,
		}
	}
	return lines
}

func productIDs(planned []plannedLine) []int64 {
	ids := make([]int64, 0, len(planned))
	for _, p := range planned {
		ids = append(ids, p.productID)
	}
	return ids
}
