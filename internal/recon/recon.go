// Package recon derives the stock-control rows: for every product it
// recomputes the location sums, compares them against the backend's stored
// aggregates, and classifies the row. Everything here is a pure function
// over an already-fetched product list.
package recon

import (
	"strings"

	"github.com/ilaydakx/pos-system/internal/domain"
)

// Row is one reconciliation result. Remaining and Start are always the
// recomputed sums; the mismatch flags fire only when the backend supplied
// an aggregate that disagrees.
type Row struct {
	Product           domain.Product `json:"product"`
	Remaining         int            `json:"remaining"`
	Start             int            `json:"start"`
	MismatchRemaining bool           `json:"mismatch_remaining"`
	MismatchStart     bool           `json:"mismatch_start"`
	Negative          bool           `json:"negative"`
	OutOfStock        bool           `json:"out_of_stock"`
	OnlyStore         bool           `json:"only_store"`
	OnlyWarehouse     bool           `json:"only_warehouse"`
}

// Status reports the single badge for display. Precedence: negative, then
// mismatch, then out-of-stock, then ok.
func (r Row) Status() string {
	switch {
	case r.Negative:
		return "negative"
	case r.MismatchRemaining || r.MismatchStart:
		return "mismatch"
	case r.OutOfStock:
		return "out_of_stock"
	default:
		return "ok"
	}
}

// BuildRow classifies one product.
func BuildRow(p domain.Product) Row {
	row := Row{
		Product:   p,
		Remaining: p.StoreQty + p.WarehouseQty,
		Start:     p.StoreStart + p.WarehouseStart,
	}
	if p.TotalRemaining != nil && *p.TotalRemaining != row.Remaining {
		row.MismatchRemaining = true
	}
	if p.TotalStart != nil && *p.TotalStart != row.Start {
		row.MismatchStart = true
	}
	row.Negative = p.StoreQty < 0 || p.WarehouseQty < 0 ||
		(p.TotalRemaining != nil && *p.TotalRemaining < 0)
	row.OutOfStock = row.Remaining == 0
	row.OnlyStore = p.StoreQty > 0 && p.WarehouseQty == 0
	row.OnlyWarehouse = p.WarehouseQty > 0 && p.StoreQty == 0
	return row
}

// Build classifies a full product list in input order.
func Build(products []domain.Product) []Row {
	rows := make([]Row, 0, len(products))
	for _, p := range products {
		rows = append(rows, BuildRow(p))
	}
	return rows
}

// Filter selects rows for display. Query is a case-insensitive substring
// match over the product's identifying fields; the boolean filters combine
// with it and with each other by logical AND.
type Filter struct {
	Query              string `json:"query"`
	MismatchOrNegative bool   `json:"mismatch_or_negative"`
	OutOfStock         bool   `json:"out_of_stock"`
	OnlyStore          bool   `json:"only_store"`
	OnlyWarehouse      bool   `json:"only_warehouse"`
}

func (f Filter) Matches(row Row) bool {
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		p := row.Product
		haystack := strings.ToLower(strings.Join([]string{
			p.Barcode, p.ProductCode, p.Category, p.Name, p.Color, p.Size,
		}, " "))
		if !strings.Contains(haystack, q) {
			return false
		}
	}
	if f.MismatchOrNegative && !(row.MismatchRemaining || row.MismatchStart || row.Negative) {
		return false
	}
	if f.OutOfStock && !row.OutOfStock {
		return false
	}
	if f.OnlyStore && !row.OnlyStore {
		return false
	}
	if f.OnlyWarehouse && !row.OnlyWarehouse {
		return false
	}
	return true
}

// Apply returns the rows passing the filter, keeping input order.
func (f Filter) Apply(rows []Row) []Row {
	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		if f.Matches(row) {
			out = append(out, row)
		}
	}
	return out
}

// Counts summarizes a row set for the view header. Visible counts the rows
// passing the given filter; the category counters ignore the filter.
type Counts struct {
	Total         int `json:"total"`
	Visible       int `json:"visible"`
	Mismatch      int `json:"mismatch"`
	OutOfStock    int `json:"out"`
	OnlyStore     int `json:"only_store"`
	OnlyWarehouse int `json:"only_warehouse"`
}

func Count(rows []Row, f Filter) Counts {
	counts := Counts{Total: len(rows)}
	for _, row := range rows {
		if f.Matches(row) {
			counts.Visible++
		}
		if row.MismatchRemaining || row.MismatchStart || row.Negative {
			counts.Mismatch++
		}
		if row.OutOfStock {
			counts.OutOfStock++
		}
		if row.OnlyStore {
			counts.OnlyStore++
		}
		if row.OnlyWarehouse {
			counts.OnlyWarehouse++
		}
	}
	return counts
}
