package gateway

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/ilaydakx/pos-system/internal/domain"
)

// The backend has gone through several schema generations, so product rows
// arrive with inconsistent key spellings (snake_case, camelCase, and the
// Turkish legacy column names) and older rows carry a single "stock" field
// instead of per-location quantities. All of that is resolved here, once,
// before a product reaches any other package.

// NormalizeProduct maps one raw backend product object into the canonical
// domain.Product. Legacy rule: when both per-location quantities are absent
// and the aggregate "stock" field is present, the whole quantity is treated
// as store stock with an empty warehouse. The same rule applies to the
// baseline fields.
func NormalizeProduct(raw json.RawMessage) (domain.Product, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return domain.Product{}, fmt.Errorf("normalize product: %w", err)
	}

	p := domain.Product{
		Barcode:     pickString(fields, "barcode"),
		ProductCode: pickString(fields, "product_code", "productCode", "urun_kodu"),
		Category:    pickString(fields, "category", "kategori"),
		Name:        pickString(fields, "name", "urun_adi"),
		Color:       pickString(fields, "color", "renk"),
		Size:        pickString(fields, "size", "beden"),
		CreatedAt:   pickString(fields, "created_at", "createdAt"),
	}
	if p.Barcode == "" {
		return domain.Product{}, fmt.Errorf("normalize product: missing barcode")
	}
	p.BuyPrice = pickFloat(fields, "buy_price", "buyPrice", "alis_fiyati")
	p.SellPrice = pickFloat(fields, "sell_price", "sellPrice", "satis_fiyati")

	storeQty := pickInt(fields, "store_qty", "storeQty", "magaza_stok")
	warehouseQty := pickInt(fields, "warehouse_qty", "warehouseQty", "depo_stok")
	legacyStock := pickInt(fields, "stock")

	if storeQty == nil && warehouseQty == nil && legacyStock != nil {
		p.StoreQty = *legacyStock
		p.WarehouseQty = 0
	} else {
		p.StoreQty = intOrZero(storeQty)
		p.WarehouseQty = intOrZero(warehouseQty)
	}

	storeStart := pickInt(fields, "store_start", "storeStart", "magaza_baslangic")
	warehouseStart := pickInt(fields, "warehouse_start", "warehouseStart", "depo_baslangic")
	if storeStart == nil && warehouseStart == nil && legacyStock != nil {
		p.StoreStart = *legacyStock
		p.WarehouseStart = 0
	} else {
		p.StoreStart = intOrZero(storeStart)
		p.WarehouseStart = intOrZero(warehouseStart)
	}

	p.TotalStart = pickInt(fields, "total_start", "totalStart", "toplam_stok")
	p.TotalRemaining = pickInt(fields, "total_remaining", "totalRemaining", "toplam_kalan")
	return p, nil
}

// NormalizeProducts maps a raw backend product array.
func NormalizeProducts(raw json.RawMessage) ([]domain.Product, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("normalize products: %w", err)
	}
	products := make([]domain.Product, 0, len(items))
	for i, item := range items {
		p, err := NormalizeProduct(item)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		products = append(products, p)
	}
	return products, nil
}

func pickString(fields map[string]json.RawMessage, keys ...string) string {
	for _, key := range keys {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func pickFloat(fields map[string]json.RawMessage, keys ...string) float64 {
	for _, key := range keys {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var f float64
		if err := json.Unmarshal(raw, &f); err == nil {
			return f
		}
	}
	return 0
}

// pickInt distinguishes "absent or null" from "present" because the legacy
// stock fold-in depends on it. Floats are accepted and truncated since some
// backend versions serialize counts as JSON numbers with a fraction part.
func pickInt(fields map[string]json.RawMessage, keys ...string) *int {
	for _, key := range keys {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			continue
		}
		n := int(math.Trunc(f))
		return &n
	}
	return nil
}

func intOrZero(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}
