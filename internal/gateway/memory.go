package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ilaydakx/pos-system/internal/domain"
	"github.com/ilaydakx/pos-system/internal/xid"
)

// Memory is a full in-process implementation of the backend command set,
// used when no backend URL is configured and by the test suites. It keeps
// the same observable behavior as the real backend, including the legacy
// single-stock product rows that the normalization layer has to fold.
type Memory struct {
	mu             sync.Mutex
	now            func() time.Time
	products       map[string]*productRow
	sales          []*saleRow
	transfers      []*transferRow
	expenses       []domain.Expense
	dicts          map[string][]domain.DictionaryEntry
	nextSaleID     int64
	nextExpenseID  int64
	nextDictID     int64
	nextBarcode    int64
	backupDir      string
	lastSaleGroup  string
	lastTransferID string
}

// productRow is the storage shape, serialized with the backend's historical
// column names. Legacy rows carry only Stock; migrated rows carry the
// per-location fields.
type productRow struct {
	Barcode        string   `json:"barcode"`
	ProductCode    *string  `json:"product_code,omitempty"`
	Category       *string  `json:"category,omitempty"`
	Name           string   `json:"name"`
	Color          *string  `json:"color,omitempty"`
	Size           *string  `json:"size,omitempty"`
	BuyPrice       float64  `json:"buy_price"`
	SellPrice      float64  `json:"sell_price"`
	CreatedAt      string   `json:"created_at"`
	Stock          *int     `json:"stock,omitempty"`
	StoreQty       *int     `json:"magaza_stok,omitempty"`
	WarehouseQty   *int     `json:"depo_stok,omitempty"`
	StoreStart     *int     `json:"magaza_baslangic,omitempty"`
	WarehouseStart *int     `json:"depo_baslangic,omitempty"`
	TotalStart     *int     `json:"toplam_stok,omitempty"`
	TotalRemaining *int     `json:"toplam_kalan,omitempty"`
}

func (r *productRow) qtyAt(loc domain.Location) int {
	if r.StoreQty == nil && r.WarehouseQty == nil && r.Stock != nil {
		if loc == domain.LocationStore {
			return *r.Stock
		}
		return 0
	}
	if loc == domain.LocationStore {
		return intOrZero(r.StoreQty)
	}
	return intOrZero(r.WarehouseQty)
}

// adjustQty materializes the per-location fields on first mutation of a
// legacy row, then applies the delta. Quantities may go negative; the
// reconciliation view is what surfaces that.
func (r *productRow) adjustQty(loc domain.Location, delta int) {
	if r.StoreQty == nil && r.WarehouseQty == nil && r.Stock != nil {
		store, warehouse := *r.Stock, 0
		r.StoreQty, r.WarehouseQty = &store, &warehouse
	}
	if r.StoreQty == nil {
		r.StoreQty = new(int)
	}
	if r.WarehouseQty == nil {
		r.WarehouseQty = new(int)
	}
	if loc == domain.LocationStore {
		*r.StoreQty += delta
	} else {
		*r.WarehouseQty += delta
	}
}

type saleRow struct {
	ID             int64
	GroupID        string
	Barcode        string
	Name           string
	Qty            int
	ListPrice      float64
	DiscountAmount float64
	UnitPrice      float64
	SoldAt         time.Time
	SoldFrom       domain.Location
	PaymentMethod  string
	RefundedQty    int
	Kind           string
}

type transferRow struct {
	GroupID string
	Barcode string
	Qty     int
	From    domain.Location
	To      domain.Location
	Note    string
	MovedAt time.Time
}

func intPtr(n int) *int       { return &n }
func strPtr(s string) *string { return &s }

// NewMemorySeeded builds a memory backend with a small garment catalog,
// including one legacy single-stock row, plus starter dictionaries.
func NewMemorySeeded() *Memory {
	now := time.Now
	created := now().UTC().Format(time.RFC3339)

	products := []*productRow{
		{
			Barcode: "1000001", ProductCode: strPtr("ELB-001"), Category: strPtr("Elbise"),
			Name: "Yazlik Elbise", Color: strPtr("Siyah"), Size: strPtr("M"),
			BuyPrice: 250, SellPrice: 499.90, CreatedAt: created,
			StoreQty: intPtr(4), WarehouseQty: intPtr(0),
			StoreStart: intPtr(10), WarehouseStart: intPtr(0),
			TotalStart: intPtr(10), TotalRemaining: intPtr(4),
		},
		{
			Barcode: "1000002", ProductCode: strPtr("ELB-001"), Category: strPtr("Elbise"),
			Name: "Yazlik Elbise", Color: strPtr("Siyah"), Size: strPtr("L"),
			BuyPrice: 250, SellPrice: 499.90, CreatedAt: created,
			StoreQty: intPtr(2), WarehouseQty: intPtr(5),
			StoreStart: intPtr(5), WarehouseStart: intPtr(5),
			TotalStart: intPtr(10), TotalRemaining: intPtr(7),
		},
		{
			Barcode: "1000003", ProductCode: strPtr("PNT-010"), Category: strPtr("Pantolon"),
			Name: "Kumas Pantolon", Color: strPtr("Lacivert"), Size: strPtr("32"),
			BuyPrice: 180, SellPrice: 399.90, CreatedAt: created,
			StoreQty: intPtr(0), WarehouseQty: intPtr(6),
			StoreStart: intPtr(3), WarehouseStart: intPtr(6),
		},
		// Legacy row from before the per-location migration.
		{
			Barcode: "1000004", Category: strPtr("Gomlek"),
			Name: "Keten Gomlek", Color: strPtr("Beyaz"), Size: strPtr("S"),
			BuyPrice: 120, SellPrice: 299.90, CreatedAt: created,
			Stock: intPtr(8),
		},
		{
			Barcode: "1000005", ProductCode: strPtr("ETK-021"), Category: strPtr("Etek"),
			Name: "Pileli Etek", Color: strPtr("Kirmizi"), Size: strPtr("M"),
			BuyPrice: 90, SellPrice: 249.90, CreatedAt: created,
			StoreQty: intPtr(0), WarehouseQty: intPtr(0),
			StoreStart: intPtr(4), WarehouseStart: intPtr(2),
		},
	}

	productMap := make(map[string]*productRow, len(products))
	for _, p := range products {
		productMap[p.Barcode] = p
	}

	dicts := map[string][]domain.DictionaryEntry{
		domain.DictCategories: {},
		domain.DictColors:     {},
		domain.DictSizes:      {},
	}
	m := &Memory{
		now:           now,
		products:      productMap,
		dicts:         dicts,
		nextSaleID:    1,
		nextExpenseID: 1,
		nextDictID:    1,
		nextBarcode:   1000006,
		backupDir:     "backups",
	}
	for _, name := range []string{"Elbise", "Pantolon", "Gomlek", "Etek"} {
		m.addDictEntry(domain.DictCategories, name)
	}
	for _, name := range []string{"Siyah", "Beyaz", "Lacivert", "Kirmizi"} {
		m.addDictEntry(domain.DictColors, name)
	}
	for _, name := range []string{"S", "M", "L", "32"} {
		m.addDictEntry(domain.DictSizes, name)
	}
	return m
}

// SetClock overrides the time source. Test helper.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *Memory) addDictEntry(kind, name string) domain.DictionaryEntry {
	order := len(m.dicts[kind]) + 1
	entry := domain.DictionaryEntry{ID: m.nextDictID, Name: name, SortOrder: intPtr(order), Active: true}
	m.nextDictID++
	m.dicts[kind] = append(m.dicts[kind], entry)
	return entry
}

func decodeArgs(args any, out any) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode args: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode args: %w", err)
	}
	return nil
}

func reply(v any) (json.RawMessage, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return raw, nil
}

func (m *Memory) Invoke(_ context.Context, command string, args any) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch command {
	case "find_product":
		return m.findProduct(args)
	case "list_products":
		return m.listProducts()
	case "add_product":
		return m.addProduct(args)
	case "update_product":
		return m.updateProduct(args)
	case "delete_product":
		return m.deleteProduct(args)
	case "create_sale":
		return m.createSale(args)
	case "undo_last_sale":
		return m.undoLastSale()
	case "list_sales_by_barcode":
		return m.listSalesByBarcode(args)
	case "create_return":
		return m.createReturn(args)
	case "create_exchange":
		return m.createExchange(args)
	case "create_transfer":
		return m.createTransfer(args)
	case "undo_last_transfer":
		return m.undoLastTransfer()
	case "list_expenses":
		return m.listExpenses(args)
	case "add_expense":
		return m.addExpense(args)
	case "delete_expense":
		return m.deleteExpense(args)
	case "get_dashboard_summary":
		return m.dashboardSummary()
	case "get_cash_report":
		return m.cashReport(args)
	case "list_sale_groups":
		return m.listSaleGroups(args)
	case "list_sales_by_group":
		return m.listSalesByGroup(args)
	case "backup_now":
		return m.backupNow()
	case "get_backup_dir":
		return reply(m.backupDir)
	}
	if raw, handled, err := m.invokeDict(command, args); handled {
		return raw, err
	}
	return nil, fmt.Errorf("unknown command %q", command)
}

func (m *Memory) findProduct(args any) (json.RawMessage, error) {
	var in struct {
		Barcode string `json:"barcode"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	row, ok := m.products[strings.TrimSpace(in.Barcode)]
	if !ok {
		return json.RawMessage("null"), nil
	}
	return reply(row)
}

func (m *Memory) listProducts() (json.RawMessage, error) {
	rows := make([]*productRow, 0, len(m.products))
	for _, row := range m.products {
		rows = append(rows, row)
	}
	slices.SortFunc(rows, func(a, b *productRow) int {
		if a.Name == b.Name {
			return strings.Compare(a.Barcode, b.Barcode)
		}
		return strings.Compare(a.Name, b.Name)
	})
	return reply(rows)
}

func (m *Memory) addProduct(args any) (json.RawMessage, error) {
	var in domain.AddProductPayload
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" || in.SellPrice <= 0 {
		return nil, fmt.Errorf("name and sell price are required")
	}
	barcode := ""
	if in.Barcode != nil {
		barcode = strings.TrimSpace(*in.Barcode)
	}
	if barcode == "" {
		barcode = fmt.Sprintf("%d", m.nextBarcode)
		m.nextBarcode++
	}
	if _, exists := m.products[barcode]; exists {
		return nil, fmt.Errorf("barcode %s already exists", barcode)
	}

	row := &productRow{
		Barcode:        barcode,
		ProductCode:    in.ProductCode,
		Category:       in.Category,
		Name:           in.Name,
		Color:          in.Color,
		Size:           in.Size,
		SellPrice:      in.SellPrice,
		CreatedAt:      m.now().UTC().Format(time.RFC3339),
		StoreQty:       intPtr(in.StoreStart),
		WarehouseQty:   intPtr(in.WarehouseStart),
		StoreStart:     intPtr(in.StoreStart),
		WarehouseStart: intPtr(in.WarehouseStart),
	}
	if in.BuyPrice != nil {
		row.BuyPrice = *in.BuyPrice
	}
	m.products[barcode] = row

	result := domain.CreatedProduct{Barcode: barcode}
	if in.ProductCode != nil {
		result.ProductCode = *in.ProductCode
	}
	return reply(result)
}

func (m *Memory) updateProduct(args any) (json.RawMessage, error) {
	var in domain.UpdateProductPayload
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	row, ok := m.products[in.Barcode]
	if !ok {
		return nil, fmt.Errorf("product %s not found", in.Barcode)
	}
	if in.Name != nil {
		row.Name = strings.TrimSpace(*in.Name)
	}
	if in.ProductCode != nil {
		row.ProductCode = in.ProductCode
	}
	if in.Category != nil {
		row.Category = in.Category
	}
	if in.Color != nil {
		row.Color = in.Color
	}
	if in.Size != nil {
		row.Size = in.Size
	}
	if in.BuyPrice != nil {
		row.BuyPrice = *in.BuyPrice
	}
	if in.SellPrice != nil {
		row.SellPrice = *in.SellPrice
	}
	return reply(row)
}

func (m *Memory) deleteProduct(args any) (json.RawMessage, error) {
	var in struct {
		Barcode string `json:"barcode"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	if _, ok := m.products[in.Barcode]; !ok {
		return nil, fmt.Errorf("product %s not found", in.Barcode)
	}
	delete(m.products, in.Barcode)
	return reply(true)
}

func (m *Memory) createSale(args any) (json.RawMessage, error) {
	var in domain.CreateSalePayload
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("sale has no items")
	}
	if !in.PaymentMethod.Valid() {
		return nil, fmt.Errorf("invalid payment method %q", in.PaymentMethod)
	}
	for _, item := range in.Items {
		row, ok := m.products[item.Barcode]
		if !ok {
			return nil, fmt.Errorf("product %s not found", item.Barcode)
		}
		if item.Qty < 1 {
			return nil, fmt.Errorf("invalid quantity for %s", item.Barcode)
		}
		if row.qtyAt(item.SoldFrom) < item.Qty {
			return nil, fmt.Errorf("insufficient stock for %s at %s", item.Barcode, item.SoldFrom)
		}
	}

	groupID := xid.New("sale")
	soldAt := m.now().UTC()
	total := 0.0
	for _, item := range in.Items {
		row := m.products[item.Barcode]
		row.adjustQty(item.SoldFrom, -item.Qty)
		total += float64(item.Qty) * item.UnitPrice
		m.sales = append(m.sales, &saleRow{
			ID:             m.nextSaleID,
			GroupID:        groupID,
			Barcode:        item.Barcode,
			Name:           row.Name,
			Qty:            item.Qty,
			ListPrice:      item.ListPrice,
			DiscountAmount: item.DiscountAmount,
			UnitPrice:      item.UnitPrice,
			SoldAt:         soldAt,
			SoldFrom:       item.SoldFrom,
			PaymentMethod:  string(in.PaymentMethod),
			Kind:           "SALE",
		})
		m.nextSaleID++
	}
	m.lastSaleGroup = groupID
	return reply(domain.CreateSaleResult{SaleGroupID: groupID, Total: total, Lines: len(in.Items)})
}

func (m *Memory) undoLastSale() (json.RawMessage, error) {
	if m.lastSaleGroup == "" {
		return nil, fmt.Errorf("no sale to undo")
	}
	groupID := m.lastSaleGroup
	restored := 0
	kept := m.sales[:0]
	for _, row := range m.sales {
		if row.GroupID == groupID && row.Kind == "SALE" {
			m.products[row.Barcode].adjustQty(row.SoldFrom, row.Qty)
			restored++
			continue
		}
		kept = append(kept, row)
	}
	m.sales = kept
	m.lastSaleGroup = ""
	if restored == 0 {
		return nil, fmt.Errorf("no sale to undo")
	}
	return reply(domain.UndoSaleResult{SaleGroupID: groupID, RestoredLines: restored})
}

func (m *Memory) listSalesByBarcode(args any) (json.RawMessage, error) {
	var in struct {
		Barcode string `json:"barcode"`
		Days    int    `json:"days"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	cutoff := m.now().UTC().AddDate(0, 0, -in.Days)
	lines := make([]domain.SaleHistoryLine, 0)
	for _, row := range m.sales {
		if row.Kind != "SALE" || row.Barcode != in.Barcode || row.SoldAt.Before(cutoff) {
			continue
		}
		lines = append(lines, domain.SaleHistoryLine{
			SoldAt:      row.SoldAt.Format(time.RFC3339),
			Qty:         row.Qty,
			UnitPrice:   row.UnitPrice,
			Total:       float64(row.Qty) * row.UnitPrice,
			SoldFrom:    row.SoldFrom,
			RefundedQty: row.RefundedQty,
		})
	}
	slices.SortFunc(lines, func(a, b domain.SaleHistoryLine) int {
		return strings.Compare(b.SoldAt, a.SoldAt)
	})
	return reply(lines)
}

// applyReturn restocks the returned quantity and marks the matching
// historical sale line refunded when provenance is present. It appends a
// refund row so the cash report sees the outflow.
func (m *Memory) applyReturn(item domain.ReturnedItem, mode string) (float64, error) {
	row, ok := m.products[item.Barcode]
	if !ok {
		return 0, fmt.Errorf("product %s not found", item.Barcode)
	}
	if item.Qty < 1 {
		return 0, fmt.Errorf("invalid return quantity")
	}
	if !item.ReturnTo.Valid() {
		return 0, fmt.Errorf("invalid return location %q", item.ReturnTo)
	}

	method := string(domain.PaymentCash)
	if item.SoldAt != nil && item.SoldFrom != nil {
		matched := false
		for _, sale := range m.sales {
			if sale.Kind != "SALE" || sale.Barcode != item.Barcode || sale.SoldFrom != *item.SoldFrom {
				continue
			}
			if sale.SoldAt.Format(time.RFC3339) != *item.SoldAt {
				continue
			}
			if sale.Qty-sale.RefundedQty < item.Qty {
				return 0, fmt.Errorf("refund exceeds remaining quantity")
			}
			sale.RefundedQty += item.Qty
			method = sale.PaymentMethod
			matched = true
			break
		}
		if !matched {
			return 0, fmt.Errorf("sale line not found for %s", item.Barcode)
		}
	}

	row.adjustQty(item.ReturnTo, item.Qty)
	total := float64(item.Qty) * item.UnitPrice
	m.sales = append(m.sales, &saleRow{
		ID:            m.nextSaleID,
		GroupID:       xid.New("ret"),
		Barcode:       item.Barcode,
		Name:          row.Name,
		Qty:           item.Qty,
		UnitPrice:     item.UnitPrice,
		SoldAt:        m.now().UTC(),
		SoldFrom:      item.ReturnTo,
		PaymentMethod: method,
		Kind:          mode,
	})
	m.nextSaleID++
	return total, nil
}

func (m *Memory) createReturn(args any) (json.RawMessage, error) {
	var in domain.CreateReturnPayload
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	if in.Mode != domain.ReturnModeRefund {
		return nil, fmt.Errorf("invalid return mode %q", in.Mode)
	}
	total, err := m.applyReturn(in.ReturnedItem, "REFUND")
	if err != nil {
		return nil, err
	}
	return reply(domain.CreateReturnResult{
		ReturnGroupID: xid.New("retgrp"),
		Lines:         1,
		ReturnedTotal: total,
	})
}

func (m *Memory) createExchange(args any) (json.RawMessage, error) {
	var in domain.CreateExchangePayload
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	if in.Mode != domain.ReturnModeExchange {
		return nil, fmt.Errorf("invalid exchange mode %q", in.Mode)
	}
	if len(in.Given) == 0 {
		return nil, fmt.Errorf("exchange has no given items")
	}
	// Validate every given line before touching any stock so a rejected
	// exchange leaves nothing applied.
	for _, item := range in.Given {
		if _, ok := m.products[item.Barcode]; !ok {
			return nil, fmt.Errorf("product %s not found", item.Barcode)
		}
		if item.Qty < 1 {
			return nil, fmt.Errorf("invalid quantity for %s", item.Barcode)
		}
		if !item.SoldFrom.Valid() {
			return nil, fmt.Errorf("invalid location %q for %s", item.SoldFrom, item.Barcode)
		}
	}
	returnedTotal, err := m.applyReturn(in.Returned, "EXCHANGE")
	if err != nil {
		return nil, err
	}

	groupID := xid.New("exch")
	soldAt := m.now().UTC()
	givenTotal := 0.0
	method := string(domain.PaymentCash)
	if in.Summary.DiffPaymentMethod != nil {
		method = string(*in.Summary.DiffPaymentMethod)
	}
	for _, item := range in.Given {
		row := m.products[item.Barcode]
		// Given lines may drive stock negative; reconciliation flags it.
		row.adjustQty(item.SoldFrom, -item.Qty)
		givenTotal += float64(item.Qty) * item.UnitPrice
		m.sales = append(m.sales, &saleRow{
			ID:            m.nextSaleID,
			GroupID:       groupID,
			Barcode:       item.Barcode,
			Name:          row.Name,
			Qty:           item.Qty,
			ListPrice:     item.UnitPrice,
			UnitPrice:     item.UnitPrice,
			SoldAt:        soldAt,
			SoldFrom:      item.SoldFrom,
			PaymentMethod: method,
			Kind:          "SALE",
		})
		m.nextSaleID++
	}
	return reply(domain.CreateExchangeResult{
		ExchangeGroupID: groupID,
		Lines:           len(in.Given) + 1,
		ReturnedTotal:   returnedTotal,
		GivenTotal:      givenTotal,
		Diff:            givenTotal - returnedTotal,
	})
}

func (m *Memory) createTransfer(args any) (json.RawMessage, error) {
	var in domain.CreateTransferPayload
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("transfer has no items")
	}
	for _, item := range in.Items {
		row, ok := m.products[item.Barcode]
		if !ok {
			return nil, fmt.Errorf("product %s not found", item.Barcode)
		}
		if item.Qty < 1 {
			return nil, fmt.Errorf("invalid quantity for %s", item.Barcode)
		}
		if item.FromLoc == item.ToLoc {
			return nil, fmt.Errorf("transfer source equals destination for %s", item.Barcode)
		}
		if row.qtyAt(item.FromLoc) < item.Qty {
			return nil, fmt.Errorf("insufficient stock for %s at %s", item.Barcode, item.FromLoc)
		}
	}

	groupID := xid.New("trf")
	movedAt := m.now().UTC()
	note := ""
	if in.Note != nil {
		note = *in.Note
	}
	for _, item := range in.Items {
		row := m.products[item.Barcode]
		row.adjustQty(item.FromLoc, -item.Qty)
		row.adjustQty(item.ToLoc, item.Qty)
		m.transfers = append(m.transfers, &transferRow{
			GroupID: groupID,
			Barcode: item.Barcode,
			Qty:     item.Qty,
			From:    item.FromLoc,
			To:      item.ToLoc,
			Note:    note,
			MovedAt: movedAt,
		})
	}
	m.lastTransferID = groupID
	return reply(domain.CreateTransferResult{TransferGroupID: groupID, Lines: len(in.Items)})
}

func (m *Memory) undoLastTransfer() (json.RawMessage, error) {
	if m.lastTransferID == "" {
		return nil, fmt.Errorf("no transfer to undo")
	}
	groupID := m.lastTransferID
	restored := 0
	kept := m.transfers[:0]
	for _, row := range m.transfers {
		if row.GroupID == groupID {
			m.products[row.Barcode].adjustQty(row.To, -row.Qty)
			m.products[row.Barcode].adjustQty(row.From, row.Qty)
			restored++
			continue
		}
		kept = append(kept, row)
	}
	m.transfers = kept
	m.lastTransferID = ""
	return reply(domain.UndoTransferResult{TransferGroupID: groupID, RestoredLines: restored})
}

func (m *Memory) listExpenses(args any) (json.RawMessage, error) {
	var in struct {
		Period *string `json:"period"`
	}
	if args != nil {
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
	}
	out := make([]domain.Expense, 0, len(m.expenses))
	for _, e := range m.expenses {
		if in.Period != nil && !strings.HasPrefix(e.SpentAt, *in.Period) {
			continue
		}
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b domain.Expense) int {
		return strings.Compare(b.SpentAt, a.SpentAt)
	})
	return reply(out)
}

func (m *Memory) addExpense(args any) (json.RawMessage, error) {
	var in domain.AddExpensePayload
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	if in.Amount <= 0 {
		return nil, fmt.Errorf("expense amount must be positive")
	}
	spentAt := strings.TrimSpace(in.SpentAt)
	if spentAt == "" {
		spentAt = m.now().UTC().Format("2006-01-02")
	}
	expense := domain.Expense{
		ID:      m.nextExpenseID,
		SpentAt: spentAt,
		Amount:  in.Amount,
	}
	if len(spentAt) >= 7 {
		expense.Period = spentAt[:7]
	}
	if in.Category != nil {
		expense.Category = *in.Category
	}
	if in.Note != nil {
		expense.Note = *in.Note
	}
	m.nextExpenseID++
	m.expenses = append(m.expenses, expense)
	return reply(expense)
}

func (m *Memory) deleteExpense(args any) (json.RawMessage, error) {
	var in struct {
		ID int64 `json:"id"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	for i, e := range m.expenses {
		if e.ID == in.ID {
			m.expenses = append(m.expenses[:i], m.expenses[i+1:]...)
			return reply(true)
		}
	}
	return nil, fmt.Errorf("expense %d not found", in.ID)
}

func (m *Memory) invokeDict(command string, args any) (json.RawMessage, bool, error) {
	for kind, singular := range dictSingular {
		switch command {
		case "list_" + kind:
			var in struct {
				IncludeInactive bool `json:"include_inactive"`
			}
			if args != nil {
				if err := decodeArgs(args, &in); err != nil {
					return nil, true, err
				}
			}
			out := make([]domain.DictionaryEntry, 0, len(m.dicts[kind]))
			for _, entry := range m.dicts[kind] {
				if !entry.Active && !in.IncludeInactive {
					continue
				}
				out = append(out, entry)
			}
			raw, err := reply(out)
			return raw, true, err
		case "create_" + singular:
			var in struct {
				Name string `json:"name"`
			}
			if err := decodeArgs(args, &in); err != nil {
				return nil, true, err
			}
			in.Name = strings.TrimSpace(in.Name)
			if in.Name == "" {
				return nil, true, fmt.Errorf("name is required")
			}
			for _, entry := range m.dicts[kind] {
				if strings.EqualFold(entry.Name, in.Name) {
					return nil, true, fmt.Errorf("%s already exists", in.Name)
				}
			}
			raw, err := reply(m.addDictEntry(kind, in.Name))
			return raw, true, err
		case "update_" + singular:
			var in domain.DictionaryEntry
			if err := decodeArgs(args, &in); err != nil {
				return nil, true, err
			}
			for i, entry := range m.dicts[kind] {
				if entry.ID == in.ID {
					m.dicts[kind][i] = in
					raw, err := reply(in)
					return raw, true, err
				}
			}
			return nil, true, fmt.Errorf("entry %d not found", in.ID)
		case "delete_" + singular:
			var in struct {
				ID int64 `json:"id"`
			}
			if err := decodeArgs(args, &in); err != nil {
				return nil, true, err
			}
			for i, entry := range m.dicts[kind] {
				if entry.ID == in.ID {
					m.dicts[kind] = append(m.dicts[kind][:i], m.dicts[kind][i+1:]...)
					raw, err := reply(true)
					return raw, true, err
				}
			}
			return nil, true, fmt.Errorf("entry %d not found", in.ID)
		}
	}
	return nil, false, nil
}

func (m *Memory) backupNow() (json.RawMessage, error) {
	now := m.now().UTC()
	return reply(domain.BackupResult{
		Path:      fmt.Sprintf("%s/pos-%s.db", m.backupDir, now.Format("20060102-150405")),
		SizeBytes: 0,
		CreatedAt: now.Format(time.RFC3339),
	})
}
