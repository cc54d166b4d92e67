// Package gateway wraps the backend command-invocation boundary. Every
// business call the terminal makes goes through a single Invoker, and all
// backend payloads are normalized into canonical domain types before any
// other package sees them.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ilaydakx/pos-system/internal/domain"
)

// Invoker is the raw command boundary: one command name, JSON-shaped args,
// JSON-shaped result. Implementations are the HTTP bridge to the real
// backend and the seeded in-memory backend used for dev mode and tests.
type Invoker interface {
	Invoke(ctx context.Context, command string, args any) (json.RawMessage, error)
}

// Client exposes the backend commands as typed calls. It owns decoding and
// product normalization so callers only ever handle domain types.
type Client struct {
	inv Invoker
}

func NewClient(inv Invoker) *Client {
	return &Client{inv: inv}
}

func (c *Client) call(ctx context.Context, command string, args any, out any) error {
	raw, err := c.inv.Invoke(ctx, command, args)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: decode result: %w", command, err)
	}
	return nil
}

// FindProduct looks up a single product by barcode. A null backend result
// maps to domain.ErrNotFound.
func (c *Client) FindProduct(ctx context.Context, barcode string) (*domain.Product, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return nil, fmt.Errorf("%w: barcode required", domain.ErrInvalidInput)
	}
	raw, err := c.inv.Invoke(ctx, "find_product", map[string]string{"barcode": barcode})
	if err != nil {
		return nil, err
	}
	if isNullResult(raw) {
		return nil, fmt.Errorf("%w: product %s", domain.ErrNotFound, barcode)
	}
	p, err := NormalizeProduct(raw)
	if err != nil {
		return nil, fmt.Errorf("find_product: %w", err)
	}
	return &p, nil
}

func (c *Client) ListProducts(ctx context.Context) ([]domain.Product, error) {
	raw, err := c.inv.Invoke(ctx, "list_products", nil)
	if err != nil {
		return nil, err
	}
	return NormalizeProducts(raw)
}

func (c *Client) AddProduct(ctx context.Context, payload domain.AddProductPayload) (domain.CreatedProduct, error) {
	var created domain.CreatedProduct
	err := c.call(ctx, "add_product", payload, &created)
	return created, err
}

func (c *Client) UpdateProduct(ctx context.Context, payload domain.UpdateProductPayload) error {
	return c.call(ctx, "update_product", payload, nil)
}

func (c *Client) DeleteProduct(ctx context.Context, barcode string) error {
	return c.call(ctx, "delete_product", map[string]string{"barcode": barcode}, nil)
}

func (c *Client) CreateSale(ctx context.Context, payload domain.CreateSalePayload) (domain.CreateSaleResult, error) {
	var res domain.CreateSaleResult
	err := c.call(ctx, "create_sale", payload, &res)
	return res, err
}

func (c *Client) UndoLastSale(ctx context.Context) (domain.UndoSaleResult, error) {
	var res domain.UndoSaleResult
	err := c.call(ctx, "undo_last_sale", nil, &res)
	return res, err
}

// ListSalesByBarcode fetches the sale history of a barcode within the given
// lookback window in days, newest first.
func (c *Client) ListSalesByBarcode(ctx context.Context, barcode string, days int) ([]domain.SaleHistoryLine, error) {
	args := struct {
		Barcode string `json:"barcode"`
		Days    int    `json:"days"`
	}{Barcode: barcode, Days: days}
	var lines []domain.SaleHistoryLine
	err := c.call(ctx, "list_sales_by_barcode", args, &lines)
	return lines, err
}

func (c *Client) CreateReturn(ctx context.Context, payload domain.CreateReturnPayload) (domain.CreateReturnResult, error) {
	var res domain.CreateReturnResult
	err := c.call(ctx, "create_return", payload, &res)
	return res, err
}

func (c *Client) CreateExchange(ctx context.Context, payload domain.CreateExchangePayload) (domain.CreateExchangeResult, error) {
	var res domain.CreateExchangeResult
	err := c.call(ctx, "create_exchange", payload, &res)
	return res, err
}

func (c *Client) CreateTransfer(ctx context.Context, payload domain.CreateTransferPayload) (domain.CreateTransferResult, error) {
	var res domain.CreateTransferResult
	err := c.call(ctx, "create_transfer", payload, &res)
	return res, err
}

func (c *Client) UndoLastTransfer(ctx context.Context) (domain.UndoTransferResult, error) {
	var res domain.UndoTransferResult
	err := c.call(ctx, "undo_last_transfer", nil, &res)
	return res, err
}

func (c *Client) ListExpenses(ctx context.Context, period string) ([]domain.Expense, error) {
	args := struct {
		Period *string `json:"period"`
	}{}
	if period != "" {
		args.Period = &period
	}
	var expenses []domain.Expense
	err := c.call(ctx, "list_expenses", args, &expenses)
	return expenses, err
}

func (c *Client) AddExpense(ctx context.Context, payload domain.AddExpensePayload) (domain.Expense, error) {
	var created domain.Expense
	err := c.call(ctx, "add_expense", payload, &created)
	return created, err
}

func (c *Client) DeleteExpense(ctx context.Context, id int64) error {
	return c.call(ctx, "delete_expense", map[string]int64{"id": id}, nil)
}

func (c *Client) DashboardSummary(ctx context.Context) (domain.DashboardSummary, error) {
	var summary domain.DashboardSummary
	err := c.call(ctx, "get_dashboard_summary", nil, &summary)
	return summary, err
}

func (c *Client) CashReport(ctx context.Context, days int) ([]domain.CashReportRow, error) {
	var rows []domain.CashReportRow
	err := c.call(ctx, "get_cash_report", map[string]int{"days": days}, &rows)
	return rows, err
}

func (c *Client) ListSaleGroups(ctx context.Context, days int) ([]domain.SaleGroupRow, error) {
	var rows []domain.SaleGroupRow
	err := c.call(ctx, "list_sale_groups", map[string]int{"days": days}, &rows)
	return rows, err
}

func (c *Client) ListSalesByGroup(ctx context.Context, saleGroupID string) ([]domain.SaleGroupLine, error) {
	var rows []domain.SaleGroupLine
	err := c.call(ctx, "list_sales_by_group", map[string]string{"sale_group_id": saleGroupID}, &rows)
	return rows, err
}

// ListDictionary returns the active entries of a reference list. The full
// variant includes deactivated rows for the management views.
func (c *Client) ListDictionary(ctx context.Context, kind string, includeInactive bool) ([]domain.DictionaryEntry, error) {
	command, err := dictCommand("list", kind)
	if err != nil {
		return nil, err
	}
	args := struct {
		IncludeInactive bool `json:"include_inactive"`
	}{IncludeInactive: includeInactive}
	var entries []domain.DictionaryEntry
	err = c.call(ctx, command, args, &entries)
	return entries, err
}

func (c *Client) CreateDictionaryEntry(ctx context.Context, kind, name string) (domain.DictionaryEntry, error) {
	var entry domain.DictionaryEntry
	command, err := dictCommand("create", kind)
	if err != nil {
		return entry, err
	}
	err = c.call(ctx, command, map[string]string{"name": name}, &entry)
	return entry, err
}

func (c *Client) UpdateDictionaryEntry(ctx context.Context, kind string, entry domain.DictionaryEntry) error {
	command, err := dictCommand("update", kind)
	if err != nil {
		return err
	}
	return c.call(ctx, command, entry, nil)
}

func (c *Client) DeleteDictionaryEntry(ctx context.Context, kind string, id int64) error {
	command, err := dictCommand("delete", kind)
	if err != nil {
		return err
	}
	return c.call(ctx, command, map[string]int64{"id": id}, nil)
}

func (c *Client) BackupNow(ctx context.Context) (domain.BackupResult, error) {
	var res domain.BackupResult
	err := c.call(ctx, "backup_now", nil, &res)
	return res, err
}

func (c *Client) BackupDir(ctx context.Context) (string, error) {
	var dir string
	err := c.call(ctx, "get_backup_dir", nil, &dir)
	return dir, err
}

var dictSingular = map[string]string{
	domain.DictCategories: "category",
	domain.DictColors:     "color",
	domain.DictSizes:      "size",
}

// dictCommand maps a verb and dictionary kind to the backend command name,
// e.g. ("create", "colors") -> "create_color".
func dictCommand(verb, kind string) (string, error) {
	singular, ok := dictSingular[kind]
	if !ok {
		return "", fmt.Errorf("%w: unknown dictionary %q", domain.ErrInvalidInput, kind)
	}
	switch verb {
	case "list":
		return "list_" + kind, nil
	case "create", "update", "delete":
		return verb + "_" + singular, nil
	}
	return "", fmt.Errorf("%w: unknown dictionary verb %q", domain.ErrInvalidInput, verb)
}

func isNullResult(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed == "" || trimmed == "null"
}
