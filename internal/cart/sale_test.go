package cart

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ilaydakx/pos-system/internal/domain"
	"github.com/ilaydakx/pos-system/internal/gateway"
)

// recordingInvoker captures the last command and args passed through so
// tests can assert on the exact submission payload.
type recordingInvoker struct {
	inner       gateway.Invoker
	lastCommand string
	lastArgs    json.RawMessage
}

func (r *recordingInvoker) Invoke(ctx context.Context, command string, args any) (json.RawMessage, error) {
	r.lastCommand = command
	if args != nil {
		raw, err := json.Marshal(args)
		if err != nil {
			return nil, err
		}
		r.lastArgs = raw
	} else {
		r.lastArgs = nil
	}
	return r.inner.Invoke(ctx, command, args)
}

func newTestSaleCart() (*SaleCart, *recordingInvoker) {
	rec := &recordingInvoker{inner: gateway.NewMemorySeeded()}
	return NewSaleCart(gateway.NewClient(rec)), rec
}

func TestAddByBarcodeEmptyInputIsNoop(t *testing.T) {
	cart, _ := newTestSaleCart()
	if err := cart.AddByBarcode(context.Background(), "   "); err != nil {
		t.Fatalf("empty scan: %v", err)
	}
	if len(cart.Lines()) != 0 {
		t.Fatalf("expected empty cart")
	}
}

func TestAddByBarcodeUnknownProduct(t *testing.T) {
	cart, _ := newTestSaleCart()
	err := cart.AddByBarcode(context.Background(), "0000000")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if len(cart.Lines()) != 0 {
		t.Fatalf("cart must stay unchanged on lookup failure")
	}
}

func TestIncrementCappedByStock(t *testing.T) {
	ctx := context.Background()
	cart, _ := newTestSaleCart()

	// 1000001 has four units at the store.
	for i := 0; i < 4; i++ {
		if err := cart.AddByBarcode(ctx, "1000001"); err != nil {
			t.Fatalf("scan %d: %v", i+1, err)
		}
	}
	lines := cart.Lines()
	if len(lines) != 1 || lines[0].Qty != 4 {
		t.Fatalf("expected one line qty=4, got %+v", lines)
	}

	err := cart.AddByBarcode(ctx, "1000001")
	if !errors.Is(err, domain.ErrOutOfStock) {
		t.Fatalf("expected ErrOutOfStock on fifth scan, got %v", err)
	}
	if got := cart.Lines()[0].Qty; got != 4 {
		t.Fatalf("rejected scan must leave quantity unchanged, got %d", got)
	}
}

func TestAddRejectsZeroStockAtDefaultLocation(t *testing.T) {
	ctx := context.Background()
	cart, _ := newTestSaleCart()

	// 1000003 has store stock zero but six at the warehouse.
	if err := cart.AddByBarcode(ctx, "1000003"); !errors.Is(err, domain.ErrOutOfStock) {
		t.Fatalf("expected ErrOutOfStock at store, got %v", err)
	}

	if err := cart.SetDefaultLocation(domain.LocationWarehouse); err != nil {
		t.Fatalf("set location: %v", err)
	}
	if err := cart.AddByBarcode(ctx, "1000003"); err != nil {
		t.Fatalf("expected scan to succeed from warehouse, got %v", err)
	}
	if got := cart.Lines()[0].SoldFrom; got != domain.LocationWarehouse {
		t.Fatalf("expected warehouse line, got %s", got)
	}
}

func TestDiscountTogglingIdempotence(t *testing.T) {
	ctx := context.Background()
	cart, _ := newTestSaleCart()
	if err := cart.AddByBarcode(ctx, "1000004"); err != nil {
		t.Fatalf("scan: %v", err)
	}
	list := cart.Lines()[0].ListPrice

	on := true
	amount := 5.0
	if err := cart.UpdateLine("1000004", domain.SaleLinePatch{DiscountEnabled: &on, DiscountAmount: &amount}); err != nil {
		t.Fatalf("enable discount: %v", err)
	}
	if got := cart.Lines()[0].UnitPrice; got != list-5 {
		t.Fatalf("expected unit price %v, got %v", list-5, got)
	}

	off := false
	if err := cart.UpdateLine("1000004", domain.SaleLinePatch{DiscountEnabled: &off}); err != nil {
		t.Fatalf("disable discount: %v", err)
	}
	line := cart.Lines()[0]
	if line.UnitPrice != list || line.DiscountAmount != 0 {
		t.Fatalf("disable must reset price and amount, got %+v", line)
	}

	// Re-enabling without a new amount starts from zero, not the old 5.
	if err := cart.UpdateLine("1000004", domain.SaleLinePatch{DiscountEnabled: &on}); err != nil {
		t.Fatalf("re-enable discount: %v", err)
	}
	line = cart.Lines()[0]
	if line.DiscountAmount != 0 || line.UnitPrice != list {
		t.Fatalf("re-enable must not restore the cleared amount, got %+v", line)
	}
}

func TestDiscountNeverBelowZero(t *testing.T) {
	ctx := context.Background()
	cart, _ := newTestSaleCart()
	if err := cart.AddByBarcode(ctx, "1000004"); err != nil {
		t.Fatalf("scan: %v", err)
	}
	on := true
	amount := 1e6
	if err := cart.UpdateLine("1000004", domain.SaleLinePatch{DiscountEnabled: &on, DiscountAmount: &amount}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := cart.Lines()[0].UnitPrice; got != 0 {
		t.Fatalf("expected unit price floored at 0, got %v", got)
	}
}

func TestQuantityClampsToOne(t *testing.T) {
	ctx := context.Background()
	cart, _ := newTestSaleCart()
	if err := cart.AddByBarcode(ctx, "1000004"); err != nil {
		t.Fatalf("scan: %v", err)
	}
	qty := -3
	if err := cart.UpdateLine("1000004", domain.SaleLinePatch{Qty: &qty}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := cart.Lines()[0].Qty; got != 1 {
		t.Fatalf("expected quantity clamped to 1, got %d", got)
	}
}

func TestTotalSumsLines(t *testing.T) {
	ctx := context.Background()
	cart, _ := newTestSaleCart()
	if err := cart.AddByBarcode(ctx, "1000001"); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if err := cart.AddByBarcode(ctx, "1000004"); err != nil {
		t.Fatalf("scan: %v", err)
	}
	want := 499.90 + 299.90
	if got := cart.Total(); got != want {
		t.Fatalf("expected total %v, got %v", want, got)
	}
}

func TestCommitEmptyCart(t *testing.T) {
	cart, _ := newTestSaleCart()
	_, err := cart.Commit(context.Background())
	if !errors.Is(err, domain.ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
}

func TestCommitFailureKeepsCart(t *testing.T) {
	ctx := context.Background()
	cart, _ := newTestSaleCart()
	if err := cart.AddByBarcode(ctx, "1000001"); err != nil {
		t.Fatalf("scan: %v", err)
	}
	// Force a backend rejection by raising the quantity past stock.
	qty := 99
	if err := cart.UpdateLine("1000001", domain.SaleLinePatch{Qty: &qty}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := cart.Commit(ctx); err == nil {
		t.Fatalf("expected commit rejection")
	}
	if len(cart.Lines()) != 1 {
		t.Fatalf("rejected commit must leave the cart intact")
	}
}

func TestEndToEndScanDiscountCommit(t *testing.T) {
	ctx := context.Background()
	cart, rec := newTestSaleCart()

	for i := 0; i < 2; i++ {
		if err := cart.AddByBarcode(ctx, "1000001"); err != nil {
			t.Fatalf("scan %d: %v", i+1, err)
		}
	}
	lines := cart.Lines()
	if len(lines) != 1 || lines[0].Qty != 2 {
		t.Fatalf("expected one line qty=2, got %+v", lines)
	}
	if lines[0].UnitPrice != lines[0].ListPrice {
		t.Fatalf("expected unit price to equal list price before discount")
	}
	if lines[0].SoldFrom != domain.LocationStore {
		t.Fatalf("expected default sold-from MAGAZA, got %s", lines[0].SoldFrom)
	}

	if err := cart.AddByBarcode(ctx, "1000001"); err != nil {
		t.Fatalf("third scan: %v", err)
	}
	on := true
	amount := 10.0
	if err := cart.UpdateLine("1000001", domain.SaleLinePatch{DiscountEnabled: &on, DiscountAmount: &amount}); err != nil {
		t.Fatalf("discount: %v", err)
	}

	if _, err := cart.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if rec.lastCommand != "create_sale" {
		t.Fatalf("expected create_sale submission, got %q", rec.lastCommand)
	}

	var payload domain.CreateSalePayload
	if err := json.Unmarshal(rec.lastArgs, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if len(payload.Items) != 1 {
		t.Fatalf("expected exactly one line, got %d", len(payload.Items))
	}
	item := payload.Items[0]
	if item.Qty != 3 || item.DiscountAmount != 10 || item.UnitPrice != item.ListPrice-10 {
		t.Fatalf("unexpected submission line: %+v", item)
	}
	if len(cart.Lines()) != 0 {
		t.Fatalf("expected cart cleared after successful commit")
	}
}

func TestUndoLastSaleDelegates(t *testing.T) {
	ctx := context.Background()
	cart, rec := newTestSaleCart()
	if err := cart.AddByBarcode(ctx, "1000001"); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if _, err := cart.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
	res, err := cart.UndoLast(ctx)
	if err != nil {
		t.Fatalf("undo: %v", err)
	}
	if rec.lastCommand != "undo_last_sale" || res.RestoredLines != 1 {
		t.Fatalf("unexpected undo: cmd=%q res=%+v", rec.lastCommand, res)
	}
}
