// Package cart holds the terminal-side transaction builders: the sale cart,
// the return/exchange flow, and the transfer cart. Each one accumulates
// scanned lines in memory and submits a single backend command on commit.
// Nothing here is persisted; the backend owns all durable state.
package cart

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ilaydakx/pos-system/internal/domain"
	"github.com/ilaydakx/pos-system/internal/gateway"
)

// SaleCart accumulates scanned products into sale lines keyed by barcode.
// One mutating backend call may be in flight at a time; a second caller gets
// domain.ErrBusy instead of queueing.
type SaleCart struct {
	mu       sync.Mutex
	busy     bool
	client   *gateway.Client
	soldFrom domain.Location
	payment  domain.PaymentMethod
	lines    []domain.SaleCartLine
}

func NewSaleCart(client *gateway.Client) *SaleCart {
	return &SaleCart{
		client:   client,
		soldFrom: domain.LocationStore,
		payment:  domain.PaymentCash,
	}
}

func (c *SaleCart) begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return domain.ErrBusy
	}
	c.busy = true
	return nil
}

func (c *SaleCart) end() {
	c.mu.Lock()
	c.busy = false
	c.mu.Unlock()
}

// SetDefaultLocation changes the location new lines sell from. Existing
// lines keep their own selection.
func (c *SaleCart) SetDefaultLocation(loc domain.Location) error {
	if !loc.Valid() {
		return fmt.Errorf("%w: location %q", domain.ErrInvalidInput, loc)
	}
	c.mu.Lock()
	c.soldFrom = loc
	c.mu.Unlock()
	return nil
}

func (c *SaleCart) SetPaymentMethod(m domain.PaymentMethod) error {
	if !m.Valid() {
		return fmt.Errorf("%w: payment method %q", domain.ErrInvalidInput, m)
	}
	c.mu.Lock()
	c.payment = m
	c.mu.Unlock()
	return nil
}

// AddByBarcode scans one product into the cart. Empty input is a no-op. A
// repeat scan increments the existing line by one but never past the stock
// at that line's selected location; a first scan snapshots the list price
// and requires at least one unit at the default location.
func (c *SaleCart) AddByBarcode(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil
	}
	if err := c.begin(); err != nil {
		return err
	}
	defer c.end()

	product, err := c.client.FindProduct(ctx, code)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.lines {
		line := &c.lines[i]
		if line.Barcode != product.Barcode {
			continue
		}
		if line.Qty+1 > product.StockAt(line.SoldFrom) {
			return fmt.Errorf("%w: %s at %s", domain.ErrOutOfStock, product.Barcode, line.SoldFrom)
		}
		line.Qty++
		return nil
	}

	if product.StockAt(c.soldFrom) < 1 {
		return fmt.Errorf("%w: %s at %s", domain.ErrOutOfStock, product.Barcode, c.soldFrom)
	}
	c.lines = append(c.lines, domain.SaleCartLine{
		Barcode:   product.Barcode,
		Name:      product.Name,
		Color:     product.Color,
		Size:      product.Size,
		Qty:       1,
		ListPrice: product.SellPrice,
		UnitPrice: product.SellPrice,
		SoldFrom:  c.soldFrom,
	})
	return nil
}

// UpdateLine applies quantity, location, and discount edits to one line.
// Quantity is clamped to a minimum of one; manual edits are not capped by
// stock, the backend is the final authority on commit. Disabling the
// discount clears the stored amount, so re-enabling starts from zero.
func (c *SaleCart) UpdateLine(barcode string, patch domain.SaleLinePatch) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	line := c.findLine(barcode)
	if line == nil {
		return fmt.Errorf("%w: line %s", domain.ErrNotFound, barcode)
	}

	if patch.Qty != nil {
		line.Qty = max(1, *patch.Qty)
	}
	if patch.SoldFrom != nil {
		if !patch.SoldFrom.Valid() {
			return fmt.Errorf("%w: location %q", domain.ErrInvalidInput, *patch.SoldFrom)
		}
		line.SoldFrom = *patch.SoldFrom
	}
	if patch.DiscountEnabled != nil {
		line.DiscountEnabled = *patch.DiscountEnabled
		if !line.DiscountEnabled {
			line.DiscountAmount = 0
		}
	}
	if patch.DiscountAmount != nil && line.DiscountEnabled {
		line.DiscountAmount = max(0, *patch.DiscountAmount)
	}

	if line.DiscountEnabled {
		line.UnitPrice = max(0, line.ListPrice-line.DiscountAmount)
	} else {
		line.UnitPrice = line.ListPrice
	}
	return nil
}

func (c *SaleCart) RemoveLine(barcode string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.lines {
		if c.lines[i].Barcode == barcode {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: line %s", domain.ErrNotFound, barcode)
}

func (c *SaleCart) Reset() {
	c.mu.Lock()
	c.lines = nil
	c.mu.Unlock()
}

// Lines returns a copy of the current cart lines in scan order.
func (c *SaleCart) Lines() []domain.SaleCartLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.SaleCartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *SaleCart) Total() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0.0
	for _, line := range c.lines {
		total += float64(line.Qty) * line.UnitPrice
	}
	return total
}

// Commit submits the cart as one sale. The cart clears only after the
// backend confirms; any rejection leaves every line intact for a retry.
func (c *SaleCart) Commit(ctx context.Context) (domain.CreateSaleResult, error) {
	if err := c.begin(); err != nil {
		return domain.CreateSaleResult{}, err
	}
	defer c.end()

	c.mu.Lock()
	if len(c.lines) == 0 {
		c.mu.Unlock()
		return domain.CreateSaleResult{}, domain.ErrEmptyCart
	}
	payload := domain.CreateSalePayload{
		SoldFromDefault: c.soldFrom,
		PaymentMethod:   c.payment,
		Items:           make([]domain.CreateSaleItem, 0, len(c.lines)),
	}
	for _, line := range c.lines {
		discount := 0.0
		if line.DiscountEnabled {
			discount = line.DiscountAmount
		}
		payload.Items = append(payload.Items, domain.CreateSaleItem{
			Barcode:        line.Barcode,
			Qty:            line.Qty,
			ListPrice:      line.ListPrice,
			DiscountAmount: discount,
			UnitPrice:      line.UnitPrice,
			SoldFrom:       line.SoldFrom,
		})
	}
	c.mu.Unlock()

	result, err := c.client.CreateSale(ctx, payload)
	if err != nil {
		return domain.CreateSaleResult{}, err
	}

	c.mu.Lock()
	c.lines = nil
	c.mu.Unlock()
	return result, nil
}

// UndoLast reverses the most recent sale. Entirely backend-side; the cart
// is untouched.
func (c *SaleCart) UndoLast(ctx context.Context) (domain.UndoSaleResult, error) {
	if err := c.begin(); err != nil {
		return domain.UndoSaleResult{}, err
	}
	defer c.end()
	return c.client.UndoLastSale(ctx)
}

func (c *SaleCart) findLine(barcode string) *domain.SaleCartLine {
	for i := range c.lines {
		if c.lines[i].Barcode == barcode {
			return &c.lines[i]
		}
	}
	return nil
}
