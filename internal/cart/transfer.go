package cart

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ilaydakx/pos-system/internal/domain"
	"github.com/ilaydakx/pos-system/internal/gateway"
)

// TransferCart accumulates stock movements between the two locations. Every
// line keeps its own source and destination; the invariant that they never
// match is preserved by flipping the counterpart field on conflicting edits.
type TransferCart struct {
	mu          sync.Mutex
	busy        bool
	client      *gateway.Client
	defaultFrom domain.Location
	note        string
	lines       []domain.TransferLine
}

func NewTransferCart(client *gateway.Client) *TransferCart {
	return &TransferCart{client: client, defaultFrom: domain.LocationStore}
}

func (c *TransferCart) begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return domain.ErrBusy
	}
	c.busy = true
	return nil
}

func (c *TransferCart) end() {
	c.mu.Lock()
	c.busy = false
	c.mu.Unlock()
}

func (c *TransferCart) SetDefaultFrom(loc domain.Location) error {
	if !loc.Valid() {
		return fmt.Errorf("%w: location %q", domain.ErrInvalidInput, loc)
	}
	c.mu.Lock()
	c.defaultFrom = loc
	c.mu.Unlock()
	return nil
}

func (c *TransferCart) SetNote(note string) {
	c.mu.Lock()
	c.note = strings.TrimSpace(note)
	c.mu.Unlock()
}

// AddByBarcode scans a product into the transfer cart. A repeat scan
// increments the existing line; a new line moves from the default source to
// its opposite. Stock is not checked locally, the backend rejects over-
// draws on commit.
func (c *TransferCart) AddByBarcode(ctx context.Context, code string) error {
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
		if c.lines[i].Barcode == product.Barcode {
			c.lines[i].Qty++
			return nil
		}
	}
	c.lines = append(c.lines, domain.TransferLine{
		Barcode: product.Barcode,
		Name:    product.Name,
		Color:   product.Color,
		Size:    product.Size,
		Qty:     1,
		FromLoc: c.defaultFrom,
		ToLoc:   c.defaultFrom.Other(),
	})
	return nil
}

// UpdateLine applies edits to one transfer line. Quantity clamps to one.
// Whenever an edit would leave source and destination equal, the field that
// was not edited flips to the opposite location.
func (c *TransferCart) UpdateLine(barcode string, patch domain.TransferLinePatch) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var line *domain.TransferLine
	for i := range c.lines {
		if c.lines[i].Barcode == barcode {
			line = &c.lines[i]
			break
		}
	}
	if line == nil {
		return fmt.Errorf("%w: line %s", domain.ErrNotFound, barcode)
	}

	if patch.Qty != nil {
		line.Qty = max(1, *patch.Qty)
	}
	if patch.FromLoc != nil {
		if !patch.FromLoc.Valid() {
			return fmt.Errorf("%w: location %q", domain.ErrInvalidInput, *patch.FromLoc)
		}
		line.FromLoc = *patch.FromLoc
		if line.ToLoc == line.FromLoc {
			line.ToLoc = line.FromLoc.Other()
		}
	}
	if patch.ToLoc != nil {
		if !patch.ToLoc.Valid() {
			return fmt.Errorf("%w: location %q", domain.ErrInvalidInput, *patch.ToLoc)
		}
		line.ToLoc = *patch.ToLoc
		if line.FromLoc == line.ToLoc {
			line.FromLoc = line.ToLoc.Other()
		}
	}
	return nil
}

func (c *TransferCart) RemoveLine(barcode string) error {
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

func (c *TransferCart) Reset() {
	c.mu.Lock()
	c.lines = nil
	c.note = ""
	c.mu.Unlock()
}

func (c *TransferCart) Lines() []domain.TransferLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.TransferLine, len(c.lines))
	copy(out, c.lines)
	return out
}

// Commit submits all lines as one transfer group. The cart clears only
// after the backend confirms.
func (c *TransferCart) Commit(ctx context.Context) (domain.CreateTransferResult, error) {
	if err := c.begin(); err != nil {
		return domain.CreateTransferResult{}, err
	}
	defer c.end()

	c.mu.Lock()
	if len(c.lines) == 0 {
		c.mu.Unlock()
		return domain.CreateTransferResult{}, domain.ErrEmptyCart
	}
	payload := domain.CreateTransferPayload{
		Items: make([]domain.CreateTransferItem, 0, len(c.lines)),
	}
	if c.note != "" {
		note := c.note
		payload.Note = &note
	}
	for _, line := range c.lines {
		payload.Items = append(payload.Items, domain.CreateTransferItem{
			Barcode: line.Barcode,
			Qty:     line.Qty,
			FromLoc: line.FromLoc,
			ToLoc:   line.ToLoc,
		})
	}
	c.mu.Unlock()

	result, err := c.client.CreateTransfer(ctx, payload)
	if err != nil {
		return domain.CreateTransferResult{}, err
	}

	c.mu.Lock()
	c.lines = nil
	c.note = ""
	c.mu.Unlock()
	return result, nil
}

func (c *TransferCart) UndoLast(ctx context.Context) (domain.UndoTransferResult, error) {
	if err := c.begin(); err != nil {
		return domain.UndoTransferResult{}, err
	}
	defer c.end()
	return c.client.UndoLastTransfer(ctx)
}
