package cart

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ilaydakx/pos-system/internal/domain"
	"github.com/ilaydakx/pos-system/internal/gateway"
)

// HistoryLookbackDays is the window used when fetching the sale history of
// a scanned return barcode.
const HistoryLookbackDays = 15

// ReturnFlow drives one return or exchange, keyed by the scanned return
// barcode. It moves through: product loaded, history loaded (or an explicit
// no-history confirmation), optional line selection, then submission.
// Submission failures leave every local selection intact.
type ReturnFlow struct {
	mu     sync.Mutex
	busy   bool
	client *gateway.Client

	product        *domain.Product
	history        []domain.SaleHistoryLine
	selected       int
	returnQty      int
	returnTo       domain.Location
	allowNoHistory bool

	given      []domain.GivenLine
	diffMethod *domain.PaymentMethod
}

func NewReturnFlow(client *gateway.Client) *ReturnFlow {
	return &ReturnFlow{client: client, selected: -1, returnTo: domain.LocationStore}
}

func (f *ReturnFlow) begin() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy {
		return domain.ErrBusy
	}
	f.busy = true
	return nil
}

func (f *ReturnFlow) end() {
	f.mu.Lock()
	f.busy = false
	f.mu.Unlock()
}

// Scan loads the return product and its recent sale history, resetting any
// previous flow state first. A failed product lookup leaves the flow empty;
// a failed history fetch is tolerated and treated as no history.
func (f *ReturnFlow) Scan(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil
	}
	if err := f.begin(); err != nil {
		return err
	}
	defer f.end()

	f.reset()
	product, err := f.client.FindProduct(ctx, code)
	if err != nil {
		return err
	}
	history, err := f.client.ListSalesByBarcode(ctx, product.Barcode, HistoryLookbackDays)
	if err != nil {
		history = nil
	}
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].SoldAt > history[j].SoldAt
	})

	f.mu.Lock()
	f.product = product
	f.history = history
	f.returnQty = 1
	f.mu.Unlock()
	return nil
}

func (f *ReturnFlow) reset() {
	f.mu.Lock()
	f.product = nil
	f.history = nil
	f.selected = -1
	f.returnQty = 1
	f.returnTo = domain.LocationStore
	f.allowNoHistory = false
	f.diffMethod = nil
	f.mu.Unlock()
}

// Product returns the loaded return product, or nil before a scan.
func (f *ReturnFlow) Product() *domain.Product {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.product == nil {
		return nil
	}
	p := *f.product
	return &p
}

func (f *ReturnFlow) History() []domain.SaleHistoryLine {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.SaleHistoryLine, len(f.history))
	copy(out, f.history)
	return out
}

// SelectLine picks one historical sale line as the refund source. Lines
// with nothing left to refund cannot be selected. The requested quantity is
// re-clamped into the selected line's refundable range.
func (f *ReturnFlow) SelectLine(index int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if index < 0 || index >= len(f.history) {
		return fmt.Errorf("%w: history line %d", domain.ErrInvalidInput, index)
	}
	remaining := f.history[index].Refundable()
	if remaining <= 0 {
		return fmt.Errorf("%w: line already fully refunded", domain.ErrInvalidInput)
	}
	f.selected = index
	f.returnQty = min(max(1, f.returnQty), remaining)
	f.returnTo = domain.LocationStore
	return nil
}

func (f *ReturnFlow) SelectedLine() (domain.SaleHistoryLine, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.selected < 0 || f.selected >= len(f.history) {
		return domain.SaleHistoryLine{}, false
	}
	return f.history[f.selected], true
}

// SetReturnQty clamps to at least one, and to the selected line's
// refundable remainder when a line is selected.
func (f *ReturnFlow) SetReturnQty(qty int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	qty = max(1, qty)
	if f.selected >= 0 && f.selected < len(f.history) {
		if remaining := f.history[f.selected].Refundable(); qty > remaining {
			qty = remaining
		}
	}
	f.returnQty = qty
}

func (f *ReturnFlow) ReturnQty() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.returnQty
}

func (f *ReturnFlow) SetReturnTo(loc domain.Location) error {
	if !loc.Valid() {
		return fmt.Errorf("%w: location %q", domain.ErrInvalidInput, loc)
	}
	f.mu.Lock()
	f.returnTo = loc
	f.mu.Unlock()
	return nil
}

// ConfirmNoHistory records the operator's explicit decision to proceed with
// a return that has no matching sale history. Declining keeps submission
// blocked.
func (f *ReturnFlow) ConfirmNoHistory(confirmed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.history) == 0 && confirmed {
		f.allowNoHistory = true
	}
}

// AddGivenByBarcode scans a product into the exchange "given" cart. Given
// lines default to the store location and are not stock-checked locally;
// the backend decides on submission.
func (f *ReturnFlow) AddGivenByBarcode(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil
	}
	if err := f.begin(); err != nil {
		return err
	}
	defer f.end()

	product, err := f.client.FindProduct(ctx, code)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.given {
		if f.given[i].Barcode == product.Barcode {
			f.given[i].Qty++
			return nil
		}
	}
	f.given = append(f.given, domain.GivenLine{
		Barcode:   product.Barcode,
		Name:      product.Name,
		Qty:       1,
		SoldFrom:  domain.LocationStore,
		UnitPrice: product.SellPrice,
	})
	return nil
}

func (f *ReturnFlow) UpdateGiven(barcode string, qty int, loc domain.Location) error {
	if !loc.Valid() {
		return fmt.Errorf("%w: location %q", domain.ErrInvalidInput, loc)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.given {
		if f.given[i].Barcode == barcode {
			f.given[i].Qty = max(1, qty)
			f.given[i].SoldFrom = loc
			return nil
		}
	}
	return fmt.Errorf("%w: given line %s", domain.ErrNotFound, barcode)
}

func (f *ReturnFlow) RemoveGiven(barcode string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.given {
		if f.given[i].Barcode == barcode {
			f.given = append(f.given[:i], f.given[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: given line %s", domain.ErrNotFound, barcode)
}

func (f *ReturnFlow) GivenLines() []domain.GivenLine {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.GivenLine, len(f.given))
	copy(out, f.given)
	return out
}

func (f *ReturnFlow) SetDiffPaymentMethod(m domain.PaymentMethod) error {
	if !m.Valid() {
		return fmt.Errorf("%w: payment method %q", domain.ErrInvalidInput, m)
	}
	f.mu.Lock()
	f.diffMethod = &m
	f.mu.Unlock()
	return nil
}

func (f *ReturnFlow) ReturnTotal() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.returnTotalLocked()
}

func (f *ReturnFlow) returnTotalLocked() float64 {
	unit := f.unitPriceLocked()
	return float64(f.returnQty) * unit
}

// unitPriceLocked inherits the unit price from the selected historical sale
// line; without one it falls back to the product's current sell price.
func (f *ReturnFlow) unitPriceLocked() float64 {
	if f.selected >= 0 && f.selected < len(f.history) {
		return f.history[f.selected].UnitPrice
	}
	if f.product != nil {
		return f.product.SellPrice
	}
	return 0
}

func (f *ReturnFlow) GivenTotal() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.givenTotalLocked()
}

func (f *ReturnFlow) givenTotalLocked() float64 {
	total := 0.0
	for _, line := range f.given {
		total += float64(line.Qty) * line.UnitPrice
	}
	return total
}

// Diff is what the customer still owes: given total minus return total.
func (f *ReturnFlow) Diff() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.givenTotalLocked() - f.returnTotalLocked()
}

// returnedItemLocked builds the returned-line descriptor, with provenance
// when a history line is selected.
func (f *ReturnFlow) returnedItemLocked() domain.ReturnedItem {
	item := domain.ReturnedItem{
		Barcode:   f.product.Barcode,
		Qty:       f.returnQty,
		ReturnTo:  f.returnTo,
		UnitPrice: f.unitPriceLocked(),
	}
	if f.selected >= 0 && f.selected < len(f.history) {
		line := f.history[f.selected]
		soldAt := line.SoldAt
		soldFrom := line.SoldFrom
		item.SoldAt = &soldAt
		item.SoldFrom = &soldFrom
	}
	return item
}

// checkSubmittableLocked enforces the selection rule shared by refund and
// exchange: with history present a line must be selected, without history
// the operator must have confirmed proceeding anyway.
func (f *ReturnFlow) checkSubmittableLocked() error {
	if f.product == nil {
		return fmt.Errorf("%w: no return product scanned", domain.ErrInvalidInput)
	}
	if len(f.history) > 0 {
		if f.selected < 0 {
			return domain.ErrNeedsHistory
		}
		return nil
	}
	if !f.allowNoHistory {
		return domain.ErrNeedsHistory
	}
	return nil
}

// SubmitRefund sends the refund and, on success, reloads the product and
// history so refundable quantities reflect backend truth.
func (f *ReturnFlow) SubmitRefund(ctx context.Context) (domain.CreateReturnResult, error) {
	if err := f.begin(); err != nil {
		return domain.CreateReturnResult{}, err
	}
	defer f.end()

	f.mu.Lock()
	if err := f.checkSubmittableLocked(); err != nil {
		f.mu.Unlock()
		return domain.CreateReturnResult{}, err
	}
	payload := domain.CreateReturnPayload{
		ReturnedItem: f.returnedItemLocked(),
		Mode:         domain.ReturnModeRefund,
	}
	f.mu.Unlock()

	result, err := f.client.CreateReturn(ctx, payload)
	if err != nil {
		return domain.CreateReturnResult{}, err
	}
	f.reload(ctx)
	return result, nil
}

// SubmitExchange sends the returned line together with the given cart. A
// positive diff requires a payment method for the difference. On success
// the given cart clears and the history reloads.
func (f *ReturnFlow) SubmitExchange(ctx context.Context) (domain.CreateExchangeResult, error) {
	if err := f.begin(); err != nil {
		return domain.CreateExchangeResult{}, err
	}
	defer f.end()

	f.mu.Lock()
	if err := f.checkSubmittableLocked(); err != nil {
		f.mu.Unlock()
		return domain.CreateExchangeResult{}, err
	}
	if len(f.given) == 0 {
		f.mu.Unlock()
		return domain.CreateExchangeResult{}, domain.ErrEmptyCart
	}
	returnedTotal := f.returnTotalLocked()
	givenTotal := f.givenTotalLocked()
	diff := givenTotal - returnedTotal
	if diff > 0 && f.diffMethod == nil {
		f.mu.Unlock()
		return domain.CreateExchangeResult{}, fmt.Errorf("%w: payment method required for difference", domain.ErrInvalidInput)
	}
	payload := domain.CreateExchangePayload{
		DiffPaidByCustomer: diff > 0,
		Returned:           f.returnedItemLocked(),
		Given:              make([]domain.ExchangeGivenItem, 0, len(f.given)),
		Summary: domain.ExchangeSummary{
			ReturnedTotal:     returnedTotal,
			GivenTotal:        givenTotal,
			Diff:              diff,
			DiffPaymentMethod: f.diffMethod,
		},
		Mode: domain.ReturnModeExchange,
	}
	for _, line := range f.given {
		payload.Given = append(payload.Given, domain.ExchangeGivenItem{
			Barcode:   line.Barcode,
			Qty:       line.Qty,
			SoldFrom:  line.SoldFrom,
			UnitPrice: line.UnitPrice,
		})
	}
	f.mu.Unlock()

	result, err := f.client.CreateExchange(ctx, payload)
	if err != nil {
		return domain.CreateExchangeResult{}, err
	}

	f.mu.Lock()
	f.given = nil
	f.diffMethod = nil
	f.mu.Unlock()
	f.reload(ctx)
	return result, nil
}

// reload refreshes the product and history after a successful submission.
// Failures here are tolerated; the next scan recovers.
func (f *ReturnFlow) reload(ctx context.Context) {
	f.mu.Lock()
	if f.product == nil {
		f.mu.Unlock()
		return
	}
	barcode := f.product.Barcode
	f.mu.Unlock()

	product, err := f.client.FindProduct(ctx, barcode)
	if err != nil {
		return
	}
	history, err := f.client.ListSalesByBarcode(ctx, barcode, HistoryLookbackDays)
	if err != nil {
		history = nil
	}
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].SoldAt > history[j].SoldAt
	})

	f.mu.Lock()
	f.product = product
	f.history = history
	f.selected = -1
	f.returnQty = 1
	f.mu.Unlock()
}
