// Package httpapi exposes the terminal's local HTTP surface: session
// unlock and lock, the sale, return and transfer carts, product and
// stock views, expenses, dictionaries and reports. Everything behind
// /api/v1 except unlock requires an unlocked session.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ilaydakx/pos-system/internal/cart"
	"github.com/ilaydakx/pos-system/internal/catalog"
	"github.com/ilaydakx/pos-system/internal/domain"
	"github.com/ilaydakx/pos-system/internal/gateway"
	"github.com/ilaydakx/pos-system/internal/recon"
	"github.com/ilaydakx/pos-system/internal/session"
)

// API wires the carts and the gateway client behind HTTP handlers.
type API struct {
	client     *gateway.Client
	guard      *session.Guard
	unlock     *UnlockManager
	catalog    *catalog.Service
	sale       *cart.SaleCart
	returns    *cart.ReturnFlow
	transfer   *cart.TransferCart
	pinLimiter *attemptLimiter
}

func New(client *gateway.Client, guard *session.Guard, unlock *UnlockManager) *API {
	return &API{
		client:     client,
		guard:      guard,
		unlock:     unlock,
		catalog:    catalog.NewService(client),
		sale:       cart.NewSaleCart(client),
		returns:    cart.NewReturnFlow(client),
		transfer:   cart.NewTransferCart(client),
		pinLimiter: newAttemptLimiter(10, time.Minute),
	}
}

// attemptLimiter is a per-client sliding window for unlock attempts.
type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	return &attemptLimiter{
		max:     max,
		window:  window,
		entries: make(map[string][]time.Time),
	}
}

func (l *attemptLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-l.window)

	kept := l.entries[key][:0]
	for _, t := range l.entries[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	l.entries[key] = append(kept, now)
	return true
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Handler returns the full route table.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)

	mux.HandleFunc("/api/v1/session/unlock", a.handleUnlock)
	mux.HandleFunc("/api/v1/session/lock", a.requireUnlocked(a.handleLock))
	mux.HandleFunc("/api/v1/session/activity", a.requireUnlocked(a.handleActivity))
	mux.HandleFunc("/api/v1/session", a.handleSessionStatus)

	mux.HandleFunc("/api/v1/products", a.requireUnlocked(a.handleProducts))
	mux.HandleFunc("/api/v1/products/", a.requireUnlocked(a.handleProductByBarcode))
	mux.HandleFunc("/api/v1/stock-control", a.requireUnlocked(a.handleStockControl))

	mux.HandleFunc("/api/v1/sale", a.requireUnlocked(a.handleSale))
	mux.HandleFunc("/api/v1/sale/scan", a.requireUnlocked(a.handleSaleScan))
	mux.HandleFunc("/api/v1/sale/lines/", a.requireUnlocked(a.handleSaleLine))
	mux.HandleFunc("/api/v1/sale/settings", a.requireUnlocked(a.handleSaleSettings))
	mux.HandleFunc("/api/v1/sale/commit", a.requireUnlocked(a.handleSaleCommit))
	mux.HandleFunc("/api/v1/sale/undo", a.requireUnlocked(a.handleSaleUndo))

	mux.HandleFunc("/api/v1/returns/scan", a.requireUnlocked(a.handleReturnScan))
	mux.HandleFunc("/api/v1/returns", a.requireUnlocked(a.handleReturnState))
	mux.HandleFunc("/api/v1/returns/select", a.requireUnlocked(a.handleReturnSelect))
	mux.HandleFunc("/api/v1/returns/confirm-no-history", a.requireUnlocked(a.handleReturnConfirm))
	mux.HandleFunc("/api/v1/returns/given/scan", a.requireUnlocked(a.handleGivenScan))
	mux.HandleFunc("/api/v1/returns/given/", a.requireUnlocked(a.handleGivenLine))
	mux.HandleFunc("/api/v1/returns/refund", a.requireUnlocked(a.handleRefund))
	mux.HandleFunc("/api/v1/returns/exchange", a.requireUnlocked(a.handleExchange))

	mux.HandleFunc("/api/v1/transfer", a.requireUnlocked(a.handleTransfer))
	mux.HandleFunc("/api/v1/transfer/scan", a.requireUnlocked(a.handleTransferScan))
	mux.HandleFunc("/api/v1/transfer/lines/", a.requireUnlocked(a.handleTransferLine))
	mux.HandleFunc("/api/v1/transfer/commit", a.requireUnlocked(a.handleTransferCommit))
	mux.HandleFunc("/api/v1/transfer/undo", a.requireUnlocked(a.handleTransferUndo))

	mux.HandleFunc("/api/v1/expenses", a.requireUnlocked(a.handleExpenses))
	mux.HandleFunc("/api/v1/expenses/", a.requireUnlocked(a.handleExpenseByID))

	mux.HandleFunc("/api/v1/dictionaries/", a.requireUnlocked(a.handleDictionaries))

	mux.HandleFunc("/api/v1/reports/dashboard", a.requireUnlocked(a.handleDashboard))
	mux.HandleFunc("/api/v1/reports/cash", a.requireUnlocked(a.handleCashReport))
	mux.HandleFunc("/api/v1/reports/sale-groups", a.requireUnlocked(a.handleSaleGroups))
	mux.HandleFunc("/api/v1/reports/sale-groups/", a.requireUnlocked(a.handleSaleGroupLines))

	mux.HandleFunc("/api/v1/backups", a.requireUnlocked(a.handleBackup))

	return a.withMiddleware(mux)
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Cache-Control", "no-store")

		r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}

// requireUnlocked gates a handler on a valid unlock token and a live
// session. Every authorized request also counts as operator activity.
func (a *API) requireUnlocked(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(header, prefix) {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}
		if err := a.unlock.ParseToken(strings.TrimSpace(header[len(prefix):])); err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		if !a.guard.IsAuthenticated(r.Context()) {
			writeError(w, http.StatusUnauthorized, domain.ErrLocked)
			return
		}
		a.guard.Touch(r.Context())
		next(w, r)
	}
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleUnlock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !a.pinLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many unlock attempts"))
		return
	}

	var req domain.UnlockRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := a.unlock.Unlock(req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	a.guard.SetAuthenticated(r.Context(), true)
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleLock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	a.guard.Logout(r.Context())
	writeJSON(w, http.StatusOK, map[string]bool{"locked": true})
}

// handleActivity lets the UI report operator input explicitly. The wrapper
// has already touched the guard; a locked session gets 401, never a revival.
func (a *API) handleActivity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (a *API) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"unlocked": a.guard.IsAuthenticated(r.Context())})
}

func (a *API) handleProducts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		products, err := a.client.ListProducts(r.Context())
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, products)
	case http.MethodPost:
		var input catalog.VariantInput
		if err := decodeJSON(r, &input); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		created, err := a.catalog.CreateVariants(r.Context(), input)
		if err != nil {
			// partial creations are reported alongside the failure
			writeJSON(w, statusFromErr(err), map[string]any{
				"error":   err.Error(),
				"created": created,
			})
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleProductByBarcode(w http.ResponseWriter, r *http.Request) {
	barcode := strings.TrimPrefix(r.URL.Path, "/api/v1/products/")
	if barcode == "" || strings.Contains(barcode, "/") {
		writeError(w, http.StatusNotFound, errors.New("not found"))
		return
	}
	switch r.Method {
	case http.MethodGet:
		product, err := a.client.FindProduct(r.Context(), barcode)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, product)
	case http.MethodPatch:
		var patch domain.UpdateProductPayload
		if err := decodeJSON(r, &patch); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		patch.Barcode = barcode
		if err := a.catalog.Update(r.Context(), patch); err != nil {
			writeDomainError(w, err)
			return
		}
		updated, err := a.client.FindProduct(r.Context(), barcode)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	case http.MethodDelete:
		if err := a.catalog.Delete(r.Context(), barcode); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleStockControl(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	products, err := a.client.ListProducts(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	rows := recon.Build(products)

	q := r.URL.Query()
	filter := recon.Filter{
		Query:              q.Get("q"),
		MismatchOrNegative: q.Get("mismatch") == "true",
		OutOfStock:         q.Get("out_of_stock") == "true",
		OnlyStore:          q.Get("only_store") == "true",
		OnlyWarehouse:      q.Get("only_warehouse") == "true",
	}
	visible := filter.Apply(rows)

	if strings.ToLower(strings.TrimSpace(q.Get("format"))) == "csv" {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", "attachment; filename=\"stock-control.csv\"")
		_, _ = w.Write([]byte(stockControlToCSV(visible)))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"rows":   visible,
		"counts": recon.Count(rows, filter),
	})
}

func stockControlToCSV(rows []recon.Row) string {
	lines := []string{"barcode,product_code,name,color,size,store_qty,warehouse_qty,remaining,start,status"}
	for _, row := range rows {
		p := row.Product
		lines = append(lines, fmt.Sprintf("%s,%s,%s,%s,%s,%d,%d,%d,%d,%s",
			p.Barcode, p.ProductCode, p.Name, p.Color, p.Size,
			p.StoreQty, p.WarehouseQty, row.Remaining, row.Start, row.Status()))
	}
	return strings.Join(lines, "\n") + "\n"
}

func (a *API) handleSale(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"lines": a.sale.Lines(),
		"total": a.sale.Total(),
	})
}

func (a *API) handleSaleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req struct {
		Barcode string `json:"barcode"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := a.sale.AddByBarcode(r.Context(), req.Barcode); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"lines": a.sale.Lines(),
		"total": a.sale.Total(),
	})
}

func (a *API) handleSaleLine(w http.ResponseWriter, r *http.Request) {
	barcode := strings.TrimPrefix(r.URL.Path, "/api/v1/sale/lines/")
	if barcode == "" || strings.Contains(barcode, "/") {
		writeError(w, http.StatusNotFound, errors.New("not found"))
		return
	}
	switch r.Method {
	case http.MethodPatch:
		var patch domain.SaleLinePatch
		if err := decodeJSON(r, &patch); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := a.sale.UpdateLine(barcode, patch); err != nil {
			writeDomainError(w, err)
			return
		}
	case http.MethodDelete:
		if err := a.sale.RemoveLine(barcode); err != nil {
			writeDomainError(w, err)
			return
		}
	default:
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"lines": a.sale.Lines(),
		"total": a.sale.Total(),
	})
}

func (a *API) handleSaleSettings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req struct {
		SoldFrom      *domain.Location      `json:"sold_from"`
		PaymentMethod *domain.PaymentMethod `json:"payment_method"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.SoldFrom != nil {
		if err := a.sale.SetDefaultLocation(*req.SoldFrom); err != nil {
			writeDomainError(w, err)
			return
		}
	}
	if req.PaymentMethod != nil {
		if err := a.sale.SetPaymentMethod(*req.PaymentMethod); err != nil {
			writeDomainError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (a *API) handleSaleCommit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	res, err := a.sale.Commit(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleSaleUndo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	res, err := a.sale.UndoLast(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleReturnScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req struct {
		Barcode string `json:"barcode"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := a.returns.Scan(r.Context(), req.Barcode); err != nil {
		writeDomainError(w, err)
		return
	}
	a.writeReturnState(w)
}

func (a *API) handleReturnState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	a.writeReturnState(w)
}

func (a *API) writeReturnState(w http.ResponseWriter) {
	var selected any
	if line, ok := a.returns.SelectedLine(); ok {
		selected = line
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"product":        a.returns.Product(),
		"history":        a.returns.History(),
		"selected":       selected,
		"return_qty":     a.returns.ReturnQty(),
		"given_lines":    a.returns.GivenLines(),
		"returned_total": a.returns.ReturnTotal(),
		"given_total":    a.returns.GivenTotal(),
		"diff":           a.returns.Diff(),
	})
}

func (a *API) handleReturnSelect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req struct {
		Index    *int             `json:"index"`
		Qty      *int             `json:"qty"`
		ReturnTo *domain.Location `json:"return_to"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Index != nil {
		if err := a.returns.SelectLine(*req.Index); err != nil {
			writeDomainError(w, err)
			return
		}
	}
	if req.Qty != nil {
		a.returns.SetReturnQty(*req.Qty)
	}
	if req.ReturnTo != nil {
		if err := a.returns.SetReturnTo(*req.ReturnTo); err != nil {
			writeDomainError(w, err)
			return
		}
	}
	a.writeReturnState(w)
}

func (a *API) handleReturnConfirm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req struct {
		Confirmed bool `json:"confirmed"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	a.returns.ConfirmNoHistory(req.Confirmed)
	a.writeReturnState(w)
}

func (a *API) handleGivenScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req struct {
		Barcode string `json:"barcode"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := a.returns.AddGivenByBarcode(r.Context(), req.Barcode); err != nil {
		writeDomainError(w, err)
		return
	}
	a.writeReturnState(w)
}

func (a *API) handleGivenLine(w http.ResponseWriter, r *http.Request) {
	barcode := strings.TrimPrefix(r.URL.Path, "/api/v1/returns/given/")
	if barcode == "" || strings.Contains(barcode, "/") {
		writeError(w, http.StatusNotFound, errors.New("not found"))
		return
	}
	switch r.Method {
	case http.MethodPatch:
		var req struct {
			Qty      *int             `json:"qty"`
			SoldFrom *domain.Location `json:"sold_from"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		current, ok := a.findGivenLine(barcode)
		if !ok {
			writeError(w, http.StatusNotFound, domain.ErrNotFound)
			return
		}
		qty := current.Qty
		if req.Qty != nil {
			qty = *req.Qty
		}
		loc := current.SoldFrom
		if req.SoldFrom != nil {
			loc = *req.SoldFrom
		}
		if err := a.returns.UpdateGiven(barcode, qty, loc); err != nil {
			writeDomainError(w, err)
			return
		}
	case http.MethodDelete:
		if err := a.returns.RemoveGiven(barcode); err != nil {
			writeDomainError(w, err)
			return
		}
	default:
		writeMethodNotAllowed(w)
		return
	}
	a.writeReturnState(w)
}

func (a *API) findGivenLine(barcode string) (domain.GivenLine, bool) {
	for _, line := range a.returns.GivenLines() {
		if line.Barcode == barcode {
			return line, true
		}
	}
	return domain.GivenLine{}, false
}

func (a *API) handleRefund(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	res, err := a.returns.SubmitRefund(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleExchange(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req struct {
		DiffPaymentMethod *domain.PaymentMethod `json:"diff_payment_method"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.DiffPaymentMethod != nil {
		if err := a.returns.SetDiffPaymentMethod(*req.DiffPaymentMethod); err != nil {
			writeDomainError(w, err)
			return
		}
	}
	res, err := a.returns.SubmitExchange(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleTransfer(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"lines": a.transfer.Lines()})
	case http.MethodPost:
		var req struct {
			Note        *string          `json:"note"`
			DefaultFrom *domain.Location `json:"default_from"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if req.Note != nil {
			a.transfer.SetNote(*req.Note)
		}
		if req.DefaultFrom != nil {
			if err := a.transfer.SetDefaultFrom(*req.DefaultFrom); err != nil {
				writeDomainError(w, err)
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleTransferScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req struct {
		Barcode string `json:"barcode"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := a.transfer.AddByBarcode(r.Context(), req.Barcode); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"lines": a.transfer.Lines()})
}

func (a *API) handleTransferLine(w http.ResponseWriter, r *http.Request) {
	barcode := strings.TrimPrefix(r.URL.Path, "/api/v1/transfer/lines/")
	if barcode == "" || strings.Contains(barcode, "/") {
		writeError(w, http.StatusNotFound, errors.New("not found"))
		return
	}
	switch r.Method {
	case http.MethodPatch:
		var patch domain.TransferLinePatch
		if err := decodeJSON(r, &patch); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := a.transfer.UpdateLine(barcode, patch); err != nil {
			writeDomainError(w, err)
			return
		}
	case http.MethodDelete:
		if err := a.transfer.RemoveLine(barcode); err != nil {
			writeDomainError(w, err)
			return
		}
	default:
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"lines": a.transfer.Lines()})
}

func (a *API) handleTransferCommit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	res, err := a.transfer.Commit(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleTransferUndo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	res, err := a.transfer.UndoLast(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleExpenses(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		expenses, err := a.client.ListExpenses(r.Context(), r.URL.Query().Get("period"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, expenses)
	case http.MethodPost:
		var payload domain.AddExpensePayload
		if err := decodeJSON(r, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := validateExpense(payload); err != nil {
			writeDomainError(w, err)
			return
		}
		created, err := a.client.AddExpense(r.Context(), payload)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		writeMethodNotAllowed(w)
	}
}

// validateExpense rejects bad input before it costs a backend round trip.
func validateExpense(payload domain.AddExpensePayload) error {
	if payload.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", domain.ErrInvalidInput)
	}
	if _, err := time.Parse("2006-01-02", payload.SpentAt); err != nil {
		return fmt.Errorf("%w: spent_at must be YYYY-MM-DD", domain.ErrInvalidInput)
	}
	return nil
}

func (a *API) handleExpenseByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeMethodNotAllowed(w)
		return
	}
	idStr := strings.TrimPrefix(r.URL.Path, "/api/v1/expenses/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, errors.New("invalid expense id"))
		return
	}
	if err := a.client.DeleteExpense(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// handleDictionaries serves /api/v1/dictionaries/{kind} and
// /api/v1/dictionaries/{kind}/{id}.
func (a *API) handleDictionaries(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/dictionaries/")
	parts := strings.SplitN(rest, "/", 2)
	kind := parts[0]
	switch kind {
	case domain.DictCategories, domain.DictColors, domain.DictSizes:
	default:
		writeError(w, http.StatusNotFound, errors.New("unknown dictionary"))
		return
	}

	if len(parts) == 2 {
		id, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil || id <= 0 {
			writeError(w, http.StatusBadRequest, errors.New("invalid entry id"))
			return
		}
		switch r.Method {
		case http.MethodPatch:
			var patch struct {
				Name      *string `json:"name"`
				SortOrder *int    `json:"sort_order"`
				Active    *bool   `json:"active"`
			}
			if err := decodeJSON(r, &patch); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			entries, err := a.client.ListDictionary(r.Context(), kind, true)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			var entry *domain.DictionaryEntry
			for i := range entries {
				if entries[i].ID == id {
					entry = &entries[i]
					break
				}
			}
			if entry == nil {
				writeError(w, http.StatusNotFound, domain.ErrNotFound)
				return
			}
			if patch.Name != nil {
				entry.Name = *patch.Name
			}
			if patch.SortOrder != nil {
				entry.SortOrder = patch.SortOrder
			}
			if patch.Active != nil {
				entry.Active = *patch.Active
			}
			if err := a.client.UpdateDictionaryEntry(r.Context(), kind, *entry); err != nil {
				writeDomainError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, entry)
		case http.MethodDelete:
			if err := a.client.DeleteDictionaryEntry(r.Context(), kind, id); err != nil {
				writeDomainError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
		default:
			writeMethodNotAllowed(w)
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		includeInactive := r.URL.Query().Get("include_inactive") == "true"
		entries, err := a.client.ListDictionary(r.Context(), kind, includeInactive)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, entries)
	case http.MethodPost:
		var req struct {
			Name string `json:"name"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		entry, err := a.client.CreateDictionaryEntry(r.Context(), kind, req.Name)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, entry)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	summary, err := a.client.DashboardSummary(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) handleCashReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	days := parsePositiveInt(r.URL.Query().Get("days"), 30)
	rows, err := a.client.CashReport(r.Context(), days)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format"))) == "csv" {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", "attachment; filename=\"cash-report.csv\"")
		_, _ = w.Write([]byte(cashReportToCSV(rows)))
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func cashReportToCSV(rows []domain.CashReportRow) string {
	lines := []string{"day,cash_sales,card_sales,cash_refunds,card_refunds,cash_net,card_net,net_total"}
	for _, row := range rows {
		lines = append(lines, fmt.Sprintf("%s,%.2f,%.2f,%.2f,%.2f,%.2f,%.2f,%.2f",
			row.Day, row.CashSales, row.CardSales, row.CashRefunds, row.CardRefunds,
			row.CashNet, row.CardNet, row.NetTotal))
	}
	return strings.Join(lines, "\n") + "\n"
}

func (a *API) handleSaleGroups(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	days := parsePositiveInt(r.URL.Query().Get("days"), 30)
	rows, err := a.client.ListSaleGroups(r.Context(), days)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (a *API) handleSaleGroupLines(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	groupID := strings.TrimPrefix(r.URL.Path, "/api/v1/reports/sale-groups/")
	if groupID == "" || strings.Contains(groupID, "/") {
		writeError(w, http.StatusNotFound, errors.New("not found"))
		return
	}
	lines, err := a.client.ListSalesByGroup(r.Context(), groupID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lines)
}

func (a *API) handleBackup(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		res, err := a.client.BackupNow(r.Context())
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, res)
	case http.MethodGet:
		dir, err := a.client.BackupDir(r.Context())
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"dir": dir})
	default:
		writeMethodNotAllowed(w)
	}
}

func parsePositiveInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// statusFromErr maps domain sentinels onto HTTP statuses. Anything
// unrecognized came back from the backend and is surfaced verbatim
// as unprocessable.
func statusFromErr(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrEmptyCart):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrOutOfStock):
		return http.StatusConflict
	case errors.Is(err, domain.ErrBusy), errors.Is(err, domain.ErrNeedsHistory):
		return http.StatusConflict
	case errors.Is(err, domain.ErrLocked):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrGatewayDown):
		return http.StatusBadGateway
	default:
		return http.StatusUnprocessableEntity
	}
}

func writeDomainError(w http.ResponseWriter, err error) {
	writeError(w, statusFromErr(err), err)
}

func decodeJSON(r *http.Request, dst any) error {
	defer io.Copy(io.Discard, r.Body)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.New("invalid json body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	msg := err.Error()
	if status >= 500 && !errors.Is(err, domain.ErrGatewayDown) {
		msg = "internal error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}
