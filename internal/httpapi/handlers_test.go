package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ilaydakx/pos-system/internal/domain"
	"github.com/ilaydakx/pos-system/internal/gateway"
	"github.com/ilaydakx/pos-system/internal/session"
)

type testEnv struct {
	handler http.Handler
	token   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	client := gateway.NewClient(gateway.NewMemorySeeded())
	guard := session.NewGuard(session.NewMemoryStore())
	unlock := NewUnlockManager("test-secret", time.Hour, "4321")
	api := New(client, guard, unlock)

	env := &testEnv{handler: api.Handler()}

	rec := env.do(t, http.MethodPost, "/api/v1/session/unlock", `{"pin":"4321"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("unlock: status %d body %s", rec.Code, rec.Body.String())
	}
	var resp domain.UnlockResponse
	decodeBody(t, rec, &resp)
	env.token = resp.AccessToken
	return env
}

func (env *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if env.token != "" {
		req.Header.Set("Authorization", "Bearer "+env.token)
	}
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func TestHealthz(t *testing.T) {
	env := &testEnv{handler: New(
		gateway.NewClient(gateway.NewMemorySeeded()),
		session.NewGuard(session.NewMemoryStore()),
		NewUnlockManager("test-secret", time.Hour, "4321"),
	).Handler()}

	rec := env.do(t, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)
	env.token = ""

	for _, path := range []string{
		"/api/v1/products",
		"/api/v1/sale",
		"/api/v1/returns",
		"/api/v1/transfer",
		"/api/v1/reports/dashboard",
	} {
		rec := env.do(t, http.MethodGet, path, "")
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: status %d, want 401", path, rec.Code)
		}
	}
}

func TestWrongPINRejected(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/session/unlock", `{"pin":"0000"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", rec.Code)
	}
}

func TestLockBlocksFurtherRequests(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/session/lock", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("lock: status %d", rec.Code)
	}

	// token is still cryptographically valid, but the session is gone
	rec = env.do(t, http.MethodGet, "/api/v1/products", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("after lock: status %d, want 401", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/session", "")
	var status struct {
		Unlocked bool `json:"unlocked"`
	}
	decodeBody(t, rec, &status)
	if status.Unlocked {
		t.Fatal("session reported unlocked after lock")
	}
}

func TestUnlockRateLimited(t *testing.T) {
	env := newTestEnv(t)

	var last int
	for i := 0; i < 12; i++ {
		rec := env.do(t, http.MethodPost, "/api/v1/session/unlock", `{"pin":"0000"}`)
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("status %d after hammering unlock, want 429", last)
	}
}

func TestSaleScanCommitOverHTTP(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < 2; i++ {
		rec := env.do(t, http.MethodPost, "/api/v1/sale/scan", `{"barcode":"1000001"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("scan %d: status %d body %s", i, rec.Code, rec.Body.String())
		}
	}

	rec := env.do(t, http.MethodGet, "/api/v1/sale", "")
	var cartState struct {
		Lines []domain.SaleCartLine `json:"lines"`
		Total float64               `json:"total"`
	}
	decodeBody(t, rec, &cartState)
	if len(cartState.Lines) != 1 || cartState.Lines[0].Qty != 2 {
		t.Fatalf("cart state: %+v", cartState)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/sale/commit", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("commit: status %d body %s", rec.Code, rec.Body.String())
	}
	var res domain.CreateSaleResult
	decodeBody(t, rec, &res)
	if res.SaleGroupID == "" {
		t.Fatal("commit returned no sale group id")
	}

	rec = env.do(t, http.MethodGet, "/api/v1/products/1000001", "")
	var product domain.Product
	decodeBody(t, rec, &product)
	if product.StoreQty != 2 {
		t.Fatalf("store qty after sale: %d, want 2", product.StoreQty)
	}

	// cart must be empty again
	rec = env.do(t, http.MethodGet, "/api/v1/sale", "")
	decodeBody(t, rec, &cartState)
	if len(cartState.Lines) != 0 {
		t.Fatalf("cart not cleared: %+v", cartState.Lines)
	}
}

func TestSaleScanUnknownBarcode(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/sale/scan", `{"barcode":"9999999"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d, want 404", rec.Code)
	}
}

func TestSaleCommitEmptyCart(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/sale/commit", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}
}

func TestRefundOverHTTP(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/sale/scan", `{"barcode":"1000001"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("scan: %d", rec.Code)
	}
	rec = env.do(t, http.MethodPost, "/api/v1/sale/commit", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("commit: %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/returns/scan", `{"barcode":"1000001"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("return scan: %d body %s", rec.Code, rec.Body.String())
	}
	var state struct {
		History []domain.SaleHistoryLine `json:"history"`
	}
	decodeBody(t, rec, &state)
	if len(state.History) == 0 {
		t.Fatal("no sale history after a sale")
	}

	// refund without a selection is a conflict
	rec = env.do(t, http.MethodPost, "/api/v1/returns/refund", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("refund without selection: %d, want 409", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/returns/select", `{"index":0}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("select: %d body %s", rec.Code, rec.Body.String())
	}
	rec = env.do(t, http.MethodPost, "/api/v1/returns/refund", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("refund: %d body %s", rec.Code, rec.Body.String())
	}
	var res domain.CreateReturnResult
	decodeBody(t, rec, &res)
	if res.ReturnGroupID == "" {
		t.Fatal("refund returned no group id")
	}

	rec = env.do(t, http.MethodGet, "/api/v1/products/1000001", "")
	var product domain.Product
	decodeBody(t, rec, &product)
	if product.StoreQty != 4 {
		t.Fatalf("store qty after refund: %d, want 4", product.StoreQty)
	}
}

func TestTransferOverHTTP(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/transfer", `{"default_from":"DEPO"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("settings: %d body %s", rec.Code, rec.Body.String())
	}
	rec = env.do(t, http.MethodPost, "/api/v1/transfer/scan", `{"barcode":"1000003"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("scan: %d body %s", rec.Code, rec.Body.String())
	}
	rec = env.do(t, http.MethodPatch, "/api/v1/transfer/lines/1000003", `{"qty":4}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch: %d body %s", rec.Code, rec.Body.String())
	}
	rec = env.do(t, http.MethodPost, "/api/v1/transfer/commit", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("commit: %d body %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/api/v1/products/1000003", "")
	var product domain.Product
	decodeBody(t, rec, &product)
	if product.StoreQty != 4 || product.WarehouseQty != 2 {
		t.Fatalf("after transfer: store %d warehouse %d, want 4/2", product.StoreQty, product.WarehouseQty)
	}
}

func TestStockControlFilters(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/stock-control", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var all struct {
		Rows   []json.RawMessage `json:"rows"`
		Counts struct {
			Total   int `json:"total"`
			Visible int `json:"visible"`
		} `json:"counts"`
	}
	decodeBody(t, rec, &all)
	if all.Counts.Total != 5 || all.Counts.Visible != 5 {
		t.Fatalf("counts: %+v", all.Counts)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/stock-control?out_of_stock=true", "")
	var filtered struct {
		Rows []struct {
			Product domain.Product `json:"product"`
		} `json:"rows"`
	}
	decodeBody(t, rec, &filtered)
	for _, row := range filtered.Rows {
		if row.Product.StoreQty != 0 || row.Product.WarehouseQty != 0 {
			t.Errorf("row %s not out of stock", row.Product.Barcode)
		}
	}

	rec = env.do(t, http.MethodGet, "/api/v1/stock-control?q=pantolon", "")
	decodeBody(t, rec, &filtered)
	if len(filtered.Rows) != 1 || filtered.Rows[0].Product.Barcode != "1000003" {
		t.Fatalf("search rows: %+v", filtered.Rows)
	}
}

func TestDictionaryLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/dictionaries/colors", `{"name":"Bordo"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d body %s", rec.Code, rec.Body.String())
	}
	var entry domain.DictionaryEntry
	decodeBody(t, rec, &entry)
	if entry.ID == 0 {
		t.Fatal("created entry has no id")
	}

	path := fmt.Sprintf("/api/v1/dictionaries/colors/%d", entry.ID)
	rec = env.do(t, http.MethodPatch, path, `{"name":"Vizon"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch: %d body %s", rec.Code, rec.Body.String())
	}
	decodeBody(t, rec, &entry)
	if entry.Name != "Vizon" {
		t.Fatalf("renamed entry: %+v", entry)
	}

	rec = env.do(t, http.MethodDelete, path, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: %d body %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/api/v1/dictionaries/animals", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown kind: %d, want 404", rec.Code)
	}
}

func TestExpenseLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/expenses", `{"spent_at":"2025-03-01","category":"Kira","amount":15000,"note":"mart kirasi"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d body %s", rec.Code, rec.Body.String())
	}
	var exp domain.Expense
	decodeBody(t, rec, &exp)

	rec = env.do(t, http.MethodGet, "/api/v1/expenses?period=2025-03", "")
	var list []domain.Expense
	decodeBody(t, rec, &list)
	if len(list) != 1 || list[0].Category != "Kira" {
		t.Fatalf("list: %+v", list)
	}

	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/expenses/%d", exp.ID), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: %d body %s", rec.Code, rec.Body.String())
	}
}

func TestVariantCreateOverHTTP(t *testing.T) {
	env := newTestEnv(t)

	body := `{"product_code":"trk-010","category":"Elbise","name":"Saten Elbise","color":"Siyah","sell_price":899.90,"variants":[{"size":"S","store_start":2,"warehouse_start":1},{"size":"M","store_start":3,"warehouse_start":0}]}`
	rec := env.do(t, http.MethodPost, "/api/v1/products", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d body %s", rec.Code, rec.Body.String())
	}
	var created []domain.CreatedProduct
	decodeBody(t, rec, &created)
	if len(created) != 2 {
		t.Fatalf("created %d variants, want 2", len(created))
	}
	for _, p := range created {
		if p.ProductCode != "TRK-010" {
			t.Errorf("variant %s: product code %q", p.Barcode, p.ProductCode)
		}
	}
}

func TestExpenseValidationBeforeGateway(t *testing.T) {
	env := newTestEnv(t)

	cases := []string{
		`{"spent_at":"2025-03-01","amount":0}`,
		`{"spent_at":"2025-03-01","amount":-50}`,
		`{"spent_at":"01.03.2025","amount":100}`,
		`{"spent_at":"","amount":100}`,
	}
	for _, body := range cases {
		rec := env.do(t, http.MethodPost, "/api/v1/expenses", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: status %d, want 400", body, rec.Code)
		}
	}

	// nothing reached the backend
	rec := env.do(t, http.MethodGet, "/api/v1/expenses", "")
	var list []domain.Expense
	decodeBody(t, rec, &list)
	if len(list) != 0 {
		t.Fatalf("invalid expenses were stored: %+v", list)
	}
}

func TestCashReportCSV(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/sale/scan", `{"barcode":"1000001"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("scan: %d", rec.Code)
	}
	rec = env.do(t, http.MethodPost, "/api/v1/sale/commit", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("commit: %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/reports/cash?format=csv", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("content type %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "cash-report.csv") {
		t.Fatalf("content disposition %q", cd)
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if lines[0] != "day,cash_sales,card_sales,cash_refunds,card_refunds,cash_net,card_net,net_total" {
		t.Fatalf("header row %q", lines[0])
	}
	if len(lines) < 2 {
		t.Fatal("expected at least one data row after a sale")
	}
}

func TestStockControlCSV(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/stock-control?format=csv&q=pantolon", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("content type %q", ct)
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header plus one filtered row, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[1], "1000003,") {
		t.Fatalf("data row %q", lines[1])
	}
}

func TestActivityEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/session/activity", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/session/lock", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("lock: %d", rec.Code)
	}

	// activity must never revive a locked session
	rec = env.do(t, http.MethodPost, "/api/v1/session/activity", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("activity on locked session: %d, want 401", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/sale/scan", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status %d, want 405", rec.Code)
	}
}

func TestRejectsUnknownJSONFields(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/sale/scan", `{"barcode":"1000001","bogus":true}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}
}
