package domain

// Location is one of the two fixed stock-holding places. The wire values are
// the backend's Turkish identifiers and must not be translated.
type Location string

const (
	LocationStore     Location = "MAGAZA"
	LocationWarehouse Location = "DEPO"
)

func (l Location) Valid() bool {
	return l == LocationStore || l == LocationWarehouse
}

// Other returns the opposite location. With exactly two locations the flip is
// unambiguous.
func (l Location) Other() Location {
	if l == LocationStore {
		return LocationWarehouse
	}
	return LocationStore
}

type PaymentMethod string

const (
	PaymentCash PaymentMethod = "CASH"
	PaymentCard PaymentMethod = "CARD"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentCash || m == PaymentCard
}

const (
	ReturnModeRefund   = "REFUND"
	ReturnModeExchange = "EXCHANGE"
)

// Product is the canonical projection of a backend product after gateway
// normalization. Legacy single-stock rows are already folded into the
// per-location quantities; only the two aggregate fields stay optional
// because the reconciliation view compares them against recomputed sums.
type Product struct {
	Barcode        string  `json:"barcode"`
	ProductCode    string  `json:"product_code,omitempty"`
	Category       string  `json:"category,omitempty"`
	Name           string  `json:"name"`
	Color          string  `json:"color,omitempty"`
	Size           string  `json:"size,omitempty"`
	BuyPrice       float64 `json:"buy_price"`
	SellPrice      float64 `json:"sell_price"`
	CreatedAt      string  `json:"created_at,omitempty"`
	StoreStart     int     `json:"store_start"`
	WarehouseStart int     `json:"warehouse_start"`
	StoreQty       int     `json:"store_qty"`
	WarehouseQty   int     `json:"warehouse_qty"`
	TotalStart     *int    `json:"total_start,omitempty"`
	TotalRemaining *int    `json:"total_remaining,omitempty"`
}

// StockAt returns the quantity held at the given location.
func (p Product) StockAt(loc Location) int {
	if loc == LocationStore {
		return p.StoreQty
	}
	return p.WarehouseQty
}

// SaleCartLine is one row of the sale cart, keyed by barcode.
type SaleCartLine struct {
	Barcode         string   `json:"barcode"`
	Name            string   `json:"name"`
	Color           string   `json:"color,omitempty"`
	Size            string   `json:"size,omitempty"`
	Qty             int      `json:"qty"`
	ListPrice       float64  `json:"list_price"`
	DiscountEnabled bool     `json:"discount_enabled"`
	DiscountAmount  float64  `json:"discount_amount"`
	UnitPrice       float64  `json:"unit_price"`
	SoldFrom        Location `json:"sold_from"`
}

// SaleLinePatch carries partial edits to a sale cart line. Nil fields are
// left untouched.
type SaleLinePatch struct {
	Qty             *int      `json:"qty,omitempty"`
	SoldFrom        *Location `json:"sold_from,omitempty"`
	DiscountEnabled *bool     `json:"discount_enabled,omitempty"`
	DiscountAmount  *float64  `json:"discount_amount,omitempty"`
}

type CreateSaleItem struct {
	Barcode        string   `json:"barcode"`
	Qty            int      `json:"qty"`
	ListPrice      float64  `json:"list_price"`
	DiscountAmount float64  `json:"discount_amount"`
	UnitPrice      float64  `json:"unit_price"`
	SoldFrom       Location `json:"sold_from"`
}

type CreateSalePayload struct {
	SoldFromDefault Location         `json:"sold_from_default"`
	PaymentMethod   PaymentMethod    `json:"payment_method"`
	Items           []CreateSaleItem `json:"items"`
}

type CreateSaleResult struct {
	SaleGroupID string  `json:"sale_group_id"`
	Total       float64 `json:"total"`
	Lines       int     `json:"lines"`
}

type UndoSaleResult struct {
	SaleGroupID   string `json:"sale_group_id"`
	RestoredLines int    `json:"restored_lines"`
}

// SaleHistoryLine is one historical sale row for a barcode, used by the
// return and exchange flows. SoldAt keeps the backend's timestamp string.
type SaleHistoryLine struct {
	SoldAt      string   `json:"sold_at"`
	Qty         int      `json:"qty"`
	UnitPrice   float64  `json:"unit_price"`
	Total       float64  `json:"total"`
	SoldFrom    Location `json:"sold_from"`
	RefundedQty int      `json:"refunded_qty"`
}

// Refundable is the quantity still open for refund against this line.
func (l SaleHistoryLine) Refundable() int {
	remaining := l.Qty - l.RefundedQty
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ReturnedItem describes the returned line of a refund or exchange, carrying
// the provenance of the selected historical sale when one exists.
type ReturnedItem struct {
	Barcode   string    `json:"barcode"`
	Qty       int       `json:"qty"`
	ReturnTo  Location  `json:"return_to"`
	SoldAt    *string   `json:"sold_at"`
	SoldFrom  *Location `json:"sold_from"`
	UnitPrice float64   `json:"unit_price"`
}

type CreateReturnPayload struct {
	ReturnedItem
	Mode string `json:"mode"`
}

type CreateReturnResult struct {
	ReturnGroupID string  `json:"return_group_id"`
	Lines         int     `json:"lines"`
	ReturnedTotal float64 `json:"returned_total"`
}

// GivenLine is one row of the exchange "given" cart.
type GivenLine struct {
	Barcode   string   `json:"barcode"`
	Name      string   `json:"name"`
	Qty       int      `json:"qty"`
	SoldFrom  Location `json:"sold_from"`
	UnitPrice float64  `json:"unit_price"`
}

type ExchangeGivenItem struct {
	Barcode   string   `json:"barcode"`
	Qty       int      `json:"qty"`
	SoldFrom  Location `json:"sold_from"`
	UnitPrice float64  `json:"unit_price"`
}

type ExchangeSummary struct {
	ReturnedTotal     float64        `json:"returned_total"`
	GivenTotal        float64        `json:"given_total"`
	Diff              float64        `json:"diff"`
	DiffPaymentMethod *PaymentMethod `json:"diff_payment_method"`
}

type CreateExchangePayload struct {
	DiffPaidByCustomer bool                `json:"diff_paid_by_customer"`
	Returned           ReturnedItem        `json:"returned"`
	Given              []ExchangeGivenItem `json:"given"`
	Summary            ExchangeSummary     `json:"summary"`
	Mode               string              `json:"mode"`
}

type CreateExchangeResult struct {
	ExchangeGroupID string  `json:"exchange_group_id"`
	Lines           int     `json:"lines"`
	ReturnedTotal   float64 `json:"returned_total"`
	GivenTotal      float64 `json:"given_total"`
	Diff            float64 `json:"diff"`
}

// TransferLine is one row of the transfer cart.
type TransferLine struct {
	Barcode string   `json:"barcode"`
	Name    string   `json:"name"`
	Color   string   `json:"color,omitempty"`
	Size    string   `json:"size,omitempty"`
	Qty     int      `json:"qty"`
	FromLoc Location `json:"from_loc"`
	ToLoc   Location `json:"to_loc"`
}

type TransferLinePatch struct {
	Qty     *int      `json:"qty,omitempty"`
	FromLoc *Location `json:"from_loc,omitempty"`
	ToLoc   *Location `json:"to_loc,omitempty"`
}

type CreateTransferItem struct {
	Barcode string   `json:"barcode"`
	Qty     int      `json:"qty"`
	FromLoc Location `json:"from_loc"`
	ToLoc   Location `json:"to_loc"`
}

type CreateTransferPayload struct {
	Note  *string              `json:"note"`
	Items []CreateTransferItem `json:"items"`
}

type CreateTransferResult struct {
	TransferGroupID string `json:"transfer_group_id"`
	Lines           int    `json:"lines"`
}

type UndoTransferResult struct {
	TransferGroupID string `json:"transfer_group_id"`
	RestoredLines   int    `json:"restored_lines"`
}

// AddProductPayload mirrors the backend add_product command. A nil barcode
// asks the backend to assign one.
type AddProductPayload struct {
	Barcode        *string  `json:"barcode"`
	ProductCode    *string  `json:"product_code"`
	Category       *string  `json:"category"`
	Name           string   `json:"name"`
	Color          *string  `json:"color"`
	Size           *string  `json:"size"`
	BuyPrice       *float64 `json:"buy_price"`
	SellPrice      float64  `json:"sell_price"`
	Stock          int      `json:"stock"`
	StoreStart     int      `json:"magaza_baslangic"`
	WarehouseStart int      `json:"depo_baslangic"`
}

type CreatedProduct struct {
	Barcode     string `json:"barcode"`
	ProductCode string `json:"product_code,omitempty"`
}

type UpdateProductPayload struct {
	Barcode     string   `json:"barcode"`
	ProductCode *string  `json:"product_code,omitempty"`
	Category    *string  `json:"category,omitempty"`
	Name        *string  `json:"name,omitempty"`
	Color       *string  `json:"color,omitempty"`
	Size        *string  `json:"size,omitempty"`
	BuyPrice    *float64 `json:"buy_price,omitempty"`
	SellPrice   *float64 `json:"sell_price,omitempty"`
}

// VariantRow is one size row of the multi-size product creation flow.
type VariantRow struct {
	Size           string `json:"size"`
	StoreStart     int    `json:"store_start"`
	WarehouseStart int    `json:"warehouse_start"`
}

type Expense struct {
	ID       int64   `json:"id"`
	SpentAt  string  `json:"spent_at"`
	Period   string  `json:"period,omitempty"`
	Category string  `json:"category,omitempty"`
	Amount   float64 `json:"amount"`
	Note     string  `json:"note,omitempty"`
}

type AddExpensePayload struct {
	SpentAt  string  `json:"spent_at"`
	Category *string `json:"category"`
	Amount   float64 `json:"amount"`
	Note     *string `json:"note"`
}

// DictionaryEntry is one row of a backend-managed reference list
// (category, color or size).
type DictionaryEntry struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	SortOrder *int   `json:"sort_order,omitempty"`
	Active    bool   `json:"active"`
}

const (
	DictCategories = "categories"
	DictColors     = "colors"
	DictSizes      = "sizes"
)

type DashboardKPI struct {
	TodayQty         int     `json:"today_qty"`
	TodayNetRevenue  float64 `json:"today_net_revenue"`
	MonthGrossProfit float64 `json:"month_gross_profit"`
	MonthNetProfit   float64 `json:"month_net_profit"`
	MonthAvgBasket   float64 `json:"month_avg_basket"`
	MonthExpense     float64 `json:"month_expense"`
}

type DailyDashboardRow struct {
	Day         string  `json:"day"`
	NetQty      int     `json:"net_qty"`
	NetRevenue  float64 `json:"net_revenue"`
	GrossProfit float64 `json:"gross_profit"`
	AvgBasket   float64 `json:"avg_basket"`
}

type MonthlyDashboardRow struct {
	Period      string  `json:"period"`
	NetQty      int     `json:"net_qty"`
	NetRevenue  float64 `json:"net_revenue"`
	GrossProfit float64 `json:"gross_profit"`
	Expense     float64 `json:"expense"`
	NetProfit   float64 `json:"net_profit"`
	AvgBasket   float64 `json:"avg_basket"`
}

type DashboardSummary struct {
	KPI     DashboardKPI          `json:"kpi"`
	Daily   []DailyDashboardRow   `json:"daily"`
	Monthly []MonthlyDashboardRow `json:"monthly"`
}

type CashReportRow struct {
	Day         string  `json:"day"`
	CashSales   float64 `json:"cash_sales"`
	CardSales   float64 `json:"card_sales"`
	CashRefunds float64 `json:"cash_refunds"`
	CardRefunds float64 `json:"card_refunds"`
	CashNet     float64 `json:"cash_net"`
	CardNet     float64 `json:"card_net"`
	NetTotal    float64 `json:"net_total"`
}

type SaleGroupRow struct {
	SaleGroupID   string        `json:"sale_group_id"`
	SoldAt        string        `json:"sold_at"`
	Qty           int           `json:"qty"`
	Total         float64       `json:"total"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	Kind          string        `json:"kind"`
}

type SaleGroupLine struct {
	ID             int64    `json:"id"`
	SaleGroupID    string   `json:"sale_group_id"`
	ProductBarcode string   `json:"product_barcode"`
	Name           string   `json:"name"`
	Qty            int      `json:"qty"`
	ListPrice      float64  `json:"list_price"`
	DiscountAmount float64  `json:"discount_amount"`
	UnitPrice      float64  `json:"unit_price"`
	Total          float64  `json:"total"`
	SoldAt         string   `json:"sold_at"`
	SoldFrom       Location `json:"sold_from"`
	PaymentMethod  string   `json:"payment_method"`
	RefundedQty    int      `json:"refunded_qty"`
}

type UnlockRequest struct {
	PIN string `json:"pin"`
}

type UnlockResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   string `json:"expires_at"`
}

type BackupResult struct {
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
	CreatedAt string `json:"created_at"`
}
