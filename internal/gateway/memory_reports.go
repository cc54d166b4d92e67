package gateway

import (
	"encoding/json"
	"slices"
	"strings"
	"time"

	"github.com/ilaydakx/pos-system/internal/domain"
)

// Reporting commands of the memory backend. Sale rows with kind SALE count
// positive; REFUND and EXCHANGE rows are the returned goods and count
// negative against revenue and profit.

func (m *Memory) rowSign(kind string) float64 {
	if kind == "SALE" {
		return 1
	}
	return -1
}

func (m *Memory) rowProfit(row *saleRow) float64 {
	buy := 0.0
	if p, ok := m.products[row.Barcode]; ok {
		buy = p.BuyPrice
	}
	return (row.UnitPrice - buy) * float64(row.Qty)
}

func (m *Memory) dashboardSummary() (json.RawMessage, error) {
	now := m.now().UTC()
	today := now.Format("2006-01-02")
	month := now.Format("2006-01")

	var kpi domain.DashboardKPI
	daily := map[string]*domain.DailyDashboardRow{}
	monthly := map[string]*domain.MonthlyDashboardRow{}
	monthGroups := map[string]bool{}
	var monthRevenue float64

	for _, row := range m.sales {
		sign := m.rowSign(row.Kind)
		day := row.SoldAt.Format("2006-01-02")
		period := row.SoldAt.Format("2006-01")
		revenue := sign * float64(row.Qty) * row.UnitPrice
		qty := int(sign) * row.Qty
		profit := sign * m.rowProfit(row)

		if day == today {
			kpi.TodayQty += qty
			kpi.TodayNetRevenue += revenue
		}
		if period == month {
			kpi.MonthGrossProfit += profit
			monthRevenue += revenue
			if row.Kind == "SALE" {
				monthGroups[row.GroupID] = true
			}
		}

		d, ok := daily[day]
		if !ok {
			d = &domain.DailyDashboardRow{Day: day}
			daily[day] = d
		}
		d.NetQty += qty
		d.NetRevenue += revenue
		d.GrossProfit += profit

		mo, ok := monthly[period]
		if !ok {
			mo = &domain.MonthlyDashboardRow{Period: period}
			monthly[period] = mo
		}
		mo.NetQty += qty
		mo.NetRevenue += revenue
		mo.GrossProfit += profit
	}

	monthlyGroups := map[string]map[string]bool{}
	for _, row := range m.sales {
		if row.Kind != "SALE" {
			continue
		}
		period := row.SoldAt.Format("2006-01")
		if monthlyGroups[period] == nil {
			monthlyGroups[period] = map[string]bool{}
		}
		monthlyGroups[period][row.GroupID] = true
	}

	for _, e := range m.expenses {
		if e.Period == month {
			kpi.MonthExpense += e.Amount
		}
		if mo, ok := monthly[e.Period]; ok {
			mo.Expense += e.Amount
		}
	}
	kpi.MonthNetProfit = kpi.MonthGrossProfit - kpi.MonthExpense
	if n := len(monthGroups); n > 0 {
		kpi.MonthAvgBasket = monthRevenue / float64(n)
	}

	summary := domain.DashboardSummary{KPI: kpi}
	for _, d := range daily {
		if groups := m.dayGroupCount(d.Day); groups > 0 {
			d.AvgBasket = d.NetRevenue / float64(groups)
		}
		summary.Daily = append(summary.Daily, *d)
	}
	for period, mo := range monthly {
		mo.NetProfit = mo.GrossProfit - mo.Expense
		if n := len(monthlyGroups[period]); n > 0 {
			mo.AvgBasket = mo.NetRevenue / float64(n)
		}
		summary.Monthly = append(summary.Monthly, *mo)
	}
	slices.SortFunc(summary.Daily, func(a, b domain.DailyDashboardRow) int {
		return strings.Compare(b.Day, a.Day)
	})
	slices.SortFunc(summary.Monthly, func(a, b domain.MonthlyDashboardRow) int {
		return strings.Compare(b.Period, a.Period)
	})
	return reply(summary)
}

func (m *Memory) dayGroupCount(day string) int {
	groups := map[string]bool{}
	for _, row := range m.sales {
		if row.Kind == "SALE" && row.SoldAt.Format("2006-01-02") == day {
			groups[row.GroupID] = true
		}
	}
	return len(groups)
}

func (m *Memory) cashReport(args any) (json.RawMessage, error) {
	var in struct {
		Days int `json:"days"`
	}
	if args != nil {
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
	}
	if in.Days <= 0 {
		in.Days = 30
	}
	cutoff := m.now().UTC().AddDate(0, 0, -in.Days)

	byDay := map[string]*domain.CashReportRow{}
	for _, row := range m.sales {
		if row.SoldAt.Before(cutoff) {
			continue
		}
		day := row.SoldAt.Format("2006-01-02")
		r, ok := byDay[day]
		if !ok {
			r = &domain.CashReportRow{Day: day}
			byDay[day] = r
		}
		amount := float64(row.Qty) * row.UnitPrice
		cash := row.PaymentMethod == string(domain.PaymentCash)
		if row.Kind == "SALE" {
			if cash {
				r.CashSales += amount
			} else {
				r.CardSales += amount
			}
		} else {
			if cash {
				r.CashRefunds += amount
			} else {
				r.CardRefunds += amount
			}
		}
	}

	rows := make([]domain.CashReportRow, 0, len(byDay))
	for _, r := range byDay {
		r.CashNet = r.CashSales - r.CashRefunds
		r.CardNet = r.CardSales - r.CardRefunds
		r.NetTotal = r.CashNet + r.CardNet
		rows = append(rows, *r)
	}
	slices.SortFunc(rows, func(a, b domain.CashReportRow) int {
		return strings.Compare(b.Day, a.Day)
	})
	return reply(rows)
}

func (m *Memory) listSaleGroups(args any) (json.RawMessage, error) {
	var in struct {
		Days int `json:"days"`
	}
	if args != nil {
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
	}
	if in.Days <= 0 {
		in.Days = 30
	}
	cutoff := m.now().UTC().AddDate(0, 0, -in.Days)

	order := []string{}
	byGroup := map[string]*domain.SaleGroupRow{}
	for _, row := range m.sales {
		if row.SoldAt.Before(cutoff) {
			continue
		}
		g, ok := byGroup[row.GroupID]
		if !ok {
			g = &domain.SaleGroupRow{
				SaleGroupID:   row.GroupID,
				SoldAt:        row.SoldAt.Format(time.RFC3339),
				PaymentMethod: domain.PaymentMethod(row.PaymentMethod),
				Kind:          row.Kind,
			}
			byGroup[row.GroupID] = g
			order = append(order, row.GroupID)
		}
		g.Qty += row.Qty
		g.Total += float64(row.Qty) * row.UnitPrice
	}

	rows := make([]domain.SaleGroupRow, 0, len(order))
	for _, id := range order {
		rows = append(rows, *byGroup[id])
	}
	slices.SortFunc(rows, func(a, b domain.SaleGroupRow) int {
		return strings.Compare(b.SoldAt, a.SoldAt)
	})
	return reply(rows)
}

func (m *Memory) listSalesByGroup(args any) (json.RawMessage, error) {
	var in struct {
		SaleGroupID string `json:"sale_group_id"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	rows := make([]domain.SaleGroupLine, 0)
	for _, row := range m.sales {
		if row.GroupID != in.SaleGroupID {
			continue
		}
		rows = append(rows, domain.SaleGroupLine{
			ID:             row.ID,
			SaleGroupID:    row.GroupID,
			ProductBarcode: row.Barcode,
			Name:           row.Name,
			Qty:            row.Qty,
			ListPrice:      row.ListPrice,
			DiscountAmount: row.DiscountAmount,
			UnitPrice:      row.UnitPrice,
			Total:          float64(row.Qty) * row.UnitPrice,
			SoldAt:         row.SoldAt.Format(time.RFC3339),
			SoldFrom:       row.SoldFrom,
			PaymentMethod:  row.PaymentMethod,
			RefundedQty:    row.RefundedQty,
		})
	}
	return reply(rows)
}
