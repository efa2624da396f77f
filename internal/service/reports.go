package service

import (
	"cmp"
	"context"
	"slices"
	"time"

	"savdopos/backend/internal/domain"
)

const topProductLimit = 10

// SalesReport aggregates sales between from and to (inclusive), optionally
// for a single seller. Cost of goods uses the catalog's current purchase
// price, which is refreshed on every goods receipt.
func (s *Service) SalesReport(ctx context.Context, from, to time.Time, sellerID string) (domain.SalesReport, error) {
	if to.IsZero() {
		to = time.Now().UTC()
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -30)
	}

	sales, err := s.repo.ListSales(ctx, domain.SaleListFilter{From: from, To: to, SellerID: sellerID})
	if err != nil {
		return domain.SalesReport{}, err
	}

	report := domain.SalesReport{
		From:     from.Format("2006-01-02"),
		To:       to.Format("2006-01-02"),
		SellerID: sellerID,
	}

	byPayment := map[domain.PaymentKind]*domain.ReportPaymentRow{}
	byDay := map[string]*domain.ReportDayRow{}
	byProduct := map[string]*domain.ReportProductRow{}
	costCache := map[string]int64{}

	for _, sale := range sales {
		report.SaleCount++
		report.GrossSalesCents += sale.TotalCents

		for _, p := range sale.Payments {
			row, ok := byPayment[p.Kind]
			if !ok {
				row = &domain.ReportPaymentRow{Kind: p.Kind}
				byPayment[p.Kind] = row
			}
			row.Sales++
			row.TotalCents += p.AmountCents
		}

		day := sale.Date.Format("2006-01-02")
		dayRow, ok := byDay[day]
		if !ok {
			dayRow = &domain.ReportDayRow{Date: day}
			byDay[day] = dayRow
		}
		dayRow.Sales++
		dayRow.TotalCents += sale.TotalCents

		for _, item := range sale.Items {
			cost, cached := costCache[item.ProductID]
			if !cached {
				if product, err := s.repo.GetProductByID(ctx, item.ProductID); err == nil {
					cost = product.PurchasePriceCents
				}
				costCache[item.ProductID] = cost
			}
			report.CostOfGoodsCents += int64(item.Qty) * cost

			prodRow, ok := byProduct[item.ProductID]
			if !ok {
				prodRow = &domain.ReportProductRow{ProductID: item.ProductID, Name: item.Name}
				byProduct[item.ProductID] = prodRow
			}
			prodRow.Qty += item.Qty
			prodRow.TotalCents += int64(item.Qty) * item.UnitPriceCents
		}
	}

	report.ProfitCents = report.GrossSalesCents - report.CostOfGoodsCents
	if report.SaleCount > 0 {
		report.AverageCheckCents = report.GrossSalesCents / report.SaleCount
	}

	expenses, err := s.repo.ListExpenses(ctx, domain.ExpenseFilter{From: from, To: to})
	if err != nil {
		return domain.SalesReport{}, err
	}
	for _, e := range expenses {
		report.ExpensesCents += e.AmountCents
	}

	customers, err := s.repo.ListCustomers(ctx)
	if err != nil {
		return domain.SalesReport{}, err
	}
	for _, c := range customers {
		report.TotalDebtCents += c.DebtCents
	}

	for _, row := range byPayment {
		report.ByPayment = append(report.ByPayment, *row)
	}
	slices.SortFunc(report.ByPayment, func(a, b domain.ReportPaymentRow) int {
		return cmp.Compare(b.TotalCents, a.TotalCents)
	})

	for _, row := range byDay {
		report.ByDay = append(report.ByDay, *row)
	}
	slices.SortFunc(report.ByDay, func(a, b domain.ReportDayRow) int {
		return cmp.Compare(a.Date, b.Date)
	})

	for _, row := range byProduct {
		report.TopProducts = append(report.TopProducts, *row)
	}
	slices.SortFunc(report.TopProducts, func(a, b domain.ReportProductRow) int {
		return cmp.Compare(b.TotalCents, a.TotalCents)
	})
	if len(report.TopProducts) > topProductLimit {
		report.TopProducts = report.TopProducts[:topProductLimit]
	}

	lowStock, err := s.LowStock(ctx)
	if err != nil {
		return domain.SalesReport{}, err
	}
	report.LowStock = lowStock

	return report, nil
}

// LowStock lists active products whose total stock across warehouses is at
// or below their minimum.
func (s *Service) LowStock(ctx context.Context) ([]domain.LowStockRow, error) {
	products, err := s.repo.ListProducts(ctx, false)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	stock, err := s.repo.GetStockMap(ctx, "", ids)
	if err != nil {
		return nil, err
	}

	var rows []domain.LowStockRow
	for _, p := range products {
		if p.MinStock <= 0 {
			continue
		}
		if stock[p.ID] <= p.MinStock {
			rows = append(rows, domain.LowStockRow{
				ProductID: p.ID,
				Name:      p.Name,
				Unit:      p.Unit,
				Stock:     stock[p.ID],
				MinStock:  p.MinStock,
			})
		}
	}
	slices.SortFunc(rows, func(a, b domain.LowStockRow) int {
		return (a.Stock - a.MinStock) - (b.Stock - b.MinStock)
	})
	return rows, nil
}
