package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"savdopos/backend/internal/checkout"
	"savdopos/backend/internal/domain"
	"savdopos/backend/internal/store"
	"savdopos/backend/internal/store/memory"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return New(memory.NewSeeded(), checkout.NewManager(), nil, "")
}

func findProduct(t *testing.T, svc *Service, name string) domain.Product {
	t.Helper()
	products, err := svc.ListProducts(context.Background(), true)
	require.NoError(t, err)
	for _, p := range products {
		if p.Name == name {
			return p
		}
	}
	t.Fatalf("seed product %q not found", name)
	return domain.Product{}
}

func stockOf(t *testing.T, svc *Service, productID string) int {
	t.Helper()
	stocks, err := svc.ListWarehouseStock(context.Background(), "")
	require.NoError(t, err)
	for _, ws := range stocks {
		if ws.ProductID == productID {
			return ws.Qty
		}
	}
	return 0
}

func TestCreateSaleDecrementsStockAndWritesMovement(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	non := findProduct(t, svc, "Non")

	sale, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
		Items: []domain.SaleItem{
			{ProductID: non.ID, Qty: 3, UnitPriceCents: non.SalePriceCents},
		},
		Payments: []domain.SalePayment{
			{Kind: domain.PaymentCash, AmountCents: 3 * non.SalePriceCents},
		},
	}, 0)
	require.NoError(t, err)
	assert.Equal(t, 3*non.SalePriceCents, sale.TotalCents)
	assert.Equal(t, non.Name, sale.Items[0].Name)
	assert.Equal(t, 47, stockOf(t, svc, non.ID))

	movements, err := svc.ListStockMovements(ctx, domain.StockMovementFilter{ProductID: non.ID})
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, domain.MovementSale, movements[0].Type)
	assert.Equal(t, sale.ID, movements[0].RelatedID)
	assert.Equal(t, 3, movements[0].Qty)
}

func TestCreateSaleRejectsPaymentMismatch(t *testing.T) {
	svc := newTestService(t)
	non := findProduct(t, svc, "Non")

	_, err := svc.CreateSale(context.Background(), domain.SaleCreateRequest{
		Items: []domain.SaleItem{
			{ProductID: non.ID, Qty: 2, UnitPriceCents: non.SalePriceCents},
		},
		Payments: []domain.SalePayment{
			{Kind: domain.PaymentCash, AmountCents: non.SalePriceCents},
		},
	}, 0)
	assert.ErrorIs(t, err, store.ErrInvalidSale)
	assert.Equal(t, 50, stockOf(t, svc, non.ID))
}

func TestCreateSaleRejectsInsufficientStock(t *testing.T) {
	svc := newTestService(t)
	non := findProduct(t, svc, "Non")

	ctx := context.Background()
	_, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
		Items: []domain.SaleItem{
			{ProductID: non.ID, Qty: 51, UnitPriceCents: non.SalePriceCents},
		},
		Payments: []domain.SalePayment{
			{Kind: domain.PaymentCash, AmountCents: 51 * non.SalePriceCents},
		},
	}, 0)
	assert.ErrorIs(t, err, store.ErrInsufficientStock)

	// the failed sale leaves no trace: no sale row, no movement, full stock
	sales, err := svc.ListSales(ctx, domain.SaleListFilter{})
	require.NoError(t, err)
	assert.Empty(t, sales)
	movements, err := svc.ListStockMovements(ctx, domain.StockMovementFilter{ProductID: non.ID})
	require.NoError(t, err)
	assert.Empty(t, movements)
	assert.Equal(t, 50, stockOf(t, svc, non.ID))
}

func TestCreateSaleDebtRequiresCustomer(t *testing.T) {
	svc := newTestService(t)
	non := findProduct(t, svc, "Non")

	_, err := svc.CreateSale(context.Background(), domain.SaleCreateRequest{
		Items: []domain.SaleItem{
			{ProductID: non.ID, Qty: 1, UnitPriceCents: non.SalePriceCents},
		},
		Payments: []domain.SalePayment{
			{Kind: domain.PaymentDebt, AmountCents: non.SalePriceCents},
		},
	}, 0)
	assert.ErrorIs(t, err, store.ErrInvalidSale)
}

func TestDebtSaleThenSettlement(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	non := findProduct(t, svc, "Non")

	customer, err := svc.CreateCustomer(ctx, domain.CustomerCreateRequest{
		Name:  "Karim aka",
		Phone: "+998901234567",
	})
	require.NoError(t, err)

	total := 10 * non.SalePriceCents
	sale, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
		Items: []domain.SaleItem{
			{ProductID: non.ID, Qty: 10, UnitPriceCents: non.SalePriceCents},
		},
		Payments: []domain.SalePayment{
			{Kind: domain.PaymentCash, AmountCents: total / 2},
			{Kind: domain.PaymentDebt, AmountCents: total / 2},
		},
		CustomerID: customer.ID,
	}, 0)
	require.NoError(t, err)

	got, err := svc.GetCustomer(ctx, customer.ID)
	require.NoError(t, err)
	assert.Equal(t, total/2, got.DebtCents)

	// debt cannot settle debt
	_, err = svc.PayDebt(ctx, customer.ID, domain.DebtPaymentRequest{
		AmountCents: 1000,
		Kind:        domain.PaymentDebt,
	})
	assert.ErrorIs(t, err, store.ErrInvalidSale)

	// overpayment is rejected
	_, err = svc.PayDebt(ctx, customer.ID, domain.DebtPaymentRequest{
		AmountCents: total,
		Kind:        domain.PaymentCash,
	})
	assert.ErrorIs(t, err, store.ErrInvalidSale)

	settled, err := svc.PayDebt(ctx, customer.ID, domain.DebtPaymentRequest{
		AmountCents: total / 2,
		Kind:        domain.PaymentCash,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), settled.DebtCents)

	ledger, err := svc.DebtLedger(ctx, customer.ID)
	require.NoError(t, err)
	require.Len(t, ledger, 2)
	assert.Equal(t, domain.DebtEntryPayment, ledger[0].Type)
	assert.Equal(t, domain.DebtEntrySale, ledger[1].Type)
	assert.Equal(t, sale.ID, ledger[1].RelatedID)
}

func reservedOf(t *testing.T, svc *Service, productID string) int {
	t.Helper()
	stocks, err := svc.ListWarehouseStock(context.Background(), "")
	require.NoError(t, err)
	for _, ws := range stocks {
		if ws.ProductID == productID {
			return ws.ReservedQty
		}
	}
	return 0
}

func TestCartCheckoutReservesAndSells(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	non := findProduct(t, svc, "Non")

	cart, err := svc.AddCartItem(ctx, "kassa-1", non.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 4*non.SalePriceCents, cart.TotalCents)
	cart, err = svc.SetCartDiscount(ctx, "kassa-1", non.SalePriceCents)
	require.NoError(t, err)
	total := 3 * non.SalePriceCents
	assert.Equal(t, total, cart.TotalCents)

	// opening on the cart snapshots the lines and holds the stock
	view, err := svc.OpenCheckout(ctx, "kassa-1", 0, "")
	require.NoError(t, err)
	assert.Equal(t, total, view.TotalCents)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 4, reservedOf(t, svc, non.ID))
	assert.Equal(t, 50, stockOf(t, svc, non.ID))

	// fresh session preloads the whole due as cash
	_, err = svc.CommitCheckoutPart(ctx, "kassa-1")
	require.NoError(t, err)

	sale, err := svc.FinalizeCheckout(ctx, "kassa-1", domain.SaleCreateRequest{})
	require.NoError(t, err)
	assert.Equal(t, total, sale.TotalCents)
	assert.Equal(t, non.SalePriceCents, sale.DiscountCents)
	require.Len(t, sale.Items, 1)
	assert.Equal(t, 4, sale.Items[0].Qty)

	// the sale consumed the hold together with the stock
	assert.Equal(t, 46, stockOf(t, svc, non.ID))
	assert.Equal(t, 0, reservedOf(t, svc, non.ID))

	// the cart is gone with the session
	cart, err = svc.GetCart(ctx, "kassa-1")
	require.NoError(t, err)
	assert.Empty(t, cart.Lines)
}

func TestDiscardCheckoutReleasesHoldAndKeepsCart(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	non := findProduct(t, svc, "Non")

	_, err := svc.AddCartItem(ctx, "kassa-1", non.ID, 5)
	require.NoError(t, err)
	_, err = svc.OpenCheckout(ctx, "kassa-1", 0, "")
	require.NoError(t, err)
	assert.Equal(t, 5, reservedOf(t, svc, non.ID))

	require.NoError(t, svc.DiscardCheckout(ctx, "kassa-1"))
	assert.Equal(t, 0, reservedOf(t, svc, non.ID))

	// the rung-up cart survives, so the cashier can reopen
	cart, err := svc.GetCart(ctx, "kassa-1")
	require.NoError(t, err)
	require.Len(t, cart.Lines, 1)
	_, err = svc.OpenCheckout(ctx, "kassa-1", 0, "")
	require.NoError(t, err)
	assert.Equal(t, 5, reservedOf(t, svc, non.ID))
}

func TestOpenCheckoutRejectsEmptyCart(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.OpenCheckout(context.Background(), "kassa-1", 0, "")
	assert.ErrorIs(t, err, checkout.ErrEmptyCart)
}

func TestOpenCheckoutBlocksOversellAcrossTerminals(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	non := findProduct(t, svc, "Non") // seeded at 50

	_, err := svc.AddCartItem(ctx, "kassa-1", non.ID, 30)
	require.NoError(t, err)
	_, err = svc.OpenCheckout(ctx, "kassa-1", 0, "")
	require.NoError(t, err)

	// only 20 units remain available while kassa-1 holds 30
	_, err = svc.AddCartItem(ctx, "kassa-2", non.ID, 30)
	require.NoError(t, err)
	_, err = svc.OpenCheckout(ctx, "kassa-2", 0, "")
	assert.ErrorIs(t, err, store.ErrInsufficientStock)
	assert.Equal(t, 30, reservedOf(t, svc, non.ID))

	// no session left behind on kassa-2
	_, err = svc.GetCheckout(ctx, "kassa-2")
	assert.ErrorIs(t, err, checkout.ErrSessionNotFound)
}

func TestOpenCashDrawerDefaultsTerminal(t *testing.T) {
	svc := New(memory.NewSeeded(), checkout.NewManager(), nil, "kassa-1")

	terminal, payload := svc.OpenCashDrawer(context.Background(), "  ")
	assert.Equal(t, "kassa-1", terminal)
	assert.NotEmpty(t, payload)

	terminal, _ = svc.OpenCashDrawer(context.Background(), "kassa-9")
	assert.Equal(t, "kassa-9", terminal)
}

func TestFinalizeCheckoutRecordsCommittedParts(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	non := findProduct(t, svc, "Non")
	total := 4 * non.SalePriceCents

	_, err := svc.OpenCheckout(ctx, "term-1", total, "")
	require.NoError(t, err)

	_, err = svc.SetCheckoutPending(ctx, "term-1", domain.PaymentCard, total/4)
	require.NoError(t, err)
	view, err := svc.CommitCheckoutPart(ctx, "term-1")
	require.NoError(t, err)
	assert.Equal(t, total-total/4, view.RemainingCents)
	// pending part reloads with the remainder, keeping the last kind
	assert.Equal(t, domain.PaymentCard, view.Pending.Kind)
	assert.Equal(t, total-total/4, view.Pending.AmountCents)

	// switch the remainder to cash and commit
	_, err = svc.SetCheckoutPending(ctx, "term-1", domain.PaymentCash, total-total/4)
	require.NoError(t, err)
	view, err = svc.CommitCheckoutPart(ctx, "term-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), view.RemainingCents)

	sale, err := svc.FinalizeCheckout(ctx, "term-1", domain.SaleCreateRequest{
		Items: []domain.SaleItem{
			{ProductID: non.ID, Qty: 4, UnitPriceCents: non.SalePriceCents},
		},
	})
	require.NoError(t, err)
	require.Len(t, sale.Payments, 2)
	assert.Equal(t, domain.PaymentCard, sale.Payments[0].Kind)
	assert.Equal(t, domain.PaymentCash, sale.Payments[1].Kind)
	assert.Equal(t, total, sale.TotalCents)

	_, err = svc.GetCheckout(ctx, "term-1")
	assert.ErrorIs(t, err, checkout.ErrSessionNotFound)
}

func TestFinalizeCheckoutRetriesAfterTotalMismatch(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	non := findProduct(t, svc, "Non")
	total := 4 * non.SalePriceCents

	_, err := svc.OpenCheckout(ctx, "term-1", total, "")
	require.NoError(t, err)
	_, err = svc.CommitCheckoutPart(ctx, "term-1")
	require.NoError(t, err)

	// cart disagrees with the session total; the session stays resident
	_, err = svc.FinalizeCheckout(ctx, "term-1", domain.SaleCreateRequest{
		Items: []domain.SaleItem{
			{ProductID: non.ID, Qty: 3, UnitPriceCents: non.SalePriceCents},
		},
	})
	require.ErrorIs(t, err, store.ErrInvalidSale)

	view, err := svc.GetCheckout(ctx, "term-1")
	require.NoError(t, err)
	assert.Equal(t, checkout.StateFinalized, view.State)

	sale, err := svc.FinalizeCheckout(ctx, "term-1", domain.SaleCreateRequest{
		Items: []domain.SaleItem{
			{ProductID: non.ID, Qty: 4, UnitPriceCents: non.SalePriceCents},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, total, sale.TotalCents)

	_, err = svc.GetCheckout(ctx, "term-1")
	assert.ErrorIs(t, err, checkout.ErrSessionNotFound)
}

func TestGoodsReceiptRefreshesPurchasePrice(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	choy := findProduct(t, svc, "Choy")

	supplier, err := svc.CreateSupplier(ctx, domain.SupplierCreateRequest{
		Name:  "Toshkent Savdo MChJ",
		Phone: "+998712345678",
	})
	require.NoError(t, err)

	newPrice := choy.PurchasePriceCents + 100000
	receipt, err := svc.CreateGoodsReceipt(ctx, domain.GoodsReceiptRequest{
		SupplierID: supplier.ID,
		Items: []domain.GoodsReceiptItem{
			{ProductID: choy.ID, Qty: 20, PurchasePriceCents: newPrice},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(20)*newPrice, receipt.TotalCents)
	assert.Equal(t, 70, stockOf(t, svc, choy.ID))

	refreshed, err := svc.GetProduct(ctx, choy.ID)
	require.NoError(t, err)
	assert.Equal(t, newPrice, refreshed.PurchasePriceCents)

	// supplier with receipt history cannot be deleted
	err = svc.DeleteSupplier(ctx, supplier.ID)
	assert.ErrorIs(t, err, store.ErrInUse)
}

func TestDeleteProductArchivesWhenReferenced(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	sut := findProduct(t, svc, "Sut 1L")

	_, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
		Items: []domain.SaleItem{
			{ProductID: sut.ID, Qty: 1, UnitPriceCents: sut.SalePriceCents},
		},
		Payments: []domain.SalePayment{
			{Kind: domain.PaymentCash, AmountCents: sut.SalePriceCents},
		},
	}, 0)
	require.NoError(t, err)

	archived, err := svc.DeleteProduct(ctx, sut.ID)
	require.NoError(t, err)
	assert.True(t, archived)

	got, err := svc.GetProduct(ctx, sut.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProductStatusArchived, got.Status)

	fresh, err := svc.CreateProduct(ctx, domain.ProductCreateRequest{
		Name:           "Tuz",
		Unit:           "kg",
		SalePriceCents: 200000,
	})
	require.NoError(t, err)
	archived, err = svc.DeleteProduct(ctx, fresh.ID)
	require.NoError(t, err)
	assert.False(t, archived)
	_, err = svc.GetProduct(ctx, fresh.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSalesReportAggregates(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	non := findProduct(t, svc, "Non")
	guruch := findProduct(t, svc, "Guruch")

	_, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
		Items: []domain.SaleItem{
			{ProductID: non.ID, Qty: 2, UnitPriceCents: non.SalePriceCents},
		},
		Payments: []domain.SalePayment{
			{Kind: domain.PaymentCash, AmountCents: 2 * non.SalePriceCents},
		},
	}, 0)
	require.NoError(t, err)
	_, err = svc.CreateSale(ctx, domain.SaleCreateRequest{
		Items: []domain.SaleItem{
			{ProductID: guruch.ID, Qty: 1, UnitPriceCents: guruch.SalePriceCents},
		},
		Payments: []domain.SalePayment{
			{Kind: domain.PaymentCard, AmountCents: guruch.SalePriceCents},
		},
	}, 0)
	require.NoError(t, err)
	_, err = svc.CreateExpense(ctx, domain.ExpenseRequest{Category: "ijara", AmountCents: 500000})
	require.NoError(t, err)

	report, err := svc.SalesReport(ctx, time.Time{}, time.Time{}, "")
	require.NoError(t, err)

	gross := 2*non.SalePriceCents + guruch.SalePriceCents
	cost := 2*non.PurchasePriceCents + guruch.PurchasePriceCents
	assert.Equal(t, int64(2), report.SaleCount)
	assert.Equal(t, gross, report.GrossSalesCents)
	assert.Equal(t, cost, report.CostOfGoodsCents)
	assert.Equal(t, gross-cost, report.ProfitCents)
	assert.Equal(t, int64(500000), report.ExpensesCents)
	assert.Equal(t, gross/2, report.AverageCheckCents)
	require.Len(t, report.ByPayment, 2)
	require.Len(t, report.ByDay, 1)
	assert.Equal(t, int64(2), report.ByDay[0].Sales)
	require.Len(t, report.TopProducts, 2)
	assert.Equal(t, guruch.ID, report.TopProducts[0].ProductID)
}

func TestLowStockFlagsProductsAtOrBelowMinimum(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	non := findProduct(t, svc, "Non") // min stock 20, seeded at 50

	err := svc.AdjustStock(ctx, domain.StockAdjustmentRequest{
		ProductID: non.ID,
		Qty:       -35,
		Comment:   "inventarizatsiya",
	})
	require.NoError(t, err)

	rows, err := svc.LowStock(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, non.ID, rows[0].ProductID)
	assert.Equal(t, 15, rows[0].Stock)
	assert.Equal(t, 20, rows[0].MinStock)
}

func TestReturnAdjustmentWritesReturnMovement(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	non := findProduct(t, svc, "Non")

	err := svc.AdjustStock(ctx, domain.StockAdjustmentRequest{
		ProductID: non.ID,
		Qty:       2,
		Return:    true,
		Comment:   "vozvrat, chek 123",
	})
	require.NoError(t, err)
	assert.Equal(t, 52, stockOf(t, svc, non.ID))

	movements, err := svc.ListStockMovements(ctx, domain.StockMovementFilter{
		ProductID: non.ID,
		Type:      domain.MovementReturn,
	})
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, 2, movements[0].Qty)

	err = svc.AdjustStock(ctx, domain.StockAdjustmentRequest{ProductID: non.ID, Qty: -1, Return: true})
	assert.ErrorIs(t, err, store.ErrInvalidSale)
}

func TestAuditLogRecordsActor(t *testing.T) {
	svc := newTestService(t)
	ctx := WithActor(context.Background(), domain.Actor{EmployeeID: "emp-1", Name: "Dilnoza"})

	_, err := svc.CreateCustomer(ctx, domain.CustomerCreateRequest{Name: "Mijoz", Phone: "+998900000000"})
	require.NoError(t, err)

	logs, err := svc.ListAuditLogs(ctx, time.Time{}, time.Time{}, 10)
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	assert.Equal(t, "customer_create", logs[0].Action)
	assert.Equal(t, "Dilnoza", logs[0].ActorName)
	assert.Equal(t, "emp-1", logs[0].ActorID)
}
