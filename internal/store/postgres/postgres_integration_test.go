package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"savdopos/backend/internal/domain"
	"savdopos/backend/internal/store"
)

func TestAdjustStockGuardsAgainstNegativeQty(t *testing.T) {
	databaseURL := os.Getenv("SAVDOPOS_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set SAVDOPOS_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	productID := fmt.Sprintf("prod-stock-it-%d", stamp)
	warehouseID := fmt.Sprintf("wh-stock-it-%d", stamp)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM warehouse_stocks WHERE warehouse_id = $1 AND product_id = $2`, warehouseID, productID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM warehouses WHERE id = $1`, warehouseID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, productID)
	})

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, barcode, unit, purchase_price_cents, sale_price_cents, min_stock, description, status, created_at, updated_at)
		VALUES ($1, 'Qog''oz sochiq', '', 'dona', 800000, 1200000, 5, '', 'active', now(), now())
	`, productID); err != nil {
		t.Fatalf("insert product: %v", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO warehouses (id, name, location, description, active, created_at)
		VALUES ($1, 'Asosiy ombor IT', '', '', true, now())
	`, warehouseID); err != nil {
		t.Fatalf("insert warehouse: %v", err)
	}

	if err := s.AdjustStock(ctx, warehouseID, productID, 10); err != nil {
		t.Fatalf("seed stock: %v", err)
	}
	if err := s.AdjustStock(ctx, warehouseID, productID, -4); err != nil {
		t.Fatalf("decrement stock: %v", err)
	}

	err = s.AdjustStock(ctx, warehouseID, productID, -7)
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	stockMap, err := s.GetStockMap(ctx, warehouseID, []string{productID})
	if err != nil {
		t.Fatalf("get stock map: %v", err)
	}
	if stockMap[productID] != 6 {
		t.Fatalf("expected stock 6 after rejected decrement, got %d", stockMap[productID])
	}
}

func TestCreateSaleKeepsPaymentOrder(t *testing.T) {
	databaseURL := os.Getenv("SAVDOPOS_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set SAVDOPOS_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	saleID := fmt.Sprintf("sale-order-it-%d", stamp)
	productID := fmt.Sprintf("prod-order-it-%d", stamp)
	warehouseID := fmt.Sprintf("wh-order-it-%d", stamp)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM stock_movements WHERE related_id = $1`, saleID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sale_payments WHERE sale_id = $1`, saleID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sale_items WHERE sale_id = $1`, saleID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, saleID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM warehouse_stocks WHERE warehouse_id = $1 AND product_id = $2`, warehouseID, productID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM warehouses WHERE id = $1`, warehouseID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, productID)
	})

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, barcode, unit, purchase_price_cents, sale_price_cents, min_stock, description, status, created_at, updated_at)
		VALUES ($1, 'Guruch IT', '', 'kg', 1000000, 1500000, 10, '', 'active', now(), now())
	`, productID); err != nil {
		t.Fatalf("insert product: %v", err)
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO warehouses (id, name, location, description, active, created_at)
		VALUES ($1, 'Ombor IT', '', '', true, now())
	`, warehouseID); err != nil {
		t.Fatalf("insert warehouse: %v", err)
	}
	if err := s.AdjustStock(ctx, warehouseID, productID, 10); err != nil {
		t.Fatalf("seed stock: %v", err)
	}

	sale := domain.Sale{
		ID:            saleID,
		Date:          time.Now().UTC(),
		SubtotalCents: 3000000,
		TotalCents:    3000000,
		SellerID:      "",
		WarehouseID:   warehouseID,
		Items: []domain.SaleItem{
			{ProductID: productID, Name: "Guruch IT", Qty: 2, UnitPriceCents: 1500000},
		},
		Payments: []domain.SalePayment{
			{Kind: domain.PaymentCard, AmountCents: 2000000},
			{Kind: domain.PaymentCash, AmountCents: 1000000},
		},
	}
	if _, err := s.CreateSale(ctx, sale); err != nil {
		t.Fatalf("create sale: %v", err)
	}

	got, err := s.GetSaleByID(ctx, saleID)
	if err != nil {
		t.Fatalf("get sale: %v", err)
	}
	if len(got.Payments) != 2 {
		t.Fatalf("expected 2 payments, got %d", len(got.Payments))
	}
	if got.Payments[0].Kind != domain.PaymentCard || got.Payments[1].Kind != domain.PaymentCash {
		t.Fatalf("payments out of order: %+v", got.Payments)
	}
	if got.Payments[0].AmountCents != 2000000 || got.Payments[1].AmountCents != 1000000 {
		t.Fatalf("payment amounts mismatch: %+v", got.Payments)
	}

	stockMap, err := s.GetStockMap(ctx, warehouseID, []string{productID})
	if err != nil {
		t.Fatalf("get stock map: %v", err)
	}
	if stockMap[productID] != 8 {
		t.Fatalf("expected stock 8 after sale, got %d", stockMap[productID])
	}
}

func TestCreateSaleRollsBackOnStockGuard(t *testing.T) {
	databaseURL := os.Getenv("SAVDOPOS_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set SAVDOPOS_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	saleID := fmt.Sprintf("sale-guard-it-%d", stamp)
	productID := fmt.Sprintf("prod-guard-it-%d", stamp)
	warehouseID := fmt.Sprintf("wh-guard-it-%d", stamp)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM warehouse_stocks WHERE warehouse_id = $1 AND product_id = $2`, warehouseID, productID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM warehouses WHERE id = $1`, warehouseID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, productID)
	})

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, barcode, unit, purchase_price_cents, sale_price_cents, min_stock, description, status, created_at, updated_at)
		VALUES ($1, 'Yog'' IT', '', 'dona', 900000, 1400000, 2, '', 'active', now(), now())
	`, productID); err != nil {
		t.Fatalf("insert product: %v", err)
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO warehouses (id, name, location, description, active, created_at)
		VALUES ($1, 'Ombor guard IT', '', '', true, now())
	`, warehouseID); err != nil {
		t.Fatalf("insert warehouse: %v", err)
	}
	if err := s.AdjustStock(ctx, warehouseID, productID, 3); err != nil {
		t.Fatalf("seed stock: %v", err)
	}

	sale := domain.Sale{
		ID:            saleID,
		Date:          time.Now().UTC(),
		SubtotalCents: 7000000,
		TotalCents:    7000000,
		WarehouseID:   warehouseID,
		Items: []domain.SaleItem{
			{ProductID: productID, Name: "Yog' IT", Qty: 5, UnitPriceCents: 1400000},
		},
		Payments: []domain.SalePayment{
			{Kind: domain.PaymentCash, AmountCents: 7000000},
		},
	}
	_, err = s.CreateSale(ctx, sale)
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	// the whole write rolled back: no sale row, stock untouched
	if _, err := s.GetSaleByID(ctx, saleID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for sale, got %v", err)
	}
	stockMap, err := s.GetStockMap(ctx, warehouseID, []string{productID})
	if err != nil {
		t.Fatalf("get stock map: %v", err)
	}
	if stockMap[productID] != 3 {
		t.Fatalf("expected stock 3 after rollback, got %d", stockMap[productID])
	}
}
