package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"savdopos/backend/internal/domain"
	"savdopos/backend/internal/store"
	"savdopos/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// --- products ---

func (s *Store) ListProducts(ctx context.Context, includeArchived bool) ([]domain.Product, error) {
	query := `
		SELECT id, name, barcode, unit, purchase_price_cents, sale_price_cents, min_stock, description, status
		FROM products
	`
	if !includeArchived {
		query += ` WHERE status = 'active'`
	}
	query += ` ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Barcode, &p.Unit, &p.PurchasePriceCents, &p.SalePriceCents, &p.MinStock, &p.Description, &p.Status); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *Store) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	return s.getProduct(ctx, "id", id)
}

func (s *Store) GetProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error) {
	return s.getProduct(ctx, "barcode", barcode)
}

func (s *Store) getProduct(ctx context.Context, column string, value string) (*domain.Product, error) {
	if column != "id" && column != "barcode" {
		return nil, errors.New("unsupported lookup column")
	}
	var p domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, barcode, unit, purchase_price_cents, sale_price_cents, min_stock, description, status
		FROM products
		WHERE `+column+` = $1
	`, value).Scan(&p.ID, &p.Name, &p.Barcode, &p.Unit, &p.PurchasePriceCents, &p.SalePriceCents, &p.MinStock, &p.Description, &p.Status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, barcode, unit, purchase_price_cents, sale_price_cents, min_stock, description, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,now(),now())
	`, product.ID, product.Name, product.Barcode, product.Unit, product.PurchasePriceCents, product.SalePriceCents, product.MinStock, product.Description, product.Status)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2, barcode = $3, unit = $4, purchase_price_cents = $5, sale_price_cents = $6,
			min_stock = $7, description = $8, status = $9, updated_at = now()
		WHERE id = $1
	`, product.ID, product.Name, product.Barcode, product.Unit, product.PurchasePriceCents, product.SalePriceCents, product.MinStock, product.Description, product.Status)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	if affected, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if affected == 0 {
		return nil, store.ErrNotFound
	}
	updated := product
	return &updated, nil
}

func (s *Store) ProductHasMovements(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM stock_movements WHERE product_id = $1)
	`, id).Scan(&exists)
	return exists, err
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return store.ErrInUse
		}
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// --- stock ---

// GetStockMap returns on-hand quantities per product. An empty warehouseID
// sums across every warehouse.
func (s *Store) GetStockMap(ctx context.Context, warehouseID string, productIDs []string) (map[string]int, error) {
	stockMap := make(map[string]int, len(productIDs))
	if len(productIDs) == 0 {
		return stockMap, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, COALESCE(SUM(qty),0)::int
		FROM warehouse_stocks
		WHERE ($1 = '' OR warehouse_id = $1) AND product_id = ANY($2)
		GROUP BY product_id
	`, warehouseID, productIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var productID string
		var qty int
		if err := rows.Scan(&productID, &qty); err != nil {
			return nil, err
		}
		stockMap[productID] = qty
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, id := range productIDs {
		if _, ok := stockMap[id]; !ok {
			stockMap[id] = 0
		}
	}
	return stockMap, nil
}

func (s *Store) AdjustStock(ctx context.Context, warehouseID string, productID string, delta int) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var qty int
	err = tx.QueryRowContext(ctx, `
		INSERT INTO warehouse_stocks (warehouse_id, product_id, qty, reserved_qty, updated_at)
		VALUES ($1,$2,$3,0,now())
		ON CONFLICT (warehouse_id, product_id)
		DO UPDATE SET qty = warehouse_stocks.qty + EXCLUDED.qty, updated_at = now()
		RETURNING qty
	`, warehouseID, productID, delta).Scan(&qty)
	if err != nil {
		return err
	}
	if qty < 0 {
		return store.ErrInsufficientStock
	}
	return tx.Commit()
}

// ReserveStock moves the reserved quantity by delta. A positive delta is
// refused once reservations would exceed the on-hand quantity; a negative
// delta releases and floors at zero. Releasing against a missing stock row
// is a no-op.
func (s *Store) ReserveStock(ctx context.Context, warehouseID string, productID string, delta int) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var qty, reserved int
	err = tx.QueryRowContext(ctx, `
		UPDATE warehouse_stocks
		SET reserved_qty = GREATEST(reserved_qty + $3, 0), updated_at = now()
		WHERE warehouse_id = $1 AND product_id = $2
		RETURNING qty, reserved_qty
	`, warehouseID, productID, delta).Scan(&qty, &reserved)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if delta <= 0 {
				return nil
			}
			return store.ErrInsufficientStock
		}
		return err
	}
	if delta > 0 && reserved > qty {
		return store.ErrInsufficientStock
	}
	return tx.Commit()
}

func (s *Store) ListWarehouseStock(ctx context.Context, warehouseID string) ([]domain.WarehouseStock, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ws.warehouse_id, ws.product_id, ws.qty, ws.reserved_qty, p.name, p.unit
		FROM warehouse_stocks ws
		JOIN products p ON p.id = ws.product_id
		WHERE ws.warehouse_id = $1
		ORDER BY p.name
	`, warehouseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stocks := make([]domain.WarehouseStock, 0, 64)
	for rows.Next() {
		var ws domain.WarehouseStock
		if err := rows.Scan(&ws.WarehouseID, &ws.ProductID, &ws.Qty, &ws.ReservedQty, &ws.ProductName, &ws.ProductUnit); err != nil {
			return nil, err
		}
		stocks = append(stocks, ws)
	}
	return stocks, rows.Err()
}

func (s *Store) CreateStockMovement(ctx context.Context, movement domain.StockMovement) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stock_movements (id, product_id, warehouse_id, qty, type, date, related_id, comment)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, movement.ID, movement.ProductID, movement.WarehouseID, movement.Qty, movement.Type, movement.Date, movement.RelatedID, movement.Comment)
	return err
}

func (s *Store) ListStockMovements(ctx context.Context, filter domain.StockMovementFilter) ([]domain.StockMovement, error) {
	limit := filter.Limit
	if limit < 1 {
		limit = 200
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_id, warehouse_id, qty, type, date, related_id, comment
		FROM stock_movements
		WHERE ($1 = '' OR product_id = $1)
			AND ($2 = '' OR warehouse_id = $2)
			AND ($3 = '' OR type = $3)
			AND ($4::timestamptz IS NULL OR date >= $4)
			AND ($5::timestamptz IS NULL OR date <= $5)
		ORDER BY date DESC
		LIMIT $6
	`, filter.ProductID, filter.WarehouseID, string(filter.Type), nullTime(filter.From), nullTime(filter.To), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	movements := make([]domain.StockMovement, 0, limit)
	for rows.Next() {
		var m domain.StockMovement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.WarehouseID, &m.Qty, &m.Type, &m.Date, &m.RelatedID, &m.Comment); err != nil {
			return nil, err
		}
		m.Date = m.Date.UTC()
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// --- warehouses ---

func (s *Store) ListWarehouses(ctx context.Context) ([]domain.Warehouse, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, location, description, active, created_at
		FROM warehouses
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	warehouses := make([]domain.Warehouse, 0, 8)
	for rows.Next() {
		var w domain.Warehouse
		if err := rows.Scan(&w.ID, &w.Name, &w.Location, &w.Description, &w.Active, &w.CreatedAt); err != nil {
			return nil, err
		}
		w.CreatedAt = w.CreatedAt.UTC()
		warehouses = append(warehouses, w)
	}
	return warehouses, rows.Err()
}

func (s *Store) GetWarehouseByID(ctx context.Context, id string) (*domain.Warehouse, error) {
	var w domain.Warehouse
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, location, description, active, created_at
		FROM warehouses
		WHERE id = $1
	`, id).Scan(&w.ID, &w.Name, &w.Location, &w.Description, &w.Active, &w.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	w.CreatedAt = w.CreatedAt.UTC()
	return &w, nil
}

func (s *Store) CreateWarehouse(ctx context.Context, warehouse domain.Warehouse) (*domain.Warehouse, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO warehouses (id, name, location, description, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, warehouse.ID, warehouse.Name, warehouse.Location, warehouse.Description, warehouse.Active, warehouse.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	created := warehouse
	return &created, nil
}

func (s *Store) UpdateWarehouse(ctx context.Context, warehouse domain.Warehouse) (*domain.Warehouse, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE warehouses
		SET name = $2, location = $3, description = $4, active = $5
		WHERE id = $1
	`, warehouse.ID, warehouse.Name, warehouse.Location, warehouse.Description, warehouse.Active)
	if err != nil {
		return nil, err
	}
	if affected, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if affected == 0 {
		return nil, store.ErrNotFound
	}
	updated := warehouse
	return &updated, nil
}

// --- goods receipts ---

func (s *Store) CreateGoodsReceipt(ctx context.Context, receipt domain.GoodsReceipt) (*domain.GoodsReceipt, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO goods_receipts (id, date, supplier_id, warehouse_id, doc_number, total_cents, received_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, receipt.ID, receipt.Date, receipt.SupplierID, receipt.WarehouseID, receipt.DocNumber, receipt.TotalCents, receipt.ReceivedBy)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	for i, item := range receipt.Items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO goods_receipt_items (receipt_id, ord, product_id, qty, purchase_price_cents)
			VALUES ($1,$2,$3,$4,$5)
		`, receipt.ID, i, item.ProductID, item.Qty, item.PurchasePriceCents)
		if err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := receipt
	return &created, nil
}

func (s *Store) ListGoodsReceipts(ctx context.Context, supplierID string, limit int) ([]domain.GoodsReceipt, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, date, supplier_id, warehouse_id, doc_number, total_cents, received_by
		FROM goods_receipts
		WHERE ($1 = '' OR supplier_id = $1)
		ORDER BY date DESC
		LIMIT $2
	`, supplierID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	receipts := make([]domain.GoodsReceipt, 0, limit)
	ids := make([]string, 0, limit)
	for rows.Next() {
		var r domain.GoodsReceipt
		if err := rows.Scan(&r.ID, &r.Date, &r.SupplierID, &r.WarehouseID, &r.DocNumber, &r.TotalCents, &r.ReceivedBy); err != nil {
			return nil, err
		}
		r.Date = r.Date.UTC()
		receipts = append(receipts, r)
		ids = append(ids, r.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	itemsByReceipt, err := s.goodsReceiptItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range receipts {
		receipts[i].Items = itemsByReceipt[receipts[i].ID]
	}
	return receipts, nil
}

func (s *Store) GetGoodsReceiptByID(ctx context.Context, id string) (*domain.GoodsReceipt, error) {
	var r domain.GoodsReceipt
	err := s.db.QueryRowContext(ctx, `
		SELECT id, date, supplier_id, warehouse_id, doc_number, total_cents, received_by
		FROM goods_receipts
		WHERE id = $1
	`, id).Scan(&r.ID, &r.Date, &r.SupplierID, &r.WarehouseID, &r.DocNumber, &r.TotalCents, &r.ReceivedBy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	r.Date = r.Date.UTC()

	itemsByReceipt, err := s.goodsReceiptItems(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	r.Items = itemsByReceipt[id]
	return &r, nil
}

func (s *Store) goodsReceiptItems(ctx context.Context, receiptIDs []string) (map[string][]domain.GoodsReceiptItem, error) {
	result := make(map[string][]domain.GoodsReceiptItem, len(receiptIDs))
	if len(receiptIDs) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT receipt_id, product_id, qty, purchase_price_cents
		FROM goods_receipt_items
		WHERE receipt_id = ANY($1)
		ORDER BY receipt_id, ord
	`, receiptIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var receiptID string
		var item domain.GoodsReceiptItem
		if err := rows.Scan(&receiptID, &item.ProductID, &item.Qty, &item.PurchasePriceCents); err != nil {
			return nil, err
		}
		result[receiptID] = append(result[receiptID], item)
	}
	return result, rows.Err()
}

// --- customers ---

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, phone, address, debt_cents, created_at
		FROM customers
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 64)
	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.Address, &c.DebtCents, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.CreatedAt = c.CreatedAt.UTC()
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func (s *Store) GetCustomerByID(ctx context.Context, id string) (*domain.Customer, error) {
	var c domain.Customer
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, phone, address, debt_cents, created_at
		FROM customers
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Phone, &c.Address, &c.DebtCents, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, phone, address, debt_cents, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, customer.ID, customer.Name, customer.Phone, customer.Address, customer.DebtCents, customer.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	created := customer
	return &created, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	// Debt changes only flow through AdjustCustomerDebt.
	var updated domain.Customer
	err := s.db.QueryRowContext(ctx, `
		UPDATE customers
		SET name = $2, phone = $3, address = $4
		WHERE id = $1
		RETURNING id, name, phone, address, debt_cents, created_at
	`, customer.ID, customer.Name, customer.Phone, customer.Address).Scan(
		&updated.ID, &updated.Name, &updated.Phone, &updated.Address, &updated.DebtCents, &updated.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	updated.CreatedAt = updated.CreatedAt.UTC()
	return &updated, nil
}

func (s *Store) AdjustCustomerDebt(ctx context.Context, customerID string, deltaCents int64) (*domain.Customer, error) {
	var c domain.Customer
	err := s.db.QueryRowContext(ctx, `
		UPDATE customers
		SET debt_cents = debt_cents + $2
		WHERE id = $1 AND debt_cents + $2 >= 0
		RETURNING id, name, phone, address, debt_cents, created_at
	`, customerID, deltaCents).Scan(&c.ID, &c.Name, &c.Phone, &c.Address, &c.DebtCents, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if _, lookupErr := s.GetCustomerByID(ctx, customerID); errors.Is(lookupErr, store.ErrNotFound) {
				return nil, store.ErrNotFound
			}
			return nil, store.ErrInvalidSale
		}
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

func (s *Store) CreateDebtPayment(ctx context.Context, payment domain.DebtPayment) (*domain.DebtPayment, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO debt_payments (id, customer_id, amount_cents, kind, date)
		VALUES ($1,$2,$3,$4,$5)
	`, payment.ID, payment.CustomerID, payment.AmountCents, payment.Kind, payment.Date)
	if err != nil {
		return nil, err
	}
	created := payment
	return &created, nil
}

func (s *Store) ListDebtPayments(ctx context.Context, customerID string) ([]domain.DebtPayment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_id, amount_cents, kind, date
		FROM debt_payments
		WHERE customer_id = $1
		ORDER BY date DESC
	`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]domain.DebtPayment, 0, 16)
	for rows.Next() {
		var p domain.DebtPayment
		if err := rows.Scan(&p.ID, &p.CustomerID, &p.AmountCents, &p.Kind, &p.Date); err != nil {
			return nil, err
		}
		p.Date = p.Date.UTC()
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// --- suppliers ---

func (s *Store) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, contact_person, phone, address, bank_details, created_at
		FROM suppliers
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	suppliers := make([]domain.Supplier, 0, 32)
	for rows.Next() {
		var sup domain.Supplier
		if err := rows.Scan(&sup.ID, &sup.Name, &sup.ContactPerson, &sup.Phone, &sup.Address, &sup.BankDetails, &sup.CreatedAt); err != nil {
			return nil, err
		}
		sup.CreatedAt = sup.CreatedAt.UTC()
		suppliers = append(suppliers, sup)
	}
	return suppliers, rows.Err()
}

func (s *Store) GetSupplierByID(ctx context.Context, id string) (*domain.Supplier, error) {
	var sup domain.Supplier
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, contact_person, phone, address, bank_details, created_at
		FROM suppliers
		WHERE id = $1
	`, id).Scan(&sup.ID, &sup.Name, &sup.ContactPerson, &sup.Phone, &sup.Address, &sup.BankDetails, &sup.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	sup.CreatedAt = sup.CreatedAt.UTC()
	return &sup, nil
}

func (s *Store) CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO suppliers (id, name, contact_person, phone, address, bank_details, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, supplier.ID, supplier.Name, supplier.ContactPerson, supplier.Phone, supplier.Address, supplier.BankDetails, supplier.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	created := supplier
	return &created, nil
}

func (s *Store) UpdateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE suppliers
		SET name = $2, contact_person = $3, phone = $4, address = $5, bank_details = $6
		WHERE id = $1
	`, supplier.ID, supplier.Name, supplier.ContactPerson, supplier.Phone, supplier.Address, supplier.BankDetails)
	if err != nil {
		return nil, err
	}
	if affected, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if affected == 0 {
		return nil, store.ErrNotFound
	}
	updated := supplier
	return &updated, nil
}

func (s *Store) SupplierHasReceipts(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM goods_receipts WHERE supplier_id = $1)
	`, id).Scan(&exists)
	return exists, err
}

func (s *Store) DeleteSupplier(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM suppliers WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return store.ErrInUse
		}
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// --- sales ---

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sales (id, date, subtotal_cents, discount_cents, total_cents, customer_id, seller_id, warehouse_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, sale.ID, sale.Date, sale.SubtotalCents, sale.DiscountCents, sale.TotalCents, sale.CustomerID, sale.SellerID, sale.WarehouseID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	for i, item := range sale.Items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sale_items (sale_id, ord, product_id, name, qty, unit_price_cents)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, sale.ID, i, item.ProductID, item.Name, item.Qty, item.UnitPriceCents)
		if err != nil {
			return nil, err
		}
	}
	// Payment order is the order parts were committed at the terminal.
	var debt int64
	for i, payment := range sale.Payments {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sale_payments (sale_id, ord, kind, amount_cents)
			VALUES ($1,$2,$3,$4)
		`, sale.ID, i, payment.Kind, payment.AmountCents)
		if err != nil {
			return nil, err
		}
		if payment.Kind == domain.PaymentDebt {
			debt += payment.AmountCents
		}
	}

	// stock decrement, reservation release and movements stay inside the
	// same transaction so a failed guard rolls the sale back too
	need := make(map[string]int, len(sale.Items))
	for _, item := range sale.Items {
		need[item.ProductID] += item.Qty
	}
	productIDs := make([]string, 0, len(need))
	for productID := range need {
		productIDs = append(productIDs, productID)
	}
	sort.Strings(productIDs)

	for _, productID := range productIDs {
		qty := need[productID]
		var remaining int
		err := tx.QueryRowContext(ctx, `
			UPDATE warehouse_stocks
			SET qty = qty - $3,
				reserved_qty = GREATEST(reserved_qty - $3, 0),
				updated_at = now()
			WHERE warehouse_id = $1 AND product_id = $2
			RETURNING qty
		`, sale.WarehouseID, productID, qty).Scan(&remaining)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, store.ErrInsufficientStock
			}
			return nil, err
		}
		if remaining < 0 {
			return nil, store.ErrInsufficientStock
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO stock_movements (id, product_id, warehouse_id, qty, type, date, related_id, comment)
			VALUES ($1,$2,$3,$4,$5,$6,$7,'')
		`, xid.New("mov"), productID, sale.WarehouseID, qty, domain.MovementSale, sale.Date, sale.ID)
		if err != nil {
			return nil, err
		}
	}

	if debt > 0 {
		res, err := tx.ExecContext(ctx, `
			UPDATE customers SET debt_cents = debt_cents + $2 WHERE id = $1
		`, sale.CustomerID, debt)
		if err != nil {
			return nil, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			return nil, store.ErrNotFound
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := sale
	return &created, nil
}

func (s *Store) GetSaleByID(ctx context.Context, id string) (*domain.Sale, error) {
	var sale domain.Sale
	err := s.db.QueryRowContext(ctx, `
		SELECT id, date, subtotal_cents, discount_cents, total_cents, customer_id, seller_id, warehouse_id
		FROM sales
		WHERE id = $1
	`, id).Scan(&sale.ID, &sale.Date, &sale.SubtotalCents, &sale.DiscountCents, &sale.TotalCents, &sale.CustomerID, &sale.SellerID, &sale.WarehouseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	sale.Date = sale.Date.UTC()

	if err := s.attachSaleLines(ctx, []string{id}, map[string]*domain.Sale{id: &sale}); err != nil {
		return nil, err
	}
	return &sale, nil
}

func (s *Store) ListSales(ctx context.Context, filter domain.SaleListFilter) ([]domain.Sale, error) {
	limit := filter.Limit
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, date, subtotal_cents, discount_cents, total_cents, customer_id, seller_id, warehouse_id
		FROM sales
		WHERE ($1 = '' OR seller_id = $1)
			AND ($2 = '' OR customer_id = $2)
			AND ($3::timestamptz IS NULL OR date >= $3)
			AND ($4::timestamptz IS NULL OR date <= $4)
		ORDER BY date DESC
		LIMIT $5
	`, filter.SellerID, filter.CustomerID, nullTime(filter.From), nullTime(filter.To), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, limit)
	ids := make([]string, 0, limit)
	for rows.Next() {
		var sale domain.Sale
		if err := rows.Scan(&sale.ID, &sale.Date, &sale.SubtotalCents, &sale.DiscountCents, &sale.TotalCents, &sale.CustomerID, &sale.SellerID, &sale.WarehouseID); err != nil {
			return nil, err
		}
		sale.Date = sale.Date.UTC()
		sales = append(sales, sale)
		ids = append(ids, sale.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	byID := make(map[string]*domain.Sale, len(sales))
	for i := range sales {
		byID[sales[i].ID] = &sales[i]
	}
	if err := s.attachSaleLines(ctx, ids, byID); err != nil {
		return nil, err
	}
	return sales, nil
}

func (s *Store) attachSaleLines(ctx context.Context, saleIDs []string, byID map[string]*domain.Sale) error {
	if len(saleIDs) == 0 {
		return nil
	}

	itemRows, err := s.db.QueryContext(ctx, `
		SELECT sale_id, product_id, name, qty, unit_price_cents
		FROM sale_items
		WHERE sale_id = ANY($1)
		ORDER BY sale_id, ord
	`, saleIDs)
	if err != nil {
		return err
	}
	for itemRows.Next() {
		var saleID string
		var item domain.SaleItem
		if err := itemRows.Scan(&saleID, &item.ProductID, &item.Name, &item.Qty, &item.UnitPriceCents); err != nil {
			_ = itemRows.Close()
			return err
		}
		if sale := byID[saleID]; sale != nil {
			sale.Items = append(sale.Items, item)
		}
	}
	if err := itemRows.Err(); err != nil {
		_ = itemRows.Close()
		return err
	}
	_ = itemRows.Close()

	paymentRows, err := s.db.QueryContext(ctx, `
		SELECT sale_id, kind, amount_cents
		FROM sale_payments
		WHERE sale_id = ANY($1)
		ORDER BY sale_id, ord
	`, saleIDs)
	if err != nil {
		return err
	}
	for paymentRows.Next() {
		var saleID string
		var payment domain.SalePayment
		if err := paymentRows.Scan(&saleID, &payment.Kind, &payment.AmountCents); err != nil {
			_ = paymentRows.Close()
			return err
		}
		if sale := byID[saleID]; sale != nil {
			sale.Payments = append(sale.Payments, payment)
		}
	}
	if err := paymentRows.Err(); err != nil {
		_ = paymentRows.Close()
		return err
	}
	_ = paymentRows.Close()

	return nil
}

// --- expenses ---

func (s *Store) ListExpenses(ctx context.Context, filter domain.ExpenseFilter) ([]domain.Expense, error) {
	limit := filter.Limit
	if limit < 1 {
		limit = 200
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, category, amount_cents, date, employee_id, comment
		FROM expenses
		WHERE ($1 = '' OR category = $1)
			AND ($2::timestamptz IS NULL OR date >= $2)
			AND ($3::timestamptz IS NULL OR date <= $3)
		ORDER BY date DESC
		LIMIT $4
	`, filter.Category, nullTime(filter.From), nullTime(filter.To), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	expenses := make([]domain.Expense, 0, limit)
	for rows.Next() {
		var e domain.Expense
		if err := rows.Scan(&e.ID, &e.Category, &e.AmountCents, &e.Date, &e.EmployeeID, &e.Comment); err != nil {
			return nil, err
		}
		e.Date = e.Date.UTC()
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

func (s *Store) CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO expenses (id, category, amount_cents, date, employee_id, comment)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, expense.ID, expense.Category, expense.AmountCents, expense.Date, expense.EmployeeID, expense.Comment)
	if err != nil {
		return nil, err
	}
	created := expense
	return &created, nil
}

func (s *Store) DeleteExpense(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// --- employees ---

func (s *Store) ListEmployees(ctx context.Context) ([]domain.Employee, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, phone, role_id, pin_hash, active, created_at
		FROM employees
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	employees := make([]domain.Employee, 0, 16)
	for rows.Next() {
		var e domain.Employee
		if err := rows.Scan(&e.ID, &e.Name, &e.Phone, &e.RoleID, &e.PINHash, &e.Active, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.CreatedAt = e.CreatedAt.UTC()
		employees = append(employees, e)
	}
	return employees, rows.Err()
}

func (s *Store) GetEmployeeByID(ctx context.Context, id string) (*domain.Employee, error) {
	var e domain.Employee
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, phone, role_id, pin_hash, active, created_at
		FROM employees
		WHERE id = $1
	`, id).Scan(&e.ID, &e.Name, &e.Phone, &e.RoleID, &e.PINHash, &e.Active, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	e.CreatedAt = e.CreatedAt.UTC()
	return &e, nil
}

// FindEmployeeByPIN walks active employees calling match on each stored
// hash. The raw PIN never reaches the store.
func (s *Store) FindEmployeeByPIN(ctx context.Context, match func(pinHash string) bool) (*domain.Employee, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, phone, role_id, pin_hash, active, created_at
		FROM employees
		WHERE active = true
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var e domain.Employee
		if err := rows.Scan(&e.ID, &e.Name, &e.Phone, &e.RoleID, &e.PINHash, &e.Active, &e.CreatedAt); err != nil {
			return nil, err
		}
		if match(e.PINHash) {
			e.CreatedAt = e.CreatedAt.UTC()
			return &e, nil
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateEmployee(ctx context.Context, employee domain.Employee) (*domain.Employee, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO employees (id, name, phone, role_id, pin_hash, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, employee.ID, employee.Name, employee.Phone, employee.RoleID, employee.PINHash, employee.Active, employee.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	created := employee
	return &created, nil
}

func (s *Store) UpdateEmployee(ctx context.Context, employee domain.Employee) (*domain.Employee, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE employees
		SET name = $2, phone = $3, role_id = $4, pin_hash = $5, active = $6
		WHERE id = $1
	`, employee.ID, employee.Name, employee.Phone, employee.RoleID, employee.PINHash, employee.Active)
	if err != nil {
		return nil, err
	}
	if affected, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if affected == 0 {
		return nil, store.ErrNotFound
	}
	updated := employee
	return &updated, nil
}

// --- roles ---

func (s *Store) ListRoles(ctx context.Context) ([]domain.Role, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, permissions
		FROM roles
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	roles := make([]domain.Role, 0, 8)
	for rows.Next() {
		var role domain.Role
		var rawPermissions []byte
		if err := rows.Scan(&role.ID, &role.Name, &rawPermissions); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(rawPermissions, &role.Permissions); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (s *Store) GetRoleByID(ctx context.Context, id string) (*domain.Role, error) {
	var role domain.Role
	var rawPermissions []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, permissions
		FROM roles
		WHERE id = $1
	`, id).Scan(&role.ID, &role.Name, &rawPermissions)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(rawPermissions, &role.Permissions); err != nil {
		return nil, err
	}
	return &role, nil
}

func (s *Store) CreateRole(ctx context.Context, role domain.Role) (*domain.Role, error) {
	rawPermissions, err := json.Marshal(role.Permissions)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO roles (id, name, permissions)
		VALUES ($1,$2,$3)
	`, role.ID, role.Name, rawPermissions)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	created := role
	return &created, nil
}

func (s *Store) UpdateRole(ctx context.Context, role domain.Role) (*domain.Role, error) {
	rawPermissions, err := json.Marshal(role.Permissions)
	if err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE roles
		SET name = $2, permissions = $3
		WHERE id = $1
	`, role.ID, role.Name, rawPermissions)
	if err != nil {
		return nil, err
	}
	if affected, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if affected == 0 {
		return nil, store.ErrNotFound
	}
	updated := role
	return &updated, nil
}

func (s *Store) RoleInUse(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM employees WHERE role_id = $1)
	`, id).Scan(&exists)
	return exists, err
}

func (s *Store) DeleteRole(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return store.ErrInUse
		}
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// --- settings ---

const settingsRowID = "main"

func (s *Store) GetSettings(ctx context.Context) (*domain.StoreSettings, error) {
	var st domain.StoreSettings
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, address, phone, currency, receipt_header, receipt_footer,
			receipt_show_store_name, receipt_show_address, receipt_show_phone,
			receipt_show_check_id, receipt_show_date, receipt_show_seller, receipt_show_customer
		FROM store_settings
		WHERE id = $1
	`, settingsRowID).Scan(
		&st.ID, &st.Name, &st.Address, &st.Phone, &st.Currency, &st.ReceiptHeader, &st.ReceiptFooter,
		&st.ReceiptShowStoreName, &st.ReceiptShowAddress, &st.ReceiptShowPhone,
		&st.ReceiptShowCheckID, &st.ReceiptShowDate, &st.ReceiptShowSeller, &st.ReceiptShowCustomer,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	units, err := s.listUnits(ctx)
	if err != nil {
		return nil, err
	}
	st.Units = units
	return &st, nil
}

func (s *Store) UpdateSettings(ctx context.Context, settings domain.StoreSettings) (*domain.StoreSettings, error) {
	settings.ID = settingsRowID
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO store_settings (
			id, name, address, phone, currency, receipt_header, receipt_footer,
			receipt_show_store_name, receipt_show_address, receipt_show_phone,
			receipt_show_check_id, receipt_show_date, receipt_show_seller, receipt_show_customer
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, address = EXCLUDED.address, phone = EXCLUDED.phone,
			currency = EXCLUDED.currency, receipt_header = EXCLUDED.receipt_header,
			receipt_footer = EXCLUDED.receipt_footer,
			receipt_show_store_name = EXCLUDED.receipt_show_store_name,
			receipt_show_address = EXCLUDED.receipt_show_address,
			receipt_show_phone = EXCLUDED.receipt_show_phone,
			receipt_show_check_id = EXCLUDED.receipt_show_check_id,
			receipt_show_date = EXCLUDED.receipt_show_date,
			receipt_show_seller = EXCLUDED.receipt_show_seller,
			receipt_show_customer = EXCLUDED.receipt_show_customer
	`, settings.ID, settings.Name, settings.Address, settings.Phone, settings.Currency,
		settings.ReceiptHeader, settings.ReceiptFooter,
		settings.ReceiptShowStoreName, settings.ReceiptShowAddress, settings.ReceiptShowPhone,
		settings.ReceiptShowCheckID, settings.ReceiptShowDate, settings.ReceiptShowSeller, settings.ReceiptShowCustomer)
	if err != nil {
		return nil, err
	}
	return s.GetSettings(ctx)
}

func (s *Store) AddUnit(ctx context.Context, unit domain.Unit) (*domain.Unit, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO units (id, name)
		VALUES ($1,$2)
	`, unit.ID, unit.Name)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	created := unit
	return &created, nil
}

func (s *Store) RemoveUnit(ctx context.Context, unitID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM units WHERE id = $1`, unitID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) listUnits(ctx context.Context) ([]domain.Unit, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM units ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	units := make([]domain.Unit, 0, 8)
	for rows.Next() {
		var u domain.Unit
		if err := rows.Scan(&u.ID, &u.Name); err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

// --- audit logs ---

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_id, actor_name, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorID, entry.ActorName, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_id, actor_name, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE ($1::timestamptz IS NULL OR created_at >= $1)
			AND ($2::timestamptz IS NULL OR created_at <= $2)
		ORDER BY created_at DESC
		LIMIT $3
	`, nullTime(from), nullTime(to), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorID, &entry.ActorName, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

// --- helpers ---

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
