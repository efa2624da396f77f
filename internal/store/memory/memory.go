package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"savdopos/backend/internal/domain"
	"savdopos/backend/internal/store"
	"savdopos/backend/internal/xid"
)

type Store struct {
	mu             sync.RWMutex
	products       map[string]domain.Product
	stock          map[string]map[string]int // warehouseID -> productID -> qty
	reserved       map[string]map[string]int
	movements      []domain.StockMovement
	warehouses     map[string]domain.Warehouse
	receiptsByID   map[string]domain.GoodsReceipt
	customers      map[string]domain.Customer
	debtPayments   map[string][]domain.DebtPayment // customerID -> payments
	suppliers      map[string]domain.Supplier
	salesByID      map[string]domain.Sale
	expensesByID   map[string]domain.Expense
	employees      map[string]domain.Employee
	roles          map[string]domain.Role
	settings       domain.StoreSettings
	auditLogs      []domain.AuditLog
}

// seedEmployees builds the initial owner and cashier accounts for dev/demo
// mode. PINs come from SEED_OWNER_PIN and SEED_CASHIER_PIN; hardcoded dev
// defaults are used with a warning when unset. Production runs against
// PostgreSQL (DATABASE_URL) where these seeds never apply.
func seedEmployees(ownerRoleID, cashierRoleID string) map[string]domain.Employee {
	ownerPIN := envOr("SEED_OWNER_PIN", "1234")
	cashierPIN := envOr("SEED_CASHIER_PIN", "5678")
	if os.Getenv("SEED_OWNER_PIN") == "" || os.Getenv("SEED_CASHIER_PIN") == "" {
		log.Println("[memory-store] WARNING: using default dev PINs. Set SEED_OWNER_PIN and SEED_CASHIER_PIN to override.")
	}

	now := time.Now().UTC()
	employees := map[string]domain.Employee{}
	for _, e := range []struct {
		name   string
		phone  string
		pin    string
		roleID string
	}{
		{"Aziz Karimov", "+998901234567", ownerPIN, ownerRoleID},
		{"Dilnoza Rashidova", "+998907654321", cashierPIN, cashierRoleID},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(e.pin), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed PIN for %s: %v", e.name, err)
		}
		emp := domain.Employee{
			ID:        xid.New("emp"),
			Name:      e.name,
			Phone:     e.phone,
			RoleID:    e.roleID,
			PINHash:   string(hash),
			Active:    true,
			CreatedAt: now,
		}
		employees[emp.ID] = emp
	}
	return employees
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	now := time.Now().UTC()

	warehouse := domain.Warehouse{
		ID:        xid.New("wh"),
		Name:      "Asosiy ombor",
		Location:  "Toshkent",
		Active:    true,
		CreatedAt: now,
	}

	products := []domain.Product{
		{ID: xid.New("prd"), Name: "Non", Unit: "dona", PurchasePriceCents: 200000, SalePriceCents: 300000, MinStock: 20, Status: domain.ProductStatusActive},
		{ID: xid.New("prd"), Name: "Sut 1L", Unit: "litr", PurchasePriceCents: 900000, SalePriceCents: 1200000, MinStock: 10, Status: domain.ProductStatusActive},
		{ID: xid.New("prd"), Name: "Guruch", Unit: "kg", PurchasePriceCents: 1300000, SalePriceCents: 1700000, MinStock: 15, Status: domain.ProductStatusActive},
		{ID: xid.New("prd"), Name: "Shakar", Unit: "kg", PurchasePriceCents: 1000000, SalePriceCents: 1300000, MinStock: 15, Status: domain.ProductStatusActive},
		{ID: xid.New("prd"), Name: "Choy", Unit: "dona", PurchasePriceCents: 600000, SalePriceCents: 900000, MinStock: 8, Status: domain.ProductStatusActive},
		{ID: xid.New("prd"), Name: "Yog' 1L", Unit: "litr", PurchasePriceCents: 1800000, SalePriceCents: 2300000, MinStock: 6, Status: domain.ProductStatusActive},
		{ID: xid.New("prd"), Name: "Tuxum (10)", Unit: "dona", PurchasePriceCents: 1200000, SalePriceCents: 1500000, MinStock: 10, Status: domain.ProductStatusActive},
		{ID: xid.New("prd"), Name: "Sovun", Unit: "dona", PurchasePriceCents: 400000, SalePriceCents: 600000, MinStock: 12, Status: domain.ProductStatusActive},
	}

	ownerRole := domain.Role{ID: xid.New("role"), Name: "Egasi", Permissions: domain.AllPermissions()}
	cashierRole := domain.Role{ID: xid.New("role"), Name: "Kassir", Permissions: []domain.Permission{
		domain.PermViewDashboard,
		domain.PermUseSalesTerminal,
		domain.PermViewSalesHistory,
		domain.PermManageCustomers,
	}}

	productMap := make(map[string]domain.Product, len(products))
	stock := map[string]map[string]int{warehouse.ID: {}}
	for _, p := range products {
		productMap[p.ID] = p
		stock[warehouse.ID][p.ID] = 50
	}

	return &Store{
		products:     productMap,
		stock:        stock,
		reserved:     map[string]map[string]int{warehouse.ID: {}},
		movements:    make([]domain.StockMovement, 0, 128),
		warehouses:   map[string]domain.Warehouse{warehouse.ID: warehouse},
		receiptsByID: make(map[string]domain.GoodsReceipt),
		customers:    make(map[string]domain.Customer),
		debtPayments: make(map[string][]domain.DebtPayment),
		suppliers:    make(map[string]domain.Supplier),
		salesByID:    make(map[string]domain.Sale),
		expensesByID: make(map[string]domain.Expense),
		employees:    seedEmployees(ownerRole.ID, cashierRole.ID),
		roles:        map[string]domain.Role{ownerRole.ID: ownerRole, cashierRole.ID: cashierRole},
		settings: domain.StoreSettings{
			ID:       "settings",
			Name:     "Savdo Do'koni",
			Address:  "Toshkent, Chilonzor",
			Phone:    "+998712000000",
			Currency: "UZS",
			Units: []domain.Unit{
				{ID: xid.New("unit"), Name: "dona"},
				{ID: xid.New("unit"), Name: "kg"},
				{ID: xid.New("unit"), Name: "litr"},
				{ID: xid.New("unit"), Name: "metr"},
			},
			ReceiptShowStoreName: true,
			ReceiptShowAddress:   true,
			ReceiptShowPhone:     true,
			ReceiptShowCheckID:   true,
			ReceiptShowDate:      true,
			ReceiptShowSeller:    true,
			ReceiptShowCustomer:  true,
		},
		auditLogs: make([]domain.AuditLog, 0, 128),
	}
}

func cmpString(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

// DefaultWarehouseID returns the first active warehouse, used by callers
// that omit warehouse_id.
func (s *Store) DefaultWarehouseID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.warehouses))
	for id, w := range s.warehouses {
		if w.Active {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	if len(ids) == 0 {
		return ""
	}
	return ids[0]
}

func (s *Store) ListProducts(_ context.Context, includeArchived bool) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if !includeArchived && p.Status == domain.ProductStatusArchived {
			continue
		}
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		return cmpString(a.Name, b.Name)
	})
	return products, nil
}

func (s *Store) GetProductByID(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) GetProductByBarcode(_ context.Context, barcode string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.products {
		if p.Barcode != "" && p.Barcode == barcode {
			return &p, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[product.ID]; exists {
		return nil, store.ErrConflict
	}
	if product.Barcode != "" {
		for _, p := range s.products {
			if p.Barcode == product.Barcode {
				return nil, store.ErrConflict
			}
		}
	}
	s.products[product.ID] = product
	return &product, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[product.ID]; !ok {
		return nil, store.ErrNotFound
	}
	s.products[product.ID] = product
	return &product, nil
}

func (s *Store) ProductHasMovements(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.movements {
		if m.ProductID == id {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.products, id)
	for _, wh := range s.stock {
		delete(wh, id)
	}
	return nil
}

func (s *Store) GetStockMap(_ context.Context, warehouseID string, productIDs []string) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]int, len(productIDs))
	if warehouseID != "" {
		wh := s.stock[warehouseID]
		for _, id := range productIDs {
			out[id] = wh[id]
		}
		return out, nil
	}
	// empty warehouse means totals across all warehouses
	for _, id := range productIDs {
		var total int
		for _, wh := range s.stock {
			total += wh[id]
		}
		out[id] = total
	}
	return out, nil
}

func (s *Store) AdjustStock(_ context.Context, warehouseID string, productID string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.warehouses[warehouseID]; !ok {
		return store.ErrNotFound
	}
	wh, ok := s.stock[warehouseID]
	if !ok {
		wh = make(map[string]int)
		s.stock[warehouseID] = wh
	}
	next := wh[productID] + delta
	if next < 0 {
		return store.ErrInsufficientStock
	}
	wh[productID] = next
	return nil
}

// ReserveStock adjusts the reserved quantity for one product. Positive
// deltas are refused when they would push reservations past the on-hand
// quantity; negative deltas release and floor at zero.
func (s *Store) ReserveStock(_ context.Context, warehouseID string, productID string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.warehouses[warehouseID]; !ok {
		return store.ErrNotFound
	}
	reserved, ok := s.reserved[warehouseID]
	if !ok {
		reserved = make(map[string]int)
		s.reserved[warehouseID] = reserved
	}
	next := reserved[productID] + delta
	if next < 0 {
		next = 0
	}
	if delta > 0 && next > s.stock[warehouseID][productID] {
		return store.ErrInsufficientStock
	}
	reserved[productID] = next
	return nil
}

func (s *Store) ListWarehouseStock(_ context.Context, warehouseID string) ([]domain.WarehouseStock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wh, ok := s.stock[warehouseID]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := make([]domain.WarehouseStock, 0, len(wh))
	for productID, qty := range wh {
		row := domain.WarehouseStock{
			WarehouseID: warehouseID,
			ProductID:   productID,
			Qty:         qty,
			ReservedQty: s.reserved[warehouseID][productID],
		}
		if p, ok := s.products[productID]; ok {
			row.ProductName = p.Name
			row.ProductUnit = p.Unit
		}
		out = append(out, row)
	}
	slices.SortFunc(out, func(a, b domain.WarehouseStock) int {
		return cmpString(a.ProductName, b.ProductName)
	})
	return out, nil
}

func (s *Store) CreateStockMovement(_ context.Context, movement domain.StockMovement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.movements = append(s.movements, movement)
	return nil
}

func (s *Store) ListStockMovements(_ context.Context, filter domain.StockMovementFilter) ([]domain.StockMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.StockMovement, 0, len(s.movements))
	for _, m := range s.movements {
		if filter.ProductID != "" && m.ProductID != filter.ProductID {
			continue
		}
		if filter.WarehouseID != "" && m.WarehouseID != filter.WarehouseID {
			continue
		}
		if filter.Type != "" && m.Type != filter.Type {
			continue
		}
		if !filter.From.IsZero() && m.Date.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && m.Date.After(filter.To) {
			continue
		}
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b domain.StockMovement) int {
		return b.Date.Compare(a.Date)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *Store) ListWarehouses(_ context.Context) ([]domain.Warehouse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Warehouse, 0, len(s.warehouses))
	for _, w := range s.warehouses {
		out = append(out, w)
	}
	slices.SortFunc(out, func(a, b domain.Warehouse) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}

func (s *Store) GetWarehouseByID(_ context.Context, id string) (*domain.Warehouse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.warehouses[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &w, nil
}

func (s *Store) CreateWarehouse(_ context.Context, warehouse domain.Warehouse) (*domain.Warehouse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.warehouses[warehouse.ID]; exists {
		return nil, store.ErrConflict
	}
	s.warehouses[warehouse.ID] = warehouse
	s.stock[warehouse.ID] = make(map[string]int)
	s.reserved[warehouse.ID] = make(map[string]int)
	return &warehouse, nil
}

func (s *Store) UpdateWarehouse(_ context.Context, warehouse domain.Warehouse) (*domain.Warehouse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.warehouses[warehouse.ID]; !ok {
		return nil, store.ErrNotFound
	}
	s.warehouses[warehouse.ID] = warehouse
	return &warehouse, nil
}

func (s *Store) CreateGoodsReceipt(_ context.Context, receipt domain.GoodsReceipt) (*domain.GoodsReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.receiptsByID[receipt.ID]; exists {
		return nil, store.ErrConflict
	}
	s.receiptsByID[receipt.ID] = receipt
	return &receipt, nil
}

func (s *Store) ListGoodsReceipts(_ context.Context, supplierID string, limit int) ([]domain.GoodsReceipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.GoodsReceipt, 0, len(s.receiptsByID))
	for _, r := range s.receiptsByID {
		if supplierID != "" && r.SupplierID != supplierID {
			continue
		}
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b domain.GoodsReceipt) int {
		return b.Date.Compare(a.Date)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) GetGoodsReceiptByID(_ context.Context, id string) (*domain.GoodsReceipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.receiptsByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &r, nil
}

func (s *Store) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b domain.Customer) int {
		return cmpString(a.Name, b.Name)
	})
	return out, nil
}

func (s *Store) GetCustomerByID(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.customers[customer.ID]; exists {
		return nil, store.ErrConflict
	}
	s.customers[customer.ID] = customer
	return &customer, nil
}

func (s *Store) UpdateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.customers[customer.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	// debt changes only flow through AdjustCustomerDebt
	customer.DebtCents = existing.DebtCents
	s.customers[customer.ID] = customer
	return &customer, nil
}

func (s *Store) AdjustCustomerDebt(_ context.Context, customerID string, deltaCents int64) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.customers[customerID]
	if !ok {
		return nil, store.ErrNotFound
	}
	next := c.DebtCents + deltaCents
	if next < 0 {
		return nil, store.ErrInvalidSale
	}
	c.DebtCents = next
	s.customers[customerID] = c
	return &c, nil
}

func (s *Store) CreateDebtPayment(_ context.Context, payment domain.DebtPayment) (*domain.DebtPayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[payment.CustomerID]; !ok {
		return nil, store.ErrNotFound
	}
	s.debtPayments[payment.CustomerID] = append(s.debtPayments[payment.CustomerID], payment)
	return &payment, nil
}

func (s *Store) ListDebtPayments(_ context.Context, customerID string) ([]domain.DebtPayment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	payments := s.debtPayments[customerID]
	out := make([]domain.DebtPayment, len(payments))
	copy(out, payments)
	slices.SortFunc(out, func(a, b domain.DebtPayment) int {
		return b.Date.Compare(a.Date)
	})
	return out, nil
}

func (s *Store) ListSuppliers(_ context.Context) ([]domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Supplier, 0, len(s.suppliers))
	for _, sup := range s.suppliers {
		out = append(out, sup)
	}
	slices.SortFunc(out, func(a, b domain.Supplier) int {
		return cmpString(a.Name, b.Name)
	})
	return out, nil
}

func (s *Store) GetSupplierByID(_ context.Context, id string) (*domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sup, ok := s.suppliers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &sup, nil
}

func (s *Store) CreateSupplier(_ context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.suppliers[supplier.ID]; exists {
		return nil, store.ErrConflict
	}
	s.suppliers[supplier.ID] = supplier
	return &supplier, nil
}

func (s *Store) UpdateSupplier(_ context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.suppliers[supplier.ID]; !ok {
		return nil, store.ErrNotFound
	}
	s.suppliers[supplier.ID] = supplier
	return &supplier, nil
}

func (s *Store) SupplierHasReceipts(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.receiptsByID {
		if r.SupplierID == id {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) DeleteSupplier(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.suppliers[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.suppliers, id)
	return nil
}

// CreateSale applies the sale, its stock effects and its debt portion under
// one lock hold, so a failed guard leaves nothing behind.
func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.salesByID[sale.ID]; exists {
		return nil, store.ErrConflict
	}
	wh, ok := s.stock[sale.WarehouseID]
	if !ok {
		return nil, store.ErrNotFound
	}

	need := make(map[string]int, len(sale.Items))
	for _, item := range sale.Items {
		need[item.ProductID] += item.Qty
	}
	productIDs := make([]string, 0, len(need))
	for productID := range need {
		productIDs = append(productIDs, productID)
	}
	slices.Sort(productIDs)

	for _, productID := range productIDs {
		if wh[productID] < need[productID] {
			return nil, store.ErrInsufficientStock
		}
	}

	var debt int64
	for _, p := range sale.Payments {
		if p.Kind == domain.PaymentDebt {
			debt += p.AmountCents
		}
	}
	customer, haveCustomer := s.customers[sale.CustomerID]
	if debt > 0 && !haveCustomer {
		return nil, store.ErrNotFound
	}

	// all guards passed, apply
	reserved := s.reserved[sale.WarehouseID]
	for _, productID := range productIDs {
		qty := need[productID]
		wh[productID] -= qty
		if reserved != nil && reserved[productID] > 0 {
			reserved[productID] -= min(reserved[productID], qty)
		}
		s.movements = append(s.movements, domain.StockMovement{
			ID:          xid.New("mov"),
			ProductID:   productID,
			WarehouseID: sale.WarehouseID,
			Qty:         qty,
			Type:        domain.MovementSale,
			Date:        sale.Date,
			RelatedID:   sale.ID,
		})
	}
	if debt > 0 {
		customer.DebtCents += debt
		s.customers[sale.CustomerID] = customer
	}
	s.salesByID[sale.ID] = sale
	return &sale, nil
}

func (s *Store) GetSaleByID(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.salesByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &sale, nil
}

func (s *Store) ListSales(_ context.Context, filter domain.SaleListFilter) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Sale, 0, len(s.salesByID))
	for _, sale := range s.salesByID {
		if filter.SellerID != "" && sale.SellerID != filter.SellerID {
			continue
		}
		if filter.CustomerID != "" && sale.CustomerID != filter.CustomerID {
			continue
		}
		if !filter.From.IsZero() && sale.Date.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && sale.Date.After(filter.To) {
			continue
		}
		out = append(out, sale)
	}
	slices.SortFunc(out, func(a, b domain.Sale) int {
		return b.Date.Compare(a.Date)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *Store) ListExpenses(_ context.Context, filter domain.ExpenseFilter) ([]domain.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Expense, 0, len(s.expensesByID))
	for _, e := range s.expensesByID {
		if filter.Category != "" && e.Category != filter.Category {
			continue
		}
		if !filter.From.IsZero() && e.Date.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && e.Date.After(filter.To) {
			continue
		}
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b domain.Expense) int {
		return b.Date.Compare(a.Date)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *Store) CreateExpense(_ context.Context, expense domain.Expense) (*domain.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.expensesByID[expense.ID]; exists {
		return nil, store.ErrConflict
	}
	s.expensesByID[expense.ID] = expense
	return &expense, nil
}

func (s *Store) DeleteExpense(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.expensesByID[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.expensesByID, id)
	return nil
}

func (s *Store) ListEmployees(_ context.Context) ([]domain.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Employee, 0, len(s.employees))
	for _, e := range s.employees {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b domain.Employee) int {
		return cmpString(a.Name, b.Name)
	})
	return out, nil
}

func (s *Store) GetEmployeeByID(_ context.Context, id string) (*domain.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.employees[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &e, nil
}

// FindEmployeeByPIN walks active employees invoking match against each PIN
// hash. The bcrypt comparison lives with the caller so the store stays free
// of auth concerns.
func (s *Store) FindEmployeeByPIN(_ context.Context, match func(pinHash string) bool) (*domain.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.employees))
	for id := range s.employees {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		e := s.employees[id]
		if !e.Active {
			continue
		}
		if match(e.PINHash) {
			return &e, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateEmployee(_ context.Context, employee domain.Employee) (*domain.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.employees[employee.ID]; exists {
		return nil, store.ErrConflict
	}
	if _, ok := s.roles[employee.RoleID]; !ok {
		return nil, store.ErrNotFound
	}
	s.employees[employee.ID] = employee
	return &employee, nil
}

func (s *Store) UpdateEmployee(_ context.Context, employee domain.Employee) (*domain.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.employees[employee.ID]; !ok {
		return nil, store.ErrNotFound
	}
	if _, ok := s.roles[employee.RoleID]; !ok {
		return nil, store.ErrNotFound
	}
	s.employees[employee.ID] = employee
	return &employee, nil
}

func (s *Store) ListRoles(_ context.Context) ([]domain.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Role, 0, len(s.roles))
	for _, r := range s.roles {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b domain.Role) int {
		return cmpString(a.Name, b.Name)
	})
	return out, nil
}

func (s *Store) GetRoleByID(_ context.Context, id string) (*domain.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.roles[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &r, nil
}

func (s *Store) CreateRole(_ context.Context, role domain.Role) (*domain.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.roles[role.ID]; exists {
		return nil, store.ErrConflict
	}
	s.roles[role.ID] = role
	return &role, nil
}

func (s *Store) UpdateRole(_ context.Context, role domain.Role) (*domain.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.roles[role.ID]; !ok {
		return nil, store.ErrNotFound
	}
	s.roles[role.ID] = role
	return &role, nil
}

func (s *Store) RoleInUse(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.employees {
		if e.RoleID == id {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) DeleteRole(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.roles[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.roles, id)
	return nil
}

func (s *Store) GetSettings(_ context.Context) (*domain.StoreSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	settings := s.settings
	settings.Units = slices.Clone(s.settings.Units)
	return &settings, nil
}

func (s *Store) UpdateSettings(_ context.Context, settings domain.StoreSettings) (*domain.StoreSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings.ID = s.settings.ID
	settings.Units = s.settings.Units
	s.settings = settings
	out := s.settings
	out.Units = slices.Clone(s.settings.Units)
	return &out, nil
}

func (s *Store) AddUnit(_ context.Context, unit domain.Unit) (*domain.Unit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.settings.Units {
		if strings.EqualFold(u.Name, unit.Name) {
			return nil, store.ErrConflict
		}
	}
	s.settings.Units = append(s.settings.Units, unit)
	return &unit, nil
}

func (s *Store) RemoveUnit(_ context.Context, unitID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, u := range s.settings.Units {
		if u.ID == unitID {
			s.settings.Units = append(s.settings.Units[:i], s.settings.Units[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.AuditLog, 0, len(s.auditLogs))
	for _, entry := range s.auditLogs {
		if !from.IsZero() && entry.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && entry.CreatedAt.After(to) {
			continue
		}
		out = append(out, entry)
	}
	slices.SortFunc(out, func(a, b domain.AuditLog) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
