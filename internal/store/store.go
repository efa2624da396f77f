package store

import (
	"context"
	"errors"
	"time"

	"savdopos/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidSale       = errors.New("invalid sale")
	ErrConflict          = errors.New("conflict")
	ErrInUse             = errors.New("entity is referenced and cannot be deleted")
)

type Repository interface {
	ListProducts(ctx context.Context, includeArchived bool) ([]domain.Product, error)
	GetProductByID(ctx context.Context, id string) (*domain.Product, error)
	GetProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	ProductHasMovements(ctx context.Context, id string) (bool, error)
	DeleteProduct(ctx context.Context, id string) error

	GetStockMap(ctx context.Context, warehouseID string, productIDs []string) (map[string]int, error)
	AdjustStock(ctx context.Context, warehouseID string, productID string, delta int) error
	// ReserveStock holds delta units against the available quantity
	// (on hand minus already reserved). A negative delta releases;
	// releases floor at zero.
	ReserveStock(ctx context.Context, warehouseID string, productID string, delta int) error
	ListWarehouseStock(ctx context.Context, warehouseID string) ([]domain.WarehouseStock, error)
	CreateStockMovement(ctx context.Context, movement domain.StockMovement) error
	ListStockMovements(ctx context.Context, filter domain.StockMovementFilter) ([]domain.StockMovement, error)

	ListWarehouses(ctx context.Context) ([]domain.Warehouse, error)
	GetWarehouseByID(ctx context.Context, id string) (*domain.Warehouse, error)
	CreateWarehouse(ctx context.Context, warehouse domain.Warehouse) (*domain.Warehouse, error)
	UpdateWarehouse(ctx context.Context, warehouse domain.Warehouse) (*domain.Warehouse, error)

	CreateGoodsReceipt(ctx context.Context, receipt domain.GoodsReceipt) (*domain.GoodsReceipt, error)
	ListGoodsReceipts(ctx context.Context, supplierID string, limit int) ([]domain.GoodsReceipt, error)
	GetGoodsReceiptByID(ctx context.Context, id string) (*domain.GoodsReceipt, error)

	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	GetCustomerByID(ctx context.Context, id string) (*domain.Customer, error)
	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	AdjustCustomerDebt(ctx context.Context, customerID string, deltaCents int64) (*domain.Customer, error)
	CreateDebtPayment(ctx context.Context, payment domain.DebtPayment) (*domain.DebtPayment, error)
	ListDebtPayments(ctx context.Context, customerID string) ([]domain.DebtPayment, error)

	ListSuppliers(ctx context.Context) ([]domain.Supplier, error)
	GetSupplierByID(ctx context.Context, id string) (*domain.Supplier, error)
	CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error)
	UpdateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error)
	SupplierHasReceipts(ctx context.Context, id string) (bool, error)
	DeleteSupplier(ctx context.Context, id string) error

	// CreateSale applies the whole sale atomically: the sale row with its
	// items and ordered payments, the per-product stock decrement (with any
	// matching reservation released), the sale stock movements, and the
	// customer debt increase for the debt-paid portion. Insufficient stock
	// rolls everything back.
	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	GetSaleByID(ctx context.Context, id string) (*domain.Sale, error)
	ListSales(ctx context.Context, filter domain.SaleListFilter) ([]domain.Sale, error)

	ListExpenses(ctx context.Context, filter domain.ExpenseFilter) ([]domain.Expense, error)
	CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error)
	DeleteExpense(ctx context.Context, id string) error

	ListEmployees(ctx context.Context) ([]domain.Employee, error)
	GetEmployeeByID(ctx context.Context, id string) (*domain.Employee, error)
	FindEmployeeByPIN(ctx context.Context, match func(pinHash string) bool) (*domain.Employee, error)
	CreateEmployee(ctx context.Context, employee domain.Employee) (*domain.Employee, error)
	UpdateEmployee(ctx context.Context, employee domain.Employee) (*domain.Employee, error)

	ListRoles(ctx context.Context) ([]domain.Role, error)
	GetRoleByID(ctx context.Context, id string) (*domain.Role, error)
	CreateRole(ctx context.Context, role domain.Role) (*domain.Role, error)
	UpdateRole(ctx context.Context, role domain.Role) (*domain.Role, error)
	RoleInUse(ctx context.Context, id string) (bool, error)
	DeleteRole(ctx context.Context, id string) error

	GetSettings(ctx context.Context) (*domain.StoreSettings, error)
	UpdateSettings(ctx context.Context, settings domain.StoreSettings) (*domain.StoreSettings, error)
	AddUnit(ctx context.Context, unit domain.Unit) (*domain.Unit, error)
	RemoveUnit(ctx context.Context, unitID string) error

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)
}
