package domain

import "time"

type Product struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Barcode            string `json:"barcode,omitempty"`
	Unit               string `json:"unit"`
	PurchasePriceCents int64  `json:"purchase_price_cents"`
	SalePriceCents     int64  `json:"sale_price_cents"`
	MinStock           int    `json:"min_stock"`
	Description        string `json:"description,omitempty"`
	Status             string `json:"status"`
}

const (
	ProductStatusActive   = "active"
	ProductStatusArchived = "archived"
)

type ProductCreateRequest struct {
	Name               string `json:"name"`
	Barcode            string `json:"barcode,omitempty"`
	Unit               string `json:"unit"`
	PurchasePriceCents int64  `json:"purchase_price_cents"`
	SalePriceCents     int64  `json:"sale_price_cents"`
	MinStock           int    `json:"min_stock"`
	Description        string `json:"description,omitempty"`
	InitialStock       int    `json:"initial_stock"`
	WarehouseID        string `json:"warehouse_id,omitempty"`
}

type ProductUpdateRequest struct {
	Name               *string `json:"name,omitempty"`
	Barcode            *string `json:"barcode,omitempty"`
	Unit               *string `json:"unit,omitempty"`
	PurchasePriceCents *int64  `json:"purchase_price_cents,omitempty"`
	SalePriceCents     *int64  `json:"sale_price_cents,omitempty"`
	MinStock           *int    `json:"min_stock,omitempty"`
	Description        *string `json:"description,omitempty"`
	Status             *string `json:"status,omitempty"`
}

type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address,omitempty"`
	DebtCents int64     `json:"debt_cents"`
	CreatedAt time.Time `json:"created_at"`
}

type CustomerCreateRequest struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address,omitempty"`
}

type CustomerUpdateRequest struct {
	Name    *string `json:"name,omitempty"`
	Phone   *string `json:"phone,omitempty"`
	Address *string `json:"address,omitempty"`
}

type Supplier struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	ContactPerson string    `json:"contact_person,omitempty"`
	Phone         string    `json:"phone"`
	Address       string    `json:"address,omitempty"`
	BankDetails   string    `json:"bank_details,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type SupplierCreateRequest struct {
	Name          string `json:"name"`
	ContactPerson string `json:"contact_person,omitempty"`
	Phone         string `json:"phone"`
	Address       string `json:"address,omitempty"`
	BankDetails   string `json:"bank_details,omitempty"`
}

// Permission gates API routes. Roles hold a subset; an employee's effective
// capability set is resolved once at login and cached.
type Permission string

const (
	PermViewDashboard    Permission = "view_dashboard"
	PermUseSalesTerminal Permission = "use_sales_terminal"
	PermViewSalesHistory Permission = "view_sales_history"
	PermManageProducts   Permission = "manage_products"
	PermManageWarehouse  Permission = "manage_warehouse"
	PermManageCustomers  Permission = "manage_customers"
	PermManageSuppliers  Permission = "manage_suppliers"
	PermManageExpenses   Permission = "manage_expenses"
	PermViewReports      Permission = "view_reports"
	PermManageSettings   Permission = "manage_settings"
	PermManageEmployees  Permission = "manage_employees"
)

func AllPermissions() []Permission {
	return []Permission{
		PermViewDashboard,
		PermUseSalesTerminal,
		PermViewSalesHistory,
		PermManageProducts,
		PermManageWarehouse,
		PermManageCustomers,
		PermManageSuppliers,
		PermManageExpenses,
		PermViewReports,
		PermManageSettings,
		PermManageEmployees,
	}
}

func IsValidPermission(p Permission) bool {
	for _, known := range AllPermissions() {
		if p == known {
			return true
		}
	}
	return false
}

type Role struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Permissions []Permission `json:"permissions"`
}

type RoleRequest struct {
	Name        string       `json:"name"`
	Permissions []Permission `json:"permissions"`
}

type Employee struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	RoleID    string    `json:"role_id"`
	PINHash   string    `json:"-"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type EmployeeRequest struct {
	Name   string `json:"name"`
	Phone  string `json:"phone"`
	RoleID string `json:"role_id"`
	PIN    string `json:"pin,omitempty"`
	Active *bool  `json:"active,omitempty"`
}

type LoginRequest struct {
	PIN string `json:"pin"`
}

type LoginResponse struct {
	AccessToken string       `json:"access_token"`
	Employee    Employee     `json:"employee"`
	Permissions []Permission `json:"permissions"`
	ExpiresAt   string       `json:"expires_at"`
}

// Actor is the authenticated employee attached to a request context.
type Actor struct {
	EmployeeID string
	Name       string
	RoleID     string
}

type PaymentKind string

const (
	PaymentCash     PaymentKind = "cash"
	PaymentCard     PaymentKind = "card"
	PaymentTransfer PaymentKind = "transfer"
	PaymentDebt     PaymentKind = "debt"
)

func IsValidPaymentKind(kind PaymentKind) bool {
	switch kind {
	case PaymentCash, PaymentCard, PaymentTransfer, PaymentDebt:
		return true
	default:
		return false
	}
}

// SalePayment is one declared payment contributing toward a sale's total.
// Slice order is the order payments were committed at the terminal and is
// preserved on receipts.
type SalePayment struct {
	Kind        PaymentKind `json:"kind"`
	AmountCents int64       `json:"amount_cents"`
}

type SaleItem struct {
	ProductID      string `json:"product_id"`
	Name           string `json:"name,omitempty"`
	Qty            int    `json:"qty"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

type Sale struct {
	ID            string        `json:"id"`
	Date          time.Time     `json:"date"`
	Items         []SaleItem    `json:"items"`
	SubtotalCents int64         `json:"subtotal_cents"`
	DiscountCents int64         `json:"discount_cents"`
	TotalCents    int64         `json:"total_cents"`
	Payments      []SalePayment `json:"payments"`
	CustomerID    string        `json:"customer_id,omitempty"`
	SellerID      string        `json:"seller_id,omitempty"`
	WarehouseID   string        `json:"warehouse_id,omitempty"`
}

type SaleCreateRequest struct {
	Items         []SaleItem    `json:"items"`
	DiscountCents int64         `json:"discount_cents"`
	Payments      []SalePayment `json:"payments"`
	CustomerID    string        `json:"customer_id,omitempty"`
	WarehouseID   string        `json:"warehouse_id,omitempty"`
}

type SaleListFilter struct {
	From       time.Time
	To         time.Time
	SellerID   string
	CustomerID string
	Limit      int
}

type DebtPayment struct {
	ID          string      `json:"id"`
	CustomerID  string      `json:"customer_id"`
	AmountCents int64       `json:"amount_cents"`
	Kind        PaymentKind `json:"kind"`
	Date        time.Time   `json:"date"`
}

type DebtPaymentRequest struct {
	AmountCents int64       `json:"amount_cents"`
	Kind        PaymentKind `json:"kind"`
}

// DebtLedgerEntry is one row of a customer's merged debt history: credit
// portions of sales and the payments settling them, newest first.
type DebtLedgerEntry struct {
	Date        time.Time `json:"date"`
	Type        string    `json:"type"`
	AmountCents int64     `json:"amount_cents"`
	RelatedID   string    `json:"related_id,omitempty"`
}

const (
	DebtEntrySale    = "sale"
	DebtEntryPayment = "payment"
)

type MovementType string

const (
	MovementReceipt MovementType = "receipt"
	MovementIssue   MovementType = "issue"
	MovementSale    MovementType = "sale"
	MovementReturn  MovementType = "return"
)

type StockMovement struct {
	ID          string       `json:"id"`
	ProductID   string       `json:"product_id"`
	WarehouseID string       `json:"warehouse_id,omitempty"`
	Qty         int          `json:"qty"`
	Type        MovementType `json:"type"`
	Date        time.Time    `json:"date"`
	RelatedID   string       `json:"related_id,omitempty"`
	Comment     string       `json:"comment,omitempty"`
}

type StockMovementFilter struct {
	ProductID   string
	WarehouseID string
	Type        MovementType
	From        time.Time
	To          time.Time
	Limit       int
}

type StockAdjustmentRequest struct {
	ProductID   string `json:"product_id"`
	WarehouseID string `json:"warehouse_id,omitempty"`
	Qty         int    `json:"qty"`
	Comment     string `json:"comment,omitempty"`
	// Return marks a positive adjustment as a customer return (vozvrat)
	// instead of a plain receipt.
	Return bool `json:"return,omitempty"`
}

type Warehouse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Location    string    `json:"location,omitempty"`
	Description string    `json:"description,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

type WarehouseRequest struct {
	Name        string `json:"name"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
	Active      *bool  `json:"active,omitempty"`
}

type WarehouseStock struct {
	WarehouseID string `json:"warehouse_id"`
	ProductID   string `json:"product_id"`
	Qty         int    `json:"qty"`
	ReservedQty int    `json:"reserved_qty"`
	ProductName string `json:"product_name,omitempty"`
	ProductUnit string `json:"product_unit,omitempty"`
}

func (ws WarehouseStock) AvailableQty() int {
	return ws.Qty - ws.ReservedQty
}

type GoodsReceiptItem struct {
	ProductID          string `json:"product_id"`
	Qty                int    `json:"qty"`
	PurchasePriceCents int64  `json:"purchase_price_cents"`
}

type GoodsReceipt struct {
	ID          string             `json:"id"`
	Date        time.Time          `json:"date"`
	SupplierID  string             `json:"supplier_id"`
	WarehouseID string             `json:"warehouse_id,omitempty"`
	DocNumber   string             `json:"doc_number,omitempty"`
	Items       []GoodsReceiptItem `json:"items"`
	TotalCents  int64              `json:"total_cents"`
	ReceivedBy  string             `json:"received_by,omitempty"`
}

type GoodsReceiptRequest struct {
	SupplierID  string             `json:"supplier_id"`
	WarehouseID string             `json:"warehouse_id,omitempty"`
	DocNumber   string             `json:"doc_number,omitempty"`
	Items       []GoodsReceiptItem `json:"items"`
}

type Expense struct {
	ID          string    `json:"id"`
	Category    string    `json:"category"`
	AmountCents int64     `json:"amount_cents"`
	Date        time.Time `json:"date"`
	EmployeeID  string    `json:"employee_id,omitempty"`
	Comment     string    `json:"comment,omitempty"`
}

type ExpenseRequest struct {
	Category    string `json:"category"`
	AmountCents int64  `json:"amount_cents"`
	Date        string `json:"date,omitempty"`
	Comment     string `json:"comment,omitempty"`
}

type ExpenseFilter struct {
	Category string
	From     time.Time
	To       time.Time
	Limit    int
}

type Unit struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type StoreSettings struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	Address              string `json:"address"`
	Phone                string `json:"phone"`
	Currency             string `json:"currency"`
	Units                []Unit `json:"units"`
	ReceiptHeader        string `json:"receipt_header,omitempty"`
	ReceiptFooter        string `json:"receipt_footer,omitempty"`
	ReceiptShowStoreName bool   `json:"receipt_show_store_name"`
	ReceiptShowAddress   bool   `json:"receipt_show_address"`
	ReceiptShowPhone     bool   `json:"receipt_show_phone"`
	ReceiptShowCheckID   bool   `json:"receipt_show_check_id"`
	ReceiptShowDate      bool   `json:"receipt_show_date"`
	ReceiptShowSeller    bool   `json:"receipt_show_seller"`
	ReceiptShowCustomer  bool   `json:"receipt_show_customer"`
}

type SettingsUpdateRequest struct {
	Name                 *string `json:"name,omitempty"`
	Address              *string `json:"address,omitempty"`
	Phone                *string `json:"phone,omitempty"`
	Currency             *string `json:"currency,omitempty"`
	ReceiptHeader        *string `json:"receipt_header,omitempty"`
	ReceiptFooter        *string `json:"receipt_footer,omitempty"`
	ReceiptShowStoreName *bool   `json:"receipt_show_store_name,omitempty"`
	ReceiptShowAddress   *bool   `json:"receipt_show_address,omitempty"`
	ReceiptShowPhone     *bool   `json:"receipt_show_phone,omitempty"`
	ReceiptShowCheckID   *bool   `json:"receipt_show_check_id,omitempty"`
	ReceiptShowDate      *bool   `json:"receipt_show_date,omitempty"`
	ReceiptShowSeller    *bool   `json:"receipt_show_seller,omitempty"`
	ReceiptShowCustomer  *bool   `json:"receipt_show_customer,omitempty"`
}

type UnitRequest struct {
	Name string `json:"name"`
}

type ReportPaymentRow struct {
	Kind       PaymentKind `json:"kind"`
	Sales      int64       `json:"sales"`
	TotalCents int64       `json:"total_cents"`
}

type ReportDayRow struct {
	Date       string `json:"date"`
	Sales      int64  `json:"sales"`
	TotalCents int64  `json:"total_cents"`
}

type ReportProductRow struct {
	ProductID  string `json:"product_id"`
	Name       string `json:"name"`
	Qty        int    `json:"qty"`
	TotalCents int64  `json:"total_cents"`
}

type LowStockRow struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Unit      string `json:"unit"`
	Stock     int    `json:"stock"`
	MinStock  int    `json:"min_stock"`
}

type SalesReport struct {
	From              string             `json:"from"`
	To                string             `json:"to"`
	SellerID          string             `json:"seller_id,omitempty"`
	SaleCount         int64              `json:"sale_count"`
	GrossSalesCents   int64              `json:"gross_sales_cents"`
	CostOfGoodsCents  int64              `json:"cost_of_goods_cents"`
	ProfitCents       int64              `json:"profit_cents"`
	ExpensesCents     int64              `json:"expenses_cents"`
	AverageCheckCents int64              `json:"average_check_cents"`
	TotalDebtCents    int64              `json:"total_debt_cents"`
	ByPayment         []ReportPaymentRow `json:"by_payment"`
	ByDay             []ReportDayRow     `json:"by_day"`
	TopProducts       []ReportProductRow `json:"top_products"`
	LowStock          []LowStockRow      `json:"low_stock"`
}

type ReceiptResponse struct {
	SaleID       string `json:"sale_id"`
	PreviewText  string `json:"preview_text"`
	EscposBase64 string `json:"escpos_base64"`
	FileName     string `json:"file_name"`
}

type AuditLog struct {
	ID         string    `json:"id"`
	ActorID    string    `json:"actor_id"`
	ActorName  string    `json:"actor_name"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Detail     string    `json:"detail"`
	CreatedAt  time.Time `json:"created_at"`
}
