package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"savdopos/backend/internal/checkout"
	"savdopos/backend/internal/domain"
	"savdopos/backend/internal/store"
	"savdopos/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo            store.Repository
	sessions        *checkout.Manager
	log             *zap.SugaredLogger
	defaultTerminal string
}

func New(repo store.Repository, sessions *checkout.Manager, logger *zap.SugaredLogger, defaultTerminalID string) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if sessions == nil {
		sessions = checkout.NewManager()
	}
	if defaultTerminalID == "" {
		defaultTerminalID = "main-terminal"
	}
	return &Service{repo: repo, sessions: sessions, log: logger, defaultTerminal: defaultTerminalID}
}

func (s *Service) logAudit(ctx context.Context, action, entityType, entityID, detail string) {
	actor, _ := ActorFromContext(ctx)
	entry := domain.AuditLog{
		ID:         xid.New("audit"),
		ActorID:    actor.EmployeeID,
		ActorName:  actor.Name,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.repo.CreateAuditLog(ctx, entry); err != nil {
		s.log.Warnw("audit log write failed", "action", action, "entity", entityID, "err", err)
	}
}

func (s *Service) ListAuditLogs(ctx context.Context, from, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

// --- catalog ---

func (s *Service) ListProducts(ctx context.Context, includeArchived bool) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx, includeArchived)
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	p, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *p, nil
}

func (s *Service) FindProductByBarcode(ctx context.Context, barcode string) (domain.Product, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return domain.Product{}, store.ErrNotFound
	}
	p, err := s.repo.GetProductByBarcode(ctx, barcode)
	if err != nil {
		return domain.Product{}, err
	}
	return *p, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Unit = strings.TrimSpace(req.Unit)
	req.Barcode = strings.TrimSpace(req.Barcode)

	if req.Name == "" || req.Unit == "" {
		return domain.Product{}, fmt.Errorf("%w: name and unit are required", store.ErrInvalidSale)
	}
	if req.SalePriceCents < 1 || req.PurchasePriceCents < 0 || req.MinStock < 0 || req.InitialStock < 0 {
		return domain.Product{}, fmt.Errorf("%w: bad price or stock values", store.ErrInvalidSale)
	}

	product := domain.Product{
		ID:                 xid.New("prd"),
		Name:               req.Name,
		Barcode:            req.Barcode,
		Unit:               req.Unit,
		PurchasePriceCents: req.PurchasePriceCents,
		SalePriceCents:     req.SalePriceCents,
		MinStock:           req.MinStock,
		Description:        strings.TrimSpace(req.Description),
		Status:             domain.ProductStatusActive,
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}

	if req.InitialStock > 0 {
		warehouseID, err := s.resolveWarehouse(ctx, req.WarehouseID)
		if err != nil {
			return domain.Product{}, err
		}
		if err := s.repo.AdjustStock(ctx, warehouseID, created.ID, req.InitialStock); err != nil {
			return domain.Product{}, err
		}
		if err := s.repo.CreateStockMovement(ctx, domain.StockMovement{
			ID:          xid.New("mov"),
			ProductID:   created.ID,
			WarehouseID: warehouseID,
			Qty:         req.InitialStock,
			Type:        domain.MovementReceipt,
			Date:        time.Now().UTC(),
			Comment:     "initial stock",
		}); err != nil {
			s.log.Warnw("initial stock movement write failed", "product", created.ID, "err", err)
		}
	}

	s.logAudit(ctx, "product_create", "product", created.ID, fmt.Sprintf("name=%s,price=%d,stock=%d", created.Name, created.SalePriceCents, req.InitialStock))
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	existing, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, fmt.Errorf("%w: empty name", store.ErrInvalidSale)
		}
		updated.Name = name
	}
	if req.Barcode != nil {
		updated.Barcode = strings.TrimSpace(*req.Barcode)
	}
	if req.Unit != nil {
		unit := strings.TrimSpace(*req.Unit)
		if unit == "" {
			return domain.Product{}, fmt.Errorf("%w: empty unit", store.ErrInvalidSale)
		}
		updated.Unit = unit
	}
	if req.PurchasePriceCents != nil {
		if *req.PurchasePriceCents < 0 {
			return domain.Product{}, fmt.Errorf("%w: negative purchase price", store.ErrInvalidSale)
		}
		updated.PurchasePriceCents = *req.PurchasePriceCents
	}
	if req.SalePriceCents != nil {
		if *req.SalePriceCents < 1 {
			return domain.Product{}, fmt.Errorf("%w: sale price below 1", store.ErrInvalidSale)
		}
		updated.SalePriceCents = *req.SalePriceCents
	}
	if req.MinStock != nil {
		if *req.MinStock < 0 {
			return domain.Product{}, fmt.Errorf("%w: negative min stock", store.ErrInvalidSale)
		}
		updated.MinStock = *req.MinStock
	}
	if req.Description != nil {
		updated.Description = strings.TrimSpace(*req.Description)
	}
	if req.Status != nil {
		if *req.Status != domain.ProductStatusActive && *req.Status != domain.ProductStatusArchived {
			return domain.Product{}, fmt.Errorf("%w: unknown status %q", store.ErrInvalidSale, *req.Status)
		}
		updated.Status = *req.Status
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}
	s.logAudit(ctx, "product_update", "product", saved.ID, fmt.Sprintf("name=%s", saved.Name))
	return *saved, nil
}

// DeleteProduct removes a product outright only when it has no movement
// history; referenced products are archived instead so old sales keep
// resolving.
func (s *Service) DeleteProduct(ctx context.Context, id string) (archived bool, err error) {
	existing, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return false, err
	}
	hasHistory, err := s.repo.ProductHasMovements(ctx, id)
	if err != nil {
		return false, err
	}
	if hasHistory {
		updated := *existing
		updated.Status = domain.ProductStatusArchived
		if _, err := s.repo.UpdateProduct(ctx, updated); err != nil {
			return false, err
		}
		s.logAudit(ctx, "product_archive", "product", id, existing.Name)
		return true, nil
	}
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return false, err
	}
	s.logAudit(ctx, "product_delete", "product", id, existing.Name)
	return false, nil
}

// --- customers ---

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx)
}

func (s *Service) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	c, err := s.repo.GetCustomerByID(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}
	return *c, nil
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (domain.Customer, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	if req.Name == "" || req.Phone == "" {
		return domain.Customer{}, fmt.Errorf("%w: name and phone are required", store.ErrInvalidSale)
	}
	customer := domain.Customer{
		ID:        xid.New("cust"),
		Name:      req.Name,
		Phone:     req.Phone,
		Address:   strings.TrimSpace(req.Address),
		CreatedAt: time.Now().UTC(),
	}
	created, err := s.repo.CreateCustomer(ctx, customer)
	if err != nil {
		return domain.Customer{}, err
	}
	s.logAudit(ctx, "customer_create", "customer", created.ID, created.Name)
	return *created, nil
}

func (s *Service) UpdateCustomer(ctx context.Context, id string, req domain.CustomerUpdateRequest) (domain.Customer, error) {
	existing, err := s.repo.GetCustomerByID(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}
	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Customer{}, fmt.Errorf("%w: empty name", store.ErrInvalidSale)
		}
		updated.Name = name
	}
	if req.Phone != nil {
		phone := strings.TrimSpace(*req.Phone)
		if phone == "" {
			return domain.Customer{}, fmt.Errorf("%w: empty phone", store.ErrInvalidSale)
		}
		updated.Phone = phone
	}
	if req.Address != nil {
		updated.Address = strings.TrimSpace(*req.Address)
	}
	saved, err := s.repo.UpdateCustomer(ctx, updated)
	if err != nil {
		return domain.Customer{}, err
	}
	s.logAudit(ctx, "customer_update", "customer", saved.ID, saved.Name)
	return *saved, nil
}

// --- suppliers ---

func (s *Service) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	return s.repo.ListSuppliers(ctx)
}

func (s *Service) CreateSupplier(ctx context.Context, req domain.SupplierCreateRequest) (domain.Supplier, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	if req.Name == "" || req.Phone == "" {
		return domain.Supplier{}, fmt.Errorf("%w: name and phone are required", store.ErrInvalidSale)
	}
	supplier := domain.Supplier{
		ID:            xid.New("sup"),
		Name:          req.Name,
		ContactPerson: strings.TrimSpace(req.ContactPerson),
		Phone:         req.Phone,
		Address:       strings.TrimSpace(req.Address),
		BankDetails:   strings.TrimSpace(req.BankDetails),
		CreatedAt:     time.Now().UTC(),
	}
	created, err := s.repo.CreateSupplier(ctx, supplier)
	if err != nil {
		return domain.Supplier{}, err
	}
	s.logAudit(ctx, "supplier_create", "supplier", created.ID, created.Name)
	return *created, nil
}

func (s *Service) UpdateSupplier(ctx context.Context, id string, req domain.SupplierCreateRequest) (domain.Supplier, error) {
	existing, err := s.repo.GetSupplierByID(ctx, id)
	if err != nil {
		return domain.Supplier{}, err
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	if req.Name == "" || req.Phone == "" {
		return domain.Supplier{}, fmt.Errorf("%w: name and phone are required", store.ErrInvalidSale)
	}
	updated := *existing
	updated.Name = req.Name
	updated.ContactPerson = strings.TrimSpace(req.ContactPerson)
	updated.Phone = req.Phone
	updated.Address = strings.TrimSpace(req.Address)
	updated.BankDetails = strings.TrimSpace(req.BankDetails)

	saved, err := s.repo.UpdateSupplier(ctx, updated)
	if err != nil {
		return domain.Supplier{}, err
	}
	s.logAudit(ctx, "supplier_update", "supplier", saved.ID, saved.Name)
	return *saved, nil
}

// DeleteSupplier refuses when goods receipts reference the supplier.
func (s *Service) DeleteSupplier(ctx context.Context, id string) error {
	if _, err := s.repo.GetSupplierByID(ctx, id); err != nil {
		return err
	}
	referenced, err := s.repo.SupplierHasReceipts(ctx, id)
	if err != nil {
		return err
	}
	if referenced {
		return store.ErrInUse
	}
	if err := s.repo.DeleteSupplier(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "supplier_delete", "supplier", id, "")
	return nil
}

// --- employees and roles ---

func (s *Service) ListEmployees(ctx context.Context) ([]domain.Employee, error) {
	return s.repo.ListEmployees(ctx)
}

func (s *Service) CreateEmployee(ctx context.Context, req domain.EmployeeRequest, pinHash string) (domain.Employee, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.RoleID == "" {
		return domain.Employee{}, fmt.Errorf("%w: name and role are required", store.ErrInvalidSale)
	}
	if pinHash == "" {
		return domain.Employee{}, fmt.Errorf("%w: pin is required", store.ErrInvalidSale)
	}
	if _, err := s.repo.GetRoleByID(ctx, req.RoleID); err != nil {
		return domain.Employee{}, err
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	employee := domain.Employee{
		ID:        xid.New("emp"),
		Name:      req.Name,
		Phone:     strings.TrimSpace(req.Phone),
		RoleID:    req.RoleID,
		PINHash:   pinHash,
		Active:    active,
		CreatedAt: time.Now().UTC(),
	}
	created, err := s.repo.CreateEmployee(ctx, employee)
	if err != nil {
		return domain.Employee{}, err
	}
	s.logAudit(ctx, "employee_create", "employee", created.ID, created.Name)
	return *created, nil
}

// UpdateEmployee changes profile fields; pinHash is applied only when
// non-empty so an update without a new PIN keeps the old one.
func (s *Service) UpdateEmployee(ctx context.Context, id string, req domain.EmployeeRequest, pinHash string) (domain.Employee, error) {
	existing, err := s.repo.GetEmployeeByID(ctx, id)
	if err != nil {
		return domain.Employee{}, err
	}
	updated := *existing
	if name := strings.TrimSpace(req.Name); name != "" {
		updated.Name = name
	}
	if phone := strings.TrimSpace(req.Phone); phone != "" {
		updated.Phone = phone
	}
	if req.RoleID != "" {
		if _, err := s.repo.GetRoleByID(ctx, req.RoleID); err != nil {
			return domain.Employee{}, err
		}
		updated.RoleID = req.RoleID
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}
	if pinHash != "" {
		updated.PINHash = pinHash
	}
	saved, err := s.repo.UpdateEmployee(ctx, updated)
	if err != nil {
		return domain.Employee{}, err
	}
	s.logAudit(ctx, "employee_update", "employee", saved.ID, saved.Name)
	return *saved, nil
}

func (s *Service) ListRoles(ctx context.Context) ([]domain.Role, error) {
	return s.repo.ListRoles(ctx)
}

func (s *Service) CreateRole(ctx context.Context, req domain.RoleRequest) (domain.Role, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Role{}, fmt.Errorf("%w: role name required", store.ErrInvalidSale)
	}
	for _, p := range req.Permissions {
		if !domain.IsValidPermission(p) {
			return domain.Role{}, fmt.Errorf("%w: unknown permission %q", store.ErrInvalidSale, p)
		}
	}
	role := domain.Role{ID: xid.New("role"), Name: req.Name, Permissions: req.Permissions}
	created, err := s.repo.CreateRole(ctx, role)
	if err != nil {
		return domain.Role{}, err
	}
	s.logAudit(ctx, "role_create", "role", created.ID, created.Name)
	return *created, nil
}

func (s *Service) UpdateRole(ctx context.Context, id string, req domain.RoleRequest) (domain.Role, error) {
	existing, err := s.repo.GetRoleByID(ctx, id)
	if err != nil {
		return domain.Role{}, err
	}
	updated := *existing
	if name := strings.TrimSpace(req.Name); name != "" {
		updated.Name = name
	}
	if req.Permissions != nil {
		for _, p := range req.Permissions {
			if !domain.IsValidPermission(p) {
				return domain.Role{}, fmt.Errorf("%w: unknown permission %q", store.ErrInvalidSale, p)
			}
		}
		updated.Permissions = req.Permissions
	}
	saved, err := s.repo.UpdateRole(ctx, updated)
	if err != nil {
		return domain.Role{}, err
	}
	s.logAudit(ctx, "role_update", "role", saved.ID, saved.Name)
	return *saved, nil
}

func (s *Service) DeleteRole(ctx context.Context, id string) error {
	if _, err := s.repo.GetRoleByID(ctx, id); err != nil {
		return err
	}
	inUse, err := s.repo.RoleInUse(ctx, id)
	if err != nil {
		return err
	}
	if inUse {
		return store.ErrInUse
	}
	if err := s.repo.DeleteRole(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "role_delete", "role", id, "")
	return nil
}

// RolePermissions resolves a role's capability set, used at login.
func (s *Service) RolePermissions(ctx context.Context, roleID string) ([]domain.Permission, error) {
	role, err := s.repo.GetRoleByID(ctx, roleID)
	if err != nil {
		return nil, err
	}
	return role.Permissions, nil
}

func (s *Service) GetEmployee(ctx context.Context, id string) (domain.Employee, error) {
	e, err := s.repo.GetEmployeeByID(ctx, id)
	if err != nil {
		return domain.Employee{}, err
	}
	return *e, nil
}

func (s *Service) FindEmployeeByPIN(ctx context.Context, match func(pinHash string) bool) (domain.Employee, error) {
	e, err := s.repo.FindEmployeeByPIN(ctx, match)
	if err != nil {
		return domain.Employee{}, err
	}
	return *e, nil
}

// --- expenses ---

func (s *Service) ListExpenses(ctx context.Context, filter domain.ExpenseFilter) ([]domain.Expense, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 200
	}
	return s.repo.ListExpenses(ctx, filter)
}

func (s *Service) CreateExpense(ctx context.Context, req domain.ExpenseRequest) (domain.Expense, error) {
	req.Category = strings.TrimSpace(req.Category)
	if req.Category == "" {
		return domain.Expense{}, fmt.Errorf("%w: category required", store.ErrInvalidSale)
	}
	if req.AmountCents <= 0 {
		return domain.Expense{}, fmt.Errorf("%w: amount must be positive", store.ErrInvalidSale)
	}
	date := time.Now().UTC()
	if req.Date != "" {
		parsed, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			return domain.Expense{}, fmt.Errorf("%w: bad date %q", store.ErrInvalidSale, req.Date)
		}
		date = parsed
	}
	actor, _ := ActorFromContext(ctx)
	expense := domain.Expense{
		ID:          xid.New("exp"),
		Category:    req.Category,
		AmountCents: req.AmountCents,
		Date:        date,
		EmployeeID:  actor.EmployeeID,
		Comment:     strings.TrimSpace(req.Comment),
	}
	created, err := s.repo.CreateExpense(ctx, expense)
	if err != nil {
		return domain.Expense{}, err
	}
	s.logAudit(ctx, "expense_create", "expense", created.ID, fmt.Sprintf("category=%s,amount=%d", created.Category, created.AmountCents))
	return *created, nil
}

func (s *Service) DeleteExpense(ctx context.Context, id string) error {
	if err := s.repo.DeleteExpense(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "expense_delete", "expense", id, "")
	return nil
}

// --- settings ---

func (s *Service) GetSettings(ctx context.Context) (domain.StoreSettings, error) {
	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return domain.StoreSettings{}, err
	}
	return *settings, nil
}

func (s *Service) UpdateSettings(ctx context.Context, req domain.SettingsUpdateRequest) (domain.StoreSettings, error) {
	existing, err := s.repo.GetSettings(ctx)
	if err != nil {
		return domain.StoreSettings{}, err
	}
	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.StoreSettings{}, fmt.Errorf("%w: empty store name", store.ErrInvalidSale)
		}
		updated.Name = name
	}
	if req.Address != nil {
		updated.Address = strings.TrimSpace(*req.Address)
	}
	if req.Phone != nil {
		updated.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Currency != nil {
		cur := strings.ToUpper(strings.TrimSpace(*req.Currency))
		if cur == "" {
			return domain.StoreSettings{}, fmt.Errorf("%w: empty currency", store.ErrInvalidSale)
		}
		updated.Currency = cur
	}
	if req.ReceiptHeader != nil {
		updated.ReceiptHeader = *req.ReceiptHeader
	}
	if req.ReceiptFooter != nil {
		updated.ReceiptFooter = *req.ReceiptFooter
	}
	if req.ReceiptShowStoreName != nil {
		updated.ReceiptShowStoreName = *req.ReceiptShowStoreName
	}
	if req.ReceiptShowAddress != nil {
		updated.ReceiptShowAddress = *req.ReceiptShowAddress
	}
	if req.ReceiptShowPhone != nil {
		updated.ReceiptShowPhone = *req.ReceiptShowPhone
	}
	if req.ReceiptShowCheckID != nil {
		updated.ReceiptShowCheckID = *req.ReceiptShowCheckID
	}
	if req.ReceiptShowDate != nil {
		updated.ReceiptShowDate = *req.ReceiptShowDate
	}
	if req.ReceiptShowSeller != nil {
		updated.ReceiptShowSeller = *req.ReceiptShowSeller
	}
	if req.ReceiptShowCustomer != nil {
		updated.ReceiptShowCustomer = *req.ReceiptShowCustomer
	}
	saved, err := s.repo.UpdateSettings(ctx, updated)
	if err != nil {
		return domain.StoreSettings{}, err
	}
	s.logAudit(ctx, "settings_update", "settings", saved.ID, "")
	return *saved, nil
}

func (s *Service) AddUnit(ctx context.Context, req domain.UnitRequest) (domain.Unit, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Unit{}, fmt.Errorf("%w: unit name required", store.ErrInvalidSale)
	}
	unit := domain.Unit{ID: xid.New("unit"), Name: name}
	created, err := s.repo.AddUnit(ctx, unit)
	if err != nil {
		return domain.Unit{}, err
	}
	s.logAudit(ctx, "unit_add", "unit", created.ID, created.Name)
	return *created, nil
}

func (s *Service) RemoveUnit(ctx context.Context, unitID string) error {
	if err := s.repo.RemoveUnit(ctx, unitID); err != nil {
		return err
	}
	s.logAudit(ctx, "unit_remove", "unit", unitID, "")
	return nil
}

// resolveWarehouse defaults to the first active warehouse when the caller
// does not name one.
func (s *Service) resolveWarehouse(ctx context.Context, warehouseID string) (string, error) {
	if warehouseID != "" {
		if _, err := s.repo.GetWarehouseByID(ctx, warehouseID); err != nil {
			return "", err
		}
		return warehouseID, nil
	}
	warehouses, err := s.repo.ListWarehouses(ctx)
	if err != nil {
		return "", err
	}
	for _, w := range warehouses {
		if w.Active {
			return w.ID, nil
		}
	}
	return "", fmt.Errorf("%w: no active warehouse", store.ErrNotFound)
}
