package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"savdopos/backend/internal/checkout"
	"savdopos/backend/internal/domain"
	"savdopos/backend/internal/service"
	"savdopos/backend/internal/store"
)

type API struct {
	service       *service.Service
	auth          *AuthManager
	log           *zap.SugaredLogger
	allowedOrigin string
	loginLimiter  *attemptLimiter
}

func New(svc *service.Service, auth *AuthManager, logger *zap.SugaredLogger, allowedOrigin string) *API {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &API{
		service:       svc,
		auth:          auth,
		log:           logger,
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
	}
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	kept = append(kept, now)
	l.entries[key] = kept
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.StripSlashes)
	r.Use(a.withSecurity)
	r.Use(a.withLogging)

	r.Get("/healthz", a.handleHealth)
	r.Post("/api/v1/auth/login", a.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(a.withAuth)

		r.With(a.requirePermission(domain.PermUseSalesTerminal)).Route("/api/v1/terminals/{terminalID}/cart", func(r chi.Router) {
			r.Get("/", a.handleCartGet)
			r.Delete("/", a.handleCartClear)
			r.Post("/items", a.handleCartAddItem)
			r.Patch("/items/{productID}", a.handleCartUpdateItem)
			r.Delete("/items/{productID}", a.handleCartRemoveItem)
			r.Put("/discount", a.handleCartSetDiscount)
		})

		r.With(a.requirePermission(domain.PermUseSalesTerminal)).Route("/api/v1/terminals/{terminalID}/checkout", func(r chi.Router) {
			r.Post("/", a.handleCheckoutOpen)
			r.Get("/", a.handleCheckoutGet)
			r.Delete("/", a.handleCheckoutDiscard)
			r.Put("/pending", a.handleCheckoutSetPending)
			r.Post("/parts", a.handleCheckoutCommitPart)
			r.Delete("/parts/{index}", a.handleCheckoutRemovePart)
			r.Post("/finalize", a.handleCheckoutFinalize)
		})

		r.With(a.requirePermission(domain.PermUseSalesTerminal)).Post("/api/v1/sales", a.handleSaleCreate)
		r.With(a.requirePermission(domain.PermViewSalesHistory)).Get("/api/v1/sales", a.handleSalesList)
		r.With(a.requirePermission(domain.PermViewSalesHistory)).Get("/api/v1/sales/{saleID}", a.handleSaleGet)
		r.With(a.requirePermission(domain.PermUseSalesTerminal)).Get("/api/v1/sales/{saleID}/receipt", a.handleReceipt)
		r.With(a.requirePermission(domain.PermUseSalesTerminal)).Post("/api/v1/hardware/cash-drawer/open", a.handleCashDrawerOpen)

		r.Route("/api/v1/products", func(r chi.Router) {
			r.With(a.requirePermission(domain.PermViewDashboard)).Get("/", a.handleProductsList)
			r.With(a.requirePermission(domain.PermViewDashboard)).Get("/barcode/{barcode}", a.handleProductByBarcode)
			r.With(a.requirePermission(domain.PermManageProducts)).Post("/", a.handleProductCreate)
			r.With(a.requirePermission(domain.PermManageProducts)).Patch("/{productID}", a.handleProductUpdate)
			r.With(a.requirePermission(domain.PermManageProducts)).Delete("/{productID}", a.handleProductDelete)
		})

		r.Route("/api/v1/customers", func(r chi.Router) {
			r.With(a.requirePermission(domain.PermManageCustomers)).Get("/", a.handleCustomersList)
			r.With(a.requirePermission(domain.PermManageCustomers)).Post("/", a.handleCustomerCreate)
			r.With(a.requirePermission(domain.PermManageCustomers)).Patch("/{customerID}", a.handleCustomerUpdate)
			r.With(a.requirePermission(domain.PermManageCustomers)).Get("/{customerID}/debt", a.handleDebtLedger)
			r.With(a.requirePermission(domain.PermManageCustomers)).Post("/{customerID}/debt/payments", a.handleDebtPayment)
		})

		r.Route("/api/v1/suppliers", func(r chi.Router) {
			r.With(a.requirePermission(domain.PermManageSuppliers)).Get("/", a.handleSuppliersList)
			r.With(a.requirePermission(domain.PermManageSuppliers)).Post("/", a.handleSupplierCreate)
			r.With(a.requirePermission(domain.PermManageSuppliers)).Put("/{supplierID}", a.handleSupplierUpdate)
			r.With(a.requirePermission(domain.PermManageSuppliers)).Delete("/{supplierID}", a.handleSupplierDelete)
		})

		r.Route("/api/v1/warehouses", func(r chi.Router) {
			r.With(a.requirePermission(domain.PermManageWarehouse)).Get("/", a.handleWarehousesList)
			r.With(a.requirePermission(domain.PermManageWarehouse)).Post("/", a.handleWarehouseCreate)
			r.With(a.requirePermission(domain.PermManageWarehouse)).Patch("/{warehouseID}", a.handleWarehouseUpdate)
			r.With(a.requirePermission(domain.PermManageWarehouse)).Get("/{warehouseID}/stock", a.handleWarehouseStock)
		})

		r.With(a.requirePermission(domain.PermManageWarehouse)).Post("/api/v1/stock/adjust", a.handleStockAdjust)
		r.With(a.requirePermission(domain.PermManageWarehouse)).Get("/api/v1/stock/movements", a.handleStockMovements)

		r.Route("/api/v1/goods-receipts", func(r chi.Router) {
			r.With(a.requirePermission(domain.PermManageWarehouse)).Get("/", a.handleGoodsReceiptsList)
			r.With(a.requirePermission(domain.PermManageWarehouse)).Post("/", a.handleGoodsReceiptCreate)
			r.With(a.requirePermission(domain.PermManageWarehouse)).Get("/{receiptID}", a.handleGoodsReceiptGet)
		})

		r.Route("/api/v1/expenses", func(r chi.Router) {
			r.With(a.requirePermission(domain.PermManageExpenses)).Get("/", a.handleExpensesList)
			r.With(a.requirePermission(domain.PermManageExpenses)).Post("/", a.handleExpenseCreate)
			r.With(a.requirePermission(domain.PermManageExpenses)).Delete("/{expenseID}", a.handleExpenseDelete)
		})

		r.With(a.requirePermission(domain.PermViewReports)).Get("/api/v1/reports/sales", a.handleSalesReport)
		r.With(a.requirePermission(domain.PermViewReports)).Get("/api/v1/reports/low-stock", a.handleLowStock)
		r.With(a.requirePermission(domain.PermViewReports)).Get("/api/v1/audit-logs", a.handleAuditLogs)

		r.Route("/api/v1/employees", func(r chi.Router) {
			r.With(a.requirePermission(domain.PermManageEmployees)).Get("/", a.handleEmployeesList)
			r.With(a.requirePermission(domain.PermManageEmployees)).Post("/", a.handleEmployeeCreate)
			r.With(a.requirePermission(domain.PermManageEmployees)).Patch("/{employeeID}", a.handleEmployeeUpdate)
		})

		r.Route("/api/v1/roles", func(r chi.Router) {
			r.With(a.requirePermission(domain.PermManageEmployees)).Get("/", a.handleRolesList)
			r.With(a.requirePermission(domain.PermManageEmployees)).Post("/", a.handleRoleCreate)
			r.With(a.requirePermission(domain.PermManageEmployees)).Put("/{roleID}", a.handleRoleUpdate)
			r.With(a.requirePermission(domain.PermManageEmployees)).Delete("/{roleID}", a.handleRoleDelete)
		})

		r.Route("/api/v1/settings", func(r chi.Router) {
			r.With(a.requirePermission(domain.PermManageSettings)).Get("/", a.handleSettingsGet)
			r.With(a.requirePermission(domain.PermManageSettings)).Patch("/", a.handleSettingsUpdate)
			r.With(a.requirePermission(domain.PermManageSettings)).Post("/units", a.handleUnitAdd)
			r.With(a.requirePermission(domain.PermManageSettings)).Delete("/units/{unitID}", a.handleUnitRemove)
		})
	})

	return r
}

// --- middleware ---

func (a *API) withSecurity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startedAt := time.Now()
		next.ServeHTTP(w, r)
		a.log.Infow("request", "method", r.Method, "path", r.URL.Path, "took", time.Since(startedAt))
	})
}

func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}
		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(service.WithActor(r.Context(), actor)))
	})
}

func (a *API) requirePermission(p domain.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := service.ActorFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, errors.New("no actor"))
				return
			}
			if !a.auth.HasPermission(r.Context(), actor, p) {
				writeError(w, http.StatusForbidden, fmt.Errorf("missing permission %s", p))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// --- auth ---

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}
	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := a.auth.Login(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, ErrInvalidCredentials)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

// --- terminal cart ---

type cartItemRequest struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type cartItemUpdateRequest struct {
	Qty            *int   `json:"qty,omitempty"`
	UnitPriceCents *int64 `json:"unit_price_cents,omitempty"`
}

type cartDiscountRequest struct {
	DiscountCents int64 `json:"discount_cents"`
}

func (a *API) handleCartGet(w http.ResponseWriter, r *http.Request) {
	view, err := a.service.GetCart(r.Context(), chi.URLParam(r, "terminalID"))
	if err != nil {
		writeError(w, checkoutStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleCartAddItem(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	view, err := a.service.AddCartItem(r.Context(), chi.URLParam(r, "terminalID"), req.ProductID, req.Qty)
	if err != nil {
		writeError(w, checkoutStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleCartUpdateItem(w http.ResponseWriter, r *http.Request) {
	var req cartItemUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	view, err := a.service.UpdateCartItem(r.Context(), chi.URLParam(r, "terminalID"), chi.URLParam(r, "productID"), req.Qty, req.UnitPriceCents)
	if err != nil {
		writeError(w, checkoutStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleCartRemoveItem(w http.ResponseWriter, r *http.Request) {
	view, err := a.service.RemoveCartItem(r.Context(), chi.URLParam(r, "terminalID"), chi.URLParam(r, "productID"))
	if err != nil {
		writeError(w, checkoutStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleCartSetDiscount(w http.ResponseWriter, r *http.Request) {
	var req cartDiscountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	view, err := a.service.SetCartDiscount(r.Context(), chi.URLParam(r, "terminalID"), req.DiscountCents)
	if err != nil {
		writeError(w, checkoutStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleCartClear(w http.ResponseWriter, r *http.Request) {
	a.service.ClearCart(r.Context(), chi.URLParam(r, "terminalID"))
	w.WriteHeader(http.StatusNoContent)
}

// --- checkout ---

type checkoutOpenRequest struct {
	TotalCents int64  `json:"total_cents"`
	CustomerID string `json:"customer_id,omitempty"`
}

func (a *API) handleCheckoutOpen(w http.ResponseWriter, r *http.Request) {
	var req checkoutOpenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	view, err := a.service.OpenCheckout(r.Context(), chi.URLParam(r, "terminalID"), req.TotalCents, req.CustomerID)
	if err != nil {
		writeError(w, checkoutStatus(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (a *API) handleCheckoutGet(w http.ResponseWriter, r *http.Request) {
	view, err := a.service.GetCheckout(r.Context(), chi.URLParam(r, "terminalID"))
	if err != nil {
		writeError(w, checkoutStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleCheckoutDiscard(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DiscardCheckout(r.Context(), chi.URLParam(r, "terminalID")); err != nil {
		writeError(w, checkoutStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type pendingPartRequest struct {
	Kind        domain.PaymentKind `json:"kind"`
	AmountCents int64              `json:"amount_cents"`
}

func (a *API) handleCheckoutSetPending(w http.ResponseWriter, r *http.Request) {
	var req pendingPartRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	view, err := a.service.SetCheckoutPending(r.Context(), chi.URLParam(r, "terminalID"), req.Kind, req.AmountCents)
	if err != nil {
		writeError(w, checkoutStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleCheckoutCommitPart(w http.ResponseWriter, r *http.Request) {
	view, err := a.service.CommitCheckoutPart(r.Context(), chi.URLParam(r, "terminalID"))
	if err != nil {
		writeError(w, checkoutStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleCheckoutRemovePart(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("bad part index"))
		return
	}
	view, err := a.service.RemoveCheckoutPart(r.Context(), chi.URLParam(r, "terminalID"), index)
	if err != nil {
		writeError(w, checkoutStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleCheckoutFinalize(w http.ResponseWriter, r *http.Request) {
	var req domain.SaleCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sale, err := a.service.FinalizeCheckout(r.Context(), chi.URLParam(r, "terminalID"), req)
	if err != nil {
		writeError(w, checkoutStatus(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, sale)
}

func checkoutStatus(err error) int {
	switch {
	case errors.Is(err, checkout.ErrSessionNotFound),
		errors.Is(err, checkout.ErrUnknownCartItem),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, checkout.ErrSessionExists),
		errors.Is(err, checkout.ErrSessionFinalized),
		errors.Is(err, store.ErrInsufficientStock):
		return http.StatusConflict
	case errors.Is(err, checkout.ErrAmountExceedsDue),
		errors.Is(err, checkout.ErrNonPositiveAmount),
		errors.Is(err, checkout.ErrDebtNeedsCustomer),
		errors.Is(err, checkout.ErrInvalidKind),
		errors.Is(err, checkout.ErrPartIndex),
		errors.Is(err, checkout.ErrUnpaidRemainder),
		errors.Is(err, checkout.ErrNoPayments),
		errors.Is(err, checkout.ErrNoPendingPart),
		errors.Is(err, checkout.ErrEmptyCart),
		errors.Is(err, checkout.ErrBadQty),
		errors.Is(err, checkout.ErrBadPrice),
		errors.Is(err, checkout.ErrBadDiscount),
		errors.Is(err, store.ErrInvalidSale):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// --- sales ---

func (a *API) handleSaleCreate(w http.ResponseWriter, r *http.Request) {
	var req domain.SaleCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sale, err := a.service.CreateSale(r.Context(), req, 0)
	if err != nil {
		writeError(w, storeStatus(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, sale)
}

func (a *API) handleSalesList(w http.ResponseWriter, r *http.Request) {
	filter := domain.SaleListFilter{
		SellerID:   r.URL.Query().Get("seller_id"),
		CustomerID: r.URL.Query().Get("customer_id"),
		Limit:      parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500),
	}
	filter.From, filter.To = parseDateRange(r)
	sales, err := a.service.ListSales(r.Context(), filter)
	if err != nil {
		writeError(w, storeStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, sales)
}

func (a *API) handleSaleGet(w http.ResponseWriter, r *http.Request) {
	sale, err := a.service.GetSale(r.Context(), chi.URLParam(r, "saleID"))
	if err != nil {
		writeError(w, storeStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, sale)
}

func (a *API) handleReceipt(w http.ResponseWriter, r *http.Request) {
	receipt, err := a.service.BuildReceipt(r.Context(), chi.URLParam(r, "saleID"))
	if err != nil {
		writeError(w, storeStatus(err), err)
		return
	}
	if r.URL.Query().Get("format") == "html" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := receiptHTMLTmpl.Execute(w, receipt); err != nil {
			a.log.Errorw("receipt template render failed", "err", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (a *API) handleCashDrawerOpen(w http.ResponseWriter, r *http.Request) {
	terminalID, command := a.service.OpenCashDrawer(r.Context(), r.URL.Query().Get("terminal_id"))
	writeJSON(w, http.StatusOK, map[string]string{
		"terminal_id":    terminalID,
		"command_base64": command,
		"note":           "Send this ESC/POS pulse command via local printer bridge to open cash drawer.",
	})
}

// --- catalog ---

func (a *API) handleProductsList(w http.ResponseWriter, r *http.Request) {
	includeArchived := r.URL.Query().Get("include_archived") == "true"
	products, err := a.service.ListProducts(r.Context(), includeArchived)
	if err != nil {
		writeError(w, storeStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (a *API) handleProductByBarcode(w http.ResponseWriter, r *http.Request) {
	product, err := a.service.FindProductByBarcode(r.Context(), chi.URLParam(r, "barcode"))
	if err != nil {
		writeError(w, storeStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (a *API) handleProductCreate(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	product, err := a.service.CreateProduct(r.Context(), req)
	if err != nil {
		writeError(w, storeStatus(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, product)
}

func (a *API) handleProductUpdate(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	product, err := a.service.UpdateProduct(r.Context(), chi.URLParam(r, "productID"), req)
	if err != nil {
		writeError(w, storeStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (a *API) handleProductDelete(w http.ResponseWriter, r *http.Request) {
	archived, err := a.service.DeleteProduct(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		writeError(w, storeStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"archived": archived})
}

// --- customers ---

func (a *API) handleCustomersList(w http.ResponseWriter, r *http.Request) {
	customers, err := a.service.ListCustomers(r.Context())
	if err != nil {
		writeError(w, storeStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, customers)
}

func (a *API) handleCustomerCreate(w http.ResponseWriter, r *http.Request) {
	var req domain.CustomerCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	customer, err := a.service.CreateCustomer(r.Context(), req)
	if err != nil {
		writeError(w, storeStatus(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, customer)
}

func (a *API) handleCustomerUpdate(w http.ResponseWriter, r *http.Request) {
	var req domain.CustomerUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	customer, err := a.service.UpdateCustomer(r.Context(), chi.URLParam(r, "customerID"), req)
	if err != nil {
		writeError(w, storeStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, customer)
}

func (a *API) handleDebtLedger(w http.ResponseWriter, r *http.Request) {
	ledger, err := a.service.DebtLedger(r.Context(), chi.URLParam(r, "customerID"))
	if err != nil {
		writeError(w, storeStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, ledger)
}

func (a *API) handleDebtPayment(w http.ResponseWriter, r *http.Request) {
	var req domain.DebtPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	customer, err := a.service.PayDebt(r.Context(), chi.URLParam(r, "customerID"), req)
	if err != nil {
		writeError(w, storeStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, customer)
}

// --- suppliers ---

func (a *API) handleSuppliersList(w http.ResponseWriter, r *http.Request) {
	suppliers, err := a.service.ListSuppliers(r.Context())
	if err != nil {
		writeError(w, storeStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, suppliers)
}

func (a *API) handleSupplierCreate(w http.ResponseWriter, r *http.Request) {
	var req domain.SupplierCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	supplier, err := a.service.CreateSupplier(r.Context(), req)
	if err != nil {
		writeError(w, storeStatus(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, supplier)
}

func (a *API) handleSupplierUpdate(w http.ResponseWriter, r *http.Request) {
	var req domain.SupplierCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	supplier, err := a.service.UpdateSupplier(r.Context(), chi.URLParam(r, "supplierID"), req)
	if err != nil {
		writeError(w, storeStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, supplier)
}

func (a *API) handleSupplierDelete(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteSupplier(r.Context(), chi.URLParam(r, "supplierID")); err != nil {
		writeError(w, storeStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- warehouses and stock ---

func (a *API) handleWarehousesList(w http.ResponseWriter, r *http.Request) {
	warehouses, err := a.service.ListWarehouses(r.Context())
	if err != nil {
		writeError(w, storeStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, warehouses)
}

func (a *API) handleWarehouseCreate(w http.ResponseWriter, r *http.Request) {
	var req domain.WarehouseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	warehouse, err := a.service.CreateWarehouse(r.Context(), req)
	if err != nil {
		writeError(w, storeStatus(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, warehouse)
}

func (a *API) handleWarehouseUpdate(w http.ResponseWriter, r *http.Request) {
	var req domain.WarehouseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	warehouse, err := a.service.UpdateWarehouse(r.Context(), chi.URLParam(r, "warehouseID"), req)
	if err != nil {
		writeError(w, storeStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, warehouse)
}

type warehouseStockRow struct {
	domain.WarehouseStock
	AvailableQty int `json:"available_qty"`
}

func (a *API) handleWarehouseStock(w http.ResponseWriter, r *http.Request) {
	rows, err := a.service.ListWarehouseStock(r.Context(), chi.URLParam(r, "warehouseID"))
	if err != nil {
		writeError(w, storeStatus(err), err)
		return
	}
	out := make([]warehouseStockRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, warehouseStockRow{WarehouseStock: row, AvailableQty: row.AvailableQty()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleStockAdjust(w http.ResponseWriter, r *http.Request) {
	var req domain.StockAdjustmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := a.service.AdjustStock(r.Context(), req); err != nil {
		writeError(w, storeStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleStockMovements(w http.ResponseWriter, r *http.Request) {
	filter := domain.StockMovementFilter{
		ProductID:   r.URL.Query().Get("product_id"),
		WarehouseID: r.URL.Query().Get("warehouse_id"),
		Type:        domain.MovementType(r.URL.Query().Get("type")),
		Limit:       parsePositiveLimit(r.URL.Query().Get("limit"), 200, 500),
	}
	filter.From, filter.To = parseDateRange(r)
	movements, err := a.service.ListStockMovements(r.Context(), filter)
	if err != nil {
		writeError(w, storeStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, movements)
}

// --- goods receipts ---

func (a *API) handleGoodsReceiptsList(w http.ResponseWriter, r *http.Request) {
	receipts, err := a.service.ListGoodsReceipts(r.Context(), r.URL.Query().Get("supplier_id"), parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500))
	if err != nil {
		writeError(w, storeStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, receipts)
}

func (a *API) handleGoodsReceiptCreate(w http.ResponseWriter, r *http.Request) {
	var req domain.GoodsReceiptRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	receipt, err := a.service.CreateGoodsReceipt(r.Context(), req)
	if err != nil {
		writeError(w, storeStatus(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

func (a *API) handleGoodsReceiptGet(w http.ResponseWriter, r *http.Request) {
	receipt, err := a.service.GetGoodsReceipt(r.Context(), chi.URLParam(r, "receiptID"))
	if err != nil {
		writeError(w, storeStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// --- expenses ---

func (a *API) handleExpensesList(w http.ResponseWriter, r *http.Request) {
	filter := domain.ExpenseFilter{
		Category: r.URL.Query().Get("category"),
		Limit:    parsePositiveLimit(r.URL.Query().Get("limit"), 200, 500),
	}
	filter.From, filter.To = parseDateRange(r)
	expenses, err := a.service.ListExpenses(r.Context(), filter)
	if err != nil {
		writeError(w, storeStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, expenses)
}

func (a *API) handleExpenseCreate(w http.ResponseWriter, r *http.Request) {
	var req domain.ExpenseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	expense, err := a.service.CreateExpense(r.Context(), req)
	if err != nil {
		writeError(w, storeStatus(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, expense)
}

func (a *API) handleExpenseDelete(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteExpense(r.Context(), chi.URLParam(r, "expenseID")); err != nil {
		writeError(w, storeStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- reports ---

func (a *API) handleSalesReport(w http.ResponseWriter, r *http.Request) {
	from, to := parseDateRange(r)
	report, err := a.service.SalesReport(r.Context(), from, to, r.URL.Query().Get("seller_id"))
	if err != nil {
		writeError(w, storeStatus(err), err)
		return
	}
	switch strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format"))) {
	case "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"sales-report-%s.csv\"", report.To))
		_, _ = w.Write([]byte(salesReportToCSV(report)))
	case "html":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := salesReportHTMLTmpl.Execute(w, report); err != nil {
			a.log.Errorw("report template render failed", "err", err)
		}
	default:
		writeJSON(w, http.StatusOK, report)
	}
}

func (a *API) handleLowStock(w http.ResponseWriter, r *http.Request) {
	rows, err := a.service.LowStock(r.Context())
	if err != nil {
		writeError(w, storeStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	from, to := parseDateRange(r)
	logs, err := a.service.ListAuditLogs(r.Context(), from, to, parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500))
	if err != nil {
		writeError(w, storeStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

// --- employees and roles ---

func (a *API) handleEmployeesList(w http.ResponseWriter, r *http.Request) {
	employees, err := a.service.ListEmployees(r.Context())
	if err != nil {
		writeError(w, storeStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, employees)
}

func (a *API) handleEmployeeCreate(w http.ResponseWriter, r *http.Request) {
	var req domain.EmployeeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	pinHash, err := hashPINField(req.PIN)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	employee, err := a.service.CreateEmployee(r.Context(), req, pinHash)
	if err != nil {
		writeError(w, storeStatus(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, employee)
}

func (a *API) handleEmployeeUpdate(w http.ResponseWriter, r *http.Request) {
	var req domain.EmployeeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var pinHash string
	if req.PIN != "" {
		var err error
		pinHash, err = hashPINField(req.PIN)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	employeeID := chi.URLParam(r, "employeeID")
	employee, err := a.service.UpdateEmployee(r.Context(), employeeID, req, pinHash)
	if err != nil {
		writeError(w, storeStatus(err), err)
		return
	}
	a.auth.InvalidatePermissions(r.Context(), employeeID)
	writeJSON(w, http.StatusOK, employee)
}

func hashPINField(pin string) (string, error) {
	pin = strings.TrimSpace(pin)
	if pin == "" {
		return "", nil
	}
	if len(pin) < 4 {
		return "", errors.New("pin must be at least 4 digits")
	}
	if err := validatePINStrength(pin); err != nil {
		return "", err
	}
	return HashPIN(pin)
}

func (a *API) handleRolesList(w http.ResponseWriter, r *http.Request) {
	roles, err := a.service.ListRoles(r.Context())
	if err != nil {
		writeError(w, storeStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, roles)
}

func (a *API) handleRoleCreate(w http.ResponseWriter, r *http.Request) {
	var req domain.RoleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	role, err := a.service.CreateRole(r.Context(), req)
	if err != nil {
		writeError(w, storeStatus(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, role)
}

func (a *API) handleRoleUpdate(w http.ResponseWriter, r *http.Request) {
	var req domain.RoleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	role, err := a.service.UpdateRole(r.Context(), chi.URLParam(r, "roleID"), req)
	if err != nil {
		writeError(w, storeStatus(err), err)
		return
	}
	// employees holding this role get their capability set re-resolved
	if employees, lerr := a.service.ListEmployees(r.Context()); lerr == nil {
		for _, e := range employees {
			if e.RoleID == role.ID {
				a.auth.InvalidatePermissions(r.Context(), e.ID)
			}
		}
	}
	writeJSON(w, http.StatusOK, role)
}

func (a *API) handleRoleDelete(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteRole(r.Context(), chi.URLParam(r, "roleID")); err != nil {
		writeError(w, storeStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- settings ---

func (a *API) handleSettingsGet(w http.ResponseWriter, r *http.Request) {
	settings, err := a.service.GetSettings(r.Context())
	if err != nil {
		writeError(w, storeStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (a *API) handleSettingsUpdate(w http.ResponseWriter, r *http.Request) {
	var req domain.SettingsUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	settings, err := a.service.UpdateSettings(r.Context(), req)
	if err != nil {
		writeError(w, storeStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (a *API) handleUnitAdd(w http.ResponseWriter, r *http.Request) {
	var req domain.UnitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	unit, err := a.service.AddUnit(r.Context(), req)
	if err != nil {
		writeError(w, storeStatus(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, unit)
}

func (a *API) handleUnitRemove(w http.ResponseWriter, r *http.Request) {
	if err := a.service.RemoveUnit(r.Context(), chi.URLParam(r, "unitID")); err != nil {
		writeError(w, storeStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- helpers ---

func storeStatus(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrConflict), errors.Is(err, store.ErrInUse), errors.Is(err, store.ErrInsufficientStock):
		return http.StatusConflict
	case errors.Is(err, store.ErrInvalidSale):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func parseDateRange(r *http.Request) (time.Time, time.Time) {
	var from, to time.Time
	if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
		if parsed, err := time.Parse("2006-01-02", raw); err == nil {
			from = parsed
		}
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("to")); raw != "" {
		if parsed, err := time.Parse("2006-01-02", raw); err == nil {
			// inclusive end of day
			to = parsed.Add(24*time.Hour - time.Nanosecond)
		}
	}
	return from, to
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	if trimmed := strings.TrimSpace(raw); trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 5xx bodies stay generic so internals never leak to clients
	msg := err.Error()
	if status >= 500 {
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func salesReportToCSV(report domain.SalesReport) string {
	lines := []string{
		"section,key,value",
		fmt.Sprintf("summary,from,%s", report.From),
		fmt.Sprintf("summary,to,%s", report.To),
		fmt.Sprintf("summary,sale_count,%d", report.SaleCount),
		fmt.Sprintf("summary,gross_sales_cents,%d", report.GrossSalesCents),
		fmt.Sprintf("summary,cost_of_goods_cents,%d", report.CostOfGoodsCents),
		fmt.Sprintf("summary,profit_cents,%d", report.ProfitCents),
		fmt.Sprintf("summary,expenses_cents,%d", report.ExpensesCents),
		fmt.Sprintf("summary,average_check_cents,%d", report.AverageCheckCents),
		fmt.Sprintf("summary,total_debt_cents,%d", report.TotalDebtCents),
	}
	for _, payment := range report.ByPayment {
		lines = append(lines, fmt.Sprintf("payment,%s_sales,%d", payment.Kind, payment.Sales))
		lines = append(lines, fmt.Sprintf("payment,%s_total_cents,%d", payment.Kind, payment.TotalCents))
	}
	for _, day := range report.ByDay {
		lines = append(lines, fmt.Sprintf("day,%s_sales,%d", day.Date, day.Sales))
		lines = append(lines, fmt.Sprintf("day,%s_total_cents,%d", day.Date, day.TotalCents))
	}
	for _, product := range report.TopProducts {
		lines = append(lines, fmt.Sprintf("product,%s_qty,%d", product.Name, product.Qty))
		lines = append(lines, fmt.Sprintf("product,%s_total_cents,%d", product.Name, product.TotalCents))
	}
	return strings.Join(lines, "\n") + "\n"
}

// salesReportHTMLTmpl renders the printable report. User-controlled fields
// are auto-escaped by html/template.
var salesReportHTMLTmpl = template.Must(template.New("sales-report").Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Hisobot {{.From}} - {{.To}}</title>
  <style>
    body { font-family: sans-serif; margin: 24px; }
    table { border-collapse: collapse; margin-bottom: 16px; }
    th, td { border: 1px solid #999; padding: 4px 10px; text-align: left; }
    h1 { font-size: 18px; }
    h2 { font-size: 14px; }
  </style>
</head>
<body>
  <h1>Savdo hisoboti {{.From}} &mdash; {{.To}}</h1>
  <table>
    <tr><th>Cheklar soni</th><td>{{.SaleCount}}</td></tr>
    <tr><th>Yalpi savdo</th><td>{{.GrossSalesCents}}</td></tr>
    <tr><th>Tannarx</th><td>{{.CostOfGoodsCents}}</td></tr>
    <tr><th>Foyda</th><td>{{.ProfitCents}}</td></tr>
    <tr><th>Xarajatlar</th><td>{{.ExpensesCents}}</td></tr>
    <tr><th>O'rtacha chek</th><td>{{.AverageCheckCents}}</td></tr>
    <tr><th>Jami nasiya</th><td>{{.TotalDebtCents}}</td></tr>
  </table>
  <h2>To'lov turlari</h2>
  <table>
    <tr><th>Turi</th><th>Cheklar</th><th>Summa</th></tr>
    {{range .ByPayment}}<tr><td>{{.Kind}}</td><td>{{.Sales}}</td><td>{{.TotalCents}}</td></tr>{{end}}
  </table>
  <h2>Kunlik</h2>
  <table>
    <tr><th>Sana</th><th>Cheklar</th><th>Summa</th></tr>
    {{range .ByDay}}<tr><td>{{.Date}}</td><td>{{.Sales}}</td><td>{{.TotalCents}}</td></tr>{{end}}
  </table>
  <h2>Eng ko'p sotilganlar</h2>
  <table>
    <tr><th>Mahsulot</th><th>Soni</th><th>Summa</th></tr>
    {{range .TopProducts}}<tr><td>{{.Name}}</td><td>{{.Qty}}</td><td>{{.TotalCents}}</td></tr>{{end}}
  </table>
</body>
</html>`))

// receiptHTMLTmpl wraps the plain-text receipt in a printable page sized for
// an 80mm roll.
var receiptHTMLTmpl = template.Must(template.New("receipt").Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Chek {{.SaleID}}</title>
  <style>
    body { margin: 0; }
    pre { font-family: monospace; font-size: 12px; width: 72mm; margin: 8px auto; white-space: pre-wrap; }
    @media print { pre { margin: 0; } }
  </style>
</head>
<body onload="window.print()">
  <pre>{{.PreviewText}}</pre>
</body>
</html>`))
