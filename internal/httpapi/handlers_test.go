package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"savdopos/backend/internal/checkout"
	"savdopos/backend/internal/domain"
	"savdopos/backend/internal/service"
	"savdopos/backend/internal/store/memory"
)

// newTestAPI builds a full API over an in-memory store with a real
// AuthManager and Service, so handler tests exercise the complete request
// path including permission checks.
func newTestAPI(t *testing.T) (*API, *service.Service) {
	t.Helper()
	svc := service.New(memory.NewSeeded(), checkout.NewManager(), nil, "")
	auth := NewAuthManager(testSecret, time.Hour, svc, nil)
	return New(svc, auth, nil, "http://127.0.0.1:5173"), svc
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func decodeBody(t *testing.T, res *httptest.ResponseRecorder, dest any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(res.Body).Decode(dest))
}

func loginPIN(t *testing.T, handler http.Handler, pin string) domain.LoginResponse {
	t.Helper()
	res := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{PIN: pin})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	var resp domain.LoginResponse
	decodeBody(t, res, &resp)
	return resp
}

func seedProduct(t *testing.T, svc *service.Service, name string) domain.Product {
	t.Helper()
	products, err := svc.ListProducts(httptest.NewRequest(http.MethodGet, "/", nil).Context(), true)
	require.NoError(t, err)
	for _, p := range products {
		if p.Name == name {
			return p
		}
	}
	t.Fatalf("seed product %q not found", name)
	return domain.Product{}
}

func TestHealthz(t *testing.T) {
	api, _ := newTestAPI(t)
	res := doJSON(t, api.Handler(), http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, res.Code)

	var body map[string]any
	decodeBody(t, res, &body)
	assert.Equal(t, true, body["ok"])
}

func TestPermissionEnforcement(t *testing.T) {
	api, _ := newTestAPI(t)
	handler := api.Handler()
	cashier := loginPIN(t, handler, "5678")

	// cashier may manage customers but not employees
	res := doJSON(t, handler, http.MethodGet, "/api/v1/employees", cashier.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = doJSON(t, handler, http.MethodGet, "/api/v1/customers", cashier.AccessToken, nil)
	assert.Equal(t, http.StatusOK, res.Code)

	res = doJSON(t, handler, http.MethodGet, "/api/v1/customers", "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestCheckoutFlowOverHTTP(t *testing.T) {
	api, svc := newTestAPI(t)
	handler := api.Handler()
	owner := loginPIN(t, handler, "1234")
	non := seedProduct(t, svc, "Non")
	total := 4 * non.SalePriceCents

	res := doJSON(t, handler, http.MethodPost, "/api/v1/terminals/term-1/checkout", owner.AccessToken, checkoutOpenRequest{TotalCents: total})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())

	var view service.CheckoutView
	decodeBody(t, res, &view)
	assert.Equal(t, total, view.TotalCents)
	assert.Equal(t, total, view.RemainingCents)
	assert.Equal(t, domain.PaymentCash, view.Pending.Kind)

	// opening again while a session is live conflicts
	res = doJSON(t, handler, http.MethodPost, "/api/v1/terminals/term-1/checkout", owner.AccessToken, checkoutOpenRequest{TotalCents: total})
	assert.Equal(t, http.StatusConflict, res.Code)

	// card part for a quarter of the total
	res = doJSON(t, handler, http.MethodPut, "/api/v1/terminals/term-1/checkout/pending", owner.AccessToken, pendingPartRequest{Kind: domain.PaymentCard, AmountCents: total / 4})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	res = doJSON(t, handler, http.MethodPost, "/api/v1/terminals/term-1/checkout/parts", owner.AccessToken, nil)
	require.Equal(t, http.StatusOK, res.Code)
	decodeBody(t, res, &view)
	assert.Equal(t, total-total/4, view.RemainingCents)
	require.Len(t, view.Committed, 1)

	// staging a part larger than what is due clamps it to the remainder
	res = doJSON(t, handler, http.MethodPut, "/api/v1/terminals/term-1/checkout/pending", owner.AccessToken, pendingPartRequest{Kind: domain.PaymentCash, AmountCents: total})
	require.Equal(t, http.StatusOK, res.Code)
	decodeBody(t, res, &view)
	assert.Equal(t, domain.PaymentCash, view.Pending.Kind)
	assert.Equal(t, total-total/4, view.Pending.AmountCents)

	// commit the cash remainder preloaded in the pending part
	res = doJSON(t, handler, http.MethodPost, "/api/v1/terminals/term-1/checkout/parts", owner.AccessToken, nil)
	require.Equal(t, http.StatusOK, res.Code)
	decodeBody(t, res, &view)
	assert.Equal(t, int64(0), view.RemainingCents)

	res = doJSON(t, handler, http.MethodPost, "/api/v1/terminals/term-1/checkout/finalize", owner.AccessToken, domain.SaleCreateRequest{
		Items: []domain.SaleItem{
			{ProductID: non.ID, Qty: 4, UnitPriceCents: non.SalePriceCents},
		},
	})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())

	var sale domain.Sale
	decodeBody(t, res, &sale)
	require.Len(t, sale.Payments, 2)
	assert.Equal(t, domain.PaymentCard, sale.Payments[0].Kind)
	assert.Equal(t, domain.PaymentCash, sale.Payments[1].Kind)

	// session is gone after a successful finalize
	res = doJSON(t, handler, http.MethodGet, "/api/v1/terminals/term-1/checkout", owner.AccessToken, nil)
	assert.Equal(t, http.StatusNotFound, res.Code)

	// the recorded sale is readable with its receipt
	res = doJSON(t, handler, http.MethodGet, "/api/v1/sales/"+sale.ID, owner.AccessToken, nil)
	assert.Equal(t, http.StatusOK, res.Code)
	res = doJSON(t, handler, http.MethodGet, "/api/v1/sales/"+sale.ID+"/receipt", owner.AccessToken, nil)
	assert.Equal(t, http.StatusOK, res.Code)
	var receipt domain.ReceiptResponse
	decodeBody(t, res, &receipt)
	assert.Contains(t, receipt.PreviewText, "Jami")
	assert.NotEmpty(t, receipt.EscposBase64)

	res = doJSON(t, handler, http.MethodGet, "/api/v1/sales/"+sale.ID+"/receipt?format=html", owner.AccessToken, nil)
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, res.Body.String(), "<pre>")
}

func TestCartDrivenCheckoutOverHTTP(t *testing.T) {
	api, svc := newTestAPI(t)
	handler := api.Handler()
	owner := loginPIN(t, handler, "1234")
	non := seedProduct(t, svc, "Non")

	ctx := httptest.NewRequest(http.MethodGet, "/", nil).Context()
	warehouses, err := svc.ListWarehouses(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, warehouses)

	// ring up four, trim to three, knock one unit's worth off
	res := doJSON(t, handler, http.MethodPost, "/api/v1/terminals/kassa-1/cart/items", owner.AccessToken, cartItemRequest{ProductID: non.ID, Qty: 4})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	qty := 3
	res = doJSON(t, handler, http.MethodPatch, "/api/v1/terminals/kassa-1/cart/items/"+non.ID, owner.AccessToken, cartItemUpdateRequest{Qty: &qty})
	require.Equal(t, http.StatusOK, res.Code)
	res = doJSON(t, handler, http.MethodPut, "/api/v1/terminals/kassa-1/cart/discount", owner.AccessToken, cartDiscountRequest{DiscountCents: non.SalePriceCents})
	require.Equal(t, http.StatusOK, res.Code)

	var cart service.CartView
	decodeBody(t, res, &cart)
	total := 2 * non.SalePriceCents
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, 3, cart.Lines[0].Qty)
	assert.Equal(t, total, cart.TotalCents)

	// unknown line is a 404
	res = doJSON(t, handler, http.MethodDelete, "/api/v1/terminals/kassa-1/cart/items/prd-yoq", owner.AccessToken, nil)
	assert.Equal(t, http.StatusNotFound, res.Code)

	// zero total opens on the cart and holds the stock
	res = doJSON(t, handler, http.MethodPost, "/api/v1/terminals/kassa-1/checkout", owner.AccessToken, checkoutOpenRequest{})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	var view service.CheckoutView
	decodeBody(t, res, &view)
	assert.Equal(t, total, view.TotalCents)
	require.Len(t, view.Items, 1)

	res = doJSON(t, handler, http.MethodGet, "/api/v1/warehouses/"+warehouses[0].ID+"/stock", owner.AccessToken, nil)
	require.Equal(t, http.StatusOK, res.Code)
	var stockRows []warehouseStockRow
	decodeBody(t, res, &stockRows)
	for _, row := range stockRows {
		if row.ProductID == non.ID {
			assert.Equal(t, 50, row.Qty)
			assert.Equal(t, 3, row.ReservedQty)
			assert.Equal(t, 47, row.AvailableQty)
		}
	}

	// commit the preloaded cash part and finalize on the snapshot
	res = doJSON(t, handler, http.MethodPost, "/api/v1/terminals/kassa-1/checkout/parts", owner.AccessToken, nil)
	require.Equal(t, http.StatusOK, res.Code)
	res = doJSON(t, handler, http.MethodPost, "/api/v1/terminals/kassa-1/checkout/finalize", owner.AccessToken, domain.SaleCreateRequest{})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())

	var sale domain.Sale
	decodeBody(t, res, &sale)
	assert.Equal(t, total, sale.TotalCents)
	assert.Equal(t, non.SalePriceCents, sale.DiscountCents)
	require.Len(t, sale.Items, 1)
	assert.Equal(t, 3, sale.Items[0].Qty)

	// stock went down and the hold is gone, the cart is empty again
	res = doJSON(t, handler, http.MethodGet, "/api/v1/warehouses/"+warehouses[0].ID+"/stock", owner.AccessToken, nil)
	require.Equal(t, http.StatusOK, res.Code)
	stockRows = nil
	decodeBody(t, res, &stockRows)
	for _, row := range stockRows {
		if row.ProductID == non.ID {
			assert.Equal(t, 47, row.Qty)
			assert.Equal(t, 0, row.ReservedQty)
		}
	}
	res = doJSON(t, handler, http.MethodGet, "/api/v1/terminals/kassa-1/cart", owner.AccessToken, nil)
	require.Equal(t, http.StatusOK, res.Code)
	decodeBody(t, res, &cart)
	assert.Empty(t, cart.Lines)

	// an empty cart cannot open a session
	res = doJSON(t, handler, http.MethodPost, "/api/v1/terminals/kassa-1/checkout", owner.AccessToken, checkoutOpenRequest{})
	assert.Equal(t, http.StatusUnprocessableEntity, res.Code)
}

func TestCheckoutRemovePartReopensRemainder(t *testing.T) {
	api, _ := newTestAPI(t)
	handler := api.Handler()
	owner := loginPIN(t, handler, "1234")

	res := doJSON(t, handler, http.MethodPost, "/api/v1/terminals/term-2/checkout", owner.AccessToken, checkoutOpenRequest{TotalCents: 100000})
	require.Equal(t, http.StatusCreated, res.Code)

	res = doJSON(t, handler, http.MethodPut, "/api/v1/terminals/term-2/checkout/pending", owner.AccessToken, pendingPartRequest{Kind: domain.PaymentCard, AmountCents: 40000})
	require.Equal(t, http.StatusOK, res.Code)
	res = doJSON(t, handler, http.MethodPost, "/api/v1/terminals/term-2/checkout/parts", owner.AccessToken, nil)
	require.Equal(t, http.StatusOK, res.Code)

	res = doJSON(t, handler, http.MethodDelete, "/api/v1/terminals/term-2/checkout/parts/0", owner.AccessToken, nil)
	require.Equal(t, http.StatusOK, res.Code)

	var view service.CheckoutView
	decodeBody(t, res, &view)
	assert.Empty(t, view.Committed)
	assert.Equal(t, int64(100000), view.RemainingCents)

	res = doJSON(t, handler, http.MethodDelete, "/api/v1/terminals/term-2/checkout/parts/5", owner.AccessToken, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, res.Code)

	res = doJSON(t, handler, http.MethodDelete, "/api/v1/terminals/term-2/checkout", owner.AccessToken, nil)
	assert.Equal(t, http.StatusNoContent, res.Code)
}

func TestProductLifecycleOverHTTP(t *testing.T) {
	api, _ := newTestAPI(t)
	handler := api.Handler()
	owner := loginPIN(t, handler, "1234")

	res := doJSON(t, handler, http.MethodPost, "/api/v1/products", owner.AccessToken, domain.ProductCreateRequest{
		Name:           "Asal 0.5kg",
		Unit:           "dona",
		Barcode:        "4780000000017",
		SalePriceCents: 4500000,
	})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())

	var product domain.Product
	decodeBody(t, res, &product)
	require.NotEmpty(t, product.ID)

	res = doJSON(t, handler, http.MethodGet, "/api/v1/products/barcode/4780000000017", owner.AccessToken, nil)
	require.Equal(t, http.StatusOK, res.Code)

	newPrice := int64(4800000)
	res = doJSON(t, handler, http.MethodPatch, "/api/v1/products/"+product.ID, owner.AccessToken, domain.ProductUpdateRequest{SalePriceCents: &newPrice})
	require.Equal(t, http.StatusOK, res.Code)
	decodeBody(t, res, &product)
	assert.Equal(t, newPrice, product.SalePriceCents)

	// no movement history yet, so delete removes it outright
	res = doJSON(t, handler, http.MethodDelete, "/api/v1/products/"+product.ID, owner.AccessToken, nil)
	require.Equal(t, http.StatusOK, res.Code)
	var deleted map[string]bool
	decodeBody(t, res, &deleted)
	assert.False(t, deleted["archived"])
}

func TestSalesReportFormats(t *testing.T) {
	api, svc := newTestAPI(t)
	handler := api.Handler()
	owner := loginPIN(t, handler, "1234")
	non := seedProduct(t, svc, "Non")

	res := doJSON(t, handler, http.MethodPost, "/api/v1/sales", owner.AccessToken, domain.SaleCreateRequest{
		Items: []domain.SaleItem{
			{ProductID: non.ID, Qty: 2, UnitPriceCents: non.SalePriceCents},
		},
		Payments: []domain.SalePayment{
			{Kind: domain.PaymentCash, AmountCents: 2 * non.SalePriceCents},
		},
	})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())

	res = doJSON(t, handler, http.MethodGet, "/api/v1/reports/sales", owner.AccessToken, nil)
	require.Equal(t, http.StatusOK, res.Code)
	var report domain.SalesReport
	decodeBody(t, res, &report)
	assert.Equal(t, int64(1), report.SaleCount)

	res = doJSON(t, handler, http.MethodGet, "/api/v1/reports/sales?format=csv", owner.AccessToken, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, res.Header().Get("Content-Disposition"), "sales-report-")
	assert.True(t, strings.HasPrefix(res.Body.String(), "section,key,value"))

	res = doJSON(t, handler, http.MethodGet, "/api/v1/reports/sales?format=html", owner.AccessToken, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, res.Body.String(), "Savdo hisoboti")
}

func TestEmployeeCreateRejectsWeakPIN(t *testing.T) {
	api, svc := newTestAPI(t)
	handler := api.Handler()
	owner := loginPIN(t, handler, "1234")

	roles, err := svc.ListRoles(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	require.NoError(t, err)
	require.NotEmpty(t, roles)

	res := doJSON(t, handler, http.MethodPost, "/api/v1/employees", owner.AccessToken, domain.EmployeeRequest{
		Name:   "Test Kassir",
		RoleID: roles[0].ID,
		PIN:    "1111",
	})
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = doJSON(t, handler, http.MethodPost, "/api/v1/employees", owner.AccessToken, domain.EmployeeRequest{
		Name:   "Test Kassir",
		RoleID: roles[0].ID,
		PIN:    "8317",
	})
	assert.Equal(t, http.StatusCreated, res.Code, res.Body.String())
}

func TestRoleUpdateReresolvesEmployeePermissions(t *testing.T) {
	api, _ := newTestAPI(t)
	handler := api.Handler()
	owner := loginPIN(t, handler, "1234")
	cashier := loginPIN(t, handler, "5678")

	res := doJSON(t, handler, http.MethodPost, "/api/v1/products", cashier.AccessToken, domain.ProductCreateRequest{
		Name:           "Murabbo",
		Unit:           "dona",
		SalePriceCents: 2000000,
	})
	require.Equal(t, http.StatusForbidden, res.Code)

	res = doJSON(t, handler, http.MethodPut, "/api/v1/roles/"+cashier.Employee.RoleID, owner.AccessToken, domain.RoleRequest{
		Permissions: append(cashier.Permissions, domain.PermManageProducts),
	})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	res = doJSON(t, handler, http.MethodPost, "/api/v1/products", cashier.AccessToken, domain.ProductCreateRequest{
		Name:           "Murabbo",
		Unit:           "dona",
		SalePriceCents: 2000000,
	})
	assert.Equal(t, http.StatusCreated, res.Code, res.Body.String())
}

func TestUnknownJSONFieldRejected(t *testing.T) {
	api, _ := newTestAPI(t)
	handler := api.Handler()
	owner := loginPIN(t, handler, "1234")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/customers", strings.NewReader(`{"name":"A","phone":"+998","surprise":true}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+owner.AccessToken)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	assert.Equal(t, http.StatusBadRequest, res.Code)
}
