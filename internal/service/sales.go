package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"savdopos/backend/internal/checkout"
	"savdopos/backend/internal/domain"
	"savdopos/backend/internal/store"
	"savdopos/backend/internal/xid"
)

// CheckoutView is the session snapshot returned to the terminal after every
// mutation, so the client never refetches the whole state separately.
type CheckoutView struct {
	SessionID      string               `json:"session_id"`
	TerminalID     string               `json:"terminal_id"`
	State          checkout.State       `json:"state"`
	TotalCents     int64                `json:"total_cents"`
	PaidCents      int64                `json:"paid_cents"`
	RemainingCents int64                `json:"remaining_cents"`
	Pending        domain.SalePayment   `json:"pending"`
	Committed      []domain.SalePayment `json:"committed"`
	CustomerID     string               `json:"customer_id,omitempty"`
	Items          []domain.SaleItem    `json:"items,omitempty"`
	DiscountCents  int64                `json:"discount_cents,omitempty"`
}

func viewOf(sess *checkout.Session) CheckoutView {
	view := CheckoutView{
		SessionID:      sess.ID(),
		TerminalID:     sess.TerminalID(),
		State:          sess.State(),
		TotalCents:     sess.TotalCents(),
		PaidCents:      sess.PaidCents(),
		RemainingCents: sess.RemainingCents(),
		Pending:        sess.PendingPart(),
		Committed:      sess.CommittedParts(),
		CustomerID:     sess.CustomerID(),
		DiscountCents:  sess.DiscountCents(),
	}
	if items := sess.Items(); len(items) > 0 {
		view.Items = items
	}
	return view
}

// OpenCheckout starts a split-payment session. With a positive totalCents
// the session opens on that bare amount; with zero it snapshots the
// terminal's rung-up cart and places a stock reservation on every line, so
// two terminals cannot promise the same units.
func (s *Service) OpenCheckout(ctx context.Context, terminalID string, totalCents int64, customerID string) (CheckoutView, error) {
	terminalID = strings.TrimSpace(terminalID)
	if terminalID == "" {
		return CheckoutView{}, fmt.Errorf("%w: terminal id required", store.ErrInvalidSale)
	}
	if customerID != "" {
		if _, err := s.repo.GetCustomerByID(ctx, customerID); err != nil {
			return CheckoutView{}, err
		}
	}
	if totalCents > 0 {
		sess, err := s.sessions.Open(terminalID, totalCents, customerID)
		if err != nil {
			return CheckoutView{}, err
		}
		return viewOf(sess), nil
	}

	warehouseID, err := s.resolveWarehouse(ctx, "")
	if err != nil {
		return CheckoutView{}, err
	}
	sess, err := s.sessions.OpenFromCart(terminalID, customerID, warehouseID)
	if err != nil {
		return CheckoutView{}, err
	}
	if err := s.reserveSessionStock(ctx, sess); err != nil {
		_ = s.sessions.Discard(terminalID)
		return CheckoutView{}, err
	}
	return viewOf(sess), nil
}

// reserveSessionStock holds the session's line quantities. A line that
// cannot be held rolls back the holds already placed.
func (s *Service) reserveSessionStock(ctx context.Context, sess *checkout.Session) error {
	need := lineQuantities(sess.Items())
	done := make([]string, 0, len(need))
	for _, productID := range sortedKeys(need) {
		if err := s.repo.ReserveStock(ctx, sess.WarehouseID(), productID, need[productID]); err != nil {
			for _, heldID := range done {
				if relErr := s.repo.ReserveStock(ctx, sess.WarehouseID(), heldID, -need[heldID]); relErr != nil {
					s.log.Warnw("reservation rollback failed", "product", heldID, "err", relErr)
				}
			}
			return err
		}
		done = append(done, productID)
	}
	return nil
}

func (s *Service) releaseSessionStock(ctx context.Context, sess *checkout.Session) {
	need := lineQuantities(sess.Items())
	for _, productID := range sortedKeys(need) {
		if err := s.repo.ReserveStock(ctx, sess.WarehouseID(), productID, -need[productID]); err != nil {
			s.log.Warnw("reservation release failed", "product", productID, "err", err)
		}
	}
}

func lineQuantities(items []domain.SaleItem) map[string]int {
	need := make(map[string]int, len(items))
	for _, item := range items {
		need[item.ProductID] += item.Qty
	}
	return need
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func (s *Service) GetCheckout(_ context.Context, terminalID string) (CheckoutView, error) {
	sess, err := s.sessions.Get(terminalID)
	if err != nil {
		return CheckoutView{}, err
	}
	return viewOf(sess), nil
}

func (s *Service) SetCheckoutPending(_ context.Context, terminalID string, kind domain.PaymentKind, amountCents int64) (CheckoutView, error) {
	var view CheckoutView
	err := s.sessions.Mutate(terminalID, func(sess *checkout.Session) error {
		if err := sess.SetPendingPart(kind, amountCents); err != nil {
			return err
		}
		view = viewOf(sess)
		return nil
	})
	return view, err
}

func (s *Service) CommitCheckoutPart(_ context.Context, terminalID string) (CheckoutView, error) {
	var view CheckoutView
	err := s.sessions.Mutate(terminalID, func(sess *checkout.Session) error {
		if err := sess.CommitPendingPart(); err != nil {
			return err
		}
		view = viewOf(sess)
		return nil
	})
	return view, err
}

func (s *Service) RemoveCheckoutPart(_ context.Context, terminalID string, index int) (CheckoutView, error) {
	var view CheckoutView
	err := s.sessions.Mutate(terminalID, func(sess *checkout.Session) error {
		if err := sess.RemoveCommittedPart(index); err != nil {
			return err
		}
		view = viewOf(sess)
		return nil
	})
	return view, err
}

// DiscardCheckout drops the terminal's session and gives back any stock it
// was holding. The cart survives, so the cashier can reopen without
// re-ringing.
func (s *Service) DiscardCheckout(ctx context.Context, terminalID string) error {
	sess, err := s.sessions.Get(terminalID)
	if err != nil {
		return err
	}
	if len(sess.Items()) > 0 {
		s.releaseSessionStock(ctx, sess)
	}
	return s.sessions.Discard(terminalID)
}

// FinalizeCheckout closes the terminal's session and records the sale in one
// step. The session is released only after the sale write succeeds; on a
// store failure it stays finalized and resident so the same payment set can
// be retried.
func (s *Service) FinalizeCheckout(ctx context.Context, terminalID string, req domain.SaleCreateRequest) (domain.Sale, error) {
	sess, err := s.sessions.Get(terminalID)
	if err != nil {
		return domain.Sale{}, err
	}

	var payments []domain.SalePayment
	if sess.State() == checkout.StateFinalized {
		// retry path after a failed sale write
		payments = sess.CommittedParts()
	} else {
		payments, err = sess.Finalize()
		if err != nil {
			return domain.Sale{}, err
		}
	}

	req.Payments = payments
	req.CustomerID = sess.CustomerID()
	if items := sess.Items(); len(items) > 0 && len(req.Items) == 0 {
		// cart-opened session: the snapshot is the cart
		req.Items = items
		req.DiscountCents = sess.DiscountCents()
		req.WarehouseID = sess.WarehouseID()
	}
	sale, err := s.CreateSale(ctx, req, sess.TotalCents())
	if err != nil {
		return domain.Sale{}, err
	}
	s.sessions.Release(terminalID)
	return sale, nil
}

// CreateSale validates and records a sale. The store applies the sale row,
// the stock decrement with its movements, and any debt increment in one
// transaction, so a failed stock guard leaves no sale behind.
func (s *Service) CreateSale(ctx context.Context, req domain.SaleCreateRequest, expectedTotalCents int64) (domain.Sale, error) {
	if len(req.Items) == 0 {
		return domain.Sale{}, fmt.Errorf("%w: no items", store.ErrInvalidSale)
	}
	if len(req.Payments) == 0 {
		return domain.Sale{}, fmt.Errorf("%w: no payments", store.ErrInvalidSale)
	}
	if req.DiscountCents < 0 {
		return domain.Sale{}, fmt.Errorf("%w: negative discount", store.ErrInvalidSale)
	}

	var subtotal int64
	for _, item := range req.Items {
		if item.Qty <= 0 || item.UnitPriceCents < 0 {
			return domain.Sale{}, fmt.Errorf("%w: bad item %s", store.ErrInvalidSale, item.ProductID)
		}
		subtotal += int64(item.Qty) * item.UnitPriceCents
	}
	total := subtotal - req.DiscountCents
	if total <= 0 {
		return domain.Sale{}, fmt.Errorf("%w: non-positive total", store.ErrInvalidSale)
	}
	if expectedTotalCents > 0 && total != expectedTotalCents {
		return domain.Sale{}, fmt.Errorf("%w: cart total %d does not match session total %d", store.ErrInvalidSale, total, expectedTotalCents)
	}

	var paid, debt int64
	for _, p := range req.Payments {
		if !domain.IsValidPaymentKind(p.Kind) {
			return domain.Sale{}, fmt.Errorf("%w: unknown payment kind %q", store.ErrInvalidSale, p.Kind)
		}
		if p.AmountCents <= 0 {
			return domain.Sale{}, fmt.Errorf("%w: non-positive payment", store.ErrInvalidSale)
		}
		paid += p.AmountCents
		if p.Kind == domain.PaymentDebt {
			debt += p.AmountCents
		}
	}
	if paid != total {
		return domain.Sale{}, fmt.Errorf("%w: payments %d do not cover total %d", store.ErrInvalidSale, paid, total)
	}
	if debt > 0 && req.CustomerID == "" {
		return domain.Sale{}, fmt.Errorf("%w: debt payment requires a customer", store.ErrInvalidSale)
	}
	if req.CustomerID != "" {
		if _, err := s.repo.GetCustomerByID(ctx, req.CustomerID); err != nil {
			return domain.Sale{}, err
		}
	}

	warehouseID, err := s.resolveWarehouse(ctx, req.WarehouseID)
	if err != nil {
		return domain.Sale{}, err
	}

	// advisory precheck for a message with quantities; the store re-checks
	// inside the sale transaction
	ids := make([]string, 0, len(req.Items))
	for _, item := range req.Items {
		ids = append(ids, item.ProductID)
	}
	stock, err := s.repo.GetStockMap(ctx, warehouseID, ids)
	if err != nil {
		return domain.Sale{}, err
	}
	for productID, qty := range lineQuantities(req.Items) {
		if stock[productID] < qty {
			return domain.Sale{}, fmt.Errorf("%w: product %s has %d, need %d", store.ErrInsufficientStock, productID, stock[productID], qty)
		}
	}

	actor, _ := ActorFromContext(ctx)
	now := time.Now().UTC()
	sale := domain.Sale{
		ID:            xid.New("sale"),
		Date:          now,
		Items:         req.Items,
		SubtotalCents: subtotal,
		DiscountCents: req.DiscountCents,
		TotalCents:    total,
		Payments:      req.Payments,
		CustomerID:    req.CustomerID,
		SellerID:      actor.EmployeeID,
		WarehouseID:   warehouseID,
	}
	// resolve item names from the catalog for receipts
	for i := range sale.Items {
		if sale.Items[i].Name != "" {
			continue
		}
		if p, err := s.repo.GetProductByID(ctx, sale.Items[i].ProductID); err == nil {
			sale.Items[i].Name = p.Name
		}
	}

	created, err := s.repo.CreateSale(ctx, sale)
	if err != nil {
		return domain.Sale{}, err
	}

	s.logAudit(ctx, "sale_create", "sale", created.ID, fmt.Sprintf("total=%d,payments=%d,debt=%d", total, len(req.Payments), debt))
	return *created, nil
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	sale, err := s.repo.GetSaleByID(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

func (s *Service) ListSales(ctx context.Context, filter domain.SaleListFilter) ([]domain.Sale, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	return s.repo.ListSales(ctx, filter)
}

// PayDebt settles part or all of a customer's balance. Debt itself is not a
// settlement instrument.
func (s *Service) PayDebt(ctx context.Context, customerID string, req domain.DebtPaymentRequest) (domain.Customer, error) {
	customer, err := s.repo.GetCustomerByID(ctx, customerID)
	if err != nil {
		return domain.Customer{}, err
	}
	if req.Kind == domain.PaymentDebt || !domain.IsValidPaymentKind(req.Kind) {
		return domain.Customer{}, fmt.Errorf("%w: debt cannot be settled with %q", store.ErrInvalidSale, req.Kind)
	}
	if req.AmountCents <= 0 {
		return domain.Customer{}, fmt.Errorf("%w: amount must be positive", store.ErrInvalidSale)
	}
	if req.AmountCents > customer.DebtCents {
		return domain.Customer{}, fmt.Errorf("%w: payment %d exceeds debt %d", store.ErrInvalidSale, req.AmountCents, customer.DebtCents)
	}

	payment := domain.DebtPayment{
		ID:          xid.New("debtpay"),
		CustomerID:  customerID,
		AmountCents: req.AmountCents,
		Kind:        req.Kind,
		Date:        time.Now().UTC(),
	}
	if _, err := s.repo.CreateDebtPayment(ctx, payment); err != nil {
		return domain.Customer{}, err
	}
	updated, err := s.repo.AdjustCustomerDebt(ctx, customerID, -req.AmountCents)
	if err != nil {
		return domain.Customer{}, err
	}
	s.logAudit(ctx, "debt_payment", "customer", customerID, fmt.Sprintf("amount=%d,kind=%s", req.AmountCents, req.Kind))
	return *updated, nil
}

// DebtLedger merges a customer's credit sales and settlements, newest first.
func (s *Service) DebtLedger(ctx context.Context, customerID string) ([]domain.DebtLedgerEntry, error) {
	if _, err := s.repo.GetCustomerByID(ctx, customerID); err != nil {
		return nil, err
	}
	sales, err := s.repo.ListSales(ctx, domain.SaleListFilter{CustomerID: customerID})
	if err != nil {
		return nil, err
	}
	payments, err := s.repo.ListDebtPayments(ctx, customerID)
	if err != nil {
		return nil, err
	}

	entries := make([]domain.DebtLedgerEntry, 0, len(sales)+len(payments))
	for _, sale := range sales {
		var debtPart int64
		for _, p := range sale.Payments {
			if p.Kind == domain.PaymentDebt {
				debtPart += p.AmountCents
			}
		}
		if debtPart == 0 {
			continue
		}
		entries = append(entries, domain.DebtLedgerEntry{
			Date:        sale.Date,
			Type:        domain.DebtEntrySale,
			AmountCents: debtPart,
			RelatedID:   sale.ID,
		})
	}
	for _, p := range payments {
		entries = append(entries, domain.DebtLedgerEntry{
			Date:        p.Date,
			Type:        domain.DebtEntryPayment,
			AmountCents: p.AmountCents,
			RelatedID:   p.ID,
		})
	}
	slices.SortFunc(entries, func(a, b domain.DebtLedgerEntry) int {
		return b.Date.Compare(a.Date)
	})
	return entries, nil
}
