// Package checkout implements the split-payment reconciliation that runs at
// the sales terminal between "start checkout" and "record the sale". A
// Session tracks one cart total, the payments committed against it so far,
// and a single editable pending part. Amounts are integer tiyin (minor
// currency units); the session never deals in floats.
package checkout

import (
	"errors"
	"fmt"
	"time"

	"savdopos/backend/internal/domain"
)

var (
	ErrSessionFinalized  = errors.New("checkout: session already finalized")
	ErrNoPendingPart     = errors.New("checkout: no pending part to commit")
	ErrNonPositiveAmount = errors.New("checkout: amount must be positive")
	ErrAmountExceedsDue  = errors.New("checkout: amount exceeds remaining due")
	ErrDebtNeedsCustomer = errors.New("checkout: debt payment requires a customer")
	ErrInvalidKind       = errors.New("checkout: unknown payment kind")
	ErrPartIndex         = errors.New("checkout: payment part index out of range")
	ErrUnpaidRemainder   = errors.New("checkout: remaining due is not zero")
	ErrNoPayments        = errors.New("checkout: no payments committed")
)

type State string

const (
	StateOpen      State = "open"
	StateFinalized State = "finalized"
)

// Session is the state of one split-payment checkout. It is not safe for
// concurrent use; the Manager serializes access per terminal.
type Session struct {
	id         string
	terminalID string
	totalCents int64
	customerID string
	state      State
	startedAt  time.Time

	committed []domain.SalePayment
	pending   domain.SalePayment

	// cart snapshot, set when the session is opened from a terminal cart
	items         []domain.SaleItem
	subtotalCents int64
	discountCents int64
	warehouseID   string
}

// NewSession opens a session for a cart total. The pending part starts as a
// cash payment preloaded with the full amount due, so the common single-
// payment checkout is commit-then-finalize.
func NewSession(id, terminalID string, totalCents int64, customerID string) (*Session, error) {
	if totalCents <= 0 {
		return nil, fmt.Errorf("%w: total %d", ErrNonPositiveAmount, totalCents)
	}
	return &Session{
		id:         id,
		terminalID: terminalID,
		totalCents: totalCents,
		customerID: customerID,
		state:      StateOpen,
		startedAt:  time.Now().UTC(),
		pending:    domain.SalePayment{Kind: domain.PaymentCash, AmountCents: totalCents},
	}, nil
}

func (s *Session) ID() string           { return s.id }
func (s *Session) TerminalID() string   { return s.terminalID }
func (s *Session) State() State         { return s.state }
func (s *Session) TotalCents() int64    { return s.totalCents }
func (s *Session) CustomerID() string   { return s.customerID }
func (s *Session) StartedAt() time.Time { return s.startedAt }

// Items returns the cart snapshot the session was opened with, or nil for a
// session opened on a bare total.
func (s *Session) Items() []domain.SaleItem {
	out := make([]domain.SaleItem, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Session) SubtotalCents() int64 { return s.subtotalCents }
func (s *Session) DiscountCents() int64 { return s.discountCents }
func (s *Session) WarehouseID() string  { return s.warehouseID }

// PaidCents is the sum of committed parts. The pending part never counts.
func (s *Session) PaidCents() int64 {
	var paid int64
	for _, p := range s.committed {
		paid += p.AmountCents
	}
	return paid
}

// RemainingCents is total minus paid, floored at zero for display. The
// commit guard keeps paid from ever exceeding total, so the floor only
// matters against future refactors.
func (s *Session) RemainingCents() int64 {
	rem := s.totalCents - s.PaidCents()
	if rem < 0 {
		return 0
	}
	return rem
}

// PendingPart returns the part currently being edited.
func (s *Session) PendingPart() domain.SalePayment {
	return s.pending
}

// CommittedParts returns the committed payments in commit order. The slice
// is a copy and stays readable after Finalize so a failed downstream sale
// write can be retried with the same payment set.
func (s *Session) CommittedParts() []domain.SalePayment {
	out := make([]domain.SalePayment, len(s.committed))
	copy(out, s.committed)
	return out
}

// SetPendingPart replaces the editable part. The amount is clamped to the
// remaining due rather than rejected, matching how the terminal keypad
// behaves, while kind validation is strict.
func (s *Session) SetPendingPart(kind domain.PaymentKind, amountCents int64) error {
	if s.state == StateFinalized {
		return ErrSessionFinalized
	}
	if !domain.IsValidPaymentKind(kind) {
		return fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	if amountCents < 0 {
		return fmt.Errorf("%w: %d", ErrNonPositiveAmount, amountCents)
	}
	if rem := s.RemainingCents(); amountCents > rem {
		amountCents = rem
	}
	s.pending = domain.SalePayment{Kind: kind, AmountCents: amountCents}
	return nil
}

// CommitPendingPart validates the pending part and appends it to the
// committed list, then resets the pending part to the new remaining due.
// A debt part is refused unless the session carries a customer.
func (s *Session) CommitPendingPart() error {
	if s.state == StateFinalized {
		return ErrSessionFinalized
	}
	part := s.pending
	if !domain.IsValidPaymentKind(part.Kind) {
		return fmt.Errorf("%w: %q", ErrInvalidKind, part.Kind)
	}
	if part.AmountCents <= 0 {
		return fmt.Errorf("%w: %d", ErrNonPositiveAmount, part.AmountCents)
	}
	if rem := s.RemainingCents(); part.AmountCents > rem {
		return fmt.Errorf("%w: %d > %d", ErrAmountExceedsDue, part.AmountCents, rem)
	}
	if part.Kind == domain.PaymentDebt && s.customerID == "" {
		return ErrDebtNeedsCustomer
	}
	s.committed = append(s.committed, part)
	s.resetPending()
	return nil
}

// RemoveCommittedPart deletes the part at index, shifting later parts down,
// and resets the pending part to the enlarged remaining due.
func (s *Session) RemoveCommittedPart(index int) error {
	if s.state == StateFinalized {
		return ErrSessionFinalized
	}
	if index < 0 || index >= len(s.committed) {
		return fmt.Errorf("%w: %d", ErrPartIndex, index)
	}
	s.committed = append(s.committed[:index], s.committed[index+1:]...)
	s.resetPending()
	return nil
}

// Finalize closes the session. It succeeds only when at least one part is
// committed and the remaining due is exactly zero, and returns the payment
// set in commit order. A finalized session rejects every further mutation
// including a second Finalize.
func (s *Session) Finalize() ([]domain.SalePayment, error) {
	if s.state == StateFinalized {
		return nil, ErrSessionFinalized
	}
	if len(s.committed) == 0 {
		return nil, ErrNoPayments
	}
	if rem := s.RemainingCents(); rem != 0 {
		return nil, fmt.Errorf("%w: %d left", ErrUnpaidRemainder, rem)
	}
	s.state = StateFinalized
	return s.CommittedParts(), nil
}

// resetPending reloads the editable part with the current remaining due,
// keeping the last chosen kind. With zero remaining the pending amount is
// zero, which CommitPendingPart refuses, so overpayment cannot be staged.
func (s *Session) resetPending() {
	s.pending = domain.SalePayment{Kind: s.pending.Kind, AmountCents: s.RemainingCents()}
}

// DebtCents is the portion of the committed set carried as customer debt.
func (s *Session) DebtCents() int64 {
	var debt int64
	for _, p := range s.committed {
		if p.Kind == domain.PaymentDebt {
			debt += p.AmountCents
		}
	}
	return debt
}
