package checkout

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrSessionExists   = errors.New("checkout: terminal already has an open session")
	ErrSessionNotFound = errors.New("checkout: session not found")
)

// Manager holds at most one open session per terminal, plus the terminal's
// cart being rung up. All access goes through the manager mutex, so Session
// and Cart stay lock-free.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session // keyed by terminal ID
	carts    map[string]*Cart
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		carts:    make(map[string]*Cart),
	}
}

// Open starts a session for a terminal. A terminal with an open session must
// finalize or discard it first.
func (m *Manager) Open(terminalID string, totalCents int64, customerID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[terminalID]; ok {
		return nil, ErrSessionExists
	}
	sess, err := NewSession(uuid.NewString(), terminalID, totalCents, customerID)
	if err != nil {
		return nil, err
	}
	m.sessions[terminalID] = sess
	return sess, nil
}

// WithCart runs fn against the terminal's cart under the manager lock,
// creating an empty cart on first use.
func (m *Manager) WithCart(terminalID string, fn func(*Cart) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cart, ok := m.carts[terminalID]
	if !ok {
		cart = NewCart()
		m.carts[terminalID] = cart
	}
	return fn(cart)
}

// OpenFromCart snapshots the terminal's cart into a new session: its total
// becomes the amount due and its lines travel with the session to the sale.
// The cart itself stays in place until Release, so a discarded checkout can
// be reopened without re-ringing.
func (m *Manager) OpenFromCart(terminalID, customerID, warehouseID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[terminalID]; ok {
		return nil, ErrSessionExists
	}
	cart, ok := m.carts[terminalID]
	if !ok || cart.Empty() {
		return nil, ErrEmptyCart
	}
	sess, err := NewSession(uuid.NewString(), terminalID, cart.TotalCents(), customerID)
	if err != nil {
		return nil, err
	}
	sess.items = cart.Items()
	sess.subtotalCents = cart.SubtotalCents()
	sess.discountCents = cart.DiscountCents()
	sess.warehouseID = warehouseID
	m.sessions[terminalID] = sess
	return sess, nil
}

// ClearCart empties a terminal's cart.
func (m *Manager) ClearCart(terminalID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, terminalID)
}

func (m *Manager) Get(terminalID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[terminalID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Discard drops a terminal's session without recording anything.
func (m *Manager) Discard(terminalID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[terminalID]; !ok {
		return ErrSessionNotFound
	}
	delete(m.sessions, terminalID)
	return nil
}

// Mutate runs fn against a terminal's session under the manager lock.
func (m *Manager) Mutate(terminalID string, fn func(*Session) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[terminalID]
	if !ok {
		return ErrSessionNotFound
	}
	return fn(sess)
}

// Release removes a finalized session once its sale has been recorded, along
// with the cart it was opened from. The session stays registered between
// Finalize and Release so the payment set survives a failed sale write.
func (m *Manager) Release(terminalID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, terminalID)
	delete(m.carts, terminalID)
}
