package service

import (
	"context"
	"fmt"
	"strings"

	"savdopos/backend/internal/checkout"
	"savdopos/backend/internal/domain"
	"savdopos/backend/internal/store"
)

// CartView is the terminal cart snapshot returned after every cart mutation.
type CartView struct {
	TerminalID    string              `json:"terminal_id"`
	Lines         []checkout.CartLine `json:"lines"`
	SubtotalCents int64               `json:"subtotal_cents"`
	DiscountCents int64               `json:"discount_cents"`
	TotalCents    int64               `json:"total_cents"`
}

func cartViewOf(terminalID string, cart *checkout.Cart) CartView {
	return CartView{
		TerminalID:    terminalID,
		Lines:         cart.Lines(),
		SubtotalCents: cart.SubtotalCents(),
		DiscountCents: cart.DiscountCents(),
		TotalCents:    cart.TotalCents(),
	}
}

func (s *Service) GetCart(_ context.Context, terminalID string) (CartView, error) {
	terminalID = strings.TrimSpace(terminalID)
	if terminalID == "" {
		return CartView{}, fmt.Errorf("%w: terminal id required", store.ErrInvalidSale)
	}
	var view CartView
	err := s.sessions.WithCart(terminalID, func(cart *checkout.Cart) error {
		view = cartViewOf(terminalID, cart)
		return nil
	})
	return view, err
}

// AddCartItem rings up qty units of a product at its catalog sale price.
func (s *Service) AddCartItem(ctx context.Context, terminalID, productID string, qty int) (CartView, error) {
	terminalID = strings.TrimSpace(terminalID)
	if terminalID == "" {
		return CartView{}, fmt.Errorf("%w: terminal id required", store.ErrInvalidSale)
	}
	product, err := s.repo.GetProductByID(ctx, productID)
	if err != nil {
		return CartView{}, err
	}
	if product.Status == domain.ProductStatusArchived {
		return CartView{}, fmt.Errorf("%w: product %s is archived", store.ErrInvalidSale, productID)
	}
	var view CartView
	err = s.sessions.WithCart(terminalID, func(cart *checkout.Cart) error {
		if err := cart.Add(*product, qty); err != nil {
			return err
		}
		view = cartViewOf(terminalID, cart)
		return nil
	})
	return view, err
}

// UpdateCartItem changes a line's quantity, its unit price, or both. A nil
// field stays as is; quantity zero removes the line.
func (s *Service) UpdateCartItem(_ context.Context, terminalID, productID string, qty *int, unitPriceCents *int64) (CartView, error) {
	var view CartView
	err := s.sessions.WithCart(terminalID, func(cart *checkout.Cart) error {
		if qty != nil {
			if err := cart.SetQty(productID, *qty); err != nil {
				return err
			}
		}
		if unitPriceCents != nil {
			if err := cart.OverridePrice(productID, *unitPriceCents); err != nil {
				return err
			}
		}
		view = cartViewOf(terminalID, cart)
		return nil
	})
	return view, err
}

func (s *Service) RemoveCartItem(_ context.Context, terminalID, productID string) (CartView, error) {
	var view CartView
	err := s.sessions.WithCart(terminalID, func(cart *checkout.Cart) error {
		if err := cart.Remove(productID); err != nil {
			return err
		}
		view = cartViewOf(terminalID, cart)
		return nil
	})
	return view, err
}

func (s *Service) SetCartDiscount(_ context.Context, terminalID string, discountCents int64) (CartView, error) {
	var view CartView
	err := s.sessions.WithCart(terminalID, func(cart *checkout.Cart) error {
		if err := cart.SetDiscount(discountCents); err != nil {
			return err
		}
		view = cartViewOf(terminalID, cart)
		return nil
	})
	return view, err
}

func (s *Service) ClearCart(_ context.Context, terminalID string) {
	s.sessions.ClearCart(terminalID)
}
