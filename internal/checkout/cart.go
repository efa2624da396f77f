package checkout

import (
	"errors"
	"fmt"

	"savdopos/backend/internal/domain"
)

var (
	ErrEmptyCart       = errors.New("checkout: cart is empty")
	ErrUnknownCartItem = errors.New("checkout: product not in cart")
	ErrBadQty          = errors.New("checkout: quantity must be positive")
	ErrBadPrice        = errors.New("checkout: price must be non-negative")
	ErrBadDiscount     = errors.New("checkout: discount out of range")
)

// CartLine is one product row in the cart. UnitPriceCents starts as the
// catalog sale price and may be overridden per line.
type CartLine struct {
	ProductID      string `json:"product_id"`
	Name           string `json:"name"`
	Qty            int    `json:"qty"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

// Cart accumulates lines for one checkout. Not safe for concurrent use.
type Cart struct {
	lines         []CartLine
	discountCents int64
}

func NewCart() *Cart {
	return &Cart{}
}

// Add appends qty of a product, merging into an existing line with the same
// product and price.
func (c *Cart) Add(product domain.Product, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("%w: %d", ErrBadQty, qty)
	}
	for i := range c.lines {
		if c.lines[i].ProductID == product.ID && c.lines[i].UnitPriceCents == product.SalePriceCents {
			c.lines[i].Qty += qty
			return nil
		}
	}
	c.lines = append(c.lines, CartLine{
		ProductID:      product.ID,
		Name:           product.Name,
		Qty:            qty,
		UnitPriceCents: product.SalePriceCents,
	})
	return nil
}

// SetQty changes a line's quantity; zero removes the line.
func (c *Cart) SetQty(productID string, qty int) error {
	if qty < 0 {
		return fmt.Errorf("%w: %d", ErrBadQty, qty)
	}
	for i := range c.lines {
		if c.lines[i].ProductID == productID {
			if qty == 0 {
				c.lines = append(c.lines[:i], c.lines[i+1:]...)
			} else {
				c.lines[i].Qty = qty
			}
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownCartItem, productID)
}

// OverridePrice sets a per-line unit price, used for negotiated discounts
// at the counter.
func (c *Cart) OverridePrice(productID string, unitPriceCents int64) error {
	if unitPriceCents < 0 {
		return fmt.Errorf("%w: %d", ErrBadPrice, unitPriceCents)
	}
	for i := range c.lines {
		if c.lines[i].ProductID == productID {
			c.lines[i].UnitPriceCents = unitPriceCents
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownCartItem, productID)
}

func (c *Cart) Remove(productID string) error {
	return c.SetQty(productID, 0)
}

// SetDiscount applies a whole-cart discount. It may not exceed the subtotal.
func (c *Cart) SetDiscount(cents int64) error {
	if cents < 0 || cents > c.SubtotalCents() {
		return fmt.Errorf("%w: %d", ErrBadDiscount, cents)
	}
	c.discountCents = cents
	return nil
}

func (c *Cart) SubtotalCents() int64 {
	var sum int64
	for _, l := range c.lines {
		sum += int64(l.Qty) * l.UnitPriceCents
	}
	return sum
}

func (c *Cart) DiscountCents() int64 { return c.discountCents }

func (c *Cart) TotalCents() int64 {
	total := c.SubtotalCents() - c.discountCents
	if total < 0 {
		return 0
	}
	return total
}

func (c *Cart) Lines() []CartLine {
	out := make([]CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) Empty() bool { return len(c.lines) == 0 }

// Items converts the cart to sale items for recording.
func (c *Cart) Items() []domain.SaleItem {
	items := make([]domain.SaleItem, 0, len(c.lines))
	for _, l := range c.lines {
		items = append(items, domain.SaleItem{
			ProductID:      l.ProductID,
			Name:           l.Name,
			Qty:            l.Qty,
			UnitPriceCents: l.UnitPriceCents,
		})
	}
	return items
}
