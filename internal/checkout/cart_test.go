package checkout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"savdopos/backend/internal/domain"
)

var (
	testBread = domain.Product{ID: "p-bread", Name: "Non", Unit: "dona", SalePriceCents: 300000}
	testMilk  = domain.Product{ID: "p-milk", Name: "Sut", Unit: "litr", SalePriceCents: 1200000}
)

func TestCartAddMergesSameProduct(t *testing.T) {
	cart := NewCart()
	require.NoError(t, cart.Add(testBread, 2))
	require.NoError(t, cart.Add(testBread, 3))
	lines := cart.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 5, lines[0].Qty)
	assert.Equal(t, int64(1500000), cart.SubtotalCents())
}

func TestCartSetQtyAndRemove(t *testing.T) {
	cart := NewCart()
	require.NoError(t, cart.Add(testBread, 1))
	require.NoError(t, cart.Add(testMilk, 1))

	require.NoError(t, cart.SetQty(testMilk.ID, 4))
	assert.Equal(t, int64(300000+4*1200000), cart.SubtotalCents())

	require.NoError(t, cart.Remove(testBread.ID))
	require.Len(t, cart.Lines(), 1)

	assert.ErrorIs(t, cart.SetQty("p-missing", 2), ErrUnknownCartItem)
	assert.ErrorIs(t, cart.Add(testBread, 0), ErrBadQty)
}

func TestCartPriceOverride(t *testing.T) {
	cart := NewCart()
	require.NoError(t, cart.Add(testMilk, 2))
	require.NoError(t, cart.OverridePrice(testMilk.ID, 1000000))
	assert.Equal(t, int64(2000000), cart.SubtotalCents())
	assert.ErrorIs(t, cart.OverridePrice(testMilk.ID, -1), ErrBadPrice)
}

func TestCartDiscountBounds(t *testing.T) {
	cart := NewCart()
	require.NoError(t, cart.Add(testBread, 2)) // 600000
	require.NoError(t, cart.SetDiscount(100000))
	assert.Equal(t, int64(500000), cart.TotalCents())
	assert.ErrorIs(t, cart.SetDiscount(700000), ErrBadDiscount)
	assert.ErrorIs(t, cart.SetDiscount(-1), ErrBadDiscount)
}

func TestCartItemsKeepOverriddenPrice(t *testing.T) {
	cart := NewCart()
	require.NoError(t, cart.Add(testBread, 1))
	require.NoError(t, cart.OverridePrice(testBread.ID, 250000))
	items := cart.Items()
	require.Len(t, items, 1)
	assert.Equal(t, int64(250000), items[0].UnitPriceCents)
}
