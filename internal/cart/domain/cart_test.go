package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func item(productID, size string, price float64, qty int) CartItem {
	return CartItem{
		ProductID: productID,
		Name:      "Vintage Denim Jacket",
		UnitPrice: price,
		Size:      size,
		Quantity:  qty,
		ImageURL:  "https://cdn.example.com/denim.jpg",
	}
}

func TestAddItem_MergesByProductAndSize(t *testing.T) {
	cart := &Cart{}

	cart.AddItem(item("7", "M", 95000, 1))
	cart.AddItem(item("7", "M", 95000, 2))

	assert.Len(t, cart.Items, 1)
	assert.Equal(t, 3, cart.Items[0].Quantity)
}

func TestAddItem_DifferentSizeIsSeparateEntry(t *testing.T) {
	cart := &Cart{}

	cart.AddItem(item("7", "M", 95000, 1))
	cart.AddItem(item("7", "L", 95000, 1))

	assert.Len(t, cart.Items, 2)
}

func TestAddItem_ClampsQuantityToOne(t *testing.T) {
	cart := &Cart{}

	cart.AddItem(item("7", "M", 95000, 0))

	assert.Equal(t, 1, cart.Items[0].Quantity)
}

func TestSubtotal_SumOverEntries(t *testing.T) {
	cart := &Cart{}
	cart.AddItem(item("7", "M", 95000, 2))
	cart.AddItem(item("9", "S", 40000, 1))

	assert.InDelta(t, 230000, cart.Subtotal(), 0.001)
}

func TestSubtotal_IndependentOfInsertionOrder(t *testing.T) {
	a := &Cart{}
	a.AddItem(item("7", "M", 95000, 2))
	a.AddItem(item("9", "S", 40000, 1))
	a.AddItem(item("11", "L", 12500, 4))

	b := &Cart{}
	b.AddItem(item("11", "L", 12500, 4))
	b.AddItem(item("9", "S", 40000, 1))
	b.AddItem(item("7", "M", 95000, 2))

	assert.Equal(t, a.Subtotal(), b.Subtotal())
}

func TestUpdateQuantity_ZeroRemovesEntry(t *testing.T) {
	cart := &Cart{}
	cart.AddItem(item("7", "M", 95000, 2))

	cart.UpdateQuantity("7", "M", 0)

	assert.True(t, cart.IsEmpty())
}

func TestUpdateQuantity_SetsExactValue(t *testing.T) {
	cart := &Cart{}
	cart.AddItem(item("7", "M", 95000, 2))

	cart.UpdateQuantity("7", "M", 5)

	assert.Equal(t, 5, cart.Items[0].Quantity)
}

func TestRemoveItem_OnlyMatchingVariant(t *testing.T) {
	cart := &Cart{}
	cart.AddItem(item("7", "M", 95000, 1))
	cart.AddItem(item("7", "L", 95000, 1))

	cart.RemoveItem("7", "M")

	assert.Len(t, cart.Items, 1)
	assert.Equal(t, "L", cart.Items[0].Size)
}

func TestRemoveProduct_AllVariants(t *testing.T) {
	cart := &Cart{}
	cart.AddItem(item("7", "M", 95000, 1))
	cart.AddItem(item("7", "L", 95000, 1))
	cart.AddItem(item("9", "S", 40000, 1))

	cart.RemoveProduct("7")

	assert.Len(t, cart.Items, 1)
	assert.Equal(t, "9", cart.Items[0].ProductID)
}

func TestClear(t *testing.T) {
	cart := &Cart{}
	cart.AddItem(item("7", "M", 95000, 1))

	cart.Clear()

	assert.True(t, cart.IsEmpty())
	assert.Zero(t, cart.Subtotal())
}

func TestTotalItems_SumsQuantities(t *testing.T) {
	cart := &Cart{}
	cart.AddItem(item("7", "M", 95000, 2))
	cart.AddItem(item("9", "S", 40000, 3))

	assert.Equal(t, 5, cart.TotalItems())
}
