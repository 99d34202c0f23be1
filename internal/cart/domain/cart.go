package domain

import "time"

type Cart struct {
	ID        string     `bson:"_id,omitempty" json:"-"`
	OwnerKey  string     `bson:"owner_key" json:"owner_key"`
	Items     []CartItem `bson:"items" json:"items"`
	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updated_at"`
}

// CartItem carries a denormalized product snapshot so the cart can be
// rendered and priced without a catalog lookup. Identity within a cart
// is the (ProductID, Size) pair.
type CartItem struct {
	ProductID string    `bson:"product_id" json:"product_id"`
	Name      string    `bson:"name" json:"name"`
	UnitPrice float64   `bson:"unit_price" json:"unit_price"`
	Size      string    `bson:"size" json:"size"`
	Quantity  int       `bson:"quantity" json:"quantity"`
	ImageURL  string    `bson:"image_url" json:"image_url"`
	AddedAt   time.Time `bson:"added_at" json:"added_at"`
}

// AddItem merges by (ProductID, Size): an existing entry has its
// quantity incremented, otherwise the item is appended. The entry count
// never grows for a key already present.
func (c *Cart) AddItem(item CartItem) {
	if item.Quantity < 1 {
		item.Quantity = 1
	}
	for i := range c.Items {
		if c.Items[i].ProductID == item.ProductID && c.Items[i].Size == item.Size {
			c.Items[i].Quantity += item.Quantity
			return
		}
	}
	c.Items = append(c.Items, item)
}

// UpdateQuantity sets the quantity of the matching variant. A quantity
// of zero or less removes the entry.
func (c *Cart) UpdateQuantity(productID, size string, quantity int) {
	if quantity <= 0 {
		c.RemoveItem(productID, size)
		return
	}
	for i := range c.Items {
		if c.Items[i].ProductID == productID && c.Items[i].Size == size {
			c.Items[i].Quantity = quantity
			return
		}
	}
}

// RemoveItem removes the single (productID, size) variant.
func (c *Cart) RemoveItem(productID, size string) {
	kept := c.Items[:0]
	for _, item := range c.Items {
		if item.ProductID == productID && item.Size == size {
			continue
		}
		kept = append(kept, item)
	}
	c.Items = kept
}

// RemoveProduct removes every variant of the product regardless of size.
func (c *Cart) RemoveProduct(productID string) {
	kept := c.Items[:0]
	for _, item := range c.Items {
		if item.ProductID == productID {
			continue
		}
		kept = append(kept, item)
	}
	c.Items = kept
}

func (c *Cart) Clear() {
	c.Items = nil
}

// Subtotal is the sum of unit price times quantity over all entries.
func (c *Cart) Subtotal() float64 {
	var total float64
	for _, item := range c.Items {
		total += item.UnitPrice * float64(item.Quantity)
	}
	return total
}

// TotalItems is the sum of quantities, not the entry count.
func (c *Cart) TotalItems() int {
	var n int
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}
