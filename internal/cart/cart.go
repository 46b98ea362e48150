// Package cart holds the client-side shopping cart. A Cart is a plain value
// that is loaded from and saved to a Storage; nothing is shared between
// processes beyond what the storage holds.
package cart

import (
	"storefront/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Item is one cart line with the product as it looked when it was added
type Item struct {
	ProductID uuid.UUID      `json:"product_id"`
	Quantity  int            `json:"quantity"`
	Product   domain.Product `json:"product"`
}

// Subtotal is the snapshot price times the quantity
func (i Item) Subtotal() decimal.Decimal {
	return i.Product.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart is an ordered list of lines and their derived total
type Cart struct {
	Items []Item          `json:"items"`
	Total decimal.Decimal `json:"total"`
}

// New returns an empty cart
func New() *Cart {
	return &Cart{Items: []Item{}}
}

func (c *Cart) index(productID uuid.UUID) int {
	for i, item := range c.Items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}

func (c *Cart) recalculate() {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Subtotal())
	}
	c.Total = total
}

// Add puts quantity units of product in the cart, adding to an existing line
// for the same product. Quantities below 1 count as 1.
func (c *Cart) Add(product domain.Product, quantity int) {
	if quantity < 1 {
		quantity = 1
	}
	if i := c.index(product.ID); i >= 0 {
		c.Items[i].Quantity += quantity
		c.Items[i].Product = product
	} else {
		c.Items = append(c.Items, Item{ProductID: product.ID, Quantity: quantity, Product: product})
	}
	c.recalculate()
}

// UpdateQuantity sets the quantity of a line; zero or less removes it.
// Unknown products are ignored.
func (c *Cart) UpdateQuantity(productID uuid.UUID, quantity int) {
	i := c.index(productID)
	if i < 0 {
		return
	}
	if quantity <= 0 {
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
	} else {
		c.Items[i].Quantity = quantity
	}
	c.recalculate()
}

// Remove drops the line for productID if present
func (c *Cart) Remove(productID uuid.UUID) {
	c.UpdateQuantity(productID, 0)
}

// Clear empties the cart
func (c *Cart) Clear() {
	c.Items = []Item{}
	c.Total = decimal.Zero
}

// ItemCount is the number of units across all lines
func (c *Cart) ItemCount() int {
	count := 0
	for _, item := range c.Items {
		count += item.Quantity
	}
	return count
}

// IsEmpty reports whether the cart has no lines
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Merge adds the lines of other into c. Quantities of shared products are
// summed and other's product snapshot wins, since it was saved later.
func (c *Cart) Merge(other *Cart) {
	if other == nil {
		return
	}
	for _, item := range other.Items {
		if item.Quantity < 1 {
			continue
		}
		if i := c.index(item.ProductID); i >= 0 {
			c.Items[i].Quantity += item.Quantity
			c.Items[i].Product = item.Product
		} else {
			c.Items = append(c.Items, item)
		}
	}
	c.recalculate()
}

// Lines returns the product ids and quantities sent to checkout
func (c *Cart) Lines() []domain.LineItem {
	lines := make([]domain.LineItem, 0, len(c.Items))
	for _, item := range c.Items {
		lines = append(lines, domain.LineItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return lines
}

// normalize repairs a decoded cart: nil items become empty, non-positive
// lines are dropped and the total is recomputed.
func (c *Cart) normalize() {
	items := make([]Item, 0, len(c.Items))
	for _, item := range c.Items {
		if item.Quantity > 0 {
			items = append(items, item)
		}
	}
	c.Items = items
	c.recalculate()
}
