package domain

import (
	"encoding/json"
	"strings"
)

// CartItem is one line in the shopper's cart.
type CartItem struct {
	ID          ID     `json:"id"`
	ProductID   ID     `json:"productId"`
	ProductName string `json:"productName,omitempty"`
	UnitPrice   Money  `json:"unitPrice"`
	Quantity    int    `json:"quantity"`
}

// Subtotal returns UnitPrice × Quantity.
func (c CartItem) Subtotal() Money { return c.UnitPrice.Mul(c.Quantity) }

// UnmarshalJSON accepts the cart-items payload (cartItem_ID, price) as well as
// the canonical shape written to the local cache.
func (c *CartItem) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID          ID     `json:"id"`
		CartItemID  ID     `json:"cartItem_ID"`
		CartItemID2 ID     `json:"cartItemId"`
		ProductID   ID     `json:"productId"`
		ProductName string `json:"productName"`
		UnitPrice   *Money `json:"unitPrice"`
		Price       *Money `json:"price"`
		Quantity    int    `json:"quantity"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = CartItem{
		ID:          firstID(raw.CartItemID, raw.CartItemID2, raw.ID),
		ProductID:   raw.ProductID,
		ProductName: strings.TrimSpace(raw.ProductName),
		Quantity:    raw.Quantity,
	}
	switch {
	case raw.UnitPrice != nil:
		c.UnitPrice = *raw.UnitPrice
	case raw.Price != nil:
		c.UnitPrice = *raw.Price
	}
	return nil
}

// CartSubtotal sums the cart's line subtotals.
func CartSubtotal(items []CartItem) Money {
	total := Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	return total
}

// CartCount sums quantities across the cart.
func CartCount(items []CartItem) int {
	n := 0
	for _, it := range items {
		n += it.Quantity
	}
	return n
}
