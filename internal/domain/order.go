package domain

import (
	"encoding/json"
	"strings"
)

// OrderStatus is the lifecycle state of an order as seen by the storefront.
type OrderStatus string

const (
	OrderCreated         OrderStatus = "CREATED"
	OrderAwaitingPayment OrderStatus = "AWAITING_PAYMENT"
	OrderPaid            OrderStatus = "PAID"
	OrderFailed          OrderStatus = "FAILED"
)

// ParseOrderStatus maps backend spellings onto the storefront statuses. Unknown
// values are preserved upper-cased so they can still be displayed.
func ParseOrderStatus(raw string) OrderStatus {
	s := strings.ToUpper(strings.TrimSpace(raw))
	switch s {
	case "", "CREATED", "NEW":
		return OrderCreated
	case "AWAITING_PAYMENT", "PENDING", "PROCESSING":
		return OrderAwaitingPayment
	case "PAID", "COMPLETED", "APPROVED":
		return OrderPaid
	case "FAILED", "CANCELED", "CANCELLED", "REJECTED":
		return OrderFailed
	default:
		return OrderStatus(s)
	}
}

// OrderItem is one line of an order. The subtotal is always derived.
type OrderItem struct {
	ID          ID     `json:"id"`
	ProductID   ID     `json:"productId"`
	ProductName string `json:"productName,omitempty"`
	UnitPrice   Money  `json:"unitPrice"`
	Quantity    int    `json:"quantity"`
}

// Subtotal returns UnitPrice × Quantity.
func (i OrderItem) Subtotal() Money {
	return i.UnitPrice.Mul(i.Quantity)
}

// UnmarshalJSON decodes the backend shape, accepting the historical price and id
// aliases. Any server-side subtotal is ignored.
func (i *OrderItem) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID             ID     `json:"id"`
		OrderItemID    ID     `json:"orderItemId"`
		ProductID      ID     `json:"productId"`
		ProductName    string `json:"productName"`
		UnitPrice      *Money `json:"unitPrice"`
		PriceAtTheTime *Money `json:"priceAtTheTime"`
		Price          *Money `json:"price"`
		Quantity       int    `json:"quantity"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*i = OrderItem{
		ID:          firstID(raw.OrderItemID, raw.ID),
		ProductID:   raw.ProductID,
		ProductName: strings.TrimSpace(raw.ProductName),
		Quantity:    raw.Quantity,
	}
	switch {
	case raw.UnitPrice != nil:
		i.UnitPrice = *raw.UnitPrice
	case raw.PriceAtTheTime != nil:
		i.UnitPrice = *raw.PriceAtTheTime
	case raw.Price != nil:
		i.UnitPrice = *raw.Price
	}
	return nil
}

// Order is the storefront's cached copy of a backend order. It must be treated
// as possibly stale and re-fetched after any server-side mutation.
type Order struct {
	ID           ID          `json:"id"`
	BuyerID      ID          `json:"buyerId,omitempty"`
	BuyerEmail   string      `json:"buyerEmail,omitempty"`
	Items        []OrderItem `json:"items"`
	ShippingCost Money       `json:"shippingCost"`
	TotalAmount  Money       `json:"totalAmount"`
	Status       OrderStatus `json:"status"`
	// HasItemData is false when the payload carried no line items, in which
	// case totals fall back to TotalAmount.
	HasItemData bool `json:"hasItemData"`
}

// UnmarshalJSON decodes the backend order payload.
func (o *Order) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID           ID           `json:"id"`
		OrderID      ID           `json:"orderId"`
		BuyerID      ID           `json:"buyerId"`
		UserID       ID           `json:"userId"`
		BuyerEmail   string       `json:"buyerEmail"`
		Items        *[]OrderItem `json:"items"`
		ShippingCost Money        `json:"shippingCost"`
		TotalAmount  Money        `json:"totalAmount"`
		Total        *Money       `json:"total"`
		Status       string       `json:"status"`
		HasItemData  *bool        `json:"hasItemData"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*o = Order{
		ID:           firstID(raw.OrderID, raw.ID),
		BuyerID:      firstID(raw.BuyerID, raw.UserID),
		BuyerEmail:   strings.TrimSpace(raw.BuyerEmail),
		ShippingCost: raw.ShippingCost,
		TotalAmount:  raw.TotalAmount,
		Status:       ParseOrderStatus(raw.Status),
	}
	if raw.TotalAmount.IsZero() && raw.Total != nil {
		o.TotalAmount = *raw.Total
	}
	if raw.Items != nil && len(*raw.Items) > 0 {
		o.Items = *raw.Items
		o.HasItemData = true
	}
	if raw.HasItemData != nil {
		o.HasItemData = *raw.HasItemData
	}
	return nil
}

// ItemCount sums quantities across the order.
func (o Order) ItemCount() int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}

// ItemsSubtotal sums the derived subtotals of items.
func ItemsSubtotal(items []OrderItem) Money {
	total := Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	return total
}

// FinalAmount is the amount the shopper is charged.
//
// Items plus the explicit shipping selection is the source of truth. When the
// order carries no item data the stored total is used, with the stored shipping
// cost swapped for the selection so shipping is counted exactly once.
func FinalAmount(order Order, selection *ShippingSelection) Money {
	if order.HasItemData {
		total := ItemsSubtotal(order.Items)
		if selection != nil {
			total = total.Add(selection.Option.Price)
		}
		return total
	}
	if selection == nil {
		return order.TotalAmount
	}
	return order.TotalAmount.Sub(order.ShippingCost).Add(selection.Option.Price)
}
